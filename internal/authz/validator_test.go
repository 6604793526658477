package authz

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"card-custody-service/internal/models"
)

type MockActorStore struct {
	mock.Mock
}

var _ ActorStore = (*MockActorStore)(nil)

func (m *MockActorStore) GetActorByID(ctx context.Context, id uuid.UUID) (*models.Actor, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Actor), args.Error(1)
}

type MockGrantStore struct {
	mock.Mock
}

var _ GrantStore = (*MockGrantStore)(nil)

func (m *MockGrantStore) HasActiveInstitutionGrant(ctx context.Context, supervisorID, institutionID uuid.UUID) (bool, error) {
	args := m.Called(ctx, supervisorID, institutionID)
	return args.Bool(0), args.Error(1)
}

func (m *MockGrantStore) HasActiveTargetGrant(ctx context.Context, supervisorID, targetID uuid.UUID) (bool, error) {
	args := m.Called(ctx, supervisorID, targetID)
	return args.Bool(0), args.Error(1)
}

type chainFixture struct {
	actors        *MockActorStore
	grants        *MockGrantStore
	validator     *Validator
	supervisor    *models.Actor
	worker        *models.Actor
	institutionID uuid.UUID
	targetID      uuid.UUID
}

func newChainFixture() *chainFixture {
	actors := new(MockActorStore)
	grants := new(MockGrantStore)

	supervisorID := uuid.New()
	supervisor := &models.Actor{
		ID:     supervisorID,
		Role:   models.RoleSupervisor,
		Status: models.ActorStatusActive,
	}
	worker := &models.Actor{
		ID:           uuid.New(),
		Role:         models.RoleWorker,
		Status:       models.ActorStatusActive,
		SupervisorID: &supervisorID,
	}

	return &chainFixture{
		actors:        actors,
		grants:        grants,
		validator:     NewValidator(actors, grants),
		supervisor:    supervisor,
		worker:        worker,
		institutionID: uuid.New(),
		targetID:      uuid.New(),
	}
}

func (f *chainFixture) check(t *testing.T) Decision {
	t.Helper()
	decision, err := f.validator.CheckGrant(context.Background(), f.worker.ID, f.supervisor.ID, f.institutionID, f.targetID)
	assert.NoError(t, err)
	return decision
}

func TestCheckGrant_FullChainPasses(t *testing.T) {
	f := newChainFixture()

	f.actors.On("GetActorByID", mock.Anything, f.supervisor.ID).Return(f.supervisor, nil)
	f.actors.On("GetActorByID", mock.Anything, f.worker.ID).Return(f.worker, nil)
	f.grants.On("HasActiveInstitutionGrant", mock.Anything, f.supervisor.ID, f.institutionID).Return(true, nil)
	f.grants.On("HasActiveTargetGrant", mock.Anything, f.supervisor.ID, f.targetID).Return(true, nil)

	decision := f.check(t)
	assert.True(t, decision.OK)
	assert.Empty(t, decision.Reason)
}

func TestCheckGrant_MissingInstitutionGrant(t *testing.T) {
	f := newChainFixture()

	f.actors.On("GetActorByID", mock.Anything, f.supervisor.ID).Return(f.supervisor, nil)
	f.actors.On("GetActorByID", mock.Anything, f.worker.ID).Return(f.worker, nil)
	f.grants.On("HasActiveInstitutionGrant", mock.Anything, f.supervisor.ID, f.institutionID).Return(false, nil)

	decision := f.check(t)
	assert.False(t, decision.OK)
	assert.Equal(t, ReasonNoInstitutionGrant, decision.Reason)
	f.grants.AssertNotCalled(t, "HasActiveTargetGrant", mock.Anything, mock.Anything, mock.Anything)
}

func TestCheckGrant_MissingTargetGrant(t *testing.T) {
	f := newChainFixture()

	f.actors.On("GetActorByID", mock.Anything, f.supervisor.ID).Return(f.supervisor, nil)
	f.actors.On("GetActorByID", mock.Anything, f.worker.ID).Return(f.worker, nil)
	f.grants.On("HasActiveInstitutionGrant", mock.Anything, f.supervisor.ID, f.institutionID).Return(true, nil)
	f.grants.On("HasActiveTargetGrant", mock.Anything, f.supervisor.ID, f.targetID).Return(false, nil)

	decision := f.check(t)
	assert.False(t, decision.OK)
	assert.Equal(t, ReasonNoTargetGrant, decision.Reason)
}

func TestCheckGrant_WorkerNotSupervised(t *testing.T) {
	f := newChainFixture()
	otherSupervisor := uuid.New()
	f.worker.SupervisorID = &otherSupervisor

	f.actors.On("GetActorByID", mock.Anything, f.supervisor.ID).Return(f.supervisor, nil)
	f.actors.On("GetActorByID", mock.Anything, f.worker.ID).Return(f.worker, nil)

	decision := f.check(t)
	assert.False(t, decision.OK)
	assert.Equal(t, ReasonNotSupervised, decision.Reason)
}

func TestCheckGrant_WorkerWithoutSupervisor(t *testing.T) {
	f := newChainFixture()
	f.worker.SupervisorID = nil

	f.actors.On("GetActorByID", mock.Anything, f.supervisor.ID).Return(f.supervisor, nil)
	f.actors.On("GetActorByID", mock.Anything, f.worker.ID).Return(f.worker, nil)

	decision := f.check(t)
	assert.False(t, decision.OK)
	assert.Equal(t, ReasonNotSupervised, decision.Reason)
}

func TestCheckGrant_InactiveSupervisor(t *testing.T) {
	f := newChainFixture()
	f.supervisor.Status = models.ActorStatusInactive

	f.actors.On("GetActorByID", mock.Anything, f.supervisor.ID).Return(f.supervisor, nil)

	decision := f.check(t)
	assert.False(t, decision.OK)
	assert.Equal(t, ReasonActorInactive, decision.Reason)
	f.actors.AssertNotCalled(t, "GetActorByID", mock.Anything, f.worker.ID)
}

func TestCheckGrant_TerminatedWorker(t *testing.T) {
	f := newChainFixture()
	f.worker.Status = models.ActorStatusTerminated

	f.actors.On("GetActorByID", mock.Anything, f.supervisor.ID).Return(f.supervisor, nil)
	f.actors.On("GetActorByID", mock.Anything, f.worker.ID).Return(f.worker, nil)

	decision := f.check(t)
	assert.False(t, decision.OK)
	assert.Equal(t, ReasonActorInactive, decision.Reason)
}

func TestCheckGrant_NonSupervisorRoleRejected(t *testing.T) {
	f := newChainFixture()
	f.supervisor.Role = models.RoleWorker

	f.actors.On("GetActorByID", mock.Anything, f.supervisor.ID).Return(f.supervisor, nil)

	decision := f.check(t)
	assert.False(t, decision.OK)
	assert.Equal(t, ReasonActorInactive, decision.Reason)
}

// Revoking a grant takes effect on the next check: the same fixture that
// passed a moment ago fails once the grant store reports the revocation.
func TestCheckGrant_RevocationAppliesImmediately(t *testing.T) {
	f := newChainFixture()

	f.actors.On("GetActorByID", mock.Anything, f.supervisor.ID).Return(f.supervisor, nil)
	f.actors.On("GetActorByID", mock.Anything, f.worker.ID).Return(f.worker, nil)
	f.grants.On("HasActiveInstitutionGrant", mock.Anything, f.supervisor.ID, f.institutionID).Return(true, nil).Once()
	f.grants.On("HasActiveTargetGrant", mock.Anything, f.supervisor.ID, f.targetID).Return(true, nil).Once()

	decision := f.check(t)
	assert.True(t, decision.OK)

	f.grants.On("HasActiveInstitutionGrant", mock.Anything, f.supervisor.ID, f.institutionID).Return(false, nil).Once()

	decision = f.check(t)
	assert.False(t, decision.OK)
	assert.Equal(t, ReasonNoInstitutionGrant, decision.Reason)
}

func TestHasCapability(t *testing.T) {
	assert.True(t, HasCapability(models.RoleWorker, CapCardsReveal))
	assert.True(t, HasCapability(models.RoleFinance, CapWithdrawalsBlock))
	assert.True(t, HasCapability(models.RoleSupervisor, CapCardsAssign))

	assert.False(t, HasCapability(models.RoleWorker, CapCardsBlock))
	assert.False(t, HasCapability(models.RoleHR, CapWithdrawalsReviewFinance))
	assert.False(t, HasCapability(models.RoleTester, CapCardsReveal))
}
