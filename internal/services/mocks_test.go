package services

import (
	"bytes"
	"context"
	"encoding/base64"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/mock"

	"card-custody-service/internal/cache"
	"card-custody-service/internal/models"
	"card-custody-service/internal/repository"
	"card-custody-service/internal/vault"
)

// MockCardRepository is a mock implementation of CardRepositoryInterface
type MockCardRepository struct {
	mock.Mock
}

var _ repository.CardRepositoryInterface = (*MockCardRepository)(nil)

func (m *MockCardRepository) CreateCard(ctx context.Context, card *models.Card) error {
	args := m.Called(ctx, card)
	if args.Error(0) == nil && card.ID == uuid.Nil {
		card.ID = uuid.New()
	}
	return args.Error(0)
}

func (m *MockCardRepository) GetCardByID(ctx context.Context, id uuid.UUID) (*models.Card, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Card), args.Error(1)
}

func (m *MockCardRepository) ListCards(ctx context.Context, req *models.SearchCardsRequest) ([]models.Card, int64, error) {
	args := m.Called(ctx, req)
	return args.Get(0).([]models.Card), args.Get(1).(int64), args.Error(2)
}

func (m *MockCardRepository) AssignCard(ctx context.Context, cardID, workerID, targetID uuid.UUID, assignedBy *models.Actor) (*models.Card, error) {
	args := m.Called(ctx, cardID, workerID, targetID, assignedBy)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Card), args.Error(1)
}

func (m *MockCardRepository) BlockCard(ctx context.Context, cardID uuid.UUID, actor *models.Actor) (*models.Card, error) {
	args := m.Called(ctx, cardID, actor)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Card), args.Error(1)
}

func (m *MockCardRepository) UnblockCard(ctx context.Context, cardID uuid.UUID, actor *models.Actor) (*models.Card, error) {
	args := m.Called(ctx, cardID, actor)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Card), args.Error(1)
}

// MockEngagementRepository is a mock implementation of EngagementRepositoryInterface
type MockEngagementRepository struct {
	mock.Mock
}

var _ repository.EngagementRepositoryInterface = (*MockEngagementRepository)(nil)

func (m *MockEngagementRepository) OpenEngagement(ctx context.Context, engagement *models.Engagement) error {
	args := m.Called(ctx, engagement)
	if args.Error(0) == nil {
		if engagement.ID == uuid.Nil {
			engagement.ID = uuid.New()
		}
		engagement.Status = models.EngagementStatusActive
		engagement.OpenedAt = time.Now()
	}
	return args.Error(0)
}

func (m *MockEngagementRepository) CloseEngagement(ctx context.Context, id uuid.UUID, status models.EngagementStatus, actor *models.Actor) (*models.Engagement, bool, error) {
	args := m.Called(ctx, id, status, actor)
	if args.Get(0) == nil {
		return nil, false, args.Error(2)
	}
	return args.Get(0).(*models.Engagement), args.Bool(1), args.Error(2)
}

func (m *MockEngagementRepository) GetEngagementByID(ctx context.Context, id uuid.UUID) (*models.Engagement, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Engagement), args.Error(1)
}

func (m *MockEngagementRepository) IsCardFree(ctx context.Context, cardID, targetID uuid.UUID) (bool, error) {
	args := m.Called(ctx, cardID, targetID)
	return args.Bool(0), args.Error(1)
}

// MockOrgRepository is a mock implementation of OrgRepositoryInterface
type MockOrgRepository struct {
	mock.Mock
}

var _ repository.OrgRepositoryInterface = (*MockOrgRepository)(nil)

func (m *MockOrgRepository) CreateInstitution(ctx context.Context, institution *models.Institution) error {
	args := m.Called(ctx, institution)
	return args.Error(0)
}

func (m *MockOrgRepository) GetInstitutionByID(ctx context.Context, id uuid.UUID) (*models.Institution, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Institution), args.Error(1)
}

func (m *MockOrgRepository) CreateAccount(ctx context.Context, account *models.Account) error {
	args := m.Called(ctx, account)
	return args.Error(0)
}

func (m *MockOrgRepository) GetAccountByID(ctx context.Context, id uuid.UUID) (*models.Account, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Account), args.Error(1)
}

func (m *MockOrgRepository) CreateTarget(ctx context.Context, target *models.Target) error {
	args := m.Called(ctx, target)
	return args.Error(0)
}

func (m *MockOrgRepository) GetTargetByID(ctx context.Context, id uuid.UUID) (*models.Target, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Target), args.Error(1)
}

// MockActorRepository is a mock implementation of ActorRepositoryInterface
type MockActorRepository struct {
	mock.Mock
}

var _ repository.ActorRepositoryInterface = (*MockActorRepository)(nil)

func (m *MockActorRepository) CreateActor(ctx context.Context, actor *models.Actor) error {
	args := m.Called(ctx, actor)
	return args.Error(0)
}

func (m *MockActorRepository) GetActorByID(ctx context.Context, id uuid.UUID) (*models.Actor, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Actor), args.Error(1)
}

func (m *MockActorRepository) GetActorByEmail(ctx context.Context, email string) (*models.Actor, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Actor), args.Error(1)
}

func (m *MockActorRepository) UpdateActorStatus(ctx context.Context, id uuid.UUID, status models.ActorStatus) error {
	args := m.Called(ctx, id, status)
	return args.Error(0)
}

func (m *MockActorRepository) ListWorkersOfSupervisor(ctx context.Context, supervisorID uuid.UUID) ([]models.Actor, error) {
	args := m.Called(ctx, supervisorID)
	return args.Get(0).([]models.Actor), args.Error(1)
}

// MockActorStore backs the chain validator in service tests
type MockActorStore struct {
	mock.Mock
}

func (m *MockActorStore) GetActorByID(ctx context.Context, id uuid.UUID) (*models.Actor, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Actor), args.Error(1)
}

// MockGrantStore backs the chain validator in service tests
type MockGrantStore struct {
	mock.Mock
}

func (m *MockGrantStore) HasActiveInstitutionGrant(ctx context.Context, supervisorID, institutionID uuid.UUID) (bool, error) {
	args := m.Called(ctx, supervisorID, institutionID)
	return args.Bool(0), args.Error(1)
}

func (m *MockGrantStore) HasActiveTargetGrant(ctx context.Context, supervisorID, targetID uuid.UUID) (bool, error) {
	args := m.Called(ctx, supervisorID, targetID)
	return args.Bool(0), args.Error(1)
}

// MockWithdrawalRepository is a mock implementation of WithdrawalRepositoryInterface
type MockWithdrawalRepository struct {
	mock.Mock
}

var _ repository.WithdrawalRepositoryInterface = (*MockWithdrawalRepository)(nil)

func (m *MockWithdrawalRepository) CreateWithdrawal(ctx context.Context, withdrawal *models.WithdrawalRequest) error {
	args := m.Called(ctx, withdrawal)
	if args.Error(0) == nil && withdrawal.ID == uuid.Nil {
		withdrawal.ID = uuid.New()
	}
	return args.Error(0)
}

func (m *MockWithdrawalRepository) GetWithdrawalByID(ctx context.Context, id uuid.UUID) (*models.WithdrawalRequest, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.WithdrawalRequest), args.Error(1)
}

func (m *MockWithdrawalRepository) SetAnnotation(ctx context.Context, id uuid.UUID, role models.ReviewerRole, reviewer *models.Actor, comment, action string) (*models.WithdrawalRequest, error) {
	args := m.Called(ctx, id, role, reviewer, comment, action)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.WithdrawalRequest), args.Error(1)
}

func (m *MockWithdrawalRepository) BlockWithdrawal(ctx context.Context, id uuid.UUID, blockedBy *models.Actor, comment string) (*models.WithdrawalRequest, error) {
	args := m.Called(ctx, id, blockedBy, comment)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.WithdrawalRequest), args.Error(1)
}

func (m *MockWithdrawalRepository) UnblockWithdrawal(ctx context.Context, id uuid.UUID, actor *models.Actor) (*models.WithdrawalRequest, error) {
	args := m.Called(ctx, id, actor)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.WithdrawalRequest), args.Error(1)
}

func (m *MockWithdrawalRepository) ListWithdrawals(ctx context.Context, status models.WithdrawalStatus, limit, offset int) ([]models.WithdrawalRequest, int64, error) {
	args := m.Called(ctx, status, limit, offset)
	return args.Get(0).([]models.WithdrawalRequest), args.Get(1).(int64), args.Error(2)
}

// MockAuditRepository is a mock implementation of AuditRepositoryInterface
type MockAuditRepository struct {
	mock.Mock
}

var _ repository.AuditRepositoryInterface = (*MockAuditRepository)(nil)

func (m *MockAuditRepository) AppendRevealAudit(ctx context.Context, entry *models.RevealAudit) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

func (m *MockAuditRepository) ListRevealAuditByCard(ctx context.Context, cardID uuid.UUID, limit, offset int) ([]models.RevealAudit, int64, error) {
	args := m.Called(ctx, cardID, limit, offset)
	return args.Get(0).([]models.RevealAudit), args.Get(1).(int64), args.Error(2)
}

func (m *MockAuditRepository) ListRevealAuditByRequester(ctx context.Context, requesterID uuid.UUID, limit, offset int) ([]models.RevealAudit, int64, error) {
	args := m.Called(ctx, requesterID, limit, offset)
	return args.Get(0).([]models.RevealAudit), args.Get(1).(int64), args.Error(2)
}

// MockRevealStore is a mock implementation of cache.RevealStore
type MockRevealStore struct {
	mock.Mock
}

var _ cache.RevealStore = (*MockRevealStore)(nil)

func (m *MockRevealStore) BeginReveal(ctx context.Context, cardID, requesterID uuid.UUID, ttl time.Duration) (bool, error) {
	args := m.Called(ctx, cardID, requesterID, ttl)
	return args.Bool(0), args.Error(1)
}

func (m *MockRevealStore) ActiveReveal(ctx context.Context, cardID uuid.UUID) (bool, error) {
	args := m.Called(ctx, cardID)
	return args.Bool(0), args.Error(1)
}

func (m *MockRevealStore) RecordPINFailure(ctx context.Context, requesterID uuid.UUID) (int64, error) {
	args := m.Called(ctx, requesterID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockRevealStore) ClearPINFailures(ctx context.Context, requesterID uuid.UUID) error {
	args := m.Called(ctx, requesterID)
	return args.Error(0)
}

func (m *MockRevealStore) PINLockRemaining(ctx context.Context, requesterID uuid.UUID) (time.Duration, error) {
	args := m.Called(ctx, requesterID)
	return args.Get(0).(time.Duration), args.Error(1)
}

// testVault builds a vault with a fixed 32-byte key
func testVault(t *testing.T) *vault.Vault {
	t.Helper()
	key := base64.StdEncoding.EncodeToString(bytes.Repeat([]byte{0x42}, 32))
	v, err := vault.New(vault.Config{MasterKey: key, KeyVersion: "v1"})
	if err != nil {
		t.Fatalf("failed to build test vault: %v", err)
	}
	return v
}

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return logger
}
