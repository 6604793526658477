package services

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"card-custody-service/internal/models"
	"card-custody-service/internal/repository"
)

type withdrawalFixture struct {
	withdrawals *MockWithdrawalRepository
	engagements *MockEngagementRepository
	service     *WithdrawalService

	worker  *models.Actor
	manager *models.Actor
	hr      *models.Actor
	finance *models.Actor
}

func newWithdrawalFixture() *withdrawalFixture {
	f := &withdrawalFixture{
		withdrawals: new(MockWithdrawalRepository),
		engagements: new(MockEngagementRepository),
	}
	f.service = NewWithdrawalService(f.withdrawals, f.engagements, nil, testLogger())

	f.worker = &models.Actor{ID: uuid.New(), Role: models.RoleWorker, Status: models.ActorStatusActive}
	f.manager = &models.Actor{ID: uuid.New(), Role: models.RoleManager, Status: models.ActorStatusActive}
	f.hr = &models.Actor{ID: uuid.New(), Role: models.RoleHR, Status: models.ActorStatusActive}
	f.finance = &models.Actor{ID: uuid.New(), Role: models.RoleFinance, Status: models.ActorStatusActive}

	return f
}

func TestCreateWithdrawal_Success(t *testing.T) {
	f := newWithdrawalFixture()
	engagement := &models.Engagement{ID: uuid.New(), CurrencyCode: "EUR"}

	f.engagements.On("GetEngagementByID", mock.Anything, engagement.ID).Return(engagement, nil)
	f.withdrawals.On("CreateWithdrawal", mock.Anything, mock.AnythingOfType("*models.WithdrawalRequest")).Return(nil)

	withdrawal, err := f.service.CreateWithdrawal(context.Background(), &models.CreateWithdrawalRequest{
		EngagementID: engagement.ID,
		Amount:       120.50,
	}, f.worker)

	assert.NoError(t, err)
	assert.Equal(t, models.WithdrawalStatusPending, withdrawal.Status)
	assert.Equal(t, "EUR", withdrawal.CurrencyCode, "currency defaults to the engagement's")
}

func TestCreateWithdrawal_EngagementMissing(t *testing.T) {
	f := newWithdrawalFixture()
	id := uuid.New()

	f.engagements.On("GetEngagementByID", mock.Anything, id).Return(nil, repository.ErrNotFound)

	_, err := f.service.CreateWithdrawal(context.Background(), &models.CreateWithdrawalRequest{
		EngagementID: id,
		Amount:       100,
	}, f.worker)

	assert.ErrorIs(t, err, ErrEngagementNotFound)
}

func TestAnnotate_SetsReviewerSlot(t *testing.T) {
	f := newWithdrawalFixture()
	id := uuid.New()
	comment := "looks legitimate"
	annotated := &models.WithdrawalRequest{ID: id, Status: models.WithdrawalStatusPending, HRComment: &comment}

	f.withdrawals.On("SetAnnotation", mock.Anything, id, models.ReviewerRoleHR, f.hr, comment, models.ReviewActionComment).
		Return(annotated, nil)

	withdrawal, err := f.service.Annotate(context.Background(), id, models.ReviewerRoleHR, f.hr, &models.AnnotateWithdrawalRequest{
		Comment: comment,
		Action:  models.ReviewActionComment,
	})

	assert.NoError(t, err)
	assert.Equal(t, &comment, withdrawal.HRComment)
}

// Annotation slots are write-once: a second write to the same slot fails
// without touching the earlier reviewer's text.
func TestAnnotate_SlotAlreadyWritten(t *testing.T) {
	f := newWithdrawalFixture()
	id := uuid.New()

	f.withdrawals.On("SetAnnotation", mock.Anything, id, models.ReviewerRoleManager, f.manager, "second opinion", models.ReviewActionComment).
		Return(nil, repository.ErrAlreadyAnnotated)

	_, err := f.service.Annotate(context.Background(), id, models.ReviewerRoleManager, f.manager, &models.AnnotateWithdrawalRequest{
		Comment: "second opinion",
		Action:  models.ReviewActionComment,
	})

	assert.Equal(t, KindConflict, KindOf(err))
	assert.Equal(t, CodeAnnotationExists, CodeOf(err))
}

func TestAnnotate_BlockedRejectsEverything(t *testing.T) {
	f := newWithdrawalFixture()
	id := uuid.New()

	f.withdrawals.On("SetAnnotation", mock.Anything, id, models.ReviewerRoleHR, f.hr, "late note", models.ReviewActionComment).
		Return(nil, repository.ErrWithdrawalBlocked)

	_, err := f.service.Annotate(context.Background(), id, models.ReviewerRoleHR, f.hr, &models.AnnotateWithdrawalRequest{
		Comment: "late note",
		Action:  models.ReviewActionComment,
	})

	assert.Equal(t, KindConflict, KindOf(err))
	assert.Equal(t, CodeWithdrawalBlocked, CodeOf(err))
}

func TestAnnotate_BlockRoutedToFinanceOnly(t *testing.T) {
	f := newWithdrawalFixture()
	id := uuid.New()

	_, err := f.service.Annotate(context.Background(), id, models.ReviewerRoleManager, f.manager, &models.AnnotateWithdrawalRequest{
		Comment: "suspicious",
		Action:  models.ReviewActionBlock,
	})

	assert.Equal(t, KindAuthorization, KindOf(err))
	f.withdrawals.AssertNotCalled(t, "BlockWithdrawal", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestAnnotate_FinanceBlockFreezes(t *testing.T) {
	f := newWithdrawalFixture()
	id := uuid.New()
	blocked := &models.WithdrawalRequest{ID: id, Status: models.WithdrawalStatusBlocked}

	f.withdrawals.On("BlockWithdrawal", mock.Anything, id, f.finance, "fraud pattern").Return(blocked, nil)

	withdrawal, err := f.service.Annotate(context.Background(), id, models.ReviewerRoleFinance, f.finance, &models.AnnotateWithdrawalRequest{
		Comment: "fraud pattern",
		Action:  models.ReviewActionBlock,
	})

	assert.NoError(t, err)
	assert.Equal(t, models.WithdrawalStatusBlocked, withdrawal.Status)
}

func TestBlock_AlreadyBlocked(t *testing.T) {
	f := newWithdrawalFixture()
	id := uuid.New()

	f.withdrawals.On("BlockWithdrawal", mock.Anything, id, f.finance, "").Return(nil, repository.ErrWithdrawalBlocked)

	_, err := f.service.Block(context.Background(), id, f.finance, "")

	assert.Equal(t, KindConflict, KindOf(err))
	assert.Equal(t, CodeWithdrawalBlocked, CodeOf(err))
}

func TestUnblock_RestoresPending(t *testing.T) {
	f := newWithdrawalFixture()
	id := uuid.New()
	restored := &models.WithdrawalRequest{ID: id, Status: models.WithdrawalStatusPending}

	f.withdrawals.On("UnblockWithdrawal", mock.Anything, id, f.finance).Return(restored, nil)

	withdrawal, err := f.service.Unblock(context.Background(), id, f.finance)

	assert.NoError(t, err)
	assert.Equal(t, models.WithdrawalStatusPending, withdrawal.Status)
}

func TestUnblock_NotBlockedIsConflict(t *testing.T) {
	f := newWithdrawalFixture()
	id := uuid.New()

	f.withdrawals.On("UnblockWithdrawal", mock.Anything, id, f.finance).
		Return(nil, repository.ErrWithdrawalNotBlocked)

	_, err := f.service.Unblock(context.Background(), id, f.finance)

	assert.Equal(t, KindConflict, KindOf(err))
	assert.Equal(t, CodeWithdrawalNotBlocked, CodeOf(err))
	assert.NotErrorIs(t, err, ErrWithdrawalNotFound)
}

func TestListWithdrawals_ClampsPagination(t *testing.T) {
	f := newWithdrawalFixture()

	f.withdrawals.On("ListWithdrawals", mock.Anything, models.WithdrawalStatusPending, 20, 0).
		Return([]models.WithdrawalRequest{}, int64(0), nil)

	_, _, err := f.service.ListWithdrawals(context.Background(), models.WithdrawalStatusPending, 0, 500)

	assert.NoError(t, err)
	f.withdrawals.AssertExpectations(t)
}
