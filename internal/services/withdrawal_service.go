package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"card-custody-service/internal/events"
	"card-custody-service/internal/models"
	"card-custody-service/internal/repository"
)

// ErrWithdrawalNotFound is returned when a withdrawal request doesn't exist
var ErrWithdrawalNotFound = errors.New("withdrawal request not found")

// WithdrawalService runs the three-role review pipeline. Reviewer
// annotations are independent and order-free; the only cross-cutting rule
// is that a finance block freezes the request against everything except an
// explicit finance unblock.
type WithdrawalService struct {
	withdrawals repository.WithdrawalRepositoryInterface
	engagements repository.EngagementRepositoryInterface
	publisher   *events.Publisher
	logger      *logrus.Entry
}

// NewWithdrawalService creates a new WithdrawalService
func NewWithdrawalService(
	withdrawals repository.WithdrawalRepositoryInterface,
	engagements repository.EngagementRepositoryInterface,
	publisher *events.Publisher,
	logger *logrus.Logger,
) *WithdrawalService {
	return &WithdrawalService{
		withdrawals: withdrawals,
		engagements: engagements,
		publisher:   publisher,
		logger:      logger.WithField("component", "services.withdrawal"),
	}
}

// CreateWithdrawal registers a withdrawal produced by an engagement and
// drops it into the review pipeline as pending.
func (s *WithdrawalService) CreateWithdrawal(ctx context.Context, req *models.CreateWithdrawalRequest, actor *models.Actor) (*models.WithdrawalRequest, error) {
	if req.Amount <= 0 {
		return nil, NewValidationError(CodeAmountInvalid, "amount must be positive")
	}

	engagement, err := s.engagements.GetEngagementByID(ctx, req.EngagementID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrEngagementNotFound
		}
		return nil, err
	}

	currency := req.CurrencyCode
	if currency == "" {
		currency = engagement.CurrencyCode
	}

	withdrawal := &models.WithdrawalRequest{
		EngagementID: engagement.ID,
		Amount:       req.Amount,
		CurrencyCode: currency,
		Status:       models.WithdrawalStatusPending,
	}
	if err := s.withdrawals.CreateWithdrawal(ctx, withdrawal); err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"withdrawalId": withdrawal.ID,
		"engagementId": engagement.ID,
		"amount":       withdrawal.Amount,
		"createdBy":    actor.ID,
	}).Info("Withdrawal request created")

	return withdrawal, nil
}

// Annotate attaches a reviewer's comment to their slot, optionally moving
// the status. A block action is routed to the freeze path and is reserved
// to finance reviewers.
func (s *WithdrawalService) Annotate(ctx context.Context, id uuid.UUID, role models.ReviewerRole, reviewer *models.Actor, req *models.AnnotateWithdrawalRequest) (*models.WithdrawalRequest, error) {
	if req.Action == models.ReviewActionBlock {
		if role != models.ReviewerRoleFinance {
			return nil, NewAuthorizationError(CodeWithdrawalBlocked,
				"only finance reviewers can block a withdrawal")
		}
		return s.Block(ctx, id, reviewer, req.Comment)
	}

	withdrawal, err := s.withdrawals.SetAnnotation(ctx, id, role, reviewer, req.Comment, req.Action)
	if err != nil {
		return nil, s.mapAnnotationErr(err, role)
	}

	s.logger.WithFields(logrus.Fields{
		"withdrawalId": id,
		"role":         role,
		"reviewerId":   reviewer.ID,
		"action":       req.Action,
	}).Info("Withdrawal annotated")

	return withdrawal, nil
}

// Block freezes a withdrawal. Valid from any non-terminal status and
// overrides earlier approve or reject decisions.
func (s *WithdrawalService) Block(ctx context.Context, id uuid.UUID, reviewer *models.Actor, comment string) (*models.WithdrawalRequest, error) {
	withdrawal, err := s.withdrawals.BlockWithdrawal(ctx, id, reviewer, comment)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrWithdrawalNotFound
		}
		if errors.Is(err, repository.ErrWithdrawalBlocked) {
			return nil, NewConflictError(CodeWithdrawalBlocked, "withdrawal is already blocked")
		}
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"withdrawalId": id,
		"blockedBy":    reviewer.ID,
	}).Warn("Withdrawal blocked")

	s.publisher.Publish(events.SubjectWithdrawalBlocked, id, &reviewer.ID, map[string]interface{}{
		"engagementId": withdrawal.EngagementID,
		"amount":       withdrawal.Amount,
	})

	return withdrawal, nil
}

// Unblock lifts a finance block, restoring the request to pending
func (s *WithdrawalService) Unblock(ctx context.Context, id uuid.UUID, reviewer *models.Actor) (*models.WithdrawalRequest, error) {
	withdrawal, err := s.withdrawals.UnblockWithdrawal(ctx, id, reviewer)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrNotFound):
			return nil, ErrWithdrawalNotFound
		case errors.Is(err, repository.ErrWithdrawalNotBlocked):
			return nil, NewConflictError(CodeWithdrawalNotBlocked, "withdrawal request is not blocked")
		}
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"withdrawalId": id,
		"unblockedBy":  reviewer.ID,
	}).Info("Withdrawal unblocked")

	return withdrawal, nil
}

// GetWithdrawal retrieves a withdrawal request
func (s *WithdrawalService) GetWithdrawal(ctx context.Context, id uuid.UUID) (*models.WithdrawalRequest, error) {
	withdrawal, err := s.withdrawals.GetWithdrawalByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrWithdrawalNotFound
		}
		return nil, err
	}
	return withdrawal, nil
}

// ListWithdrawals retrieves withdrawal requests, optionally by status
func (s *WithdrawalService) ListWithdrawals(ctx context.Context, status models.WithdrawalStatus, page, limit int) ([]models.WithdrawalRequest, int64, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}
	return s.withdrawals.ListWithdrawals(ctx, status, limit, (page-1)*limit)
}

func (s *WithdrawalService) mapAnnotationErr(err error, role models.ReviewerRole) error {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return ErrWithdrawalNotFound
	case errors.Is(err, repository.ErrAlreadyAnnotated):
		return NewConflictError(CodeAnnotationExists,
			fmt.Sprintf("a %s annotation already exists on this withdrawal", role))
	case errors.Is(err, repository.ErrWithdrawalBlocked):
		return NewConflictError(CodeWithdrawalBlocked, "withdrawal is blocked")
	default:
		return err
	}
}
