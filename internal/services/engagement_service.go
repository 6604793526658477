package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"card-custody-service/internal/authz"
	"card-custody-service/internal/events"
	"card-custody-service/internal/models"
	"card-custody-service/internal/repository"
	"card-custody-service/internal/vault"
)

// maxStoreRetries bounds retries on transient transaction-conflict errors.
// Guard failures are surfaced immediately, never retried.
const maxStoreRetries = 2

var ErrEngagementNotFound = errors.New("engagement not found")

// EngagementService orchestrates the allocation of a card to a worker for a
// target: authorization chain, card lifecycle and use-conflict detection are
// evaluated as one atomic unit per attempt.
type EngagementService struct {
	engagements repository.EngagementRepositoryInterface
	cards       repository.CardRepositoryInterface
	org         repository.OrgRepositoryInterface
	validator   *authz.Validator
	vault       *vault.Vault
	publisher   *events.Publisher
	logger      *logrus.Entry
}

// NewEngagementService creates a new EngagementService
func NewEngagementService(
	engagements repository.EngagementRepositoryInterface,
	cards repository.CardRepositoryInterface,
	org repository.OrgRepositoryInterface,
	validator *authz.Validator,
	cardVault *vault.Vault,
	publisher *events.Publisher,
	logger *logrus.Logger,
) *EngagementService {
	return &EngagementService{
		engagements: engagements,
		cards:       cards,
		org:         org,
		validator:   validator,
		vault:       cardVault,
		publisher:   publisher,
		logger:      logger.WithField("component", "services.engagement"),
	}
}

// OpenEngagement creates a new engagement binding {worker, card, target,
// amount}. The grant chain is re-validated at this moment, not taken from
// any cache: grants can be revoked between form load and submit.
func (s *EngagementService) OpenEngagement(ctx context.Context, requester *models.Actor, req models.OpenEngagementRequest) (*models.Engagement, error) {
	if req.Amount <= 0 {
		return nil, NewValidationError(CodeAmountInvalid, "amount must be greater than zero")
	}

	card, err := s.cards.GetCardByID(ctx, req.CardID)
	if err != nil {
		return nil, err
	}

	account, err := s.org.GetAccountByID(ctx, card.AccountID)
	if err != nil {
		return nil, err
	}

	target, err := s.org.GetTargetByID(ctx, req.TargetID)
	if err != nil {
		return nil, err
	}
	if !target.IsActive {
		return nil, NewValidationError(CodeTargetInactive, "target site is not active")
	}

	if !requester.IsAdminLevel() {
		if requester.SupervisorID == nil {
			return nil, NewAuthorizationError(authz.ReasonNotSupervised, "worker has no supervisor")
		}
		decision, err := s.validator.CheckGrant(ctx, requester.ID, *requester.SupervisorID, account.InstitutionID, req.TargetID)
		if err != nil {
			return nil, err
		}
		if !decision.OK {
			return nil, NewAuthorizationError(decision.Reason, "authorization chain check failed")
		}
	}

	engagement := &models.Engagement{
		WorkerID:     requester.ID,
		CardID:       req.CardID,
		TargetID:     req.TargetID,
		Amount:       req.Amount,
		CurrencyCode: req.CurrencyCode,
	}

	if req.Credentials != nil && *req.Credentials != "" {
		enc, err := s.vault.Encrypt(*req.Credentials)
		if err != nil {
			return nil, fmt.Errorf("failed to encrypt target credentials: %w", err)
		}
		engagement.CredentialEnc = enc
	}

	if err := s.openWithRetry(ctx, engagement); err != nil {
		return nil, err
	}

	s.publisher.Publish(events.SubjectEngagementOpened, engagement.ID, &requester.ID, map[string]interface{}{
		"cardId":   engagement.CardID.String(),
		"targetId": engagement.TargetID.String(),
		"amount":   engagement.Amount,
		"currency": engagement.CurrencyCode,
	})

	return engagement, nil
}

// openWithRetry retries the atomic open only on transient store contention
func (s *EngagementService) openWithRetry(ctx context.Context, engagement *models.Engagement) error {
	var lastErr error
	for attempt := 0; attempt <= maxStoreRetries; attempt++ {
		err := s.engagements.OpenEngagement(ctx, engagement)
		if err == nil {
			return nil
		}

		var transitionErr *models.TransitionError
		switch {
		case errors.Is(err, repository.ErrCardNotFree):
			return NewConflictError(CodeCardNotFree, "card already engaged against this target")
		case errors.As(err, &transitionErr):
			return NewConflictError(CodeInvalidTransition,
				fmt.Sprintf("card cannot move from %s to %s", transitionErr.Current, transitionErr.Attempted))
		case errors.Is(err, repository.ErrNotFound):
			return err
		case repository.IsTransient(err):
			lastErr = err
			s.logger.WithError(err).WithField("attempt", attempt+1).Warn("Transient store error opening engagement, retrying")
			continue
		default:
			return err
		}
	}
	return NewTransientStoreError(lastErr)
}

// CompleteEngagement settles an engagement successfully. Idempotent: a
// second call returns the already-completed state without side effects.
func (s *EngagementService) CompleteEngagement(ctx context.Context, requester *models.Actor, id uuid.UUID) (*models.Engagement, error) {
	return s.closeEngagement(ctx, requester, id, models.EngagementStatusCompleted, events.SubjectEngagementCompleted)
}

// FailEngagement settles an engagement as errored
func (s *EngagementService) FailEngagement(ctx context.Context, requester *models.Actor, id uuid.UUID) (*models.Engagement, error) {
	return s.closeEngagement(ctx, requester, id, models.EngagementStatusError, events.SubjectEngagementFailed)
}

func (s *EngagementService) closeEngagement(ctx context.Context, requester *models.Actor, id uuid.UUID, status models.EngagementStatus, subject string) (*models.Engagement, error) {
	engagement, changed, err := s.engagements.CloseEngagement(ctx, id, status, requester)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrEngagementNotFound
		}
		return nil, err
	}

	if changed {
		s.publisher.Publish(subject, engagement.ID, &requester.ID, map[string]interface{}{
			"cardId":   engagement.CardID.String(),
			"targetId": engagement.TargetID.String(),
			"status":   string(engagement.Status),
		})
	}

	return engagement, nil
}

// GetEngagement retrieves an engagement by ID
func (s *EngagementService) GetEngagement(ctx context.Context, id uuid.UUID) (*models.Engagement, error) {
	engagement, err := s.engagements.GetEngagementByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrEngagementNotFound
		}
		return nil, err
	}
	return engagement, nil
}

// IsCardFree exposes the use-conflict detector for form preloading. The
// allocator always re-checks under the card lock; this is advisory.
func (s *EngagementService) IsCardFree(ctx context.Context, cardID, targetID uuid.UUID) (bool, error) {
	return s.engagements.IsCardFree(ctx, cardID, targetID)
}
