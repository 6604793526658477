package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"card-custody-service/internal/authz"
	"card-custody-service/internal/events"
	"card-custody-service/internal/models"
	"card-custody-service/internal/repository"
	"card-custody-service/internal/vault"
)

var ErrCardNotFound = errors.New("card not found")

// CardService owns card creation, assignment and the admin/finance
// block/unblock transitions.
type CardService struct {
	cards     repository.CardRepositoryInterface
	org       repository.OrgRepositoryInterface
	actors    repository.ActorRepositoryInterface
	validator *authz.Validator
	vault     *vault.Vault
	publisher *events.Publisher
	logger    *logrus.Entry
}

// NewCardService creates a new CardService
func NewCardService(
	cards repository.CardRepositoryInterface,
	org repository.OrgRepositoryInterface,
	actors repository.ActorRepositoryInterface,
	validator *authz.Validator,
	cardVault *vault.Vault,
	publisher *events.Publisher,
	logger *logrus.Logger,
) *CardService {
	return &CardService{
		cards:     cards,
		org:       org,
		actors:    actors,
		validator: validator,
		vault:     cardVault,
		publisher: publisher,
		logger:    logger.WithField("component", "services.card"),
	}
}

// CreateCard encrypts the raw payment fields and stores the card in the
// available state. Only the masked number and BIN remain readable.
func (s *CardService) CreateCard(ctx context.Context, creator *models.Actor, req models.CreateCardRequest) (*models.Card, error) {
	if _, err := s.org.GetAccountByID(ctx, req.AccountID); err != nil {
		return nil, err
	}

	panEnc, err := s.vault.Encrypt(req.PAN)
	if err != nil {
		return nil, fmt.Errorf("failed to encrypt PAN: %w", err)
	}
	cvvEnc, err := s.vault.Encrypt(req.CVV)
	if err != nil {
		return nil, fmt.Errorf("failed to encrypt CVV: %w", err)
	}
	expiryEnc, err := s.vault.Encrypt(fmt.Sprintf("%02d/%d", req.ExpMonth, req.ExpYear))
	if err != nil {
		return nil, fmt.Errorf("failed to encrypt expiry: %w", err)
	}

	// Card is usable through the end of its expiry month
	expiresAt := time.Date(req.ExpYear, time.Month(req.ExpMonth), 1, 0, 0, 0, 0, time.UTC).
		AddDate(0, 1, 0).Add(-time.Second)

	creatorName := creator.Email
	card := &models.Card{
		AccountID:    req.AccountID,
		MaskedNumber: maskPAN(req.PAN),
		BIN:          req.PAN[:6],
		CardType:     req.CardType,
		PANEnc:       panEnc,
		CVVEnc:       cvvEnc,
		ExpiryEnc:    expiryEnc,
		DailyLimit:   req.DailyLimit,
		ExpiresAt:    &expiresAt,
		CreatedBy:    &creatorName,
	}

	if err := s.cards.CreateCard(ctx, card); err != nil {
		return nil, err
	}

	return card, nil
}

// maskPAN keeps the last four digits visible
func maskPAN(pan string) string {
	if len(pan) < 4 {
		return "****"
	}
	return "**** **** **** " + pan[len(pan)-4:]
}

// GetCard retrieves a card; expiry is derived lazily in the repository
func (s *CardService) GetCard(ctx context.Context, id uuid.UUID) (*models.Card, error) {
	card, err := s.cards.GetCardByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrCardNotFound
		}
		return nil, err
	}
	return card, nil
}

// ListCards retrieves cards with filters
func (s *CardService) ListCards(ctx context.Context, req *models.SearchCardsRequest) ([]models.Card, int64, error) {
	if req.Page < 1 {
		req.Page = 1
	}
	if req.Limit < 1 || req.Limit > 100 {
		req.Limit = 20
	}
	return s.cards.ListCards(ctx, req)
}

// AssignCard hands a card to a worker for use against a target. Mirrors the
// allocator's checks: supervisor active, worker supervised, both grants
// active, card usable and free for the target.
func (s *CardService) AssignCard(ctx context.Context, supervisor *models.Actor, req models.AssignCardRequest) (*models.Card, error) {
	card, err := s.cards.GetCardByID(ctx, req.CardID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrCardNotFound
		}
		return nil, err
	}

	account, err := s.org.GetAccountByID(ctx, card.AccountID)
	if err != nil {
		return nil, err
	}

	if supervisor.IsAdminLevel() {
		// Admins assign outside the supervision chain, but the worker
		// still has to exist and be active
		worker, err := s.actors.GetActorByID(ctx, req.WorkerID)
		if err != nil {
			return nil, err
		}
		if !worker.IsActive() {
			return nil, NewAuthorizationError(authz.ReasonActorInactive, "worker is not active")
		}
	} else {
		decision, err := s.validator.CheckGrant(ctx, req.WorkerID, supervisor.ID, account.InstitutionID, req.TargetID)
		if err != nil {
			return nil, err
		}
		if !decision.OK {
			return nil, NewAuthorizationError(decision.Reason, "authorization chain check failed")
		}
	}

	if !card.IsUsable() {
		return nil, NewConflictError(CodeInvalidTransition,
			fmt.Sprintf("card in status %s cannot be assigned", card.Status))
	}

	updated, err := s.cards.AssignCard(ctx, req.CardID, req.WorkerID, req.TargetID, supervisor)
	if err != nil {
		var transitionErr *models.TransitionError
		switch {
		case errors.Is(err, repository.ErrCardNotFree):
			return nil, NewConflictError(CodeCardNotFree, "card already assigned against this target")
		case errors.As(err, &transitionErr):
			return nil, NewConflictError(CodeInvalidTransition,
				fmt.Sprintf("card cannot move from %s to %s", transitionErr.Current, transitionErr.Attempted))
		case errors.Is(err, repository.ErrNotFound):
			return nil, ErrCardNotFound
		}
		return nil, err
	}

	s.publisher.Publish(events.SubjectCardAssigned, updated.ID, &supervisor.ID, map[string]interface{}{
		"workerId": req.WorkerID.String(),
		"targetId": req.TargetID.String(),
	})

	return updated, nil
}

// BlockCard freezes a card. Terminal until an explicit unblock.
func (s *CardService) BlockCard(ctx context.Context, actor *models.Actor, cardID uuid.UUID) (*models.Card, error) {
	card, err := s.cards.BlockCard(ctx, cardID, actor)
	if err != nil {
		return nil, mapTransitionErr(err)
	}

	s.publisher.Publish(events.SubjectCardBlocked, card.ID, &actor.ID, map[string]interface{}{
		"status": string(card.Status),
	})

	return card, nil
}

// UnblockCard returns a blocked card to the available pool
func (s *CardService) UnblockCard(ctx context.Context, actor *models.Actor, cardID uuid.UUID) (*models.Card, error) {
	card, err := s.cards.UnblockCard(ctx, cardID, actor)
	if err != nil {
		return nil, mapTransitionErr(err)
	}
	return card, nil
}

func mapTransitionErr(err error) error {
	var transitionErr *models.TransitionError
	switch {
	case errors.As(err, &transitionErr):
		return NewConflictError(CodeInvalidTransition,
			fmt.Sprintf("card cannot move from %s to %s", transitionErr.Current, transitionErr.Attempted))
	case errors.Is(err, repository.ErrNotFound):
		return ErrCardNotFound
	}
	return err
}
