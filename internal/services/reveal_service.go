package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"

	"card-custody-service/internal/cache"
	"card-custody-service/internal/events"
	"card-custody-service/internal/models"
	"card-custody-service/internal/repository"
	"card-custody-service/internal/vault"
)

// DefaultRevealTTL is the disclosure window when not configured
const DefaultRevealTTL = 60 * time.Second

// RevealService gates exposure of a card's raw payment fields behind a
// step-up PIN and a short self-expiring disclosure window. Every attempt,
// granted or denied, lands in the append-only reveal audit.
type RevealService struct {
	cards     repository.CardRepositoryInterface
	audit     repository.AuditRepositoryInterface
	store     cache.RevealStore
	vault     *vault.Vault
	publisher *events.Publisher
	ttl       time.Duration
	logger    *logrus.Entry
}

// NewRevealService creates a new RevealService
func NewRevealService(
	cards repository.CardRepositoryInterface,
	audit repository.AuditRepositoryInterface,
	store cache.RevealStore,
	cardVault *vault.Vault,
	publisher *events.Publisher,
	ttl time.Duration,
	logger *logrus.Logger,
) *RevealService {
	if ttl <= 0 {
		ttl = DefaultRevealTTL
	}
	return &RevealService{
		cards:     cards,
		audit:     audit,
		store:     store,
		vault:     cardVault,
		publisher: publisher,
		ttl:       ttl,
		logger:    logger.WithField("component", "services.reveal"),
	}
}

// Reveal decrypts and returns the card's raw fields once. The PIN is
// verified before the card is even looked up, so a wrong PIN produces the
// same response whether or not the card exists. The TTL is advisory to the
// client display; the server-side control is that the payload is never
// re-served without a fresh successful Reveal.
func (s *RevealService) Reveal(ctx context.Context, requester *models.Actor, cardID uuid.UUID, pin, revealContext, clientIP string) (*models.RevealCardResponse, error) {
	lockRemaining, err := s.store.PINLockRemaining(ctx, requester.ID)
	if err != nil {
		return nil, err
	}
	if lockRemaining > 0 {
		s.appendAudit(ctx, cardID, requester, false, CodeRevealRateLimited, revealContext, clientIP)
		return nil, NewSecretError(CodeRevealRateLimited,
			fmt.Sprintf("too many failed attempts, retry in %d seconds", int(lockRemaining.Seconds())))
	}

	if bcrypt.CompareHashAndPassword([]byte(requester.PINHash), []byte(pin)) != nil {
		count, recErr := s.store.RecordPINFailure(ctx, requester.ID)
		if recErr != nil {
			s.logger.WithError(recErr).Error("Failed to record PIN failure")
		}
		s.appendAudit(ctx, cardID, requester, false, CodeBadPIN, revealContext, clientIP)
		s.logger.WithFields(logrus.Fields{
			"requesterId": requester.ID,
			"failures":    count,
		}).Warn("Reveal denied: PIN verification failed")
		return nil, NewSecretError(CodeBadPIN, "reveal denied")
	}

	if err := s.store.ClearPINFailures(ctx, requester.ID); err != nil {
		s.logger.WithError(err).Warn("Failed to clear PIN failure counter")
	}

	card, err := s.cards.GetCardByID(ctx, cardID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrCardNotFound
		}
		return nil, err
	}

	if !requester.IsAdminLevel() {
		if card.AssignedTo == nil || *card.AssignedTo != requester.ID {
			s.appendAudit(ctx, cardID, requester, false, CodeNotCardHolder, revealContext, clientIP)
			return nil, NewAuthorizationError(CodeNotCardHolder, "card is not assigned to requester")
		}
	}

	if card.Status == models.CardStatusBlocked || card.Status == models.CardStatusExpired {
		s.appendAudit(ctx, cardID, requester, false, CodeCardNotRevealable, revealContext, clientIP)
		return nil, NewConflictError(CodeCardNotRevealable,
			fmt.Sprintf("card in status %s cannot be revealed", card.Status))
	}

	opened, err := s.store.BeginReveal(ctx, cardID, requester.ID, s.ttl)
	if err != nil {
		return nil, err
	}
	if !opened {
		s.appendAudit(ctx, cardID, requester, false, CodeRevealWindowActive, revealContext, clientIP)
		return nil, NewConflictError(CodeRevealWindowActive,
			"a disclosure window is already open for this card")
	}

	payload, err := s.decryptCard(card)
	if err != nil {
		return nil, err
	}

	s.appendAudit(ctx, cardID, requester, true, "", revealContext, clientIP)
	s.publisher.Publish(events.SubjectCardRevealed, cardID, &requester.ID, map[string]interface{}{
		"ttlSeconds": int(s.ttl.Seconds()),
	})

	return &models.RevealCardResponse{
		CardData: *payload,
		TTL:      int(s.ttl.Seconds()),
	}, nil
}

func (s *RevealService) decryptCard(card *models.Card) (*models.CardData, error) {
	pan, err := s.vault.Decrypt(card.PANEnc)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt PAN: %w", err)
	}
	cvv, err := s.vault.Decrypt(card.CVVEnc)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt CVV: %w", err)
	}
	expiry, err := s.vault.Decrypt(card.ExpiryEnc)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt expiry: %w", err)
	}

	month, year, err := parseExpiry(expiry)
	if err != nil {
		return nil, err
	}

	return &models.CardData{
		PAN:      pan,
		CVV:      cvv,
		ExpMonth: month,
		ExpYear:  year,
	}, nil
}

// parseExpiry parses the MM/YYYY format written at card creation
func parseExpiry(expiry string) (int, int, error) {
	parts := strings.SplitN(expiry, "/", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("malformed expiry")
	}
	month, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, 0, fmt.Errorf("malformed expiry month")
	}
	year, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, 0, fmt.Errorf("malformed expiry year")
	}
	return month, year, nil
}

// appendAudit writes the forensic trail entry; audit failures are logged
// but never block the reveal decision that was already made
func (s *RevealService) appendAudit(ctx context.Context, cardID uuid.UUID, requester *models.Actor, success bool, reason, revealContext, clientIP string) {
	entry := &models.RevealAudit{
		CardID:      cardID,
		RequesterID: requester.ID,
		Success:     success,
		Reason:      reason,
		Context:     revealContext,
		ClientIP:    clientIP,
		TTLSeconds:  int(s.ttl.Seconds()),
	}
	if err := s.audit.AppendRevealAudit(ctx, entry); err != nil {
		s.logger.WithError(err).WithField("cardId", cardID).Error("Failed to append reveal audit")
	}
}

// RevealHistory returns the audit trail for a card
func (s *RevealService) RevealHistory(ctx context.Context, cardID uuid.UUID, limit, offset int) ([]models.RevealAudit, int64, error) {
	if limit < 1 || limit > 100 {
		limit = 20
	}
	return s.audit.ListRevealAuditByCard(ctx, cardID, limit, offset)
}

// RevealHistoryByRequester returns every reveal a given actor has attempted,
// across all cards
func (s *RevealService) RevealHistoryByRequester(ctx context.Context, requesterID uuid.UUID, limit, offset int) ([]models.RevealAudit, int64, error) {
	if limit < 1 || limit > 100 {
		limit = 20
	}
	return s.audit.ListRevealAuditByRequester(ctx, requesterID, limit, offset)
}
