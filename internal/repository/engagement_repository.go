package repository

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"card-custody-service/internal/models"
)

// EngagementRepositoryInterface defines engagement persistence operations
type EngagementRepositoryInterface interface {
	OpenEngagement(ctx context.Context, engagement *models.Engagement) error
	CloseEngagement(ctx context.Context, id uuid.UUID, status models.EngagementStatus, actor *models.Actor) (*models.Engagement, bool, error)
	GetEngagementByID(ctx context.Context, id uuid.UUID) (*models.Engagement, error)
	IsCardFree(ctx context.Context, cardID, targetID uuid.UUID) (bool, error)
}

// EngagementRepository handles database operations for engagements. The
// use-conflict check and the engagement insert are always evaluated in one
// transaction while the card row is locked, so two concurrent opens for the
// same (card, target) cannot both observe "free".
type EngagementRepository struct {
	db *gorm.DB
}

var _ EngagementRepositoryInterface = (*EngagementRepository)(nil)

// NewEngagementRepository creates a new EngagementRepository
func NewEngagementRepository(db *gorm.DB) *EngagementRepository {
	return &EngagementRepository{db: db}
}

// cardFreeForTarget is the use-conflict detector. A card is free for a
// target only if no engagement on the pair is active AND no engagement on
// the pair has a withdrawal still in flight. The coarse card status is
// eventually consistent; this check against in-flight records is the
// authoritative gate and must run inside the caller's transaction.
func cardFreeForTarget(tx *gorm.DB, cardID, targetID uuid.UUID) (bool, error) {
	var activeCount int64
	err := tx.Model(&models.Engagement{}).
		Where("card_id = ? AND target_id = ? AND status = ?",
			cardID, targetID, models.EngagementStatusActive).
		Count(&activeCount).Error
	if err != nil {
		return false, err
	}
	if activeCount > 0 {
		return false, nil
	}

	var inFlightCount int64
	err = tx.Model(&models.WithdrawalRequest{}).
		Joins("JOIN engagements ON engagements.id = withdrawal_requests.engagement_id").
		Where("engagements.card_id = ? AND engagements.target_id = ? AND withdrawal_requests.status IN ?",
			cardID, targetID, models.InFlightWithdrawalStatuses).
		Count(&inFlightCount).Error
	if err != nil {
		return false, err
	}

	return inFlightCount == 0, nil
}

// IsCardFree runs the conflict check outside a card lock. Useful for form
// preloading; allocation always re-checks under the lock.
func (r *EngagementRepository) IsCardFree(ctx context.Context, cardID, targetID uuid.UUID) (bool, error) {
	return cardFreeForTarget(r.db.WithContext(ctx), cardID, targetID)
}

// OpenEngagement atomically verifies the card is usable and free for the
// target, inserts the engagement and moves the card to active. Any guard
// failure rolls back the whole attempt; no partial state survives.
func (r *EngagementRepository) OpenEngagement(ctx context.Context, engagement *models.Engagement) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var card models.Card
		if err := tx.Where("id = ?", engagement.CardID).
			Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&card).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}

		if card.Status != models.CardStatusExpired && card.IsExpired(time.Now()) {
			card.Status = models.CardStatusExpired
			if err := tx.Model(&card).Update("status", models.CardStatusExpired).Error; err != nil {
				return err
			}
		}

		if !card.IsUsable() {
			return &models.TransitionError{
				CardID:    card.ID,
				Current:   card.Status,
				Attempted: models.CardStatusActive,
			}
		}

		free, err := cardFreeForTarget(tx, engagement.CardID, engagement.TargetID)
		if err != nil {
			return err
		}
		if !free {
			return ErrCardNotFree
		}

		engagement.Status = models.EngagementStatusActive
		engagement.OpenedAt = time.Now()
		if err := tx.Create(engagement).Error; err != nil {
			return err
		}

		previous := card.Status
		if err := card.Transition(models.CardStatusActive); err != nil {
			return err
		}
		if err := tx.Model(&models.Card{}).Where("id = ?", card.ID).
			Updates(map[string]interface{}{
				"status":     card.Status,
				"updated_at": time.Now(),
			}).Error; err != nil {
			return err
		}

		return appendEngagementAudit(tx, engagement, models.AuditEventEngagementOpened, string(previous))
	})
}

// CloseEngagement settles an engagement as completed or errored. Idempotent:
// a second call on a settled engagement returns it unchanged with changed =
// false and no side effects. The card only reverts once no other in-flight
// engagement references it; cards may legitimately serve other targets in
// the interim.
func (r *EngagementRepository) CloseEngagement(ctx context.Context, id uuid.UUID, status models.EngagementStatus, actor *models.Actor) (*models.Engagement, bool, error) {
	var engagement models.Engagement
	changed := false

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("id = ?", id).
			Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&engagement).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}

		if engagement.IsSettled() {
			return nil
		}

		now := time.Now()
		engagement.Status = status
		engagement.ClosedAt = &now
		if err := tx.Model(&models.Engagement{}).Where("id = ?", id).
			Updates(map[string]interface{}{
				"status":     status,
				"closed_at":  now,
				"updated_at": now,
			}).Error; err != nil {
			return err
		}

		var card models.Card
		if err := tx.Where("id = ?", engagement.CardID).
			Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&card).Error; err != nil {
			return err
		}

		// Re-check in-flight use before reverting the card: other
		// engagements may have been opened against different targets
		var remaining int64
		if err := tx.Model(&models.Engagement{}).
			Where("card_id = ? AND status = ? AND id != ?",
				engagement.CardID, models.EngagementStatusActive, id).
			Count(&remaining).Error; err != nil {
			return err
		}

		if remaining == 0 && card.Status == models.CardStatusActive {
			next := models.CardStatusAvailable
			if card.AssignedTo != nil {
				next = models.CardStatusAssigned
			}
			if err := card.Transition(next); err != nil {
				return err
			}
			if err := tx.Model(&models.Card{}).Where("id = ?", card.ID).
				Updates(map[string]interface{}{
					"status":     card.Status,
					"updated_at": now,
				}).Error; err != nil {
				return err
			}
		}

		changed = true
		return appendEngagementAudit(tx, &engagement, models.AuditEventEngagementClosed, string(status))
	})
	if err != nil {
		return nil, false, err
	}

	return &engagement, changed, nil
}

// GetEngagementByID retrieves an engagement with its relations
func (r *EngagementRepository) GetEngagementByID(ctx context.Context, id uuid.UUID) (*models.Engagement, error) {
	var engagement models.Engagement
	err := r.db.WithContext(ctx).
		Preload("Card").
		Preload("Target").
		Preload("Withdrawals").
		Where("id = ?", id).
		First(&engagement).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &engagement, nil
}

// appendEngagementAudit writes a custody audit row inside the transaction
func appendEngagementAudit(tx *gorm.DB, engagement *models.Engagement, eventType, detail string) error {
	newJSON, _ := json.Marshal(map[string]string{
		"status": string(engagement.Status),
		"detail": detail,
	})
	entry := &models.CustodyAuditLog{
		EntityType: "engagement",
		EntityID:   engagement.ID,
		EventType:  eventType,
		ActorID:    &engagement.WorkerID,
		NewState:   datatypes.JSON(newJSON),
	}
	return tx.Create(entry).Error
}
