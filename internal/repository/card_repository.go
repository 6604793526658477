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

// CardRepositoryInterface defines card persistence operations
type CardRepositoryInterface interface {
	CreateCard(ctx context.Context, card *models.Card) error
	GetCardByID(ctx context.Context, id uuid.UUID) (*models.Card, error)
	ListCards(ctx context.Context, req *models.SearchCardsRequest) ([]models.Card, int64, error)
	AssignCard(ctx context.Context, cardID, workerID, targetID uuid.UUID, assignedBy *models.Actor) (*models.Card, error)
	BlockCard(ctx context.Context, cardID uuid.UUID, actor *models.Actor) (*models.Card, error)
	UnblockCard(ctx context.Context, cardID uuid.UUID, actor *models.Actor) (*models.Card, error)
}

// CardRepository handles database operations for cards
type CardRepository struct {
	db *gorm.DB
}

var _ CardRepositoryInterface = (*CardRepository)(nil)

// NewCardRepository creates a new CardRepository
func NewCardRepository(db *gorm.DB) *CardRepository {
	return &CardRepository{db: db}
}

// CreateCard creates a new card in the available state
func (r *CardRepository) CreateCard(ctx context.Context, card *models.Card) error {
	card.Status = models.CardStatusAvailable
	return r.db.WithContext(ctx).Create(card).Error
}

// GetCardByID retrieves a card. Expiry is derived lazily here: a card whose
// expiry date has passed is flipped to expired in the same read path, so
// callers never observe a usable status on an expired card.
func (r *CardRepository) GetCardByID(ctx context.Context, id uuid.UUID) (*models.Card, error) {
	var card models.Card
	err := r.db.WithContext(ctx).
		Preload("Assignee").
		Where("id = ?", id).
		First(&card).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	if card.Status != models.CardStatusExpired && card.IsExpired(time.Now()) {
		if err := r.db.WithContext(ctx).Model(&models.Card{}).
			Where("id = ?", id).
			Updates(map[string]interface{}{
				"status":     models.CardStatusExpired,
				"updated_at": time.Now(),
			}).Error; err != nil {
			return nil, err
		}
		card.Status = models.CardStatusExpired
	}

	return &card, nil
}

// ListCards retrieves cards with filters and pagination
func (r *CardRepository) ListCards(ctx context.Context, req *models.SearchCardsRequest) ([]models.Card, int64, error) {
	var cards []models.Card
	var total int64

	query := r.db.WithContext(ctx).Model(&models.Card{})

	if len(req.Status) > 0 {
		query = query.Where("status IN ?", req.Status)
	}
	if req.AssignedTo != nil {
		query = query.Where("assigned_to = ?", *req.AssignedTo)
	}
	if req.AccountID != nil {
		query = query.Where("account_id = ?", *req.AccountID)
	}
	if req.BIN != nil && *req.BIN != "" {
		query = query.Where("bin = ?", *req.BIN)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (req.Page - 1) * req.Limit
	if err := query.Order("created_at DESC").Offset(offset).Limit(req.Limit).Find(&cards).Error; err != nil {
		return nil, 0, err
	}

	return cards, total, nil
}

// AssignCard hands a card to a worker's usable pool for a target. The card
// row is locked for the duration of the conflict check so a concurrent
// assignment of the same card cannot also observe it free.
func (r *CardRepository) AssignCard(ctx context.Context, cardID, workerID, targetID uuid.UUID, assignedBy *models.Actor) (*models.Card, error) {
	var card models.Card

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("id = ?", cardID).
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

		// Usability is re-checked under the row lock: a concurrent
		// engagement open may have flipped the card to active (or a
		// block landed) since the caller's unlocked read.
		if !card.IsUsable() {
			return &models.TransitionError{
				CardID:    card.ID,
				Current:   card.Status,
				Attempted: models.CardStatusAssigned,
			}
		}

		free, err := cardFreeForTarget(tx, cardID, targetID)
		if err != nil {
			return err
		}
		if !free {
			return ErrCardNotFree
		}

		previous := card.Status
		if card.Status != models.CardStatusAssigned {
			if err := card.Transition(models.CardStatusAssigned); err != nil {
				return err
			}
		}
		card.AssignedTo = &workerID

		if err := tx.Model(&models.Card{}).Where("id = ?", cardID).
			Updates(map[string]interface{}{
				"status":      card.Status,
				"assigned_to": workerID,
				"updated_at":  time.Now(),
			}).Error; err != nil {
			return err
		}

		return appendCardAudit(tx, &card, models.AuditEventCardAssigned, previous, assignedBy)
	})
	if err != nil {
		return nil, err
	}

	return &card, nil
}

// BlockCard moves a card to blocked. Always legal from any state except
// expired; terminal until an explicit unblock.
func (r *CardRepository) BlockCard(ctx context.Context, cardID uuid.UUID, actor *models.Actor) (*models.Card, error) {
	return r.transitionLocked(ctx, cardID, models.CardStatusBlocked, models.AuditEventCardBlocked, actor)
}

// UnblockCard returns a blocked card to the available pool
func (r *CardRepository) UnblockCard(ctx context.Context, cardID uuid.UUID, actor *models.Actor) (*models.Card, error) {
	return r.transitionLocked(ctx, cardID, models.CardStatusAvailable, models.AuditEventCardUnblocked, actor)
}

// transitionLocked applies a guarded transition under a row lock
func (r *CardRepository) transitionLocked(ctx context.Context, cardID uuid.UUID, to models.CardStatus, eventType string, actor *models.Actor) (*models.Card, error) {
	var card models.Card

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("id = ?", cardID).
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

		previous := card.Status
		if err := card.Transition(to); err != nil {
			return err
		}

		updates := map[string]interface{}{
			"status":     card.Status,
			"updated_at": time.Now(),
		}
		if to == models.CardStatusAvailable {
			updates["assigned_to"] = nil
			card.AssignedTo = nil
		}
		if err := tx.Model(&models.Card{}).Where("id = ?", cardID).Updates(updates).Error; err != nil {
			return err
		}

		return appendCardAudit(tx, &card, eventType, previous, actor)
	})
	if err != nil {
		return nil, err
	}

	return &card, nil
}

// appendCardAudit writes a custody audit row inside the caller's transaction
func appendCardAudit(tx *gorm.DB, card *models.Card, eventType string, previous models.CardStatus, actor *models.Actor) error {
	prevJSON, _ := json.Marshal(map[string]string{"status": string(previous)})
	newJSON, _ := json.Marshal(map[string]string{"status": string(card.Status)})

	entry := &models.CustodyAuditLog{
		EntityType:    "card",
		EntityID:      card.ID,
		EventType:     eventType,
		PreviousState: datatypes.JSON(prevJSON),
		NewState:      datatypes.JSON(newJSON),
	}
	if actor != nil {
		entry.ActorID = &actor.ID
		entry.ActorRole = string(actor.Role)
	}
	return tx.Create(entry).Error
}
