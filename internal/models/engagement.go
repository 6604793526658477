package models

import (
	"time"

	"github.com/google/uuid"
)

// EngagementStatus represents the status of an engagement
type EngagementStatus string

const (
	EngagementStatusActive    EngagementStatus = "active"
	EngagementStatusCompleted EngagementStatus = "completed"
	EngagementStatusError     EngagementStatus = "error"
)

// Engagement represents one bounded use of a card against a target by a
// worker. At most one engagement may be active for a given (card, target)
// pair at any time. Engagements are never deleted, only superseded.
type Engagement struct {
	ID       uuid.UUID `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	WorkerID uuid.UUID `json:"workerId" gorm:"type:uuid;not null;index"`
	CardID   uuid.UUID `json:"cardId" gorm:"type:uuid;not null;index:idx_engagements_card_target"`
	TargetID uuid.UUID `json:"targetId" gorm:"type:uuid;not null;index:idx_engagements_card_target"`

	Amount       float64 `json:"amount" gorm:"type:decimal(10,2);not null"`
	CurrencyCode string  `json:"currencyCode" gorm:"type:varchar(3);not null;default:'USD'"`

	// Credentials for the target site, encrypted at rest via the vault
	CredentialEnc string `json:"-" gorm:"type:text;column:credential_enc"`

	Status   EngagementStatus `json:"status" gorm:"type:varchar(20);not null;default:'active';index"`
	OpenedAt time.Time        `json:"openedAt" gorm:"not null"`
	ClosedAt *time.Time       `json:"closedAt,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`

	Worker *Actor  `json:"worker,omitempty" gorm:"foreignKey:WorkerID"`
	Card   *Card   `json:"card,omitempty" gorm:"foreignKey:CardID"`
	Target *Target `json:"target,omitempty" gorm:"foreignKey:TargetID"`

	Withdrawals []WithdrawalRequest `json:"withdrawals,omitempty" gorm:"foreignKey:EngagementID"`
}

func (Engagement) TableName() string {
	return "engagements"
}

// IsSettled reports whether the engagement has reached a terminal status
func (e *Engagement) IsSettled() bool {
	return e.Status == EngagementStatusCompleted || e.Status == EngagementStatusError
}

// OpenEngagementRequest represents a worker opening an engagement
type OpenEngagementRequest struct {
	CardID       uuid.UUID `json:"card_id" binding:"required"`
	TargetID     uuid.UUID `json:"target_id" binding:"required"`
	Amount       float64   `json:"amount" binding:"required"`
	CurrencyCode string    `json:"currency" binding:"required,len=3"`
	Credentials  *string   `json:"credentials,omitempty"`
}

// OpenEngagementResponse is returned on successful allocation
type OpenEngagementResponse struct {
	EngagementID uuid.UUID        `json:"engagement_id"`
	Status       EngagementStatus `json:"status"`
}
