package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// CardStatus represents the lifecycle status of a card
type CardStatus string

const (
	CardStatusAvailable CardStatus = "available"
	CardStatusAssigned  CardStatus = "assigned"
	CardStatusActive    CardStatus = "active"
	CardStatusBlocked   CardStatus = "blocked"
	CardStatusExpired   CardStatus = "expired"
)

// cardTransitions is the card lifecycle transition table. Blocked is
// reachable from every state and terminal until an explicit unblock;
// expired is derived from the expiry date and permits no further moves.
var cardTransitions = map[CardStatus][]CardStatus{
	CardStatusAvailable: {CardStatusAssigned, CardStatusActive, CardStatusBlocked, CardStatusExpired},
	CardStatusAssigned:  {CardStatusActive, CardStatusAvailable, CardStatusBlocked, CardStatusExpired},
	CardStatusActive:    {CardStatusAssigned, CardStatusAvailable, CardStatusBlocked, CardStatusExpired},
	CardStatusBlocked:   {CardStatusAvailable},
	CardStatusExpired:   {},
}

// TransitionError reports a card transition rejected by a lifecycle guard.
// Callers can distinguish "already in that state" from "blocked by a guard".
type TransitionError struct {
	CardID    uuid.UUID
	Current   CardStatus
	Attempted CardStatus
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("invalid card transition %s -> %s for card %s", e.Current, e.Attempted, e.CardID)
}

// Card represents a payment instrument tied to an account. The raw payment
// fields (PAN, CVV, expiry) are stored encrypted and only decrypted through
// the reveal flow.
type Card struct {
	ID        uuid.UUID `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	AccountID uuid.UUID `json:"accountId" gorm:"type:uuid;not null;index"`

	MaskedNumber string  `json:"maskedNumber" gorm:"type:varchar(25);not null"`
	BIN          string  `json:"bin" gorm:"type:varchar(8);not null;index"`
	CardType     *string `json:"cardType,omitempty" gorm:"type:varchar(20)"`

	// Encrypted raw payment fields ($enc$v1$... format, vault-owned key)
	PANEnc    string `json:"-" gorm:"type:text;column:pan_enc"`
	CVVEnc    string `json:"-" gorm:"type:text;column:cvv_enc"`
	ExpiryEnc string `json:"-" gorm:"type:text;column:expiry_enc"`

	DailyLimit *float64   `json:"dailyLimit,omitempty" gorm:"type:decimal(10,2)"`
	Status     CardStatus `json:"status" gorm:"type:varchar(20);not null;default:'available';index"`
	ExpiresAt  *time.Time `json:"expiresAt,omitempty" gorm:"index"`

	// Usage relation, not ownership: the worker currently holding the card
	AssignedTo *uuid.UUID `json:"assignedTo,omitempty" gorm:"type:uuid;index"`

	CreatedAt time.Time       `json:"createdAt"`
	UpdatedAt time.Time       `json:"updatedAt"`
	DeletedAt *gorm.DeletedAt `json:"deletedAt,omitempty" gorm:"index"`
	CreatedBy *string         `json:"createdBy,omitempty"`

	Account  *Account `json:"account,omitempty" gorm:"foreignKey:AccountID"`
	Assignee *Actor   `json:"assignee,omitempty" gorm:"foreignKey:AssignedTo"`
}

func (Card) TableName() string {
	return "cards"
}

// CanTransition reports whether moving to the given status is permitted
// by the lifecycle table.
func (c *Card) CanTransition(to CardStatus) bool {
	for _, allowed := range cardTransitions[c.Status] {
		if allowed == to {
			return true
		}
	}
	return false
}

// Transition moves the card to the given status or returns a
// TransitionError. It never silently no-ops: attempting the current
// status again is rejected like any other guarded move.
func (c *Card) Transition(to CardStatus) error {
	if !c.CanTransition(to) {
		return &TransitionError{CardID: c.ID, Current: c.Status, Attempted: to}
	}
	c.Status = to
	return nil
}

// IsExpired reports whether the card's expiry date has passed. Expiry is
// derived lazily on read, not via a background sweep.
func (c *Card) IsExpired(now time.Time) bool {
	return c.ExpiresAt != nil && c.ExpiresAt.Before(now)
}

// IsUsable reports whether the card can back a new engagement
func (c *Card) IsUsable() bool {
	return c.Status == CardStatusAvailable || c.Status == CardStatusAssigned
}

// CardData is the decrypted reveal payload, returned once per reveal
type CardData struct {
	PAN      string `json:"pan"`
	CVV      string `json:"cvv"`
	ExpMonth int    `json:"exp_month"`
	ExpYear  int    `json:"exp_year"`
}

// CreateCardRequest represents a request to create a card
type CreateCardRequest struct {
	AccountID  uuid.UUID  `json:"accountId" binding:"required"`
	PAN        string     `json:"pan" binding:"required,min=12,max=19"`
	CVV        string     `json:"cvv" binding:"required,min=3,max=4"`
	ExpMonth   int        `json:"expMonth" binding:"required,gte=1,lte=12"`
	ExpYear    int        `json:"expYear" binding:"required,gte=2000"`
	CardType   *string    `json:"cardType,omitempty"`
	DailyLimit *float64   `json:"dailyLimit,omitempty"`
}

// RevealCardRequest represents a step-up reveal request
type RevealCardRequest struct {
	PIN     string `json:"pin" binding:"required"`
	Context string `json:"context,omitempty"`
}

// RevealCardResponse carries the decrypted fields and the advisory TTL
type RevealCardResponse struct {
	CardData CardData `json:"card_data"`
	TTL      int      `json:"ttl"`
}

// AssignCardRequest represents a supervisor handing a card to a worker
// for use against a target
type AssignCardRequest struct {
	CardID   uuid.UUID `json:"cardId" binding:"required"`
	WorkerID uuid.UUID `json:"workerId" binding:"required"`
	TargetID uuid.UUID `json:"targetId" binding:"required"`
}

// SearchCardsRequest represents card list filters
type SearchCardsRequest struct {
	Status     []CardStatus `form:"status"`
	AssignedTo *uuid.UUID   `form:"assignedTo"`
	AccountID  *uuid.UUID   `form:"accountId"`
	BIN        *string      `form:"bin"`
	Page       int          `form:"page,default=1"`
	Limit      int          `form:"limit,default=20"`
}
