package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// RevealAudit is the append-only forensic trail for card data exposure.
// Every reveal attempt is recorded, successful or not; rows are never
// updated or deleted.
type RevealAudit struct {
	ID          uuid.UUID `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	CardID      uuid.UUID `json:"cardId" gorm:"type:uuid;not null;index"`
	RequesterID uuid.UUID `json:"requesterId" gorm:"type:uuid;not null;index"`
	Success     bool      `json:"success" gorm:"not null"`
	Reason      string    `json:"reason,omitempty" gorm:"type:varchar(50)"`
	Context     string    `json:"context,omitempty" gorm:"type:varchar(255)"`
	ClientIP    string    `json:"clientIp,omitempty" gorm:"type:varchar(45)"`
	TTLSeconds  int       `json:"ttlSeconds"`
	CreatedAt   time.Time `json:"createdAt" gorm:"autoCreateTime;index"`
}

func (RevealAudit) TableName() string {
	return "reveal_audit"
}

// CustodyAuditLog records state transitions on cards, engagements and
// withdrawals for operational audit.
type CustodyAuditLog struct {
	ID            uuid.UUID      `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	EntityType    string         `json:"entityType" gorm:"type:varchar(30);not null;index"`
	EntityID      uuid.UUID      `json:"entityId" gorm:"type:uuid;not null;index"`
	EventType     string         `json:"eventType" gorm:"type:varchar(50);not null;index"`
	ActorID       *uuid.UUID     `json:"actorId,omitempty" gorm:"type:uuid"`
	ActorRole     string         `json:"actorRole,omitempty" gorm:"type:varchar(20)"`
	PreviousState datatypes.JSON `json:"previousState,omitempty" gorm:"type:jsonb"`
	NewState      datatypes.JSON `json:"newState,omitempty" gorm:"type:jsonb"`
	CreatedAt     time.Time      `json:"createdAt" gorm:"autoCreateTime"`
}

func (CustodyAuditLog) TableName() string {
	return "custody_audit_log"
}

// Audit event type constants
const (
	AuditEventCardCreated       = "card_created"
	AuditEventCardAssigned      = "card_assigned"
	AuditEventCardBlocked       = "card_blocked"
	AuditEventCardUnblocked     = "card_unblocked"
	AuditEventCardExpired       = "card_expired"
	AuditEventEngagementOpened  = "engagement_opened"
	AuditEventEngagementClosed  = "engagement_closed"
	AuditEventWithdrawalBlocked = "withdrawal_blocked"
	AuditEventGrantCreated      = "grant_created"
	AuditEventGrantRevoked      = "grant_revoked"
)
