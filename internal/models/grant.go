package models

import (
	"time"

	"github.com/google/uuid"
)

// GrantType distinguishes the two independent delegation relations
type GrantType string

const (
	GrantTypeInstitution GrantType = "institution" // institution -> supervisor
	GrantTypeTarget      GrantType = "target"      // target -> supervisor
)

// DelegationGrant authorizes a supervisor (and transitively their workers)
// to use an institution's cards or a target site. Grants are created and
// revoked by admin-level actors only.
type DelegationGrant struct {
	ID            uuid.UUID  `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	Type          GrantType  `json:"type" gorm:"type:varchar(20);not null;index"`
	SupervisorID  uuid.UUID  `json:"supervisorId" gorm:"type:uuid;not null;index"`
	InstitutionID *uuid.UUID `json:"institutionId,omitempty" gorm:"type:uuid;index"`
	TargetID      *uuid.UUID `json:"targetId,omitempty" gorm:"type:uuid;index"`

	IsActive     bool       `json:"isActive" gorm:"default:true;index"`
	RevokedAt    *time.Time `json:"revokedAt,omitempty"`
	RevokedBy    *uuid.UUID `json:"revokedBy,omitempty" gorm:"type:uuid"`
	RevokeReason string     `json:"revokeReason,omitempty" gorm:"type:text"`

	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt"`
	CreatedBy *uuid.UUID `json:"createdBy,omitempty" gorm:"type:uuid"`
}

func (DelegationGrant) TableName() string {
	return "delegation_grants"
}

// IsValidNow checks if the grant currently authorizes use
func (g *DelegationGrant) IsValidNow() bool {
	return g.IsActive && g.RevokedAt == nil
}

// CreateGrantRequest represents a request to create a delegation grant
type CreateGrantRequest struct {
	Type          GrantType  `json:"type" binding:"required"`
	SupervisorID  uuid.UUID  `json:"supervisorId" binding:"required"`
	InstitutionID *uuid.UUID `json:"institutionId,omitempty"`
	TargetID      *uuid.UUID `json:"targetId,omitempty"`
}

// RevokeGrantRequest represents a request to revoke a grant
type RevokeGrantRequest struct {
	Reason string `json:"reason,omitempty"`
}
