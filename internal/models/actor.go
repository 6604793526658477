package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Role represents an actor's position in the operations hierarchy
type Role string

const (
	RoleAdmin      Role = "admin"
	RoleSupervisor Role = "supervisor" // team lead
	RoleWorker     Role = "worker"     // junior
	RoleManager    Role = "manager"
	RoleHR         Role = "hr"
	RoleFinance    Role = "finance" // CFO
	RoleTester     Role = "tester"
)

// ActorStatus represents the status of an actor
type ActorStatus string

const (
	ActorStatusActive     ActorStatus = "active"
	ActorStatusInactive   ActorStatus = "inactive"
	ActorStatusTerminated ActorStatus = "terminated"
)

// Actor represents a person participating in card custody operations.
// A worker optionally reports to exactly one supervisor at a time.
type Actor struct {
	ID           uuid.UUID   `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	Email        string      `json:"email" gorm:"type:varchar(255);not null;uniqueIndex"`
	Name         string      `json:"name" gorm:"type:varchar(255);not null"`
	Role         Role        `json:"role" gorm:"type:varchar(20);not null;index"`
	Status       ActorStatus `json:"status" gorm:"type:varchar(20);not null;default:'active';index"`
	SupervisorID *uuid.UUID  `json:"supervisorId,omitempty" gorm:"type:uuid;index"`

	// Step-up secret for card reveals, bcrypt hash. Never serialized.
	PINHash string `json:"-" gorm:"type:varchar(100)"`

	CreatedAt time.Time       `json:"createdAt"`
	UpdatedAt time.Time       `json:"updatedAt"`
	DeletedAt *gorm.DeletedAt `json:"deletedAt,omitempty" gorm:"index"`
	CreatedBy *string         `json:"createdBy,omitempty"`

	Supervisor *Actor `json:"supervisor,omitempty" gorm:"foreignKey:SupervisorID"`
}

func (Actor) TableName() string {
	return "actors"
}

// IsActive returns true if the actor may participate in operations
func (a *Actor) IsActive() bool {
	return a.Status == ActorStatusActive
}

// IsAdminLevel returns true for actors with unrestricted card access
func (a *Actor) IsAdminLevel() bool {
	return a.Role == RoleAdmin
}

// CreateActorRequest represents a request to create an actor
type CreateActorRequest struct {
	Email        string     `json:"email" binding:"required,email"`
	Name         string     `json:"name" binding:"required"`
	Role         Role       `json:"role" binding:"required"`
	SupervisorID *uuid.UUID `json:"supervisorId,omitempty"`
	PIN          string     `json:"pin" binding:"required,min=4,max=12"`
}

// UpdateActorStatusRequest represents a request to change an actor's status
type UpdateActorStatusRequest struct {
	Status ActorStatus `json:"status" binding:"required"`
}
