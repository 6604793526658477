package authz

import (
	"context"

	"github.com/google/uuid"

	"card-custody-service/internal/models"
)

// Chain failure reason codes, stable for audit logs and UI messaging
const (
	ReasonNoInstitutionGrant = "no_institution_grant"
	ReasonNoTargetGrant      = "no_target_grant"
	ReasonNotSupervised      = "not_supervised"
	ReasonActorInactive      = "actor_inactive"
)

// Decision is the outcome of an authorization chain check
type Decision struct {
	OK     bool
	Reason string
}

func allow() Decision {
	return Decision{OK: true}
}

func deny(reason string) Decision {
	return Decision{OK: false, Reason: reason}
}

// ActorStore is the actor lookup the validator needs
type ActorStore interface {
	GetActorByID(ctx context.Context, id uuid.UUID) (*models.Actor, error)
}

// GrantStore answers whether delegation grants are currently active
type GrantStore interface {
	HasActiveInstitutionGrant(ctx context.Context, supervisorID, institutionID uuid.UUID) (bool, error)
	HasActiveTargetGrant(ctx context.Context, supervisorID, targetID uuid.UUID) (bool, error)
}

// Validator verifies every link of the delegation chain:
// site -> supervisor -> worker -> bank -> card. Checks are read-only and
// never cached; grants can be revoked between a worker loading a form and
// submitting it, so callers re-run the check at the moment of allocation.
type Validator struct {
	actors ActorStore
	grants GrantStore
}

// NewValidator creates a chain validator
func NewValidator(actors ActorStore, grants GrantStore) *Validator {
	return &Validator{actors: actors, grants: grants}
}

// CheckGrant confirms the supervisor holds active grants for both the
// institution and the target, and that the initiating worker currently
// reports to that supervisor. Each leg fails with a specific reason code.
func (v *Validator) CheckGrant(ctx context.Context, workerID, supervisorID, institutionID, targetID uuid.UUID) (Decision, error) {
	supervisor, err := v.actors.GetActorByID(ctx, supervisorID)
	if err != nil {
		return Decision{}, err
	}
	if !supervisor.IsActive() || supervisor.Role != models.RoleSupervisor {
		return deny(ReasonActorInactive), nil
	}

	worker, err := v.actors.GetActorByID(ctx, workerID)
	if err != nil {
		return Decision{}, err
	}
	if !worker.IsActive() {
		return deny(ReasonActorInactive), nil
	}

	// Admin-level actors operate outside the supervision relation
	if !worker.IsAdminLevel() {
		if worker.SupervisorID == nil || *worker.SupervisorID != supervisorID {
			return deny(ReasonNotSupervised), nil
		}
	}

	ok, err := v.grants.HasActiveInstitutionGrant(ctx, supervisorID, institutionID)
	if err != nil {
		return Decision{}, err
	}
	if !ok {
		return deny(ReasonNoInstitutionGrant), nil
	}

	ok, err = v.grants.HasActiveTargetGrant(ctx, supervisorID, targetID)
	if err != nil {
		return Decision{}, err
	}
	if !ok {
		return deny(ReasonNoTargetGrant), nil
	}

	return allow(), nil
}
