package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"card-custody-service/internal/models"
)

// GrantRepositoryInterface defines delegation grant persistence operations
type GrantRepositoryInterface interface {
	CreateGrant(ctx context.Context, grant *models.DelegationGrant) error
	GetGrantByID(ctx context.Context, id uuid.UUID) (*models.DelegationGrant, error)
	RevokeGrant(ctx context.Context, id uuid.UUID, revokedBy uuid.UUID, reason string) error
	HasActiveInstitutionGrant(ctx context.Context, supervisorID, institutionID uuid.UUID) (bool, error)
	HasActiveTargetGrant(ctx context.Context, supervisorID, targetID uuid.UUID) (bool, error)
	ListGrantsForSupervisor(ctx context.Context, supervisorID uuid.UUID) ([]models.DelegationGrant, error)
}

// GrantRepository handles database operations for delegation grants
type GrantRepository struct {
	db *gorm.DB
}

var _ GrantRepositoryInterface = (*GrantRepository)(nil)

// NewGrantRepository creates a new GrantRepository
func NewGrantRepository(db *gorm.DB) *GrantRepository {
	return &GrantRepository{db: db}
}

// CreateGrant creates a new delegation grant
func (r *GrantRepository) CreateGrant(ctx context.Context, grant *models.DelegationGrant) error {
	return r.db.WithContext(ctx).Create(grant).Error
}

// GetGrantByID retrieves a grant by ID
func (r *GrantRepository) GetGrantByID(ctx context.Context, id uuid.UUID) (*models.DelegationGrant, error) {
	var grant models.DelegationGrant
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&grant).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &grant, nil
}

// RevokeGrant deactivates a grant. Takes effect immediately: the validator
// reads grants fresh on every check.
func (r *GrantRepository) RevokeGrant(ctx context.Context, id uuid.UUID, revokedBy uuid.UUID, reason string) error {
	now := time.Now()
	result := r.db.WithContext(ctx).Model(&models.DelegationGrant{}).
		Where("id = ? AND is_active = true", id).
		Updates(map[string]interface{}{
			"is_active":     false,
			"revoked_at":    now,
			"revoked_by":    revokedBy,
			"revoke_reason": reason,
			"updated_at":    now,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// HasActiveInstitutionGrant checks the (institution -> supervisor) relation
func (r *GrantRepository) HasActiveInstitutionGrant(ctx context.Context, supervisorID, institutionID uuid.UUID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.DelegationGrant{}).
		Where("type = ? AND supervisor_id = ? AND institution_id = ? AND is_active = true",
			models.GrantTypeInstitution, supervisorID, institutionID).
		Count(&count).Error
	return count > 0, err
}

// HasActiveTargetGrant checks the (target -> supervisor) relation
func (r *GrantRepository) HasActiveTargetGrant(ctx context.Context, supervisorID, targetID uuid.UUID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.DelegationGrant{}).
		Where("type = ? AND supervisor_id = ? AND target_id = ? AND is_active = true",
			models.GrantTypeTarget, supervisorID, targetID).
		Count(&count).Error
	return count > 0, err
}

// ListGrantsForSupervisor lists all grants held by a supervisor
func (r *GrantRepository) ListGrantsForSupervisor(ctx context.Context, supervisorID uuid.UUID) ([]models.DelegationGrant, error) {
	var grants []models.DelegationGrant
	err := r.db.WithContext(ctx).
		Where("supervisor_id = ?", supervisorID).
		Order("created_at DESC").
		Find(&grants).Error
	return grants, err
}
