package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"card-custody-service/internal/models"
)

// OrgRepositoryInterface defines institution, account and target persistence
type OrgRepositoryInterface interface {
	CreateInstitution(ctx context.Context, institution *models.Institution) error
	GetInstitutionByID(ctx context.Context, id uuid.UUID) (*models.Institution, error)
	CreateAccount(ctx context.Context, account *models.Account) error
	GetAccountByID(ctx context.Context, id uuid.UUID) (*models.Account, error)
	CreateTarget(ctx context.Context, target *models.Target) error
	GetTargetByID(ctx context.Context, id uuid.UUID) (*models.Target, error)
}

// OrgRepository handles database operations for institutions, accounts
// and target sites
type OrgRepository struct {
	db *gorm.DB
}

var _ OrgRepositoryInterface = (*OrgRepository)(nil)

// NewOrgRepository creates a new OrgRepository
func NewOrgRepository(db *gorm.DB) *OrgRepository {
	return &OrgRepository{db: db}
}

// CreateInstitution creates a new institution
func (r *OrgRepository) CreateInstitution(ctx context.Context, institution *models.Institution) error {
	return r.db.WithContext(ctx).Create(institution).Error
}

// GetInstitutionByID retrieves an institution by ID
func (r *OrgRepository) GetInstitutionByID(ctx context.Context, id uuid.UUID) (*models.Institution, error) {
	var institution models.Institution
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&institution).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &institution, nil
}

// CreateAccount creates a new account
func (r *OrgRepository) CreateAccount(ctx context.Context, account *models.Account) error {
	return r.db.WithContext(ctx).Create(account).Error
}

// GetAccountByID retrieves an account with its institution
func (r *OrgRepository) GetAccountByID(ctx context.Context, id uuid.UUID) (*models.Account, error) {
	var account models.Account
	err := r.db.WithContext(ctx).
		Preload("Institution").
		Where("id = ?", id).
		First(&account).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &account, nil
}

// CreateTarget creates a new target site
func (r *OrgRepository) CreateTarget(ctx context.Context, target *models.Target) error {
	return r.db.WithContext(ctx).Create(target).Error
}

// GetTargetByID retrieves a target by ID
func (r *OrgRepository) GetTargetByID(ctx context.Context, id uuid.UUID) (*models.Target, error) {
	var target models.Target
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&target).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &target, nil
}
