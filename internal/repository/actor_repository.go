package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"card-custody-service/internal/models"
)

// ActorRepositoryInterface defines actor persistence operations
type ActorRepositoryInterface interface {
	CreateActor(ctx context.Context, actor *models.Actor) error
	GetActorByID(ctx context.Context, id uuid.UUID) (*models.Actor, error)
	GetActorByEmail(ctx context.Context, email string) (*models.Actor, error)
	UpdateActorStatus(ctx context.Context, id uuid.UUID, status models.ActorStatus) error
	ListWorkersOfSupervisor(ctx context.Context, supervisorID uuid.UUID) ([]models.Actor, error)
}

// ActorRepository handles database operations for actors
type ActorRepository struct {
	db *gorm.DB
}

var _ ActorRepositoryInterface = (*ActorRepository)(nil)

// NewActorRepository creates a new ActorRepository
func NewActorRepository(db *gorm.DB) *ActorRepository {
	return &ActorRepository{db: db}
}

// CreateActor creates a new actor
func (r *ActorRepository) CreateActor(ctx context.Context, actor *models.Actor) error {
	return r.db.WithContext(ctx).Create(actor).Error
}

// GetActorByID retrieves an actor by ID
func (r *ActorRepository) GetActorByID(ctx context.Context, id uuid.UUID) (*models.Actor, error) {
	var actor models.Actor
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&actor).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &actor, nil
}

// GetActorByEmail retrieves an actor by email
func (r *ActorRepository) GetActorByEmail(ctx context.Context, email string) (*models.Actor, error) {
	var actor models.Actor
	err := r.db.WithContext(ctx).Where("email = ?", email).First(&actor).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &actor, nil
}

// UpdateActorStatus changes an actor's status
func (r *ActorRepository) UpdateActorStatus(ctx context.Context, id uuid.UUID, status models.ActorStatus) error {
	result := r.db.WithContext(ctx).Model(&models.Actor{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":     status,
			"updated_at": time.Now(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// ListWorkersOfSupervisor lists active workers reporting to a supervisor
func (r *ActorRepository) ListWorkersOfSupervisor(ctx context.Context, supervisorID uuid.UUID) ([]models.Actor, error) {
	var workers []models.Actor
	err := r.db.WithContext(ctx).
		Where("supervisor_id = ? AND role = ? AND status = ?",
			supervisorID, models.RoleWorker, models.ActorStatusActive).
		Order("created_at").
		Find(&workers).Error
	return workers, err
}
