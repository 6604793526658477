package repository

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"card-custody-service/internal/models"
)

// WithdrawalRepositoryInterface defines withdrawal persistence operations
type WithdrawalRepositoryInterface interface {
	CreateWithdrawal(ctx context.Context, withdrawal *models.WithdrawalRequest) error
	GetWithdrawalByID(ctx context.Context, id uuid.UUID) (*models.WithdrawalRequest, error)
	SetAnnotation(ctx context.Context, id uuid.UUID, role models.ReviewerRole, reviewer *models.Actor, comment, action string) (*models.WithdrawalRequest, error)
	BlockWithdrawal(ctx context.Context, id uuid.UUID, blockedBy *models.Actor, comment string) (*models.WithdrawalRequest, error)
	UnblockWithdrawal(ctx context.Context, id uuid.UUID, actor *models.Actor) (*models.WithdrawalRequest, error)
	ListWithdrawals(ctx context.Context, status models.WithdrawalStatus, limit, offset int) ([]models.WithdrawalRequest, int64, error)
}

// WithdrawalRepository handles database operations for withdrawal requests
type WithdrawalRepository struct {
	db *gorm.DB
}

var _ WithdrawalRepositoryInterface = (*WithdrawalRepository)(nil)

// NewWithdrawalRepository creates a new WithdrawalRepository
func NewWithdrawalRepository(db *gorm.DB) *WithdrawalRepository {
	return &WithdrawalRepository{db: db}
}

// CreateWithdrawal creates a withdrawal request in the pending state
func (r *WithdrawalRepository) CreateWithdrawal(ctx context.Context, withdrawal *models.WithdrawalRequest) error {
	if withdrawal.Status == "" {
		withdrawal.Status = models.WithdrawalStatusPending
	}
	return r.db.WithContext(ctx).Create(withdrawal).Error
}

// GetWithdrawalByID retrieves a withdrawal request
func (r *WithdrawalRepository) GetWithdrawalByID(ctx context.Context, id uuid.UUID) (*models.WithdrawalRequest, error) {
	var withdrawal models.WithdrawalRequest
	err := r.db.WithContext(ctx).
		Preload("Engagement").
		Where("id = ?", id).
		First(&withdrawal).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &withdrawal, nil
}

// SetAnnotation attaches a reviewer's one-shot comment and optionally moves
// the status forward. Annotations are independent fields: any order is
// allowed, a slot can only be written once, and a blocked request rejects
// everything.
func (r *WithdrawalRepository) SetAnnotation(ctx context.Context, id uuid.UUID, role models.ReviewerRole, reviewer *models.Actor, comment, action string) (*models.WithdrawalRequest, error) {
	var withdrawal models.WithdrawalRequest

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("id = ?", id).
			Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&withdrawal).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}

		if withdrawal.IsBlocked() {
			return ErrWithdrawalBlocked
		}
		if withdrawal.AnnotationFor(role) != nil {
			return ErrAlreadyAnnotated
		}

		now := time.Now()
		updates := map[string]interface{}{"updated_at": now}
		switch role {
		case models.ReviewerRoleManager:
			updates["manager_comment"] = comment
			updates["manager_comment_by"] = reviewer.ID
			updates["manager_comment_at"] = now
			withdrawal.ManagerComment = &comment
		case models.ReviewerRoleHR:
			updates["hr_comment"] = comment
			updates["hr_comment_by"] = reviewer.ID
			updates["hr_comment_at"] = now
			withdrawal.HRComment = &comment
		case models.ReviewerRoleFinance:
			updates["finance_comment"] = comment
			updates["finance_comment_by"] = reviewer.ID
			updates["finance_comment_at"] = now
			withdrawal.FinanceComment = &comment
		}

		reviewers := append(pq.StringArray{}, withdrawal.CompletedReviewers...)
		reviewers = append(reviewers, string(role))
		updates["completed_reviewers"] = reviewers
		withdrawal.CompletedReviewers = reviewers

		// Status moves are monotonic forward; only pending can move
		switch action {
		case models.ReviewActionApprove:
			if withdrawal.Status == models.WithdrawalStatusPending {
				updates["status"] = models.WithdrawalStatusApproved
				withdrawal.Status = models.WithdrawalStatusApproved
			}
		case models.ReviewActionReject:
			if withdrawal.Status == models.WithdrawalStatusPending {
				updates["status"] = models.WithdrawalStatusRejected
				withdrawal.Status = models.WithdrawalStatusRejected
			}
		}

		return tx.Model(&models.WithdrawalRequest{}).Where("id = ?", id).Updates(updates).Error
	})
	if err != nil {
		return nil, err
	}

	return &withdrawal, nil
}

// BlockWithdrawal freezes a request. Finance only; legal from every
// non-terminal status and overrides prior decisions.
func (r *WithdrawalRepository) BlockWithdrawal(ctx context.Context, id uuid.UUID, blockedBy *models.Actor, comment string) (*models.WithdrawalRequest, error) {
	var withdrawal models.WithdrawalRequest

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("id = ?", id).
			Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&withdrawal).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}

		if withdrawal.IsBlocked() {
			return ErrWithdrawalBlocked
		}

		now := time.Now()
		previous := withdrawal.Status
		updates := map[string]interface{}{
			"status":     models.WithdrawalStatusBlocked,
			"blocked_at": now,
			"blocked_by": blockedBy.ID,
			"updated_at": now,
		}
		if comment != "" && withdrawal.FinanceComment == nil {
			updates["finance_comment"] = comment
			updates["finance_comment_by"] = blockedBy.ID
			updates["finance_comment_at"] = now
			withdrawal.FinanceComment = &comment
		}
		withdrawal.Status = models.WithdrawalStatusBlocked
		withdrawal.BlockedAt = &now
		withdrawal.BlockedBy = &blockedBy.ID

		if err := tx.Model(&models.WithdrawalRequest{}).Where("id = ?", id).Updates(updates).Error; err != nil {
			return err
		}

		return appendWithdrawalAudit(tx, &withdrawal, models.AuditEventWithdrawalBlocked, previous, blockedBy)
	})
	if err != nil {
		return nil, err
	}

	return &withdrawal, nil
}

// UnblockWithdrawal lifts a finance block, restoring pending
func (r *WithdrawalRepository) UnblockWithdrawal(ctx context.Context, id uuid.UUID, actor *models.Actor) (*models.WithdrawalRequest, error) {
	var withdrawal models.WithdrawalRequest

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("id = ?", id).
			Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&withdrawal).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}

		if !withdrawal.IsBlocked() {
			return ErrWithdrawalNotBlocked
		}

		withdrawal.Status = models.WithdrawalStatusPending
		withdrawal.BlockedAt = nil
		withdrawal.BlockedBy = nil

		return tx.Model(&models.WithdrawalRequest{}).Where("id = ?", id).
			Updates(map[string]interface{}{
				"status":     models.WithdrawalStatusPending,
				"blocked_at": nil,
				"blocked_by": nil,
				"updated_at": time.Now(),
			}).Error
	})
	if err != nil {
		return nil, err
	}

	return &withdrawal, nil
}

// ListWithdrawals retrieves withdrawal requests, optionally by status
func (r *WithdrawalRepository) ListWithdrawals(ctx context.Context, status models.WithdrawalStatus, limit, offset int) ([]models.WithdrawalRequest, int64, error) {
	var withdrawals []models.WithdrawalRequest
	var total int64

	query := r.db.WithContext(ctx).Model(&models.WithdrawalRequest{})
	if status != "" {
		query = query.Where("status = ?", status)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := query.Order("created_at DESC").Limit(limit).Offset(offset).Find(&withdrawals).Error
	return withdrawals, total, err
}

// appendWithdrawalAudit writes a custody audit row inside the transaction
func appendWithdrawalAudit(tx *gorm.DB, withdrawal *models.WithdrawalRequest, eventType string, previous models.WithdrawalStatus, actor *models.Actor) error {
	prevJSON, _ := json.Marshal(map[string]string{"status": string(previous)})
	newJSON, _ := json.Marshal(map[string]string{"status": string(withdrawal.Status)})

	entry := &models.CustodyAuditLog{
		EntityType:    "withdrawal",
		EntityID:      withdrawal.ID,
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
