package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"card-custody-service/internal/models"
)

// AuditRepositoryInterface defines audit trail persistence. Reveal audit is
// append-only: there are intentionally no update or delete operations.
type AuditRepositoryInterface interface {
	AppendRevealAudit(ctx context.Context, entry *models.RevealAudit) error
	ListRevealAuditByCard(ctx context.Context, cardID uuid.UUID, limit, offset int) ([]models.RevealAudit, int64, error)
	ListRevealAuditByRequester(ctx context.Context, requesterID uuid.UUID, limit, offset int) ([]models.RevealAudit, int64, error)
}

// AuditRepository handles the reveal forensic trail
type AuditRepository struct {
	db *gorm.DB
}

var _ AuditRepositoryInterface = (*AuditRepository)(nil)

// NewAuditRepository creates a new AuditRepository
func NewAuditRepository(db *gorm.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

// AppendRevealAudit records a reveal attempt, successful or denied
func (r *AuditRepository) AppendRevealAudit(ctx context.Context, entry *models.RevealAudit) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

// ListRevealAuditByCard returns the reveal history for a card
func (r *AuditRepository) ListRevealAuditByCard(ctx context.Context, cardID uuid.UUID, limit, offset int) ([]models.RevealAudit, int64, error) {
	var entries []models.RevealAudit
	var total int64

	query := r.db.WithContext(ctx).Model(&models.RevealAudit{}).Where("card_id = ?", cardID)
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	err := query.Order("created_at DESC").Limit(limit).Offset(offset).Find(&entries).Error
	return entries, total, err
}

// ListRevealAuditByRequester returns the reveal history for a requester
func (r *AuditRepository) ListRevealAuditByRequester(ctx context.Context, requesterID uuid.UUID, limit, offset int) ([]models.RevealAudit, int64, error) {
	var entries []models.RevealAudit
	var total int64

	query := r.db.WithContext(ctx).Model(&models.RevealAudit{}).Where("requester_id = ?", requesterID)
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	err := query.Order("created_at DESC").Limit(limit).Offset(offset).Find(&entries).Error
	return entries, total, err
}
