package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// WithdrawalStatus represents the status of a withdrawal request
type WithdrawalStatus string

const (
	WithdrawalStatusNew       WithdrawalStatus = "new"
	WithdrawalStatusPending   WithdrawalStatus = "pending"
	WithdrawalStatusReceived  WithdrawalStatus = "received"
	WithdrawalStatusApproved  WithdrawalStatus = "approved"
	WithdrawalStatusRejected  WithdrawalStatus = "rejected"
	WithdrawalStatusBlocked   WithdrawalStatus = "blocked"
	WithdrawalStatusCompleted WithdrawalStatus = "completed"
)

// InFlightWithdrawalStatuses are statuses indicating money is still moving
// even if the parent engagement is marked settled. The use-conflict detector
// treats a card as busy while any of these exist for a (card, target) pair.
var InFlightWithdrawalStatuses = []WithdrawalStatus{
	WithdrawalStatusNew,
	WithdrawalStatusPending,
	WithdrawalStatusReceived,
}

// ReviewerRole identifies the three independent annotation slots
type ReviewerRole string

const (
	ReviewerRoleManager ReviewerRole = "manager" // front-line
	ReviewerRoleHR      ReviewerRole = "hr"
	ReviewerRoleFinance ReviewerRole = "finance"
)

// WithdrawalRequest is produced from an engagement and flows through the
// three-role review pipeline. Each reviewer role may attach exactly one
// annotation; a later annotation never overwrites an earlier reviewer's
// text. Blocked is terminal except for an explicit finance unblock.
type WithdrawalRequest struct {
	ID           uuid.UUID        `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	EngagementID uuid.UUID        `json:"engagementId" gorm:"type:uuid;not null;index"`
	Amount       float64          `json:"amount" gorm:"type:decimal(10,2);not null"`
	CurrencyCode string           `json:"currencyCode" gorm:"type:varchar(3);not null;default:'USD'"`
	Status       WithdrawalStatus `json:"status" gorm:"type:varchar(20);not null;default:'new';index"`

	// Independent one-shot annotations, settable in any order
	ManagerComment   *string    `json:"managerComment,omitempty" gorm:"type:text"`
	ManagerCommentBy *uuid.UUID `json:"managerCommentBy,omitempty" gorm:"type:uuid"`
	ManagerCommentAt *time.Time `json:"managerCommentAt,omitempty"`

	HRComment   *string    `json:"hrComment,omitempty" gorm:"type:text;column:hr_comment"`
	HRCommentBy *uuid.UUID `json:"hrCommentBy,omitempty" gorm:"type:uuid;column:hr_comment_by"`
	HRCommentAt *time.Time `json:"hrCommentAt,omitempty" gorm:"column:hr_comment_at"`

	FinanceComment   *string    `json:"financeComment,omitempty" gorm:"type:text"`
	FinanceCommentBy *uuid.UUID `json:"financeCommentBy,omitempty" gorm:"type:uuid"`
	FinanceCommentAt *time.Time `json:"financeCommentAt,omitempty"`

	// Reviewer roles that have already attached their annotation
	CompletedReviewers pq.StringArray `json:"completedReviewers" gorm:"type:varchar(20)[]"`

	BlockedAt *time.Time `json:"blockedAt,omitempty"`
	BlockedBy *uuid.UUID `json:"blockedBy,omitempty" gorm:"type:uuid"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`

	Engagement *Engagement `json:"engagement,omitempty" gorm:"foreignKey:EngagementID"`
}

func (WithdrawalRequest) TableName() string {
	return "withdrawal_requests"
}

// IsBlocked reports whether finance has frozen the request
func (w *WithdrawalRequest) IsBlocked() bool {
	return w.Status == WithdrawalStatusBlocked
}

// IsInFlight reports whether the withdrawal still has money moving
func (w *WithdrawalRequest) IsInFlight() bool {
	for _, s := range InFlightWithdrawalStatuses {
		if w.Status == s {
			return true
		}
	}
	return false
}

// AnnotationFor returns the annotation text for a reviewer role, if set
func (w *WithdrawalRequest) AnnotationFor(role ReviewerRole) *string {
	switch role {
	case ReviewerRoleManager:
		return w.ManagerComment
	case ReviewerRoleHR:
		return w.HRComment
	case ReviewerRoleFinance:
		return w.FinanceComment
	}
	return nil
}

// CreateWithdrawalRequest represents creating a withdrawal from an engagement
type CreateWithdrawalRequest struct {
	EngagementID uuid.UUID `json:"engagementId" binding:"required"`
	Amount       float64   `json:"amount" binding:"required,gt=0"`
	CurrencyCode string    `json:"currencyCode,omitempty"`
}

// ReviewAction is the optional status move attached to an annotation
const (
	ReviewActionComment = "comment"
	ReviewActionApprove = "approve"
	ReviewActionReject  = "reject"
	ReviewActionBlock   = "block"
)

// AnnotateWithdrawalRequest represents a reviewer attaching a comment
type AnnotateWithdrawalRequest struct {
	Comment string `json:"comment" binding:"required"`
	Action  string `json:"action,omitempty"`
}
