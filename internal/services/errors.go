package services

import (
	"errors"
	"fmt"
)

// Kind classifies a domain error for transport mapping and retry policy.
// Only transient store errors are ever auto-retried.
type Kind string

const (
	KindValidation     Kind = "validation"
	KindAuthorization  Kind = "authorization"
	KindConflict       Kind = "conflict"
	KindSecret         Kind = "secret"
	KindTransientStore Kind = "transient_store"
)

// Stable reason codes surfaced to clients and audit logs
const (
	CodeAmountInvalid        = "amount_invalid"
	CodeTargetInactive       = "target_inactive"
	CodeCardNotFree          = "card_not_free"
	CodeInvalidTransition    = "invalid_transition"
	CodeCardNotRevealable    = "card_not_revealable"
	CodeNotCardHolder        = "not_card_holder"
	CodeBadPIN               = "bad_pin"
	CodeRevealRateLimited    = "reveal_rate_limited"
	CodeRevealWindowActive   = "reveal_window_active"
	CodeAnnotationExists     = "annotation_exists"
	CodeWithdrawalBlocked    = "withdrawal_blocked"
	CodeWithdrawalNotBlocked = "withdrawal_not_blocked"
	CodeStoreContention      = "store_contention"
)

// DomainError carries a stable reason code plus a human message, enough
// structure for the UI to render specific guidance. No error path leaves
// partial state behind: every constructor below is raised either before any
// write or after a rolled-back transaction.
type DomainError struct {
	Kind    Kind
	Code    string
	Message string
	Err     error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s (%s): %v", e.Message, e.Code, e.Err)
	}
	return fmt.Sprintf("%s (%s)", e.Message, e.Code)
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewValidationError reports malformed or missing input
func NewValidationError(code, message string) *DomainError {
	return &DomainError{Kind: KindValidation, Code: code, Message: message}
}

// NewAuthorizationError reports a chain-of-grant failure with its reason code
func NewAuthorizationError(code, message string) *DomainError {
	return &DomainError{Kind: KindAuthorization, Code: code, Message: message}
}

// NewConflictError reports a busy card or guarded transition; safe to retry
// after a re-fetch
func NewConflictError(code, message string) *DomainError {
	return &DomainError{Kind: KindConflict, Code: code, Message: message}
}

// NewSecretError fails closed: the message never discloses whether the card
// or the account exists
func NewSecretError(code, message string) *DomainError {
	return &DomainError{Kind: KindSecret, Code: code, Message: message}
}

// NewTransientStoreError wraps lock contention surfaced after retries ran out
func NewTransientStoreError(err error) *DomainError {
	return &DomainError{
		Kind:    KindTransientStore,
		Code:    CodeStoreContention,
		Message: "temporary storage contention, try again",
		Err:     err,
	}
}

// KindOf extracts the Kind from an error chain, empty when not a DomainError
func KindOf(err error) Kind {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Kind
	}
	return ""
}

// CodeOf extracts the reason code from an error chain
func CodeOf(err error) string {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Code
	}
	return ""
}
