package repository

import (
	"errors"
	"strings"
)

var (
	ErrNotFound = errors.New("not found")

	// ErrCardNotFree is returned when the use-conflict detector finds an
	// in-flight engagement or withdrawal on the (card, target) pair
	ErrCardNotFree = errors.New("card is not free for this target")

	// ErrAlreadyAnnotated is returned when a reviewer slot was already written
	ErrAlreadyAnnotated = errors.New("annotation already set for this reviewer role")

	// ErrWithdrawalBlocked is returned when a blocked withdrawal rejects changes
	ErrWithdrawalBlocked = errors.New("withdrawal request is blocked")

	// ErrWithdrawalNotBlocked is returned when unblocking a request that
	// exists but carries no finance block
	ErrWithdrawalNotBlocked = errors.New("withdrawal request is not blocked")
)

// transientMarkers are Postgres error fragments that indicate lock or
// serialization contention worth a bounded retry.
var transientMarkers = []string{
	"could not serialize access",
	"deadlock detected",
	"lock timeout",
	"canceling statement due to lock timeout",
}

// IsTransient reports whether the database error is a contention error
// that is safe to retry. Guard failures are never transient.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range transientMarkers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
