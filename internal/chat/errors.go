package chat

import (
	"errors"

	"github.com/linkchat/linkchat-server/internal/store"
)

// Error codes for domain errors.
const (
	ErrCodeInvalidInput     = "invalid_input"
	ErrCodeRoomNotFound     = "room_not_found"
	ErrCodeStoreUnavailable = "store_unavailable"
	ErrCodeSubscriptionLost = "subscription_lost"
	ErrCodeInternal         = "internal"
)

// ErrSubscriptionLost signals that live delivery was interrupted,
// typically because the subscriber fell too far behind. The session
// recovers by re-entering backfill from its watermark.
var ErrSubscriptionLost = errors.New("subscription lost")

// CodeOf maps a domain error to its wire-level code.
func CodeOf(err error) string {
	switch {
	case errors.Is(err, store.ErrInvalidInput):
		return ErrCodeInvalidInput
	case errors.Is(err, store.ErrNotFound):
		return ErrCodeRoomNotFound
	case errors.Is(err, store.ErrUnavailable):
		return ErrCodeStoreUnavailable
	case errors.Is(err, ErrSubscriptionLost):
		return ErrCodeSubscriptionLost
	default:
		return ErrCodeInternal
	}
}

// Retryable reports whether the caller may retry the failed operation.
// InvalidInput and NotFound are user-correctable, never retried.
func Retryable(err error) bool {
	return errors.Is(err, store.ErrUnavailable) || errors.Is(err, ErrSubscriptionLost)
}
