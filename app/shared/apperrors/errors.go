// Package apperrors holds the error taxonomy shared by every partition kind.
//
// Errors are classified by wrapping one of the sentinels below, so callers
// use errors.Is to branch on the class and still see the original message.
package apperrors

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation marks malformed input: unknown ids, empty required
	// fields, mismatched tournament/shard pairings.
	ErrValidation = errors.New("validation error")

	// ErrAuthorization marks a request from a caller that is not allowed to
	// make it right now (non pool member, inside cooldown).
	ErrAuthorization = errors.New("authorization error")

	// ErrNotFound marks a lookup miss for a tournament, shard, player or game.
	ErrNotFound = errors.New("not found")

	// ErrState marks an opaque storage or transport failure. It is fatal for
	// the operation in progress only.
	ErrState = errors.New("state error")
)

// Validation wraps ErrValidation with a formatted message.
func Validation(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// Authorization wraps ErrAuthorization with a formatted message.
func Authorization(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrAuthorization, fmt.Sprintf(format, args...))
}

// NotFound wraps ErrNotFound with a formatted message.
func NotFound(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrNotFound, fmt.Sprintf(format, args...))
}

// State wraps err as a StateError. A nil err stays nil.
func State(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrState) {
		return err
	}
	return fmt.Errorf("%w: %s: %w", ErrState, op, err)
}

// Kind returns a short label for err, used in logs and metric labels.
func Kind(err error) string {
	switch {
	case err == nil:
		return "none"
	case errors.Is(err, ErrValidation):
		return "validation"
	case errors.Is(err, ErrAuthorization):
		return "authorization"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrState):
		return "state"
	default:
		return "unknown"
	}
}

// IsRetryable reports whether redelivering the message that produced err can
// succeed. Only storage/transport failures qualify.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrState)
}
