// Package services: services/errors.go
package services

import "errors"

// Kind groups failures by how a caller should react to them.
type Kind string

const (
	KindNotFound            Kind = "NOT_FOUND"
	KindConflict            Kind = "CONFLICT"
	KindInvalidState        Kind = "INVALID_STATE"
	KindUnauthorized        Kind = "UNAUTHORIZED"
	KindNoAttemptsAvailable Kind = "NO_ATTEMPTS_AVAILABLE"
)

// Error is a typed outcome returned by the live engine.
type Error struct {
	Kind    Kind
	Code    string
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

var (
	ErrSessionNotFound   = &Error{Kind: KindNotFound, Code: "SESSION_NOT_FOUND", Message: "live session not found"}
	ErrQueueItemNotFound = &Error{Kind: KindNotFound, Code: "QUEUE_ITEM_NOT_FOUND", Message: "queue item not found"}

	ErrAlreadyClaimed   = &Error{Kind: KindConflict, Code: "ALREADY_CLAIMED", Message: "another judge/operator is handling this attempt"}
	ErrForbiddenRelease = &Error{Kind: KindConflict, Code: "FORBIDDEN_RELEASE", Message: "locked by another judge"}
	ErrDuplicateOrder   = &Error{Kind: KindConflict, Code: "DUPLICATE_ORDER", Message: "queue order already in use"}
	ErrNotCurrent       = &Error{Kind: KindConflict, Code: "NOT_CURRENT", Message: "attempt is not the current attempt"}
	ErrSessionExists    = &Error{Kind: KindConflict, Code: "SESSION_EXISTS", Message: "live session already exists"}

	ErrInvalidSessionState = &Error{Kind: KindInvalidState, Code: "INVALID_SESSION_STATE", Message: "operation not allowed in the current session state"}
	ErrInvalidReorder      = &Error{Kind: KindInvalidState, Code: "INVALID_REORDER", Message: "only pending attempts can be reordered"}
	ErrInvalidInput        = &Error{Kind: KindInvalidState, Code: "INVALID_INPUT", Message: "invalid input"}

	ErrUnauthorizedJudge = &Error{Kind: KindUnauthorized, Code: "UNAUTHORIZED_JUDGE", Message: "judge is not assigned to this session"}
	ErrRoleDenied        = &Error{Kind: KindUnauthorized, Code: "ROLE_DENIED", Message: "role is not allowed to perform this operation"}

	ErrNoAttemptsAvailable = &Error{Kind: KindNoAttemptsAvailable, Code: "NO_ATTEMPTS_AVAILABLE", Message: "no attempts available"}
)

// KindOf returns the Kind of the first *Error in err's chain, or "" for
// untyped errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// AsError returns the first *Error in err's chain.
func AsError(err error) (*Error, bool) {
	var e *Error
	ok := errors.As(err, &e)
	return e, ok
}

// IsConflict reports whether err is expected contention rather than a fault.
func IsConflict(err error) bool {
	return KindOf(err) == KindConflict
}
