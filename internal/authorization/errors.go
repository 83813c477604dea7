package authorization

import "errors"

var (
	ErrDenied       = errors.New("forbidden")
	ErrInvalidActor = errors.New("invalid_actor")
)

// DeniedError carries the reason a request was refused.
// Handlers must not expose the reason to the caller.
type DeniedError struct {
	Reason DenyReason
}

func (e *DeniedError) Error() string {
	return "forbidden: " + string(e.Reason)
}

func (e *DeniedError) Unwrap() error { return ErrDenied }
