package apperrors

import "errors"

// All errors in this taxonomy are terminal and non-retryable. Precondition
// failures over already-fetched entities are business outcomes, not faults;
// retries belong to the storage layer, not here.
var (
	ErrNotFound        = errors.New("not found")
	ErrNotAuthorized   = errors.New("not authorized")
	ErrRoleRestricted  = errors.New("role restricted")
	ErrInvalidState    = errors.New("invalid state")
	ErrInvalidAction   = errors.New("invalid action")
	ErrLocked          = errors.New("milestone locked")
	ErrLimitExceeded   = errors.New("milestone limit exceeded")
	ErrInvalidProgress = errors.New("progress out of range")
	ErrInvalidRole     = errors.New("invalid role")
)
