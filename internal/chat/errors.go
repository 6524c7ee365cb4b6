package chat

import "errors"

// Request-scoped failures surfaced to gateway replies. Only authentication
// failure at connection time is connection-fatal, and that lives in auth.
var (
	ErrUnauthorized     = errors.New("not a participant or member")
	ErrNotFound         = errors.New("not found")
	ErrValidation       = errors.New("validation failed")
	ErrCapacityExceeded = errors.New("room capacity exceeded")
	ErrAlreadyMember    = errors.New("already a member")
	ErrNotAMember       = errors.New("not a member")
	ErrDuplicateName    = errors.New("name already taken")
)
