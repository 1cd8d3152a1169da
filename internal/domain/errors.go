package domain

import "errors"

var (
	ErrTicketNotFound = errors.New("ticket not found")
	ErrUserNotFound   = errors.New("user not found")
	ErrEmailTaken     = errors.New("email already registered")

	ErrInvalidRole     = errors.New("invalid role")
	ErrInvalidCategory = errors.New("invalid category")
	ErrInvalidPriority = errors.New("invalid priority")
	ErrInvalidStatus   = errors.New("invalid status")
)

// ErrPermissionDenied is returned when the policy rejects an action.
var ErrPermissionDenied = errors.New("permission denied")
