package repositories

import "errors"

var (
	ErrNotFound         = errors.New("record not found")
	ErrNoRowsAffected   = errors.New("no rows affected")
	ErrPermissionDenied = errors.New("permission denied")
	ErrDuplicate        = errors.New("duplicate record")

	// Identity provider failures
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrEmailNotConfirmed  = errors.New("email not confirmed")
	ErrRateLimited        = errors.New("rate limited")
	ErrSessionInvalid     = errors.New("session no longer valid")
)
