package services

import (
	"errors"
	"fmt"

	"github.com/SAP-F-2025/identity-service/internal/validator"
)

type ValidationErrors = validator.ValidationErrors

var (
	ErrNotAuthenticated   = errors.New("not authenticated")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrEmailNotConfirmed  = errors.New("email not confirmed")
	ErrUserAlreadyExists  = errors.New("user already registered")
	ErrRateLimited        = errors.New("too many requests")
	ErrSessionExpired     = errors.New("session expired")

	ErrProfileNotFound = errors.New("profile not found")
	ErrForbidden       = errors.New("forbidden")
	ErrNothingToUpdate = errors.New("nothing to update")
)

// PermissionError explains which action on which resource was refused.
type PermissionError struct {
	UserID     string
	ResourceID string
	Resource   string
	Action     string
	Reason     string
}

func NewPermissionError(userID, resourceID, resource, action, reason string) *PermissionError {
	return &PermissionError{
		UserID:     userID,
		ResourceID: resourceID,
		Resource:   resource,
		Action:     action,
		Reason:     reason,
	}
}

func (e *PermissionError) Error() string {
	return fmt.Sprintf("user %s cannot %s %s %s: %s", e.UserID, e.Action, e.Resource, e.ResourceID, e.Reason)
}

func (e *PermissionError) Unwrap() error {
	return ErrForbidden
}
