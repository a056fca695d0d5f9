// Package domain contains the core business entities for Darius Projects.
package domain

import (
	"errors"
	"fmt"
)

// Domain errors - these represent business rule violations.
// They are distinct from infrastructure errors (database, network, etc.).

var (
	// ===========================================
	// User Errors
	// ===========================================

	// ErrUserNotFound indicates the requested user does not exist.
	ErrUserNotFound = errors.New("user not found")

	// ErrEmailTaken indicates a user with the same email already exists.
	ErrEmailTaken = errors.New("user with this email already exists")

	// ErrUserInactive indicates the user account is deactivated.
	ErrUserInactive = errors.New("user account is inactive")

	// ErrInvalidCredentials indicates authentication failed. Unknown email,
	// wrong password and deactivated account all collapse to this error so
	// login responses cannot be used to enumerate accounts.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrPasswordMismatch indicates the supplied current password does not
	// match the stored hash on a password change.
	ErrPasswordMismatch = errors.New("current password is incorrect")

	// ErrInvalidRole indicates the role is not one of the defined roles.
	ErrInvalidRole = errors.New("invalid role")

	// ===========================================
	// Token Errors
	// ===========================================

	// ErrInvalidToken indicates the token is malformed or its signature
	// does not verify.
	ErrInvalidToken = errors.New("invalid token")

	// ErrTokenExpired indicates the token is past its expiry.
	ErrTokenExpired = errors.New("token has expired")

	// ===========================================
	// Authorization Errors
	// ===========================================

	// ErrPermissionDenied indicates the caller is authenticated but lacks
	// the required permission or ownership.
	ErrPermissionDenied = errors.New("permission denied")

	// ===========================================
	// Project Errors
	// ===========================================

	// ErrProjectNotFound indicates the requested project does not exist.
	ErrProjectNotFound = errors.New("project not found")

	// ErrProjectAlreadyAssigned indicates the project already has a user.
	ErrProjectAlreadyAssigned = errors.New("project is already assigned to a user")

	// ErrProjectNotAssigned indicates the project has no assigned user.
	ErrProjectNotAssigned = errors.New("project has no assigned user")

	// ErrUserAlreadyAssigned indicates the target user already holds a project.
	ErrUserAlreadyAssigned = errors.New("user already has an assigned project")

	// ErrCannotAssignAdmin indicates an attempt to assign a project to an admin.
	ErrCannotAssignAdmin = errors.New("cannot assign projects to admin users")

	// ErrCannotAssignInactive indicates the target user is deactivated.
	ErrCannotAssignInactive = errors.New("cannot assign project to inactive user")

	// ErrInvalidTransition indicates an illegal project status change.
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrEndDateNotFuture indicates the project end date is not in the future.
	ErrEndDateNotFuture = errors.New("end date must be in the future")

	// ===========================================
	// Validation Errors
	// ===========================================

	// ErrInvalidEmail indicates the email format is invalid.
	ErrInvalidEmail = errors.New("invalid email format")

	// ErrInvalidPassword indicates the password does not meet requirements.
	ErrInvalidPassword = errors.New("invalid password: must be at least 8 characters")

	// ErrInvalidName indicates the name length is invalid.
	ErrInvalidName = errors.New("invalid name: must be 1-255 characters")

	// ===========================================
	// Infrastructure
	// ===========================================

	// ErrInternal indicates an unexpected persistence or collaborator failure.
	ErrInternal = errors.New("internal error")
)

// DomainError wraps a domain error with additional context.
type DomainError struct {
	// Err is the underlying domain error.
	Err error

	// Message provides additional context.
	Message string

	// Resource identifies the affected resource (e.g., user id, project id).
	Resource string
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	if e.Resource != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Err.Error(), e.Message, e.Resource)
	}
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Err.Error(), e.Message)
	}
	return e.Err.Error()
}

// Unwrap returns the underlying error for errors.Is/errors.As.
func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError creates a new DomainError with context.
func NewDomainError(err error, message, resource string) *DomainError {
	return &DomainError{
		Err:      err,
		Message:  message,
		Resource: resource,
	}
}

// WrapError wraps an error with domain context if it's not already a DomainError.
func WrapError(err error, message string) error {
	if err == nil {
		return nil
	}

	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return err
	}

	return &DomainError{
		Err:     err,
		Message: message,
	}
}
