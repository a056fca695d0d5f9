// Package service provides business logic services for Darius Projects.
package service

import (
	"fmt"
	"net/mail"
	"time"

	"github.com/prn-tf/darius-projects/internal/domain"
)

const (
	minPasswordLength = 8
	minNameLength     = 2
	maxNameLength     = 255
)

// validateEmail checks that the email has a valid format.
func validateEmail(email string) error {
	if _, err := mail.ParseAddress(email); err != nil {
		return fmt.Errorf("%w: %q", domain.ErrInvalidEmail, email)
	}
	return nil
}

// validatePassword checks password strength requirements.
func validatePassword(password string) error {
	if len(password) < minPasswordLength {
		return fmt.Errorf("%w: must be at least %d characters", domain.ErrInvalidPassword, minPasswordLength)
	}
	return nil
}

// validateName checks display name length bounds.
func validateName(name string) error {
	if len(name) < minNameLength || len(name) > maxNameLength {
		return fmt.Errorf("%w: must be %d-%d characters", domain.ErrInvalidName, minNameLength, maxNameLength)
	}
	return nil
}

// validateEndDate checks that a project end date lies in the future.
func validateEndDate(endDate time.Time, now time.Time) error {
	if !endDate.After(now) {
		return domain.ErrEndDateNotFuture
	}
	return nil
}
