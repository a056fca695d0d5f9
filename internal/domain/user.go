// Package domain contains the core business entities for Darius Projects.
// These are pure Go structs with no external dependencies, representing
// the fundamental concepts of the project-management system.
package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Role is the coarse-grained grant unit. The system knows exactly two roles.
type Role string

const (
	// RoleAdmin has the full permission grant and manages users and projects.
	// Admins are never assignable to projects.
	RoleAdmin Role = "ADMIN"

	// RoleUser is a regular user. Users hold at most one assigned project
	// and act on their own resources only.
	RoleUser Role = "USER"
)

// IsValid returns true if the role is one of the defined roles.
func (r Role) IsValid() bool {
	return r == RoleAdmin || r == RoleUser
}

// User represents a registered user in the system.
// Users authenticate with email and password and may hold at most one
// assigned project at a time.
type User struct {
	// ID is the unique identifier for the user (opaque UUID string).
	ID string `json:"id"`

	// Name is the user's display name.
	Name string `json:"name"`

	// Email is the unique email address for login.
	// Stored lower-cased; uniqueness is case-insensitive.
	Email string `json:"email"`

	// PasswordHash is the bcrypt hash of the user's password.
	// This should never be exposed in API responses.
	PasswordHash string `json:"-"`

	// Role determines the user's static permission grant.
	Role Role `json:"role"`

	// IsActive indicates whether the user account is active.
	// Inactive users cannot authenticate or be assigned projects.
	IsActive bool `json:"is_active"`

	// LastLogin is the timestamp of the most recent successful login.
	LastLogin *time.Time `json:"last_login,omitempty"`

	// AssignedProjectID references the project currently assigned to this
	// user, if any. Mutated only by the project assignment logic; always
	// mirrors Project.AssignedUserID.
	AssignedProjectID *string `json:"assigned_project_id,omitempty"`

	// ProfileImageURL is the public URL of the user's profile image.
	ProfileImageURL *string `json:"profile_image_url,omitempty"`

	// ProfileImageID is the media-storage identifier of the profile image,
	// kept so the image can be replaced or deleted.
	ProfileImageID *string `json:"-"`

	// CreatedAt is the timestamp when the user was created.
	CreatedAt time.Time `json:"created_at"`

	// UpdatedAt is the timestamp when the user was last updated.
	UpdatedAt time.Time `json:"updated_at"`
}

// NewUser creates a new User with default values.
func NewUser(name, email, passwordHash string, role Role) *User {
	now := time.Now().UTC()
	return &User{
		ID:           uuid.NewString(),
		Name:         name,
		Email:        NormalizeEmail(email),
		PasswordHash: passwordHash,
		Role:         role,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// CanAuthenticate returns true if the user is allowed to authenticate.
func (u *User) CanAuthenticate() bool {
	return u.IsActive
}

// IsAssignable returns true if a project may be assigned to this user.
// Admins and inactive users are never assignable; a user already holding
// a project must be unassigned first.
func (u *User) IsAssignable() bool {
	return u.IsActive && u.Role != RoleAdmin && u.AssignedProjectID == nil
}

// NormalizeEmail lower-cases and trims an email address so that uniqueness
// checks and lookups are case-insensitive.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
