// Package repository defines data access interfaces for Darius Projects.
// These interfaces abstract database operations, allowing for different
// implementations (PostgreSQL, SQLite, in-memory for testing) while keeping
// the service layer clean.
package repository

import (
	"context"
	"time"

	"github.com/prn-tf/darius-projects/internal/domain"
)

// =============================================================================
// User Repository
// =============================================================================

// UserRepository defines the interface for user data access.
type UserRepository interface {
	// Create creates a new user.
	Create(ctx context.Context, user *domain.User) error

	// GetByID retrieves a user by ID.
	GetByID(ctx context.Context, id string) (*domain.User, error)

	// GetByEmail retrieves a user by email. The lookup is case-insensitive;
	// implementations receive the already-normalized (lower-cased) address.
	GetByEmail(ctx context.Context, email string) (*domain.User, error)

	// Update updates an existing user.
	Update(ctx context.Context, user *domain.User) error

	// UpdateLastLogin sets the last_login timestamp.
	UpdateLastLogin(ctx context.Context, id string, at time.Time) error

	// Delete hard-deletes a user by ID.
	Delete(ctx context.Context, id string) error

	// List returns users matching the filter, with pagination.
	List(ctx context.Context, filter UserFilter, opts ListOptions) (*ListResult[*domain.User], error)

	// ExistsByEmail checks if a user with the given (normalized) email exists.
	ExistsByEmail(ctx context.Context, email string) (bool, error)
}

// UserFilter narrows a user listing.
type UserFilter struct {
	// Role filters by role when non-empty.
	Role domain.Role

	// ActiveOnly excludes deactivated users.
	ActiveOnly bool
}

// =============================================================================
// Project Repository
// =============================================================================

// ProjectRepository defines the interface for project data access.
type ProjectRepository interface {
	// Create creates a new project.
	Create(ctx context.Context, project *domain.Project) error

	// GetByID retrieves a project by ID.
	GetByID(ctx context.Context, id string) (*domain.Project, error)

	// GetByAssignedUser retrieves the project assigned to a user, if any.
	GetByAssignedUser(ctx context.Context, userID string) (*domain.Project, error)

	// Update updates an existing project.
	Update(ctx context.Context, project *domain.Project) error

	// Delete hard-deletes a project by ID.
	Delete(ctx context.Context, id string) error

	// List returns projects matching the filter, with pagination.
	List(ctx context.Context, filter ProjectFilter, opts ListOptions) (*ListResult[*domain.Project], error)

	// Stats returns aggregate project counts.
	Stats(ctx context.Context) (*domain.ProjectStats, error)
}

// ProjectFilter narrows a project listing.
type ProjectFilter struct {
	// Status filters by status when non-empty.
	Status domain.ProjectStatus

	// AssignedUserID filters by assignee when non-empty.
	AssignedUserID string

	// Unassigned restricts to projects with no assignee.
	Unassigned bool

	// Overdue restricts to projects past their end date that are neither
	// completed nor cancelled.
	Overdue bool

	// Search matches name or description, case-insensitively.
	Search string
}

// =============================================================================
// Common Types
// =============================================================================

// ListOptions contains common pagination options.
type ListOptions struct {
	// Offset is the number of records to skip.
	Offset int

	// Limit is the maximum number of records to return.
	Limit int
}

// ListResult is a generic paginated list result.
type ListResult[T any] struct {
	// Items is the list of items.
	Items []T

	// Total is the total number of items (without pagination).
	Total int64

	// Offset is the current offset.
	Offset int

	// Limit is the current limit.
	Limit int
}

// =============================================================================
// Transaction Support
// =============================================================================

// TxManager defines the interface for transaction management.
// Multi-entity mutations (assignment, cascading deletes) run inside WithTx
// so that partial application is never observable.
type TxManager interface {
	// WithTx executes the given function within a transaction.
	// If the function returns an error, the transaction is rolled back.
	// If the function succeeds, the transaction is committed.
	// The repositories passed to fn operate on the transaction.
	WithTx(ctx context.Context, fn func(ctx context.Context, repos Repositories) error) error
}

// Repositories bundles the repositories a transaction scope exposes.
type Repositories struct {
	Users    UserRepository
	Projects ProjectRepository
}
