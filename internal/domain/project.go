// Package domain contains the core business entities for Darius Projects.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// ProjectStatus represents the lifecycle state of a project.
type ProjectStatus string

const (
	// StatusNotStarted is the initial state of a newly created project.
	StatusNotStarted ProjectStatus = "NOT_STARTED"

	// StatusInProgress means the project has an assigned user working on it.
	StatusInProgress ProjectStatus = "IN_PROGRESS"

	// StatusCompleted is a terminal state. CompletedAt is recorded on entry.
	StatusCompleted ProjectStatus = "COMPLETED"

	// StatusCancelled is a terminal state.
	StatusCancelled ProjectStatus = "CANCELLED"
)

// IsValid returns true if the status is one of the defined statuses.
func (s ProjectStatus) IsValid() bool {
	switch s {
	case StatusNotStarted, StatusInProgress, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// IsTerminal returns true if no further transitions are allowed from s.
func (s ProjectStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// statusTransitions is the exact transition table for project statuses.
// Any (from, to) pair not listed here is an invalid transition, including
// self-transitions and anything out of a terminal state.
var statusTransitions = map[ProjectStatus][]ProjectStatus{
	StatusNotStarted: {StatusInProgress, StatusCancelled},
	StatusInProgress: {StatusCompleted, StatusCancelled},
	StatusCompleted:  {},
	StatusCancelled:  {},
}

// CanTransitionTo reports whether the transition s -> next is allowed.
func (s ProjectStatus) CanTransitionTo(next ProjectStatus) bool {
	for _, allowed := range statusTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Project represents a unit of work an admin creates and assigns to a user.
// A project has at most one assigned user at any time; the relationship is
// bidirectional and mirrored on User.AssignedProjectID.
type Project struct {
	// ID is the unique identifier for the project (opaque UUID string).
	ID string `json:"id"`

	// Name is the project name.
	Name string `json:"name"`

	// Description is an optional free-text description.
	Description *string `json:"description,omitempty"`

	// Status is the current lifecycle state.
	Status ProjectStatus `json:"status"`

	// EndDate is the due date for the project.
	EndDate time.Time `json:"end_date"`

	// AssignedUserID references the user this project is assigned to, if any.
	// Always mirrors User.AssignedProjectID.
	AssignedUserID *string `json:"assigned_user_id,omitempty"`

	// CompletedAt is recorded when the project transitions into COMPLETED.
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	// CreatedAt is the timestamp when the project was created.
	CreatedAt time.Time `json:"created_at"`

	// UpdatedAt is the timestamp when the project was last updated.
	UpdatedAt time.Time `json:"updated_at"`
}

// NewProject creates a new Project with default values.
func NewProject(name string, description *string, endDate time.Time) *Project {
	now := time.Now().UTC()
	return &Project{
		ID:          uuid.NewString(),
		Name:        name,
		Description: description,
		Status:      StatusNotStarted,
		EndDate:     endDate,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// IsAssigned returns true if the project currently has an assigned user.
func (p *Project) IsAssigned() bool {
	return p.AssignedUserID != nil
}

// IsOverdue returns true if the project is past its end date and not in a
// state that excuses lateness (completed or cancelled).
func (p *Project) IsOverdue(now time.Time) bool {
	return now.After(p.EndDate) && !p.Status.IsTerminal()
}

// ProjectStats holds aggregate project counts for dashboards.
type ProjectStats struct {
	Total      int64 `json:"total"`
	NotStarted int64 `json:"not_started"`
	InProgress int64 `json:"in_progress"`
	Completed  int64 `json:"completed"`
	Cancelled  int64 `json:"cancelled"`
	Unassigned int64 `json:"unassigned"`
	Overdue    int64 `json:"overdue"`
}
