// Package notify handles outbound user notifications. Notifications are
// delivered asynchronously through a Redis-backed task queue and are always
// best-effort: enqueue failures are logged by callers, never propagated.
package notify

import (
	"context"
	"time"
)

// Notifier enqueues notification events for asynchronous delivery.
type Notifier interface {
	// Welcome greets a newly registered user.
	Welcome(ctx context.Context, email, name string) error

	// PasswordReset sends a password reset token to a user.
	PasswordReset(ctx context.Context, email, name, resetToken string) error

	// ProjectAssigned informs a user they were assigned to a project.
	ProjectAssigned(ctx context.Context, email, name, projectName string, endDate time.Time) error

	// ProjectCompleted informs a user their project was marked completed.
	ProjectCompleted(ctx context.Context, email, name, projectName string) error

	// ProjectOverdue warns a user their assigned project passed its end date.
	ProjectOverdue(ctx context.Context, email, name, projectName string, endDate time.Time) error
}

// NoopNotifier discards all notifications. Used when notifications are
// disabled and in tests.
type NoopNotifier struct{}

// NewNoopNotifier creates a notifier that does nothing.
func NewNoopNotifier() *NoopNotifier {
	return &NoopNotifier{}
}

func (n *NoopNotifier) Welcome(ctx context.Context, email, name string) error {
	return nil
}

func (n *NoopNotifier) PasswordReset(ctx context.Context, email, name, resetToken string) error {
	return nil
}

func (n *NoopNotifier) ProjectAssigned(ctx context.Context, email, name, projectName string, endDate time.Time) error {
	return nil
}

func (n *NoopNotifier) ProjectCompleted(ctx context.Context, email, name, projectName string) error {
	return nil
}

func (n *NoopNotifier) ProjectOverdue(ctx context.Context, email, name, projectName string, endDate time.Time) error {
	return nil
}

var _ Notifier = (*NoopNotifier)(nil)
