package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/prn-tf/darius-projects/internal/metrics"
)

// EmailWorker consumes notification tasks and delivers them via an Emailer.
type EmailWorker struct {
	emailer Emailer
	metrics *metrics.Metrics
	logger  zerolog.Logger
}

// NewEmailWorker creates a worker. Metrics may be nil.
func NewEmailWorker(emailer Emailer, m *metrics.Metrics, logger zerolog.Logger) *EmailWorker {
	return &EmailWorker{
		emailer: emailer,
		metrics: m,
		logger:  logger.With().Str("component", "email_worker").Logger(),
	}
}

// Mux returns an asynq handler multiplexer with all task types registered.
func (w *EmailWorker) Mux() *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(TypeWelcome, w.handleWelcome)
	mux.HandleFunc(TypePasswordReset, w.handlePasswordReset)
	mux.HandleFunc(TypeProjectAssigned, w.handleProjectAssigned)
	mux.HandleFunc(TypeProjectCompleted, w.handleProjectCompleted)
	mux.HandleFunc(TypeProjectOverdue, w.handleProjectOverdue)
	return mux
}

func (w *EmailWorker) handleWelcome(ctx context.Context, t *asynq.Task) error {
	var p WelcomePayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return fmt.Errorf("failed to unmarshal welcome payload: %w", err)
	}

	subject := "Welcome to Darius Projects"
	body := fmt.Sprintf(
		"Hi %s,\n\nYour account has been created. You can now sign in with your email address.\n",
		p.Name,
	)

	return w.deliver(TypeWelcome, p.Email, subject, body)
}

func (w *EmailWorker) handlePasswordReset(ctx context.Context, t *asynq.Task) error {
	var p PasswordResetPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return fmt.Errorf("failed to unmarshal password reset payload: %w", err)
	}

	subject := "Password reset requested"
	body := fmt.Sprintf(
		"Hi %s,\n\nA password reset was requested for your account. Use the token below to set a new password:\n\n%s\n\nIf you did not request this, you can ignore this message.\n",
		p.Name, p.ResetToken,
	)

	return w.deliver(TypePasswordReset, p.Email, subject, body)
}

func (w *EmailWorker) handleProjectAssigned(ctx context.Context, t *asynq.Task) error {
	var p ProjectAssignedPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return fmt.Errorf("failed to unmarshal assignment payload: %w", err)
	}

	subject := fmt.Sprintf("You have been assigned to %s", p.ProjectName)
	body := fmt.Sprintf(
		"Hi %s,\n\nYou have been assigned to the project %q. The project is due on %s.\n",
		p.Name, p.ProjectName, p.EndDate.Format("2006-01-02"),
	)

	return w.deliver(TypeProjectAssigned, p.Email, subject, body)
}

func (w *EmailWorker) handleProjectCompleted(ctx context.Context, t *asynq.Task) error {
	var p ProjectCompletedPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return fmt.Errorf("failed to unmarshal completion payload: %w", err)
	}

	subject := fmt.Sprintf("Project %s completed", p.ProjectName)
	body := fmt.Sprintf(
		"Hi %s,\n\nThe project %q has been marked as completed. Nice work!\n",
		p.Name, p.ProjectName,
	)

	return w.deliver(TypeProjectCompleted, p.Email, subject, body)
}

func (w *EmailWorker) handleProjectOverdue(ctx context.Context, t *asynq.Task) error {
	var p ProjectOverduePayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return fmt.Errorf("failed to unmarshal overdue payload: %w", err)
	}

	subject := fmt.Sprintf("Project %s is overdue", p.ProjectName)
	body := fmt.Sprintf(
		"Hi %s,\n\nThe project %q passed its end date (%s) and is still open. Please update its status or contact an administrator.\n",
		p.Name, p.ProjectName, p.EndDate.Format("2006-01-02"),
	)

	return w.deliver(TypeProjectOverdue, p.Email, subject, body)
}

func (w *EmailWorker) deliver(kind, to, subject, body string) error {
	if err := w.emailer.Send(to, subject, body); err != nil {
		if w.metrics != nil {
			w.metrics.RecordNotificationSent(kind, "failure")
		}
		w.logger.Error().Err(err).Str("task", kind).Str("to", to).Msg("delivery failed")
		return err
	}

	if w.metrics != nil {
		w.metrics.RecordNotificationSent(kind, "success")
	}
	w.logger.Info().Str("task", kind).Str("to", to).Msg("notification delivered")
	return nil
}
