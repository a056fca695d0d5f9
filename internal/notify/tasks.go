package notify

import "time"

// Task type identifiers for the queue.
const (
	TypeWelcome          = "email:welcome"
	TypePasswordReset    = "email:password_reset"
	TypeProjectAssigned  = "email:project_assigned"
	TypeProjectCompleted = "email:project_completed"
	TypeProjectOverdue   = "email:project_overdue"

	// TypeOverdueScan is the periodic task that sweeps for overdue
	// projects and fans out TypeProjectOverdue emails.
	TypeOverdueScan = "project:scan_overdue"
)

// WelcomePayload is the payload for welcome emails.
type WelcomePayload struct {
	Email string `json:"email"`
	Name  string `json:"name"`
}

// PasswordResetPayload is the payload for password reset emails.
type PasswordResetPayload struct {
	Email      string `json:"email"`
	Name       string `json:"name"`
	ResetToken string `json:"reset_token"`
}

// ProjectAssignedPayload is the payload for assignment emails.
type ProjectAssignedPayload struct {
	Email       string    `json:"email"`
	Name        string    `json:"name"`
	ProjectName string    `json:"project_name"`
	EndDate     time.Time `json:"end_date"`
}

// ProjectCompletedPayload is the payload for completion emails.
type ProjectCompletedPayload struct {
	Email       string `json:"email"`
	Name        string `json:"name"`
	ProjectName string `json:"project_name"`
}

// ProjectOverduePayload is the payload for overdue warnings.
type ProjectOverduePayload struct {
	Email       string    `json:"email"`
	Name        string    `json:"name"`
	ProjectName string    `json:"project_name"`
	EndDate     time.Time `json:"end_date"`
}
