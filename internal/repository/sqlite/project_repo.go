package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/prn-tf/darius-projects/internal/domain"
	"github.com/prn-tf/darius-projects/internal/repository"
)

// ProjectRepository implements repository.ProjectRepository using SQLite.
type ProjectRepository struct {
	db executor
}

// NewProjectRepository creates a new SQLite project repository.
func NewProjectRepository(db *DB) *ProjectRepository {
	return &ProjectRepository{db: db}
}

func newProjectRepositoryTx(tx *sql.Tx) *ProjectRepository {
	return &ProjectRepository{db: tx}
}

var _ repository.ProjectRepository = (*ProjectRepository)(nil)

const projectColumns = `id, name, description, status, end_date, assigned_user_id,
	completed_at, created_at, updated_at`

// Create inserts a new project.
func (r *ProjectRepository) Create(ctx context.Context, project *domain.Project) error {
	query := `
		INSERT INTO projects (` + projectColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := r.db.ExecContext(ctx, query,
		project.ID,
		project.Name,
		nullableStringPtr(project.Description),
		string(project.Status),
		project.EndDate.UTC().Format(time.RFC3339),
		nullableStringPtr(project.AssignedUserID),
		nullableTime(project.CompletedAt),
		project.CreatedAt.UTC().Format(time.RFC3339),
		project.UpdatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrUserAlreadyAssigned
		}
		if isForeignKeyViolation(err) {
			return domain.ErrUserNotFound
		}
		return fmt.Errorf("failed to create project: %w", err)
	}

	return nil
}

// GetByID retrieves a project by ID.
func (r *ProjectRepository) GetByID(ctx context.Context, id string) (*domain.Project, error) {
	query := `SELECT ` + projectColumns + ` FROM projects WHERE id = ?`

	project, err := r.scanProject(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if isNoRows(err) {
			return nil, domain.ErrProjectNotFound
		}
		return nil, fmt.Errorf("failed to get project by id: %w", err)
	}

	return project, nil
}

// GetByAssignedUser retrieves the project assigned to a user, if any.
func (r *ProjectRepository) GetByAssignedUser(ctx context.Context, userID string) (*domain.Project, error) {
	query := `SELECT ` + projectColumns + ` FROM projects WHERE assigned_user_id = ?`

	project, err := r.scanProject(r.db.QueryRowContext(ctx, query, userID))
	if err != nil {
		if isNoRows(err) {
			return nil, domain.ErrProjectNotFound
		}
		return nil, fmt.Errorf("failed to get project by assigned user: %w", err)
	}

	return project, nil
}

// Update updates an existing project.
func (r *ProjectRepository) Update(ctx context.Context, project *domain.Project) error {
	query := `
		UPDATE projects
		SET name = ?, description = ?, status = ?, end_date = ?,
		    assigned_user_id = ?, completed_at = ?, updated_at = ?
		WHERE id = ?`

	result, err := r.db.ExecContext(ctx, query,
		project.Name,
		nullableStringPtr(project.Description),
		string(project.Status),
		project.EndDate.UTC().Format(time.RFC3339),
		nullableStringPtr(project.AssignedUserID),
		nullableTime(project.CompletedAt),
		time.Now().UTC().Format(time.RFC3339),
		project.ID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrUserAlreadyAssigned
		}
		if isForeignKeyViolation(err) {
			return domain.ErrUserNotFound
		}
		return fmt.Errorf("failed to update project: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return domain.ErrProjectNotFound
	}

	return nil
}

// Delete removes a project by ID.
func (r *ProjectRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM projects WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete project: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return domain.ErrProjectNotFound
	}

	return nil
}

// List retrieves projects matching the filter with pagination.
func (r *ProjectRepository) List(ctx context.Context, filter repository.ProjectFilter, opts repository.ListOptions) (*repository.ListResult[*domain.Project], error) {
	where := ` WHERE 1=1`
	args := []interface{}{}

	if filter.Status != "" {
		where += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	if filter.AssignedUserID != "" {
		where += ` AND assigned_user_id = ?`
		args = append(args, filter.AssignedUserID)
	}
	if filter.Unassigned {
		where += ` AND assigned_user_id IS NULL`
	}
	if filter.Overdue {
		where += ` AND end_date < ? AND status NOT IN (?, ?)`
		args = append(args,
			time.Now().UTC().Format(time.RFC3339),
			string(domain.StatusCompleted),
			string(domain.StatusCancelled),
		)
	}
	if filter.Search != "" {
		where += ` AND (name LIKE ? OR description LIKE ?)`
		pattern := "%" + filter.Search + "%"
		args = append(args, pattern, pattern)
	}

	var total int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM projects`+where, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("failed to count projects: %w", err)
	}

	query := `SELECT ` + projectColumns + ` FROM projects` + where + ` ORDER BY created_at DESC LIMIT ? OFFSET ?`
	args = append(args, opts.Limit, opts.Offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}
	defer rows.Close()

	projects := []*domain.Project{}
	for rows.Next() {
		project, err := r.scanProject(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan project: %w", err)
		}
		projects = append(projects, project)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate projects: %w", err)
	}

	return &repository.ListResult[*domain.Project]{
		Items:  projects,
		Total:  total,
		Offset: opts.Offset,
		Limit:  opts.Limit,
	}, nil
}

// Stats computes aggregate project counts.
func (r *ProjectRepository) Stats(ctx context.Context) (*domain.ProjectStats, error) {
	query := `
		SELECT
			COUNT(*),
			COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN assigned_user_id IS NULL THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN end_date < ? AND status NOT IN (?, ?) THEN 1 ELSE 0 END), 0)
		FROM projects`

	now := time.Now().UTC().Format(time.RFC3339)

	var stats domain.ProjectStats
	err := r.db.QueryRowContext(ctx, query,
		string(domain.StatusNotStarted),
		string(domain.StatusInProgress),
		string(domain.StatusCompleted),
		string(domain.StatusCancelled),
		now,
		string(domain.StatusCompleted),
		string(domain.StatusCancelled),
	).Scan(
		&stats.Total,
		&stats.NotStarted,
		&stats.InProgress,
		&stats.Completed,
		&stats.Cancelled,
		&stats.Unassigned,
		&stats.Overdue,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to compute project stats: %w", err)
	}

	return &stats, nil
}

func (r *ProjectRepository) scanProject(row rowScanner) (*domain.Project, error) {
	var (
		project     domain.Project
		description sql.NullString
		status      string
		endDate     string
		assignedTo  sql.NullString
		completedAt sql.NullString
		createdAt   string
		updatedAt   string
	)

	err := row.Scan(
		&project.ID,
		&project.Name,
		&description,
		&status,
		&endDate,
		&assignedTo,
		&completedAt,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	project.Status = domain.ProjectStatus(status)

	if description.Valid {
		d := description.String
		project.Description = &d
	}
	if assignedTo.Valid {
		id := assignedTo.String
		project.AssignedUserID = &id
	}
	if completedAt.Valid {
		t, err := time.Parse(time.RFC3339, completedAt.String)
		if err != nil {
			return nil, fmt.Errorf("failed to parse completed_at: %w", err)
		}
		project.CompletedAt = &t
	}

	if project.EndDate, err = time.Parse(time.RFC3339, endDate); err != nil {
		return nil, fmt.Errorf("failed to parse end_date: %w", err)
	}
	if project.CreatedAt, err = time.Parse(time.RFC3339, createdAt); err != nil {
		return nil, fmt.Errorf("failed to parse created_at: %w", err)
	}
	if project.UpdatedAt, err = time.Parse(time.RFC3339, updatedAt); err != nil {
		return nil, fmt.Errorf("failed to parse updated_at: %w", err)
	}

	return &project, nil
}

func nullableStringPtr(s *string) interface{} {
	if s == nil {
		return nil
	}
	return *s
}
