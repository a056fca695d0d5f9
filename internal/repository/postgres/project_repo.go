package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/prn-tf/darius-projects/internal/domain"
	"github.com/prn-tf/darius-projects/internal/repository"
)

// ProjectRepository implements repository.ProjectRepository using PostgreSQL.
type ProjectRepository struct {
	q querier
}

// NewProjectRepository creates a new PostgreSQL project repository.
func NewProjectRepository(db *DB) *ProjectRepository {
	return &ProjectRepository{q: db.Pool}
}

func newProjectRepositoryTx(tx pgx.Tx) *ProjectRepository {
	return &ProjectRepository{q: tx}
}

var _ repository.ProjectRepository = (*ProjectRepository)(nil)

const projectColumns = `id, name, description, status, end_date, assigned_user_id,
	completed_at, created_at, updated_at`

// Create inserts a new project.
func (r *ProjectRepository) Create(ctx context.Context, project *domain.Project) error {
	query := `
		INSERT INTO projects (` + projectColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err := r.q.Exec(ctx, query,
		project.ID,
		project.Name,
		project.Description,
		string(project.Status),
		project.EndDate.UTC(),
		project.AssignedUserID,
		project.CompletedAt,
		project.CreatedAt.UTC(),
		project.UpdatedAt.UTC(),
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
	query := `SELECT ` + projectColumns + ` FROM projects WHERE id = $1`

	project, err := r.scanProject(r.q.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrProjectNotFound
		}
		return nil, fmt.Errorf("failed to get project by id: %w", err)
	}

	return project, nil
}

// GetByAssignedUser retrieves the project assigned to a user, if any.
func (r *ProjectRepository) GetByAssignedUser(ctx context.Context, userID string) (*domain.Project, error) {
	query := `SELECT ` + projectColumns + ` FROM projects WHERE assigned_user_id = $1`

	project, err := r.scanProject(r.q.QueryRow(ctx, query, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
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
		SET name = $2, description = $3, status = $4, end_date = $5,
		    assigned_user_id = $6, completed_at = $7, updated_at = $8
		WHERE id = $1`

	result, err := r.q.Exec(ctx, query,
		project.ID,
		project.Name,
		project.Description,
		string(project.Status),
		project.EndDate.UTC(),
		project.AssignedUserID,
		project.CompletedAt,
		time.Now().UTC(),
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

	if result.RowsAffected() == 0 {
		return domain.ErrProjectNotFound
	}

	return nil
}

// Delete removes a project by ID.
func (r *ProjectRepository) Delete(ctx context.Context, id string) error {
	result, err := r.q.Exec(ctx, `DELETE FROM projects WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete project: %w", err)
	}

	if result.RowsAffected() == 0 {
		return domain.ErrProjectNotFound
	}

	return nil
}

// List retrieves projects matching the filter with pagination.
func (r *ProjectRepository) List(ctx context.Context, filter repository.ProjectFilter, opts repository.ListOptions) (*repository.ListResult[*domain.Project], error) {
	where := ` WHERE 1=1`
	args := []any{}
	argN := 1

	if filter.Status != "" {
		where += fmt.Sprintf(` AND status = $%d`, argN)
		args = append(args, string(filter.Status))
		argN++
	}
	if filter.AssignedUserID != "" {
		where += fmt.Sprintf(` AND assigned_user_id = $%d`, argN)
		args = append(args, filter.AssignedUserID)
		argN++
	}
	if filter.Unassigned {
		where += ` AND assigned_user_id IS NULL`
	}
	if filter.Overdue {
		where += fmt.Sprintf(` AND end_date < $%d AND status NOT IN ($%d, $%d)`, argN, argN+1, argN+2)
		args = append(args, time.Now().UTC(), string(domain.StatusCompleted), string(domain.StatusCancelled))
		argN += 3
	}
	if filter.Search != "" {
		where += fmt.Sprintf(` AND (name ILIKE $%d OR description ILIKE $%d)`, argN, argN)
		args = append(args, "%"+filter.Search+"%")
		argN++
	}

	var total int64
	if err := r.q.QueryRow(ctx, `SELECT COUNT(*) FROM projects`+where, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("failed to count projects: %w", err)
	}

	query := `SELECT ` + projectColumns + ` FROM projects` + where +
		fmt.Sprintf(` ORDER BY created_at DESC LIMIT $%d OFFSET $%d`, argN, argN+1)
	args = append(args, opts.Limit, opts.Offset)

	rows, err := r.q.Query(ctx, query, args...)
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
		return nil, fmt.Errorf("error iterating projects: %w", err)
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
			COUNT(*) FILTER (WHERE status = $1),
			COUNT(*) FILTER (WHERE status = $2),
			COUNT(*) FILTER (WHERE status = $3),
			COUNT(*) FILTER (WHERE status = $4),
			COUNT(*) FILTER (WHERE assigned_user_id IS NULL),
			COUNT(*) FILTER (WHERE end_date < $5 AND status NOT IN ($3, $4))
		FROM projects`

	var stats domain.ProjectStats
	err := r.q.QueryRow(ctx, query,
		string(domain.StatusNotStarted),
		string(domain.StatusInProgress),
		string(domain.StatusCompleted),
		string(domain.StatusCancelled),
		time.Now().UTC(),
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

func (r *ProjectRepository) scanProject(row pgx.Row) (*domain.Project, error) {
	var (
		p      domain.Project
		status string
	)

	err := row.Scan(
		&p.ID,
		&p.Name,
		&p.Description,
		&status,
		&p.EndDate,
		&p.AssignedUserID,
		&p.CompletedAt,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	p.Status = domain.ProjectStatus(status)
	return &p, nil
}
