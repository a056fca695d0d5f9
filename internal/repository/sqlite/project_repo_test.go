package sqlite

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prn-tf/darius-projects/internal/domain"
	"github.com/prn-tf/darius-projects/internal/repository"
)

func newMockProjectRepo(t *testing.T) (*ProjectRepository, sqlmock.Sqlmock) {
	t.Helper()

	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { mockDB.Close() })

	db := &DB{db: mockDB, logger: zerolog.Nop()}
	return NewProjectRepository(db), mock
}

func projectRows(project *domain.Project) *sqlmock.Rows {
	rows := sqlmock.NewRows([]string{
		"id", "name", "description", "status", "end_date",
		"assigned_user_id", "completed_at", "created_at", "updated_at",
	})

	var description interface{}
	if project.Description != nil {
		description = *project.Description
	}
	var assignedTo interface{}
	if project.AssignedUserID != nil {
		assignedTo = *project.AssignedUserID
	}
	var completedAt interface{}
	if project.CompletedAt != nil {
		completedAt = project.CompletedAt.UTC().Format(time.RFC3339)
	}

	rows.AddRow(
		project.ID, project.Name, description, string(project.Status),
		project.EndDate.UTC().Format(time.RFC3339),
		assignedTo, completedAt,
		project.CreatedAt.UTC().Format(time.RFC3339),
		project.UpdatedAt.UTC().Format(time.RFC3339),
	)
	return rows
}

func TestProjectRepository_Create(t *testing.T) {
	ctx := context.Background()
	project := domain.NewProject("Alpha", nil, time.Now().Add(24*time.Hour))

	t.Run("success", func(t *testing.T) {
		repo, mock := newMockProjectRepo(t)
		mock.ExpectExec("INSERT INTO projects").
			WillReturnResult(sqlmock.NewResult(0, 1))

		require.NoError(t, repo.Create(ctx, project))
	})

	t.Run("assignee already holds a project", func(t *testing.T) {
		repo, mock := newMockProjectRepo(t)
		mock.ExpectExec("INSERT INTO projects").
			WillReturnError(errors.New("constraint failed: UNIQUE constraint failed: projects.assigned_user_id"))

		require.ErrorIs(t, repo.Create(ctx, project), domain.ErrUserAlreadyAssigned)
	})

	t.Run("assignee does not exist", func(t *testing.T) {
		repo, mock := newMockProjectRepo(t)
		mock.ExpectExec("INSERT INTO projects").
			WillReturnError(errors.New("constraint failed: FOREIGN KEY constraint failed"))

		require.ErrorIs(t, repo.Create(ctx, project), domain.ErrUserNotFound)
	})
}

func TestProjectRepository_GetByID(t *testing.T) {
	ctx := context.Background()

	t.Run("found", func(t *testing.T) {
		repo, mock := newMockProjectRepo(t)
		desc := "a description"
		project := domain.NewProject("Beta", &desc, time.Now().Add(24*time.Hour))

		mock.ExpectQuery("SELECT (.+) FROM projects WHERE id").
			WithArgs(project.ID).
			WillReturnRows(projectRows(project))

		got, err := repo.GetByID(ctx, project.ID)
		require.NoError(t, err)
		assert.Equal(t, project.Name, got.Name)
		require.NotNil(t, got.Description)
		assert.Equal(t, desc, *got.Description)
		assert.Equal(t, domain.StatusNotStarted, got.Status)
	})

	t.Run("not found", func(t *testing.T) {
		repo, mock := newMockProjectRepo(t)
		mock.ExpectQuery("SELECT (.+) FROM projects WHERE id").
			WithArgs("missing").
			WillReturnRows(sqlmock.NewRows([]string{"id"}))

		_, err := repo.GetByID(ctx, "missing")
		require.ErrorIs(t, err, domain.ErrProjectNotFound)
	})
}

func TestProjectRepository_GetByAssignedUser(t *testing.T) {
	ctx := context.Background()
	repo, mock := newMockProjectRepo(t)
	project := domain.NewProject("Gamma", nil, time.Now().Add(24*time.Hour))
	userID := "user-1"
	project.AssignedUserID = &userID

	mock.ExpectQuery("SELECT (.+) FROM projects WHERE assigned_user_id").
		WithArgs(userID).
		WillReturnRows(projectRows(project))

	got, err := repo.GetByAssignedUser(ctx, userID)
	require.NoError(t, err)
	require.NotNil(t, got.AssignedUserID)
	assert.Equal(t, userID, *got.AssignedUserID)

	mock.ExpectQuery("SELECT (.+) FROM projects WHERE assigned_user_id").
		WithArgs("idle-user").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err = repo.GetByAssignedUser(ctx, "idle-user")
	require.ErrorIs(t, err, domain.ErrProjectNotFound)
}

func TestProjectRepository_Update(t *testing.T) {
	ctx := context.Background()
	project := domain.NewProject("Delta", nil, time.Now().Add(24*time.Hour))

	t.Run("success", func(t *testing.T) {
		repo, mock := newMockProjectRepo(t)
		mock.ExpectExec("UPDATE projects").
			WillReturnResult(sqlmock.NewResult(0, 1))

		require.NoError(t, repo.Update(ctx, project))
	})

	t.Run("missing project", func(t *testing.T) {
		repo, mock := newMockProjectRepo(t)
		mock.ExpectExec("UPDATE projects").
			WillReturnResult(sqlmock.NewResult(0, 0))

		require.ErrorIs(t, repo.Update(ctx, project), domain.ErrProjectNotFound)
	})

	t.Run("assignee already holds a project", func(t *testing.T) {
		repo, mock := newMockProjectRepo(t)
		mock.ExpectExec("UPDATE projects").
			WillReturnError(errors.New("constraint failed: UNIQUE constraint failed: projects.assigned_user_id"))

		require.ErrorIs(t, repo.Update(ctx, project), domain.ErrUserAlreadyAssigned)
	})
}

func TestProjectRepository_Delete(t *testing.T) {
	ctx := context.Background()
	repo, mock := newMockProjectRepo(t)

	mock.ExpectExec("DELETE FROM projects").
		WithArgs("project-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Delete(ctx, "project-1"))

	mock.ExpectExec("DELETE FROM projects").
		WithArgs("missing").
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.ErrorIs(t, repo.Delete(ctx, "missing"), domain.ErrProjectNotFound)
}

func TestProjectRepository_List(t *testing.T) {
	ctx := context.Background()
	repo, mock := newMockProjectRepo(t)
	project := domain.NewProject("Epsilon", nil, time.Now().Add(24*time.Hour))

	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM projects").
		WithArgs(string(domain.StatusNotStarted)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectQuery("SELECT (.+) FROM projects").
		WithArgs(string(domain.StatusNotStarted), 50, 0).
		WillReturnRows(projectRows(project))

	result, err := repo.List(ctx,
		repository.ProjectFilter{Status: domain.StatusNotStarted, Unassigned: true},
		repository.ListOptions{Limit: 50},
	)
	require.NoError(t, err)
	assert.Equal(t, int64(1), result.Total)
	require.Len(t, result.Items, 1)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestProjectRepository_Stats(t *testing.T) {
	ctx := context.Background()
	repo, mock := newMockProjectRepo(t)

	mock.ExpectQuery("SELECT").
		WillReturnRows(sqlmock.NewRows([]string{
			"total", "not_started", "in_progress", "completed",
			"cancelled", "unassigned", "overdue",
		}).AddRow(10, 3, 4, 2, 1, 5, 2))

	stats, err := repo.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(10), stats.Total)
	assert.Equal(t, int64(3), stats.NotStarted)
	assert.Equal(t, int64(4), stats.InProgress)
	assert.Equal(t, int64(2), stats.Completed)
	assert.Equal(t, int64(1), stats.Cancelled)
	assert.Equal(t, int64(5), stats.Unassigned)
	assert.Equal(t, int64(2), stats.Overdue)
}
