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

func newMockRepo(t *testing.T) (*UserRepository, sqlmock.Sqlmock) {
	t.Helper()

	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { mockDB.Close() })

	db := &DB{db: mockDB, logger: zerolog.Nop()}
	return NewUserRepository(db), mock
}

func userRows(user *domain.User) *sqlmock.Rows {
	rows := sqlmock.NewRows([]string{
		"id", "name", "email", "password_hash", "role", "is_active",
		"last_login", "profile_image_url", "profile_image_id",
		"created_at", "updated_at", "assigned_project_id",
	})

	var lastLogin interface{}
	if user.LastLogin != nil {
		lastLogin = user.LastLogin.UTC().Format(time.RFC3339)
	}
	var projectID interface{}
	if user.AssignedProjectID != nil {
		projectID = *user.AssignedProjectID
	}

	rows.AddRow(
		user.ID, user.Name, user.Email, user.PasswordHash, string(user.Role),
		boolToInt(user.IsActive), lastLogin, nil, nil,
		user.CreatedAt.UTC().Format(time.RFC3339),
		user.UpdatedAt.UTC().Format(time.RFC3339),
		projectID,
	)
	return rows
}

func TestUserRepository_Create(t *testing.T) {
	ctx := context.Background()
	user := domain.NewUser("Alice", "alice@example.com", "hash", domain.RoleUser)

	t.Run("success", func(t *testing.T) {
		repo, mock := newMockRepo(t)
		mock.ExpectExec("INSERT INTO users").
			WillReturnResult(sqlmock.NewResult(0, 1))

		require.NoError(t, repo.Create(ctx, user))
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("duplicate email", func(t *testing.T) {
		repo, mock := newMockRepo(t)
		mock.ExpectExec("INSERT INTO users").
			WillReturnError(errors.New("constraint failed: UNIQUE constraint failed: users.email"))

		require.ErrorIs(t, repo.Create(ctx, user), domain.ErrEmailTaken)
	})
}

func TestUserRepository_GetByID(t *testing.T) {
	ctx := context.Background()

	t.Run("found with assignment", func(t *testing.T) {
		repo, mock := newMockRepo(t)
		user := domain.NewUser("Bob", "bob@example.com", "hash", domain.RoleUser)
		projectID := "project-1"
		user.AssignedProjectID = &projectID

		mock.ExpectQuery("SELECT (.+) FROM users WHERE id").
			WithArgs(user.ID).
			WillReturnRows(userRows(user))

		got, err := repo.GetByID(ctx, user.ID)
		require.NoError(t, err)
		assert.Equal(t, user.Email, got.Email)
		assert.Equal(t, domain.RoleUser, got.Role)
		require.NotNil(t, got.AssignedProjectID)
		assert.Equal(t, "project-1", *got.AssignedProjectID)
	})

	t.Run("not found", func(t *testing.T) {
		repo, mock := newMockRepo(t)
		mock.ExpectQuery("SELECT (.+) FROM users WHERE id").
			WithArgs("missing").
			WillReturnRows(sqlmock.NewRows([]string{"id"}))

		_, err := repo.GetByID(ctx, "missing")
		require.ErrorIs(t, err, domain.ErrUserNotFound)
	})
}

func TestUserRepository_GetByEmail(t *testing.T) {
	ctx := context.Background()
	repo, mock := newMockRepo(t)
	user := domain.NewUser("Carol", "carol@example.com", "hash", domain.RoleAdmin)

	mock.ExpectQuery("SELECT (.+) FROM users WHERE email").
		WithArgs(user.Email).
		WillReturnRows(userRows(user))

	got, err := repo.GetByEmail(ctx, user.Email)
	require.NoError(t, err)
	assert.Equal(t, user.ID, got.ID)
	assert.Equal(t, domain.RoleAdmin, got.Role)
}

func TestUserRepository_Update(t *testing.T) {
	ctx := context.Background()
	user := domain.NewUser("Dave", "dave@example.com", "hash", domain.RoleUser)

	t.Run("success", func(t *testing.T) {
		repo, mock := newMockRepo(t)
		mock.ExpectExec("UPDATE users").
			WillReturnResult(sqlmock.NewResult(0, 1))

		require.NoError(t, repo.Update(ctx, user))
	})

	t.Run("missing user", func(t *testing.T) {
		repo, mock := newMockRepo(t)
		mock.ExpectExec("UPDATE users").
			WillReturnResult(sqlmock.NewResult(0, 0))

		require.ErrorIs(t, repo.Update(ctx, user), domain.ErrUserNotFound)
	})

	t.Run("email collision", func(t *testing.T) {
		repo, mock := newMockRepo(t)
		mock.ExpectExec("UPDATE users").
			WillReturnError(errors.New("constraint failed: UNIQUE constraint failed: users.email"))

		require.ErrorIs(t, repo.Update(ctx, user), domain.ErrEmailTaken)
	})
}

func TestUserRepository_UpdateLastLogin(t *testing.T) {
	ctx := context.Background()
	repo, mock := newMockRepo(t)

	mock.ExpectExec("UPDATE users SET last_login").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.UpdateLastLogin(ctx, "user-1", time.Now()))

	mock.ExpectExec("UPDATE users SET last_login").
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.ErrorIs(t, repo.UpdateLastLogin(ctx, "missing", time.Now()), domain.ErrUserNotFound)
}

func TestUserRepository_Delete(t *testing.T) {
	ctx := context.Background()
	repo, mock := newMockRepo(t)

	mock.ExpectExec("DELETE FROM users").
		WithArgs("user-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Delete(ctx, "user-1"))

	mock.ExpectExec("DELETE FROM users").
		WithArgs("missing").
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.ErrorIs(t, repo.Delete(ctx, "missing"), domain.ErrUserNotFound)
}

func TestUserRepository_List(t *testing.T) {
	ctx := context.Background()
	repo, mock := newMockRepo(t)
	user := domain.NewUser("Erin", "erin@example.com", "hash", domain.RoleUser)

	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM users").
		WithArgs(string(domain.RoleUser)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectQuery("SELECT (.+) FROM users").
		WithArgs(string(domain.RoleUser), 50, 0).
		WillReturnRows(userRows(user))

	result, err := repo.List(ctx,
		repository.UserFilter{Role: domain.RoleUser, ActiveOnly: true},
		repository.ListOptions{Limit: 50},
	)
	require.NoError(t, err)
	assert.Equal(t, int64(1), result.Total)
	require.Len(t, result.Items, 1)
	assert.Equal(t, user.ID, result.Items[0].ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepository_ExistsByEmail(t *testing.T) {
	ctx := context.Background()
	repo, mock := newMockRepo(t)

	mock.ExpectQuery("SELECT EXISTS").
		WithArgs("taken@example.com").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(1))

	exists, err := repo.ExistsByEmail(ctx, "taken@example.com")
	require.NoError(t, err)
	assert.True(t, exists)

	mock.ExpectQuery("SELECT EXISTS").
		WithArgs("free@example.com").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(0))

	exists, err = repo.ExistsByEmail(ctx, "free@example.com")
	require.NoError(t, err)
	assert.False(t, exists)
}
