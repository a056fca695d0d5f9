package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/prn-tf/darius-projects/internal/domain"
	"github.com/prn-tf/darius-projects/internal/metrics"
	"github.com/prn-tf/darius-projects/internal/notify"
	"github.com/prn-tf/darius-projects/internal/permission"
	"github.com/prn-tf/darius-projects/internal/pkg/crypto"
	"github.com/prn-tf/darius-projects/internal/repository"
	"github.com/prn-tf/darius-projects/internal/service"
	"github.com/prn-tf/darius-projects/internal/token"
)

// singleUserRepo serves exactly one user, enough for token validation.
type singleUserRepo struct {
	user *domain.User
}

func (r *singleUserRepo) Create(ctx context.Context, user *domain.User) error { return nil }

func (r *singleUserRepo) GetByID(ctx context.Context, id string) (*domain.User, error) {
	if r.user != nil && r.user.ID == id {
		return r.user, nil
	}
	return nil, domain.ErrUserNotFound
}

func (r *singleUserRepo) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	if r.user != nil && r.user.Email == email {
		return r.user, nil
	}
	return nil, domain.ErrUserNotFound
}

func (r *singleUserRepo) Update(ctx context.Context, user *domain.User) error { return nil }

func (r *singleUserRepo) UpdateLastLogin(ctx context.Context, id string, at time.Time) error {
	return nil
}

func (r *singleUserRepo) Delete(ctx context.Context, id string) error { return nil }

func (r *singleUserRepo) List(ctx context.Context, filter repository.UserFilter, opts repository.ListOptions) (*repository.ListResult[*domain.User], error) {
	return &repository.ListResult[*domain.User]{}, nil
}

func (r *singleUserRepo) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	return false, nil
}

var _ repository.UserRepository = (*singleUserRepo)(nil)

type noCache struct{}

func (noCache) Get(ctx context.Context, key string) ([]byte, error) {
	return nil, repository.ErrCacheMiss
}
func (noCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return nil
}
func (noCache) SetNX(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	return true, nil
}
func (noCache) Delete(ctx context.Context, key string) error         { return nil }
func (noCache) Exists(ctx context.Context, key string) (bool, error) { return false, nil }

func newTestGuard(user *domain.User) (*Guard, *token.Service) {
	tokens := token.NewService("guard-secret", time.Hour)
	authSvc := service.NewAuthService(
		&singleUserRepo{user: user},
		tokens,
		crypto.NewPasswordHasher(bcrypt.MinCost),
		notify.NewNoopNotifier(),
		noCache{},
		nil,
		domain.RoleUser,
		zerolog.Nop(),
	)
	return NewGuard(authSvc, permission.NewEngine(), metrics.New(), zerolog.Nop()), tokens
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
}

func TestGuard_Authenticate(t *testing.T) {
	user := domain.NewUser("Alice", "alice@example.com", "hash", domain.RoleUser)
	guard, tokens := newTestGuard(user)

	var seen *Identity
	handler := guard.Authenticate(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = IdentityFrom(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	t.Run("missing header", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("malformed header", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Token abc")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("invalid token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer not-a-token")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("valid token", func(t *testing.T) {
		tokenStr, err := tokens.Issue(user.ID, user.Email, user.Role)
		require.NoError(t, err)

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer "+tokenStr)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusNoContent, rec.Code)
		require.NotNil(t, seen)
		assert.Equal(t, user.ID, seen.User.ID)
	})

	t.Run("inactive user", func(t *testing.T) {
		tokenStr, err := tokens.Issue(user.ID, user.Email, user.Role)
		require.NoError(t, err)
		user.IsActive = false
		defer func() { user.IsActive = true }()

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer "+tokenStr)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

// serveAs routes the request through a chi router with the identity already
// attached, the way Authenticate would leave it.
func serveAs(t *testing.T, guard *Guard, user *domain.User, op Operation, path, reqPath string) int {
	t.Helper()

	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			ctx := WithIdentity(req.Context(), &Identity{User: user})
			next.ServeHTTP(w, req.WithContext(ctx))
		})
	})
	r.With(guard.Require(op)).Get(path, func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, reqPath, nil))
	return rec.Code
}

func TestGuard_Require(t *testing.T) {
	admin := domain.NewUser("Admin", "admin@example.com", "hash", domain.RoleAdmin)
	user := domain.NewUser("User", "user@example.com", "hash", domain.RoleUser)
	guard, _ := newTestGuard(nil)

	tests := []struct {
		name    string
		caller  *domain.User
		op      Operation
		path    string
		reqPath string
		want    int
	}{
		{"admin creates users", admin, OpUserCreate, "/users", "/users", http.StatusNoContent},
		{"user cannot create users", user, OpUserCreate, "/users", "/users", http.StatusForbidden},
		{"admin lists users", admin, OpUserList, "/users", "/users", http.StatusNoContent},
		{"user cannot list users", user, OpUserList, "/users", "/users", http.StatusForbidden},
		{"user reads own record", user, OpUserGet, "/users/{id}", "/users/" + user.ID, http.StatusNoContent},
		{"user cannot read others", user, OpUserGet, "/users/{id}", "/users/" + admin.ID, http.StatusForbidden},
		{"admin reads any record", admin, OpUserGet, "/users/{id}", "/users/" + user.ID, http.StatusNoContent},
		{"user updates own profile", user, OpUserUpdate, "/users/{id}", "/users/" + user.ID, http.StatusNoContent},
		{"user cannot update others", user, OpUserUpdate, "/users/{id}", "/users/" + admin.ID, http.StatusForbidden},
		{"user views own project", user, OpUserProject, "/users/{id}/project", "/users/" + user.ID + "/project", http.StatusNoContent},
		{"admin views any project", admin, OpUserProject, "/users/{id}/project", "/users/" + user.ID + "/project", http.StatusNoContent},
		{"user changes own password", user, OpChangePassword, "/password", "/password", http.StatusNoContent},
		{"user cannot view statistics", user, OpProjectStatistics, "/stats", "/stats", http.StatusForbidden},
		{"admin views statistics", admin, OpProjectStatistics, "/stats", "/stats", http.StatusNoContent},
		{"user lists projects", user, OpProjectList, "/projects", "/projects", http.StatusNoContent},
		{"user cannot assign projects", user, OpProjectAssign, "/assign", "/assign", http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := serveAs(t, guard, tt.caller, tt.op, tt.path, tt.reqPath)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestGuard_Require_Unauthenticated(t *testing.T) {
	guard, _ := newTestGuard(nil)

	r := chi.NewRouter()
	r.With(guard.Require(OpProjectList)).Get("/projects", func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/projects", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestGuard_Allows(t *testing.T) {
	admin := &Identity{User: domain.NewUser("Admin", "admin@example.com", "hash", domain.RoleAdmin)}
	user := &Identity{User: domain.NewUser("User", "user@example.com", "hash", domain.RoleUser)}
	guard, _ := newTestGuard(nil)

	// Full project control is admin-only.
	assert.True(t, guard.Allows(admin, OpProjectUpdate, ""))
	assert.False(t, guard.Allows(user, OpProjectUpdate, ""))

	// Completing a project passes only for the project's own assignee.
	assert.True(t, guard.Allows(user, OpProjectStatus, user.User.ID))
	assert.False(t, guard.Allows(user, OpProjectStatus, admin.User.ID))
	assert.True(t, guard.Allows(admin, OpProjectStatus, user.User.ID))
}
