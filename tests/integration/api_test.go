// Package integration exercises the full HTTP API against an in-memory
// SQLite database, from registration through project assignment and
// completion.
package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/prn-tf/darius-projects/internal/auth"
	"github.com/prn-tf/darius-projects/internal/cache/memory"
	"github.com/prn-tf/darius-projects/internal/domain"
	"github.com/prn-tf/darius-projects/internal/handler"
	"github.com/prn-tf/darius-projects/internal/lock"
	"github.com/prn-tf/darius-projects/internal/media"
	"github.com/prn-tf/darius-projects/internal/metrics"
	"github.com/prn-tf/darius-projects/internal/notify"
	"github.com/prn-tf/darius-projects/internal/permission"
	"github.com/prn-tf/darius-projects/internal/pkg/crypto"
	"github.com/prn-tf/darius-projects/internal/repository/sqlite"
	"github.com/prn-tf/darius-projects/internal/service"
	"github.com/prn-tf/darius-projects/internal/token"
)

const (
	adminEmail    = "admin@example.com"
	adminPassword = "admin-password"
)

type testAPI struct {
	server *httptest.Server
	users  *service.UserService
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()

	ctx := context.Background()
	logger := zerolog.Nop()

	db, err := sqlite.NewDB(ctx, sqlite.DefaultConfig(":memory:"), logger)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, db.Migrate(ctx))

	userRepo := sqlite.NewUserRepository(db)
	projectRepo := sqlite.NewProjectRepository(db)
	txManager := sqlite.NewTxManager(db)

	cache := memory.NewCache()
	t.Cleanup(cache.Stop)
	locker := lock.NewMemoryLocker()
	t.Cleanup(locker.Stop)
	notifier := notify.NewNoopNotifier()
	m := metrics.New()

	tokens := token.NewService("integration-secret", time.Hour)
	hasher := crypto.NewPasswordHasher(bcrypt.MinCost)
	engine := permission.NewEngine()

	authService := service.NewAuthService(userRepo, tokens, hasher, notifier, cache, m, domain.RoleUser, logger)
	userService := service.NewUserService(userRepo, projectRepo, txManager, locker, hasher, media.NewNoopStorage(), logger)
	projectService := service.NewProjectService(projectRepo, userRepo, txManager, locker, notifier, cache, m, logger)

	guard := auth.NewGuard(authService, engine, m, logger)

	router := handler.NewRouter(handler.RouterConfig{
		AuthHandler:       handler.NewAuthHandler(authService, engine, logger),
		UserHandler:       handler.NewUserHandler(userService, projectService, 5<<20, logger),
		ProjectHandler:    handler.NewProjectHandler(projectService, guard, logger),
		PermissionHandler: handler.NewPermissionHandler(engine, logger),
		Guard:             guard,
		Metrics:           m,
		Logger:            logger,
	})

	server := httptest.NewServer(router.Handler())
	t.Cleanup(server.Close)

	_, err = userService.Create(ctx, service.CreateUserInput{
		Name:     "Admin",
		Email:    adminEmail,
		Password: adminPassword,
		Role:     domain.RoleAdmin,
	})
	require.NoError(t, err)

	return &testAPI{server: server, users: userService}
}

func (api *testAPI) request(t *testing.T, method, path, bearer string, body interface{}) (*http.Response, []byte) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, api.server.URL+path, reader)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := api.server.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, data
}

func (api *testAPI) login(t *testing.T, email, password string) (string, *domain.User) {
	t.Helper()

	resp, body := api.request(t, http.MethodPost, "/api/auth/login", "", map[string]string{
		"email":    email,
		"password": password,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode, "login failed: %s", body)

	var out struct {
		User        *domain.User `json:"user"`
		AccessToken string       `json:"access_token"`
	}
	require.NoError(t, json.Unmarshal(body, &out))
	return out.AccessToken, out.User
}

func (api *testAPI) register(t *testing.T, name, email, password string) (string, *domain.User) {
	t.Helper()

	resp, body := api.request(t, http.MethodPost, "/api/auth/register", "", map[string]string{
		"name":     name,
		"email":    email,
		"password": password,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, "register failed: %s", body)

	var out struct {
		User        *domain.User `json:"user"`
		AccessToken string       `json:"access_token"`
	}
	require.NoError(t, json.Unmarshal(body, &out))
	return out.AccessToken, out.User
}

func TestHealth(t *testing.T) {
	api := newTestAPI(t)

	resp, _ := api.request(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestAuthFlow(t *testing.T) {
	api := newTestAPI(t)

	userToken, user := api.register(t, "Regular User", "user@example.com", "user-password")
	assert.Equal(t, domain.RoleUser, user.Role)

	t.Run("duplicate registration", func(t *testing.T) {
		resp, _ := api.request(t, http.MethodPost, "/api/auth/register", "", map[string]string{
			"name":     "Copycat",
			"email":    "user@example.com",
			"password": "user-password",
		})
		assert.Equal(t, http.StatusConflict, resp.StatusCode)
	})

	t.Run("wrong password", func(t *testing.T) {
		resp, _ := api.request(t, http.MethodPost, "/api/auth/login", "", map[string]string{
			"email":    "user@example.com",
			"password": "wrong",
		})
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("me reflects role grant", func(t *testing.T) {
		resp, body := api.request(t, http.MethodGet, "/api/auth/me", userToken, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var out struct {
			User        *domain.User        `json:"user"`
			Permissions []domain.Permission `json:"permissions"`
		}
		require.NoError(t, json.Unmarshal(body, &out))
		assert.Equal(t, user.ID, out.User.ID)
		assert.Contains(t, out.Permissions, domain.PermViewOwnProject)
		assert.NotContains(t, out.Permissions, domain.PermManageSystem)
	})

	t.Run("refresh issues a new token", func(t *testing.T) {
		resp, body := api.request(t, http.MethodPost, "/api/auth/refresh", userToken, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var out struct {
			AccessToken string `json:"access_token"`
		}
		require.NoError(t, json.Unmarshal(body, &out))
		assert.NotEmpty(t, out.AccessToken)
	})

	t.Run("change password and re-login", func(t *testing.T) {
		resp, _ := api.request(t, http.MethodPost, "/api/auth/change-password", userToken, map[string]string{
			"current_password": "user-password",
			"new_password":     "new-user-password",
		})
		require.Equal(t, http.StatusOK, resp.StatusCode)

		api.login(t, "user@example.com", "new-user-password")
	})

	t.Run("no token", func(t *testing.T) {
		resp, _ := api.request(t, http.MethodGet, "/api/auth/me", "", nil)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})
}

func TestProjectLifecycle(t *testing.T) {
	api := newTestAPI(t)
	adminToken, _ := api.login(t, adminEmail, adminPassword)
	userToken, user := api.register(t, "Worker", "worker@example.com", "worker-password")

	endDate := time.Now().Add(7 * 24 * time.Hour).UTC().Format(time.RFC3339)

	var project domain.Project
	t.Run("admin creates a project", func(t *testing.T) {
		resp, body := api.request(t, http.MethodPost, "/api/projects", adminToken, map[string]interface{}{
			"name":     "Launch Checklist",
			"end_date": endDate,
		})
		require.Equal(t, http.StatusCreated, resp.StatusCode, "create failed: %s", body)
		require.NoError(t, json.Unmarshal(body, &project))
		assert.Equal(t, domain.StatusNotStarted, project.Status)
	})

	t.Run("regular user cannot create projects", func(t *testing.T) {
		resp, _ := api.request(t, http.MethodPost, "/api/projects", userToken, map[string]interface{}{
			"name":     "Rogue Project",
			"end_date": endDate,
		})
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	})

	t.Run("admin assigns the project and it starts", func(t *testing.T) {
		resp, body := api.request(t, http.MethodPost, "/api/projects/"+project.ID+"/assign", adminToken, map[string]string{
			"user_id": user.ID,
		})
		require.Equal(t, http.StatusOK, resp.StatusCode, "assign failed: %s", body)

		var got domain.Project
		require.NoError(t, json.Unmarshal(body, &got))
		require.NotNil(t, got.AssignedUserID)
		assert.Equal(t, user.ID, *got.AssignedUserID)
		assert.Equal(t, domain.StatusInProgress, got.Status)
	})

	t.Run("second assignment conflicts", func(t *testing.T) {
		_, other := api.register(t, "Other", "other@example.com", "other-password")
		resp, _ := api.request(t, http.MethodPost, "/api/projects/"+project.ID+"/assign", adminToken, map[string]string{
			"user_id": other.ID,
		})
		assert.Equal(t, http.StatusConflict, resp.StatusCode)
	})

	t.Run("second project for the same user conflicts", func(t *testing.T) {
		resp, body := api.request(t, http.MethodPost, "/api/projects", adminToken, map[string]interface{}{
			"name":             "Second Project",
			"end_date":         endDate,
			"assigned_user_id": user.ID,
		})
		assert.Equal(t, http.StatusConflict, resp.StatusCode, "expected conflict, got: %s", body)
	})

	t.Run("assignee sees the project through their user", func(t *testing.T) {
		resp, body := api.request(t, http.MethodGet, "/api/users/"+user.ID+"/project", userToken, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var got domain.Project
		require.NoError(t, json.Unmarshal(body, &got))
		assert.Equal(t, project.ID, got.ID)
	})

	t.Run("assignee may only complete", func(t *testing.T) {
		resp, _ := api.request(t, http.MethodPost, "/api/projects/"+project.ID+"/status", userToken, map[string]string{
			"status": "CANCELLED",
		})
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	})

	t.Run("outsider cannot complete it", func(t *testing.T) {
		outsiderToken, _ := api.register(t, "Outsider", "outsider@example.com", "outsider-password")
		resp, _ := api.request(t, http.MethodPost, "/api/projects/"+project.ID+"/status", outsiderToken, map[string]string{
			"status": "COMPLETED",
		})
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	})

	t.Run("assignee completes it", func(t *testing.T) {
		resp, body := api.request(t, http.MethodPost, "/api/projects/"+project.ID+"/status", userToken, map[string]string{
			"status": "COMPLETED",
		})
		require.Equal(t, http.StatusOK, resp.StatusCode, "complete failed: %s", body)

		var got domain.Project
		require.NoError(t, json.Unmarshal(body, &got))
		assert.Equal(t, domain.StatusCompleted, got.Status)
		assert.NotNil(t, got.CompletedAt)
	})

	t.Run("terminal state rejects further transitions", func(t *testing.T) {
		resp, _ := api.request(t, http.MethodPost, "/api/projects/"+project.ID+"/status", adminToken, map[string]string{
			"status": "IN_PROGRESS",
		})
		assert.Equal(t, http.StatusConflict, resp.StatusCode)
	})

	t.Run("statistics are admin only", func(t *testing.T) {
		resp, _ := api.request(t, http.MethodGet, "/api/projects/statistics", userToken, nil)
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)

		resp, body := api.request(t, http.MethodGet, "/api/projects/statistics", adminToken, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var stats domain.ProjectStats
		require.NoError(t, json.Unmarshal(body, &stats))
		assert.Equal(t, int64(1), stats.Total)
		assert.Equal(t, int64(1), stats.Completed)
	})
}

func TestConcurrentAssignment(t *testing.T) {
	api := newTestAPI(t)
	adminToken, _ := api.login(t, adminEmail, adminPassword)
	_, first := api.register(t, "First", "first@example.com", "first-password")
	_, second := api.register(t, "Second", "second@example.com", "second-password")

	endDate := time.Now().Add(7 * 24 * time.Hour).UTC().Format(time.RFC3339)
	resp, body := api.request(t, http.MethodPost, "/api/projects", adminToken, map[string]interface{}{
		"name":     "Contested Project",
		"end_date": endDate,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, "create failed: %s", body)

	var project domain.Project
	require.NoError(t, json.Unmarshal(body, &project))

	// Both assignments race for the same project. Failures inside the
	// goroutines surface as status code 0 and fail the comparison below.
	codes := make(chan int, 2)
	var wg sync.WaitGroup
	for _, userID := range []string{first.ID, second.ID} {
		wg.Add(1)
		go func(userID string) {
			defer wg.Done()
			payload, err := json.Marshal(map[string]string{"user_id": userID})
			if err != nil {
				codes <- 0
				return
			}
			req, err := http.NewRequest(http.MethodPost, api.server.URL+"/api/projects/"+project.ID+"/assign", bytes.NewReader(payload))
			if err != nil {
				codes <- 0
				return
			}
			req.Header.Set("Content-Type", "application/json")
			req.Header.Set("Authorization", "Bearer "+adminToken)

			res, err := api.server.Client().Do(req)
			if err != nil {
				codes <- 0
				return
			}
			res.Body.Close()
			codes <- res.StatusCode
		}(userID)
	}
	wg.Wait()
	close(codes)

	var got []int
	for code := range codes {
		got = append(got, code)
	}
	sort.Ints(got)
	assert.Equal(t, []int{http.StatusOK, http.StatusConflict}, got)

	// Exactly one pairing survives: the project is running, held by one of
	// the two contenders, and the other holds nothing.
	resp, body = api.request(t, http.MethodGet, "/api/projects/"+project.ID, adminToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var stored domain.Project
	require.NoError(t, json.Unmarshal(body, &stored))
	require.NotNil(t, stored.AssignedUserID)
	assert.Contains(t, []string{first.ID, second.ID}, *stored.AssignedUserID)
	assert.Equal(t, domain.StatusInProgress, stored.Status)

	loser := first.ID
	if *stored.AssignedUserID == first.ID {
		loser = second.ID
	}
	resp, _ = api.request(t, http.MethodGet, "/api/users/"+loser+"/project", adminToken, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestUserAccessControl(t *testing.T) {
	api := newTestAPI(t)
	adminToken, _ := api.login(t, adminEmail, adminPassword)
	userToken, user := api.register(t, "First", "first@example.com", "first-password")
	_, other := api.register(t, "Second", "second@example.com", "second-password")

	t.Run("user reads own record", func(t *testing.T) {
		resp, _ := api.request(t, http.MethodGet, "/api/users/"+user.ID, userToken, nil)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})

	t.Run("user cannot read another record", func(t *testing.T) {
		resp, _ := api.request(t, http.MethodGet, "/api/users/"+other.ID, userToken, nil)
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	})

	t.Run("user cannot list users", func(t *testing.T) {
		resp, _ := api.request(t, http.MethodGet, "/api/users", userToken, nil)
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	})

	t.Run("admin lists users", func(t *testing.T) {
		resp, body := api.request(t, http.MethodGet, "/api/users", adminToken, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var out struct {
			Total int64 `json:"total"`
		}
		require.NoError(t, json.Unmarshal(body, &out))
		assert.Equal(t, int64(3), out.Total)
	})

	t.Run("user updates own name", func(t *testing.T) {
		resp, body := api.request(t, http.MethodPut, "/api/users/"+user.ID, userToken, map[string]string{
			"name": "First Renamed",
		})
		require.Equal(t, http.StatusOK, resp.StatusCode, "update failed: %s", body)
	})

	t.Run("user cannot change own role", func(t *testing.T) {
		resp, _ := api.request(t, http.MethodPut, "/api/users/"+user.ID, userToken, map[string]string{
			"role": "ADMIN",
		})
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	})

	t.Run("admin promotes a user", func(t *testing.T) {
		resp, body := api.request(t, http.MethodPut, "/api/users/"+other.ID, adminToken, map[string]string{
			"role": "ADMIN",
		})
		require.Equal(t, http.StatusOK, resp.StatusCode, "promote failed: %s", body)

		var got domain.User
		require.NoError(t, json.Unmarshal(body, &got))
		assert.Equal(t, domain.RoleAdmin, got.Role)
	})

	t.Run("deactivated user loses access", func(t *testing.T) {
		resp, _ := api.request(t, http.MethodPost, fmt.Sprintf("/api/users/%s/deactivate", user.ID), adminToken, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		resp, _ = api.request(t, http.MethodGet, "/api/auth/me", userToken, nil)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})
}

func TestPasswordResetFlow(t *testing.T) {
	api := newTestAPI(t)
	api.register(t, "Forgetful", "forgetful@example.com", "old-password")

	// The HTTP response never exposes the token; it travels by email. The
	// endpoint must still answer identically for unknown addresses.
	resp, body := api.request(t, http.MethodPost, "/api/auth/forgot-password", "", map[string]string{
		"email": "forgetful@example.com",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp2, body2 := api.request(t, http.MethodPost, "/api/auth/forgot-password", "", map[string]string{
		"email": "unknown@example.com",
	})
	require.Equal(t, http.StatusOK, resp2.StatusCode)
	assert.JSONEq(t, string(body), string(body2))

	// A made-up token is rejected.
	resp3, _ := api.request(t, http.MethodPost, "/api/auth/reset-password", "", map[string]string{
		"token":        "not-a-real-token",
		"new_password": "whatever-else",
	})
	assert.Equal(t, http.StatusUnauthorized, resp3.StatusCode)
}
