package auth

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/prn-tf/darius-projects/internal/domain"
	"github.com/prn-tf/darius-projects/internal/metrics"
	"github.com/prn-tf/darius-projects/internal/permission"
	"github.com/prn-tf/darius-projects/internal/service"
)

// Guard authenticates requests and enforces the operation policy table.
type Guard struct {
	authService *service.AuthService
	engine      *permission.Engine
	metrics     *metrics.Metrics
	logger      zerolog.Logger
}

func NewGuard(authService *service.AuthService, engine *permission.Engine, m *metrics.Metrics, logger zerolog.Logger) *Guard {
	return &Guard{
		authService: authService,
		engine:      engine,
		metrics:     m,
		logger:      logger.With().Str("component", "guard").Logger(),
	}
}

// Authenticate verifies the bearer token, loads the user and stores the
// identity in the request context. Requests without a valid token are
// rejected with 401.
func (g *Guard) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenStr, ok := bearerToken(r)
		if !ok {
			g.metrics.RecordTokenRejected("missing")
			writeError(w, http.StatusUnauthorized, "missing or malformed authorization header")
			return
		}

		user, _, err := g.authService.ValidateToken(r.Context(), tokenStr)
		if err != nil {
			g.metrics.RecordTokenRejected(rejectReason(err))
			writeError(w, http.StatusUnauthorized, "invalid or expired token")
			return
		}

		ctx := WithIdentity(r.Context(), &Identity{User: user})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Require enforces the policy registered for op. It must run after
// Authenticate.
func (g *Guard) Require(op Operation) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, ok := IdentityFrom(r.Context())
			if !ok {
				writeError(w, http.StatusUnauthorized, "authentication required")
				return
			}

			policy, ok := PolicyFor(op)
			if !ok {
				g.logger.Error().Str("operation", string(op)).Msg("no policy registered for operation")
				writeError(w, http.StatusForbidden, "permission denied")
				return
			}

			if !g.allowed(r, id, policy) {
				g.denied(id, op, policy)
				writeError(w, http.StatusForbidden, "permission denied")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// Allows reports whether the identity passes the policy for op against a
// resource owned by ownerID. Handlers use it for checks that depend on data
// loaded after routing, such as completing an assigned project.
func (g *Guard) Allows(id *Identity, op Operation, ownerID string) bool {
	policy, ok := PolicyFor(op)
	if !ok {
		return false
	}

	ctx := domain.PermissionContext{Requester: id.Requester()}
	if ownerID != "" {
		ctx.Resource = &domain.Resource{ID: ownerID, OwnerID: ownerID}
	}
	for _, perm := range policy.AnyOf {
		if g.engine.HasContextual(ctx, perm) {
			return true
		}
	}
	return false
}

func (g *Guard) allowed(r *http.Request, id *Identity, policy Policy) bool {
	if !policy.Contextual {
		for _, perm := range policy.AnyOf {
			if g.engine.Has(id.User.Role, perm) {
				return true
			}
		}
		return false
	}

	ctx := domain.PermissionContext{Requester: id.Requester()}
	if policy.OwnerParam != "" {
		if owner := chi.URLParam(r, policy.OwnerParam); owner != "" {
			ctx.Resource = &domain.Resource{ID: owner, OwnerID: owner}
		}
	}
	for _, perm := range policy.AnyOf {
		if g.engine.HasContextual(ctx, perm) {
			return true
		}
	}
	return false
}

func (g *Guard) denied(id *Identity, op Operation, policy Policy) {
	for _, perm := range policy.AnyOf {
		g.metrics.RecordPermissionDenial(string(perm))
	}
	g.logger.Warn().
		Str("user_id", id.User.ID).
		Str("role", string(id.User.Role)).
		Str("operation", string(op)).
		Msg("permission denied")
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", false
	}
	const prefix = "Bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return "", false
	}
	return strings.TrimSpace(header[len(prefix):]), true
}

func rejectReason(err error) string {
	switch {
	case errors.Is(err, domain.ErrTokenExpired):
		return "expired"
	case errors.Is(err, domain.ErrUserInactive):
		return "inactive"
	default:
		return "invalid"
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}
