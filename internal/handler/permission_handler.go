package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/prn-tf/darius-projects/internal/auth"
	"github.com/prn-tf/darius-projects/internal/domain"
	"github.com/prn-tf/darius-projects/internal/permission"
)

// PermissionHandler exposes permission introspection endpoints.
type PermissionHandler struct {
	engine *permission.Engine
	logger zerolog.Logger
}

func NewPermissionHandler(engine *permission.Engine, logger zerolog.Logger) *PermissionHandler {
	return &PermissionHandler{
		engine: engine,
		logger: logger.With().Str("handler", "permission").Logger(),
	}
}

// RegisterRoutes registers permission routes. The router applies the guard's
// Authenticate middleware before these.
func (h *PermissionHandler) RegisterRoutes(r chi.Router) {
	r.Get("/permissions", h.handleGrant)
	r.Get("/permissions/effective", h.handleEffective)
}

type grantResponse struct {
	Role        domain.Role         `json:"role"`
	Permissions []domain.Permission `json:"permissions"`
}

// handleGrant returns the requester's static role grant.
func (h *PermissionHandler) handleGrant(w http.ResponseWriter, r *http.Request) {
	id, ok := auth.IdentityFrom(r.Context())
	if !ok {
		respondJSON(w, http.StatusUnauthorized, errorResponse{Error: "authentication required"})
		return
	}

	respondJSON(w, http.StatusOK, grantResponse{
		Role:        id.User.Role,
		Permissions: h.engine.PermissionsFor(id.User.Role),
	})
}

type effectiveResponse struct {
	Role            domain.Role         `json:"role"`
	ResourceOwnerID string              `json:"resource_owner_id,omitempty"`
	Permissions     []domain.Permission `json:"permissions"`
}

// handleEffective returns the permissions that would pass an ownership-aware
// check against a resource owned by resource_owner_id.
func (h *PermissionHandler) handleEffective(w http.ResponseWriter, r *http.Request) {
	id, ok := auth.IdentityFrom(r.Context())
	if !ok {
		respondJSON(w, http.StatusUnauthorized, errorResponse{Error: "authentication required"})
		return
	}

	ownerID := r.URL.Query().Get("resource_owner_id")
	respondJSON(w, http.StatusOK, effectiveResponse{
		Role:            id.User.Role,
		ResourceOwnerID: ownerID,
		Permissions:     h.engine.Effective(id.User.Role, id.User.ID, ownerID),
	})
}
