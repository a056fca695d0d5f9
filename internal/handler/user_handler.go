package handler

import (
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/prn-tf/darius-projects/internal/auth"
	"github.com/prn-tf/darius-projects/internal/domain"
	"github.com/prn-tf/darius-projects/internal/service"
)

// UserHandler handles user management endpoints.
type UserHandler struct {
	userService    *service.UserService
	projectService *service.ProjectService
	maxUploadSize  int64
	logger         zerolog.Logger
}

func NewUserHandler(userService *service.UserService, projectService *service.ProjectService, maxUploadSize int64, logger zerolog.Logger) *UserHandler {
	return &UserHandler{
		userService:    userService,
		projectService: projectService,
		maxUploadSize:  maxUploadSize,
		logger:         logger.With().Str("handler", "user").Logger(),
	}
}

// RegisterRoutes registers user routes. The router applies the guard's
// Authenticate middleware before these.
func (h *UserHandler) RegisterRoutes(r chi.Router, guard *auth.Guard) {
	r.With(guard.Require(auth.OpUserCreate)).Post("/users", h.handleCreate)
	r.With(guard.Require(auth.OpUserList)).Get("/users", h.handleList)
	r.With(guard.Require(auth.OpUserGet)).Get("/users/{id}", h.handleGet)
	r.With(guard.Require(auth.OpUserUpdate)).Put("/users/{id}", h.handleUpdate)
	r.With(guard.Require(auth.OpUserDelete)).Delete("/users/{id}", h.handleDelete)
	r.With(guard.Require(auth.OpUserDelete)).Post("/users/{id}/deactivate", h.handleDeactivate)
	r.With(guard.Require(auth.OpUserUploadImage)).Post("/users/{id}/profile-image", h.handleUploadProfileImage)
	r.With(guard.Require(auth.OpUserProject)).Get("/users/{id}/project", h.handleAssignedProject)
}

type createUserRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

func (h *UserHandler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if err := decodeJSON(r, &req); err != nil {
		respondBadRequest(w, "invalid request body")
		return
	}

	role := domain.Role(req.Role)
	if req.Role == "" {
		role = domain.RoleUser
	}

	user, err := h.userService.Create(r.Context(), service.CreateUserInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
		Role:     role,
	})
	if err != nil {
		respondError(w, h.logger, err)
		return
	}

	respondJSON(w, http.StatusCreated, user)
}

type listUsersResponse struct {
	Users  []*domain.User `json:"users"`
	Total  int64          `json:"total"`
	Offset int            `json:"offset"`
	Limit  int            `json:"limit"`
}

func (h *UserHandler) handleList(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	input := service.ListUsersInput{
		ActiveOnly: query.Get("active") == "true",
		Offset:     queryInt(query.Get("offset"), 0),
		Limit:      queryInt(query.Get("limit"), 50),
	}
	if roleStr := query.Get("role"); roleStr != "" {
		role := domain.Role(roleStr)
		input.Role = &role
	}

	result, err := h.userService.List(r.Context(), input)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}

	respondJSON(w, http.StatusOK, listUsersResponse{
		Users:  result.Items,
		Total:  result.Total,
		Offset: result.Offset,
		Limit:  result.Limit,
	})
}

func (h *UserHandler) handleGet(w http.ResponseWriter, r *http.Request) {
	user, err := h.userService.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, user)
}

type updateUserRequest struct {
	Name  *string `json:"name"`
	Email *string `json:"email"`
	Role  *string `json:"role"`
}

func (h *UserHandler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	var req updateUserRequest
	if err := decodeJSON(r, &req); err != nil {
		respondBadRequest(w, "invalid request body")
		return
	}

	input := service.UpdateUserInput{
		Name:  req.Name,
		Email: req.Email,
	}
	if req.Role != nil {
		// Role changes are an admin operation regardless of profile
		// ownership.
		id, _ := auth.IdentityFrom(r.Context())
		if id == nil || id.User.Role != domain.RoleAdmin {
			respondJSON(w, http.StatusForbidden, errorResponse{Error: "permission denied"})
			return
		}
		role := domain.Role(*req.Role)
		input.Role = &role
	}

	user, err := h.userService.Update(r.Context(), chi.URLParam(r, "id"), input)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}

	respondJSON(w, http.StatusOK, user)
}

func (h *UserHandler) handleDelete(w http.ResponseWriter, r *http.Request) {
	if err := h.userService.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		respondError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *UserHandler) handleDeactivate(w http.ResponseWriter, r *http.Request) {
	if err := h.userService.Deactivate(r.Context(), chi.URLParam(r, "id")); err != nil {
		respondError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "deactivated"})
}

func (h *UserHandler) handleUploadProfileImage(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadSize)

	if err := r.ParseMultipartForm(h.maxUploadSize); err != nil {
		respondBadRequest(w, "invalid multipart form or image too large")
		return
	}

	file, header, err := r.FormFile("image")
	if err != nil {
		respondBadRequest(w, "missing image file")
		return
	}
	defer file.Close()

	content, err := io.ReadAll(file)
	if err != nil {
		respondBadRequest(w, "failed to read image")
		return
	}

	contentType := header.Header.Get("Content-Type")
	user, err := h.userService.UploadProfileImage(r.Context(), chi.URLParam(r, "id"), content, contentType)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}

	respondJSON(w, http.StatusOK, user)
}

func (h *UserHandler) handleAssignedProject(w http.ResponseWriter, r *http.Request) {
	project, err := h.projectService.GetByAssignedUser(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, project)
}

func queryInt(raw string, fallback int) int {
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return fallback
	}
	return n
}
