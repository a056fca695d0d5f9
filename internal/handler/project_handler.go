package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/prn-tf/darius-projects/internal/auth"
	"github.com/prn-tf/darius-projects/internal/domain"
	"github.com/prn-tf/darius-projects/internal/service"
)

// ProjectHandler handles project management endpoints.
type ProjectHandler struct {
	projectService *service.ProjectService
	guard          *auth.Guard
	logger         zerolog.Logger
}

func NewProjectHandler(projectService *service.ProjectService, guard *auth.Guard, logger zerolog.Logger) *ProjectHandler {
	return &ProjectHandler{
		projectService: projectService,
		guard:          guard,
		logger:         logger.With().Str("handler", "project").Logger(),
	}
}

// RegisterRoutes registers project routes. The router applies the guard's
// Authenticate middleware before these.
func (h *ProjectHandler) RegisterRoutes(r chi.Router, guard *auth.Guard) {
	r.With(guard.Require(auth.OpProjectCreate)).Post("/projects", h.handleCreate)
	r.With(guard.Require(auth.OpProjectList)).Get("/projects", h.handleList)
	r.With(guard.Require(auth.OpProjectStatistics)).Get("/projects/statistics", h.handleStatistics)
	r.With(guard.Require(auth.OpProjectGet)).Get("/projects/{id}", h.handleGet)
	r.With(guard.Require(auth.OpProjectUpdate)).Put("/projects/{id}", h.handleUpdate)
	r.With(guard.Require(auth.OpProjectDelete)).Delete("/projects/{id}", h.handleDelete)
	r.With(guard.Require(auth.OpProjectAssign)).Post("/projects/{id}/assign", h.handleAssign)
	r.With(guard.Require(auth.OpProjectUnassign)).Post("/projects/{id}/unassign", h.handleUnassign)
	r.With(guard.Require(auth.OpProjectStatus)).Post("/projects/{id}/status", h.handleUpdateStatus)
}

type createProjectRequest struct {
	Name           string    `json:"name"`
	Description    *string   `json:"description"`
	EndDate        time.Time `json:"end_date"`
	AssignedUserID *string   `json:"assigned_user_id"`
}

func (h *ProjectHandler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req createProjectRequest
	if err := decodeJSON(r, &req); err != nil {
		respondBadRequest(w, "invalid request body")
		return
	}

	project, err := h.projectService.Create(r.Context(), service.CreateProjectInput{
		Name:           req.Name,
		Description:    req.Description,
		EndDate:        req.EndDate,
		AssignedUserID: req.AssignedUserID,
	})
	if err != nil {
		respondError(w, h.logger, err)
		return
	}

	respondJSON(w, http.StatusCreated, project)
}

type listProjectsResponse struct {
	Projects []*domain.Project `json:"projects"`
	Total    int64             `json:"total"`
	Offset   int               `json:"offset"`
	Limit    int               `json:"limit"`
}

func (h *ProjectHandler) handleList(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	input := service.ListProjectsInput{
		Unassigned: query.Get("unassigned") == "true",
		Overdue:    query.Get("overdue") == "true",
		Search:     query.Get("search"),
		Offset:     queryInt(query.Get("offset"), 0),
		Limit:      queryInt(query.Get("limit"), 50),
	}
	if statusStr := query.Get("status"); statusStr != "" {
		status := domain.ProjectStatus(statusStr)
		if !status.IsValid() {
			respondBadRequest(w, "invalid status filter")
			return
		}
		input.Status = &status
	}
	if userID := query.Get("assigned_user_id"); userID != "" {
		input.AssignedUserID = &userID
	}

	result, err := h.projectService.List(r.Context(), input)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}

	respondJSON(w, http.StatusOK, listProjectsResponse{
		Projects: result.Items,
		Total:    result.Total,
		Offset:   result.Offset,
		Limit:    result.Limit,
	})
}

func (h *ProjectHandler) handleGet(w http.ResponseWriter, r *http.Request) {
	project, err := h.projectService.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, project)
}

type updateProjectRequest struct {
	Name        *string    `json:"name"`
	Description *string    `json:"description"`
	EndDate     *time.Time `json:"end_date"`
	Status      *string    `json:"status"`
}

func (h *ProjectHandler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	var req updateProjectRequest
	if err := decodeJSON(r, &req); err != nil {
		respondBadRequest(w, "invalid request body")
		return
	}

	input := service.UpdateProjectInput{
		Name:        req.Name,
		Description: req.Description,
		EndDate:     req.EndDate,
	}
	if req.Status != nil {
		status := domain.ProjectStatus(*req.Status)
		if !status.IsValid() {
			respondBadRequest(w, "invalid status")
			return
		}
		input.Status = &status
	}

	project, err := h.projectService.Update(r.Context(), chi.URLParam(r, "id"), input)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}

	respondJSON(w, http.StatusOK, project)
}

func (h *ProjectHandler) handleDelete(w http.ResponseWriter, r *http.Request) {
	if err := h.projectService.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		respondError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type assignRequest struct {
	UserID string `json:"user_id"`
}

func (h *ProjectHandler) handleAssign(w http.ResponseWriter, r *http.Request) {
	var req assignRequest
	if err := decodeJSON(r, &req); err != nil {
		respondBadRequest(w, "invalid request body")
		return
	}
	if req.UserID == "" {
		respondBadRequest(w, "user_id is required")
		return
	}

	project, err := h.projectService.Assign(r.Context(), chi.URLParam(r, "id"), req.UserID)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}

	respondJSON(w, http.StatusOK, project)
}

func (h *ProjectHandler) handleUnassign(w http.ResponseWriter, r *http.Request) {
	project, err := h.projectService.Unassign(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, project)
}

type updateStatusRequest struct {
	Status string `json:"status"`
}

func (h *ProjectHandler) handleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	var req updateStatusRequest
	if err := decodeJSON(r, &req); err != nil {
		respondBadRequest(w, "invalid request body")
		return
	}

	next := domain.ProjectStatus(req.Status)
	if !next.IsValid() {
		respondBadRequest(w, "invalid status")
		return
	}

	projectID := chi.URLParam(r, "id")
	id, _ := auth.IdentityFrom(r.Context())

	// Without full status control the requester may only complete the
	// project assigned to them. Ownership is known only after loading the
	// project, so the route policy alone cannot decide this.
	if !h.guard.Allows(id, auth.OpProjectUpdate, "") {
		project, err := h.projectService.Get(r.Context(), projectID)
		if err != nil {
			respondError(w, h.logger, err)
			return
		}

		owner := ""
		if project.AssignedUserID != nil {
			owner = *project.AssignedUserID
		}
		if next != domain.StatusCompleted || owner == "" || !h.guard.Allows(id, auth.OpProjectStatus, owner) {
			respondJSON(w, http.StatusForbidden, errorResponse{Error: "permission denied"})
			return
		}
	}

	project, err := h.projectService.UpdateStatus(r.Context(), projectID, next)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}

	respondJSON(w, http.StatusOK, project)
}

func (h *ProjectHandler) handleStatistics(w http.ResponseWriter, r *http.Request) {
	stats, err := h.projectService.Statistics(r.Context())
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, stats)
}
