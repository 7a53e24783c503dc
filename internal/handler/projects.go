package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"calmap/internal/projects"
)

// ProjectsHandler serves user and project CRUD. The store is optional:
// without a configured database every endpoint answers 503.
type ProjectsHandler struct {
	store  *projects.Store
	logger *slog.Logger
}

func NewProjectsHandler(store *projects.Store, logger *slog.Logger) *ProjectsHandler {
	return &ProjectsHandler{store: store, logger: logger}
}

func (h *ProjectsHandler) available(w http.ResponseWriter) bool {
	if h.store == nil {
		respondError(w, http.StatusServiceUnavailable, "project store not configured")
		return false
	}
	return true
}

type createUserRequest struct {
	Username string `json:"username"`
}

func (h *ProjectsHandler) CreateUser(w http.ResponseWriter, r *http.Request) {
	if !h.available(w) {
		return
	}

	var req createUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	username := strings.TrimSpace(req.Username)
	if username == "" {
		respondError(w, http.StatusBadRequest, "username is required")
		return
	}

	user, err := h.store.CreateUser(r.Context(), username)
	if err != nil {
		if errors.Is(err, projects.ErrUsernameTaken) {
			respondError(w, http.StatusConflict, "username already exists")
			return
		}
		h.logger.Error("create user failed", "username", username, "error", err)
		respondError(w, http.StatusInternalServerError, "failed to create user")
		return
	}

	respondJSON(w, http.StatusCreated, user)
}

type usersResponse struct {
	Users      []projects.User `json:"users"`
	TotalUsers int             `json:"total_users"`
}

func (h *ProjectsHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	if !h.available(w) {
		return
	}

	users, err := h.store.Users(r.Context())
	if err != nil {
		h.logger.Error("list users failed", "error", err)
		respondError(w, http.StatusInternalServerError, "failed to list users")
		return
	}

	respondJSON(w, http.StatusOK, usersResponse{Users: users, TotalUsers: len(users)})
}

func (h *ProjectsHandler) SaveProject(w http.ResponseWriter, r *http.Request) {
	if !h.available(w) {
		return
	}

	var in projects.SaveProjectInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	in.Username = strings.TrimSpace(in.Username)
	if in.Username == "" {
		respondError(w, http.StatusBadRequest, "username is required")
		return
	}

	project, err := h.store.SaveProject(r.Context(), in)
	if err != nil {
		h.logger.Error("save project failed", "username", in.Username, "error", err)
		respondError(w, http.StatusInternalServerError, "failed to save project")
		return
	}

	respondJSON(w, http.StatusCreated, project)
}

type userProjectsResponse struct {
	Username      string             `json:"username"`
	Projects      []projects.Project `json:"projects"`
	TotalProjects int                `json:"total_projects"`
}

func (h *ProjectsHandler) UserProjects(w http.ResponseWriter, r *http.Request) {
	if !h.available(w) {
		return
	}

	username := r.PathValue("username")
	list, err := h.store.UserProjects(r.Context(), username)
	if err != nil {
		if errors.Is(err, projects.ErrUserNotFound) {
			respondError(w, http.StatusNotFound, "user not found")
			return
		}
		h.logger.Error("list projects failed", "username", username, "error", err)
		respondError(w, http.StatusInternalServerError, "failed to list projects")
		return
	}

	respondJSON(w, http.StatusOK, userProjectsResponse{
		Username:      username,
		Projects:      list,
		TotalProjects: len(list),
	})
}

func (h *ProjectsHandler) GetProject(w http.ResponseWriter, r *http.Request) {
	if !h.available(w) {
		return
	}

	id, err := strconv.Atoi(r.PathValue("id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid project id")
		return
	}

	project, err := h.store.GetProject(r.Context(), id)
	if err != nil {
		if errors.Is(err, projects.ErrProjectNotFound) {
			respondError(w, http.StatusNotFound, "project not found")
			return
		}
		h.logger.Error("get project failed", "project_id", id, "error", err)
		respondError(w, http.StatusInternalServerError, "failed to get project")
		return
	}

	respondJSON(w, http.StatusOK, project)
}

func (h *ProjectsHandler) DeleteProject(w http.ResponseWriter, r *http.Request) {
	if !h.available(w) {
		return
	}

	id, err := strconv.Atoi(r.PathValue("id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid project id")
		return
	}
	username := strings.TrimSpace(r.URL.Query().Get("username"))
	if username == "" {
		respondError(w, http.StatusBadRequest, "username is required")
		return
	}

	if err := h.store.DeleteProject(r.Context(), id, username); err != nil {
		if errors.Is(err, projects.ErrProjectNotFound) {
			respondError(w, http.StatusNotFound, "project not found or access denied")
			return
		}
		h.logger.Error("delete project failed", "project_id", id, "error", err)
		respondError(w, http.StatusInternalServerError, "failed to delete project")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
