// Package project exposes the REST surface of the project store.
package project

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/Vaibhav-59/CodeVerse/internal/middleware"
	projectmodel "github.com/Vaibhav-59/CodeVerse/internal/model/project"
	"github.com/Vaibhav-59/CodeVerse/internal/store"
	"github.com/Vaibhav-59/CodeVerse/pkg/utils"
)

// Handler serves project CRUD requests.
type Handler struct {
	projects store.Store
}

// New creates the project handler.
func New(projects store.Store) *Handler {
	return &Handler{projects: projects}
}

// RegisterRoutes registers the project routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/projects", h.handleCreate)
	r.Get("/projects/{projectID}", h.handleGet)
	r.Delete("/projects/{projectID}", h.handleDelete)
	r.Put("/projects/{projectID}/tree", h.handleUpdateTree)
	r.Post("/projects/{projectID}/users", h.handleAddUsers)
}

type createProjectRequest struct {
	Name string `json:"name"`
}

func (r createProjectRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Name, validation.Required, validation.Length(1, 100)),
	)
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	identity, ok := middleware.Identity(r.Context())
	if !ok {
		utils.RespondError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	var payload createProjectRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := payload.Validate(); err != nil {
		utils.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	proj, err := h.projects.CreateProject(r.Context(), payload.Name, identity)
	if err != nil {
		respondStoreError(w, err)
		return
	}

	utils.RespondJSON(w, http.StatusCreated, proj)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	proj, err := h.projects.GetProject(r.Context(), chi.URLParam(r, "projectID"))
	if err != nil {
		respondStoreError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, proj)
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	identity, ok := middleware.Identity(r.Context())
	if !ok {
		utils.RespondError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	err := h.projects.DeleteProject(r.Context(), chi.URLParam(r, "projectID"), identity.ID)
	if err != nil {
		respondStoreError(w, err)
		return
	}

	utils.RespondJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "project deleted",
	})
}

type updateTreeRequest struct {
	FileTree projectmodel.FileTree `json:"fileTree"`
}

func (r updateTreeRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.FileTree, validation.NotNil),
	)
}

func (h *Handler) handleUpdateTree(w http.ResponseWriter, r *http.Request) {
	identity, ok := middleware.Identity(r.Context())
	if !ok {
		utils.RespondError(w, http.StatusUnauthorized, "authentication required")
		return
	}
	projectID := chi.URLParam(r, "projectID")

	proj, err := h.projects.GetProject(r.Context(), projectID)
	if err != nil {
		respondStoreError(w, err)
		return
	}
	if !proj.HasMember(identity.ID) {
		utils.RespondError(w, http.StatusForbidden, "not a member of this project")
		return
	}

	var payload updateTreeRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := payload.Validate(); err != nil {
		utils.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.projects.UpdateFileTree(r.Context(), projectID, payload.FileTree); err != nil {
		respondStoreError(w, err)
		return
	}

	utils.RespondJSON(w, http.StatusOK, map[string]string{"status": "saved"})
}

type addUsersRequest struct {
	Users []string `json:"users"`
}

func (r addUsersRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Users, validation.Required, validation.Length(1, 50)),
	)
}

func (h *Handler) handleAddUsers(w http.ResponseWriter, r *http.Request) {
	identity, ok := middleware.Identity(r.Context())
	if !ok {
		utils.RespondError(w, http.StatusUnauthorized, "authentication required")
		return
	}
	projectID := chi.URLParam(r, "projectID")

	proj, err := h.projects.GetProject(r.Context(), projectID)
	if err != nil {
		respondStoreError(w, err)
		return
	}
	if !proj.HasMember(identity.ID) {
		utils.RespondError(w, http.StatusForbidden, "not a member of this project")
		return
	}

	var payload addUsersRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := payload.Validate(); err != nil {
		utils.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	updated, err := h.projects.AddUsers(r.Context(), projectID, payload.Users)
	if err != nil {
		respondStoreError(w, err)
		return
	}

	utils.RespondJSON(w, http.StatusOK, updated)
}

func respondStoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrProjectNotFound):
		utils.RespondError(w, http.StatusNotFound, "project not found")
	case errors.Is(err, store.ErrUserNotFound):
		utils.RespondError(w, http.StatusBadRequest, "unknown user")
	case errors.Is(err, store.ErrNotMember):
		utils.RespondError(w, http.StatusForbidden, "not a member of this project")
	case errors.Is(err, store.ErrDuplicateName):
		utils.RespondError(w, http.StatusConflict, "project name already taken")
	default:
		utils.RespondError(w, http.StatusInternalServerError, "internal error")
	}
}
