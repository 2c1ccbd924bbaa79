// Package users exposes the user directory used by the invite flow.
package users

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/Vaibhav-59/CodeVerse/internal/store"
	"github.com/Vaibhav-59/CodeVerse/pkg/utils"
)

// Handler serves user directory requests.
type Handler struct {
	users store.Store
}

// New creates the users handler.
func New(users store.Store) *Handler {
	return &Handler{users: users}
}

// RegisterRoutes registers the user routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/users", h.handleList)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	list, err := h.users.ListUsers(r.Context())
	if err != nil {
		utils.RespondError(w, http.StatusInternalServerError, "internal error")
		return
	}
	utils.RespondJSON(w, http.StatusOK, list)
}
