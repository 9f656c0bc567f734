package handler

import (
	"net/http"

	"studio-management-api/internal/core"
	"studio-management-api/internal/middleware"
)

func (h *Handler) listUsers(w http.ResponseWriter, r *http.Request) {
	if !h.isAdmin(r) {
		forbidden(w)
		return
	}
	q := r.URL.Query()
	out, err := h.core.ListUsers(r.Context(), core.ListUsersFilter{
		Role:    q.Get("role"),
		Page:    atoi(q.Get("page")),
		PerPage: atoi(q.Get("perPage")),
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"users": out})
}

func (h *Handler) me(w http.ResponseWriter, r *http.Request) {
	d, err := h.core.GetUser(r.Context(), middleware.UserID(r.Context()))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (h *Handler) getUser(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if !h.isAdmin(r) && id != middleware.UserID(r.Context()) {
		h.writeError(w, core.ErrNotFound)
		return
	}
	d, err := h.core.GetUser(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (h *Handler) updateUser(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	admin := h.isAdmin(r)
	if !admin && id != middleware.UserID(r.Context()) {
		h.writeError(w, core.ErrNotFound)
		return
	}

	var body struct {
		Name     *string `json:"name"`
		Phone    *string `json:"phone"`
		Role     *string `json:"role"`
		Password *string `json:"password"`
	}
	if err := decode(r, &body); err != nil {
		badRequest(w, "invalid json")
		return
	}
	if body.Role != nil && !admin {
		forbidden(w)
		return
	}

	d, err := h.core.UpdateUser(r.Context(), id, core.UpdateUserInput{
		Name:     body.Name,
		Phone:    body.Phone,
		Role:     body.Role,
		Password: body.Password,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (h *Handler) deleteUser(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if !h.isAdmin(r) && id != middleware.UserID(r.Context()) {
		h.writeError(w, core.ErrNotFound)
		return
	}
	if err := h.core.DeleteUser(r.Context(), id); err != nil {
		h.writeError(w, err)
		return
	}
	// drop any sessions the removed account still had
	if err := h.store.DeleteUserTokens(r.Context(), id); err != nil {
		h.log.Warn("session cleanup failed", "user", id, "error", err)
	}
	w.WriteHeader(http.StatusNoContent)
}
