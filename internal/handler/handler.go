// Package handler is the REST surface over the core engine: request
// decoding, ownership checks, and mapping of core errors to HTTP statuses.
// All entity mutations go through core; nothing here touches the store
// except the auth session state.
package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"studio-management-api/internal/core"
	"studio-management-api/internal/logger"
	"studio-management-api/internal/middleware"
	"studio-management-api/internal/model"
	"studio-management-api/internal/store"
)

type Handler struct {
	core   *core.Service
	store  *store.Store
	secret string
	log    *logger.Logger
}

func New(c *core.Service, st *store.Store, secret string, log *logger.Logger) *Handler {
	return &Handler{core: c, store: st, secret: secret, log: log}
}

func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /auth/register", h.register)
	mux.HandleFunc("POST /auth/login", h.login)
	mux.HandleFunc("POST /auth/refresh", h.refresh)
	mux.HandleFunc("POST /auth/logout", h.logout)

	mux.HandleFunc("POST /appointments", h.createAppointment)
	mux.HandleFunc("GET /appointments", h.listAppointments)
	mux.HandleFunc("GET /appointments/{id}", h.getAppointment)
	mux.HandleFunc("PATCH /appointments/{id}", h.updateAppointment)
	mux.HandleFunc("DELETE /appointments/{id}", h.deleteAppointment)

	mux.HandleFunc("POST /projects", h.createProject)
	mux.HandleFunc("GET /projects", h.listProjects)
	mux.HandleFunc("GET /projects/{id}", h.getProject)
	mux.HandleFunc("PATCH /projects/{id}", h.updateProject)
	mux.HandleFunc("DELETE /projects/{id}", h.deleteProject)

	mux.HandleFunc("GET /users", h.listUsers)
	mux.HandleFunc("GET /users/{id}", h.getUser)
	mux.HandleFunc("PATCH /users/{id}", h.updateUser)
	mux.HandleFunc("DELETE /users/{id}", h.deleteUser)
	mux.HandleFunc("GET /me", h.me)

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func (h *Handler) isAdmin(r *http.Request) bool {
	return model.Role(middleware.Role(r.Context())).IsAdmin()
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func decode(r *http.Request, v any) error {
	return json.NewDecoder(r.Body).Decode(v)
}

// writeError maps core errors onto HTTP statuses. Anything unrecognized is
// logged and hidden behind a 500.
func (h *Handler) writeError(w http.ResponseWriter, err error) {
	var ve *core.ValidationError
	switch {
	case errors.As(err, &ve):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": ve.Error(), "field": ve.Field})
	case errors.Is(err, core.ErrInvalidIdentifier),
		errors.Is(err, core.ErrIdentityRequired),
		errors.Is(err, core.ErrProjectRequired):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	case errors.Is(err, core.ErrNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
	case errors.Is(err, core.ErrSlotConflict):
		writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error(), "code": "slot_conflict"})
	case errors.Is(err, core.ErrEmailTaken):
		// don't reveal whether the email exists beyond the conflict itself
		writeJSON(w, http.StatusConflict, map[string]string{"error": "registration failed"})
	default:
		h.log.Error("internal error", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
	}
}

func badRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, map[string]string{"error": msg})
}

func forbidden(w http.ResponseWriter) {
	writeJSON(w, http.StatusForbidden, map[string]string{"error": "forbidden"})
}
