package handler

import (
	"net/http"

	"studio-management-api/internal/core"
	"studio-management-api/internal/middleware"
)

type projectBody struct {
	Name     *string  `json:"name"`
	Status   *string  `json:"status"`
	User     *string  `json:"user"`
	Progress *int     `json:"progress"`
	Cost     *float64 `json:"cost"`
	Notes    *string  `json:"notes"`
}

func (h *Handler) createProject(w http.ResponseWriter, r *http.Request) {
	if !h.isAdmin(r) {
		forbidden(w)
		return
	}
	var body projectBody
	if err := decode(r, &body); err != nil {
		badRequest(w, "invalid json")
		return
	}
	in := core.CreateProjectInput{
		Name:   str(body.Name),
		Status: str(body.Status),
		UserID: str(body.User),
		Notes:  str(body.Notes),
	}
	if body.Progress != nil {
		in.Progress = *body.Progress
	}
	if body.Cost != nil {
		in.Cost = *body.Cost
	}

	d, err := h.core.CreateProject(r.Context(), in)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, d)
}

func (h *Handler) listProjects(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := core.ListProjectsFilter{
		Status:  q.Get("status"),
		Page:    atoi(q.Get("page")),
		PerPage: atoi(q.Get("perPage")),
	}
	if h.isAdmin(r) {
		f.UserID = q.Get("user")
	} else {
		f.UserID = middleware.UserID(r.Context())
	}

	out, err := h.core.ListProjects(r.Context(), f)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"projects": out})
}

func (h *Handler) getProject(w http.ResponseWriter, r *http.Request) {
	d, err := h.core.GetProject(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	if !h.isAdmin(r) && (d.User == nil || *d.User != middleware.UserID(r.Context())) {
		h.writeError(w, core.ErrNotFound)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (h *Handler) updateProject(w http.ResponseWriter, r *http.Request) {
	if !h.isAdmin(r) {
		forbidden(w)
		return
	}
	var body projectBody
	if err := decode(r, &body); err != nil {
		badRequest(w, "invalid json")
		return
	}
	d, err := h.core.UpdateProject(r.Context(), r.PathValue("id"), core.UpdateProjectInput{
		Name:     body.Name,
		Status:   body.Status,
		UserID:   body.User,
		Progress: body.Progress,
		Cost:     body.Cost,
		Notes:    body.Notes,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (h *Handler) deleteProject(w http.ResponseWriter, r *http.Request) {
	if !h.isAdmin(r) {
		forbidden(w)
		return
	}
	if err := h.core.DeleteProject(r.Context(), r.PathValue("id")); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
