package handler

import (
	"net/http"
	"strconv"

	"studio-management-api/internal/core"
	"studio-management-api/internal/middleware"
)

type appointmentBody struct {
	Type       *string `json:"type"`
	Date       *string `json:"date"`
	Time       *string `json:"time"`
	Status     *string `json:"status"`
	User       *string `json:"user"`
	GuestName  *string `json:"guestName"`
	GuestEmail *string `json:"guestEmail"`
	GuestPhone *string `json:"guestPhone"`
	Project    *string `json:"project"`
	Notes      *string `json:"notes"`
}

func str(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

func (h *Handler) createAppointment(w http.ResponseWriter, r *http.Request) {
	var body appointmentBody
	if err := decode(r, &body); err != nil {
		badRequest(w, "invalid json")
		return
	}

	in := core.CreateAppointmentInput{
		Type:       str(body.Type),
		Date:       str(body.Date),
		Time:       str(body.Time),
		Status:     str(body.Status),
		UserID:     str(body.User),
		GuestName:  str(body.GuestName),
		GuestEmail: str(body.GuestEmail),
		GuestPhone: str(body.GuestPhone),
		ProjectID:  str(body.Project),
		Notes:      str(body.Notes),
	}

	// authenticated clients book for themselves; only admins book on behalf
	// of other users. Unauthenticated requests are guest bookings.
	uid := middleware.UserID(r.Context())
	if uid != "" && !h.isAdmin(r) {
		in.UserID = uid
		in.GuestName, in.GuestEmail, in.GuestPhone = "", "", ""
	}

	d, err := h.core.CreateAppointment(r.Context(), in)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, d)
}

func (h *Handler) listAppointments(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := core.ListAppointmentsFilter{
		Status:  q.Get("status"),
		Date:    q.Get("date"),
		Page:    atoi(q.Get("page")),
		PerPage: atoi(q.Get("perPage")),
	}
	if h.isAdmin(r) {
		f.UserID = q.Get("user")
	} else {
		// clients only ever see their own bookings
		f.UserID = middleware.UserID(r.Context())
	}

	out, err := h.core.ListAppointments(r.Context(), f)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"appointments": out})
}

func (h *Handler) getAppointment(w http.ResponseWriter, r *http.Request) {
	d, err := h.core.GetAppointment(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	// ownership: return 404 not 403 to hide existence
	if !h.isAdmin(r) && (d.User == nil || *d.User != middleware.UserID(r.Context())) {
		h.writeError(w, core.ErrNotFound)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (h *Handler) updateAppointment(w http.ResponseWriter, r *http.Request) {
	if err := h.requireAppointmentOwner(r); err != nil {
		h.writeError(w, err)
		return
	}

	var body appointmentBody
	if err := decode(r, &body); err != nil {
		badRequest(w, "invalid json")
		return
	}
	in := core.UpdateAppointmentInput{
		Type:       body.Type,
		Date:       body.Date,
		Time:       body.Time,
		Status:     body.Status,
		UserID:     body.User,
		GuestName:  body.GuestName,
		GuestEmail: body.GuestEmail,
		GuestPhone: body.GuestPhone,
		ProjectID:  body.Project,
		Notes:      body.Notes,
	}
	if !h.isAdmin(r) {
		// reassignment and identity switches are admin operations
		in.UserID = nil
		in.GuestName, in.GuestEmail, in.GuestPhone = nil, nil, nil
	}

	d, err := h.core.UpdateAppointment(r.Context(), r.PathValue("id"), in)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (h *Handler) deleteAppointment(w http.ResponseWriter, r *http.Request) {
	if err := h.requireAppointmentOwner(r); err != nil {
		h.writeError(w, err)
		return
	}
	if err := h.core.DeleteAppointment(r.Context(), r.PathValue("id")); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) requireAppointmentOwner(r *http.Request) error {
	if h.isAdmin(r) {
		return nil
	}
	d, err := h.core.GetAppointment(r.Context(), r.PathValue("id"))
	if err != nil {
		return err
	}
	if d.User == nil || *d.User != middleware.UserID(r.Context()) {
		return core.ErrNotFound
	}
	return nil
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}
