package core

import (
	"context"
	"net/mail"

	"studio-management-api/internal/docstore"
	"studio-management-api/internal/model"
)

type CreateAppointmentInput struct {
	Type       string
	Date       string
	Time       string
	Status     string // optional, defaults to pending
	UserID     string // registered booking
	GuestName  string // guest booking
	GuestEmail string
	GuestPhone string
	ProjectID  string
	Notes      string
}

// UpdateAppointmentInput is a patch: nil fields are untouched. Setting
// UserID switches to the registered representation; setting a guest field
// switches to the guest one.
type UpdateAppointmentInput struct {
	Type       *string
	Date       *string
	Time       *string
	Status     *string
	UserID     *string
	GuestName  *string
	GuestEmail *string
	GuestPhone *string
	ProjectID  *string // empty string clears the project
	Notes      *string
}

type AppointmentDetails struct {
	model.Appointment
	UserDetail    *UserSummary    `json:"userDetail,omitempty"`
	ProjectDetail *ProjectSummary `json:"projectDetail,omitempty"`
}

func (s *Service) CreateAppointment(ctx context.Context, in CreateAppointmentInput) (*AppointmentDetails, error) {
	typ := model.AppointmentType(in.Type)
	if !typ.Valid() {
		return nil, invalid("type", "unknown appointment type")
	}
	date, err := normalizeDate(in.Date)
	if err != nil {
		return nil, err
	}
	tm, err := normalizeTime(in.Time)
	if err != nil {
		return nil, err
	}
	status := model.StatusPending
	if in.Status != "" {
		status = model.AppointmentStatus(in.Status)
		if !status.Valid() {
			return nil, invalid("status", "unknown status")
		}
	}

	// exactly one identity representation
	hasGuest := in.GuestName != "" || in.GuestEmail != "" || in.GuestPhone != ""
	var owner *model.User
	switch {
	case in.UserID != "" && hasGuest:
		return nil, invalid("identity", "registered and guest representations are mutually exclusive")
	case in.UserID != "":
		uid, err := ResolveID(in.UserID)
		if err != nil {
			return nil, err
		}
		if owner, err = s.userByID(ctx, uid); err != nil {
			return nil, err
		}
	case hasGuest:
		if in.GuestName == "" {
			return nil, invalid("guestName", "required for guest bookings")
		}
		if !validEmail(in.GuestEmail) {
			return nil, invalid("guestEmail", "not a valid email address")
		}
	default:
		return nil, ErrIdentityRequired
	}

	var project *model.Project
	if in.ProjectID != "" {
		pid, err := ResolveID(in.ProjectID)
		if err != nil {
			return nil, err
		}
		if project, err = s.projectByID(ctx, pid); err != nil {
			return nil, err
		}
	}
	if typ == model.TypeProjectFollowUp && project == nil {
		return nil, ErrProjectRequired
	}

	taken, err := s.slotTaken(ctx, date, tm, "")
	if err != nil {
		return nil, err
	}
	if taken {
		s.metrics.SlotConflicts.Inc()
		return nil, ErrSlotConflict
	}

	now := s.now().UTC()
	apt := &model.Appointment{
		ID:        newID(),
		Type:      typ,
		Date:      date,
		Time:      tm,
		Status:    status,
		Notes:     in.Notes,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if owner != nil {
		apt.User = &owner.ID
	} else {
		apt.GuestName = in.GuestName
		apt.GuestEmail = in.GuestEmail
		apt.GuestPhone = in.GuestPhone
	}
	if project != nil {
		apt.Project = &project.ID
	}

	if err := s.store.Insert(ctx, colAppointments, apt.ID, apt); err != nil {
		if err == docstore.ErrUniqueViolation {
			// a concurrent booking won the slot between check and insert
			s.metrics.SlotConflicts.Inc()
			return nil, ErrSlotConflict
		}
		return nil, err
	}

	events := []Event{{Kind: EventCreated, Payload: appointmentPayload(apt)}}
	if owner != nil {
		if err := s.addOwnerRef(ctx, owner.ID, fieldAppointments, apt.ID); err != nil {
			s.refFailure(fieldAppointments, apt.ID, err)
		}
		events[0].Recipient = userRecipient(owner)
		events = append(events, s.adminEvents(ctx, apt)...)
	} else {
		events[0].Recipient = guestRecipient(apt)
	}
	s.dispatch(events)

	return &AppointmentDetails{
		Appointment:   *apt,
		UserDetail:    summarize(owner),
		ProjectDetail: summarizeProject(project),
	}, nil
}

// adminEvents builds one adminNotify event per admin-role user so every
// admin hears about a new registered booking.
func (s *Service) adminEvents(ctx context.Context, apt *model.Appointment) []Event {
	var admins []model.User
	f := docstore.Filter{"role": docstore.In{string(model.RoleAdmin), string(model.RoleSuperadmin)}}
	if err := s.store.FindMany(ctx, colUsers, f, nil, 0, 0, &admins); err != nil {
		s.log.Warn("admin lookup failed", "error", err)
		return nil
	}
	events := make([]Event, 0, len(admins))
	for i := range admins {
		events = append(events, Event{
			Kind:      EventAdminNotify,
			Recipient: userRecipient(&admins[i]),
			Payload:   appointmentPayload(apt),
		})
	}
	return events
}

func (s *Service) UpdateAppointment(ctx context.Context, rawID string, in UpdateAppointmentInput) (*AppointmentDetails, error) {
	id, err := ResolveID(rawID)
	if err != nil {
		return nil, err
	}
	cur, err := s.appointmentByID(ctx, id)
	if err != nil {
		return nil, err
	}

	patch := map[string]any{}

	newType := cur.Type
	if in.Type != nil {
		newType = model.AppointmentType(*in.Type)
		if !newType.Valid() {
			return nil, invalid("type", "unknown appointment type")
		}
		if newType != cur.Type {
			patch["type"] = string(newType)
		}
	}

	newDate, newTime := cur.Date, cur.Time
	if in.Date != nil {
		if newDate, err = normalizeDate(*in.Date); err != nil {
			return nil, err
		}
	}
	if in.Time != nil {
		if newTime, err = normalizeTime(*in.Time); err != nil {
			return nil, err
		}
	}
	rescheduled := newDate != cur.Date || newTime != cur.Time

	newStatus := cur.Status
	if in.Status != nil {
		newStatus = model.AppointmentStatus(*in.Status)
		if !newStatus.Valid() {
			return nil, invalid("status", "unknown status")
		}
		if newStatus != cur.Status {
			patch["status"] = string(newStatus)
		}
	}

	// the conflict check reruns only when the slot is actually contested
	// again: a moved slot, or an inactive appointment coming back to life
	reactivated := !cur.Status.Active() && newStatus.Active()
	if rescheduled || reactivated {
		taken, err := s.slotTaken(ctx, newDate, newTime, id)
		if err != nil {
			return nil, err
		}
		if taken {
			s.metrics.SlotConflicts.Inc()
			return nil, ErrSlotConflict
		}
	}
	if rescheduled {
		patch["date"] = newDate
		patch["time"] = newTime
	}

	prevOwner := cur.User
	newOwner := cur.User
	var ownerUser *model.User

	wantsUser := in.UserID != nil && *in.UserID != ""
	wantsGuest := (in.GuestName != nil && *in.GuestName != "") ||
		(in.GuestEmail != nil && *in.GuestEmail != "") ||
		(in.GuestPhone != nil && *in.GuestPhone != "")
	switch {
	case wantsUser && wantsGuest:
		return nil, invalid("identity", "registered and guest representations are mutually exclusive")
	case wantsUser:
		uid, err := ResolveID(*in.UserID)
		if err != nil {
			return nil, err
		}
		if ownerUser, err = s.userByID(ctx, uid); err != nil {
			return nil, err
		}
		newOwner = &uid
		if !sameOwner(cur.User, newOwner) {
			patch["user"] = uid
			if cur.GuestName != "" || cur.GuestEmail != "" || cur.GuestPhone != "" {
				// the vacated guest representation is overwritten with nulls
				patch["guestName"] = nil
				patch["guestEmail"] = nil
				patch["guestPhone"] = nil
			}
		}
	case wantsGuest:
		name, email, phone := cur.GuestName, cur.GuestEmail, cur.GuestPhone
		if in.GuestName != nil {
			name = *in.GuestName
		}
		if in.GuestEmail != nil {
			email = *in.GuestEmail
		}
		if in.GuestPhone != nil {
			phone = *in.GuestPhone
		}
		if name == "" {
			return nil, invalid("guestName", "required for guest bookings")
		}
		if !validEmail(email) {
			return nil, invalid("guestEmail", "not a valid email address")
		}
		newOwner = nil
		patch["user"] = nil
		patch["guestName"] = name
		patch["guestEmail"] = email
		patch["guestPhone"] = phone
	}

	effProject := cur.Project
	if in.ProjectID != nil {
		if *in.ProjectID == "" {
			effProject = nil
			patch["project"] = nil
		} else {
			pid, err := ResolveID(*in.ProjectID)
			if err != nil {
				return nil, err
			}
			if _, err := s.projectByID(ctx, pid); err != nil {
				return nil, err
			}
			effProject = &pid
			patch["project"] = pid
		}
	}
	if newType == model.TypeProjectFollowUp && effProject == nil {
		return nil, ErrProjectRequired
	}

	if in.Notes != nil && *in.Notes != cur.Notes {
		patch["notes"] = *in.Notes
	}

	if len(patch) == 0 {
		return s.appointmentDetails(ctx, cur)
	}
	patch["updatedAt"] = s.now().UTC()

	if err := s.store.UpdateByID(ctx, colAppointments, id, patch); err != nil {
		if err == docstore.ErrUniqueViolation {
			s.metrics.SlotConflicts.Inc()
			return nil, ErrSlotConflict
		}
		return nil, err
	}

	s.applyOwnerDelta(ctx, fieldAppointments, id, prevOwner, newOwner)

	updated, err := s.appointmentByID(ctx, id)
	if err != nil {
		return nil, err
	}

	recipient := s.appointmentRecipient(ctx, updated)
	var events []Event
	if !sameOwner(prevOwner, newOwner) && ownerUser != nil {
		events = append(events, Event{
			Kind:      EventAssigned,
			Recipient: userRecipient(ownerUser),
			Payload:   appointmentPayload(updated),
		})
	}
	if newStatus != cur.Status {
		p := appointmentPayload(updated)
		p["oldStatus"] = string(cur.Status)
		p["newStatus"] = string(newStatus)
		events = append(events, Event{Kind: EventStatusChanged, Recipient: recipient, Payload: p})
	}
	if rescheduled {
		p := appointmentPayload(updated)
		p["oldDate"] = cur.Date
		p["oldTime"] = cur.Time
		events = append(events, Event{Kind: EventRescheduled, Recipient: recipient, Payload: p})
	}
	s.dispatch(events)

	return s.appointmentDetails(ctx, updated)
}

func (s *Service) DeleteAppointment(ctx context.Context, rawID string) error {
	id, err := ResolveID(rawID)
	if err != nil {
		return err
	}
	cur, err := s.appointmentByID(ctx, id)
	if err != nil {
		return err
	}
	return s.deleteAppointmentRecord(ctx, cur, true, true)
}

// deleteAppointmentRecord removes the appointment, strips the owner
// back-reference, and notifies the booking identity. Cascades reuse it so
// reference cleanup never gets bypassed by a bulk delete; the user-deletion
// cascade passes cleanRef and notify false because the owner is going away.
func (s *Service) deleteAppointmentRecord(ctx context.Context, a *model.Appointment, cleanRef, notify bool) error {
	var recipient Recipient
	if notify {
		recipient = s.appointmentRecipient(ctx, a)
	}

	ok, err := s.store.DeleteByID(ctx, colAppointments, a.ID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotFound
	}

	if cleanRef && a.Registered() {
		if err := s.removeOwnerRef(ctx, *a.User, fieldAppointments, a.ID); err != nil {
			s.refFailure(fieldAppointments, a.ID, err)
		}
	}
	if notify {
		s.dispatch([]Event{{Kind: EventCancelled, Recipient: recipient, Payload: appointmentPayload(a)}})
	}
	return nil
}

func (s *Service) GetAppointment(ctx context.Context, rawID string) (*AppointmentDetails, error) {
	id, err := ResolveID(rawID)
	if err != nil {
		return nil, err
	}
	apt, err := s.appointmentByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.appointmentDetails(ctx, apt)
}

type ListAppointmentsFilter struct {
	UserID  string
	Status  string
	Date    string
	Page    int
	PerPage int
}

func (s *Service) ListAppointments(ctx context.Context, f ListAppointmentsFilter) ([]model.Appointment, error) {
	filter := docstore.Filter{}
	if f.UserID != "" {
		uid, err := ResolveID(f.UserID)
		if err != nil {
			return nil, err
		}
		filter["user"] = uid
	}
	if f.Status != "" {
		if !model.AppointmentStatus(f.Status).Valid() {
			return nil, invalid("status", "unknown status")
		}
		filter["status"] = f.Status
	}
	if f.Date != "" {
		date, err := normalizeDate(f.Date)
		if err != nil {
			return nil, err
		}
		filter["date"] = date
	}
	skip, limit := pageWindow(f.Page, f.PerPage)
	var out []model.Appointment
	err := s.store.FindMany(ctx, colAppointments, filter, &docstore.Sort{Field: "date"}, skip, limit, &out)
	return out, err
}

// appointmentDetails rehydrates the related user and project with second
// store calls; the adapter does no joins.
func (s *Service) appointmentDetails(ctx context.Context, a *model.Appointment) (*AppointmentDetails, error) {
	d := &AppointmentDetails{Appointment: *a}
	if a.Registered() {
		u, err := s.userByID(ctx, *a.User)
		if err == nil {
			d.UserDetail = summarize(u)
		} else if err != ErrNotFound {
			return nil, err
		}
	}
	if a.Project != nil && *a.Project != "" {
		p, err := s.projectByID(ctx, *a.Project)
		if err == nil {
			d.ProjectDetail = summarizeProject(p)
		} else if err != ErrNotFound {
			return nil, err
		}
	}
	return d, nil
}

func validEmail(raw string) bool {
	if raw == "" {
		return false
	}
	addr, err := mail.ParseAddress(raw)
	return err == nil && addr.Address == raw
}
