package core

import (
	"context"

	"studio-management-api/internal/model"
)

type EventKind string

const (
	EventCreated       EventKind = "created"
	EventAssigned      EventKind = "assigned"
	EventStatusChanged EventKind = "statusChanged"
	EventRescheduled   EventKind = "rescheduled"
	EventCancelled     EventKind = "cancelled"
	EventAdminNotify   EventKind = "adminNotify"
)

// Recipient is either a registered user (UserID set) or a guest contact.
type Recipient struct {
	UserID string
	Name   string
	Email  string
}

// Event is one outbound lifecycle notification. Lifecycle methods collect
// events while they run and hand the full list to dispatch only after the
// primary mutation has succeeded, keeping the mutation path pure.
type Event struct {
	Kind      EventKind
	Recipient Recipient
	Payload   map[string]string
}

// Dispatcher delivers lifecycle events. Implementations must be bounded:
// Notify is awaited only as a submission, never as a delivery.
type Dispatcher interface {
	Notify(ctx context.Context, ev Event) error
}

// dispatch submits events best-effort. Failures are counted and logged;
// they never surface to the caller of the triggering mutation.
func (s *Service) dispatch(events []Event) {
	for _, ev := range events {
		if ev.Recipient.Email == "" {
			continue
		}
		outcome := "submitted"
		if err := s.dispatcher.Notify(context.Background(), ev); err != nil {
			outcome = "failed"
			s.log.Warn("notification dropped", "kind", ev.Kind, "error", err)
		}
		s.metrics.Notifications.WithLabelValues(string(ev.Kind), outcome).Inc()
	}
}

func userRecipient(u *model.User) Recipient {
	return Recipient{UserID: u.ID, Name: u.Name, Email: u.Email}
}

func guestRecipient(a *model.Appointment) Recipient {
	return Recipient{Name: a.GuestName, Email: a.GuestEmail}
}

// appointmentRecipient resolves the identity an appointment's notifications
// go to, fetching the owner when registered.
func (s *Service) appointmentRecipient(ctx context.Context, a *model.Appointment) Recipient {
	if !a.Registered() {
		return guestRecipient(a)
	}
	u, err := s.userByID(ctx, *a.User)
	if err != nil {
		s.log.Warn("recipient lookup failed", "appointment", a.ID, "error", err)
		return Recipient{}
	}
	return userRecipient(u)
}

func appointmentPayload(a *model.Appointment) map[string]string {
	return map[string]string{
		"type":   string(a.Type),
		"date":   a.Date,
		"time":   a.Time,
		"status": string(a.Status),
	}
}
