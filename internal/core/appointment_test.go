package core_test

import (
	"context"
	"errors"
	"slices"
	"sync"
	"testing"

	"studio-management-api/internal/core"
	"studio-management-api/internal/model"
)

// ----- creation -----

func TestCreateGuestAppointment(t *testing.T) {
	svc, _, rec := setup(t)

	a, err := svc.CreateAppointment(context.Background(), core.CreateAppointmentInput{
		Type: string(model.TypeGeneralConsultation), Date: "2026-03-10", Time: "14:00",
		GuestName: "Ada", GuestEmail: "ada@test.com", GuestPhone: "555-0101",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if a.Status != model.StatusPending {
		t.Errorf("expected pending default, got %s", a.Status)
	}
	if a.User != nil {
		t.Error("guest booking must not carry a user")
	}
	if a.GuestName != "Ada" || a.GuestEmail != "ada@test.com" {
		t.Errorf("guest fields not stored: %+v", a.Appointment)
	}
	if rec.count(core.EventCreated) != 1 {
		t.Errorf("expected one created event, got %d", rec.count(core.EventCreated))
	}
	ev, _ := rec.last(core.EventCreated)
	if ev.Recipient.Email != "ada@test.com" {
		t.Errorf("created event went to %q", ev.Recipient.Email)
	}
}

func TestCreateRegisteredAppointment(t *testing.T) {
	svc, _, rec := setup(t)
	admin := createAdmin(t, svc)
	u := createUser(t, svc)
	rec.reset()

	a := userBooking(t, svc, u.ID, "2026-03-10", "14:00")
	if a.User == nil || *a.User != u.ID {
		t.Fatalf("owner not set: %+v", a.Appointment)
	}
	if a.UserDetail == nil || a.UserDetail.ID != u.ID {
		t.Error("user detail not rehydrated")
	}

	// the owner's appointment list picks up the new id
	owner := userDoc(t, svc, u.ID)
	if !slices.Contains(owner.Appointments, a.ID) {
		t.Errorf("appointment %s missing from owner list %v", a.ID, owner.Appointments)
	}

	// owner gets created, each admin gets adminNotify
	if rec.count(core.EventCreated) != 1 {
		t.Errorf("created events: %d", rec.count(core.EventCreated))
	}
	if rec.count(core.EventAdminNotify) != 1 {
		t.Errorf("adminNotify events: %d", rec.count(core.EventAdminNotify))
	}
	ev, _ := rec.last(core.EventAdminNotify)
	if ev.Recipient.UserID != admin.ID {
		t.Errorf("adminNotify went to %s, expected %s", ev.Recipient.UserID, admin.ID)
	}
}

func TestCreateAppointmentValidation(t *testing.T) {
	svc, _, _ := setup(t)
	u := createUser(t, svc)

	tests := []struct {
		name string
		in   core.CreateAppointmentInput
		want error
	}{
		{"bad type", core.CreateAppointmentInput{Type: "walk-in", Date: "2026-03-10", Time: "10:00", GuestName: "G", GuestEmail: "g@t.com"}, nil},
		{"bad date", core.CreateAppointmentInput{Type: "general-consultation", Date: "10/03/2026", Time: "10:00", GuestName: "G", GuestEmail: "g@t.com"}, nil},
		{"bad time", core.CreateAppointmentInput{Type: "general-consultation", Date: "2026-03-10", Time: "10am", GuestName: "G", GuestEmail: "g@t.com"}, nil},
		{"bad status", core.CreateAppointmentInput{Type: "general-consultation", Date: "2026-03-10", Time: "10:00", Status: "maybe", GuestName: "G", GuestEmail: "g@t.com"}, nil},
		{"no identity", core.CreateAppointmentInput{Type: "general-consultation", Date: "2026-03-10", Time: "10:00"}, core.ErrIdentityRequired},
		{"both identities", core.CreateAppointmentInput{Type: "general-consultation", Date: "2026-03-10", Time: "10:00", UserID: u.ID, GuestName: "G"}, nil},
		{"guest without name", core.CreateAppointmentInput{Type: "general-consultation", Date: "2026-03-10", Time: "10:00", GuestEmail: "g@t.com"}, nil},
		{"guest bad email", core.CreateAppointmentInput{Type: "general-consultation", Date: "2026-03-10", Time: "10:00", GuestName: "G", GuestEmail: "not-an-email"}, nil},
		{"malformed user id", core.CreateAppointmentInput{Type: "general-consultation", Date: "2026-03-10", Time: "10:00", UserID: "abc"}, core.ErrInvalidIdentifier},
		{"follow-up without project", core.CreateAppointmentInput{Type: "project-follow-up", Date: "2026-03-10", Time: "10:00", GuestName: "G", GuestEmail: "g@t.com"}, core.ErrProjectRequired},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.CreateAppointment(context.Background(), tt.in)
			if err == nil {
				t.Fatal("expected error")
			}
			if tt.want != nil && !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
			var ve *core.ValidationError
			if tt.want == nil && !errors.As(err, &ve) {
				t.Errorf("expected ValidationError, got %v", err)
			}
		})
	}
}

func TestUnknownUserIsNotFound(t *testing.T) {
	svc, _, _ := setup(t)

	_, err := svc.CreateAppointment(context.Background(), core.CreateAppointmentInput{
		Type: "general-consultation", Date: "2026-03-10", Time: "10:00",
		UserID: "7f0c1e9a-0000-4000-8000-000000000000",
	})
	if !errors.Is(err, core.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

// ----- slot conflicts -----

func TestSlotConflict(t *testing.T) {
	svc, _, _ := setup(t)
	guestBooking(t, svc, "2026-03-10", "14:00")

	_, err := svc.CreateAppointment(context.Background(), core.CreateAppointmentInput{
		Type: "custom-plan", Date: "2026-03-10", Time: "14:00",
		GuestName: "Other", GuestEmail: "other@test.com",
	})
	if !errors.Is(err, core.ErrSlotConflict) {
		t.Fatalf("expected ErrSlotConflict, got %v", err)
	}

	// same date, different time is fine
	guestBooking(t, svc, "2026-03-10", "15:00")
	// same time, different date is fine
	guestBooking(t, svc, "2026-03-11", "14:00")
}

func TestInactiveSlotDoesNotBlock(t *testing.T) {
	svc, _, _ := setup(t)
	a := guestBooking(t, svc, "2026-03-10", "14:00")

	if _, err := svc.UpdateAppointment(context.Background(), a.ID, core.UpdateAppointmentInput{
		Status: strp("cancelled"),
	}); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	// the cancelled appointment no longer occupies the slot
	guestBooking(t, svc, "2026-03-10", "14:00")
}

func TestReactivationRechecksSlot(t *testing.T) {
	svc, _, _ := setup(t)
	a := guestBooking(t, svc, "2026-03-10", "14:00")
	if _, err := svc.UpdateAppointment(context.Background(), a.ID, core.UpdateAppointmentInput{
		Status: strp("cancelled"),
	}); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	guestBooking(t, svc, "2026-03-10", "14:00")

	_, err := svc.UpdateAppointment(context.Background(), a.ID, core.UpdateAppointmentInput{
		Status: strp("confirmed"),
	})
	if !errors.Is(err, core.ErrSlotConflict) {
		t.Errorf("reactivating into a taken slot should conflict, got %v", err)
	}
}

func TestSelfRescheduleDoesNotConflict(t *testing.T) {
	svc, _, rec := setup(t)
	a := guestBooking(t, svc, "2026-03-10", "14:00")
	rec.reset()

	// same slot plus a note change: the appointment never conflicts with itself
	got, err := svc.UpdateAppointment(context.Background(), a.ID, core.UpdateAppointmentInput{
		Date: strp("2026-03-10"), Time: strp("14:00"), Notes: strp("bring samples"),
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if got.Notes != "bring samples" {
		t.Errorf("notes not applied: %q", got.Notes)
	}
	if rec.count(core.EventRescheduled) != 0 {
		t.Error("unchanged slot must not emit rescheduled")
	}
}

func TestDateNormalization(t *testing.T) {
	svc, _, _ := setup(t)

	// a timestamp date collapses to its day and collides with the plain form
	a, err := svc.CreateAppointment(context.Background(), core.CreateAppointmentInput{
		Type: "general-consultation", Date: "2026-03-10T09:30:00Z", Time: "14:00",
		GuestName: "Ada", GuestEmail: "ada@test.com",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if a.Date != "2026-03-10" {
		t.Fatalf("date not normalized: %q", a.Date)
	}
	_, err = svc.CreateAppointment(context.Background(), core.CreateAppointmentInput{
		Type: "general-consultation", Date: "2026-03-10", Time: "14:00",
		GuestName: "Bob", GuestEmail: "bob@test.com",
	})
	if !errors.Is(err, core.ErrSlotConflict) {
		t.Errorf("expected ErrSlotConflict, got %v", err)
	}
}

func TestConcurrentBooking(t *testing.T) {
	svc, _, _ := setup(t)

	const n = 10
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.CreateAppointment(context.Background(), core.CreateAppointmentInput{
				Type: "general-consultation", Date: "2026-03-10", Time: "14:00",
				GuestName: "Racer", GuestEmail: "racer@test.com",
			})
		}(i)
	}
	wg.Wait()

	won, lost := 0, 0
	for _, err := range errs {
		switch {
		case err == nil:
			won++
		case errors.Is(err, core.ErrSlotConflict):
			lost++
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}
	if won != 1 || lost != n-1 {
		t.Errorf("expected exactly one winner, got %d winners / %d conflicts", won, lost)
	}
}

// ----- updates -----

func TestReassignOwner(t *testing.T) {
	svc, _, rec := setup(t)
	a1 := createUser(t, svc)
	a2 := createUser(t, svc)
	apt := userBooking(t, svc, a1.ID, "2026-03-10", "14:00")
	rec.reset()

	if _, err := svc.UpdateAppointment(context.Background(), apt.ID, core.UpdateAppointmentInput{
		UserID: &a2.ID,
	}); err != nil {
		t.Fatalf("reassign: %v", err)
	}

	from := userDoc(t, svc, a1.ID)
	to := userDoc(t, svc, a2.ID)
	if slices.Contains(from.Appointments, apt.ID) {
		t.Error("previous owner still holds the reference")
	}
	n := 0
	for _, id := range to.Appointments {
		if id == apt.ID {
			n++
		}
	}
	if n != 1 {
		t.Errorf("new owner holds reference %d times", n)
	}
	if rec.count(core.EventAssigned) != 1 {
		t.Errorf("assigned events: %d", rec.count(core.EventAssigned))
	}
}

func TestReassignSameOwnerIsNoop(t *testing.T) {
	svc, _, rec := setup(t)
	u := createUser(t, svc)
	apt := userBooking(t, svc, u.ID, "2026-03-10", "14:00")
	before := userDoc(t, svc, u.ID).Appointments
	rec.reset()

	got, err := svc.UpdateAppointment(context.Background(), apt.ID, core.UpdateAppointmentInput{
		UserID: &u.ID,
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}

	after := userDoc(t, svc, u.ID).Appointments
	if !slices.Equal(before, after) {
		t.Errorf("list changed on same-owner reassignment: %v -> %v", before, after)
	}
	if rec.count(core.EventAssigned) != 0 {
		t.Error("same-owner reassignment must not emit assigned")
	}
	// nothing changed, so nothing was written
	if !got.UpdatedAt.Equal(apt.UpdatedAt) {
		t.Errorf("no-op reassignment bumped updatedAt: %v -> %v", apt.UpdatedAt, got.UpdatedAt)
	}
}

func TestSwitchRegisteredToGuest(t *testing.T) {
	svc, _, _ := setup(t)
	u := createUser(t, svc)
	apt := userBooking(t, svc, u.ID, "2026-03-10", "14:00")

	got, err := svc.UpdateAppointment(context.Background(), apt.ID, core.UpdateAppointmentInput{
		GuestName: strp("Walk In"), GuestEmail: strp("walkin@test.com"),
	})
	if err != nil {
		t.Fatalf("switch: %v", err)
	}
	if got.User != nil {
		t.Error("user field survived the switch to guest")
	}
	if got.GuestName != "Walk In" {
		t.Errorf("guest name: %q", got.GuestName)
	}
	// the old owner's list is cleaned up
	if slices.Contains(userDoc(t, svc, u.ID).Appointments, apt.ID) {
		t.Error("former owner still references the appointment")
	}
}

func TestSwitchGuestToRegistered(t *testing.T) {
	svc, _, _ := setup(t)
	u := createUser(t, svc)
	apt := guestBooking(t, svc, "2026-03-10", "14:00")

	got, err := svc.UpdateAppointment(context.Background(), apt.ID, core.UpdateAppointmentInput{
		UserID: &u.ID,
	})
	if err != nil {
		t.Fatalf("switch: %v", err)
	}
	if got.User == nil || *got.User != u.ID {
		t.Fatal("owner not set")
	}
	if got.GuestName != "" || got.GuestEmail != "" || got.GuestPhone != "" {
		t.Errorf("guest fields survived the switch: %+v", got.Appointment)
	}
	if !slices.Contains(userDoc(t, svc, u.ID).Appointments, apt.ID) {
		t.Error("new owner missing the reference")
	}
}

func TestGuestPhonePatch(t *testing.T) {
	svc, _, _ := setup(t)
	apt := guestBooking(t, svc, "2026-03-10", "14:00")

	// a patch touching only the phone still lands on the guest representation
	got, err := svc.UpdateAppointment(context.Background(), apt.ID, core.UpdateAppointmentInput{
		GuestPhone: strp("555-0202"),
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if got.GuestPhone != "555-0202" {
		t.Errorf("phone not applied: %q", got.GuestPhone)
	}
	if got.GuestName != apt.GuestName || got.GuestEmail != apt.GuestEmail {
		t.Errorf("other guest fields disturbed: %+v", got.Appointment)
	}
	if got.User != nil {
		t.Error("guest booking gained an owner")
	}

	// the re-read agrees with the returned details
	reread, err := svc.GetAppointment(context.Background(), apt.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if reread.GuestPhone != "555-0202" {
		t.Errorf("phone not persisted: %q", reread.GuestPhone)
	}
}

func TestUpdateBothIdentitiesRejected(t *testing.T) {
	svc, _, _ := setup(t)
	u := createUser(t, svc)
	apt := guestBooking(t, svc, "2026-03-10", "14:00")

	_, err := svc.UpdateAppointment(context.Background(), apt.ID, core.UpdateAppointmentInput{
		UserID: &u.ID, GuestName: strp("Someone"),
	})
	var ve *core.ValidationError
	if !errors.As(err, &ve) {
		t.Errorf("expected ValidationError, got %v", err)
	}
}

func TestUpdateEvents(t *testing.T) {
	svc, _, rec := setup(t)
	apt := guestBooking(t, svc, "2026-03-10", "14:00")
	rec.reset()

	if _, err := svc.UpdateAppointment(context.Background(), apt.ID, core.UpdateAppointmentInput{
		Status: strp("confirmed"), Date: strp("2026-03-12"), Time: strp("09:00"),
	}); err != nil {
		t.Fatalf("update: %v", err)
	}

	ev, ok := rec.last(core.EventStatusChanged)
	if !ok {
		t.Fatal("no statusChanged event")
	}
	if ev.Payload["oldStatus"] != "pending" || ev.Payload["newStatus"] != "confirmed" {
		t.Errorf("status payload: %v", ev.Payload)
	}

	ev, ok = rec.last(core.EventRescheduled)
	if !ok {
		t.Fatal("no rescheduled event")
	}
	if ev.Payload["oldDate"] != "2026-03-10" || ev.Payload["oldTime"] != "14:00" {
		t.Errorf("reschedule payload: %v", ev.Payload)
	}
	if ev.Payload["date"] != "2026-03-12" || ev.Payload["time"] != "09:00" {
		t.Errorf("reschedule payload new slot: %v", ev.Payload)
	}
}

func TestFollowUpCannotLoseProject(t *testing.T) {
	svc, _, _ := setup(t)
	p := createProject(t, svc, "")
	a, err := svc.CreateAppointment(context.Background(), core.CreateAppointmentInput{
		Type: "project-follow-up", Date: "2026-03-10", Time: "14:00",
		GuestName: "Ada", GuestEmail: "ada@test.com", ProjectID: p.ID,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	_, err = svc.UpdateAppointment(context.Background(), a.ID, core.UpdateAppointmentInput{
		ProjectID: strp(""),
	})
	if !errors.Is(err, core.ErrProjectRequired) {
		t.Errorf("expected ErrProjectRequired, got %v", err)
	}
}

// ----- deletion -----

func TestDeleteAppointment(t *testing.T) {
	svc, _, rec := setup(t)
	u := createUser(t, svc)
	apt := userBooking(t, svc, u.ID, "2026-03-10", "14:00")
	rec.reset()

	if err := svc.DeleteAppointment(context.Background(), apt.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := svc.GetAppointment(context.Background(), apt.ID); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
	if slices.Contains(userDoc(t, svc, u.ID).Appointments, apt.ID) {
		t.Error("owner still references the deleted appointment")
	}
	if rec.count(core.EventCancelled) != 1 {
		t.Errorf("cancelled events: %d", rec.count(core.EventCancelled))
	}
}

func TestDeleteErrors(t *testing.T) {
	svc, _, _ := setup(t)

	if err := svc.DeleteAppointment(context.Background(), "not-a-uuid"); !errors.Is(err, core.ErrInvalidIdentifier) {
		t.Errorf("expected ErrInvalidIdentifier, got %v", err)
	}
	if err := svc.DeleteAppointment(context.Background(), "7f0c1e9a-0000-4000-8000-000000000000"); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

// ----- listing -----

func TestListAppointments(t *testing.T) {
	svc, _, _ := setup(t)
	u := createUser(t, svc)
	userBooking(t, svc, u.ID, "2026-03-10", "14:00")
	userBooking(t, svc, u.ID, "2026-03-11", "14:00")
	guestBooking(t, svc, "2026-03-12", "14:00")

	all, err := svc.ListAppointments(context.Background(), core.ListAppointmentsFilter{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 3 {
		t.Errorf("expected 3, got %d", len(all))
	}

	mine, err := svc.ListAppointments(context.Background(), core.ListAppointmentsFilter{UserID: u.ID})
	if err != nil {
		t.Fatalf("list mine: %v", err)
	}
	if len(mine) != 2 {
		t.Errorf("expected 2 owned, got %d", len(mine))
	}

	byDay, err := svc.ListAppointments(context.Background(), core.ListAppointmentsFilter{Date: "2026-03-12"})
	if err != nil {
		t.Fatalf("list by day: %v", err)
	}
	if len(byDay) != 1 {
		t.Errorf("expected 1 on the day, got %d", len(byDay))
	}

	paged, err := svc.ListAppointments(context.Background(), core.ListAppointmentsFilter{Page: 2, PerPage: 2})
	if err != nil {
		t.Fatalf("list paged: %v", err)
	}
	if len(paged) != 1 {
		t.Errorf("expected 1 on page 2, got %d", len(paged))
	}
}
