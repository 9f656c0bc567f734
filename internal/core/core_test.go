package core_test

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/google/uuid"

	"studio-management-api/internal/core"
	"studio-management-api/internal/docstore"
	"studio-management-api/internal/logger"
	"studio-management-api/internal/metrics"
	"studio-management-api/internal/model"
)

// recorder is a synchronous Dispatcher that keeps every event it receives.
type recorder struct {
	mu     sync.Mutex
	events []core.Event
}

func (r *recorder) Notify(_ context.Context, ev core.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}

func (r *recorder) kinds() []core.EventKind {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]core.EventKind, 0, len(r.events))
	for _, ev := range r.events {
		out = append(out, ev.Kind)
	}
	return out
}

func (r *recorder) count(kind core.EventKind) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, ev := range r.events {
		if ev.Kind == kind {
			n++
		}
	}
	return n
}

func (r *recorder) last(kind core.EventKind) (core.Event, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.events) - 1; i >= 0; i-- {
		if r.events[i].Kind == kind {
			return r.events[i], true
		}
	}
	return core.Event{}, false
}

func (r *recorder) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
}

func setup(t *testing.T) (*core.Service, *docstore.Memory, *recorder) {
	t.Helper()
	mem := docstore.NewMemory(core.UniqueSpecs()...)
	rec := &recorder{}
	svc := core.New(mem, rec, logger.NewNop(), metrics.NewNop())
	return svc, mem, rec
}

func createUser(t *testing.T, svc *core.Service) *core.UserDetails {
	t.Helper()
	email := fmt.Sprintf("test-%s@test.com", uuid.New().String()[:8])
	u, err := svc.CreateUser(context.Background(), core.CreateUserInput{
		Email: email, Password: "testpass123", Name: "Test User",
	})
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	return u
}

func createAdmin(t *testing.T, svc *core.Service) *core.UserDetails {
	t.Helper()
	email := fmt.Sprintf("admin-%s@test.com", uuid.New().String()[:8])
	u, err := svc.CreateUser(context.Background(), core.CreateUserInput{
		Email: email, Password: "testpass123", Name: "Admin", Role: string(model.RoleAdmin),
	})
	if err != nil {
		t.Fatalf("create admin: %v", err)
	}
	return u
}

func createProject(t *testing.T, svc *core.Service, ownerID string) *core.ProjectDetails {
	t.Helper()
	p, err := svc.CreateProject(context.Background(), core.CreateProjectInput{
		Name: "Kitchen remodel", UserID: ownerID,
	})
	if err != nil {
		t.Fatalf("create project: %v", err)
	}
	return p
}

func guestBooking(t *testing.T, svc *core.Service, date, tm string) *core.AppointmentDetails {
	t.Helper()
	a, err := svc.CreateAppointment(context.Background(), core.CreateAppointmentInput{
		Type: string(model.TypeGeneralConsultation), Date: date, Time: tm,
		GuestName: "Walk In", GuestEmail: "walkin@test.com",
	})
	if err != nil {
		t.Fatalf("guest booking: %v", err)
	}
	return a
}

func userBooking(t *testing.T, svc *core.Service, userID, date, tm string) *core.AppointmentDetails {
	t.Helper()
	a, err := svc.CreateAppointment(context.Background(), core.CreateAppointmentInput{
		Type: string(model.TypeGeneralConsultation), Date: date, Time: tm, UserID: userID,
	})
	if err != nil {
		t.Fatalf("user booking: %v", err)
	}
	return a
}

func userDoc(t *testing.T, svc *core.Service, id string) *model.User {
	t.Helper()
	u, err := svc.UserByID(context.Background(), id)
	if err != nil {
		t.Fatalf("load user %s: %v", id, err)
	}
	return u
}

func strp(s string) *string { return &s }
