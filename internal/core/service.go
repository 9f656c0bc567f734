// Package core is the entity-consistency and scheduling-conflict engine.
// Every mutation of users, projects and appointments routes through a
// lifecycle method here; writing to the store directly would break the
// bidirectional owner/reference invariant the package maintains.
package core

import (
	"context"
	"time"

	"studio-management-api/internal/docstore"
	"studio-management-api/internal/logger"
	"studio-management-api/internal/metrics"
	"studio-management-api/internal/model"
)

const (
	colUsers        = "users"
	colProjects     = "projects"
	colAppointments = "appointments"
)

type Service struct {
	store      docstore.Store
	dispatcher Dispatcher
	log        *logger.Logger
	metrics    *metrics.Metrics
	now        func() time.Time
}

func New(store docstore.Store, d Dispatcher, log *logger.Logger, m *metrics.Metrics) *Service {
	return &Service{
		store:      store,
		dispatcher: d,
		log:        log,
		metrics:    m,
		now:        time.Now,
	}
}

// UniqueSpecs declares the store-level unique indexes the engine relies on.
// The Postgres migration creates the equivalent partial indexes; the
// in-memory store is constructed with these so tests exercise the same
// contract, in particular the concurrent-booking backstop.
func UniqueSpecs() []docstore.UniqueSpec {
	return []docstore.UniqueSpec{
		{
			Collection: colUsers,
			Fields:     []string{"email"},
		},
		{
			Collection: colAppointments,
			Fields:     []string{"date", "time"},
			Where: func(doc map[string]any) bool {
				status, _ := doc["status"].(string)
				return model.AppointmentStatus(status).Active()
			},
		},
	}
}

func (s *Service) userByID(ctx context.Context, id string) (*model.User, error) {
	var u model.User
	err := s.store.FindOne(ctx, colUsers, docstore.Filter{"id": id}, &u)
	if err == docstore.ErrNoDocuments {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (s *Service) projectByID(ctx context.Context, id string) (*model.Project, error) {
	var p model.Project
	err := s.store.FindOne(ctx, colProjects, docstore.Filter{"id": id}, &p)
	if err == docstore.ErrNoDocuments {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *Service) appointmentByID(ctx context.Context, id string) (*model.Appointment, error) {
	var a model.Appointment
	err := s.store.FindOne(ctx, colAppointments, docstore.Filter{"id": id}, &a)
	if err == docstore.ErrNoDocuments {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// UserSummary is the detail block attached when rehydrating related entities.
type UserSummary struct {
	ID    string     `json:"id"`
	Name  string     `json:"name"`
	Email string     `json:"email"`
	Phone string     `json:"phone"`
	Role  model.Role `json:"role"`
}

type ProjectSummary struct {
	ID     string              `json:"id"`
	Name   string              `json:"name"`
	Status model.ProjectStatus `json:"status"`
}

func summarize(u *model.User) *UserSummary {
	if u == nil {
		return nil
	}
	return &UserSummary{ID: u.ID, Name: u.Name, Email: u.Email, Phone: u.Phone, Role: u.Role}
}

func summarizeProject(p *model.Project) *ProjectSummary {
	if p == nil {
		return nil
	}
	return &ProjectSummary{ID: p.ID, Name: p.Name, Status: p.Status}
}

func pageWindow(page, perPage int) (skip, limit int) {
	if perPage <= 0 {
		perPage = 20
	}
	if perPage > 100 {
		perPage = 100
	}
	if page < 1 {
		page = 1
	}
	return (page - 1) * perPage, perPage
}
