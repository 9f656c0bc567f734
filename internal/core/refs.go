package core

import (
	"context"
	"fmt"
	"slices"

	"studio-management-api/internal/docstore"
	"studio-management-api/internal/model"
)

// Owner list fields on the user document. The lists are derived state: the
// owning field on the project/appointment is authoritative, and these exist
// only for reverse lookup.
const (
	fieldProjects     = "projects"
	fieldAppointments = "appointments"
)

// addOwnerRef inserts ownedID into the owner's list field if absent.
// Add-if-absent makes retries safe: the primary write and this update are
// not atomic, so the maintainer may run more than once for one mutation.
func (s *Service) addOwnerRef(ctx context.Context, ownerID, listField, ownedID string) error {
	u, err := s.userByID(ctx, ownerID)
	if err == ErrNotFound {
		return fmt.Errorf("%w: owner %s missing", ErrReferenceInconsistency, ownerID)
	}
	if err != nil {
		return err
	}
	list := u.Appointments
	if listField == fieldProjects {
		list = u.Projects
	}
	if slices.Contains(list, ownedID) {
		return nil
	}
	list = append(list, ownedID)
	return s.store.UpdateByID(ctx, colUsers, ownerID, map[string]any{listField: list})
}

// removeOwnerRef removes ownedID from the owner's list field if present.
func (s *Service) removeOwnerRef(ctx context.Context, ownerID, listField, ownedID string) error {
	u, err := s.userByID(ctx, ownerID)
	if err == ErrNotFound {
		// owner already gone, nothing to clean
		return nil
	}
	if err != nil {
		return err
	}
	list := u.Appointments
	if listField == fieldProjects {
		list = u.Projects
	}
	idx := slices.Index(list, ownedID)
	if idx < 0 {
		return nil
	}
	list = slices.Delete(slices.Clone(list), idx, idx+1)
	return s.store.UpdateByID(ctx, colUsers, ownerID, map[string]any{listField: list})
}

// applyOwnerDelta moves ownedID between owner lists when the owning field
// changed from prev to next. Equal owners apply no delta (reassigning to the
// same owner is a no-op).
func (s *Service) applyOwnerDelta(ctx context.Context, listField, ownedID string, prev, next *string) {
	if sameOwner(prev, next) {
		return
	}
	if prev != nil && *prev != "" {
		if err := s.removeOwnerRef(ctx, *prev, listField, ownedID); err != nil {
			s.refFailure(listField, ownedID, err)
		}
	}
	if next != nil && *next != "" {
		if err := s.addOwnerRef(ctx, *next, listField, ownedID); err != nil {
			s.refFailure(listField, ownedID, err)
		}
	}
}

// refFailure handles a reference-maintenance error after a successful
// primary write: logged and left for opportunistic reconciliation, never
// propagated (see ReconcileUser).
func (s *Service) refFailure(listField, ownedID string, err error) {
	s.log.Error("reference maintenance failed", "field", listField, "owned", ownedID, "error", err)
}

func sameOwner(a, b *string) bool {
	av, bv := "", ""
	if a != nil {
		av = *a
	}
	if b != nil {
		bv = *b
	}
	return av == bv
}

// ReconcileUser rebuilds a user's reference lists from the owning fields,
// the single source of truth. Reads call it when they notice drift, giving
// failed owner-list updates their at-least-once retry.
func (s *Service) ReconcileUser(ctx context.Context, userID string) error {
	u, err := s.userByID(ctx, userID)
	if err != nil {
		return err
	}

	var projects []model.Project
	if err := s.store.FindMany(ctx, colProjects, docstore.Filter{"user": userID}, nil, 0, 0, &projects); err != nil {
		return err
	}
	var appointments []model.Appointment
	if err := s.store.FindMany(ctx, colAppointments, docstore.Filter{"user": userID}, nil, 0, 0, &appointments); err != nil {
		return err
	}

	wantProjects := make([]string, 0, len(projects))
	for _, p := range projects {
		wantProjects = append(wantProjects, p.ID)
	}
	wantAppointments := make([]string, 0, len(appointments))
	for _, a := range appointments {
		wantAppointments = append(wantAppointments, a.ID)
	}

	if sameSet(u.Projects, wantProjects) && sameSet(u.Appointments, wantAppointments) {
		return nil
	}

	s.metrics.ReferenceRepairs.Inc()
	s.log.Warn("repairing owner reference lists", "user", userID)
	return s.store.UpdateByID(ctx, colUsers, userID, map[string]any{
		fieldProjects:     wantProjects,
		fieldAppointments: wantAppointments,
	})
}

func sameSet(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	sa := slices.Clone(a)
	sb := slices.Clone(b)
	slices.Sort(sa)
	slices.Sort(sb)
	return slices.Equal(sa, sb)
}
