package core

import (
	"context"

	"studio-management-api/internal/docstore"
	"studio-management-api/internal/model"
)

type CreateProjectInput struct {
	Name     string
	Status   string // optional, defaults to quotation
	UserID   string // optional owner
	Progress int
	Cost     float64
	Notes    string
}

type UpdateProjectInput struct {
	Name     *string
	Status   *string
	UserID   *string // empty string clears the owner
	Progress *int
	Cost     *float64
	Notes    *string
}

type ProjectDetails struct {
	model.Project
	UserDetail *UserSummary `json:"userDetail,omitempty"`
}

func (s *Service) CreateProject(ctx context.Context, in CreateProjectInput) (*ProjectDetails, error) {
	if in.Name == "" {
		return nil, invalid("name", "required")
	}
	status := model.ProjectQuotation
	if in.Status != "" {
		status = model.ProjectStatus(in.Status)
		if !status.Valid() {
			return nil, invalid("status", "unknown project status")
		}
	}
	if in.Progress < 0 || in.Progress > 100 {
		return nil, invalid("progress", "must be between 0 and 100")
	}
	if in.Cost < 0 {
		return nil, invalid("cost", "must not be negative")
	}

	var owner *model.User
	if in.UserID != "" {
		uid, err := ResolveID(in.UserID)
		if err != nil {
			return nil, err
		}
		if owner, err = s.userByID(ctx, uid); err != nil {
			return nil, err
		}
	}

	now := s.now().UTC()
	p := &model.Project{
		ID:        newID(),
		Name:      in.Name,
		Status:    status,
		Progress:  in.Progress,
		Cost:      in.Cost,
		Notes:     in.Notes,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if owner != nil {
		p.User = &owner.ID
	}

	if err := s.store.Insert(ctx, colProjects, p.ID, p); err != nil {
		return nil, err
	}

	if owner != nil {
		if err := s.addOwnerRef(ctx, owner.ID, fieldProjects, p.ID); err != nil {
			s.refFailure(fieldProjects, p.ID, err)
		}
		s.dispatch([]Event{{
			Kind:      EventCreated,
			Recipient: userRecipient(owner),
			Payload:   projectPayload(p),
		}})
	}

	return &ProjectDetails{Project: *p, UserDetail: summarize(owner)}, nil
}

func (s *Service) UpdateProject(ctx context.Context, rawID string, in UpdateProjectInput) (*ProjectDetails, error) {
	id, err := ResolveID(rawID)
	if err != nil {
		return nil, err
	}
	cur, err := s.projectByID(ctx, id)
	if err != nil {
		return nil, err
	}

	patch := map[string]any{}

	if in.Name != nil {
		if *in.Name == "" {
			return nil, invalid("name", "required")
		}
		if *in.Name != cur.Name {
			patch["name"] = *in.Name
		}
	}

	newStatus := cur.Status
	if in.Status != nil {
		newStatus = model.ProjectStatus(*in.Status)
		if !newStatus.Valid() {
			return nil, invalid("status", "unknown project status")
		}
		if newStatus != cur.Status {
			patch["status"] = string(newStatus)
		}
	}

	if in.Progress != nil {
		if *in.Progress < 0 || *in.Progress > 100 {
			return nil, invalid("progress", "must be between 0 and 100")
		}
		if *in.Progress != cur.Progress {
			patch["progress"] = *in.Progress
		}
	}
	if in.Cost != nil {
		if *in.Cost < 0 {
			return nil, invalid("cost", "must not be negative")
		}
		if *in.Cost != cur.Cost {
			patch["cost"] = *in.Cost
		}
	}
	if in.Notes != nil && *in.Notes != cur.Notes {
		patch["notes"] = *in.Notes
	}

	// the owner delta only applies when the field is present in the patch
	// and actually differs from the stored value
	prevOwner := cur.User
	newOwner := cur.User
	var ownerUser *model.User
	if in.UserID != nil {
		if *in.UserID == "" {
			newOwner = nil
			if cur.User != nil {
				patch["user"] = nil
			}
		} else {
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
			}
		}
	}

	if len(patch) == 0 {
		return s.projectDetails(ctx, cur)
	}
	patch["updatedAt"] = s.now().UTC()

	if err := s.store.UpdateByID(ctx, colProjects, id, patch); err != nil {
		return nil, err
	}

	s.applyOwnerDelta(ctx, fieldProjects, id, prevOwner, newOwner)

	updated, err := s.projectByID(ctx, id)
	if err != nil {
		return nil, err
	}

	var events []Event
	if !sameOwner(prevOwner, newOwner) && ownerUser != nil {
		events = append(events, Event{
			Kind:      EventAssigned,
			Recipient: userRecipient(ownerUser),
			Payload:   projectPayload(updated),
		})
	}
	if newStatus != cur.Status && updated.User != nil {
		if u, err := s.userByID(ctx, *updated.User); err == nil {
			p := projectPayload(updated)
			p["oldStatus"] = string(cur.Status)
			p["newStatus"] = string(newStatus)
			events = append(events, Event{Kind: EventStatusChanged, Recipient: userRecipient(u), Payload: p})
		}
	}
	s.dispatch(events)

	return s.projectDetails(ctx, updated)
}

// DeleteProject removes the project, strips the owner back-reference, and
// cascades to its follow-up appointments one by one through the appointment
// delete path, so their own owner lists stay consistent.
func (s *Service) DeleteProject(ctx context.Context, rawID string) error {
	id, err := ResolveID(rawID)
	if err != nil {
		return err
	}
	cur, err := s.projectByID(ctx, id)
	if err != nil {
		return err
	}

	var dependents []model.Appointment
	if err := s.store.FindMany(ctx, colAppointments, docstore.Filter{"project": id}, nil, 0, 0, &dependents); err != nil {
		return err
	}
	for i := range dependents {
		if err := s.deleteAppointmentRecord(ctx, &dependents[i], true, true); err != nil && err != ErrNotFound {
			return err
		}
	}

	ok, err := s.store.DeleteByID(ctx, colProjects, id)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotFound
	}

	if cur.User != nil {
		if err := s.removeOwnerRef(ctx, *cur.User, fieldProjects, id); err != nil {
			s.refFailure(fieldProjects, id, err)
		}
	}
	return nil
}

func (s *Service) GetProject(ctx context.Context, rawID string) (*ProjectDetails, error) {
	id, err := ResolveID(rawID)
	if err != nil {
		return nil, err
	}
	p, err := s.projectByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.projectDetails(ctx, p)
}

type ListProjectsFilter struct {
	UserID  string
	Status  string
	Page    int
	PerPage int
}

func (s *Service) ListProjects(ctx context.Context, f ListProjectsFilter) ([]model.Project, error) {
	filter := docstore.Filter{}
	if f.UserID != "" {
		uid, err := ResolveID(f.UserID)
		if err != nil {
			return nil, err
		}
		filter["user"] = uid
	}
	if f.Status != "" {
		if !model.ProjectStatus(f.Status).Valid() {
			return nil, invalid("status", "unknown project status")
		}
		filter["status"] = f.Status
	}
	skip, limit := pageWindow(f.Page, f.PerPage)
	var out []model.Project
	err := s.store.FindMany(ctx, colProjects, filter, &docstore.Sort{Field: "createdAt"}, skip, limit, &out)
	return out, err
}

func (s *Service) projectDetails(ctx context.Context, p *model.Project) (*ProjectDetails, error) {
	d := &ProjectDetails{Project: *p}
	if p.User != nil && *p.User != "" {
		u, err := s.userByID(ctx, *p.User)
		if err == nil {
			d.UserDetail = summarize(u)
		} else if err != ErrNotFound {
			return nil, err
		}
	}
	return d, nil
}

func projectPayload(p *model.Project) map[string]string {
	return map[string]string{
		"name":   p.Name,
		"status": string(p.Status),
	}
}
