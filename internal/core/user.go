package core

import (
	"context"
	"strings"

	"studio-management-api/internal/auth"
	"studio-management-api/internal/docstore"
	"studio-management-api/internal/model"
)

type CreateUserInput struct {
	Email    string
	Password string
	Name     string
	Phone    string
	Role     string // optional, defaults to client
}

type UpdateUserInput struct {
	Name     *string
	Phone    *string
	Role     *string
	Password *string
}

type UserDetails struct {
	ID           string     `json:"id"`
	Email        string     `json:"email"`
	Name         string     `json:"name"`
	Phone        string     `json:"phone"`
	Role         model.Role `json:"role"`
	Projects     []string   `json:"projects"`
	Appointments []string   `json:"appointments"`
}

func userDetails(u *model.User) *UserDetails {
	return &UserDetails{
		ID:           u.ID,
		Email:        u.Email,
		Name:         u.Name,
		Phone:        u.Phone,
		Role:         u.Role,
		Projects:     u.Projects,
		Appointments: u.Appointments,
	}
}

func (s *Service) CreateUser(ctx context.Context, in CreateUserInput) (*UserDetails, error) {
	email := strings.ToLower(strings.TrimSpace(in.Email))
	if !validEmail(email) {
		return nil, invalid("email", "not a valid email address")
	}
	if len(in.Password) < 8 {
		return nil, invalid("password", "must be at least 8 characters")
	}
	if in.Name == "" {
		return nil, invalid("name", "required")
	}
	role := model.RoleClient
	if in.Role != "" {
		role = model.Role(in.Role)
		if !role.Valid() {
			return nil, invalid("role", "unknown role")
		}
	}

	var existing model.User
	err := s.store.FindOne(ctx, colUsers, docstore.Filter{"email": email}, &existing)
	if err == nil {
		return nil, ErrEmailTaken
	}
	if err != docstore.ErrNoDocuments {
		return nil, err
	}

	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	u := &model.User{
		ID:           newID(),
		Email:        email,
		PasswordHash: hash,
		Name:         in.Name,
		Phone:        in.Phone,
		Role:         role,
		Projects:     []string{},
		Appointments: []string{},
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.store.Insert(ctx, colUsers, u.ID, u); err != nil {
		if err == docstore.ErrUniqueViolation {
			// concurrent registration with the same email
			return nil, ErrEmailTaken
		}
		return nil, err
	}
	return userDetails(u), nil
}

func (s *Service) UpdateUser(ctx context.Context, rawID string, in UpdateUserInput) (*UserDetails, error) {
	id, err := ResolveID(rawID)
	if err != nil {
		return nil, err
	}
	cur, err := s.userByID(ctx, id)
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
	if in.Phone != nil && *in.Phone != cur.Phone {
		patch["phone"] = *in.Phone
	}
	if in.Role != nil {
		role := model.Role(*in.Role)
		if !role.Valid() {
			return nil, invalid("role", "unknown role")
		}
		if role != cur.Role {
			patch["role"] = string(role)
		}
	}
	if in.Password != nil {
		if len(*in.Password) < 8 {
			return nil, invalid("password", "must be at least 8 characters")
		}
		hash, err := auth.HashPassword(*in.Password)
		if err != nil {
			return nil, err
		}
		patch["passwordHash"] = hash
	}

	if len(patch) == 0 {
		return userDetails(cur), nil
	}
	patch["updatedAt"] = s.now().UTC()

	if err := s.store.UpdateByID(ctx, colUsers, id, patch); err != nil {
		return nil, err
	}
	updated, err := s.userByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return userDetails(updated), nil
}

// GetUser returns the user and opportunistically repairs its reference lists
// when they have drifted from the owning fields.
func (s *Service) GetUser(ctx context.Context, rawID string) (*UserDetails, error) {
	id, err := ResolveID(rawID)
	if err != nil {
		return nil, err
	}
	if err := s.ReconcileUser(ctx, id); err != nil {
		if err == ErrNotFound {
			return nil, err
		}
		s.log.Warn("reconcile on read failed", "user", id, "error", err)
	}
	u, err := s.userByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return userDetails(u), nil
}

// UserByEmail is the credential lookup used by the auth endpoints; it is the
// one read that exposes the password hash.
func (s *Service) UserByEmail(ctx context.Context, email string) (*model.User, error) {
	var u model.User
	err := s.store.FindOne(ctx, colUsers, docstore.Filter{"email": strings.ToLower(strings.TrimSpace(email))}, &u)
	if err == docstore.ErrNoDocuments {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (s *Service) UserByID(ctx context.Context, rawID string) (*model.User, error) {
	id, err := ResolveID(rawID)
	if err != nil {
		return nil, err
	}
	return s.userByID(ctx, id)
}

type ListUsersFilter struct {
	Role    string
	Page    int
	PerPage int
}

func (s *Service) ListUsers(ctx context.Context, f ListUsersFilter) ([]*UserDetails, error) {
	filter := docstore.Filter{}
	if f.Role != "" {
		if !model.Role(f.Role).Valid() {
			return nil, invalid("role", "unknown role")
		}
		filter["role"] = f.Role
	}
	skip, limit := pageWindow(f.Page, f.PerPage)
	var users []model.User
	if err := s.store.FindMany(ctx, colUsers, filter, &docstore.Sort{Field: "createdAt"}, skip, limit, &users); err != nil {
		return nil, err
	}
	out := make([]*UserDetails, 0, len(users))
	for i := range users {
		out = append(out, userDetails(&users[i]))
	}
	return out, nil
}

// DeleteUser removes the user and cascades: owned projects survive with a
// nulled owner, owned appointments are deleted through the appointment path.
// The deleted owner is not notified about its own cascade.
func (s *Service) DeleteUser(ctx context.Context, rawID string) error {
	id, err := ResolveID(rawID)
	if err != nil {
		return err
	}
	if _, err := s.userByID(ctx, id); err != nil {
		return err
	}

	var projects []model.Project
	if err := s.store.FindMany(ctx, colProjects, docstore.Filter{"user": id}, nil, 0, 0, &projects); err != nil {
		return err
	}
	for _, p := range projects {
		if err := s.store.UpdateByID(ctx, colProjects, p.ID, map[string]any{"user": nil}); err != nil && err != docstore.ErrNoDocuments {
			return err
		}
	}

	var appointments []model.Appointment
	if err := s.store.FindMany(ctx, colAppointments, docstore.Filter{"user": id}, nil, 0, 0, &appointments); err != nil {
		return err
	}
	for i := range appointments {
		// cleanRef=false: the owner document is about to be removed anyway
		if err := s.deleteAppointmentRecord(ctx, &appointments[i], false, false); err != nil && err != ErrNotFound {
			return err
		}
	}

	ok, err := s.store.DeleteByID(ctx, colUsers, id)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotFound
	}
	return nil
}
