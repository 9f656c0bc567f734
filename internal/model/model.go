package model

import "time"

type Role string

const (
	RoleClient     Role = "client"
	RoleAdmin      Role = "admin"
	RoleSuperadmin Role = "superadmin"
)

func (r Role) Valid() bool {
	switch r {
	case RoleClient, RoleAdmin, RoleSuperadmin:
		return true
	}
	return false
}

func (r Role) IsAdmin() bool {
	return r == RoleAdmin || r == RoleSuperadmin
}

type AppointmentType string

const (
	TypeGeneralConsultation AppointmentType = "general-consultation"
	TypeCustomPlan          AppointmentType = "custom-plan"
	TypeProjectFollowUp     AppointmentType = "project-follow-up"
)

func (t AppointmentType) Valid() bool {
	switch t {
	case TypeGeneralConsultation, TypeCustomPlan, TypeProjectFollowUp:
		return true
	}
	return false
}

type AppointmentStatus string

const (
	StatusPending   AppointmentStatus = "pending"
	StatusConfirmed AppointmentStatus = "confirmed"
	StatusCancelled AppointmentStatus = "cancelled"
	StatusCompleted AppointmentStatus = "completed"
)

func (s AppointmentStatus) Valid() bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusCancelled, StatusCompleted:
		return true
	}
	return false
}

// Active statuses are the ones that occupy a time slot.
func (s AppointmentStatus) Active() bool {
	return s == StatusPending || s == StatusConfirmed
}

type ProjectStatus string

const (
	ProjectQuotation      ProjectStatus = "quotation"
	ProjectPaid           ProjectStatus = "paid"
	ProjectStarted        ProjectStatus = "started"
	ProjectMidDevelopment ProjectStatus = "mid-development"
	ProjectFinished       ProjectStatus = "finished"
)

func (s ProjectStatus) Valid() bool {
	switch s {
	case ProjectQuotation, ProjectPaid, ProjectStarted, ProjectMidDevelopment, ProjectFinished:
		return true
	}
	return false
}

type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"passwordHash"`
	Name         string    `json:"name"`
	Phone        string    `json:"phone"`
	Role         Role      `json:"role"`
	Projects     []string  `json:"projects"`
	Appointments []string  `json:"appointments"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

type Project struct {
	ID        string        `json:"id"`
	Name      string        `json:"name"`
	Status    ProjectStatus `json:"status"`
	User      *string       `json:"user"` // owning user, nil when unowned
	Progress  int           `json:"progress"`
	Cost      float64       `json:"cost"`
	Notes     string        `json:"notes"`
	CreatedAt time.Time     `json:"createdAt"`
	UpdatedAt time.Time     `json:"updatedAt"`
}

// Appointment carries exactly one identity representation: either User is set
// (registered booking) or the guest contact fields are (guest booking).
type Appointment struct {
	ID         string            `json:"id"`
	Type       AppointmentType   `json:"type"`
	Date       string            `json:"date"` // YYYY-MM-DD, zone-naive
	Time       string            `json:"time"` // HH:MM
	Status     AppointmentStatus `json:"status"`
	User       *string           `json:"user"`
	GuestName  string            `json:"guestName"`
	GuestEmail string            `json:"guestEmail"`
	GuestPhone string            `json:"guestPhone"`
	Project    *string           `json:"project"`
	Notes      string            `json:"notes"`
	CreatedAt  time.Time         `json:"createdAt"`
	UpdatedAt  time.Time         `json:"updatedAt"`
}

func (a *Appointment) Registered() bool {
	return a.User != nil && *a.User != ""
}
