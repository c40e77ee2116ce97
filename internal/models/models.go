package models

import (
	"time"

	"github.com/google/uuid"
)

// Company is the tenant: every other row belongs to exactly one company and
// every query is scoped by company_id.
type Company struct {
	ID                 uuid.UUID `json:"id"`
	Name               string    `json:"name"`
	SubscriptionTier   string    `json:"subscription_tier"`
	SubscriptionStatus string    `json:"subscription_status"`
	EmployeeCap        int       `json:"employee_cap"`
	CreatedAt          time.Time `json:"created_at"`
}

// Subscription is the part of a company only super admins may change.
type Subscription struct {
	Tier        string `json:"tier"`
	Status      string `json:"status"`
	EmployeeCap int    `json:"employee_cap"`
}

const (
	RoleMember     = "member"
	RoleAdmin      = "admin"
	RoleSuperAdmin = "super_admin"
)

// User is a login. CompanyID stays nil until the user sets up (or is
// assigned to) a company; until then nothing tenant-scoped is reachable.
type User struct {
	ID           uuid.UUID  `json:"id"`
	CompanyID    *uuid.UUID `json:"company_id"`
	Email        string     `json:"email"`
	DisplayName  string     `json:"display_name"`
	PasswordHash string     `json:"-"`
	Role         string     `json:"role"`
	CreatedAt    time.Time  `json:"created_at"`
}

type Department struct {
	ID        uuid.UUID `json:"id"`
	CompanyID uuid.UUID `json:"company_id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// Message is a tenant-wide chat message. RecipientID nil means broadcast to
// the whole company.
type Message struct {
	ID          int64      `json:"id"`
	CompanyID   uuid.UUID  `json:"company_id"`
	SenderID    uuid.UUID  `json:"sender_id"`
	RecipientID *uuid.UUID `json:"recipient_id"`
	Body        string     `json:"body"`
	CreatedAt   time.Time  `json:"created_at"`
}
