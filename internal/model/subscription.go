package model

import (
	"time"

	"github.com/google/uuid"
)

// Plan represents the plans table
type Plan struct {
	ID           uuid.UUID `json:"id"`
	Name         string    `json:"name"`
	MaxUsers     int       `json:"max_users"`
	MaxAdmins    int       `json:"max_admins"`
	Amount       int64     `json:"amount"`
	Currency     string    `json:"currency"`
	BillingCycle string    `json:"billing_cycle"`
	Available    bool      `json:"available"`
	CreatedAt    time.Time `json:"created_at"`
}

// Subscription represents the subscriptions table, bound 1:1 to a tenant.
type Subscription struct {
	ID             uuid.UUID  `json:"id"`
	TenantID       uuid.UUID  `json:"tenant_id"`
	PlanID         uuid.UUID  `json:"plan_id"`
	Status         string     `json:"status"`
	Amount         int64      `json:"amount"`
	Currency       string     `json:"currency"`
	BillingCycle   string     `json:"billing_cycle"`
	CurrentUsers   int        `json:"current_users"`
	CurrentAdmins  int        `json:"current_admins"`
	UsageUpdatedAt time.Time  `json:"usage_updated_at"`
	StartsAt       time.Time  `json:"starts_at"`
	EndsAt         *time.Time `json:"ends_at,omitempty"`
	TrialEndsAt    *time.Time `json:"trial_ends_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// IsActive reports whether the subscription authorizes account activity at
// the given time. Trial counts only until its trial-end date.
func (s *Subscription) IsActive(now time.Time) bool {
	switch s.Status {
	case StatusActive:
		return true
	case StatusTrial:
		return s.TrialEndsAt == nil || !now.After(*s.TrialEndsAt)
	default:
		return false
	}
}
