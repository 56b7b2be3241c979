package model

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Tenant lifecycle statuses. Cancelled tenants are soft-deleted, never removed.
const (
	StatusTrial     = "trial"
	StatusActive    = "active"
	StatusSuspended = "suspended"
	StatusCancelled = "cancelled"
	StatusExpired   = "expired"
)

// Domain approval request states.
const (
	DomainRequestPending  = "pending"
	DomainRequestApproved = "approved"
	DomainRequestRejected = "rejected"
)

// Tenant represents the tenants table
type Tenant struct {
	ID             uuid.UUID       `json:"id"`
	Name           string          `json:"name"`
	Domain         string          `json:"domain"`
	CustomDomains  []string        `json:"custom_domains"`
	DomainRequests []DomainRequest `json:"domain_requests,omitempty"`
	Status         string          `json:"status"`
	Settings       TenantSettings  `json:"settings"`
	ContactEmail   string          `json:"-"` // Plaintext (transient, not stored in DB)
	EncryptedEmail []byte          `json:"-"` // Stored in DB
	EmailNonce     []byte          `json:"-"` // Stored in DB
	SubscriptionID *uuid.UUID      `json:"subscription_id,omitempty"`
	TrialEndsAt    *time.Time      `json:"trial_ends_at,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
	DeletedAt      *time.Time      `json:"deleted_at,omitempty"`
}

// TenantSettings holds per-tenant overrides and feature toggles. Zero values
// mean "use the plan's limits".
type TenantSettings struct {
	MaxUsers  int      `json:"max_users,omitempty"`
	MaxAdmins int      `json:"max_admins,omitempty"`
	Features  []string `json:"features,omitempty"`
}

// DomainRequest is a pending/approved/rejected custom-domain approval.
type DomainRequest struct {
	Domain      string    `json:"domain"`
	Status      string    `json:"status"`
	RequestedAt time.Time `json:"requested_at"`
}

// TrustedDomains returns the deduplicated set of hostnames authorized to
// resolve to this tenant: the primary domain plus approved custom domains.
func (t *Tenant) TrustedDomains() []string {
	seen := make(map[string]struct{}, len(t.CustomDomains)+1)
	domains := make([]string, 0, len(t.CustomDomains)+1)
	for _, d := range append([]string{t.Domain}, t.CustomDomains...) {
		d = strings.ToLower(strings.TrimSpace(d))
		if d == "" {
			continue
		}
		if _, ok := seen[d]; ok {
			continue
		}
		seen[d] = struct{}{}
		domains = append(domains, d)
	}
	return domains
}

// IsActive reports whether the tenant may serve requests at the given time:
// status active, or status trial with the trial period still running.
func (t *Tenant) IsActive(now time.Time) bool {
	switch t.Status {
	case StatusActive:
		return true
	case StatusTrial:
		return t.TrialEndsAt == nil || !now.After(*t.TrialEndsAt)
	default:
		return false
	}
}

// HasFeature reports whether a feature flag is enabled for the tenant.
func (t *Tenant) HasFeature(name string) bool {
	for _, f := range t.Settings.Features {
		if f == name {
			return true
		}
	}
	return false
}
