package model

import (
	"time"

	"github.com/google/uuid"
)

// User roles. Super admins are tenant-less platform operators.
const (
	RoleUser       = "user"
	RoleAdmin      = "admin"
	RoleSuperAdmin = "super_admin"
)

// AdminPermissions is the baseline permission set granted to the admin user
// created alongside a new tenant.
var AdminPermissions = []string{"manage_users", "manage_settings", "view_reports", "manage_cases"}

// User represents the users table
type User struct {
	ID           uuid.UUID  `json:"id"`
	Email        string     `json:"email"`
	PasswordHash string     `json:"-"`
	Role         string     `json:"role"`
	TenantID     *uuid.UUID `json:"tenant_id,omitempty"` // nil only for super_admin
	Active       bool       `json:"active"`
	Permissions  []string   `json:"permissions,omitempty"`
	LastLoginAt  *time.Time `json:"last_login_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// IsSuperAdmin reports whether the user is a platform operator.
func (u *User) IsSuperAdmin() bool {
	return u.Role == RoleSuperAdmin
}

// BelongsTo reports whether the user is scoped to the given tenant.
func (u *User) BelongsTo(tenantID uuid.UUID) bool {
	return u.TenantID != nil && *u.TenantID == tenantID
}
