package service

import (
	"context"

	"github.com/google/uuid"

	"github.com/teresa-solution/tenant-access-service/internal/model"
)

// Store surfaces the services consume. The concrete implementations live in
// internal/store; tests substitute fakes.

type TenantStore interface {
	Create(ctx context.Context, tenant *model.Tenant) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.Tenant, error)
	ExistsByDomain(ctx context.Context, domain string) (bool, error)
	Update(ctx context.Context, tenant *model.Tenant) error
	UpdateStatus(ctx context.Context, id uuid.UUID, status string) error
	Delete(ctx context.Context, id uuid.UUID) error
}

type SubscriptionStore interface {
	Create(ctx context.Context, sub *model.Subscription) error
	GetByTenant(ctx context.Context, tenantID uuid.UUID) (*model.Subscription, error)
	UpdateStatus(ctx context.Context, tenantID uuid.UUID, status string) error
	AdjustUsage(ctx context.Context, tenantID uuid.UUID, userDelta, adminDelta int) error
	Delete(ctx context.Context, id uuid.UUID) error
}

type PlanStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*model.Plan, error)
	GetByName(ctx context.Context, name string) (*model.Plan, error)
	GetDefault(ctx context.Context) (*model.Plan, error)
}

type UserStore interface {
	Create(ctx context.Context, user *model.User) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.User, error)
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	Update(ctx context.Context, user *model.User) error
	SetTenant(ctx context.Context, userID, tenantID uuid.UUID) error
	TouchLastLogin(ctx context.Context, id uuid.UUID) error
	Delete(ctx context.Context, id uuid.UUID) error
}
