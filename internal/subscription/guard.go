package subscription

import (
	"context"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/teresa-solution/tenant-access-service/internal/errs"
	"github.com/teresa-solution/tenant-access-service/internal/model"
	"github.com/teresa-solution/tenant-access-service/internal/monitoring"
)

// SubscriptionStore is the store surface the guard reads from.
type SubscriptionStore interface {
	GetByTenant(ctx context.Context, tenantID uuid.UUID) (*model.Subscription, error)
}

// PlanStore resolves the plan bound to a subscription.
type PlanStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*model.Plan, error)
}

// Guard evaluates subscription state and usage quotas before account-affecting
// operations commit. It mutates nothing.
type Guard struct {
	subs  SubscriptionStore
	plans PlanStore
	now   func() time.Time
}

// NewGuard creates a Guard.
func NewGuard(subs SubscriptionStore, plans PlanStore) *Guard {
	return &Guard{subs: subs, plans: plans, now: time.Now}
}

// AssertActive fails with a subscription_expired error unless the
// subscription currently authorizes account activity.
func (g *Guard) AssertActive(sub *model.Subscription) error {
	if sub == nil || !sub.IsActive(g.now()) {
		return errs.SubscriptionExpired()
	}
	return nil
}

// CanAddUsers reports whether n more users fit under the tenant's plan limit.
func (g *Guard) CanAddUsers(ctx context.Context, tenant *model.Tenant, n int) (bool, error) {
	sub, plan, err := g.load(ctx, tenant.ID)
	if err != nil {
		return false, err
	}
	limit := effectiveLimit(plan.MaxUsers, tenant.Settings.MaxUsers)
	ok := sub.CurrentUsers+n <= limit
	if !ok {
		g.alert(tenant, "user quota reached", sub.CurrentUsers, limit)
	}
	return ok, nil
}

// CanAddAdmins reports whether n more admins fit under the tenant's plan limit.
func (g *Guard) CanAddAdmins(ctx context.Context, tenant *model.Tenant, n int) (bool, error) {
	sub, plan, err := g.load(ctx, tenant.ID)
	if err != nil {
		return false, err
	}
	limit := effectiveLimit(plan.MaxAdmins, tenant.Settings.MaxAdmins)
	ok := sub.CurrentAdmins+n <= limit
	if !ok {
		g.alert(tenant, "admin quota reached", sub.CurrentAdmins, limit)
	}
	return ok, nil
}

func (g *Guard) load(ctx context.Context, tenantID uuid.UUID) (*model.Subscription, *model.Plan, error) {
	sub, err := g.subs.GetByTenant(ctx, tenantID)
	if err != nil {
		return nil, nil, errs.Internal(err)
	}
	if sub == nil {
		return nil, nil, errs.SubscriptionExpired()
	}
	if err := g.AssertActive(sub); err != nil {
		return nil, nil, err
	}

	plan, err := g.plans.GetByID(ctx, sub.PlanID)
	if err != nil {
		return nil, nil, errs.Internal(err)
	}
	if plan == nil {
		log.Error().Str("tenant_id", tenantID.String()).Str("plan_id", sub.PlanID.String()).Msg("Subscription references a missing plan")
		return nil, nil, errs.Internal(errs.NotFound("plan"))
	}
	return sub, plan, nil
}

func (g *Guard) alert(tenant *model.Tenant, message string, current, limit int) {
	monitoring.Alert(message, map[string]string{
		"tenant_id": tenant.ID.String(),
		"current":   strconv.Itoa(current),
		"limit":     strconv.Itoa(limit),
	})
}

// effectiveLimit applies the tenant settings override, which may only lower
// the plan ceiling.
func effectiveLimit(planLimit, override int) int {
	if override > 0 && override < planLimit {
		return override
	}
	return planLimit
}

