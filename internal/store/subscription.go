package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/teresa-solution/tenant-access-service/internal/errs"
	"github.com/teresa-solution/tenant-access-service/internal/model"
)

// SubscriptionRepository handles database operations for subscriptions
type SubscriptionRepository struct {
	db *sql.DB
}

const subscriptionColumns = `id, tenant_id, plan_id, status, amount, currency, billing_cycle,
		current_users, current_admins, usage_updated_at, starts_at, ends_at, trial_ends_at,
		created_at, updated_at`

// Create inserts a new subscription
func (r *SubscriptionRepository) Create(ctx context.Context, sub *model.Subscription) error {
	sub.ID = uuid.New()
	sub.CreatedAt = time.Now()
	sub.UpdatedAt = sub.CreatedAt
	sub.UsageUpdatedAt = sub.CreatedAt

	query := `
		INSERT INTO subscriptions (id, tenant_id, plan_id, status, amount, currency, billing_cycle,
			current_users, current_admins, usage_updated_at, starts_at, ends_at, trial_ends_at,
			created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`
	_, err := r.db.ExecContext(ctx, query,
		sub.ID, sub.TenantID, sub.PlanID, sub.Status, sub.Amount, sub.Currency, sub.BillingCycle,
		sub.CurrentUsers, sub.CurrentAdmins, sub.UsageUpdatedAt, sub.StartsAt, sub.EndsAt,
		sub.TrialEndsAt, sub.CreatedAt, sub.UpdatedAt,
	)
	return err
}

// GetByTenant retrieves the subscription bound to a tenant
func (r *SubscriptionRepository) GetByTenant(ctx context.Context, tenantID uuid.UUID) (*model.Subscription, error) {
	query := `SELECT ` + subscriptionColumns + ` FROM subscriptions WHERE tenant_id = $1`
	return r.scanSubscription(r.db.QueryRowContext(ctx, query, tenantID))
}

// UpdateStatus transitions the subscription status.
func (r *SubscriptionRepository) UpdateStatus(ctx context.Context, tenantID uuid.UUID, status string) error {
	query := `UPDATE subscriptions SET status = $2, updated_at = now() WHERE tenant_id = $1`
	result, err := r.db.ExecContext(ctx, query, tenantID, status)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return errs.NotFound("subscription")
	}
	return nil
}

// AdjustUsage applies deltas to the usage counters. usage_updated_at moves in
// the same statement; counters are never written without it. Counters are
// clamped at zero.
func (r *SubscriptionRepository) AdjustUsage(ctx context.Context, tenantID uuid.UUID, userDelta, adminDelta int) error {
	query := `
		UPDATE subscriptions
		SET current_users = GREATEST(current_users + $2, 0),
			current_admins = GREATEST(current_admins + $3, 0),
			usage_updated_at = now(),
			updated_at = now()
		WHERE tenant_id = $1
	`
	result, err := r.db.ExecContext(ctx, query, tenantID, userDelta, adminDelta)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return errs.NotFound("subscription")
	}
	return nil
}

// Delete removes a subscription row. Only the creation saga's rollback uses
// this path.
func (r *SubscriptionRepository) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM subscriptions WHERE id = $1`, id)
	return err
}

func (r *SubscriptionRepository) scanSubscription(row rowScanner) (*model.Subscription, error) {
	sub := &model.Subscription{}
	err := row.Scan(
		&sub.ID, &sub.TenantID, &sub.PlanID, &sub.Status, &sub.Amount, &sub.Currency,
		&sub.BillingCycle, &sub.CurrentUsers, &sub.CurrentAdmins, &sub.UsageUpdatedAt,
		&sub.StartsAt, &sub.EndsAt, &sub.TrialEndsAt, &sub.CreatedAt, &sub.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return sub, nil
}
