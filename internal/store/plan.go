package store

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	"github.com/teresa-solution/tenant-access-service/internal/model"
)

// PlanRepository handles database operations for subscription plans
type PlanRepository struct {
	db *sql.DB
}

const planColumns = `id, name, max_users, max_admins, amount, currency, billing_cycle, available, created_at`

// GetByID retrieves a plan by ID
func (r *PlanRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Plan, error) {
	query := `SELECT ` + planColumns + ` FROM plans WHERE id = $1`
	return r.scanPlan(r.db.QueryRowContext(ctx, query, id))
}

// GetByName retrieves an available plan by name
func (r *PlanRepository) GetByName(ctx context.Context, name string) (*model.Plan, error) {
	query := `SELECT ` + planColumns + ` FROM plans WHERE name = $1 AND available`
	return r.scanPlan(r.db.QueryRowContext(ctx, query, name))
}

// GetDefault returns the earliest-created available plan, the fallback when
// tenant creation names no plan.
func (r *PlanRepository) GetDefault(ctx context.Context) (*model.Plan, error) {
	query := `SELECT ` + planColumns + ` FROM plans WHERE available ORDER BY created_at ASC LIMIT 1`
	return r.scanPlan(r.db.QueryRowContext(ctx, query))
}

func (r *PlanRepository) scanPlan(row rowScanner) (*model.Plan, error) {
	plan := &model.Plan{}
	err := row.Scan(
		&plan.ID, &plan.Name, &plan.MaxUsers, &plan.MaxAdmins,
		&plan.Amount, &plan.Currency, &plan.BillingCycle, &plan.Available, &plan.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return plan, nil
}
