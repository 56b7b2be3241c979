package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/teresa-solution/tenant-access-service/internal/crypto"
	"github.com/teresa-solution/tenant-access-service/internal/errs"
	"github.com/teresa-solution/tenant-access-service/internal/model"
)

const tenantCacheTTL = 1 * time.Hour

// TenantRepository handles database operations for tenants
type TenantRepository struct {
	db     *sql.DB
	redis  RedisClient
	cipher *crypto.Cipher
}

const tenantColumns = `id, name, domain, custom_domains, domain_requests, status, settings,
		encrypted_email, email_nonce, subscription_id, trial_ends_at, created_at, updated_at, deleted_at`

// Create inserts a new tenant into the database
func (r *TenantRepository) Create(ctx context.Context, tenant *model.Tenant) error {
	tenant.ID = uuid.New()
	tenant.CreatedAt = time.Now()
	tenant.UpdatedAt = tenant.CreatedAt

	if tenant.ContactEmail != "" && r.cipher != nil {
		encrypted, nonce, err := r.cipher.Encrypt(tenant.ContactEmail)
		if err != nil {
			return err
		}
		tenant.EncryptedEmail = encrypted
		tenant.EmailNonce = nonce
	}

	settings, err := json.Marshal(tenant.Settings)
	if err != nil {
		return err
	}
	requests, err := json.Marshal(tenant.DomainRequests)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO tenants (id, name, domain, custom_domains, domain_requests, status, settings,
			encrypted_email, email_nonce, subscription_id, trial_ends_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`
	_, err = r.db.ExecContext(ctx, query,
		tenant.ID, tenant.Name, tenant.Domain, pq.Array(tenant.CustomDomains), requests,
		tenant.Status, settings, tenant.EncryptedEmail, tenant.EmailNonce,
		tenant.SubscriptionID, tenant.TrialEndsAt, tenant.CreatedAt, tenant.UpdatedAt,
	)
	if isUniqueViolation(err, "") {
		return errs.DuplicateDomain(tenant.Domain)
	}
	return err
}

// GetByID retrieves a tenant by ID, consulting the Redis read-through cache
// first. Contact email is never cached; a cache hit returns it empty.
func (r *TenantRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Tenant, error) {
	key := fmt.Sprintf("tenant:%s", id.String())
	if r.redis != nil {
		if cached, err := r.redis.Get(ctx, key).Result(); err == nil {
			tenant := &model.Tenant{}
			if err := json.Unmarshal([]byte(cached), tenant); err == nil {
				return tenant, nil
			}
		}
	}

	query := `SELECT ` + tenantColumns + ` FROM tenants WHERE id = $1`
	tenant, err := r.scanTenant(r.db.QueryRowContext(ctx, query, id))
	if err != nil || tenant == nil {
		return tenant, err
	}

	if r.redis != nil {
		if data, err := json.Marshal(tenant); err == nil {
			r.redis.SetEx(ctx, key, data, tenantCacheTTL)
		}
	}
	return tenant, nil
}

// GetByDomain retrieves a tenant whose primary domain or approved custom
// domain set contains the given hostname, restricted to statuses that may
// serve traffic. Trial expiry is checked by the caller.
func (r *TenantRepository) GetByDomain(ctx context.Context, domain string) (*model.Tenant, error) {
	query := `
		SELECT ` + tenantColumns + `
		FROM tenants
		WHERE (domain = $1 OR $1 = ANY(custom_domains))
		  AND status IN ($2, $3)
		  AND deleted_at IS NULL
	`
	return r.scanTenant(r.db.QueryRowContext(ctx, query, domain, model.StatusActive, model.StatusTrial))
}

// ExistsByDomain reports whether any tenant, regardless of status, owns the
// primary domain. Used for creation-time uniqueness checks.
func (r *TenantRepository) ExistsByDomain(ctx context.Context, domain string) (bool, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM tenants WHERE domain = $1`, domain).Scan(&count)
	return count > 0, err
}

// Update updates a tenant in the database and invalidates its cache entry.
func (r *TenantRepository) Update(ctx context.Context, tenant *model.Tenant) error {
	if tenant.ContactEmail != "" && r.cipher != nil {
		encrypted, nonce, err := r.cipher.Encrypt(tenant.ContactEmail)
		if err != nil {
			return err
		}
		tenant.EncryptedEmail = encrypted
		tenant.EmailNonce = nonce
	}

	settings, err := json.Marshal(tenant.Settings)
	if err != nil {
		return err
	}
	requests, err := json.Marshal(tenant.DomainRequests)
	if err != nil {
		return err
	}

	query := `
		UPDATE tenants
		SET name = $2, domain = $3, custom_domains = $4, domain_requests = $5, status = $6,
			settings = $7, encrypted_email = $8, email_nonce = $9, subscription_id = $10,
			trial_ends_at = $11, updated_at = now()
		WHERE id = $1
		RETURNING updated_at
	`
	err = r.db.QueryRowContext(ctx, query,
		tenant.ID, tenant.Name, tenant.Domain, pq.Array(tenant.CustomDomains), requests,
		tenant.Status, settings, tenant.EncryptedEmail, tenant.EmailNonce,
		tenant.SubscriptionID, tenant.TrialEndsAt,
	).Scan(&tenant.UpdatedAt)
	if err == sql.ErrNoRows {
		return errs.NotFound("tenant")
	}
	if isUniqueViolation(err, "") {
		return errs.DuplicateDomain(tenant.Domain)
	}
	if err != nil {
		return err
	}

	r.invalidate(ctx, tenant.ID)
	return nil
}

// UpdateStatus transitions a tenant's lifecycle status. Cancelling stamps
// deleted_at once and keeps the row (soft delete). The operation is
// idempotent.
func (r *TenantRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status string) error {
	query := `
		UPDATE tenants
		SET status = $2,
			updated_at = now(),
			deleted_at = CASE WHEN $2 = $3 THEN COALESCE(deleted_at, now()) ELSE deleted_at END
		WHERE id = $1
	`
	result, err := r.db.ExecContext(ctx, query, id, status, model.StatusCancelled)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return errs.NotFound("tenant")
	}

	r.invalidate(ctx, id)
	return nil
}

// Delete removes a tenant row outright. Only the creation saga's rollback
// uses this; lifecycle cancellation goes through UpdateStatus.
func (r *TenantRepository) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM tenants WHERE id = $1`, id)
	if err != nil {
		return err
	}
	r.invalidate(ctx, id)
	return nil
}

// ContactEmail decrypts and returns the stored contact email.
func (r *TenantRepository) ContactEmail(tenant *model.Tenant) (string, error) {
	if len(tenant.EncryptedEmail) == 0 || r.cipher == nil {
		return "", nil
	}
	return r.cipher.Decrypt(tenant.EncryptedEmail, tenant.EmailNonce)
}

func (r *TenantRepository) invalidate(ctx context.Context, id uuid.UUID) {
	if r.redis != nil {
		r.redis.Del(ctx, fmt.Sprintf("tenant:%s", id.String()))
	}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (r *TenantRepository) scanTenant(row rowScanner) (*model.Tenant, error) {
	tenant := &model.Tenant{}
	var settings, requests []byte
	err := row.Scan(
		&tenant.ID, &tenant.Name, &tenant.Domain, pq.Array(&tenant.CustomDomains), &requests,
		&tenant.Status, &settings, &tenant.EncryptedEmail, &tenant.EmailNonce,
		&tenant.SubscriptionID, &tenant.TrialEndsAt, &tenant.CreatedAt, &tenant.UpdatedAt, &tenant.DeletedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if len(settings) > 0 {
		if err := json.Unmarshal(settings, &tenant.Settings); err != nil {
			return nil, err
		}
	}
	if len(requests) > 0 {
		if err := json.Unmarshal(requests, &tenant.DomainRequests); err != nil {
			return nil, err
		}
	}
	return tenant, nil
}
