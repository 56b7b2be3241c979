package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"

	"github.com/teresa-solution/tenant-access-service/internal/cache"
	"github.com/teresa-solution/tenant-access-service/internal/errs"
	"github.com/teresa-solution/tenant-access-service/internal/model"
	"github.com/teresa-solution/tenant-access-service/internal/monitoring"
	"github.com/teresa-solution/tenant-access-service/internal/subscription"
	"github.com/teresa-solution/tenant-access-service/internal/token"
)

const (
	createRetries    = 3
	createRetryDelay = 100 * time.Millisecond
)

// LifecycleManager creates, updates and transitions tenants. Tenant creation
// is a compensating saga over the tenant, subscription and admin-user records:
// it commits all three or rolls the earlier ones back. The rollback is
// best-effort (one attempt per record), not an ACID guarantee.
type LifecycleManager struct {
	tenants     TenantStore
	subs        SubscriptionStore
	plans       PlanStore
	users       UserStore
	guard       *subscription.Guard
	trustCache  *cache.DomainCache
	issuer      *token.Issuer
	trialDays   int
	defaultPlan string
	now         func() time.Time
}

// NewLifecycleManager wires the manager. defaultPlan may be empty, in which
// case the earliest-created available plan is the fallback.
func NewLifecycleManager(
	tenants TenantStore,
	subs SubscriptionStore,
	plans PlanStore,
	users UserStore,
	guard *subscription.Guard,
	trustCache *cache.DomainCache,
	issuer *token.Issuer,
	trialDays int,
	defaultPlan string,
) *LifecycleManager {
	if trialDays <= 0 {
		trialDays = 30
	}
	return &LifecycleManager{
		tenants:     tenants,
		subs:        subs,
		plans:       plans,
		users:       users,
		guard:       guard,
		trustCache:  trustCache,
		issuer:      issuer,
		trialDays:   trialDays,
		defaultPlan: defaultPlan,
		now:         time.Now,
	}
}

// CreateTenantInput is the registration payload for a new tenant.
type CreateTenantInput struct {
	Name          string
	Domain        string
	ContactEmail  string
	AdminEmail    string
	AdminPassword string
	Plan          string
}

// CreateTenantResult is the record triple produced by a successful creation.
type CreateTenantResult struct {
	Tenant       *model.Tenant
	Subscription *model.Subscription
	AdminUser    *model.User
}

// CreateTenant creates the tenant, its trial subscription and its admin user
// as a single unit of work. On failure every record created so far is
// deleted in reverse order before the error is returned.
func (m *LifecycleManager) CreateTenant(ctx context.Context, input CreateTenantInput) (*CreateTenantResult, error) {
	if err := validateCreateTenantInput(&input); err != nil {
		monitoring.TenantsCreated.WithLabelValues("rejected").Inc()
		return nil, err
	}

	exists, err := m.tenants.ExistsByDomain(ctx, input.Domain)
	if err != nil {
		log.Error().Err(err).Msg("Failed to check domain uniqueness")
		return nil, errs.Internal(err)
	}
	if exists {
		monitoring.TenantsCreated.WithLabelValues("rejected").Inc()
		return nil, errs.DuplicateDomain(input.Domain)
	}
	if existing, err := m.users.GetByEmail(ctx, input.AdminEmail); err != nil {
		log.Error().Err(err).Msg("Failed to check admin email uniqueness")
		return nil, errs.Internal(err)
	} else if existing != nil {
		monitoring.TenantsCreated.WithLabelValues("rejected").Inc()
		return nil, errs.DuplicateEmail()
	}

	plan, err := m.resolvePlan(ctx, input.Plan)
	if err != nil {
		monitoring.TenantsCreated.WithLabelValues("rejected").Inc()
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(input.AdminPassword), bcrypt.DefaultCost)
	if err != nil {
		return nil, errs.Internal(err)
	}

	trialEnd := m.now().AddDate(0, 0, m.trialDays)

	tenant := &model.Tenant{
		Name:         input.Name,
		Domain:       input.Domain,
		Status:       model.StatusTrial,
		ContactEmail: input.ContactEmail,
		TrialEndsAt:  &trialEnd,
	}
	if err := m.withRetry(ctx, func() error { return m.tenants.Create(ctx, tenant) }); err != nil {
		monitoring.TenantsCreated.WithLabelValues("rejected").Inc()
		if errs.IsPolicy(err) {
			return nil, err
		}
		return nil, errs.Internal(err)
	}

	// Usage is seeded with the admin user about to be created.
	sub := &model.Subscription{
		TenantID:      tenant.ID,
		PlanID:        plan.ID,
		Status:        model.StatusTrial,
		Amount:        plan.Amount,
		Currency:      plan.Currency,
		BillingCycle:  plan.BillingCycle,
		CurrentUsers:  1,
		CurrentAdmins: 1,
		StartsAt:      m.now(),
		TrialEndsAt:   &trialEnd,
	}
	if err := m.withRetry(ctx, func() error { return m.subs.Create(ctx, sub) }); err != nil {
		m.rollbackCreate(ctx, tenant, nil, nil)
		return nil, errs.Internal(err)
	}

	admin := &model.User{
		Email:        input.AdminEmail,
		PasswordHash: string(hash),
		Role:         model.RoleAdmin,
		TenantID:     &tenant.ID,
		Active:       true,
		Permissions:  model.AdminPermissions,
	}
	if err := m.withRetry(ctx, func() error { return m.users.Create(ctx, admin) }); err != nil {
		m.rollbackCreate(ctx, tenant, sub, nil)
		if errs.IsKind(err, errs.KindDuplicateEmail) {
			return nil, err
		}
		return nil, errs.Internal(err)
	}

	tenant.SubscriptionID = &sub.ID
	if err := m.withRetry(ctx, func() error { return m.tenants.Update(ctx, tenant) }); err != nil {
		m.rollbackCreate(ctx, tenant, sub, admin)
		return nil, errs.Internal(err)
	}

	m.trustCache.Invalidate(tenant.TrustedDomains()...)
	monitoring.TenantsCreated.WithLabelValues("ok").Inc()
	log.Info().Str("tenant_id", tenant.ID.String()).Str("domain", tenant.Domain).Msg("Tenant created")

	return &CreateTenantResult{Tenant: tenant, Subscription: sub, AdminUser: admin}, nil
}

// rollbackCreate deletes, in reverse order, whatever the saga managed to
// create. Failures are aggregated and logged; there is no second attempt.
func (m *LifecycleManager) rollbackCreate(ctx context.Context, tenant *model.Tenant, sub *model.Subscription, admin *model.User) {
	var result *multierror.Error
	if admin != nil {
		if err := m.users.Delete(ctx, admin.ID); err != nil {
			result = multierror.Append(result, err)
		}
	}
	if sub != nil {
		if err := m.subs.Delete(ctx, sub.ID); err != nil {
			result = multierror.Append(result, err)
		}
	}
	if tenant != nil {
		if err := m.tenants.Delete(ctx, tenant.ID); err != nil {
			result = multierror.Append(result, err)
		}
	}
	monitoring.TenantsCreated.WithLabelValues("rolled_back").Inc()
	if err := result.ErrorOrNil(); err != nil {
		log.Error().Err(err).Str("tenant_id", tenant.ID.String()).Msg("Tenant creation rollback left residue")
		monitoring.Alert("tenant creation rollback failed", map[string]string{"tenant_id": tenant.ID.String()})
		return
	}
	log.Warn().Str("tenant_id", tenant.ID.String()).Msg("Tenant creation rolled back")
}

func (m *LifecycleManager) resolvePlan(ctx context.Context, name string) (*model.Plan, error) {
	if name == "" {
		name = m.defaultPlan
	}
	if name != "" {
		plan, err := m.plans.GetByName(ctx, name)
		if err != nil {
			return nil, errs.Internal(err)
		}
		if plan != nil {
			return plan, nil
		}
	}
	plan, err := m.plans.GetDefault(ctx)
	if err != nil {
		return nil, errs.Internal(err)
	}
	if plan == nil {
		return nil, errs.Validation("plan", "no subscription plan is available")
	}
	return plan, nil
}

// Tenant loads a tenant by id.
func (m *LifecycleManager) Tenant(ctx context.Context, id uuid.UUID) (*model.Tenant, error) {
	return m.loadTenant(ctx, id)
}

// UpdateTenantPatch carries optional tenant mutations; nil fields are left
// untouched. Last write wins.
type UpdateTenantPatch struct {
	Name         *string
	ContactEmail *string
	Settings     *model.TenantSettings
}

// UpdateTenant applies a patch and invalidates the trust cache for the
// tenant's domains.
func (m *LifecycleManager) UpdateTenant(ctx context.Context, id uuid.UUID, patch UpdateTenantPatch) (*model.Tenant, error) {
	tenant, err := m.loadTenant(ctx, id)
	if err != nil {
		return nil, err
	}

	if patch.Name != nil {
		if *patch.Name == "" {
			return nil, errs.Validation("name", "name is required")
		}
		tenant.Name = *patch.Name
	}
	if patch.ContactEmail != nil {
		if !isValidEmail(*patch.ContactEmail) {
			return nil, errs.Validation("contact_email", "invalid email format")
		}
		tenant.ContactEmail = *patch.ContactEmail
	}
	if patch.Settings != nil {
		tenant.Settings = *patch.Settings
	}

	if err := m.tenants.Update(ctx, tenant); err != nil {
		log.Error().Err(err).Str("tenant_id", id.String()).Msg("Failed to update tenant")
		if errs.IsPolicy(err) {
			return nil, err
		}
		return nil, errs.Internal(err)
	}

	m.trustCache.Invalidate(tenant.TrustedDomains()...)
	return tenant, nil
}

// Suspend transitions the tenant and its subscription to suspended.
// Idempotent.
func (m *LifecycleManager) Suspend(ctx context.Context, id uuid.UUID) error {
	return m.transition(ctx, id, model.StatusSuspended)
}

// Activate transitions the tenant and its subscription to active. Idempotent.
func (m *LifecycleManager) Activate(ctx context.Context, id uuid.UUID) error {
	return m.transition(ctx, id, model.StatusActive)
}

// Cancel soft-deletes the tenant: status moves to cancelled, the row and its
// history remain. Idempotent.
func (m *LifecycleManager) Cancel(ctx context.Context, id uuid.UUID) error {
	return m.transition(ctx, id, model.StatusCancelled)
}

func (m *LifecycleManager) transition(ctx context.Context, id uuid.UUID, status string) error {
	tenant, err := m.loadTenant(ctx, id)
	if err != nil {
		return err
	}

	if err := m.tenants.UpdateStatus(ctx, id, status); err != nil {
		log.Error().Err(err).Str("tenant_id", id.String()).Str("status", status).Msg("Failed to transition tenant")
		if errs.IsPolicy(err) {
			return err
		}
		return errs.Internal(err)
	}
	if err := m.subs.UpdateStatus(ctx, id, status); err != nil && !errs.IsKind(err, errs.KindNotFound) {
		log.Error().Err(err).Str("tenant_id", id.String()).Msg("Failed to transition subscription")
	}

	m.trustCache.Invalidate(tenant.TrustedDomains()...)
	log.Info().Str("tenant_id", id.String()).Str("status", status).Msg("Tenant status updated")
	return nil
}

// RequestDomain files a pending custom-domain approval request.
func (m *LifecycleManager) RequestDomain(ctx context.Context, id uuid.UUID, domain string) error {
	domain = strings.ToLower(strings.TrimSpace(domain))
	if !isValidDomain(domain) {
		return errs.Validation("domain", "invalid domain format")
	}

	tenant, err := m.loadTenant(ctx, id)
	if err != nil {
		return err
	}
	for _, req := range tenant.DomainRequests {
		if req.Domain == domain && req.Status == model.DomainRequestPending {
			return nil
		}
	}
	tenant.DomainRequests = append(tenant.DomainRequests, model.DomainRequest{
		Domain:      domain,
		Status:      model.DomainRequestPending,
		RequestedAt: m.now(),
	})
	return m.saveTenant(ctx, tenant)
}

// ApproveDomain approves a pending request and adds the domain to the
// tenant's trusted set.
func (m *LifecycleManager) ApproveDomain(ctx context.Context, id uuid.UUID, domain string) error {
	return m.settleDomainRequest(ctx, id, domain, model.DomainRequestApproved)
}

// RejectDomain rejects a pending request.
func (m *LifecycleManager) RejectDomain(ctx context.Context, id uuid.UUID, domain string) error {
	return m.settleDomainRequest(ctx, id, domain, model.DomainRequestRejected)
}

func (m *LifecycleManager) settleDomainRequest(ctx context.Context, id uuid.UUID, domain, status string) error {
	domain = strings.ToLower(strings.TrimSpace(domain))

	tenant, err := m.loadTenant(ctx, id)
	if err != nil {
		return err
	}

	found := false
	for i, req := range tenant.DomainRequests {
		if req.Domain != domain {
			continue
		}
		found = true
		tenant.DomainRequests[i].Status = status
	}
	if !found {
		return errs.NotFound("domain request")
	}

	if status == model.DomainRequestApproved {
		present := false
		for _, d := range tenant.CustomDomains {
			if d == domain {
				present = true
				break
			}
		}
		if !present {
			tenant.CustomDomains = append(tenant.CustomDomains, domain)
		}
	}
	return m.saveTenant(ctx, tenant)
}

// SwitchUserTenant moves a user's session scope to another tenant and returns
// a token scoped to it. Ordinary users may only "switch" to their own tenant;
// super-admins may switch anyone anywhere, provided the target is active.
func (m *LifecycleManager) SwitchUserTenant(ctx context.Context, actor *token.Claims, userID, tenantID uuid.UUID) (string, error) {
	user, err := m.users.GetByID(ctx, userID)
	if err != nil {
		return "", errs.Internal(err)
	}
	if user == nil {
		return "", errs.NotFound("user")
	}

	if actor.Role != model.RoleSuperAdmin && !user.BelongsTo(tenantID) {
		return "", errs.Forbidden()
	}

	target, err := m.loadTenant(ctx, tenantID)
	if err != nil {
		return "", err
	}
	if !target.IsActive(m.now()) {
		return "", errs.TenantInactive(target.Domain)
	}
	sub, err := m.subs.GetByTenant(ctx, tenantID)
	if err != nil {
		return "", errs.Internal(err)
	}
	if err := m.guard.AssertActive(sub); err != nil {
		return "", err
	}

	if user.TenantID == nil || *user.TenantID != tenantID {
		previous := user.TenantID
		if err := m.users.SetTenant(ctx, userID, tenantID); err != nil {
			return "", errs.Internal(err)
		}
		adminDelta := 0
		if user.Role == model.RoleAdmin {
			adminDelta = 1
		}
		// Usage counters follow the user; failures are logged, not fatal.
		if previous != nil {
			if err := m.subs.AdjustUsage(ctx, *previous, -1, -adminDelta); err != nil {
				log.Error().Err(err).Str("tenant_id", previous.String()).Msg("Failed to decrement usage on tenant switch")
			}
			if prevTenant, err := m.loadTenant(ctx, *previous); err == nil {
				m.trustCache.Invalidate(prevTenant.TrustedDomains()...)
			}
		}
		if err := m.subs.AdjustUsage(ctx, tenantID, 1, adminDelta); err != nil {
			log.Error().Err(err).Str("tenant_id", tenantID.String()).Msg("Failed to increment usage on tenant switch")
		}
	}

	m.trustCache.Invalidate(target.TrustedDomains()...)
	return m.issuer.Issue(userID, &tenantID, user.Role)
}

func (m *LifecycleManager) loadTenant(ctx context.Context, id uuid.UUID) (*model.Tenant, error) {
	tenant, err := m.tenants.GetByID(ctx, id)
	if err != nil {
		log.Error().Err(err).Str("tenant_id", id.String()).Msg("Failed to get tenant")
		return nil, errs.Internal(err)
	}
	if tenant == nil {
		return nil, errs.NotFound("tenant")
	}
	return tenant, nil
}

func (m *LifecycleManager) saveTenant(ctx context.Context, tenant *model.Tenant) error {
	if err := m.tenants.Update(ctx, tenant); err != nil {
		log.Error().Err(err).Str("tenant_id", tenant.ID.String()).Msg("Failed to update tenant")
		if errs.IsPolicy(err) {
			return err
		}
		return errs.Internal(err)
	}
	m.trustCache.Invalidate(tenant.TrustedDomains()...)
	return nil
}

// withRetry retries transient store failures a bounded number of times.
// Policy errors are returned immediately.
func (m *LifecycleManager) withRetry(ctx context.Context, op func() error) error {
	var err error
	for attempt := 0; attempt < createRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(createRetryDelay):
			}
		}
		if err = op(); err == nil {
			return nil
		}
		if errs.IsPolicy(err) {
			return err
		}
		log.Warn().Err(err).Int("attempt", attempt+1).Msg("Store operation failed, retrying")
	}
	return err
}

func validateCreateTenantInput(input *CreateTenantInput) error {
	input.Name = strings.TrimSpace(input.Name)
	input.Domain = strings.ToLower(strings.TrimSpace(input.Domain))
	input.AdminEmail = strings.ToLower(strings.TrimSpace(input.AdminEmail))

	if input.Name == "" {
		return errs.Validation("name", "name is required")
	}
	if input.Domain == "" {
		return errs.Validation("domain", "domain is required")
	}
	if !isValidDomain(input.Domain) {
		return errs.Validation("domain", "invalid domain format")
	}
	if input.ContactEmail != "" && !isValidEmail(input.ContactEmail) {
		return errs.Validation("contact_email", "invalid email format")
	}
	if input.AdminEmail == "" {
		return errs.Validation("admin_email", "admin email is required")
	}
	if !isValidEmail(input.AdminEmail) {
		return errs.Validation("admin_email", "invalid email format")
	}
	if len(input.AdminPassword) < 8 {
		return errs.Validation("admin_password", "password must be at least 8 characters")
	}
	return nil
}

// isValidDomain checks each label against ^[a-z0-9]([a-z0-9\-]{0,61}[a-z0-9])?$
func isValidDomain(domain string) bool {
	if len(domain) < 1 || len(domain) > 253 {
		return false
	}
	labels := strings.Split(domain, ".")
	for _, label := range labels {
		if !isValidLabel(label) {
			return false
		}
	}
	return true
}

func isValidLabel(label string) bool {
	if len(label) < 1 || len(label) > 63 {
		return false
	}
	for i, r := range label {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
		case r == '-' && i > 0 && i < len(label)-1:
		default:
			return false
		}
	}
	return true
}

// isValidEmail performs a basic email validation
func isValidEmail(email string) bool {
	if len(email) < 3 || !strings.Contains(email, "@") || !strings.Contains(email, ".") {
		return false
	}
	return true
}
