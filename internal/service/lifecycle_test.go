package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/teresa-solution/tenant-access-service/internal/cache"
	"github.com/teresa-solution/tenant-access-service/internal/errs"
	"github.com/teresa-solution/tenant-access-service/internal/model"
	"github.com/teresa-solution/tenant-access-service/internal/subscription"
	"github.com/teresa-solution/tenant-access-service/internal/token"
)

type serviceEnv struct {
	tenants    *memTenantStore
	subs       *memSubStore
	plans      *memPlanStore
	users      *memUserStore
	trustCache *cache.DomainCache
	issuer     *token.Issuer
	guard      *subscription.Guard
	mgr        *LifecycleManager
}

func newServiceEnv() *serviceEnv {
	plans := &memPlanStore{plans: []*model.Plan{{
		ID:           uuid.New(),
		Name:         "starter",
		MaxUsers:     10,
		MaxAdmins:    3,
		Amount:       4900,
		Currency:     "USD",
		BillingCycle: "monthly",
		Available:    true,
		CreatedAt:    time.Now(),
	}}}
	env := &serviceEnv{
		tenants:    newMemTenantStore(),
		subs:       newMemSubStore(),
		plans:      plans,
		users:      newMemUserStore(),
		trustCache: cache.New(5*time.Minute, 100),
		issuer:     token.NewIssuer([]byte("0123456789abcdef0123456789abcdef"), time.Hour),
	}
	env.guard = subscription.NewGuard(env.subs, env.plans)
	env.mgr = NewLifecycleManager(env.tenants, env.subs, env.plans, env.users, env.guard, env.trustCache, env.issuer, 30, "starter")
	return env
}

func validCreateInput() CreateTenantInput {
	return CreateTenantInput{
		Name:          "Acme Immigration",
		Domain:        "acme.example.com",
		ContactEmail:  "ops@acme.example.com",
		AdminEmail:    "admin@acme.example.com",
		AdminPassword: "s3cretpass",
	}
}

// failTimes returns an error hook that fails n times, then succeeds.
func failTimes(n int, err error) func() error {
	return func() error {
		if n > 0 {
			n--
			return err
		}
		return nil
	}
}

func TestCreateTenant(t *testing.T) {
	env := newServiceEnv()

	result, err := env.mgr.CreateTenant(context.Background(), validCreateInput())
	require.NoError(t, err)

	tenant := result.Tenant
	assert.Equal(t, model.StatusTrial, tenant.Status)
	assert.Equal(t, "acme.example.com", tenant.Domain)
	require.NotNil(t, tenant.TrialEndsAt)
	assert.WithinDuration(t, time.Now().AddDate(0, 0, 30), *tenant.TrialEndsAt, time.Minute)

	sub := result.Subscription
	assert.Equal(t, tenant.ID, sub.TenantID)
	assert.Equal(t, model.StatusTrial, sub.Status)
	assert.Equal(t, 1, sub.CurrentUsers)
	assert.Equal(t, 1, sub.CurrentAdmins)
	assert.Equal(t, int64(4900), sub.Amount)
	require.NotNil(t, tenant.SubscriptionID)
	assert.Equal(t, sub.ID, *tenant.SubscriptionID)

	admin := result.AdminUser
	assert.Equal(t, model.RoleAdmin, admin.Role)
	require.NotNil(t, admin.TenantID)
	assert.Equal(t, tenant.ID, *admin.TenantID)
	assert.Equal(t, model.AdminPermissions, admin.Permissions)
	assert.True(t, admin.Active)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(admin.PasswordHash), []byte("s3cretpass")))
}

func TestCreateTenant_Validation(t *testing.T) {
	env := newServiceEnv()
	tests := []struct {
		name   string
		mutate func(*CreateTenantInput)
	}{
		{"missing name", func(in *CreateTenantInput) { in.Name = "" }},
		{"bad domain", func(in *CreateTenantInput) { in.Domain = "-bad-.example.com" }},
		{"missing admin email", func(in *CreateTenantInput) { in.AdminEmail = "" }},
		{"short password", func(in *CreateTenantInput) { in.AdminPassword = "short" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			input := validCreateInput()
			tt.mutate(&input)
			_, err := env.mgr.CreateTenant(context.Background(), input)
			assert.Equal(t, errs.KindValidation, errs.KindOf(err))
		})
	}
}

func TestCreateTenant_DuplicateDomain(t *testing.T) {
	env := newServiceEnv()
	_, err := env.mgr.CreateTenant(context.Background(), validCreateInput())
	require.NoError(t, err)

	input := validCreateInput()
	input.AdminEmail = "other@acme.example.com"
	_, err = env.mgr.CreateTenant(context.Background(), input)
	assert.Equal(t, errs.KindDuplicateDomain, errs.KindOf(err))
	assert.Len(t, env.tenants.tenants, 1)
	assert.Len(t, env.users.users, 1)
}

func TestCreateTenant_DuplicateAdminEmail(t *testing.T) {
	env := newServiceEnv()
	_, err := env.mgr.CreateTenant(context.Background(), validCreateInput())
	require.NoError(t, err)

	input := validCreateInput()
	input.Domain = "beta.example.com"
	_, err = env.mgr.CreateTenant(context.Background(), input)
	assert.Equal(t, errs.KindDuplicateEmail, errs.KindOf(err))
	assert.Len(t, env.tenants.tenants, 1)
}

func TestCreateTenant_RollbackOnUserFailure(t *testing.T) {
	env := newServiceEnv()
	env.users.failCreate = func() error { return errors.New("insert failed") }

	_, err := env.mgr.CreateTenant(context.Background(), validCreateInput())
	require.Error(t, err)

	// The partially created tenant and subscription are gone.
	assert.Empty(t, env.tenants.tenants)
	assert.Empty(t, env.subs.subs)
	assert.Empty(t, env.users.users)
}

func TestCreateTenant_RetriesTransientFailure(t *testing.T) {
	env := newServiceEnv()
	env.tenants.failCreate = failTimes(2, errors.New("connection reset"))

	result, err := env.mgr.CreateTenant(context.Background(), validCreateInput())
	require.NoError(t, err)
	assert.NotNil(t, result.Tenant)
}

func TestTransitions(t *testing.T) {
	env := newServiceEnv()
	result, err := env.mgr.CreateTenant(context.Background(), validCreateInput())
	require.NoError(t, err)
	id := result.Tenant.ID
	ctx := context.Background()

	require.NoError(t, env.mgr.Suspend(ctx, id))
	require.NoError(t, env.mgr.Suspend(ctx, id)) // idempotent

	stored, _ := env.tenants.GetByID(ctx, id)
	assert.Equal(t, model.StatusSuspended, stored.Status)
	sub, _ := env.subs.GetByTenant(ctx, id)
	assert.Equal(t, model.StatusSuspended, sub.Status)

	require.NoError(t, env.mgr.Activate(ctx, id))
	stored, _ = env.tenants.GetByID(ctx, id)
	assert.Equal(t, model.StatusActive, stored.Status)

	require.NoError(t, env.mgr.Cancel(ctx, id))
	stored, _ = env.tenants.GetByID(ctx, id)
	assert.Equal(t, model.StatusCancelled, stored.Status)
	assert.NotNil(t, stored.DeletedAt)
}

func TestTransitions_UnknownTenant(t *testing.T) {
	env := newServiceEnv()
	err := env.mgr.Suspend(context.Background(), uuid.New())
	assert.Equal(t, errs.KindNotFound, errs.KindOf(err))
}

func TestMutationInvalidatesTrustCache(t *testing.T) {
	env := newServiceEnv()
	result, err := env.mgr.CreateTenant(context.Background(), validCreateInput())
	require.NoError(t, err)

	env.trustCache.Put("acme.example.com", result.Tenant, false)
	require.NoError(t, env.mgr.Suspend(context.Background(), result.Tenant.ID))

	_, ok := env.trustCache.Get("acme.example.com")
	assert.False(t, ok)
}

func TestDomainRequestFlow(t *testing.T) {
	env := newServiceEnv()
	result, err := env.mgr.CreateTenant(context.Background(), validCreateInput())
	require.NoError(t, err)
	id := result.Tenant.ID
	ctx := context.Background()

	require.NoError(t, env.mgr.RequestDomain(ctx, id, "Portal.Acme.COM"))
	require.NoError(t, env.mgr.RequestDomain(ctx, id, "portal.acme.com")) // duplicate pending is a no-op

	stored, _ := env.tenants.GetByID(ctx, id)
	require.Len(t, stored.DomainRequests, 1)
	assert.Equal(t, "portal.acme.com", stored.DomainRequests[0].Domain)
	assert.Equal(t, model.DomainRequestPending, stored.DomainRequests[0].Status)

	require.NoError(t, env.mgr.ApproveDomain(ctx, id, "portal.acme.com"))
	stored, _ = env.tenants.GetByID(ctx, id)
	assert.Equal(t, model.DomainRequestApproved, stored.DomainRequests[0].Status)
	assert.Contains(t, stored.CustomDomains, "portal.acme.com")

	require.NoError(t, env.mgr.RequestDomain(ctx, id, "other.acme.com"))
	require.NoError(t, env.mgr.RejectDomain(ctx, id, "other.acme.com"))
	stored, _ = env.tenants.GetByID(ctx, id)
	assert.NotContains(t, stored.CustomDomains, "other.acme.com")

	err = env.mgr.ApproveDomain(ctx, id, "never-requested.com")
	assert.Equal(t, errs.KindNotFound, errs.KindOf(err))
}

func TestRequestDomain_InvalidFormat(t *testing.T) {
	env := newServiceEnv()
	err := env.mgr.RequestDomain(context.Background(), uuid.New(), "not a domain")
	assert.Equal(t, errs.KindValidation, errs.KindOf(err))
}

func createTwoTenants(t *testing.T, env *serviceEnv) (*CreateTenantResult, *CreateTenantResult) {
	t.Helper()
	a, err := env.mgr.CreateTenant(context.Background(), validCreateInput())
	require.NoError(t, err)

	input := validCreateInput()
	input.Name = "Beta Legal"
	input.Domain = "beta.example.com"
	input.AdminEmail = "admin@beta.example.com"
	b, err := env.mgr.CreateTenant(context.Background(), input)
	require.NoError(t, err)

	require.NoError(t, env.mgr.Activate(context.Background(), a.Tenant.ID))
	require.NoError(t, env.mgr.Activate(context.Background(), b.Tenant.ID))
	return a, b
}

func TestSwitchUserTenant_SuperAdmin(t *testing.T) {
	env := newServiceEnv()
	a, b := createTwoTenants(t, env)
	ctx := context.Background()

	actor := &token.Claims{Role: model.RoleSuperAdmin}
	raw, err := env.mgr.SwitchUserTenant(ctx, actor, a.AdminUser.ID, b.Tenant.ID)
	require.NoError(t, err)

	claims, err := env.issuer.Verify(raw)
	require.NoError(t, err)
	require.NotNil(t, claims.TenantID)
	assert.Equal(t, b.Tenant.ID, *claims.TenantID)

	moved, _ := env.users.GetByID(ctx, a.AdminUser.ID)
	require.NotNil(t, moved.TenantID)
	assert.Equal(t, b.Tenant.ID, *moved.TenantID)

	// Usage counters followed the admin across tenants.
	subA, _ := env.subs.GetByTenant(ctx, a.Tenant.ID)
	subB, _ := env.subs.GetByTenant(ctx, b.Tenant.ID)
	assert.Equal(t, 0, subA.CurrentUsers)
	assert.Equal(t, 0, subA.CurrentAdmins)
	assert.Equal(t, 2, subB.CurrentUsers)
	assert.Equal(t, 2, subB.CurrentAdmins)
}

func TestSwitchUserTenant_OwnTenantAllowed(t *testing.T) {
	env := newServiceEnv()
	a, _ := createTwoTenants(t, env)
	ctx := context.Background()

	actor := &token.Claims{TenantID: a.AdminUser.TenantID, Role: model.RoleAdmin}
	raw, err := env.mgr.SwitchUserTenant(ctx, actor, a.AdminUser.ID, a.Tenant.ID)
	require.NoError(t, err)

	claims, err := env.issuer.Verify(raw)
	require.NoError(t, err)
	assert.Equal(t, a.Tenant.ID, *claims.TenantID)

	// No move happened, so counters are untouched.
	subA, _ := env.subs.GetByTenant(ctx, a.Tenant.ID)
	assert.Equal(t, 1, subA.CurrentUsers)
}

func TestSwitchUserTenant_ForbiddenForOrdinaryUser(t *testing.T) {
	env := newServiceEnv()
	a, b := createTwoTenants(t, env)

	actor := &token.Claims{TenantID: a.AdminUser.TenantID, Role: model.RoleAdmin}
	_, err := env.mgr.SwitchUserTenant(context.Background(), actor, a.AdminUser.ID, b.Tenant.ID)
	assert.Equal(t, errs.KindForbidden, errs.KindOf(err))
}

func TestSwitchUserTenant_InactiveTarget(t *testing.T) {
	env := newServiceEnv()
	a, b := createTwoTenants(t, env)
	require.NoError(t, env.mgr.Suspend(context.Background(), b.Tenant.ID))

	actor := &token.Claims{Role: model.RoleSuperAdmin}
	_, err := env.mgr.SwitchUserTenant(context.Background(), actor, a.AdminUser.ID, b.Tenant.ID)
	assert.Equal(t, errs.KindTenantInactive, errs.KindOf(err))
}

func TestUpdateTenant(t *testing.T) {
	env := newServiceEnv()
	result, err := env.mgr.CreateTenant(context.Background(), validCreateInput())
	require.NoError(t, err)

	name := "Acme Global"
	settings := model.TenantSettings{MaxUsers: 5}
	updated, err := env.mgr.UpdateTenant(context.Background(), result.Tenant.ID, UpdateTenantPatch{
		Name:     &name,
		Settings: &settings,
	})
	require.NoError(t, err)
	assert.Equal(t, "Acme Global", updated.Name)
	assert.Equal(t, 5, updated.Settings.MaxUsers)

	bad := ""
	_, err = env.mgr.UpdateTenant(context.Background(), result.Tenant.ID, UpdateTenantPatch{Name: &bad})
	assert.Equal(t, errs.KindValidation, errs.KindOf(err))
}
