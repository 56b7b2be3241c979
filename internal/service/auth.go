package service

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"

	"github.com/teresa-solution/tenant-access-service/internal/errs"
	"github.com/teresa-solution/tenant-access-service/internal/model"
	"github.com/teresa-solution/tenant-access-service/internal/subscription"
	"github.com/teresa-solution/tenant-access-service/internal/tenant"
	"github.com/teresa-solution/tenant-access-service/internal/token"
)

// AuthService authenticates users within a resolved tenant context and
// manages tenant-scoped user accounts.
type AuthService struct {
	users  UserStore
	subs   SubscriptionStore
	guard  *subscription.Guard
	issuer *token.Issuer
}

// NewAuthService wires the auth service.
func NewAuthService(users UserStore, subs SubscriptionStore, guard *subscription.Guard, issuer *token.Issuer) *AuthService {
	return &AuthService{users: users, subs: subs, guard: guard, issuer: issuer}
}

// Login verifies credentials against the resolved origin and issues a scoped
// token. Unknown email and wrong password are deliberately indistinguishable.
func (s *AuthService) Login(ctx context.Context, res *tenant.Resolution, email, password string) (string, *model.User, error) {
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		log.Error().Err(err).Msg("Failed to look up user for login")
		return "", nil, errs.Internal(err)
	}
	if user == nil || !user.Active {
		return "", nil, errs.InvalidCredentials()
	}

	if res.IsSuperAdmin {
		if !user.IsSuperAdmin() {
			return "", nil, errs.InvalidCredentials()
		}
	} else {
		if res.Tenant == nil || !user.BelongsTo(res.Tenant.ID) {
			return "", nil, errs.InvalidCredentials()
		}
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return "", nil, errs.InvalidCredentials()
	}

	if err := s.users.TouchLastLogin(ctx, user.ID); err != nil {
		log.Error().Err(err).Str("user_id", user.ID.String()).Msg("Failed to stamp last login")
	}

	var raw string
	if res.IsSuperAdmin {
		raw, err = s.issuer.Issue(user.ID, nil, model.RoleSuperAdmin)
	} else {
		raw, err = s.issuer.Issue(user.ID, &res.Tenant.ID, user.Role)
	}
	if err != nil {
		return "", nil, errs.Internal(err)
	}
	return raw, user, nil
}

// Refresh re-issues a still-valid token with a fresh expiry, preserving the
// tenant scope.
func (s *AuthService) Refresh(ctx context.Context, raw string) (string, error) {
	return s.issuer.Refresh(raw, nil)
}

// User loads a user by id.
func (s *AuthService) User(ctx context.Context, id uuid.UUID) (*model.User, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, errs.Internal(err)
	}
	if user == nil {
		return nil, errs.NotFound("user")
	}
	return user, nil
}

// RegisterUserInput is the payload for creating a tenant-scoped user.
type RegisterUserInput struct {
	Email    string
	Password string
	Role     string
}

// RegisterUser creates a user within a tenant after the subscription guard
// admits it. Usage counters move only after the insert commits.
func (s *AuthService) RegisterUser(ctx context.Context, t *model.Tenant, input RegisterUserInput) (*model.User, error) {
	input.Email = strings.ToLower(strings.TrimSpace(input.Email))
	if !isValidEmail(input.Email) {
		return nil, errs.Validation("email", "invalid email format")
	}
	if len(input.Password) < 8 {
		return nil, errs.Validation("password", "password must be at least 8 characters")
	}
	if input.Role == "" {
		input.Role = model.RoleUser
	}
	if input.Role != model.RoleUser && input.Role != model.RoleAdmin {
		return nil, errs.Validation("role", "role must be user or admin")
	}

	ok, err := s.guard.CanAddUsers(ctx, t, 1)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errs.QuotaExceeded("user")
	}
	if input.Role == model.RoleAdmin {
		ok, err := s.guard.CanAddAdmins(ctx, t, 1)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, errs.QuotaExceeded("admin")
		}
	}

	if existing, err := s.users.GetByEmail(ctx, input.Email); err != nil {
		return nil, errs.Internal(err)
	} else if existing != nil {
		return nil, errs.DuplicateEmail()
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, errs.Internal(err)
	}

	user := &model.User{
		Email:        input.Email,
		PasswordHash: string(hash),
		Role:         input.Role,
		TenantID:     &t.ID,
		Active:       true,
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errs.IsPolicy(err) {
			return nil, err
		}
		return nil, errs.Internal(err)
	}

	adminDelta := 0
	if input.Role == model.RoleAdmin {
		adminDelta = 1
	}
	if err := s.subs.AdjustUsage(ctx, t.ID, 1, adminDelta); err != nil {
		log.Error().Err(err).Str("tenant_id", t.ID.String()).Msg("Failed to increment usage counters")
	}
	return user, nil
}

// RemoveUser deletes a tenant user and releases its quota.
func (s *AuthService) RemoveUser(ctx context.Context, t *model.Tenant, userID uuid.UUID) error {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return errs.Internal(err)
	}
	if user == nil || !user.BelongsTo(t.ID) {
		return errs.NotFound("user")
	}

	if err := s.users.Delete(ctx, userID); err != nil {
		return errs.Internal(err)
	}

	adminDelta := 0
	if user.Role == model.RoleAdmin {
		adminDelta = 1
	}
	if err := s.subs.AdjustUsage(ctx, t.ID, -1, -adminDelta); err != nil {
		log.Error().Err(err).Str("tenant_id", t.ID.String()).Msg("Failed to decrement usage counters")
	}
	return nil
}

// PromoteToAdmin raises a user's role to admin, guarded by the admin quota.
func (s *AuthService) PromoteToAdmin(ctx context.Context, t *model.Tenant, userID uuid.UUID) error {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return errs.Internal(err)
	}
	if user == nil || !user.BelongsTo(t.ID) {
		return errs.NotFound("user")
	}
	if user.Role == model.RoleAdmin {
		return nil
	}

	ok, err := s.guard.CanAddAdmins(ctx, t, 1)
	if err != nil {
		return err
	}
	if !ok {
		return errs.QuotaExceeded("admin")
	}

	user.Role = model.RoleAdmin
	user.Permissions = model.AdminPermissions
	if err := s.users.Update(ctx, user); err != nil {
		if errs.IsPolicy(err) {
			return err
		}
		return errs.Internal(err)
	}
	if err := s.subs.AdjustUsage(ctx, t.ID, 0, 1); err != nil {
		log.Error().Err(err).Str("tenant_id", t.ID.String()).Msg("Failed to increment admin usage")
	}
	return nil
}
