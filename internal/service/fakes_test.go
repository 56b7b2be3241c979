package service

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/teresa-solution/tenant-access-service/internal/errs"
	"github.com/teresa-solution/tenant-access-service/internal/model"
)

// In-memory store fakes for service tests. Each mutating method honors a
// failWith override so tests can inject failures mid-saga.

type memTenantStore struct {
	mu         sync.Mutex
	tenants    map[uuid.UUID]*model.Tenant
	failCreate func() error
	failUpdate error
}

func newMemTenantStore() *memTenantStore {
	return &memTenantStore{tenants: make(map[uuid.UUID]*model.Tenant)}
}

func (s *memTenantStore) Create(ctx context.Context, tenant *model.Tenant) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failCreate != nil {
		if err := s.failCreate(); err != nil {
			return err
		}
	}
	for _, t := range s.tenants {
		if t.Domain == tenant.Domain {
			return errs.DuplicateDomain(tenant.Domain)
		}
	}
	tenant.ID = uuid.New()
	tenant.CreatedAt = time.Now()
	s.tenants[tenant.ID] = tenant
	return nil
}

func (s *memTenantStore) GetByID(ctx context.Context, id uuid.UUID) (*model.Tenant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tenants[id], nil
}

func (s *memTenantStore) ExistsByDomain(ctx context.Context, domain string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.tenants {
		for _, d := range t.TrustedDomains() {
			if d == domain {
				return true, nil
			}
		}
	}
	return false, nil
}

func (s *memTenantStore) Update(ctx context.Context, tenant *model.Tenant) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failUpdate != nil {
		return s.failUpdate
	}
	if _, ok := s.tenants[tenant.ID]; !ok {
		return errs.NotFound("tenant")
	}
	tenant.UpdatedAt = time.Now()
	s.tenants[tenant.ID] = tenant
	return nil
}

func (s *memTenantStore) UpdateStatus(ctx context.Context, id uuid.UUID, status string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tenants[id]
	if !ok {
		return errs.NotFound("tenant")
	}
	t.Status = status
	if status == model.StatusCancelled && t.DeletedAt == nil {
		now := time.Now()
		t.DeletedAt = &now
	}
	return nil
}

func (s *memTenantStore) Delete(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tenants, id)
	return nil
}

type memSubStore struct {
	mu         sync.Mutex
	subs       map[uuid.UUID]*model.Subscription // keyed by tenant ID
	failCreate func() error
}

func newMemSubStore() *memSubStore {
	return &memSubStore{subs: make(map[uuid.UUID]*model.Subscription)}
}

func (s *memSubStore) Create(ctx context.Context, sub *model.Subscription) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failCreate != nil {
		if err := s.failCreate(); err != nil {
			return err
		}
	}
	sub.ID = uuid.New()
	s.subs[sub.TenantID] = sub
	return nil
}

func (s *memSubStore) GetByTenant(ctx context.Context, tenantID uuid.UUID) (*model.Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.subs[tenantID], nil
}

func (s *memSubStore) UpdateStatus(ctx context.Context, tenantID uuid.UUID, status string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sub, ok := s.subs[tenantID]
	if !ok {
		return errs.NotFound("subscription")
	}
	sub.Status = status
	return nil
}

func (s *memSubStore) AdjustUsage(ctx context.Context, tenantID uuid.UUID, userDelta, adminDelta int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sub, ok := s.subs[tenantID]
	if !ok {
		return errs.NotFound("subscription")
	}
	sub.CurrentUsers = max(sub.CurrentUsers+userDelta, 0)
	sub.CurrentAdmins = max(sub.CurrentAdmins+adminDelta, 0)
	sub.UsageUpdatedAt = time.Now()
	return nil
}

func (s *memSubStore) Delete(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for tenantID, sub := range s.subs {
		if sub.ID == id {
			delete(s.subs, tenantID)
		}
	}
	return nil
}

type memPlanStore struct {
	plans []*model.Plan
}

func (s *memPlanStore) GetByID(ctx context.Context, id uuid.UUID) (*model.Plan, error) {
	for _, p := range s.plans {
		if p.ID == id {
			return p, nil
		}
	}
	return nil, nil
}

func (s *memPlanStore) GetByName(ctx context.Context, name string) (*model.Plan, error) {
	for _, p := range s.plans {
		if p.Name == name && p.Available {
			return p, nil
		}
	}
	return nil, nil
}

func (s *memPlanStore) GetDefault(ctx context.Context) (*model.Plan, error) {
	if len(s.plans) == 0 {
		return nil, nil
	}
	return s.plans[0], nil
}

type memUserStore struct {
	mu         sync.Mutex
	users      map[uuid.UUID]*model.User
	failCreate func() error
}

func newMemUserStore() *memUserStore {
	return &memUserStore{users: make(map[uuid.UUID]*model.User)}
}

func (s *memUserStore) Create(ctx context.Context, user *model.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failCreate != nil {
		if err := s.failCreate(); err != nil {
			return err
		}
	}
	email := strings.ToLower(user.Email)
	for _, u := range s.users {
		if u.Email == email {
			return errs.DuplicateEmail()
		}
	}
	user.ID = uuid.New()
	user.Email = email
	s.users[user.ID] = user
	return nil
}

func (s *memUserStore) GetByID(ctx context.Context, id uuid.UUID) (*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.users[id], nil
}

func (s *memUserStore) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	email = strings.ToLower(email)
	for _, u := range s.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, nil
}

func (s *memUserStore) Update(ctx context.Context, user *model.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[user.ID]; !ok {
		return errs.NotFound("user")
	}
	s.users[user.ID] = user
	return nil
}

func (s *memUserStore) SetTenant(ctx context.Context, userID, tenantID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return errs.NotFound("user")
	}
	id := tenantID
	u.TenantID = &id
	return nil
}

func (s *memUserStore) TouchLastLogin(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return errs.NotFound("user")
	}
	now := time.Now()
	u.LastLoginAt = &now
	return nil
}

func (s *memUserStore) Delete(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.users, id)
	return nil
}
