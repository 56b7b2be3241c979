package tenant

import (
	"context"
	"net"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/teresa-solution/tenant-access-service/internal/cache"
	"github.com/teresa-solution/tenant-access-service/internal/errs"
	"github.com/teresa-solution/tenant-access-service/internal/model"
	"github.com/teresa-solution/tenant-access-service/internal/monitoring"
)

// Match types reported back for auditing.
const (
	MatchPrimary    = "primary"
	MatchCustom     = "custom"
	MatchSuperAdmin = "super_admin"
)

// Origin carries the header values the resolver inspects, in precedence
// order: explicit tenant-domain override, original host set by a proxy, then
// the standard Host header.
type Origin struct {
	TenantDomain string
	OriginalHost string
	Host         string
}

// Resolution is the immutable result of resolving a request origin. It is
// threaded explicitly through subsequent calls.
type Resolution struct {
	Tenant       *model.Tenant
	IsSuperAdmin bool
	Domain       string
	MatchType    string
}

// TenantStore is the store surface the resolver reads from.
type TenantStore interface {
	GetByDomain(ctx context.Context, domain string) (*model.Tenant, error)
}

// Resolver classifies a request origin as super-admin, tenant-owned or
// unknown. It is safe to call on every inbound request: the only side effect
// is trust-cache population.
type Resolver struct {
	store             TenantStore
	cache             *cache.DomainCache
	superAdminDomains []string
	now               func() time.Time
}

// NewResolver creates a Resolver. The cache is owned by the application root
// and shared with the lifecycle manager for invalidation.
func NewResolver(store TenantStore, trustCache *cache.DomainCache, superAdminDomains []string) *Resolver {
	cleaned := make([]string, 0, len(superAdminDomains))
	for _, d := range superAdminDomains {
		d = strings.ToLower(strings.TrimSpace(d))
		if d != "" {
			cleaned = append(cleaned, d)
		}
	}
	return &Resolver{
		store:             store,
		cache:             trustCache,
		superAdminDomains: cleaned,
		now:               time.Now,
	}
}

// Resolve determines which tenant the origin belongs to, or classifies it as
// super-admin. Fails with domain_not_trusted or tenant_inactive.
func (r *Resolver) Resolve(ctx context.Context, origin Origin) (*Resolution, error) {
	started := r.now()
	res, err := r.resolve(ctx, origin)
	monitoring.ResolutionDuration.Observe(r.now().Sub(started).Seconds())
	return res, err
}

func (r *Resolver) resolve(ctx context.Context, origin Origin) (*Resolution, error) {
	domain := CandidateDomain(origin)
	if domain == "" {
		monitoring.DomainResolutions.WithLabelValues("not_trusted").Inc()
		return nil, errs.DomainNotTrusted(domain)
	}

	if r.isSuperAdminDomain(domain) {
		monitoring.DomainResolutions.WithLabelValues("super_admin").Inc()
		return &Resolution{IsSuperAdmin: true, Domain: domain, MatchType: MatchSuperAdmin}, nil
	}

	if entry, ok := r.cache.Get(domain); ok {
		monitoring.DomainResolutions.WithLabelValues("hit").Inc()
		return resolutionFor(entry.Tenant, domain, entry.MatchedCustom), nil
	}

	tenant, err := r.store.GetByDomain(ctx, domain)
	if err != nil {
		log.Error().Err(err).Str("domain", domain).Msg("Failed to look up tenant by domain")
		monitoring.DomainResolutions.WithLabelValues("error").Inc()
		return nil, errs.Internal(err)
	}
	if tenant == nil {
		monitoring.DomainResolutions.WithLabelValues("not_trusted").Inc()
		return nil, errs.DomainNotTrusted(domain)
	}
	if !tenant.IsActive(r.now()) {
		monitoring.DomainResolutions.WithLabelValues("inactive").Inc()
		return nil, errs.TenantInactive(domain)
	}

	matchedCustom := !strings.EqualFold(tenant.Domain, domain)
	// The cache is written only after the store call fully returned, so an
	// aborted lookup never leaves a partial entry behind.
	r.cache.Put(domain, tenant, matchedCustom)
	monitoring.DomainResolutions.WithLabelValues("miss").Inc()
	return resolutionFor(tenant, domain, matchedCustom), nil
}

func (r *Resolver) isSuperAdminDomain(domain string) bool {
	if strings.HasPrefix(domain, "localhost") {
		return true
	}
	for _, d := range r.superAdminDomains {
		if domain == d {
			return true
		}
	}
	return false
}

// CandidateDomain picks the domain to classify from the origin headers:
// override first, then the proxied original host, then Host. Ports are
// stripped and the result is lowercased.
func CandidateDomain(origin Origin) string {
	for _, candidate := range []string{origin.TenantDomain, origin.OriginalHost, origin.Host} {
		candidate = strings.ToLower(strings.TrimSpace(candidate))
		if candidate == "" {
			continue
		}
		return stripPort(candidate)
	}
	return ""
}

func resolutionFor(tenant *model.Tenant, domain string, matchedCustom bool) *Resolution {
	matchType := MatchPrimary
	if matchedCustom {
		matchType = MatchCustom
	}
	return &Resolution{Tenant: tenant, Domain: domain, MatchType: matchType}
}

func stripPort(host string) string {
	if strings.Contains(host, ":") {
		if h, _, err := net.SplitHostPort(host); err == nil {
			return h
		}
	}
	return host
}
