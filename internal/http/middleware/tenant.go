package middleware

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/teresa-solution/tenant-access-service/internal/errs"
	"github.com/teresa-solution/tenant-access-service/internal/tenant"
)

const ginResolutionKey = "tenantResolution"

type resolutionContextKey struct{}

// Tenant resolves the request origin to a tenant (or super-admin) and stores
// the immutable resolution in both the Gin and request contexts. Diagnostic
// response headers are advisory only, never authoritative.
func Tenant(resolver *tenant.Resolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := tenant.Origin{
			TenantDomain: c.GetHeader("X-Tenant-Domain"),
			OriginalHost: c.GetHeader("X-Original-Host"),
			Host:         c.Request.Host,
		}

		res, err := resolver.Resolve(c.Request.Context(), origin)
		if err != nil {
			switch errs.KindOf(err) {
			case errs.KindDomainNotTrusted:
				// Detail stays server-side; the caller sees a generic denial.
				log.Warn().Err(err).Msg("Rejected untrusted origin")
				abortWithError(c, http.StatusForbidden, errs.Forbidden())
			case errs.KindTenantInactive:
				abortWithError(c, http.StatusForbidden, err)
			default:
				log.Error().Err(err).Msg("Tenant resolution failed")
				abortWithError(c, http.StatusInternalServerError, errs.Internal(err))
			}
			return
		}

		if res.Tenant != nil {
			c.Header("X-Tenant-ID", res.Tenant.ID.String())
			c.Header("X-Tenant-Name", res.Tenant.Name)
			c.Header("X-Tenant-Domain", res.Domain)
		}
		c.Header("X-Domain-Match-Type", res.MatchType)

		ctx := context.WithValue(c.Request.Context(), resolutionContextKey{}, res)
		c.Request = c.Request.WithContext(ctx)
		c.Set(ginResolutionKey, res)

		c.Next()
	}
}

// GetResolution extracts the tenant resolution from gin.
func GetResolution(c *gin.Context) (*tenant.Resolution, bool) {
	value, ok := c.Get(ginResolutionKey)
	if !ok {
		return nil, false
	}
	res, ok := value.(*tenant.Resolution)
	return res, ok
}

// ResolutionFromContext extracts the tenant resolution from a standard context.
func ResolutionFromContext(ctx context.Context) (*tenant.Resolution, bool) {
	value := ctx.Value(resolutionContextKey{})
	if value == nil {
		return nil, false
	}
	res, ok := value.(*tenant.Resolution)
	return res, ok
}
