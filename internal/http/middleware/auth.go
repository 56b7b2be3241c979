package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/teresa-solution/tenant-access-service/internal/errs"
	"github.com/teresa-solution/tenant-access-service/internal/model"
	"github.com/teresa-solution/tenant-access-service/internal/token"
)

const claimsKey = "tokenClaims"

// Auth validates Authorization headers and enforces token scoping.
type Auth struct {
	Issuer *token.Issuer
}

// ValidateToken ensures the request carries a valid bearer token and attaches
// its claims.
func (m *Auth) ValidateToken(c *gin.Context) {
	header := c.GetHeader("Authorization")
	if header == "" {
		abortWithError(c, http.StatusUnauthorized, errs.InvalidToken())
		return
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		abortWithError(c, http.StatusUnauthorized, errs.InvalidToken())
		return
	}

	claims, err := m.Issuer.Verify(parts[1])
	if err != nil {
		abortWithError(c, http.StatusUnauthorized, err)
		return
	}
	c.Set(claimsKey, claims)
	c.Next()
}

// RequireTenantScope rejects tokens whose tenant does not match the resolved
// request tenant. Tenant-less tokens never pass: they are valid only for
// super-admin flows.
func (m *Auth) RequireTenantScope(c *gin.Context) {
	claims, ok := GetClaims(c)
	if !ok {
		abortWithError(c, http.StatusUnauthorized, errs.InvalidToken())
		return
	}
	res, ok := GetResolution(c)
	if !ok || res.Tenant == nil {
		abortWithError(c, http.StatusForbidden, errs.Forbidden())
		return
	}
	if claims.TenantID == nil || *claims.TenantID != res.Tenant.ID {
		abortWithError(c, http.StatusForbidden, errs.Forbidden())
		return
	}
	c.Next()
}

// RequireAdmin passes tenant admins and super-admins only.
func (m *Auth) RequireAdmin(c *gin.Context) {
	claims, ok := GetClaims(c)
	if !ok || (claims.Role != model.RoleAdmin && claims.Role != model.RoleSuperAdmin) {
		abortWithError(c, http.StatusForbidden, errs.Forbidden())
		return
	}
	c.Next()
}

// RequireSuperAdmin passes only super-admin tokens presented on a super-admin
// origin.
func (m *Auth) RequireSuperAdmin(c *gin.Context) {
	claims, ok := GetClaims(c)
	if !ok || claims.Role != model.RoleSuperAdmin || claims.TenantID != nil {
		abortWithError(c, http.StatusForbidden, errs.Forbidden())
		return
	}
	res, ok := GetResolution(c)
	if !ok || !res.IsSuperAdmin {
		abortWithError(c, http.StatusForbidden, errs.Forbidden())
		return
	}
	c.Next()
}

// GetClaims exposes verified token claims to handlers.
func GetClaims(c *gin.Context) (*token.Claims, bool) {
	value, ok := c.Get(claimsKey)
	if !ok {
		return nil, false
	}
	claims, ok := value.(*token.Claims)
	return claims, ok
}

func abortWithError(c *gin.Context, status int, err error) {
	kind := errs.KindOf(err)
	message := "access denied"
	var e *errs.Error
	if errors.As(err, &e) {
		message = e.Message
	}
	c.AbortWithStatusJSON(status, gin.H{"error": string(kind), "error_description": message})
}
