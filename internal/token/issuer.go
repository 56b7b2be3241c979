package token

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/teresa-solution/tenant-access-service/internal/errs"
	"github.com/teresa-solution/tenant-access-service/internal/monitoring"
)

// Claims is the session token payload. TenantID and Role are omitted for
// super-admin tokens.
type Claims struct {
	TenantID *uuid.UUID `json:"tid,omitempty"`
	Role     string     `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// UserID parses the subject claim.
func (c *Claims) UserID() (uuid.UUID, error) {
	return uuid.Parse(c.Subject)
}

// Issuer creates and verifies scoped session tokens, signed HMAC-SHA256 with
// the configured secret.
type Issuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewIssuer creates an Issuer. ttl defaults to 7 days when zero.
func NewIssuer(secret []byte, ttl time.Duration) *Issuer {
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}
	return &Issuer{secret: secret, ttl: ttl, now: time.Now}
}

// Issue creates a signed token for the user, scoped to a tenant and role when
// given. A nil tenantID produces a super-admin token.
func (i *Issuer) Issue(userID uuid.UUID, tenantID *uuid.UUID, role string) (string, error) {
	now := i.now()
	claims := &Claims{
		TenantID: tenantID,
		Role:     role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
		},
	}

	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", err
	}

	scope := "tenant"
	if tenantID == nil {
		scope = "super_admin"
	}
	monitoring.TokensIssued.WithLabelValues(scope).Inc()
	return raw, nil
}

// Verify parses and validates a token. Expired tokens fail with a distinct
// kind from malformed or badly signed ones, so callers can choose between
// re-login and refresh.
func (i *Issuer) Verify(raw string) (*Claims, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		if t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, errors.New("unexpected signing method")
		}
		return i.secret, nil
	}, jwt.WithTimeFunc(i.now))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			monitoring.TokensRejected.WithLabelValues("expired").Inc()
			return nil, errs.TokenExpired()
		}
		monitoring.TokensRejected.WithLabelValues("invalid").Inc()
		return nil, errs.InvalidToken()
	}
	if !parsed.Valid {
		monitoring.TokensRejected.WithLabelValues("invalid").Inc()
		return nil, errs.InvalidToken()
	}
	if _, err := claims.UserID(); err != nil {
		monitoring.TokensRejected.WithLabelValues("invalid").Inc()
		return nil, errs.InvalidToken()
	}
	return claims, nil
}

// Refresh re-issues a token with a fresh expiry. The original must still
// verify; the tenant scope is preserved unless switchTenant is given.
func (i *Issuer) Refresh(raw string, switchTenant *uuid.UUID) (string, error) {
	claims, err := i.Verify(raw)
	if err != nil {
		return "", err
	}
	userID, err := claims.UserID()
	if err != nil {
		return "", errs.InvalidToken()
	}

	tenantID := claims.TenantID
	if switchTenant != nil {
		tenantID = switchTenant
	}
	return i.Issue(userID, tenantID, claims.Role)
}
