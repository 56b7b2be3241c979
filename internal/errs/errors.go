package errs

import (
	"errors"
	"fmt"
)

// Kind is a stable, machine-readable error category. Kinds cross the service
// boundary; messages and wrapped causes do not.
type Kind string

const (
	KindDomainNotTrusted    Kind = "domain_not_trusted"
	KindTenantInactive      Kind = "tenant_inactive"
	KindSubscriptionExpired Kind = "subscription_expired"
	KindQuotaExceeded       Kind = "quota_exceeded"
	KindInvalidCredentials  Kind = "invalid_credentials"
	KindInvalidToken        Kind = "invalid_token"
	KindTokenExpired        Kind = "token_expired"
	KindDuplicateDomain     Kind = "duplicate_domain"
	KindDuplicateEmail      Kind = "duplicate_email"
	KindValidation          Kind = "validation"
	KindForbidden           Kind = "forbidden"
	KindNotFound            Kind = "not_found"
	KindInternal            Kind = "internal"
)

// Error carries a kind plus a message safe to show to callers. Field is set
// only for validation errors.
type Error struct {
	Kind    Kind
	Message string
	Field   string
	cause   error
}

func (e *Error) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s: %s", e.Kind, e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

// Is matches two errors by kind, so errors.Is(err, errs.DomainNotTrusted("x"))
// style comparisons work without comparing messages.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// KindOf extracts the kind from an error chain, defaulting to internal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// IsKind reports whether the error chain contains the given kind.
func IsKind(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

// IsPolicy reports whether the error was caused by policy rather than a
// transient failure. Policy errors are never retried.
func IsPolicy(err error) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Kind != KindInternal
}

func DomainNotTrusted(domain string) *Error {
	return &Error{Kind: KindDomainNotTrusted, Message: fmt.Sprintf("domain %q is not associated with an active account", domain)}
}

func TenantInactive(domain string) *Error {
	return &Error{Kind: KindTenantInactive, Message: fmt.Sprintf("the account for %q is not active", domain)}
}

func SubscriptionExpired() *Error {
	return &Error{Kind: KindSubscriptionExpired, Message: "subscription is not active, contact your administrator"}
}

func QuotaExceeded(what string) *Error {
	return &Error{Kind: KindQuotaExceeded, Message: fmt.Sprintf("%s limit reached for the current plan, contact your administrator", what)}
}

// InvalidCredentials is deliberately identical for unknown email and wrong
// password to avoid account enumeration.
func InvalidCredentials() *Error {
	return &Error{Kind: KindInvalidCredentials, Message: "invalid email or password"}
}

func InvalidToken() *Error {
	return &Error{Kind: KindInvalidToken, Message: "invalid token"}
}

func TokenExpired() *Error {
	return &Error{Kind: KindTokenExpired, Message: "token has expired"}
}

func DuplicateDomain(domain string) *Error {
	return &Error{Kind: KindDuplicateDomain, Message: fmt.Sprintf("domain %q is already in use", domain)}
}

func DuplicateEmail() *Error {
	return &Error{Kind: KindDuplicateEmail, Message: "email is already in use"}
}

// Forbidden is the uniform access-denied answer; the reason stays server-side.
func Forbidden() *Error {
	return &Error{Kind: KindForbidden, Message: "access denied"}
}

func Validation(field, message string) *Error {
	return &Error{Kind: KindValidation, Field: field, Message: message}
}

func NotFound(what string) *Error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf("%s not found", what)}
}

// Internal wraps an unexpected failure. The cause is kept for server-side
// logging; the message shown to callers stays generic.
func Internal(cause error) *Error {
	return &Error{Kind: KindInternal, Message: "internal server error", cause: cause}
}
