package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/teresa-solution/tenant-access-service/internal/errs"
)

// respondError maps the error taxonomy onto HTTP statuses. Internal detail is
// logged, never surfaced.
func respondError(c *gin.Context, err error) {
	kind := errs.KindOf(err)

	var status int
	switch kind {
	case errs.KindValidation:
		status = http.StatusBadRequest
	case errs.KindInvalidCredentials, errs.KindInvalidToken, errs.KindTokenExpired:
		status = http.StatusUnauthorized
	case errs.KindDomainNotTrusted, errs.KindForbidden, errs.KindTenantInactive,
		errs.KindSubscriptionExpired, errs.KindQuotaExceeded:
		status = http.StatusForbidden
	case errs.KindDuplicateDomain, errs.KindDuplicateEmail:
		status = http.StatusConflict
	case errs.KindNotFound:
		status = http.StatusNotFound
	default:
		status = http.StatusInternalServerError
		log.Error().Err(err).Msg("Internal error")
	}

	message := "internal server error"
	var e *errs.Error
	if errors.As(err, &e) && kind != errs.KindInternal {
		message = e.Message
	}
	c.JSON(status, gin.H{"error": string(kind), "error_description": message})
}
