package monitoring

import (
	"github.com/rs/zerolog/log"
)

// Alert surfaces a policy event worth operator attention (quota exhaustion,
// repeated rollback failures). Logs for now.
func Alert(message string, labels map[string]string) {
	log.Warn().
		Str("alert", message).
		Fields(labels).
		Msg("ALERT")
}
