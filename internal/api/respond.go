package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rflorenc/pds-migration-workbench/internal/migration"
	"github.com/rflorenc/pds-migration-workbench/internal/models"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeMigrationError maps a migration failure to an HTTP status. The error
// kind is echoed so clients can branch without parsing the message.
func writeMigrationError(w http.ResponseWriter, err error) {
	body := map[string]string{"error": err.Error()}
	var me *migration.Error
	if errors.As(err, &me) {
		body["kind"] = me.Kind.String()
	}
	writeJSON(w, statusFor(err), body)
}

func statusFor(err error) int {
	if errors.Is(err, models.ErrMigrationInProgress) {
		return http.StatusConflict
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return http.StatusGatewayTimeout
	}
	var me *migration.Error
	if !errors.As(err, &me) {
		return http.StatusInternalServerError
	}
	switch me.Kind {
	case migration.KindMigrationInProgress:
		return http.StatusConflict
	case migration.KindNoMigrationInProgress:
		return http.StatusNotFound
	case migration.KindAuthenticationRequired, migration.KindSourceAuthFailed,
		migration.KindSourceAuthExpired, migration.KindDestinationAuthFailed:
		return http.StatusUnauthorized
	case migration.KindIncompatibleServers, migration.KindUnsupportedServerVersion,
		migration.KindDataSizeExceedsLimit:
		return http.StatusUnprocessableEntity
	case migration.KindRateLimitExceeded:
		return http.StatusTooManyRequests
	case migration.KindNetworkTimeout:
		return http.StatusGatewayTimeout
	case migration.KindServerUnavailable:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
