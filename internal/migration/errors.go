package migration

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rflorenc/pds-migration-workbench/internal/models"
)

// Kind identifies a class of migration failure.
type Kind int

const (
	KindMigrationInProgress Kind = iota + 1
	KindNoMigrationInProgress
	KindAuthenticationRequired
	KindSourceAuthFailed
	KindSourceAuthExpired
	KindDestinationClientCreationFailed
	KindDestinationAuthFailed
	KindIncompatibleServers
	KindExportFailed
	KindImportFailed
	KindImportPrerequisitesMissing
	KindVerificationPrerequisitesMissing
	KindVerificationFailed
	KindBackupCreationFailed
	KindUnsupportedServerVersion
	KindRateLimitExceeded
	KindDataSizeExceedsLimit
	KindNetworkTimeout
	KindServerUnavailable
)

var kindNames = map[Kind]string{
	KindMigrationInProgress:              "migration_in_progress",
	KindNoMigrationInProgress:            "no_migration_in_progress",
	KindAuthenticationRequired:           "authentication_required",
	KindSourceAuthFailed:                 "source_auth_failed",
	KindSourceAuthExpired:                "source_auth_expired",
	KindDestinationClientCreationFailed:  "destination_client_creation_failed",
	KindDestinationAuthFailed:            "destination_auth_failed",
	KindIncompatibleServers:              "incompatible_servers",
	KindExportFailed:                     "export_failed",
	KindImportFailed:                     "import_failed",
	KindImportPrerequisitesMissing:       "import_prerequisites_missing",
	KindVerificationPrerequisitesMissing: "verification_prerequisites_missing",
	KindVerificationFailed:               "verification_failed",
	KindBackupCreationFailed:             "backup_creation_failed",
	KindUnsupportedServerVersion:         "unsupported_server_version",
	KindRateLimitExceeded:                "rate_limit_exceeded",
	KindDataSizeExceedsLimit:             "data_size_exceeds_limit",
	KindNetworkTimeout:                   "network_timeout",
	KindServerUnavailable:                "server_unavailable",
}

func (k Kind) String() string {
	if n, ok := kindNames[k]; ok {
		return n
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Error is a migration failure with a kind and the payload that kind carries.
// Only the fields relevant to Kind are set.
type Error struct {
	Kind     Kind
	Reasons  []string
	HTTPCode int
	Version  string
	Actual   int64
	Limit    int64
	Host     string
	Failures []models.VerificationFailure
	Err      error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Kind.String())
	switch e.Kind {
	case KindIncompatibleServers:
		b.WriteString(": " + strings.Join(e.Reasons, "; "))
	case KindImportFailed:
		fmt.Fprintf(&b, ": HTTP %d", e.HTTPCode)
	case KindUnsupportedServerVersion:
		b.WriteString(": " + e.Version)
	case KindDataSizeExceedsLimit:
		fmt.Fprintf(&b, ": %d > %d bytes", e.Actual, e.Limit)
	case KindServerUnavailable:
		b.WriteString(": " + e.Host)
	case KindVerificationFailed:
		fmt.Fprintf(&b, ": %d failures", len(e.Failures))
	}
	if e.Err != nil {
		b.WriteString(": " + e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same kind, so errors.Is(err, &Error{Kind: k})
// works as a kind test.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

// IsKind reports whether err is, or wraps, a migration error of kind k.
func IsKind(err error, k Kind) bool {
	var me *Error
	return errors.As(err, &me) && me.Kind == k
}

func newError(k Kind, err error) *Error {
	return &Error{Kind: k, Err: err}
}

func IncompatibleServers(reasons []string) *Error {
	return &Error{Kind: KindIncompatibleServers, Reasons: reasons}
}

func ImportFailed(code int) *Error {
	return &Error{Kind: KindImportFailed, HTTPCode: code}
}

func UnsupportedServerVersion(version string) *Error {
	return &Error{Kind: KindUnsupportedServerVersion, Version: version}
}

func DataSizeExceedsLimit(actual, limit int64) *Error {
	return &Error{Kind: KindDataSizeExceedsLimit, Actual: actual, Limit: limit}
}

func VerificationFailed(failures []models.VerificationFailure) *Error {
	return &Error{Kind: KindVerificationFailed, Failures: failures}
}

func ServerUnavailable(host string, err error) *Error {
	return &Error{Kind: KindServerUnavailable, Host: host, Err: err}
}

// transportError classifies a failed remote call. Deadlines become
// NetworkTimeout; cancellation passes through untouched.
func transportError(host string, err error) error {
	if err == nil {
		return nil
	}
	var me *Error
	if errors.As(err, &me) {
		return err
	}
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return newError(KindNetworkTimeout, err)
	case errors.Is(err, context.Canceled):
		return err
	}
	return ServerUnavailable(host, err)
}
