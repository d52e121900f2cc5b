package migration

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestError_IsMatchesKind(t *testing.T) {
	err := fmt.Errorf("phase: %w", ImportFailed(502))

	assert.True(t, errors.Is(err, &Error{Kind: KindImportFailed}))
	assert.False(t, errors.Is(err, &Error{Kind: KindExportFailed}))
	assert.True(t, IsKind(err, KindImportFailed))
	assert.False(t, IsKind(errors.New("plain"), KindImportFailed))

	var me *Error
	if assert.True(t, errors.As(err, &me)) {
		assert.Equal(t, 502, me.HTTPCode)
	}
}

func TestError_Messages(t *testing.T) {
	tests := []struct {
		name   string
		err    *Error
		expect string
	}{
		{"incompatible", IncompatibleServers([]string{"a", "b"}), "incompatible_servers: a; b"},
		{"import", ImportFailed(500), "import_failed: HTTP 500"},
		{"version", UnsupportedServerVersion("banana"), "unsupported_server_version: banana"},
		{"size", DataSizeExceedsLimit(150, 100), "data_size_exceeds_limit: 150 > 100 bytes"},
		{"wrapped", newError(KindExportFailed, errors.New("boom")), "export_failed: boom"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expect, tc.err.Error())
		})
	}
}

func TestTransportError(t *testing.T) {
	assert.Nil(t, transportError("h", nil))

	err := transportError("pds.test", fmt.Errorf("get: %w", context.DeadlineExceeded))
	assert.True(t, IsKind(err, KindNetworkTimeout))
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	assert.Equal(t, context.Canceled, transportError("pds.test", context.Canceled))

	err = transportError("pds.test", errors.New("connection refused"))
	var me *Error
	if assert.ErrorAs(t, err, &me) {
		assert.Equal(t, KindServerUnavailable, me.Kind)
		assert.Equal(t, "pds.test", me.Host)
	}

	already := ImportFailed(400)
	assert.Same(t, already, transportError("pds.test", already))
}
