package migration

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rflorenc/pds-migration-workbench/internal/platform"
)

func TestPermissionValidator(t *testing.T) {
	tests := []struct {
		name   string
		setup  func(src, dst *fakeClient)
		expect Kind
	}{
		{"ok", func(src, dst *fakeClient) {}, 0},
		{"source expired", func(src, dst *fakeClient) {
			src.identityErr = fmt.Errorf("getSession: %w", platform.ErrUnauthorized)
		}, KindSourceAuthExpired},
		{"source unreachable", func(src, dst *fakeClient) {
			src.identityErr = errors.New("connection reset")
		}, KindSourceAuthFailed},
		{"destination rejected", func(src, dst *fakeClient) {
			dst.identityErr = fmt.Errorf("getSession: %w", platform.ErrUnauthorized)
		}, KindDestinationAuthFailed},
		{"source profile forbidden", func(src, dst *fakeClient) {
			src.profileStatus = http.StatusForbidden
		}, KindSourceAuthFailed},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			src := newFakeClient("old.pds", "0.3.0")
			dst := newFakeClient("new.pds", "0.3.0")
			dst.did = "did:plc:alice-new"
			tc.setup(src, dst)

			ids, err := NewPermissionValidator(nil, 0).Validate(context.Background(), src, dst)
			if tc.expect == 0 {
				require.NoError(t, err)
				assert.Equal(t, "did:plc:alice", ids.Source)
				assert.Equal(t, "did:plc:alice-new", ids.Destination)
				return
			}
			assert.True(t, IsKind(err, tc.expect), "got %v", err)
			assert.Nil(t, ids)
		})
	}
}

func TestPermissionValidator_MissingClients(t *testing.T) {
	v := NewPermissionValidator(nil, 0)
	dst := newFakeClient("new.pds", "0.3.0")

	_, err := v.Validate(context.Background(), nil, dst)
	assert.True(t, IsKind(err, KindAuthenticationRequired))

	_, err = v.Validate(context.Background(), dst, nil)
	assert.True(t, IsKind(err, KindDestinationClientCreationFailed))
}
