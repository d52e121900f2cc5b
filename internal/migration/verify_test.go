package migration

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/rflorenc/pds-migration-workbench/internal/models"
	"github.com/rflorenc/pds-migration-workbench/internal/platform"
)

func TestMigrationVerifier(t *testing.T) {
	tests := []struct {
		name       string
		setup      func(src, dst *fakeClient)
		verified   int
		successful int
		overall    bool
		failures   []string
		warnings   int
	}{
		{
			name:       "identical",
			setup:      func(src, dst *fakeClient) {},
			verified:   3,
			successful: 3,
			overall:    true,
		},
		{
			name:       "post count differs",
			setup:      func(src, dst *fakeClient) { dst.posts = 1 },
			verified:   3,
			successful: 2,
			overall:    true,
			failures:   []string{"Post Count"},
		},
		{
			name: "profile differs",
			setup: func(src, dst *fakeClient) {
				dst.profile = &platform.Profile{DID: "did:plc:alice", DisplayName: "Someone else"}
			},
			verified:   3,
			successful: 2,
			overall:    false,
			failures:   []string{"Profile"},
		},
		{
			name:       "destination profile missing",
			setup:      func(src, dst *fakeClient) { dst.profileStatus = http.StatusBadRequest },
			verified:   3,
			successful: 2,
			overall:    false,
			failures:   []string{"Profile"},
		},
		{
			name:       "feed unreachable",
			setup:      func(src, dst *fakeClient) { dst.feedErr = errors.New("timeout") },
			verified:   2,
			successful: 2,
			overall:    true,
			warnings:   1,
		},
		{
			name:       "follows unavailable",
			setup:      func(src, dst *fakeClient) { dst.followsStatus = http.StatusInternalServerError },
			verified:   3,
			successful: 2,
			overall:    true,
			failures:   []string{"Follows"},
		},
		{
			name: "every check fails",
			setup: func(src, dst *fakeClient) {
				dst.profileStatus = http.StatusBadRequest
				dst.posts = 1
				dst.followsStatus = http.StatusInternalServerError
			},
			verified:   3,
			successful: 0,
			overall:    false,
			failures:   []string{"Profile", "Post Count", "Follows"},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			src := newFakeClient("old.pds", "0.3.0")
			dst := newFakeClient("new.pds", "0.3.0")
			tc.setup(src, dst)

			r := NewMigrationVerifier(nil, nil, 0).Verify(context.Background(), src, dst, "did:plc:alice", nil)
			assert.Equal(t, tc.verified, r.ItemsVerified)
			assert.Equal(t, tc.successful, r.ItemsSuccessful)
			assert.Equal(t, len(tc.failures), r.ItemsFailed)
			assert.Equal(t, tc.overall, r.OverallSuccess)
			assert.Len(t, r.Warnings, tc.warnings)

			var items []string
			for _, f := range r.Failures {
				items = append(items, f.Item)
			}
			assert.Equal(t, tc.failures, items)
		})
	}
}

func TestMigrationVerifier_SuccessRate(t *testing.T) {
	src := newFakeClient("old.pds", "0.3.0")
	dst := newFakeClient("new.pds", "0.3.0")
	dst.posts = 0

	r := NewMigrationVerifier(nil, nil, 0).Verify(context.Background(), src, dst, "did:plc:alice", nil)
	assert.InDelta(t, 2.0/3.0, r.SuccessRate, 1e-9)

	for _, f := range r.Failures {
		assert.Equal(t, models.SeverityMinor, f.Severity)
		assert.Equal(t, "3", f.Expected)
		assert.Equal(t, "0", f.Actual)
	}
}
