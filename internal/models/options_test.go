package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPresets(t *testing.T) {
	d := DefaultOptions()
	assert.True(t, d.IncludeMedia)
	assert.True(t, d.CreateBackupBeforeMigration)
	assert.True(t, d.VerifyAfterMigration)
	assert.True(t, d.EnableRollbackOnFailure)

	m := MinimalOptions()
	assert.False(t, m.IncludeMedia)
	assert.False(t, m.IncludeLikes)
	assert.False(t, m.IncludeReposts)
	assert.True(t, m.IncludePosts)
	assert.Less(t, m.BatchSize, d.BatchSize)
}

func TestMigrationOptions_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*MigrationOptions)
		wantErr bool
	}{
		{"defaults", func(*MigrationOptions) {}, false},
		{"zero batch", func(o *MigrationOptions) { o.BatchSize = 0 }, true},
		{"negative batch", func(o *MigrationOptions) { o.BatchSize = -5 }, true},
		{"valid handle", func(o *MigrationOptions) { o.DestinationHandle = "alice.new.example.com" }, false},
		{"invalid handle", func(o *MigrationOptions) { o.DestinationHandle = "not a handle" }, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			o := DefaultOptions()
			tc.mutate(&o)
			err := o.Validate()
			if tc.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
