package migration

import (
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBackupWriter(t *testing.T) {
	fs := afero.NewMemMapFs()
	w := NewBackupWriter(fs, "/var/lib/workbench")

	ts := time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)
	path, err := w.Write("did:plc:alice", ts, []byte("car"))
	require.NoError(t, err)
	assert.Equal(t, "/var/lib/workbench/backup-did_plc_alice-20260304T050607Z.car", path)

	data, err := afero.ReadFile(fs, path)
	require.NoError(t, err)
	assert.Equal(t, []byte("car"), data)

	path, err = w.WriteExport("op-1", []byte("car"))
	require.NoError(t, err)
	assert.Equal(t, "/var/lib/workbench/export-op-1.car", path)
}

func TestBackupWriter_ReadOnly(t *testing.T) {
	w := NewBackupWriter(afero.NewReadOnlyFs(afero.NewMemMapFs()), "/backups")

	_, err := w.Write("did:plc:alice", time.Now(), []byte("car"))
	assert.True(t, IsKind(err, KindBackupCreationFailed), "got %v", err)

	_, err = w.WriteExport("op-1", []byte("car"))
	assert.True(t, IsKind(err, KindExportFailed), "got %v", err)
}
