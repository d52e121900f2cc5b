package migration

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/afero"
)

// BackupWriter stores repository snapshots under a directory.
type BackupWriter struct {
	fs  afero.Fs
	dir string
}

func NewBackupWriter(fs afero.Fs, dir string) *BackupWriter {
	return &BackupWriter{fs: fs, dir: dir}
}

// Write saves car as a backup of did taken at ts and returns its path.
func (w *BackupWriter) Write(did string, ts time.Time, car []byte) (string, error) {
	name := fmt.Sprintf("backup-%s-%s.car", safeName(did), ts.UTC().Format("20060102T150405Z"))
	return w.write(name, car, KindBackupCreationFailed)
}

// WriteExport saves the export for operation id and returns its path.
func (w *BackupWriter) WriteExport(id string, car []byte) (string, error) {
	return w.write("export-"+safeName(id)+".car", car, KindExportFailed)
}

func (w *BackupWriter) write(name string, data []byte, kind Kind) (string, error) {
	if err := w.fs.MkdirAll(w.dir, 0o755); err != nil {
		return "", newError(kind, fmt.Errorf("creating %s: %w", w.dir, err))
	}
	path := filepath.Join(w.dir, name)
	if err := afero.WriteFile(w.fs, path, data, 0o600); err != nil {
		return "", newError(kind, fmt.Errorf("writing %s: %w", path, err))
	}
	return path, nil
}

func safeName(s string) string {
	return strings.NewReplacer(":", "_", "/", "_").Replace(s)
}
