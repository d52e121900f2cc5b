package migration

import (
	"context"
	"errors"

	"github.com/dustin/go-humanize"

	"github.com/rflorenc/pds-migration-workbench/internal/models"
	"github.com/rflorenc/pds-migration-workbench/internal/platform"
)

// fetchRepository downloads the source repository. Exports are reads, so
// transient failures are retried.
func (r *run) fetchRepository(ctx context.Context, kind Kind) ([]byte, error) {
	if r.did == "" {
		return nil, newError(kind, errors.New("source account not resolved"))
	}
	var car []byte
	err := platform.RetryReads(ctx, r.o.cfg.Retries, func() error {
		data, err := r.src.ExportRepository(ctx, r.did)
		car = data
		return err
	})
	if err != nil {
		return nil, newError(kind, transportError(r.src.Host(), err))
	}
	if len(car) == 0 {
		return nil, newError(kind, errors.New("source returned an empty repository"))
	}
	return car, nil
}

// backup writes a snapshot of the source repository before anything else
// touches either server.
func (r *run) backup(ctx context.Context) error {
	car, err := r.fetchRepository(ctx, KindBackupCreationFailed)
	if err != nil {
		return err
	}
	path, err := r.o.backups.Write(r.did, r.o.clock.Now(), car)
	if err != nil {
		return err
	}
	r.log("Backup written: " + path + " (" + humanize.Bytes(uint64(len(car))) + ")")
	return nil
}

// export downloads the repository and keeps it as a temporary artifact until
// the import has finished.
func (r *run) export(ctx context.Context) error {
	car, err := r.fetchRepository(ctx, KindExportFailed)
	if err != nil {
		return err
	}
	path, err := r.o.backups.WriteExport(r.op.ID, car)
	if err != nil {
		return err
	}
	r.car = car
	r.op.SetExportedData(path, int64(len(car)))
	if r.op.Status().IsTerminal() {
		// Stopped while the file was being written, possibly after the stop
		// already collected the artifact path.
		if err := removeArtifact(r.o.fs, r.op.TakeExportedDataPath()); err != nil {
			r.o.logger.Warn("could not remove exported data", "operation", r.op.ID, "error", err)
		}
		return errStopped
	}
	r.op.UpdateProgress(models.StatusExporting.Progress()+0.15, "Exported "+humanize.Bytes(uint64(len(car))))
	r.log("Exported " + humanize.Bytes(uint64(len(car))) + " to " + path)
	return nil
}
