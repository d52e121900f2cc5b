package migration

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/hashicorp/go-multierror"

	"github.com/rflorenc/pds-migration-workbench/internal/models"
)

// MarkerCollection holds the record written to the destination after a
// successful import, linking the account to the migration that moved it.
const MarkerCollection = "app.workbench.migration"

type recordRef struct {
	collection string
	rkey       string
}

// importRepository uploads the exported repository. Writes are never retried.
func (r *run) importRepository(ctx context.Context) error {
	if len(r.car) == 0 {
		return newError(KindImportPrerequisitesMissing, errors.New("no exported repository"))
	}

	r.imported = true
	resp, err := r.dst.ImportRepository(ctx, r.car)
	if err != nil {
		return newError(KindImportFailed, transportError(r.dst.Host(), err))
	}
	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return &Error{Kind: KindRateLimitExceeded, Host: r.dst.Host()}
	case !resp.OK():
		return ImportFailed(resp.StatusCode)
	}
	r.op.UpdateProgress(models.StatusImporting.Progress()+0.1, "Repository imported")
	r.log("Repository imported into " + r.dst.Host())

	cctx, cancel := r.o.callCtx(ctx)
	defer cancel()
	r.writeMarker(cctx)

	did, err := r.dst.Identity(cctx)
	if err != nil {
		return newError(KindDestinationAuthFailed, transportError(r.dst.Host(), err))
	}
	r.op.SetDestinationAccount("https://"+r.dst.Host(), did)
	return nil
}

func (r *run) writeMarker(ctx context.Context) {
	marker := map[string]any{
		"$type":      MarkerCollection,
		"operation":  r.op.ID,
		"source":     r.op.Source.Hostname,
		"sourceDid":  r.did,
		"migratedAt": r.o.clock.Now().UTC().Format(time.RFC3339),
	}
	resp, err := r.dst.CreateRecord(ctx, MarkerCollection, r.op.ID, marker)
	if err != nil || !resp.OK() {
		r.log("  WARNING: could not write migration marker record")
		return
	}
	r.created = append(r.created, recordRef{collection: MarkerCollection, rkey: r.op.ID})
}

// verify compares the account on both servers. The result is advisory and
// never fails the operation.
func (r *run) verify(ctx context.Context) error {
	did := r.op.DestinationDID()
	if did == "" {
		return newError(KindVerificationPrerequisitesMissing, errors.New("destination account unknown"))
	}
	cctx, cancel := r.o.callCtx(ctx)
	defer cancel()

	report := r.o.verifier.Verify(cctx, r.src, r.dst, did, r.op)
	r.op.SetVerificationReport(report)
	r.log(fmt.Sprintf("Verified %d item(s), %.0f%% successful", report.ItemsVerified, report.SuccessRate*100))
	for _, w := range report.Warnings {
		r.log("  WARNING: " + w)
	}
	if !report.OverallSuccess {
		r.log("  WARNING: " + VerificationFailed(report.Failures).Error())
	}
	for _, f := range report.Failures {
		r.log(fmt.Sprintf("  [%s] %s: expected %s, got %s", f.Severity, f.Item, f.Expected, f.Actual))
	}
	return nil
}

// rollback deletes the records this run created on the destination, newest
// first. Every deletion is attempted once.
func (r *run) rollback(ctx context.Context) error {
	var result *multierror.Error
	for i := len(r.created) - 1; i >= 0; i-- {
		ref := r.created[i]
		resp, err := r.dst.DeleteRecord(ctx, ref.collection, ref.rkey)
		switch {
		case err != nil:
			result = multierror.Append(result, fmt.Errorf("deleting %s/%s: %w", ref.collection, ref.rkey, err))
		case !resp.OK():
			result = multierror.Append(result, fmt.Errorf("deleting %s/%s: HTTP %d", ref.collection, ref.rkey, resp.StatusCode))
		}
	}
	return result.ErrorOrNil()
}
