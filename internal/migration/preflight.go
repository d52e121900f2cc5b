package migration

import (
	"context"
	"fmt"

	"github.com/dustin/go-humanize"

	"github.com/rflorenc/pds-migration-workbench/internal/models"
	"github.com/rflorenc/pds-migration-workbench/internal/platform"
)

// Preflight is the outcome of a dry-run check. Nothing is written to either
// server.
type Preflight struct {
	Source            models.ServerConfiguration  `json:"source"`
	Destination       models.ServerConfiguration  `json:"destination"`
	Identities        *Identities                 `json:"identities,omitempty"`
	Compatibility     *models.CompatibilityReport `json:"compatibility"`
	Safety            *models.SafetyReport        `json:"safety"`
	EstimatedDataSize int64                       `json:"estimated_data_size"`
	LimitError        string                      `json:"limit_error,omitempty"`
	CanProceed        bool                        `json:"can_proceed"`
}

// Check runs permission, compatibility, safety and limit checks without
// starting a migration.
func (o *Orchestrator) Check(ctx context.Context, source, destination platform.Client, opts models.MigrationOptions, logger func(string)) (*Preflight, error) {
	if logger == nil {
		logger = func(string) {}
	}
	op, err := o.Prepare(ctx, source, destination, opts)
	if err != nil {
		return nil, err
	}
	logger(fmt.Sprintf("Source %s runs %s", op.Source.Hostname, op.Source.Version))
	logger(fmt.Sprintf("Destination %s runs %s", op.Destination.Hostname, op.Destination.Version))

	cctx, cancel := o.callCtx(ctx)
	defer cancel()

	ids, err := o.perms.Validate(cctx, source, destination)
	if err != nil {
		return nil, err
	}
	logger("Sessions OK on both servers")

	pf := &Preflight{
		Source:      op.Source,
		Destination: op.Destination,
		Identities:  ids,
	}

	if resp, err := source.GetProfile(cctx, ids.Source); err == nil && resp.OK() {
		op.SetEstimatedDataSize(EstimateAccountSize(resp.Profile, opts))
	}
	pf.EstimatedDataSize = op.EstimatedDataSize()
	logger("Estimated account size: " + humanize.Bytes(uint64(pf.EstimatedDataSize)))

	pf.Compatibility = o.compat.Compare(&op.Source, &op.Destination, opts)
	for _, w := range pf.Compatibility.Warnings {
		logger("  WARNING: " + w)
	}
	for _, b := range pf.Compatibility.Blockers {
		logger("  BLOCKER: " + b)
	}

	health := NewClientHealthProbe(o.cfg.RequestTimeout, source, destination)
	pf.Safety = NewSafetyAssessor(health, o.clock, o.logger).Assess(cctx, op, pf.Compatibility)
	logger(fmt.Sprintf("Safety level: %s", pf.Safety.OverallLevel))

	if err := ValidateTransferLimits(op); err != nil {
		pf.LimitError = err.Error()
		logger("  BLOCKER: " + pf.LimitError)
	}

	pf.CanProceed = pf.Compatibility.CanProceed && pf.Safety.CanProceed && pf.LimitError == ""
	logger(fmt.Sprintf("Preflight complete: can proceed = %t", pf.CanProceed))
	return pf, nil
}
