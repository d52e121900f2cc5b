package migration

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/juju/clock"
	"github.com/spf13/afero"

	"github.com/rflorenc/pds-migration-workbench/internal/models"
	"github.com/rflorenc/pds-migration-workbench/internal/platform"
)

// errStopped is returned when the operation was ended from outside the run,
// by an emergency stop or an operator cancel.
var errStopped = errors.New("operation stopped")

// Config holds orchestrator settings.
type Config struct {
	Monitor        MonitorConfig
	RequestTimeout time.Duration
	Retries        uint64
	WorkDir        string
}

// Orchestrator drives an operation through its phases against a source and a
// destination client.
type Orchestrator struct {
	cfg    Config
	fs     afero.Fs
	clock  clock.Clock
	probe  ResourceProbe
	logger hclog.Logger

	compat   *CompatibilityValidator
	perms    *PermissionValidator
	verifier *MigrationVerifier
	stopper  *ArtifactStopper
	backups  *BackupWriter
}

func NewOrchestrator(cfg Config, fs afero.Fs, clk clock.Clock, probe ResourceProbe, logger hclog.Logger) *Orchestrator {
	if clk == nil {
		clk = clock.WallClock
	}
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	if probe == nil {
		probe = NewSystemProbe(cfg.WorkDir)
	}
	return &Orchestrator{
		cfg:      cfg,
		fs:       fs,
		clock:    clk,
		probe:    probe,
		logger:   logger,
		compat:   NewCompatibilityValidator(logger, cfg.Retries),
		perms:    NewPermissionValidator(logger, cfg.Retries),
		verifier: NewMigrationVerifier(clk, logger, cfg.Retries),
		stopper:  NewArtifactStopper(fs, logger),
		backups:  NewBackupWriter(fs, cfg.WorkDir),
	}
}

// Stopper returns the emergency stop used by the orchestrator's monitors.
func (o *Orchestrator) Stopper() Stopper { return o.stopper }

func (o *Orchestrator) callCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if o.cfg.RequestTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, o.cfg.RequestTimeout)
}

// Prepare fetches both server descriptors and creates a new operation in the
// Preparing state.
func (o *Orchestrator) Prepare(ctx context.Context, source, destination platform.Client, opts models.MigrationOptions) (*models.Operation, error) {
	if err := opts.Validate(); err != nil {
		return nil, fmt.Errorf("invalid options: %w", err)
	}
	cctx, cancel := o.callCtx(ctx)
	defer cancel()
	src, dst, err := o.compat.FetchConfigurations(cctx, source, destination)
	if err != nil {
		return nil, err
	}
	return models.NewOperation(*src, *dst, opts, o.clock.Now()), nil
}

// run carries the state of one Run call.
type run struct {
	o   *Orchestrator
	op  *models.Operation
	src platform.Client
	dst platform.Client
	log func(string)

	did      string
	car      []byte
	imported bool
	created  []recordRef
}

// Run executes op to a terminal state. The safety monitor runs for the whole
// call. The returned error is also recorded on the operation.
func (o *Orchestrator) Run(ctx context.Context, op *models.Operation, source, destination platform.Client) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	op.SetCancelFunc(cancel)

	mon := NewSafetyMonitor(op, o.cfg.Monitor, o.clock, o.probe, o.stopper, o.logger)
	mon.Start()
	defer mon.Stop()

	logger := o.logger.Named("run").With("operation", op.ID)
	r := &run{
		o:   o,
		op:  op,
		src: source,
		dst: destination,
		log: func(line string) {
			op.AppendLog(line)
			if line != "" {
				logger.Info(line)
			}
		},
	}

	err := r.execute(ctx)
	if err != nil {
		r.fail(ctx, err)
		return err
	}
	return nil
}

func (r *run) execute(ctx context.Context) error {
	opts := r.op.Options
	phases := []struct {
		status  models.Status
		enabled bool
		fn      func(context.Context) error
	}{
		{models.StatusPreparing, true, r.prepare},
		{models.StatusPreparingBackup, opts.CreateBackupBeforeMigration, r.backup},
		{models.StatusAuthenticating, true, r.authenticate},
		{models.StatusValidating, true, r.validate},
		{models.StatusExporting, true, r.export},
		{models.StatusImporting, true, r.importRepository},
		{models.StatusVerifying, opts.VerifyAfterMigration, r.verify},
	}

	r.log(fmt.Sprintf("=== Migrating %s -> %s ===", r.op.Source.Hostname, r.op.Destination.Hostname))
	for _, p := range phases {
		if !p.enabled {
			continue
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if !r.op.UpdateStatus(p.status) {
			return errStopped
		}
		r.log("")
		r.log(p.status.Description() + "...")
		if err := p.fn(ctx); err != nil {
			return err
		}
	}

	if !r.op.UpdateStatus(models.StatusCompleted) {
		return errStopped
	}
	if err := removeArtifact(r.o.fs, r.op.TakeExportedDataPath()); err != nil {
		r.o.logger.Warn("could not remove exported data", "operation", r.op.ID, "error", err)
	}
	r.log("")
	r.log("Migration complete")
	return nil
}

// prepare resolves the source account and estimates its size.
func (r *run) prepare(ctx context.Context) error {
	cctx, cancel := r.o.callCtx(ctx)
	defer cancel()

	var did string
	err := platform.RetryReads(cctx, r.o.cfg.Retries, func() error {
		d, err := r.src.Identity(cctx)
		did = d
		return err
	})
	if err != nil {
		if errors.Is(err, platform.ErrUnauthorized) {
			return newError(KindSourceAuthExpired, err)
		}
		return newError(KindAuthenticationRequired, transportError(r.src.Host(), err))
	}
	r.did = did
	r.log("Source account: " + did)

	if r.op.EstimatedDataSize() > 0 {
		return nil
	}
	var profile *platform.ProfileResponse
	err = platform.RetryReads(cctx, r.o.cfg.Retries, func() error {
		p, err := r.src.GetProfile(cctx, did)
		profile = p
		return err
	})
	if err != nil {
		return transportError(r.src.Host(), err)
	}
	if profile.OK() && profile.Profile != nil {
		r.op.SetEstimatedDataSize(EstimateAccountSize(profile.Profile, r.op.Options))
	}
	return nil
}

func (r *run) authenticate(ctx context.Context) error {
	cctx, cancel := r.o.callCtx(ctx)
	defer cancel()
	ids, err := r.o.perms.Validate(cctx, r.src, r.dst)
	if err != nil {
		return err
	}
	r.log("Source session OK: " + ids.Source)
	r.log("Destination session OK: " + ids.Destination)
	return nil
}

// validate re-checks compatibility, assesses safety and enforces transfer
// limits. Nothing has been written to the destination yet.
func (r *run) validate(ctx context.Context) error {
	cctx, cancel := r.o.callCtx(ctx)
	defer cancel()

	compat, err := r.o.compat.Validate(cctx, r.src, r.dst, r.op.Options)
	if err != nil {
		return err
	}
	r.op.SetCompatibilityReport(compat)
	for _, w := range compat.Warnings {
		r.log("  WARNING: " + w)
	}
	if !compat.CanProceed {
		return IncompatibleServers(compat.Blockers)
	}

	health := NewClientHealthProbe(r.o.cfg.RequestTimeout, r.src, r.dst)
	safety := NewSafetyAssessor(health, r.o.clock, r.o.logger).Assess(cctx, r.op, compat)
	r.op.SetSafetyReport(safety)
	r.log(fmt.Sprintf("Safety level: %s (score %.1f)", safety.OverallLevel, safety.EstimatedRiskScore))
	for _, risk := range safety.Risks {
		r.log(fmt.Sprintf("  RISK [%s/%s]: %s", risk.Level, risk.Category, risk.Description))
	}
	if !safety.CanProceed {
		return IncompatibleServers(safety.Blockers)
	}

	return ValidateTransferLimits(r.op)
}

// fail records err on the operation and attempts rollback of whatever the
// run wrote to the destination.
func (r *run) fail(ctx context.Context, err error) {
	msg := err.Error()
	if errors.Is(err, errStopped) || errors.Is(err, context.Canceled) {
		msg = "stopped"
	}
	if r.op.Fail(msg) {
		r.log("ERROR: " + msg)
	}

	if !r.imported || !r.op.Options.EnableRollbackOnFailure {
		return
	}
	rctx, cancel := r.o.callCtx(context.WithoutCancel(ctx))
	defer cancel()
	if rerr := r.rollback(rctx); rerr != nil {
		r.log("Rollback incomplete: " + rerr.Error())
		return
	}
	r.log(fmt.Sprintf("Rolled back %d record(s); imported repository for %s remains on %s",
		len(r.created), r.did, r.op.Destination.Hostname))
}
