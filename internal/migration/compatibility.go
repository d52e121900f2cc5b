package migration

import (
	"context"
	"fmt"
	"time"

	"github.com/Masterminds/semver/v3"
	"github.com/dustin/go-humanize"
	"github.com/hashicorp/go-hclog"
	"golang.org/x/sync/errgroup"

	"github.com/rflorenc/pds-migration-workbench/internal/models"
	"github.com/rflorenc/pds-migration-workbench/internal/platform"
)

var (
	requiredCapabilities = []string{models.CapabilityPosts, models.CapabilityFollows}
	optionalCapabilities = []string{models.CapabilityMedia, models.CapabilityChat, models.CapabilityBlocks}
)

const (
	baseMigrationDuration    = 300 * time.Second
	referenceRequestsPerMin  = 3000
	slowDestinationThreshold = 1000
	slowDestinationBatchSize = 50
)

// CompatibilityValidator decides whether an account can move between two servers.
type CompatibilityValidator struct {
	logger  hclog.Logger
	retries uint64
}

// NewCompatibilityValidator creates a validator. retries bounds how often the
// read-only descriptor fetches are retried.
func NewCompatibilityValidator(logger hclog.Logger, retries uint64) *CompatibilityValidator {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &CompatibilityValidator{logger: logger.Named("compatibility"), retries: retries}
}

// Validate fetches both server descriptors and compares them.
func (v *CompatibilityValidator) Validate(ctx context.Context, source, destination platform.Client, defaults models.MigrationOptions) (*models.CompatibilityReport, error) {
	src, dst, err := v.FetchConfigurations(ctx, source, destination)
	if err != nil {
		return nil, err
	}
	return v.Compare(src, dst, defaults), nil
}

// FetchConfigurations fetches both descriptors in parallel. The first failure
// cancels the other fetch and is returned.
func (v *CompatibilityValidator) FetchConfigurations(ctx context.Context, source, destination platform.Client) (*models.ServerConfiguration, *models.ServerConfiguration, error) {
	var src, dst *models.ServerConfiguration
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return platform.RetryReads(gctx, v.retries, func() error {
			cfg, err := source.DescribeServer(gctx)
			if err != nil {
				return transportError(source.Host(), err)
			}
			src = cfg
			return nil
		})
	})
	g.Go(func() error {
		return platform.RetryReads(gctx, v.retries, func() error {
			cfg, err := destination.DescribeServer(gctx)
			if err != nil {
				return transportError(destination.Host(), err)
			}
			dst = cfg
			return nil
		})
	})
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return src, dst, nil
}

// Compare runs every check against two descriptors. Risk only ever rises
// during a pass, and any blocker forces critical.
func (v *CompatibilityValidator) Compare(src, dst *models.ServerConfiguration, defaults models.MigrationOptions) *models.CompatibilityReport {
	report := &models.CompatibilityReport{
		SourceVersion:      src.Version,
		DestinationVersion: dst.Version,
		Warnings:           []string{},
		Blockers:           []string{},
		RiskLevel:          models.RiskLow,
	}

	v.checkVersions(report, src, dst)
	v.checkCapabilities(report, src, dst)
	v.checkAccountSize(report, src, dst)
	v.checkRateLimits(report, src, dst)

	if !dst.SupportsMigration {
		report.Blockers = append(report.Blockers,
			fmt.Sprintf("destination %s does not accept account migrations", dst.Hostname))
	}

	report.EstimatedDuration = estimateDuration(dst)

	recommended := defaults
	if rpm := dst.RequestsPerMinute(); rpm > 0 && rpm < slowDestinationThreshold {
		recommended.BatchSize = slowDestinationBatchSize
	}
	report.RecommendedOptions = &recommended

	report.Finalize()
	v.logger.Debug("compatibility compared",
		"source", src.Hostname, "destination", dst.Hostname,
		"risk", report.RiskLevel, "warnings", len(report.Warnings), "blockers", len(report.Blockers))
	return report
}

func (v *CompatibilityValidator) checkVersions(report *models.CompatibilityReport, src, dst *models.ServerConfiguration) {
	sv, serr := semver.NewVersion(src.Version)
	dv, derr := semver.NewVersion(dst.Version)
	if serr != nil || derr != nil {
		bad := src.Version
		if serr == nil {
			bad = dst.Version
		}
		report.Blockers = append(report.Blockers, UnsupportedServerVersion(bad).Error())
		report.RiskLevel = models.RiskCritical
		return
	}

	if sv.Major() != dv.Major() {
		report.Blockers = append(report.Blockers,
			fmt.Sprintf("major version mismatch: source %s, destination %s", src.Version, dst.Version))
		report.RiskLevel = models.RiskCritical
		return
	}

	minorGap := int64(sv.Minor()) - int64(dv.Minor())
	if minorGap < 0 {
		minorGap = -minorGap
	}
	if minorGap > 1 {
		report.Warnings = append(report.Warnings,
			fmt.Sprintf("minor version difference: source %s, destination %s", src.Version, dst.Version))
		report.RiskLevel = report.RiskLevel.AtLeast(models.RiskMedium)
	}
}

func (v *CompatibilityValidator) checkCapabilities(report *models.CompatibilityReport, src, dst *models.ServerConfiguration) {
	for _, c := range requiredCapabilities {
		if src.HasCapability(c) && !dst.HasCapability(c) {
			report.Blockers = append(report.Blockers, "missing required capability: "+c)
			report.RiskLevel = models.RiskCritical
		}
	}
	for _, c := range optionalCapabilities {
		if src.HasCapability(c) && !dst.HasCapability(c) {
			report.Warnings = append(report.Warnings, "missing optional capability: "+c)
			report.RiskLevel = report.RiskLevel.AtLeast(models.RiskMedium)
		}
	}
}

func (v *CompatibilityValidator) checkAccountSize(report *models.CompatibilityReport, src, dst *models.ServerConfiguration) {
	if src.MaxAccountSize == nil || dst.MaxAccountSize == nil {
		return
	}
	if *dst.MaxAccountSize < *src.MaxAccountSize {
		report.Warnings = append(report.Warnings, fmt.Sprintf(
			"destination max account size (%s) is smaller than source (%s)",
			humanize.Bytes(uint64(*dst.MaxAccountSize)), humanize.Bytes(uint64(*src.MaxAccountSize))))
		report.RiskLevel = report.RiskLevel.AtLeast(models.RiskMedium)
	}
}

func (v *CompatibilityValidator) checkRateLimits(report *models.CompatibilityReport, src, dst *models.ServerConfiguration) {
	srcRPM, dstRPM := src.RequestsPerMinute(), dst.RequestsPerMinute()
	if srcRPM == 0 || dstRPM == 0 {
		return
	}
	if float64(dstRPM) < float64(srcRPM)/2 {
		report.Warnings = append(report.Warnings, fmt.Sprintf(
			"destination rate limit (%d req/min) is less than half of source (%d req/min); migration will be slower",
			dstRPM, srcRPM))
	}
}

func estimateDuration(dst *models.ServerConfiguration) time.Duration {
	factor := 1.0
	if rpm := dst.RequestsPerMinute(); rpm > 0 {
		factor = max(1.0, float64(referenceRequestsPerMin)/float64(rpm))
	}
	return time.Duration(float64(baseMigrationDuration) * factor)
}
