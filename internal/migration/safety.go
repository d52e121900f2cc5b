package migration

import (
	"context"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/hashicorp/go-hclog"
	"github.com/juju/clock"

	"github.com/rflorenc/pds-migration-workbench/internal/models"
	"github.com/rflorenc/pds-migration-workbench/internal/platform"
)

const (
	mediumDataSize = 50_000_000
	largeDataSize  = 200_000_000
	mediaAdvice    = 100_000_000
)

// HealthProbe tells whether a server is answering reliably.
type HealthProbe interface {
	Stable(ctx context.Context, host string) bool
}

// ClientHealthProbe judges stability by asking the server to describe itself
// within a latency budget.
type ClientHealthProbe struct {
	clients map[string]platform.Client
	budget  time.Duration
}

func NewClientHealthProbe(budget time.Duration, clients ...platform.Client) *ClientHealthProbe {
	p := &ClientHealthProbe{clients: make(map[string]platform.Client), budget: budget}
	for _, c := range clients {
		p.clients[c.Host()] = c
	}
	return p
}

func (p *ClientHealthProbe) Stable(ctx context.Context, host string) bool {
	c, ok := p.clients[host]
	if !ok {
		return false
	}
	if p.budget > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.budget)
		defer cancel()
	}
	_, err := c.DescribeServer(ctx)
	return err == nil
}

// SafetyAssessor turns a compatibility report and operation context into a
// go/no-go safety report.
type SafetyAssessor struct {
	health HealthProbe
	clock  clock.Clock
	logger hclog.Logger
}

func NewSafetyAssessor(health HealthProbe, clk clock.Clock, logger hclog.Logger) *SafetyAssessor {
	if clk == nil {
		clk = clock.WallClock
	}
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &SafetyAssessor{health: health, clock: clk, logger: logger.Named("safety")}
}

// Assess builds the safety report for op.
func (a *SafetyAssessor) Assess(ctx context.Context, op *models.Operation, compat *models.CompatibilityReport) *models.SafetyReport {
	report := &models.SafetyReport{
		Risks:           []models.Risk{},
		Blockers:        []string{},
		Recommendations: []string{},
		CheckedAt:       a.clock.Now(),
	}

	if compat != nil {
		a.assessCompatibility(report, compat)
	}
	size := op.EstimatedDataSize()
	a.assessDataSize(report, size)
	if a.health != nil {
		a.assessStability(ctx, report, op.Source.Hostname)
		a.assessStability(ctx, report, op.Destination.Hostname)
	}

	if size > mediaAdvice && op.Options.IncludeMedia {
		report.Recommendations = append(report.Recommendations,
			"Consider excluding media to reduce transfer size")
	}
	if !op.Options.CreateBackupBeforeMigration {
		report.Recommendations = append(report.Recommendations,
			"Strongly recommended: enable a backup before migrating")
	}
	if !op.Options.VerifyAfterMigration {
		report.Recommendations = append(report.Recommendations,
			"Enable verification after migration")
	}

	report.Finalize()
	a.logger.Debug("safety assessed", "operation", op.ID,
		"level", report.OverallLevel, "score", report.EstimatedRiskScore, "blockers", len(report.Blockers))
	return report
}

func (a *SafetyAssessor) assessCompatibility(report *models.SafetyReport, compat *models.CompatibilityReport) {
	switch compat.RiskLevel {
	case models.RiskCritical:
		if len(compat.Blockers) == 0 {
			report.Blockers = append(report.Blockers, "compatibility risk is critical")
		}
		report.Blockers = append(report.Blockers, compat.Blockers...)
	case models.RiskHigh:
		report.Risks = append(report.Risks, models.Risk{
			Level:       models.SafetyHigh,
			Category:    models.CategoryCompatibility,
			Description: "Servers differ in ways likely to lose data",
			Mitigation:  "Review compatibility warnings before migrating",
		})
	case models.RiskMedium:
		report.Risks = append(report.Risks, models.Risk{
			Level:       models.SafetyMedium,
			Category:    models.CategoryCompatibility,
			Description: "Servers differ in optional features",
			Mitigation:  "Some data may not carry over; review warnings",
		})
	}
}

func (a *SafetyAssessor) assessDataSize(report *models.SafetyReport, size int64) {
	var level models.SafetyLevel
	switch {
	case size > largeDataSize:
		level = models.SafetyHigh
	case size > mediumDataSize:
		level = models.SafetyMedium
	default:
		return
	}
	report.Risks = append(report.Risks, models.Risk{
		Level:       level,
		Category:    models.CategoryDataSize,
		Description: fmt.Sprintf("Account holds about %s of data", humanize.Bytes(uint64(size))),
		Mitigation:  "Allow extra time and keep the host online until the transfer ends",
	})
}

func (a *SafetyAssessor) assessStability(ctx context.Context, report *models.SafetyReport, host string) {
	if a.health.Stable(ctx, host) {
		return
	}
	report.Risks = append(report.Risks, models.Risk{
		Level:       models.SafetyHigh,
		Category:    models.CategoryServerStability,
		Description: fmt.Sprintf("Server %s is not responding reliably", host),
		Mitigation:  "Retry when the server is healthy",
	})
}
