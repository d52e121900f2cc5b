package migration

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/juju/clock/testclock"
	"github.com/stretchr/testify/assert"

	"github.com/rflorenc/pds-migration-workbench/internal/models"
)

type healthFunc func(host string) bool

func (f healthFunc) Stable(_ context.Context, host string) bool { return f(host) }

func allStable(string) bool { return true }

func newSafetyOperation(size int64, opts models.MigrationOptions) *models.Operation {
	op := models.NewOperation(*server("old.pds", "0.3.0"), *server("new.pds", "0.3.0"), opts, time.Now())
	op.SetEstimatedDataSize(size)
	return op
}

func TestSafetyAssessor_Levels(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	tests := []struct {
		name       string
		compat     *models.CompatibilityReport
		size       int64
		health     healthFunc
		level      models.SafetyLevel
		canProceed bool
	}{
		{
			name:       "clean",
			compat:     &models.CompatibilityReport{RiskLevel: models.RiskLow},
			health:     allStable,
			level:      models.SafetySafe,
			canProceed: true,
		},
		{
			name:       "one medium risk",
			compat:     &models.CompatibilityReport{RiskLevel: models.RiskMedium},
			health:     allStable,
			level:      models.SafetyLow,
			canProceed: true,
		},
		{
			name:       "two medium risks",
			compat:     &models.CompatibilityReport{RiskLevel: models.RiskMedium},
			size:       60_000_000,
			health:     allStable,
			level:      models.SafetyMedium,
			canProceed: true,
		},
		{
			name:       "large account",
			compat:     &models.CompatibilityReport{RiskLevel: models.RiskLow},
			size:       250_000_000,
			health:     allStable,
			level:      models.SafetyHigh,
			canProceed: true,
		},
		{
			name:       "unstable destination",
			compat:     &models.CompatibilityReport{RiskLevel: models.RiskLow},
			health:     func(host string) bool { return host != "new.pds" },
			level:      models.SafetyHigh,
			canProceed: true,
		},
		{
			name: "critical compatibility",
			compat: &models.CompatibilityReport{
				RiskLevel: models.RiskCritical,
				Blockers:  []string{"missing required capability: posts"},
			},
			health:     allStable,
			level:      models.SafetyCritical,
			canProceed: false,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			a := NewSafetyAssessor(tc.health, testclock.NewClock(now), nil)
			r := a.Assess(context.Background(), newSafetyOperation(tc.size, models.DefaultOptions()), tc.compat)
			assert.Equal(t, tc.level, r.OverallLevel)
			assert.Equal(t, tc.canProceed, r.CanProceed)
			assert.Equal(t, now, r.CheckedAt)
			assert.LessOrEqual(t, r.EstimatedRiskScore, 1.0)
		})
	}
}

func TestSafetyAssessor_CriticalWithoutBlockerText(t *testing.T) {
	a := NewSafetyAssessor(healthFunc(allStable), nil, nil)
	r := a.Assess(context.Background(), newSafetyOperation(0, models.DefaultOptions()),
		&models.CompatibilityReport{RiskLevel: models.RiskCritical})
	assert.Equal(t, []string{"compatibility risk is critical"}, r.Blockers)
}

func TestSafetyAssessor_Recommendations(t *testing.T) {
	opts := models.DefaultOptions()
	opts.CreateBackupBeforeMigration = false
	opts.VerifyAfterMigration = false

	a := NewSafetyAssessor(healthFunc(allStable), nil, nil)
	r := a.Assess(context.Background(), newSafetyOperation(150_000_000, opts), nil)
	assert.Len(t, r.Recommendations, 3)
	assert.Contains(t, r.Recommendations[0], "excluding media")

	r = a.Assess(context.Background(), newSafetyOperation(1_000, models.DefaultOptions()), nil)
	assert.Empty(t, r.Recommendations)
}

func TestClientHealthProbe(t *testing.T) {
	up := newFakeClient("up.pds", "0.3.0")
	down := newFakeClient("down.pds", "0.3.0")
	down.describeErr = errors.New("503")

	p := NewClientHealthProbe(time.Second, up, down)
	assert.True(t, p.Stable(context.Background(), "up.pds"))
	assert.False(t, p.Stable(context.Background(), "down.pds"))
	assert.False(t, p.Stable(context.Background(), "unknown.pds"))
}
