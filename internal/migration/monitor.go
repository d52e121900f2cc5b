package migration

import (
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/hashicorp/go-hclog"
	"github.com/juju/clock"
	"github.com/spf13/afero"

	"github.com/rflorenc/pds-migration-workbench/internal/models"
)

// Emergency stop reasons recorded on the failed operation.
const (
	ReasonMaxDuration = "max_duration_exceeded"
	ReasonStalled     = "progress_stalled"
	ReasonOperator    = "operator_requested"
)

// MonitorConfig tunes the safety monitor.
type MonitorConfig struct {
	CheckInterval        time.Duration `yaml:"check_interval"`
	MaxDuration          time.Duration `yaml:"max_duration"`
	StuckThreshold       time.Duration `yaml:"stuck_threshold"`
	ActiveStuckThreshold time.Duration `yaml:"active_stuck_threshold"`
	StressDelay          time.Duration `yaml:"stress_delay"`
	// MaxConsecutiveStuck escalates to an emergency stop after this many stuck
	// detections with no activity in between. Zero never escalates.
	MaxConsecutiveStuck int     `yaml:"max_consecutive_stuck"`
	MemoryPressureLimit float64 `yaml:"memory_pressure_limit"`
	MinFreeDiskBytes    int64   `yaml:"min_free_disk_bytes"`
}

func DefaultMonitorConfig() MonitorConfig {
	return MonitorConfig{
		CheckInterval:        10 * time.Second,
		MaxDuration:          3600 * time.Second,
		StuckThreshold:       300 * time.Second,
		ActiveStuckThreshold: 120 * time.Second,
		StressDelay:          5 * time.Second,
		MaxConsecutiveStuck:  5,
		MemoryPressureLimit:  0.8,
		MinFreeDiskBytes:     100_000_000,
	}
}

// Stopper forcibly ends an operation.
type Stopper interface {
	// EmergencyStop fails op with reason and releases its artifacts. It
	// reports whether this call stopped the operation.
	EmergencyStop(op *models.Operation, reason string) bool
}

// ArtifactStopper fails the operation and deletes its exported repository.
type ArtifactStopper struct {
	fs     afero.Fs
	logger hclog.Logger
}

func NewArtifactStopper(fs afero.Fs, logger hclog.Logger) *ArtifactStopper {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &ArtifactStopper{fs: fs, logger: logger.Named("emergency")}
}

func (s *ArtifactStopper) EmergencyStop(op *models.Operation, reason string) bool {
	op.AbortRequests()
	stopped := op.Fail("emergency stop: " + reason)
	if stopped {
		s.logger.Error("emergency stop", "operation", op.ID, "reason", reason)
		op.AppendLog("Emergency stop: " + reason)
	}
	if err := removeArtifact(s.fs, op.TakeExportedDataPath()); err != nil {
		s.logger.Warn("could not remove exported data", "operation", op.ID, "error", err)
	}
	return stopped
}

func removeArtifact(fs afero.Fs, path string) error {
	if path == "" {
		return nil
	}
	if err := fs.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// SafetyMonitor watches a running operation for runaway duration, stalls and
// host stress.
type SafetyMonitor struct {
	op      *models.Operation
	cfg     MonitorConfig
	clock   clock.Clock
	probe   ResourceProbe
	stopper Stopper
	logger  hclog.Logger

	mu           sync.Mutex
	lastStatus   models.Status
	lastActivity time.Time
	stuckTicks   int

	startOnce sync.Once
	stopOnce  sync.Once
	started   bool
	stop      chan struct{}
	done      chan struct{}
}

func NewSafetyMonitor(op *models.Operation, cfg MonitorConfig, clk clock.Clock, probe ResourceProbe, stopper Stopper, logger hclog.Logger) *SafetyMonitor {
	if clk == nil {
		clk = clock.WallClock
	}
	if probe == nil {
		probe = NewStaticProbe()
	}
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &SafetyMonitor{
		op:           op,
		cfg:          cfg,
		clock:        clk,
		probe:        probe,
		stopper:      stopper,
		logger:       logger.Named("monitor").With("operation", op.ID),
		lastStatus:   op.Status(),
		lastActivity: clk.Now(),
		stop:         make(chan struct{}),
		done:         make(chan struct{}),
	}
}

// Start attaches to the operation and begins periodic checks.
func (m *SafetyMonitor) Start() {
	m.startOnce.Do(func() {
		m.mu.Lock()
		m.started = true
		m.lastStatus = m.op.Status()
		m.lastActivity = m.clock.Now()
		m.mu.Unlock()
		m.op.SetOnActivity(m.RecordActivity)
		go m.loop()
	})
}

// Stop detaches from the operation and waits for the loop to exit.
func (m *SafetyMonitor) Stop() {
	m.stopOnce.Do(func() { close(m.stop) })
	m.op.SetOnActivity(nil)
	m.mu.Lock()
	started := m.started
	m.mu.Unlock()
	if started {
		<-m.done
	}
}

// Done is closed when the loop exits.
func (m *SafetyMonitor) Done() <-chan struct{} { return m.done }

// RecordActivity marks the operation as having made progress.
func (m *SafetyMonitor) RecordActivity() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastActivity = m.clock.Now()
	m.stuckTicks = 0
}

func (m *SafetyMonitor) loop() {
	defer close(m.done)
	for {
		select {
		case <-m.stop:
			return
		case <-m.clock.After(m.cfg.CheckInterval):
		}

		res := m.check()
		if res.exit {
			return
		}
		if res.stressed {
			select {
			case <-m.stop:
				return
			case <-m.clock.After(m.cfg.StressDelay):
			}
		}
	}
}

type checkResult struct {
	stuck    bool
	stressed bool
	stopped  bool
	exit     bool
}

func (m *SafetyMonitor) check() checkResult {
	var res checkResult
	now := m.clock.Now()
	status := m.op.Status()
	if status.IsTerminal() {
		res.exit = true
		return res
	}

	m.mu.Lock()
	if status != m.lastStatus {
		m.lastStatus = status
		m.lastActivity = now
		m.stuckTicks = 0
	}
	idle := now.Sub(m.lastActivity)
	m.mu.Unlock()

	if elapsed := now.Sub(m.op.CreatedAt); elapsed > m.cfg.MaxDuration {
		m.logger.Error("maximum duration exceeded", "elapsed", elapsed, "limit", m.cfg.MaxDuration)
		m.emergencyStop(ReasonMaxDuration)
		res.stopped, res.exit = true, true
		return res
	}

	threshold := m.cfg.StuckThreshold
	if status.IsActiveTransfer() {
		threshold = m.cfg.ActiveStuckThreshold
	}
	if idle > threshold {
		res.stuck = true
		m.mu.Lock()
		m.lastActivity = now
		m.stuckTicks++
		ticks := m.stuckTicks
		m.mu.Unlock()

		m.logger.Warn("operation appears stuck", "status", status, "idle", idle, "consecutive", ticks)
		m.op.AppendLog(fmt.Sprintf("No progress for %s while %s, probing", idle.Round(time.Second), status.Description()))

		if m.cfg.MaxConsecutiveStuck > 0 && ticks >= m.cfg.MaxConsecutiveStuck {
			m.emergencyStop(ReasonStalled)
			res.stopped, res.exit = true, true
			return res
		}
	}

	if signals := m.stressSignals(); len(signals) > 0 {
		res.stressed = true
		for _, s := range signals {
			m.logger.Warn("host under stress", "signal", s)
		}
	}
	return res
}

func (m *SafetyMonitor) emergencyStop(reason string) {
	if m.stopper != nil {
		m.stopper.EmergencyStop(m.op, reason)
		return
	}
	m.op.Fail("emergency stop: " + reason)
}

func (m *SafetyMonitor) stressSignals() []string {
	var signals []string
	if p := m.probe.MemoryPressure(); p > m.cfg.MemoryPressureLimit {
		signals = append(signals, fmt.Sprintf("memory pressure %.0f%%", p*100))
	}
	if free := m.probe.AvailableDiskBytes(); free >= 0 && free < m.cfg.MinFreeDiskBytes {
		signals = append(signals, "low disk: "+humanize.Bytes(uint64(free))+" free")
	}
	if !m.probe.IsForegrounded() {
		signals = append(signals, "running in background")
	}
	if !m.probe.HasNetwork() {
		signals = append(signals, "no network")
	}
	return signals
}
