package models

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestOperation() *Operation {
	return NewOperation(
		ServerConfiguration{Hostname: "old.example.com"},
		ServerConfiguration{Hostname: "new.example.com"},
		DefaultOptions(),
		time.Now(),
	)
}

var forwardOrder = []Status{
	StatusPreparing, StatusPreparingBackup, StatusAuthenticating, StatusValidating,
	StatusExporting, StatusImporting, StatusVerifying, StatusCompleted,
}

func TestStatusProgressTable(t *testing.T) {
	want := map[Status]float64{
		StatusPreparing:       0.05,
		StatusPreparingBackup: 0.10,
		StatusAuthenticating:  0.20,
		StatusValidating:      0.30,
		StatusExporting:       0.50,
		StatusImporting:       0.80,
		StatusVerifying:       0.95,
		StatusCompleted:       1.0,
		StatusFailed:          0,
		StatusCancelled:       0,
	}
	for s, p := range want {
		assert.InDelta(t, p, s.Progress(), 1e-9, "status %s", s)
		assert.NotEmpty(t, s.Description())
	}
}

func TestOperation_ForwardProgressIsMonotonic(t *testing.T) {
	op := newTestOperation()
	last := op.Progress()
	for _, s := range forwardOrder {
		require.True(t, op.UpdateStatus(s))
		assert.GreaterOrEqual(t, op.Progress(), last, "progress went backward at %s", s)
		last = op.Progress()
	}
	assert.Equal(t, 1.0, op.Progress())
	assert.Equal(t, StatusCompleted, op.Status())
}

func TestOperation_TerminalFailureResetsProgress(t *testing.T) {
	for _, terminal := range []Status{StatusFailed, StatusCancelled} {
		t.Run(string(terminal), func(t *testing.T) {
			op := newTestOperation()
			op.UpdateStatus(StatusImporting)
			require.InDelta(t, 0.8, op.Progress(), 1e-9)

			require.True(t, op.UpdateStatus(terminal))
			assert.Equal(t, 0.0, op.Progress())
			assert.Equal(t, terminal.Description(), op.Snapshot().CurrentPhase)
			assert.NotNil(t, op.Snapshot().CompletedAt)
		})
	}
}

func TestOperation_TerminalIsAbsorbing(t *testing.T) {
	op := newTestOperation()
	require.True(t, op.Fail("exceeded maximum duration"))

	assert.False(t, op.UpdateStatus(StatusImporting))
	assert.False(t, op.Fail("second reason"))
	op.UpdateProgress(0.9, "late write")

	assert.Equal(t, StatusFailed, op.Status())
	assert.Equal(t, "exceeded maximum duration", op.ErrorMessage())
	assert.Equal(t, 0.0, op.Progress())
}

func TestOperation_UpdateProgressNeverMovesBackward(t *testing.T) {
	op := newTestOperation()
	op.UpdateStatus(StatusExporting)

	op.UpdateProgress(0.6, "Exported 60%")
	op.UpdateProgress(0.55, "")
	assert.InDelta(t, 0.6, op.Progress(), 1e-9)
	assert.Equal(t, "Exported 60%", op.Snapshot().CurrentPhase)

	op.UpdateProgress(7, "")
	assert.Equal(t, 1.0, op.Progress())
}

func TestOperation_ActivityCallback(t *testing.T) {
	op := newTestOperation()
	var calls atomic.Int32
	op.SetOnActivity(func() { calls.Add(1) })

	op.UpdateStatus(StatusAuthenticating)
	op.UpdateProgress(0.25, "")
	op.Fail("boom")
	op.UpdateStatus(StatusImporting) // ignored, terminal

	assert.Equal(t, int32(3), calls.Load())

	op.SetOnActivity(nil)
	op.UpdateProgress(0.5, "")
}

func TestOperation_CancelAbortsRequests(t *testing.T) {
	op := newTestOperation()
	var aborted bool
	op.SetCancelFunc(func() { aborted = true })

	assert.True(t, op.Cancel())
	assert.True(t, aborted)
	assert.Equal(t, StatusCancelled, op.Status())
}

func TestOperation_TakeExportedDataPathOnce(t *testing.T) {
	op := newTestOperation()
	op.SetExportedData("/tmp/export.car", 1024)

	assert.Equal(t, "/tmp/export.car", op.TakeExportedDataPath())
	assert.Equal(t, "", op.TakeExportedDataPath())
	assert.Equal(t, int64(1024), op.Snapshot().ExportedDataSize)
}

func TestOperation_ConcurrentWriters(t *testing.T) {
	op := newTestOperation()
	op.SetOnActivity(func() {})
	var wg sync.WaitGroup

	wg.Add(2)
	go func() {
		defer wg.Done()
		for _, s := range forwardOrder[:len(forwardOrder)-1] {
			op.UpdateStatus(s)
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 100; i++ {
			_ = op.Snapshot()
			op.AppendLog("tick")
		}
	}()
	wg.Wait()

	assert.Equal(t, StatusVerifying, op.Status())
	assert.Len(t, op.LogsSince(0), 100)
}

func TestOperation_LogsSince(t *testing.T) {
	op := newTestOperation()
	op.AppendLog("one")
	op.AppendLog("two")

	assert.Equal(t, []string{"two"}, op.LogsSince(1))
	assert.Nil(t, op.LogsSince(2))
}
