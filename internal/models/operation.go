package models

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Status is a migration phase. Forward order is the declaration order below;
// Failed and Cancelled are absorbing and reachable from any non-terminal state.
type Status string

const (
	StatusPreparing       Status = "preparing"
	StatusPreparingBackup Status = "preparing_backup"
	StatusAuthenticating  Status = "authenticating"
	StatusValidating      Status = "validating"
	StatusExporting       Status = "exporting"
	StatusImporting       Status = "importing"
	StatusVerifying       Status = "verifying"
	StatusCompleted       Status = "completed"
	StatusFailed          Status = "failed"
	StatusCancelled       Status = "cancelled"
)

// Progress is the fixed progress fraction a phase maps to.
func (s Status) Progress() float64 {
	switch s {
	case StatusPreparing:
		return 0.05
	case StatusPreparingBackup:
		return 0.10
	case StatusAuthenticating:
		return 0.20
	case StatusValidating:
		return 0.30
	case StatusExporting:
		return 0.50
	case StatusImporting:
		return 0.80
	case StatusVerifying:
		return 0.95
	case StatusCompleted:
		return 1.0
	}
	return 0
}

// Description is the human label shown for a phase.
func (s Status) Description() string {
	switch s {
	case StatusPreparing:
		return "Preparing migration"
	case StatusPreparingBackup:
		return "Creating backup"
	case StatusAuthenticating:
		return "Authenticating with servers"
	case StatusValidating:
		return "Validating compatibility"
	case StatusExporting:
		return "Exporting repository"
	case StatusImporting:
		return "Importing repository"
	case StatusVerifying:
		return "Verifying migration"
	case StatusCompleted:
		return "Migration completed"
	case StatusFailed:
		return "Migration failed"
	case StatusCancelled:
		return "Migration cancelled"
	}
	return string(s)
}

// IsTerminal reports whether no further transitions are possible.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

// IsActiveTransfer reports whether the phase moves data between servers and is
// therefore watched more tightly for stalls.
func (s Status) IsActiveTransfer() bool {
	return s == StatusValidating || s == StatusExporting || s == StatusImporting
}

// Operation is one in-flight account migration. Identity fields are fixed at
// construction; everything else is written through the methods below, which
// serialize on a single mutex.
type Operation struct {
	ID          string
	Source      ServerConfiguration
	Destination ServerConfiguration
	Options     MigrationOptions
	CreatedAt   time.Time

	mu                 sync.Mutex
	status             Status
	phase              string
	progress           float64
	errorMessage       string
	completedAt        *time.Time
	compatibility      *CompatibilityReport
	safety             *SafetyReport
	verification       *VerificationReport
	estimatedDataSize  int64
	exportedDataSize   int64
	exportedDataPath   string
	destinationAuthURL string
	destinationDID     string
	onActivity         func()
	cancel             context.CancelFunc
	output             []string
}

// NewOperation creates an operation in the Preparing state.
func NewOperation(source, destination ServerConfiguration, opts MigrationOptions, createdAt time.Time) *Operation {
	return &Operation{
		ID:          uuid.New().String(),
		Source:      source,
		Destination: destination,
		Options:     opts,
		CreatedAt:   createdAt,
		status:      StatusPreparing,
		phase:       StatusPreparing.Description(),
		progress:    StatusPreparing.Progress(),
		output:      []string{},
	}
}

// SetOnActivity registers the callback invoked after every status or progress
// update. Pass nil to detach.
func (o *Operation) SetOnActivity(fn func()) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.onActivity = fn
}

// SetCancelFunc registers the function that aborts in-flight remote calls.
func (o *Operation) SetCancelFunc(cancel context.CancelFunc) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.cancel = cancel
}

// UpdateStatus moves the operation to s, updating phase and progress together.
// Once terminal, the operation ignores further updates and false is returned.
func (o *Operation) UpdateStatus(s Status) bool {
	return o.transition(s, "")
}

func (o *Operation) transition(s Status, message string) bool {
	o.mu.Lock()
	if o.status.IsTerminal() {
		o.mu.Unlock()
		return false
	}
	o.status = s
	o.phase = s.Description()
	if message != "" {
		o.errorMessage = message
	}
	switch s {
	case StatusFailed, StatusCancelled:
		o.progress = 0
	default:
		o.progress = max(o.progress, s.Progress())
	}
	if s.IsTerminal() {
		now := time.Now()
		o.completedAt = &now
	}
	notify := o.onActivity
	o.mu.Unlock()

	if notify != nil {
		notify()
	}
	return true
}

// UpdateProgress records finer-grained progress within the current phase.
// Progress never moves backward.
func (o *Operation) UpdateProgress(value float64, phase string) {
	o.mu.Lock()
	if o.status.IsTerminal() {
		o.mu.Unlock()
		return
	}
	value = min(max(value, 0), 1)
	o.progress = max(o.progress, value)
	if phase != "" {
		o.phase = phase
	}
	notify := o.onActivity
	o.mu.Unlock()

	if notify != nil {
		notify()
	}
}

// Fail moves the operation to Failed with the given message. It reports
// whether this call performed the transition.
func (o *Operation) Fail(message string) bool {
	return o.transition(StatusFailed, message)
}

// Cancel moves the operation to Cancelled and aborts in-flight calls.
func (o *Operation) Cancel() bool {
	ok := o.UpdateStatus(StatusCancelled)
	o.AbortRequests()
	return ok
}

// AbortRequests invokes the registered cancel function, if any.
func (o *Operation) AbortRequests() {
	o.mu.Lock()
	cancel := o.cancel
	o.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

func (o *Operation) Status() Status {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.status
}

func (o *Operation) Progress() float64 {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.progress
}

func (o *Operation) ErrorMessage() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.errorMessage
}

func (o *Operation) SetCompatibilityReport(r *CompatibilityReport) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.compatibility = r
}

func (o *Operation) CompatibilityReport() *CompatibilityReport {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.compatibility
}

func (o *Operation) SetSafetyReport(r *SafetyReport) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.safety = r
}

func (o *Operation) SafetyReport() *SafetyReport {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.safety
}

func (o *Operation) SetVerificationReport(r *VerificationReport) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.verification = r
}

func (o *Operation) VerificationReport() *VerificationReport {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.verification
}

func (o *Operation) SetEstimatedDataSize(n int64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.estimatedDataSize = n
}

func (o *Operation) EstimatedDataSize() int64 {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.estimatedDataSize
}

// SetExportedData records where the exported repository was written.
func (o *Operation) SetExportedData(path string, size int64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.exportedDataPath = path
	o.exportedDataSize = size
}

func (o *Operation) ExportedDataPath() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.exportedDataPath
}

// TakeExportedDataPath returns the exported artifact path and forgets it, so
// only one caller ever cleans it up.
func (o *Operation) TakeExportedDataPath() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	p := o.exportedDataPath
	o.exportedDataPath = ""
	return p
}

// SetDestinationAccount records the account created on the destination.
func (o *Operation) SetDestinationAccount(authURL, did string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.destinationAuthURL = authURL
	o.destinationDID = did
}

func (o *Operation) DestinationDID() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.destinationDID
}

// AppendLog adds a line to the operation log.
func (o *Operation) AppendLog(line string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.output = append(o.output, line)
}

// LogsSince returns log lines starting from the given index.
func (o *Operation) LogsSince(offset int) []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	if offset >= len(o.output) {
		return nil
	}
	lines := make([]string, len(o.output)-offset)
	copy(lines, o.output[offset:])
	return lines
}

// OperationSnapshot is a consistent read-only copy of an Operation.
type OperationSnapshot struct {
	ID                  string               `json:"id"`
	SourceHost          string               `json:"source_host"`
	DestinationHost     string               `json:"destination_host"`
	Options             MigrationOptions     `json:"options"`
	CreatedAt           time.Time            `json:"created_at"`
	Status              Status               `json:"status"`
	CurrentPhase        string               `json:"current_phase"`
	Progress            float64              `json:"progress"`
	ErrorMessage        string               `json:"error_message,omitempty"`
	CompletedAt         *time.Time           `json:"completed_at,omitempty"`
	CompatibilityReport *CompatibilityReport `json:"compatibility_report,omitempty"`
	SafetyReport        *SafetyReport        `json:"safety_report,omitempty"`
	VerificationReport  *VerificationReport  `json:"verification_report,omitempty"`
	EstimatedDataSize   int64                `json:"estimated_data_size"`
	ExportedDataSize    int64                `json:"exported_data_size"`
	ExportedDataPath    string               `json:"exported_data_path,omitempty"`
	DestinationAuthURL  string               `json:"destination_auth_url,omitempty"`
	DestinationDID      string               `json:"destination_did,omitempty"`
}

// Snapshot copies the operation's current state.
func (o *Operation) Snapshot() OperationSnapshot {
	o.mu.Lock()
	defer o.mu.Unlock()
	return OperationSnapshot{
		ID:                  o.ID,
		SourceHost:          o.Source.Hostname,
		DestinationHost:     o.Destination.Hostname,
		Options:             o.Options,
		CreatedAt:           o.CreatedAt,
		Status:              o.status,
		CurrentPhase:        o.phase,
		Progress:            o.progress,
		ErrorMessage:        o.errorMessage,
		CompletedAt:         o.completedAt,
		CompatibilityReport: o.compatibility,
		SafetyReport:        o.safety,
		VerificationReport:  o.verification,
		EstimatedDataSize:   o.estimatedDataSize,
		ExportedDataSize:    o.exportedDataSize,
		ExportedDataPath:    o.exportedDataPath,
		DestinationAuthURL:  o.destinationAuthURL,
		DestinationDID:      o.destinationDID,
	}
}
