package models

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/spf13/afero"
)

// MigrationRecord is a plain history snapshot of a finished migration.
type MigrationRecord struct {
	ID                string    `json:"id"`
	SourceHost        string    `json:"source_host"`
	DestinationHost   string    `json:"destination_host"`
	MigratedAt        time.Time `json:"migrated_at"`
	Status            Status    `json:"status"`
	DataSize          int64     `json:"data_size"`
	VerificationScore *float64  `json:"verification_score,omitempty"`
	ErrorMessage      string    `json:"error_message,omitempty"`
}

// RecordFromOperation snapshots an operation into a history record.
func RecordFromOperation(op *Operation) MigrationRecord {
	snap := op.Snapshot()
	rec := MigrationRecord{
		ID:              snap.ID,
		SourceHost:      snap.SourceHost,
		DestinationHost: snap.DestinationHost,
		MigratedAt:      snap.CreatedAt,
		Status:          snap.Status,
		DataSize:        snap.ExportedDataSize,
		ErrorMessage:    snap.ErrorMessage,
	}
	if snap.CompletedAt != nil {
		rec.MigratedAt = *snap.CompletedAt
	}
	if rec.DataSize == 0 {
		rec.DataSize = snap.EstimatedDataSize
	}
	if snap.VerificationReport != nil {
		score := snap.VerificationReport.SuccessRate
		rec.VerificationScore = &score
	}
	return rec
}

// RecordStore is a thread-safe migration history, optionally persisted as a
// JSON file.
type RecordStore struct {
	mu      sync.RWMutex
	records map[string]MigrationRecord
	fs      afero.Fs
	path    string
}

// NewRecordStore creates a history store. An empty path keeps it in memory.
func NewRecordStore(fs afero.Fs, path string) *RecordStore {
	return &RecordStore{
		records: make(map[string]MigrationRecord),
		fs:      fs,
		path:    path,
	}
}

// Add inserts or replaces a record.
func (s *RecordStore) Add(r MigrationRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[r.ID] = r
}

// Get returns a record by ID.
func (s *RecordStore) Get(id string) (MigrationRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.records[id]
	return r, ok
}

// List returns all records, most recent first.
func (s *RecordStore) List() []MigrationRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]MigrationRecord, 0, len(s.records))
	for _, r := range s.records {
		result = append(result, r)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].MigratedAt.After(result[j].MigratedAt)
	})
	return result
}

// Save writes the history file.
func (s *RecordStore) Save() error {
	if s.path == "" {
		return nil
	}
	data, err := json.MarshalIndent(s.List(), "", "  ")
	if err != nil {
		return fmt.Errorf("encoding history: %w", err)
	}
	if err := s.fs.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("creating history dir: %w", err)
	}
	if err := afero.WriteFile(s.fs, s.path, data, 0o600); err != nil {
		return fmt.Errorf("writing %s: %w", s.path, err)
	}
	return nil
}

// Load reads the history file. A missing file is not an error.
func (s *RecordStore) Load() error {
	if s.path == "" {
		return nil
	}
	data, err := afero.ReadFile(s.fs, s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("reading %s: %w", s.path, err)
	}
	var records []MigrationRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return fmt.Errorf("parsing %s: %w", s.path, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range records {
		s.records[r.ID] = r
	}
	return nil
}
