package models

import (
	"errors"
	"sort"
	"sync"
)

var (
	// ErrMigrationInProgress is returned when an account already has a live migration.
	ErrMigrationInProgress = errors.New("a migration is already in progress for this account")
	// ErrNoMigrationInProgress is returned when no live migration exists for an account.
	ErrNoMigrationInProgress = errors.New("no migration in progress for this account")
)

// OperationRegistry tracks operations by ID and enforces at most one
// non-terminal operation per account.
type OperationRegistry struct {
	mu        sync.RWMutex
	ops       map[string]*Operation
	byAccount map[string]string // account identity -> operation ID
}

// NewOperationRegistry creates an empty registry.
func NewOperationRegistry() *OperationRegistry {
	return &OperationRegistry{
		ops:       make(map[string]*Operation),
		byAccount: make(map[string]string),
	}
}

// Register adds op for the given account.
func (r *OperationRegistry) Register(account string, op *Operation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if id, ok := r.byAccount[account]; ok {
		if existing := r.ops[id]; existing != nil && !existing.Status().IsTerminal() {
			return ErrMigrationInProgress
		}
	}
	r.ops[op.ID] = op
	r.byAccount[account] = op.ID
	return nil
}

// Release drops the account's claim once operation opID is finished. A claim
// held by a different operation is left alone.
func (r *OperationRegistry) Release(account, opID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if id, ok := r.byAccount[account]; !ok || id != opID {
		return ErrNoMigrationInProgress
	}
	delete(r.byAccount, account)
	return nil
}

// Active returns the live operation for an account.
func (r *OperationRegistry) Active(account string) (*Operation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byAccount[account]
	if !ok {
		return nil, ErrNoMigrationInProgress
	}
	op := r.ops[id]
	if op == nil || op.Status().IsTerminal() {
		return nil, ErrNoMigrationInProgress
	}
	return op, nil
}

// Get returns an operation by ID, or nil if not found.
func (r *OperationRegistry) Get(id string) *Operation {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.ops[id]
}

// List returns all known operations, newest first.
func (r *OperationRegistry) List() []*Operation {
	r.mu.RLock()
	defer r.mu.RUnlock()
	result := make([]*Operation, 0, len(r.ops))
	for _, op := range r.ops {
		result = append(result, op)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return result
}
