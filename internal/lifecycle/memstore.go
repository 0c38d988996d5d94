package lifecycle

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"slices"
	"sync"
)

// MemStore is an in-memory [Store] for tests and single-process deployments.
type MemStore struct {
	mu      sync.Mutex
	records map[string]ActionRecord
}

var _ Store = (*MemStore)(nil)

// NewMemStore returns an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{records: make(map[string]ActionRecord)}
}

// Create implements [Store].
func (m *MemStore) Create(_ context.Context, record ActionRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if record.ID == "" {
		record.ID = generateID()
	}
	if _, ok := m.records[record.ID]; ok {
		return fmt.Errorf("lifecycle: create %q: duplicate ID", record.ID)
	}
	m.records[record.ID] = cloneRecord(record)
	return nil
}

// Get implements [Store].
func (m *MemStore) Get(_ context.Context, id string) (ActionRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	record, ok := m.records[id]
	if !ok {
		return ActionRecord{}, ErrNotFound
	}
	return cloneRecord(record), nil
}

// List implements [Store].
func (m *MemStore) List(_ context.Context, accountID string) ([]ActionRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []ActionRecord
	for _, record := range m.records {
		if record.AccountID == accountID {
			out = append(out, cloneRecord(record))
		}
	}
	slices.SortFunc(out, func(a, b ActionRecord) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	return out, nil
}

// ApplyTransition implements [Store].
func (m *MemStore) ApplyTransition(_ context.Context, id string, expected State, event TransitionEvent, failureReason string) (ActionRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	record, ok := m.records[id]
	if !ok {
		return ActionRecord{}, ErrNotFound
	}
	if record.State != expected {
		return ActionRecord{}, ErrStaleState
	}
	record = cloneRecord(record)
	record.State = event.To
	record.History = append(record.History, event)
	if failureReason != "" {
		record.FailureReason = failureReason
	}
	m.records[id] = cloneRecord(record)
	return record, nil
}

func cloneRecord(r ActionRecord) ActionRecord {
	r.History = slices.Clone(r.History)
	return r
}

func generateID() string {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		panic(fmt.Sprintf("lifecycle: generate ID: %v", err))
	}
	return hex.EncodeToString(buf)
}
