// Package journal provides record sinks for the flowstate journal
// middleware: an in-memory journal for tests and tooling, a SQLite-backed
// journal for embedded durability, and a Redis-backed journal that also
// publishes records for live tailing.
package journal

import (
	"context"
	"sync"

	"github.com/petrijr/flowstate/pkg/api"
)

// Memory is an in-memory RecordJournal. It is safe for concurrent use.
type Memory struct {
	mu      sync.Mutex
	records []api.Record
}

var _ api.RecordJournal = (*Memory)(nil)

// NewMemory creates an empty in-memory journal.
func NewMemory() *Memory {
	return &Memory{}
}

func (m *Memory) Append(ctx context.Context, r api.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, r)
	return nil
}

// List returns the records appended for storeID, in append order. An empty
// storeID returns all records.
func (m *Memory) List(ctx context.Context, storeID string) ([]api.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]api.Record, 0, len(m.records))
	for _, r := range m.records {
		if storeID == "" || r.StoreID == storeID {
			out = append(out, r)
		}
	}
	return out, nil
}
