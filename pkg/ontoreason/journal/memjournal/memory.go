// Package memjournal is an in-memory journal.Journal with bounded retention.
package memjournal

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/cognicore/ontoreason/pkg/ontoreason/internalerr"
	"github.com/cognicore/ontoreason/pkg/ontoreason/journal"
)

// DefaultRetention is the number of entries kept when New is given n <= 0.
const DefaultRetention = 1000

// Journal keeps the most recent entries in memory.
type Journal struct {
	mu      sync.RWMutex
	max     int
	ids     []string // ascending
	records map[string]journal.Record
}

// New creates a journal that keeps at most max entries.
func New(max int) *Journal {
	if max <= 0 {
		max = DefaultRetention
	}
	return &Journal{max: max, records: make(map[string]journal.Record)}
}

// Close implements journal.Journal.
func (j *Journal) Close() error { return nil }

// Record stores r, evicting the oldest entries beyond the retention limit.
func (j *Journal) Record(ctx context.Context, r journal.Record) error {
	if r.ID == "" {
		return fmt.Errorf("memjournal: record without id: %w", internalerr.ErrInvalidInput)
	}
	j.mu.Lock()
	defer j.mu.Unlock()

	if _, exists := j.records[r.ID]; !exists {
		i, _ := slices.BinarySearch(j.ids, r.ID)
		j.ids = slices.Insert(j.ids, i, r.ID)
	}
	j.records[r.ID] = r.Clone()

	for len(j.ids) > j.max {
		delete(j.records, j.ids[0])
		j.ids = slices.Delete(j.ids, 0, 1)
	}
	return nil
}

// Recent returns up to n entries, newest first.
func (j *Journal) Recent(ctx context.Context, n int) ([]journal.Record, error) {
	j.mu.RLock()
	defer j.mu.RUnlock()

	if n <= 0 {
		return nil, nil
	}
	n = min(n, len(j.ids))
	out := make([]journal.Record, 0, n)
	for i := len(j.ids) - 1; i >= len(j.ids)-n; i-- {
		out = append(out, j.records[j.ids[i]].Clone())
	}
	return out, nil
}

// Get returns the entry with id.
func (j *Journal) Get(ctx context.Context, id string) (journal.Record, error) {
	j.mu.RLock()
	defer j.mu.RUnlock()

	r, ok := j.records[id]
	if !ok {
		return journal.Record{}, fmt.Errorf("memjournal: %s: %w", id, internalerr.ErrNotFound)
	}
	return r.Clone(), nil
}

// Len returns the number of retained entries.
func (j *Journal) Len() int {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return len(j.ids)
}
