// Package journal persists enrichment results. It is an append-only log of
// what each Enrich call asserted and derived, kept so later consistency
// checks can fold recent entities back into a working graph. It is not a
// store for the fact graph itself.
package journal

import (
	"context"
	"time"

	"github.com/cognicore/ontoreason/pkg/ontoreason/graph"
)

// Journal is implemented by the memory, sqlite and redis backends.
//
// IDs are ULIDs, so ordering by ID is ordering by creation time; every
// backend orders "newest first" as descending ID.
type Journal interface {
	Close() error

	// Record appends an entry. Entries are keyed by ID; recording an
	// existing ID replaces it.
	Record(ctx context.Context, r Record) error
	// Recent returns up to n entries, newest first. n <= 0 yields none.
	Recent(ctx context.Context, n int) ([]Record, error)
	// Get returns the entry with id or an error wrapping
	// internalerr.ErrNotFound.
	Get(ctx context.Context, id string) (Record, error)
}

// Record is one journaled enrichment.
type Record struct {
	ID           string         `json:"id"`
	URI          string         `json:"uri"`
	Text         string         `json:"text,omitempty"`
	AssertedType string         `json:"asserted_type,omitempty"`
	Confidence   float64        `json:"confidence"`
	Types        []string       `json:"types,omitempty"`
	Triples      []graph.Triple `json:"triples,omitempty"`
	Violations   int            `json:"violations"`
	CreatedAt    time.Time      `json:"created_at"`
}

// Triples flattens the triples of records, preserving order.
func Triples(records []Record) []graph.Triple {
	var out []graph.Triple
	for _, r := range records {
		out = append(out, r.Triples...)
	}
	return out
}

// Clone returns a deep copy of r.
func (r Record) Clone() Record {
	r.Types = append([]string(nil), r.Types...)
	r.Triples = append([]graph.Triple(nil), r.Triples...)
	return r
}
