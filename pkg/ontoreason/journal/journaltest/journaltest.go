// Package journaltest holds the behaviour suite every journal backend runs.
package journaltest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/oklog/ulid/v2"

	"github.com/cognicore/ontoreason/pkg/ontoreason/graph"
	"github.com/cognicore/ontoreason/pkg/ontoreason/internalerr"
	"github.com/cognicore/ontoreason/pkg/ontoreason/journal"
)

// Opener returns a fresh, empty journal keeping at most retention entries.
type Opener func(t *testing.T, retention int) journal.Journal

// Sample builds a record with a fresh ULID.
func Sample(uri string) journal.Record {
	s := graph.EntityNS + uri
	return journal.Record{
		ID:           ulid.Make().String(),
		URI:          s,
		Text:         uri,
		AssertedType: "person",
		Confidence:   0.9,
		Types:        []string{graph.SchemaNS + "Person"},
		Triples: []graph.Triple{
			{Subject: graph.IRI(s), Predicate: graph.RDFType, Object: graph.IRI(graph.SchemaNS + "Person")},
			{Subject: graph.IRI(s), Predicate: graph.SchemaName, Object: graph.LangLiteral(uri, "en")},
			{Subject: graph.IRI(s), Predicate: graph.IRI(graph.SchemaNS + "foundingDate"), Object: graph.TypedLiteral("1970-12-02", graph.XSDNS+"date")},
		},
		Violations: 1,
		CreatedAt:  time.Now().UTC(),
	}
}

var recordCmp = cmpopts.EquateApproxTime(time.Millisecond)

// Run exercises open against the journal contract.
func Run(t *testing.T, open Opener) {
	ctx := context.Background()

	t.Run("RecordAndGet", func(t *testing.T) {
		j := open(t, 10)
		r := Sample("jane_doe")
		if err := j.Record(ctx, r); err != nil {
			t.Fatalf("Record: %v", err)
		}
		got, err := j.Get(ctx, r.ID)
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		if diff := cmp.Diff(r, got, recordCmp); diff != "" {
			t.Errorf("record mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("GetMissing", func(t *testing.T) {
		j := open(t, 10)
		_, err := j.Get(ctx, ulid.Make().String())
		if !errors.Is(err, internalerr.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("RejectsEmptyID", func(t *testing.T) {
		j := open(t, 10)
		r := Sample("x")
		r.ID = ""
		if err := j.Record(ctx, r); !errors.Is(err, internalerr.ErrInvalidInput) {
			t.Fatalf("expected ErrInvalidInput, got %v", err)
		}
	})

	t.Run("RecentNewestFirst", func(t *testing.T) {
		j := open(t, 10)
		var ids []string
		for _, name := range []string{"a", "b", "c", "d"} {
			r := Sample(name)
			ids = append(ids, r.ID)
			if err := j.Record(ctx, r); err != nil {
				t.Fatalf("Record: %v", err)
			}
		}

		got, err := j.Recent(ctx, 3)
		if err != nil {
			t.Fatalf("Recent: %v", err)
		}
		want := []string{ids[3], ids[2], ids[1]}
		if diff := cmp.Diff(want, recordIDs(got)); diff != "" {
			t.Errorf("recent ids (-want +got):\n%s", diff)
		}

		all, err := j.Recent(ctx, 100)
		if err != nil {
			t.Fatalf("Recent: %v", err)
		}
		if len(all) != 4 {
			t.Errorf("expected 4 records, got %d", len(all))
		}

		none, err := j.Recent(ctx, 0)
		if err != nil {
			t.Fatalf("Recent(0): %v", err)
		}
		if len(none) != 0 {
			t.Errorf("expected no records for n=0, got %d", len(none))
		}
	})

	t.Run("ReplaceByID", func(t *testing.T) {
		j := open(t, 10)
		r := Sample("agency")
		if err := j.Record(ctx, r); err != nil {
			t.Fatalf("Record: %v", err)
		}
		r.Violations = 0
		r.Types = append(r.Types, graph.NANS+"ExecutiveAgency")
		if err := j.Record(ctx, r); err != nil {
			t.Fatalf("Record again: %v", err)
		}

		all, err := j.Recent(ctx, 10)
		if err != nil {
			t.Fatalf("Recent: %v", err)
		}
		if len(all) != 1 {
			t.Fatalf("expected replacement, got %d records", len(all))
		}
		if diff := cmp.Diff(r, all[0], recordCmp); diff != "" {
			t.Errorf("replaced record (-want +got):\n%s", diff)
		}
	})

	t.Run("Retention", func(t *testing.T) {
		j := open(t, 2)
		var ids []string
		for _, name := range []string{"a", "b", "c"} {
			r := Sample(name)
			ids = append(ids, r.ID)
			if err := j.Record(ctx, r); err != nil {
				t.Fatalf("Record: %v", err)
			}
		}

		got, err := j.Recent(ctx, 10)
		if err != nil {
			t.Fatalf("Recent: %v", err)
		}
		if diff := cmp.Diff([]string{ids[2], ids[1]}, recordIDs(got)); diff != "" {
			t.Errorf("retained ids (-want +got):\n%s", diff)
		}
		if _, err := j.Get(ctx, ids[0]); !errors.Is(err, internalerr.ErrNotFound) {
			t.Errorf("oldest record should be evicted, got %v", err)
		}
	})
}

func recordIDs(rs []journal.Record) []string {
	out := make([]string, len(rs))
	for i, r := range rs {
		out[i] = r.ID
	}
	return out
}
