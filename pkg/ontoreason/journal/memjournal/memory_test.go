package memjournal

import (
	"context"
	"testing"

	"github.com/cognicore/ontoreason/pkg/ontoreason/journal"
	"github.com/cognicore/ontoreason/pkg/ontoreason/journal/journaltest"
)

func TestJournal(t *testing.T) {
	journaltest.Run(t, func(t *testing.T, retention int) journal.Journal {
		return New(retention)
	})
}

func TestRecent_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	j := New(0)
	r := journaltest.Sample("copy")
	if err := j.Record(ctx, r); err != nil {
		t.Fatal(err)
	}

	got, _ := j.Recent(ctx, 1)
	got[0].Types[0] = "mutated"

	again, _ := j.Get(ctx, r.ID)
	if again.Types[0] == "mutated" {
		t.Fatal("caller mutation leaked into the journal")
	}
	if j.Len() != 1 {
		t.Fatalf("expected 1 record, got %d", j.Len())
	}
}
