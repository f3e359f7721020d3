package corrections

import (
	"testing"

	"github.com/nyxcore884/budgetlens/internal/ingest"
)

func rec(fields map[string]string) ingest.Record {
	return ingest.Record{Fields: fields}
}

func TestFromRecords(t *testing.T) {
	rows := []ingest.Record{
		rec(map[string]string{
			"cost_item":                "CI-100",
			"structural_unit":          "SU-1",
			"counterparty":             "ACME",
			"corrected_budget_article": "BA-9",
			"priority":                 "2",
		}),
		rec(map[string]string{"corrected_budget_article": "BA-5"}), // no key fields, dropped
		rec(map[string]string{"Transaction_ID": "T7", "priority": "junk"}),
	}

	records := FromRecords(rows)
	if len(records) != 2 {
		t.Fatalf("got %d records, want 2", len(records))
	}
	if !records[0].HasPriority || records[0].Priority != 2 {
		t.Errorf("priority not parsed: %+v", records[0])
	}
	if records[1].HasPriority {
		t.Errorf("unparseable priority should leave HasPriority false: %+v", records[1])
	}
}

func TestBuildIndexPriorityConflict(t *testing.T) {
	records := []Record{
		{CostItem: "CI-100", StructuralUnit: "SU-1", Counterparty: "ACME", CorrectedBudgetArticle: "BA-high", Priority: 5, HasPriority: true},
		{CostItem: "CI-100", StructuralUnit: "SU-1", Counterparty: "ACME", CorrectedBudgetArticle: "BA-low", Priority: 1, HasPriority: true},
	}

	t.Run("lowest wins by default", func(t *testing.T) {
		ix := BuildIndex(records, Options{})
		got, ok := ix.Match("CI-100", "SU-1", "ACME", "")
		if !ok || got.CorrectedBudgetArticle != "BA-low" {
			t.Errorf("Match = (%+v, %v), want BA-low", got, ok)
		}
	})

	t.Run("highest wins when configured", func(t *testing.T) {
		ix := BuildIndex(records, Options{Order: HighestWins})
		got, ok := ix.Match("CI-100", "SU-1", "ACME", "")
		if !ok || got.CorrectedBudgetArticle != "BA-high" {
			t.Errorf("Match = (%+v, %v), want BA-high", got, ok)
		}
	})

	t.Run("prioritized beats unprioritized regardless of order", func(t *testing.T) {
		mixed := []Record{
			{CostItem: "CI-1", CorrectedBudgetArticle: "BA-nopriority"},
			{CostItem: "CI-1", CorrectedBudgetArticle: "BA-prioritized", Priority: 99, HasPriority: true},
		}
		ix := BuildIndex(mixed, Options{Order: LowestWins})
		got, _ := ix.Match("CI-1", "", "", "")
		if got.CorrectedBudgetArticle != "BA-prioritized" {
			t.Errorf("got %q, want BA-prioritized", got.CorrectedBudgetArticle)
		}
	})
}

func TestKeySchemes(t *testing.T) {
	records := []Record{
		{TransactionID: "T1", CostItem: "CI-100", StructuralUnit: "SU-1", Counterparty: "ACME", CorrectedBudgetArticle: "BA-9"},
	}

	t.Run("composite", func(t *testing.T) {
		ix := BuildIndex(records, Options{Scheme: KeyComposite})
		if _, ok := ix.Match("CI-100", "SU-1", "ACME", ""); !ok {
			t.Error("composite match should succeed")
		}
		if _, ok := ix.Match("CI-100", "SU-2", "ACME", ""); ok {
			t.Error("composite match must be exact, no partial keys")
		}
		// Transaction ID alone must not match under the composite scheme.
		if _, ok := ix.Match("", "", "", "T1"); ok {
			t.Error("transaction id must not match a composite index")
		}
	})

	t.Run("transaction id", func(t *testing.T) {
		ix := BuildIndex(records, Options{Scheme: KeyByTransactionID})
		if _, ok := ix.Match("", "", "", "T1"); !ok {
			t.Error("transaction id match should succeed")
		}
		if _, ok := ix.Match("CI-100", "SU-1", "ACME", ""); ok {
			t.Error("composite fields must not match a transaction-id index")
		}
	})
}

func TestEmptyKeysNeverIndexed(t *testing.T) {
	ix := BuildIndex([]Record{{CorrectedBudgetArticle: "BA-1"}}, Options{})
	if ix.Len() != 0 {
		t.Errorf("index len = %d, want 0 for record with no key fields", ix.Len())
	}
	if _, ok := ix.Match("", "", "", ""); ok {
		t.Error("empty key must never match")
	}
}
