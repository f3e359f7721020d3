// Package corrections builds the manual-override lookup applied to
// ledger rows before aggregation. Overrides match by exact key only;
// there is no fuzzy matching.
package corrections

import (
	"strconv"
	"strings"

	"github.com/nyxcore884/budgetlens/internal/ingest"
)

// KeyScheme selects how override records are matched to ledger rows.
// The composite scheme is canonical; the transaction-id scheme exists
// for older correction exports. The two are never mixed in one index.
type KeyScheme int

const (
	// KeyComposite matches on cost_item|structural_unit|counterparty.
	KeyComposite KeyScheme = iota
	// KeyByTransactionID matches on Transaction_ID alone.
	KeyByTransactionID
)

// PriorityOrder selects which record wins when two corrections share a
// key.
type PriorityOrder int

const (
	// LowestWins treats lower priority values as higher precedence.
	LowestWins PriorityOrder = iota
	// HighestWins treats higher priority values as higher precedence.
	HighestWins
)

// Record is one override row. Only CorrectedBudgetArticle is an
// override target today; Priority breaks key conflicts.
type Record struct {
	TransactionID          string
	CostItem               string
	StructuralUnit         string
	Counterparty           string
	CorrectedBudgetArticle string
	Priority               int
	HasPriority            bool
}

// Options configure index construction.
type Options struct {
	Scheme KeyScheme
	Order  PriorityOrder
}

// Index is the immutable correction lookup for one session.
type Index struct {
	byKey  map[string]Record
	scheme KeyScheme
}

// FromRecords converts decoded correction file rows into typed
// override records. Rows with no usable key under either scheme are
// ignored.
func FromRecords(rows []ingest.Record) []Record {
	out := make([]Record, 0, len(rows))
	for _, row := range rows {
		rec := Record{
			TransactionID:          row.Get("Transaction_ID"),
			CostItem:               row.Get("cost_item"),
			StructuralUnit:         row.Get("structural_unit"),
			Counterparty:           row.Get("counterparty"),
			CorrectedBudgetArticle: row.Get("corrected_budget_article"),
		}
		if p, err := strconv.Atoi(strings.TrimSpace(row.Get("priority"))); err == nil {
			rec.Priority = p
			rec.HasPriority = true
		}
		if rec.TransactionID == "" && rec.CostItem == "" && rec.StructuralUnit == "" && rec.Counterparty == "" {
			continue
		}
		out = append(out, rec)
	}
	return out
}

// BuildIndex constructs the override lookup. When two records share a
// key the priority comparison decides; records without a parseable
// priority lose to any record that has one.
func BuildIndex(records []Record, opts Options) *Index {
	ix := &Index{
		byKey:  make(map[string]Record, len(records)),
		scheme: opts.Scheme,
	}

	for _, rec := range records {
		key := ix.keyOf(rec.CostItem, rec.StructuralUnit, rec.Counterparty, rec.TransactionID)
		if key == "" {
			continue
		}

		existing, ok := ix.byKey[key]
		if !ok || wins(rec, existing, opts.Order) {
			ix.byKey[key] = rec
		}
	}
	return ix
}

// Match looks up the override for a ledger row's identifying fields.
func (ix *Index) Match(costItem, structuralUnit, counterparty, transactionID string) (Record, bool) {
	key := ix.keyOf(costItem, structuralUnit, counterparty, transactionID)
	if key == "" {
		return Record{}, false
	}
	rec, ok := ix.byKey[key]
	return rec, ok
}

// Len reports how many distinct keys the index holds.
func (ix *Index) Len() int {
	return len(ix.byKey)
}

func (ix *Index) keyOf(costItem, structuralUnit, counterparty, transactionID string) string {
	if ix.scheme == KeyByTransactionID {
		return transactionID
	}
	if costItem == "" && structuralUnit == "" && counterparty == "" {
		return ""
	}
	return strings.Join([]string{costItem, structuralUnit, counterparty}, "|")
}

func wins(candidate, existing Record, order PriorityOrder) bool {
	switch {
	case candidate.HasPriority && !existing.HasPriority:
		return true
	case !candidate.HasPriority:
		return false
	case order == HighestWins:
		return candidate.Priority > existing.Priority
	default:
		return candidate.Priority < existing.Priority
	}
}
