// Package aggregate implements the deterministic single-pass reduction
// over corrected, mapped ledger rows. It is the trusted numeric core:
// everything downstream (derived metrics, persistence, narrative)
// consumes its output and never recomputes it.
package aggregate

import (
	"strings"

	"github.com/rs/zerolog"

	"github.com/nyxcore884/budgetlens/internal/corrections"
	"github.com/nyxcore884/budgetlens/internal/ingest"
	"github.com/nyxcore884/budgetlens/internal/mapping"
)

// Row is one retained ledger transaction after correction, amount
// cleanup, and mapping resolution. Unrecognized source columns are
// preserved in Extra for audit/export.
type Row struct {
	TransactionID  string
	CostItem       string
	StructuralUnit string
	Counterparty   string
	Amount         float64

	BudgetArticle string
	BudgetHolder  string
	Region        string
	Corrected     bool

	Extra map[string]string
}

// Breakdown is the detailed cost view keyed three ways.
type Breakdown struct {
	ByArticle map[string]float64
	ByUnit    map[string]float64
	ByRegion  map[string]float64
}

// State is the per-session accumulator. Every numeric field is only
// ever incremented during the pass; Rows preserves input order minus
// dropped zero-amount rows. A fresh State is created per Aggregate call
// and handed off read-only afterwards.
type State struct {
	TotalRevenue float64
	TotalCosts   float64

	CostsByHolder map[string]float64
	CostsByRegion map[string]float64

	TransactionCount int
	Detailed         Breakdown

	Rows []Row

	// ZeroCoerced counts rows whose raw amount was present but
	// unparseable and therefore silently treated as zero. Kept for
	// auditability; it changes no aggregate.
	ZeroCoerced int
}

// NewState creates an empty accumulator.
func NewState() *State {
	return &State{
		CostsByHolder: make(map[string]float64),
		CostsByRegion: make(map[string]float64),
		Detailed: Breakdown{
			ByArticle: make(map[string]float64),
			ByUnit:    make(map[string]float64),
			ByRegion:  make(map[string]float64),
		},
	}
}

// Engine runs the aggregation pass for one session.
type Engine struct {
	overrides *corrections.Index
	tables    *mapping.Tables
	log       zerolog.Logger
}

// NewEngine creates an Engine. overrides may be nil when the session
// declared no corrections file.
func NewEngine(overrides *corrections.Index, tables *mapping.Tables, log zerolog.Logger) *Engine {
	return &Engine{overrides: overrides, tables: tables, log: log}
}

// Aggregate performs the single forward pass. Per row: apply the
// correction override, normalize the amount (exact zero drops the row
// entirely), resolve the mapping chain (a corrected article bypasses
// the cost-item map), then accumulate by sign: positive amounts are
// revenue, negative amounts are costs recorded as |amount|. No
// row-level failure is fatal.
func (e *Engine) Aggregate(ledger []ingest.Record) *State {
	st := NewState()

	for _, rec := range ledger {
		row := rowFromRecord(rec)

		correctedArticle := ""
		if e.overrides != nil {
			if ov, ok := e.overrides.Match(row.CostItem, row.StructuralUnit, row.Counterparty, row.TransactionID); ok {
				if ov.CorrectedBudgetArticle != "" {
					correctedArticle = ov.CorrectedBudgetArticle
					row.Corrected = true
				}
			}
		}

		rawAmount := rec.Get("Amount_Reporting_Curr")
		amount, ok := ingest.Normalize(rawAmount)
		if !ok && strings.TrimSpace(rawAmount) != "" {
			st.ZeroCoerced++
		}
		if amount == 0 {
			continue
		}
		row.Amount = amount

		var chain mapping.Chain
		if correctedArticle != "" {
			chain = e.tables.ResolveWithArticle(correctedArticle, row.StructuralUnit)
		} else {
			chain = e.tables.Resolve(row.CostItem, row.StructuralUnit)
		}
		row.BudgetArticle = chain.BudgetArticle
		row.BudgetHolder = chain.BudgetHolder
		row.Region = chain.Region

		if amount > 0 {
			st.TotalRevenue += amount
		} else {
			magnitude := -amount
			st.TotalCosts += magnitude
			st.TransactionCount++

			if row.BudgetHolder != "" {
				st.CostsByHolder[row.BudgetHolder] += magnitude
			}
			if row.Region != "" {
				st.CostsByRegion[row.Region] += magnitude
				st.Detailed.ByRegion[row.Region] += magnitude
			}
			if row.BudgetArticle != "" {
				st.Detailed.ByArticle[row.BudgetArticle] += magnitude
			}
			if row.StructuralUnit != "" {
				st.Detailed.ByUnit[row.StructuralUnit] += magnitude
			}
		}

		st.Rows = append(st.Rows, row)
	}

	e.log.Info().
		Int("input_rows", len(ledger)).
		Int("retained_rows", len(st.Rows)).
		Int("cost_transactions", st.TransactionCount).
		Int("zero_coerced", st.ZeroCoerced).
		Float64("total_revenue", st.TotalRevenue).
		Float64("total_costs", st.TotalCosts).
		Msg("Aggregation pass complete")

	return st
}

// recognized ledger columns; everything else lands in Row.Extra.
var ledgerColumns = map[string]bool{
	"Transaction_ID":        true,
	"cost_item":             true,
	"Subc_Debit":            true,
	"Amount_Reporting_Curr": true,
	"structural_unit":       true,
	"counterparty":          true,
}

func rowFromRecord(rec ingest.Record) Row {
	costItem := rec.Get("cost_item")
	if costItem == "" {
		costItem = rec.Get("Subc_Debit")
	}

	row := Row{
		TransactionID:  rec.Get("Transaction_ID"),
		CostItem:       costItem,
		StructuralUnit: rec.Get("structural_unit"),
		Counterparty:   rec.Get("counterparty"),
	}

	for key, value := range rec.Fields {
		if ledgerColumns[key] {
			continue
		}
		if row.Extra == nil {
			row.Extra = make(map[string]string)
		}
		row.Extra[key] = value
	}
	return row
}
