// Package mapping holds the three classification lookup tables and the
// per-row resolution chain: cost item -> budget article -> budget
// holder, and independently structural unit -> region.
package mapping

import "github.com/nyxcore884/budgetlens/internal/ingest"

// Tables are the session's immutable lookup dictionaries. Built by a
// single linear scan each; duplicate keys resolve last-write-wins in
// input order.
type Tables struct {
	CostItemToArticle map[string]string
	ArticleToHolder   map[string]string
	UnitToRegion      map[string]string
}

// Chain is the resolved classification for one ledger row. An empty
// string means that link (and everything downstream of it) did not
// resolve; the row is still retained.
type Chain struct {
	BudgetArticle string
	BudgetHolder  string
	Region        string
}

// Build constructs the three tables from their decoded mapping files.
func Build(costItemRows, holderRows, regionalRows []ingest.Record) *Tables {
	return &Tables{
		CostItemToArticle: buildTable(costItemRows, "cost_item", "budget_article"),
		ArticleToHolder:   buildTable(holderRows, "budget_article", "budget_holder"),
		UnitToRegion:      buildTable(regionalRows, "structural_unit", "region"),
	}
}

func buildTable(rows []ingest.Record, keyField, valueField string) map[string]string {
	table := make(map[string]string, len(rows))
	for _, row := range rows {
		key := row.Get(keyField)
		if key == "" {
			continue
		}
		table[key] = row.Get(valueField)
	}
	return table
}

// Resolve walks the full chain from a raw cost item.
func (t *Tables) Resolve(costItem, structuralUnit string) Chain {
	return t.ResolveWithArticle(t.CostItemToArticle[costItem], structuralUnit)
}

// ResolveWithArticle resolves holder and region when the budget article
// is already known, e.g. supplied by a correction override.
func (t *Tables) ResolveWithArticle(article, structuralUnit string) Chain {
	c := Chain{BudgetArticle: article}
	if article != "" {
		c.BudgetHolder = t.ArticleToHolder[article]
	}
	c.Region = t.UnitToRegion[structuralUnit]
	return c
}
