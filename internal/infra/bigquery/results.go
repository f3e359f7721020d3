package bigquery

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"

	"github.com/nyxcore884/budgetlens/internal/session"
)

// ResultRow mirrors the budget_results table. The full metric and
// analysis payloads are stored as JSON snapshots; the headline figures
// are duplicated into typed columns for direct querying.
type ResultRow struct {
	ResultID  string `bigquery:"result_id"`  // REQUIRED
	SessionID string `bigquery:"session_id"` // REQUIRED
	UserID    string `bigquery:"user_id"`    // REQUIRED

	TotalRevenue     float64 `bigquery:"total_revenue"`     // REQUIRED
	TotalCosts       float64 `bigquery:"total_costs"`       // REQUIRED
	TransactionCount int64   `bigquery:"transaction_count"` // REQUIRED

	VerifiedMetrics bigquery.NullJSON `bigquery:"verified_metrics"` // NULLABLE
	AIAnalysis      bigquery.NullJSON `bigquery:"ai_analysis"`      // NULLABLE

	ReportDate bigquery.NullDate `bigquery:"report_date"` // NULLABLE
	CreatedTS  time.Time         `bigquery:"created_ts"`  // REQUIRED
}

// SaveResult implements session.Store.
func (r *Repository) SaveResult(ctx context.Context, result *session.Result) error {
	row := resultToRow(result)

	inserter := r.client.Dataset(r.dataset).Table(resultsTable).Inserter()
	if err := inserter.Put(ctx, row); err != nil {
		return fmt.Errorf("SaveResult: %w", err)
	}
	return nil
}

func resultToRow(result *session.Result) *ResultRow {
	row := &ResultRow{
		ResultID:   result.ResultID,
		SessionID:  result.SessionID,
		UserID:     result.UserID,
		ReportDate: bigquery.NullDate{Date: civil.DateOf(result.CreatedAt), Valid: true},
		CreatedTS:  result.CreatedAt,
	}

	if result.Metrics != nil {
		row.TotalRevenue = result.Metrics.TotalRevenue
		row.TotalCosts = result.Metrics.TotalCosts
		row.TransactionCount = int64(result.Metrics.TransactionCount)
		row.VerifiedMetrics = toNullJSON(result.Metrics)
	}
	if result.Analysis != nil {
		row.AIAnalysis = toNullJSON(result.Analysis)
	}
	return row
}

// toNullJSON serializes v into the string-typed JSONVal that the
// bigquery client expects for JSON columns.
func toNullJSON(v any) bigquery.NullJSON {
	b, err := json.Marshal(v)
	if err != nil {
		return bigquery.NullJSON{}
	}
	return bigquery.NullJSON{JSONVal: string(b), Valid: true}
}
