// Package narrative is the guarded AI boundary. The model writes prose
// about numbers it is given; it never produces or changes a number that
// gets persisted. Any failure here degrades to a fixed fallback payload
// and the session still completes.
package narrative

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/nyxcore884/budgetlens/internal/aggregate"
	"github.com/nyxcore884/budgetlens/internal/metrics"
)

// Analysis is the qualitative output attached to a session result.
type Analysis struct {
	Anomalies       []string `json:"anomalies"`
	Insights        []string `json:"insights"`
	Recommendations []string `json:"recommendations"`
}

// FallbackAnalysis is returned whenever generation fails or is
// disabled. The strings are fixed so downstream consumers can detect
// the degraded case.
func FallbackAnalysis() *Analysis {
	return &Analysis{
		Anomalies:       []string{"AI analysis temporarily unavailable. Please review data manually."},
		Insights:        []string{"Initial data processing completed successfully. AI analysis pending."},
		Recommendations: []string{"Please verify the data quality and try AI analysis again."},
	}
}

// Generator produces an Analysis from verified metrics plus an optional
// small sample of retained rows for context.
type Generator interface {
	Analyze(ctx context.Context, verified *metrics.Verified, sample []aggregate.Row) (*Analysis, error)
}

// Gate wraps a Generator so narrative failure can never fail a session.
// A nil generator means narrative is disabled.
type Gate struct {
	gen Generator
	log zerolog.Logger
}

// NewGate creates a Gate. gen may be nil to disable generation.
func NewGate(gen Generator, log zerolog.Logger) *Gate {
	return &Gate{gen: gen, log: log}
}

// Narrate never returns an error. Generator failures are logged and
// replaced by the fallback payload; the verified metrics are untouched
// either way.
func (g *Gate) Narrate(ctx context.Context, verified *metrics.Verified, sample []aggregate.Row) *Analysis {
	if g.gen == nil {
		g.log.Debug().Msg("Narrative generation disabled, using fallback analysis")
		return FallbackAnalysis()
	}

	analysis, err := g.gen.Analyze(ctx, verified, sample)
	if err != nil {
		g.log.Warn().Err(err).Msg("Narrative generation failed, using fallback analysis")
		return FallbackAnalysis()
	}
	return analysis
}
