package session

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/nyxcore884/budgetlens/internal/aggregate"
	"github.com/nyxcore884/budgetlens/internal/config"
	"github.com/nyxcore884/budgetlens/internal/corrections"
	"github.com/nyxcore884/budgetlens/internal/ingest"
	"github.com/nyxcore884/budgetlens/internal/mapping"
	"github.com/nyxcore884/budgetlens/internal/metrics"
	"github.com/nyxcore884/budgetlens/internal/narrative"
	"github.com/nyxcore884/budgetlens/internal/objstore"
)

// Step is a single stage of the processing pipeline.
type Step interface {
	Execute(ctx context.Context, state *State) error
}

// State is the shared state threaded through all pipeline steps for
// one session.
type State struct {
	Descriptor

	Bundle    *ingest.Bundle
	Overrides *corrections.Index
	Tables    *mapping.Tables
	Agg       *aggregate.State
	Split     metrics.RevenueSplit
	Verified  *metrics.Verified
	Analysis  *narrative.Analysis
	Result    *Result
}

// FetchFilesStep downloads and decodes every declared file.
type FetchFilesStep struct {
	Ingestor *ingest.Ingestor
}

func (s *FetchFilesStep) Execute(ctx context.Context, state *State) error {
	bundle, err := s.Ingestor.Fetch(ctx, state.Files)
	if err != nil {
		return err
	}
	state.Bundle = bundle
	return nil
}

// BuildLookupsStep constructs the correction index and the three
// mapping tables from the decoded bundle.
type BuildLookupsStep struct {
	Opts corrections.Options
}

func (s *BuildLookupsStep) Execute(_ context.Context, state *State) error {
	records := corrections.FromRecords(state.Bundle.Corrections)
	state.Overrides = corrections.BuildIndex(records, s.Opts)
	state.Tables = mapping.Build(
		state.Bundle.CostItemMap,
		state.Bundle.BudgetHolderMapping,
		state.Bundle.RegionalMapping,
	)
	return nil
}

// AggregateStep runs the single-pass reduction over the ledger.
type AggregateStep struct {
	Log zerolog.Logger
}

func (s *AggregateStep) Execute(_ context.Context, state *State) error {
	engine := aggregate.NewEngine(state.Overrides, state.Tables, s.Log)
	state.Agg = engine.Aggregate(state.Bundle.GLEntries)
	return nil
}

// ClassifyRevenueStep splits total revenue into retail and wholesale.
// With a nil classifier everything defaults to retail.
type ClassifyRevenueStep struct {
	Classifier narrative.RevenueClassifier
	Log        zerolog.Logger
}

func (s *ClassifyRevenueStep) Execute(ctx context.Context, state *State) error {
	state.Split = narrative.SplitRevenue(ctx, s.Classifier, state.Agg.Rows, s.Log)
	return nil
}

// DeriveMetricsStep computes the verified metrics summary.
type DeriveMetricsStep struct {
	TopN int
}

func (s *DeriveMetricsStep) Execute(_ context.Context, state *State) error {
	state.Verified = metrics.Derive(state.Agg, state.Split, s.TopN)
	return nil
}

// NarrateStep attaches the AI analysis. It cannot fail: the gate
// degrades to the fallback payload internally.
type NarrateStep struct {
	Gate       *narrative.Gate
	SampleRows int
}

func (s *NarrateStep) Execute(ctx context.Context, state *State) error {
	sample := state.Agg.Rows
	if s.SampleRows > 0 && len(sample) > s.SampleRows {
		sample = sample[:s.SampleRows]
	}
	state.Analysis = s.Gate.Narrate(ctx, state.Verified, sample)
	return nil
}

// PersistResultStep writes the result snapshot.
type PersistResultStep struct {
	Store Store
}

func (s *PersistResultStep) Execute(ctx context.Context, state *State) error {
	result := &Result{
		ResultID:  uuid.New().String(),
		SessionID: state.SessionID,
		UserID:    state.UserID,
		CreatedAt: time.Now().UTC(),
		Metrics:   state.Verified,
		Analysis:  state.Analysis,
	}
	if err := s.Store.SaveResult(ctx, result); err != nil {
		return fmt.Errorf("save result: %w", err)
	}
	state.Result = result
	return nil
}

// Pipeline executes steps in order, stopping at the first failure.
type Pipeline struct {
	steps []Step
}

// NewPipeline creates a pipeline from the given steps.
func NewPipeline(steps ...Step) *Pipeline {
	return &Pipeline{steps: steps}
}

// Execute runs all steps sequentially against the shared state.
func (p *Pipeline) Execute(ctx context.Context, state *State) error {
	for i, step := range p.steps {
		if err := step.Execute(ctx, state); err != nil {
			return fmt.Errorf("pipeline step %d: %w", i+1, err)
		}
	}
	return nil
}

// Processor drives full session processing: status transitions around
// a step pipeline.
type Processor struct {
	cfg        *config.Config
	store      Store
	downloader objstore.Downloader
	gate       *narrative.Gate
	classifier narrative.RevenueClassifier
	log        zerolog.Logger
}

// NewProcessor wires a Processor. gate must be non-nil (use a gate over
// a nil generator to disable narrative); classifier may be nil.
func NewProcessor(cfg *config.Config, store Store, downloader objstore.Downloader, gate *narrative.Gate, classifier narrative.RevenueClassifier, log zerolog.Logger) *Processor {
	return &Processor{
		cfg:        cfg,
		store:      store,
		downloader: downloader,
		gate:       gate,
		classifier: classifier,
		log:        log,
	}
}

// ProcessSession runs one session end to end. It writes `processing`
// on entry and exactly one terminal status on exit: `completed` with
// the result reference, or `error` with a message. Configuration is
// re-validated before any download starts.
func (p *Processor) ProcessSession(ctx context.Context, desc Descriptor) error {
	log := p.log.With().Str("session_id", desc.SessionID).Logger()

	if err := p.cfg.Validate(); err != nil {
		p.fail(ctx, log, desc.SessionID, err)
		return err
	}

	if err := p.store.UpdateStatus(ctx, desc.SessionID, StatusProcessing); err != nil {
		return fmt.Errorf("mark session processing: %w", err)
	}
	log.Info().Msg("Session processing started")

	state := &State{Descriptor: desc}
	pipeline := NewPipeline(
		&FetchFilesStep{Ingestor: ingest.NewIngestor(p.downloader, log)},
		&BuildLookupsStep{Opts: p.correctionOptions()},
		&AggregateStep{Log: log},
		&ClassifyRevenueStep{Classifier: p.classifier, Log: log},
		&DeriveMetricsStep{TopN: p.cfg.TopDrivers},
		&NarrateStep{Gate: p.gate, SampleRows: p.cfg.SampleRows},
		&PersistResultStep{Store: p.store},
	)

	if err := pipeline.Execute(ctx, state); err != nil {
		p.fail(ctx, log, desc.SessionID, err)
		return err
	}

	if err := p.store.MarkCompleted(ctx, desc.SessionID, state.Result.ResultID); err != nil {
		return fmt.Errorf("mark session completed: %w", err)
	}
	log.Info().Str("result_id", state.Result.ResultID).Msg("Session processing completed")
	return nil
}

func (p *Processor) fail(ctx context.Context, log zerolog.Logger, sessionID string, cause error) {
	log.Error().Err(cause).Msg("Session processing failed")
	if err := p.store.MarkFailed(ctx, sessionID, cause.Error()); err != nil {
		log.Error().Err(err).Msg("Failed to record session error status")
	}
}

func (p *Processor) correctionOptions() corrections.Options {
	opts := corrections.Options{}
	if p.cfg.CorrectionKey == "transaction-id" {
		opts.Scheme = corrections.KeyByTransactionID
	}
	if p.cfg.CorrectionPriority == "highest-wins" {
		opts.Order = corrections.HighestWins
	}
	return opts
}
