package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/nyxcore884/budgetlens/internal/config"
	infraBQ "github.com/nyxcore884/budgetlens/internal/infra/bigquery"
	"github.com/nyxcore884/budgetlens/internal/jobs"
	"github.com/nyxcore884/budgetlens/internal/jobs/inmemory"
	"github.com/nyxcore884/budgetlens/internal/logger"
	"github.com/nyxcore884/budgetlens/internal/narrative"
	"github.com/nyxcore884/budgetlens/internal/objstore"
	"github.com/nyxcore884/budgetlens/internal/session"
)

func main() {
	_ = godotenv.Load()

	log := logger.New()

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	repo, err := infraBQ.NewRepository(ctx, cfg.ProjectID, cfg.Dataset, cfg.CredentialsFile)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create BigQuery repository")
	}
	defer repo.Close()

	store, err := objstore.NewGCS(ctx, cfg.StorageBucket, cfg.CredentialsFile)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create storage client")
	}
	defer store.Close()

	var generator narrative.Generator
	if !cfg.NarrativeOff {
		gemini, err := narrative.NewGemini(ctx, cfg.GeminiModel)
		if err != nil {
			log.Warn().Err(err).Msg("Gemini unavailable, narrative will use fallback")
		} else {
			generator = gemini
		}
	}
	gate := narrative.NewGate(generator, log)
	classifier := narrative.NewKeywordClassifier(cfg.RetailTerms, cfg.WholesaleTerm)

	processor := session.NewProcessor(cfg, repo, store, gate, classifier, log)

	jobStore := inmemory.NewStore()
	jobQueue := inmemory.NewQueue(cfg.QueueBuffer, 5, jobStore)

	log.Info().Msg("Starting worker service")

	handler := func(ctx context.Context, job jobs.Job) error {
		processJob, ok := job.(*jobs.ProcessSessionJob)
		if !ok {
			return fmt.Errorf("unexpected job type: %T", job)
		}

		log.Info().
			Str("job_id", processJob.JobID).
			Str("session_id", processJob.Session.SessionID).
			Msg("Processing session job")

		if err := processor.ProcessSession(ctx, processJob.Session); err != nil {
			log.Error().
				Err(err).
				Str("job_id", processJob.JobID).
				Str("session_id", processJob.Session.SessionID).
				Msg("Session processing failed")
			return err
		}
		return nil
	}

	if err := jobQueue.Start(ctx, handler); err != nil {
		log.Fatal().Err(err).Msg("Failed to start job consumer")
	}

	log.Info().Msg("Worker service started, waiting for jobs...")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down worker service...")

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := jobQueue.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error during graceful shutdown")
	}

	log.Info().Msg("Worker service exited")
}
