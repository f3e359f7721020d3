package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/nyxcore884/budgetlens/internal/api/handlers"
	"github.com/nyxcore884/budgetlens/internal/api/middleware"
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

	ctx := context.Background()

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
	if cfg.NarrativeOff {
		log.Info().Msg("Narrative generation disabled")
	} else {
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

	// In-process queue: the API binary also runs the workers.
	jobStore := inmemory.NewStore()
	jobQueue := inmemory.NewQueue(cfg.QueueBuffer, 5, jobStore)

	workerCtx, cancelWorker := context.WithCancel(ctx)
	defer cancelWorker()

	jobHandler := func(ctx context.Context, job jobs.Job) error {
		processJob, ok := job.(*jobs.ProcessSessionJob)
		if !ok {
			return fmt.Errorf("unexpected job type: %T", job)
		}

		log.Info().
			Str("job_id", processJob.JobID).
			Str("session_id", processJob.Session.SessionID).
			Msg("Processing session job")

		return processor.ProcessSession(ctx, processJob.Session)
	}

	go func() {
		log.Info().Msg("Starting session worker")
		if err := jobQueue.Start(workerCtx, jobHandler); err != nil {
			log.Error().Err(err).Msg("Session worker stopped with error")
		}
	}()

	sessionsHandler := handlers.NewSessionsHandler(repo, jobQueue, log)
	jobsHandler := handlers.NewJobsHandler(jobStore, log)

	mux := http.NewServeMux()

	mux.HandleFunc("/api/sessions", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			sessionsHandler.Create(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/sessions/", func(w http.ResponseWriter, r *http.Request) {
		rest := strings.TrimPrefix(r.URL.Path, "/api/sessions/")
		sessionID, action, _ := strings.Cut(rest, "/")
		if sessionID == "" {
			middleware.WriteError(w, http.StatusBadRequest, "Session ID is required")
			return
		}

		switch {
		case action == "" && r.Method == http.MethodGet:
			sessionsHandler.Get(w, r, sessionID)
		case action == "files" && r.Method == http.MethodPut:
			sessionsHandler.AttachFiles(w, r, sessionID)
		case action == "process" && r.Method == http.MethodPost:
			sessionsHandler.StartProcessing(w, r, sessionID)
		default:
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/jobs", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			jobsHandler.ListJobs(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/jobs/", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			jobID := strings.TrimPrefix(r.URL.Path, "/api/jobs/")
			if jobID == "" {
				middleware.WriteError(w, http.StatusBadRequest, "Job ID is required")
				return
			}
			jobsHandler.GetJob(w, r, jobID)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteJSON(w, http.StatusOK, map[string]string{
			"status": "healthy",
			"time":   time.Now().Format(time.RFC3339),
		})
	})

	handler := middleware.Recovery(log)(
		middleware.Logger(log)(
			middleware.RequestID(mux),
		),
	)

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("port", cfg.Port).Msg("Starting API server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	cancelWorker()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	if err := jobQueue.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error stopping job queue")
	}

	log.Info().Msg("Server exited")
}
