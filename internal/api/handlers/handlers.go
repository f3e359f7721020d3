// Package handlers implements the trigger API: create a session,
// declare its uploaded files, mark it ready (which enqueues
// processing), and poll job state. It is a thin surface over the
// session and jobs packages, not a UI backend.
package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/nyxcore884/budgetlens/internal/api/middleware"
	"github.com/nyxcore884/budgetlens/internal/ingest"
	"github.com/nyxcore884/budgetlens/internal/jobs"
	"github.com/nyxcore884/budgetlens/internal/session"
)

// SessionCreator is implemented by stores that persist the initial
// session record; stores without it only see status transitions.
type SessionCreator interface {
	CreateSession(ctx context.Context, desc session.Descriptor) error
}

// sessionEntry is the in-flight view of a session between creation and
// job pickup.
type sessionEntry struct {
	Descriptor session.Descriptor `json:"session"`
	Status     session.Status     `json:"status"`
}

// SessionsHandler owns the session endpoints.
type SessionsHandler struct {
	mu        sync.RWMutex
	entries   map[string]*sessionEntry
	store     session.Store
	publisher jobs.Publisher
	log       zerolog.Logger
}

// NewSessionsHandler creates a sessions handler. store may be nil when
// running without persistence (tests).
func NewSessionsHandler(store session.Store, publisher jobs.Publisher, log zerolog.Logger) *SessionsHandler {
	return &SessionsHandler{
		entries:   make(map[string]*sessionEntry),
		store:     store,
		publisher: publisher,
		log:       log,
	}
}

// Create handles POST /api/sessions.
func (h *SessionsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID string `json:"user_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.UserID == "" {
		middleware.WriteError(w, http.StatusBadRequest, "user_id is required")
		return
	}

	entry := &sessionEntry{
		Descriptor: session.Descriptor{
			SessionID: uuid.New().String(),
			UserID:    req.UserID,
		},
		Status: session.StatusUploading,
	}

	h.mu.Lock()
	h.entries[entry.Descriptor.SessionID] = entry
	h.mu.Unlock()

	if creator, ok := h.store.(SessionCreator); ok {
		if err := creator.CreateSession(r.Context(), entry.Descriptor); err != nil {
			h.log.Error().Err(err).Str("session_id", entry.Descriptor.SessionID).
				Msg("Failed to persist session record")
		}
	}

	h.log.Info().Str("session_id", entry.Descriptor.SessionID).Msg("Session created")
	middleware.WriteJSON(w, http.StatusCreated, entry)
}

// AttachFiles handles PUT /api/sessions/{id}/files. The body is the
// full declared file set; it replaces any earlier declaration.
func (h *SessionsHandler) AttachFiles(w http.ResponseWriter, r *http.Request, sessionID string) {
	var files ingest.FileSet
	if err := json.NewDecoder(r.Body).Decode(&files); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	h.mu.Lock()
	entry, ok := h.entries[sessionID]
	if ok && entry.Status == session.StatusUploading {
		entry.Descriptor.Files = files
	}
	h.mu.Unlock()

	if !ok {
		middleware.WriteError(w, http.StatusNotFound, "Session not found")
		return
	}
	if entry.Status != session.StatusUploading {
		middleware.WriteError(w, http.StatusConflict, "Session is no longer accepting files")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, entry)
}

// StartProcessing handles POST /api/sessions/{id}/process: validates
// the declared set, marks the session ready and enqueues the job.
func (h *SessionsHandler) StartProcessing(w http.ResponseWriter, r *http.Request, sessionID string) {
	ctx := r.Context()

	h.mu.Lock()
	entry, ok := h.entries[sessionID]
	transitioned := false
	if ok && entry.Status == session.StatusUploading {
		entry.Status = session.StatusReadyForProcessing
		transitioned = true
	}
	h.mu.Unlock()

	if !ok {
		middleware.WriteError(w, http.StatusNotFound, "Session not found")
		return
	}
	if !transitioned {
		middleware.WriteError(w, http.StatusConflict, "Session was already submitted")
		return
	}

	if err := entry.Descriptor.Files.Validate(); err != nil {
		h.revert(sessionID)
		middleware.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	if h.store != nil {
		if err := h.store.UpdateStatus(ctx, sessionID, session.StatusReadyForProcessing); err != nil {
			h.log.Error().Err(err).Str("session_id", sessionID).Msg("Failed to record ready status")
		}
	}

	job := &jobs.ProcessSessionJob{Session: entry.Descriptor}
	if err := h.publisher.PublishProcessSession(ctx, job); err != nil {
		h.revert(sessionID)
		h.log.Error().Err(err).Str("session_id", sessionID).Msg("Failed to enqueue processing job")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to enqueue processing job")
		return
	}

	h.log.Info().
		Str("job_id", job.JobID).
		Str("session_id", sessionID).
		Msg("Processing job enqueued")

	middleware.WriteJSON(w, http.StatusAccepted, map[string]string{
		"job_id":     job.JobID,
		"session_id": sessionID,
		"status":     string(session.StatusReadyForProcessing),
	})
}

// Get handles GET /api/sessions/{id}.
func (h *SessionsHandler) Get(w http.ResponseWriter, _ *http.Request, sessionID string) {
	h.mu.RLock()
	entry, ok := h.entries[sessionID]
	h.mu.RUnlock()

	if !ok {
		middleware.WriteError(w, http.StatusNotFound, "Session not found")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, entry)
}

// revert returns a session to uploading after a failed submit.
func (h *SessionsHandler) revert(sessionID string) {
	h.mu.Lock()
	if entry, ok := h.entries[sessionID]; ok {
		entry.Status = session.StatusUploading
	}
	h.mu.Unlock()
}

// JobsHandler owns the job status endpoints.
type JobsHandler struct {
	store jobs.JobStore
	log   zerolog.Logger
}

// NewJobsHandler creates a jobs handler.
func NewJobsHandler(store jobs.JobStore, log zerolog.Logger) *JobsHandler {
	return &JobsHandler{store: store, log: log}
}

// GetJob handles GET /api/jobs/{id}.
func (h *JobsHandler) GetJob(w http.ResponseWriter, r *http.Request, jobID string) {
	job, err := h.store.GetJob(r.Context(), jobID)
	if err != nil {
		middleware.WriteError(w, http.StatusNotFound, "Job not found")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, job)
}

// ListJobs handles GET /api/jobs.
func (h *JobsHandler) ListJobs(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	filter := jobs.JobFilter{
		SessionID: query.Get("session_id"),
		Status:    jobs.JobStatus(query.Get("status")),
	}
	if limitStr := query.Get("limit"); limitStr != "" {
		if limit, err := strconv.Atoi(limitStr); err == nil {
			filter.Limit = limit
		}
	}
	if offsetStr := query.Get("offset"); offsetStr != "" {
		if offset, err := strconv.Atoi(offsetStr); err == nil {
			filter.Offset = offset
		}
	}

	jobsList, err := h.store.ListJobs(r.Context(), filter)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list jobs")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to list jobs")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"jobs":  jobsList,
		"count": len(jobsList),
	})
}
