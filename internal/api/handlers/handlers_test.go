package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/nyxcore884/budgetlens/internal/ingest"
	"github.com/nyxcore884/budgetlens/internal/jobs"
	"github.com/nyxcore884/budgetlens/internal/jobs/inmemory"
	"github.com/nyxcore884/budgetlens/internal/logger"
	"github.com/nyxcore884/budgetlens/internal/session"
)

type capturingPublisher struct {
	published []*jobs.ProcessSessionJob
	fail      bool
}

func (p *capturingPublisher) PublishProcessSession(_ context.Context, job *jobs.ProcessSessionJob) error {
	if p.fail {
		return fmt.Errorf("queue full")
	}
	if job.JobID == "" {
		job.JobID = "job-1"
	}
	p.published = append(p.published, job)
	return nil
}

func (p *capturingPublisher) Close() error { return nil }

func validFileSet() ingest.FileSet {
	return ingest.FileSet{
		GLEntries:           ingest.FileRef{Name: "ledger.csv", Path: "s/ledger.csv"},
		BudgetHolderMapping: ingest.FileRef{Name: "holders.csv", Path: "s/holders.csv"},
		CostItemMap:         ingest.FileRef{Name: "items.csv", Path: "s/items.csv"},
		RegionalMapping:     ingest.FileRef{Name: "regions.csv", Path: "s/regions.csv"},
	}
}

func createSession(t *testing.T, h *SessionsHandler) string {
	t.Helper()
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/sessions", bytes.NewBufferString(`{"user_id":"u1"}`))
	h.Create(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("Create status = %d, body %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Session session.Descriptor `json:"session"`
		Status  session.Status     `json:"status"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode create response: %v", err)
	}
	if resp.Status != session.StatusUploading {
		t.Errorf("new session status = %s, want uploading", resp.Status)
	}
	return resp.Session.SessionID
}

func attachFiles(t *testing.T, h *SessionsHandler, sessionID string, files ingest.FileSet) *httptest.ResponseRecorder {
	t.Helper()
	body, _ := json.Marshal(files)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPut, "/api/sessions/"+sessionID+"/files", bytes.NewReader(body))
	h.AttachFiles(rec, req, sessionID)
	return rec
}

func TestSessionLifecycle(t *testing.T) {
	log := logger.NewWithWriter(io.Discard)
	pub := &capturingPublisher{}
	h := NewSessionsHandler(nil, pub, log)

	id := createSession(t, h)

	if rec := attachFiles(t, h, id, validFileSet()); rec.Code != http.StatusOK {
		t.Fatalf("AttachFiles status = %d", rec.Code)
	}

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/sessions/"+id+"/process", nil)
	h.StartProcessing(rec, req, id)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("StartProcessing status = %d, body %s", rec.Code, rec.Body.String())
	}

	if len(pub.published) != 1 {
		t.Fatalf("published %d jobs, want 1", len(pub.published))
	}
	job := pub.published[0]
	if job.Session.SessionID != id || job.Session.UserID != "u1" {
		t.Errorf("job descriptor wrong: %+v", job.Session)
	}
	if job.Session.Files.GLEntries.Path != "s/ledger.csv" {
		t.Errorf("declared files not carried into the job: %+v", job.Session.Files)
	}

	// A second submit is rejected.
	rec = httptest.NewRecorder()
	h.StartProcessing(rec, httptest.NewRequest(http.MethodPost, "/api/sessions/"+id+"/process", nil), id)
	if rec.Code != http.StatusConflict {
		t.Errorf("second submit status = %d, want conflict", rec.Code)
	}

	// Files can no longer be changed after submit.
	if rec := attachFiles(t, h, id, ingest.FileSet{}); rec.Code != http.StatusConflict {
		t.Errorf("attach after submit status = %d, want conflict", rec.Code)
	}
}

func TestStartProcessingIncompleteFiles(t *testing.T) {
	log := logger.NewWithWriter(io.Discard)
	pub := &capturingPublisher{}
	h := NewSessionsHandler(nil, pub, log)

	id := createSession(t, h)
	files := validFileSet()
	files.RegionalMapping = ingest.FileRef{}
	attachFiles(t, h, id, files)

	rec := httptest.NewRecorder()
	h.StartProcessing(rec, httptest.NewRequest(http.MethodPost, "/", nil), id)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want bad request for incomplete file set", rec.Code)
	}
	if len(pub.published) != 0 {
		t.Error("incomplete session must not be enqueued")
	}

	// The session stays open for another attempt.
	attachFiles(t, h, id, validFileSet())
	rec = httptest.NewRecorder()
	h.StartProcessing(rec, httptest.NewRequest(http.MethodPost, "/", nil), id)
	if rec.Code != http.StatusAccepted {
		t.Errorf("resubmit after fixing files = %d, want accepted", rec.Code)
	}
}

func TestStartProcessingPublishFailure(t *testing.T) {
	log := logger.NewWithWriter(io.Discard)
	pub := &capturingPublisher{fail: true}
	h := NewSessionsHandler(nil, pub, log)

	id := createSession(t, h)
	attachFiles(t, h, id, validFileSet())

	rec := httptest.NewRecorder()
	h.StartProcessing(rec, httptest.NewRequest(http.MethodPost, "/", nil), id)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500 on publish failure", rec.Code)
	}

	// Publish failure reverts the session so the client can retry.
	pub.fail = false
	rec = httptest.NewRecorder()
	h.StartProcessing(rec, httptest.NewRequest(http.MethodPost, "/", nil), id)
	if rec.Code != http.StatusAccepted {
		t.Errorf("retry status = %d, want accepted", rec.Code)
	}
}

func TestSessionNotFound(t *testing.T) {
	log := logger.NewWithWriter(io.Discard)
	h := NewSessionsHandler(nil, &capturingPublisher{}, log)

	rec := httptest.NewRecorder()
	h.Get(rec, httptest.NewRequest(http.MethodGet, "/", nil), "missing")
	if rec.Code != http.StatusNotFound {
		t.Errorf("Get status = %d, want 404", rec.Code)
	}

	rec = httptest.NewRecorder()
	h.StartProcessing(rec, httptest.NewRequest(http.MethodPost, "/", nil), "missing")
	if rec.Code != http.StatusNotFound {
		t.Errorf("StartProcessing status = %d, want 404", rec.Code)
	}
}

func TestJobsHandler(t *testing.T) {
	log := logger.NewWithWriter(io.Discard)
	store := inmemory.NewStore()
	h := NewJobsHandler(store, log)

	job := &jobs.ProcessSessionJob{
		JobID:   "j1",
		Session: session.Descriptor{SessionID: "s1"},
		Status:  jobs.JobStatusRunning,
	}
	if err := store.SaveJob(context.Background(), job); err != nil {
		t.Fatalf("SaveJob: %v", err)
	}

	rec := httptest.NewRecorder()
	h.GetJob(rec, httptest.NewRequest(http.MethodGet, "/api/jobs/j1", nil), "j1")
	if rec.Code != http.StatusOK {
		t.Fatalf("GetJob status = %d", rec.Code)
	}
	var got jobs.ProcessSessionJob
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatalf("decode job: %v", err)
	}
	if got.JobID != "j1" || got.Status != jobs.JobStatusRunning {
		t.Errorf("job = %+v", got)
	}

	rec = httptest.NewRecorder()
	h.GetJob(rec, httptest.NewRequest(http.MethodGet, "/api/jobs/none", nil), "none")
	if rec.Code != http.StatusNotFound {
		t.Errorf("missing job status = %d, want 404", rec.Code)
	}

	rec = httptest.NewRecorder()
	h.ListJobs(rec, httptest.NewRequest(http.MethodGet, "/api/jobs?session_id=s1", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("ListJobs status = %d", rec.Code)
	}
	var list struct {
		Count int `json:"count"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&list); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if list.Count != 1 {
		t.Errorf("count = %d, want 1", list.Count)
	}
}
