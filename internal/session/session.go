// Package session owns the processing lifecycle of one upload session:
// the status contract, the result record, and the step pipeline that
// turns declared files into persisted verified metrics.
package session

import (
	"time"

	"github.com/nyxcore884/budgetlens/internal/ingest"
	"github.com/nyxcore884/budgetlens/internal/metrics"
	"github.com/nyxcore884/budgetlens/internal/narrative"
)

// Status is the session lifecycle state.
type Status string

const (
	StatusUploading          Status = "uploading"
	StatusReadyForProcessing Status = "ready_for_processing"
	StatusProcessing         Status = "processing"
	StatusCompleted          Status = "completed"
	StatusError              Status = "error"
)

// Terminal reports whether no further transition is allowed.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusError
}

// Descriptor identifies one session and the files it declared. It is
// what travels through the job queue.
type Descriptor struct {
	SessionID string         `json:"sessionId"`
	UserID    string         `json:"userId"`
	Files     ingest.FileSet `json:"files"`
}

// Result is the persisted outcome of a completed session.
type Result struct {
	ResultID  string    `json:"resultId"`
	SessionID string    `json:"sessionId"`
	UserID    string    `json:"userId"`
	CreatedAt time.Time `json:"createdAt"`

	Metrics  *metrics.Verified   `json:"verifiedMetrics"`
	Analysis *narrative.Analysis `json:"aiAnalysis"`
}
