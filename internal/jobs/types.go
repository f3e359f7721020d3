// Package jobs defines the asynchronous processing trigger: a session
// marked ready_for_processing becomes a queued job picked up by a
// worker. The interfaces keep the queue implementation swappable
// (in-memory today, Cloud Tasks or Pub/Sub later).
package jobs

import (
	"context"
	"time"

	"github.com/nyxcore884/budgetlens/internal/session"
)

// JobType identifies the kind of work a job carries.
type JobType string

const (
	// JobTypeProcessSession runs the full processing pipeline for one
	// upload session.
	JobTypeProcessSession JobType = "process_session"
)

// JobStatus is the queue-side lifecycle of a job, independent of the
// session status the processor writes.
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusRetrying  JobStatus = "retrying"
)

// ProcessSessionJob is the queued unit of work for one session.
type ProcessSessionJob struct {
	JobID string `json:"job_id"`

	// Session identifies what to process.
	Session session.Descriptor `json:"session"`

	Status      JobStatus  `json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	Error      string `json:"error,omitempty"`
	RetryCount int    `json:"retry_count"`
	MaxRetries int    `json:"max_retries"`
}

// Job is the generic view the queue exposes to handlers.
type Job interface {
	GetID() string
	GetType() JobType
	GetStatus() JobStatus
}

func (j *ProcessSessionJob) GetID() string        { return j.JobID }
func (j *ProcessSessionJob) GetType() JobType     { return JobTypeProcessSession }
func (j *ProcessSessionJob) GetStatus() JobStatus { return j.Status }

// Publisher enqueues session-processing jobs.
type Publisher interface {
	PublishProcessSession(ctx context.Context, job *ProcessSessionJob) error
	Close() error
}

// JobHandler processes one job; a returned error triggers the queue's
// retry policy.
type JobHandler func(ctx context.Context, job Job) error

// Consumer runs handlers against queued jobs.
type Consumer interface {
	Start(ctx context.Context, handler JobHandler) error
	Stop(ctx context.Context) error
}

// JobStore tracks job execution state for the status API.
type JobStore interface {
	SaveJob(ctx context.Context, job *ProcessSessionJob) error
	GetJob(ctx context.Context, jobID string) (*ProcessSessionJob, error)
	ListJobs(ctx context.Context, filter JobFilter) ([]*ProcessSessionJob, error)
	UpdateJobStatus(ctx context.Context, jobID string, status JobStatus, errorMsg string) error
}

// JobFilter narrows ListJobs results.
type JobFilter struct {
	SessionID string
	Status    JobStatus
	Limit     int
	Offset    int
}
