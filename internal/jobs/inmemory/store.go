package inmemory

import (
	"context"
	"fmt"
	"sync"

	"github.com/nyxcore884/budgetlens/internal/jobs"
)

// Store keeps job state in memory. Safe for concurrent use; contents
// are lost on restart.
type Store struct {
	mu   sync.RWMutex
	jobs map[string]*jobs.ProcessSessionJob
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{jobs: make(map[string]*jobs.ProcessSessionJob)}
}

// SaveJob implements jobs.JobStore.
func (s *Store) SaveJob(_ context.Context, job *jobs.ProcessSessionJob) error {
	if job.JobID == "" {
		return fmt.Errorf("job ID is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	jobCopy := *job
	s.jobs[job.JobID] = &jobCopy
	return nil
}

// GetJob implements jobs.JobStore.
func (s *Store) GetJob(_ context.Context, jobID string) (*jobs.ProcessSessionJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	job, exists := s.jobs[jobID]
	if !exists {
		return nil, fmt.Errorf("job not found: %s", jobID)
	}
	jobCopy := *job
	return &jobCopy, nil
}

// ListJobs implements jobs.JobStore.
func (s *Store) ListJobs(_ context.Context, filter jobs.JobFilter) ([]*jobs.ProcessSessionJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*jobs.ProcessSessionJob
	for _, job := range s.jobs {
		if filter.SessionID != "" && job.Session.SessionID != filter.SessionID {
			continue
		}
		if filter.Status != "" && job.Status != filter.Status {
			continue
		}
		jobCopy := *job
		result = append(result, &jobCopy)
	}

	if filter.Offset > 0 {
		if filter.Offset >= len(result) {
			return []*jobs.ProcessSessionJob{}, nil
		}
		result = result[filter.Offset:]
	}
	if filter.Limit > 0 && filter.Limit < len(result) {
		result = result[:filter.Limit]
	}
	return result, nil
}

// UpdateJobStatus implements jobs.JobStore.
func (s *Store) UpdateJobStatus(_ context.Context, jobID string, status jobs.JobStatus, errorMsg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, exists := s.jobs[jobID]
	if !exists {
		return fmt.Errorf("job not found: %s", jobID)
	}

	job.Status = status
	if errorMsg != "" {
		job.Error = errorMsg
	}
	return nil
}

var _ jobs.JobStore = (*Store)(nil)
