package session

import "context"

// Store persists session lifecycle state and results. Implemented by
// the BigQuery repository; tests use an in-memory fake.
type Store interface {
	// UpdateStatus records a non-terminal status transition.
	UpdateStatus(ctx context.Context, sessionID string, status Status) error
	// MarkCompleted records the terminal success transition with the
	// result reference.
	MarkCompleted(ctx context.Context, sessionID, resultID string) error
	// MarkFailed records the terminal error transition with a message.
	MarkFailed(ctx context.Context, sessionID, errorMessage string) error
	// SaveResult persists a completed session's result snapshot.
	SaveResult(ctx context.Context, result *Result) error
}
