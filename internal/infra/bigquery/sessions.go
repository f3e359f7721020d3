package bigquery

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/bigquery"

	"github.com/nyxcore884/budgetlens/internal/session"
)

// SessionRow mirrors the upload_sessions table.
type SessionRow struct {
	SessionID string `bigquery:"session_id"` // REQUIRED
	UserID    string `bigquery:"user_id"`    // REQUIRED

	Status       string              `bigquery:"status"`        // REQUIRED
	ErrorMessage bigquery.NullString `bigquery:"error_message"` // NULLABLE
	ResultID     bigquery.NullString `bigquery:"result_id"`     // NULLABLE

	Files bigquery.NullJSON `bigquery:"files"` // NULLABLE

	CreatedTS time.Time              `bigquery:"created_ts"` // REQUIRED
	UpdatedTS bigquery.NullTimestamp `bigquery:"updated_ts"` // NULLABLE
}

// InsertSession creates the session record in its initial status.
func (r *Repository) InsertSession(ctx context.Context, row *SessionRow) error {
	inserter := r.client.Dataset(r.dataset).Table(sessionsTable).Inserter()
	if err := inserter.Put(ctx, row); err != nil {
		return fmt.Errorf("InsertSession: %w", err)
	}
	return nil
}

// CreateSession persists a freshly created session in the uploading
// status, with the declared files snapshot (usually still empty).
func (r *Repository) CreateSession(ctx context.Context, desc session.Descriptor) error {
	return r.InsertSession(ctx, &SessionRow{
		SessionID: desc.SessionID,
		UserID:    desc.UserID,
		Status:    string(session.StatusUploading),
		Files:     toNullJSON(desc.Files),
		CreatedTS: time.Now(),
	})
}

// UpdateStatus implements session.Store for non-terminal transitions.
func (r *Repository) UpdateStatus(ctx context.Context, sessionID string, status session.Status) error {
	q := r.client.Query(fmt.Sprintf(`
		UPDATE %s.%s
		SET status = @status,
		    updated_ts = @updated_ts
		WHERE session_id = @session_id
	`, r.dataset, sessionsTable))

	q.Parameters = []bigquery.QueryParameter{
		{Name: "status", Value: string(status)},
		{Name: "updated_ts", Value: time.Now()},
		{Name: "session_id", Value: sessionID},
	}
	return r.runJob(ctx, q, "UpdateStatus")
}

// MarkCompleted implements session.Store: terminal success with the
// result reference.
func (r *Repository) MarkCompleted(ctx context.Context, sessionID, resultID string) error {
	q := r.client.Query(fmt.Sprintf(`
		UPDATE %s.%s
		SET status = @status,
		    result_id = @result_id,
		    error_message = "",
		    updated_ts = @updated_ts
		WHERE session_id = @session_id
	`, r.dataset, sessionsTable))

	q.Parameters = []bigquery.QueryParameter{
		{Name: "status", Value: string(session.StatusCompleted)},
		{Name: "result_id", Value: resultID},
		{Name: "updated_ts", Value: time.Now()},
		{Name: "session_id", Value: sessionID},
	}
	return r.runJob(ctx, q, "MarkCompleted")
}

// MarkFailed implements session.Store: terminal error with a message.
func (r *Repository) MarkFailed(ctx context.Context, sessionID, errorMessage string) error {
	const maxLen = 2000
	if len(errorMessage) > maxLen {
		errorMessage = errorMessage[:maxLen]
	}

	q := r.client.Query(fmt.Sprintf(`
		UPDATE %s.%s
		SET status = @status,
		    error_message = @error_message,
		    updated_ts = @updated_ts
		WHERE session_id = @session_id
	`, r.dataset, sessionsTable))

	q.Parameters = []bigquery.QueryParameter{
		{Name: "status", Value: string(session.StatusError)},
		{Name: "error_message", Value: errorMessage},
		{Name: "updated_ts", Value: time.Now()},
		{Name: "session_id", Value: sessionID},
	}
	return r.runJob(ctx, q, "MarkFailed")
}
