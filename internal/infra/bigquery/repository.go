// Package bigquery persists session lifecycle state and result
// snapshots. One shared client serves all operations; status
// transitions run as parameterized DML jobs, result snapshots stream
// through the table inserter.
package bigquery

import (
	"context"
	"fmt"

	"cloud.google.com/go/bigquery"
	"google.golang.org/api/option"
)

const (
	sessionsTable = "upload_sessions"
	resultsTable  = "budget_results"
)

// Repository is the BigQuery-backed session store.
type Repository struct {
	client  *bigquery.Client
	dataset string
}

// NewRepository creates the shared-client repository. When
// credentialsFile is empty, Application Default Credentials are used.
func NewRepository(ctx context.Context, projectID, dataset, credentialsFile string) (*Repository, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}

	client, err := bigquery.NewClient(ctx, projectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("bigquery: creating client: %w", err)
	}
	return &Repository{client: client, dataset: dataset}, nil
}

// Close releases the underlying client.
func (r *Repository) Close() error {
	return r.client.Close()
}

// runJob runs a DML query job to completion.
func (r *Repository) runJob(ctx context.Context, q *bigquery.Query, op string) error {
	job, err := q.Run(ctx)
	if err != nil {
		return fmt.Errorf("%s: running query: %w", op, err)
	}
	status, err := job.Wait(ctx)
	if err != nil {
		return fmt.Errorf("%s: waiting for job: %w", op, err)
	}
	if err := status.Err(); err != nil {
		return fmt.Errorf("%s: job error: %w", op, err)
	}
	return nil
}
