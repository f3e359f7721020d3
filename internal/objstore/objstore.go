// Package objstore retrieves raw file bytes from object storage for the
// ingestion stage. All session inputs live under a single bucket; the
// Downloader abstraction keeps the pipeline testable without network
// access.
package objstore

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

// Downloader fetches the bytes of one stored object by its in-bucket
// path.
type Downloader interface {
	Download(ctx context.Context, objectPath string) ([]byte, error)
}

// GCS is the Google Cloud Storage implementation of Downloader, scoped
// to one bucket. It holds a shared client so a session's fan-out of
// downloads reuses a single connection.
type GCS struct {
	client *storage.Client
	bucket string
}

// NewGCS creates a bucket-scoped GCS downloader. When credentialsFile
// is empty, Application Default Credentials are used.
func NewGCS(ctx context.Context, bucket, credentialsFile string) (*GCS, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}

	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("objstore: creating storage client: %w", err)
	}

	return &GCS{client: client, bucket: bucket}, nil
}

// Download implements Downloader.
func (g *GCS) Download(ctx context.Context, objectPath string) ([]byte, error) {
	rc, err := g.client.Bucket(g.bucket).Object(objectPath).NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("objstore: opening %s/%s: %w", g.bucket, objectPath, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("objstore: reading %s/%s: %w", g.bucket, objectPath, err)
	}
	return data, nil
}

// Close releases the underlying storage client.
func (g *GCS) Close() error {
	return g.client.Close()
}

// ParseURI splits a gs:// URI into bucket and object path.
func ParseURI(uri string) (bucket, objectPath string, err error) {
	if !strings.HasPrefix(uri, "gs://") {
		return "", "", fmt.Errorf("objstore: invalid GCS URI: %s", uri)
	}
	trimmed := strings.TrimPrefix(uri, "gs://")
	parts := strings.SplitN(trimmed, "/", 2)
	if len(parts) != 2 || parts[1] == "" {
		return "", "", fmt.Errorf("objstore: invalid GCS URI (no object path): %s", uri)
	}
	return parts[0], parts[1], nil
}

// FilenameFromURI extracts the final path element of a gs:// URI,
// e.g. "gs://bucket/sessions/s1/ledger.csv" -> "ledger.csv".
func FilenameFromURI(uri string) string {
	trimmed := strings.TrimPrefix(uri, "gs://")
	parts := strings.SplitN(trimmed, "/", 2)
	if len(parts) < 2 {
		return trimmed
	}
	return path.Base(parts[1])
}

// Memory is an in-memory Downloader used in tests; keys are object
// paths.
type Memory map[string][]byte

// Download implements Downloader.
func (m Memory) Download(_ context.Context, objectPath string) ([]byte, error) {
	data, ok := m[objectPath]
	if !ok {
		return nil, fmt.Errorf("objstore: object not found: %s", objectPath)
	}
	return data, nil
}
