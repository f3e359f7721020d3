package objstore

import (
	"context"
	"testing"
)

func TestParseURI(t *testing.T) {
	tests := []struct {
		name       string
		uri        string
		wantBucket string
		wantObject string
		wantErr    bool
	}{
		{
			name:       "valid URI",
			uri:        "gs://budget-uploads/sessions/s1/ledger.csv",
			wantBucket: "budget-uploads",
			wantObject: "sessions/s1/ledger.csv",
		},
		{
			name:    "missing scheme",
			uri:     "budget-uploads/ledger.csv",
			wantErr: true,
		},
		{
			name:    "no object path",
			uri:     "gs://budget-uploads",
			wantErr: true,
		},
		{
			name:    "empty object path",
			uri:     "gs://budget-uploads/",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bucket, object, err := ParseURI(tt.uri)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseURI(%q) error = %v, wantErr %v", tt.uri, err, tt.wantErr)
			}
			if err != nil {
				return
			}
			if bucket != tt.wantBucket || object != tt.wantObject {
				t.Errorf("ParseURI(%q) = (%q, %q), want (%q, %q)", tt.uri, bucket, object, tt.wantBucket, tt.wantObject)
			}
		})
	}
}

func TestFilenameFromURI(t *testing.T) {
	tests := []struct {
		uri  string
		want string
	}{
		{"gs://bucket/sessions/s1/ledger.csv", "ledger.csv"},
		{"gs://bucket/file.xlsx", "file.xlsx"},
		{"gs://bucket-only", "bucket-only"},
	}

	for _, tt := range tests {
		if got := FilenameFromURI(tt.uri); got != tt.want {
			t.Errorf("FilenameFromURI(%q) = %q, want %q", tt.uri, got, tt.want)
		}
	}
}

func TestMemoryDownload(t *testing.T) {
	store := Memory{"sessions/s1/ledger.csv": []byte("a,b\n1,2\n")}

	data, err := store.Download(context.Background(), "sessions/s1/ledger.csv")
	if err != nil {
		t.Fatalf("Download returned error: %v", err)
	}
	if string(data) != "a,b\n1,2\n" {
		t.Errorf("Download returned %q", data)
	}

	if _, err := store.Download(context.Background(), "missing"); err == nil {
		t.Error("Download of missing object should fail")
	}
}
