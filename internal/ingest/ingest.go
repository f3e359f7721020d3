// Package ingest downloads and decodes the declared session files into
// ordered row-record sequences. All downloads run concurrently and the
// stage joins before anything downstream starts; a single bad file
// fails the whole session.
package ingest

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/nyxcore884/budgetlens/internal/objstore"
)

// FileRef identifies one uploaded file by display name and object
// storage path. The extension of Name selects the decoder.
type FileRef struct {
	Name string `json:"name"`
	Path string `json:"path"`
}

// FileSet is the declared input set for one session. The first four
// entries are mandatory; corrections and revenueReport are optional.
type FileSet struct {
	GLEntries           FileRef  `json:"glEntries"`
	BudgetHolderMapping FileRef  `json:"budgetHolderMapping"`
	CostItemMap         FileRef  `json:"costItemMap"`
	RegionalMapping     FileRef  `json:"regionalMapping"`
	Corrections         *FileRef `json:"corrections,omitempty"`
	RevenueReport       *FileRef `json:"revenueReport,omitempty"`
}

// Validate checks that every required file is declared.
func (fs FileSet) Validate() error {
	required := []struct {
		label string
		ref   FileRef
	}{
		{"glEntries", fs.GLEntries},
		{"budgetHolderMapping", fs.BudgetHolderMapping},
		{"costItemMap", fs.CostItemMap},
		{"regionalMapping", fs.RegionalMapping},
	}
	for _, r := range required {
		if r.ref.Name == "" || r.ref.Path == "" {
			return fmt.Errorf("ingest: required file %s is not declared", r.label)
		}
	}
	return nil
}

// Bundle holds the decoded record sequences for one session. A missing
// corrections file yields an empty Corrections slice, not an error.
type Bundle struct {
	GLEntries           []Record
	BudgetHolderMapping []Record
	CostItemMap         []Record
	RegionalMapping     []Record
	Corrections         []Record
	RevenueReport       []Record
}

// Ingestor fetches and decodes session files from object storage.
type Ingestor struct {
	store objstore.Downloader
	log   zerolog.Logger
}

// NewIngestor creates an Ingestor backed by the given store.
func NewIngestor(store objstore.Downloader, log zerolog.Logger) *Ingestor {
	return &Ingestor{store: store, log: log}
}

// Fetch downloads and decodes every declared file concurrently and
// joins before returning. The first failure cancels the remaining
// downloads and aborts the session. Decoding is fully in-memory; no
// temporary files are materialized.
func (in *Ingestor) Fetch(ctx context.Context, files FileSet) (*Bundle, error) {
	if err := files.Validate(); err != nil {
		return nil, err
	}

	bundle := &Bundle{}
	g, ctx := errgroup.WithContext(ctx)

	fetch := func(ref FileRef, dst *[]Record) func() error {
		return func() error {
			data, err := in.store.Download(ctx, ref.Path)
			if err != nil {
				return &FileError{Name: ref.Name, Op: "download", Err: err}
			}

			records, err := Decode(ref.Name, data)
			if err != nil {
				var unsupported *UnsupportedFileTypeError
				if errors.As(err, &unsupported) {
					return err
				}
				return &FileError{Name: ref.Name, Op: "decode", Err: err}
			}

			*dst = records
			return nil
		}
	}

	g.Go(fetch(files.GLEntries, &bundle.GLEntries))
	g.Go(fetch(files.BudgetHolderMapping, &bundle.BudgetHolderMapping))
	g.Go(fetch(files.CostItemMap, &bundle.CostItemMap))
	g.Go(fetch(files.RegionalMapping, &bundle.RegionalMapping))
	if files.Corrections != nil {
		g.Go(fetch(*files.Corrections, &bundle.Corrections))
	}
	if files.RevenueReport != nil {
		g.Go(fetch(*files.RevenueReport, &bundle.RevenueReport))
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	in.log.Info().
		Int("ledger_rows", len(bundle.GLEntries)).
		Int("holder_rows", len(bundle.BudgetHolderMapping)).
		Int("cost_item_rows", len(bundle.CostItemMap)).
		Int("regional_rows", len(bundle.RegionalMapping)).
		Int("correction_rows", len(bundle.Corrections)).
		Msg("Session files fetched and decoded")

	return bundle, nil
}
