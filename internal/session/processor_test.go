package session

import (
	"context"
	"errors"
	"io"
	"reflect"
	"sync"
	"testing"

	"github.com/nyxcore884/budgetlens/internal/aggregate"
	"github.com/nyxcore884/budgetlens/internal/config"
	"github.com/nyxcore884/budgetlens/internal/ingest"
	"github.com/nyxcore884/budgetlens/internal/logger"
	"github.com/nyxcore884/budgetlens/internal/metrics"
	"github.com/nyxcore884/budgetlens/internal/narrative"
	"github.com/nyxcore884/budgetlens/internal/objstore"
)

// memoryStore records every status transition and saved result.
type memoryStore struct {
	mu        sync.Mutex
	statuses  []Status
	errorMsg  string
	resultID  string
	results   []*Result
	failSaves bool
}

func (m *memoryStore) UpdateStatus(_ context.Context, _ string, status Status) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.statuses = append(m.statuses, status)
	return nil
}

func (m *memoryStore) MarkCompleted(_ context.Context, _, resultID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.statuses = append(m.statuses, StatusCompleted)
	m.resultID = resultID
	return nil
}

func (m *memoryStore) MarkFailed(_ context.Context, _, errorMessage string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.statuses = append(m.statuses, StatusError)
	m.errorMsg = errorMessage
	return nil
}

func (m *memoryStore) SaveResult(_ context.Context, result *Result) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failSaves {
		return errors.New("insert rejected")
	}
	m.results = append(m.results, result)
	return nil
}

func validConfig() *config.Config {
	return &config.Config{
		StorageBucket:      "test-bucket",
		ProjectID:          "test-project",
		Dataset:            "budget",
		CorrectionPriority: "lowest-wins",
		CorrectionKey:      "composite",
		TopDrivers:         5,
		SampleRows:         10,
		Port:               "8080",
	}
}

func sessionFiles() (objstore.Memory, ingest.FileSet) {
	store := objstore.Memory{
		"s1/ledger.csv": []byte(
			"Transaction_ID,cost_item,structural_unit,counterparty,Amount_Reporting_Curr\n" +
				"T1,,,Acme Ltd,100\n" +
				"T2,X,U,,-50\n" +
				"T3,,,,0\n"),
		"s1/cost_items.csv": []byte("cost_item,budget_article\nX,A\n"),
		"s1/holders.csv":    []byte("budget_article,budget_holder\nA,H\n"),
		"s1/regions.csv":    []byte("structural_unit,region\nU,R\n"),
	}
	files := ingest.FileSet{
		GLEntries:           ingest.FileRef{Name: "ledger.csv", Path: "s1/ledger.csv"},
		CostItemMap:         ingest.FileRef{Name: "cost_items.csv", Path: "s1/cost_items.csv"},
		BudgetHolderMapping: ingest.FileRef{Name: "holders.csv", Path: "s1/holders.csv"},
		RegionalMapping:     ingest.FileRef{Name: "regions.csv", Path: "s1/regions.csv"},
	}
	return store, files
}

func newTestProcessor(cfg *config.Config, store Store, dl objstore.Downloader, gen narrative.Generator) *Processor {
	log := logger.NewWithWriter(io.Discard)
	return NewProcessor(cfg, store, dl, narrative.NewGate(gen, log), nil, log)
}

func TestProcessSessionCompletes(t *testing.T) {
	store := &memoryStore{}
	dl, files := sessionFiles()
	p := newTestProcessor(validConfig(), store, dl, nil)

	err := p.ProcessSession(context.Background(), Descriptor{SessionID: "s1", UserID: "u1", Files: files})
	if err != nil {
		t.Fatalf("ProcessSession: %v", err)
	}

	wantStatuses := []Status{StatusProcessing, StatusCompleted}
	if !reflect.DeepEqual(store.statuses, wantStatuses) {
		t.Errorf("statuses = %v, want %v", store.statuses, wantStatuses)
	}
	if len(store.results) != 1 {
		t.Fatalf("saved %d results, want 1", len(store.results))
	}

	result := store.results[0]
	if result.ResultID == "" || result.ResultID != store.resultID {
		t.Errorf("result id %q not linked to session (%q)", result.ResultID, store.resultID)
	}
	if result.SessionID != "s1" || result.UserID != "u1" {
		t.Errorf("result identity wrong: %+v", result)
	}

	v := result.Metrics
	if v.TotalRevenue != 100 || v.TotalCosts != 50 || v.TransactionCount != 1 {
		t.Errorf("verified metrics wrong: %+v", v)
	}
	if !reflect.DeepEqual(v.CostsByHolder, map[string]float64{"H": 50}) {
		t.Errorf("CostsByHolder = %v", v.CostsByHolder)
	}
	// No classifier configured: all revenue is retail.
	if v.RetailRevenue != 100 || v.WholesaleRevenue != 0 {
		t.Errorf("revenue split = %v/%v, want 100/0", v.RetailRevenue, v.WholesaleRevenue)
	}
	// Nil generator: fallback analysis attached, session still completed.
	if !reflect.DeepEqual(result.Analysis, narrative.FallbackAnalysis()) {
		t.Errorf("analysis = %+v, want fallback", result.Analysis)
	}
}

func TestProcessSessionDownloadFailure(t *testing.T) {
	store := &memoryStore{}
	dl, files := sessionFiles()
	delete(dl, "s1/regions.csv")
	p := newTestProcessor(validConfig(), store, dl, nil)

	err := p.ProcessSession(context.Background(), Descriptor{SessionID: "s1", Files: files})
	if err == nil {
		t.Fatal("expected error for missing file")
	}

	wantStatuses := []Status{StatusProcessing, StatusError}
	if !reflect.DeepEqual(store.statuses, wantStatuses) {
		t.Errorf("statuses = %v, want %v", store.statuses, wantStatuses)
	}
	if store.errorMsg == "" {
		t.Error("terminal error status has no message")
	}
	if len(store.results) != 0 {
		t.Error("result saved for a failed session")
	}
}

func TestProcessSessionInvalidConfig(t *testing.T) {
	store := &memoryStore{}
	countingDL := &countingDownloader{}
	cfg := validConfig()
	cfg.StorageBucket = ""

	p := newTestProcessor(cfg, store, countingDL, nil)
	err := p.ProcessSession(context.Background(), Descriptor{SessionID: "s1"})
	if err == nil {
		t.Fatal("expected configuration error")
	}
	if countingDL.calls != 0 {
		t.Errorf("downloader called %d times before config validation", countingDL.calls)
	}
	if !reflect.DeepEqual(store.statuses, []Status{StatusError}) {
		t.Errorf("statuses = %v, want only the error terminal", store.statuses)
	}
}

type countingDownloader struct{ calls int }

func (c *countingDownloader) Download(context.Context, string) ([]byte, error) {
	c.calls++
	return nil, errors.New("unreachable")
}

type failingGenerator struct{}

func (failingGenerator) Analyze(context.Context, *metrics.Verified, []aggregate.Row) (*narrative.Analysis, error) {
	return nil, errors.New("model down")
}

func TestNarrativeFailureDoesNotFailSession(t *testing.T) {
	store := &memoryStore{}
	dl, files := sessionFiles()
	p := newTestProcessor(validConfig(), store, dl, failingGenerator{})

	if err := p.ProcessSession(context.Background(), Descriptor{SessionID: "s1", Files: files}); err != nil {
		t.Fatalf("narrative failure must not fail the session: %v", err)
	}
	if store.statuses[len(store.statuses)-1] != StatusCompleted {
		t.Errorf("terminal status = %v, want completed", store.statuses)
	}
	result := store.results[0]
	if !reflect.DeepEqual(result.Analysis, narrative.FallbackAnalysis()) {
		t.Errorf("analysis = %+v, want fallback", result.Analysis)
	}
	// Verified metrics survive the degraded narrative untouched.
	if result.Metrics.TotalRevenue != 100 || result.Metrics.TotalCosts != 50 {
		t.Errorf("metrics corrupted by narrative failure: %+v", result.Metrics)
	}
}

func TestPersistFailureIsTerminalError(t *testing.T) {
	store := &memoryStore{failSaves: true}
	dl, files := sessionFiles()
	p := newTestProcessor(validConfig(), store, dl, nil)

	if err := p.ProcessSession(context.Background(), Descriptor{SessionID: "s1", Files: files}); err == nil {
		t.Fatal("expected error when result save fails")
	}
	if store.statuses[len(store.statuses)-1] != StatusError {
		t.Errorf("terminal status = %v, want error", store.statuses)
	}
}

func TestStatusTerminal(t *testing.T) {
	for status, want := range map[Status]bool{
		StatusUploading:          false,
		StatusReadyForProcessing: false,
		StatusProcessing:         false,
		StatusCompleted:          true,
		StatusError:              true,
	} {
		if got := status.Terminal(); got != want {
			t.Errorf("%s.Terminal() = %v, want %v", status, got, want)
		}
	}
}
