// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/pdiddy/litpipe/internal/catalog"
	"github.com/pdiddy/litpipe/internal/fetch"
	"github.com/pdiddy/litpipe/internal/fulltext"
	"github.com/pdiddy/litpipe/internal/store"
	"github.com/pdiddy/litpipe/pkg/types"
)

// fakeSource persists its records under the project data directory the
// way real sources do, so the dedupe stage can read them back.
type fakeSource struct {
	name    string
	dataDir string
	records []types.Record
	err     error
}

func (f *fakeSource) Name() string { return f.name }

func (f *fakeSource) Fetch(_ context.Context, _, project string) ([]types.Record, error) {
	if f.err != nil {
		return nil, f.err
	}
	path := store.SourceMetadataPath(f.dataDir, project, f.name)
	if err := store.WriteRecords(path, f.records); err != nil {
		return nil, err
	}
	return f.records, nil
}

// fakeEmbedder scores any record text against a fixed query vector.
type fakeEmbedder struct {
	lowFor string
}

func (f *fakeEmbedder) EmbedText(_ context.Context, text, _ string) ([]float32, error) {
	if f.lowFor != "" && strings.Contains(text, f.lowFor) {
		return []float32{0, 1}, nil
	}
	return []float32{1, 0}, nil
}

type fakeIngestor struct {
	records []types.Record
	report  types.FetchReport
	runs    int
}

func (f *fakeIngestor) Ingest(_ context.Context, _ string, records []types.Record) (catalog.IngestSummary, error) {
	f.records = records
	return catalog.IngestSummary{Ingested: len(records)}, nil
}

func (f *fakeIngestor) RecordRun(_ context.Context, _ string, report types.FetchReport) error {
	f.report = report
	f.runs++
	return nil
}

func testPipeline(t *testing.T, dataDir string, sources []fetch.Source, embedder *fakeEmbedder, client *http.Client) (*Pipeline, *fakeIngestor, *bytes.Buffer) {
	t.Helper()

	cfg := types.PipelineConfig{
		Fetch: types.FetchConfig{
			HTTPConfig: types.HTTPConfig{Timeout: 10 * time.Second, UserAgent: "test/0.1"},
			DataDir:    dataDir,
			MaxResults: 20,
		},
		Filter: types.FilterConfig{MinSimilarity: 0.5},
		Fulltext: types.FulltextConfig{
			HTTPConfig:  types.HTTPConfig{Timeout: 10 * time.Second, UserAgent: "test/0.1"},
			DataDir:     dataDir,
			RecordDelay: time.Nanosecond,
		},
	}

	orch, err := fetch.NewOrchestrator(sources, nil, cfg.Fetch, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewOrchestrator: %v", err)
	}

	ing := &fakeIngestor{}
	out := &bytes.Buffer{}
	p := &Pipeline{
		Orchestrator: orch,
		Embedder:     embedder,
		Fulltext: &fulltext.Processor{
			Client:   client,
			Cfg:      cfg.Fulltext,
			Log:      zerolog.Nop(),
			HTMLText: fulltext.HTMLExtractor{},
		},
		Ingestor: ing,
		Cfg:      cfg,
		Log:      zerolog.Nop(),
		Out:      out,
	}
	return p, ing, out
}

func TestPipelineEndToEnd(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/pdf")
		fmt.Fprint(w, "%PDF-1.4")
	}))
	defer ts.Close()

	dataDir := t.TempDir()
	shared := types.Record{ID: "dup", Title: "Shared paper", DOI: "10.1/dup", PDFURL: ts.URL + "/dup.pdf"}
	sources := []fetch.Source{
		&fakeSource{name: "a", dataDir: dataDir, records: []types.Record{
			shared,
			{ID: "offtopic", Title: "Irrelevant result", DOI: "10.1/off"},
		}},
		&fakeSource{name: "b", dataDir: dataDir, records: []types.Record{shared}},
	}

	p, ing, out := testPipeline(t, dataDir, sources, &fakeEmbedder{lowFor: "Irrelevant"}, ts.Client())

	if err := p.Run(context.Background(), "shared papers", "p1", nil); err != nil {
		t.Fatalf("Run: %v", err)
	}

	// Duplicate collapsed, off-topic record filtered out.
	filtered, err := store.ReadRecords(store.FilteredPath(dataDir, "p1"))
	if err != nil {
		t.Fatal(err)
	}
	if len(filtered) != 1 || filtered[0].ID != "dup" {
		t.Errorf("filtered = %+v, want only dup", filtered)
	}

	// Fulltext artifact written and ingested.
	enriched, err := store.ReadRecords(store.WithFulltextPath(dataDir, "p1"))
	if err != nil {
		t.Fatal(err)
	}
	if len(enriched) != 1 {
		t.Fatalf("enriched = %d records, want 1", len(enriched))
	}
	if enriched[0].FulltextStatus != types.FulltextSuccess {
		t.Errorf("fulltext status = %q", enriched[0].FulltextStatus)
	}
	if len(ing.records) != 1 || ing.records[0].ID != "dup" {
		t.Errorf("ingested = %+v", ing.records)
	}
	if ing.runs != 1 || ing.report.Total != 3 {
		t.Errorf("run report = %+v (recorded %d times)", ing.report, ing.runs)
	}

	// Run report persisted to the runs directory too.
	entries, err := os.ReadDir(store.RunsDirPath(dataDir, "p1"))
	if err != nil || len(entries) != 1 {
		t.Errorf("runs dir entries = %v, err = %v", entries, err)
	}

	for _, want := range []string{"dedupe: 2 unique, 1 duplicates", "filter: 1 of 2", "catalog: 1 records ingested"} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("output missing %q:\n%s", want, out.String())
		}
	}
}

func TestPipelineNilIngestorStopsAtArtifact(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer ts.Close()

	dataDir := t.TempDir()
	sources := []fetch.Source{
		&fakeSource{name: "a", dataDir: dataDir, records: []types.Record{
			{ID: "r1", Title: "A record", DOI: "10.1/r1"},
		}},
	}

	p, ing, _ := testPipeline(t, dataDir, sources, &fakeEmbedder{}, ts.Client())
	p.Ingestor = nil

	if err := p.Run(context.Background(), "records", "p1", nil); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if ing.runs != 0 || ing.records != nil {
		t.Errorf("ingestor used despite being detached")
	}
	if _, err := store.ReadRecords(store.WithFulltextPath(dataDir, "p1")); err != nil {
		t.Errorf("fulltext artifact missing: %v", err)
	}
}

func TestPipelineAbortsWhenEverySourceFails(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer ts.Close()

	dataDir := t.TempDir()
	sources := []fetch.Source{
		&fakeSource{name: "a", dataDir: dataDir, err: errors.New("upstream down")},
	}

	p, ing, _ := testPipeline(t, dataDir, sources, &fakeEmbedder{}, ts.Client())

	// Cancel during the retry wait so the fetch stage finishes quickly.
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := p.Run(ctx, "q", "p1", nil)
	if err == nil || !strings.Contains(err.Error(), "all sources failed") {
		t.Fatalf("Run error = %v, want all-sources-failed abort", err)
	}
	if ing.runs != 0 {
		t.Errorf("run recorded despite aborted fetch stage")
	}
}

func TestPipelineUnknownSourceOnlyIsNotFatal(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer ts.Close()

	dataDir := t.TempDir()
	sources := []fetch.Source{
		&fakeSource{name: "a", dataDir: dataDir},
	}

	p, _, out := testPipeline(t, dataDir, sources, &fakeEmbedder{}, ts.Client())
	p.Ingestor = nil

	// Every requested source is unknown, so everything is skipped. That
	// is an empty run, not a failed one.
	if err := p.Run(context.Background(), "q", "p1", []string{"nope"}); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !strings.Contains(out.String(), "fetch: nope skipped") {
		t.Errorf("output = %s", out.String())
	}
}
