// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package pipeline chains the fetch, dedupe, filter, and fulltext stages
// into one sequential run and hands the enriched result to an ingestion
// collaborator. Stages communicate through the project's data directory,
// so each stage can also be run on its own from the CLI.
package pipeline

import (
	"context"
	"fmt"
	"io"

	"github.com/rs/zerolog"

	"github.com/pdiddy/litpipe/internal/catalog"
	"github.com/pdiddy/litpipe/internal/dedupe"
	"github.com/pdiddy/litpipe/internal/fetch"
	"github.com/pdiddy/litpipe/internal/fulltext"
	"github.com/pdiddy/litpipe/internal/semfilter"
	"github.com/pdiddy/litpipe/internal/store"
	"github.com/pdiddy/litpipe/pkg/types"
)

// Ingestor receives the final enriched record set and the run report.
// The built-in implementation is the SQLite catalog.
type Ingestor interface {
	Ingest(ctx context.Context, project string, records []types.Record) (catalog.IngestSummary, error)
	RecordRun(ctx context.Context, project string, report types.FetchReport) error
}

// Pipeline composes the stages for one project run.
type Pipeline struct {
	Orchestrator *fetch.Orchestrator
	Embedder     semfilter.Embedder
	Fulltext     *fulltext.Processor

	// Ingestor is optional; a nil ingestor ends the run at the
	// metadata_with_fulltext.json artifact.
	Ingestor Ingestor

	Cfg types.PipelineConfig
	Log zerolog.Logger
	Out io.Writer
}

// Run executes the full pipeline for query and project. Per-source and
// per-record failures stay inside their stages; Run errors only when a
// whole stage cannot produce its artifact.
func (p *Pipeline) Run(ctx context.Context, query, project string, only []string) error {
	dataDir := p.Cfg.Fetch.DataDir

	report, err := p.runFetch(ctx, query, project, only)
	if err != nil {
		return err
	}

	dedupResult, err := dedupe.Deduplicate(dataDir, project, p.Log)
	if err != nil {
		return fmt.Errorf("dedupe stage: %w", err)
	}
	fmt.Fprintf(p.Out, "dedupe: %d unique, %d duplicates, %d without identifier\n",
		len(dedupResult.Unique), dedupResult.Duplicates, dedupResult.Unidentified)

	filtered, err := semfilter.Filter(ctx, dedupResult.Unique, query, p.Cfg.Filter, p.Embedder, p.Log)
	if err != nil {
		return fmt.Errorf("filter stage: %w", err)
	}
	if err := store.WriteRecords(store.FilteredPath(dataDir, project), filtered); err != nil {
		return fmt.Errorf("writing filtered records: %w", err)
	}
	fmt.Fprintf(p.Out, "filter: %d of %d records kept\n", len(filtered), len(dedupResult.Unique))

	ftSummary, err := p.Fulltext.Run(ctx, project)
	if err != nil {
		return fmt.Errorf("fulltext stage: %w", err)
	}
	fmt.Fprintf(p.Out, "fulltext: %d retrieved, %d failed, %d not found\n",
		ftSummary.Success, ftSummary.Failed, ftSummary.NotFound)

	if p.Ingestor == nil {
		return nil
	}

	enriched, err := store.ReadRecords(store.WithFulltextPath(dataDir, project))
	if err != nil {
		return fmt.Errorf("reading enriched records: %w", err)
	}
	ingestSummary, err := p.Ingestor.Ingest(ctx, project, enriched)
	if err != nil {
		return fmt.Errorf("ingest stage: %w", err)
	}
	if err := p.Ingestor.RecordRun(ctx, project, report); err != nil {
		p.Log.Warn().Err(err).Msg("recording run in catalog failed")
	}
	fmt.Fprintf(p.Out, "catalog: %d records ingested\n", ingestSummary.Ingested)

	return nil
}

// runFetch runs the fetch orchestrator and persists the run report. A
// run where every source failed aborts the pipeline; later stages would
// only republish stale artifacts.
func (p *Pipeline) runFetch(ctx context.Context, query, project string, only []string) (types.FetchReport, error) {
	_, report, err := p.Orchestrator.Run(ctx, query, project, only)
	if err != nil {
		return report, fmt.Errorf("fetch stage: %w", err)
	}

	if path, err := fetch.WriteRunFile(p.Cfg.Fetch.DataDir, project, report); err != nil {
		p.Log.Warn().Err(err).Msg("writing run file failed")
	} else {
		p.Log.Debug().Str("path", path).Msg("run file written")
	}

	var failed int
	for _, sr := range report.Sources {
		switch sr.Status {
		case types.SourceSuccess:
			fmt.Fprintf(p.Out, "fetch: %s ok (%d records)\n", sr.Source, sr.Count)
		case types.SourceSkipped:
			fmt.Fprintf(p.Out, "fetch: %s skipped\n", sr.Source)
		default:
			failed++
			fmt.Fprintf(p.Out, "fetch: %s failed (%s)\n", sr.Source, sr.Error)
		}
	}

	if failed > 0 && report.AllFailed() {
		return report, fmt.Errorf("all sources failed")
	}
	return report, nil
}
