// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package fetch orchestrates metadata retrieval from heterogeneous
// sources. Each source implements the Source interface per the Strategy
// pattern; the orchestrator dispatches a processed query to every
// requested source sequentially, isolates per-source failures, and
// aggregates the returned records into one raw list with a per-source
// report.
package fetch

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/pdiddy/litpipe/internal/httputil"
	"github.com/pdiddy/litpipe/pkg/types"
)

// Source fetches normalized records from one external API or feed. Fetch
// persists its own results under data/<project>/<name>/ as a side effect;
// the orchestrator aggregates only the returned list. Implementations
// must be safe to retry.
type Source interface {
	Name() string
	Fetch(ctx context.Context, query, project string) ([]types.Record, error)
}

// Orchestrator dispatches a query to registered sources in registration
// order. A failure in one source is recorded and does not abort the
// others; the run as a whole fails only when no sources are registered
// or the query is empty.
type Orchestrator struct {
	sources   []Source
	byName    map[string]Source
	processor QueryProcessor
	policy    httputil.Policy
	delay     time.Duration
	log       zerolog.Logger
}

// NewOrchestrator builds an orchestrator over the given sources. It
// returns an error when no sources are registered; that is a programmer
// error, not a runtime condition.
func NewOrchestrator(sources []Source, processor QueryProcessor, cfg types.FetchConfig, log zerolog.Logger) (*Orchestrator, error) {
	if len(sources) == 0 {
		return nil, fmt.Errorf("no sources registered")
	}
	byName := make(map[string]Source, len(sources))
	for _, s := range sources {
		byName[s.Name()] = s
	}
	if processor == nil {
		processor = ClassicProcessor{}
	}
	return &Orchestrator{
		sources:   sources,
		byName:    byName,
		processor: processor,
		policy:    httputil.DefaultPolicy(),
		delay:     cfg.InterSourceDelay,
		log:       log,
	}, nil
}

// SourceNames returns the registered source names in registration order.
func (o *Orchestrator) SourceNames() []string {
	names := make([]string, len(o.sources))
	for i, s := range o.sources {
		names[i] = s.Name()
	}
	return names
}

// Run dispatches the query to the requested sources (all registered
// sources when only is empty) and returns the aggregated raw records
// plus a per-source report. Records whose ID is empty after sanitization
// are discarded and counted in the report.
func (o *Orchestrator) Run(ctx context.Context, query, project string, only []string) ([]types.Record, types.FetchReport, error) {
	if query == "" {
		return nil, types.FetchReport{}, fmt.Errorf("query is empty")
	}

	report := types.FetchReport{
		Query:   query,
		Project: project,
		Started: time.Now().UTC(),
	}

	requested := only
	if len(requested) == 0 {
		requested = o.SourceNames()
	}

	var all []types.Record
	first := true
	for _, name := range requested {
		src, ok := o.byName[name]
		if !ok {
			o.log.Warn().Str("source", name).Msg("unknown source, skipping")
			report.Sources = append(report.Sources, types.SourceReport{
				Source: name,
				Status: types.SourceSkipped,
			})
			continue
		}

		if !first && o.delay > 0 {
			time.Sleep(o.delay)
		}
		first = false

		processed := o.processor.Process(ctx, query, name)
		o.log.Info().Str("source", name).Str("query", processed).Msg("fetching")

		var records []types.Record
		err := o.policy.Do(ctx, func(ctx context.Context) error {
			var fetchErr error
			records, fetchErr = src.Fetch(ctx, processed, project)
			return fetchErr
		})
		if err != nil {
			o.log.Error().Str("source", name).Err(err).Msg("fetch failed")
			report.Sources = append(report.Sources, types.SourceReport{
				Source: name,
				Status: types.SourceFailed,
				Error:  err.Error(),
			})
			continue
		}

		kept := records[:0:0]
		for _, r := range records {
			if types.SanitizeID(r.ID) == "" {
				o.log.Warn().Str("source", name).Str("title", r.Title).Msg("discarding record with empty sanitized id")
				report.Discarded++
				continue
			}
			kept = append(kept, r)
		}

		o.log.Info().Str("source", name).Int("count", len(kept)).Msg("fetched")
		report.Sources = append(report.Sources, types.SourceReport{
			Source: name,
			Status: types.SourceSuccess,
			Count:  len(kept),
		})
		all = append(all, kept...)
	}

	report.Finished = time.Now().UTC()
	report.Total = len(all)
	return all, report, nil
}
