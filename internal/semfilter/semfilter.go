// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package semfilter filters deduplicated records by publication year and
// by semantic similarity between the original query and each record's
// title + summary. It is a strict threshold filter: callers needing a
// ranking must sort the output themselves.
package semfilter

import (
	"context"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/pdiddy/litpipe/pkg/types"
)

// Embedder produces a fixed-length vector for a text using the named
// model. A failed embedding excludes the record being scored; it never
// aborts the whole pass.
type Embedder interface {
	EmbedText(ctx context.Context, text, model string) ([]float32, error)
}

// yearPattern extracts a leading four-digit year from the published field.
var yearPattern = regexp.MustCompile(`^(\d{4})`)

// Filter applies the year and similarity filters and returns the
// surviving records annotated with their similarity score. The query is
// embedded once; each record's title + " " + summary is embedded and
// compared by cosine similarity against the threshold.
//
// Records with no parseable year are excluded when MinYear is set, and
// records with empty title+summary are excluded unconditionally.
func Filter(ctx context.Context, records []types.Record, query string, cfg types.FilterConfig, embedder Embedder, log zerolog.Logger) ([]types.Record, error) {
	if query == "" {
		return nil, fmt.Errorf("query is empty")
	}

	queryVec, err := embedder.EmbedText(ctx, query, cfg.Embed.Model)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}

	var kept []types.Record
	for _, r := range records {
		if cfg.MinYear > 0 && !passesYear(r.Published, cfg.MinYear) {
			log.Debug().Str("id", r.ID).Str("published", r.Published).Msg("excluded by year filter")
			continue
		}

		text := strings.TrimSpace(r.Title + " " + r.Summary)
		if text == "" {
			log.Debug().Str("id", r.ID).Msg("excluded: nothing to score")
			continue
		}

		vec, err := embedder.EmbedText(ctx, text, cfg.Embed.Model)
		if err != nil {
			log.Warn().Str("id", r.ID).Err(err).Msg("embedding failed, excluding record")
			continue
		}

		score := Cosine(queryVec, vec)
		if score < cfg.MinSimilarity {
			log.Debug().Str("id", r.ID).Float64("score", score).Msg("excluded by similarity threshold")
			continue
		}

		r.SemanticSimilarity = score
		kept = append(kept, r)
	}

	log.Info().Int("in", len(records)).Int("kept", len(kept)).
		Float64("min_similarity", cfg.MinSimilarity).Msg("semantic filter complete")
	return kept, nil
}

// passesYear reports whether published carries a leading four-digit
// year at or after minYear. An unparseable published value fails the
// constraint rather than passing by default.
func passesYear(published string, minYear int) bool {
	m := yearPattern.FindStringSubmatch(strings.TrimSpace(published))
	if m == nil {
		return false
	}
	year, err := strconv.Atoi(m[1])
	if err != nil {
		return false
	}
	return year >= minYear
}

// Cosine returns the cosine similarity of two vectors, or 0 when either
// vector is empty, zero, or the lengths differ.
func Cosine(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
