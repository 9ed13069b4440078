// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package fetch

import (
	"context"
	"regexp"
	"strings"

	"github.com/rs/zerolog"
)

// QueryProcessor rewrites the user query for a specific source before
// dispatch. Process never fails; an implementation that can fail must
// fall back to a deterministic rewrite internally.
type QueryProcessor interface {
	Process(ctx context.Context, query, source string) string
}

// academicSources use the operator-preserving rewrite; everything else
// gets the trim-only web rewrite.
var academicSources = map[string]bool{
	"arxiv":           true,
	"pubmed":          true,
	"semanticscholar": true,
}

// ClassicProcessor applies deterministic, source-specific rewrites:
// academic sources keep boolean operators and quoted phrases intact
// while the surrounding text is normalized; web sources are only
// trimmed.
type ClassicProcessor struct{}

// Process implements QueryProcessor.
func (ClassicProcessor) Process(_ context.Context, query, source string) string {
	if academicSources[source] {
		return preserveOperators(query)
	}
	return strings.TrimSpace(query)
}

// operatorPattern matches the parts of a query that must survive
// normalization: quoted phrases and the boolean operators AND, OR, NOT.
var operatorPattern = regexp.MustCompile(`(?i)"[^"]*"|\bAND\b|\bOR\b|\bNOT\b`)

// normalizeQuery lowercases the text, replaces non-alphanumeric runs
// with single spaces, and collapses whitespace.
func normalizeQuery(query string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(query) {
		if r >= 'a' && r <= 'z' || r >= '0' && r <= '9' {
			b.WriteRune(r)
		} else {
			b.WriteRune(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// preserveOperators normalizes a query while keeping quoted phrases
// verbatim and boolean operators uppercased, as academic search engines
// expect.
func preserveOperators(query string) string {
	var parts []string
	last := 0
	for _, loc := range operatorPattern.FindAllStringIndex(query, -1) {
		if plain := normalizeQuery(query[last:loc[0]]); plain != "" {
			parts = append(parts, plain)
		}
		match := query[loc[0]:loc[1]]
		if upper := strings.ToUpper(match); upper == "AND" || upper == "OR" || upper == "NOT" {
			parts = append(parts, upper)
		} else {
			parts = append(parts, match)
		}
		last = loc[1]
	}
	if plain := normalizeQuery(query[last:]); plain != "" {
		parts = append(parts, plain)
	}
	return strings.Join(parts, " ")
}

// Rewriter paraphrases a query for a target source using a language
// model. Implementations may fail; LLMProcessor handles the fallback.
type Rewriter interface {
	Rewrite(ctx context.Context, query, source string) (string, error)
}

// LLMProcessor rewrites queries through a Rewriter and falls back to the
// deterministic ClassicProcessor on any failure or empty rewrite. The
// fallback is mandatory: Process never returns an unusable query.
type LLMProcessor struct {
	rewriter Rewriter
	fallback ClassicProcessor
	log      zerolog.Logger
}

// NewLLMProcessor wraps the rewriter with the deterministic fallback.
func NewLLMProcessor(rewriter Rewriter, log zerolog.Logger) *LLMProcessor {
	return &LLMProcessor{rewriter: rewriter, log: log}
}

// Process implements QueryProcessor.
func (p *LLMProcessor) Process(ctx context.Context, query, source string) string {
	rewritten, err := p.rewriter.Rewrite(ctx, query, source)
	if err != nil || strings.TrimSpace(rewritten) == "" {
		p.log.Warn().Str("source", source).Err(err).Msg("LLM rewrite failed, using classic rewrite")
		return p.fallback.Process(ctx, query, source)
	}
	return strings.TrimSpace(rewritten)
}
