// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package llm

import (
	"context"
	"fmt"
	"strings"
)

// rewritePrompts selects the paraphrase instruction by target source.
var rewritePrompts = map[string]string{
	"pubmed":          "Rewrite the following user query for a PubMed search. Use biomedical terminology and MeSH terms where possible. Reply with the query only.\n\nUser query: %s",
	"arxiv":           "Rewrite the following user query as concise, technical keywords for an arXiv search. Reply with the query only.\n\nUser query: %s",
	"semanticscholar": "Rewrite the following user query for Semantic Scholar, using academic phrasing. Reply with the query only.\n\nUser query: %s",
	"websearch":       "Rewrite the following user query as a natural web search. Reply with the query only.\n\nUser query: %s",
}

const defaultRewritePrompt = "Rewrite the following query to optimize it for academic search. Reply with the query only.\n\nUser query: %s"

// QueryRewriter paraphrases queries per target source through the model
// server. It satisfies the fetch stage's Rewriter interface.
type QueryRewriter struct {
	client *Client
	model  string
}

// NewQueryRewriter builds a rewriter using the given generation model.
func NewQueryRewriter(client *Client, model string) *QueryRewriter {
	return &QueryRewriter{client: client, model: model}
}

// Rewrite returns the model's single-line paraphrase of query for source.
func (r *QueryRewriter) Rewrite(ctx context.Context, query, source string) (string, error) {
	tmpl, ok := rewritePrompts[source]
	if !ok {
		tmpl = defaultRewritePrompt
	}
	out, err := r.client.Generate(ctx, fmt.Sprintf(tmpl, query), r.model)
	if err != nil {
		return "", fmt.Errorf("rewriting query for %s: %w", source, err)
	}
	// Models occasionally wrap the answer in quotes or add a trailing
	// newline; keep only the first non-empty line.
	for _, line := range strings.Split(out, "\n") {
		line = strings.Trim(strings.TrimSpace(line), `"`)
		if line != "" {
			return line, nil
		}
	}
	return "", fmt.Errorf("empty rewrite for %s", source)
}
