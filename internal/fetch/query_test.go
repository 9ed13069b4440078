// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package fetch

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
)

func TestNormalizeQuery(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Deep Learning", "deep learning"},
		{"CRISPR-Cas9!", "crispr cas9"},
		{"  spaced   out  ", "spaced out"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := normalizeQuery(tt.in); got != tt.want {
			t.Errorf("normalizeQuery(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestPreserveOperators(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain text normalized", "Deep Learning Robots", "deep learning robots"},
		{"and uppercased", "cats and dogs", "cats AND dogs"},
		{"mixed case or", "cats oR dogs", "cats OR dogs"},
		{"not preserved", "cats NOT dogs", "cats NOT dogs"},
		{"quoted phrase verbatim", `"Deep Learning" robotics`, `"Deep Learning" robotics`},
		{"phrase with operators", `"A and B" AND c`, `"A and B" AND c`},
		{"operator inside word untouched", "android handling", "android handling"},
		{"punctuation stripped", "neural-networks, 2023!", "neural networks 2023"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := preserveOperators(tt.in); got != tt.want {
				t.Errorf("preserveOperators(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestClassicProcessorBySource(t *testing.T) {
	p := ClassicProcessor{}
	ctx := context.Background()

	// Academic sources get the operator-preserving rewrite.
	if got := p.Process(ctx, "cats and dogs", "pubmed"); got != "cats AND dogs" {
		t.Errorf("pubmed rewrite = %q", got)
	}
	// Web sources are only trimmed.
	if got := p.Process(ctx, "  cats and dogs  ", "websearch"); got != "cats and dogs" {
		t.Errorf("websearch rewrite = %q", got)
	}
	if got := p.Process(ctx, "cats and dogs", "rss"); got != "cats and dogs" {
		t.Errorf("rss rewrite = %q", got)
	}
}

// --- LLM processor fallback ---

type mockRewriter struct {
	out string
	err error
}

func (m *mockRewriter) Rewrite(_ context.Context, _, _ string) (string, error) {
	return m.out, m.err
}

func TestLLMProcessorUsesRewrite(t *testing.T) {
	p := NewLLMProcessor(&mockRewriter{out: "rewritten query"}, zerolog.Nop())
	if got := p.Process(context.Background(), "original", "arxiv"); got != "rewritten query" {
		t.Errorf("Process = %q, want rewritten query", got)
	}
}

func TestLLMProcessorFallsBackOnError(t *testing.T) {
	p := NewLLMProcessor(&mockRewriter{err: errors.New("model down")}, zerolog.Nop())
	if got := p.Process(context.Background(), "cats and dogs", "arxiv"); got != "cats AND dogs" {
		t.Errorf("fallback rewrite = %q, want classic result", got)
	}
}

func TestLLMProcessorFallsBackOnEmptyRewrite(t *testing.T) {
	p := NewLLMProcessor(&mockRewriter{out: "   \n"}, zerolog.Nop())
	if got := p.Process(context.Background(), "cats and dogs", "websearch"); got != "cats and dogs" {
		t.Errorf("fallback rewrite = %q", got)
	}
}
