// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package semfilter

import (
	"context"
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/pdiddy/litpipe/pkg/types"
)

// fakeEmbedder returns canned vectors keyed by substring match, so tests
// control similarity without a model server.
type fakeEmbedder struct {
	queryVec []float32
	vectors  map[string][]float32
	failOn   string
}

func (f *fakeEmbedder) EmbedText(_ context.Context, text, _ string) ([]float32, error) {
	if f.failOn != "" && strings.Contains(text, f.failOn) {
		return nil, errors.New("embedding backend down")
	}
	for key, vec := range f.vectors {
		if strings.Contains(text, key) {
			return vec, nil
		}
	}
	return f.queryVec, nil
}

func filterCfg(minSim float64, minYear int) types.FilterConfig {
	return types.FilterConfig{
		MinSimilarity: minSim,
		MinYear:       minYear,
		Embed:         types.EmbedConfig{Model: "test-embed"},
	}
}

// --- Cosine ---

func TestCosine(t *testing.T) {
	tests := []struct {
		name string
		a, b []float32
		want float64
	}{
		{"identical", []float32{1, 0}, []float32{1, 0}, 1},
		{"orthogonal", []float32{1, 0}, []float32{0, 1}, 0},
		{"opposite", []float32{1, 0}, []float32{-1, 0}, -1},
		{"length mismatch", []float32{1, 0}, []float32{1}, 0},
		{"zero vector", []float32{0, 0}, []float32{1, 0}, 0},
		{"empty", nil, nil, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Cosine(tt.a, tt.b)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("Cosine() = %f, want %f", got, tt.want)
			}
		})
	}
}

// --- Year gate ---

func TestPassesYear(t *testing.T) {
	tests := []struct {
		published string
		minYear   int
		want      bool
	}{
		{"2023-05-01", 2020, true},
		{"2019-12-31", 2020, false},
		{"2020", 2020, true},
		{"Unknown", 2020, false},
		{"", 2020, false},
		{"May 2023", 2020, false},
	}
	for _, tt := range tests {
		if got := passesYear(tt.published, tt.minYear); got != tt.want {
			t.Errorf("passesYear(%q, %d) = %v, want %v", tt.published, tt.minYear, got, tt.want)
		}
	}
}

// --- Filter ---

func TestFilterByThreshold(t *testing.T) {
	emb := &fakeEmbedder{
		queryVec: []float32{1, 0},
		vectors: map[string][]float32{
			"relevant":  {1, 0},
			"unrelated": {0, 1},
		},
	}
	records := []types.Record{
		{ID: "r1", Title: "relevant work", Published: "2023"},
		{ID: "r2", Title: "unrelated topic", Published: "2023"},
	}

	kept, err := Filter(context.Background(), records, "query", filterCfg(0.5, 0), emb, zerolog.Nop())
	if err != nil {
		t.Fatalf("Filter: %v", err)
	}
	if len(kept) != 1 || kept[0].ID != "r1" {
		t.Fatalf("kept = %+v, want only r1", kept)
	}
	if math.Abs(kept[0].SemanticSimilarity-1) > 1e-6 {
		t.Errorf("score = %f, want 1", kept[0].SemanticSimilarity)
	}
}

func TestFilterZeroThresholdPassesScored(t *testing.T) {
	emb := &fakeEmbedder{
		queryVec: []float32{1, 0},
		vectors:  map[string][]float32{"work": {1, 1}},
	}
	records := []types.Record{
		{ID: "r1", Title: "some work", Published: "2023"},
	}

	kept, err := Filter(context.Background(), records, "query", filterCfg(0, 0), emb, zerolog.Nop())
	if err != nil {
		t.Fatalf("Filter: %v", err)
	}
	if len(kept) != 1 {
		t.Fatalf("kept = %d, want 1", len(kept))
	}
	if kept[0].SemanticSimilarity == 0 {
		t.Error("score should still be annotated at zero threshold")
	}
}

func TestFilterYearExclusion(t *testing.T) {
	emb := &fakeEmbedder{queryVec: []float32{1, 0}}
	records := []types.Record{
		{ID: "old", Title: "a", Published: "2015-01-01"},
		{ID: "new", Title: "b", Published: "2023-01-01"},
		{ID: "unparseable", Title: "c", Published: "circa 2022"},
	}

	kept, err := Filter(context.Background(), records, "query", filterCfg(0, 2020), emb, zerolog.Nop())
	if err != nil {
		t.Fatalf("Filter: %v", err)
	}
	if len(kept) != 1 || kept[0].ID != "new" {
		t.Errorf("kept = %+v, want only new", kept)
	}
}

func TestFilterExcludesEmptyText(t *testing.T) {
	emb := &fakeEmbedder{queryVec: []float32{1, 0}}
	records := []types.Record{
		{ID: "blank", Published: "2023"},
		{ID: "ok", Title: "has text", Published: "2023"},
	}

	kept, err := Filter(context.Background(), records, "query", filterCfg(0, 0), emb, zerolog.Nop())
	if err != nil {
		t.Fatalf("Filter: %v", err)
	}
	if len(kept) != 1 || kept[0].ID != "ok" {
		t.Errorf("kept = %+v, want only ok", kept)
	}
}

func TestFilterEmbedFailureExcludesRecordOnly(t *testing.T) {
	emb := &fakeEmbedder{
		queryVec: []float32{1, 0},
		failOn:   "broken",
	}
	records := []types.Record{
		{ID: "bad", Title: "broken record", Published: "2023"},
		{ID: "good", Title: "fine record", Published: "2023"},
	}

	kept, err := Filter(context.Background(), records, "query", filterCfg(0, 0), emb, zerolog.Nop())
	if err != nil {
		t.Fatalf("Filter should not fail when one embedding fails: %v", err)
	}
	if len(kept) != 1 || kept[0].ID != "good" {
		t.Errorf("kept = %+v, want only good", kept)
	}
}

func TestFilterQueryEmbedFailureIsFatal(t *testing.T) {
	emb := &fakeEmbedder{failOn: "query text"}
	_, err := Filter(context.Background(), nil, "query text", filterCfg(0, 0), emb, zerolog.Nop())
	if err == nil {
		t.Error("expected error when the query embedding fails")
	}
}

func TestFilterEmptyQuery(t *testing.T) {
	emb := &fakeEmbedder{queryVec: []float32{1}}
	if _, err := Filter(context.Background(), nil, "", filterCfg(0, 0), emb, zerolog.Nop()); err == nil {
		t.Error("expected error for empty query")
	}
}
