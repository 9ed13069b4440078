// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package fetch

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog"

	"github.com/pdiddy/litpipe/internal/store"
	"github.com/pdiddy/litpipe/pkg/types"
)

// customSearchAPIBase is the Google Custom Search endpoint. Declared as
// a var so tests can substitute an httptest server.
var customSearchAPIBase = "https://www.googleapis.com/customsearch/v1"

// WebSearchSource queries the Google Custom Search JSON API. It needs
// both an API key and a CSE id; missing credentials fail the source and
// the orchestrator records it without aborting the run.
type WebSearchSource struct {
	Client *http.Client
	Cfg    types.FetchConfig
	Log    zerolog.Logger
}

// Name returns the source identifier.
func (s *WebSearchSource) Name() string { return "websearch" }

// Fetch queries the Custom Search API, persists the records under
// data/<project>/websearch/metadata.json, and returns them.
func (s *WebSearchSource) Fetch(ctx context.Context, query, project string) ([]types.Record, error) {
	if s.Cfg.GoogleAPIKey == "" || s.Cfg.GoogleCSEID == "" {
		return nil, fmt.Errorf("google api key or cse id not configured")
	}

	params := url.Values{
		"q":   {query},
		"key": {s.Cfg.GoogleAPIKey},
		"cx":  {s.Cfg.GoogleCSEID},
		"num": {"10"},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, customSearchAPIBase+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", s.Cfg.UserAgent)

	resp, err := s.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("Custom Search API request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("Custom Search API returned HTTP %d", resp.StatusCode)
	}

	var cs customSearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&cs); err != nil {
		return nil, fmt.Errorf("parsing Custom Search response: %w", err)
	}

	fetchDate := time.Now().UTC().Format(time.RFC3339)
	var records []types.Record
	for _, item := range cs.Items {
		if item.Link == "" {
			continue
		}
		records = append(records, types.Record{
			ID:          linkHashID(item.Link),
			Title:       item.Title,
			Published:   "Unknown",
			Summary:     item.Snippet,
			Source:      s.Name(),
			Link:        item.Link,
			DisplayLink: item.DisplayLink,
			FetchDate:   fetchDate,
		})
	}

	path := store.SourceMetadataPath(s.Cfg.DataDir, project, s.Name())
	if err := store.WriteRecords(path, records); err != nil {
		s.Log.Warn().Err(err).Str("path", path).Msg("persisting web search records failed")
	}
	return records, nil
}

// linkHashID derives a stable record id from a canonical link.
func linkHashID(link string) string {
	h := sha256.Sum256([]byte(link))
	return fmt.Sprintf("web-%x", h[:8])
}

// Google Custom Search JSON structures.
type customSearchResponse struct {
	Items []customSearchItem `json:"items"`
}

type customSearchItem struct {
	Title       string `json:"title"`
	Link        string `json:"link"`
	Snippet     string `json:"snippet"`
	DisplayLink string `json:"displayLink"`
}
