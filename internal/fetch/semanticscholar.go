// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package fetch

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/pdiddy/litpipe/internal/httputil"
	"github.com/pdiddy/litpipe/internal/store"
	"github.com/pdiddy/litpipe/pkg/types"
)

// semanticAPIBase is the Semantic Scholar paper search endpoint.
// Declared as a var so tests can substitute an httptest server.
var semanticAPIBase = "https://api.semanticscholar.org/graph/v1/paper/search"

const semanticFields = "title,authors,abstract,year,citationCount,paperId,externalIds,url,isOpenAccess"

// SemanticScholarSource queries the Semantic Scholar Graph API.
type SemanticScholarSource struct {
	Client *http.Client
	Cfg    types.FetchConfig
	Log    zerolog.Logger
}

// Name returns the source identifier.
func (s *SemanticScholarSource) Name() string { return "semanticscholar" }

// Fetch queries Semantic Scholar, persists the records under
// data/<project>/semanticscholar/metadata.json, and returns them.
func (s *SemanticScholarSource) Fetch(ctx context.Context, query, project string) ([]types.Record, error) {
	maxResults := s.Cfg.MaxResults
	if maxResults <= 0 {
		maxResults = 20
	}

	params := url.Values{
		"query":  {query},
		"limit":  {fmt.Sprintf("%d", maxResults)},
		"fields": {semanticFields},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, semanticAPIBase+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", s.Cfg.UserAgent)
	if s.Cfg.SemanticScholarAPIKey != "" {
		req.Header.Set("x-api-key", s.Cfg.SemanticScholarAPIKey)
	}

	resp, err := httputil.DoWithRetry(ctx, s.Client, req, 0)
	if err != nil {
		return nil, fmt.Errorf("Semantic Scholar API request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("Semantic Scholar API returned HTTP %d", resp.StatusCode)
	}

	var sr semanticResponse
	if err := json.NewDecoder(resp.Body).Decode(&sr); err != nil {
		return nil, fmt.Errorf("parsing Semantic Scholar response: %w", err)
	}

	fetchDate := time.Now().UTC().Format(time.RFC3339)
	var records []types.Record
	for _, paper := range sr.Data {
		r := types.Record{
			Title:     paper.Title,
			Summary:   paper.Abstract,
			Source:    s.Name(),
			Link:      paper.URL,
			DOI:       paper.ExternalIDs.DOI,
			PMID:      paper.ExternalIDs.PMID,
			PaperID:   paper.PaperID,
			FetchDate: fetchDate,
		}

		// Prefer the DOI, then the paperId, then the normalized URL.
		switch {
		case r.DOI != "":
			r.ID = r.DOI
		case r.PaperID != "":
			r.ID = r.PaperID
		default:
			r.ID = normalizeURLKey(paper.URL)
		}

		if paper.Title == "" {
			r.Title = "No title available"
		}
		if paper.Abstract == "" {
			r.Summary = "No abstract available"
		}
		if paper.Year > 0 {
			r.Published = fmt.Sprintf("%d", paper.Year)
		}
		if paper.CitationCount != nil {
			r.CitationCount = paper.CitationCount
		}
		if paper.IsOpenAccess != nil {
			paywalled := !*paper.IsOpenAccess
			r.Paywalled = &paywalled
		}
		for _, a := range paper.Authors {
			r.Authors = append(r.Authors, a.Name)
		}

		records = append(records, r)
	}

	path := store.SourceMetadataPath(s.Cfg.DataDir, project, s.Name())
	if err := store.WriteRecords(path, records); err != nil {
		s.Log.Warn().Err(err).Str("path", path).Msg("persisting Semantic Scholar records failed")
	}
	return records, nil
}

// normalizeURLKey strips the scheme and replaces slashes so trivially
// different URLs for the same resource produce the same identifier.
func normalizeURLKey(raw string) string {
	raw = strings.TrimPrefix(raw, "https://")
	raw = strings.TrimPrefix(raw, "http://")
	return strings.ReplaceAll(raw, "/", "_")
}

// Semantic Scholar API JSON structures.
type semanticResponse struct {
	Total int             `json:"total"`
	Data  []semanticPaper `json:"data"`
}

type semanticPaper struct {
	PaperID       string              `json:"paperId"`
	Title         string              `json:"title"`
	Abstract      string              `json:"abstract"`
	Year          int                 `json:"year"`
	URL           string              `json:"url"`
	CitationCount *int                `json:"citationCount"`
	IsOpenAccess  *bool               `json:"isOpenAccess"`
	Authors       []semanticAuthor    `json:"authors"`
	ExternalIDs   semanticExternalIDs `json:"externalIds"`
}

type semanticAuthor struct {
	Name string `json:"name"`
}

type semanticExternalIDs struct {
	DOI  string `json:"DOI"`
	PMID string `json:"PMID"`
}
