// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package fetch

import (
	"context"
	"encoding/xml"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/pdiddy/litpipe/internal/store"
	"github.com/pdiddy/litpipe/pkg/types"
)

// arxivAPIBase is the arXiv search endpoint. Declared as a var so tests
// can substitute an httptest server.
var arxivAPIBase = "https://export.arxiv.org/api/query"

const (
	arxivAbsBase = "https://arxiv.org/abs/"
	arxivPDFBase = "https://arxiv.org/pdf/"
)

// ArxivSource queries the arXiv Atom API.
type ArxivSource struct {
	Client *http.Client
	Cfg    types.FetchConfig
	Log    zerolog.Logger
}

// Name returns the source identifier.
func (s *ArxivSource) Name() string { return "arxiv" }

// Fetch queries arXiv, persists the records under
// data/<project>/arxiv/metadata.json, and returns them.
func (s *ArxivSource) Fetch(ctx context.Context, query, project string) ([]types.Record, error) {
	maxResults := s.Cfg.MaxResults
	if maxResults <= 0 {
		maxResults = 20
	}

	terms := strings.Fields(query)
	if len(terms) == 0 {
		return nil, fmt.Errorf("empty arXiv query")
	}
	searchQuery := "all:" + url.QueryEscape(strings.Join(terms, " "))

	reqURL := fmt.Sprintf("%s?search_query=%s&start=0&max_results=%d&sortBy=relevance&sortOrder=descending",
		arxivAPIBase, searchQuery, maxResults)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", s.Cfg.UserAgent)

	resp, err := s.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("arXiv API request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("arXiv API returned HTTP %d", resp.StatusCode)
	}

	var feed arxivFeed
	if err := xml.NewDecoder(resp.Body).Decode(&feed); err != nil {
		return nil, fmt.Errorf("parsing arXiv response: %w", err)
	}

	fetchDate := time.Now().UTC().Format(time.RFC3339)
	var records []types.Record
	for _, entry := range feed.Entries {
		arxivID := arxivIDFromURL(entry.ID)
		if arxivID == "" {
			continue
		}

		r := types.Record{
			ID:        arxivID,
			Title:     strings.TrimSpace(entry.Title),
			Published: strings.TrimSpace(entry.Published),
			Summary:   strings.TrimSpace(entry.Summary),
			Source:    s.Name(),
			Link:      arxivAbsBase + arxivID,
			PDFURL:    arxivPDFBase + arxivID,
			FetchDate: fetchDate,
		}
		for _, a := range entry.Authors {
			r.Authors = append(r.Authors, strings.TrimSpace(a.Name))
		}
		records = append(records, r)
	}

	path := store.SourceMetadataPath(s.Cfg.DataDir, project, s.Name())
	if err := store.WriteRecords(path, records); err != nil {
		s.Log.Warn().Err(err).Str("path", path).Msg("persisting arXiv records failed")
	}
	return records, nil
}

// arXiv Atom feed XML structures.
type arxivFeed struct {
	Entries []arxivEntry `xml:"entry"`
}

type arxivEntry struct {
	ID        string        `xml:"id"`
	Title     string        `xml:"title"`
	Summary   string        `xml:"summary"`
	Published string        `xml:"published"`
	Authors   []arxivAuthor `xml:"author"`
}

type arxivAuthor struct {
	Name string `xml:"name"`
}

// arxivIDFromURL pulls the versioned arXiv ID from the entry's <id> URL
// (e.g. "http://arxiv.org/abs/2301.07041v1" -> "2301.07041v1").
func arxivIDFromURL(idURL string) string {
	const prefix = "/abs/"
	idx := strings.Index(idURL, prefix)
	if idx < 0 {
		return ""
	}
	return idURL[idx+len(prefix):]
}
