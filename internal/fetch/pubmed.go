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

// eutilsAPIBase is the NCBI E-utilities endpoint. Declared as a var so
// tests can substitute an httptest server.
var eutilsAPIBase = "https://eutils.ncbi.nlm.nih.gov/entrez/eutils"

const pubmedLinkBase = "https://pubmed.ncbi.nlm.nih.gov/"

// PubmedSource queries PubMed through NCBI E-utilities: an esearch call
// for PMIDs followed by an efetch call for the article records. NCBI
// requires a contact email; a missing email fails the source and the
// orchestrator records it without aborting the run.
type PubmedSource struct {
	Client *http.Client
	Cfg    types.FetchConfig
	Log    zerolog.Logger
}

// Name returns the source identifier.
func (s *PubmedSource) Name() string { return "pubmed" }

// Fetch queries PubMed, persists the records under
// data/<project>/pubmed/metadata.json, and returns them.
func (s *PubmedSource) Fetch(ctx context.Context, query, project string) ([]types.Record, error) {
	if s.Cfg.PubmedEmail == "" {
		return nil, fmt.Errorf("pubmed email not configured")
	}

	ids, err := s.search(ctx, query)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}

	records, err := s.fetchArticles(ctx, ids)
	if err != nil {
		return nil, err
	}

	path := store.SourceMetadataPath(s.Cfg.DataDir, project, s.Name())
	if err := store.WriteRecords(path, records); err != nil {
		s.Log.Warn().Err(err).Str("path", path).Msg("persisting PubMed records failed")
	}
	return records, nil
}

func (s *PubmedSource) search(ctx context.Context, query string) ([]string, error) {
	maxResults := s.Cfg.MaxResults
	if maxResults <= 0 {
		maxResults = 20
	}

	params := url.Values{
		"db":      {"pubmed"},
		"term":    {query},
		"retmax":  {fmt.Sprintf("%d", maxResults)},
		"retmode": {"xml"},
		"sort":    {"pub date"},
		"email":   {s.Cfg.PubmedEmail},
	}
	if s.Cfg.NCBIAPIKey != "" {
		params.Set("api_key", s.Cfg.NCBIAPIKey)
	}

	var result esearchResult
	if err := s.getXML(ctx, eutilsAPIBase+"/esearch.fcgi?"+params.Encode(), &result); err != nil {
		return nil, fmt.Errorf("esearch: %w", err)
	}
	return result.IDs, nil
}

func (s *PubmedSource) fetchArticles(ctx context.Context, ids []string) ([]types.Record, error) {
	params := url.Values{
		"db":      {"pubmed"},
		"id":      {strings.Join(ids, ",")},
		"retmode": {"xml"},
		"email":   {s.Cfg.PubmedEmail},
	}
	if s.Cfg.NCBIAPIKey != "" {
		params.Set("api_key", s.Cfg.NCBIAPIKey)
	}

	var set pubmedArticleSet
	if err := s.getXML(ctx, eutilsAPIBase+"/efetch.fcgi?"+params.Encode(), &set); err != nil {
		return nil, fmt.Errorf("efetch: %w", err)
	}

	fetchDate := time.Now().UTC().Format(time.RFC3339)
	var records []types.Record
	for _, article := range set.Articles {
		pmid := strings.TrimSpace(article.Citation.PMID)
		if pmid == "" {
			continue
		}

		r := types.Record{
			ID:        pmid,
			Title:     strings.TrimSpace(article.Citation.Article.Title),
			Published: article.Citation.Article.Journal.Issue.PubDate.String(),
			Summary:   strings.TrimSpace(article.Citation.Article.Abstract.Text),
			Source:    s.Name(),
			Link:      pubmedLinkBase + pmid + "/",
			PMID:      pmid,
			FetchDate: fetchDate,
		}
		if r.Summary == "" {
			r.Summary = "No abstract available"
		}
		for _, a := range article.Citation.Article.Authors {
			name := strings.TrimSpace(a.LastName + " " + a.Initials)
			if name != "" {
				r.Authors = append(r.Authors, name)
			}
		}
		for _, el := range article.Citation.Article.ELocationIDs {
			if el.Type == "doi" {
				r.DOI = strings.TrimSpace(el.Value)
			}
		}
		records = append(records, r)
	}
	return records, nil
}

func (s *PubmedSource) getXML(ctx context.Context, reqURL string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", s.Cfg.UserAgent)

	resp, err := s.Client.Do(req)
	if err != nil {
		return fmt.Errorf("E-utilities request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("E-utilities returned HTTP %d", resp.StatusCode)
	}
	if err := xml.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("parsing E-utilities response: %w", err)
	}
	return nil
}

// E-utilities XML structures.
type esearchResult struct {
	XMLName xml.Name `xml:"eSearchResult"`
	IDs     []string `xml:"IdList>Id"`
}

type pubmedArticleSet struct {
	XMLName  xml.Name        `xml:"PubmedArticleSet"`
	Articles []pubmedArticle `xml:"PubmedArticle"`
}

type pubmedArticle struct {
	Citation medlineCitation `xml:"MedlineCitation"`
}

type medlineCitation struct {
	PMID    string        `xml:"PMID"`
	Article pubmedDetails `xml:"Article"`
}

type pubmedDetails struct {
	Title        string           `xml:"ArticleTitle"`
	Abstract     pubmedAbstract   `xml:"Abstract"`
	Authors      []pubmedAuthor   `xml:"AuthorList>Author"`
	Journal      pubmedJournal    `xml:"Journal"`
	ELocationIDs []pubmedLocation `xml:"ELocationID"`
}

type pubmedLocation struct {
	Type  string `xml:"EIdType,attr"`
	Value string `xml:",chardata"`
}

type pubmedAbstract struct {
	Text string `xml:"AbstractText"`
}

type pubmedAuthor struct {
	LastName string `xml:"LastName"`
	Initials string `xml:"Initials"`
}

type pubmedJournal struct {
	Issue pubmedIssue `xml:"JournalIssue"`
}

type pubmedIssue struct {
	PubDate pubmedDate `xml:"PubDate"`
}

type pubmedDate struct {
	Year  string `xml:"Year"`
	Month string `xml:"Month"`
	Day   string `xml:"Day"`
}

// String renders the date as "YYYY-MM-DD", "YYYY-MM", "YYYY", or "".
func (d pubmedDate) String() string {
	parts := []string{}
	for _, p := range []string{d.Year, d.Month, d.Day} {
		p = strings.TrimSpace(p)
		if p == "" {
			break
		}
		parts = append(parts, p)
	}
	return strings.Join(parts, "-")
}
