// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package fetch

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/rs/zerolog"

	"github.com/pdiddy/litpipe/internal/store"
	"github.com/pdiddy/litpipe/pkg/types"
)

func sourceCfg(t *testing.T) types.FetchConfig {
	t.Helper()
	cfg := testFetchCfg()
	cfg.DataDir = t.TempDir()
	return cfg
}

// --- arXiv ---

const arxivFeedXML = `<?xml version="1.0" encoding="UTF-8"?>
<feed xmlns="http://www.w3.org/2005/Atom">
  <entry>
    <id>http://arxiv.org/abs/2301.07041v1</id>
    <title> Attention Is All You Need </title>
    <summary> A transformer paper. </summary>
    <published>2023-01-17T00:00:00Z</published>
    <author><name>A. Vaswani</name></author>
    <author><name>N. Shazeer</name></author>
  </entry>
  <entry>
    <id>http://example.org/not-an-arxiv-id</id>
    <title>Broken entry</title>
  </entry>
</feed>`

func TestArxivFetch(t *testing.T) {
	var captured *http.Request
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured = r
		fmt.Fprint(w, arxivFeedXML)
	}))
	defer ts.Close()

	old := arxivAPIBase
	arxivAPIBase = ts.URL
	defer func() { arxivAPIBase = old }()

	cfg := sourceCfg(t)
	cfg.MaxResults = 5
	s := &ArxivSource{Client: ts.Client(), Cfg: cfg, Log: zerolog.Nop()}

	records, err := s.Fetch(context.Background(), "attention transformers", "p1")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("records = %d, want 1 (entry without arXiv id skipped)", len(records))
	}

	r := records[0]
	if r.ID != "2301.07041v1" {
		t.Errorf("ID = %q, want versioned arXiv id", r.ID)
	}
	if r.Link != "https://arxiv.org/abs/2301.07041v1" {
		t.Errorf("Link = %q", r.Link)
	}
	if r.PDFURL != "https://arxiv.org/pdf/2301.07041v1" {
		t.Errorf("PDFURL = %q", r.PDFURL)
	}
	if r.Title != "Attention Is All You Need" {
		t.Errorf("Title = %q, want trimmed title", r.Title)
	}
	if len(r.Authors) != 2 || r.Authors[0] != "A. Vaswani" {
		t.Errorf("Authors = %v", r.Authors)
	}
	if r.Source != "arxiv" {
		t.Errorf("Source = %q", r.Source)
	}
	if r.FetchDate == "" {
		t.Error("FetchDate not set")
	}

	q := captured.URL.Query()
	if got := q.Get("max_results"); got != "5" {
		t.Errorf("max_results = %q, want 5", got)
	}

	// Side-effect persistence.
	persisted, err := store.ReadRecords(store.SourceMetadataPath(cfg.DataDir, "p1", "arxiv"))
	if err != nil {
		t.Fatalf("reading persisted records: %v", err)
	}
	if len(persisted) != 1 {
		t.Errorf("persisted = %d, want 1", len(persisted))
	}
}

func TestArxivFetchHTTPError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer ts.Close()

	old := arxivAPIBase
	arxivAPIBase = ts.URL
	defer func() { arxivAPIBase = old }()

	s := &ArxivSource{Client: ts.Client(), Cfg: sourceCfg(t), Log: zerolog.Nop()}
	if _, err := s.Fetch(context.Background(), "q", "p1"); err == nil {
		t.Error("expected error for HTTP 503")
	}
}

// --- PubMed ---

const esearchXML = `<?xml version="1.0"?>
<eSearchResult><IdList><Id>36000001</Id><Id>36000002</Id></IdList></eSearchResult>`

const efetchXML = `<?xml version="1.0"?>
<PubmedArticleSet>
  <PubmedArticle>
    <MedlineCitation>
      <PMID>36000001</PMID>
      <Article>
        <ArticleTitle>CRISPR advances</ArticleTitle>
        <Abstract><AbstractText>Gene editing progress.</AbstractText></Abstract>
        <AuthorList>
          <Author><LastName>Doudna</LastName><Initials>JA</Initials></Author>
        </AuthorList>
        <Journal><JournalIssue><PubDate><Year>2023</Year><Month>04</Month></PubDate></JournalIssue></Journal>
        <ELocationID EIdType="doi">10.1000/crispr.1</ELocationID>
      </Article>
    </MedlineCitation>
  </PubmedArticle>
  <PubmedArticle>
    <MedlineCitation>
      <PMID>36000002</PMID>
      <Article>
        <ArticleTitle>No abstract here</ArticleTitle>
        <Journal><JournalIssue><PubDate><Year>2022</Year></PubDate></JournalIssue></Journal>
      </Article>
    </MedlineCitation>
  </PubmedArticle>
</PubmedArticleSet>`

func TestPubmedFetch(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/esearch.fcgi":
			if r.URL.Query().Get("email") == "" {
				w.WriteHeader(http.StatusBadRequest)
				return
			}
			fmt.Fprint(w, esearchXML)
		case r.URL.Path == "/efetch.fcgi":
			fmt.Fprint(w, efetchXML)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer ts.Close()

	old := eutilsAPIBase
	eutilsAPIBase = ts.URL
	defer func() { eutilsAPIBase = old }()

	cfg := sourceCfg(t)
	cfg.PubmedEmail = "dev@example.org"
	s := &PubmedSource{Client: ts.Client(), Cfg: cfg, Log: zerolog.Nop()}

	records, err := s.Fetch(context.Background(), "crispr", "p1")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("records = %d, want 2", len(records))
	}

	r := records[0]
	if r.ID != "36000001" || r.PMID != "36000001" {
		t.Errorf("identifiers = %q/%q, want PMID", r.ID, r.PMID)
	}
	if r.Link != "https://pubmed.ncbi.nlm.nih.gov/36000001/" {
		t.Errorf("Link = %q", r.Link)
	}
	if r.DOI != "10.1000/crispr.1" {
		t.Errorf("DOI = %q", r.DOI)
	}
	if r.Published != "2023-04" {
		t.Errorf("Published = %q, want 2023-04", r.Published)
	}
	if len(r.Authors) != 1 || r.Authors[0] != "Doudna JA" {
		t.Errorf("Authors = %v", r.Authors)
	}
	if records[1].Summary != "No abstract available" {
		t.Errorf("placeholder summary = %q", records[1].Summary)
	}
}

func TestPubmedFetchRequiresEmail(t *testing.T) {
	s := &PubmedSource{Client: http.DefaultClient, Cfg: sourceCfg(t), Log: zerolog.Nop()}
	if _, err := s.Fetch(context.Background(), "q", "p1"); err == nil {
		t.Error("expected error without configured email")
	}
}

// --- Semantic Scholar ---

const semanticJSON = `{
  "total": 2,
  "data": [
    {
      "paperId": "p100",
      "title": "Open paper",
      "abstract": "About things.",
      "year": 2021,
      "url": "https://www.semanticscholar.org/paper/p100",
      "citationCount": 42,
      "isOpenAccess": true,
      "authors": [{"name": "J. Doe"}],
      "externalIds": {"DOI": "10.5/open", "PMID": "123"}
    },
    {
      "paperId": "p200",
      "title": "",
      "abstract": "",
      "year": 0,
      "url": "https://www.semanticscholar.org/paper/p200",
      "isOpenAccess": false,
      "externalIds": {}
    }
  ]
}`

func TestSemanticScholarFetch(t *testing.T) {
	var captured *http.Request
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured = r
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, semanticJSON)
	}))
	defer ts.Close()

	old := semanticAPIBase
	semanticAPIBase = ts.URL
	defer func() { semanticAPIBase = old }()

	cfg := sourceCfg(t)
	cfg.SemanticScholarAPIKey = "sekrit"
	s := &SemanticScholarSource{Client: ts.Client(), Cfg: cfg, Log: zerolog.Nop()}

	records, err := s.Fetch(context.Background(), "open science", "p1")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("records = %d, want 2", len(records))
	}

	first := records[0]
	if first.ID != "10.5/open" {
		t.Errorf("ID = %q, want the DOI", first.ID)
	}
	if first.PMID != "123" || first.PaperID != "p100" {
		t.Errorf("identifiers = %+v", first)
	}
	if first.CitationCount == nil || *first.CitationCount != 42 {
		t.Errorf("CitationCount = %v", first.CitationCount)
	}
	if first.Paywalled == nil || *first.Paywalled {
		t.Error("open access paper marked paywalled")
	}
	if first.Published != "2021" {
		t.Errorf("Published = %q", first.Published)
	}

	second := records[1]
	if second.ID != "p200" {
		t.Errorf("ID = %q, want paperId fallback", second.ID)
	}
	if second.Title != "No title available" || second.Summary != "No abstract available" {
		t.Errorf("placeholders = %q / %q", second.Title, second.Summary)
	}
	if second.Paywalled == nil || !*second.Paywalled {
		t.Error("closed paper not marked paywalled")
	}

	if captured.Header.Get("x-api-key") != "sekrit" {
		t.Error("API key header not sent")
	}
}

// --- Google Custom Search ---

const customSearchJSON = `{
  "items": [
    {"title": "Result A", "link": "https://site.example/a", "snippet": "About A", "displayLink": "site.example"},
    {"title": "No link", "link": "", "snippet": "dropped"}
  ]
}`

func TestWebSearchFetch(t *testing.T) {
	var captured *http.Request
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured = r
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, customSearchJSON)
	}))
	defer ts.Close()

	old := customSearchAPIBase
	customSearchAPIBase = ts.URL
	defer func() { customSearchAPIBase = old }()

	cfg := sourceCfg(t)
	cfg.GoogleAPIKey = "key"
	cfg.GoogleCSEID = "cse"
	s := &WebSearchSource{Client: ts.Client(), Cfg: cfg, Log: zerolog.Nop()}

	records, err := s.Fetch(context.Background(), "golang pipelines", "p1")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("records = %d, want 1 (item without link dropped)", len(records))
	}

	r := records[0]
	if r.ID != linkHashID("https://site.example/a") {
		t.Errorf("ID = %q, want link hash", r.ID)
	}
	if r.Published != "Unknown" {
		t.Errorf("Published = %q, want Unknown", r.Published)
	}
	if r.DisplayLink != "site.example" {
		t.Errorf("DisplayLink = %q", r.DisplayLink)
	}

	q := captured.URL.Query()
	if q.Get("key") != "key" || q.Get("cx") != "cse" {
		t.Errorf("credentials not sent: %v", q)
	}
}

func TestWebSearchFetchRequiresCredentials(t *testing.T) {
	s := &WebSearchSource{Client: http.DefaultClient, Cfg: sourceCfg(t), Log: zerolog.Nop()}
	if _, err := s.Fetch(context.Background(), "q", "p1"); err == nil {
		t.Error("expected error without API key and CSE id")
	}
}

func TestLinkHashIDStable(t *testing.T) {
	a := linkHashID("https://site.example/a")
	b := linkHashID("https://site.example/a")
	c := linkHashID("https://site.example/b")
	if a != b {
		t.Error("hash not stable for equal links")
	}
	if a == c {
		t.Error("hash collision for different links")
	}
}

// --- RSS ---

const rssXML = `<?xml version="1.0"?>
<rss version="2.0">
  <channel>
    <title>Tech Feed</title>
    <item>
      <title>Robotics breakthrough</title>
      <link>https://feed.example/robotics</link>
      <description>New robotics research</description>
      <pubDate>Mon, 02 Jan 2023 15:04:05 -0700</pubDate>
    </item>
    <item>
      <title>Cooking tips</title>
      <link>https://feed.example/cooking</link>
      <description>Unrelated content</description>
    </item>
  </channel>
</rss>`

func TestRSSFetch(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, rssXML)
	}))
	defer ts.Close()

	cfg := sourceCfg(t)
	s := &RSSSource{
		Client:    ts.Client(),
		Cfg:       cfg,
		Log:       zerolog.Nop(),
		Feeds:     map[string][]string{"technology": {ts.URL}},
		General:   ts.URL + "/general",
		FeedDelay: 1,
	}

	records, err := s.Fetch(context.Background(), "robotics technology", "p1")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("records = %d, want 1 (non-matching item excluded)", len(records))
	}

	r := records[0]
	if r.Title != "Robotics breakthrough" {
		t.Errorf("Title = %q", r.Title)
	}
	if r.Published != "2023-01-02T15:04:05-07:00" {
		t.Errorf("Published = %q, want RFC3339 conversion", r.Published)
	}
	if r.Source != "rss" {
		t.Errorf("Source = %q", r.Source)
	}
}

func TestRSSSelectFeeds(t *testing.T) {
	feeds := map[string][]string{
		"technology": {"https://t1", "https://t2"},
		"health":     {"https://h1"},
	}
	selected := selectFeeds(feeds, "https://general", []string{"technology", "news"})
	if len(selected) != 3 {
		t.Fatalf("selected = %v, want t1, t2, general", selected)
	}
	if selected[len(selected)-1] != "https://general" {
		t.Errorf("general feed should be appended last, got %v", selected)
	}
}

func TestRSSFetchEmptyQuery(t *testing.T) {
	s := &RSSSource{Client: http.DefaultClient, Cfg: sourceCfg(t), Log: zerolog.Nop()}
	if _, err := s.Fetch(context.Background(), "   ", "p1"); err == nil {
		t.Error("expected error for empty query")
	}
}

// --- run file ---

func TestRunFileRoundTrip(t *testing.T) {
	dataDir := t.TempDir()
	report := types.FetchReport{
		Query:   "robotics",
		Project: "p1",
		Sources: []types.SourceReport{
			{Source: "arxiv", Status: types.SourceSuccess, Count: 2},
			{Source: "pubmed", Status: types.SourceFailed, Error: "boom"},
		},
		Total: 2,
	}
	report.Started = report.Started.UTC()

	path, err := WriteRunFile(dataDir, "p1", report)
	if err != nil {
		t.Fatalf("WriteRunFile: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("run file missing: %v", err)
	}

	rf, err := ReadRunFile(path)
	if err != nil {
		t.Fatalf("ReadRunFile: %v", err)
	}
	if rf.Report.Query != "robotics" || len(rf.Report.Sources) != 2 {
		t.Errorf("round trip = %+v", rf.Report)
	}
	if rf.Report.Sources[1].Error != "boom" {
		t.Errorf("source error lost: %+v", rf.Report.Sources[1])
	}
}
