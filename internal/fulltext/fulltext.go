// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package fulltext retrieves document bodies for filtered records. Each
// record walks a fixed strategy chain: the record's own pdf_url, then an
// Unpaywall lookup by DOI, then the PubMed Central PDF endpoint by PMID,
// then the landing page as HTML. The first strategy that yields a body
// wins; failures move the chain along and are recorded in the record's
// fulltext_status. A record for which every applicable strategy fails
// ends as not_found, which is terminal but never fatal to the run.
package fulltext

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/pdiddy/litpipe/internal/store"
	"github.com/pdiddy/litpipe/pkg/types"
)

// API endpoints, declared as vars so tests can substitute httptest servers.
var (
	unpaywallAPIBase = "https://api.unpaywall.org/v2"
	pmcArticleBase   = "https://www.ncbi.nlm.nih.gov/pmc/articles"
)

// Extractor turns a downloaded body file into plain text.
type Extractor interface {
	Extract(path string) (string, error)
}

// Processor runs the fulltext strategy chain over a project's filtered
// records. PDFText may be nil when no container runtime is available;
// PDF bodies are then stored without extracted text.
type Processor struct {
	Client   *http.Client
	Cfg      types.FulltextConfig
	Log      zerolog.Logger
	HTMLText Extractor
	PDFText  Extractor
}

// Summary counts record outcomes for one fulltext pass.
type Summary struct {
	Success  int
	Failed   int
	NotFound int
}

// Run reads data/<project>/deduplicated/metadata_filtered.json, resolves
// full text for every record, saves bodies under data/<project>/fulltext/,
// and writes the annotated set to metadata_with_fulltext.json. Records are
// processed at a fixed interval as a politeness delay toward the upstream
// services.
func (p *Processor) Run(ctx context.Context, project string) (Summary, error) {
	records, err := store.ReadRecords(store.FilteredPath(p.Cfg.DataDir, project))
	if err != nil {
		return Summary{}, fmt.Errorf("reading filtered records: %w", err)
	}

	bodyDir := store.FulltextDirPath(p.Cfg.DataDir, project)
	if err := os.MkdirAll(bodyDir, 0o755); err != nil {
		return Summary{}, fmt.Errorf("creating fulltext directory: %w", err)
	}

	delay := p.Cfg.RecordDelay
	if delay <= 0 {
		delay = time.Second
	}
	limiter := rate.NewLimiter(rate.Every(delay), 1)

	var summary Summary
	for i := range records {
		if err := limiter.Wait(ctx); err != nil {
			return summary, err
		}
		attempted := p.resolve(ctx, &records[i], bodyDir)

		switch {
		case records[i].FulltextStatus == types.FulltextSuccess:
			summary.Success++
		case attempted:
			summary.Failed++
		default:
			summary.NotFound++
		}
	}

	if err := store.WriteRecords(store.WithFulltextPath(p.Cfg.DataDir, project), records); err != nil {
		return summary, fmt.Errorf("writing annotated records: %w", err)
	}

	p.Log.Info().Int("success", summary.Success).Int("failed", summary.Failed).
		Int("not_found", summary.NotFound).Msg("fulltext pass complete")
	return summary, nil
}

// resolve walks the strategy chain for one record, mutating its fulltext
// fields in place. Intermediate failure statuses mark the strategy that
// just failed while the chain continues; once the chain is exhausted the
// status is always not_found. Returns whether any strategy was attempted.
func (p *Processor) resolve(ctx context.Context, r *types.Record, bodyDir string) bool {
	safeID := store.SafeID(r.ID)
	attempted := false

	if r.PDFURL != "" {
		attempted = true
		if p.fetchPDF(ctx, r, r.PDFURL, bodyDir, safeID) {
			return attempted
		}
		r.FulltextStatus = types.FulltextPDFURLFailed
	}

	if r.DOI != "" {
		if p.Cfg.UnpaywallEmail == "" {
			p.Log.Debug().Str("id", r.ID).Msg("unpaywall email not configured, skipping DOI lookup")
		} else {
			attempted = true
			oaURL, err := p.unpaywallPDFURL(ctx, r.DOI)
			if err == nil && oaURL != "" && p.fetchPDF(ctx, r, oaURL, bodyDir, safeID) {
				return attempted
			}
			if err != nil {
				p.Log.Warn().Str("id", r.ID).Err(err).Msg("unpaywall lookup failed")
			}
			r.FulltextStatus = types.FulltextUnpaywallFailed
		}
	}

	if r.PMID != "" {
		attempted = true
		pmcURL := fmt.Sprintf("%s/PMC%s/pdf/", pmcArticleBase, r.PMID)
		if p.fetchPDF(ctx, r, pmcURL, bodyDir, safeID) {
			return attempted
		}
		r.FulltextStatus = types.FulltextPMCFailed
	}

	if r.Link != "" {
		attempted = true
		if p.fetchHTML(ctx, r, r.Link, bodyDir, safeID) {
			return attempted
		}
		r.FulltextStatus = types.FulltextHTMLFailed
	}

	p.Log.Debug().Str("id", r.ID).Str("last_failure", string(r.FulltextStatus)).Msg("no full text resolved")
	r.FulltextStatus = types.FulltextNotFound
	return attempted
}

// fetchPDF downloads srcURL expecting a PDF body. On success it fills the
// record's fulltext fields and extracts text when a PDF extractor is
// configured. Returns false on any failure so the chain can continue.
func (p *Processor) fetchPDF(ctx context.Context, r *types.Record, srcURL, bodyDir, safeID string) bool {
	path := filepath.Join(bodyDir, safeID+".pdf")
	if err := p.download(ctx, srcURL, path, "application/pdf"); err != nil {
		p.Log.Warn().Str("id", r.ID).Str("url", srcURL).Err(err).Msg("pdf download failed")
		return false
	}

	r.FulltextStatus = types.FulltextSuccess
	r.FulltextType = types.FulltextPDF
	r.FulltextPath = path
	r.FulltextPDFURL = srcURL

	if p.PDFText == nil {
		return true
	}
	text, err := p.PDFText.Extract(path)
	if err != nil {
		p.Log.Warn().Str("id", r.ID).Err(err).Msg("pdf text extraction failed")
		return true
	}
	r.FullText = strings.TrimSpace(text)
	return true
}

// fetchHTML downloads srcURL expecting an HTML body and extracts its text.
func (p *Processor) fetchHTML(ctx context.Context, r *types.Record, srcURL, bodyDir, safeID string) bool {
	path := filepath.Join(bodyDir, safeID+".html")
	if err := p.download(ctx, srcURL, path, "text/html"); err != nil {
		p.Log.Warn().Str("id", r.ID).Str("url", srcURL).Err(err).Msg("html download failed")
		return false
	}

	r.FulltextStatus = types.FulltextSuccess
	r.FulltextType = types.FulltextHTML
	r.FulltextPath = path

	if p.HTMLText == nil {
		return true
	}
	text, err := p.HTMLText.Extract(path)
	if err != nil {
		p.Log.Warn().Str("id", r.ID).Err(err).Msg("html text extraction failed")
		return true
	}
	r.FullText = strings.TrimSpace(text)
	return true
}

// download fetches srcURL to destPath, rejecting responses whose
// Content-Type does not match wantType. The body lands in a temp file
// first and is renamed into place so a failed download never leaves a
// partial body behind.
func (p *Processor) download(ctx context.Context, srcURL, destPath, wantType string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srcURL, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", p.Cfg.UserAgent)
	req.Header.Set("Accept", wantType)

	resp, err := p.Client.Do(req)
	if err != nil {
		return fmt.Errorf("HTTP request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("HTTP %d from %s", resp.StatusCode, srcURL)
	}

	mediaType, _, err := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	if err != nil || mediaType != wantType {
		return fmt.Errorf("unexpected content type %q, want %s", resp.Header.Get("Content-Type"), wantType)
	}

	tmpFile, err := os.CreateTemp(filepath.Dir(destPath), ".fulltext-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	_, copyErr := io.Copy(tmpFile, resp.Body)
	closeErr := tmpFile.Close()
	if copyErr != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("writing download: %w", copyErr)
	}
	if closeErr != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("closing temp file: %w", closeErr)
	}

	if err := os.Rename(tmpPath, destPath); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("renaming temp file: %w", err)
	}
	return nil
}

// Unpaywall API JSON structures.
type unpaywallResponse struct {
	BestOALocation *unpaywallLocation `json:"best_oa_location"`
}

type unpaywallLocation struct {
	URLForPDF string `json:"url_for_pdf"`
}

// unpaywallPDFURL asks Unpaywall for the best open-access PDF location
// of a DOI. An empty return with nil error means the work has no known
// open-access PDF.
func (p *Processor) unpaywallPDFURL(ctx context.Context, doi string) (string, error) {
	apiURL := fmt.Sprintf("%s/%s?email=%s",
		unpaywallAPIBase, url.PathEscape(doi), url.QueryEscape(p.Cfg.UnpaywallEmail))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL, nil)
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", p.Cfg.UserAgent)

	resp, err := p.Client.Do(req)
	if err != nil {
		return "", fmt.Errorf("Unpaywall API request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("Unpaywall API returned HTTP %d", resp.StatusCode)
	}

	var up unpaywallResponse
	if err := json.NewDecoder(resp.Body).Decode(&up); err != nil {
		return "", fmt.Errorf("parsing Unpaywall response: %w", err)
	}
	if up.BestOALocation == nil {
		return "", nil
	}
	return up.BestOALocation.URLForPDF, nil
}
