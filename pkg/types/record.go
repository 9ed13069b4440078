// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package types defines shared data structures for the litpipe pipeline:
// the normalized metadata record exchanged between stages, the per-stage
// configuration structs, and the fetch report.
package types

import "strings"

// FulltextStatus records the outcome of the full-text acquisition chain
// for a single record. Failure statuses name the strategy that just
// failed while the chain is still running; a finished record carries
// either "success" or "not_found".
type FulltextStatus string

const (
	FulltextSuccess         FulltextStatus = "success"
	FulltextPDFURLFailed    FulltextStatus = "pdf_url_failed"
	FulltextUnpaywallFailed FulltextStatus = "unpaywall_failed"
	FulltextPMCFailed       FulltextStatus = "pmc_failed"
	FulltextHTMLFailed      FulltextStatus = "html_failed"
	FulltextNotFound        FulltextStatus = "not_found"
)

// FulltextType identifies the format of an acquired full-text body.
type FulltextType string

const (
	FulltextPDF  FulltextType = "pdf"
	FulltextHTML FulltextType = "html"
)

// Record is the canonical normalized representation of one fetched
// document (paper, web page, blog post). Every stage of the pipeline
// exchanges Records; the JSON field names match the persisted layout
// under data/<project>/ so files written by one stage round-trip
// through the next.
type Record struct {
	// ID uniquely identifies the record: a DOI, a source-native ID, or a
	// hash of the canonical link. Must be non-empty after SanitizeID.
	ID string `json:"id"`

	// Title is the document title. Required, non-empty after trimming.
	Title string `json:"title"`

	// Authors lists author names in source order. May be empty.
	Authors []string `json:"authors"`

	// Published is an ISO date or bare year. May be empty or "Unknown".
	Published string `json:"published"`

	// Summary is an abstract, description, or snippet. May be a placeholder.
	Summary string `json:"summary"`

	// Source names the fetcher that produced the record (e.g. "arxiv").
	Source string `json:"source"`

	// Link is the canonical URL of the document's landing page.
	Link string `json:"link"`

	// PDFURL is a direct PDF link when the source provides one.
	PDFURL string `json:"pdf_url,omitempty"`

	// DOI, PMID, and PaperID are stable cross-source identifiers used for
	// deduplication and full-text lookup.
	DOI     string `json:"doi,omitempty"`
	PMID    string `json:"pmid,omitempty"`
	PaperID string `json:"paperId,omitempty"`

	// CitationCount is the citation count when the source reports one.
	CitationCount *int `json:"citationCount,omitempty"`

	// DisplayLink is the display URL or domain, set by web search sources.
	DisplayLink string `json:"displayLink,omitempty"`

	// Tags lists keywords or categories associated with the work.
	Tags []string `json:"tags,omitempty"`

	// FetchDate is the ISO timestamp assigned once at fetch time and
	// never modified downstream.
	FetchDate string `json:"fetch_date,omitempty"`

	// Paywalled reports whether the content sits behind a paywall, when
	// the source can tell.
	Paywalled *bool `json:"paywalled,omitempty"`

	// Extra carries source-specific data the pipeline never interprets.
	Extra map[string]any `json:"extra,omitempty"`

	// SemanticSimilarity is added by the semantic filter stage.
	SemanticSimilarity float64 `json:"semantic_similarity,omitempty"`

	// The full-text stage adds the fields below; they do not exist on a
	// record before that stage runs.
	FulltextPath   string         `json:"fulltext_path,omitempty"`
	FulltextStatus FulltextStatus `json:"fulltext_status,omitempty"`
	FulltextType   FulltextType   `json:"fulltext_type,omitempty"`
	FulltextPDFURL string         `json:"fulltext_pdf_url,omitempty"`
	FullText       string         `json:"full_text,omitempty"`
}

// SanitizeID strips every character outside [A-Za-z0-9_.-] from id.
// Records whose ID is empty after sanitization are discarded before
// entering any stage.
func SanitizeID(id string) string {
	var b strings.Builder
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '_', r == '.', r == '-':
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Valid reports whether the record satisfies the minimum invariants for
// entering the pipeline: a non-empty sanitized ID and a non-empty title.
func (r Record) Valid() bool {
	return SanitizeID(r.ID) != "" && strings.TrimSpace(r.Title) != ""
}
