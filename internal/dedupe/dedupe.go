// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package dedupe consolidates per-source record files into one unique
// set per project. Identity is resolved by a strict priority order of
// identifier fields; the first occurrence of an identifier wins and
// later duplicates are dropped. Records with no resolvable identifier
// cannot be deduplicated safely and are excluded rather than kept.
package dedupe

import (
	"crypto/sha256"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rs/zerolog"

	"github.com/pdiddy/litpipe/internal/store"
	"github.com/pdiddy/litpipe/pkg/types"
)

// accessor reads one candidate identifier field from a record. The
// ordered list below replaces the original's duck-typed field probing
// with explicit accessors evaluated in sequence with early exit.
type accessor struct {
	field     string
	normalize bool
	get       func(types.Record) string
}

// accessors is the identifier priority order. DOI, PMID, and paperId
// are stable cross-source identifiers; pdf_url and link vary by URL
// formatting and are normalized before hashing to reduce false
// negatives from trivially different URLs.
var accessors = []accessor{
	{field: "doi", get: func(r types.Record) string { return r.DOI }},
	{field: "pmid", get: func(r types.Record) string { return r.PMID }},
	{field: "paperId", get: func(r types.Record) string { return r.PaperID }},
	{field: "pdf_url", normalize: true, get: func(r types.Record) string { return r.PDFURL }},
	{field: "id", get: func(r types.Record) string { return r.ID }},
	{field: "link", normalize: true, get: func(r types.Record) string { return r.Link }},
}

// Identifier returns the record's deduplication identifier: the first
// non-empty field in priority order, URL fields normalized. The second
// return value is false when no field resolves.
func Identifier(r types.Record) (string, bool) {
	for _, a := range accessors {
		value := a.get(r)
		if value == "" {
			continue
		}
		if a.normalize {
			value = normalizeURL(value)
		}
		return value, true
	}
	return "", false
}

// normalizeURL strips the scheme and replaces slashes with underscores
// so "http://x/y" and "https://x/y/" hash close together.
func normalizeURL(raw string) string {
	raw = strings.TrimPrefix(raw, "https://")
	raw = strings.TrimPrefix(raw, "http://")
	return strings.ReplaceAll(raw, "/", "_")
}

// hashIdentifier maps an identifier value to the key stored in the
// seen set.
func hashIdentifier(id string) string {
	sum := sha256.Sum256([]byte(id))
	return fmt.Sprintf("%x", sum[:16])
}

// Result summarizes one deduplication pass.
type Result struct {
	Unique       []types.Record
	Duplicates   int
	Unidentified int
	SkippedFiles int
}

// Deduplicate scans every source directory under data/<project>
// (excluding the consolidated-output and fulltext directories), merges
// the records into one unique set, and persists the set to
// data/<project>/deduplicated/metadata.json.
//
// Source directories and files are sorted by name before processing so
// "first occurrence wins" is reproducible across filesystems; in-file
// order is preserved. A project with no source directories yields an
// empty list, not an error; a malformed file is logged and skipped.
func Deduplicate(dataDir, project string, log zerolog.Logger) (Result, error) {
	projectDir := store.ProjectDir(dataDir, project)

	entries, err := os.ReadDir(projectDir)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{}, nil
		}
		return Result{}, fmt.Errorf("reading project directory %s: %w", projectDir, err)
	}

	var sources []string
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		name := e.Name()
		if name == store.DedupDir || name == store.FulltextDir || name == store.RunsDir {
			continue
		}
		sources = append(sources, name)
	}
	sort.Strings(sources)

	var result Result
	seen := make(map[string]bool)

	for _, source := range sources {
		sourceDir := filepath.Join(projectDir, source)
		files, err := os.ReadDir(sourceDir)
		if err != nil {
			log.Warn().Str("dir", sourceDir).Err(err).Msg("reading source directory failed, skipping")
			continue
		}

		var names []string
		for _, f := range files {
			if !f.IsDir() && strings.HasSuffix(f.Name(), ".json") {
				names = append(names, f.Name())
			}
		}
		sort.Strings(names)

		for _, name := range names {
			path := filepath.Join(sourceDir, name)
			records, err := store.ReadRecords(path)
			if err != nil {
				log.Warn().Str("file", path).Err(err).Msg("malformed record file, skipping")
				result.SkippedFiles++
				continue
			}

			for _, r := range records {
				if types.SanitizeID(r.ID) == "" {
					log.Warn().Str("file", path).Str("title", r.Title).Msg("dropping record with empty sanitized id")
					result.Unidentified++
					continue
				}

				id, ok := Identifier(r)
				if !ok {
					log.Warn().Str("file", path).Str("title", r.Title).Msg("no resolvable identifier, dropping record")
					result.Unidentified++
					continue
				}

				key := hashIdentifier(id)
				if seen[key] {
					log.Debug().Str("source", source).Str("title", r.Title).Msg("duplicate dropped")
					result.Duplicates++
					continue
				}
				seen[key] = true
				result.Unique = append(result.Unique, r)
			}
		}
	}

	if err := store.WriteRecords(store.DedupPath(dataDir, project), result.Unique); err != nil {
		return result, fmt.Errorf("writing deduplicated set: %w", err)
	}

	log.Info().Int("unique", len(result.Unique)).Int("duplicates", result.Duplicates).
		Int("unidentified", result.Unidentified).Msg("deduplication complete")
	return result, nil
}
