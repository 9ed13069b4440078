// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package store defines the on-disk project layout that acts as the
// system of record between pipeline stages:
//
//	data/<project>/<source>/*.json                        per-source raw records
//	data/<project>/deduplicated/metadata.json             unique set
//	data/<project>/deduplicated/metadata_filtered.json    after semantic filter
//	data/<project>/deduplicated/metadata_with_fulltext.json final enriched set
//	data/<project>/fulltext/<safe_id>.{pdf,html}          downloaded bodies
//	data/<project>/runs/*.yaml                            fetch run reports
//
// No concurrent writers are assumed for a single project; overlapping
// pipeline runs for the same project require external serialization.
package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pdiddy/litpipe/pkg/types"
)

const (
	// DedupDir holds the consolidated outputs and is excluded from
	// per-source scans.
	DedupDir = "deduplicated"

	// FulltextDir holds raw downloaded PDF and HTML bodies.
	FulltextDir = "fulltext"

	// RunsDir holds fetch run reports.
	RunsDir = "runs"

	MetadataFile     = "metadata.json"
	FilteredFile     = "metadata_filtered.json"
	WithFulltextFile = "metadata_with_fulltext.json"
)

// ProjectDir returns the base directory for one project.
func ProjectDir(dataDir, project string) string {
	return filepath.Join(dataDir, project)
}

// SourceDir returns the raw-record directory for one source.
func SourceDir(dataDir, project, source string) string {
	return filepath.Join(dataDir, project, source)
}

// SourceMetadataPath returns the aggregate metadata file one source
// writes as a side effect of fetching.
func SourceMetadataPath(dataDir, project, source string) string {
	return filepath.Join(dataDir, project, source, MetadataFile)
}

// DedupPath returns the path of the deduplicated record list.
func DedupPath(dataDir, project string) string {
	return filepath.Join(dataDir, project, DedupDir, MetadataFile)
}

// FilteredPath returns the path of the semantically filtered record list.
func FilteredPath(dataDir, project string) string {
	return filepath.Join(dataDir, project, DedupDir, FilteredFile)
}

// WithFulltextPath returns the path of the final enriched record list.
func WithFulltextPath(dataDir, project string) string {
	return filepath.Join(dataDir, project, DedupDir, WithFulltextFile)
}

// FulltextDirPath returns the directory for downloaded full-text bodies.
func FulltextDirPath(dataDir, project string) string {
	return filepath.Join(dataDir, project, FulltextDir)
}

// RunsDirPath returns the directory for fetch run reports.
func RunsDirPath(dataDir, project string) string {
	return filepath.Join(dataDir, project, RunsDir)
}

// SafeID converts a record identifier into a filesystem-safe filename
// stem for fulltext bodies.
func SafeID(id string) string {
	return strings.NewReplacer("/", "_", ":", "_").Replace(id)
}

// ReadRecords reads a JSON file containing either a list of records or a
// single record object and returns the records as a slice.
func ReadRecords(path string) ([]types.Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	var records []types.Record
	if err := json.Unmarshal(data, &records); err == nil {
		return records, nil
	}

	var single types.Record
	if err := json.Unmarshal(data, &single); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return []types.Record{single}, nil
}

// WriteRecords writes records to path as indented JSON, creating parent
// directories as needed. An empty slice is written as [], not null.
func WriteRecords(path string, records []types.Record) error {
	if records == nil {
		records = []types.Record{}
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating directory for %s: %w", path, err)
	}
	data, err := json.MarshalIndent(records, "", "    ")
	if err != nil {
		return fmt.Errorf("marshaling records: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}
