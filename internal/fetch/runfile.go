// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package fetch

import (
	"fmt"
	"os"
	"path/filepath"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/litpipe/internal/store"
	"github.com/pdiddy/litpipe/pkg/types"
)

// RunFile is the on-disk record of one fetch run: the query as issued,
// the per-source report, and totals. Written after every run so the
// operator can inspect which sources contributed or broke without
// re-running the fetch.
type RunFile struct {
	Report types.FetchReport `yaml:"report"`
}

// WriteRunFile saves the report under data/<project>/runs/, named by the
// run's start timestamp.
func WriteRunFile(dataDir, project string, report types.FetchReport) (string, error) {
	dir := store.RunsDirPath(dataDir, project)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating runs directory: %w", err)
	}

	path := filepath.Join(dir, report.Started.Format("20060102T150405")+".yaml")
	data, err := yaml.Marshal(&RunFile{Report: report})
	if err != nil {
		return "", fmt.Errorf("marshaling run file: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("writing run file: %w", err)
	}
	return path, nil
}

// ReadRunFile loads a previously saved run file.
func ReadRunFile(path string) (*RunFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading run file: %w", err)
	}
	var rf RunFile
	if err := yaml.Unmarshal(data, &rf); err != nil {
		return nil, fmt.Errorf("parsing run file: %w", err)
	}
	return &rf, nil
}
