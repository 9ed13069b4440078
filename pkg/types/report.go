// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// SourceStatus is the per-source outcome recorded by the fetch orchestrator.
type SourceStatus string

const (
	// SourceSuccess means the source returned at least zero records
	// without error.
	SourceSuccess SourceStatus = "success"

	// SourceFailed means the source returned an error; other sources
	// are unaffected.
	SourceFailed SourceStatus = "failed"

	// SourceSkipped means the source name was not registered.
	SourceSkipped SourceStatus = "skipped"
)

// SourceReport summarizes one source's contribution to a fetch run.
type SourceReport struct {
	Source string       `json:"source" yaml:"source"`
	Status SourceStatus `json:"status" yaml:"status"`
	Count  int          `json:"count" yaml:"count"`
	Error  string       `json:"error,omitempty" yaml:"error,omitempty"`
}

// FetchReport aggregates the per-source reports for one orchestrator run.
type FetchReport struct {
	Query     string         `json:"query" yaml:"query"`
	Project   string         `json:"project" yaml:"project"`
	Started   time.Time      `json:"started" yaml:"started"`
	Finished  time.Time      `json:"finished" yaml:"finished"`
	Sources   []SourceReport `json:"sources" yaml:"sources"`
	Total     int            `json:"total" yaml:"total"`
	Discarded int            `json:"discarded,omitempty" yaml:"discarded,omitempty"`
}

// Succeeded returns the number of sources that completed without error.
func (r FetchReport) Succeeded() int {
	n := 0
	for _, s := range r.Sources {
		if s.Status == SourceSuccess {
			n++
		}
	}
	return n
}

// AllFailed reports whether every attempted (non-skipped) source failed.
// A run with no attempted sources counts as failed.
func (r FetchReport) AllFailed() bool {
	return r.Succeeded() == 0
}
