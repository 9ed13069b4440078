// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "testing"

func TestSanitizeID(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "2301.07041", "2301.07041"},
		{"doi slash stripped", "10.1234/abc.5", "10.1234abc.5"},
		{"spaces stripped", "a b c", "abc"},
		{"underscore and dash kept", "a_b-c", "a_b-c"},
		{"only junk", "/:# ", ""},
		{"empty", "", ""},
		{"unicode stripped", "пример-1", "-1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SanitizeID(tt.in); got != tt.want {
				t.Errorf("SanitizeID(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestRecordValid(t *testing.T) {
	tests := []struct {
		name string
		rec  Record
		want bool
	}{
		{"complete", Record{ID: "x1", Title: "T"}, true},
		{"missing id", Record{Title: "T"}, false},
		{"id sanitizes to empty", Record{ID: "//", Title: "T"}, false},
		{"missing title", Record{ID: "x1"}, false},
		{"whitespace title", Record{ID: "x1", Title: "   "}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.rec.Valid(); got != tt.want {
				t.Errorf("Valid() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestFetchReportCounts(t *testing.T) {
	report := FetchReport{
		Sources: []SourceReport{
			{Source: "a", Status: SourceFailed, Error: "boom"},
			{Source: "b", Status: SourceSuccess, Count: 3},
			{Source: "c", Status: SourceSkipped},
		},
	}
	if got := report.Succeeded(); got != 1 {
		t.Errorf("Succeeded() = %d, want 1", got)
	}
	if report.AllFailed() {
		t.Error("AllFailed() = true with one successful source")
	}

	report.Sources[1].Status = SourceFailed
	if !report.AllFailed() {
		t.Error("AllFailed() = false with no successful source")
	}
}
