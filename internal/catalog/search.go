// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package catalog

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/pdiddy/litpipe/pkg/types"
)

// SearchOptions holds parameters for catalog queries.
type SearchOptions struct {
	// Query is the FTS5 full-text search string over title, summary,
	// and full_text.
	Query string

	// Project filters to one project.
	Project string

	// Source filters by the originating fetch source.
	Source string

	// MinSimilarity keeps only records at or above the given semantic
	// similarity score.
	MinSimilarity float64

	// MaxResults limits result count. Zero uses the store default.
	MaxResults int
}

// IsEmpty reports whether the query has no search terms or filters.
func (o SearchOptions) IsEmpty() bool {
	return o.Query == "" && o.Project == "" && o.Source == "" && o.MinSimilarity == 0
}

// SearchResult is a cataloged record with its FTS rank. Rank is zero for
// structured-only queries.
type SearchResult struct {
	Project string
	Record  types.Record
	Rank    float64
}

// Search queries the catalog with optional full-text search and
// structured filters. Full-text queries are ranked by relevance;
// structured-only queries are sorted by project and id.
func (s *Store) Search(ctx context.Context, opts SearchOptions) ([]SearchResult, error) {
	maxResults := opts.MaxResults
	if maxResults <= 0 {
		maxResults = s.maxResults
	}

	var (
		qb     strings.Builder
		args   []any
		useFTS = opts.Query != ""
	)

	const columns = `r.project, r.id, r.title, r.authors, r.published, r.summary,
		r.source, r.link, r.doi, r.pmid, r.paper_id, r.semantic_similarity,
		r.fulltext_status, r.fulltext_type, r.fulltext_path, r.fetch_date`

	if useFTS {
		qb.WriteString(`SELECT ` + columns + `, records_fts.rank
			FROM records_fts
			JOIN records r ON r.rowid = records_fts.rowid
			WHERE records_fts MATCH ?`)
		args = append(args, opts.Query)
	} else {
		qb.WriteString(`SELECT ` + columns + `, 0 AS rank
			FROM records r
			WHERE 1=1`)
	}

	if opts.Project != "" {
		qb.WriteString(` AND r.project = ?`)
		args = append(args, opts.Project)
	}
	if opts.Source != "" {
		qb.WriteString(` AND r.source = ?`)
		args = append(args, opts.Source)
	}
	if opts.MinSimilarity > 0 {
		qb.WriteString(` AND r.semantic_similarity >= ?`)
		args = append(args, opts.MinSimilarity)
	}

	if useFTS {
		qb.WriteString(` ORDER BY records_fts.rank`)
	} else {
		qb.WriteString(` ORDER BY r.project, r.id`)
	}

	qb.WriteString(` LIMIT ?`)
	args = append(args, maxResults)

	rows, err := s.db.QueryContext(ctx, qb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("querying catalog: %w", err)
	}
	defer rows.Close()

	var results []SearchResult
	for rows.Next() {
		var (
			sr          SearchResult
			authorsJSON sql.NullString
		)
		if err := rows.Scan(
			&sr.Project, &sr.Record.ID, &sr.Record.Title, &authorsJSON,
			&sr.Record.Published, &sr.Record.Summary, &sr.Record.Source,
			&sr.Record.Link, &sr.Record.DOI, &sr.Record.PMID, &sr.Record.PaperID,
			&sr.Record.SemanticSimilarity, &sr.Record.FulltextStatus,
			&sr.Record.FulltextType, &sr.Record.FulltextPath, &sr.Record.FetchDate,
			&sr.Rank,
		); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}
		if authorsJSON.Valid {
			json.Unmarshal([]byte(authorsJSON.String), &sr.Record.Authors)
		}
		results = append(results, sr)
	}
	return results, rows.Err()
}
