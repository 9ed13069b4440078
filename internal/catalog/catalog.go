// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package catalog persists enriched records and run reports in a SQLite
// database with a full-text index. It is the built-in ingestion target
// at the end of the pipeline; external consumers can read the same file
// or query it through the CLI.
package catalog

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/pdiddy/litpipe/pkg/types"
)

const dbFile = "catalog.db"

// Store manages the catalog SQLite database.
type Store struct {
	db         *sql.DB
	maxResults int
}

// Open opens or creates the catalog database at dataDir/catalog.db and
// ensures the schema exists.
func Open(cfg types.CatalogConfig) (*Store, error) {
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	dbPath := filepath.Join(cfg.DataDir, dbFile)
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	maxResults := cfg.MaxResults
	if maxResults <= 0 {
		maxResults = 20
	}

	s := &Store{db: db, maxResults: maxResults}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return s, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS records (
			rowid INTEGER PRIMARY KEY AUTOINCREMENT,
			project TEXT NOT NULL,
			id TEXT NOT NULL,
			title TEXT,
			authors TEXT,
			published TEXT,
			summary TEXT,
			source TEXT,
			link TEXT,
			doi TEXT,
			pmid TEXT,
			paper_id TEXT,
			semantic_similarity REAL,
			fulltext_status TEXT,
			fulltext_type TEXT,
			fulltext_path TEXT,
			full_text TEXT,
			fetch_date TEXT,
			UNIQUE(project, id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_records_project ON records(project)`,
		`CREATE INDEX IF NOT EXISTS idx_records_source ON records(source)`,
		`CREATE TABLE IF NOT EXISTS runs (
			rowid INTEGER PRIMARY KEY AUTOINCREMENT,
			project TEXT NOT NULL,
			query TEXT NOT NULL,
			started TEXT NOT NULL,
			finished TEXT NOT NULL,
			total INTEGER NOT NULL,
			discarded INTEGER NOT NULL,
			sources TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_project ON runs(project)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}

	// FTS5 virtual table with triggers for sync.
	var ftsExists int
	if err := s.db.QueryRow(
		`SELECT count(*) FROM sqlite_master WHERE type='table' AND name='records_fts'`,
	).Scan(&ftsExists); err != nil {
		return fmt.Errorf("checking FTS table: %w", err)
	}

	if ftsExists == 0 {
		ftsStatements := []string{
			`CREATE VIRTUAL TABLE records_fts USING fts5(title, summary, full_text, content=records, content_rowid=rowid)`,
			`CREATE TRIGGER records_ai AFTER INSERT ON records BEGIN
				INSERT INTO records_fts(rowid, title, summary, full_text)
				VALUES (new.rowid, new.title, new.summary, new.full_text);
			END`,
			`CREATE TRIGGER records_ad AFTER DELETE ON records BEGIN
				INSERT INTO records_fts(records_fts, rowid, title, summary, full_text)
				VALUES('delete', old.rowid, old.title, old.summary, old.full_text);
			END`,
			`CREATE TRIGGER records_au AFTER UPDATE ON records BEGIN
				INSERT INTO records_fts(records_fts, rowid, title, summary, full_text)
				VALUES('delete', old.rowid, old.title, old.summary, old.full_text);
				INSERT INTO records_fts(rowid, title, summary, full_text)
				VALUES (new.rowid, new.title, new.summary, new.full_text);
			END`,
		}
		for _, stmt := range ftsStatements {
			if _, err := s.db.Exec(stmt); err != nil {
				return fmt.Errorf("creating FTS infrastructure: %w", err)
			}
		}
	}

	return nil
}

// IngestSummary holds counts from one catalog ingestion.
type IngestSummary struct {
	Ingested int
	Replaced bool
}

// Ingest replaces a project's cataloged records with the given enriched
// set in a single transaction. Re-running a pipeline over the same
// project therefore converges instead of accumulating stale rows.
func (s *Store) Ingest(ctx context.Context, project string, records []types.Record) (IngestSummary, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return IngestSummary{}, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `DELETE FROM records WHERE project = ?`, project)
	if err != nil {
		return IngestSummary{}, fmt.Errorf("clearing project records: %w", err)
	}
	replaced, _ := res.RowsAffected()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO records (project, id, title, authors, published, summary, source, link,
			doi, pmid, paper_id, semantic_similarity, fulltext_status, fulltext_type,
			fulltext_path, full_text, fetch_date)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return IngestSummary{}, fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	var summary IngestSummary
	summary.Replaced = replaced > 0

	for _, r := range records {
		authorsJSON, _ := json.Marshal(r.Authors)
		_, err := stmt.ExecContext(ctx,
			project, r.ID, r.Title, string(authorsJSON), r.Published, r.Summary,
			r.Source, r.Link, r.DOI, r.PMID, r.PaperID, r.SemanticSimilarity,
			r.FulltextStatus, r.FulltextType, r.FulltextPath, r.FullText, r.FetchDate,
		)
		if err != nil {
			return summary, fmt.Errorf("inserting record %s: %w", r.ID, err)
		}
		summary.Ingested++
	}

	if err := tx.Commit(); err != nil {
		return summary, fmt.Errorf("committing ingest: %w", err)
	}
	return summary, nil
}

// RecordRun appends a fetch report to the runs table.
func (s *Store) RecordRun(ctx context.Context, project string, report types.FetchReport) error {
	sourcesJSON, _ := json.Marshal(report.Sources)
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (project, query, started, finished, total, discarded, sources)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		project, report.Query,
		report.Started.UTC().Format(time.RFC3339),
		report.Finished.UTC().Format(time.RFC3339),
		report.Total, report.Discarded, string(sourcesJSON),
	)
	if err != nil {
		return fmt.Errorf("recording run: %w", err)
	}
	return nil
}

// Run is one row of the runs table.
type Run struct {
	Project   string
	Query     string
	Started   string
	Finished  string
	Total     int
	Discarded int
	Sources   []types.SourceReport
}

// Runs lists recorded runs, newest first, optionally filtered by project.
func (s *Store) Runs(ctx context.Context, project string) ([]Run, error) {
	query := `SELECT project, query, started, finished, total, discarded, sources
		FROM runs`
	var args []any
	if project != "" {
		query += ` WHERE project = ?`
		args = append(args, project)
	}
	query += ` ORDER BY started DESC LIMIT ?`
	args = append(args, s.maxResults)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		var sourcesJSON sql.NullString
		if err := rows.Scan(&r.Project, &r.Query, &r.Started, &r.Finished,
			&r.Total, &r.Discarded, &sourcesJSON); err != nil {
			return nil, fmt.Errorf("scanning run: %w", err)
		}
		if sourcesJSON.Valid {
			json.Unmarshal([]byte(sourcesJSON.String), &r.Sources)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}
