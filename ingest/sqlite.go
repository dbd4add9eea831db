package ingest

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// SQLiteSource reads and writes page records in a SQLite database
type SQLiteSource struct {
	db *sql.DB
}

// OpenSQLite opens or creates the page database at path
func OpenSQLite(path string) (*SQLiteSource, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// one writer at a time
	db.SetMaxOpenConns(1)

	s := &SQLiteSource{db: db}
	if err := s.ensureSchema(context.Background()); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteSource) ensureSchema(ctx context.Context) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS pages (
  id TEXT PRIMARY KEY,
  parent_id TEXT,
  title TEXT NOT NULL DEFAULT '',
  level INTEGER,
  url TEXT NOT NULL DEFAULT '',
  position INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_pages_parent ON pages(parent_id, position);
`
	if _, err := s.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("create pages table: %w", err)
	}
	return nil
}

// Records returns every page in insertion order
func (s *SQLiteSource) Records(ctx context.Context) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT id, parent_id, title, level, url
FROM pages
ORDER BY position ASC, id ASC;
`)
	if err != nil {
		return nil, fmt.Errorf("query pages: %w", err)
	}
	defer rows.Close()

	out := []Record{}
	for rows.Next() {
		var (
			rec    Record
			parent sql.NullString
			level  sql.NullInt64
		)
		if err := rows.Scan(&rec.ID, &parent, &rec.Label, &level, &rec.URL); err != nil {
			return nil, fmt.Errorf("scan page: %w", err)
		}
		rec.ParentID = parent.String
		if level.Valid {
			lv := int(level.Int64)
			rec.Level = &lv
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate pages: %w", err)
	}
	return out, nil
}

const upsertPage = `
INSERT INTO pages (id, parent_id, title, level, url, position)
VALUES (?, ?, ?, ?, ?, (SELECT COALESCE(MAX(position) + 1, 0) FROM pages))
ON CONFLICT(id) DO UPDATE SET
  parent_id = excluded.parent_id,
  title = excluded.title,
  level = excluded.level,
  url = excluded.url;
`

// Upsert inserts a page or updates it in place. New pages are appended
// after the existing ones; updated pages keep their position.
func (s *SQLiteSource) Upsert(ctx context.Context, rec Record) error {
	if _, err := s.db.ExecContext(ctx, upsertPage, upsertArgs(rec)...); err != nil {
		return fmt.Errorf("upsert page %s: %w", rec.ID, err)
	}
	return nil
}

// Import upserts all records in one transaction
func (s *SQLiteSource) Import(ctx context.Context, records []Record) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin import: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, upsertPage)
	if err != nil {
		return fmt.Errorf("prepare upsert: %w", err)
	}
	defer stmt.Close()

	for _, rec := range records {
		if rec.ID == "" {
			continue
		}
		if _, err := stmt.ExecContext(ctx, upsertArgs(rec)...); err != nil {
			return fmt.Errorf("upsert page %s: %w", rec.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit import: %w", err)
	}
	return nil
}

func upsertArgs(rec Record) []any {
	var parent, level any
	if rec.ParentID != "" {
		parent = rec.ParentID
	}
	if rec.Level != nil {
		level = *rec.Level
	}
	return []any{rec.ID, parent, rec.Label, level, rec.URL}
}

// Close closes the database connection
func (s *SQLiteSource) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}
