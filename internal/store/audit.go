package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// IngestEntry records one accepted batch of records.
type IngestEntry struct {
	ID       string            `json:"id"`
	Kind     string            `json:"kind"`
	Source   string            `json:"source"` // "api", "folder:<file>", "seed"
	Saved    int               `json:"saved"`
	Skipped  int               `json:"skipped"`
	Metadata map[string]string `json:"metadata,omitempty"`
	At       time.Time         `json:"at"`
}

func (s *Store) setupIngestLog() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS ingest_log (
			id TEXT PRIMARY KEY,
			kind TEXT NOT NULL,
			source TEXT NOT NULL,
			saved INTEGER NOT NULL,
			skipped INTEGER NOT NULL,
			metadata TEXT,
			at INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_ingest_log_at ON ingest_log(at)`,
		`CREATE INDEX IF NOT EXISTS idx_ingest_log_kind ON ingest_log(kind)`,
	}
	for _, m := range migrations {
		if _, err := s.db.Exec(m); err != nil {
			return fmt.Errorf("failed to execute ingest log migration: %w", err)
		}
	}
	return nil
}

// AddIngestEntry appends to the ingest log.
func (s *Store) AddIngestEntry(ctx context.Context, e IngestEntry) error {
	if e.ID == "" {
		e.ID = fmt.Sprintf("ingest_%d", time.Now().UnixNano())
	}
	if e.At.IsZero() {
		e.At = time.Now()
	}
	var meta []byte
	if e.Metadata != nil {
		var err error
		meta, err = json.Marshal(e.Metadata)
		if err != nil {
			return fmt.Errorf("failed to marshal ingest metadata: %w", err)
		}
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO ingest_log (id, kind, source, saved, skipped, metadata, at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.Kind, e.Source, e.Saved, e.Skipped, string(meta), e.At.UnixMilli())
	if err != nil {
		return fmt.Errorf("failed to insert ingest entry: %w", err)
	}
	return nil
}

// IngestLog returns the most recent entries, newest first.
func (s *Store) IngestLog(ctx context.Context, limit int) ([]IngestEntry, error) {
	query := `SELECT id, kind, source, saved, skipped, metadata, at FROM ingest_log ORDER BY at DESC`
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query ingest log: %w", err)
	}
	defer rows.Close()

	var out []IngestEntry
	for rows.Next() {
		var e IngestEntry
		var meta string
		var at int64
		if err := rows.Scan(&e.ID, &e.Kind, &e.Source, &e.Saved, &e.Skipped, &meta, &at); err != nil {
			return nil, fmt.Errorf("failed to scan ingest entry: %w", err)
		}
		if meta != "" {
			if err := json.Unmarshal([]byte(meta), &e.Metadata); err != nil {
				return nil, fmt.Errorf("failed to unmarshal ingest metadata: %w", err)
			}
		}
		e.At = time.UnixMilli(at)
		out = append(out, e)
	}
	return out, rows.Err()
}

// ClearIngestLog deletes every ingest log entry.
func (s *Store) ClearIngestLog(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM ingest_log`); err != nil {
		return fmt.Errorf("clear ingest log: %w", err)
	}
	return nil
}
