package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Ashfaaq98/secwatch-console/internal/record"
)

// Store represents the SQLite storage implementation
type Store struct {
	db *sql.DB
}

// Stored is one persisted record with its bookkeeping columns.
type Stored struct {
	ID        string        `json:"id"`
	Kind      string        `json:"kind"`
	Timestamp time.Time     `json:"timestamp"`
	Payload   record.Record `json:"payload"`
	CreatedAt time.Time     `json:"created_at"`
}

// SaveResult reports a batch insert.
type SaveResult struct {
	Saved   int
	Skipped int
}

// NewStore creates a new SQLite store instance
func NewStore(dbPath string) (*Store, error) {
	if dir := filepath.Dir(dbPath); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory %s: %w", dir, err)
		}
	}

	db, err := sql.Open(sqliteDriver, sqliteDSN(dbPath))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if dbPath == ":memory:" {
		// every pooled connection would otherwise get its own empty database
		db.SetMaxOpenConns(1)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS records (
			id TEXT NOT NULL,
			kind TEXT NOT NULL,
			ts INTEGER NOT NULL,
			payload TEXT NOT NULL,
			created_at INTEGER NOT NULL,
			PRIMARY KEY (kind, id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_records_kind_ts ON records(kind, ts)`,
	}
	for _, m := range migrations {
		if _, err := s.db.Exec(m); err != nil {
			return fmt.Errorf("failed to execute migration: %w", err)
		}
	}
	return s.setupIngestLog()
}

// SaveRecords upserts recs under kind in one transaction. Each record's
// timestamp is read from timeField; records without a parsable timestamp are
// skipped since no date range could ever select them. The record id is taken
// from its "id" field, or generated.
func (s *Store) SaveRecords(ctx context.Context, kind, timeField string, recs record.Collection) (SaveResult, error) {
	var res SaveResult
	if strings.TrimSpace(kind) == "" {
		return res, errors.New("record kind is required")
	}
	if len(recs) == 0 {
		return res, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return res, fmt.Errorf("begin tx: %w", err)
	}
	rollback := func(e error) (SaveResult, error) {
		_ = tx.Rollback()
		return SaveResult{}, e
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT OR REPLACE INTO records (id, kind, ts, payload, created_at) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return rollback(fmt.Errorf("prepare insert: %w", err))
	}
	defer stmt.Close()

	now := time.Now().Unix()
	for _, r := range recs {
		ts, err := r.Time(timeField)
		if err != nil {
			res.Skipped++
			continue
		}
		id, ok := r.String("id")
		if !ok || id == "" {
			id = uuid.New().String()
		}
		payload, err := json.Marshal(r)
		if err != nil {
			return rollback(fmt.Errorf("marshal record %s: %w", id, err))
		}
		if _, err := stmt.ExecContext(ctx, id, kind, ts.UnixMilli(), string(payload), now); err != nil {
			return rollback(fmt.Errorf("failed to save record %s: %w", id, err))
		}
		res.Saved++
	}

	if err := tx.Commit(); err != nil {
		return SaveResult{}, fmt.Errorf("commit tx: %w", err)
	}
	return res, nil
}

// RecordsInRange returns the payloads of kind with from <= ts <= to, newest
// first. A zero bound is open. limit <= 0 returns every row.
func (s *Store) RecordsInRange(ctx context.Context, kind string, from, to time.Time, limit int) (record.Collection, error) {
	rows, err := s.queryRange(ctx, kind, from, to, limit)
	if err != nil {
		return nil, err
	}
	out := make(record.Collection, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.Payload)
	}
	return out, nil
}

// ListRecords is RecordsInRange with bookkeeping columns.
func (s *Store) ListRecords(ctx context.Context, kind string, from, to time.Time, limit int) ([]Stored, error) {
	return s.queryRange(ctx, kind, from, to, limit)
}

func (s *Store) queryRange(ctx context.Context, kind string, from, to time.Time, limit int) ([]Stored, error) {
	base := `SELECT id, kind, ts, payload, created_at FROM records WHERE kind = ?`
	args := []interface{}{kind}
	if !from.IsZero() {
		base += " AND ts >= ?"
		args = append(args, from.UnixMilli())
	}
	if !to.IsZero() {
		base += " AND ts <= ?"
		args = append(args, to.UnixMilli())
	}
	base += " ORDER BY ts DESC, id ASC"
	if limit > 0 {
		base += fmt.Sprintf(" LIMIT %d", limit)
	}

	rows, err := s.db.QueryContext(ctx, base, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query records: %w", err)
	}
	defer rows.Close()

	var out []Stored
	for rows.Next() {
		var st Stored
		var ts, createdAt int64
		var payload string
		if err := rows.Scan(&st.ID, &st.Kind, &ts, &payload, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}
		if err := json.Unmarshal([]byte(payload), &st.Payload); err != nil {
			return nil, fmt.Errorf("%w: stored record %s/%s: %v", record.ErrMalformedRecord, st.Kind, st.ID, err)
		}
		st.Timestamp = time.UnixMilli(ts).UTC()
		st.CreatedAt = time.Unix(createdAt, 0)
		out = append(out, st)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate records: %w", err)
	}
	return out, nil
}

// CountByKind returns the number of stored records per kind.
func (s *Store) CountByKind(ctx context.Context) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT kind, COUNT(1) FROM records GROUP BY kind`)
	if err != nil {
		return nil, fmt.Errorf("failed to count records: %w", err)
	}
	defer rows.Close()
	out := map[string]int{}
	for rows.Next() {
		var kind string
		var n int
		if err := rows.Scan(&kind, &n); err != nil {
			return nil, fmt.Errorf("failed to scan count: %w", err)
		}
		out[kind] = n
	}
	return out, rows.Err()
}

// DeleteRecords removes every record of the given kinds, or all records when
// none are given, and returns the number removed.
func (s *Store) DeleteRecords(ctx context.Context, kinds ...string) (int64, error) {
	q := `DELETE FROM records`
	args := make([]interface{}, 0, len(kinds))
	if len(kinds) > 0 {
		q += " WHERE kind IN (" + strings.TrimRight(strings.Repeat("?,", len(kinds)), ",") + ")"
		for _, k := range kinds {
			args = append(args, k)
		}
	}
	res, err := s.db.ExecContext(ctx, q, args...)
	if err != nil {
		return 0, fmt.Errorf("delete records: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// Vacuum reclaims free pages after large deletes.
func (s *Store) Vacuum(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "VACUUM"); err != nil {
		return fmt.Errorf("vacuum: %w", err)
	}
	return nil
}
