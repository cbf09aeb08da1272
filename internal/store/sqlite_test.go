package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ashfaaq98/secwatch-console/internal/record"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestNewStore(t *testing.T) {
	s := newTestStore(t)
	var count int
	err := s.db.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name IN ('records','ingest_log')").Scan(&count)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestNewStoreCreatesDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "secwatch.db")
	s, err := NewStore(path)
	require.NoError(t, err)
	require.NoError(t, s.Close())
	assert.FileExists(t, path)
}

func TestSaveAndQueryRange(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	res, err := s.SaveRecords(ctx, "alerts", "timestamp", record.Collection{
		{"id": "a1", "rule_name": "New Device", "timestamp": "2024-01-01T08:00:00Z"},
		{"id": "a2", "rule_name": "Imp Travel", "timestamp": "2024-01-02T08:00:00Z"},
		{"id": "a3", "rule_name": "New Country", "timestamp": "2024-01-05T08:00:00Z"},
		{"rule_name": "no time"},
	})
	require.NoError(t, err)
	assert.Equal(t, SaveResult{Saved: 3, Skipped: 1}, res)

	from := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2024, 1, 2, 8, 0, 0, 0, time.UTC)
	recs, err := s.RecordsInRange(ctx, "alerts", from, to, 0)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "a2", recs[0]["id"], "newest first")
	assert.Equal(t, "a1", recs[1]["id"])

	all, err := s.RecordsInRange(ctx, "alerts", time.Time{}, time.Time{}, 1)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "a3", all[0]["id"])

	none, err := s.RecordsInRange(ctx, "users", time.Time{}, time.Time{}, 0)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestSaveRecordsUpsertsByID(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	_, err := s.SaveRecords(ctx, "users", "last_login", record.Collection{
		{"id": 7, "user": "alice", "risk_score": "Low", "last_login": "2024-01-01T00:00:00Z"},
	})
	require.NoError(t, err)
	_, err = s.SaveRecords(ctx, "users", "last_login", record.Collection{
		{"id": 7, "user": "alice", "risk_score": "High", "last_login": "2024-01-02T00:00:00Z"},
	})
	require.NoError(t, err)

	rows, err := s.ListRecords(ctx, "users", time.Time{}, time.Time{}, 0)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "7", rows[0].ID)
	assert.Equal(t, "High", rows[0].Payload["risk_score"])
	assert.Equal(t, time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), rows[0].Timestamp)
}

func TestSaveRecordsRequiresKind(t *testing.T) {
	s := newTestStore(t)
	_, err := s.SaveRecords(context.Background(), " ", "timestamp", record.Collection{{"timestamp": "2024-01-01"}})
	assert.Error(t, err)
}

func TestCountAndDelete(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	_, err := s.SaveRecords(ctx, "alerts", "timestamp", record.Collection{{"timestamp": "2024-01-01T00:00:00Z"}, {"timestamp": "2024-01-01T01:00:00Z"}})
	require.NoError(t, err)
	_, err = s.SaveRecords(ctx, "logins", "timestamp", record.Collection{{"timestamp": "2024-01-01T00:00:00Z"}})
	require.NoError(t, err)

	counts, err := s.CountByKind(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"alerts": 2, "logins": 1}, counts)

	n, err := s.DeleteRecords(ctx, "alerts")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	n, err = s.DeleteRecords(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	require.NoError(t, s.Vacuum(ctx))
}

func TestCorruptPayloadIsMalformed(t *testing.T) {
	s := newTestStore(t)
	_, err := s.db.Exec(`INSERT INTO records (id, kind, ts, payload, created_at) VALUES ('x', 'alerts', 0, '{', 0)`)
	require.NoError(t, err)
	_, err = s.RecordsInRange(context.Background(), "alerts", time.Time{}, time.Time{}, 0)
	assert.True(t, errors.Is(err, record.ErrMalformedRecord))
}

func TestIngestLog(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.AddIngestEntry(ctx, IngestEntry{Kind: "alerts", Source: "api", Saved: 3, At: time.UnixMilli(1000)}))
	require.NoError(t, s.AddIngestEntry(ctx, IngestEntry{Kind: "logins", Source: "folder:logins-1.jsonl", Saved: 1, Skipped: 2,
		Metadata: map[string]string{"ack": "abc"}, At: time.UnixMilli(2000)}))

	log, err := s.IngestLog(ctx, 10)
	require.NoError(t, err)
	require.Len(t, log, 2)
	assert.Equal(t, "logins", log[0].Kind)
	assert.Equal(t, "abc", log[0].Metadata["ack"])
	assert.Equal(t, 2, log[0].Skipped)
	assert.Nil(t, log[1].Metadata)

	require.NoError(t, s.ClearIngestLog(ctx))
	log, err = s.IngestLog(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, log)
}
