package api

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ashfaaq98/secwatch-console/internal/client"
	"github.com/Ashfaaq98/secwatch-console/internal/daterange"
	"github.com/Ashfaaq98/secwatch-console/internal/facet"
	"github.com/Ashfaaq98/secwatch-console/internal/ingest"
	"github.com/Ashfaaq98/secwatch-console/internal/record"
	"github.com/Ashfaaq98/secwatch-console/internal/store"
)

var quiet = log.New(io.Discard, "", 0)

func newServer(t *testing.T, opts Options) (*Server, *store.Store) {
	t.Helper()
	st, err := store.NewStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	views := facet.DefaultViews()
	opts.Logger = quiet
	sink := ingest.NewSink(st, nil, views, quiet)
	return New(st, sink, nil, views, opts), st
}

func seedAlerts(t *testing.T, st *store.Store) {
	t.Helper()
	_, err := st.SaveRecords(context.Background(), "alerts", "timestamp", record.Collection{
		{"id": "1", "rule_name": "New Device", "timestamp": "2024-01-01T10:00:00Z"},
		{"id": "2", "rule_name": "Imp Travel", "timestamp": "2024-01-03T10:00:00Z"},
		{"id": "3", "rule_name": "New Country", "timestamp": "2024-02-01T10:00:00Z"},
	})
	require.NoError(t, err)
}

func get(t *testing.T, h http.Handler, target, token string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func rangeQuery(from, to string) string {
	return "?" + url.Values{"start": {from}, "end": {to}}.Encode()
}

func TestCollectionRequiresRange(t *testing.T) {
	s, _ := newServer(t, Options{})
	rec := get(t, s.Handler(), "/api/alerts/", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = get(t, s.Handler(), "/api/alerts/"+rangeQuery("2024-01-05T00:00:00Z", "2024-01-01T00:00:00Z"), "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = get(t, s.Handler(), "/api/nope/"+rangeQuery("2024-01-01T00:00:00Z", "2024-01-05T00:00:00Z"), "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCollectionReturnsRangeNewestFirst(t *testing.T) {
	s, st := newServer(t, Options{})
	seedAlerts(t, st)

	rec := get(t, s.Handler(), "/api/alerts/"+rangeQuery("2024-01-01T00:00:00Z", "2024-01-31T00:00:00Z"), "")
	require.Equal(t, http.StatusOK, rec.Code)
	var got []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Len(t, got, 2)
	assert.Equal(t, "2", got[0]["id"])
	assert.Equal(t, "1", got[1]["id"])
}

func TestLegacyAlertsAreStringEncoded(t *testing.T) {
	s, st := newServer(t, Options{})
	seedAlerts(t, st)

	rec := get(t, s.Handler(), "/alerts/get_alerts"+rangeQuery("2024-01-01T00:00:00Z", "2024-03-01T00:00:00Z"), "")
	require.Equal(t, http.StatusOK, rec.Code)
	var inner string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &inner))
	assert.True(t, strings.HasPrefix(inner, "["))

	recs, err := record.Decode(rec.Body.Bytes())
	require.NoError(t, err)
	assert.Len(t, recs, 3)
}

func TestAuthAndHealth(t *testing.T) {
	s, _ := newServer(t, Options{Token: "t0ken"})
	q := rangeQuery("2024-01-01T00:00:00Z", "2024-01-02T00:00:00Z")

	assert.Equal(t, http.StatusUnauthorized, get(t, s.Handler(), "/api/users/"+q, "").Code)
	assert.Equal(t, http.StatusUnauthorized, get(t, s.Handler(), "/api/users/"+q, "wrong").Code)
	assert.Equal(t, http.StatusOK, get(t, s.Handler(), "/api/users/"+q, "t0ken").Code)

	rec := get(t, s.Handler(), "/healthz", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)
}

func TestRateLimit(t *testing.T) {
	s, _ := newServer(t, Options{RPS: 1, Burst: 1})
	q := rangeQuery("2024-01-01T00:00:00Z", "2024-01-02T00:00:00Z")
	assert.Equal(t, http.StatusOK, get(t, s.Handler(), "/api/logins/"+q, "").Code)
	assert.Equal(t, http.StatusTooManyRequests, get(t, s.Handler(), "/api/logins/"+q, "").Code)
}

func TestIngestJSONAndJSONL(t *testing.T) {
	s, st := newServer(t, Options{})

	post := func(kind, ct, body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/ingest/"+kind, strings.NewReader(body))
		req.Header.Set("Content-Type", ct)
		rec := httptest.NewRecorder()
		s.Handler().ServeHTTP(rec, req)
		return rec
	}

	rec := post("logins", "application/json", `[{"id":"l1","timestamp":"2024-01-01T00:00:00Z"},{"id":"l2"}]`)
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	var resp ingestResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.Ack)
	assert.Equal(t, 1, resp.Saved)
	assert.Equal(t, 1, resp.Skipped)

	rec = post("users", "application/x-ndjson", "{\"id\":\"u1\",\"last_login\":\"2024-01-01T00:00:00Z\"}\n{\"id\":\"u2\",\"last_login\":\"2024-01-02T00:00:00Z\"}\n")
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())

	assert.Equal(t, http.StatusBadRequest, post("users", "application/json", "{oops").Code)
	assert.Equal(t, http.StatusBadRequest, post("users", "application/json", "  ").Code)
	assert.Equal(t, http.StatusNotFound, post("notes", "application/json", "{}").Code)

	counts, err := st.CountByKind(context.Background())
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"logins": 1, "users": 2}, counts)

	metrics := get(t, s.Handler(), "/metrics", "")
	require.Equal(t, http.StatusOK, metrics.Code)
	assert.Contains(t, metrics.Body.String(), `secwatch_records_ingested_total{kind="users"} 2`)
}

func TestClientAgainstServer(t *testing.T) {
	s, st := newServer(t, Options{Token: "abc"})
	seedAlerts(t, st)
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	c, err := client.New(client.Options{BaseURL: ts.URL, Token: "abc", Logger: quiet})
	require.NoError(t, err)
	recs, err := c.Fetcher(facet.DefaultViews()[facet.ViewAlerts].Endpoint).Fetch(context.Background(), daterange.Range{
		From: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		To:   time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "New Device", recs[0]["rule_name"])
}

func TestStartAndShutdown(t *testing.T) {
	s, _ := newServer(t, Options{Bind: "127.0.0.1:0"})
	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, s.Start(ctx))
	assert.Error(t, s.Start(ctx), "second start fails")
	cancel()
}
