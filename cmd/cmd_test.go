package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log"
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/Ashfaaq98/secwatch-console/internal/daterange"
	"github.com/Ashfaaq98/secwatch-console/internal/facet"
	"github.com/Ashfaaq98/secwatch-console/internal/ingest"
	"github.com/Ashfaaq98/secwatch-console/internal/record"
	"github.com/Ashfaaq98/secwatch-console/internal/store"
)

var now = time.Date(2024, 1, 3, 12, 0, 0, 0, time.UTC)

func TestParseSet(t *testing.T) {
	id, v, err := parseSet("alertType=NewDevice")
	require.NoError(t, err)
	assert.Equal(t, "alertType", id)
	assert.Equal(t, "NewDevice", v)

	id, v, err = parseSet("dateRange=01/01/2024 - 01/02/2024")
	require.NoError(t, err)
	assert.Equal(t, "dateRange", id)
	assert.Equal(t, "01/01/2024 - 01/02/2024", v)

	_, v, err = parseSet("search=")
	require.NoError(t, err)
	assert.Equal(t, "", v)

	_, _, err = parseSet("novalue")
	assert.Error(t, err)
	_, _, err = parseSet("=x")
	assert.Error(t, err)
}

func TestQueryRange(t *testing.T) {
	r, err := queryRange("", "", now, 7)
	require.NoError(t, err)
	assert.True(t, daterange.LastDays(now, 7).Equal(r))

	r, err = queryRange("-24h", "", now, 7)
	require.NoError(t, err)
	assert.Equal(t, now.Add(-24*time.Hour), r.From)
	assert.Equal(t, now, r.To)

	r, err = queryRange("", "2024-01-02", now, 1)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), r.To)
	assert.Equal(t, 24*time.Hour, r.Span(), "an end alone keeps the default span")

	_, err = queryRange("now", "-1h", now, 7)
	assert.ErrorIs(t, err, daterange.ErrInvertedRange)
	_, err = queryRange("yesterday-ish", "", now, 7)
	assert.Error(t, err)
}

func TestSelectFields(t *testing.T) {
	v := facet.DefaultViews()[facet.ViewUsers]
	assert.Equal(t, v.Columns, selectFields(v, nil, nil, nil))
	assert.Equal(t, []string{"user", "risk_score"}, selectFields(v, nil, []string{"user", "risk_score"}, nil))
	assert.Equal(t, []string{"user", "last_login", "risk_score"}, selectFields(v, nil, nil, []string{"logins_num", "alerts_num"}))

	recs := record.Collection{{"a": 1}}
	assert.Equal(t, []string{"a"}, selectFields(facet.View{}, recs, nil, nil))
}

func TestWriteRecordsFormats(t *testing.T) {
	v := facet.DefaultViews()[facet.ViewAlerts]
	recs := record.Collection{
		{"timestamp": "2024-01-01T10:00:00Z", "rule_name": "NewDevice", "is_vip": true, "extra": "x"},
		{"timestamp": "2024-01-02T10:00:00Z", "rule_name": "ImpossibleTravel"},
	}
	fields := []string{"timestamp", "rule_name", "is_vip"}

	var table bytes.Buffer
	require.NoError(t, writeRecords(&table, "table", v, recs, fields, nil))
	lines := strings.Split(strings.TrimSpace(table.String()), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[0], "RULE_NAME")
	assert.Contains(t, lines[1], "2024-01-01T10:00:00Z")
	assert.Contains(t, lines[1], "yes")
	assert.Contains(t, lines[2], "-")

	var js bytes.Buffer
	require.NoError(t, writeRecords(&js, "json", v, recs, fields, nil))
	var decoded []map[string]any
	require.NoError(t, json.Unmarshal(js.Bytes(), &decoded))
	require.Len(t, decoded, 2)
	assert.NotContains(t, decoded[0], "extra")
	assert.Equal(t, "NewDevice", decoded[0]["rule_name"])

	var y bytes.Buffer
	require.NoError(t, writeRecords(&y, "yaml", v, recs, fields, nil))
	var ydecoded []map[string]any
	require.NoError(t, yaml.Unmarshal(y.Bytes(), &ydecoded))
	require.Len(t, ydecoded, 2)
	assert.Equal(t, true, ydecoded[0]["is_vip"])
}

func TestMappingsRenameOutputFields(t *testing.T) {
	aliases, err := parseMappings([]string{"rule_name:type", " user : account "})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"rule_name": "type", "user": "account"}, aliases)

	_, err = parseMappings([]string{"rule_name"})
	assert.Error(t, err)
	_, err = parseMappings([]string{"rule_name:"})
	assert.Error(t, err)

	v := facet.DefaultViews()[facet.ViewAlerts]
	recs := record.Collection{{"rule_name": "NewDevice", "user": "alice"}}
	fields := []string{"rule_name", "user"}

	var js bytes.Buffer
	require.NoError(t, writeRecords(&js, "json", v, recs, fields, aliases))
	var decoded []map[string]any
	require.NoError(t, json.Unmarshal(js.Bytes(), &decoded))
	assert.Equal(t, []map[string]any{{"type": "NewDevice", "account": "alice"}}, decoded)

	var table bytes.Buffer
	require.NoError(t, writeRecords(&table, "table", v, recs, fields, map[string]string{"rule_name": "type"}))
	header := strings.SplitN(table.String(), "\n", 2)[0]
	assert.Contains(t, header, "TYPE")
	assert.Contains(t, header, "USER")
	assert.NotContains(t, header, "RULE_NAME")
}

func TestExportFormatFromExtension(t *testing.T) {
	assert.Equal(t, "table", exportFormat("", "table", false))
	assert.Equal(t, "json", exportFormat("out/alerts.JSON", "table", false))
	assert.Equal(t, "yaml", exportFormat("alerts.yml", "table", false))
	assert.Equal(t, "table", exportFormat("alerts.txt", "table", false))
	assert.Equal(t, "yaml", exportFormat("alerts.json", "yaml", true), "explicit --format wins")
}

func TestLoadViewsOverride(t *testing.T) {
	v := viper.New()
	v.SetConfigType("yaml")
	require.NoError(t, v.ReadConfig(strings.NewReader(`
views:
  users:
    facets:
      - id: name
        kind: keyword
        field: user
        label: Name
      - id: risk
        kind: categorical
        field: risk_score
`)))
	views, err := loadViews(v)
	require.NoError(t, err)
	users := views[facet.ViewUsers]
	require.Len(t, users.Facets, 2)
	assert.Equal(t, facet.Keyword, users.Facets[0].Kind)
	assert.Equal(t, "Name", users.Facets[0].DisplayLabel())
	assert.Equal(t, facet.DefaultViews()[facet.ViewAlerts].Facets, views[facet.ViewAlerts].Facets)

	bad := viper.New()
	bad.SetConfigType("yaml")
	require.NoError(t, bad.ReadConfig(strings.NewReader(`
views:
  alerts:
    facets:
      - id: x
        kind: histogram
        field: y
`)))
	_, err = loadViews(bad)
	assert.Error(t, err)
}

func TestConfigDefaults(t *testing.T) {
	v := viper.New()
	setDefaults(v)
	cfg := configFrom(v)
	assert.Equal(t, "127.0.0.1:8080", cfg.API.Bind)
	assert.Equal(t, 7, cfg.DateRange.DefaultDays)
	assert.Equal(t, 15*time.Second, cfg.Backend.Timeout)
	assert.Equal(t, "data/incoming", cfg.Ingest.Dir)
}

func TestSampleDataIsDeterministic(t *testing.T) {
	a := sampleData(now, 20, 7, 42)
	b := sampleData(now, 20, 7, 42)
	assert.Equal(t, a, b)
	assert.Len(t, a[facet.ViewAlerts], 20)
	assert.Len(t, a[facet.ViewLogins], 20)
	assert.Len(t, a[facet.ViewUsers], len(seedUsers))

	from := now.AddDate(0, 0, -7)
	for _, r := range a[facet.ViewAlerts] {
		ts, err := r.Time("timestamp")
		require.NoError(t, err)
		assert.False(t, ts.Before(from) || ts.After(now), "alert %v outside the window", r["id"])
	}
}

func TestSeededRecordsQueryableThroughStoreFetcher(t *testing.T) {
	st, err := store.NewStore(":memory:")
	require.NoError(t, err)
	defer st.Close()

	quiet := log.New(io.Discard, "", 0)
	views := facet.DefaultViews()
	sink := ingest.NewSink(st, nil, views, quiet)
	data := sampleData(now, 30, 7, 7)
	for _, kind := range facet.ViewNames() {
		_, err := sink.Ingest(context.Background(), kind, "test", data[kind])
		require.NoError(t, err)
	}

	engines, err := buildEngines(views, []string{facet.ViewAlerts}, localSource(st), func(string) *log.Logger { return quiet })
	require.NoError(t, err)
	e := engines[facet.ViewAlerts]
	require.NoError(t, e.Refresh(context.Background(), daterange.LastDays(now, 7)))
	assert.Equal(t, 30, e.Total())

	require.NoError(t, e.SetFacet("severity", "High"))
	for _, r := range e.CurrentView() {
		assert.Equal(t, "High", r["severity_type"])
	}
	assert.Equal(t, "Active Filters: Severity: High", e.Indicator())

	_, err = buildEngines(views, []string{"nope"}, localSource(st), func(string) *log.Logger { return quiet })
	assert.Error(t, err)
}

func TestSplitListAndPaths(t *testing.T) {
	assert.Equal(t, []string{"alerts", "users"}, splitList(" alerts, ,users "))
	assert.Nil(t, splitList(""))
	assert.Equal(t, ":memory:", resolvePathRelativeToBase("/base", ":memory:"))
	assert.Equal(t, "/base/data/x.db", resolvePathRelativeToBase("/base", "./data/x.db"))
	assert.Equal(t, "/abs.db", resolvePathRelativeToBase("/base", "/abs.db"))
}
