package ui

import (
	"context"
	"errors"
	"io"
	"log"
	"testing"
	"time"

	"github.com/rivo/tview"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ashfaaq98/secwatch-console/internal/bus"
	"github.com/Ashfaaq98/secwatch-console/internal/dataset"
	"github.com/Ashfaaq98/secwatch-console/internal/daterange"
	"github.com/Ashfaaq98/secwatch-console/internal/engine"
	"github.com/Ashfaaq98/secwatch-console/internal/facet"
	"github.com/Ashfaaq98/secwatch-console/internal/record"
)

var (
	quiet = log.New(io.Discard, "", 0)
	day   = time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC)
	week  = daterange.Range{From: day.AddDate(0, 0, -6), To: daterange.EndOfDay(day)}
)

var alertRows = record.Collection{
	{"id": "a1", "timestamp": "2024-01-01T10:00:00Z", "rule_name": "ImpossibleTravel", "country": "FR", "severity_type": "High", "is_vip": true, "triggered_by": "alice"},
	{"id": "a2", "timestamp": "2024-01-02T10:00:00Z", "rule_name": "NewDevice", "country": "US", "severity_type": "Low", "is_vip": false, "triggered_by": "bob"},
	{"id": "a3", "timestamp": "2024-01-03T10:00:00Z", "rule_name": "NewDevice", "country": "FR", "severity_type": "Medium", "is_vip": true, "triggered_by": "carol"},
}

var loginRows = record.Collection{
	{"id": "l1", "timestamp": "2024-01-02T08:00:00Z", "user": "alice", "country": "FR", "user_agent": "Firefox"},
}

func fixed(c record.Collection) dataset.Fetcher {
	return dataset.FetcherFunc(func(context.Context, daterange.Range) (record.Collection, error) {
		return c, nil
	})
}

func newTestUI(t *testing.T, fetchers map[string]dataset.Fetcher) (*UI, map[string]*engine.Engine) {
	t.Helper()
	views := facet.DefaultViews()
	engines := map[string]*engine.Engine{}
	for name, f := range fetchers {
		e, err := engine.New(views[name], f, engine.Options{Logger: quiet})
		require.NoError(t, err)
		engines[name] = e
	}
	u, err := NewUI(context.Background(), engines, daterange.NewContext(week), Options{Logger: quiet})
	require.NoError(t, err)
	u.now = func() time.Time { return day.Add(12 * time.Hour) }
	t.Cleanup(u.release)
	return u, engines
}

func text(tv *tview.TextView) string { return tv.GetText(true) }

func TestNewUIValidation(t *testing.T) {
	_, err := NewUI(context.Background(), nil, daterange.NewContext(week), Options{Logger: quiet})
	assert.Error(t, err)

	e, err := engine.New(facet.DefaultViews()[facet.ViewAlerts], fixed(nil), engine.Options{Logger: quiet})
	require.NoError(t, err)
	_, err = NewUI(context.Background(), map[string]*engine.Engine{facet.ViewAlerts: e}, nil, Options{Logger: quiet})
	assert.Error(t, err)
}

func TestViewOrderFollowsBuiltins(t *testing.T) {
	u, _ := newTestUI(t, map[string]dataset.Fetcher{
		facet.ViewUsers:  fixed(nil),
		facet.ViewAlerts: fixed(nil),
		facet.ViewLogins: fixed(nil),
	})
	assert.Equal(t, []string{facet.ViewAlerts, facet.ViewLogins, facet.ViewUsers}, u.order)
	assert.Equal(t, facet.ViewAlerts, u.active)
	assert.Equal(t, 3, u.sidebar.GetItemCount())
}

func TestRefreshRendersTableAndFilters(t *testing.T) {
	u, engines := newTestUI(t, map[string]dataset.Fetcher{facet.ViewAlerts: fixed(alertRows)})

	assert.Equal(t, 2, u.table.GetRowCount(), "header plus empty-state row before any data")
	require.NoError(t, engines[facet.ViewAlerts].Refresh(context.Background(), week))

	assert.Equal(t, len(alertRows)+1, u.table.GetRowCount())
	assert.Contains(t, text(u.header), "3 of 3")
	assert.Contains(t, text(u.indicator), "No active filters")

	// one control per facet
	assert.Equal(t, len(facet.DefaultViews()[facet.ViewAlerts].Facets), u.filters.GetFormItemCount())
	dd, ok := u.filters.GetFormItemByLabel("Type").(*tview.DropDown)
	require.True(t, ok)
	idx, opt := dd.GetCurrentOption()
	assert.Equal(t, 0, idx)
	assert.Equal(t, anyOption, opt)
}

func TestApplyFacetAndDismiss(t *testing.T) {
	u, engines := newTestUI(t, map[string]dataset.Fetcher{facet.ViewAlerts: fixed(alertRows)})
	e := engines[facet.ViewAlerts]
	require.NoError(t, e.Refresh(context.Background(), week))

	u.applyFacet("alertType", "NewDevice")
	u.applyFacet("vip", "yes")
	assert.Len(t, e.CurrentView(), 1)
	assert.Equal(t, 2, u.table.GetRowCount())
	assert.Contains(t, text(u.indicator), "Active Filters: Type: NewDevice | VIP: yes")
	assert.Contains(t, text(u.header), "1 of 3")

	dd := u.filters.GetFormItemByLabel("Type").(*tview.DropDown)
	_, opt := dd.GetCurrentOption()
	assert.Equal(t, "NewDevice", opt, "controls follow the filter state")

	u.dismissBadge(-1)
	assert.Equal(t, "Active Filters: Type: NewDevice", e.Indicator())
	assert.Len(t, e.CurrentView(), 2)

	u.dismissBadge(0)
	assert.True(t, e.State().IsEmpty())
	assert.Len(t, e.CurrentView(), 3)
	assert.Contains(t, text(u.indicator), "No active filters")
}

func TestInvalidOperandKeepsStateAndReports(t *testing.T) {
	u, engines := newTestUI(t, map[string]dataset.Fetcher{facet.ViewAlerts: fixed(alertRows)})
	e := engines[facet.ViewAlerts]
	require.NoError(t, e.Refresh(context.Background(), week))

	field := u.filters.GetFormItemByLabel("Date").(*tview.InputField)
	field.SetText("01/05/2024 - 01/01/2024")
	u.applyFacet("dateRange", field.GetText())
	assert.True(t, e.State().IsEmpty())
	assert.Contains(t, text(u.statusBar), "from is after to")
	assert.Empty(t, field.GetText(), "rejected text is not left in the control")

	require.NoError(t, e.SetFacet("dateRange", "01/01/2024 - 01/02/2024"))
	field = u.filters.GetFormItemByLabel("Date").(*tview.InputField)
	field.SetText("garbage")
	u.applyFacet("dateRange", field.GetText())
	assert.Equal(t, "01/01/2024 - 01/02/2024", field.GetText())
	assert.Equal(t, 1, e.State().Len())
}

func TestClearAllResetsControls(t *testing.T) {
	u, engines := newTestUI(t, map[string]dataset.Fetcher{facet.ViewAlerts: fixed(alertRows)})
	e := engines[facet.ViewAlerts]
	require.NoError(t, e.Refresh(context.Background(), week))

	u.applyFacet("search", "alice")
	u.applyFacet("country", "FR")
	require.Equal(t, 2, e.State().Len())

	u.clearAll()
	assert.True(t, e.State().IsEmpty())
	in := u.filters.GetFormItemByLabel("Search").(*tview.InputField)
	assert.Equal(t, "", in.GetText())
	assert.Equal(t, len(alertRows)+1, u.table.GetRowCount())
}

func TestSwitchViewKeepsPerViewState(t *testing.T) {
	u, engines := newTestUI(t, map[string]dataset.Fetcher{
		facet.ViewAlerts: fixed(alertRows),
		facet.ViewLogins: fixed(loginRows),
	})
	for _, e := range engines {
		require.NoError(t, e.Refresh(context.Background(), week))
	}
	u.applyFacet("country", "US")

	u.switchView(facet.ViewLogins)
	assert.Equal(t, facet.ViewLogins, u.active)
	assert.Equal(t, len(loginRows)+1, u.table.GetRowCount())
	assert.Contains(t, text(u.indicator), "No active filters")
	assert.NotNil(t, u.filters.GetFormItemByLabel("Agent"))

	u.nextView(1)
	assert.Equal(t, facet.ViewAlerts, u.active)
	assert.Contains(t, text(u.indicator), "Country: US")
}

func TestBackgroundViewFailureIsReported(t *testing.T) {
	u, engines := newTestUI(t, map[string]dataset.Fetcher{
		facet.ViewAlerts: fixed(alertRows),
		facet.ViewLogins: dataset.FetcherFunc(func(context.Context, daterange.Range) (record.Collection, error) {
			return nil, errors.New("backend down")
		}),
	})
	err := engines[facet.ViewLogins].Refresh(context.Background(), week)
	require.Error(t, err)
	assert.Contains(t, text(u.statusBar), "logins refresh failed")
}

func TestShiftRange(t *testing.T) {
	u, _ := newTestUI(t, map[string]dataset.Fetcher{facet.ViewAlerts: fixed(alertRows)})
	span := week.Span()

	u.shiftRange(-1)
	assert.True(t, week.Shift(-span).Equal(u.rc.Get()))
	assert.Contains(t, text(u.header), rangeLabel(u.rc.Get()))

	u.shiftRange(1)
	assert.True(t, week.Equal(u.rc.Get()))
}

func TestHandleUpdateRefreshesMatchingView(t *testing.T) {
	calls := make(chan daterange.Range, 1)
	u, engines := newTestUI(t, map[string]dataset.Fetcher{
		facet.ViewAlerts: dataset.FetcherFunc(func(_ context.Context, r daterange.Range) (record.Collection, error) {
			calls <- r
			return alertRows, nil
		}),
	})

	require.NoError(t, u.handleUpdate(context.Background(), bus.UpdateMessage{Kind: "unknown", Count: 1}))
	require.NoError(t, u.handleUpdate(context.Background(), bus.UpdateMessage{Kind: facet.ViewAlerts, Count: 2, Source: "test"}))
	select {
	case r := <-calls:
		assert.True(t, week.Equal(r))
	case <-time.After(2 * time.Second):
		t.Fatal("update did not trigger a refresh")
	}
	assert.Eventually(t, func() bool { return engines[facet.ViewAlerts].Total() == len(alertRows) },
		2*time.Second, 10*time.Millisecond)
}

func TestCycleTheme(t *testing.T) {
	u, _ := newTestUI(t, map[string]dataset.Fetcher{facet.ViewAlerts: fixed(nil)})
	assert.Equal(t, "neon", u.themeName)
	u.cycleTheme()
	assert.Equal(t, "dark", u.themeName)
	u.cycleTheme()
	assert.Equal(t, "light", u.themeName)
	u.cycleTheme()
	assert.Equal(t, "neon", u.themeName)
	assert.Contains(t, text(u.statusBar), "Theme: neon")
}
