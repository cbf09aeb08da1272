package ui

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ashfaaq98/secwatch-console/internal/daterange"
	"github.com/Ashfaaq98/secwatch-console/internal/facet"
	"github.com/Ashfaaq98/secwatch-console/internal/filter"
	"github.com/Ashfaaq98/secwatch-console/internal/record"
)

func TestColumnsFor(t *testing.T) {
	v := facet.View{Columns: []string{"b", "a"}}
	assert.Equal(t, []string{"b", "a"}, columnsFor(v, nil))

	recs := record.Collection{{"z": 1, "a": 2}, {"m": 3}}
	assert.Equal(t, []string{"a", "m", "z"}, columnsFor(facet.View{}, recs))
}

func TestCellText(t *testing.T) {
	r := record.Record{
		"is_vip":   true,
		"notified": false,
		"country":  "FR",
		"note":     "line one\nline two",
		"long":     "abcdefghijklmnopqrstuvwxyzabcdefghijklmnopqrstuvwxyz",
	}
	assert.Equal(t, "yes", cellText(r, "is_vip", ""))
	assert.Equal(t, "no", cellText(r, "notified", ""))
	assert.Equal(t, "FR", cellText(r, "country", ""))
	assert.Equal(t, "-", cellText(r, "missing", ""))
	assert.Equal(t, "line one line two", cellText(r, "note", ""))
	long := []rune(cellText(r, "long", ""))
	assert.Len(t, long, maxCellRune)
	assert.Equal(t, '…', long[len(long)-1])
}

func TestHeaderTitle(t *testing.T) {
	assert.Equal(t, "Severity Type", headerTitle("severity_type"))
	assert.Equal(t, "User", headerTitle("user"))
	assert.Equal(t, "Geo City", headerTitle("geo.city"))
}

func TestDropdownOptions(t *testing.T) {
	assert.Equal(t, []string{anyOption, "yes", "no"}, dropdownOptions(facet.Boolean, []string{"true", "false"}))
	assert.Equal(t, []string{anyOption, "US", "FR"}, dropdownOptions(facet.Categorical, []string{"US", "FR"}))
	assert.Equal(t, "", operandForOption(anyOption))
	assert.Equal(t, "US", operandForOption("US"))
}

func TestCurrentOptionAndInputText(t *testing.T) {
	views := facet.DefaultViews()
	alerts := views[facet.ViewAlerts]
	country, _ := alerts.Facets.Lookup("country")
	vip, _ := alerts.Facets.Lookup("vip")
	search, _ := alerts.Facets.Lookup("search")
	date, _ := alerts.Facets.Lookup("dateRange")

	s, err := filter.Empty().SetFacet(country, facet.NewDomain("US", "FR"), "FR")
	require.NoError(t, err)
	s, err = s.SetFacet(vip, facet.Domain{}, true)
	require.NoError(t, err)
	s, err = s.SetFacet(search, facet.Domain{}, "paris")
	require.NoError(t, err)
	s, err = s.SetFacet(date, facet.Domain{}, "01/01/2024 - 01/03/2024")
	require.NoError(t, err)

	countryOpts := dropdownOptions(facet.Categorical, []string{"US", "FR"})
	assert.Equal(t, 2, currentOption(country, s, countryOpts))
	assert.Equal(t, 1, currentOption(vip, s, dropdownOptions(facet.Boolean, nil)))
	assert.Equal(t, 0, currentOption(country, filter.Empty(), countryOpts))

	assert.Equal(t, "paris", inputText(search, s))
	assert.Equal(t, "01/01/2024 - 01/03/2024", inputText(date, s))
	assert.Equal(t, "", inputText(search, filter.Empty()))
}

func TestNumberedBadges(t *testing.T) {
	assert.Equal(t, "", numberedBadges(nil))
	assert.Equal(t, "1:Type: NewDevice  2:VIP: yes",
		numberedBadges([]filter.Badge{{Label: "Type: NewDevice"}, {Label: "VIP: yes"}}))
}

func TestRangeAndSinceLabels(t *testing.T) {
	assert.Equal(t, "no range selected", rangeLabel(daterange.Range{}))

	now := time.Date(2024, 1, 3, 12, 0, 0, 0, time.UTC)
	assert.Equal(t, "never", sinceLabel(time.Time{}, now))
	assert.Equal(t, "just now", sinceLabel(now, now))
	assert.Equal(t, "1m30s ago", sinceLabel(now.Add(-90*time.Second), now))
}

func TestRiskColor(t *testing.T) {
	th := themeDark()
	assert.Equal(t, th.RiskHigh, th.riskColor("High"))
	assert.Equal(t, th.RiskMedium, th.riskColor(" medium "))
	assert.Equal(t, th.RiskNone, th.riskColor("No risk"))
	assert.Equal(t, th.TableRow, th.riskColor("unknown"))
}
