package ui

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/Ashfaaq98/secwatch-console/internal/daterange"
	"github.com/Ashfaaq98/secwatch-console/internal/facet"
	"github.com/Ashfaaq98/secwatch-console/internal/filter"
	"github.com/Ashfaaq98/secwatch-console/internal/record"
)

const (
	anyOption   = "(any)"
	maxCellRune = 48
)

// columnsFor returns the view's configured columns, or the sorted union of
// the records' top-level keys when the view declares none.
func columnsFor(v facet.View, recs record.Collection) []string {
	if len(v.Columns) > 0 {
		return v.Columns
	}
	seen := map[string]bool{}
	for _, r := range recs {
		for k := range r {
			seen[k] = true
		}
	}
	cols := make([]string, 0, len(seen))
	for k := range seen {
		cols = append(cols, k)
	}
	sort.Strings(cols)
	return cols
}

// cellText renders one field for a table cell. Timestamps are shown in local
// time, booleans as yes/no, missing values as "-".
func cellText(r record.Record, field, timeField string) string {
	v, ok := r.Lookup(field)
	if !ok {
		return "-"
	}
	if field == timeField {
		if t, err := r.Time(field); err == nil {
			return t.Local().Format("2006-01-02 15:04:05")
		}
	}
	if b, isBool := v.(bool); isBool {
		if b {
			return "yes"
		}
		return "no"
	}
	s, ok := record.Stringify(v)
	if !ok {
		s = fmt.Sprint(v)
	}
	return truncate(s, maxCellRune)
}

func truncate(s string, n int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

// headerTitle turns "severity_type" into "Severity Type".
func headerTitle(field string) string {
	parts := strings.FieldsFunc(field, func(r rune) bool { return r == '_' || r == '.' })
	for i, p := range parts {
		if p != "" {
			parts[i] = strings.ToUpper(p[:1]) + p[1:]
		}
	}
	return strings.Join(parts, " ")
}

// numberedBadges renders "1:Type: X  2:Search: "y"" so badges can be
// dismissed by number.
func numberedBadges(badges []filter.Badge) string {
	if len(badges) == 0 {
		return ""
	}
	parts := make([]string, len(badges))
	for i, b := range badges {
		parts[i] = fmt.Sprintf("%d:%s", i+1, b.Label)
	}
	return strings.Join(parts, "  ")
}

// rangeLabel shows the global date range in calendar form.
func rangeLabel(r daterange.Range) string {
	if !r.IsSet() {
		return "no range selected"
	}
	return daterange.FormatCalendar(r.From.Local(), r.To.Local())
}

// dropdownOptions prefixes a facet domain with the "no constraint" entry.
func dropdownOptions(kind facet.Kind, domain []string) []string {
	if kind == facet.Boolean {
		return []string{anyOption, "yes", "no"}
	}
	return append([]string{anyOption}, domain...)
}

// operandForOption maps a dropdown choice back to a setFacet operand; the
// "(any)" entry becomes the empty operand, which clears the facet.
func operandForOption(option string) string {
	if option == anyOption {
		return ""
	}
	return option
}

// currentOption is the dropdown index reflecting state for facet d.
func currentOption(d facet.Descriptor, s filter.State, options []string) int {
	p, ok := s.Get(d.ID)
	if !ok {
		return 0
	}
	want := ""
	switch v := p.Operand.(type) {
	case string:
		want = v
	case bool:
		want = "no"
		if v {
			want = "yes"
		}
	}
	for i, o := range options {
		if o == want {
			return i
		}
	}
	return 0
}

// inputText is the text an input control shows for facet d under state s.
func inputText(d facet.Descriptor, s filter.State) string {
	p, ok := s.Get(d.ID)
	if !ok {
		return ""
	}
	switch v := p.Operand.(type) {
	case string:
		return v
	case filter.DateRange:
		if v.Calendar {
			return daterange.FormatCalendar(v.From, v.To)
		}
		return daterange.FormatCalendar(v.From.Local(), v.To.Local())
	}
	return fmt.Sprint(p.Operand)
}

// sinceLabel renders how long ago t was, for the status bar.
func sinceLabel(t, now time.Time) string {
	if t.IsZero() {
		return "never"
	}
	d := now.Sub(t).Round(time.Second)
	if d < time.Second {
		return "just now"
	}
	return d.String() + " ago"
}
