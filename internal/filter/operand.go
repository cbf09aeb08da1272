package filter

import (
	"fmt"
	"strings"
	"time"

	"github.com/Ashfaaq98/secwatch-console/internal/daterange"
	"github.com/Ashfaaq98/secwatch-console/internal/facet"
	"github.com/Ashfaaq98/secwatch-console/internal/record"
)

// Operator is the comparison an ActivePredicate applies.
type Operator int

const (
	OpContains Operator = iota
	OpEquals
	OpBetween
)

func (o Operator) String() string {
	switch o {
	case OpContains:
		return "contains"
	case OpEquals:
		return "equals"
	case OpBetween:
		return "between"
	}
	return fmt.Sprintf("Operator(%d)", int(o))
}

// DateRange is the operand of a date-range facet. When Calendar is true From
// and To name days and To is inclusive through the end of that day; otherwise
// both are instants and To is inclusive at the exact instant.
type DateRange struct {
	From     time.Time
	To       time.Time
	Calendar bool
}

// Days builds a calendar operand from two days.
func Days(from, to time.Time) DateRange {
	return DateRange{From: from, To: to, Calendar: true}
}

// Instants builds an operand from two instants.
func Instants(from, to time.Time) DateRange {
	return DateRange{From: from, To: to}
}

// Bounds returns the effective inclusive [lo, hi] instants.
func (d DateRange) Bounds() (lo, hi time.Time) {
	lo, hi = d.From, d.To
	if d.Calendar {
		y, m, day := d.From.Date()
		lo = time.Date(y, m, day, 0, 0, 0, 0, d.From.Location())
		hi = daterange.EndOfDay(d.To)
	}
	return lo, hi
}

func (d DateRange) String() string {
	if d.Calendar {
		return daterange.FormatCalendar(d.From, d.To)
	}
	return d.From.UTC().Format(time.RFC3339) + daterange.CalendarSeparator + d.To.UTC().Format(time.RFC3339)
}

// normalize converts a caller-supplied operand into the canonical Go type for
// the descriptor's kind: string for keyword/categorical, bool for boolean,
// DateRange for date ranges. empty reports "no constraint".
func normalize(d facet.Descriptor, operand any) (value any, empty bool, err error) {
	switch d.Kind {
	case facet.Keyword, facet.Categorical:
		s, ok := operand.(string)
		if !ok {
			return nil, false, fmt.Errorf("expected text, got %T", operand)
		}
		if d.Kind == facet.Keyword {
			s = strings.TrimSpace(s)
		}
		return s, s == "", nil

	case facet.Boolean:
		switch b := operand.(type) {
		case bool:
			return b, false, nil
		case string:
			if strings.TrimSpace(b) == "" {
				return nil, true, nil
			}
			v, ok := record.ParseBool(b)
			if !ok {
				return nil, false, fmt.Errorf("%q is not a boolean", b)
			}
			return v, false, nil
		}
		return nil, false, fmt.Errorf("expected boolean, got %T", operand)

	case facet.DateRange:
		switch r := operand.(type) {
		case DateRange:
			return r, false, nil
		case *DateRange:
			if r == nil {
				return nil, true, nil
			}
			return *r, false, nil
		case daterange.Range:
			return Instants(r.From, r.To), false, nil
		case string:
			if strings.TrimSpace(r) == "" {
				return nil, true, nil
			}
			from, to, err := daterange.ParseCalendar(r, time.UTC)
			if err != nil {
				return nil, false, err
			}
			return Days(from, to), false, nil
		}
		return nil, false, fmt.Errorf("expected date range, got %T", operand)
	}
	return nil, false, fmt.Errorf("unsupported facet kind %s", d.Kind)
}
