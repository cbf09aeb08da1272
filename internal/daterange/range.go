package daterange

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// WireLayout is the start/end query format the backend expects: UTC, second
// precision, literal Z.
const WireLayout = "2006-01-02T15:04:05Z"

// calendarLayouts are the day formats accepted in "from - to" strings.
var calendarLayouts = []string{"01/02/2006", "2006-01-02"}

// CalendarSeparator splits the two halves of a calendar range string.
const CalendarSeparator = " - "

// ErrInvertedRange is returned when From is after To.
var ErrInvertedRange = errors.New("range start is after range end")

// Range is a pair of instants. A zero side means "not selected".
type Range struct {
	From time.Time
	To   time.Time
}

// IsSet reports whether both sides are selected.
func (r Range) IsSet() bool {
	return !r.From.IsZero() && !r.To.IsZero()
}

// Validate reports ErrInvertedRange when both sides are set and out of order.
func (r Range) Validate() error {
	if r.IsSet() && r.From.After(r.To) {
		return ErrInvertedRange
	}
	return nil
}

// Shift moves both sides by d.
func (r Range) Shift(d time.Duration) Range {
	if !r.IsSet() {
		return r
	}
	return Range{From: r.From.Add(d), To: r.To.Add(d)}
}

// Span is To-From, or 0 when unset.
func (r Range) Span() time.Duration {
	if !r.IsSet() {
		return 0
	}
	return r.To.Sub(r.From)
}

// Equal compares instants, ignoring location.
func (r Range) Equal(o Range) bool {
	return r.From.Equal(o.From) && r.To.Equal(o.To)
}

func (r Range) String() string {
	if !r.IsSet() {
		return "unset"
	}
	return fmt.Sprintf("%s..%s", r.From.UTC().Format(time.RFC3339), r.To.UTC().Format(time.RFC3339))
}

// Wire returns the start/end query values.
func (r Range) Wire() (start, end string) {
	return FormatWire(r.From), FormatWire(r.To)
}

// FormatWire formats an instant as the backend expects.
func FormatWire(t time.Time) string {
	return t.UTC().Format(WireLayout)
}

// LastDays returns [now-days, now].
func LastDays(now time.Time, days int) Range {
	if days <= 0 {
		days = 7
	}
	return Range{From: now.AddDate(0, 0, -days), To: now}
}

// EndOfDay returns the last representable instant of t's calendar day in t's
// location.
func EndOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 23, 59, 59, int(time.Second-time.Nanosecond), t.Location())
}

// ParseCalendar parses "MM/DD/YYYY - MM/DD/YYYY" (or ISO days) into the two
// day starts, in loc. A single day yields from == to.
func ParseCalendar(s string, loc *time.Location) (from, to time.Time, err error) {
	if loc == nil {
		loc = time.UTC
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, time.Time{}, errors.New("empty date range")
	}
	parts := strings.Split(s, CalendarSeparator)
	switch len(parts) {
	case 1:
		from, err = parseDay(parts[0], loc)
		return from, from, err
	case 2:
		if from, err = parseDay(parts[0], loc); err != nil {
			return time.Time{}, time.Time{}, err
		}
		if to, err = parseDay(parts[1], loc); err != nil {
			return time.Time{}, time.Time{}, err
		}
		return from, to, nil
	}
	return time.Time{}, time.Time{}, fmt.Errorf("expected %q separated dates, got %q", strings.TrimSpace(CalendarSeparator), s)
}

// FormatCalendar renders a day pair the way ParseCalendar reads it.
func FormatCalendar(from, to time.Time) string {
	return from.Format(calendarLayouts[0]) + CalendarSeparator + to.Format(calendarLayouts[0])
}

func parseDay(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range calendarLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unsupported date %q (use MM/DD/YYYY or YYYY-MM-DD)", s)
}

// ParseFlexible parses "now", "today", relative offsets ("15m", "-2h",
// "+1d"; unsigned means past) or RFC3339. An empty input yields the zero time.
func ParseFlexible(input string, now time.Time) (time.Time, error) {
	s := strings.TrimSpace(strings.ToLower(input))
	if s == "" {
		return time.Time{}, nil
	}
	if s == "now" {
		return now, nil
	}
	if s == "today" {
		return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location()), nil
	}
	sign := ""
	if strings.HasPrefix(s, "+") || strings.HasPrefix(s, "-") {
		sign = s[:1]
		s = s[1:]
	}
	if len(s) >= 2 {
		unit := s[len(s)-1]
		if n, err := strconv.Atoi(s[:len(s)-1]); err == nil {
			var dur time.Duration
			switch unit {
			case 's':
				dur = time.Duration(n) * time.Second
			case 'm':
				dur = time.Duration(n) * time.Minute
			case 'h':
				dur = time.Duration(n) * time.Hour
			case 'd':
				dur = time.Duration(n) * 24 * time.Hour
			}
			if dur != 0 {
				if sign == "+" {
					return now.Add(dur), nil
				}
				return now.Add(-dur), nil
			}
		}
	}
	trimmed := strings.TrimSpace(input)
	if t, err := time.Parse(time.RFC3339, trimmed); err == nil {
		return t, nil
	}
	if t, err := time.ParseInLocation("2006-01-02", trimmed, now.Location()); err == nil {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("unsupported time format %q", input)
}
