package filter

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/Ashfaaq98/secwatch-console/internal/facet"
	"github.com/Ashfaaq98/secwatch-console/internal/record"
)

// Predicate tests one record.
type Predicate func(record.Record) bool

// True accepts every record.
func True(record.Record) bool { return true }

// Compile turns a state into the logical AND of one predicate per active
// entry, evaluated in facet-id order. The empty state compiles to True.
func Compile(s State) Predicate {
	if s.IsEmpty() {
		return True
	}
	preds := s.Predicates()
	tests := make([]Predicate, 0, len(preds))
	for _, p := range preds {
		tests = append(tests, compileOne(p))
	}
	if len(tests) == 1 {
		return tests[0]
	}
	return func(r record.Record) bool {
		for _, t := range tests {
			if !t(r) {
				return false
			}
		}
		return true
	}
}

func compileOne(p ActivePredicate) Predicate {
	switch p.Kind {
	case facet.Keyword:
		needle := strings.ToLower(p.Operand.(string))
		if p.FieldPath == "" || p.FieldPath == facet.SearchAll {
			return func(r record.Record) bool {
				return anyFieldContains(r, needle)
			}
		}
		path := p.FieldPath
		return func(r record.Record) bool {
			v, ok := r.String(path)
			return ok && containsFold(v, needle)
		}

	case facet.Categorical:
		want := p.Operand.(string)
		path := p.FieldPath
		return func(r record.Record) bool {
			v, ok := r.String(path)
			return ok && v == want
		}

	case facet.Boolean:
		want := p.Operand.(bool)
		path := p.FieldPath
		return func(r record.Record) bool {
			v, ok := r.Bool(path)
			return ok && v == want
		}

	case facet.DateRange:
		lo, hi := p.Operand.(DateRange).Bounds()
		path := p.FieldPath
		return func(r record.Record) bool {
			t, err := r.Time(path)
			if err != nil {
				return false
			}
			return !t.Before(lo) && !t.After(hi)
		}
	}
	return func(record.Record) bool { return false }
}

// anyFieldContains walks every field (including nested objects and arrays);
// fields that are absent or null simply do not match.
func anyFieldContains(v any, needle string) bool {
	switch t := v.(type) {
	case record.Record:
		for _, fv := range t {
			if anyFieldContains(fv, needle) {
				return true
			}
		}
	case map[string]any:
		for _, fv := range t {
			if anyFieldContains(fv, needle) {
				return true
			}
		}
	case []any:
		for _, fv := range t {
			if anyFieldContains(fv, needle) {
				return true
			}
		}
	case string:
		return containsFold(t, needle)
	case nil:
		return false
	default:
		s, ok := record.Stringify(t)
		return ok && containsFold(s, needle)
	}
	return false
}

// containsFold reports whether lowerNeedle occurs in s, ignoring case. The
// needle must already be lower-cased. Non-ASCII input is compared rune by
// rune so folds that change the encoded length (the Kelvin sign, long s,
// dotted capital I) still match.
func containsFold(s, lowerNeedle string) bool {
	n := len(lowerNeedle)
	if n == 0 {
		return true
	}
	if isASCII(s) && isASCII(lowerNeedle) {
		for i := 0; i+n <= len(s); i++ {
			if strings.EqualFold(s[i:i+n], lowerNeedle) {
				return true
			}
		}
		return false
	}
	for i := range s {
		if hasPrefixFold(s[i:], lowerNeedle) {
			return true
		}
	}
	return false
}

func hasPrefixFold(s, prefix string) bool {
	for prefix != "" {
		if s == "" {
			return false
		}
		a, na := utf8.DecodeRuneInString(s)
		b, nb := utf8.DecodeRuneInString(prefix)
		if !runeEqualFold(a, b) {
			return false
		}
		s, prefix = s[na:], prefix[nb:]
	}
	return true
}

func runeEqualFold(a, b rune) bool {
	if a == b {
		return true
	}
	if unicode.ToLower(a) == unicode.ToLower(b) || unicode.ToUpper(a) == unicode.ToUpper(b) {
		return true
	}
	for f := unicode.SimpleFold(a); f != a; f = unicode.SimpleFold(f) {
		if f == b {
			return true
		}
	}
	return false
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= utf8.RuneSelf {
			return false
		}
	}
	return true
}
