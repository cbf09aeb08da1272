package filter

import (
	"fmt"
	"strings"

	"github.com/Ashfaaq98/secwatch-console/internal/facet"
)

// IndicatorPrefix leads the one-line active filter summary.
const IndicatorPrefix = "Active Filters: "

// Badge is the display form of one active predicate. Dismiss clears the facet
// through the same path as clearing its control.
type Badge struct {
	FacetID string
	Label   string
	Dismiss func()
}

// Render returns one badge per active predicate, in descriptor order. Facets
// unknown to descriptors follow, sorted by id. onDismiss receives the facet id
// and may be nil.
func Render(s State, descriptors facet.Set, onDismiss func(id string)) []Badge {
	if s.IsEmpty() {
		return nil
	}
	out := make([]Badge, 0, s.Len())
	seen := make(map[string]bool, s.Len())
	for _, d := range descriptors {
		p, ok := s.Get(d.ID)
		if !ok {
			continue
		}
		seen[d.ID] = true
		out = append(out, newBadge(p, d.DisplayLabel(), onDismiss))
	}
	for _, id := range s.IDs() {
		if seen[id] {
			continue
		}
		p, _ := s.Get(id)
		out = append(out, newBadge(p, id, onDismiss))
	}
	return out
}

func newBadge(p ActivePredicate, name string, onDismiss func(string)) Badge {
	id := p.FacetID
	b := Badge{FacetID: id, Label: name + ": " + operandLabel(p)}
	if onDismiss != nil {
		b.Dismiss = func() { onDismiss(id) }
	} else {
		b.Dismiss = func() {}
	}
	return b
}

func operandLabel(p ActivePredicate) string {
	switch v := p.Operand.(type) {
	case string:
		if p.Kind == facet.Keyword {
			return fmt.Sprintf("%q", v)
		}
		return v
	case bool:
		if v {
			return "yes"
		}
		return "no"
	case DateRange:
		return v.String()
	}
	return fmt.Sprint(p.Operand)
}

// Indicator joins badge labels into "Active Filters: a | b". It returns ""
// when no filter is active.
func Indicator(badges []Badge) string {
	if len(badges) == 0 {
		return ""
	}
	labels := make([]string, len(badges))
	for i, b := range badges {
		labels[i] = b.Label
	}
	return IndicatorPrefix + strings.Join(labels, " | ")
}
