package filter

import (
	"fmt"
	"sort"

	"github.com/Ashfaaq98/secwatch-console/internal/facet"
)

// ActivePredicate is one constrained facet. Kind and FieldPath are copied from
// the descriptor when the predicate is set so a State compiles on its own.
type ActivePredicate struct {
	FacetID   string
	Kind      facet.Kind
	FieldPath string
	Operator  Operator
	// Operand is string (keyword, categorical), bool (boolean) or DateRange.
	Operand any
}

func (p ActivePredicate) equal(o ActivePredicate) bool {
	if p.FacetID != o.FacetID || p.Kind != o.Kind || p.FieldPath != o.FieldPath || p.Operator != o.Operator {
		return false
	}
	a, aok := p.Operand.(DateRange)
	b, bok := o.Operand.(DateRange)
	if aok || bok {
		return aok && bok && a.Calendar == b.Calendar && a.From.Equal(b.From) && a.To.Equal(b.To)
	}
	return p.Operand == o.Operand
}

// State is an immutable mapping from facet id to ActivePredicate. Absence of
// a key means unconstrained. The zero value is the empty state. Mutators
// return a new State and never touch the receiver.
type State struct {
	preds map[string]ActivePredicate
}

// Empty returns the state with no active predicates.
func Empty() State { return State{} }

// Len is the number of active predicates.
func (s State) Len() int { return len(s.preds) }

// IsEmpty reports whether nothing is constrained.
func (s State) IsEmpty() bool { return len(s.preds) == 0 }

// Get returns the predicate for id.
func (s State) Get(id string) (ActivePredicate, bool) {
	p, ok := s.preds[id]
	return p, ok
}

// IDs returns the constrained facet ids, sorted.
func (s State) IDs() []string {
	ids := make([]string, 0, len(s.preds))
	for id := range s.preds {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Predicates returns the active predicates ordered by facet id.
func (s State) Predicates() []ActivePredicate {
	out := make([]ActivePredicate, 0, len(s.preds))
	for _, id := range s.IDs() {
		out = append(out, s.preds[id])
	}
	return out
}

// Equal reports structural equality.
func (s State) Equal(o State) bool {
	if len(s.preds) != len(o.preds) {
		return false
	}
	for id, p := range s.preds {
		q, ok := o.preds[id]
		if !ok || !p.equal(q) {
			return false
		}
	}
	return true
}

// SetFacet inserts or overwrites the predicate for d. The operand is
// validated per kind:
//   - keyword: any text; empty clears the facet
//   - categorical: must be a member of domain; empty clears the facet
//   - boolean: bool or a true/false/yes/no string; empty string clears
//   - dateRange: DateRange, daterange.Range or a calendar string with
//     From <= To; empty string clears
//
// A rejected operand returns the receiver unchanged with an error matching
// ErrInvalidOperand.
func (s State) SetFacet(d facet.Descriptor, domain facet.Domain, operand any) (State, error) {
	value, empty, err := normalize(d, operand)
	if err != nil {
		return s, &OperandError{FacetID: d.ID, Operand: operand, Reason: err.Error()}
	}
	if empty {
		return s.ClearFacet(d.ID), nil
	}

	p := ActivePredicate{FacetID: d.ID, Kind: d.Kind, FieldPath: d.FieldPath}
	switch d.Kind {
	case facet.Keyword:
		p.Operator = OpContains
	case facet.Categorical:
		v := value.(string)
		if !domain.Contains(v) {
			return s, &OperandError{FacetID: d.ID, Operand: operand, Reason: fmt.Sprintf("%q is not an observed value", v)}
		}
		p.Operator = OpEquals
	case facet.Boolean:
		p.Operator = OpEquals
	case facet.DateRange:
		r := value.(DateRange)
		if r.From.IsZero() || r.To.IsZero() {
			return s, &OperandError{FacetID: d.ID, Operand: operand, Reason: "both from and to are required"}
		}
		if r.From.After(r.To) {
			return s, &OperandError{FacetID: d.ID, Operand: operand, Reason: "from is after to"}
		}
		p.Operator = OpBetween
	}
	p.Operand = value

	next := s.clone(1)
	next.preds[d.ID] = p
	return next, nil
}

// ClearFacet removes id. Clearing an absent id returns the receiver itself.
func (s State) ClearFacet(id string) State {
	if _, ok := s.preds[id]; !ok {
		return s
	}
	next := s.clone(0)
	delete(next.preds, id)
	return next
}

// ClearAll returns the empty state.
func (s State) ClearAll() State { return Empty() }

func (s State) clone(extra int) State {
	m := make(map[string]ActivePredicate, len(s.preds)+extra)
	for k, v := range s.preds {
		m[k] = v
	}
	return State{preds: m}
}
