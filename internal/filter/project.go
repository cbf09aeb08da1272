package filter

import "github.com/Ashfaaq98/secwatch-console/internal/record"

// Project returns the records of c accepted by p, in their original order.
// The result is always a fresh slice; c is never modified. A nil predicate
// accepts everything.
func Project(c record.Collection, p Predicate) record.Collection {
	if p == nil {
		p = True
	}
	out := make(record.Collection, 0, len(c))
	for _, r := range c {
		if p(r) {
			out = append(out, r)
		}
	}
	return out
}
