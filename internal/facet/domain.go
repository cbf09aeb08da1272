package facet

import (
	"github.com/Ashfaaq98/secwatch-console/internal/record"
)

// Domain is the ordered set of distinct non-empty values observed for a
// facet in the master collection, in first-seen order.
type Domain struct {
	values []string
	index  map[string]struct{}
}

// NewDomain builds a domain from values, dropping empties and duplicates.
func NewDomain(values ...string) Domain {
	d := Domain{index: make(map[string]struct{}, len(values))}
	for _, v := range values {
		d.add(v)
	}
	return d
}

func (d *Domain) add(v string) {
	if v == "" {
		return
	}
	if d.index == nil {
		d.index = make(map[string]struct{})
	}
	if _, ok := d.index[v]; ok {
		return
	}
	d.index[v] = struct{}{}
	d.values = append(d.values, v)
}

// Values returns a copy of the values in first-seen order.
func (d Domain) Values() []string {
	out := make([]string, len(d.values))
	copy(out, d.values)
	return out
}

// Contains reports membership.
func (d Domain) Contains(v string) bool {
	_, ok := d.index[v]
	return ok
}

// Len is the number of distinct values.
func (d Domain) Len() int { return len(d.values) }

// Domains maps facet id to its domain.
type Domains map[string]Domain

// Derive scans the collection once and collects, for every categorical and
// boolean descriptor, the distinct non-null, non-empty values read through the
// descriptor's field path. It must be fed the master collection, never a
// filtered view, or option lists would shrink as filters narrow.
func Derive(c record.Collection, descriptors Set) Domains {
	out := make(Domains, len(descriptors))
	var active []Descriptor
	for _, d := range descriptors {
		if d.HasDomain() {
			out[d.ID] = Domain{index: make(map[string]struct{})}
			active = append(active, d)
		}
	}
	if len(active) == 0 {
		return out
	}
	for _, r := range c {
		for _, d := range active {
			v, ok := valueOf(r, d)
			if !ok {
				continue
			}
			dom := out[d.ID]
			dom.add(v)
			out[d.ID] = dom
		}
	}
	return out
}

func valueOf(r record.Record, d Descriptor) (string, bool) {
	if d.Kind == Boolean {
		b, ok := r.Bool(d.FieldPath)
		if !ok {
			return "", false
		}
		if b {
			return "true", true
		}
		return "false", true
	}
	s, ok := r.String(d.FieldPath)
	if !ok || s == "" {
		return "", false
	}
	return s, true
}
