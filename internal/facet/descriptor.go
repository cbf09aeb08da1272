package facet

import (
	"errors"
	"fmt"
	"strings"
)

// Kind selects how a facet reads a record and what predicate shape it produces.
type Kind int

const (
	Keyword Kind = iota
	Categorical
	Boolean
	DateRange
)

// SearchAll as a keyword FieldPath matches against every field of a record.
const SearchAll = "*"

var kindNames = map[Kind]string{
	Keyword:     "keyword",
	Categorical: "categorical",
	Boolean:     "boolean",
	DateRange:   "dateRange",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// ParseKind accepts the names used in config files (case-insensitive,
// "daterange" and "date_range" both map to DateRange).
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.ReplaceAll(strings.TrimSpace(s), "_", "")) {
	case "keyword", "search":
		return Keyword, nil
	case "categorical", "category", "select":
		return Categorical, nil
	case "boolean", "bool":
		return Boolean, nil
	case "daterange", "date":
		return DateRange, nil
	}
	return 0, fmt.Errorf("unknown facet kind %q", s)
}

// MarshalText implements encoding.TextMarshaler.
func (k Kind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *Kind) UnmarshalText(b []byte) error {
	v, err := ParseKind(string(b))
	if err != nil {
		return err
	}
	*k = v
	return nil
}

// Descriptor is static configuration for one filterable dimension.
type Descriptor struct {
	ID        string `json:"id" yaml:"id" mapstructure:"id"`
	Kind      Kind   `json:"kind" yaml:"kind" mapstructure:"kind"`
	FieldPath string `json:"field" yaml:"field" mapstructure:"field"`
	// Label is shown on badges and controls; defaults to ID.
	Label string `json:"label,omitempty" yaml:"label,omitempty" mapstructure:"label"`
}

// SearchesAll reports whether a keyword facet matches any field.
func (d Descriptor) SearchesAll() bool {
	return d.Kind == Keyword && (d.FieldPath == "" || d.FieldPath == SearchAll)
}

// DisplayLabel returns Label, falling back to ID.
func (d Descriptor) DisplayLabel() string {
	if d.Label != "" {
		return d.Label
	}
	return d.ID
}

// HasDomain reports whether a value domain is derived for this facet.
func (d Descriptor) HasDomain() bool {
	return d.Kind == Categorical || d.Kind == Boolean
}

// Set is an ordered list of descriptors for one view.
type Set []Descriptor

// Lookup finds a descriptor by id.
func (s Set) Lookup(id string) (Descriptor, bool) {
	for _, d := range s {
		if d.ID == id {
			return d, true
		}
	}
	return Descriptor{}, false
}

// Validate checks ids are unique and non-empty and that non-keyword facets
// name a field.
func (s Set) Validate() error {
	seen := make(map[string]bool, len(s))
	var errs []error
	for i, d := range s {
		if strings.TrimSpace(d.ID) == "" {
			errs = append(errs, fmt.Errorf("facet %d: empty id", i))
			continue
		}
		if seen[d.ID] {
			errs = append(errs, fmt.Errorf("facet %q: duplicate id", d.ID))
		}
		seen[d.ID] = true
		if _, ok := kindNames[d.Kind]; !ok {
			errs = append(errs, fmt.Errorf("facet %q: invalid kind %d", d.ID, int(d.Kind)))
		}
		if d.Kind != Keyword && strings.TrimSpace(d.FieldPath) == "" {
			errs = append(errs, fmt.Errorf("facet %q: %s facet requires a field", d.ID, d.Kind))
		}
		if d.Kind != Keyword && d.FieldPath == SearchAll {
			errs = append(errs, fmt.Errorf("facet %q: only keyword facets may search all fields", d.ID))
		}
	}
	return errors.Join(errs...)
}
