package record

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ErrMalformedRecord marks a record that lacks a field a caller expected, or
// whose value cannot be interpreted. It is never fatal: filters treat such a
// record as non-matching for the affected facet only.
var ErrMalformedRecord = errors.New("malformed record")

// Record is one row fetched from the backend: field name to scalar value.
// Values are whatever encoding/json produced (string, float64, bool, nil,
// json.Number, nested map[string]any). Two records need not share fields.
type Record map[string]any

// Collection is an ordered sequence of records.
type Collection []Record

// Lookup resolves a dotted field path ("login_raw_data.country") against the
// record. A missing key at any level, or a JSON null, reports ok=false.
func (r Record) Lookup(path string) (any, bool) {
	if r == nil || path == "" {
		return nil, false
	}
	// Fast path: flat key (most fields).
	if v, ok := r[path]; ok {
		return v, v != nil
	}
	if !strings.Contains(path, ".") {
		return nil, false
	}
	var cur any = map[string]any(r)
	for _, part := range strings.Split(path, ".") {
		m, ok := asMap(cur)
		if !ok {
			return nil, false
		}
		cur, ok = m[part]
		if !ok || cur == nil {
			return nil, false
		}
	}
	return cur, true
}

// String returns the stringified value at path. Absent, null and non-scalar
// values report ok=false. The empty string is returned as-is with ok=true;
// callers deciding "is this a value" should also test for "".
func (r Record) String(path string) (string, bool) {
	v, ok := r.Lookup(path)
	if !ok {
		return "", false
	}
	return Stringify(v)
}

// Bool returns the boolean at path, coercing "true"/"false" strings and 0/1
// numbers.
func (r Record) Bool(path string) (bool, bool) {
	v, ok := r.Lookup(path)
	if !ok {
		return false, false
	}
	switch b := v.(type) {
	case bool:
		return b, true
	case string:
		return ParseBool(b)
	case float64:
		if b == 0 || b == 1 {
			return b == 1, true
		}
	case json.Number:
		return ParseBool(b.String())
	}
	return false, false
}

// Time parses the value at path as an absolute instant.
func (r Record) Time(path string) (time.Time, error) {
	v, ok := r.Lookup(path)
	if !ok {
		return time.Time{}, fmt.Errorf("%w: field %q missing", ErrMalformedRecord, path)
	}
	switch t := v.(type) {
	case time.Time:
		return t, nil
	case string:
		ts, err := ParseTime(t)
		if err != nil {
			return time.Time{}, fmt.Errorf("%w: field %q: %v", ErrMalformedRecord, path, err)
		}
		return ts, nil
	case float64:
		return epoch(int64(t)), nil
	case json.Number:
		n, err := t.Int64()
		if err != nil {
			return time.Time{}, fmt.Errorf("%w: field %q: %v", ErrMalformedRecord, path, err)
		}
		return epoch(n), nil
	}
	return time.Time{}, fmt.Errorf("%w: field %q has type %T", ErrMalformedRecord, path, v)
}

// Stringify renders a scalar the way the dashboard displays it. Maps, slices
// and nil report ok=false.
func Stringify(v any) (string, bool) {
	switch s := v.(type) {
	case string:
		return s, true
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64), true
	case float32:
		return strconv.FormatFloat(float64(s), 'f', -1, 32), true
	case int:
		return strconv.Itoa(s), true
	case int64:
		return strconv.FormatInt(s, 10), true
	case bool:
		return strconv.FormatBool(s), true
	case json.Number:
		return s.String(), true
	case time.Time:
		return s.UTC().Format(time.RFC3339), true
	}
	return "", false
}

// ParseBool accepts true/false, yes/no and 1/0 (case-insensitive).
func ParseBool(s string) (bool, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "yes", "1":
		return true, true
	case "false", "no", "0":
		return false, true
	}
	return false, false
}

// Clone returns a shallow copy of the collection; records are shared.
func (c Collection) Clone() Collection {
	if c == nil {
		return nil
	}
	out := make(Collection, len(c))
	copy(out, c)
	return out
}

func asMap(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case map[string]any:
		return m, true
	case Record:
		return m, true
	}
	return nil, false
}
