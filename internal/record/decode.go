package record

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Decode normalizes a backend payload into a Collection. The backend answers
// either with a JSON array of objects or with a JSON string whose content is
// such an array (the legacy alerts endpoint double-encodes). A single object
// is accepted as a one-element collection. null decodes to an empty collection.
func Decode(body []byte) (Collection, error) {
	trim := bytes.TrimSpace(body)
	if len(trim) == 0 {
		return nil, errors.New("empty payload")
	}
	switch trim[0] {
	case '"':
		var inner string
		if err := json.Unmarshal(trim, &inner); err != nil {
			return nil, fmt.Errorf("decode string-encoded payload: %w", err)
		}
		inner = strings.TrimSpace(inner)
		if inner == "" || inner[0] == '"' {
			return nil, errors.New("string-encoded payload does not contain a collection")
		}
		return Decode([]byte(inner))
	case '[':
		var raw []json.RawMessage
		if err := json.Unmarshal(trim, &raw); err != nil {
			return nil, fmt.Errorf("decode array payload: %w", err)
		}
		out := make(Collection, 0, len(raw))
		for i, item := range raw {
			rec, err := decodeObject(item)
			if err != nil {
				return nil, fmt.Errorf("element %d: %w", i, err)
			}
			out = append(out, rec)
		}
		return out, nil
	case '{':
		rec, err := decodeObject(trim)
		if err != nil {
			return nil, err
		}
		return Collection{rec}, nil
	case 'n':
		if string(trim) == "null" {
			return Collection{}, nil
		}
	}
	return nil, fmt.Errorf("unsupported payload starting with %q", trim[0])
}

// DecodeLines decodes JSONL: one object per non-empty line.
func DecodeLines(body []byte) (Collection, error) {
	scanner := bufio.NewScanner(bytes.NewReader(body))
	buf := make([]byte, 0, 1024*1024)
	scanner.Buffer(buf, 10*1024*1024)
	var out Collection
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		rec, err := decodeObject(line)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNum, err)
		}
		out = append(out, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func decodeObject(raw []byte) (Record, error) {
	trim := bytes.TrimSpace(raw)
	if len(trim) == 0 || trim[0] != '{' {
		return nil, errors.New("expected JSON object")
	}
	var rec Record
	if err := json.Unmarshal(trim, &rec); err != nil {
		return nil, err
	}
	if rec == nil {
		rec = Record{}
	}
	return rec, nil
}
