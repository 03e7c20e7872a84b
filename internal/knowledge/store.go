package knowledge

import (
	"fmt"
	"sort"
	"strings"
)

// Record is the knowledge held for one candidate. Either field may be empty.
type Record struct {
	Label             string `json:"label,omitempty" yaml:"label,omitempty"`
	VisualDescription string `json:"visual_knowledge,omitempty" yaml:"visual_knowledge,omitempty"`
}

// Store maps candidate keys to knowledge records. The zero value is an empty,
// usable store.
type Store struct {
	records map[string]Record
}

// NewStore copies records into a new store.
func NewStore(records map[string]Record) *Store {
	copied := make(map[string]Record, len(records))
	for key, rec := range records {
		copied[key] = rec
	}
	return &Store{records: copied}
}

// Record returns the knowledge for key.
func (s *Store) Record(key string) (Record, bool) {
	if s == nil || s.records == nil {
		return Record{}, false
	}
	rec, ok := s.records[key]
	return rec, ok
}

// Label returns the display label for key, or "" when none is recorded.
func (s *Store) Label(key string) string {
	rec, _ := s.Record(key)
	return rec.Label
}

// Len reports the number of records.
func (s *Store) Len() int {
	if s == nil {
		return 0
	}
	return len(s.records)
}

// Keys returns the record keys in sorted order.
func (s *Store) Keys() []string {
	if s == nil {
		return nil
	}
	keys := make([]string, 0, len(s.records))
	for key := range s.records {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// ClassIndex maps a primary classifier identifier to the external index string
// that keys the knowledge store.
type ClassIndex map[string]string

// Lookup returns the index for id.
func (c ClassIndex) Lookup(id string) (string, bool) {
	if c == nil {
		return "", false
	}
	idx, ok := c[id]
	return idx, ok
}

// recordFromRaw applies the field fallbacks: string values are kept, anything
// else becomes an empty field.
func recordFromRaw(raw any) (Record, bool) {
	fields, ok := asStringMap(raw)
	if !ok {
		return Record{}, false
	}
	var rec Record
	if label, ok := fields["label"].(string); ok {
		rec.Label = strings.TrimSpace(label)
	}
	for _, key := range []string{"visual_knowledge", "visual_description"} {
		if desc, ok := fields[key].(string); ok && strings.TrimSpace(desc) != "" {
			rec.VisualDescription = strings.TrimSpace(desc)
			break
		}
	}
	return rec, true
}

// indexFromRaw renders integer-valued entries as base-10 strings. Fractional
// numbers are truncated toward zero.
func indexFromRaw(raw any) (string, bool) {
	switch v := raw.(type) {
	case int:
		return fmt.Sprintf("%d", v), true
	case int64:
		return fmt.Sprintf("%d", v), true
	case uint64:
		return fmt.Sprintf("%d", v), true
	case float64:
		return fmt.Sprintf("%d", int64(v)), true
	case string:
		trimmed := strings.TrimSpace(v)
		if trimmed == "" {
			return "", false
		}
		return trimmed, true
	default:
		return "", false
	}
}

func asStringMap(raw any) (map[string]any, bool) {
	switch v := raw.(type) {
	case map[string]any:
		return v, true
	case map[any]any:
		out := make(map[string]any, len(v))
		for key, value := range v {
			name, ok := key.(string)
			if !ok {
				continue
			}
			out[name] = value
		}
		return out, true
	default:
		return nil, false
	}
}
