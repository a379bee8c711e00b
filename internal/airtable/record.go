package airtable

import (
	"encoding/json"
	"fmt"
	"sort"
)

// Reserved keys written by the sanitizer on top of the record's own fields.
const (
	KeyID          = "id"
	KeyCreatedTime = "createdTime"
	KeyTypename    = "__typename"
)

// RawRecord is a record exactly as the Airtable REST API returns it.
// Field values are whatever JSON decoding produced: strings, float64, bool,
// []any (linked record ids, attachments) or map[string]any.
type RawRecord struct {
	ID          string         `json:"id"`
	CreatedTime string         `json:"createdTime"`
	Fields      map[string]any `json:"fields"`
}

// Dataset holds every known record per table for one resolution pass.
// It is treated as read-only once built.
type Dataset map[string][]RawRecord

// Find returns the record with the given id in table.
func (d Dataset) Find(table, id string) (RawRecord, bool) {
	for _, rec := range d[table] {
		if rec.ID == id {
			return rec, true
		}
	}
	return RawRecord{}, false
}

// Tables returns the table names in ascending order.
func (d Dataset) Tables() []string {
	names := make([]string, 0, len(d))
	for name := range d {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// RecordCount returns the number of records across all tables.
func (d Dataset) RecordCount() int {
	n := 0
	for _, recs := range d {
		n += len(recs)
	}
	return n
}

// Relation is a linked record embedded in place of its id.
type Relation struct {
	ID          string         `json:"id"`
	CreatedTime string         `json:"createdTime"`
	Fields      map[string]any `json:"fields"`
	Typename    string         `json:"__typename"`
}

func newRelation(rec RawRecord, table string) Relation {
	return Relation{
		ID:          rec.ID,
		CreatedTime: rec.CreatedTime,
		Fields:      cloneFields(rec.Fields),
		Typename:    table,
	}
}

// SanitizedRecord is the resolved, flat view of a record.
// Besides the record's fields it always carries id and createdTime, and
// carries __typename when the record's table could be inferred.
type SanitizedRecord map[string]any

// ID returns the record id.
func (s SanitizedRecord) ID() string { return s.str(KeyID) }

// CreatedTime returns the record creation timestamp.
func (s SanitizedRecord) CreatedTime() string { return s.str(KeyCreatedTime) }

// Typename returns the inferred table name, or "" when unknown.
func (s SanitizedRecord) Typename() string { return s.str(KeyTypename) }

// Has reports whether the record carries a value for field.
func (s SanitizedRecord) Has(field string) bool {
	_, ok := s[field]
	return ok
}

func (s SanitizedRecord) str(key string) string {
	v, _ := s[key].(string)
	return v
}

// UnmarshalJSON decodes a record and rejects payloads without an id.
func (r *RawRecord) UnmarshalJSON(data []byte) error {
	type plain RawRecord
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	if p.ID == "" {
		return fmt.Errorf("record is missing an id")
	}
	if p.Fields == nil {
		p.Fields = map[string]any{}
	}
	*r = RawRecord(p)
	return nil
}

// cloneFields copies a field map so the result never shares mutable
// containers with the source.
func cloneFields(fields map[string]any) map[string]any {
	if fields == nil {
		return nil
	}
	out := make(map[string]any, len(fields))
	for k, v := range fields {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = cloneValue(e)
		}
		return out
	case []string:
		out := make([]string, len(t))
		copy(out, t)
		return out
	case map[string]any:
		return cloneFields(t)
	default:
		return v
	}
}
