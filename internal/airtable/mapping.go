package airtable

import (
	"fmt"
	"sort"
	"sync"
)

// FieldMapping declares which field names are relations and the table each
// one points to. Fields missing from the mapping are plain data.
type FieldMapping map[string]string

// Table returns the table field links to.
func (m FieldMapping) Table(field string) (string, bool) {
	table, ok := m[field]
	if !ok || table == "" {
		return "", false
	}
	return table, true
}

// Clone returns an independent copy of the mapping.
func (m FieldMapping) Clone() FieldMapping {
	out := make(FieldMapping, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Schema describes one Airtable base: its tables and how fields link them.
type Schema struct {
	Name    string       // Unique identifier: "bookshelf"
	Label   string       // Display name
	Tables  []string     // Tables fetched to build a Dataset
	Mapping FieldMapping // Relation fields shared by every table of the base
}

// HasTable reports whether table belongs to the schema.
func (s Schema) HasTable(table string) bool {
	for _, t := range s.Tables {
		if t == table {
			return true
		}
	}
	return false
}

var (
	schemas   = make(map[string]Schema)
	schemasMu sync.RWMutex
)

// Register adds a schema to the registry.
// Panics if a schema with the same name is already registered.
func Register(s Schema) {
	schemasMu.Lock()
	defer schemasMu.Unlock()

	if _, exists := schemas[s.Name]; exists {
		panic(fmt.Sprintf("schema already registered: %s", s.Name))
	}

	// Every mapped table has to be fetched for its relations to resolve
	for _, table := range s.Mapping {
		if !s.HasTable(table) {
			s.Tables = append(s.Tables, table)
		}
	}
	sort.Strings(s.Tables)
	s.Mapping = s.Mapping.Clone()

	schemas[s.Name] = s
}

// GetSchema returns a copy of the named schema.
// Returns false if not found.
func GetSchema(name string) (Schema, bool) {
	schemasMu.RLock()
	defer schemasMu.RUnlock()

	s, ok := schemas[name]
	if !ok {
		return Schema{}, false
	}
	return copySchema(s), true
}

// Schemas returns all registered schemas sorted by name.
func Schemas() []Schema {
	schemasMu.RLock()
	defer schemasMu.RUnlock()

	result := make([]Schema, 0, len(schemas))
	for _, s := range schemas {
		result = append(result, copySchema(s))
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Name < result[j].Name
	})

	return result
}

// ClearSchemas removes all registered schemas.
// Primarily useful for testing.
func ClearSchemas() {
	schemasMu.Lock()
	defer schemasMu.Unlock()
	schemas = make(map[string]Schema)
}

func copySchema(s Schema) Schema {
	s.Tables = append([]string(nil), s.Tables...)
	s.Mapping = s.Mapping.Clone()
	return s
}
