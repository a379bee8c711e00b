package airtable

// MissFunc is called when a relation id has no record in the target table.
type MissFunc func(field, table, id string)

// ResolveField resolves one raw field value against the dataset.
//
// Fields absent from mapping are returned as they are. For a relation field,
// a list of more than one id resolves to a []Relation only when every id is
// found; a single miss keeps the raw list. A scalar id or a one-element list
// resolves to a single Relation, or stays raw when the id is unknown.
func ResolveField(field string, value any, dataset Dataset, mapping FieldMapping) any {
	return resolveField(field, value, dataset, mapping, nil)
}

func resolveField(field string, value any, dataset Dataset, mapping FieldMapping, onMiss MissFunc) any {
	table, ok := mapping.Table(field)
	if !ok {
		return cloneValue(value)
	}

	ids, isList := idList(value)
	if isList && len(ids) > 1 {
		return resolveMany(field, table, value, ids, dataset, onMiss)
	}

	var id any = value
	if isList {
		id = nil
		if len(ids) == 1 {
			id = ids[0]
		}
	}

	if rec, found := lookup(dataset, table, id); found {
		return newRelation(rec, table)
	}
	if onMiss != nil {
		onMiss(field, table, idString(id))
	}
	return cloneValue(value)
}

// resolveMany resolves every id of a multi-value relation. Resolution is not
// partial: one unknown id anywhere in the list falls back to the raw value,
// discarding the siblings already resolved.
func resolveMany(field, table string, raw any, ids []any, dataset Dataset, onMiss MissFunc) any {
	resolved := make([]Relation, 0, len(ids))
	missed := false
	for _, id := range ids {
		rec, found := lookup(dataset, table, id)
		if !found {
			missed = true
			if onMiss != nil {
				onMiss(field, table, idString(id))
			}
			continue
		}
		resolved = append(resolved, newRelation(rec, table))
	}
	if missed {
		return cloneValue(raw)
	}
	return resolved
}

func lookup(dataset Dataset, table string, id any) (RawRecord, bool) {
	s, ok := id.(string)
	if !ok {
		return RawRecord{}, false
	}
	return dataset.Find(table, s)
}

// idList normalizes the list shapes a relation value may arrive in.
func idList(value any) ([]any, bool) {
	switch v := value.(type) {
	case []any:
		return v, true
	case []string:
		out := make([]any, len(v))
		for i, s := range v {
			out[i] = s
		}
		return out, true
	default:
		return nil, false
	}
}

func idString(id any) string {
	if s, ok := id.(string); ok {
		return s
	}
	return ""
}
