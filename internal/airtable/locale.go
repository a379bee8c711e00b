package airtable

import "strings"

// localeSuffix returns the locale code field ends with, in the upper-case
// form Airtable field names use (titleFR, labelEN). The caller's locale
// codes may be written in any case. A field made only of a locale code has
// no generic name and is not considered localised.
func localeSuffix(field string, locales []string) (string, bool) {
	for _, locale := range locales {
		suffix := strings.ToUpper(locale)
		if suffix == "" || len(field) <= len(suffix) {
			continue
		}
		if strings.HasSuffix(field, suffix) {
			return suffix, true
		}
	}
	return "", false
}

// IsLocalisedField reports whether field carries one of the locale suffixes.
func IsLocalisedField(field string, locales []string) bool {
	_, ok := localeSuffix(field, locales)
	return ok
}

// GenericFieldName strips the locale suffix from field.
// Fields without a recognized suffix are returned unchanged.
func GenericFieldName(field string, locales []string) string {
	suffix, ok := localeSuffix(field, locales)
	if !ok {
		return field
	}
	return strings.TrimSuffix(field, suffix)
}

// HasGenericField reports whether out already holds a value under the
// generic name of field.
func HasGenericField(out SanitizedRecord, field string, locales []string) bool {
	return out.Has(GenericFieldName(field, locales))
}

// localisedValue looks up generic+locale in the raw fields, trying the
// canonical upper-case suffix first and then any casing of it. When several
// casings exist the lexically smallest field name wins.
func localisedValue(fields map[string]any, generic, locale string) (any, bool) {
	if v, ok := fields[generic+strings.ToUpper(locale)]; ok {
		return v, true
	}
	var (
		best  string
		value any
		found bool
	)
	for name, v := range fields {
		if len(name) != len(generic)+len(locale) || !strings.HasPrefix(name, generic) {
			continue
		}
		if !strings.EqualFold(name[len(generic):], locale) {
			continue
		}
		if !found || name < best {
			best, value, found = name, v, true
		}
	}
	return value, found
}

// truthy mirrors what a form field considers "filled in": empty strings,
// zero numbers, false and nil do not count as a value.
func truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case string:
		return t != ""
	case bool:
		return t
	case float64:
		return t != 0
	case float32:
		return t != 0
	case int:
		return t != 0
	case int64:
		return t != 0
	default:
		return true
	}
}
