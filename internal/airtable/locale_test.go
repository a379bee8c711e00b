package airtable

import "testing"

func TestIsLocalisedField(t *testing.T) {
	locales := []string{"fr", "en"}

	tests := []struct {
		field string
		want  bool
	}{
		{"titleFR", true},
		{"titleEN", true},
		{"labelEN", true},
		{"title", false},
		{"children", false}, // lower-case "en" is part of the word
		{"titleDE", false},
		{"FR", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.field, func(t *testing.T) {
			if got := IsLocalisedField(tt.field, locales); got != tt.want {
				t.Errorf("IsLocalisedField(%q) = %v, want %v", tt.field, got, tt.want)
			}
		})
	}
}

func TestIsLocalisedField_NoLocales(t *testing.T) {
	if IsLocalisedField("titleEN", nil) {
		t.Error("IsLocalisedField with no locales should be false")
	}
}

func TestGenericFieldName(t *testing.T) {
	locales := []string{"FR", "en"}

	tests := []struct {
		field string
		want  string
	}{
		{"titleFR", "title"},
		{"titleEN", "title"},
		{"bookTitleEN", "bookTitle"},
		{"title", "title"},
		{"titleDE", "titleDE"},
	}

	for _, tt := range tests {
		if got := GenericFieldName(tt.field, locales); got != tt.want {
			t.Errorf("GenericFieldName(%q) = %q, want %q", tt.field, got, tt.want)
		}
	}
}

func TestHasGenericField(t *testing.T) {
	locales := []string{"en"}
	out := SanitizedRecord{"title": "Hello"}

	if !HasGenericField(out, "titleEN", locales) {
		t.Error("HasGenericField(titleEN) = false, want true")
	}
	if HasGenericField(out, "labelEN", locales) {
		t.Error("HasGenericField(labelEN) = true, want false")
	}
}

func TestLocalisedValue_CaseInsensitiveSuffix(t *testing.T) {
	fields := map[string]any{"titleFr": "Salut"}

	v, ok := localisedValue(fields, "title", "fr")
	if !ok || v != "Salut" {
		t.Errorf("localisedValue = (%v, %v), want (Salut, true)", v, ok)
	}

	if _, ok := localisedValue(fields, "title", "en"); ok {
		t.Error("localisedValue(en) found a value, want none")
	}
}

func TestTruthy(t *testing.T) {
	tests := []struct {
		v    any
		want bool
	}{
		{nil, false},
		{"", false},
		{"x", true},
		{0.0, false},
		{1.5, true},
		{false, false},
		{true, true},
		{[]any{}, true},
	}

	for _, tt := range tests {
		if got := truthy(tt.v); got != tt.want {
			t.Errorf("truthy(%#v) = %v, want %v", tt.v, got, tt.want)
		}
	}
}
