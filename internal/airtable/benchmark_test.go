package airtable

import (
	"context"
	"fmt"
	"testing"
)

// benchDataset builds n books, each linked to two of n/4 authors.
func benchDataset(n int) Dataset {
	authors := make([]RawRecord, 0, n/4+1)
	for i := range n/4 + 1 {
		authors = append(authors, RawRecord{
			ID:          fmt.Sprintf("a%d", i),
			CreatedTime: "2024-01-01T00:00:00.000Z",
			Fields:      map[string]any{"name": fmt.Sprintf("Author %d", i)},
		})
	}
	books := make([]RawRecord, 0, n)
	for i := range n {
		books = append(books, RawRecord{
			ID:          fmt.Sprintf("b%d", i),
			CreatedTime: "2024-01-01T00:00:00.000Z",
			Fields: map[string]any{
				"titleEN":       fmt.Sprintf("Book %d", i),
				"titleFR":       fmt.Sprintf("Livre %d", i),
				"descriptionEN": "A description",
				"author":        []any{fmt.Sprintf("a%d", i%len(authors)), fmt.Sprintf("a%d", (i+1)%len(authors))},
				"pages":         float64(100 + i),
			},
		})
	}
	return Dataset{"Books": books, "Authors": authors}
}

var benchMapping = FieldMapping{"author": "Authors"}

// BenchmarkSanitize benchmarks one record with relations and locale fallback.
func BenchmarkSanitize(b *testing.B) {
	ds := benchDataset(100)
	rec := ds["Books"][0]
	locales := []string{"DE", "FR", "EN"}

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		Sanitize(rec, ds, locales, benchMapping)
	}
}

// BenchmarkSanitizeAll_Sequential benchmarks a full table on one worker.
func BenchmarkSanitizeAll_Sequential(b *testing.B) {
	ds := benchDataset(1000)
	s := NewSanitizer(ds, Options{Locales: []string{"FR", "EN"}, Mapping: benchMapping, Workers: 1})

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := s.SanitizeTable(context.Background(), "Books"); err != nil {
			b.Fatal(err)
		}
	}
}

// BenchmarkSanitizeAll_Parallel benchmarks a full table on GOMAXPROCS workers.
func BenchmarkSanitizeAll_Parallel(b *testing.B) {
	ds := benchDataset(1000)
	s := NewSanitizer(ds, Options{Locales: []string{"FR", "EN"}, Mapping: benchMapping})

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := s.SanitizeTable(context.Background(), "Books"); err != nil {
			b.Fatal(err)
		}
	}
}

// BenchmarkLocalisedValue benchmarks the case-insensitive fallback scan.
func BenchmarkLocalisedValue(b *testing.B) {
	fields := map[string]any{"titleEn": "x", "titleDe": "y", "name": "z", "author": "a"}
	for i := 0; i < b.N; i++ {
		localisedValue(fields, "title", "EN")
	}
}
