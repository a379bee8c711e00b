package core

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/JonMunkholm/shelf/internal/airtable"
	"github.com/JonMunkholm/shelf/internal/airtable/client"
	"github.com/JonMunkholm/shelf/internal/openlibrary"
	"github.com/JonMunkholm/shelf/internal/store"
	"github.com/google/uuid"
)

type fakeFetcher struct {
	mu      sync.Mutex
	dataset airtable.Dataset
	err     error
	fetches int
	created map[string][]map[string]any
	nextID  int
}

func newFakeFetcher(ds airtable.Dataset) *fakeFetcher {
	return &fakeFetcher{dataset: ds, created: make(map[string][]map[string]any)}
}

func (f *fakeFetcher) FetchDataset(ctx context.Context, tables ...string) (airtable.Dataset, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetches++
	if f.err != nil {
		return nil, f.err
	}
	out := make(airtable.Dataset, len(tables))
	for _, t := range tables {
		out[t] = append([]airtable.RawRecord(nil), f.dataset[t]...)
	}
	return out, nil
}

func (f *fakeFetcher) FindOne(ctx context.Context, table, formula string) (airtable.RawRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, rec := range f.dataset[table] {
		key, _ := rec.Fields["openlibrary_key"].(string)
		if key != "" && client.FieldEquals("openlibrary_key", key) == formula {
			return rec, nil
		}
	}
	return airtable.RawRecord{}, client.ErrNotFound
}

func (f *fakeFetcher) CreateRecords(ctx context.Context, table string, fields []map[string]any) ([]airtable.RawRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []airtable.RawRecord
	for _, fs := range fields {
		f.nextID++
		f.created[table] = append(f.created[table], fs)
		copied := make(map[string]any, len(fs))
		for k, v := range fs {
			copied[k] = v
		}
		out = append(out, airtable.RawRecord{ID: fmt.Sprintf("rec%d", f.nextID), CreatedTime: "now", Fields: copied})
	}
	return out, nil
}

type fakeStore struct {
	saved   []airtable.Dataset
	saveErr error
	latest  airtable.Dataset
	pruned  int
}

func (s *fakeStore) SaveSnapshot(ctx context.Context, schema string, ds airtable.Dataset) (uuid.UUID, error) {
	if s.saveErr != nil {
		return uuid.Nil, s.saveErr
	}
	s.saved = append(s.saved, ds)
	return uuid.New(), nil
}

func (s *fakeStore) LatestSnapshot(ctx context.Context, schema string) (store.SnapshotInfo, airtable.Dataset, error) {
	if s.latest == nil {
		return store.SnapshotInfo{}, nil, store.ErrSnapshotNotFound
	}
	return store.SnapshotInfo{ID: uuid.New(), Schema: schema, CreatedAt: time.Unix(0, 0)}, s.latest, nil
}

func (s *fakeStore) PruneSnapshots(ctx context.Context, schema string, keep int) (int64, error) {
	s.pruned++
	return 0, nil
}

type fakeBooks struct {
	book    *openlibrary.Book
	authors map[string]*openlibrary.Author
}

func (b *fakeBooks) BookByISBN(ctx context.Context, isbn string) (*openlibrary.Book, error) {
	if b.book == nil {
		return nil, openlibrary.ErrBookNotFound
	}
	return b.book, nil
}

func (b *fakeBooks) Author(ctx context.Context, key string) (*openlibrary.Author, error) {
	a, ok := b.authors[key]
	if !ok {
		return nil, fmt.Errorf("author %s: openlibrary server status: 404", key)
	}
	return a, nil
}

func testSchema() airtable.Schema {
	return airtable.Schema{
		Name:    "test",
		Tables:  []string{"Authors", "Books"},
		Mapping: airtable.FieldMapping{"author": "Authors"},
	}
}

func testDataset() airtable.Dataset {
	return airtable.Dataset{
		"Books": {
			{ID: "b1", CreatedTime: "t1", Fields: map[string]any{
				"titleFR": "Le Livre",
				"titleEN": "The Book",
				"author":  []any{"a1"},
			}},
			{ID: "b2", CreatedTime: "t2", Fields: map[string]any{
				"titleEN": "Only English",
				"author":  []any{"a1", "a404"},
			}},
		},
		"Authors": {
			{ID: "a1", CreatedTime: "t0", Fields: map[string]any{"name": "Ada", "openlibrary_key": "/authors/OL1A"}},
		},
	}
}
