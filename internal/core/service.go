package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/JonMunkholm/shelf/internal/airtable"
	"github.com/JonMunkholm/shelf/internal/logging"
	"github.com/JonMunkholm/shelf/internal/openlibrary"
	"github.com/JonMunkholm/shelf/internal/store"
	"github.com/google/uuid"
	"github.com/samber/lo"
)

var (
	// ErrTableNotFound is returned for tables outside the service schema.
	ErrTableNotFound = errors.New("table not found")

	// ErrRecordNotFound is returned when a table has no record with an id.
	ErrRecordNotFound = errors.New("record not found")

	// ErrNoDataset is returned before the first successful refresh.
	ErrNoDataset = errors.New("dataset not loaded")

	// ErrSchemaNotFound is returned for unregistered schema names.
	ErrSchemaNotFound = errors.New("schema not found")

	// ErrInvalidRequest wraps malformed caller input.
	ErrInvalidRequest = errors.New("invalid request")
)

// Fetcher reads and writes Airtable records. Satisfied by *client.Client.
type Fetcher interface {
	FetchDataset(ctx context.Context, tables ...string) (airtable.Dataset, error)
	FindOne(ctx context.Context, table, formula string) (airtable.RawRecord, error)
	CreateRecords(ctx context.Context, table string, fields []map[string]any) ([]airtable.RawRecord, error)
}

// SnapshotStore archives datasets. Satisfied by *store.Store.
type SnapshotStore interface {
	SaveSnapshot(ctx context.Context, schema string, dataset airtable.Dataset) (uuid.UUID, error)
	LatestSnapshot(ctx context.Context, schema string) (store.SnapshotInfo, airtable.Dataset, error)
	PruneSnapshots(ctx context.Context, schema string, keep int) (int64, error)
}

// BookLookup finds books and authors by public identifiers.
// Satisfied by *openlibrary.Client.
type BookLookup interface {
	BookByISBN(ctx context.Context, isbn string) (*openlibrary.Book, error)
	Author(ctx context.Context, key string) (*openlibrary.Author, error)
}

// Options configures a Service.
type Options struct {
	Schema        airtable.Schema
	DefaultLocale string
	Workers       int
	KeepSnapshots int       // Snapshots kept after each save (default: 5)
	CustomerID    string    // Customer record new books are attached to
	MaxImports    int       // Concurrent ISBN imports (default: 2)
	Store         SnapshotStore
	Books         BookLookup
	Now           func() time.Time
}

// DatasetInfo describes the dataset currently served.
type DatasetInfo struct {
	SnapshotID  string    `json:"snapshotId,omitempty"`
	Schema      string    `json:"schema"`
	FetchedAt   time.Time `json:"fetchedAt"`
	Tables      []string  `json:"tables"`
	RecordCount int       `json:"recordCount"`
	Source      string    `json:"source"` // "airtable" or "snapshot"
}

type snapshot struct {
	dataset airtable.Dataset
	info    DatasetInfo
}

// Service serves sanitized records of one schema from an in-memory dataset
// snapshot refreshed from Airtable.
type Service struct {
	fetcher Fetcher
	opts    Options
	imports *ImportLimiter

	// refreshMu serializes refreshes; mu guards current.
	refreshMu sync.Mutex
	mu        sync.RWMutex
	current   *snapshot
}

// NewService creates a Service. The schema must list at least one table.
func NewService(fetcher Fetcher, opts Options) (*Service, error) {
	if fetcher == nil {
		return nil, errors.New("fetcher is required")
	}
	if len(opts.Schema.Tables) == 0 {
		return nil, fmt.Errorf("schema %q has no tables", opts.Schema.Name)
	}
	if opts.DefaultLocale == "" {
		opts.DefaultLocale = "en"
	}
	if opts.KeepSnapshots <= 0 {
		opts.KeepSnapshots = 5
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Service{
		fetcher: fetcher,
		opts:    opts,
		imports: NewImportLimiter(opts.MaxImports, DefaultImportWait),
	}, nil
}

// Schema returns the schema the service serves.
func (s *Service) Schema() airtable.Schema {
	return s.opts.Schema
}

// Refresh fetches every table of the schema and swaps in the new dataset.
// The previous dataset keeps being served if the fetch fails. When a
// snapshot store is configured the dataset is archived; archive failures
// are logged and do not fail the refresh.
func (s *Service) Refresh(ctx context.Context) (DatasetInfo, error) {
	s.refreshMu.Lock()
	defer s.refreshMu.Unlock()

	logger := logging.WithFields(ctx, "schema", s.opts.Schema.Name)
	start := s.opts.Now()

	dataset, err := s.fetcher.FetchDataset(ctx, s.opts.Schema.Tables...)
	if err != nil {
		return DatasetInfo{}, fmt.Errorf("refresh %s: %w", s.opts.Schema.Name, err)
	}

	info := DatasetInfo{
		Schema:      s.opts.Schema.Name,
		FetchedAt:   start,
		Tables:      dataset.Tables(),
		RecordCount: dataset.RecordCount(),
		Source:      "airtable",
	}

	if s.opts.Store != nil {
		id, err := s.opts.Store.SaveSnapshot(ctx, s.opts.Schema.Name, dataset)
		if err != nil {
			logger.Warn("dataset snapshot not archived", "error", err)
		} else {
			info.SnapshotID = id.String()
			if _, err := s.opts.Store.PruneSnapshots(ctx, s.opts.Schema.Name, s.opts.KeepSnapshots); err != nil {
				logger.Warn("snapshot prune failed", "error", err)
			}
		}
	}

	s.swap(dataset, info)

	logger.Info("dataset refreshed",
		"tables", len(info.Tables),
		"records", info.RecordCount,
		"snapshot_id", info.SnapshotID,
		"duration_ms", s.opts.Now().Sub(start).Milliseconds(),
	)
	return info, nil
}

// Restore loads the newest archived snapshot. It is used at startup when
// Airtable cannot be reached.
func (s *Service) Restore(ctx context.Context) (DatasetInfo, error) {
	if s.opts.Store == nil {
		return DatasetInfo{}, store.ErrSnapshotNotFound
	}

	snap, dataset, err := s.opts.Store.LatestSnapshot(ctx, s.opts.Schema.Name)
	if err != nil {
		return DatasetInfo{}, fmt.Errorf("restore %s: %w", s.opts.Schema.Name, err)
	}

	info := DatasetInfo{
		SnapshotID:  snap.ID.String(),
		Schema:      s.opts.Schema.Name,
		FetchedAt:   snap.CreatedAt,
		Tables:      dataset.Tables(),
		RecordCount: dataset.RecordCount(),
		Source:      "snapshot",
	}
	s.swap(dataset, info)

	logging.FromContext(ctx).Info("dataset restored from snapshot",
		"schema", info.Schema,
		"snapshot_id", info.SnapshotID,
		"records", info.RecordCount,
	)
	return info, nil
}

func (s *Service) swap(dataset airtable.Dataset, info DatasetInfo) {
	s.mu.Lock()
	s.current = &snapshot{dataset: dataset, info: info}
	s.mu.Unlock()
}

func (s *Service) snapshot() (*snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil {
		return nil, ErrNoDataset
	}
	return s.current, nil
}

// Info describes the dataset currently served.
func (s *Service) Info() (DatasetInfo, error) {
	snap, err := s.snapshot()
	if err != nil {
		return DatasetInfo{}, err
	}
	return snap.info, nil
}

// PreferredLocales returns the locale fallback order for a request:
// the requested locale, then the default one.
func (s *Service) PreferredLocales(locale string) []string {
	return PreferredLocales(locale, s.opts.DefaultLocale)
}

// PreferredLocales builds a de-duplicated, upper-cased fallback list.
func PreferredLocales(locales ...string) []string {
	upper := lo.FilterMap(locales, func(l string, _ int) (string, bool) {
		l = strings.ToUpper(strings.TrimSpace(l))
		return l, l != ""
	})
	return lo.Uniq(upper)
}

func (s *Service) sanitizer(ctx context.Context, dataset airtable.Dataset, locale string) *airtable.Sanitizer {
	logger := logging.FromContext(ctx)
	return airtable.NewSanitizer(dataset, airtable.Options{
		Locales: s.PreferredLocales(locale),
		Mapping: s.opts.Schema.Mapping,
		Workers: s.opts.Workers,
		OnMiss: func(field, table, id string) {
			logger.Debug("relation not resolved", "field", field, "table", table, "id", id)
		},
	})
}

// ListRecords returns every record of table, sanitized for locale.
func (s *Service) ListRecords(ctx context.Context, table, locale string) ([]airtable.SanitizedRecord, error) {
	if !s.opts.Schema.HasTable(table) {
		return nil, fmt.Errorf("%s: %w", table, ErrTableNotFound)
	}
	snap, err := s.snapshot()
	if err != nil {
		return nil, err
	}

	return s.sanitizer(ctx, snap.dataset, locale).SanitizeTable(ctx, table)
}

// GetRecord returns one record of table, sanitized for locale.
func (s *Service) GetRecord(ctx context.Context, table, id, locale string) (airtable.SanitizedRecord, error) {
	if !s.opts.Schema.HasTable(table) {
		return nil, fmt.Errorf("%s: %w", table, ErrTableNotFound)
	}
	snap, err := s.snapshot()
	if err != nil {
		return nil, err
	}

	rec, ok := snap.dataset.Find(table, id)
	if !ok {
		return nil, fmt.Errorf("%s/%s: %w", table, id, ErrRecordNotFound)
	}
	return s.sanitizer(ctx, snap.dataset, locale).Sanitize(rec), nil
}

// SanitizeRequest is a stateless sanitize call: the caller brings the
// record, the dataset and either a mapping or a registered schema name.
type SanitizeRequest struct {
	Record  airtable.RawRecord    `json:"record"`
	Dataset airtable.Dataset      `json:"dataset"`
	Locales []string              `json:"locales"`
	Mapping airtable.FieldMapping `json:"mapping,omitempty"`
	Schema  string                `json:"schema,omitempty"`
}

// SanitizeRaw sanitizes req.Record against req.Dataset. A named schema
// supplies the mapping when req.Mapping is empty.
func SanitizeRaw(req SanitizeRequest) (airtable.SanitizedRecord, error) {
	if req.Record.ID == "" {
		return nil, fmt.Errorf("%w: record id is required", ErrInvalidRequest)
	}

	mapping := req.Mapping
	if len(mapping) == 0 && req.Schema != "" {
		schema, ok := airtable.GetSchema(req.Schema)
		if !ok {
			return nil, fmt.Errorf("%s: %w", req.Schema, ErrSchemaNotFound)
		}
		mapping = schema.Mapping
	}
	if mapping == nil {
		mapping = airtable.FieldMapping{}
	}

	return airtable.Sanitize(req.Record, req.Dataset, req.Locales, mapping), nil
}
