package airtable

import (
	"context"
	"runtime"
	"sort"

	"golang.org/x/sync/errgroup"
)

// Sanitize resolves one raw record against dataset.
//
// preferredLocales is the locale fallback order, highest priority first.
// mapping lists the relation fields. Neither record nor dataset is modified.
func Sanitize(record RawRecord, dataset Dataset, preferredLocales []string, mapping FieldMapping) SanitizedRecord {
	return sanitize(record, dataset, preferredLocales, mapping, nil)
}

func sanitize(record RawRecord, dataset Dataset, locales []string, mapping FieldMapping, onMiss MissFunc) SanitizedRecord {
	out := make(SanitizedRecord, len(record.Fields)+3)

	names := make([]string, 0, len(record.Fields))
	for name := range record.Fields {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		out[name] = resolveField(name, record.Fields[name], dataset, mapping, onMiss)

		if !IsLocalisedField(name, locales) || HasGenericField(out, name, locales) {
			continue
		}
		generic := GenericFieldName(name, locales)
		for _, locale := range locales {
			// Read from the raw fields: the localised siblings may not have
			// been copied onto out yet.
			if v, ok := localisedValue(record.Fields, generic, locale); ok && truthy(v) {
				out[generic] = cloneValue(v)
				break
			}
		}
	}

	// System fields always win over same-named fields.
	out[KeyID] = record.ID
	out[KeyCreatedTime] = record.CreatedTime

	for _, table := range dataset.Tables() {
		if _, found := dataset.Find(table, record.ID); found {
			out[KeyTypename] = table
		}
	}

	return out
}

// Options configures a Sanitizer.
type Options struct {
	// Locales is the locale fallback order, highest priority first.
	Locales []string

	// Mapping lists the relation fields.
	Mapping FieldMapping

	// OnMiss, if set, is called for every relation id missing from the
	// dataset. It may be called from several goroutines by SanitizeAll.
	OnMiss MissFunc

	// Workers caps SanitizeAll parallelism (default: GOMAXPROCS).
	Workers int
}

// Sanitizer applies the same options to many records of one dataset.
type Sanitizer struct {
	dataset Dataset
	opts    Options
}

// NewSanitizer returns a Sanitizer bound to dataset.
// The dataset must not be modified while the Sanitizer is in use.
func NewSanitizer(dataset Dataset, opts Options) *Sanitizer {
	opts.Locales = append([]string(nil), opts.Locales...)
	opts.Mapping = opts.Mapping.Clone()
	if opts.Workers <= 0 {
		opts.Workers = runtime.GOMAXPROCS(0)
	}
	return &Sanitizer{dataset: dataset, opts: opts}
}

// Sanitize resolves one record.
func (s *Sanitizer) Sanitize(record RawRecord) SanitizedRecord {
	return sanitize(record, s.dataset, s.opts.Locales, s.opts.Mapping, s.opts.OnMiss)
}

// SanitizeTable resolves every record of table, in dataset order.
func (s *Sanitizer) SanitizeTable(ctx context.Context, table string) ([]SanitizedRecord, error) {
	return s.SanitizeAll(ctx, s.dataset[table])
}

// SanitizeAll resolves records concurrently. The result keeps the input
// order. It only fails when ctx is done before every record is processed.
func (s *Sanitizer) SanitizeAll(ctx context.Context, records []RawRecord) ([]SanitizedRecord, error) {
	out := make([]SanitizedRecord, len(records))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.Workers)

	for i := range records {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			out[i] = s.Sanitize(records[i])
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	// Workers may all have finished before noticing a cancelled parent.
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
