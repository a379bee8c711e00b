// Package airtable turns flat records fetched from an Airtable base into
// resolved objects the UI can render directly.
//
// The remote store hands back records shaped as
//
//	{"id": "rec...", "createdTime": "...", "fields": {"title": "...", "author": ["rec..."]}}
//
// Relations are plain id lists and translated content lives in sibling
// fields suffixed with a locale code (titleFR, titleEN). [Sanitize] folds a
// [RawRecord] into a [SanitizedRecord]:
//
//   - fields listed in a [FieldMapping] are replaced by the linked records
//     found in the [Dataset], each tagged with its table as __typename;
//   - locale-suffixed fields are collapsed into their generic name using the
//     caller's ordered locale preferences;
//   - id and createdTime are copied from the record itself;
//   - the record's own __typename is inferred from the table holding its id.
//
// # Relations
//
// A relation that cannot be resolved is left as its raw value. Multi-value
// relations are all-or-nothing: one unknown id keeps the whole raw list.
// Embedded records are not sanitized themselves, so their locale fields and
// nested relations stay raw.
//
// # Concurrency
//
// Nothing in this package mutates its inputs. A Dataset can be shared by any
// number of goroutines sanitizing different records, which is what
// [Sanitizer.SanitizeAll] does.
package airtable
