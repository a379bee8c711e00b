// Package store archives fetched Airtable datasets in PostgreSQL so a
// known snapshot can be served again after a restart or a failed refresh.
package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/JonMunkholm/shelf/internal/airtable"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// ErrSnapshotNotFound is returned when no snapshot matches a lookup.
var ErrSnapshotNotFound = errors.New("snapshot not found")

// DBTX is the interface for database operations.
// Satisfied by both *pgxpool.Pool and pgx.Tx.
type DBTX interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Query(context.Context, string, ...any) (pgx.Rows, error)
	QueryRow(context.Context, string, ...any) pgx.Row
}

// DB is a DBTX that can open transactions, such as *pgxpool.Pool.
type DB interface {
	DBTX
	Begin(context.Context) (pgx.Tx, error)
}

// SnapshotInfo describes one archived dataset.
type SnapshotInfo struct {
	ID          uuid.UUID
	Schema      string
	CreatedAt   time.Time
	RecordCount int
}

// Store reads and writes dataset snapshots.
type Store struct {
	db DB
}

// New creates a Store on db.
func New(db DB) *Store {
	return &Store{db: db}
}

const schemaDDL = `
CREATE TABLE IF NOT EXISTS dataset_snapshots (
	id           uuid PRIMARY KEY,
	schema_name  text        NOT NULL,
	created_at   timestamptz NOT NULL DEFAULT now(),
	record_count integer     NOT NULL
);

CREATE INDEX IF NOT EXISTS dataset_snapshots_schema_created_idx
	ON dataset_snapshots (schema_name, created_at DESC);

CREATE TABLE IF NOT EXISTS snapshot_records (
	snapshot_id  uuid    NOT NULL REFERENCES dataset_snapshots (id) ON DELETE CASCADE,
	table_name   text    NOT NULL,
	position     integer NOT NULL,
	record_id    text    NOT NULL,
	created_time text    NOT NULL,
	fields       jsonb   NOT NULL,
	PRIMARY KEY (snapshot_id, table_name, record_id)
);
`

// Migrate creates the snapshot tables if they do not exist.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, schemaDDL); err != nil {
		return fmt.Errorf("migrate snapshot tables: %w", err)
	}
	return nil
}

var snapshotRecordColumns = []string{"snapshot_id", "table_name", "position", "record_id", "created_time", "fields"}

// SaveSnapshot stores dataset under a new snapshot id in one transaction.
func (s *Store) SaveSnapshot(ctx context.Context, schema string, dataset airtable.Dataset) (uuid.UUID, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.Nil, fmt.Errorf("generate snapshot id: %w", err)
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) // No-op if already committed

	if _, err := tx.Exec(ctx,
		`INSERT INTO dataset_snapshots (id, schema_name, record_count) VALUES ($1, $2, $3)`,
		id, schema, dataset.RecordCount(),
	); err != nil {
		return uuid.Nil, fmt.Errorf("insert snapshot: %w", err)
	}

	rows := snapshotRows(id, dataset)
	copied, err := tx.CopyFrom(ctx, pgx.Identifier{"snapshot_records"}, snapshotRecordColumns, pgx.CopyFromRows(rows))
	if err != nil {
		return uuid.Nil, fmt.Errorf("copy snapshot records: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return uuid.Nil, fmt.Errorf("commit snapshot: %w", err)
	}

	slog.Info("dataset snapshot saved",
		"snapshot_id", id,
		"schema", schema,
		"records", copied,
	)
	return id, nil
}

// snapshotRows flattens dataset into COPY rows, tables in name order and
// records in dataset order.
func snapshotRows(id uuid.UUID, dataset airtable.Dataset) [][]any {
	rows := make([][]any, 0, dataset.RecordCount())
	for _, table := range dataset.Tables() {
		for pos, rec := range dataset[table] {
			fields := rec.Fields
			if fields == nil {
				fields = map[string]any{}
			}
			rows = append(rows, []any{id, table, pos, rec.ID, rec.CreatedTime, fields})
		}
	}
	return rows
}

// LoadSnapshot returns the dataset stored under id.
func (s *Store) LoadSnapshot(ctx context.Context, id uuid.UUID) (airtable.Dataset, error) {
	var exists bool
	if err := s.db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM dataset_snapshots WHERE id = $1)`, id,
	).Scan(&exists); err != nil {
		return nil, fmt.Errorf("lookup snapshot %s: %w", id, err)
	}
	if !exists {
		return nil, ErrSnapshotNotFound
	}

	rows, err := s.db.Query(ctx, `
		SELECT table_name, record_id, created_time, fields
		FROM snapshot_records
		WHERE snapshot_id = $1
		ORDER BY table_name, position`, id)
	if err != nil {
		return nil, fmt.Errorf("query snapshot %s: %w", id, err)
	}
	defer rows.Close()

	dataset := make(airtable.Dataset)
	for rows.Next() {
		var (
			table string
			rec   airtable.RawRecord
		)
		if err := rows.Scan(&table, &rec.ID, &rec.CreatedTime, &rec.Fields); err != nil {
			return nil, fmt.Errorf("scan snapshot record: %w", err)
		}
		dataset[table] = append(dataset[table], rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read snapshot %s: %w", id, err)
	}

	return dataset, nil
}

// LatestSnapshot returns the newest snapshot of schema.
func (s *Store) LatestSnapshot(ctx context.Context, schema string) (SnapshotInfo, airtable.Dataset, error) {
	var info SnapshotInfo
	err := s.db.QueryRow(ctx, `
		SELECT id, schema_name, created_at, record_count
		FROM dataset_snapshots
		WHERE schema_name = $1
		ORDER BY created_at DESC, id DESC
		LIMIT 1`, schema,
	).Scan(&info.ID, &info.Schema, &info.CreatedAt, &info.RecordCount)
	if errors.Is(err, pgx.ErrNoRows) {
		return SnapshotInfo{}, nil, ErrSnapshotNotFound
	}
	if err != nil {
		return SnapshotInfo{}, nil, fmt.Errorf("latest snapshot: %w", err)
	}

	dataset, err := s.LoadSnapshot(ctx, info.ID)
	if err != nil {
		return SnapshotInfo{}, nil, err
	}
	return info, dataset, nil
}

// PruneSnapshots deletes all but the newest keep snapshots of schema and
// returns how many were removed.
func (s *Store) PruneSnapshots(ctx context.Context, schema string, keep int) (int64, error) {
	if keep < 1 {
		return 0, fmt.Errorf("keep must be positive, got %d", keep)
	}

	tag, err := s.db.Exec(ctx, `
		DELETE FROM dataset_snapshots
		WHERE schema_name = $1
		  AND id NOT IN (
			SELECT id FROM dataset_snapshots
			WHERE schema_name = $1
			ORDER BY created_at DESC, id DESC
			LIMIT $2
		  )`, schema, keep)
	if err != nil {
		return 0, fmt.Errorf("prune snapshots: %w", err)
	}

	if n := tag.RowsAffected(); n > 0 {
		slog.Info("dataset snapshots pruned", "schema", schema, "deleted", n, "kept", keep)
	}
	return tag.RowsAffected(), nil
}
