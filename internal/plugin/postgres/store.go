// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Stockroom Contributors

// Package postgres implements the plugin record store on PostgreSQL.
package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/samber/oops"

	"github.com/stockroom/stockroom/internal/plugin"
)

// pool abstracts pgxpool.Pool for unit testing with pgxmock.
type pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store implements plugin.RecordStore using PostgreSQL.
type Store struct {
	pool pool
}

// NewStore creates a record store on the given connection pool.
func NewStore(p pool) *Store {
	return &Store{pool: p}
}

// GetOrCreate returns the record for slug, creating it inactive with
// the given display name when absent. The insert uses ON CONFLICT DO
// NOTHING so repeated discovery of the same slug yields exactly one row.
func (s *Store) GetOrCreate(ctx context.Context, slug, name string) (*plugin.Record, bool, error) {
	now := time.Now().UTC()
	tag, err := s.pool.Exec(ctx, `
		INSERT INTO plugin_records (slug, name, active, created_at, updated_at)
		VALUES ($1, $2, FALSE, $3, $3)
		ON CONFLICT (slug) DO NOTHING
	`, slug, name, now)
	if err != nil {
		return nil, false, s.wrap("PLUGIN_RECORD_CREATE_FAILED", "insert plugin record", slug, err)
	}
	created := tag.RowsAffected() > 0

	rec, err := s.get(ctx, slug)
	if err != nil {
		return nil, false, err
	}
	return rec, created, nil
}

// SetActive toggles the persisted active flag.
func (s *Store) SetActive(ctx context.Context, slug string, active bool) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE plugin_records SET active = $2, updated_at = $3 WHERE slug = $1
	`, slug, active, time.Now().UTC())
	if err != nil {
		return s.wrap("PLUGIN_RECORD_UPDATE_FAILED", "update active flag", slug, err)
	}
	if tag.RowsAffected() == 0 {
		return oops.With("slug", slug).Wrap(plugin.ErrRecordNotFound)
	}
	return nil
}

// SetFault records a fault against the slug's record.
func (s *Store) SetFault(ctx context.Context, slug, faultID, message string) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE plugin_records
		SET fault_id = $2, fault_message = $3, updated_at = $4
		WHERE slug = $1
	`, slug, faultID, message, time.Now().UTC())
	if err != nil {
		return s.wrap("PLUGIN_RECORD_FAULT_FAILED", "record fault", slug, err)
	}
	if tag.RowsAffected() == 0 {
		return oops.With("slug", slug).Wrap(plugin.ErrRecordNotFound)
	}
	return nil
}

// List returns all records ordered by slug.
func (s *Store) List(ctx context.Context) ([]*plugin.Record, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT slug, name, active, fault_id, fault_message, created_at, updated_at
		FROM plugin_records
		ORDER BY slug
	`)
	if err != nil {
		return nil, s.wrap("PLUGIN_RECORD_LIST_FAILED", "list plugin records", "", err)
	}
	defer rows.Close()

	var records []*plugin.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, oops.Code("PLUGIN_RECORD_LIST_FAILED").With("operation", "scan plugin record").Wrap(err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, s.wrap("PLUGIN_RECORD_LIST_FAILED", "iterate plugin records", "", err)
	}
	return records, nil
}

// get fetches one record by slug.
func (s *Store) get(ctx context.Context, slug string) (*plugin.Record, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT slug, name, active, fault_id, fault_message, created_at, updated_at
		FROM plugin_records
		WHERE slug = $1
	`, slug)

	rec, err := scanRecord(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.With("slug", slug).Wrap(plugin.ErrRecordNotFound)
	}
	if err != nil {
		return nil, s.wrap("PLUGIN_RECORD_GET_FAILED", "get plugin record", slug, err)
	}
	return rec, nil
}

func scanRecord(row pgx.Row) (*plugin.Record, error) {
	var rec plugin.Record
	var faultID, faultMessage *string
	if err := row.Scan(
		&rec.Slug,
		&rec.Name,
		&rec.Active,
		&faultID,
		&faultMessage,
		&rec.CreatedAt,
		&rec.UpdatedAt,
	); err != nil {
		return nil, err //nolint:wrapcheck // callers wrap with context
	}
	if faultID != nil {
		rec.FaultID = *faultID
	}
	if faultMessage != nil {
		rec.FaultMessage = *faultMessage
	}
	return &rec, nil
}

// wrap adds oops context and maps unprovisioned-store conditions to
// ErrStoreNotReady so the loader can hand the retry to its caller.
func (s *Store) wrap(code, operation, slug string, err error) error {
	builder := oops.Code(code).With("operation", operation)
	if slug != "" {
		builder = builder.With("slug", slug)
	}
	if isNotReady(err) {
		return builder.Wrap(errors.Join(plugin.ErrStoreNotReady, err))
	}
	return builder.Wrap(err)
}

// isNotReady recognizes the transient condition of a reachable cluster
// whose schema has not been migrated yet, and plain connection failures
// before the database exists.
func isNotReady(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgerrcode.UndefinedTable, pgerrcode.UndefinedColumn, pgerrcode.InvalidCatalogName:
			return true
		}
	}
	var connErr *pgconn.ConnectError
	return errors.As(err, &connErr)
}
