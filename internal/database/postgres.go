// Package database provides PostgreSQL storage for exported generation records.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/rs/zerolog"

	"github.com/DridrM/renewable-energy-forecast/internal/models"
	"github.com/DridrM/renewable-energy-forecast/internal/resource"
)

const schema = `
	CREATE TABLE IF NOT EXISTS generation_records (
		resource           TEXT             NOT NULL,
		start_date         TIMESTAMPTZ      NOT NULL,
		end_date           TIMESTAMPTZ      NOT NULL,
		updated_date       TIMESTAMPTZ,
		value              DOUBLE PRECISION NOT NULL,
		eic_code           TEXT             NOT NULL DEFAULT '',
		unit_name          TEXT             NOT NULL DEFAULT '',
		production_type    TEXT             NOT NULL DEFAULT '',
		production_subtype TEXT             NOT NULL DEFAULT '',
		PRIMARY KEY (resource, start_date, eic_code, production_type, production_subtype)
	)
`

const upsert = `
	INSERT INTO generation_records (resource, start_date, end_date, updated_date, value, eic_code, unit_name, production_type, production_subtype)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	ON CONFLICT (resource, start_date, eic_code, production_type, production_subtype)
	DO UPDATE SET
		end_date = EXCLUDED.end_date,
		updated_date = EXCLUDED.updated_date,
		value = EXCLUDED.value,
		unit_name = EXCLUDED.unit_name
`

// DB wraps the PostgreSQL database connection.
type DB struct {
	db     *sql.DB
	logger zerolog.Logger
}

// New creates a new database connection.
func New(dsn string, logger zerolog.Logger) (*DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database connection: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	return &DB{
		db:     db,
		logger: logger.With().Str("component", "database").Logger(),
	}, nil
}

// Close closes the database connection.
func (d *DB) Close() error {
	return d.db.Close()
}

// Ping checks if the database connection is alive.
func (d *DB) Ping() error {
	return d.db.Ping()
}

// EnsureSchema creates the records table when missing.
func (d *DB) EnsureSchema(ctx context.Context) error {
	if _, err := d.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("creating schema: %w", err)
	}
	return nil
}

// InsertRecords upserts records of kind in a single transaction and returns
// the number of rows written.
func (d *DB) InsertRecords(ctx context.Context, kind resource.Kind, records []models.GenerationRecord) (int, error) {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("starting transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, upsert)
	if err != nil {
		return 0, fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	for i, rec := range records {
		if _, err := stmt.ExecContext(ctx, recordArgs(kind, rec)...); err != nil {
			return 0, fmt.Errorf("inserting record %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing records: %w", err)
	}

	d.logger.Debug().
		Str("resource", kind.Name()).
		Int("count", len(records)).
		Msg("inserted generation records")

	return len(records), nil
}

// CountRecords returns the number of stored records, for every resource when
// kind is zero.
func (d *DB) CountRecords(ctx context.Context, kind resource.Kind) (int64, error) {
	var count int64
	var err error
	if kind == 0 {
		err = d.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM generation_records").Scan(&count)
	} else {
		err = d.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM generation_records WHERE resource = $1", kind.Name()).Scan(&count)
	}
	if err != nil {
		return 0, fmt.Errorf("counting records: %w", err)
	}
	return count, nil
}

// recordArgs maps a record onto the upsert parameters.
func recordArgs(kind resource.Kind, rec models.GenerationRecord) []any {
	var updated *time.Time
	if !rec.UpdatedDate.IsZero() {
		u := rec.UpdatedDate
		updated = &u
	}
	return []any{
		kind.Name(),
		rec.StartDate,
		rec.EndDate,
		updated,
		rec.Value,
		rec.Unit[resource.ColEICCode],
		rec.Unit[resource.ColUnitName],
		rec.Unit[resource.ColProductionType],
		rec.Unit[resource.ColProductionSubtype],
	}
}
