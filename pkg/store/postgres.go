package store

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/chewxy/math32"
	"github.com/itohio/fieldwatch/pkg/monitor"
	"github.com/itohio/fieldwatch/pkg/telemetry"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const schema = `
CREATE TABLE IF NOT EXISTS readings (
	id                BIGSERIAL PRIMARY KEY,
	kind              TEXT        NOT NULL,
	recorded_at       TIMESTAMPTZ NOT NULL,
	uptime_us         BIGINT      NOT NULL DEFAULT 0,
	temperature       REAL,
	vibration         REAL,
	distance          REAL,
	severity          TEXT        NOT NULL DEFAULT 'NORMAL',
	cutoff            BOOLEAN     NOT NULL DEFAULT FALSE,
	temperature_fault BOOLEAN     NOT NULL DEFAULT FALSE,
	humidity          REAL,
	ph                REAL,
	phosphorus        BOOLEAN     NOT NULL DEFAULT FALSE,
	potassium         BOOLEAN     NOT NULL DEFAULT FALSE,
	pump              BOOLEAN     NOT NULL DEFAULT FALSE,
	notes             TEXT        NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS readings_kind_time ON readings (kind, recorded_at);

CREATE TABLE IF NOT EXISTS supplies (
	id       BIGSERIAL PRIMARY KEY,
	name     TEXT    NOT NULL UNIQUE,
	type     TEXT    NOT NULL DEFAULT '',
	quantity INTEGER NOT NULL CHECK (quantity >= 0),
	expires  DATE    NOT NULL
);
`

const columns = `id, kind, recorded_at, uptime_us, temperature, vibration, distance, severity,
	cutoff, temperature_fault, humidity, ph, phosphorus, potassium, pump, notes`

// Postgres is a Store backed by a pgx connection pool.
type Postgres struct {
	pool *pgxpool.Pool
}

// OpenPostgres connects to dsn, checks the connection, and creates the
// schema if needed.
func OpenPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("invalid database config: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("database unreachable: %w", err)
	}
	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}
	return &Postgres{pool: pool}, nil
}

func (p *Postgres) Insert(ctx context.Context, rec *Record) error {
	r := rec.Report
	err := p.pool.QueryRow(ctx, `
		INSERT INTO readings (kind, recorded_at, uptime_us, temperature, vibration, distance, severity,
			cutoff, temperature_fault, humidity, ph, phosphorus, potassium, pump, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		RETURNING id`,
		args(r, rec.Notes)...,
	).Scan(&rec.ID)
	if err != nil {
		return fmt.Errorf("failed to insert reading: %w", err)
	}
	return nil
}

func (p *Postgres) Get(ctx context.Context, id int64) (Record, error) {
	row := p.pool.QueryRow(ctx, `SELECT `+columns+` FROM readings WHERE id = $1`, id)
	rec, err := scanRecord(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Record{}, ErrNotFound
	}
	if err != nil {
		return Record{}, fmt.Errorf("failed to get reading %d: %w", id, err)
	}
	return rec, nil
}

func (p *Postgres) List(ctx context.Context, f Filter) ([]Record, error) {
	query, qargs := listQuery(f)
	rows, err := p.pool.Query(ctx, query, qargs...)
	if err != nil {
		return nil, fmt.Errorf("failed to list readings: %w", err)
	}
	defer rows.Close()

	var result []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan reading: %w", err)
		}
		result = append(result, rec)
	}
	return result, rows.Err()
}

func (p *Postgres) Update(ctx context.Context, rec Record) error {
	a := args(rec.Report, rec.Notes)
	tag, err := p.pool.Exec(ctx, `
		UPDATE readings SET kind = $1, recorded_at = $2, uptime_us = $3, temperature = $4,
			vibration = $5, distance = $6, severity = $7, cutoff = $8, temperature_fault = $9,
			humidity = $10, ph = $11, phosphorus = $12, potassium = $13, pump = $14, notes = $15
		WHERE id = $16`,
		append(a, rec.ID)...,
	)
	if err != nil {
		return fmt.Errorf("failed to update reading %d: %w", rec.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *Postgres) Delete(ctx context.Context, id int64) error {
	tag, err := p.pool.Exec(ctx, `DELETE FROM readings WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete reading %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Close releases the pool.
func (p *Postgres) Close() error {
	p.pool.Close()
	return nil
}

// args returns the 15 column values of an insert or update, in schema order.
func args(r telemetry.Report, notes string) []any {
	var temperature, vibration, distance, humidity, ph *float32
	switch r.Kind {
	case telemetry.KindIndustrial:
		temperature, vibration, distance = &r.Temperature, &r.Vibration, &r.Distance
	case telemetry.KindIrrigation:
		if !math32.IsNaN(r.Humidity) {
			humidity = &r.Humidity
		}
		ph = &r.PH
	}
	return []any{
		string(r.Kind), r.Time, r.Uptime.Microseconds(),
		temperature, vibration, distance, r.Severity.String(),
		r.Cutoff, r.TemperatureFault,
		humidity, ph, r.Phosphorus, r.Potassium, r.Pump,
		notes,
	}
}

// listQuery builds the SELECT for f. With a limit, the newest rows are
// selected first and then put back in chronological order.
func listQuery(f Filter) (string, []any) {
	var (
		where []string
		qargs []any
	)
	arg := func(v any) string {
		qargs = append(qargs, v)
		return "$" + strconv.Itoa(len(qargs))
	}

	if f.Kind != "" {
		where = append(where, "kind = "+arg(string(f.Kind)))
	}
	if !f.Since.IsZero() {
		where = append(where, "recorded_at >= "+arg(f.Since))
	}
	if !f.Until.IsZero() {
		where = append(where, "recorded_at < "+arg(f.Until))
	}
	if f.ActiveOnly {
		where = append(where, "((kind = 'industrial' AND severity <> 'NORMAL') OR (kind = 'irrigation' AND pump))")
	}

	var sb strings.Builder
	sb.WriteString("SELECT " + columns + " FROM readings")
	if len(where) > 0 {
		sb.WriteString(" WHERE " + strings.Join(where, " AND "))
	}
	if f.Limit <= 0 {
		sb.WriteString(" ORDER BY recorded_at, id")
		return sb.String(), qargs
	}

	sb.WriteString(" ORDER BY recorded_at DESC, id DESC LIMIT " + arg(f.Limit))
	return "SELECT * FROM (" + sb.String() + ") newest ORDER BY recorded_at, id", qargs
}

func scanRecord(row pgx.Row) (Record, error) {
	var (
		rec            Record
		kind, severity string
		uptimeUS       int64
		recordedAt     time.Time

		temperature, vibration, distance, humidity, ph *float32
	)
	r := &rec.Report
	err := row.Scan(&rec.ID, &kind, &recordedAt, &uptimeUS, &temperature, &vibration, &distance, &severity,
		&r.Cutoff, &r.TemperatureFault, &humidity, &ph, &r.Phosphorus, &r.Potassium, &r.Pump, &rec.Notes)
	if err != nil {
		return Record{}, err
	}

	r.Kind = telemetry.Kind(kind)
	r.Time = recordedAt
	r.Uptime = time.Duration(uptimeUS) * time.Microsecond
	r.Temperature = deref(temperature, 0)
	r.Vibration = deref(vibration, 0)
	r.Distance = deref(distance, 0)
	r.PH = deref(ph, 0)
	if r.Kind == telemetry.KindIrrigation {
		r.Humidity = deref(humidity, math32.NaN())
	}
	if r.Severity, err = monitor.ParseSeverity(severity); err != nil {
		return Record{}, err
	}
	return rec, nil
}

func deref(v *float32, def float32) float32 {
	if v == nil {
		return def
	}
	return *v
}
