package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
)

const uniqueViolation = "23505"

func (p *Postgres) AddSupply(ctx context.Context, s *Supply) error {
	if err := s.Validate(); err != nil {
		return err
	}
	s.Expires = Date(s.Expires)
	err := p.pool.QueryRow(ctx, `
		INSERT INTO supplies (name, type, quantity, expires)
		VALUES ($1, $2, $3, $4)
		RETURNING id`,
		s.Name, s.Type, s.Quantity, s.Expires,
	).Scan(&s.ID)

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("failed to insert supply %q: %w", s.Name, err)
	}
	return nil
}

func (p *Postgres) ListSupplies(ctx context.Context) ([]Supply, error) {
	return p.querySupplies(ctx, `SELECT id, name, type, quantity, expires FROM supplies ORDER BY name`)
}

func (p *Postgres) SetQuantity(ctx context.Context, name string, quantity int) error {
	if err := validQuantity(quantity); err != nil {
		return err
	}
	tag, err := p.pool.Exec(ctx, `UPDATE supplies SET quantity = $1 WHERE name = $2`, quantity, name)
	if err != nil {
		return fmt.Errorf("failed to update supply %q: %w", name, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *Postgres) RemoveSupply(ctx context.Context, name string) error {
	tag, err := p.pool.Exec(ctx, `DELETE FROM supplies WHERE name = $1`, name)
	if err != nil {
		return fmt.Errorf("failed to delete supply %q: %w", name, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *Postgres) Expiring(ctx context.Context, from, to time.Time) ([]Supply, error) {
	return p.querySupplies(ctx, `
		SELECT id, name, type, quantity, expires FROM supplies
		WHERE expires BETWEEN $1 AND $2
		ORDER BY expires, name`,
		Date(from), Date(to),
	)
}

func (p *Postgres) querySupplies(ctx context.Context, query string, args ...any) ([]Supply, error) {
	rows, err := p.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list supplies: %w", err)
	}
	defer rows.Close()

	var result []Supply
	for rows.Next() {
		var s Supply
		if err := rows.Scan(&s.ID, &s.Name, &s.Type, &s.Quantity, &s.Expires); err != nil {
			return nil, fmt.Errorf("failed to scan supply: %w", err)
		}
		s.Expires = Date(s.Expires)
		result = append(result, s)
	}
	return result, rows.Err()
}
