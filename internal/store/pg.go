package store

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Postgres persists audit entries and price series through a pgx pool.
type Postgres struct {
	db *pgxpool.Pool
}

func NewPostgres(db *pgxpool.Pool) *Postgres {
	return &Postgres{db: db}
}

// EnsureSchema creates the hunt schema and tables if missing. Safe to run
// on every startup.
func (p *Postgres) EnsureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE SCHEMA IF NOT EXISTS hunt`,
		`CREATE TABLE IF NOT EXISTS hunt.ledger_entries (
			id BIGSERIAL PRIMARY KEY,
			user_id TEXT NOT NULL,
			action TEXT NOT NULL,
			item_id TEXT,
			amount_micros BIGINT NOT NULL,
			balance_micros BIGINT NOT NULL,
			at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS hunt.price_points (
			id BIGSERIAL PRIMARY KEY,
			item_id TEXT NOT NULL,
			price_micros BIGINT NOT NULL,
			at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS price_points_item_at ON hunt.price_points (item_id, at)`,
	}
	for _, stmt := range stmts {
		if _, err := p.db.Exec(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

func (p *Postgres) AppendLedgerEntry(ctx context.Context, entry LedgerEntry) error {
	_, err := p.db.Exec(ctx, `
		INSERT INTO hunt.ledger_entries (user_id, action, item_id, amount_micros, balance_micros, at)
		VALUES ($1, $2, NULLIF($3, ''), $4, $5, $6)
	`, entry.UserID, entry.Action, entry.ItemID, entry.AmountMicros, entry.BalanceMicros, entry.At)
	return err
}

func (p *Postgres) AppendPricePoints(ctx context.Context, points []PricePoint) error {
	if len(points) == 0 {
		return nil
	}
	tx, err := p.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	for _, pt := range points {
		if _, err := tx.Exec(ctx, `
			INSERT INTO hunt.price_points (item_id, price_micros, at)
			VALUES ($1, $2, $3)
		`, pt.ItemID, pt.PriceMicros, pt.At); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}
