package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"

	"github.com/tjournal/journal-engine/internal/model"
)

// Pool is the subset of *pgxpool.Pool the store uses. pgxmock pools
// satisfy it as well.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore implements Store using PostgreSQL as the source of truth.
// All monetary values are stored as NUMERIC for exact decimal precision.
type PostgresStore struct {
	pool Pool
}

// NewPostgresStore creates a new PostgreSQL-backed store.
func NewPostgresStore(pool Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS trades (
		id          BIGSERIAL PRIMARY KEY,
		symbol      TEXT        NOT NULL,
		entry_price NUMERIC     NOT NULL,
		quantity    BIGINT      NOT NULL,
		fee         NUMERIC     NOT NULL DEFAULT 0,
		reason      TEXT        NOT NULL,
		entry_date  TIMESTAMPTZ NOT NULL DEFAULT now(),
		exit_price  NUMERIC,
		exit_date   TIMESTAMPTZ,
		notes       TEXT        NOT NULL DEFAULT '',
		tags        TEXT[]      NOT NULL DEFAULT '{}',
		image_urls  TEXT[]      NOT NULL DEFAULT '{}',
		deleted_at  TIMESTAMPTZ
	)`,
	`CREATE INDEX IF NOT EXISTS trades_active_entry_date_idx
		ON trades (entry_date) WHERE deleted_at IS NULL`,
	// Tables created with an INTEGER quantity; a no-op once it is BIGINT.
	`ALTER TABLE trades ALTER COLUMN quantity TYPE BIGINT`,
}

// Migrate creates the trades table and its indexes if they are missing.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	for _, stmt := range postgresSchema {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migrate trades schema: %w", err)
		}
	}
	return nil
}

const tradeColumns = `id, symbol, entry_price::TEXT, quantity, fee::TEXT, reason,
		        entry_date, exit_price::TEXT, exit_date, notes, tags, image_urls, deleted_at`

func (s *PostgresStore) List(ctx context.Context) ([]model.Trade, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+tradeColumns+`
		 FROM trades WHERE deleted_at IS NULL ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list trades: %w", err)
	}
	defer rows.Close()

	trades := []model.Trade{}
	for rows.Next() {
		t, err := scanTrade(rows)
		if err != nil {
			return nil, fmt.Errorf("scan trade: %w", err)
		}
		trades = append(trades, *t)
	}
	return trades, rows.Err()
}

func (s *PostgresStore) Get(ctx context.Context, id int64) (*model.Trade, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+tradeColumns+` FROM trades WHERE id = $1`, id)
	t, err := scanTrade(row)
	if err != nil {
		return nil, notFound(id, err)
	}
	return t, nil
}

func (s *PostgresStore) Insert(ctx context.Context, t *model.Trade) (*model.Trade, error) {
	row := s.pool.QueryRow(ctx,
		`INSERT INTO trades (symbol, entry_price, quantity, fee, reason, entry_date,
		                     exit_price, exit_date, notes, tags, image_urls)
		 VALUES ($1, $2::NUMERIC, $3, $4::NUMERIC, $5, $6, $7::NUMERIC, $8, $9, $10, $11)
		 RETURNING `+tradeColumns,
		t.Symbol, t.EntryPrice.String(), t.Quantity, t.Fee.String(), t.Reason, t.EntryDate,
		optionalDecimal(t.ExitPrice), t.ExitDate, t.Notes, nonNil(t.Tags), nonNil(t.ImageURLs),
	)
	stored, err := scanTrade(row)
	if err != nil {
		return nil, fmt.Errorf("insert trade: %w", err)
	}
	return stored, nil
}

func (s *PostgresStore) Replace(ctx context.Context, id int64, t *model.Trade) (*model.Trade, error) {
	row := s.pool.QueryRow(ctx,
		`UPDATE trades
		 SET symbol = $2, entry_price = $3::NUMERIC, quantity = $4, fee = $5::NUMERIC,
		     reason = $6, entry_date = $7, exit_price = $8::NUMERIC, exit_date = $9,
		     notes = $10, tags = $11, image_urls = $12
		 WHERE id = $1
		 RETURNING `+tradeColumns,
		id, t.Symbol, t.EntryPrice.String(), t.Quantity, t.Fee.String(), t.Reason, t.EntryDate,
		optionalDecimal(t.ExitPrice), t.ExitDate, t.Notes, nonNil(t.Tags), nonNil(t.ImageURLs),
	)
	stored, err := scanTrade(row)
	if err != nil {
		return nil, notFound(id, err)
	}
	return stored, nil
}

func (s *PostgresStore) SoftDelete(ctx context.Context, id int64, at time.Time) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE trades SET deleted_at = COALESCE(deleted_at, $2) WHERE id = $1`,
		id, at.UTC())
	if err != nil {
		return fmt.Errorf("soft delete trade %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("trade %d: %w", id, ErrNotFound)
	}
	return nil
}

// notFound maps pgx.ErrNoRows onto ErrNotFound and wraps anything else.
func notFound(id int64, err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("trade %d: %w", id, ErrNotFound)
	}
	return fmt.Errorf("trade %d: %w", id, err)
}

type scannable interface {
	Scan(dest ...any) error
}

// scanTrade reads one row selected with tradeColumns.
func scanTrade(row scannable) (*model.Trade, error) {
	var t model.Trade
	var entryPrice, fee string
	var exitPrice *string

	if err := row.Scan(&t.ID, &t.Symbol, &entryPrice, &t.Quantity, &fee, &t.Reason,
		&t.EntryDate, &exitPrice, &t.ExitDate, &t.Notes, &t.Tags, &t.ImageURLs, &t.DeletedAt); err != nil {
		return nil, err
	}

	var err error
	if t.EntryPrice, err = decimal.NewFromString(entryPrice); err != nil {
		return nil, fmt.Errorf("entry_price: %w", err)
	}
	if t.Fee, err = decimal.NewFromString(fee); err != nil {
		return nil, fmt.Errorf("fee: %w", err)
	}
	if exitPrice != nil {
		p, err := decimal.NewFromString(*exitPrice)
		if err != nil {
			return nil, fmt.Errorf("exit_price: %w", err)
		}
		t.ExitPrice = &p
	}
	t.EntryDate = t.EntryDate.UTC()
	if t.ExitDate != nil {
		u := t.ExitDate.UTC()
		t.ExitDate = &u
	}
	return &t, nil
}

func optionalDecimal(d *decimal.Decimal) *string {
	if d == nil {
		return nil
	}
	s := d.String()
	return &s
}

func nonNil(items []string) []string {
	if items == nil {
		return []string{}
	}
	return items
}
