package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
	"github.com/shopspring/decimal"

	"github.com/tjournal/journal-engine/internal/model"
)

// SQLiteStore implements Store on a local SQLite file. Suited to the
// single-user deployment a personal journal usually is.
type SQLiteStore struct {
	db *sql.DB
}

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS trades (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	symbol      TEXT    NOT NULL,
	entry_price TEXT    NOT NULL,
	quantity    INTEGER NOT NULL,
	fee         TEXT    NOT NULL DEFAULT '0',
	reason      TEXT    NOT NULL,
	entry_date  TEXT    NOT NULL,
	exit_price  TEXT,
	exit_date   TEXT,
	notes       TEXT    NOT NULL DEFAULT '',
	tags        TEXT    NOT NULL DEFAULT '[]',
	image_urls  TEXT    NOT NULL DEFAULT '[]',
	deleted_at  TEXT
);
CREATE INDEX IF NOT EXISTS idx_trades_deleted_at ON trades(deleted_at);
`

// NewSQLiteStore opens (creating if needed) the database at path and
// initializes the schema.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if path == "" {
		path = "./data/journal.db"
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create data directory %q: %w", filepath.Dir(path), err)
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open sqlite %q: %w", path, err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite %q: %w", path, err)
	}

	// One writer at a time; SQLite serializes anyway.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize sqlite schema: %w", err)
	}
	slog.Info("sqlite store ready", "path", path)
	return &SQLiteStore{db: db}, nil
}

// Close releases the database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

const sqliteColumns = `id, symbol, entry_price, quantity, fee, reason, entry_date,
	exit_price, exit_date, notes, tags, image_urls, deleted_at`

func (s *SQLiteStore) List(ctx context.Context) ([]model.Trade, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+sqliteColumns+` FROM trades WHERE deleted_at IS NULL ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list trades: %w", err)
	}
	defer rows.Close()

	trades := []model.Trade{}
	for rows.Next() {
		t, err := scanSQLiteTrade(rows)
		if err != nil {
			return nil, fmt.Errorf("scan trade: %w", err)
		}
		trades = append(trades, *t)
	}
	return trades, rows.Err()
}

func (s *SQLiteStore) Get(ctx context.Context, id int64) (*model.Trade, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+sqliteColumns+` FROM trades WHERE id = ?`, id)
	t, err := scanSQLiteTrade(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("trade %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get trade %d: %w", id, err)
	}
	return t, nil
}

func (s *SQLiteStore) Insert(ctx context.Context, t *model.Trade) (*model.Trade, error) {
	args, err := sqliteArgs(t)
	if err != nil {
		return nil, err
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO trades (symbol, entry_price, quantity, fee, reason, entry_date,
		                     exit_price, exit_date, notes, tags, image_urls)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, args...)
	if err != nil {
		return nil, fmt.Errorf("insert trade: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("insert trade: %w", err)
	}
	return s.Get(ctx, id)
}

func (s *SQLiteStore) Replace(ctx context.Context, id int64, t *model.Trade) (*model.Trade, error) {
	args, err := sqliteArgs(t)
	if err != nil {
		return nil, err
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE trades
		 SET symbol = ?, entry_price = ?, quantity = ?, fee = ?, reason = ?, entry_date = ?,
		     exit_price = ?, exit_date = ?, notes = ?, tags = ?, image_urls = ?
		 WHERE id = ?`, append(args, id)...)
	if err != nil {
		return nil, fmt.Errorf("replace trade %d: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, fmt.Errorf("trade %d: %w", id, ErrNotFound)
	}
	return s.Get(ctx, id)
}

func (s *SQLiteStore) SoftDelete(ctx context.Context, id int64, at time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE trades SET deleted_at = COALESCE(deleted_at, ?) WHERE id = ?`,
		formatSQLiteTime(at), id)
	if err != nil {
		return fmt.Errorf("soft delete trade %d: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("trade %d: %w", id, ErrNotFound)
	}
	return nil
}

// sqliteArgs encodes the writable columns in insert order. Timestamps are
// fixed-width RFC 3339 text in UTC; tags and image urls are JSON arrays.
func sqliteArgs(t *model.Trade) ([]any, error) {
	tags, err := json.Marshal(nonNil(t.Tags))
	if err != nil {
		return nil, fmt.Errorf("encode tags: %w", err)
	}
	images, err := json.Marshal(nonNil(t.ImageURLs))
	if err != nil {
		return nil, fmt.Errorf("encode image urls: %w", err)
	}
	var exitPrice, exitDate any
	if t.ExitPrice != nil {
		exitPrice = t.ExitPrice.String()
	}
	if t.ExitDate != nil {
		exitDate = formatSQLiteTime(*t.ExitDate)
	}
	return []any{
		t.Symbol, t.EntryPrice.String(), t.Quantity, t.Fee.String(), t.Reason,
		formatSQLiteTime(t.EntryDate), exitPrice, exitDate, t.Notes, string(tags), string(images),
	}, nil
}

func scanSQLiteTrade(row scannable) (*model.Trade, error) {
	var (
		t                   model.Trade
		entryPrice, fee     string
		entryDate           string
		exitPrice           sql.NullString
		exitDate, deletedAt sql.NullString
		tags, images        string
	)
	if err := row.Scan(&t.ID, &t.Symbol, &entryPrice, &t.Quantity, &fee, &t.Reason, &entryDate,
		&exitPrice, &exitDate, &t.Notes, &tags, &images, &deletedAt); err != nil {
		return nil, err
	}

	var err error
	if t.EntryPrice, err = decimal.NewFromString(entryPrice); err != nil {
		return nil, fmt.Errorf("entry_price: %w", err)
	}
	if t.Fee, err = decimal.NewFromString(fee); err != nil {
		return nil, fmt.Errorf("fee: %w", err)
	}
	if exitPrice.Valid {
		p, err := decimal.NewFromString(exitPrice.String)
		if err != nil {
			return nil, fmt.Errorf("exit_price: %w", err)
		}
		t.ExitPrice = &p
	}
	if t.EntryDate, err = parseSQLiteTime(entryDate); err != nil {
		return nil, fmt.Errorf("entry_date: %w", err)
	}
	if exitDate.Valid {
		ts, err := parseSQLiteTime(exitDate.String)
		if err != nil {
			return nil, fmt.Errorf("exit_date: %w", err)
		}
		t.ExitDate = &ts
	}
	if deletedAt.Valid {
		ts, err := parseSQLiteTime(deletedAt.String)
		if err != nil {
			return nil, fmt.Errorf("deleted_at: %w", err)
		}
		t.DeletedAt = &ts
	}
	if err := json.Unmarshal([]byte(tags), &t.Tags); err != nil {
		return nil, fmt.Errorf("tags: %w", err)
	}
	if err := json.Unmarshal([]byte(images), &t.ImageURLs); err != nil {
		return nil, fmt.Errorf("image_urls: %w", err)
	}
	return &t, nil
}

// sqliteTimeLayout is fixed width so stored text sorts chronologically. It
// keeps full precision for years 0000 to 9999, which unix nanoseconds do not.
const sqliteTimeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatSQLiteTime(t time.Time) string {
	return t.UTC().Format(sqliteTimeLayout)
}

func parseSQLiteTime(s string) (time.Time, error) {
	ts, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, err
	}
	return ts.UTC(), nil
}
