// Package model defines the core domain types shared across the journal engine.
// All monetary values use shopspring/decimal, never float64 for money.
package model

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// Trade is one journal entry: a position opened at EntryPrice and, once
// ExitPrice is recorded, closed.
type Trade struct {
	ID         int64            `json:"id" db:"id"`
	Symbol     string           `json:"symbol" db:"symbol"`
	EntryPrice decimal.Decimal  `json:"entryPrice" db:"entry_price"`
	Quantity   int              `json:"quantity" db:"quantity"`
	Fee        decimal.Decimal  `json:"fee" db:"fee"`
	Reason     string           `json:"reason" db:"reason"`
	EntryDate  time.Time        `json:"entryDate" db:"entry_date"`
	ExitPrice  *decimal.Decimal `json:"exitPrice,omitempty" db:"exit_price"`
	ExitDate   *time.Time       `json:"exitDate,omitempty" db:"exit_date"`
	Notes      string           `json:"notes,omitempty" db:"notes"` // markdown
	Tags       []string         `json:"tags" db:"tags"`
	ImageURLs  []string         `json:"imageUrls" db:"image_urls"`
	DeletedAt  *time.Time       `json:"deletedAt,omitempty" db:"deleted_at"`
}

// RealizedPnl returns (exit - entry) * quantity - fee, or false while the
// position is open. It is never stored.
func (t *Trade) RealizedPnl() (decimal.Decimal, bool) {
	if t.ExitPrice == nil {
		return decimal.Zero, false
	}
	qty := decimal.NewFromInt(int64(t.Quantity))
	sell := t.ExitPrice.Mul(qty)
	buy := t.EntryPrice.Mul(qty)
	return sell.Sub(buy).Sub(t.Fee), true
}

// IsOpen reports whether no exit price has been recorded.
func (t *Trade) IsOpen() bool { return t.ExitPrice == nil }

// IsDeleted reports whether the trade was soft-deleted.
func (t *Trade) IsDeleted() bool { return t.DeletedAt != nil }

// Clone returns a deep copy so callers can't alias store state.
func (t *Trade) Clone() *Trade {
	c := *t
	if t.ExitPrice != nil {
		p := *t.ExitPrice
		c.ExitPrice = &p
	}
	if t.ExitDate != nil {
		d := *t.ExitDate
		c.ExitDate = &d
	}
	if t.DeletedAt != nil {
		d := *t.DeletedAt
		c.DeletedAt = &d
	}
	c.Tags = append([]string(nil), t.Tags...)
	c.ImageURLs = append([]string(nil), t.ImageURLs...)
	return &c
}

// tradeJSON is the wire shape of Trade, including the computed realizedPnl.
type tradeJSON struct {
	ID          int64            `json:"id"`
	Symbol      string           `json:"symbol"`
	EntryPrice  decimal.Decimal  `json:"entryPrice"`
	Quantity    int              `json:"quantity"`
	Fee         decimal.Decimal  `json:"fee"`
	Reason      string           `json:"reason"`
	EntryDate   time.Time        `json:"entryDate"`
	ExitPrice   *decimal.Decimal `json:"exitPrice,omitempty"`
	ExitDate    *time.Time       `json:"exitDate,omitempty"`
	Notes       string           `json:"notes,omitempty"`
	Tags        []string         `json:"tags"`
	ImageURLs   []string         `json:"imageUrls"`
	DeletedAt   *time.Time       `json:"deletedAt,omitempty"`
	RealizedPnl *decimal.Decimal `json:"realizedPnl,omitempty"`
}

// MarshalJSON emits realizedPnl alongside the stored fields.
func (t Trade) MarshalJSON() ([]byte, error) {
	out := tradeJSON{
		ID:         t.ID,
		Symbol:     t.Symbol,
		EntryPrice: t.EntryPrice,
		Quantity:   t.Quantity,
		Fee:        t.Fee,
		Reason:     t.Reason,
		EntryDate:  t.EntryDate,
		ExitPrice:  t.ExitPrice,
		ExitDate:   t.ExitDate,
		Notes:      t.Notes,
		Tags:       t.Tags,
		ImageURLs:  t.ImageURLs,
		DeletedAt:  t.DeletedAt,
	}
	if out.Tags == nil {
		out.Tags = []string{}
	}
	if out.ImageURLs == nil {
		out.ImageURLs = []string{}
	}
	if pnl, ok := t.RealizedPnl(); ok {
		out.RealizedPnl = &pnl
	}
	return json.Marshal(out)
}

// UnmarshalJSON reads the stored fields. A realizedPnl in the payload is
// ignored; it is always recomputed.
func (t *Trade) UnmarshalJSON(data []byte) error {
	var in tradeJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	*t = Trade{
		ID:         in.ID,
		Symbol:     in.Symbol,
		EntryPrice: in.EntryPrice,
		Quantity:   in.Quantity,
		Fee:        in.Fee,
		Reason:     in.Reason,
		EntryDate:  in.EntryDate,
		ExitPrice:  in.ExitPrice,
		ExitDate:   in.ExitDate,
		Notes:      in.Notes,
		Tags:       in.Tags,
		ImageURLs:  in.ImageURLs,
		DeletedAt:  in.DeletedAt,
	}
	return nil
}
