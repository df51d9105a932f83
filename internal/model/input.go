package model

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ErrInvalidTrade is wrapped by every TradeInput validation failure.
var ErrInvalidTrade = errors.New("model: invalid trade")

// TradeInput is the JSON body for trade create and replace. Pointers
// distinguish a missing field from a zero value.
type TradeInput struct {
	Symbol     string           `json:"symbol"`
	EntryPrice *decimal.Decimal `json:"entryPrice"`
	Quantity   *int             `json:"quantity"`
	Fee        *decimal.Decimal `json:"fee,omitempty"`
	Reason     string           `json:"reason"`
	EntryDate  string           `json:"entryDate,omitempty"`
	ExitPrice  *decimal.Decimal `json:"exitPrice,omitempty"`
	ExitDate   string           `json:"exitDate,omitempty"`
	Notes      string           `json:"notes,omitempty"`
	Tags       []string         `json:"tags,omitempty"`
	ImageURLs  []string         `json:"imageUrls,omitempty"`
}

// InputFromTrade builds the payload that would replace t with itself.
func InputFromTrade(t *Trade) TradeInput {
	entry := t.EntryPrice
	qty := t.Quantity
	fee := t.Fee
	in := TradeInput{
		Symbol:     t.Symbol,
		EntryPrice: &entry,
		Quantity:   &qty,
		Fee:        &fee,
		Reason:     t.Reason,
		EntryDate:  t.EntryDate.UTC().Format(time.RFC3339Nano),
		Notes:      t.Notes,
		Tags:       append([]string(nil), t.Tags...),
		ImageURLs:  append([]string(nil), t.ImageURLs...),
	}
	if t.ExitPrice != nil {
		p := *t.ExitPrice
		in.ExitPrice = &p
	}
	if t.ExitDate != nil {
		in.ExitDate = t.ExitDate.UTC().Format(time.RFC3339Nano)
	}
	return in
}

// ToTrade validates the input and returns the trade it describes. A missing
// entryDate is left zero; the caller decides the default.
func (in TradeInput) ToTrade() (*Trade, error) {
	symbol := strings.TrimSpace(in.Symbol)
	if symbol == "" {
		return nil, fmt.Errorf("%w: symbol is required", ErrInvalidTrade)
	}
	if in.EntryPrice == nil {
		return nil, fmt.Errorf("%w: entryPrice is required", ErrInvalidTrade)
	}
	if in.Quantity == nil {
		return nil, fmt.Errorf("%w: quantity is required", ErrInvalidTrade)
	}
	reason := strings.TrimSpace(in.Reason)
	if reason == "" {
		return nil, fmt.Errorf("%w: reason is required", ErrInvalidTrade)
	}

	t := &Trade{
		Symbol:     symbol,
		EntryPrice: *in.EntryPrice,
		Quantity:   *in.Quantity,
		Fee:        decimal.Zero,
		Reason:     reason,
		Notes:      in.Notes,
		Tags:       NormalizeTags(in.Tags),
		ImageURLs:  compact(in.ImageURLs),
	}
	if in.Fee != nil {
		t.Fee = *in.Fee
	}
	if in.ExitPrice != nil {
		p := *in.ExitPrice
		t.ExitPrice = &p
	}

	if in.EntryDate != "" {
		ts, err := ParseTime(in.EntryDate)
		if err != nil {
			return nil, fmt.Errorf("%w: entryDate: %v", ErrInvalidTrade, err)
		}
		t.EntryDate = ts
	}
	if in.ExitDate != "" {
		ts, err := ParseTime(in.ExitDate)
		if err != nil {
			return nil, fmt.Errorf("%w: exitDate: %v", ErrInvalidTrade, err)
		}
		t.ExitDate = &ts
	}
	return t, nil
}

// timeLayouts are tried in order. The zone-less forms are what HTML
// datetime-local and date inputs produce.
var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParseTime parses s with the accepted layouts. Zone-less values are UTC.
func ParseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timeLayouts {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}

// NormalizeTags trims labels, drops empties and removes duplicates while
// keeping first-seen order.
func NormalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]bool, len(tags))
	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		if tag == "" || seen[tag] {
			continue
		}
		seen[tag] = true
		out = append(out, tag)
	}
	return out
}

func compact(items []string) []string {
	out := make([]string, 0, len(items))
	for _, s := range items {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
