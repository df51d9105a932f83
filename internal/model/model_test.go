package model

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func d(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f)
}

func dp(f float64) *decimal.Decimal {
	v := d(f)
	return &v
}

func intp(n int) *int { return &n }

func TestRealizedPnl_Closed(t *testing.T) {
	tr := Trade{EntryPrice: d(100), Quantity: 10, Fee: d(5), ExitPrice: dp(110)}
	pnl, ok := tr.RealizedPnl()
	if !ok {
		t.Fatal("expected realized pnl for closed trade")
	}
	if !pnl.Equal(d(95)) {
		t.Errorf("expected 95, got %s", pnl)
	}
}

func TestRealizedPnl_Open(t *testing.T) {
	tr := Trade{EntryPrice: d(100), Quantity: 10, Fee: d(5)}
	if _, ok := tr.RealizedPnl(); ok {
		t.Error("open trade should have no realized pnl")
	}
	if !tr.IsOpen() {
		t.Error("expected IsOpen")
	}
}

func TestRealizedPnl_ExactDecimal(t *testing.T) {
	// 0.1 + 0.2 style drift must not appear.
	tr := Trade{EntryPrice: d(0.1), Quantity: 3, Fee: d(0.01), ExitPrice: dp(0.3)}
	pnl, _ := tr.RealizedPnl()
	want := decimal.RequireFromString("0.59")
	if !pnl.Equal(want) {
		t.Errorf("expected %s, got %s", want, pnl)
	}
}

func TestRealizedPnl_Loss(t *testing.T) {
	tr := Trade{EntryPrice: d(50), Quantity: 4, Fee: d(2), ExitPrice: dp(45)}
	pnl, _ := tr.RealizedPnl()
	if !pnl.Equal(d(-22)) {
		t.Errorf("expected -22, got %s", pnl)
	}
}

func TestMarshalJSON_RealizedPnl(t *testing.T) {
	closed := Trade{ID: 1, Symbol: "AAPL", EntryPrice: d(100), Quantity: 10, Fee: d(5), ExitPrice: dp(110)}
	data, err := json.Marshal(closed)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var raw map[string]any
	json.Unmarshal(data, &raw)
	if _, ok := raw["realizedPnl"]; !ok {
		t.Errorf("expected realizedPnl in %s", data)
	}
	if tags, ok := raw["tags"].([]any); !ok || len(tags) != 0 {
		t.Errorf("expected empty tags array, got %v", raw["tags"])
	}

	open := Trade{ID: 2, Symbol: "AAPL", EntryPrice: d(100), Quantity: 10}
	data, _ = json.Marshal(open)
	if strings.Contains(string(data), "realizedPnl") {
		t.Errorf("open trade should omit realizedPnl: %s", data)
	}
}

func TestUnmarshalJSON_IgnoresRealizedPnl(t *testing.T) {
	var tr Trade
	err := json.Unmarshal([]byte(`{"id":3,"symbol":"X","entryPrice":"10","quantity":1,"fee":"0","realizedPnl":"9999"}`), &tr)
	if err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if _, ok := tr.RealizedPnl(); ok {
		t.Error("realizedPnl must not be read from input")
	}
	if tr.ID != 3 || tr.Symbol != "X" {
		t.Errorf("unexpected trade: %+v", tr)
	}
}

func TestClone_NoAliasing(t *testing.T) {
	exit := time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC)
	orig := &Trade{Tags: []string{"a"}, ExitPrice: dp(1), ExitDate: &exit}
	c := orig.Clone()
	c.Tags[0] = "b"
	*c.ExitPrice = d(2)
	if orig.Tags[0] != "a" {
		t.Error("clone shares tags slice")
	}
	if !orig.ExitPrice.Equal(d(1)) {
		t.Error("clone shares exit price")
	}
}

func TestToTrade_Valid(t *testing.T) {
	in := TradeInput{
		Symbol:     "  tsla ",
		EntryPrice: dp(200),
		Quantity:   intp(3),
		Reason:     "breakout",
		EntryDate:  "2025-11-20T10:00",
		Tags:       []string{"swing", " ", "swing", "tech"},
	}
	tr, err := in.ToTrade()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tr.Symbol != "tsla" {
		t.Errorf("expected trimmed symbol, got %q", tr.Symbol)
	}
	if !tr.Fee.IsZero() {
		t.Errorf("fee should default to zero, got %s", tr.Fee)
	}
	want := time.Date(2025, 11, 20, 10, 0, 0, 0, time.UTC)
	if !tr.EntryDate.Equal(want) {
		t.Errorf("expected entry date %v, got %v", want, tr.EntryDate)
	}
	if len(tr.Tags) != 2 || tr.Tags[0] != "swing" || tr.Tags[1] != "tech" {
		t.Errorf("unexpected tags %v", tr.Tags)
	}
}

func TestToTrade_MissingFields(t *testing.T) {
	base := func() TradeInput {
		return TradeInput{Symbol: "A", EntryPrice: dp(1), Quantity: intp(1), Reason: "r"}
	}
	cases := map[string]func(*TradeInput){
		"symbol":     func(in *TradeInput) { in.Symbol = " " },
		"entryPrice": func(in *TradeInput) { in.EntryPrice = nil },
		"quantity":   func(in *TradeInput) { in.Quantity = nil },
		"reason":     func(in *TradeInput) { in.Reason = "" },
		"entryDate":  func(in *TradeInput) { in.EntryDate = "yesterday" },
		"exitDate":   func(in *TradeInput) { in.ExitDate = "13/45/2025" },
	}
	for name, mutate := range cases {
		in := base()
		mutate(&in)
		if _, err := in.ToTrade(); !errors.Is(err, ErrInvalidTrade) {
			t.Errorf("%s: expected ErrInvalidTrade, got %v", name, err)
		}
	}
}

func TestToTrade_NonNumericPriceRejectedByDecoder(t *testing.T) {
	var in TradeInput
	err := json.Unmarshal([]byte(`{"symbol":"A","entryPrice":"abc","quantity":1,"reason":"r"}`), &in)
	if err == nil {
		t.Error("expected decode error for non-numeric entryPrice")
	}
	err = json.Unmarshal([]byte(`{"symbol":"A","entryPrice":1,"quantity":"ten","reason":"r"}`), &in)
	if err == nil {
		t.Error("expected decode error for non-numeric quantity")
	}
}

func TestParseTime_Layouts(t *testing.T) {
	want := time.Date(2025, 3, 4, 5, 6, 0, 0, time.UTC)
	for _, s := range []string{"2025-03-04T05:06:00Z", "2025-03-04T05:06:00", "2025-03-04T05:06", "2025-03-04T14:06:00+09:00"} {
		got, err := ParseTime(s)
		if err != nil {
			t.Errorf("%s: %v", s, err)
			continue
		}
		if !got.Equal(want) {
			t.Errorf("%s: expected %v, got %v", s, want, got)
		}
	}
	if _, err := ParseTime("2025-03-04"); err != nil {
		t.Errorf("date-only should parse: %v", err)
	}
}

func TestInputFromTrade_RoundTrip(t *testing.T) {
	exit := time.Date(2025, 5, 1, 12, 0, 0, 500, time.UTC)
	orig := &Trade{
		Symbol: "NVDA", EntryPrice: d(10), Quantity: 2, Fee: d(1), Reason: "r",
		EntryDate: time.Date(2025, 4, 1, 9, 30, 0, 298702984, time.UTC),
		ExitPrice: dp(12), ExitDate: &exit, Tags: []string{"a"},
	}
	back, err := InputFromTrade(orig).ToTrade()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !back.EntryDate.Equal(orig.EntryDate) || !back.ExitDate.Equal(exit) {
		t.Errorf("dates not preserved: %+v", back)
	}
	p1, _ := orig.RealizedPnl()
	p2, _ := back.RealizedPnl()
	if !p1.Equal(p2) {
		t.Errorf("pnl changed: %s vs %s", p1, p2)
	}
}
