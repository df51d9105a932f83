// Package report computes the dashboard aggregates over a set of trades.
//
// Every function is pure and recomputes realized P&L from the trade
// fields; open positions never contribute to a P&L figure.
package report

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/tjournal/journal-engine/internal/model"
)

// TopSymbols is how many symbols BySymbol reports before folding the rest.
const TopSymbols = 5

// OtherBucket labels the folded remainder in BySymbol.
const OtherBucket = "Other"

// MonthlyPnl is one calendar month of closed trades.
type MonthlyPnl struct {
	Month  string          `json:"month"` // YYYY-MM
	Profit decimal.Decimal `json:"profit"`
	Loss   decimal.Decimal `json:"loss"` // absolute value
	Net    decimal.Decimal `json:"net"`
	Count  int             `json:"count"`
}

// SymbolPnl is the realized P&L attributed to one symbol (or OtherBucket).
type SymbolPnl struct {
	Symbol string          `json:"symbol"`
	Pnl    decimal.Decimal `json:"pnl"`
}

// CumulativePoint is one step of the running P&L series.
type CumulativePoint struct {
	Date       string          `json:"date"` // M/D
	ExitDate   time.Time       `json:"exitDate"`
	Cumulative decimal.Decimal `json:"cumulative"`
	Symbol     string          `json:"symbol"`
}

// DailyPnl is the realized P&L of one calendar day.
type DailyPnl struct {
	Date  string          `json:"date"` // YYYY-MM-DD
	Pnl   decimal.Decimal `json:"pnl"`
	Count int             `json:"count"`
}

// Stats summarizes closed trades.
type Stats struct {
	Total     int             `json:"total"`
	Profit    int             `json:"profit"`
	Loss      int             `json:"loss"`
	TotalPnl  decimal.Decimal `json:"totalPnl"`
	AvgPnl    decimal.Decimal `json:"avgPnl"`
	WinRate   decimal.Decimal `json:"winRate"` // percent
	MaxProfit decimal.Decimal `json:"maxProfit"`
	MaxLoss   decimal.Decimal `json:"maxLoss"`
}

// Dashboard bundles every aggregate for a single response.
type Dashboard struct {
	Stats      Stats             `json:"stats"`
	Monthly    []MonthlyPnl      `json:"monthly"`
	Symbols    []SymbolPnl       `json:"symbols"`
	Cumulative []CumulativePoint `json:"cumulative"`
	Calendar   []DailyPnl        `json:"calendar"`
}

// closedTrade pairs a trade with its realized P&L.
type closedTrade struct {
	trade *model.Trade
	pnl   decimal.Decimal
}

// closed returns the trades with an exit price. When dated is set, trades
// missing an exit date are skipped too.
func closed(trades []model.Trade, dated bool) []closedTrade {
	out := make([]closedTrade, 0, len(trades))
	for i := range trades {
		t := &trades[i]
		pnl, ok := t.RealizedPnl()
		if !ok || (dated && t.ExitDate == nil) {
			continue
		}
		out = append(out, closedTrade{trade: t, pnl: pnl})
	}
	return out
}

// ByMonth groups closed trades by the UTC month of their exit date,
// ascending by month.
func ByMonth(trades []model.Trade) []MonthlyPnl {
	months := make(map[string]*MonthlyPnl)
	for _, c := range closed(trades, true) {
		key := c.trade.ExitDate.UTC().Format("2006-01")
		m, ok := months[key]
		if !ok {
			m = &MonthlyPnl{Month: key}
			months[key] = m
		}
		switch {
		case c.pnl.IsPositive():
			m.Profit = m.Profit.Add(c.pnl)
		case c.pnl.IsNegative():
			m.Loss = m.Loss.Add(c.pnl.Abs())
		}
		m.Count++
	}

	out := make([]MonthlyPnl, 0, len(months))
	for _, m := range months {
		m.Net = m.Profit.Sub(m.Loss)
		out = append(out, *m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Month < out[j].Month })
	return out
}

// BySymbol sums realized P&L per symbol, keeps the TopSymbols largest by
// magnitude and folds the rest into OtherBucket when it is non-zero.
func BySymbol(trades []model.Trade) []SymbolPnl {
	totals := make(map[string]decimal.Decimal)
	for _, c := range closed(trades, false) {
		totals[c.trade.Symbol] = totals[c.trade.Symbol].Add(c.pnl)
	}

	all := make([]SymbolPnl, 0, len(totals))
	for symbol, pnl := range totals {
		all = append(all, SymbolPnl{Symbol: symbol, Pnl: pnl})
	}
	sort.Slice(all, func(i, j int) bool {
		ai, aj := all[i].Pnl.Abs(), all[j].Pnl.Abs()
		if !ai.Equal(aj) {
			return ai.GreaterThan(aj)
		}
		return all[i].Symbol < all[j].Symbol
	})

	if len(all) <= TopSymbols {
		return all
	}
	out := append([]SymbolPnl(nil), all[:TopSymbols]...)
	other := decimal.Zero
	for _, s := range all[TopSymbols:] {
		other = other.Add(s.Pnl)
	}
	if !other.IsZero() {
		out = append(out, SymbolPnl{Symbol: OtherBucket, Pnl: other})
	}
	return out
}

// Cumulative returns the running P&L of dated closed trades in exit order.
func Cumulative(trades []model.Trade) []CumulativePoint {
	cs := closed(trades, true)
	sort.SliceStable(cs, func(i, j int) bool {
		return cs[i].trade.ExitDate.Before(*cs[j].trade.ExitDate)
	})

	out := make([]CumulativePoint, 0, len(cs))
	running := decimal.Zero
	for _, c := range cs {
		running = running.Add(c.pnl)
		exit := c.trade.ExitDate.UTC()
		out = append(out, CumulativePoint{
			Date:       exit.Format("1/2"),
			ExitDate:   exit,
			Cumulative: running,
			Symbol:     c.trade.Symbol,
		})
	}
	return out
}

// ByDate sums realized P&L per UTC exit day, ascending by date.
func ByDate(trades []model.Trade) []DailyPnl {
	days := make(map[string]*DailyPnl)
	for _, c := range closed(trades, true) {
		key := c.trade.ExitDate.UTC().Format("2006-01-02")
		day, ok := days[key]
		if !ok {
			day = &DailyPnl{Date: key}
			days[key] = day
		}
		day.Pnl = day.Pnl.Add(c.pnl)
		day.Count++
	}

	out := make([]DailyPnl, 0, len(days))
	for _, day := range days {
		out = append(out, *day)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out
}

var hundred = decimal.NewFromInt(100)

// Summarize computes counts and extremes over closed trades. MaxProfit is
// never below zero and MaxLoss never above zero.
func Summarize(trades []model.Trade) Stats {
	s := Stats{
		TotalPnl:  decimal.Zero,
		AvgPnl:    decimal.Zero,
		WinRate:   decimal.Zero,
		MaxProfit: decimal.Zero,
		MaxLoss:   decimal.Zero,
	}
	for _, c := range closed(trades, false) {
		s.Total++
		switch {
		case c.pnl.IsPositive():
			s.Profit++
		case c.pnl.IsNegative():
			s.Loss++
		}
		s.TotalPnl = s.TotalPnl.Add(c.pnl)
		s.MaxProfit = decimal.Max(s.MaxProfit, c.pnl)
		s.MaxLoss = decimal.Min(s.MaxLoss, c.pnl)
	}
	if s.Total > 0 {
		n := decimal.NewFromInt(int64(s.Total))
		s.AvgPnl = s.TotalPnl.DivRound(n, 2)
		s.WinRate = decimal.NewFromInt(int64(s.Profit)).Mul(hundred).DivRound(n, 1)
	}
	return s
}

// BuildDashboard computes every aggregate over the same trade set.
func BuildDashboard(trades []model.Trade) Dashboard {
	return Dashboard{
		Stats:      Summarize(trades),
		Monthly:    ByMonth(trades),
		Symbols:    BySymbol(trades),
		Cumulative: Cumulative(trades),
		Calendar:   ByDate(trades),
	}
}
