// Package tradelist implements the trade table's sort and date-range
// filter state: query parsing, window computation, filtering, ordering and
// the relative-time labels shown next to entries.
package tradelist

import (
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/tjournal/journal-engine/internal/model"
)

// ErrInvalidQuery is wrapped by every Parse failure.
var ErrInvalidQuery = errors.New("tradelist: invalid query")

// SortField selects the column the list is ordered by.
type SortField string

const (
	SortNone      SortField = ""
	SortSymbol    SortField = "symbol"
	SortEntryDate SortField = "entryDate"
	SortPnl       SortField = "pnl"
)

// Direction is the sort order.
type Direction string

const (
	Asc  Direction = "asc"
	Desc Direction = "desc"
)

// Range names a date window over entryDate.
type Range string

const (
	RangeAll    Range = "all"
	RangeToday  Range = "today"
	RangeWeek   Range = "week"
	RangeMonth  Range = "month"
	RangeCustom Range = "custom"
)

const dateLayout = "2006-01-02"

// Query is the list view state.
type Query struct {
	Sort  SortField
	Dir   Direction
	Range Range
	From  *time.Time // custom range start day, inclusive
	To    *time.Time // custom range end day, inclusive
}

// Default is the unsorted, unfiltered view.
func Default() Query {
	return Query{Sort: SortNone, Dir: Desc, Range: RangeAll}
}

// Parse reads sort, dir, range, from and to from URL values. Absent keys
// keep their Default value. Dates for a custom range are YYYY-MM-DD in loc.
func Parse(v url.Values, loc *time.Location) (Query, error) {
	q := Default()
	if loc == nil {
		loc = time.UTC
	}

	switch f := SortField(v.Get("sort")); f {
	case SortNone, SortSymbol, SortEntryDate, SortPnl:
		q.Sort = f
	default:
		return q, fmt.Errorf("%w: unknown sort field %q", ErrInvalidQuery, f)
	}

	switch dir := Direction(strings.ToLower(v.Get("dir"))); dir {
	case "":
	case Asc, Desc:
		q.Dir = dir
	default:
		return q, fmt.Errorf("%w: unknown direction %q", ErrInvalidQuery, dir)
	}

	switch r := Range(v.Get("range")); r {
	case "":
	case RangeAll, RangeToday, RangeWeek, RangeMonth, RangeCustom:
		q.Range = r
	default:
		return q, fmt.Errorf("%w: unknown range %q", ErrInvalidQuery, r)
	}

	for key, dst := range map[string]**time.Time{"from": &q.From, "to": &q.To} {
		raw := strings.TrimSpace(v.Get(key))
		if raw == "" {
			continue
		}
		ts, err := time.ParseInLocation(dateLayout, raw, loc)
		if err != nil {
			return q, fmt.Errorf("%w: %s must be YYYY-MM-DD", ErrInvalidQuery, key)
		}
		*dst = &ts
	}
	return q, nil
}

// Values encodes q back into URL query values, omitting defaults.
func (q Query) Values() url.Values {
	v := url.Values{}
	if q.Sort != SortNone {
		v.Set("sort", string(q.Sort))
		v.Set("dir", string(q.Dir))
	}
	if q.Range != "" && q.Range != RangeAll {
		v.Set("range", string(q.Range))
	}
	if q.From != nil {
		v.Set("from", q.From.Format(dateLayout))
	}
	if q.To != nil {
		v.Set("to", q.To.Format(dateLayout))
	}
	return v
}

// Toggle applies a column header click: the active field flips direction,
// any other field becomes active in descending order.
func (q Query) Toggle(field SortField) Query {
	if q.Sort == field {
		if q.Dir == Asc {
			q.Dir = Desc
		} else {
			q.Dir = Asc
		}
		return q
	}
	q.Sort = field
	q.Dir = Desc
	return q
}

// Window is a half-open interval [Start, End). A zero bound is unbounded.
type Window struct {
	Start time.Time
	End   time.Time
}

// Contains reports whether t falls inside w.
func (w Window) Contains(t time.Time) bool {
	if !w.Start.IsZero() && t.Before(w.Start) {
		return false
	}
	if !w.End.IsZero() && !t.Before(w.End) {
		return false
	}
	return true
}

// Window computes the date window for q relative to now, in now's location.
// Weeks start on Monday.
func (q Query) Window(now time.Time) Window {
	loc := now.Location()
	midnight := func(t time.Time) time.Time {
		y, m, d := t.In(loc).Date()
		return time.Date(y, m, d, 0, 0, 0, 0, loc)
	}
	today := midnight(now)

	switch q.Range {
	case RangeToday:
		return Window{Start: today, End: today.AddDate(0, 0, 1)}
	case RangeWeek:
		offset := (int(today.Weekday()) + 6) % 7 // days since Monday
		start := today.AddDate(0, 0, -offset)
		return Window{Start: start, End: start.AddDate(0, 0, 7)}
	case RangeMonth:
		start := time.Date(today.Year(), today.Month(), 1, 0, 0, 0, 0, loc)
		return Window{Start: start, End: start.AddDate(0, 1, 0)}
	case RangeCustom:
		var w Window
		if q.From != nil {
			w.Start = midnight(*q.From)
		}
		if q.To != nil {
			w.End = midnight(*q.To).AddDate(0, 0, 1)
		}
		return w
	default:
		return Window{}
	}
}

// Filter keeps the trades whose entryDate lies inside q's window.
func (q Query) Filter(trades []model.Trade, now time.Time) []model.Trade {
	w := q.Window(now)
	out := make([]model.Trade, 0, len(trades))
	for _, t := range trades {
		if w.Contains(t.EntryDate) {
			out = append(out, t)
		}
	}
	return out
}

// Order sorts trades in place. SortNone keeps the input order.
func (q Query) Order(trades []model.Trade) {
	var cmp func(a, b *model.Trade) int
	switch q.Sort {
	case SortSymbol:
		cmp = func(a, b *model.Trade) int {
			return strings.Compare(strings.ToLower(a.Symbol), strings.ToLower(b.Symbol))
		}
	case SortEntryDate:
		cmp = func(a, b *model.Trade) int { return a.EntryDate.Compare(b.EntryDate) }
	case SortPnl:
		cmp = func(a, b *model.Trade) int { return pnlOrZero(a).Cmp(pnlOrZero(b)) }
	default:
		return
	}
	sort.SliceStable(trades, func(i, j int) bool {
		c := cmp(&trades[i], &trades[j])
		if q.Dir == Asc {
			return c < 0
		}
		return c > 0
	})
}

// Apply filters then sorts a copy of trades.
func (q Query) Apply(trades []model.Trade, now time.Time) []model.Trade {
	out := q.Filter(trades, now)
	q.Order(out)
	return out
}

func pnlOrZero(t *model.Trade) decimal.Decimal {
	pnl, _ := t.RealizedPnl()
	return pnl
}
