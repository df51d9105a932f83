// Package export renders a trade list as an xlsx workbook.
package export

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
	"golang.org/x/text/language"

	"github.com/tjournal/journal-engine/internal/model"
)

// SheetName is the single worksheet in every export.
const SheetName = "Trades"

// ContentType is the MIME type of Write's output.
const ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

const timeLayout = "2006-01-02 15:04"

// supported lists the header languages; the first is the fallback.
var supported = []language.Tag{language.English, language.Korean}

var matcher = language.NewMatcher(supported)

// Notes and Tags stay untranslated in every language.
var headers = map[language.Tag][]string{
	language.English: {"Symbol", "Entry Date", "Entry Price", "Qty", "Exit Date", "Exit Price", "P&L", "Fee", "Reason", "Notes", "Tags"},
	language.Korean:  {"종목", "진입일", "진입가", "수량", "청산일", "청산가", "손익", "수수료", "진입 근거", "Notes", "Tags"},
}

var columnWidths = []float64{10, 20, 10, 8, 20, 10, 10, 8, 30, 40, 20}

// Match picks the header language for the given preferences, each either
// a language tag ("ko") or an Accept-Language header value. Earlier
// arguments win; unparseable ones are ignored.
func Match(prefs ...string) language.Tag {
	var tags []language.Tag
	for _, p := range prefs {
		if strings.TrimSpace(p) == "" {
			continue
		}
		parsed, _, err := language.ParseAcceptLanguage(p)
		if err != nil {
			continue
		}
		tags = append(tags, parsed...)
	}
	_, idx, _ := matcher.Match(tags...)
	return supported[idx]
}

// Headers returns the column titles for lang, falling back to English.
func Headers(lang language.Tag) []string {
	if h, ok := headers[lang]; ok {
		return h
	}
	return headers[language.English]
}

// Filename is the download name for an export taken on day.
func Filename(day time.Time) string {
	return fmt.Sprintf("trading_journal_%s.xlsx", day.Format("2006-01-02"))
}

// Write encodes trades in the given order as a workbook with one header
// row. Timestamps are rendered in loc; open trades leave the exit columns
// blank and report a P&L of 0.
func Write(w io.Writer, trades []model.Trade, lang language.Tag, loc *time.Location) error {
	if loc == nil {
		loc = time.UTC
	}
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), SheetName); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}

	head := Headers(lang)
	row := make([]any, len(head))
	for i, h := range head {
		row[i] = h
	}
	if err := f.SetSheetRow(SheetName, "A1", &row); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	for i := range trades {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		values := rowValues(&trades[i], loc)
		if err := f.SetSheetRow(SheetName, cell, &values); err != nil {
			return fmt.Errorf("write trade %d: %w", trades[i].ID, err)
		}
	}

	for i, width := range columnWidths {
		col, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return err
		}
		if err := f.SetColWidth(SheetName, col, col, width); err != nil {
			return fmt.Errorf("set width of column %s: %w", col, err)
		}
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func rowValues(t *model.Trade, loc *time.Location) []any {
	var exitDate, exitPrice any = "", ""
	if t.ExitDate != nil {
		exitDate = t.ExitDate.In(loc).Format(timeLayout)
	}
	if t.ExitPrice != nil {
		exitPrice = t.ExitPrice.InexactFloat64()
	}
	pnl, _ := t.RealizedPnl()

	return []any{
		t.Symbol,
		t.EntryDate.In(loc).Format(timeLayout),
		t.EntryPrice.InexactFloat64(),
		t.Quantity,
		exitDate,
		exitPrice,
		pnl.InexactFloat64(),
		t.Fee.InexactFloat64(),
		t.Reason,
		t.Notes,
		strings.Join(t.Tags, ", "),
	}
}
