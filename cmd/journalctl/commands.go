package main

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/shopspring/decimal"
	"github.com/urfave/cli/v2"

	"github.com/tjournal/journal-engine/internal/model"
	"github.com/tjournal/journal-engine/internal/tradelist"
)

func listTrades(cCtx *cli.Context) error {
	q, err := queryFromFlags(cCtx)
	if err != nil {
		return err
	}
	if cCtx.Bool("toggle") {
		q = q.Toggle(q.Sort)
	}
	trades, err := newClient(cCtx).ListTrades(cCtx.Context, &q)
	if err != nil {
		return err
	}

	out := cCtx.App.Writer
	if len(trades) == 0 {
		fmt.Fprintln(out, "No trades recorded.")
		return nil
	}

	now := time.Now()
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSYMBOL\tQTY\tENTRY\tEXIT\tPNL\tENTERED\tTAGS")
	for i := range trades {
		t := &trades[i]
		exit, pnl := "-", "open"
		if t.ExitPrice != nil {
			exit = t.ExitPrice.String()
		}
		if p, closed := t.RealizedPnl(); closed {
			pnl = signed(p)
		}
		fmt.Fprintf(tw, "%d\t%s\t%d\t%s\t%s\t%s\t%s\t%s\n",
			t.ID, t.Symbol, t.Quantity, t.EntryPrice.String(), exit, pnl,
			tradelist.RelativeTime(t.EntryDate, now), strings.Join(t.Tags, ","))
	}
	return tw.Flush()
}

func showTrade(cCtx *cli.Context) error {
	id, err := argID(cCtx)
	if err != nil {
		return err
	}
	t, err := newClient(cCtx).GetTrade(cCtx.Context, id)
	if err != nil {
		return err
	}
	printTrade(cCtx, t)
	return nil
}

func addTrade(cCtx *cli.Context) error {
	price, err := decimalFlag(cCtx, "price")
	if err != nil {
		return err
	}
	fee, err := decimalFlag(cCtx, "fee")
	if err != nil {
		return err
	}
	qty := cCtx.Int("qty")

	in := model.TradeInput{
		Symbol:     cCtx.String("symbol"),
		EntryPrice: &price,
		Quantity:   &qty,
		Fee:        &fee,
		Reason:     cCtx.String("reason"),
		EntryDate:  cCtx.String("date"),
		ExitDate:   cCtx.String("exit-date"),
		Notes:      cCtx.String("notes"),
		Tags:       cCtx.StringSlice("tag"),
		ImageURLs:  cCtx.StringSlice("image"),
	}
	if cCtx.IsSet("exit-price") {
		exit, err := decimalFlag(cCtx, "exit-price")
		if err != nil {
			return err
		}
		in.ExitPrice = &exit
	}

	t, err := newClient(cCtx).CreateTrade(cCtx.Context, in)
	if err != nil {
		return err
	}
	fmt.Fprintf(cCtx.App.Writer, "Recorded trade %d (%s x%d @ %s)\n", t.ID, t.Symbol, t.Quantity, t.EntryPrice)
	return nil
}

func closeTrade(cCtx *cli.Context) error {
	id, err := argID(cCtx)
	if err != nil {
		return err
	}
	price, err := decimalFlag(cCtx, "price")
	if err != nil {
		return err
	}
	exitDate := time.Now()
	if s := cCtx.String("date"); s != "" {
		if exitDate, err = model.ParseTime(s); err != nil {
			return cli.Exit(fmt.Sprintf("Error: --date: %v", err), 1)
		}
	}

	t, err := newClient(cCtx).CloseTrade(cCtx.Context, id, price, exitDate)
	if err != nil {
		return err
	}
	pnl, _ := t.RealizedPnl()
	fmt.Fprintf(cCtx.App.Writer, "Closed trade %d (%s): realized %s\n", t.ID, t.Symbol, signed(pnl))
	return nil
}

func deleteTrade(cCtx *cli.Context) error {
	id, err := argID(cCtx)
	if err != nil {
		return err
	}
	if err := newClient(cCtx).DeleteTrade(cCtx.Context, id); err != nil {
		return err
	}
	fmt.Fprintf(cCtx.App.Writer, "Deleted trade %d\n", id)
	return nil
}

func showStats(cCtx *cli.Context) error {
	q, err := queryFromFlags(cCtx)
	if err != nil {
		return err
	}
	s, err := newClient(cCtx).Stats(cCtx.Context, &q)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(cCtx.App.Writer, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "Closed trades\t%d\n", s.Total)
	fmt.Fprintf(tw, "Winners\t%d\n", s.Profit)
	fmt.Fprintf(tw, "Losers\t%d\n", s.Loss)
	fmt.Fprintf(tw, "Total P&L\t%s\n", signed(s.TotalPnl))
	fmt.Fprintf(tw, "Average P&L\t%s\n", signed(s.AvgPnl))
	fmt.Fprintf(tw, "Win rate\t%s%%\n", s.WinRate.StringFixed(1))
	fmt.Fprintf(tw, "Best trade\t%s\n", signed(s.MaxProfit))
	fmt.Fprintf(tw, "Worst trade\t%s\n", signed(s.MaxLoss))
	return tw.Flush()
}

func exportTrades(cCtx *cli.Context) error {
	q, err := queryFromFlags(cCtx)
	if err != nil {
		return err
	}

	dir := "."
	if out := cCtx.String("out"); out != "" {
		dir = filepath.Dir(out)
	}
	// Same directory as the destination so the final rename stays on one
	// filesystem.
	tmp, err := os.CreateTemp(dir, ".journal-export-*.xlsx")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	name, err := newClient(cCtx).Export(cCtx.Context, tmp, &q, cCtx.String("lang"))
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return err
	}

	dest := cCtx.String("out")
	if dest == "" {
		if name == "" {
			name = "trading_journal.xlsx"
		}
		dest = filepath.Join(dir, filepath.Base(name))
	}
	if err := os.Rename(tmp.Name(), dest); err != nil {
		return fmt.Errorf("write %s: %w", dest, err)
	}
	fmt.Fprintf(cCtx.App.Writer, "Exported to %s\n", dest)
	return nil
}

func uploadImage(cCtx *cli.Context) error {
	path := cCtx.Args().First()
	if path == "" {
		return cli.Exit("Error: FILE is required", 1)
	}
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	u, err := newClient(cCtx).UploadImage(cCtx.Context, path, f)
	if err != nil {
		return err
	}
	fmt.Fprintln(cCtx.App.Writer, u)
	return nil
}

// --- helpers ---

func queryFromFlags(cCtx *cli.Context) (tradelist.Query, error) {
	v := url.Values{}
	for _, name := range []string{"sort", "dir", "range", "from", "to"} {
		if cCtx.IsSet(name) || cCtx.String(name) != "" {
			v.Set(name, cCtx.String(name))
		}
	}
	q, err := tradelist.Parse(v, time.Local)
	if err != nil {
		return q, cli.Exit(fmt.Sprintf("Error: %v", err), 1)
	}
	return q, nil
}

func argID(cCtx *cli.Context) (int64, error) {
	id, err := strconv.ParseInt(cCtx.Args().First(), 10, 64)
	if err != nil || id <= 0 {
		return 0, cli.Exit("Error: a positive trade ID is required", 1)
	}
	return id, nil
}

func decimalFlag(cCtx *cli.Context, name string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(cCtx.String(name))
	if err != nil {
		return decimal.Zero, cli.Exit(fmt.Sprintf("Error: --%s must be a number", name), 1)
	}
	return d, nil
}

func signed(d decimal.Decimal) string {
	s := d.StringFixed(2)
	if d.IsPositive() {
		return "+" + s
	}
	return s
}

func printTrade(cCtx *cli.Context, t *model.Trade) {
	tw := tabwriter.NewWriter(cCtx.App.Writer, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "ID\t%d\n", t.ID)
	fmt.Fprintf(tw, "Symbol\t%s\n", t.Symbol)
	fmt.Fprintf(tw, "Entry\t%s x%d @ %s\n", t.EntryDate.Local().Format("2006-01-02 15:04"), t.Quantity, t.EntryPrice)
	fmt.Fprintf(tw, "Fee\t%s\n", t.Fee)
	if t.ExitPrice != nil {
		exit := "-"
		if t.ExitDate != nil {
			exit = t.ExitDate.Local().Format("2006-01-02 15:04")
		}
		pnl, _ := t.RealizedPnl()
		fmt.Fprintf(tw, "Exit\t%s @ %s\n", exit, t.ExitPrice)
		fmt.Fprintf(tw, "P&L\t%s\n", signed(pnl))
	} else {
		fmt.Fprintf(tw, "Exit\topen\n")
	}
	fmt.Fprintf(tw, "Reason\t%s\n", t.Reason)
	if t.Notes != "" {
		fmt.Fprintf(tw, "Notes\t%s\n", t.Notes)
	}
	if len(t.Tags) > 0 {
		fmt.Fprintf(tw, "Tags\t%s\n", strings.Join(t.Tags, ", "))
	}
	for _, u := range t.ImageURLs {
		fmt.Fprintf(tw, "Image\t%s\n", u)
	}
	if t.DeletedAt != nil {
		fmt.Fprintf(tw, "Deleted\t%s\n", t.DeletedAt.Local().Format("2006-01-02 15:04"))
	}
	tw.Flush()
}
