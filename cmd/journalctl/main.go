// journalctl is the command line client for the trading journal API.
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/tjournal/journal-engine/internal/client"
)

var version = "dev"

func main() {
	if err := newApp(os.Stdout).Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newApp(out io.Writer) *cli.App {
	return &cli.App{
		Name:      "journalctl",
		Usage:     "Record and review trades in the journal",
		Version:   version,
		Writer:    out,
		ErrWriter: os.Stderr,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "server",
				Usage:   "journal API base URL",
				Value:   client.DefaultBaseURL,
				EnvVars: []string{"JOURNAL_URL"},
			},
			&cli.StringFlag{
				Name:    "api-key",
				Usage:   "Bearer token for the journal API",
				EnvVars: []string{"JOURNAL_API_KEY", "API_KEY"},
			},
			&cli.DurationFlag{
				Name:  "timeout",
				Usage: "per-request timeout",
				Value: client.DefaultTimeout,
			},
		},
		Commands: []*cli.Command{
			{
				Name:    "list",
				Aliases: []string{"ls"},
				Usage:   "List trades",
				Flags:   listFlags(),
				Action:  listTrades,
			},
			{
				Name:      "show",
				Usage:     "Show one trade",
				ArgsUsage: "ID",
				Action:    showTrade,
			},
			{
				Name:   "add",
				Usage:  "Record a new trade entry",
				Flags:  addFlags(),
				Action: addTrade,
			},
			{
				Name:      "close",
				Usage:     "Record the exit of an open trade",
				ArgsUsage: "ID",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "price", Usage: "exit price", Required: true},
					&cli.StringFlag{Name: "date", Usage: "exit time (default now)"},
				},
				Action: closeTrade,
			},
			{
				Name:      "delete",
				Aliases:   []string{"rm"},
				Usage:     "Delete a trade",
				ArgsUsage: "ID",
				Action:    deleteTrade,
			},
			{
				Name:   "stats",
				Usage:  "Show summary statistics for closed trades",
				Flags:  rangeFlags(),
				Action: showStats,
			},
			{
				Name:  "export",
				Usage: "Download the journal as an xlsx workbook",
				Flags: append(queryFlags(),
					&cli.StringFlag{Name: "out", Aliases: []string{"o"}, Usage: "output path (default server file name)"},
					&cli.StringFlag{Name: "lang", Usage: "header language, e.g. en or ko"},
				),
				Action: exportTrades,
			},
			{
				Name:      "upload",
				Usage:     "Upload a chart image and print its URL",
				ArgsUsage: "FILE",
				Action:    uploadImage,
			},
		},
	}
}

func newClient(cCtx *cli.Context) *client.Client {
	return client.NewClient(
		client.WithBaseURL(cCtx.String("server")),
		client.WithAPIKey(cCtx.String("api-key")),
		client.WithTimeout(cCtx.Duration("timeout")),
	)
}

func rangeFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "range", Usage: "all, today, week, month or custom", Value: "all"},
		&cli.StringFlag{Name: "from", Usage: "custom range start, YYYY-MM-DD"},
		&cli.StringFlag{Name: "to", Usage: "custom range end, YYYY-MM-DD"},
	}
}

func queryFlags() []cli.Flag {
	return append(rangeFlags(),
		&cli.StringFlag{Name: "sort", Usage: "symbol, entryDate or pnl"},
		&cli.StringFlag{Name: "dir", Usage: "asc or desc", Value: "desc"},
	)
}

func listFlags() []cli.Flag {
	return append(queryFlags(),
		&cli.BoolFlag{Name: "toggle", Usage: "flip --dir for the --sort field, like clicking its column header"},
	)
}

func addFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "symbol", Aliases: []string{"s"}, Required: true},
		&cli.StringFlag{Name: "price", Usage: "entry price", Required: true},
		&cli.IntFlag{Name: "qty", Usage: "quantity", Required: true},
		&cli.StringFlag{Name: "fee", Usage: "total fee", Value: "0"},
		&cli.StringFlag{Name: "reason", Usage: "why the trade was entered", Required: true},
		&cli.StringFlag{Name: "date", Usage: "entry time (default now)"},
		&cli.StringFlag{Name: "exit-price", Usage: "exit price, for an already closed trade"},
		&cli.StringFlag{Name: "exit-date", Usage: "exit time"},
		&cli.StringFlag{Name: "notes", Usage: "markdown notes"},
		&cli.StringSliceFlag{Name: "tag", Usage: "label, repeatable"},
		&cli.StringSliceFlag{Name: "image", Usage: "image URL from upload, repeatable"},
	}
}
