package main

import (
	"bytes"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/tjournal/journal-engine/internal/images"
	"github.com/tjournal/journal-engine/internal/journal"
	"github.com/tjournal/journal-engine/internal/store"
)

func newServer(t *testing.T) string {
	t.Helper()
	svc := journal.NewService(store.NewMemoryStore(), nil, time.UTC)
	srv := httptest.NewServer(journal.NewRouter(svc, images.NewHandler(t.TempDir(), 0), nil,
		journal.RouterOptions{APIKey: "k", Quiet: true}))
	t.Cleanup(srv.Close)
	return srv.URL
}

// run executes one journalctl invocation and returns its stdout.
func run(t *testing.T, serverURL string, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	app := newApp(&out)
	app.ExitErrHandler = func(*cli.Context, error) {}
	argv := append([]string{"journalctl", "--server", serverURL, "--api-key", "k"}, args...)
	err := app.Run(argv)
	return out.String(), err
}

func TestJournalctl_Lifecycle(t *testing.T) {
	url := newServer(t)

	out, err := run(t, url, "add", "--symbol", "AAPL", "--price", "100", "--qty", "10",
		"--fee", "5", "--reason", "breakout", "--date", "2025-11-03T09:30", "--tag", "swing")
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if !strings.Contains(out, "Recorded trade 1") {
		t.Errorf("add output = %q", out)
	}

	out, err = run(t, url, "list")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if !strings.Contains(out, "AAPL") || !strings.Contains(out, "open") {
		t.Errorf("list output = %q", out)
	}

	out, err = run(t, url, "close", "--price", "110", "--date", "2025-11-05T15:00", "1")
	if err != nil {
		t.Fatalf("close: %v", err)
	}
	if !strings.Contains(out, "realized +95.00") {
		t.Errorf("close output = %q", out)
	}

	out, err = run(t, url, "stats")
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	for _, want := range []string{"Closed trades  1", "Total P&L      +95.00", "Win rate       100.0%"} {
		if !strings.Contains(out, want) {
			t.Errorf("stats output missing %q:\n%s", want, out)
		}
	}

	out, err = run(t, url, "show", "1")
	if err != nil {
		t.Fatalf("show: %v", err)
	}
	if !strings.Contains(out, "breakout") || !strings.Contains(out, "+95.00") {
		t.Errorf("show output = %q", out)
	}

	if _, err := run(t, url, "delete", "1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	out, err = run(t, url, "list")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if !strings.Contains(out, "No trades recorded.") {
		t.Errorf("list after delete = %q", out)
	}
}

func TestJournalctl_Export(t *testing.T) {
	url := newServer(t)
	if _, err := run(t, url, "add", "--symbol", "MSFT", "--price", "50", "--qty", "2", "--reason", "r"); err != nil {
		t.Fatalf("add: %v", err)
	}

	dest := filepath.Join(t.TempDir(), "out.xlsx")
	if _, err := run(t, url, "export", "--out", dest, "--lang", "en"); err != nil {
		t.Fatalf("export: %v", err)
	}
	info, err := os.Stat(dest)
	if err != nil {
		t.Fatalf("stat export: %v", err)
	}
	if info.Size() == 0 {
		t.Error("export file is empty")
	}
}

func TestJournalctl_BadInput(t *testing.T) {
	url := newServer(t)

	if _, err := run(t, url, "show", "abc"); err == nil {
		t.Error("show with non-numeric id should fail")
	}
	if _, err := run(t, url, "list", "--sort", "volume"); err == nil {
		t.Error("unknown sort field should fail")
	}
	if _, err := run(t, url, "add", "--symbol", "X", "--price", "ten", "--qty", "1", "--reason", "r"); err == nil {
		t.Error("non-numeric price should fail")
	}
	if _, err := run(t, url, "show", "42"); err == nil || !strings.Contains(err.Error(), "trade not found") {
		t.Errorf("show missing trade err = %v", err)
	}
}

func TestJournalctl_ListToggle(t *testing.T) {
	url := newServer(t)
	for _, sym := range []string{"AAA", "ZZZ"} {
		if _, err := run(t, url, "add", "--symbol", sym, "--price", "10", "--qty", "1", "--reason", "r"); err != nil {
			t.Fatalf("add %s: %v", sym, err)
		}
	}

	out, err := run(t, url, "list", "--sort", "symbol", "--dir", "asc", "--toggle")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if a, z := strings.Index(out, "AAA"), strings.Index(out, "ZZZ"); a < 0 || z < 0 || z > a {
		t.Errorf("toggled asc should list ZZZ first:\n%s", out)
	}

	out, err = run(t, url, "list", "--sort", "symbol", "--toggle")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if a, z := strings.Index(out, "AAA"), strings.Index(out, "ZZZ"); a < 0 || z < 0 || a > z {
		t.Errorf("toggled desc should list AAA first:\n%s", out)
	}
}
