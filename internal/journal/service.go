// Package journal provides the HTTP handlers for recording trades and
// querying the derived dashboard views, plus the WebSocket hub that tells
// clients when the journal changed.
//
// All monetary values use shopspring/decimal, never float64 for money.
package journal

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/tjournal/journal-engine/internal/export"
	"github.com/tjournal/journal-engine/internal/metrics"
	"github.com/tjournal/journal-engine/internal/model"
	"github.com/tjournal/journal-engine/internal/report"
	"github.com/tjournal/journal-engine/internal/store"
	"github.com/tjournal/journal-engine/internal/tradelist"
)

// Service handles trade operations. Handlers are stateless; the store
// guards its own state and concurrent writes are last-write-wins.
type Service struct {
	store store.Store
	hub   *Hub // optional WebSocket hub for change events
	loc   *time.Location
	now   func() time.Time
}

// NewService creates a new journal service. loc is the zone used for date
// range windows and export timestamps; nil means UTC.
// Pass nil for hub if WebSocket broadcasting is not needed.
func NewService(st store.Store, hub *Hub, loc *time.Location) *Service {
	if loc == nil {
		loc = time.UTC
	}
	return &Service{
		store: st,
		hub:   hub,
		loc:   loc,
		now:   time.Now,
	}
}

// --- Trade CRUD ---

// ListTrades handles GET /api/trades
// Accepts the optional sort, dir, range, from and to query parameters.
func (s *Service) ListTrades(w http.ResponseWriter, r *http.Request) {
	q, err := tradelist.Parse(r.URL.Query(), s.loc)
	if err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	trades, err := s.store.List(r.Context())
	metrics.JournalOps.WithLabelValues("list", metrics.Outcome(err)).Inc()
	if err != nil {
		s.storageError(w, "list trades", err)
		return
	}
	metrics.OpenTrades.Set(float64(countOpen(trades)))

	writeJSON(w, http.StatusOK, q.Apply(trades, s.clock()))
}

// GetTrade handles GET /api/trades/{id}
// Soft-deleted trades are still returned, with deletedAt set.
func (s *Service) GetTrade(w http.ResponseWriter, r *http.Request) {
	id, ok := tradeID(w, r)
	if !ok {
		return
	}

	t, err := s.store.Get(r.Context(), id)
	metrics.JournalOps.WithLabelValues("get", metrics.Outcome(err)).Inc()
	if err != nil {
		s.storageError(w, "get trade", err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

// CreateTrade handles POST /api/trades
func (s *Service) CreateTrade(w http.ResponseWriter, r *http.Request) {
	in, ok := decodeInput(w, r)
	if !ok {
		return
	}
	t, err := in.ToTrade()
	if err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if t.EntryDate.IsZero() {
		t.EntryDate = s.now().UTC()
	}

	stored, err := s.store.Insert(r.Context(), t)
	metrics.JournalOps.WithLabelValues("create", metrics.Outcome(err)).Inc()
	if err != nil {
		s.storageError(w, "create trade", err)
		return
	}

	slog.Info("trade created",
		"id", stored.ID,
		"symbol", stored.Symbol,
		"qty", stored.Quantity,
		"entry_price", stored.EntryPrice.String(),
	)
	s.publish(EventTradeCreated, stored)

	writeJSON(w, http.StatusCreated, stored)
}

// UpdateTrade handles PUT /api/trades/{id}
// The body fully replaces the stored trade. An omitted entryDate keeps the
// stored one; id and deletedAt are never taken from the body.
func (s *Service) UpdateTrade(w http.ResponseWriter, r *http.Request) {
	id, ok := tradeID(w, r)
	if !ok {
		return
	}
	in, ok := decodeInput(w, r)
	if !ok {
		return
	}
	t, err := in.ToTrade()
	if err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	if t.EntryDate.IsZero() {
		existing, err := s.store.Get(ctx, id)
		if err != nil {
			metrics.JournalOps.WithLabelValues("update", metrics.Outcome(err)).Inc()
			s.storageError(w, "update trade", err)
			return
		}
		t.EntryDate = existing.EntryDate
	}

	stored, err := s.store.Replace(ctx, id, t)
	metrics.JournalOps.WithLabelValues("update", metrics.Outcome(err)).Inc()
	if err != nil {
		s.storageError(w, "update trade", err)
		return
	}

	attrs := []any{"id", stored.ID, "symbol", stored.Symbol}
	if pnl, closed := stored.RealizedPnl(); closed {
		attrs = append(attrs, "realized_pnl", pnl.String())
	}
	slog.Info("trade updated", attrs...)
	s.publish(EventTradeUpdated, stored)

	writeJSON(w, http.StatusOK, stored)
}

// DeleteTrade handles DELETE /api/trades/{id}
// The row is kept with deletedAt set; deleting twice keeps the first time.
func (s *Service) DeleteTrade(w http.ResponseWriter, r *http.Request) {
	id, ok := tradeID(w, r)
	if !ok {
		return
	}

	err := s.store.SoftDelete(r.Context(), id, s.now().UTC())
	metrics.JournalOps.WithLabelValues("delete", metrics.Outcome(err)).Inc()
	if err != nil {
		s.storageError(w, "delete trade", err)
		return
	}

	slog.Info("trade deleted", "id", id)
	if s.hub != nil {
		s.hub.Broadcast(Event{Type: EventTradeDeleted, TradeID: id})
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- Derived views ---

// Stats handles GET /api/trades/stats
// The range, from and to parameters scope the trades summarized.
func (s *Service) Stats(w http.ResponseWriter, r *http.Request) {
	trades, ok := s.filtered(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, report.Summarize(trades))
}

// Dashboard handles GET /api/trades/dashboard
func (s *Service) Dashboard(w http.ResponseWriter, r *http.Request) {
	trades, ok := s.filtered(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, report.BuildDashboard(trades))
}

// Export handles GET /api/trades/export
// The list query selects and orders rows; lang or Accept-Language picks
// the header language.
func (s *Service) Export(w http.ResponseWriter, r *http.Request) {
	q, err := tradelist.Parse(r.URL.Query(), s.loc)
	if err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}
	trades, err := s.store.List(r.Context())
	metrics.JournalOps.WithLabelValues("export", metrics.Outcome(err)).Inc()
	if err != nil {
		s.storageError(w, "export trades", err)
		return
	}

	now := s.clock()
	rows := q.Apply(trades, now)
	lang := export.Match(r.URL.Query().Get("lang"), r.Header.Get("Accept-Language"))

	var buf bytes.Buffer
	if err := export.Write(&buf, rows, lang, s.loc); err != nil {
		slog.Error("export failed", "rows", len(rows), "err", err)
		writeError(w, "failed to build export", http.StatusInternalServerError)
		return
	}
	metrics.Exports.WithLabelValues(lang.String()).Inc()

	w.Header().Set("Content-Type", export.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, export.Filename(now)))
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.Write(buf.Bytes())
}

// --- helpers ---

// clock is the current time in the configured zone.
func (s *Service) clock() time.Time {
	return s.now().In(s.loc)
}

// filtered lists trades restricted to the request's date range.
func (s *Service) filtered(w http.ResponseWriter, r *http.Request) ([]model.Trade, bool) {
	q, err := tradelist.Parse(r.URL.Query(), s.loc)
	if err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return nil, false
	}
	trades, err := s.store.List(r.Context())
	metrics.JournalOps.WithLabelValues("report", metrics.Outcome(err)).Inc()
	if err != nil {
		s.storageError(w, "load trades for report", err)
		return nil, false
	}
	return q.Filter(trades, s.clock()), true
}

func (s *Service) publish(eventType string, t *model.Trade) {
	if s.hub == nil {
		return
	}
	s.hub.Broadcast(Event{Type: eventType, TradeID: t.ID, Symbol: t.Symbol, Trade: t})
}

// storageError maps store failures to responses. Anything but a missing
// trade is logged and reported without detail.
func (s *Service) storageError(w http.ResponseWriter, op string, err error) {
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, "trade not found", http.StatusNotFound)
		return
	}
	slog.Error(op+" failed", "err", err)
	writeError(w, "internal error", http.StatusInternalServerError)
}

func tradeID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, "invalid trade id", http.StatusBadRequest)
		return 0, false
	}
	return id, true
}

func decodeInput(w http.ResponseWriter, r *http.Request) (model.TradeInput, bool) {
	var in model.TradeInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return in, false
	}
	return in, true
}

func countOpen(trades []model.Trade) int {
	n := 0
	for i := range trades {
		if trades[i].IsOpen() {
			n++
		}
	}
	return n
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, message string, status int) {
	writeJSON(w, status, map[string]string{"error": message})
}
