package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/tjournal/journal-engine/internal/model"
)

// MemoryStore implements Store with an in-memory map. Used for testing
// and development. Not suitable for production (no persistence).
type MemoryStore struct {
	mu     sync.RWMutex
	trades map[int64]*model.Trade
	nextID int64
}

// NewMemoryStore creates a new in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		trades: make(map[int64]*model.Trade),
		nextID: 1,
	}
}

func (s *MemoryStore) List(_ context.Context) ([]model.Trade, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	trades := make([]model.Trade, 0, len(s.trades))
	for _, t := range s.trades {
		if t.IsDeleted() {
			continue
		}
		trades = append(trades, *t.Clone())
	}
	// Map order is random; keep responses stable.
	sort.Slice(trades, func(i, j int) bool { return trades[i].ID < trades[j].ID })
	return trades, nil
}

func (s *MemoryStore) Get(_ context.Context, id int64) (*model.Trade, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.trades[id]
	if !ok {
		return nil, fmt.Errorf("trade %d: %w", id, ErrNotFound)
	}
	return t.Clone(), nil
}

func (s *MemoryStore) Insert(_ context.Context, t *model.Trade) (*model.Trade, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := t.Clone()
	stored.ID = s.nextID
	stored.DeletedAt = nil
	s.nextID++
	s.trades[stored.ID] = stored
	return stored.Clone(), nil
}

func (s *MemoryStore) Replace(_ context.Context, id int64, t *model.Trade) (*model.Trade, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.trades[id]
	if !ok {
		return nil, fmt.Errorf("trade %d: %w", id, ErrNotFound)
	}
	stored := t.Clone()
	stored.ID = id
	stored.DeletedAt = existing.DeletedAt
	s.trades[id] = stored
	return stored.Clone(), nil
}

func (s *MemoryStore) SoftDelete(_ context.Context, id int64, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.trades[id]
	if !ok {
		return fmt.Errorf("trade %d: %w", id, ErrNotFound)
	}
	if t.DeletedAt == nil {
		at = at.UTC()
		t.DeletedAt = &at
	}
	return nil
}
