package journal

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

type MemoryJournal struct {
	mu      sync.RWMutex
	entries map[uuid.UUID]Entry
}

func NewMemoryJournal() *MemoryJournal {
	return &MemoryJournal{entries: map[uuid.UUID]Entry{}}
}

func (m *MemoryJournal) Record(ctx context.Context, in EntryInput) (Entry, error) {
	if in.ID == uuid.Nil {
		in.ID = uuid.New()
	}
	entry := Entry{
		ID:          in.ID,
		Verb:        in.Verb,
		Entity:      in.Entity,
		State:       in.State,
		TxHash:      in.TxHash,
		BudgetLimit: in.BudgetLimit,
		BudgetPrice: in.BudgetPrice,
		Outcome:     append(json.RawMessage(nil), ensureJSON(in.Outcome)...),
		Reason:      in.Reason,
		CreatedAt:   time.Now().UTC(),
		SettledAt:   in.SettledAt,
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[entry.ID] = entry
	return entry, nil
}

func (m *MemoryJournal) Get(ctx context.Context, id uuid.UUID) (Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	entry, ok := m.entries[id]
	if !ok {
		return Entry{}, ErrNotFound
	}
	return entry, nil
}

func (m *MemoryJournal) ListRecent(ctx context.Context, limit int) ([]Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	entries := make([]Entry, 0, len(m.entries))
	for _, e := range m.entries {
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].CreatedAt.After(entries[j].CreatedAt)
	})
	if n := normalizeLimit(limit); len(entries) > n {
		entries = entries[:n]
	}
	return entries, nil
}

func (m *MemoryJournal) Ping(ctx context.Context) error {
	return nil
}
