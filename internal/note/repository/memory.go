package repository

import (
	"context"
	"sort"
	"sync"

	"mdnotes/internal/common"
	"mdnotes/internal/note/model"
)

// MemoryStore keeps notes in process memory. Used when NOTES_STORE=memory
// and in tests.
type MemoryStore struct {
	mu     sync.RWMutex
	notes  map[int64]model.Note
	nextID int64
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{notes: make(map[int64]model.Note)}
}

func (m *MemoryStore) Save(_ context.Context, note *model.Note) (*model.Note, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextID++
	saved := *note
	saved.ID = m.nextID
	m.notes[saved.ID] = saved
	return &saved, nil
}

func (m *MemoryStore) FindByID(_ context.Context, id int64) (*model.Note, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	n, ok := m.notes[id]
	if !ok {
		return nil, common.ErrNotFound
	}
	return &n, nil
}

func (m *MemoryStore) FindAll(_ context.Context) ([]model.Note, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]model.Note, 0, len(m.notes))
	for _, n := range m.notes {
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MemoryStore) ListSummaries(ctx context.Context) ([]model.NoteSummary, error) {
	notes, _ := m.FindAll(ctx)
	out := make([]model.NoteSummary, 0, len(notes))
	for i := range notes {
		out = append(out, notes[i].Summary())
	}
	return out, nil
}
