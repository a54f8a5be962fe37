// ABOUTME: Mock Store implementation for testing
// ABOUTME: Allows tests to run without SQLite

package store

import (
	"context"
	"sync"
	"time"

	"github.com/machinefolk/composer-gateway/internal/tune"
)

// MockStore is an in-memory Store implementation for testing.
type MockStore struct {
	mu     sync.RWMutex
	nextID int64
	tunes  map[int64]*tune.Tune
}

// NewMockStore creates a new MockStore.
func NewMockStore() *MockStore {
	return &MockStore{
		nextID: 1,
		tunes:  make(map[int64]*tune.Tune),
	}
}

// CreateTune stores a new tune and assigns the next ID.
func (m *MockStore) CreateTune(ctx context.Context, t *tune.Tune) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if t.Requested.IsZero() {
		t.Requested = time.Now().UTC()
	}
	t.ID = m.nextID
	m.nextID++

	// Copy to avoid external modification
	c := *t
	m.tunes[c.ID] = &c
	return nil
}

// GetTune retrieves a tune by ID.
func (m *MockStore) GetTune(ctx context.Context, id int64) (*tune.Tune, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	t, ok := m.tunes[id]
	if !ok {
		return nil, ErrNotFound
	}
	c := *t
	return &c, nil
}

// CountTunes returns the number of stored tunes.
func (m *MockStore) CountTunes(ctx context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.tunes), nil
}

// MarkStarted records the generation start timestamp.
func (m *MockStore) MarkStarted(ctx context.Context, id int64, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.tunes[id]
	if !ok {
		return ErrNotFound
	}
	started := at
	t.RNNStarted = &started
	return nil
}

// UpdateABC replaces the accumulated ABC of an unfinished tune.
func (m *MockStore) UpdateABC(ctx context.Context, id int64, abc string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.tunes[id]
	if !ok {
		return ErrNotFound
	}
	if t.RNNFinished != nil {
		return ErrFinished
	}
	if len(abc) < len(t.ABC) {
		return ErrFinished
	}
	t.ABC = abc
	return nil
}

// MarkFinished records the final ABC and finish timestamp.
func (m *MockStore) MarkFinished(ctx context.Context, id int64, abc string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.tunes[id]
	if !ok {
		return ErrNotFound
	}
	if t.RNNFinished != nil {
		return ErrFinished
	}
	finished := at
	t.ABC = abc
	t.RNNFinished = &finished
	return nil
}

// Close is a no-op for the mock store.
func (m *MockStore) Close() error {
	return nil
}
