// ABOUTME: Tests for the in-memory mock store
// ABOUTME: Keeps the mock honest against the Store contract the SQLite tests pin down

package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/machinefolk/composer-gateway/internal/tune"
)

func TestMockStore_ImplementsStore(t *testing.T) {
	var _ Store = NewMockStore()
}

func TestMockStore_CreateAndGet(t *testing.T) {
	m := NewMockStore()
	ctx := testContext(t)

	created := &tune.Tune{ModelName: "test.pickle", Temp: 1.0, PrimeTokens: "M:4/4 K:Cmaj"}
	require.NoError(t, m.CreateTune(ctx, created))
	assert.Equal(t, int64(1), created.ID)

	got, err := m.GetTune(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "test.pickle", got.ModelName)

	// Returned record is a copy: mutating it must not affect the store
	got.ABC = "tampered"
	again, err := m.GetTune(ctx, 1)
	require.NoError(t, err)
	assert.Empty(t, again.ABC)

	_, err = m.GetTune(ctx, 2)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMockStore_LifecycleMatchesSQLite(t *testing.T) {
	m := NewMockStore()
	ctx := testContext(t)

	created := &tune.Tune{ModelName: "test.pickle"}
	require.NoError(t, m.CreateTune(ctx, created))
	id := created.ID

	require.NoError(t, m.MarkStarted(ctx, id, time.Now().UTC()))
	require.NoError(t, m.UpdateABC(ctx, id, "a b"))
	require.Error(t, m.UpdateABC(ctx, id, "a")) // shrinking refused
	require.NoError(t, m.MarkFinished(ctx, id, "a b c", time.Now().UTC()))

	assert.ErrorIs(t, m.UpdateABC(ctx, id, "a b c d"), ErrFinished)
	assert.ErrorIs(t, m.MarkFinished(ctx, id, "x", time.Now().UTC()), ErrFinished)

	n, err := m.CountTunes(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
