// ABOUTME: Tests for the generation service
// ABOUTME: Uses a scripted fake streamer to pin event publishing, persistence, and failure handling

package generation

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/machinefolk/composer-gateway/internal/channel"
	"github.com/machinefolk/composer-gateway/internal/registry"
	"github.com/machinefolk/composer-gateway/internal/store"
	"github.com/machinefolk/composer-gateway/internal/tune"
)

// fakeStreamer emits a scripted sequence of increments, then optionally
// fails.
type fakeStreamer struct {
	increments []string
	err        error
	gotJob     Job
}

func (f *fakeStreamer) Stream(ctx context.Context, job Job, emit func(string) error) error {
	f.gotJob = job
	for _, inc := range f.increments {
		if err := emit(inc); err != nil {
			return err
		}
	}
	return f.err
}

func newTestRegistry(t *testing.T) *registry.Registry {
	t.Helper()
	r, err := registry.New([]registry.Model{
		{Name: "thesession_with_repeats.pickle", Path: "/models/thesession_with_repeats.pickle"},
	})
	require.NoError(t, err)
	return r
}

func createTestTune(t *testing.T, s store.Store) *tune.Tune {
	t.Helper()
	tn := &tune.Tune{
		ModelName:   "thesession_with_repeats.pickle",
		Temp:        0.1,
		Seed:        123,
		Meter:       "M:4/4",
		Key:         "K:Cmaj",
		PrimeTokens: "M:4/4 K:Cmaj a b c",
	}
	require.NoError(t, s.CreateTune(testContext(t), tn))
	return tn
}

func collectEvents(t *testing.T, ch <-chan *tune.Event, n int) []*tune.Event {
	t.Helper()
	events := make([]*tune.Event, 0, n)
	for len(events) < n {
		select {
		case ev := <-ch:
			events = append(events, ev)
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out after %d of %d events", len(events), n)
		}
	}
	return events
}

func TestService_GenerateStreamsAndFinalizes(t *testing.T) {
	s := store.NewMockStore()
	c := channel.New(nil)
	defer c.Close()

	streamer := &fakeStreamer{increments: []string{"a b c", " d e f"}}
	svc := NewService(s, c, newTestRegistry(t), streamer, nil)

	tn := createTestTune(t, s)
	ch, _ := c.Subscribe(testContext(t), tune.GroupName(tn.ID))

	require.NoError(t, svc.Generate(testContext(t), tn.ID))

	// Two new_abc events plus the final complete event, in publish order,
	// each carrying the full accumulated text
	events := collectEvents(t, ch, 3)
	assert.Equal(t, tune.EventNewABC, events[0].Kind)
	assert.Equal(t, "a b c", events[0].ABC)
	assert.Equal(t, tune.EventNewABC, events[1].Kind)
	assert.Equal(t, "a b c d e f", events[1].ABC)
	assert.Equal(t, tune.EventComplete, events[2].Kind)
	assert.Equal(t, "a b c d e f", events[2].ABC)
	for _, ev := range events {
		assert.Equal(t, tn.ID, ev.TuneID)
	}

	got, err := s.GetTune(testContext(t), tn.ID)
	require.NoError(t, err)
	assert.Equal(t, "a b c d e f", got.ABC)
	require.NotNil(t, got.RNNStarted)
	require.NotNil(t, got.RNNFinished)
	assert.False(t, got.RNNFinished.Before(*got.RNNStarted))
}

func TestService_PassesJobParametersToWorker(t *testing.T) {
	s := store.NewMockStore()
	c := channel.New(nil)
	defer c.Close()

	streamer := &fakeStreamer{increments: []string{"a"}}
	svc := NewService(s, c, newTestRegistry(t), streamer, nil)

	tn := createTestTune(t, s)
	require.NoError(t, svc.Generate(testContext(t), tn.ID))

	assert.Equal(t, "thesession_with_repeats.pickle", streamer.gotJob.ModelName)
	assert.Equal(t, "/models/thesession_with_repeats.pickle", streamer.gotJob.ModelPath)
	assert.Equal(t, 0.1, streamer.gotJob.Temp)
	assert.Equal(t, 123, streamer.gotJob.Seed)
	assert.Equal(t, "M:4/4 K:Cmaj a b c", streamer.gotJob.PrimeTokens)
}

func TestService_RewritesTuneNumberPlaceholder(t *testing.T) {
	s := store.NewMockStore()
	c := channel.New(nil)
	defer c.Close()

	streamer := &fakeStreamer{increments: []string{"X:1\nT:№1\nM:4/4\n", "a b c"}}
	svc := NewService(s, c, newTestRegistry(t), streamer, nil)

	// Burn some IDs so the assigned one differs from the placeholder
	createTestTune(t, s)
	createTestTune(t, s)
	tn := createTestTune(t, s)
	require.Equal(t, int64(3), tn.ID)

	require.NoError(t, svc.Generate(testContext(t), tn.ID))

	got, err := s.GetTune(testContext(t), tn.ID)
	require.NoError(t, err)
	assert.Equal(t, "X:3\nT:№3\nM:4/4\na b c", got.ABC)
}

func TestService_WorkerFailureFinalizesWithPartialOutput(t *testing.T) {
	s := store.NewMockStore()
	c := channel.New(nil)
	defer c.Close()

	streamer := &fakeStreamer{
		increments: []string{"a b"},
		err:        errors.New("worker crashed"),
	}
	svc := NewService(s, c, newTestRegistry(t), streamer, nil)

	tn := createTestTune(t, s)
	ch, _ := c.Subscribe(testContext(t), tune.GroupName(tn.ID))

	// Worker failure is absorbed, not returned
	require.NoError(t, svc.Generate(testContext(t), tn.ID))

	events := collectEvents(t, ch, 2)
	assert.Equal(t, tune.EventComplete, events[1].Kind)
	assert.Equal(t, "a b", events[1].ABC)

	got, err := s.GetTune(testContext(t), tn.ID)
	require.NoError(t, err)
	assert.Equal(t, "a b", got.ABC)
	require.NotNil(t, got.RNNFinished)
}

func TestService_WorkerWithNoOutputStillCompletes(t *testing.T) {
	s := store.NewMockStore()
	c := channel.New(nil)
	defer c.Close()

	streamer := &fakeStreamer{err: errors.New("no output")}
	svc := NewService(s, c, newTestRegistry(t), streamer, nil)

	tn := createTestTune(t, s)
	ch, _ := c.Subscribe(testContext(t), tune.GroupName(tn.ID))

	require.NoError(t, svc.Generate(testContext(t), tn.ID))

	events := collectEvents(t, ch, 1)
	assert.Equal(t, tune.EventComplete, events[0].Kind)
	assert.Empty(t, events[0].ABC)
}

func TestService_GeneratePreconditions(t *testing.T) {
	s := store.NewMockStore()
	c := channel.New(nil)
	defer c.Close()

	streamer := &fakeStreamer{increments: []string{"a"}}
	svc := NewService(s, c, newTestRegistry(t), streamer, nil)

	// Unknown tune
	assert.Error(t, svc.Generate(testContext(t), 42))

	// Already started
	tn := createTestTune(t, s)
	require.NoError(t, svc.Generate(testContext(t), tn.ID))
	assert.Error(t, svc.Generate(testContext(t), tn.ID))
}

func TestService_ConcurrentGenerationsAreIndependent(t *testing.T) {
	s := store.NewMockStore()
	c := channel.New(nil)
	defer c.Close()

	svcA := NewService(s, c, newTestRegistry(t), &fakeStreamer{increments: []string{"a b c"}}, nil)
	svcB := NewService(s, c, newTestRegistry(t), &fakeStreamer{increments: []string{"A B C"}}, nil)

	ta := createTestTune(t, s)
	tb := createTestTune(t, s)

	chA, _ := c.Subscribe(testContext(t), tune.GroupName(ta.ID))
	chB, _ := c.Subscribe(testContext(t), tune.GroupName(tb.ID))

	done := make(chan error, 2)
	go func() { done <- svcA.Generate(testContext(t), ta.ID) }()
	go func() { done <- svcB.Generate(testContext(t), tb.ID) }()
	for n := 0; n < 2; n++ {
		require.NoError(t, <-done)
	}

	eventsA := collectEvents(t, chA, 2)
	eventsB := collectEvents(t, chB, 2)
	for _, ev := range eventsA {
		assert.Equal(t, ta.ID, ev.TuneID)
	}
	for _, ev := range eventsB {
		assert.Equal(t, tb.ID, ev.TuneID)
	}
	assert.Equal(t, "a b c", eventsA[1].ABC)
	assert.Equal(t, "A B C", eventsB[1].ABC)
}
