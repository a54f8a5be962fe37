// ABOUTME: Drives one generation request to completion against the worker
// ABOUTME: Accumulates raw output, rewrites the tune-number placeholder, publishes progress events

package generation

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/machinefolk/composer-gateway/internal/channel"
	"github.com/machinefolk/composer-gateway/internal/registry"
	"github.com/machinefolk/composer-gateway/internal/store"
	"github.com/machinefolk/composer-gateway/internal/tune"
)

var (
	generationsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "composer",
		Subsystem: "generation",
		Name:      "tunes_total",
		Help:      "Total number of generation runs driven to completion",
	})
	generationFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "composer",
		Subsystem: "generation",
		Name:      "worker_failures_total",
		Help:      "Generation runs finalized with partial output after a worker failure",
	})
	generationDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "composer",
		Subsystem: "generation",
		Name:      "duration_seconds",
		Help:      "Wall time of one generation run",
		Buckets:   prometheus.DefBuckets,
	})
)

func init() {
	prometheus.MustRegister(generationsTotal, generationFailures, generationDuration)
}

// Service translates a worker's raw output stream into persisted tune state
// and token channel events. Concurrent Generate calls for different tunes
// proceed independently; the caller must not double-dispatch one tune ID.
type Service struct {
	store    store.Store
	channel  *channel.TokenChannel
	registry *registry.Registry
	streamer Streamer
	logger   *slog.Logger
}

// NewService creates a generation service.
func NewService(s store.Store, c *channel.TokenChannel, r *registry.Registry, streamer Streamer, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:    s,
		channel:  c,
		registry: r,
		streamer: streamer,
		logger:   logger.With("component", "generation"),
	}
}

// Generate drives the given not-yet-started tune to completion. It marks the
// record started, streams worker output, publishing a new_abc event with the
// full accumulated text after each increment, and finally marks the record
// finished and publishes a complete event.
//
// A worker failure is not propagated: the tune is finalized with whatever
// partial output accumulated, since dispatch is fire-and-forget from the
// client's perspective. The returned error covers precondition and
// persistence failures only.
func (s *Service) Generate(ctx context.Context, id int64) error {
	t, err := s.store.GetTune(ctx, id)
	if err != nil {
		return fmt.Errorf("loading tune %d: %w", id, err)
	}
	if t.RNNStarted != nil {
		return fmt.Errorf("tune %d already started", id)
	}

	model, ok := s.registry.Lookup(t.ModelName)
	if !ok {
		return fmt.Errorf("tune %d names unknown model %q", id, t.ModelName)
	}

	started := time.Now().UTC()
	if err := s.store.MarkStarted(ctx, id, started); err != nil {
		return fmt.Errorf("marking tune %d started: %w", id, err)
	}

	group := tune.GroupName(id)
	logger := s.logger.With("tune_id", id, "model", t.ModelName)
	logger.Info("generation started", "prime_tokens", t.PrimeTokens)

	var raw strings.Builder
	var publishErr error
	emit := func(increment string) error {
		raw.WriteString(increment)
		rendered := substituteTuneNumber(raw.String(), id)
		if err := s.store.UpdateABC(ctx, id, rendered); err != nil {
			return fmt.Errorf("persisting abc: %w", err)
		}
		s.channel.Publish(group, &tune.Event{
			Kind:   tune.EventNewABC,
			TuneID: id,
			ABC:    rendered,
		})
		return nil
	}

	job := Job{
		ModelName:   t.ModelName,
		ModelPath:   model.Path,
		Temp:        t.Temp,
		Seed:        t.Seed,
		PrimeTokens: t.PrimeTokens,
	}
	streamErr := s.streamer.Stream(ctx, job, emit)
	if streamErr != nil {
		generationFailures.Inc()
		logger.Warn("worker failed, finalizing with partial output",
			"error", streamErr,
			"bytes", raw.Len())
	}

	rendered := substituteTuneNumber(raw.String(), id)
	finished := time.Now().UTC()
	if err := s.store.MarkFinished(ctx, id, rendered, finished); err != nil {
		publishErr = fmt.Errorf("marking tune %d finished: %w", id, err)
	}
	s.channel.Publish(group, &tune.Event{
		Kind:   tune.EventComplete,
		TuneID: id,
		ABC:    rendered,
	})

	generationsTotal.Inc()
	generationDuration.Observe(finished.Sub(started).Seconds())
	logger.Info("generation finished",
		"duration", finished.Sub(started),
		"bytes", len(rendered),
		"worker_failed", streamErr != nil)

	return publishErr
}

// substituteTuneNumber rewrites the worker's tune-numbering placeholder to
// the real assigned identifier, so every consumer sees a consistent ID. The
// worker always numbers its output 1.
func substituteTuneNumber(raw string, id int64) string {
	out := strings.ReplaceAll(raw, "X:1", fmt.Sprintf("X:%d", id))
	return strings.ReplaceAll(out, "№1", fmt.Sprintf("№%d", id))
}
