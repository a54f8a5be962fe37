// ABOUTME: In-memory named-group pub/sub bus for generation progress events
// ABOUTME: Fans each published event out to every current subscriber of the group

package channel

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/machinefolk/composer-gateway/internal/tune"
)

const (
	// subscriberBufferSize is the channel buffer for each subscriber.
	// Events carry full accumulated text, so dropping one on overflow is
	// recoverable: the next event catches the subscriber up.
	subscriberBufferSize = 64
)

var (
	publishedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "composer",
		Subsystem: "channel",
		Name:      "events_published_total",
		Help:      "Total number of events published to the token channel",
	})
	droppedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "composer",
		Subsystem: "channel",
		Name:      "events_dropped_total",
		Help:      "Events dropped because a subscriber buffer was full",
	})
	subscribersGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "composer",
		Subsystem: "channel",
		Name:      "subscribers",
		Help:      "Current number of subscriptions across all groups",
	})
)

func init() {
	prometheus.MustRegister(publishedTotal, droppedTotal, subscribersGauge)
}

// TokenChannel provides in-memory pub/sub for generation events, keyed by
// opaque group names. It is constructed explicitly at process start and
// passed down; tests create independent instances.
type TokenChannel struct {
	mu          sync.RWMutex
	closed      bool
	subscribers map[string]map[string]chan *tune.Event // group -> subID -> ch
	logger      *slog.Logger
}

// New creates a token channel. Pass nil logger for default.
func New(logger *slog.Logger) *TokenChannel {
	if logger == nil {
		logger = slog.Default()
	}
	return &TokenChannel{
		subscribers: make(map[string]map[string]chan *tune.Event),
		logger:      logger.With("component", "channel"),
	}
}

// Subscribe registers a subscriber for events on the given group. Returns a
// channel that receives events and a subscription ID for later
// unsubscription. The subscription is automatically cleaned up when ctx is
// cancelled.
func (c *TokenChannel) Subscribe(ctx context.Context, group string) (<-chan *tune.Event, string) {
	subID := uuid.New().String()
	ch := make(chan *tune.Event, subscriberBufferSize)

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		close(ch)
		return ch, subID
	}
	if _, ok := c.subscribers[group]; !ok {
		c.subscribers[group] = make(map[string]chan *tune.Event)
	}
	c.subscribers[group][subID] = ch
	c.mu.Unlock()
	subscribersGauge.Inc()

	c.logger.Debug("subscriber added", "group", group, "sub_id", subID)

	go func() {
		<-ctx.Done()
		c.Unsubscribe(group, subID)
	}()

	return ch, subID
}

// Publish sends an event to all subscribers of the given group. With no
// subscribers the event is silently dropped. Never blocks: a subscriber whose
// buffer is full misses this event and recovers on the next one, since every
// event carries the full accumulated text.
func (c *TokenChannel) Publish(group string, event *tune.Event) {
	publishedTotal.Inc()

	// Sends stay under the read lock: they never block, and Close holds the
	// write lock while closing subscriber channels.
	c.mu.RLock()
	defer c.mu.RUnlock()

	subs, ok := c.subscribers[group]
	if !ok || len(subs) == 0 {
		return
	}

	for _, ch := range subs {
		select {
		case ch <- event:
		default:
			droppedTotal.Inc()
			c.logger.Warn("dropped event for slow subscriber",
				"group", group,
				"tune_id", event.TuneID)
		}
	}
}

// Unsubscribe removes a subscription and closes its channel. Unsubscribing a
// handle that is not registered is a no-op.
func (c *TokenChannel) Unsubscribe(group, subID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	subs, ok := c.subscribers[group]
	if !ok {
		return
	}

	ch, exists := subs[subID]
	if !exists {
		return
	}

	delete(subs, subID)
	close(ch)
	subscribersGauge.Dec()

	if len(subs) == 0 {
		delete(c.subscribers, group)
	}

	c.logger.Debug("subscriber removed", "group", group, "sub_id", subID)
}

// Close shuts down the channel and closes all subscriber channels. Later
// publishes are dropped and later subscribes return a closed channel.
func (c *TokenChannel) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true

	for group, subs := range c.subscribers {
		for subID, ch := range subs {
			close(ch)
			delete(subs, subID)
			subscribersGauge.Dec()
		}
		delete(c.subscribers, group)
	}

	c.logger.Debug("token channel closed")
}
