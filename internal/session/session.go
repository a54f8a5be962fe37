// ABOUTME: Per-connection state machine bridging one client to the token channel
// ABOUTME: Translates client commands into generation requests and channel events into incremental deltas

package session

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/machinefolk/composer-gateway/internal/channel"
	"github.com/machinefolk/composer-gateway/internal/store"
	"github.com/machinefolk/composer-gateway/internal/tune"
	"github.com/machinefolk/composer-gateway/internal/validate"
)

const eventBufferSize = 64

var (
	activeSessions = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "composer",
		Subsystem: "session",
		Name:      "active",
		Help:      "Currently connected client sessions",
	})
	tokensDelivered = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "composer",
		Subsystem: "session",
		Name:      "tokens_delivered_total",
		Help:      "add_token messages delivered to clients",
	})
	composeRejected = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "composer",
		Subsystem: "session",
		Name:      "compose_rejected_total",
		Help:      "compose commands dropped by admission validation",
	})
)

func init() {
	prometheus.MustRegister(activeSessions, tokensDelivered, composeRejected)
}

// Generator dispatches one generation request. Satisfied by
// *generation.Service.
type Generator interface {
	Generate(ctx context.Context, id int64) error
}

// subscription is the per-tune state a session holds: the channel handle and
// the length of output already delivered to this client. The offset never
// exceeds the tune's accumulated length and never decreases.
type subscription struct {
	subID  string
	cancel context.CancelFunc
	offset int
}

// Session bridges one client connection to the token channel and the
// generation service. All subscription state is owned by the session's run
// goroutine; nothing here is shared.
type Session struct {
	ID string

	conn      Conn
	store     store.Store
	channel   *channel.TokenChannel
	generator Generator
	catalog   validate.Catalog
	notation  validate.NotationFunc
	logger    *slog.Logger

	// dispatchCtx outlives the session: a disconnect must not cancel an
	// in-flight generation.
	dispatchCtx context.Context

	ctx    context.Context
	cancel context.CancelFunc

	events chan *tune.Event
	subs   map[int64]*subscription
}

// newSession wires a session for a freshly accepted connection.
func newSession(conn Conn, deps Deps, dispatchCtx context.Context) *Session {
	ctx, cancel := context.WithCancel(context.Background())
	id := uuid.New().String()
	return &Session{
		ID:          id,
		conn:        conn,
		store:       deps.Store,
		channel:     deps.Channel,
		generator:   deps.Generator,
		catalog:     deps.Catalog,
		notation:    deps.Notation,
		logger:      deps.Logger.With("component", "session", "session_id", id),
		dispatchCtx: dispatchCtx,
		ctx:         ctx,
		cancel:      cancel,
		events:      make(chan *tune.Event, eventBufferSize),
		subs:        make(map[int64]*subscription),
	}
}

// run is the session's main loop. It sends set_session, then waits on
// whichever arrives first: the next inbound client message or the next
// delivered generation event. Returns when the client disconnects or the
// session is closed.
func (s *Session) run() {
	activeSessions.Inc()
	defer activeSessions.Dec()
	defer s.teardown()

	if err := s.conn.WriteJSON(setSessionMsg{Command: "set_session", SessionID: s.ID}); err != nil {
		s.logger.Debug("failed to send set_session", "error", err)
		return
	}

	inbound := make(chan []byte, 1)
	readErr := make(chan error, 1)
	go func() {
		for {
			data, err := s.conn.ReadMessage()
			if err != nil {
				readErr <- err
				return
			}
			select {
			case inbound <- data:
			case <-s.ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-s.ctx.Done():
			return
		case err := <-readErr:
			if !errors.Is(err, context.Canceled) {
				s.logger.Debug("client disconnected", "error", err)
			}
			return
		case data := <-inbound:
			s.handleCommand(data)
		case ev := <-s.events:
			s.handleEvent(ev)
		}
	}
}

// teardown unsubscribes from all groups and discards per-session state.
func (s *Session) teardown() {
	s.cancel()
	for id, sub := range s.subs {
		sub.cancel()
		delete(s.subs, id)
	}
	_ = s.conn.Close()
	s.logger.Debug("session closed")
}

// handleCommand dispatches one inbound client message. Malformed or unknown
// input is ignored; the connection stays open.
func (s *Session) handleCommand(data []byte) {
	var cmd clientCommand
	if err := json.Unmarshal(data, &cmd); err != nil {
		s.logger.Debug("ignoring malformed message", "error", err)
		return
	}

	switch cmd.Command {
	case cmdRegisterForTune:
		s.register(cmd.TuneID)
	case cmdCompose:
		s.compose(cmd.Data)
	default:
		s.logger.Debug("ignoring unknown command", "command", cmd.Command)
	}
}

// register subscribes this session to a tune's group. The starting offset is
// the tune's current accumulated length, so the next event produces the first
// delta; registration itself pushes nothing. Re-registering is a no-op.
func (s *Session) register(tuneID int64) {
	if _, ok := s.subs[tuneID]; ok {
		return
	}

	t, err := s.store.GetTune(s.ctx, tuneID)
	if err != nil {
		s.logger.Debug("ignoring register for unknown tune", "tune_id", tuneID, "error", err)
		return
	}

	subCtx, cancel := context.WithCancel(s.ctx)
	ch, subID := s.channel.Subscribe(subCtx, tune.GroupName(tuneID))
	go s.forward(ch)

	s.subs[tuneID] = &subscription{
		subID:  subID,
		cancel: cancel,
		offset: len(t.ABC),
	}
	s.logger.Debug("registered for tune", "tune_id", tuneID, "offset", len(t.ABC))
}

// forward pumps one subscription's events into the session's merged event
// channel, preserving per-group publish order.
func (s *Session) forward(ch <-chan *tune.Event) {
	for ev := range ch {
		select {
		case s.events <- ev:
		case <-s.ctx.Done():
			return
		}
	}
}

// compose validates a generation request, persists it, acknowledges with
// add_tune, registers for its group, and dispatches generation
// asynchronously. An invalid request is dropped without side effects.
func (s *Session) compose(data json.RawMessage) {
	var d validate.Data
	if err := json.Unmarshal(data, &d); err != nil {
		s.logger.Debug("ignoring malformed compose data", "error", err)
		return
	}

	req, err := validate.Validate(d, s.catalog, s.notation)
	if err != nil {
		composeRejected.Inc()
		s.logger.Debug("compose rejected", "error", err)
		return
	}

	t := &tune.Tune{
		ModelName:   req.ModelName,
		Temp:        req.Temp,
		Seed:        req.Seed,
		Meter:       req.Meter,
		Key:         req.Key,
		PrimeTokens: req.PrimeTokens,
	}
	if err := s.store.CreateTune(s.ctx, t); err != nil {
		s.logger.Error("failed to create tune", "error", err)
		return
	}

	if err := s.conn.WriteJSON(addTuneMsg{
		Command: "add_tune",
		Tune: tuneInfo{
			ID:          t.ID,
			Model:       t.ModelName,
			Temp:        t.Temp,
			Seed:        t.Seed,
			PrimeTokens: t.PrimeTokens,
			Requested:   t.Requested,
		},
	}); err != nil {
		s.logger.Debug("failed to send add_tune", "error", err)
	}

	s.register(t.ID)

	id := t.ID
	go func() {
		if err := s.generator.Generate(s.dispatchCtx, id); err != nil {
			s.logger.Error("generation dispatch failed", "tune_id", id, "error", err)
		}
	}()

	s.logger.Info("tune composed", "tune_id", t.ID, "model", t.ModelName)
}

// handleEvent computes the incremental delta for a subscribed tune and, if
// non-empty, pushes add_token and advances the offset. Repeated events with
// unchanged text produce nothing. A complete event also releases the
// subscription after its final delta.
func (s *Session) handleEvent(ev *tune.Event) {
	sub, ok := s.subs[ev.TuneID]
	if !ok {
		return
	}

	if len(ev.ABC) > sub.offset {
		delta := ev.ABC[sub.offset:]
		if err := s.conn.WriteJSON(addTokenMsg{
			Command: "add_token",
			Token:   delta,
			TuneID:  ev.TuneID,
		}); err != nil {
			s.logger.Debug("failed to send add_token", "tune_id", ev.TuneID, "error", err)
			return
		}
		sub.offset = len(ev.ABC)
		tokensDelivered.Inc()
	}

	if ev.Kind == tune.EventComplete {
		sub.cancel()
		delete(s.subs, ev.TuneID)
		s.logger.Debug("tune complete, released subscription", "tune_id", ev.TuneID)
	}
}

// Close terminates the session from outside its run loop.
func (s *Session) Close() {
	s.cancel()
}
