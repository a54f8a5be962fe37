// ABOUTME: Gateway orchestrator that wires store, token channel, generation, and sessions
// ABOUTME: Manages the HTTP server and component lifecycle from startup through graceful shutdown

package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/machinefolk/composer-gateway/internal/abc"
	"github.com/machinefolk/composer-gateway/internal/channel"
	"github.com/machinefolk/composer-gateway/internal/config"
	"github.com/machinefolk/composer-gateway/internal/generation"
	"github.com/machinefolk/composer-gateway/internal/registry"
	"github.com/machinefolk/composer-gateway/internal/session"
	"github.com/machinefolk/composer-gateway/internal/store"
)

// Gateway orchestrates the composer-gateway server components. Every
// collaborator is constructed here and passed down explicitly; nothing is a
// process-global.
type Gateway struct {
	config     *config.Config
	store      store.Store
	channel    *channel.TokenChannel
	registry   *registry.Registry
	generation *generation.Service
	hub        *session.Hub
	httpServer *http.Server
	logger     *slog.Logger
}

// initStore creates a store based on config.
func initStore(cfg *config.Config) (store.Store, error) {
	s, err := store.NewSQLiteStore(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("initializing store: %w", err)
	}
	return s, nil
}

// initRegistry builds the model catalogue from config: an explicit catalog
// wins, otherwise the checkpoint directory is scanned.
func initRegistry(cfg *config.Config) (*registry.Registry, error) {
	if len(cfg.Models.Catalog) > 0 {
		models := make([]registry.Model, 0, len(cfg.Models.Catalog))
		for _, m := range cfg.Models.Catalog {
			models = append(models, registry.Model{Name: m.Name, Path: m.Path})
		}
		return registry.New(models)
	}
	return registry.LoadDir(cfg.Models.Dir)
}

// New creates a Gateway instance with the given configuration.
func New(cfg *config.Config, logger *slog.Logger) (*Gateway, error) {
	s, err := initStore(cfg)
	if err != nil {
		return nil, err
	}

	reg, err := initRegistry(cfg)
	if err != nil {
		return nil, fmt.Errorf("loading model catalogue: %w", err)
	}
	logger.Info("model catalogue loaded", "models", reg.Names())

	tokenChannel := channel.New(logger)

	streamer := &generation.SubprocessStreamer{
		Bin:       cfg.Worker.Bin,
		ExtraArgs: cfg.Worker.ExtraArgs,
		Logger:    logger.With("component", "worker"),
	}
	genService := generation.NewService(s, tokenChannel, reg, streamer, logger)

	hub := session.NewHub(session.Deps{
		Store:     s,
		Channel:   tokenChannel,
		Generator: genService,
		Catalog:   reg,
		Notation:  abc.Valid,
		Logger:    logger,
	})

	gw := &Gateway{
		config:     cfg,
		store:      s,
		channel:    tokenChannel,
		registry:   reg,
		generation: genService,
		hub:        hub,
		logger:     logger.With("component", "gateway"),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/health", gw.handleHealth)
	mux.HandleFunc("/health/ready", gw.handleReady)
	mux.HandleFunc("/ws", hub.ServeWS)

	if cfg.Metrics.Enabled {
		path := cfg.Metrics.Path
		if path == "" {
			path = "/metrics"
		}
		mux.Handle(path, promhttp.Handler())
		logger.Info("metrics endpoint enabled", "path", path)
	}

	gw.httpServer = &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return gw, nil
}

// Run starts the HTTP server and blocks until the context is canceled.
// Returns nil on graceful shutdown, or an error if the server fails.
func (g *Gateway) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", g.config.Server.HTTPAddr)
	if err != nil {
		return fmt.Errorf("listening on HTTP address: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		g.logger.Info("HTTP server listening", "addr", ln.Addr().String())
		if err := g.httpServer.Serve(ln); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("HTTP server: %w", err)
		}
	}()

	var serverErr error
	select {
	case <-ctx.Done():
		g.logger.Info("context canceled, initiating shutdown")
	case serverErr = <-errCh:
		g.logger.Error("server error", "error", serverErr)
	}

	shutdownErr := g.gracefulShutdown()
	if serverErr != nil {
		return serverErr
	}
	return shutdownErr
}

// gracefulShutdown performs shutdown with a fresh context and timeout.
// Uses context.Background() intentionally since the run context is already
// canceled.
func (g *Gateway) gracefulShutdown() error {
	grace := g.config.Worker.ShutdownGrace
	if grace == 0 {
		grace = 5 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), grace)
	defer cancel()
	return g.Shutdown(ctx)
}

// Shutdown gracefully stops the gateway: HTTP server first so no new
// sessions arrive, then sessions, channel, and finally the store.
func (g *Gateway) Shutdown(ctx context.Context) error {
	g.logger.Info("shutting down gateway")

	var errs []error
	if err := g.httpServer.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("HTTP shutdown: %w", err))
	}

	g.hub.Close()
	g.channel.Close()

	if err := g.store.Close(); err != nil {
		errs = append(errs, fmt.Errorf("store close: %w", err))
	}

	if len(errs) > 0 {
		return fmt.Errorf("shutdown errors: %v", errs)
	}
	return nil
}

// handleHealth returns 200 OK if the server is alive.
func (g *Gateway) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// handleReady reports readiness along with the open session count.
func (g *Gateway) handleReady(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = fmt.Fprintf(w, "ready (%d sessions)", g.hub.SessionCount())
}
