package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/gorilla/mux"
	"github.com/robfig/cron/v3"

	"github.com/keshavaimill/al-hatab-insights-main/pkg/config"
	"github.com/keshavaimill/al-hatab-insights-main/pkg/engine"
	"github.com/keshavaimill/al-hatab-insights-main/pkg/export"
	"github.com/keshavaimill/al-hatab-insights-main/pkg/server/monitor"
	"github.com/keshavaimill/al-hatab-insights-main/pkg/storage"
	"github.com/keshavaimill/al-hatab-insights-main/pkg/storage/badger"
	"github.com/keshavaimill/al-hatab-insights-main/pkg/storage/memory"
	"github.com/keshavaimill/al-hatab-insights-main/pkg/storage/sqlite"
	"github.com/keshavaimill/al-hatab-insights-main/pkg/telemetry"
)

// Sinks holds the snapshot stores a server writes to.
type Sinks struct {
	Badger *badger.Storage
	SQLite *sqlite.Storage
	Memory *memory.Storage
}

// OpenSinks opens the configured stores. Empty paths skip a store; with
// neither configured, snapshots are kept in memory.
func OpenSinks(cfg config.StorageConfig) (*Sinks, error) {
	s := &Sinks{}

	if cfg.BadgerPath != "" {
		if err := os.MkdirAll(cfg.BadgerPath, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create badger dir: %w", err)
		}
		store, err := badger.New(badger.Config{Path: cfg.BadgerPath, MaxMemoryMB: cfg.MaxMemoryMB})
		if err != nil {
			return nil, err
		}
		s.Badger = store
		slog.Info("badger snapshot store opened", "path", cfg.BadgerPath)
	}

	if cfg.SQLitePath != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.SQLitePath), 0o755); err != nil {
			s.Close()
			return nil, fmt.Errorf("failed to create sqlite dir: %w", err)
		}
		store, err := sqlite.New(sqlite.Config{DSN: cfg.SQLitePath})
		if err != nil {
			s.Close()
			return nil, err
		}
		s.SQLite = store
		slog.Info("sqlite mirror opened", "path", cfg.SQLitePath)
	}

	if s.Badger == nil && s.SQLite == nil {
		s.Memory = memory.New()
		slog.Info("no snapshot store configured, keeping snapshots in memory")
	}
	return s, nil
}

// All lists the open stores.
func (s *Sinks) All() []storage.Storage {
	var out []storage.Storage
	if s.Badger != nil {
		out = append(out, s.Badger)
	}
	if s.SQLite != nil {
		out = append(out, s.SQLite)
	}
	if s.Memory != nil {
		out = append(out, s.Memory)
	}
	return out
}

// Primary is the store snapshot reads are served from.
func (s *Sinks) Primary() storage.Storage {
	all := s.All()
	if len(all) == 0 {
		return nil
	}
	return all[0]
}

// Close closes every store, joining any errors.
func (s *Sinks) Close() error {
	var errs []error
	for _, store := range s.All() {
		if err := store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", sinkName(store), err))
		}
	}
	return errors.Join(errs...)
}

func sinkName(s storage.Storage) string {
	switch s.(type) {
	case *badger.Storage:
		return "badger"
	case *sqlite.Storage:
		return "sqlite"
	case *memory.Storage:
		return "memory"
	}
	return fmt.Sprintf("%T", s)
}

// Server wires the data layer to its outer surfaces: HTTP API, websocket
// hub, scheduler, sinks and metrics.
type Server struct {
	cfg       *config.Config
	layer     *engine.Layer
	metrics   *telemetry.Metrics
	sinks     *Sinks
	hub       *Hub
	refresh   *monitor.RefreshMonitor
	disk      *monitor.DiskMonitor
	refresher *Refresher
	router    *mux.Router
}

// New assembles a server from configuration. Nothing runs until Run.
func New(cfg *config.Config, sinks *Sinks) *Server {
	metrics := telemetry.New()
	eng := engine.New(
		engine.WithPricing(cfg.Pricing),
		engine.WithObserver(metrics),
	)
	layer := engine.NewLayer(eng)

	hub := NewHub()
	hub.OnClientCount(metrics.SetWebsocketClients)

	layer.OnPublish(metrics.ObserveSnapshot)
	layer.OnPublish(PersistTo(sinks.All()...))
	layer.OnPublish(BroadcastTo(hub))

	refresh := monitor.NewRefreshMonitor(staleAfter(cfg.Refresh.Schedule))

	s := &Server{
		cfg:       cfg,
		layer:     layer,
		metrics:   metrics,
		sinks:     sinks,
		hub:       hub,
		refresh:   refresh,
		disk:      monitor.NewDiskMonitor(cfg.Storage.BadgerPath, cfg.Storage.SQLitePath),
		refresher: NewRefresher(layer, cfg.BaseDir, refresh, cfg.Refresh.Timeout),
		router:    mux.NewRouter(),
	}

	api := &API{
		layer:         layer,
		refresher:     s.refresher,
		refresh:       refresh,
		disk:          s.disk,
		sinks:         sinks,
		shelfLifeDays: cfg.Report.ShelfLifeDays,
	}
	SetupRoutes(s.router, api, export.NewHandler(layer, sinks.Primary()), hub, metrics, cfg.Server)
	return s
}

// Layer returns the server's data layer.
func (s *Server) Layer() *engine.Layer {
	return s.layer
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run builds the first snapshot, starts the background jobs and serves
// HTTP until ctx ends. A failed first build is logged; the scheduler keeps
// trying and reads answer 503 meanwhile.
func (s *Server) Run(ctx context.Context) error {
	ctx, stop := context.WithCancel(ctx)
	defer stop()

	if _, err := s.refresher.RunOnce(ctx); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		slog.Error("initial build failed", "base_dir", s.cfg.BaseDir, "error", err)
	}

	hubDone := make(chan struct{})
	go func() {
		defer close(hubDone)
		s.hub.Run(ctx)
	}()

	sched := NewScheduler(ctx)
	if err := sched.ScheduleRefresh(s.cfg.Refresh.Schedule, s.refresher); err != nil {
		return err
	}
	if err := sched.ScheduleRetention(s.sinks.All(), s.cfg.Storage.Retention); err != nil {
		return err
	}
	if err := sched.ScheduleBadgerGC(s.sinks.Badger); err != nil {
		return err
	}
	sched.Start()

	server := &http.Server{
		Addr:         ":" + s.cfg.Server.Port,
		Handler:      s.router,
		ReadTimeout:  config.ServerReadTimeout,
		WriteTimeout: config.ServerWriteTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		slog.Info("server listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	var err error
	select {
	case <-ctx.Done():
		slog.Info("shutdown signal received")
	case err = <-serveErr:
		slog.Error("server failed", "error", err)
	}
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.ServerShutdownPeriod)
	defer cancel()

	if shutdownErr := server.Shutdown(shutdownCtx); shutdownErr != nil {
		slog.Warn("server shutdown", "error", shutdownErr)
	}

	select {
	case <-sched.Stop().Done():
	case <-shutdownCtx.Done():
		slog.Warn("background jobs did not stop in time")
	}

	select {
	case <-hubDone:
	case <-shutdownCtx.Done():
	}
	return err
}

// staleAfter allows three missed runs of the refresh schedule before the
// service reports degraded. Without a schedule a snapshot never goes stale.
func staleAfter(spec string) time.Duration {
	if spec == "" {
		return -1
	}
	sched, err := cron.ParseStandard(spec)
	if err != nil {
		return 0
	}
	first := sched.Next(time.Now())
	return 3 * sched.Next(first).Sub(first)
}
