package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	badgerdb "github.com/dgraph-io/badger/v4"
	"github.com/robfig/cron/v3"

	"github.com/keshavaimill/al-hatab-insights-main/pkg/config"
	"github.com/keshavaimill/al-hatab-insights-main/pkg/engine"
	"github.com/keshavaimill/al-hatab-insights-main/pkg/health"
	"github.com/keshavaimill/al-hatab-insights-main/pkg/insight"
	"github.com/keshavaimill/al-hatab-insights-main/pkg/report"
	"github.com/keshavaimill/al-hatab-insights-main/pkg/server/monitor"
	"github.com/keshavaimill/al-hatab-insights-main/pkg/storage"
	"github.com/keshavaimill/al-hatab-insights-main/pkg/storage/badger"
)

// Refresher builds snapshots on demand and records the outcome.
type Refresher struct {
	layer      *engine.Layer
	baseDir    string
	monitor    *monitor.RefreshMonitor
	timeout    time.Duration
	maxRetries int
	baseDelay  time.Duration
}

// NewRefresher creates a refresher for the layer. The first run initializes
// the layer from baseDir; later runs refresh it.
func NewRefresher(layer *engine.Layer, baseDir string, mon *monitor.RefreshMonitor, timeout time.Duration) *Refresher {
	return &Refresher{
		layer:      layer,
		baseDir:    baseDir,
		monitor:    mon,
		timeout:    timeout,
		maxRetries: config.RefreshMaxRetries,
		baseDelay:  config.RefreshRetryBaseDelay,
	}
}

// RunOnce builds and publishes one snapshot.
func (r *Refresher) RunOnce(ctx context.Context) (*engine.Snapshot, error) {
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	start := time.Now()
	snap, err := r.build(ctx)
	if err != nil {
		r.monitor.RecordFailure(err)
		return nil, err
	}

	r.monitor.RecordSuccess(snap.ID)
	slog.Info("snapshot published",
		"snapshot", snap.ID,
		"rows", snap.Len(),
		"warnings", len(snap.Warnings),
		"duration", time.Since(start).Round(time.Millisecond))
	return snap, nil
}

func (r *Refresher) build(ctx context.Context) (*engine.Snapshot, error) {
	if !r.layer.Initialized() {
		if err := r.layer.Initialize(ctx, r.baseDir); err != nil {
			return nil, err
		}
		return r.layer.Current()
	}
	return r.layer.Refresh(ctx)
}

// RunWithRetry retries a failed build with exponential backoff. It gives
// up early when ctx ends.
func (r *Refresher) RunWithRetry(ctx context.Context) {
	for attempt := 0; attempt <= r.maxRetries; attempt++ {
		if attempt > 0 {
			delay := r.baseDelay * time.Duration(1<<(attempt-1))
			slog.Info("retrying refresh", "in", delay, "attempt", attempt+1, "of", r.maxRetries+1)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return
			}
		}

		_, err := r.RunOnce(ctx)
		if err == nil {
			return
		}
		slog.Error("refresh failed", "attempt", attempt+1, "error", err)

		if status := r.monitor.Status(); status.ConsecutiveErrors > monitor.MaxConsecutiveFailures {
			slog.Error("refresh keeps failing", "consecutive_errors", status.ConsecutiveErrors)
		}
	}
	slog.Warn("refresh gave up, will retry on next schedule", "attempts", r.maxRetries+1)
}

// Scheduler runs the periodic jobs: refresh, retention and badger GC.
type Scheduler struct {
	cron *cron.Cron
	ctx  context.Context
}

// NewScheduler creates an idle scheduler. Jobs stop retrying once ctx ends.
func NewScheduler(ctx context.Context) *Scheduler {
	return &Scheduler{
		cron: cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		ctx:  ctx,
	}
}

// ScheduleRefresh runs r on the given cron spec. An empty spec schedules
// nothing.
func (s *Scheduler) ScheduleRefresh(spec string, r *Refresher) error {
	if spec == "" {
		return nil
	}
	if _, err := s.cron.AddFunc(spec, func() { r.RunWithRetry(s.ctx) }); err != nil {
		return fmt.Errorf("invalid refresh schedule %q: %w", spec, err)
	}
	slog.Info("refresh scheduled", "schedule", spec)
	return nil
}

// ScheduleRetention drops snapshots older than retention from every sink.
// A zero retention keeps everything.
func (s *Scheduler) ScheduleRetention(sinks []storage.Storage, retention time.Duration) error {
	if retention <= 0 || len(sinks) == 0 {
		return nil
	}
	spec := fmt.Sprintf("@every %s", config.RetentionInterval)
	_, err := s.cron.AddFunc(spec, func() { applyRetention(s.ctx, sinks, retention) })
	return err
}

// ScheduleBadgerGC reclaims value log space of the badger sink.
func (s *Scheduler) ScheduleBadgerGC(store *badger.Storage) error {
	if store == nil {
		return nil
	}
	spec := fmt.Sprintf("@every %s", config.BadgerGCInterval)
	_, err := s.cron.AddFunc(spec, func() { runBadgerGC(store) })
	return err
}

// Start runs the scheduler in its own goroutine.
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop prevents new runs and returns a context done once running jobs
// finish.
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}

// Entries returns the number of scheduled jobs.
func (s *Scheduler) Entries() int {
	return len(s.cron.Entries())
}

func applyRetention(ctx context.Context, sinks []storage.Storage, retention time.Duration) {
	cutoff := time.Now().Add(-retention)
	for _, sink := range sinks {
		sctx, cancel := context.WithTimeout(ctx, config.SinkTimeout)
		err := sink.Delete(sctx, cutoff)
		cancel()
		if err != nil {
			slog.Error("retention failed", "sink", sinkName(sink), "error", err)
			continue
		}
		slog.Debug("retention applied", "sink", sinkName(sink), "cutoff", cutoff)
	}
}

func runBadgerGC(store *badger.Storage) {
	start := time.Now()
	err := store.RunGC(config.BadgerGCRatio)
	switch {
	case errors.Is(err, badgerdb.ErrNoRewrite):
		slog.Debug("badger GC found nothing to reclaim", "duration", time.Since(start).Round(time.Millisecond))
	case err != nil:
		slog.Warn("badger GC failed", "error", err)
	default:
		slog.Info("badger GC reclaimed space", "duration", time.Since(start).Round(time.Millisecond))
	}
}

// RecordOf converts a snapshot into a storage record.
func RecordOf(snap *engine.Snapshot) storage.Record {
	return storage.Record{
		ID:      snap.ID,
		BuiltAt: snap.BuiltAt,
		Rows:    snap.Unified().Rows,
		Reports: snap.QualityReports(),
	}
}

// PersistTo returns a publish hook that saves every snapshot to the sinks.
// A failing sink is logged; the snapshot stays published.
func PersistTo(sinks ...storage.Storage) func(*engine.Snapshot) {
	return func(snap *engine.Snapshot) {
		rec := RecordOf(snap)
		for _, sink := range sinks {
			ctx, cancel := context.WithTimeout(context.Background(), config.SinkTimeout)
			start := time.Now()
			err := sink.Save(ctx, rec)
			cancel()
			if err != nil {
				slog.Error("failed to persist snapshot", "sink", sinkName(sink), "snapshot", snap.ID, "error", err)
				continue
			}
			slog.Debug("snapshot persisted",
				"sink", sinkName(sink),
				"snapshot", snap.ID,
				"rows", len(rec.Rows),
				"duration", time.Since(start).Round(time.Millisecond))
		}
	}
}

// SnapshotUpdate is the websocket message sent on every publish.
type SnapshotUpdate struct {
	Type       string          `json:"type"`
	SnapshotID string          `json:"snapshot_id"`
	BuiltAt    time.Time       `json:"built_at"`
	Rows       int             `json:"rows"`
	Global     insight.Global  `json:"global_kpis"`
	NodeHealth []health.Record `json:"node_health"`
}

// BroadcastTo returns a publish hook that pushes the rounded global KPIs
// and node health to websocket clients.
func BroadcastTo(hub *Hub) func(*engine.Snapshot) {
	return func(snap *engine.Snapshot) {
		global, _ := snap.GlobalKPIs()
		update := SnapshotUpdate{
			Type:       "snapshot",
			SnapshotID: snap.ID,
			BuiltAt:    snap.BuiltAt,
			Rows:       snap.Len(),
			Global:     report.GlobalKPIs(global),
			NodeHealth: report.NodeHealth(snap.NodeHealth()),
		}
		if err := hub.Broadcast(update); err != nil {
			slog.Error("failed to broadcast snapshot", "snapshot", snap.ID, "error", err)
		}
	}
}
