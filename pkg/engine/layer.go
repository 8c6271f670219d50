package engine

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
)

// ErrNotInitialized is returned by every read before the first build.
var ErrNotInitialized = errors.New("data layer not initialized")

// Layer owns the published snapshot. Reads never block on a build: a
// refresh builds the next snapshot off to the side and swaps it in.
type Layer struct {
	engine *Engine

	mu      sync.Mutex // serializes builds
	baseDir string
	current atomic.Pointer[Snapshot]

	hooksMu sync.RWMutex
	hooks   []func(*Snapshot)
}

// NewLayer creates an uninitialized layer.
func NewLayer(e *Engine) *Layer {
	return &Layer{engine: e}
}

// OnPublish registers fn to run after each snapshot is published.
func (l *Layer) OnPublish(fn func(*Snapshot)) {
	l.hooksMu.Lock()
	defer l.hooksMu.Unlock()
	l.hooks = append(l.hooks, fn)
}

// Initialize builds the first snapshot from baseDir. Once a snapshot is
// published, further calls do nothing, even with a different baseDir; use
// Refresh to rebuild.
func (l *Layer) Initialize(ctx context.Context, baseDir string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.current.Load() != nil {
		slog.Debug("data layer already initialized", "base_dir", l.baseDir)
		return nil
	}

	snap, err := l.engine.Build(ctx, baseDir)
	if err != nil {
		return err
	}
	l.baseDir = baseDir
	l.publish(snap)
	return nil
}

// Refresh rebuilds from the initialized base directory and publishes the
// result. On failure the previous snapshot stays published.
func (l *Layer) Refresh(ctx context.Context) (*Snapshot, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.current.Load() == nil {
		return nil, ErrNotInitialized
	}

	snap, err := l.engine.Build(ctx, l.baseDir)
	if err != nil {
		return nil, err
	}
	l.publish(snap)
	return snap, nil
}

// Current returns the published snapshot.
func (l *Layer) Current() (*Snapshot, error) {
	snap := l.current.Load()
	if snap == nil {
		return nil, ErrNotInitialized
	}
	return snap, nil
}

// Initialized reports whether a snapshot has been published.
func (l *Layer) Initialized() bool {
	return l.current.Load() != nil
}

func (l *Layer) publish(snap *Snapshot) {
	l.current.Store(snap)

	l.hooksMu.RLock()
	hooks := make([]func(*Snapshot), len(l.hooks))
	copy(hooks, l.hooks)
	l.hooksMu.RUnlock()

	for _, fn := range hooks {
		fn(snap)
	}
}
