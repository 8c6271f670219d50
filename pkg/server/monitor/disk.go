package monitor

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// DiskMonitor reports the disk usage of the snapshot sinks, caching the
// result to avoid walking the tree on every request.
type DiskMonitor struct {
	paths         []string
	cachedUsage   int64
	lastCheck     time.Time
	cacheDuration time.Duration
	mu            sync.Mutex
}

// NewDiskMonitor watches the given files or directories. Empty paths are
// ignored.
func NewDiskMonitor(paths ...string) *DiskMonitor {
	var kept []string
	for _, p := range paths {
		if p != "" {
			kept = append(kept, p)
		}
	}
	return &DiskMonitor{
		paths:         kept,
		cacheDuration: 10 * time.Second,
	}
}

// Paths returns the watched paths.
func (m *DiskMonitor) Paths() []string {
	return append([]string(nil), m.paths...)
}

// GetUsage returns the bytes allocated under the watched paths (cached).
// Paths that do not exist yet count as zero.
func (m *DiskMonitor) GetUsage() (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.lastCheck.IsZero() && time.Since(m.lastCheck) < m.cacheDuration {
		return m.cachedUsage, nil
	}

	var total int64
	for _, p := range m.paths {
		n, err := pathSize(p)
		if err != nil {
			return 0, err
		}
		total += n
	}

	m.cachedUsage = total
	m.lastCheck = time.Now()
	return total, nil
}

func pathSize(root string) (int64, error) {
	var size int64
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root && errors.Is(err, os.ErrNotExist) {
				return filepath.SkipAll
			}
			return err
		}
		if d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		size += allocatedSize(info)
		return nil
	})
	return size, err
}
