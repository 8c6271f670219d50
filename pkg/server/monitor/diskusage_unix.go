//go:build !windows

package monitor

import (
	"os"
	"syscall"
)

// allocatedSize returns the bytes a file occupies on disk, which is less
// than its logical size for sparse badger value logs.
func allocatedSize(info os.FileInfo) int64 {
	if stat, ok := info.Sys().(*syscall.Stat_t); ok {
		return stat.Blocks * 512
	}
	return info.Size()
}
