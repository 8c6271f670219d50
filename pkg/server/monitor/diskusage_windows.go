//go:build windows

package monitor

import "os"

func allocatedSize(info os.FileInfo) int64 {
	return info.Size()
}
