//go:build !windows

package audit

import (
	"fmt"

	"golang.org/x/sys/unix"
)

func checkDiskSpace(dir string) error {
	var stat unix.Statfs_t
	if err := unix.Statfs(dir, &stat); err != nil {
		// unknown free space does not block logging
		return nil
	}
	available := uint64(stat.Bavail) * uint64(stat.Bsize)
	if available < MinDiskSpace {
		return fmt.Errorf("%w: %d bytes available, need %d", ErrInsufficientSpace, available, MinDiskSpace)
	}
	return nil
}
