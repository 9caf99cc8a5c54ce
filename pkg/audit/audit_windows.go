//go:build windows

package audit

import (
	"fmt"

	"golang.org/x/sys/windows"
)

func checkDiskSpace(dir string) error {
	p, err := windows.UTF16PtrFromString(dir)
	if err != nil {
		return nil
	}
	var available uint64
	if err := windows.GetDiskFreeSpaceEx(p, &available, nil, nil); err != nil {
		return nil
	}
	if available < MinDiskSpace {
		return fmt.Errorf("%w: %d bytes available, need %d", ErrInsufficientSpace, available, MinDiskSpace)
	}
	return nil
}
