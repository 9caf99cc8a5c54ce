//go:build windows

package mcp

import (
	"os"
)

// openPolicyFile opens the policy file. Windows has no O_NOFOLLOW, so a
// reparse point is detected with Lstat before opening.
func openPolicyFile(path string) (*os.File, error) {
	info, err := os.Lstat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrPolicyNotFound
		}
		return nil, err
	}
	if info.Mode()&os.ModeSymlink != 0 {
		return nil, ErrPolicySymlink
	}
	return os.Open(path)
}

// checkFileOwnership is a no-op; Windows ownership is expressed through ACLs.
func checkFileOwnership(_ os.FileInfo) error {
	return nil
}

// checkFilePermissions is a no-op; Go reports only the read-only bit on Windows.
func checkFilePermissions(_ os.FileInfo) error {
	return nil
}
