//go:build windows

package dlmlib

import "golang.org/x/sys/windows"

// checkDiskSpace checks if there's enough disk space available at the
// given path to accommodate a file of the specified size. Returns an
// error if insufficient space is available.
func checkDiskSpace(path string, requiredBytes int64) error {
	if requiredBytes <= 0 {
		return nil
	}

	p, err := windows.UTF16PtrFromString(path)
	if err != nil {
		return nil
	}
	var free, total, totalFree uint64
	if err := windows.GetDiskFreeSpaceEx(p, &free, &total, &totalFree); err != nil {
		// If we can't check disk space, gracefully ignore and don't fail
		return nil
	}

	availableBytes := int64(free)
	if availableBytes < requiredBytes {
		return FormatDiskSpaceError(requiredBytes, availableBytes)
	}

	return nil
}
