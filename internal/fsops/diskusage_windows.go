//go:build windows

package fsops

import (
	"golang.org/x/sys/windows"
)

func statDisk(path string) (DiskStats, error) {
	p, err := windows.UTF16PtrFromString(path)
	if err != nil {
		return DiskStats{}, err
	}

	var avail, total, totalFree uint64
	if err := windows.GetDiskFreeSpaceEx(p, &avail, &total, &totalFree); err != nil {
		return DiskStats{}, err
	}
	return DiskStats{Total: total, Free: avail}, nil
}
