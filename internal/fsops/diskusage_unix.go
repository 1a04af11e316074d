//go:build !windows

package fsops

import "syscall"

func statDisk(path string) (DiskStats, error) {
	var st syscall.Statfs_t
	if err := syscall.Statfs(path, &st); err != nil {
		return DiskStats{}, err
	}
	bs := uint64(st.Bsize)
	return DiskStats{Total: uint64(st.Blocks) * bs, Free: uint64(st.Bavail) * bs}, nil
}
