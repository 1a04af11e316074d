package fsops

// DiskStats describes the filesystem holding the served root.
type DiskStats struct {
	Total uint64 `json:"total"`
	Free  uint64 `json:"free"`
}

func (d DiskStats) Used() uint64 {
	if d.Free > d.Total {
		return 0
	}
	return d.Total - d.Free
}

// DiskUsage returns total and free bytes (free as available to this user) for
// the filesystem containing path.
func DiskUsage(path string) (DiskStats, error) {
	return statDisk(path)
}
