package server

import (
	"time"

	"github.com/sasha-s/go-deadlock"

	"pathview-server/internal/fsops"
)

type usageEntry struct {
	stats fsops.DiskStats
	at    time.Time
}

// usageCache caches filesystem usage per path so listings do not statfs on
// every request. Entries expire after ttl.
type usageCache struct {
	mu  deadlock.Mutex
	ttl time.Duration
	now func() time.Time
	m   map[string]usageEntry

	// stat is fsops.DiskUsage outside of tests.
	stat func(string) (fsops.DiskStats, error)
}

func newUsageCache(ttl time.Duration) *usageCache {
	if ttl <= 0 {
		ttl = 3 * time.Second
	}
	return &usageCache{
		ttl:  ttl,
		now:  time.Now,
		m:    make(map[string]usageEntry),
		stat: fsops.DiskUsage,
	}
}

func (c *usageCache) getFresh(p string) (fsops.DiskStats, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.m[p]
	if !ok {
		return fsops.DiskStats{}, false
	}
	if c.now().Sub(e.at) > c.ttl {
		delete(c.m, p)
		return fsops.DiskStats{}, false
	}
	return e.stats, true
}

func (c *usageCache) set(p string, st fsops.DiskStats) {
	c.mu.Lock()
	c.m[p] = usageEntry{stats: st, at: c.now()}
	c.mu.Unlock()
}

func (c *usageCache) invalidate(p string) {
	c.mu.Lock()
	delete(c.m, p)
	c.mu.Unlock()
}

// get returns cached usage for p, or asks the filesystem if missing or stale.
func (c *usageCache) get(p string) (fsops.DiskStats, error) {
	if st, ok := c.getFresh(p); ok {
		return st, nil
	}
	st, err := c.stat(p)
	if err != nil {
		return fsops.DiskStats{}, err
	}
	c.set(p, st)
	return st, nil
}
