package server

import (
	"maps"
	"time"

	"github.com/sasha-s/go-deadlock"
)

// StatsPoint is an aggregated per-minute counter.
type StatsPoint struct {
	MinuteUnix int64  `json:"minute_unix"`
	Requests   uint64 `json:"requests"`
	Errors     uint64 `json:"errors"`
	BytesIn    uint64 `json:"bytes_in"`
	BytesOut   uint64 `json:"bytes_out"`
}

// StatsSnapshot is a JSON-friendly snapshot of collected stats.
type StatsSnapshot struct {
	StartedUnix int64             `json:"started_unix"`
	NowUnix     int64             `json:"now_unix"`
	UptimeSec   int64             `json:"uptime_sec"`
	TotalReq    uint64            `json:"total_requests"`
	TotalErr    uint64            `json:"total_errors"`
	BytesIn     uint64            `json:"bytes_in"`
	BytesOut    uint64            `json:"bytes_out"`
	AvgMs       uint64            `json:"avg_ms"`
	ByOp        map[string]uint64 `json:"by_op"`
	Recent      []StatsPoint      `json:"recent"`
}

// statsHub keeps lightweight request counters, totals plus a ring of the last
// 60 minutes.
type statsHub struct {
	mu deadlock.Mutex

	started time.Time
	now     func() time.Time

	totalReq   uint64
	totalErr   uint64
	bytesIn    uint64
	bytesOut   uint64
	totalDurMs uint64

	byOp map[string]uint64

	curMin  int64
	idx     int
	minUnix [60]int64
	req     [60]uint64
	err     [60]uint64
	in      [60]uint64
	out     [60]uint64
}

func newStatsHub() *statsHub {
	h := &statsHub{now: time.Now}
	h.resetLocked()
	return h
}

func (h *statsHub) reset() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.resetLocked()
}

func (h *statsHub) resetLocked() {
	now := h.now()
	m := now.Unix() / 60

	h.started = now
	h.totalReq = 0
	h.totalErr = 0
	h.bytesIn = 0
	h.bytesOut = 0
	h.totalDurMs = 0
	h.byOp = make(map[string]uint64)

	h.curMin = m
	h.idx = 0
	h.minUnix = [60]int64{}
	h.req = [60]uint64{}
	h.err = [60]uint64{}
	h.in = [60]uint64{}
	h.out = [60]uint64{}
	h.minUnix[0] = m * 60
}

func (h *statsHub) advanceLocked(targetMin int64) {
	if targetMin <= h.curMin {
		return
	}
	// Nothing survives a gap longer than the ring.
	if targetMin-h.curMin > int64(len(h.req)) {
		h.curMin = targetMin - int64(len(h.req))
	}
	for h.curMin < targetMin {
		h.curMin++
		h.idx = (h.idx + 1) % len(h.req)
		h.minUnix[h.idx] = h.curMin * 60
		h.req[h.idx] = 0
		h.err[h.idx] = 0
		h.in[h.idx] = 0
		h.out[h.idx] = 0
	}
}

func (h *statsHub) add(e LogEntry) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.advanceLocked(h.now().Unix() / 60)

	h.totalReq++
	h.byOp[e.Op]++
	h.req[h.idx]++

	if e.Failed() {
		h.totalErr++
		h.err[h.idx]++
	}
	if e.ReqBytes > 0 {
		h.bytesIn += uint64(e.ReqBytes)
		h.in[h.idx] += uint64(e.ReqBytes)
	}
	if e.RespBytes > 0 {
		h.bytesOut += uint64(e.RespBytes)
		h.out[h.idx] += uint64(e.RespBytes)
	}
	if e.DurationMs > 0 {
		h.totalDurMs += uint64(e.DurationMs)
	}
}

func (h *statsHub) snapshot() StatsSnapshot {
	h.mu.Lock()
	defer h.mu.Unlock()

	now := h.now()
	h.advanceLocked(now.Unix() / 60)

	// Oldest -> newest.
	n := len(h.req)
	recent := make([]StatsPoint, 0, n)
	for i := 0; i < n; i++ {
		j := (h.idx + 1 + i) % n
		if h.minUnix[j] == 0 {
			continue
		}
		recent = append(recent, StatsPoint{
			MinuteUnix: h.minUnix[j],
			Requests:   h.req[j],
			Errors:     h.err[j],
			BytesIn:    h.in[j],
			BytesOut:   h.out[j],
		})
	}

	avg := uint64(0)
	if h.totalReq > 0 {
		avg = h.totalDurMs / h.totalReq
	}

	return StatsSnapshot{
		StartedUnix: h.started.Unix(),
		NowUnix:     now.Unix(),
		UptimeSec:   int64(now.Sub(h.started).Seconds()),
		TotalReq:    h.totalReq,
		TotalErr:    h.totalErr,
		BytesIn:     h.bytesIn,
		BytesOut:    h.bytesOut,
		AvgMs:       avg,
		ByOp:        maps.Clone(h.byOp),
		Recent:      recent,
	}
}
