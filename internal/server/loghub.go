package server

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/samber/lo"
	"github.com/sasha-s/go-deadlock"
)

// LogEntry is a compact per-request record for the operator endpoints.
type LogEntry struct {
	ID         uint64 `json:"id"`
	TimeUnixMs int64  `json:"time_unix_ms"`
	RemoteIP   string `json:"remote_ip"`
	Method     string `json:"method"`
	Op         string `json:"op"`
	Path       string `json:"path"`
	HTTPStatus int    `json:"http_status"`
	ReqBytes   int64  `json:"req_bytes"`
	RespBytes  int64  `json:"resp_bytes"`
	DurationMs int64  `json:"duration_ms"`
	Info       string `json:"info,omitempty"`
}

// Failed reports whether the request ended with a 4xx/5xx status.
func (e LogEntry) Failed() bool {
	return e.HTTPStatus >= 400
}

func (e LogEntry) jsonLine() []byte {
	b, _ := json.Marshal(e)
	return b
}

func formatLogLine(e LogEntry) string {
	ts := time.UnixMilli(e.TimeUnixMs).UTC().Format(time.RFC3339Nano)
	line := fmt.Sprintf("[%s] %s %s %s %s http=%d req=%d resp=%d %dms",
		ts, e.RemoteIP, e.Method, e.Op, e.Path, e.HTTPStatus, e.ReqBytes, e.RespBytes, e.DurationMs)
	if e.Info != "" {
		line += " | " + e.Info
	}
	return line
}

// logHub keeps a ring buffer of recent request records and fans new ones out
// to subscribers.
type logHub struct {
	mu      deadlock.Mutex
	ring    []LogEntry
	cap     int
	nextPos int
	count   int
	nextID  uint64
	subs    map[chan LogEntry]struct{}
}

func newLogHub(capacity int) *logHub {
	if capacity <= 0 {
		capacity = 512
	}
	return &logHub{
		ring: make([]LogEntry, capacity),
		cap:  capacity,
		subs: make(map[chan LogEntry]struct{}),
	}
}

func (h *logHub) add(e LogEntry) {
	if e.TimeUnixMs == 0 {
		e.TimeUnixMs = time.Now().UnixMilli()
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.nextID++
	e.ID = h.nextID

	h.ring[h.nextPos] = e
	h.nextPos = (h.nextPos + 1) % h.cap
	if h.count < h.cap {
		h.count++
	}
	for ch := range h.subs {
		select {
		case ch <- e:
		default:
			// Slow subscriber, drop.
		}
	}
}

// snapshot returns the last limit entries, oldest first. limit <= 0 means all.
func (h *logHub) snapshot(limit int) []LogEntry {
	h.mu.Lock()
	defer h.mu.Unlock()

	if limit <= 0 || limit > h.count {
		limit = h.count
	}
	if limit == 0 {
		return nil
	}

	start := h.nextPos - h.count
	if start < 0 {
		start += h.cap
	}
	start = (start + (h.count - limit)) % h.cap

	out := make([]LogEntry, 0, limit)
	for i := 0; i < limit; i++ {
		out = append(out, h.ring[(start+i)%h.cap])
	}
	return out
}

func (h *logHub) clear() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.nextPos = 0
	h.count = 0
	h.nextID = 0
	clear(h.ring)
}

type LogFilter struct {
	Op           string
	OnlyErrors   bool
	RemoteIPSub  string
	InfoContains string
	SinceUnixMs  int64
	UntilUnixMs  int64
	Limit        int
}

func (f LogFilter) match(e LogEntry) bool {
	if f.Op != "" && !strings.EqualFold(e.Op, f.Op) {
		return false
	}
	if f.OnlyErrors && !e.Failed() {
		return false
	}
	if f.RemoteIPSub != "" && !containsFold(e.RemoteIP, f.RemoteIPSub) {
		return false
	}
	if f.InfoContains != "" && !containsFold(e.Path+"\n"+e.Info, f.InfoContains) {
		return false
	}
	if f.SinceUnixMs > 0 && e.TimeUnixMs < f.SinceUnixMs {
		return false
	}
	if f.UntilUnixMs > 0 && e.TimeUnixMs > f.UntilUnixMs {
		return false
	}
	return true
}

// filteredSnapshot returns the most recent matching entries, oldest first.
func (h *logHub) filteredSnapshot(f LogFilter) []LogEntry {
	all := h.snapshot(0)
	matched := lo.Filter(all, func(e LogEntry, _ int) bool { return f.match(e) })
	if f.Limit > 0 && len(matched) > f.Limit {
		matched = matched[len(matched)-f.Limit:]
	}
	return matched
}

func containsFold(hay, needle string) bool {
	if needle == "" {
		return true
	}
	return strings.Contains(strings.ToLower(hay), strings.ToLower(needle))
}

func (h *logHub) subscribe() (ch chan LogEntry, cancel func()) {
	ch = make(chan LogEntry, 32)
	h.mu.Lock()
	h.subs[ch] = struct{}{}
	h.mu.Unlock()
	return ch, func() {
		h.mu.Lock()
		delete(h.subs, ch)
		h.mu.Unlock()
		close(ch)
	}
}
