package server

import (
	"encoding/json"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/websocket"

	"pathview-server/internal/version"
)

// Operator endpoints live under adminPath. They are reachable from loopback
// only unless AdminAllowRemote is set.
const adminPath = "/_pathview"

const (
	wsBacklog      = 50
	wsWriteTimeout = 10 * time.Second
)

func (s *Server) mountAdmin(mux *http.ServeMux) {
	mux.HandleFunc(adminPath+"/health", s.requireAdmin(s.handleAdminHealth))
	mux.HandleFunc(adminPath+"/stats", s.requireAdmin(s.handleAdminStats))
	mux.HandleFunc(adminPath+"/stats/reset", s.requireAdmin(s.handleAdminStatsReset))
	mux.HandleFunc(adminPath+"/logs", s.requireAdmin(s.handleAdminLogs))
	mux.HandleFunc(adminPath+"/logs/export", s.requireAdmin(s.handleAdminLogsExport))
	mux.HandleFunc(adminPath+"/logs/clear", s.requireAdmin(s.handleAdminLogsClear))
	if s.cfg.EnableLogStream {
		mux.HandleFunc(adminPath+"/logs/ws", s.requireAdmin(s.handleAdminLogStream))
	}
	mux.HandleFunc(adminPath+"/", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})
}

func (s *Server) requireAdmin(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !s.cfg.AdminAllowRemote {
			parsed := net.ParseIP(clientIP(r))
			if parsed == nil || !parsed.IsLoopback() {
				w.WriteHeader(http.StatusForbidden)
				_, _ = w.Write([]byte("operator endpoints are localhost-only by default\n"))
				return
			}
		}
		next(w, r)
	}
}

// clientIP does not trust X-Forwarded-For. Behind a reverse proxy every client
// looks like the proxy.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err == nil {
		return host
	}
	return r.RemoteAddr
}

func (s *Server) handleAdminHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("pathview-server " + version.Get().String() + "\n"))
}

func (s *Server) handleAdminStats(w http.ResponseWriter, r *http.Request) {
	writeAdminJSON(w, s.stats.snapshot())
}

func (s *Server) handleAdminStatsReset(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	s.stats.reset()
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK\n"))
}

func parseLogFilter(r *http.Request) LogFilter {
	q := r.URL.Query()
	f := LogFilter{Limit: 200}
	if v := q.Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			f.Limit = min(max(n, 1), 5000)
		}
	}
	f.Op = q.Get("op")
	f.OnlyErrors = q.Get("errors") == "1"
	f.RemoteIPSub = q.Get("ip")
	f.InfoContains = q.Get("q")
	if v := q.Get("since"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			f.SinceUnixMs = n
		}
	}
	if v := q.Get("until"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			f.UntilUnixMs = n
		}
	}
	return f
}

func (s *Server) handleAdminLogs(w http.ResponseWriter, r *http.Request) {
	entries := s.logs.filteredSnapshot(parseLogFilter(r))
	if entries == nil {
		entries = []LogEntry{}
	}
	writeAdminJSON(w, entries)
}

func (s *Server) handleAdminLogsClear(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	s.logs.clear()
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK\n"))
}

func (s *Server) handleAdminLogsExport(w http.ResponseWriter, r *http.Request) {
	entries := s.logs.filteredSnapshot(parseLogFilter(r))
	format := r.URL.Query().Get("format")
	if format == "text" || format == "txt" {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Header().Set("Content-Disposition", "attachment; filename=logs.txt")
		w.WriteHeader(http.StatusOK)
		for _, e := range entries {
			_, _ = w.Write([]byte(formatLogLine(e) + "\n"))
		}
		return
	}
	// default: jsonl
	w.Header().Set("Content-Type", "application/x-ndjson")
	w.Header().Set("Content-Disposition", "attachment; filename=logs.jsonl")
	w.WriteHeader(http.StatusOK)
	for _, e := range entries {
		_, _ = w.Write(e.jsonLine())
		_, _ = w.Write([]byte("\n"))
	}
}

// handleAdminLogStream sends the recent backlog, then every new request record
// as one JSON text message.
func (s *Server) handleAdminLogStream(w http.ResponseWriter, r *http.Request) {
	// Subscribe before taking the backlog so nothing falls in between.
	ch, cancel := s.logs.subscribe()
	defer cancel()

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already answered the client.
		s.log.WithError(err).Debug("log stream upgrade failed")
		return
	}
	defer conn.Close()

	// Drain client frames so close and ping are processed.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	var lastID uint64
	for _, e := range s.logs.snapshot(wsBacklog) {
		if err := s.writeWS(conn, e); err != nil {
			return
		}
		lastID = e.ID
	}

	for {
		select {
		case <-r.Context().Done():
			return
		case <-closed:
			return
		case e, ok := <-ch:
			if !ok {
				return
			}
			if lastID != 0 && e.ID <= lastID {
				continue
			}
			lastID = 0
			if err := s.writeWS(conn, e); err != nil {
				s.log.WithError(err).Debug("log stream closed")
				return
			}
		}
	}
}

func (s *Server) writeWS(conn *websocket.Conn, e LogEntry) error {
	_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	return conn.WriteJSON(e)
}

func writeAdminJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(v)
}
