package server

import (
	"github.com/sirupsen/logrus"
)

func (s *Server) record(le LogEntry) {
	if s.cfg.LogRequests {
		s.logs.add(le)
	}
	if s.stats != nil {
		s.stats.add(le)
	}

	entry := s.log.WithFields(logrus.Fields{
		"op":          le.Op,
		"method":      le.Method,
		"path":        le.Path,
		"remote":      le.RemoteIP,
		"status":      le.HTTPStatus,
		"bytes":       le.RespBytes,
		"duration_ms": le.DurationMs,
	})
	switch {
	case le.HTTPStatus >= 500:
		entry.WithField("info", le.Info).Error("request failed")
	case le.HTTPStatus >= 400:
		entry.WithField("info", le.Info).Info("request rejected")
	default:
		entry.Debug("request")
	}
}
