// File: server/options.go
// Package server defines functional options for the Server.
// License: Apache-2.0

package server

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/NunoDasNeves/mini-https-server/reactor"
)

// ServerOption customizes server initialization.
type ServerOption func(*Server)

// WithLogger sets the logger. The default discards everything.
func WithLogger(l zerolog.Logger) ServerOption {
	return func(s *Server) {
		s.log = l
	}
}

// WithMetrics attaches a lifecycle metrics sink.
func WithMetrics(m Metrics) ServerOption {
	return func(s *Server) {
		if m != nil {
			s.metrics = m
		}
	}
}

// WithPoller replaces the platform poller. The server takes ownership of p.
func WithPoller(p reactor.Poller) ServerOption {
	return func(s *Server) {
		s.poller = p
	}
}

// WithSessionFactory replaces the crypto/tls session adapter.
func WithSessionFactory(f SessionFactory) ServerOption {
	return func(s *Server) {
		s.newSession = f
	}
}

// WithClock overrides time.Now for idle accounting.
func WithClock(now func() time.Time) ServerOption {
	return func(s *Server) {
		s.now = now
	}
}
