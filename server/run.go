// File: server/run.go
// License: Apache-2.0
//
// The reactor loop: wait for readiness, dispatch, reap idle connections.

package server

import (
	"context"
	"fmt"

	"github.com/NunoDasNeves/mini-https-server/reactor"
)

// Run registers the listener and serves until ctx is done. On return every
// connection still in the table has been shut down and released; the
// listener and poller stay open until Close.
func (s *Server) Run(ctx context.Context) error {
	if !s.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer s.running.Store(false)

	if err := s.poller.Register(s.ln.Fd(), reactor.ListenerToken, reactor.Readable, reactor.Level); err != nil {
		return fmt.Errorf("register listener: %w", err)
	}
	defer func() {
		if err := s.poller.Deregister(s.ln.Fd()); err != nil {
			s.log.Debug().Err(err).Msg("deregister listener")
		}
	}()
	defer s.closeAll()

	stop := context.AfterFunc(ctx, func() { _ = s.poller.Wake() })
	defer stop()

	// Without idle reaping the loop blocks until there is work.
	timeout := s.cfg.SweepInterval
	if s.cfg.IdleTimeout <= 0 {
		timeout = -1
	}

	s.log.Info().Str("addr", s.ln.Addr()).Msg("server listening")
	for ctx.Err() == nil {
		n, err := s.poller.Wait(s.events, timeout)
		if err != nil {
			return fmt.Errorf("wait: %w", err)
		}
		for _, ev := range s.events[:n] {
			s.Dispatch(ev)
		}
		if s.cfg.IdleTimeout > 0 {
			s.Sweep()
		}
	}
	return nil
}

// Sweep shuts down and removes connections idle for longer than IdleTimeout.
func (s *Server) Sweep() {
	if s.cfg.IdleTimeout <= 0 {
		return
	}
	now := s.now()
	for _, c := range s.conns {
		if now.Sub(c.lastActive) <= s.cfg.IdleTimeout {
			continue
		}
		c.log.Debug().Msg("idle timeout")
		c.markClosing(ReasonIdle)
		c.shutdown()
		s.remove(c)
	}
}

// closeAll releases every live connection.
func (s *Server) closeAll() {
	for _, c := range s.conns {
		c.markClosing(ReasonShutdown)
		c.shutdown()
		s.remove(c)
	}
}
