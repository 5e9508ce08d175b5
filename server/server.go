package server

import (
	"crypto/tls"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.uber.org/multierr"

	"github.com/NunoDasNeves/mini-https-server/api"
	"github.com/NunoDasNeves/mini-https-server/internal/transport"
	"github.com/NunoDasNeves/mini-https-server/reactor"
	"github.com/NunoDasNeves/mini-https-server/tlssession"
)

var ErrAlreadyRunning = errors.New("server already running")

// plaintextChunk is the scratch size used to drain decrypted bytes.
const plaintextChunk = 16 << 10

// Server is the reactor: it owns the listener, the poller, the connection
// table and the TLS configuration source. Everything except Run's wake-up
// and Len is confined to the goroutine calling Run.
type Server struct {
	cfg        *Config
	ln         Acceptor
	poller     reactor.Poller
	tls        TLSSource
	handler    api.RequestHandler
	newSession SessionFactory
	metrics    Metrics
	log        zerolog.Logger
	now        func() time.Time

	conns   map[reactor.Token]*Connection
	next    reactor.Token
	events  []reactor.Event
	scratch []byte

	active  atomic.Int64
	running atomic.Bool
}

// Listen binds cfg.ListenAddr as a non-blocking Acceptor.
func Listen(cfg *Config) (Acceptor, error) {
	ln, err := transport.Listen(cfg.ListenAddr, cfg.Backlog)
	if err != nil {
		return nil, err
	}
	return socketAcceptor{ln}, nil
}

// NewAcceptor wraps an already bound listener.
func NewAcceptor(ln *transport.Listener) Acceptor {
	return socketAcceptor{ln}
}

type socketAcceptor struct {
	*transport.Listener
}

func (a socketAcceptor) Accept() (api.Transport, error) {
	s, err := a.Listener.Accept()
	if err != nil {
		return nil, err
	}
	return s, nil
}

// New builds a Server around an already bound listener. Unless WithPoller is
// given the platform poller is created here.
func New(cfg *Config, ln Acceptor, src TLSSource, handler api.RequestHandler, opts ...ServerOption) (*Server, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if ln == nil || src == nil || handler == nil {
		return nil, fmt.Errorf("server: listener, tls source and handler are required: %w", api.ErrInvalidArgument)
	}
	if cfg.EventCapacity <= 0 {
		cfg.EventCapacity = DefaultConfig().EventCapacity
	}
	if cfg.IdleTimeout > 0 && cfg.SweepInterval <= 0 {
		cfg.SweepInterval = cfg.IdleTimeout
	}

	s := &Server{
		cfg:     cfg,
		ln:      ln,
		tls:     src,
		handler: handler,
		metrics: nopMetrics{},
		log:     zerolog.Nop(),
		now:     time.Now,
		conns:   make(map[reactor.Token]*Connection),
		next:    reactor.FirstConnToken,
		events:  make([]reactor.Event, cfg.EventCapacity),
		scratch: make([]byte, plaintextChunk),
	}
	s.newSession = func(tc *tls.Config, remote string) api.Session {
		return tlssession.New(tc, remote,
			tlssession.WithMaxPlaintext(cfg.MaxRequestBytes),
			tlssession.WithMaxBatch(cfg.MaxBatch))
	}
	for _, o := range opts {
		o(s)
	}
	if s.poller == nil {
		p, err := reactor.NewPoller()
		if err != nil {
			return nil, fmt.Errorf("create poller: %w", err)
		}
		s.poller = p
	}
	return s, nil
}

// Addr returns the listening address.
func (s *Server) Addr() string { return s.ln.Addr() }

// Len returns the number of connections in the table. Safe from any goroutine.
func (s *Server) Len() int { return int(s.active.Load()) }

// Lookup returns the live connection registered under token.
func (s *Server) Lookup(token reactor.Token) (*Connection, bool) {
	c, ok := s.conns[token]
	return c, ok
}

// Accept takes one pending connection off the listener, wraps it in a TLS
// session and registers it. It reports whether a connection was added.
// Would-block and accept failures both return false and leave the listener usable.
func (s *Server) Accept() bool {
	sock, err := s.ln.Accept()
	if err != nil {
		if !api.IsWouldBlock(err) {
			s.log.Error().Err(err).Msg("encountered error while accepting connection")
			s.metrics.AcceptError()
		}
		return false
	}

	token := s.next
	s.next++
	now := s.now()
	c := &Connection{
		token:      token,
		id:         uuid.New(),
		sock:       sock,
		session:    s.newSession(s.tls.Current(), sock.RemoteAddr()),
		writer:     transport.NewVectorWriter(sock, s.cfg.Vectored),
		handler:    s.handler,
		poller:     s.poller,
		metrics:    s.metrics,
		created:    now,
		lastActive: now,
		scratch:    s.scratch,
	}
	c.log = s.log.With().
		Uint64("token", uint64(token)).
		Str("conn", c.id.String()).
		Str("remote", sock.RemoteAddr()).
		Logger()

	if err := s.poller.Register(sock.Fd(), token, c.interest(), connMode); err != nil {
		c.log.Error().Err(err).Msg("register connection failed")
		c.markClosing(ReasonRegister)
		c.closed = true
		s.metrics.AcceptError()
		if err := multierr.Combine(sock.Close(), c.session.Close()); err != nil {
			c.log.Debug().Err(err).Msg("release failed")
		}
		return false
	}
	s.conns[token] = c
	s.active.Add(1)
	s.metrics.ConnectionAccepted()
	c.log.Info().Msg("accepting new connection")
	return true
}

// Dispatch routes one readiness event. A connection that reports closed
// after handling it is removed from the table in the same call.
func (s *Server) Dispatch(ev reactor.Event) {
	if ev.Token == reactor.ListenerToken {
		for s.Accept() {
		}
		return
	}
	c, ok := s.conns[ev.Token]
	if !ok {
		return
	}
	c.Ready(ev, s.now())
	if c.Closed() {
		s.remove(c)
	}
}

// remove drops c from the table and releases its descriptor and session.
func (s *Server) remove(c *Connection) {
	delete(s.conns, c.token)
	s.active.Add(-1)
	err := multierr.Combine(
		s.poller.Deregister(c.sock.Fd()),
		c.sock.Close(),
		c.session.Close(),
	)
	if err != nil {
		c.log.Debug().Err(err).Msg("release failed")
	}
	lifetime := s.now().Sub(c.created)
	s.metrics.ConnectionClosed(c.reason, lifetime)
	c.log.Debug().Str("reason", c.reason).Dur("lifetime", lifetime).Msg("connection closed")
}

// Close releases the listener and the poller. Call it after Run returned.
func (s *Server) Close() error {
	return multierr.Combine(s.ln.Close(), s.poller.Close())
}
