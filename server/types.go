package server

import (
	"crypto/tls"
	"time"

	"github.com/NunoDasNeves/mini-https-server/api"
	"github.com/NunoDasNeves/mini-https-server/internal/transport"
	"github.com/NunoDasNeves/mini-https-server/tlssession"
)

// Config holds all server-side configuration parameters.
type Config struct {
	ListenAddr      string        // TCP bind address, e.g. ":5443"
	Backlog         int           // listen(2) backlog
	EventCapacity   int           // readiness events fetched per Wait
	Vectored        bool          // flush ciphertext with writev instead of sequential writes
	MaxBatch        int           // TLS records handed to one vectored write
	MaxRequestBytes int           // decrypted request bytes buffered per connection
	IdleTimeout     time.Duration // close connections idle this long (0 = never)
	SweepInterval   time.Duration // how often idle connections are looked for
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		ListenAddr:      ":5443",
		Backlog:         transport.DefaultBacklog,
		EventCapacity:   256,
		Vectored:        true,
		MaxBatch:        tlssession.DefaultMaxBatch,
		MaxRequestBytes: tlssession.DefaultMaxPlaintext,
		IdleTimeout:     0,
		SweepInterval:   time.Second,
	}
}

// Acceptor is the listening socket. Accept returns api.ErrWouldBlock when no
// connection is pending.
type Acceptor interface {
	Accept() (api.Transport, error)
	Fd() int
	Addr() string
	Close() error
}

// TLSSource supplies the server TLS configuration bound into each new session.
// The returned configuration must not be modified.
type TLSSource interface {
	Current() *tls.Config
}

// StaticTLS is a TLSSource that never changes.
type StaticTLS struct{ Config *tls.Config }

// Current implements TLSSource.
func (s StaticTLS) Current() *tls.Config { return s.Config }

// SessionFactory creates the TLS session for an accepted connection.
type SessionFactory func(cfg *tls.Config, remote string) api.Session

// Metrics receives connection lifecycle notifications. All methods are called
// from the reactor goroutine.
type Metrics interface {
	ConnectionAccepted()
	AcceptError()
	ConnectionClosed(reason string, lifetime time.Duration)
	Response(status string)
	ProtocolError()
}

// Close reasons reported to Metrics and the log.
const (
	ReasonPeerEOF       = "peer_eof"
	ReasonReadError     = "read_error"
	ReasonWriteError    = "write_error"
	ReasonProtocolError = "protocol_error"
	ReasonResponded     = "responded"
	ReasonIdle          = "idle_timeout"
	ReasonRegister      = "register_error"
	ReasonShutdown      = "shutdown"
)

type nopMetrics struct{}

func (nopMetrics) ConnectionAccepted()                    {}
func (nopMetrics) AcceptError()                           {}
func (nopMetrics) ConnectionClosed(string, time.Duration) {}
func (nopMetrics) Response(string)                        {}
func (nopMetrics) ProtocolError()                         {}
