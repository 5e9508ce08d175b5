// Package tlssession adapts crypto/tls to the reactor's TLS Session Provider
// contract (api.Session).
//
// crypto/tls expects a blocking net.Conn, while the reactor only ever moves
// bytes when the poller says a socket is ready. A Session bridges the two with
// an in-memory transport: ciphertext read from the socket is fed to a
// record-processing goroutine that owns the tls.Conn read side, and every
// record crypto/tls writes is queued until the reactor flushes it. The
// goroutine only runs inside ProcessBufferedRecords, which waits until it has
// consumed all buffered ciphertext, so from the reactor's point of view the
// session is a plain state machine with no concurrency of its own.
package tlssession

import (
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/valyala/bytebufferpool"

	"github.com/NunoDasNeves/mini-https-server/api"
)

const (
	// DefaultMaxPlaintext bounds the decrypted bytes buffered for one request.
	DefaultMaxPlaintext = 64 << 10
	// DefaultMaxBatch is the number of records handed to one vectored write.
	DefaultMaxBatch = 64

	// readChunk fits the largest TLS ciphertext record plus its header.
	readChunk = 5 + 16384 + 2048
)

// ErrHandshakeIncomplete is returned by WritePlaintext before the handshake finished.
var ErrHandshakeIncomplete = errors.New("tls handshake not complete")

// ProtocolError is a TLS-level failure: a failed handshake, a malformed or
// unauthenticated record, or an oversized request.
type ProtocolError struct {
	Err error
}

func (e *ProtocolError) Error() string { return "tls protocol error: " + e.Err.Error() }

func (e *ProtocolError) Unwrap() error { return e.Err }

// Option configures a Session.
type Option func(*Session)

// WithMaxPlaintext bounds the plaintext buffered before it is read out.
// Zero or negative disables the bound.
func WithMaxPlaintext(n int) Option {
	return func(s *Session) { s.pipe.maxPlain = n }
}

// WithMaxBatch sets how many queued records one WriteCiphertextTo call hands to Writev.
func WithMaxBatch(n int) Option {
	return func(s *Session) {
		if n > 0 {
			s.maxBatch = n
		}
	}
}

// Session is a server-side TLS session driven by the reactor. It implements api.Session.
// A Session is used by one goroutine at a time.
type Session struct {
	conn *tls.Conn
	pipe *pipe

	readBuf  []byte
	iov      [][]byte
	maxBatch int

	state tls.ConnectionState

	done      chan struct{}
	closeOnce sync.Once
}

var _ api.Session = (*Session)(nil)

// New creates a session bound to cfg, which must be ready for server use and
// must not be modified afterwards. remote labels the peer in ClientHelloInfo.
func New(cfg *tls.Config, remote string, opts ...Option) *Session {
	p := newPipe(remote, DefaultMaxPlaintext)
	s := &Session{
		conn:     tls.Server(p, cfg),
		pipe:     p,
		readBuf:  make([]byte, readChunk),
		maxBatch: DefaultMaxBatch,
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	go s.processRecords()
	return s
}

// processRecords owns the tls.Conn read side for the life of the session.
func (s *Session) processRecords() {
	defer close(s.done)

	if err := s.conn.Handshake(); err != nil {
		s.pipe.finish(err)
		return
	}
	state := s.conn.ConnectionState()
	s.pipe.mu.Lock()
	s.state = state
	s.pipe.handshakeDone = true
	s.pipe.mu.Unlock()

	buf := make([]byte, 16<<10)
	for {
		n, err := s.conn.Read(buf)
		if n > 0 && !s.pipe.deliver(buf[:n]) {
			s.pipe.finish(api.ErrRequestTooLarge)
			return
		}
		if err != nil {
			s.pipe.finish(err)
			return
		}
	}
}

// ReadCiphertextFrom reads one chunk of ciphertext from r. It returns (0, nil)
// at EOF; would-block and other errors are returned unchanged.
func (s *Session) ReadCiphertextFrom(r io.Reader) (int, error) {
	n, err := r.Read(s.readBuf)
	if n > 0 {
		s.pipe.mu.Lock()
		if s.pipe.closed {
			s.pipe.mu.Unlock()
			return 0, api.ErrSessionClosed
		}
		s.pipe.feed(s.readBuf[:n])
		s.pipe.mu.Unlock()
	}
	if err != nil {
		if errors.Is(err, io.EOF) {
			return n, nil
		}
		return n, err
	}
	return n, nil
}

// ProcessBufferedRecords lets the record processor consume all ciphertext
// read so far and waits until it needs more or has stopped.
func (s *Session) ProcessBufferedRecords() error {
	p := s.pipe
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return api.ErrSessionClosed
	}
	p.cond.Broadcast()
	for !p.settled() {
		p.cond.Wait()
	}
	if p.err != nil {
		return &ProtocolError{Err: p.err}
	}
	return nil
}

// WriteCiphertextTo hands queued records to w in a single Writev call.
// Whatever w did not accept stays queued.
func (s *Session) WriteCiphertextTo(w api.VectorWriter) (int, error) {
	p := s.pipe
	p.mu.Lock()
	s.iov = p.pending(s.iov[:0], s.maxBatch)
	p.mu.Unlock()
	if len(s.iov) == 0 {
		return 0, nil
	}

	n, err := w.Writev(s.iov)
	if n > 0 {
		p.mu.Lock()
		p.consume(n)
		p.mu.Unlock()
	}
	for i := range s.iov {
		s.iov[i] = nil
	}
	return n, err
}

// WantsRead reports whether the session still accepts ciphertext.
func (s *Session) WantsRead() bool {
	s.pipe.mu.Lock()
	defer s.pipe.mu.Unlock()
	return !s.pipe.finished && !s.pipe.closed
}

// WantsWrite reports whether ciphertext is queued.
func (s *Session) WantsWrite() bool {
	s.pipe.mu.Lock()
	defer s.pipe.mu.Unlock()
	return s.pipe.out.Length() > 0
}

// Buffered returns the number of queued ciphertext bytes.
func (s *Session) Buffered() int {
	s.pipe.mu.Lock()
	defer s.pipe.mu.Unlock()
	return s.pipe.outLen
}

// ReadPlaintext copies decrypted bytes into b.
func (s *Session) ReadPlaintext(b []byte) (int, error) {
	p := s.pipe
	p.mu.Lock()
	defer p.mu.Unlock()
	if avail := p.plain.Len() - p.plainOff; avail > 0 {
		n := copy(b, p.plain.B[p.plainOff:])
		p.plainOff += n
		if p.plainOff == p.plain.Len() {
			p.plain.Reset()
			p.plainOff = 0
		}
		return n, nil
	}
	switch {
	case p.closed:
		return 0, api.ErrSessionClosed
	case p.peerClosed:
		return 0, io.EOF
	default:
		return 0, api.ErrWouldBlock
	}
}

// WritePlaintext encrypts b and queues the resulting records.
func (s *Session) WritePlaintext(b []byte) error {
	s.pipe.mu.Lock()
	ready, closed := s.pipe.handshakeDone, s.pipe.closed
	s.pipe.mu.Unlock()
	if closed {
		return api.ErrSessionClosed
	}
	if !ready {
		return ErrHandshakeIncomplete
	}
	if _, err := s.conn.Write(b); err != nil {
		return fmt.Errorf("tls write: %w", err)
	}
	return nil
}

// SendCloseNotify queues a close_notify alert. Before the handshake has
// completed there is nothing to close gracefully and the call is a no-op.
func (s *Session) SendCloseNotify() {
	_ = s.conn.CloseWrite()
}

// HandshakeComplete reports whether the handshake finished successfully.
func (s *Session) HandshakeComplete() bool {
	s.pipe.mu.Lock()
	defer s.pipe.mu.Unlock()
	return s.pipe.handshakeDone
}

// ConnectionState returns the negotiated parameters once the handshake completed.
func (s *Session) ConnectionState() (tls.ConnectionState, bool) {
	s.pipe.mu.Lock()
	defer s.pipe.mu.Unlock()
	return s.state, s.pipe.handshakeDone
}

// Close stops the record processor and returns buffers to their pools.
// Queued ciphertext is discarded.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		_ = s.pipe.Close()
		<-s.done
		s.pipe.mu.Lock()
		bytebufferpool.Put(s.pipe.plain)
		s.pipe.plain = &bytebufferpool.ByteBuffer{}
		s.pipe.mu.Unlock()
	})
	return nil
}
