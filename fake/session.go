package fake

import (
	"errors"
	"io"
	"sync"

	"github.com/NunoDasNeves/mini-https-server/api"
)

// CloseNotify is the record a fake Session queues for SendCloseNotify.
const CloseNotify = "<close_notify>"

// Session is a fake api.Session whose "encryption" is the identity: every
// byte read from the transport becomes plaintext once processed, and every
// plaintext write is queued unchanged as one record.
type Session struct {
	mu sync.Mutex

	in      []byte
	plain   []byte
	out     [][]byte
	headOff int

	handshake  []byte // queued on the first ProcessBufferedRecords
	greeted    bool
	processErr error
	writeErr   error

	failed          bool
	peerClosed      bool
	closeNotifySent bool
	closed          bool

	processCalls int
	closeCalls   int
}

var _ api.Session = (*Session)(nil)

// NewSession returns a fresh fake session.
func NewSession() *Session { return &Session{} }

// SetHandshake makes the first ProcessBufferedRecords queue reply, like a
// server flight that must be written before the peer sends data.
func (s *Session) SetHandshake(reply []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handshake = append([]byte(nil), reply...)
}

// SetProcessError makes ProcessBufferedRecords fail with err.
func (s *Session) SetProcessError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.processErr = err
}

// SetWriteError makes WritePlaintext fail with err.
func (s *Session) SetWriteError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writeErr = err
}

// PeerCloseNotify simulates a close_notify from the peer.
func (s *Session) PeerCloseNotify() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.peerClosed = true
}

// ReadCiphertextFrom implements api.Session.
func (s *Session) ReadCiphertextFrom(r io.Reader) (int, error) {
	buf := make([]byte, 4096)
	n, err := r.Read(buf)
	s.mu.Lock()
	s.in = append(s.in, buf[:n]...)
	s.mu.Unlock()
	if errors.Is(err, io.EOF) {
		return n, nil
	}
	return n, err
}

// ProcessBufferedRecords implements api.Session.
func (s *Session) ProcessBufferedRecords() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.processCalls++
	if s.closed {
		return api.ErrSessionClosed
	}
	if s.processErr != nil {
		s.failed = true
		return s.processErr
	}
	if !s.greeted {
		s.greeted = true
		if len(s.handshake) > 0 {
			s.out = append(s.out, s.handshake)
			s.in = s.in[:0]
			return nil
		}
	}
	s.plain = append(s.plain, s.in...)
	s.in = s.in[:0]
	return nil
}

// WriteCiphertextTo implements api.Session.
func (s *Session) WriteCiphertextTo(w api.VectorWriter) (int, error) {
	s.mu.Lock()
	iov := make([][]byte, 0, len(s.out))
	for i, rec := range s.out {
		if i == 0 {
			rec = rec[s.headOff:]
		}
		iov = append(iov, rec)
	}
	s.mu.Unlock()
	if len(iov) == 0 {
		return 0, nil
	}

	n, err := w.Writev(iov)

	s.mu.Lock()
	defer s.mu.Unlock()
	left := n
	for left > 0 && len(s.out) > 0 {
		head := len(s.out[0]) - s.headOff
		if left < head {
			s.headOff += left
			break
		}
		left -= head
		s.out = s.out[1:]
		s.headOff = 0
	}
	return n, err
}

// WantsRead implements api.Session.
func (s *Session) WantsRead() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.closed && !s.failed && !s.peerClosed
}

// WantsWrite implements api.Session.
func (s *Session) WantsWrite() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.out) > 0
}

// ReadPlaintext implements api.Session.
func (s *Session) ReadPlaintext(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.plain) > 0 {
		n := copy(p, s.plain)
		s.plain = s.plain[n:]
		return n, nil
	}
	switch {
	case s.closed:
		return 0, api.ErrSessionClosed
	case s.peerClosed:
		return 0, io.EOF
	default:
		return 0, api.ErrWouldBlock
	}
}

// WritePlaintext implements api.Session.
func (s *Session) WritePlaintext(p []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return api.ErrSessionClosed
	}
	if s.writeErr != nil {
		return s.writeErr
	}
	s.out = append(s.out, append([]byte(nil), p...))
	return nil
}

// SendCloseNotify implements api.Session.
func (s *Session) SendCloseNotify() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closeNotifySent || s.closed {
		return
	}
	s.closeNotifySent = true
	s.out = append(s.out, []byte(CloseNotify))
}

// Close implements api.Session.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.closeCalls++
	return nil
}

// CloseNotifySent reports whether SendCloseNotify queued an alert.
func (s *Session) CloseNotifySent() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closeNotifySent
}

// Closed reports whether Close was called.
func (s *Session) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// CloseCalls returns how many times Close was called.
func (s *Session) CloseCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closeCalls
}

// ProcessCalls returns how many times ProcessBufferedRecords ran.
func (s *Session) ProcessCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.processCalls
}
