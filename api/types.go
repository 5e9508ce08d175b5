// File: api/types.go
//
// Shared API-level type declarations and the TLS session contract.

package api

import "io"

// ConnState enumerates the lifecycle of an accepted connection.
// Transitions are monotonic: Open -> Closing -> Closed.
type ConnState int

const (
	ConnOpen ConnState = iota
	ConnClosing
	ConnClosed
)

func (s ConnState) String() string {
	switch s {
	case ConnOpen:
		return "open"
	case ConnClosing:
		return "closing"
	case ConnClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Session is the TLS Session Provider contract driven by a connection.
//
// A Session never touches the socket on its own: ciphertext only moves when
// ReadCiphertextFrom or WriteCiphertextTo is called, which keeps it usable on
// a non-blocking transport from a single reactor goroutine.
type Session interface {
	// ReadCiphertextFrom reads one chunk of ciphertext from r into the session.
	// A zero count with a nil error means the transport reached EOF.
	ReadCiphertextFrom(r io.Reader) (int, error)

	// WriteCiphertextTo flushes queued ciphertext to w. Short writes are
	// expected; whatever is left stays queued for the next call.
	WriteCiphertextTo(w VectorWriter) (int, error)

	// ProcessBufferedRecords runs the handshake and record layer over the
	// ciphertext read so far. A non-nil error is a protocol failure.
	ProcessBufferedRecords() error

	// WantsRead reports whether the session can make use of more ciphertext.
	WantsRead() bool

	// WantsWrite reports whether ciphertext is queued for the transport.
	WantsWrite() bool

	// ReadPlaintext copies decrypted application data into p. It returns
	// ErrWouldBlock when nothing is buffered, and io.EOF once the peer sent
	// close_notify and all plaintext was consumed.
	ReadPlaintext(p []byte) (int, error)

	// WritePlaintext encrypts p and queues the records for the transport.
	WritePlaintext(p []byte) error

	// SendCloseNotify queues a close_notify alert.
	SendCloseNotify()

	// Close releases the session. It does not touch the transport.
	Close() error
}
