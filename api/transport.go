// File: api/transport.go
//
// Defines the non-blocking transport and vectored-write abstractions consumed
// by the TLS session and the connection state machine.

package api

import "io"

// VectorWriter writes a sequence of byte buffers to a transport in one call.
// It returns the total number of bytes written, which may be short.
type VectorWriter interface {
	Writev(bufs [][]byte) (int, error)
}

// Transport abstracts a connected, non-blocking stream socket.
//
// Read returns (0, nil) when the peer has closed its side and ErrWouldBlock
// (or a raw EAGAIN) when no data is available yet.
type Transport interface {
	io.Reader
	VectorWriter

	// Shutdown shuts down both directions of the stream without releasing the descriptor.
	Shutdown() error

	// Close releases the underlying descriptor. Calling Close twice is a no-op.
	Close() error

	// Fd returns the OS-level descriptor registered with the poller.
	Fd() int

	// RemoteAddr returns the peer address in host:port form.
	RemoteAddr() string
}
