// Package transport
//
// Platform-independent pieces of the transport layer.

package transport

import (
	"io"

	"github.com/NunoDasNeves/mini-https-server/api"
)

// MaxIovecs caps the number of buffers handed to a single vectored write.
const MaxIovecs = 64

// Sequential implements api.VectorWriter on top of a plain io.Writer by
// writing each buffer in turn. It stops at the first short write or error and
// reports the bytes written so far, so callers can resume where it stopped.
type Sequential struct {
	W io.Writer
}

// Writev writes bufs one after another.
func (s Sequential) Writev(bufs [][]byte) (int, error) {
	total := 0
	for _, b := range bufs {
		if len(b) == 0 {
			continue
		}
		n, err := s.W.Write(b)
		total += n
		if err != nil {
			return total, err
		}
		if n < len(b) {
			return total, nil
		}
	}
	return total, nil
}

// plainWriter is implemented by transports that also offer single-buffer writes.
type plainWriter interface {
	Write(p []byte) (int, error)
}

// NewVectorWriter returns t itself when vectored writes are wanted, and a
// Sequential fallback over t's single-buffer Write otherwise. Transports
// without a single-buffer Write always use their own Writev.
func NewVectorWriter(t api.Transport, vectored bool) api.VectorWriter {
	if vectored {
		return t
	}
	if w, ok := t.(plainWriter); ok {
		return Sequential{W: w}
	}
	return t
}
