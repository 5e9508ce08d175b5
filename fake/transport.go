// Package fake
// License: Apache-2.0
//
// Scripted non-blocking transport.

package fake

import (
	"bytes"
	"sync"

	"github.com/NunoDasNeves/mini-https-server/api"
)

// ReadStep is one scripted Read result. A step with no data and no error is
// a peer EOF.
type ReadStep struct {
	Data []byte
	Err  error
}

// Transport is a fake implementation of api.Transport.
// Reads come from a script; when the script is exhausted Read would block.
type Transport struct {
	mu         sync.Mutex
	fd         int
	remote     string
	reads      []ReadStep
	written    bytes.Buffer
	writeLimit int   // bytes accepted per Writev, 0 = unlimited
	blockNext  int   // Writev calls that would block before any progress
	writeErr   error // returned by every Writev once set
	writevs    int
	shutdowns  int
	closed     bool
}

var _ api.Transport = (*Transport)(nil)

// NewTransport creates a transport reporting fd and remote.
func NewTransport(fd int, remote string) *Transport {
	return &Transport{fd: fd, remote: remote}
}

// QueueRead appends data to the read script.
func (t *Transport) QueueRead(data []byte) *Transport {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.reads = append(t.reads, ReadStep{Data: append([]byte(nil), data...)})
	return t
}

// QueueEOF makes the next unscripted Read report peer EOF.
func (t *Transport) QueueEOF() *Transport {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.reads = append(t.reads, ReadStep{})
	return t
}

// QueueReadError appends a failing Read.
func (t *Transport) QueueReadError(err error) *Transport {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.reads = append(t.reads, ReadStep{Err: err})
	return t
}

// SetWriteLimit caps the bytes accepted by each Writev call.
func (t *Transport) SetWriteLimit(n int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.writeLimit = n
}

// BlockWrites makes the next n Writev calls return api.ErrWouldBlock.
func (t *Transport) BlockWrites(n int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.blockNext = n
}

// SetWriteError makes every subsequent Writev fail with err.
func (t *Transport) SetWriteError(err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.writeErr = err
}

// Read implements io.Reader.
func (t *Transport) Read(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return 0, api.ErrTransportClosed
	}
	if len(t.reads) == 0 {
		return 0, api.ErrWouldBlock
	}
	step := &t.reads[0]
	if step.Err != nil || len(step.Data) == 0 {
		t.reads = t.reads[1:]
		return 0, step.Err
	}
	n := copy(p, step.Data)
	step.Data = step.Data[n:]
	if len(step.Data) == 0 {
		t.reads = t.reads[1:]
	}
	return n, nil
}

// Writev implements api.VectorWriter.
func (t *Transport) Writev(bufs [][]byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.writevs++
	if t.closed {
		return 0, api.ErrTransportClosed
	}
	if t.writeErr != nil {
		return 0, t.writeErr
	}
	if t.blockNext > 0 {
		t.blockNext--
		return 0, api.ErrWouldBlock
	}
	total := 0
	for _, b := range bufs {
		if t.writeLimit > 0 && total+len(b) > t.writeLimit {
			b = b[:t.writeLimit-total]
		}
		t.written.Write(b)
		total += len(b)
		if t.writeLimit > 0 && total == t.writeLimit {
			break
		}
	}
	return total, nil
}

// Shutdown implements api.Transport.
func (t *Transport) Shutdown() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.shutdowns++
	return nil
}

// Close implements api.Transport.
func (t *Transport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed = true
	return nil
}

// Fd implements api.Transport.
func (t *Transport) Fd() int { return t.fd }

// RemoteAddr implements api.Transport.
func (t *Transport) RemoteAddr() string { return t.remote }

// Written returns a copy of everything written so far.
func (t *Transport) Written() []byte {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]byte(nil), t.written.Bytes()...)
}

// Writevs returns how many times Writev was called.
func (t *Transport) Writevs() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.writevs
}

// Shutdowns returns how many times Shutdown was called.
func (t *Transport) Shutdowns() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.shutdowns
}

// Closed reports whether Close was called.
func (t *Transport) Closed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closed
}
