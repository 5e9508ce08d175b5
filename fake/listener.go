package fake

import (
	"sync"

	"github.com/NunoDasNeves/mini-https-server/api"
)

// Listener is a fake acceptor handing out queued transports. With nothing
// queued Accept would block.
type Listener struct {
	mu      sync.Mutex
	fd      int
	addr    string
	pending []acceptResult
	closed  bool
}

type acceptResult struct {
	t   api.Transport
	err error
}

// NewListener returns a listener reporting fd and addr.
func NewListener(fd int, addr string) *Listener {
	return &Listener{fd: fd, addr: addr}
}

// QueueConn makes a future Accept return t.
func (l *Listener) QueueConn(t api.Transport) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.pending = append(l.pending, acceptResult{t: t})
}

// QueueError makes a future Accept fail with err.
func (l *Listener) QueueError(err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.pending = append(l.pending, acceptResult{err: err})
}

func (l *Listener) Accept() (api.Transport, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil, api.ErrTransportClosed
	}
	if len(l.pending) == 0 {
		return nil, api.ErrWouldBlock
	}
	r := l.pending[0]
	l.pending = l.pending[1:]
	return r.t, r.err
}

func (l *Listener) Fd() int      { return l.fd }
func (l *Listener) Addr() string { return l.addr }

func (l *Listener) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.closed = true
	return nil
}

// Closed reports whether Close was called.
func (l *Listener) Closed() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.closed
}
