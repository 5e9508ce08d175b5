package tlssession

import (
	"errors"
	"io"
	"net"
	"sync"
	"time"

	"github.com/eapache/queue"
	"github.com/valyala/bytebufferpool"
)

// pipe is the in-memory transport crypto/tls runs on. Ciphertext read from
// the socket is appended to in; every record crypto/tls writes becomes one
// entry of out. The record processor and the reactor hand control back and
// forth through cond, so only one side runs at a time.
type pipe struct {
	mu   sync.Mutex
	cond *sync.Cond

	in    []byte
	inOff int

	out     *queue.Queue // of []byte, one entry per record write
	headOff int          // bytes of the head record already written
	outLen  int

	plain    *bytebufferpool.ByteBuffer
	plainOff int
	maxPlain int

	remote net.Addr

	waiting       bool // the record processor is blocked for more ciphertext
	finished      bool // the record processor exited
	handshakeDone bool
	peerClosed    bool
	closed        bool
	err           error
}

func newPipe(remote string, maxPlain int) *pipe {
	p := &pipe{
		out:      queue.New(),
		plain:    bytebufferpool.Get(),
		maxPlain: maxPlain,
		remote:   pipeAddr(remote),
	}
	p.cond = sync.NewCond(&p.mu)
	return p
}

// Read blocks the record processor until ciphertext is available or the
// session is closed.
func (p *pipe) Read(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for p.inOff == len(p.in) {
		if p.closed {
			return 0, io.EOF
		}
		p.waiting = true
		p.cond.Broadcast()
		p.cond.Wait()
		p.waiting = false
	}
	n := copy(b, p.in[p.inOff:])
	p.inOff += n
	if p.inOff == len(p.in) {
		p.in = p.in[:0]
		p.inOff = 0
	}
	return n, nil
}

// Write queues one ciphertext record. It never blocks.
func (p *pipe) Write(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return 0, net.ErrClosed
	}
	rec := make([]byte, len(b))
	copy(rec, b)
	p.out.Add(rec)
	p.outLen += len(rec)
	return len(b), nil
}

func (p *pipe) Close() error {
	p.mu.Lock()
	p.closed = true
	p.cond.Broadcast()
	p.mu.Unlock()
	return nil
}

func (p *pipe) LocalAddr() net.Addr                { return pipeAddr("local") }
func (p *pipe) RemoteAddr() net.Addr               { return p.remote }
func (p *pipe) SetDeadline(t time.Time) error      { return nil }
func (p *pipe) SetReadDeadline(t time.Time) error  { return nil }
func (p *pipe) SetWriteDeadline(t time.Time) error { return nil }

// feed appends ciphertext for the record processor. Caller holds mu.
func (p *pipe) feed(b []byte) {
	if p.finished || p.closed {
		return
	}
	p.in = append(p.in, b...)
}

// settled reports whether the record processor consumed everything it
// could. Caller holds mu.
func (p *pipe) settled() bool {
	return p.finished || (p.waiting && p.inOff == len(p.in))
}

// deliver appends decrypted bytes. It reports false when the plaintext limit
// would be exceeded.
func (p *pipe) deliver(b []byte) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.maxPlain > 0 && p.plain.Len()-p.plainOff+len(b) > p.maxPlain {
		return false
	}
	_, _ = p.plain.Write(b)
	return true
}

// finish records how the record processor ended.
func (p *pipe) finish(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.finished = true
	switch {
	case p.closed:
	case errors.Is(err, io.EOF):
		p.peerClosed = true
	default:
		p.err = err
	}
	p.cond.Broadcast()
}

// pending returns up to max queued records, the head trimmed by headOff.
// Caller holds mu.
func (p *pipe) pending(dst [][]byte, max int) [][]byte {
	n := p.out.Length()
	if n > max {
		n = max
	}
	for i := 0; i < n; i++ {
		rec := p.out.Get(i).([]byte)
		if i == 0 {
			rec = rec[p.headOff:]
		}
		dst = append(dst, rec)
	}
	return dst
}

// consume drops n written bytes from the front of the queue. Caller holds mu.
func (p *pipe) consume(n int) {
	p.outLen -= n
	for n > 0 && p.out.Length() > 0 {
		head := p.out.Peek().([]byte)
		left := len(head) - p.headOff
		if n < left {
			p.headOff += n
			return
		}
		n -= left
		p.out.Remove()
		p.headOff = 0
	}
}

type pipeAddr string

func (a pipeAddr) Network() string { return "tcp" }
func (a pipeAddr) String() string  { return string(a) }
