// Package fake
// License: Apache-2.0
//
// Recording poller.

package fake

import (
	"fmt"
	"sync"
	"time"

	"github.com/NunoDasNeves/mini-https-server/reactor"
)

// Registration is the current state of one fd in a fake Poller.
type Registration struct {
	Token    reactor.Token
	Interest reactor.Interest
	Mode     reactor.Mode
}

// Call records one registration change.
type Call struct {
	Op       string // "register", "reregister" or "deregister"
	Fd       int
	Token    reactor.Token
	Interest reactor.Interest
	Mode     reactor.Mode
}

// Poller is a fake reactor.Poller. Events are pushed by the test and handed
// out by Wait; registrations are recorded, not acted upon.
type Poller struct {
	mu      sync.Mutex
	regs    map[int]Registration
	calls   []Call
	pending []reactor.Event
	signal  chan struct{}
	closed  bool

	RegisterErr   error
	ReregisterErr error
}

var _ reactor.Poller = (*Poller)(nil)

// NewPoller returns an empty fake poller.
func NewPoller() *Poller {
	return &Poller{
		regs:   make(map[int]Registration),
		signal: make(chan struct{}, 1),
	}
}

func (p *Poller) Register(fd int, token reactor.Token, interest reactor.Interest, mode reactor.Mode) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, Call{"register", fd, token, interest, mode})
	if p.RegisterErr != nil {
		return p.RegisterErr
	}
	if _, ok := p.regs[fd]; ok {
		return fmt.Errorf("fake poller: fd %d already registered", fd)
	}
	p.regs[fd] = Registration{token, interest, mode}
	return nil
}

func (p *Poller) Reregister(fd int, token reactor.Token, interest reactor.Interest, mode reactor.Mode) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, Call{"reregister", fd, token, interest, mode})
	if p.ReregisterErr != nil {
		return p.ReregisterErr
	}
	if _, ok := p.regs[fd]; !ok {
		return fmt.Errorf("fake poller: fd %d not registered", fd)
	}
	p.regs[fd] = Registration{token, interest, mode}
	return nil
}

func (p *Poller) Deregister(fd int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, Call{Op: "deregister", Fd: fd})
	if _, ok := p.regs[fd]; !ok {
		return fmt.Errorf("fake poller: fd %d not registered", fd)
	}
	delete(p.regs, fd)
	return nil
}

// Push queues events for the next Wait and wakes a blocked one.
func (p *Poller) Push(events ...reactor.Event) {
	p.mu.Lock()
	p.pending = append(p.pending, events...)
	p.mu.Unlock()
	p.notify()
}

// Wait hands out pushed events. With nothing pending it blocks until Push,
// Wake or the timeout; a negative timeout waits indefinitely.
func (p *Poller) Wait(events []reactor.Event, timeout time.Duration) (int, error) {
	if n := p.take(events); n > 0 {
		return n, nil
	}
	var after <-chan time.Time
	if timeout >= 0 {
		t := time.NewTimer(timeout)
		defer t.Stop()
		after = t.C
	}
	select {
	case <-p.signal:
	case <-after:
	}
	return p.take(events), nil
}

func (p *Poller) take(events []reactor.Event) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := copy(events, p.pending)
	p.pending = p.pending[n:]
	return n
}

func (p *Poller) notify() {
	select {
	case p.signal <- struct{}{}:
	default:
	}
}

func (p *Poller) Wake() error {
	p.notify()
	return nil
}

func (p *Poller) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

// Registration returns the current registration of fd.
func (p *Poller) Registration(fd int) (Registration, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	r, ok := p.regs[fd]
	return r, ok
}

// Calls returns a copy of every registration change so far.
func (p *Poller) Calls() []Call {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Call(nil), p.calls...)
}

// Closed reports whether Close was called.
func (p *Poller) Closed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}
