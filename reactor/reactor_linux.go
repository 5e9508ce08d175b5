//go:build linux
// +build linux

// File: reactor/reactor_linux.go
//
// Linux epoll(7)-based poller implementation and factory.

package reactor

import (
	"errors"
	"fmt"
	"time"

	"golang.org/x/sys/unix"
)

// epollPoller implements Poller using Linux epoll.
type epollPoller struct {
	epfd   int
	wakefd int
	raw    []unix.EpollEvent
}

// NewPoller creates an epoll instance with an eventfd waker registered under WakerToken.
func NewPoller() (Poller, error) {
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, fmt.Errorf("epoll create: %w", err)
	}
	wakefd, err := unix.Eventfd(0, unix.EFD_NONBLOCK|unix.EFD_CLOEXEC)
	if err != nil {
		_ = unix.Close(epfd)
		return nil, fmt.Errorf("eventfd: %w", err)
	}
	p := &epollPoller{epfd: epfd, wakefd: wakefd}
	if err := p.ctl(unix.EPOLL_CTL_ADD, wakefd, WakerToken, Readable, Level); err != nil {
		_ = unix.Close(wakefd)
		_ = unix.Close(epfd)
		return nil, err
	}
	return p, nil
}

func (p *epollPoller) Register(fd int, token Token, interest Interest, mode Mode) error {
	if token == WakerToken {
		return fmt.Errorf("epoll ctl add: token %d is reserved", token)
	}
	return p.ctl(unix.EPOLL_CTL_ADD, fd, token, interest, mode)
}

func (p *epollPoller) Reregister(fd int, token Token, interest Interest, mode Mode) error {
	if token == WakerToken {
		return fmt.Errorf("epoll ctl mod: token %d is reserved", token)
	}
	return p.ctl(unix.EPOLL_CTL_MOD, fd, token, interest, mode)
}

func (p *epollPoller) Deregister(fd int) error {
	if err := unix.EpollCtl(p.epfd, unix.EPOLL_CTL_DEL, fd, nil); err != nil {
		return fmt.Errorf("epoll ctl del: %w", err)
	}
	return nil
}

func (p *epollPoller) ctl(op int, fd int, token Token, interest Interest, mode Mode) error {
	ev := unix.EpollEvent{Events: epollFlags(interest, mode)}
	// The data word carries the token: low half in Fd, high half in Pad.
	ev.Fd = int32(uint32(token))
	ev.Pad = int32(uint32(token >> 32))
	if err := unix.EpollCtl(p.epfd, op, fd, &ev); err != nil {
		return fmt.Errorf("epoll ctl %s fd=%d: %w", opName(op), fd, err)
	}
	return nil
}

func (p *epollPoller) Wait(events []Event, timeout time.Duration) (int, error) {
	if len(events) == 0 {
		return 0, errors.New("epoll wait: empty event buffer")
	}
	if cap(p.raw) < len(events) {
		p.raw = make([]unix.EpollEvent, len(events))
	}
	raw := p.raw[:len(events)]

	ms := -1
	if timeout >= 0 {
		ms = int(timeout / time.Millisecond)
	}
	n, err := unix.EpollWait(p.epfd, raw, ms)
	if err != nil {
		if err == unix.EINTR {
			return 0, nil // interrupted by signal, normal
		}
		return 0, fmt.Errorf("epoll wait: %w", err)
	}

	count := 0
	for i := 0; i < n; i++ {
		token := Token(uint32(raw[i].Fd)) | Token(uint32(raw[i].Pad))<<32
		if token == WakerToken {
			p.drainWaker()
			continue
		}
		flags := raw[i].Events
		ev := Event{Token: token}
		if flags&(unix.EPOLLIN|unix.EPOLLPRI) != 0 {
			ev.Readable = true
		}
		if flags&unix.EPOLLOUT != 0 {
			ev.Writable = true
		}
		if flags&(unix.EPOLLERR|unix.EPOLLHUP|unix.EPOLLRDHUP) != 0 {
			ev.Hangup = true
			ev.Readable = true
		}
		events[count] = ev
		count++
	}
	return count, nil
}

func (p *epollPoller) Wake() error {
	var one = [8]byte{1, 0, 0, 0, 0, 0, 0, 0}
	if _, err := unix.Write(p.wakefd, one[:]); err != nil && err != unix.EAGAIN {
		return fmt.Errorf("eventfd write: %w", err)
	}
	return nil
}

func (p *epollPoller) drainWaker() {
	var buf [8]byte
	for {
		if _, err := unix.Read(p.wakefd, buf[:]); err != nil {
			return
		}
	}
}

// Close releases the waker and the epoll file descriptor.
func (p *epollPoller) Close() error {
	err1 := unix.Close(p.wakefd)
	err2 := unix.Close(p.epfd)
	return errors.Join(err1, err2)
}

func epollFlags(interest Interest, mode Mode) uint32 {
	var flags uint32 = unix.EPOLLRDHUP
	if interest.IsReadable() {
		flags |= unix.EPOLLIN
	}
	if interest.IsWritable() {
		flags |= unix.EPOLLOUT
	}
	if mode&Edge != 0 {
		flags |= unix.EPOLLET
	}
	if mode&OneShot != 0 {
		flags |= unix.EPOLLONESHOT
	}
	return flags
}

func opName(op int) string {
	switch op {
	case unix.EPOLL_CTL_ADD:
		return "add"
	case unix.EPOLL_CTL_MOD:
		return "mod"
	case unix.EPOLL_CTL_DEL:
		return "del"
	default:
		return "op"
	}
}
