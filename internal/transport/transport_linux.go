// internal/transport/transport_linux.go
//go:build linux
// +build linux

//
// License: Apache-2.0
//
// Linux non-blocking TCP listener and stream socket on raw descriptors,
// with vectored writes via writev(2).

package transport

import (
	"fmt"
	"net"
	"strconv"

	"golang.org/x/sys/unix"

	"github.com/NunoDasNeves/mini-https-server/api"
)

// DefaultBacklog is the listen(2) backlog used when none is configured.
const DefaultBacklog = 1024

// Listener is a non-blocking listening TCP socket.
type Listener struct {
	fd   int
	addr string
}

// Listen creates a non-blocking listening socket bound to addr ("host:port").
// An empty host binds all IPv4 interfaces.
func Listen(addr string, backlog int) (*Listener, error) {
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return nil, fmt.Errorf("listen %s: %w", addr, err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil || port < 0 || port > 65535 {
		return nil, fmt.Errorf("listen %s: invalid port %q", addr, portStr)
	}
	if backlog <= 0 {
		backlog = DefaultBacklog
	}

	family := unix.AF_INET
	var sa unix.Sockaddr = &unix.SockaddrInet4{Port: port}
	if host != "" {
		ip := net.ParseIP(host)
		if ip == nil {
			ips, err := net.LookupIP(host)
			if err != nil || len(ips) == 0 {
				return nil, fmt.Errorf("listen %s: cannot resolve host %q", addr, host)
			}
			ip = ips[0]
		}
		if ip4 := ip.To4(); ip4 != nil {
			sa4 := &unix.SockaddrInet4{Port: port}
			copy(sa4.Addr[:], ip4)
			sa = sa4
		} else {
			family = unix.AF_INET6
			sa6 := &unix.SockaddrInet6{Port: port}
			copy(sa6.Addr[:], ip.To16())
			sa = sa6
		}
	}

	fd, err := unix.Socket(family, unix.SOCK_STREAM|unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC, unix.IPPROTO_TCP)
	if err != nil {
		return nil, fmt.Errorf("socket create: %w", err)
	}
	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		_ = unix.Close(fd)
		return nil, fmt.Errorf("setsockopt SO_REUSEADDR: %w", err)
	}
	if err := unix.Bind(fd, sa); err != nil {
		_ = unix.Close(fd)
		return nil, fmt.Errorf("bind %s: %w", addr, err)
	}
	if err := unix.Listen(fd, backlog); err != nil {
		_ = unix.Close(fd)
		return nil, fmt.Errorf("listen %s: %w", addr, err)
	}

	bound := addr
	if local, err := unix.Getsockname(fd); err == nil {
		bound = sockaddrString(local)
	}
	return &Listener{fd: fd, addr: bound}, nil
}

// Accept takes one pending connection. It returns api.ErrWouldBlock when the
// accept queue is empty.
func (l *Listener) Accept() (*Socket, error) {
	for {
		nfd, sa, err := unix.Accept4(l.fd, unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC)
		if err != nil {
			switch err {
			case unix.EINTR:
				continue
			case unix.EAGAIN:
				return nil, api.ErrWouldBlock
			}
			return nil, fmt.Errorf("accept: %w", err)
		}
		_ = unix.SetsockoptInt(nfd, unix.IPPROTO_TCP, unix.TCP_NODELAY, 1)
		return &Socket{fd: nfd, remote: sockaddrString(sa)}, nil
	}
}

// Fd returns the listening descriptor.
func (l *Listener) Fd() int { return l.fd }

// Addr returns the bound address; useful when listening on port 0.
func (l *Listener) Addr() string { return l.addr }

// Close closes the listening socket.
func (l *Listener) Close() error {
	if l.fd < 0 {
		return nil
	}
	err := unix.Close(l.fd)
	l.fd = -1
	return err
}

// Socket is a connected, non-blocking TCP stream. It implements api.Transport.
type Socket struct {
	fd     int
	remote string
}

// NewSocket wraps an already connected non-blocking descriptor.
func NewSocket(fd int, remote string) *Socket {
	return &Socket{fd: fd, remote: remote}
}

// Read reads from the socket. (0, nil) means the peer closed its side.
func (s *Socket) Read(p []byte) (int, error) {
	if s.fd < 0 {
		return 0, api.ErrTransportClosed
	}
	for {
		n, err := unix.Read(s.fd, p)
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			if err == unix.EAGAIN {
				return 0, api.ErrWouldBlock
			}
			return 0, fmt.Errorf("read: %w", err)
		}
		return n, nil
	}
}

// Write writes a single buffer.
func (s *Socket) Write(p []byte) (int, error) {
	if s.fd < 0 {
		return 0, api.ErrTransportClosed
	}
	for {
		n, err := unix.Write(s.fd, p)
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			if err == unix.EAGAIN {
				return 0, api.ErrWouldBlock
			}
			return 0, fmt.Errorf("write: %w", err)
		}
		return n, nil
	}
}

// Writev writes up to MaxIovecs buffers in one writev(2) call.
func (s *Socket) Writev(bufs [][]byte) (int, error) {
	if s.fd < 0 {
		return 0, api.ErrTransportClosed
	}
	if len(bufs) > MaxIovecs {
		bufs = bufs[:MaxIovecs]
	}
	for {
		n, err := unix.Writev(s.fd, bufs)
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			if err == unix.EAGAIN {
				return 0, api.ErrWouldBlock
			}
			return 0, fmt.Errorf("writev: %w", err)
		}
		return n, nil
	}
}

// Shutdown shuts down both directions of the stream.
func (s *Socket) Shutdown() error {
	if s.fd < 0 {
		return api.ErrTransportClosed
	}
	if err := unix.Shutdown(s.fd, unix.SHUT_RDWR); err != nil && err != unix.ENOTCONN {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// Close releases the descriptor. It is safe to call more than once.
func (s *Socket) Close() error {
	if s.fd < 0 {
		return nil
	}
	err := unix.Close(s.fd)
	s.fd = -1
	if err != nil {
		return fmt.Errorf("close: %w", err)
	}
	return nil
}

// Fd returns the socket descriptor, or -1 once closed.
func (s *Socket) Fd() int { return s.fd }

// RemoteAddr returns the peer address.
func (s *Socket) RemoteAddr() string { return s.remote }

func sockaddrString(sa unix.Sockaddr) string {
	switch a := sa.(type) {
	case *unix.SockaddrInet4:
		return net.JoinHostPort(net.IP(a.Addr[:]).String(), strconv.Itoa(a.Port))
	case *unix.SockaddrInet6:
		return net.JoinHostPort(net.IP(a.Addr[:]).String(), strconv.Itoa(a.Port))
	case *unix.SockaddrUnix:
		return a.Name
	default:
		return "unknown"
	}
}
