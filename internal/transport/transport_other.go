//go:build !linux
// +build !linux

// File: internal/transport/transport_other.go
//
// Stub transport for platforms without the raw-descriptor implementation.

package transport

import (
	"fmt"

	"github.com/NunoDasNeves/mini-https-server/api"
)

const DefaultBacklog = 1024

type Listener struct{}

func Listen(addr string, backlog int) (*Listener, error) {
	return nil, fmt.Errorf("listen %s: %w", addr, api.ErrNotSupported)
}

func (l *Listener) Accept() (*Socket, error) { return nil, api.ErrNotSupported }
func (l *Listener) Fd() int                  { return -1 }
func (l *Listener) Addr() string             { return "" }
func (l *Listener) Close() error             { return nil }

type Socket struct{}

func (s *Socket) Read(p []byte) (int, error)        { return 0, api.ErrNotSupported }
func (s *Socket) Write(p []byte) (int, error)       { return 0, api.ErrNotSupported }
func (s *Socket) Writev(bufs [][]byte) (int, error) { return 0, api.ErrNotSupported }
func (s *Socket) Shutdown() error                   { return api.ErrNotSupported }
func (s *Socket) Close() error                      { return nil }
func (s *Socket) Fd() int                           { return -1 }
func (s *Socket) RemoteAddr() string                { return "" }
