//go:build !linux
// +build !linux

// File: reactor/reactor_stub.go
//
// Stub implementation for unsupported platforms.

package reactor

import (
	"fmt"

	"github.com/NunoDasNeves/mini-https-server/api"
)

// NewPoller returns an error for unsupported platforms.
func NewPoller() (Poller, error) {
	return nil, fmt.Errorf("reactor: epoll poller: %w", api.ErrNotSupported)
}
