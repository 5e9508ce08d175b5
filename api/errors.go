// File: api/errors.go
// License: Apache-2.0
//
// Common error values shared by the reactor, transports and TLS sessions.

package api

import (
	"errors"

	"golang.org/x/sys/unix"
)

// Common errors used across the server.
var (
	// ErrWouldBlock reports that a non-blocking operation could not make progress.
	// It is an expected control-flow outcome, never a failure.
	ErrWouldBlock = errors.New("operation would block")

	ErrTransportClosed = errors.New("transport is closed")
	ErrSessionClosed   = errors.New("tls session is closed")
	ErrRequestTooLarge = errors.New("request exceeds the plaintext limit")
	ErrNotSupported    = errors.New("operation not supported")
	ErrInvalidArgument = errors.New("invalid argument")
)

// IsWouldBlock reports whether err is a would-block condition, either the
// ErrWouldBlock sentinel or a raw EAGAIN/EWOULDBLOCK errno.
func IsWouldBlock(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, ErrWouldBlock) ||
		errors.Is(err, unix.EAGAIN) ||
		errors.Is(err, unix.EWOULDBLOCK)
}
