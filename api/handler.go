// File: api/handler.go
// Package api defines the capability interfaces shared by the reactor,
// the TLS session adapter and the request handler.
// License: Apache-2.0

package api

// RequestHandler turns one decrypted request into the response bytes to send back.
//
// Handle runs on the reactor goroutine, so it must not block on unrelated I/O.
// Reads it performs are expected to be fast and bounded. The request slice is
// only valid until Handle returns.
type RequestHandler interface {
	Handle(request []byte) []byte
}

// HandlerFunc adapts an ordinary function to RequestHandler.
type HandlerFunc func(request []byte) []byte

// Handle calls f(request).
func (f HandlerFunc) Handle(request []byte) []byte {
	return f(request)
}
