// File: server/connection.go
// License: Apache-2.0
//
// Connection state machine: one accepted socket, its TLS session and the
// Open -> Closing -> Closed lifecycle, driven only by readiness events.

package server

import (
	"errors"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/valyala/bytebufferpool"

	"github.com/NunoDasNeves/mini-https-server/api"
	"github.com/NunoDasNeves/mini-https-server/reactor"
)

// connMode is the registration mode of every connection: level-triggered and
// one-shot, so a connection is re-armed after each event it handles.
const connMode = reactor.Level | reactor.OneShot

var requestPool bytebufferpool.Pool

// Connection is one accepted, TLS-wrapped peer stream. It is only touched by
// the reactor goroutine.
type Connection struct {
	token   reactor.Token
	id      uuid.UUID
	sock    api.Transport
	session api.Session
	writer  api.VectorWriter

	handler api.RequestHandler
	poller  reactor.Poller
	metrics Metrics
	log     zerolog.Logger

	closing   bool
	closed    bool
	broken    bool // the transport failed; queued ciphertext can never be flushed
	responded bool
	reason    string

	created    time.Time
	lastActive time.Time

	scratch []byte
}

// Token returns the connection's poller token.
func (c *Connection) Token() reactor.Token { return c.token }

// ID returns the connection's trace id.
func (c *Connection) ID() uuid.UUID { return c.id }

// Closing reports whether a close was requested.
func (c *Connection) Closing() bool { return c.closing }

// Closed reports whether the transport has been shut down.
func (c *Connection) Closed() bool { return c.closed }

// Reason returns why the connection started closing, or "".
func (c *Connection) Reason() string { return c.reason }

// State returns the lifecycle state.
func (c *Connection) State() api.ConnState {
	switch {
	case c.closed:
		return api.ConnClosed
	case c.closing:
		return api.ConnClosing
	default:
		return api.ConnOpen
	}
}

// Ready handles one readiness event, then either shuts the transport down or
// re-arms the one-shot registration.
func (c *Connection) Ready(ev reactor.Event, now time.Time) {
	if c.closed {
		return
	}
	c.lastActive = now

	if ev.Readable {
		c.readPump()
		c.dispatchPlaintext()
	}
	if ev.Writable {
		c.writePump()
	}

	if c.closing && (c.broken || !c.session.WantsWrite()) {
		c.shutdown()
		return
	}
	if err := c.poller.Reregister(c.sock.Fd(), c.token, c.interest(), connMode); err != nil {
		// Without a registration the socket is never reported again.
		c.log.Error().Err(err).Msg("re-arm failed")
		c.markClosing(ReasonRegister)
		c.shutdown()
	}
}

// readPump moves ciphertext from the socket into the session and processes it.
func (c *Connection) readPump() {
	n, err := c.session.ReadCiphertextFrom(c.sock)
	if err != nil {
		if api.IsWouldBlock(err) {
			return
		}
		c.log.Debug().Err(err).Msg("read error")
		c.broken = true
		c.markClosing(ReasonReadError)
		return
	}
	if n == 0 {
		c.log.Debug().Msg("eof")
		c.markClosing(ReasonPeerEOF)
		return
	}
	if err := c.session.ProcessBufferedRecords(); err != nil {
		c.log.Debug().Err(err).Msg("cannot process records")
		c.metrics.ProtocolError()
		c.markClosing(ReasonProtocolError)
	}
}

// writePump flushes queued ciphertext. Short writes stay queued in the session.
func (c *Connection) writePump() {
	if _, err := c.session.WriteCiphertextTo(c.writer); err != nil && !api.IsWouldBlock(err) {
		c.log.Debug().Err(err).Msg("write failed")
		c.broken = true
		c.markClosing(ReasonWriteError)
	}
}

// dispatchPlaintext drains decrypted bytes and answers the request, once.
func (c *Connection) dispatchPlaintext() {
	if c.responded {
		return
	}
	buf := requestPool.Get()
	defer requestPool.Put(buf)

	for {
		n, err := c.session.ReadPlaintext(c.scratch)
		if n > 0 {
			_, _ = buf.Write(c.scratch[:n])
		}
		if err != nil {
			if !api.IsWouldBlock(err) && !errors.Is(err, io.EOF) {
				c.log.Debug().Err(err).Msg("plaintext read failed")
			}
			break
		}
		if n == 0 {
			break
		}
	}
	if buf.Len() == 0 {
		return
	}

	resp := c.handler.Handle(buf.B)
	c.responded = true
	c.metrics.Response(statusOf(resp))
	if err := c.session.WritePlaintext(resp); err != nil {
		c.log.Debug().Err(err).Msg("queue response failed")
	}
	c.markClosing(ReasonResponded)
	c.session.SendCloseNotify()
}

// interest derives the registration from what the session needs. Readable
// is the fallback so an open connection is always watched for something.
func (c *Connection) interest() reactor.Interest {
	var in reactor.Interest
	if c.session.WantsRead() {
		in |= reactor.Readable
	}
	if c.session.WantsWrite() {
		in |= reactor.Writable
	}
	if in == 0 {
		in = reactor.Readable
	}
	return in
}

func (c *Connection) markClosing(reason string) {
	if !c.closing {
		c.closing = true
		c.reason = reason
	}
}

// shutdown ends the transport. The descriptor stays open until release.
func (c *Connection) shutdown() {
	if err := c.sock.Shutdown(); err != nil {
		c.log.Debug().Err(err).Msg("shutdown failed")
	}
	c.closing = true
	c.closed = true
}

// statusOf extracts the status code from an HTTP/1.1 status line.
func statusOf(resp []byte) string {
	const prefix = len("HTTP/1.1 ")
	if len(resp) < prefix+3 {
		return "unknown"
	}
	return string(resp[prefix : prefix+3])
}
