// Package fake
//
// Deterministic test doubles for the transport, TLS session and poller
// contracts. Each fake is scripted up front and records what the code under
// test did to it, so connection state machine tests need no sockets or TLS.
package fake
