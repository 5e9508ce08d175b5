// Package reactor provides the readiness poller the server's event loop is built on:
// an epoll implementation on Linux with level-triggered, edge-triggered and one-shot
// registrations, and an eventfd-backed waker to interrupt a blocked wait.
package reactor
