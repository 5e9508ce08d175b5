// File: internal/transport/doc.go
// Package transport
// License: Apache-2.0
//
// Non-blocking stream sockets driven by the reactor. Listener and Socket work
// directly on raw descriptors so they can be registered with the epoll poller;
// would-block conditions surface as api.ErrWouldBlock instead of blocking.
// Vectored writes go through writev(2); Sequential provides a portable fallback.

package transport
