// File: reactor/reactor.go
//
// Platform-neutral readiness poller interface.

package reactor

import (
	"fmt"
	"strings"
	"time"
)

// Token identifies a registration. It is returned with every event for that registration.
type Token uint64

// Reserved tokens. Connection tokens start at FirstConnToken.
const (
	ListenerToken  Token = 0
	WakerToken     Token = 1
	FirstConnToken Token = 2
)

// Interest is the set of readiness kinds a registration asks for.
type Interest uint8

const (
	Readable Interest = 1 << iota
	Writable
)

// IsReadable reports whether i includes read readiness.
func (i Interest) IsReadable() bool { return i&Readable != 0 }

// IsWritable reports whether i includes write readiness.
func (i Interest) IsWritable() bool { return i&Writable != 0 }

func (i Interest) String() string {
	var parts []string
	if i.IsReadable() {
		parts = append(parts, "readable")
	}
	if i.IsWritable() {
		parts = append(parts, "writable")
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, "|")
}

// Mode selects the triggering semantics of a registration.
type Mode uint8

const (
	// Level reports readiness for as long as the condition holds.
	Level Mode = 0
	// Edge reports readiness only on transitions.
	Edge Mode = 1 << iota
	// OneShot disables the registration after one event until it is re-armed
	// with Reregister.
	OneShot
)

// Event is one readiness notification.
type Event struct {
	Token    Token
	Readable bool
	Writable bool
	// Hangup is set for peer hang-up and socket errors. Such events are also
	// reported as Readable so that a read observes the failure.
	Hangup bool
}

func (e Event) String() string {
	return fmt.Sprintf("event{token=%d readable=%t writable=%t hangup=%t}", e.Token, e.Readable, e.Writable, e.Hangup)
}

// Poller multiplexes readiness notifications for many descriptors.
//
// A Poller is driven by a single goroutine; only Wake may be called from
// other goroutines.
type Poller interface {
	// Register adds fd under token with the given interest and mode.
	Register(fd int, token Token, interest Interest, mode Mode) error

	// Reregister changes the interest and mode of fd. For OneShot
	// registrations this re-arms the descriptor.
	Reregister(fd int, token Token, interest Interest, mode Mode) error

	// Deregister removes fd.
	Deregister(fd int) error

	// Wait blocks until at least one event is ready, the timeout expires or
	// Wake is called. A negative timeout blocks indefinitely. Interrupted
	// waits return zero events and no error.
	Wait(events []Event, timeout time.Duration) (int, error)

	// Wake interrupts a blocked Wait.
	Wake() error

	// Close releases the poller.
	Close() error
}
