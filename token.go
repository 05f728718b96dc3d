package ring

import (
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sys/unix"
)

type TokenState int32

const (
	STATE_DISCONNECTED TokenState = 0
	STATE_CONNECTING   TokenState = 1
	STATE_READY        TokenState = 2
	STATE_IN_FLIGHT    TokenState = 3
	STATE_RESETTING    TokenState = 4
)

func (s TokenState) String() string {
	switch s {
	case STATE_DISCONNECTED:
		return "DISCONNECTED"
	case STATE_CONNECTING:
		return "CONNECTING"
	case STATE_READY:
		return "READY"
	case STATE_IN_FLIGHT:
		return "IN_FLIGHT"
	case STATE_RESETTING:
		return "RESETTING"
	}
	return "UNKNOWN"
}

// Token is one reusable connection. It is created once per slot and mutated
// in place for every request.
type Token struct {
	Id      int
	Network string
	Address string

	sockaddr unix.Sockaddr
	family   int
	loop     *Loop
	wheel    *Wheel

	fd          atomic.Int32
	ready       atomic.Bool
	state       atomic.Int32
	gen         atomic.Uint64
	resetQueued atomic.Bool
	timeout     atomic.Pointer[Timeout]
	exchange    exchange

	// only touched by the owning loop
	connectStart time.Time

	// held while the socket is written or swapped, and around every
	// datagram delivery
	mu sync.Mutex
}

func (t *Token) Fd() int {
	return int(t.fd.Load())
}

func (t *Token) Ready() bool {
	return t.ready.Load()
}

func (t *Token) State() TokenState {
	return TokenState(t.state.Load())
}

// Generation counts the re-dials of the token.
func (t *Token) Generation() uint64 {
	return t.gen.Load()
}

// InFlight reports whether a request is attached and awaiting its result.
func (t *Token) InFlight() bool {
	return t.exchange.peek() != nil
}

func (t *Token) setState(s TokenState) {
	t.state.Store(int32(s))
}

func (t *Token) markReady() {
	t.setState(STATE_READY)
	t.ready.Store(true)
}

// armTimeout installs timeout as the only active one, cancelling the previous.
func (t *Token) armTimeout(timeout *Timeout) {
	var old = t.timeout.Swap(timeout)
	if old != nil {
		old.Cancel()
	}
}

func (t *Token) cancelTimeout() {
	var old = t.timeout.Swap(nil)
	if old != nil {
		old.Cancel()
	}
}
