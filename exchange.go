package ring

import (
	"sync/atomic"
)

// pending links an in-flight request to the caller waiting for it.
type pending struct {
	result  *Result
	channel *ResponseChannel
	hex     bool
}

// exchange is a single-slot cell holding the in-flight request of a token.
//
// It is filled once by the caller and cleared once by whichever producer
// gets there first: the event loop on a response, a timeout on expiry, or a
// reset. Producers that lose the race observe an empty cell and do nothing.
type exchange struct {
	cell atomic.Pointer[pending]
}

func (e *exchange) attach(p *pending) bool {
	return e.cell.CompareAndSwap(nil, p)
}

func (e *exchange) peek() *pending {
	return e.cell.Load()
}

// take clears the cell and returns what it held.
func (e *exchange) take() *pending {
	return e.cell.Swap(nil)
}

// takeIf clears the cell only while it still holds p.
func (e *exchange) takeIf(p *pending) bool {
	return p != nil && e.cell.CompareAndSwap(p, nil)
}
