package ring

import (
	"runtime"
	"time"
)

const (
	DEFAULT_RESPONSE_CHANNEL_SIZE = 64
)

// Result is the terminal record of one request.
type Result struct {
	Token        int
	Success      bool
	ResponseCode string
	ResponseData []byte
	Start        time.Time
	End          time.Time

	// poolId survives clear; zero when the result was not pooled.
	poolId uint64
}

func (r *Result) Latency() time.Duration {
	if r.End.Before(r.Start) {
		return 0
	}
	return r.End.Sub(r.Start)
}

func (r *Result) clear() {
	r.Token = NONE
	r.Success = false
	r.ResponseCode = ""
	r.ResponseData = nil
	r.Start = time.Time{}
	r.End = time.Time{}
}

func (r *Result) fail(code string, data []byte, end time.Time) {
	r.Success = false
	r.ResponseCode = code
	r.ResponseData = data
	r.End = end
}

func (r *Result) succeed(data []byte, end time.Time) {
	r.Success = true
	r.ResponseCode = RESPONSE_CODE_OK
	r.ResponseData = data
	r.End = end
}

// ResponseChannel is the bounded queue through which event loops and
// timeouts hand results back to the goroutine that issued the request.
// Exactly one goroutine should read from it.
type ResponseChannel struct {
	c chan *Result
}

func NewResponseChannel(size int) *ResponseChannel {
	if size <= 0 {
		size = DEFAULT_RESPONSE_CHANNEL_SIZE
	}
	return &ResponseChannel{c: make(chan *Result, size)}
}

// Offer enqueues r without blocking and reports whether there was room.
func (ch *ResponseChannel) Offer(r *Result) bool {
	select {
	case ch.c <- r:
		return true
	default:
		return false
	}
}

// Poll dequeues a result without blocking, nil when there is none.
func (ch *ResponseChannel) Poll() *Result {
	select {
	case r := <-ch.c:
		return r
	default:
		return nil
	}
}

func (ch *ResponseChannel) Len() int {
	return len(ch.c)
}

// deliver spins until r is enqueued; results are never dropped.
func (ch *ResponseChannel) deliver(r *Result) {
	for !ch.Offer(r) {
		runtime.Gosched()
	}
}
