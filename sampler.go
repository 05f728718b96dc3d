package ring

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"runtime"
	"time"

	"github.com/wuyongjia/pool"
)

const (
	DEFAULT_STALE_AFTER = 10 * time.Millisecond
)

// Backoff tunes how a [*Sampler] waits.
type Backoff struct {
	// Interval is the pause between polls; zero yields the processor instead.
	Interval time.Duration

	// StaleAfter is how long acquiring may stall before the sampler returns
	// a late result of an earlier request instead; zero disables it.
	StaleAfter time.Duration
}

func DefaultBackoff() Backoff {
	return Backoff{StaleAfter: DEFAULT_STALE_AFTER}
}

// Sampler issues requests on the ring registered under Source. A sampler
// is meant to be driven by a single goroutine.
type Sampler struct {
	Source   string
	Registry *Registry
	Backoff  Backoff

	// Hex sends the hex-decoded payload and returns hex-encoded responses.
	Hex bool

	TimeNow func() time.Time

	channel *ResponseChannel
	results *pool.Pool
}

func NewSampler(registry *Registry, source string) *Sampler {
	return &Sampler{
		Source:   source,
		Registry: registry,
		Backoff:  DefaultBackoff(),
		TimeNow:  time.Now,
		channel:  NewResponseChannel(DEFAULT_RESPONSE_CHANNEL_SIZE),
		results:  newResultPool(DEFAULT_RESULT_POOL_SIZE),
	}
}

// Sample sends payload and waits for its result. The returned result is
// never nil; it may belong to an earlier request that completed late, in
// which case its Token and Start tell it apart.
func (s *Sampler) Sample(ctx context.Context, payload []byte) *Result {
	var result = s.getResult()
	var r = s.Registry.Get(s.Source)
	if r == nil {
		result.fail(fmt.Sprintf(ErrorTemplateNoRing, s.Source), nil, s.TimeNow())
		return result
	}
	var request = payload
	if s.Hex {
		var decoded, err = hex.DecodeString(string(payload))
		if err != nil {
			result.fail(err.Error(), nil, s.TimeNow())
			return result
		}
		request = decoded
	}

	var id int
	var err error
	var started = s.TimeNow()
	for {
		if err = ctx.Err(); err != nil {
			result.fail(err.Error(), nil, s.TimeNow())
			return result
		}
		if id, err = r.TryAcquire(); errors.Is(err, ErrorRingClosed) {
			result.fail(err.Error(), nil, s.TimeNow())
			return result
		}
		if err == nil {
			result.Start = s.TimeNow()
			if err = r.Attach(id, result, s.channel, s.Hex); err == nil {
				break
			}
			// the slot is still ours when nothing was attached
			if errors.Is(err, ErrorTokenBusy) || errors.Is(err, ErrorTokenNotReady) {
				r.Release(id)
			}
		}
		if s.Backoff.StaleAfter > 0 && s.TimeNow().Sub(started) > s.Backoff.StaleAfter {
			if stale := s.channel.Poll(); stale != nil {
				s.Recycle(result)
				return stale
			}
		}
		s.pause()
	}

	if err = r.Write(id, request); err != nil && !errors.Is(err, ErrorTokenNotReady) {
		r.Reset(id, err.Error())
	}

	for {
		if got := s.channel.Poll(); got != nil {
			return got
		}
		if err = ctx.Err(); err != nil {
			var abandoned = s.getResult()
			abandoned.Token = id
			abandoned.Start = result.Start
			abandoned.fail(err.Error(), nil, s.TimeNow())
			return abandoned
		}
		s.pause()
	}
}

// Pending is the number of results delivered but not yet returned.
func (s *Sampler) Pending() int {
	return s.channel.Len()
}

func (s *Sampler) pause() {
	if s.Backoff.Interval > 0 {
		time.Sleep(s.Backoff.Interval)
		return
	}
	runtime.Gosched()
}
