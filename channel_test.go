package ring

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExchangeDeliversOnce(t *testing.T) {
	const producers = 8
	for round := 0; round < 100; round++ {
		var e exchange
		var p = &pending{result: &Result{}}
		require.True(t, e.attach(p))
		require.False(t, e.attach(&pending{}))

		var wins atomic.Int32
		var wg sync.WaitGroup
		for i := 0; i < producers; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				var won bool
				if i%2 == 0 {
					won = e.take() != nil
				} else {
					won = e.takeIf(p)
				}
				if won {
					wins.Add(1)
				}
			}(i)
		}
		wg.Wait()
		assert.Equal(t, int32(1), wins.Load())
		assert.Nil(t, e.peek())
	}
}

func TestExchangeTakeIfIgnoresOtherRequest(t *testing.T) {
	var e exchange
	var first, second = &pending{}, &pending{}
	require.True(t, e.attach(second))
	assert.False(t, e.takeIf(first))
	assert.False(t, e.takeIf(nil))
	assert.Same(t, second, e.peek())
}

func TestResponseChannelDeliverWaitsForRoom(t *testing.T) {
	var ch = NewResponseChannel(1)
	var a, b = &Result{ResponseCode: "a"}, &Result{ResponseCode: "b"}
	require.True(t, ch.Offer(a))
	assert.False(t, ch.Offer(b))

	var delivered = make(chan struct{})
	go func() {
		ch.deliver(b)
		close(delivered)
	}()
	select {
	case <-delivered:
		t.Fatal("deliver must wait while the channel is full")
	case <-time.After(20 * time.Millisecond):
	}
	assert.Same(t, a, ch.Poll())
	<-delivered
	assert.Same(t, b, ch.Poll())
	assert.Nil(t, ch.Poll())
	assert.Zero(t, ch.Len())
}

func TestResultHelpers(t *testing.T) {
	var start = time.Unix(100, 0)
	var r = &Result{Start: start}
	r.succeed([]byte("ok"), start.Add(time.Second))
	assert.True(t, r.Success)
	assert.Equal(t, RESPONSE_CODE_OK, r.ResponseCode)
	assert.Equal(t, time.Second, r.Latency())

	r.fail("boom", nil, start.Add(-time.Second))
	assert.False(t, r.Success)
	assert.Zero(t, r.Latency())

	r.clear()
	assert.Equal(t, NONE, r.Token)
	assert.Empty(t, r.ResponseCode)
	assert.True(t, r.Start.IsZero())
}
