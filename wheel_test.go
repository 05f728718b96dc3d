package ring

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWheelFiresAfterDeadline(t *testing.T) {
	var w = NewWheel(time.Millisecond, 8, nil)
	defer w.Stop()

	var cases = []time.Duration{0, 5 * time.Millisecond, 30 * time.Millisecond}
	for _, d := range cases {
		var fired = make(chan time.Duration, 1)
		var start = time.Now()
		var timeout = w.Schedule(d, func() {
			fired <- time.Since(start)
		})
		select {
		case elapsed := <-fired:
			assert.GreaterOrEqual(t, elapsed, d)
			assert.True(t, timeout.Expired())
			assert.False(t, timeout.Cancel())
		case <-time.After(d + 2*time.Second):
			t.Fatalf("timeout of %s never fired", d)
		}
	}
}

func TestWheelCancel(t *testing.T) {
	var w = NewWheel(time.Millisecond, 16, nil)
	defer w.Stop()

	var fired atomic.Int32
	var timeout = w.Schedule(20*time.Millisecond, func() { fired.Add(1) })
	require.True(t, timeout.Cancel())
	assert.False(t, timeout.Cancel())
	assert.True(t, timeout.Cancelled())

	var other = w.Schedule(20*time.Millisecond, func() { fired.Add(10) })
	require.Eventually(t, func() bool { return fired.Load() == 10 }, 2*time.Second, time.Millisecond)
	assert.True(t, other.Expired())
	require.Eventually(t, func() bool { return w.Pending() == 0 }, time.Second, time.Millisecond)
}

func TestWheelStopCancelsPending(t *testing.T) {
	var w = NewWheel(time.Millisecond, 16, nil)
	var fired atomic.Bool
	var timeout = w.Schedule(20*time.Millisecond, func() { fired.Store(true) })
	w.Stop()
	w.Stop()

	time.Sleep(50 * time.Millisecond)
	assert.False(t, fired.Load())
	assert.False(t, timeout.Expired())
	assert.Zero(t, w.Pending())
	assert.True(t, w.Schedule(time.Millisecond, func() {}).Cancelled())
}

func TestWheelLogsPanickingTask(t *testing.T) {
	var logger, records = newLogRecorder()
	var w = NewWheel(time.Millisecond, 4, logger)
	defer w.Stop()

	w.Schedule(time.Millisecond, func() { panic("boom") })
	var after = w.Schedule(2*time.Millisecond, func() {})
	require.Eventually(t, after.Expired, 2*time.Second, time.Millisecond)
	require.Eventually(t, func() bool { return records.count("timeoutPanicked") == 1 }, 2*time.Second, time.Millisecond)
}
