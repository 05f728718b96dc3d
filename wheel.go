package ring

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/RussellLuo/timingwheel"
)

const (
	TIMEOUT_PENDING   int32 = 0
	TIMEOUT_CANCELLED int32 = 1
	TIMEOUT_EXPIRED   int32 = 2
)

// Timeout is a task scheduled on a [*Wheel].
type Timeout struct {
	wheel *Wheel
	task  func()
	timer atomic.Pointer[timingwheel.Timer]
	state atomic.Int32
}

// Cancel stops the task from running. It reports false when the task has
// already fired or was cancelled before.
func (t *Timeout) Cancel() bool {
	if !t.state.CompareAndSwap(TIMEOUT_PENDING, TIMEOUT_CANCELLED) {
		return false
	}
	if timer := t.timer.Load(); timer != nil {
		timer.Stop()
	}
	if !t.wheel.stopped.Load() {
		t.wheel.pending.Add(-1)
	}
	return true
}

func (t *Timeout) Cancelled() bool {
	return t.state.Load() == TIMEOUT_CANCELLED
}

func (t *Timeout) Expired() bool {
	return t.state.Load() == TIMEOUT_EXPIRED
}

func (t *Timeout) fire() {
	if t.wheel.stopped.Load() {
		return
	}
	if !t.state.CompareAndSwap(TIMEOUT_PENDING, TIMEOUT_EXPIRED) {
		return
	}
	t.wheel.pending.Add(-1)
	defer func() {
		if v := recover(); v != nil {
			t.wheel.logger.Error("timeoutPanicked", slog.Any("panic", v))
		}
	}()
	t.task()
}

// Wheel is a hierarchical timing wheel. Schedule and Cancel are O(1); a
// task runs on its own goroutine no earlier than its deadline and at most
// about one tick late.
type Wheel struct {
	tw       *timingwheel.TimingWheel
	logger   SLogger
	pending  atomic.Int64
	stopped  atomic.Bool
	stopOnce sync.Once
}

// NewWheel returns a started wheel. tick must be at least 1ms.
func NewWheel(tick time.Duration, size int, logger SLogger) *Wheel {
	if tick < time.Millisecond {
		tick = DEFAULT_WHEEL_TICK
	}
	if size <= 0 {
		size = DEFAULT_WHEEL_SIZE
	}
	if logger == nil {
		logger = DefaultSLogger()
	}
	var w = &Wheel{
		tw:     timingwheel.NewTimingWheel(tick, int64(size)),
		logger: logger,
	}
	w.tw.Start()
	return w
}

// Schedule runs task once d has elapsed, unless the returned handle is
// cancelled first. After Stop the handle is returned already cancelled.
func (w *Wheel) Schedule(d time.Duration, task func()) *Timeout {
	var t = &Timeout{wheel: w, task: task}
	if w.stopped.Load() {
		t.state.Store(TIMEOUT_CANCELLED)
		return t
	}
	w.pending.Add(1)
	t.timer.Store(w.tw.AfterFunc(d, t.fire))
	return t
}

// Pending is the number of scheduled tasks that have neither fired nor been
// cancelled.
func (w *Wheel) Pending() int {
	return int(w.pending.Load())
}

// Stop halts the wheel. Tasks that have not fired yet never will.
func (w *Wheel) Stop() {
	w.stopOnce.Do(func() {
		w.stopped.Store(true)
		w.tw.Stop()
		w.pending.Store(0)
	})
}
