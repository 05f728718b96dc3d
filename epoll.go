package ring

import (
	"log/slog"
	"runtime"
	"sync"
	"sync/atomic"

	"golang.org/x/sys/unix"
	"golang.org/x/text/encoding"
)

// Loop owns one epoll instance and the sockets of the tokens bound to it.
//
// Only the loop goroutine touches the epoll fd, the scratch buffer and the
// fd map. Other goroutines talk to it through the registration and timeout
// queues and wake it through the eventfd.
type Loop struct {
	Id int

	ring    *Ring
	logger  SLogger
	epfd    int
	wakefd  int
	buffer  []byte
	events  []unix.EpollEvent
	decoder *encoding.Decoder

	conns  map[int]*Token
	tokens []*Token

	registrations    *boundedQueue
	timeouts         *boundedQueue
	regsPerIteration int
	pollTimeout      int

	running   atomic.Bool
	stopped   atomic.Bool
	done      chan struct{}
	closeOnce sync.Once
}

func newLoop(r *Ring, id int) (*Loop, error) {
	var decoder, err = newDecoder(r.cfg.Charset)
	if err != nil {
		return nil, err
	}
	var epfd int
	if epfd, err = unix.EpollCreate1(unix.EPOLL_CLOEXEC); err != nil {
		return nil, err
	}
	var wakefd int
	if wakefd, err = unix.Eventfd(0, unix.EFD_NONBLOCK|unix.EFD_CLOEXEC); err != nil {
		unix.Close(epfd)
		return nil, err
	}
	var event = unix.EpollEvent{Events: unix.EPOLLIN, Fd: int32(wakefd)}
	if err = unix.EpollCtl(epfd, unix.EPOLL_CTL_ADD, wakefd, &event); err != nil {
		unix.Close(wakefd)
		unix.Close(epfd)
		return nil, err
	}
	var l = &Loop{
		Id:               id,
		ring:             r,
		logger:           r.logger,
		epfd:             epfd,
		wakefd:           wakefd,
		buffer:           make([]byte, r.cfg.BufferSize),
		events:           make([]unix.EpollEvent, r.cfg.EpollEvents),
		decoder:          decoder,
		conns:            make(map[int]*Token),
		registrations:    newBoundedQueue(r.cfg.RegisterQueueLength),
		regsPerIteration: r.cfg.RegsPerIteration,
		pollTimeout:      int(r.cfg.PollTimeout.Milliseconds()),
		done:             make(chan struct{}),
	}
	if r.cfg.Network == NETWORK_TCP {
		l.timeouts = newBoundedQueue(r.cfg.TimeoutQueueLength)
	}
	return l, nil
}

func (l *Loop) start() {
	if l.running.CompareAndSwap(false, true) {
		go l.run()
	}
}

// stop terminates the loop goroutine, waits for it and closes the epoll and
// eventfd descriptors. Token sockets are left to the ring.
func (l *Loop) stop() {
	l.stopped.Store(true)
	if l.running.Load() {
		l.wakeup()
		<-l.done
	}
	l.closeOnce.Do(func() {
		unix.Close(l.epfd)
		unix.Close(l.wakefd)
	})
}

// Stopped reports whether the loop goroutine is gone, either stopped or
// failed on its epoll instance.
func (l *Loop) Stopped() bool {
	return l.stopped.Load()
}

// enqueueRegistration waits out ErrorQueueFull until the loop drains its
// queue or stops.
func (l *Loop) enqueueRegistration(reg *registration) error {
	for err := l.registrations.offer(reg); err != nil; err = l.registrations.offer(reg) {
		if l.stopped.Load() {
			return ErrorLoopStopped
		}
		l.wakeup()
		runtime.Gosched()
	}
	if l.registrations.length() >= l.regsPerIteration/2 {
		l.wakeup()
	}
	return nil
}

func (l *Loop) enqueueTimeout(ev *timeoutEvent) error {
	for err := l.timeouts.offer(ev); err != nil; err = l.timeouts.offer(ev) {
		if l.stopped.Load() {
			return ErrorLoopStopped
		}
		l.wakeup()
		runtime.Gosched()
	}
	l.wakeup()
	return nil
}

var wakeupValue = []byte{1, 0, 0, 0, 0, 0, 0, 0}

func (l *Loop) wakeup() {
	if _, err := unix.Write(l.wakefd, wakeupValue); err != nil && err != unix.EAGAIN {
		l.logger.Debug("wakeupFailed", slog.Int("loopId", l.Id), slog.Any("err", err))
	}
}

func (l *Loop) drainWakeup() {
	var buf [8]byte
	unix.Read(l.wakefd, buf[:])
}
