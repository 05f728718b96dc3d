// Package ring multiplexes a fixed set of persistent TCP or UDP connections
// over a few epoll event loops and offers callers a request/response
// exchange on top of them.
//
// A caller acquires a token, attaches its result record and response
// channel, writes the request and polls the channel. Exactly one result is
// delivered per request: the response, a timeout or a failure. The engine
// releases the token once the result is delivered.
package ring

import (
	"errors"
	"log/slog"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/bassosimone/runtimex"
	"github.com/wuyongjia/threadpool"
	"golang.org/x/sys/unix"

	"github.com/gotcp/ring/slotpool"
)

type Ring struct {
	Id string

	// OnReset and OnError run on the callback pool. Set them before Init.
	OnReset OnResetEvent
	OnError OnErrorEvent

	cfg        *Config
	logger     SLogger
	pool       *slotpool.Pool[Token]
	tokens     []*Token
	loops      []*Loop
	wheels     []*Wheel
	threadPool *threadpool.Pool

	resets   atomic.Uint64
	timeouts atomic.Uint64
	started  atomic.Bool
	closed   atomic.Bool

	statsStop chan struct{}
	statsDone chan struct{}
}

type target struct {
	sockaddr unix.Sockaddr
	family   int
}

// New builds a ring from cfg. Addresses are resolved here; nothing is
// connected until [Ring.Init].
func New(cfg *Config) (*Ring, error) {
	if cfg == nil {
		cfg = NewConfig(NETWORK_TCP)
	}
	var err = cfg.Validate()
	if err != nil {
		return nil, err
	}
	var targets = make([]target, len(cfg.Addresses))
	for i, address := range cfg.Addresses {
		if targets[i].sockaddr, targets[i].family, err = resolveAddress(address); err != nil {
			return nil, err
		}
	}

	var r = &Ring{
		Id:        NewRingID(),
		cfg:       cfg,
		logger:    cfg.Logger,
		pool:      slotpool.New[Token](cfg.Capacity),
		statsStop: make(chan struct{}),
		statsDone: make(chan struct{}),
	}
	r.loops = make([]*Loop, 0, cfg.Loops)
	for i := 0; i < cfg.Loops; i++ {
		var l *Loop
		if l, err = newLoop(r, i); err != nil {
			for _, l = range r.loops {
				l.stop()
			}
			return nil, err
		}
		r.loops = append(r.loops, l)
	}
	r.wheels = make([]*Wheel, cfg.Wheels)
	for i := range r.wheels {
		r.wheels[i] = NewWheel(cfg.WheelTick, cfg.WheelSize, cfg.Logger)
	}
	r.tokens = make([]*Token, cfg.Capacity)
	for i := range r.tokens {
		var t = &Token{
			Id:       i,
			Network:  cfg.Network,
			Address:  cfg.Addresses[i%len(cfg.Addresses)],
			sockaddr: targets[i%len(targets)].sockaddr,
			family:   targets[i%len(targets)].family,
			loop:     r.loops[i%len(r.loops)],
			wheel:    r.wheels[i%len(r.wheels)],
		}
		t.fd.Store(-1)
		t.loop.tokens = append(t.loop.tokens, t)
		runtimex.Assert(r.pool.Set(i, t))
		r.tokens[i] = t
	}
	return r, nil
}

// Init starts the event loops and opens every connection. Failures of a
// single slot are logged and retried by the token itself; they never fail
// Init.
func (r *Ring) Init() error {
	if r.closed.Load() {
		return ErrorRingClosed
	}
	if !r.started.CompareAndSwap(false, true) {
		return nil
	}
	if r.OnReset != nil || r.OnError != nil {
		r.threadPool = r.newThreadPool()
	}
	for _, l := range r.loops {
		l.start()
	}
	var err error
	for _, t := range r.tokens {
		if err = r.open(t); err != nil {
			r.logger.Warn("tokenOpenFailed", slog.String("ringId", r.Id), slog.Int("tokenId", t.Id),
				slog.Any("err", err))
		}
	}
	r.startStats()
	r.logger.Info("ringStarted", slog.String("ringId", r.Id), slog.String("network", r.cfg.Network),
		slog.Int("capacity", len(r.tokens)), slog.Int("loops", len(r.loops)), slog.Any("addresses", r.cfg.Addresses))
	return nil
}

func (r *Ring) open(t *Token) error {
	var fd, err = r.openSocket(t)
	if err != nil {
		r.logger.Error("socketFailed", slog.String("ringId", r.Id), slog.Int("tokenId", t.Id),
			slog.Any("err", err), slog.String("errClass", r.classify(err)))
		r.triggerOnError(t.Id, ERROR_SOCKET, err)
	} else {
		t.fd.Store(int32(fd))
	}
	if t.Network == NETWORK_TCP {
		t.setState(STATE_CONNECTING)
		return t.loop.enqueueRegistration(&registration{op: OP_CONNECT, token: t, gen: t.Generation()})
	}
	if err != nil {
		// retried through the datagram timeout path
		t.setState(STATE_DISCONNECTED)
		r.armDatagramRetry(t)
		return err
	}
	t.setState(STATE_CONNECTING)
	if err = unix.Connect(fd, t.sockaddr); err != nil {
		r.logger.Warn("connectFailed", slog.String("ringId", r.Id), slog.Int("tokenId", t.Id),
			slog.String("address", t.Address), slog.Any("err", err), slog.String("errClass", r.classify(err)))
		r.triggerOnError(t.Id, ERROR_CONNECT, err)
	}
	return t.loop.enqueueRegistration(&registration{op: OP_REGISTER, token: t, gen: t.Generation()})
}

// Acquire claims a ready token and returns its id, or NONE when none could
// be claimed within the configured attempts. It never blocks.
func (r *Ring) Acquire() int {
	var id, _ = r.TryAcquire()
	return id
}

// TryAcquire is Acquire telling why no token was claimed: ErrorRingClosed
// or ErrorPoolExhausted.
func (r *Ring) TryAcquire() (int, error) {
	if r.closed.Load() {
		return NONE, ErrorRingClosed
	}
	var id int
	for attempt := 0; attempt < r.cfg.AcquireAttempts; attempt++ {
		if id = r.pool.Acquire(); id == NONE {
			continue
		}
		if r.tokens[id].Ready() {
			return id, nil
		}
		r.pool.Release(id)
	}
	return NONE, ErrorPoolExhausted
}

// Release gives back a token acquired but not used for a request.
func (r *Ring) Release(id int) {
	r.pool.Release(id)
}

// Attach binds the caller's result and channel to the acquired token id.
// On success the token is no longer ready and the engine owns the slot
// until the result is delivered.
func (r *Ring) Attach(id int, result *Result, channel *ResponseChannel, hexMode bool) error {
	var t, err = r.token(id)
	if err != nil {
		return err
	}
	result.Token = id
	var p = &pending{result: result, channel: channel, hex: hexMode}
	if !t.exchange.attach(p) {
		return ErrorTokenBusy
	}
	if !t.ready.CompareAndSwap(true, false) {
		if t.exchange.takeIf(p) {
			return ErrorTokenNotReady
		}
		// a concurrent reset already failed the request onto the channel
		return nil
	}
	t.setState(STATE_IN_FLIGHT)
	return nil
}

// Write arms the response timeout of the request attached to token id and
// sends buf in full. It fails with ErrorTokenNotReady when no request is
// attached any more.
func (r *Ring) Write(id int, buf []byte) error {
	var t, err = r.token(id)
	if err != nil {
		return err
	}
	if r.closed.Load() {
		return ErrorRingClosed
	}
	var deadline = r.cfg.TimeNow().Add(r.cfg.ResponseTimeout)

	t.mu.Lock()
	// a reset may have failed the request since it was attached
	var p = t.exchange.peek()
	if p == nil {
		t.mu.Unlock()
		return ErrorTokenNotReady
	}
	var gen = t.Generation()
	t.armTimeout(t.wheel.Schedule(r.cfg.ResponseTimeout, func() {
		r.timedOut(t, TIMEOUT_RESPONSE, p, gen, TIMEOUT_RESPONSE.String())
	}))
	t.mu.Unlock()

	if err = r.send(t, p, gen, buf, deadline); err != nil {
		if errors.Is(err, ErrorTokenNotReady) {
			return err
		}
		r.logger.Warn("writeFailed", slog.String("ringId", r.Id), slog.Int("tokenId", id),
			slog.Any("err", err), slog.String("errClass", r.classify(err)))
		r.triggerOnError(id, ERROR_WRITE, err)
		return err
	}
	r.logger.Debug("requestWritten", slog.String("ringId", r.Id), slog.Int("tokenId", id), slog.Int("bytes", len(buf)))
	return nil
}

// send writes buf on the socket of t. A datagram goes out in one write, a
// stream until buf is drained. t.mu is held for each write only, so a reset
// can take the socket while send waits on a full buffer; send then stops
// with ErrorTokenNotReady.
func (r *Ring) send(t *Token, p *pending, gen uint64, buf []byte, deadline time.Time) error {
	var msg = buf
	for {
		var n, err = r.writeOnce(t, p, gen, msg)
		if err == nil {
			msg = msg[n:]
			if t.Network == NETWORK_UDP || len(msg) == 0 {
				return nil
			}
			continue
		}
		if err != unix.EAGAIN && err != unix.EINTR {
			return err
		}
		if r.cfg.TimeNow().After(deadline) {
			return unix.ETIMEDOUT
		}
		runtime.Gosched()
	}
}

func (r *Ring) writeOnce(t *Token, p *pending, gen uint64, msg []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.Generation() != gen || t.exchange.peek() != p {
		return 0, ErrorTokenNotReady
	}
	var fd = t.Fd()
	if fd < 0 {
		return 0, unix.EBADF
	}
	return unix.Write(fd, msg)
}

// Reset asks the owning loop to drop and re-dial token id. Requests queued
// while one is pending, or issued for an older generation, collapse into a
// single re-dial. Any request still attached is failed with reason as code.
func (r *Ring) Reset(id int, reason string) error {
	var t, err = r.token(id)
	if err != nil {
		return err
	}
	if r.closed.Load() {
		return ErrorRingClosed
	}
	if !t.resetQueued.CompareAndSwap(false, true) {
		r.logger.Debug("resetCoalesced", slog.String("ringId", r.Id), slog.Int("tokenId", id), slog.String("reason", reason))
		return nil
	}
	err = t.loop.enqueueRegistration(&registration{op: OP_RESET, token: t, gen: t.Generation(), reason: reason})
	if err != nil {
		t.resetQueued.Store(false)
		r.triggerOnError(id, ERROR_RESET, err)
	}
	return err
}

// Timeout fails the request in flight on token id as timed out.
func (r *Ring) Timeout(id int, reason string) error {
	var t, err = r.token(id)
	if err != nil {
		return err
	}
	if r.closed.Load() {
		return ErrorRingClosed
	}
	return r.timedOut(t, TIMEOUT_RESPONSE, t.exchange.peek(), t.Generation(), reason)
}

// timedOut routes a timeout to the stream loop queue, or handles a datagram
// one inline.
func (r *Ring) timedOut(t *Token, kind TimeoutKind, p *pending, gen uint64, reason string) error {
	if t.Network == NETWORK_UDP {
		r.datagramTimedOut(t, p, gen, reason)
		return nil
	}
	var err = t.loop.enqueueTimeout(&timeoutEvent{token: t, kind: kind, pending: p, gen: gen, reason: reason})
	if err != nil {
		r.logger.Warn("timeoutDropped", slog.String("ringId", r.Id), slog.Int("tokenId", t.Id),
			slog.String("reason", reason), slog.Any("err", err))
		r.triggerOnError(t.Id, ERROR_STOP, err)
	}
	return err
}

func (r *Ring) datagramTimedOut(t *Token, p *pending, gen uint64, reason string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if p == nil {
		// only a socket retry is scheduled without a request
		if t.State() == STATE_DISCONNECTED && t.Generation() == gen {
			r.resetDatagram(t, reason, nil)
		}
		return
	}
	if !t.exchange.takeIf(p) {
		return
	}
	r.timeouts.Add(1)
	p.result.fail(RESPONSE_CODE_BAD_GATEWAY, []byte(reason), r.cfg.TimeNow())
	p.channel.deliver(p.result)
	r.resetDatagram(t, reason, nil)
	r.pool.Release(t.Id)
}

// resetDatagram re-connects a datagram token in place and registers it
// again, inline when l is the owning loop, through its queue otherwise.
// The caller holds t.mu.
func (r *Ring) resetDatagram(t *Token, reason string, l *Loop) {
	r.noteReset(t, reason)
	t.setState(STATE_RESETTING)
	t.ready.Store(false)
	t.cancelTimeout()
	r.flush(t, reason)
	t.gen.Add(1)

	var fd = t.Fd()
	var err error
	if fd < 0 {
		if fd, err = r.openSocket(t); err != nil {
			r.logger.Error("socketFailed", slog.String("ringId", r.Id), slog.Int("tokenId", t.Id),
				slog.Any("err", err), slog.String("errClass", r.classify(err)))
			r.triggerOnError(t.Id, ERROR_SOCKET, err)
			t.setState(STATE_DISCONNECTED)
			r.armDatagramRetry(t)
			return
		}
		t.fd.Store(int32(fd))
	}
	if err = unix.Connect(fd, t.sockaddr); err != nil {
		r.logger.Warn("connectFailed", slog.String("ringId", r.Id), slog.Int("tokenId", t.Id),
			slog.String("address", t.Address), slog.Any("err", err), slog.String("errClass", r.classify(err)))
		r.triggerOnError(t.Id, ERROR_CONNECT, err)
	}
	t.setState(STATE_CONNECTING)
	if l != nil {
		l.registerDatagram(t)
	} else if err = t.loop.enqueueRegistration(&registration{op: OP_REGISTER, token: t, gen: t.Generation()}); err != nil {
		r.logger.Warn("registerDropped", slog.String("ringId", r.Id), slog.Int("tokenId", t.Id), slog.Any("err", err))
	}
}

// armDatagramRetry schedules another reset of a datagram token whose socket
// could not be opened.
func (r *Ring) armDatagramRetry(t *Token) {
	var gen = t.Generation()
	t.armTimeout(t.wheel.Schedule(r.cfg.ResponseTimeout, func() {
		r.datagramTimedOut(t, nil, gen, ERROR_SOCKET.String())
	}))
}

func (r *Ring) armConnectTimeout(t *Token) {
	var gen = t.Generation()
	t.armTimeout(t.wheel.Schedule(r.cfg.ConnectTimeout, func() {
		r.timedOut(t, TIMEOUT_CONNECT, nil, gen, TIMEOUT_CONNECT.String())
	}))
}

// flush fails the request attached to t, if any, and gives its slot back.
func (r *Ring) flush(t *Token, reason string) {
	var p = t.exchange.take()
	if p == nil {
		return
	}
	p.result.fail(reason, nil, r.cfg.TimeNow())
	p.channel.deliver(p.result)
	r.pool.Release(t.Id)
}

func (r *Ring) noteReset(t *Token, reason string) {
	r.resets.Add(1)
	r.logger.Info("tokenReset", slog.String("ringId", r.Id), slog.Int("tokenId", t.Id),
		slog.String("address", t.Address), slog.Uint64("gen", t.Generation()), slog.String("reason", reason))
	r.triggerOnReset(t.Id, reason)
}

func (r *Ring) classify(err error) string {
	return r.cfg.ErrClassifier.Classify(err)
}

// Destroy stops the loops and wheels, fails requests still in flight and
// closes every socket. It must not race with Acquire or Write.
func (r *Ring) Destroy() {
	if !r.closed.CompareAndSwap(false, true) {
		return
	}
	r.stopStats()
	for _, w := range r.wheels {
		w.Stop()
	}
	for _, l := range r.loops {
		l.stop()
	}
	for _, t := range r.tokens {
		t.cancelTimeout()
		t.ready.Store(false)
		r.flush(t, ErrorRingClosed.Error())
		closeTokenSocket(t)
		t.setState(STATE_DISCONNECTED)
	}
	r.pool = slotpool.New[Token](r.cfg.Capacity)
	r.logger.Info("ringDestroyed", slog.String("ringId", r.Id), slog.Uint64("resets", r.resets.Load()),
		slog.Uint64("timeouts", r.timeouts.Load()))
}

func (r *Ring) token(id int) (*Token, error) {
	if id < 0 || id >= len(r.tokens) {
		return nil, ErrorInvalidToken
	}
	return r.tokens[id], nil
}

// Get returns token id, nil when out of range.
func (r *Ring) Get(id int) *Token {
	var t, _ = r.token(id)
	return t
}

func (r *Ring) Stats() slotpool.Stats {
	return r.pool.Stats()
}

func (r *Ring) Capacity() int {
	return len(r.tokens)
}

func (r *Ring) Network() string {
	return r.cfg.Network
}

func (r *Ring) Closed() bool {
	return r.closed.Load()
}

// Resets counts the resets performed since the ring was built.
func (r *Ring) Resets() uint64 {
	return r.resets.Load()
}

// Timeouts counts the requests failed by a response timeout.
func (r *Ring) Timeouts() uint64 {
	return r.timeouts.Load()
}
