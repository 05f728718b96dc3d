package ring

import (
	"log/slog"

	"golang.org/x/sys/unix"
)

func (l *Loop) registerAction() {
	var limit = l.regsPerIteration
	var v interface{}
	var ok bool
	for i := 0; i < limit; i++ {
		if v, ok = l.registrations.poll(); !ok {
			break
		}
		var reg = v.(*registration)
		switch reg.op {
		case OP_CONNECT:
			l.dial(reg.token)
		case OP_REGISTER:
			l.registerDatagram(reg.token)
		case OP_RESET:
			reg.token.resetQueued.Store(false)
			if reg.token.Generation() != reg.gen {
				l.logger.Debug("resetSkipped", slog.String("ringId", l.ring.Id), slog.Int("tokenId", reg.token.Id),
					slog.String("reason", reg.reason))
				continue
			}
			l.reset(reg.token, reg.reason)
		}
	}
}

func (l *Loop) timeoutAction() {
	var limit = l.regsPerIteration
	var v interface{}
	var ok bool
	for i := 0; i < limit; i++ {
		if v, ok = l.timeouts.poll(); !ok {
			break
		}
		var ev = v.(*timeoutEvent)
		var t = ev.token
		if ev.pending != nil {
			if !t.exchange.takeIf(ev.pending) {
				continue
			}
			l.ring.timeouts.Add(1)
			ev.pending.result.fail(RESPONSE_CODE_GATEWAY_TIMEOUT, []byte(ev.reason), l.ring.cfg.TimeNow())
			ev.pending.channel.deliver(ev.pending.result)
			l.reset(t, ev.reason)
			l.ring.pool.Release(t.Id)
			continue
		}
		// a connect timeout outlived by its connection is stale
		if ev.kind != TIMEOUT_CONNECT || t.Generation() != ev.gen {
			continue
		}
		if state := t.State(); state != STATE_CONNECTING && state != STATE_DISCONNECTED {
			continue
		}
		l.reset(t, ev.reason)
	}
}

// dial registers the token socket for connect and read readiness, arms the
// connect timeout and starts the non-blocking connect.
func (l *Loop) dial(t *Token) {
	var fd = t.Fd()
	t.setState(STATE_CONNECTING)
	t.connectStart = l.ring.cfg.TimeNow()
	l.ring.armConnectTimeout(t)
	if fd < 0 {
		t.setState(STATE_DISCONNECTED)
		return
	}
	var err = l.add(fd, unix.EPOLLIN|unix.EPOLLOUT|unix.EPOLLRDHUP)
	if err != nil {
		l.logger.Warn("registerFailed", slog.String("ringId", l.ring.Id), slog.Int("tokenId", t.Id),
			slog.Int("fd", fd), slog.Any("err", err))
		l.ring.triggerOnError(t.Id, ERROR_REGISTER, err)
		l.connectFailed(t, err)
		return
	}
	l.conns[fd] = t
	err = unix.Connect(fd, t.sockaddr)
	if err != nil && err != unix.EINPROGRESS && err != unix.EALREADY && err != unix.EINTR {
		l.connectFailed(t, err)
	}
}

func (l *Loop) connectAction(t *Token, events uint32) {
	var fd = t.Fd()
	var soerr, err = unix.GetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_ERROR)
	if err == nil && soerr != 0 {
		err = unix.Errno(soerr)
	}
	if err == nil && events&unix.EPOLLOUT == 0 {
		return
	}
	if err != nil {
		l.connectFailed(t, err)
		return
	}
	if err = l.mod(fd, unix.EPOLLIN|unix.EPOLLRDHUP); err != nil {
		l.connectFailed(t, err)
		return
	}
	t.cancelTimeout()
	t.markReady()
	l.logger.Info("tokenConnected", slog.String("ringId", l.ring.Id), slog.Int("tokenId", t.Id),
		slog.Int("fd", fd), slog.String("address", t.Address), slog.Uint64("gen", t.Generation()),
		slog.Duration("elapsed", l.ring.cfg.TimeNow().Sub(t.connectStart)))
}

// connectFailed closes the socket and leaves the re-dial to the connect
// timeout still armed for this generation.
func (l *Loop) connectFailed(t *Token, err error) {
	l.logger.Warn("connectFailed", slog.String("ringId", l.ring.Id), slog.Int("tokenId", t.Id),
		slog.String("address", t.Address), slog.Any("err", err), slog.String("errClass", l.ring.classify(err)))
	l.ring.triggerOnError(t.Id, ERROR_CONNECT, err)
	t.mu.Lock()
	l.closeSocket(t)
	t.mu.Unlock()
	t.setState(STATE_DISCONNECTED)
}

func (l *Loop) readAction(t *Token) {
	var n, err = unix.Read(t.Fd(), l.buffer)
	if err == unix.EAGAIN || err == unix.EINTR {
		return
	}
	if err != nil {
		l.logger.Warn("readFailed", slog.String("ringId", l.ring.Id), slog.Int("tokenId", t.Id),
			slog.Any("err", err), slog.String("errClass", l.ring.classify(err)))
		l.ring.triggerOnError(t.Id, ERROR_READ, err)
		l.reset(t, err.Error())
		return
	}
	if n == 0 {
		l.reset(t, "end of file")
		return
	}
	l.complete(t, l.buffer[:n])
}

func (l *Loop) readDatagramAction(t *Token) {
	t.mu.Lock()
	defer t.mu.Unlock()
	var n, _, err = unix.Recvfrom(t.Fd(), l.buffer, 0)
	if err == unix.EAGAIN || err == unix.EINTR {
		return
	}
	if err != nil {
		l.logger.Warn("readFailed", slog.String("ringId", l.ring.Id), slog.Int("tokenId", t.Id),
			slog.Any("err", err), slog.String("errClass", l.ring.classify(err)))
		l.ring.triggerOnError(t.Id, ERROR_READ, err)
		l.ring.resetDatagram(t, err.Error(), l)
		return
	}
	l.complete(t, l.buffer[:n])
}

// complete hands data to the request attached to t. Data nobody waits for
// is logged and dropped without touching the slot.
func (l *Loop) complete(t *Token, data []byte) {
	var p = t.exchange.take()
	if p == nil {
		l.logger.Warn("responseWithoutRequest", slog.String("ringId", l.ring.Id), slog.Int("tokenId", t.Id),
			slog.Int("bytes", len(data)))
		return
	}
	t.cancelTimeout()
	p.result.succeed(l.decode(data, p.hex), l.ring.cfg.TimeNow())
	p.channel.deliver(p.result)
	t.markReady()
	l.ring.pool.Release(t.Id)
}

// reset drops the token connection and dials again. It runs on the loop
// goroutine only. The slot is released only when a request was attached;
// a caller holding it between Acquire and Attach keeps it.
func (l *Loop) reset(t *Token, reason string) {
	if t.Network == NETWORK_UDP {
		t.mu.Lock()
		l.ring.resetDatagram(t, reason, l)
		t.mu.Unlock()
		return
	}
	var r = l.ring
	r.noteReset(t, reason)
	t.setState(STATE_RESETTING)
	t.ready.Store(false)
	t.cancelTimeout()
	r.flush(t, reason)

	t.mu.Lock()
	l.closeSocket(t)
	var fd, err = r.openSocket(t)
	if err == nil {
		t.fd.Store(int32(fd))
	}
	t.gen.Add(1)
	t.mu.Unlock()

	if err != nil {
		l.logger.Error("socketFailed", slog.String("ringId", r.Id), slog.Int("tokenId", t.Id),
			slog.Any("err", err), slog.String("errClass", r.classify(err)))
		r.triggerOnError(t.Id, ERROR_SOCKET, err)
	}
	l.dial(t)
}

func (l *Loop) registerDatagram(t *Token) {
	var fd = t.Fd()
	if fd < 0 {
		return
	}
	var err = l.add(fd, unix.EPOLLIN)
	if err != nil && err != unix.EEXIST {
		l.logger.Error("registerFailed", slog.String("ringId", l.ring.Id), slog.Int("tokenId", t.Id),
			slog.Int("fd", fd), slog.Any("err", err))
		l.ring.triggerOnError(t.Id, ERROR_REGISTER, err)
		return
	}
	l.conns[fd] = t
	t.markReady()
}
