package ring

import (
	"log/slog"

	"golang.org/x/sys/unix"
)

func (l *Loop) run() {
	defer close(l.done)
	defer l.stopped.Store(true)

	l.logger.Info("loopStarted", slog.String("ringId", l.ring.Id), slog.Int("loopId", l.Id),
		slog.Int("tokens", len(l.tokens)))

	var err error
	var i, n int
	for !l.stopped.Load() {
		if l.timeouts != nil && l.timeouts.length() > 0 {
			l.timeoutAction()
		}
		n, err = unix.EpollWait(l.epfd, l.events, l.pollTimeout)
		if err != nil {
			if err != unix.EINTR {
				l.logger.Error("loopFailed", slog.String("ringId", l.ring.Id), slog.Int("loopId", l.Id),
					slog.Any("err", err), slog.String("errClass", l.ring.classify(err)))
				l.ring.triggerOnError(NONE, ERROR_EPOLL_WAIT, err)
				break
			}
			n = 0
		}
		if l.registrations.length() > 0 {
			l.registerAction()
		}
		for i = 0; i < n; i++ {
			l.dispatch(&l.events[i])
		}
	}

	l.logger.Info("loopStopped", slog.String("ringId", l.ring.Id), slog.Int("loopId", l.Id))
}

func (l *Loop) dispatch(ev *unix.EpollEvent) {
	var fd = int(ev.Fd)
	if fd == l.wakefd {
		l.drainWakeup()
		return
	}
	var t = l.lookup(fd)
	if t == nil {
		unix.EpollCtl(l.epfd, unix.EPOLL_CTL_DEL, fd, nil)
		return
	}
	if t.Network == NETWORK_TCP {
		if t.State() == STATE_CONNECTING {
			l.connectAction(t, ev.Events)
		} else if ev.Events&(unix.EPOLLIN|unix.EPOLLERR|unix.EPOLLHUP|unix.EPOLLRDHUP) != 0 {
			l.readAction(t)
		}
		return
	}
	if ev.Events&(unix.EPOLLIN|unix.EPOLLERR) != 0 {
		l.readDatagramAction(t)
	}
}

// lookup maps fd to its token. A miss falls back to scanning the loop's own
// tokens and repairs the map.
func (l *Loop) lookup(fd int) *Token {
	var t, ok = l.conns[fd]
	if ok && t.Fd() == fd {
		return t
	}
	delete(l.conns, fd)
	l.logger.Warn("tokenLookupMiss", slog.String("ringId", l.ring.Id), slog.Int("loopId", l.Id), slog.Int("fd", fd))
	for _, t = range l.tokens {
		if t.Fd() == fd {
			l.conns[fd] = t
			return t
		}
	}
	l.logger.Warn("tokenLookupFailed", slog.String("ringId", l.ring.Id), slog.Int("loopId", l.Id), slog.Int("fd", fd))
	l.ring.triggerOnError(NONE, ERROR_LOOKUP, unix.EBADF)
	return nil
}
