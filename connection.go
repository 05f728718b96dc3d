package ring

import (
	"golang.org/x/sys/unix"
)

func (l *Loop) add(fd int, events uint32) error {
	return unix.EpollCtl(l.epfd, unix.EPOLL_CTL_ADD, fd, &unix.EpollEvent{Events: events, Fd: int32(fd)})
}

func (l *Loop) mod(fd int, events uint32) error {
	return unix.EpollCtl(l.epfd, unix.EPOLL_CTL_MOD, fd, &unix.EpollEvent{Events: events, Fd: int32(fd)})
}

// closeSocket unregisters and closes the token socket. Must run on the loop
// goroutine with t.mu held.
func (l *Loop) closeSocket(t *Token) {
	var fd = int(t.fd.Swap(-1))
	if fd < 0 {
		return
	}
	unix.EpollCtl(l.epfd, unix.EPOLL_CTL_DEL, fd, nil)
	delete(l.conns, fd)
	unix.Close(fd)
}

func (r *Ring) openSocket(t *Token) (int, error) {
	var typ = unix.SOCK_STREAM
	if t.Network == NETWORK_UDP {
		typ = unix.SOCK_DGRAM
	}
	var fd, err = unix.Socket(t.family, typ|unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		return -1, err
	}
	if err = r.setSocketOptions(fd, t.Network); err != nil {
		unix.Close(fd)
		return -1, err
	}
	return fd, nil
}

func (r *Ring) setSocketOptions(fd int, network string) error {
	var err error
	if err = unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_SNDBUF, r.cfg.BufferSize); err != nil {
		return err
	}
	if err = unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_RCVBUF, r.cfg.BufferSize); err != nil {
		return err
	}
	if err = unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		return err
	}
	if network == NETWORK_UDP {
		return nil
	}
	if err = unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_KEEPALIVE, 1); err != nil {
		return err
	}
	if err = unix.SetsockoptInt(fd, unix.IPPROTO_TCP, unix.TCP_NODELAY, 1); err != nil {
		return err
	}
	unix.SetsockoptInt(fd, unix.IPPROTO_TCP, unix.TCP_QUICKACK, 1)
	return nil
}

// closeTokenSocket closes a token socket once its loop is gone.
func closeTokenSocket(t *Token) {
	var fd = int(t.fd.Swap(-1))
	if fd >= 0 {
		unix.Close(fd)
	}
}
