package ring

type ErrorCode int

const (
	ERROR_SOCKET     ErrorCode = 1
	ERROR_CONNECT    ErrorCode = 2
	ERROR_REGISTER   ErrorCode = 3
	ERROR_READ       ErrorCode = 4
	ERROR_EPOLL_WAIT ErrorCode = 5
	ERROR_STOP       ErrorCode = 6
	ERROR_WRITE      ErrorCode = 7
	ERROR_RESET      ErrorCode = 8
	ERROR_LOOKUP     ErrorCode = 9
)

func (c ErrorCode) String() string {
	switch c {
	case ERROR_SOCKET:
		return "socket"
	case ERROR_CONNECT:
		return "connect"
	case ERROR_REGISTER:
		return "register"
	case ERROR_READ:
		return "read"
	case ERROR_EPOLL_WAIT:
		return "epoll_wait"
	case ERROR_STOP:
		return "stop"
	case ERROR_WRITE:
		return "write"
	case ERROR_RESET:
		return "reset"
	case ERROR_LOOKUP:
		return "lookup"
	}
	return "unknown"
}
