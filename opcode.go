package ring

type OpCode int

const (
	OP_CONNECT  OpCode = 1
	OP_REGISTER OpCode = 2
	OP_RESET    OpCode = 3
	OP_ON_RESET OpCode = 4
	OP_ON_ERROR OpCode = 5
)

type TimeoutKind int

const (
	TIMEOUT_CONNECT  TimeoutKind = 1
	TIMEOUT_RESPONSE TimeoutKind = 2
)

func (k TimeoutKind) String() string {
	if k == TIMEOUT_CONNECT {
		return "connect timeout"
	}
	return "response timeout"
}
