package ring

type OnResetEvent func(id int, reason string)
type OnErrorEvent func(id int, code ErrorCode, err error)
