package ring

type request struct {
	Op      OpCode
	Id      int
	Reason  string
	ErrCode ErrorCode
	Err     error
}

func (r *Ring) triggerOnReset(id int, reason string) {
	if r.OnReset != nil && r.threadPool != nil {
		r.threadPool.Invoke(r.getRequestItemForReset(id, reason))
	}
}

func (r *Ring) triggerOnError(id int, code ErrorCode, err error) {
	if r.OnError != nil && r.threadPool != nil {
		r.threadPool.Invoke(r.getRequestItemForError(id, code, err))
	}
}

func (r *Ring) getRequestItem() *request {
	return &request{Id: NONE}
}

func (r *Ring) getRequestItemForReset(id int, reason string) *request {
	var item = r.getRequestItem()
	item.Op = OP_ON_RESET
	item.Id = id
	item.Reason = reason
	return item
}

func (r *Ring) getRequestItemForError(id int, errCode ErrorCode, err error) *request {
	var item = r.getRequestItem()
	item.Op = OP_ON_ERROR
	item.Id = id
	item.ErrCode = errCode
	item.Err = err
	return item
}
