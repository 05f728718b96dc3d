package ring

import (
	"github.com/wuyongjia/threadpool"
)

// newThreadPool starts the callback workers. The pool is left open when the
// ring is destroyed: closed workers spin on their drained channel, idle ones
// only block.
func (r *Ring) newThreadPool() *threadpool.Pool {
	var p = threadpool.NewWithFunc(r.cfg.CallbackThreads, r.cfg.CallbackQueueLength, func(payload interface{}) {
		var req, ok = payload.(*request)
		if ok {
			switch req.Op {
			case OP_ON_RESET:
				if r.OnReset != nil {
					r.OnReset(req.Id, req.Reason)
				}
			case OP_ON_ERROR:
				if r.OnError != nil {
					r.OnError(req.Id, req.ErrCode, req.Err)
				}
			}
		}
	})
	return p
}
