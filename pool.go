package ring

import (
	"github.com/wuyongjia/pool"
)

const (
	DEFAULT_RESULT_POOL_SIZE = 256
)

func newResultPool(capacity int) *pool.Pool {
	return pool.NewWithId(capacity, func(id uint64) interface{} {
		return &Result{Token: NONE, poolId: id}
	})
}

// getResult hands out a cleared result, allocating when the pool is empty.
func (s *Sampler) getResult() *Result {
	var iface, err = s.results.Get()
	if err == nil {
		var result, ok = iface.(*Result)
		if ok {
			result.clear()
			return result
		}
	}
	return &Result{Token: NONE}
}

// Recycle returns a result obtained from [Sampler.Sample] for reuse. The
// result must not be touched afterwards. Results allocated outside the pool
// are left to the garbage collector.
func (s *Sampler) Recycle(result *Result) {
	if result == nil || result.poolId == 0 {
		return
	}
	s.results.PutWithId(result, result.poolId)
}
