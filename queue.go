package ring

import (
	"sync"

	"github.com/eapache/queue"
)

type registration struct {
	op     OpCode
	token  *Token
	gen    uint64
	reason string
}

type timeoutEvent struct {
	token   *Token
	kind    TimeoutKind
	pending *pending
	gen     uint64
	reason  string
}

// boundedQueue is a mutex-guarded FIFO refusing entries beyond capacity.
type boundedQueue struct {
	lock     sync.Mutex
	items    *queue.Queue
	capacity int
}

func newBoundedQueue(capacity int) *boundedQueue {
	return &boundedQueue{
		items:    queue.New(),
		capacity: capacity,
	}
}

func (q *boundedQueue) offer(v interface{}) error {
	q.lock.Lock()
	defer q.lock.Unlock()
	if q.items.Length() >= q.capacity {
		return ErrorQueueFull
	}
	q.items.Add(v)
	return nil
}

func (q *boundedQueue) poll() (interface{}, bool) {
	q.lock.Lock()
	defer q.lock.Unlock()
	if q.items.Length() == 0 {
		return nil, false
	}
	return q.items.Remove(), true
}

func (q *boundedQueue) length() int {
	q.lock.Lock()
	defer q.lock.Unlock()
	return q.items.Length()
}
