// Package slotpool hands out exclusive ownership of numbered slots.
//
// Every slot carries a payload pointer and a FREE/BUSY state. Acquire claims
// a FREE slot holding a payload, Release returns it. Nothing blocks: under
// contention Acquire may fail even though a slot would have become free a
// moment later, and retrying is the caller's responsibility.
package slotpool

import (
	"sync/atomic"
)

const (
	NONE = -1
)

const (
	FREE int32 = 0
	BUSY int32 = 1
)

type Stats struct {
	Free           int
	Busy           int
	NullPayload    int
	NonNullPayload int
}

type Pool[T any] struct {
	states   []atomic.Int32
	payloads []atomic.Pointer[T]
	cursor   atomic.Uint64
}

func New[T any](capacity int) *Pool[T] {
	if capacity < 0 {
		capacity = 0
	}
	return &Pool[T]{
		states:   make([]atomic.Int32, capacity),
		payloads: make([]atomic.Pointer[T], capacity),
	}
}

func (p *Pool[T]) Capacity() int {
	return len(p.states)
}

// Acquire claims a free slot holding a payload and returns its index, or NONE.
func (p *Pool[T]) Acquire() int {
	var n = uint64(len(p.states))
	if n == 0 {
		return NONE
	}
	var start = p.cursor.Add(1)
	var i uint64
	var idx int
	for i = 0; i < n; i++ {
		idx = int((start + i) % n)
		if p.payloads[idx].Load() == nil {
			continue
		}
		if !p.states[idx].CompareAndSwap(FREE, BUSY) {
			continue
		}
		if p.payloads[idx].Load() != nil {
			return idx
		}
		p.states[idx].Store(FREE)
	}
	return NONE
}

// Release marks the slot free. Releasing a free slot is a no-op.
func (p *Pool[T]) Release(index int) bool {
	if !p.valid(index) {
		return false
	}
	return p.states[index].CompareAndSwap(BUSY, FREE)
}

func (p *Pool[T]) Get(index int) *T {
	if !p.valid(index) {
		return nil
	}
	return p.payloads[index].Load()
}

// Put stores payload into the first slot without one.
func (p *Pool[T]) Put(payload *T) bool {
	if payload == nil {
		return false
	}
	var n = uint64(len(p.states))
	if n == 0 {
		return false
	}
	var start = p.cursor.Load()
	var i uint64
	var idx int
	for i = 0; i < n; i++ {
		idx = int((start + i) % n)
		if p.payloads[idx].CompareAndSwap(nil, payload) {
			return true
		}
	}
	return false
}

// Set binds payload to a fixed slot, replacing whatever was there.
func (p *Pool[T]) Set(index int, payload *T) bool {
	if !p.valid(index) {
		return false
	}
	p.payloads[index].Store(payload)
	return true
}

// Destroy drops the payload of a slot without touching its state.
func (p *Pool[T]) Destroy(index int) {
	if p.valid(index) {
		p.payloads[index].Store(nil)
	}
}

func (p *Pool[T]) IsBusy(index int) bool {
	return p.valid(index) && p.states[index].Load() == BUSY
}

func (p *Pool[T]) Stats() Stats {
	var s Stats
	for i := range p.states {
		if p.states[i].Load() == BUSY {
			s.Busy++
		} else {
			s.Free++
		}
		if p.payloads[i].Load() == nil {
			s.NullPayload++
		} else {
			s.NonNullPayload++
		}
	}
	return s
}

func (p *Pool[T]) valid(index int) bool {
	return index >= 0 && index < len(p.states)
}
