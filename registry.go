package ring

import (
	"sort"
	"sync"
)

// Registry maps pool names to live rings for the lifetime of a process or a
// test run.
type Registry struct {
	lock  sync.RWMutex
	rings map[string]*Ring
}

func NewRegistry() *Registry {
	return &Registry{rings: make(map[string]*Ring)}
}

// Register adds r under name unless the name is taken.
func (reg *Registry) Register(name string, r *Ring) bool {
	reg.lock.Lock()
	defer reg.lock.Unlock()
	if _, ok := reg.rings[name]; ok {
		return false
	}
	reg.rings[name] = r
	return true
}

func (reg *Registry) Get(name string) *Ring {
	reg.lock.RLock()
	defer reg.lock.RUnlock()
	return reg.rings[name]
}

// Remove unregisters name and returns the ring it held, without destroying it.
func (reg *Registry) Remove(name string) *Ring {
	reg.lock.Lock()
	defer reg.lock.Unlock()
	var r = reg.rings[name]
	delete(reg.rings, name)
	return r
}

func (reg *Registry) Names() []string {
	reg.lock.RLock()
	defer reg.lock.RUnlock()
	var names = make([]string, 0, len(reg.rings))
	for name := range reg.rings {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DestroyAll destroys and unregisters every ring.
func (reg *Registry) DestroyAll() {
	reg.lock.Lock()
	var rings = reg.rings
	reg.rings = make(map[string]*Ring)
	reg.lock.Unlock()
	for _, r := range rings {
		r.Destroy()
	}
}
