// Package keylock provides striped per-key mutexes. The lifecycle
// services use one to serialize all mutations of a given entity id,
// independent of whatever the backing store guarantees.
package keylock

import (
	"hash/fnv"
	"sync"
)

const stripes = 64

// Striped maps keys onto a fixed set of mutexes. Two distinct keys may
// share a stripe; that costs a little contention, never correctness.
type Striped struct {
	locks [stripes]sync.Mutex
}

func New() *Striped { return &Striped{} }

// Lock acquires the stripe for key and returns its unlock function.
//
//	defer locks.Lock(id)()
func (s *Striped) Lock(key string) func() {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	m := &s.locks[h.Sum32()%stripes]
	m.Lock()
	return m.Unlock
}
