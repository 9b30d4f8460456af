package trading

import "sync"

// keyedMutex serializes operations per key (user id for buys, lot id for
// sells) while letting different keys proceed fully in parallel.
//
// Mutexes are never evicted; the key space is bounded by the user and lot
// population, which is small relative to memory.
type keyedMutex struct {
	locks sync.Map // key -> *sync.Mutex
}

// lock acquires the mutex for key and returns its unlock function.
func (k *keyedMutex) lock(key string) func() {
	v, _ := k.locks.LoadOrStore(key, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}
