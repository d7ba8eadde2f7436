package pass

import (
	"strconv"
	"sync"
)

// keyedMutex hands out one mutex per key.  Entries are reference counted
// and dropped once nobody holds or waits on them, so per-student keys do
// not accumulate.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*refLock
}

type refLock struct {
	sync.Mutex
	refs int
}

// Lock blocks until key is held and returns the matching unlock func.
func (k *keyedMutex) Lock(key string) func() {
	k.mu.Lock()
	if k.locks == nil {
		k.locks = make(map[string]*refLock)
	}
	l, ok := k.locks[key]
	if !ok {
		l = &refLock{}
		k.locks[key] = l
	}
	l.refs++
	k.mu.Unlock()

	l.Lock()
	return func() {
		l.Unlock()
		k.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}

// Lock ordering: a student key is always taken before a type key.
func typeKey(passType string) string { return "type:" + passType }

func studentKey(id uint64) string { return "student:" + strconv.FormatUint(id, 10) }
