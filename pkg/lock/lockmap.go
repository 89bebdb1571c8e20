package lock

import (
	"runtime"
	"sync"
	"weak"

	"github.com/cuemby/overlaydb/pkg/storage"
)

// LockMap hands out one GlobalLock per key, weak-valued so a lock with no
// current holder and no outstanding reference can be collected (spec
// §4.5). A Void key never shares a lock with anything, it always gets a
// fresh, unshared GlobalLock, matching the original's treatment of "no
// key" as "no contention possible."
type LockMap struct {
	mu      sync.Mutex
	mapping string
	taker   Taker
	locks   map[Key]weak.Pointer[GlobalLock]
}

// NewLockMap builds a LockMap backed by taker, labeling its locks with
// mapping for logging and metrics.
func NewLockMap(mapping string, taker Taker) *LockMap {
	return &LockMap{
		mapping: mapping,
		taker:   taker,
		locks:   make(map[Key]weak.Pointer[GlobalLock]),
	}
}

// Get returns the GlobalLock for key, creating one if none is currently
// live.
func (lm *LockMap) Get(key Key) *GlobalLock {
	if storage.IsVoid(key) {
		return newGlobalLock(key, lm.mapping, lm.taker)
	}

	lm.mu.Lock()
	defer lm.mu.Unlock()

	if wp, ok := lm.locks[key]; ok {
		if gl := wp.Value(); gl != nil {
			return gl
		}
	}

	gl := newGlobalLock(key, lm.mapping, lm.taker)
	wp := weak.Make(gl)
	lm.locks[key] = wp
	runtime.AddCleanup(gl, lm.forget, key)
	return gl
}

func (lm *LockMap) forget(key Key) {
	lm.mu.Lock()
	defer lm.mu.Unlock()
	if wp, ok := lm.locks[key]; ok && wp.Value() == nil {
		delete(lm.locks, key)
	}
}
