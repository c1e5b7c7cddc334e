package allocator

import (
	"runtime"
	"sync/atomic"
)

// spinLock is a trivial compare-and-swap spin lock. Its zero value
// is unlocked and ready for use, so it can live as a package-level
// singleton without an init function racing the allocator's own first
// use.
type spinLock struct {
	held atomic.Bool
}

func (l *spinLock) Lock() {
	for !l.held.CompareAndSwap(false, true) {
		runtime.Gosched()
	}
}

func (l *spinLock) Unlock() {
	l.held.Store(false)
}
