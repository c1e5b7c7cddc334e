// Copyright 2017 The Memory Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package allocator implements a two-path dynamic memory allocator over
// anonymous virtual memory reserved from the operating system.
//
// Small requests are served from per-goroutine segregated free lists
// with no synchronization (the fast path); everything else is served
// from a single coalescing, boundary-tag free list behind one spin lock
// (the slow path). Every pointer handed back by Acquire is preceded by
// exactly one tagged size word, so Release can tell which path a block
// came from without any side table.
package allocator

import (
	"fmt"
	"os"
	"unsafe"
)

// Debug turns on tracing of every Acquire/Release/refill to stderr. It
// is a package variable rather than a build tag because flipping it in
// a running test is occasionally useful when chasing a corrupted heap;
// production code should leave it false.
var Debug = false

// Acquire returns a pointer to a region of at least size bytes, 8-byte
// aligned, or nil if size is 0 or the request cannot be satisfied.
func Acquire(size uintptr) unsafe.Pointer {
	if size == 0 {
		return nil
	}

	if size <= smallAllocThreshold {
		aligned := align8(size + footerSize)
		if aligned <= maxSmallSize {
			p, err := smallAlloc(classForAligned(aligned))
			if err != nil || p == nil {
				if Debug {
					fmt.Fprintf(os.Stderr, "allocator: acquire(%d) failed: %v\n", size, err)
				}
				return nil
			}
			return p
		}
	}

	p, err := heap.alloc(size)
	if err != nil {
		if Debug {
			fmt.Fprintf(os.Stderr, "allocator: acquire(%d) failed: %v\n", size, err)
		}
		return nil
	}
	return p
}

// Release returns a pointer previously obtained from Acquire. Passing
// nil is a no-op. Release reads the 8-byte word immediately preceding
// ptr and routes to the thread cache or the global heap according to
// its FAST_PATH bit; it never needs to know which path produced ptr.
func Release(ptr unsafe.Pointer) {
	if ptr == nil {
		return
	}

	word := *(*uintptr)(unsafe.Pointer(uintptr(ptr) - footerSize))
	if isFastPath(word) {
		smallFree(ptr)
		return
	}

	heap.free(ptr)
}
