// Copyright 2017 The Memory Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package allocator

import (
	"math"
	"testing"
	"unsafe"

	"github.com/cznic/mathutil"
)

const quota = 64 << 20

func payloadBytes(ptr unsafe.Pointer, n uintptr) []byte {
	return unsafe.Slice((*byte)(ptr), int(n))
}

// roundTrip drives Acquire/Release through a random workload of sizes
// bounded by max, writing and re-reading every live block, the way the
// teacher's test1/test2 do.
func roundTrip(t *testing.T, max int) {
	rem := quota
	type live struct {
		ptr  unsafe.Pointer
		size int
	}
	var blocks []live

	rng, err := mathutil.NewFC32(0, math.MaxInt32, true)
	if err != nil {
		t.Fatal(err)
	}
	rng.Seed(42)
	pos := rng.Pos()

	for rem > 0 {
		size := rng.Next()%max + 1
		rem -= size

		p := Acquire(uintptr(size))
		if p == nil {
			t.Fatalf("Acquire(%d) returned nil", size)
		}

		b := payloadBytes(p, uintptr(size))
		for i := range b {
			b[i] = byte(rng.Next())
		}

		blocks = append(blocks, live{p, size})
	}

	rng.Seek(pos)
	for _, blk := range blocks {
		e := rng.Next()%max + 1
		if blk.size != e {
			t.Fatalf("size mismatch: got %d want %d", blk.size, e)
		}

		b := payloadBytes(blk.ptr, uintptr(blk.size))
		for i, g := range b {
			if e := byte(rng.Next()); g != e {
				t.Fatalf("corrupted byte %d: got %#02x want %#02x", i, g, e)
			}
		}
	}

	for _, blk := range blocks {
		Release(blk.ptr)
	}
}

func TestRoundTripSmall(t *testing.T) { roundTrip(t, 2*maxSmallSize) }
func TestRoundTripLarge(t *testing.T) { roundTrip(t, 2*smallAllocThreshold) }

// TestSmallRoundTripSamePointer exercises spec §8 scenario 1: a single
// thread's Acquire/Release/Acquire returns the same address, LIFO.
func TestSmallRoundTripSamePointer(t *testing.T) {
	p1 := Acquire(16)
	if p1 == nil {
		t.Fatal("Acquire(16) returned nil")
	}
	Release(p1)
	p2 := Acquire(16)
	if p2 != p1 {
		t.Fatalf("Acquire after Release returned %p, want %p", p2, p1)
	}
	Release(p2)
}

// TestLargeRequestBypass exercises spec §8 scenario 2: a request above
// the small-allocation threshold is tagged as slow-path.
func TestLargeRequestBypass(t *testing.T) {
	p := Acquire(40000)
	if p == nil {
		t.Fatal("Acquire(40000) returned nil")
	}

	tag := *(*uintptr)(unsafe.Pointer(uintptr(p) - footerSize))
	if isFastPath(tag) {
		t.Fatal("large allocation was tagged fast-path")
	}

	Release(p)
}

func TestAcquireZero(t *testing.T) {
	if p := Acquire(0); p != nil {
		t.Fatalf("Acquire(0) = %p, want nil", p)
	}
}

func TestReleaseNilIsNoop(t *testing.T) {
	Release(nil) // must not panic
}

func TestAlignment(t *testing.T) {
	sizes := []uintptr{1, 7, 8, 9, 100, 255, 256, 257, 40000}
	for _, size := range sizes {
		p := Acquire(size)
		if p == nil {
			t.Fatalf("Acquire(%d) returned nil", size)
		}
		if uintptr(p)&7 != 0 {
			t.Fatalf("Acquire(%d) = %p is not 8-byte aligned", size, p)
		}
		Release(p)
	}
}

// TestRefillThenReuse exercises spec §8 scenario 5: 25 acquisitions of
// the same small class span two refill batches of 20.
func TestRefillThenReuse(t *testing.T) {
	var ptrs []unsafe.Pointer
	for i := 0; i < 25; i++ {
		p := Acquire(8)
		if p == nil {
			t.Fatalf("Acquire(8) #%d returned nil", i)
		}
		ptrs = append(ptrs, p)
	}

	seen := map[unsafe.Pointer]bool{}
	for _, p := range ptrs {
		if seen[p] {
			t.Fatalf("duplicate pointer %p handed out", p)
		}
		seen[p] = true
	}

	for _, p := range ptrs {
		Release(p)
	}
}

func BenchmarkAcquireRelease16(b *testing.B) { benchmarkAcquireRelease(b, 16) }
func BenchmarkAcquireRelease64(b *testing.B) { benchmarkAcquireRelease(b, 64) }
func BenchmarkAcquireRelease4K(b *testing.B) { benchmarkAcquireRelease(b, 4096) }

func benchmarkAcquireRelease(b *testing.B, size uintptr) {
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		p := Acquire(size)
		if p == nil {
			b.Fatal("Acquire returned nil")
		}
		Release(p)
	}
}
