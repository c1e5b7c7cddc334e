package allocator

import (
	"sync"
	"testing"
	"unsafe"
)

func TestSmallAllocClassMapping(t *testing.T) {
	cases := []struct {
		size  uintptr
		class int
	}{
		{1, 1},
		{8, 1},
		{9, 2},
		{16, 2},
		{200, 25},
		{248, 31},
	}

	for _, c := range cases {
		aligned := align8(c.size + footerSize)
		if got := classForAligned(aligned); got != c.class {
			t.Errorf("size %d: class = %d, want %d", c.size, got, c.class)
		}
	}
}

func TestSmallFreeRecoversClass(t *testing.T) {
	p := Acquire(100)
	if p == nil {
		t.Fatal("Acquire(100) returned nil")
	}
	tag := *(*uintptr)(unsafe.Pointer(uintptr(p) - footerSize))
	if !isFastPath(tag) {
		t.Fatal("Acquire(100) did not route to the fast path")
	}

	wantClass := classForAligned(align8(100 + footerSize))
	gotClass := classForAligned(taggedBlockSize(tag))
	if gotClass != wantClass {
		t.Fatalf("tag encodes class %d, want %d", gotClass, wantClass)
	}

	Release(p)
}

// TestCrossThreadIsolation exercises spec §8 scenario 6: two goroutines
// each acquiring 20 small blocks concurrently see disjoint pointers and
// neither deadlocks nor corrupts the other's cache.
func TestCrossThreadIsolation(t *testing.T) {
	const perThread = 20

	var wg sync.WaitGroup
	results := make([][perThread]unsafe.Pointer, 2)

	for t2 := 0; t2 < 2; t2++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			for i := 0; i < perThread; i++ {
				p := Acquire(16)
				if p == nil {
					panic("Acquire(16) returned nil")
				}
				results[idx][i] = p
			}
		}(t2)
	}
	wg.Wait()

	seen := map[unsafe.Pointer]bool{}
	for _, thread := range results {
		for _, p := range thread {
			if seen[p] {
				t.Fatalf("pointer %p handed out to more than one slot", p)
			}
			seen[p] = true
		}
	}

	for _, thread := range results {
		for _, p := range thread {
			Release(p)
		}
	}
}
