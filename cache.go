package allocator

import (
	"fmt"
	"os"
	"unsafe"

	"github.com/timandy/routine"
)

// fastBlock is a free fast-path block's view of its own first word: a
// singly-linked LIFO stack node. The same 8 bytes become a tagged size
// word the instant the block is handed out (see fastTag); they are never
// read as both at once.
type fastBlock struct {
	next *fastBlock
}

// threadCache holds the 32 segregated class lists of one thread. Go has
// no OS-thread-local storage of its own, and goroutines migrate between
// Ms, so "per thread" is realized as "per goroutine" via routine's
// goroutine-local storage, the closest idiomatic analogue: lazily
// created on first touch, never swept, exactly as the spec's thread
// caches are.
type threadCache struct {
	classes [numSmallClasses]*fastBlock
}

var caches = routine.NewThreadLocalWithInitial[*threadCache](func() *threadCache {
	return &threadCache{}
})

func currentCache() *threadCache { return caches.Get() }

// smallAlloc pops a block off class's free list, refilling from the
// global heap first if the list is empty.
func smallAlloc(class int) (unsafe.Pointer, error) {
	c := currentCache()
	if c.classes[class] == nil {
		if err := refillClass(c, class); err != nil {
			return nil, err
		}
		if c.classes[class] == nil {
			return nil, nil
		}
	}

	blk := c.classes[class]
	c.classes[class] = blk.next

	blockSize := classBlockSize(class)
	*(*uintptr)(unsafe.Pointer(blk)) = fastTag(blockSize)

	payload := unsafe.Pointer(uintptr(unsafe.Pointer(blk)) + footerSize)
	if Debug {
		fmt.Fprintf(os.Stderr, "allocator: small_alloc(class=%d) -> %p\n", class, payload)
	}
	return payload, nil
}

// smallFree pushes a fast block back onto its class's list in LIFO
// order. The class is recovered from the tagged size word at ptr-8;
// that word is then discarded in favor of the next-pointer linkage.
func smallFree(ptr unsafe.Pointer) {
	base := unsafe.Pointer(uintptr(ptr) - footerSize)
	tag := *(*uintptr)(base)
	class := classForAligned(taggedBlockSize(tag))

	c := currentCache()
	blk := (*fastBlock)(base)
	blk.next = c.classes[class]
	c.classes[class] = blk

	if Debug {
		fmt.Fprintf(os.Stderr, "allocator: small_free(%p, class=%d)\n", ptr, class)
	}
}

// refillClass pulls one slab sized for 20 blocks from the global heap
// and slices it into the class's free list. The slab's own global-heap
// header stays in front of it; the fast blocks carved from its payload
// never return to the global heap (state SLAB_INTERIOR, one-way).
func refillClass(c *threadCache, class int) error {
	blockSize := classBlockSize(class)
	slab, err := heap.alloc(blockSize * refillBatch)
	if err != nil {
		return err
	}
	if slab == nil {
		return nil
	}

	base := uintptr(slab)
	for i := 0; i < refillBatch; i++ {
		blk := (*fastBlock)(unsafe.Pointer(base + uintptr(i)*blockSize))
		blk.next = c.classes[class]
		c.classes[class] = blk
	}
	return nil
}
