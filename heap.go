package allocator

import (
	"fmt"
	"os"
	"unsafe"
)

// globalHeap is the single-lock, coalescing boundary-tag free list shared
// by every goroutine in the process. Its zero value is ready for use: the
// free list starts empty and the first arena is requested lazily.
type globalHeap struct {
	mu   spinLock
	head *slowBlockHeader
}

var heap globalHeap

func (g *globalHeap) pushFree(h *slowBlockHeader) {
	h.prevFree = nil
	h.nextFree = g.head
	if g.head != nil {
		g.head.prevFree = h
	}
	g.head = h
}

func (g *globalHeap) unlink(h *slowBlockHeader) {
	if h.prevFree != nil {
		h.prevFree.nextFree = h.nextFree
	} else {
		g.head = h.nextFree
	}
	if h.nextFree != nil {
		h.nextFree.prevFree = h.prevFree
	}
}

// alloc returns a payload of at least size bytes from a slow-path block,
// first-fit, splitting the chosen free block when the remainder is
// usable and requesting a fresh arena when nothing fits.
func (g *globalHeap) alloc(size uintptr) (unsafe.Pointer, error) {
	needed := align8(size + headerSize + footerSize)
	if needed < minBlockSize {
		needed = minBlockSize
	}

	g.mu.Lock()
	for {
		for cur := g.head; cur != nil; cur = cur.nextFree {
			if cur.blockSize() >= needed {
				g.unlink(cur)
				remaining := cur.blockSize() - needed
				if remaining >= minBlockSize {
					cur.setAllocated(needed)
					cur.writeFooter()

					next := cur.nextHeader()
					next.setFree(remaining)
					next.writeFooter()
					g.pushFree(next)
				} else {
					cur.setAllocated(cur.blockSize())
					cur.writeFooter()
				}

				g.mu.Unlock()
				if Debug {
					fmt.Fprintf(os.Stderr, "allocator: global_alloc(%d) -> %p\n", size, cur.payload())
				}
				return cur.payload(), nil
			}
		}

		arena, err := g.requestArena(needed)
		if err != nil {
			g.mu.Unlock()
			return nil, err
		}
		g.pushFree(arena)
	}
}

// free coalesces with both physical neighbors (at most one merge per
// side; the invariant that no two adjacent free blocks ever coexist
// means there is never a chain to walk) and reinserts the result.
func (g *globalHeap) free(ptr unsafe.Pointer) {
	if ptr == nil {
		return
	}

	h := headerFromPayload(ptr)

	g.mu.Lock()
	size := h.blockSize()

	next := h.nextHeader()
	if next.isFree() {
		g.unlink(next)
		size += next.blockSize()
	}

	prevFooter := *h.prevFooterWord()
	if wordIsFree(prevFooter) {
		prevSize := prevFooter &^ flagMask
		prev := (*slowBlockHeader)(unsafe.Pointer(uintptr(unsafe.Pointer(h)) - prevSize))
		g.unlink(prev)
		size += prevSize
		h = prev
	}

	h.setFree(size)
	h.writeFooter()
	g.pushFree(h)
	g.mu.Unlock()

	if Debug {
		fmt.Fprintf(os.Stderr, "allocator: global_free(%p)\n", ptr)
	}
}

// requestArena maps a fresh region from the page provider and formats it
// as a single free block bracketed by allocated sentinel words: a
// zero-size "prologue" footer at the arena base and a zero-size
// "epilogue" header at its tail. Both are written with the ALLOCATED bit
// set, so a release that walks off either end of the block sees an
// allocated neighbor and stops, instead of reading past the mapping (the
// out-of-bounds read the design notes warn about).
func (g *globalHeap) requestArena(needed uintptr) (*slowBlockHeader, error) {
	total := needed
	if total < globalArenaMinSize {
		total = globalArenaMinSize
	}
	total = align8(total)

	mapLen := roundUpToPageSize(align8(total + 2*footerSize))

	addr, err := mapPages(mapLen)
	if err != nil {
		return nil, err
	}

	base := uintptr(addr)
	*(*uintptr)(unsafe.Pointer(base)) = flagAllocated // prologue sentinel

	main := (*slowBlockHeader)(unsafe.Pointer(base + footerSize))
	main.setFree(mapLen - 2*footerSize)
	main.writeFooter()

	epilogue := base + mapLen - footerSize
	*(*uintptr)(unsafe.Pointer(epilogue)) = flagAllocated

	return main, nil
}

func roundUpToPageSize(n uintptr) uintptr {
	p := uintptr(osPageSize)
	return (n + p - 1) &^ (p - 1)
}
