// Copyright 2017 The Memory Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package allocator

import "unsafe"

// Flag bits packed into the low two bits of every size word the allocator
// ever writes, fast path or slow path alike. This is the keystone of the
// design: Release reads exactly one word at payload-8 and routes on it
// without consulting any side table.
const (
	flagAllocated uintptr = 1 << 0
	flagFastPath  uintptr = 1 << 1
	flagMask      uintptr = flagAllocated | flagFastPath
)

const alignment = 8

// align8 rounds n up to the next multiple of 8.
func align8(n uintptr) uintptr { return (n + alignment - 1) &^ (alignment - 1) }

// slowBlockHeader sits at the base of every slow-path block, free or
// allocated. size must be the first field: an arena epilogue is a single
// word reserved just large enough to hold it, and is read back through
// this type (via nextHeader) without the rest of the struct ever being
// mapped. The arena prologue is read as a raw word (prevFooterWord).
//
// tag must be the last field. It mirrors size (same value, same two flag
// bits) so that the word at payload-8 is a literal tagged size/flags
// word on the slow path too, exactly as it is on the fast path, rather
// than relying on nextFree happening to be nil or 8-byte-aligned. Every
// setAllocated/setFree call keeps it in sync; nothing else ever writes
// it.
type slowBlockHeader struct {
	size     uintptr // low 2 bits: ALLOCATED, FAST_PATH (always 0 here)
	prevFree *slowBlockHeader
	nextFree *slowBlockHeader
	tag      uintptr // mirror of size; read by Release at payload-8
}

var (
	headerSize   = unsafe.Sizeof(slowBlockHeader{})
	footerSize   = unsafe.Sizeof(uintptr(0))
	minBlockSize = align8(headerSize + footerSize + alignment)
)

func (h *slowBlockHeader) blockSize() uintptr { return h.size &^ flagMask }

func (h *slowBlockHeader) isFree() bool { return h.size&flagAllocated == 0 }

func (h *slowBlockHeader) setAllocated(size uintptr) {
	h.size = size | flagAllocated
	h.tag = h.size
}

func (h *slowBlockHeader) setFree(size uintptr) {
	h.size = size &^ flagAllocated
	h.tag = h.size
}

// footer returns a pointer to this block's trailing size word, the
// mirror of h.size that lets the left neighbor be found in O(1).
func (h *slowBlockHeader) footer() *uintptr {
	addr := uintptr(unsafe.Pointer(h)) + h.blockSize() - footerSize
	return (*uintptr)(unsafe.Pointer(addr))
}

func (h *slowBlockHeader) writeFooter() { *h.footer() = h.size }

// nextHeader returns the header of the block immediately to the right,
// computed from h's current size. Callers must update h.size before
// calling this when splitting.
func (h *slowBlockHeader) nextHeader() *slowBlockHeader {
	addr := uintptr(unsafe.Pointer(h)) + h.blockSize()
	return (*slowBlockHeader)(unsafe.Pointer(addr))
}

// prevFooterWord returns a pointer to the word just below h: the
// footer (or arena prologue sentinel) of whatever lies to the left.
func (h *slowBlockHeader) prevFooterWord() *uintptr {
	addr := uintptr(unsafe.Pointer(h)) - footerSize
	return (*uintptr)(unsafe.Pointer(addr))
}

func (h *slowBlockHeader) payload() unsafe.Pointer {
	return unsafe.Pointer(uintptr(unsafe.Pointer(h)) + headerSize)
}

func headerFromPayload(ptr unsafe.Pointer) *slowBlockHeader {
	return (*slowBlockHeader)(unsafe.Pointer(uintptr(ptr) - headerSize))
}

// wordIsFree reports whether a raw footer/sentinel word denotes a free
// block. Arena prologues and epilogues are written with flagAllocated
// set and size 0, so this is false for them, which is exactly what stops
// coalescing from crossing an arena boundary.
func wordIsFree(w uintptr) bool { return w&flagAllocated == 0 }

// Fast-path tagging. A fast block is a single size word followed by its
// payload; while free, that same word doubles as the next-pointer of the
// thread-local LIFO stack (see cache.go). The word is always rewritten
// on handout, never trusted to still hold routing data from its time on
// the free list.
func fastTag(blockSize uintptr) uintptr {
	return blockSize | flagAllocated | flagFastPath
}

func isFastPath(word uintptr) bool { return word&flagFastPath != 0 }

func taggedBlockSize(word uintptr) uintptr { return word &^ flagMask }

// Size classes: 32 classes indexed 0..31, class i holding blocks of
// (i+1)*8 bytes total (size word + payload).
const (
	smallAllocThreshold = 32 * 1024 // bytes; above this, always slow path
	maxSmallSize        = 256       // largest fast-path total block size
	numSmallClasses     = maxSmallSize / alignment
	refillBatch         = 20
	globalArenaMinSize  = 64 * 1024
)

func classForAligned(aligned uintptr) int { return int(aligned/alignment) - 1 }

func classBlockSize(class int) uintptr { return uintptr(class+1) * alignment }
