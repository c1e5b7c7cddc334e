// Copyright 2011 Evan Shaw. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE-MMAP-GO file.

//go:build darwin || dragonfly || freebsd || linux || openbsd || solaris || netbsd

// Modifications (c) 2017 The Memory Authors.

package allocator

import (
	"reflect"
	"unsafe"

	"golang.org/x/sys/unix"
)

var osPageSize = unix.Getpagesize()

// mapPages is the Page Provider: a page-granularity, zero-filled,
// read/write, private, anonymous mapping. length must already be a
// multiple of the OS page size.
func mapPages(length uintptr) (unsafe.Pointer, error) {
	b, err := unix.Mmap(-1, 0, int(length), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_PRIVATE|unix.MAP_ANON)
	if err != nil {
		return nil, err
	}

	if uintptr(unsafe.Pointer(&b[0]))&uintptr(osPageSize-1) != 0 {
		panic("allocator: mmap returned a non-page-aligned address")
	}

	return unsafe.Pointer(&b[0]), nil
}

// unmapPages releases a region obtained from mapPages. Unused by the
// current allocator design (see spec §1): no path ever gives memory
// back to the OS. Kept so the Page Provider's contract is complete.
func unmapPages(addr unsafe.Pointer, length uintptr) error {
	var b []byte
	sh := (*reflect.SliceHeader)(unsafe.Pointer(&b))
	sh.Data = uintptr(addr)
	sh.Len = int(length)
	sh.Cap = int(length)
	return unix.Munmap(b)
}
