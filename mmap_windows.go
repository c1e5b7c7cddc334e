// Copyright 2011 Evan Shaw. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE-MMAP-GO file.

// Modifications (c) 2017 The Memory Authors.

package allocator

import (
	"errors"
	"os"
	"sync"
	"unsafe"

	"golang.org/x/sys/windows"
)

var osPageSize = os.Getpagesize()

// mapPages on Windows is a two-step process: CreateFileMapping gets a
// handle, MapViewOfFile turns it into an actual pointer into memory.
var (
	handleMu  sync.Mutex
	handleMap = map[uintptr]windows.Handle{}
)

func mapPages(length uintptr) (unsafe.Pointer, error) {
	maxSizeHigh := uint32(uint64(length) >> 32)
	maxSizeLow := uint32(uint64(length) & 0xFFFFFFFF)

	h, err := windows.CreateFileMapping(windows.InvalidHandle, nil, windows.PAGE_READWRITE, maxSizeHigh, maxSizeLow, nil)
	if h == 0 {
		return nil, os.NewSyscallError("CreateFileMapping", err)
	}

	addr, err := windows.MapViewOfFile(h, windows.FILE_MAP_WRITE, 0, 0, length)
	if addr == 0 {
		return nil, os.NewSyscallError("MapViewOfFile", err)
	}

	if addr&uintptr(osPageSize-1) != 0 {
		panic("allocator: mmap returned a non-page-aligned address")
	}

	handleMu.Lock()
	handleMap[addr] = h
	handleMu.Unlock()

	return unsafe.Pointer(addr), nil
}

// unmapPages releases a region obtained from mapPages. Unused by the
// current allocator design; see mmap_unix.go.
func unmapPages(addr unsafe.Pointer, length uintptr) error {
	a := uintptr(addr)

	handleMu.Lock()
	handle, ok := handleMap[a]
	if ok {
		delete(handleMap, a)
	}
	handleMu.Unlock()

	if !ok {
		return errors.New("allocator: unknown base address")
	}

	if err := windows.UnmapViewOfFile(a); err != nil {
		return err
	}

	return windows.CloseHandle(handle)
}
