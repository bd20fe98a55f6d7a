// Copyright 2026 The Allocator Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

//go:build windows

package allocator

import (
	"unsafe"

	"golang.org/x/sys/windows"
)

// handleOf recovers the mapping handle backing an anonymous Windows
// mapping so that unmap can close it. CreateFileMapping/MapViewOfFile
// provides no other way to get back from an address to its handle.
var handleOf = map[uintptr]windows.Handle{}

func mmap0(size int) ([]byte, error) {
	maxSizeHigh := uint32(uint64(size) >> 32)
	maxSizeLow := uint32(uint64(size) & 0xFFFFFFFF)

	h, err := windows.CreateFileMapping(windows.InvalidHandle, nil, windows.PAGE_READWRITE, maxSizeHigh, maxSizeLow, nil)
	if err != nil {
		return nil, err
	}

	addr, err := windows.MapViewOfFile(h, windows.FILE_MAP_WRITE, 0, 0, uintptr(size))
	if err != nil {
		windows.CloseHandle(h)
		return nil, err
	}

	if addr&uintptr(pageMask) != 0 {
		windows.UnmapViewOfFile(addr)
		windows.CloseHandle(h)
		panic("internal error: anonymous mapping is not page-aligned")
	}

	handleOf[addr] = h
	return unsafe.Slice((*byte)(unsafe.Pointer(addr)), size), nil
}

func unmap(addr unsafe.Pointer, size int) error {
	a := uintptr(addr)
	if err := windows.UnmapViewOfFile(a); err != nil {
		return err
	}

	h, ok := handleOf[a]
	if !ok {
		return nil
	}
	delete(handleOf, a)
	return windows.CloseHandle(h)
}
