// Copyright 2026 The Allocator Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

//go:build darwin || dragonfly || freebsd || linux || openbsd || solaris || netbsd

package allocator

import (
	"unsafe"

	"golang.org/x/sys/unix"
)

func mmap0(size int) ([]byte, error) {
	// MAP_PRIVATE, not MAP_SHARED: this mapping backs a single process's
	// heap and is never meant to be visible to a fork()ed child or any
	// other process, matching the single-process contract of §1/§6.
	b, err := unix.Mmap(-1, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_PRIVATE|unix.MAP_ANON)
	if err != nil {
		return nil, err
	}

	if uintptr(unsafe.Pointer(&b[0]))&uintptr(pageMask) != 0 {
		panic("internal error: anonymous mapping is not page-aligned")
	}
	return b, nil
}

func unmap(addr unsafe.Pointer, size int) error {
	b := unsafe.Slice((*byte)(addr), size)
	return unix.Munmap(b)
}
