// Copyright 2026 The Allocator Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package allocator

import (
	"sync"
	"unsafe"
)

// defaultAllocator backs the package-level facade below. Unlike the
// Allocator type itself, every entry point here is guarded by mu: the
// facade is the surface the cgo preload harness (cmd/libmalloc) calls
// from arbitrary C callers, and those calls are not guaranteed to be
// single-threaded the way a pure-Go Allocator's contract assumes.
var (
	mu               sync.Mutex
	defaultAllocator Allocator
)

// Allocate returns a pointer to at least n writable bytes, or nil. A
// request of n == 0 returns nil. Unlike Allocator.Malloc, Allocate never
// panics on a negative n; a C caller across the cgo boundary has no Go
// recover to catch one.
func Allocate(n int) unsafe.Pointer {
	if n <= 0 {
		return nil
	}

	mu.Lock()
	defer mu.Unlock()
	p, err := defaultAllocator.UnsafeMalloc(n)
	if err != nil {
		return nil
	}
	return p
}

// Release frees a pointer previously returned by Allocate, AllocateZeroed
// or Resize. A nil pointer is a no-op.
func Release(p unsafe.Pointer) {
	if p == nil {
		return
	}

	mu.Lock()
	defer mu.Unlock()
	defaultAllocator.UnsafeFree(p)
}

// AllocateZeroed returns a pointer to count*size zeroed bytes, or nil if
// either operand is zero or the product overflows.
func AllocateZeroed(count, size int) unsafe.Pointer {
	if count <= 0 || size <= 0 {
		return nil
	}

	mu.Lock()
	defer mu.Unlock()
	p, err := defaultAllocator.allocateZeroed(count, size)
	if err != nil {
		return nil
	}
	return p
}

// Resize returns a pointer to at least n writable bytes, preserving
// min(old capacity, n) leading bytes of p, or nil. p == nil behaves as
// Allocate(n); n == 0 behaves as Release(p) followed by a nil return. On
// allocation failure p is left intact and Resize returns nil.
func Resize(p unsafe.Pointer, n int) unsafe.Pointer {
	mu.Lock()
	defer mu.Unlock()
	q, err := defaultAllocator.UnsafeRealloc(p, n)
	if err != nil {
		return nil
	}
	return q
}
