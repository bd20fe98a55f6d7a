// Copyright 2026 The Allocator Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command libmalloc builds a C shared object exporting malloc, free,
// calloc and realloc with standard libc signatures, backed by the
// allocator package. Build it with:
//
//	go build -buildmode=c-shared -o libmalloc.so ./cmd/libmalloc
//
// and preload it ahead of the platform allocator:
//
//	LD_PRELOAD=./libmalloc.so your-program          # Linux
//	DYLD_INSERT_LIBRARIES=./libmalloc.so your-program  # Darwin
//
// See the Makefile at the repository root for the canonical build
// recipe.
package main

import "C"

import (
	"unsafe"

	"github.com/cznic-memory-lab/allocator"
)

//export malloc
func malloc(size C.size_t) unsafe.Pointer {
	return allocator.Allocate(int(size))
}

//export free
func free(p unsafe.Pointer) {
	allocator.Release(p)
}

//export calloc
func calloc(count, size C.size_t) unsafe.Pointer {
	return allocator.AllocateZeroed(int(count), int(size))
}

//export realloc
func realloc(p unsafe.Pointer, size C.size_t) unsafe.Pointer {
	return allocator.Resize(p, int(size))
}

func main() {}
