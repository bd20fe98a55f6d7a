// Copyright 2026 The Allocator Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package allocator

import (
	"testing"
	"unsafe"
)

func TestFacadeRoundTrip(t *testing.T) {
	p := Allocate(32)
	if p == nil {
		t.Fatal("Allocate(32) returned nil")
	}
	b := unsafe.Slice((*byte)(p), 32)
	for i := range b {
		b[i] = byte(i)
	}

	q := Resize(p, 500)
	if q == nil {
		t.Fatal("Resize(p, 500) returned nil")
	}
	grown := unsafe.Slice((*byte)(q), 32)
	for i := range grown {
		if grown[i] != byte(i) {
			t.Fatalf("byte %d: got %d, want %d", i, grown[i], i)
		}
	}
	Release(q)
}

func TestFacadeAllocateZero(t *testing.T) {
	if p := Allocate(0); p != nil {
		t.Fatal("Allocate(0) must return nil")
	}
}

func TestFacadeReleaseNil(t *testing.T) {
	Release(nil) // must not panic
}

func TestFacadeAllocateZeroed(t *testing.T) {
	p := AllocateZeroed(16, 4)
	if p == nil {
		t.Fatal("AllocateZeroed(16, 4) returned nil")
	}
	defer Release(p)

	b := unsafe.Slice((*byte)(p), 64)
	for i, v := range b {
		if v != 0 {
			t.Fatalf("byte %d not zeroed", i)
		}
	}
}

func TestFacadeAllocateZeroedOverflow(t *testing.T) {
	if p := AllocateZeroed(1<<62, 1<<62); p != nil {
		t.Fatal("expected nil on overflow")
	}
}

func TestFacadeResizeNilIsAllocate(t *testing.T) {
	p := Resize(nil, 48)
	if p == nil {
		t.Fatal("Resize(nil, 48) returned nil")
	}
	Release(p)
}

func TestFacadeResizeZeroIsRelease(t *testing.T) {
	p := Allocate(48)
	if p == nil {
		t.Fatal("Allocate(48) returned nil")
	}
	if q := Resize(p, 0); q != nil {
		t.Fatal("Resize(p, 0) must return nil")
	}
}
