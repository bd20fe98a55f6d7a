// Copyright 2026 The Allocator Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package allocator implements a size-class segregated slab allocator that
// obtains its backing memory directly from the operating system via
// anonymous page mappings.
//
// Small requests (1 to maxSmall bytes) are served from one of ten
// power-of-two size classes; each class is backed by a chain of OS pages,
// every page partitioned into fixed-size cells threaded onto an
// intra-page free list. Large requests are served by a dedicated,
// page-aligned mapping unmapped on release.
//
// The zero value of Allocator is ready to use.
package allocator

import (
	"fmt"
	"os"
	"unsafe"

	"github.com/cznic/mathutil"
)

const (
	numClasses = 10
	minSmall   = 1
	maxSmall   = 1 << numClasses // 1024

	wordSize = int(unsafe.Sizeof(uintptr(0)))
)

// trace, when true, makes Malloc, Calloc, Free and Realloc log to stderr;
// the Unsafe* methods, UsableSize and the package facade do not log. Flip it
// on for local debugging; it is not wired to any flag or environment
// variable.
const trace = false

var (
	pageSize    = os.Getpagesize()
	pageMask    = pageSize - 1
	headerSize  = roundup(int(unsafe.Sizeof(smallPage{})), wordSize)
	regionHdrSz = roundup(int(unsafe.Sizeof(largeRegion{})), wordSize)

	// classSizes[i] is the block size of class i: 2, 4, 8, ..., 1024.
	classSizes [numClasses]int
	// cellsPerClass[i] is the number of cells a fresh page of class i holds.
	cellsPerClass [numClasses]int
)

func init() {
	for i := 0; i < numClasses; i++ {
		classSizes[i] = 1 << uint(i+1)
		cellsPerClass[i] = (pageSize - headerSize) / classSizes[i]
	}
}

// roundup rounds n up to the nearest multiple of m. m must be a power of 2.
func roundup(n, m int) int { return (n + m - 1) &^ (m - 1) }

// classOf returns the smallest size class whose block size is >= n, or -1
// when n exceeds maxSmall and must be served by the large allocator.
func classOf(n int) int {
	if n > maxSmall {
		return -1
	}
	if n < 2 {
		n = 2
	}
	// BitLen(n-1) is the exponent of the smallest power of two >= n.
	return mathutil.BitLen(n-1) - 1
}

// freeCell overlays an unallocated cell of a small page. Its only field is
// the intra-page free-list link; the rest of the cell is whatever the
// previous occupant (or the OS) left there.
type freeCell struct {
	next *freeCell
}

// smallPage is the header occupying the first headerSize bytes of one OS
// page. Cells of the page follow immediately after, word-aligned.
type smallPage struct {
	blockSize int
	next      *smallPage
	free      *freeCell
}

// largeRegion is the header occupying the first regionHdrSz bytes of a
// dedicated multi-page mapping. The user pointer is base + regionHdrSz.
type largeRegion struct {
	mapped     int
	next, prev *largeRegion
}

// Allocator allocates and releases memory sourced from anonymous OS
// mappings. Its zero value is ready for use. An Allocator is not safe for
// concurrent use; see Allocate/Release/AllocateZeroed/Resize for a
// mutex-guarded facade over a process-wide default instance.
type Allocator struct {
	classes [numClasses]*smallPage
	large   *largeRegion

	allocs int // live allocation count.
	mmaps  int // live OS mappings.
	bytes  int // bytes currently asked from the OS.
}

func (a *Allocator) mmap(size int) (unsafe.Pointer, error) {
	b, err := mmap0(size)
	if err != nil {
		return nil, err
	}

	a.mmaps++
	a.bytes += len(b)
	return unsafe.Pointer(&b[0]), nil
}

func (a *Allocator) munmap(base unsafe.Pointer, size int) error {
	a.mmaps--
	a.bytes -= size
	return unmap(base, size)
}

// provisionPage obtains one fresh OS page for class, threads its cells onto
// a free list, and prepends it to the class's page chain.
func (a *Allocator) provisionPage(class int) (*smallPage, error) {
	base, err := a.mmap(pageSize)
	if err != nil {
		return nil, err
	}

	p := (*smallPage)(base)
	p.blockSize = classSizes[class]
	p.free = nil
	p.next = a.classes[class]

	stride := uintptr(classSizes[class])
	cellBase := uintptr(base) + uintptr(headerSize)
	for i := cellsPerClass[class] - 1; i >= 0; i-- {
		cell := (*freeCell)(unsafe.Pointer(cellBase + uintptr(i)*stride))
		cell.next = p.free
		p.free = cell
	}

	a.classes[class] = p
	return p, nil
}

// allocateSmall serves a request of minSmall..maxSmall bytes from the
// matching size class, provisioning a new page when every existing page
// of that class is exhausted.
func (a *Allocator) allocateSmall(n int) (unsafe.Pointer, error) {
	if n < minSmall {
		n = minSmall
	}
	class := classOf(n)
	p := a.classes[class]
	for p != nil && p.free == nil {
		p = p.next
	}
	if p == nil {
		var err error
		if p, err = a.provisionPage(class); err != nil {
			return nil, err
		}
	}

	cell := p.free
	p.free = cell.next
	a.allocs++
	return unsafe.Pointer(cell), nil
}

// allocateLarge serves a request of more than maxSmall bytes with a
// dedicated mapping, prepended to the global large-region list.
func (a *Allocator) allocateLarge(n int) (unsafe.Pointer, error) {
	mapped := roundup(n+regionHdrSz, pageSize)
	base, err := a.mmap(mapped)
	if err != nil {
		return nil, err
	}

	r := (*largeRegion)(base)
	r.mapped = mapped
	r.prev = nil
	r.next = a.large
	if a.large != nil {
		a.large.prev = r
	}
	a.large = r
	a.allocs++
	return unsafe.Pointer(uintptr(base) + uintptr(regionHdrSz)), nil
}

func (a *Allocator) allocate(n int) (unsafe.Pointer, error) {
	if n <= 0 {
		return nil, nil
	}
	if n <= maxSmall {
		return a.allocateSmall(n)
	}
	return a.allocateLarge(n)
}

// isSmallBlockSize reports whether sz is one of the ten valid class sizes.
func isSmallBlockSize(sz int) bool {
	for _, s := range classSizes {
		if s == sz {
			return true
		}
	}
	return false
}

// classify implements Strategy A of classify-and-release: mask p to its
// page boundary and check for a valid small-page header first, falling
// back to a walk of the large-region list. Exactly one of the two results
// is non-nil, or both are nil for a foreign pointer.
func (a *Allocator) classify(p unsafe.Pointer) (pg *smallPage, region *largeRegion) {
	base := uintptr(p) &^ uintptr(pageMask)
	candidate := (*smallPage)(unsafe.Pointer(base))
	if isSmallBlockSize(candidate.blockSize) {
		return candidate, nil
	}

	for r := a.large; r != nil; r = r.next {
		if uintptr(unsafe.Pointer(r))+uintptr(regionHdrSz) == uintptr(p) {
			return nil, r
		}
	}
	return nil, nil
}

// release implements classify-and-release (C5). A nil p is a no-op. A
// pointer that re-releases the current free-list head of its page is a
// double-free and is silently ignored rather than corrupting the list; a
// pointer foreign to this Allocator is also silently ignored.
func (a *Allocator) release(p unsafe.Pointer) {
	if p == nil {
		return
	}

	pg, region := a.classify(p)
	switch {
	case pg != nil:
		cell := (*freeCell)(p)
		if pg.free == cell {
			return
		}
		cell.next = pg.free
		pg.free = cell
		a.allocs--
	case region != nil:
		if region.prev != nil {
			region.prev.next = region.next
		} else {
			a.large = region.next
		}
		if region.next != nil {
			region.next.prev = region.prev
		}
		a.allocs--
		a.munmap(unsafe.Pointer(region), region.mapped)
	}
}

// usableSize recovers the full writable capacity of a pointer previously
// issued by this Allocator, or 0 if p is nil or foreign.
func (a *Allocator) usableSize(p unsafe.Pointer) int {
	if p == nil {
		return 0
	}

	pg, region := a.classify(p)
	switch {
	case pg != nil:
		return pg.blockSize
	case region != nil:
		return region.mapped - regionHdrSz
	default:
		return 0
	}
}

// resize implements size recovery & copy-resize (C6).
func (a *Allocator) resize(p unsafe.Pointer, n int) (unsafe.Pointer, error) {
	if p == nil {
		return a.allocate(n)
	}
	if n == 0 {
		a.release(p)
		return nil, nil
	}

	pg, region := a.classify(p)
	var c int
	switch {
	case pg != nil:
		c = pg.blockSize
	case region != nil:
		c = region.mapped - regionHdrSz
	}
	switch {
	case pg != nil && n <= maxSmall && classOf(n) == classOf(pg.blockSize):
		return p, nil
	case region != nil && n > maxSmall && n <= c:
		return p, nil
	}

	q, err := a.allocate(n)
	if err != nil {
		return nil, err
	}

	cp := c
	if n < cp {
		cp = n
	}
	copyBytes(q, p, cp)
	a.release(p)
	return q, nil
}

// allocateZeroed implements the overflow-checked k*m zeroed allocation.
func (a *Allocator) allocateZeroed(k, m int) (unsafe.Pointer, error) {
	if k == 0 || m == 0 {
		return nil, nil
	}

	total := k * m
	if total/m != k {
		return nil, nil
	}

	p, err := a.allocate(total)
	if err != nil || p == nil {
		return nil, err
	}
	zero(p, total)
	return p, nil
}

func zero(p unsafe.Pointer, n int) {
	b := unsafe.Slice((*byte)(p), n)
	for i := range b {
		b[i] = 0
	}
}

func copyBytes(dst, src unsafe.Pointer, n int) {
	if n == 0 {
		return
	}
	d := unsafe.Slice((*byte)(dst), n)
	s := unsafe.Slice((*byte)(src), n)
	copy(d, s)
}

func sliceFor(p unsafe.Pointer, size, capacity int) []byte {
	if p == nil || capacity == 0 {
		return nil
	}
	full := unsafe.Slice((*byte)(p), capacity)
	return full[:size:capacity]
}

// Malloc allocates size bytes and returns a byte slice over the allocated
// memory. The memory is not initialized. Malloc panics for size < 0 and
// returns (nil, nil) for zero size.
//
// It's ok to reslice the returned slice but the result of appending to it
// cannot be passed to Free or Realloc once it refers to a different
// backing array.
func (a *Allocator) Malloc(size int) (r []byte, err error) {
	if trace {
		defer func() {
			var p *byte
			if len(r) != 0 {
				p = &r[0]
			}
			fmt.Fprintf(os.Stderr, "Malloc(%#x) %p, %v\n", size, p, err)
		}()
	}
	if size < 0 {
		panic("invalid malloc size")
	}
	if size == 0 {
		return nil, nil
	}

	p, err := a.allocate(size)
	if err != nil || p == nil {
		return nil, err
	}
	return sliceFor(p, size, a.usableSize(p)), nil
}

// Calloc is like Malloc except the allocated memory is zeroed.
func (a *Allocator) Calloc(size int) (r []byte, err error) {
	if trace {
		defer func() {
			var p *byte
			if len(r) != 0 {
				p = &r[0]
			}
			fmt.Fprintf(os.Stderr, "Calloc(%#x) %p, %v\n", size, p, err)
		}()
	}
	if size < 0 {
		panic("invalid calloc size")
	}
	if size == 0 {
		return nil, nil
	}

	p, err := a.allocateZeroed(size, 1)
	if err != nil || p == nil {
		return nil, err
	}
	return sliceFor(p, size, a.usableSize(p)), nil
}

// Free deallocates memory acquired from Malloc, Calloc or Realloc. The
// slice is first extended to its capacity, so a slice resliced to zero
// length still frees its block; only a slice of zero capacity is a no-op.
func (a *Allocator) Free(b []byte) error {
	if trace {
		var p *byte
		if len(b) != 0 {
			p = &b[0]
		}
		defer fmt.Fprintf(os.Stderr, "Free(%#x)\n", p)
	}

	b = b[:cap(b)]
	if len(b) == 0 {
		return nil
	}
	a.release(unsafe.Pointer(&b[0]))
	return nil
}

// Realloc changes the size of the backing array of b to size bytes. The
// contents are unchanged up to the minimum of the old and new sizes. If
// b's backing array is of zero size the call is equivalent to
// Malloc(size); if size is zero and b is non-empty the call is equivalent
// to Free(b). If the area pointed to was moved, the old array is freed.
func (a *Allocator) Realloc(b []byte, size int) (r []byte, err error) {
	if trace {
		defer func() {
			var p *byte
			if len(r) != 0 {
				p = &r[0]
			}
			fmt.Fprintf(os.Stderr, "Realloc(%#x) %p, %v\n", size, p, err)
		}()
	}
	switch {
	case cap(b) == 0:
		return a.Malloc(size)
	case size == 0:
		return nil, a.Free(b)
	}

	p, err := a.resize(unsafe.Pointer(&b[0]), size)
	if err != nil || p == nil {
		return nil, err
	}
	return sliceFor(p, size, a.usableSize(p)), nil
}

// UnsafeMalloc is like Malloc except it returns an unsafe.Pointer.
func (a *Allocator) UnsafeMalloc(size int) (unsafe.Pointer, error) {
	if size < 0 {
		panic("invalid malloc size")
	}
	return a.allocate(size)
}

// UnsafeCalloc is like Calloc except it returns an unsafe.Pointer.
func (a *Allocator) UnsafeCalloc(size int) (unsafe.Pointer, error) {
	if size < 0 {
		panic("invalid calloc size")
	}
	return a.allocateZeroed(size, 1)
}

// UnsafeFree is like Free except its argument is an unsafe.Pointer, which
// must have been acquired from UnsafeMalloc, UnsafeCalloc or
// UnsafeRealloc.
func (a *Allocator) UnsafeFree(p unsafe.Pointer) error {
	a.release(p)
	return nil
}

// UnsafeRealloc is like Realloc except its first argument and result are
// unsafe.Pointer values acquired from / for UnsafeMalloc, UnsafeCalloc or
// UnsafeRealloc.
func (a *Allocator) UnsafeRealloc(p unsafe.Pointer, size int) (unsafe.Pointer, error) {
	return a.resize(p, size)
}

// UnsafeUsableSize is like UsableSize except its argument is an
// unsafe.Pointer.
func (a *Allocator) UnsafeUsableSize(p unsafe.Pointer) int {
	return a.usableSize(p)
}

// UsableSize reports the size of the memory block allocated at p, which
// must point to the first byte of a slice returned from Calloc, Malloc or
// Realloc. The block can be larger than the size originally requested.
func (a *Allocator) UsableSize(p *byte) int {
	return a.usableSize(unsafe.Pointer(p))
}
