// Package scratch provides the per-step bump allocator used by the physics
// step for its working buffers.
//
// The arena is sized once and rewound with Reset at every step boundary;
// nothing is ever freed individually. Running out of space is fatal for the
// step that asked, never a silent truncation.
package scratch

import (
	"errors"
	"fmt"
	"unsafe"
)

const (
	// Alignment of every allocation, wide enough for 4-component float32 vectors.
	Alignment = 16

	DefaultSize = 10 << 20
)

var ErrOutOfScratch = errors.New("scratch: out of scratch memory")

type Allocator struct {
	words     []uint64
	mem       []byte
	offset    int
	highWater int
}

// New creates an arena of size bytes (rounded up to Alignment).
func New(size int) *Allocator {
	if size < 0 {
		size = 0
	}
	size = alignUp(size)
	// one extra alignment unit so the usable window can start on a 16-byte boundary
	words := make([]uint64, (size+Alignment)/8)
	var mem []byte
	if len(words) > 0 {
		raw := unsafe.Slice((*byte)(unsafe.Pointer(&words[0])), len(words)*8)
		start := int((Alignment - uintptr(unsafe.Pointer(&raw[0]))%Alignment) % Alignment)
		mem = raw[start : start+size]
	}
	return &Allocator{words: words, mem: mem}
}

// Allocate hands out size zeroed bytes. The offset only moves when the
// allocation fits.
func (a *Allocator) Allocate(size int) ([]byte, error) {
	if size < 0 {
		return nil, fmt.Errorf("scratch: negative allocation %d", size)
	}
	if size == 0 {
		return a.mem[a.offset:a.offset:a.offset], nil
	}
	end := a.offset + size
	if end > len(a.mem) {
		return nil, fmt.Errorf("%w: need %d bytes, %d of %d in use", ErrOutOfScratch, size, a.offset, len(a.mem))
	}
	b := a.mem[a.offset:end:end]
	clear(b)
	a.offset = alignUp(end)
	if a.offset > len(a.mem) {
		a.offset = len(a.mem)
	}
	if a.offset > a.highWater {
		a.highWater = a.offset
	}
	return b, nil
}

// Reset rewinds the arena. Slices handed out before the call must no
// longer be used.
func (a *Allocator) Reset() { a.offset = 0 }

func (a *Allocator) Used() int      { return a.offset }
func (a *Allocator) Capacity() int  { return len(a.mem) }
func (a *Allocator) Free() int      { return len(a.mem) - a.offset }
func (a *Allocator) HighWater() int { return a.highWater }

// Alloc returns a zeroed slice of n values carved from the arena. T must
// not contain pointers: the arena is invisible to the garbage collector.
func Alloc[T any](a *Allocator, n int) ([]T, error) {
	if n <= 0 {
		return nil, nil
	}
	var zero T
	size := int(unsafe.Sizeof(zero)) * n
	b, err := a.Allocate(size)
	if err != nil {
		return nil, err
	}
	return unsafe.Slice((*T)(unsafe.Pointer(unsafe.SliceData(b))), n), nil
}

func alignUp(n int) int {
	return (n + Alignment - 1) &^ (Alignment - 1)
}
