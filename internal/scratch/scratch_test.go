package scratch

import (
	"errors"
	"testing"
	"unsafe"
)

func TestAllocateUpToCapacity(t *testing.T) {
	a := New(256)
	a.Reset()

	if _, err := a.Allocate(256); err != nil {
		t.Fatalf("allocating the full arena failed: %v", err)
	}
	if _, err := a.Allocate(1); !errors.Is(err, ErrOutOfScratch) {
		t.Errorf("expected ErrOutOfScratch, got %v", err)
	}

	a.Reset()
	if _, err := a.Allocate(257); !errors.Is(err, ErrOutOfScratch) {
		t.Errorf("one byte beyond capacity should fail, got %v", err)
	}
	if a.Used() != 0 {
		t.Errorf("failed allocation consumed %d bytes", a.Used())
	}
}

func TestAllocateInPieces(t *testing.T) {
	a := New(64)
	for i := 0; i < 4; i++ {
		if _, err := a.Allocate(16); err != nil {
			t.Fatalf("allocation %d failed: %v", i, err)
		}
	}
	if _, err := a.Allocate(1); !errors.Is(err, ErrOutOfScratch) {
		t.Errorf("expected ErrOutOfScratch, got %v", err)
	}
}

func TestAllocationsAreAligned(t *testing.T) {
	a := New(1024)
	for _, size := range []int{1, 3, 17, 40, 8} {
		b, err := a.Allocate(size)
		if err != nil {
			t.Fatal(err)
		}
		if addr := uintptr(unsafe.Pointer(&b[0])); addr%Alignment != 0 {
			t.Errorf("allocation of %d bytes at %#x is not %d-byte aligned", size, addr, Alignment)
		}
		if len(b) != size {
			t.Errorf("len = %d, want %d", len(b), size)
		}
	}
}

func TestResetZeroesReusedMemory(t *testing.T) {
	a := New(32)
	b, _ := a.Allocate(8)
	for i := range b {
		b[i] = 0xff
	}
	a.Reset()
	b, _ = a.Allocate(8)
	for i, v := range b {
		if v != 0 {
			t.Fatalf("byte %d = %#x after reset, want 0", i, v)
		}
	}
}

func TestAllocTyped(t *testing.T) {
	type sample struct {
		X, Y, Z float64
		ID      uint32
	}
	a := New(1024)
	s, err := Alloc[sample](a, 4)
	if err != nil {
		t.Fatal(err)
	}
	if len(s) != 4 {
		t.Fatalf("len = %d", len(s))
	}
	s[3] = sample{X: 1, ID: 7}
	if s[3].ID != 7 || s[0].ID != 0 {
		t.Error("typed slice not usable")
	}

	if _, err := Alloc[sample](a, 1000); !errors.Is(err, ErrOutOfScratch) {
		t.Errorf("expected ErrOutOfScratch, got %v", err)
	}
	if got, _ := Alloc[sample](a, 0); got != nil {
		t.Error("zero-length alloc should return nil")
	}
}

func TestHighWater(t *testing.T) {
	a := New(128)
	a.Allocate(48)
	a.Reset()
	a.Allocate(16)
	if a.HighWater() != 48 {
		t.Errorf("HighWater = %d, want 48", a.HighWater())
	}
	if a.Capacity() != 128 {
		t.Errorf("Capacity = %d, want 128", a.Capacity())
	}
}
