package heap

import (
	"path/filepath"
	"testing"

	"github.com/parlang/parnet/pkg/cell"
)

// TestAllocAccounting verifies bump growth and free-list reuse: every
// alloc not served by a free list grows the band by exactly its size,
// and a cleared block is handed back by the next same-size alloc.
func TestAllocAccounting(t *testing.T) {
	h := New(1<<12, 1)
	a := h.Area(0)

	l1 := a.Alloc(2)
	if a.Used() != 2 {
		t.Errorf("used after alloc(2): got %d want 2", a.Used())
	}
	l2 := a.Alloc(3)
	if a.Used() != 5 {
		t.Errorf("used after alloc(3): got %d want 5", a.Used())
	}
	if l2 != l1+2 {
		t.Errorf("bump: got %d want %d", l2, l1+2)
	}

	a.Clear(l1, 2)
	if got := a.Alloc(2); got != l1 {
		t.Errorf("free-list reuse: got %d want %d", got, l1)
	}
	// The reuse must not have grown the band.
	if a.Used() != 5 {
		t.Errorf("used after reuse: got %d want 5", a.Used())
	}

	// Free lists are per-size: clearing a 3-block doesn't serve alloc(2).
	a.Clear(l2, 3)
	if got := a.Alloc(2); got == l2 {
		t.Error("alloc(2) must not be served from the size-3 list")
	}
}

func TestAllocZero(t *testing.T) {
	h := New(1<<8, 1)
	a := h.Area(0)
	if got := a.Alloc(0); got != 0 {
		t.Errorf("alloc(0): got %d want 0", got)
	}
	if a.Used() != 0 {
		t.Errorf("alloc(0) must not consume cells")
	}
}

func TestBands(t *testing.T) {
	h := New(1<<10, 4)
	if h.BandSize() != 1<<8 {
		t.Fatalf("band size: got %d want %d", h.BandSize(), 1<<8)
	}
	for tid := 0; tid < 4; tid++ {
		a := h.Area(tid)
		loc := a.Alloc(1)
		want := uint32(tid) * h.BandSize()
		if loc != want {
			t.Errorf("worker %d first alloc: got %d want %d", tid, loc, want)
		}
	}
}

func TestBandExhaustion(t *testing.T) {
	h := New(8, 1)
	a := h.Area(0)
	a.Alloc(8)
	defer func() {
		if recover() == nil {
			t.Error("expected panic on band exhaustion")
		}
	}()
	a.Alloc(1)
}

// TestCrossBandVisibility: a cell linked by one band's allocator is
// readable at the shared heap level regardless of which band owns it.
func TestCrossBandVisibility(t *testing.T) {
	h := New(1<<10, 2)
	a1 := h.Area(1)
	loc := a1.Alloc(1)
	h.Set(loc, cell.Num(99))
	if got := h.Get(loc); cell.NumVal(got) != 99 {
		t.Errorf("got %d want 99", cell.NumVal(got))
	}
}

func TestStack(t *testing.T) {
	var s Stack
	if _, ok := s.Pop(); ok {
		t.Error("pop on empty must fail")
	}
	s.Push(10)
	s.Push(20)
	s.Push(10)
	if s.Len() != 3 {
		t.Errorf("len: got %d want 3", s.Len())
	}
	if got := s.Find(10); got != 2 {
		t.Errorf("find topmost: got %d want 2", got)
	}
	if got := s.Find(99); got != -1 {
		t.Errorf("find missing: got %d want -1", got)
	}
	if v, ok := s.Peek(); !ok || v != 10 {
		t.Errorf("peek: got %d,%v", v, ok)
	}
	if v, _ := s.Pop(); v != 10 {
		t.Errorf("pop: got %d want 10", v)
	}
	if v, _ := s.Pop(); v != 20 {
		t.Errorf("pop: got %d want 20", v)
	}
}

func TestBitset(t *testing.T) {
	b := NewBitset(256)
	if b.Get(63) || b.Get(64) {
		t.Error("fresh bitset must be clear")
	}
	b.Set(63)
	b.Set(64)
	if !b.Get(63) || !b.Get(64) {
		t.Error("set bits must read back")
	}
	if b.Get(62) || b.Get(65) {
		t.Error("neighbours must stay clear")
	}
	b.Reset()
	if b.Get(63) || b.Get(64) {
		t.Error("reset must clear")
	}
}

func TestLockTable(t *testing.T) {
	lt := NewLockTable(16)
	if !lt.TryLock(5) {
		t.Fatal("first lock must succeed")
	}
	if lt.TryLock(5) {
		t.Error("second lock on same loc must fail")
	}
	// Striping: a colliding location contends with the first.
	if lt.TryLock(5 + 16) {
		t.Error("colliding stripe must appear locked")
	}
	if !lt.TryLock(6) {
		t.Error("other stripes must stay free")
	}
	lt.Unlock(5)
	if !lt.TryLock(5) {
		t.Error("lock after unlock must succeed")
	}
}

func TestSnapshotRoundTrip(t *testing.T) {
	h := New(1<<8, 2)
	a0 := h.Area(0)
	a1 := h.Area(1)
	l0 := a0.Alloc(2)
	h.Set(l0, cell.Num(11))
	h.Set(l0+1, cell.Num(22))
	l1 := a1.Alloc(1)
	h.Set(l1, cell.Num(33))

	s := h.Snapshot([]uint32{a0.Used(), a1.Used()}, l0, 1234)

	path := filepath.Join(t.TempDir(), "heap.bin")
	if err := SaveSnapshot(path, s); err != nil {
		t.Fatalf("save: %v", err)
	}
	loaded, err := LoadSnapshot(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded.Root != l0 || loaded.Cost != 1234 {
		t.Errorf("meta: got root=%d cost=%d", loaded.Root, loaded.Cost)
	}
	h2 := loaded.Restore()
	for _, loc := range []uint32{l0, l0 + 1, l1} {
		if h2.Get(loc) != h.Get(loc) {
			t.Errorf("cell %d: got %x want %x", loc, h2.Get(loc), h.Get(loc))
		}
	}
}

func TestLoadSnapshotMissing(t *testing.T) {
	if _, err := LoadSnapshot(filepath.Join(t.TempDir(), "nope.bin")); err == nil {
		t.Error("expected error for missing file")
	}
}
