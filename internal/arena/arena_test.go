package arena

import "testing"

func TestArenaAllocGrowsAcrossSlabs(t *testing.T) {
	a := New(8)
	first := a.Alloc(4)
	second := a.Alloc(8) // doesn't fit in the 4 bytes left of the first slab
	if len(first) != 4 || len(second) != 8 {
		t.Fatalf("got lens %d, %d, want 4, 8", len(first), len(second))
	}
	if a.Bytes() == 0 {
		t.Error("expected Bytes to report slab usage after allocating")
	}
}

func TestArenaResetReleasesSlabs(t *testing.T) {
	a := New(64)
	a.Alloc(32)
	a.Reset()
	if a.Bytes() != 0 {
		t.Errorf("got %d bytes after Reset, want 0", a.Bytes())
	}
}

type widget struct {
	next *widget
	n    int
}

func TestPoolAllocZeroValue(t *testing.T) {
	a := New(64)
	ws := PoolFor[widget](a).Alloc(3)
	if len(ws) != 3 {
		t.Fatalf("got %d widgets, want 3", len(ws))
	}
	for i, w := range ws {
		if w.n != 0 || w.next != nil {
			t.Errorf("widget %d not zero-valued: %+v", i, w)
		}
	}
}

func TestPoolPreservesPointersAcrossAllocs(t *testing.T) {
	a := New(64)
	pool := PoolFor[widget](a)
	first := pool.New()
	first.n = 1
	second := pool.New()
	second.n = 2
	first.next = second
	if first.next.n != 2 {
		t.Errorf("got %d, want 2", first.next.n)
	}
}

func TestPoolForReturnsSamePoolForSameType(t *testing.T) {
	a := New(64)
	p1 := PoolFor[widget](a)
	p1.New()
	p2 := PoolFor[widget](a)
	if p1 != p2 {
		t.Fatal("expected PoolFor to cache one Pool per type per Arena")
	}
}

func TestPoolForDistinguishesTypes(t *testing.T) {
	a := New(64)
	widgets := PoolFor[widget](a)
	ints := PoolFor[int](a)
	if any(widgets) == any(ints) {
		t.Fatal("expected distinct pools for distinct element types")
	}
}

func TestArenaResetClearsPools(t *testing.T) {
	a := New(64)
	pool := PoolFor[widget](a)
	pool.Alloc(4)
	a.Reset()
	if len(pool.slabs) != 0 || pool.cur != nil {
		t.Error("expected Reset to clear every Pool's slabs along with the byte slabs")
	}
}
