package tree

import (
	"testing"

	"github.com/dbtuple/tupleup/internal/tuplerr"
)

func TestSpliceResolveOffsetPositiveIndexBaseOne(t *testing.T) {
	off, err := spliceResolveOffset(2, 5, 1, 0)
	if err != nil {
		t.Fatal(err)
	}
	if off != 1 {
		t.Errorf("got %d, want 1", off)
	}
}

func TestSpliceResolveOffsetPositiveIndexBaseZero(t *testing.T) {
	off, err := spliceResolveOffset(1, 5, 0, 0)
	if err != nil {
		t.Fatal(err)
	}
	if off != 1 {
		t.Errorf("got %d, want 1", off)
	}
}

func TestSpliceResolveOffsetBelowIndexBaseRejected(t *testing.T) {
	_, err := spliceResolveOffset(0, 5, 1, 0)
	if _, ok := err.(*tuplerr.SpliceError); !ok {
		t.Fatalf("got %v (%T), want *tuplerr.SpliceError", err, err)
	}
}

func TestSpliceResolveOffsetPositiveClampsToStringEnd(t *testing.T) {
	off, err := spliceResolveOffset(100, 5, 1, 0)
	if err != nil {
		t.Fatal(err)
	}
	if off != 5 {
		t.Errorf("got %d, want 5 (clamped to strLen)", off)
	}
}

func TestSpliceResolveOffsetNegativeCountsFromEnd(t *testing.T) {
	off, err := spliceResolveOffset(-1, 5, 1, 0)
	if err != nil {
		t.Fatal(err)
	}
	if off != 5 {
		t.Errorf("got %d, want 5", off)
	}
}

func TestSpliceResolveOffsetNegativeOutOfBoundRejected(t *testing.T) {
	_, err := spliceResolveOffset(-10, 5, 1, 0)
	if _, ok := err.(*tuplerr.SpliceError); !ok {
		t.Fatalf("got %v (%T), want *tuplerr.SpliceError", err, err)
	}
}
