// Package serialize turns a completed update tree back into the final
// MessagePack-encoded record, in two passes over the same tree shape:
// Sizeof computes the exact output length so the caller can allocate
// once, and Write walks the identical structure emitting bytes into
// that allocation. Keeping both passes as mirror-image switches over
// tree.Field keeps the "these two numbers must agree" invariant
// structural rather than hoped for, the same discipline internal/wire's
// scalar sizeof/encode pairs follow.
package serialize

import (
	"strconv"

	"github.com/dbtuple/tupleup/internal/tree"
	"github.com/dbtuple/tupleup/internal/wire"
)

// Sizeof returns the exact MessagePack-encoded size of f's current
// state.
func Sizeof(f tree.Field) int {
	switch v := f.(type) {
	case *tree.NopField:
		return len(v.Raw)
	case *tree.ScalarField:
		return len(v.NewBytes)
	case *tree.ArrayField:
		total := wire.SizeofArrayHeader(sizeofArrayElems(v))
		v.Elems.Each(func(_ int, child tree.Field) {
			total += sizeofArrayChild(child)
		})
		return total
	case *tree.MapField:
		total := wire.SizeofMapHeader(sizeofMapPairs(v))
		for _, key := range v.Order {
			total += sizeofMapChild(key, v.Children[key], v.KeyIsInt)
		}
		return total
	case *tree.BarField:
		// A BAR reached at the top of Sizeof means it was never placed
		// inside a container (shouldn't happen for a well-formed tree);
		// treat its insert payload as the value, nothing to delete.
		return len(v.InsertValue)
	default:
		return 0
	}
}

// sizeofArrayElems counts how many elements the serialized array will
// actually have. A deleted element never reaches here at all: EraseRange
// removes it from the rope at apply time, so the only BAR shape an array
// rope ever holds by the time Sizeof runs is an insert, which already
// occupies one rope slot like any other child.
func sizeofArrayElems(a *tree.ArrayField) int {
	return a.Elems.Len()
}

func sizeofArrayChild(f tree.Field) int {
	if bar, ok := f.(*tree.BarField); ok {
		return len(bar.InsertValue)
	}
	return Sizeof(f)
}

// sizeofMapPairs counts the pairs that will actually be written: a
// BarMapDelete child is dropped, everything else (including a
// BarMapInsert, which is a genuine new pair) counts as one.
func sizeofMapPairs(m *tree.MapField) int {
	n := 0
	for _, key := range m.Order {
		if bar, ok := m.Children[key].(*tree.BarField); ok && bar.BarKind == tree.BarMapDelete {
			continue
		}
		n++
	}
	return n
}

func sizeofMapKey(key string, keyIsInt bool) int {
	if keyIsInt {
		v, _ := strconv.ParseInt(key, 10, 64)
		return wire.SizeofInt(v)
	}
	return wire.SizeofStr(len(key))
}

func writeMapKey(dst []byte, key string, keyIsInt bool) []byte {
	if keyIsInt {
		v, _ := strconv.ParseInt(key, 10, 64)
		return wire.EncodeInt(dst, v)
	}
	return wire.EncodeStr(dst, key)
}

func sizeofMapChild(key string, f tree.Field, keyIsInt bool) int {
	if bar, ok := f.(*tree.BarField); ok {
		if bar.BarKind == tree.BarMapDelete {
			return 0
		}
		return sizeofMapKey(key, keyIsInt) + len(bar.InsertValue)
	}
	return sizeofMapKey(key, keyIsInt) + Sizeof(f)
}

// Write appends f's encoded bytes to dst and returns the extended
// slice. dst must have at least Sizeof(f) bytes of spare capacity for
// this to run allocation-free, though it will grow dst if not.
func Write(dst []byte, f tree.Field) []byte {
	switch v := f.(type) {
	case *tree.NopField:
		return append(dst, v.Raw...)
	case *tree.ScalarField:
		return append(dst, v.NewBytes...)
	case *tree.ArrayField:
		dst = wire.EncodeArrayHeader(dst, sizeofArrayElems(v))
		v.Elems.Each(func(_ int, child tree.Field) {
			dst = writeArrayChild(dst, child)
		})
		return dst
	case *tree.MapField:
		dst = wire.EncodeMapHeader(dst, sizeofMapPairs(v))
		for _, key := range v.Order {
			dst = writeMapChild(dst, key, v.Children[key], v.KeyIsInt)
		}
		return dst
	case *tree.BarField:
		return append(dst, v.InsertValue...)
	default:
		return dst
	}
}

func writeArrayChild(dst []byte, f tree.Field) []byte {
	if bar, ok := f.(*tree.BarField); ok {
		return append(dst, bar.InsertValue...)
	}
	return Write(dst, f)
}

func writeMapChild(dst []byte, key string, f tree.Field, keyIsInt bool) []byte {
	if bar, ok := f.(*tree.BarField); ok {
		if bar.BarKind == tree.BarMapDelete {
			return dst
		}
		dst = writeMapKey(dst, key, keyIsInt)
		return append(dst, bar.InsertValue...)
	}
	dst = writeMapKey(dst, key, keyIsInt)
	return Write(dst, f)
}

// Record serializes the tree's root array into a standalone record.
func Record(t *tree.Tree) []byte {
	dst := make([]byte, 0, Sizeof(t.Root))
	return Write(dst, t.Root)
}
