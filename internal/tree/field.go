// Package tree builds and serializes the in-memory update tree: the
// lazily-specialized structure that accumulates every operation's effect
// over a single pass, so a tuple with many untouched fields costs only
// as much as the fields an update actually names. A freshly built tree
// is all NOP; each operation walks it, specializing exactly the nodes
// on its own path into SCALAR, ARRAY, MAP, or BAR nodes as needed, and
// conflicts between two operations that specialize the same node the
// same way (or incompatibly) surface as typed errors rather than
// silently picking a winner.
package tree

import (
	"github.com/dbtuple/tupleup/internal/arena"
	"github.com/dbtuple/tupleup/internal/arith"
	"github.com/dbtuple/tupleup/internal/tuplerr"
	"github.com/dbtuple/tupleup/internal/wire"
)

// FieldKind identifies which of the five node shapes a Field currently
// is. A NOP specializes into SCALAR, ARRAY, MAP, or BAR as operations
// reach it, and an ARRAY or MAP can in turn be replaced by a SCALAR
// through '='; a specialized node never goes back to NOP.
type FieldKind uint8

const (
	KindNop FieldKind = iota
	KindScalar
	KindArray
	KindMap
	KindBar
)

// Field is one node of the update tree. Every concrete type below
// implements it; Kind() reports the node shape, and the merge and
// serialize logic recover the concrete type with Go type switches.
type Field interface {
	Kind() FieldKind
}

// NopField is an untouched node: no operation's path has reached it, so
// it carries only the byte range to copy verbatim during serialization.
type NopField struct {
	Raw []byte
}

func (*NopField) Kind() FieldKind { return KindNop }

// ScalarField is a leaf that exactly one terminal operation has
// produced a new value for. NewBytes is already fully encoded and ready
// to copy into the output; a second operation reaching the same leaf is
// a FieldDoubleError raised by the merge logic, never by this type.
type ScalarField struct {
	NewBytes []byte
}

func (*ScalarField) Kind() FieldKind { return KindScalar }

// ArrayField is a container node whose children have been lazily
// exploded into a Rope because some operation's path descends into it.
// IndexBase is the index base (0 or 1) the host configured, applied
// when resolving this array's own child field numbers. Arena is
// threaded down from Tree.New so a path descending further into a
// nested array can keep allocating its own Rope nodes from the same
// caller-supplied arena rather than falling back to the heap.
type ArrayField struct {
	Elems     *Rope
	IndexBase int
	Arena     *arena.Arena
}

func (*ArrayField) Kind() FieldKind { return KindArray }

// MapField is a container node exploded into named children because
// some operation's path descends into it by key. Order preserves the
// original key order on unmodified keys; keys created by a MAP-insert
// anchor are appended in the order they were created. Children is
// always keyed by a string, even for an integer-keyed map: KeyIsInt
// records that every key decoded from (and re-encoded to) the wire as
// an integer rather than a string, with the map's canonical key
// string being its base-10 decimal form. Children itself stays an
// ordinary Go map rather than an arena-backed structure: a hash map's
// entries have no stable positional address to bump-allocate into the
// way a rope's do, and Go's map type offers no hook for supplying its
// own backing storage, so this is the one container in the tree that
// keeps using plain heap allocation. Arena carries the caller-supplied
// arena down to any array a path reaches through this map.
type MapField struct {
	Children  map[string]Field
	Order     []string
	IndexBase int
	KeyIsInt  bool
	Arena     *arena.Arena
}

func (*MapField) Kind() FieldKind { return KindMap }

func (m *MapField) get(key string) (Field, bool) {
	f, ok := m.Children[key]
	return f, ok
}

func (m *MapField) set(key string, f Field) {
	if _, exists := m.Children[key]; !exists {
		m.Order = append(m.Order, key)
	}
	m.Children[key] = f
}

// BarKind distinguishes the boundary-anchor shapes a BAR node can take:
// an array element about to be inserted, or a map key about to be
// inserted or deleted. An array deletion never needs an anchor of its
// own — EraseRange removes the element from the rope directly at apply
// time, so a BAR never nests; it is always a terminal specialization of
// the slot it replaces.
type BarKind uint8

const (
	BarArrayInsert BarKind = iota
	BarMapInsert
	BarMapDelete
)

// BarField anchors an insertion or deletion at a position that a rope
// index or map key alone can't express once more than one operation
// touches the same neighborhood (e.g. "insert before 3" and "update 3"
// in the same call).
type BarField struct {
	BarKind     BarKind
	InsertValue []byte // raw encoded bytes, for BarArrayInsert/BarMapInsert
	InsertKey   string // for BarMapInsert
}

func (*BarField) Kind() FieldKind { return KindBar }

// DecimalResultValue encodes an arithmetic Result back into MessagePack
// bytes, used by ScalarField construction after a '+'/'-' op runs.
func DecimalResultValue(r arith.Result) []byte {
	var dst []byte
	switch r.Kind {
	case arith.KindDecimal:
		return wire.EncodeDecimal(dst, r.Decimal)
	case arith.KindDouble:
		return wire.EncodeDouble(dst, r.Double)
	case arith.KindFloat:
		return wire.EncodeFloat(dst, r.Float32)
	default:
		if r.IntNeg {
			return wire.EncodeInt(dst, r.IntSigned)
		}
		return wire.EncodeUint(dst, r.IntUnsigned)
	}
}

// newDoubleErr builds the typed error for two operations specializing
// the same scalar position, shared by the array and map merge paths.
func newDoubleErr(fieldNo int) error {
	return &tuplerr.FieldDoubleError{FieldNo: fieldNo}
}
