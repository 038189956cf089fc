// Package engine exposes the update function itself: the single
// entry point every other package in this module exists to support.
// Update applies an ordered list of MessagePack-encoded operations to a
// MessagePack-encoded record and returns the resulting record, without
// ever mutating the input.
package engine

import (
	"github.com/dbtuple/tupleup/internal/arena"
	"github.com/dbtuple/tupleup/internal/config"
	"github.com/dbtuple/tupleup/internal/opdecode"
	"github.com/dbtuple/tupleup/internal/serialize"
	"github.com/dbtuple/tupleup/internal/tree"
	"github.com/dbtuple/tupleup/internal/tuplerr"
)

// FieldDictionary resolves a top-level field name to its field number.
// Re-exported from internal/opdecode so callers never need to import
// an internal package just to implement this one interface.
type FieldDictionary = opdecode.FieldDictionary

// noFields is the FieldDictionary used when a caller has no named
// fields at all: every string target falls straight through to path
// lexing.
type noFields struct{}

func (noFields) FieldNo(string) (int, bool) { return 0, false }

// NoFields is a ready-to-use FieldDictionary for callers whose records
// have no named top-level fields.
var NoFields FieldDictionary = noFields{}

// Update applies ops to record and returns the resulting record.
// record and ops are both MessagePack arrays; record is never
// mutated, and the returned slice shares no backing array with it:
// untouched fields are copied byte for byte into the output buffer.
//
// cfg.IndexBase selects whether field numbers and path subscripts are
// 0-based or 1-based; dict resolves string field targets to a
// top-level field number before falling back to path lexing. a, if
// non-nil, services every scratch allocation Update performs and is
// left for the caller to Reset.
func Update(record, ops []byte, cfg config.Config, dict FieldDictionary, a *arena.Arena) ([]byte, error) {
	if dict == nil {
		dict = NoFields
	}
	if a == nil {
		a = arena.New(cfg.ArenaSlabBytes)
	}

	decoded, err := opdecode.DecodeAll(ops, cfg.IndexBase, dict, a)
	if err != nil {
		return nil, err
	}
	if len(decoded) > cfg.MaxOps {
		return nil, &tuplerr.IllegalParamsError{Reason: "too many operations for one update"}
	}

	t, err := tree.New(record, cfg.IndexBase, a)
	if err != nil {
		return nil, err
	}

	for i := range decoded {
		if err := t.Apply(&decoded[i]); err != nil {
			return nil, err
		}
	}

	size := serialize.Sizeof(t.Root)
	if cfg.ArenaBudgetBytes > 0 && a.Bytes()+size > cfg.ArenaBudgetBytes {
		return nil, &tuplerr.IllegalParamsError{Reason: "update would exceed the arena's scratch memory budget"}
	}
	dst := a.Alloc(size)[:0]
	return serialize.Write(dst, t.Root), nil
}
