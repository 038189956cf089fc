package opdecode

import (
	"strconv"

	"github.com/dbtuple/tupleup/internal/arena"
	"github.com/dbtuple/tupleup/internal/arith"
	"github.com/dbtuple/tupleup/internal/pathlex"
	"github.com/dbtuple/tupleup/internal/tuplerr"
	"github.com/dbtuple/tupleup/internal/wire"
)

// DecodeAll decodes the top-level MessagePack array of operations. The
// returned slice is carved out of a's Op pool rather than heap-allocated
// with make/append, so a caller driving many Update calls through one
// Arena pays for that backing storage once per slab rather than once
// per call. a may be nil, in which case DecodeAll falls back to an
// ordinary heap slice (the shape every existing caller that has no
// arena to hand, such as a unit test, already expects).
func DecodeAll(ops []byte, indexBase int, dict FieldDictionary, a *arena.Arena) ([]Op, error) {
	cur := wire.NewCursor(ops)
	kind, err := cur.PeekKind()
	if err != nil || kind != wire.KindArray {
		return nil, &tuplerr.IllegalParamsError{Reason: "update operations must be an array"}
	}
	n, err := cur.DecodeArrayLen()
	if err != nil {
		return nil, &tuplerr.IllegalParamsError{Reason: "update operations must be an array"}
	}
	var result []Op
	if a != nil {
		result = arena.PoolFor[Op](a).Alloc(n)
	} else {
		result = make([]Op, n)
	}
	for i := 0; i < n; i++ {
		op, err := decodeOne(cur, indexBase, dict)
		if err != nil {
			return nil, err
		}
		result[i] = op
	}
	return result, nil
}

func decodeOne(cur *wire.Cursor, indexBase int, dict FieldDictionary) (Op, error) {
	kind, err := cur.PeekKind()
	if err != nil || kind != wire.KindArray {
		return Op{}, &tuplerr.IllegalParamsError{Reason: "update operation must be an array"}
	}
	argc, err := cur.DecodeArrayLen()
	if err != nil {
		return Op{}, &tuplerr.IllegalParamsError{Reason: "update operation must be an array"}
	}
	if argc == 0 {
		return Op{}, &tuplerr.IllegalParamsError{Reason: "update operation must not be empty"}
	}

	opcodeKind, err := cur.PeekKind()
	if err != nil || opcodeKind != wire.KindStr {
		return Op{}, &tuplerr.IllegalParamsError{Reason: "first element of update operation must be a string"}
	}
	opcodeStr, err := cur.DecodeStr()
	if err != nil || len(opcodeStr) != 1 {
		return Op{}, &tuplerr.IllegalParamsError{Reason: "update operation code must be a single character"}
	}
	opcode := opcodeStr[0]
	if !IsKnownOpcode(opcode) {
		return Op{}, &tuplerr.UnknownUpdateOpError{}
	}

	wantArgc := 3
	if opcode == OpSplice {
		wantArgc = 5
	}
	if argc != wantArgc {
		return Op{}, &tuplerr.UnknownUpdateOpError{}
	}

	target, err := decodeTarget(cur, dict)
	if err != nil {
		return Op{}, err
	}

	op := Op{Opcode: opcode, Target: target}
	switch opcode {
	case OpSet, OpInsert:
		start, end, err := cur.SkipOne()
		if err != nil {
			return Op{}, &tuplerr.IllegalParamsError{Reason: "malformed operation value"}
		}
		op.SetValue = cur.Slice(start, end)

	case OpDelete:
		count, err := decodeDeleteCount(cur, opcode)
		if err != nil {
			return Op{}, err
		}
		op.DeleteCount = count

	case OpAdd, OpSub:
		arg, err := decodeArith(cur, opcode)
		if err != nil {
			return Op{}, err
		}
		op.Arith = arg

	case OpAnd, OpOr, OpXor:
		bitKind, err := cur.PeekKind()
		if err != nil || (bitKind != wire.KindInt && bitKind != wire.KindUint) {
			return Op{}, &tuplerr.ArgTypeError{Opcode: opcode, Want: "a non-negative integer"}
		}
		v, err := cur.DecodeUint()
		if err != nil {
			return Op{}, &tuplerr.ArgTypeError{Opcode: opcode, Want: "a non-negative integer"}
		}
		op.Bit = v

	case OpSplice:
		offKind, err := cur.PeekKind()
		if err != nil || (offKind != wire.KindInt && offKind != wire.KindUint) {
			return Op{}, &tuplerr.ArgTypeError{Opcode: opcode, Want: "an integer offset"}
		}
		off, err := cur.DecodeInt()
		if err != nil {
			return Op{}, &tuplerr.ArgTypeError{Opcode: opcode, Want: "an integer offset"}
		}
		op.SpliceOffset = int32(off)

		cutKind, err := cur.PeekKind()
		if err != nil || (cutKind != wire.KindInt && cutKind != wire.KindUint) {
			return Op{}, &tuplerr.ArgTypeError{Opcode: opcode, Want: "an integer cut length"}
		}
		cut, err := cur.DecodeInt()
		if err != nil {
			return Op{}, &tuplerr.ArgTypeError{Opcode: opcode, Want: "an integer cut length"}
		}
		op.SpliceCutLength = int32(cut)

		pasteKind, err := cur.PeekKind()
		if err != nil || pasteKind != wire.KindStr {
			return Op{}, &tuplerr.ArgTypeError{Opcode: opcode, Want: "a string to paste"}
		}
		paste, err := cur.DecodeStr()
		if err != nil {
			return Op{}, &tuplerr.ArgTypeError{Opcode: opcode, Want: "a string to paste"}
		}
		op.SplicePaste = paste
	}

	return op, nil
}

func decodeTarget(cur *wire.Cursor, dict FieldDictionary) (Target, error) {
	kind, err := cur.PeekKind()
	if err != nil {
		return Target{}, &tuplerr.IllegalParamsError{Reason: "malformed field target"}
	}
	switch kind {
	case wire.KindInt, wire.KindUint:
		v, err := cur.DecodeInt()
		if err != nil {
			return Target{}, &tuplerr.IllegalParamsError{Reason: "malformed field target"}
		}
		return Target{Kind: TargetFieldNo, FieldNo: int(v)}, nil
	case wire.KindStr:
		s, err := cur.DecodeStr()
		if err != nil {
			return Target{}, &tuplerr.IllegalParamsError{Reason: "malformed field target"}
		}
		if fieldNo, ok := dict.FieldNo(s); ok {
			return Target{Kind: TargetFieldNo, FieldNo: fieldNo}, nil
		}
		// A leading name is a top-level field name: resolve it through the
		// dictionary and keep the rest of the path for lazy lexing.
		lex := pathlex.New(s, 0)
		if tok, err := lex.Next(); err == nil && tok.Type == pathlex.TokenKey {
			if fieldNo, ok := dict.FieldNo(tok.Key); ok {
				return Target{Kind: TargetPath, Path: "[" + strconv.Itoa(fieldNo) + "]" + lex.Remainder()}, nil
			}
		}
		return Target{Kind: TargetPath, Path: s}, nil
	default:
		return Target{}, &tuplerr.IllegalParamsError{Reason: "field target must be an integer or a string"}
	}
}

func decodeDeleteCount(cur *wire.Cursor, opcode byte) (int, error) {
	kind, err := cur.PeekKind()
	if err != nil || (kind != wire.KindInt && kind != wire.KindUint) {
		return 0, &tuplerr.ArgTypeError{Opcode: opcode, Want: "a positive integer"}
	}
	v, err := cur.DecodeInt()
	if err != nil {
		return 0, &tuplerr.ArgTypeError{Opcode: opcode, Want: "a positive integer"}
	}
	if v <= 0 {
		return 0, &tuplerr.ArgTypeError{Opcode: opcode, Want: "a positive integer"}
	}
	return int(v), nil
}

func decodeArith(cur *wire.Cursor, opcode byte) (arith.Arg, error) {
	kind, err := cur.PeekKind()
	if err != nil {
		return arith.Arg{}, &tuplerr.ArgTypeError{Opcode: opcode, Want: "a number"}
	}
	switch kind {
	case wire.KindInt:
		v, err := cur.DecodeInt()
		if err != nil {
			return arith.Arg{}, &tuplerr.ArgTypeError{Opcode: opcode, Want: "a number"}
		}
		return arith.Arg{Kind: arith.KindInt, Int: arith.FromInt64(v)}, nil
	case wire.KindUint:
		v, err := cur.DecodeUint()
		if err != nil {
			return arith.Arg{}, &tuplerr.ArgTypeError{Opcode: opcode, Want: "a number"}
		}
		return arith.Arg{Kind: arith.KindInt, Int: arith.FromUint64(v)}, nil
	case wire.KindFloat:
		v, err := cur.DecodeFloat()
		if err != nil {
			return arith.Arg{}, &tuplerr.ArgTypeError{Opcode: opcode, Want: "a number"}
		}
		return arith.Arg{Kind: arith.KindFloat, Float32: v}, nil
	case wire.KindDouble:
		v, err := cur.DecodeDouble()
		if err != nil {
			return arith.Arg{}, &tuplerr.ArgTypeError{Opcode: opcode, Want: "a number"}
		}
		return arith.Arg{Kind: arith.KindDouble, Double: v}, nil
	case wire.KindExt:
		v, err := cur.DecodeDecimal()
		if err != nil {
			return arith.Arg{}, &tuplerr.ArgTypeError{Opcode: opcode, Want: "a number"}
		}
		return arith.Arg{Kind: arith.KindDecimal, Decimal: v}, nil
	default:
		return arith.Arg{}, &tuplerr.ArgTypeError{Opcode: opcode, Want: "a number"}
	}
}
