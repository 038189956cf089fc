package tree

import (
	"github.com/dbtuple/tupleup/internal/arith"
	"github.com/dbtuple/tupleup/internal/opdecode"
	"github.com/dbtuple/tupleup/internal/tuplerr"
	"github.com/dbtuple/tupleup/internal/wire"
)

// opHandler computes the terminal Field an operation produces, given the
// old encoded bytes at its target. Indexed by opcode byte, the same
// dispatch shape the teacher's bytecode interpreter uses for instruction
// execution, applied here to update operations instead. indexBase is the
// host-configured array index origin, needed by splice to resolve a
// non-negative offset the same way the rest of the engine resolves field
// numbers.
type opHandler func(op *opdecode.Op, old []byte, fieldNo, indexBase int) (Field, error)

var handlers [256]opHandler

func init() {
	handlers[opdecode.OpSet] = handleSet
	handlers[opdecode.OpInsert] = handleInsert
	handlers[opdecode.OpDelete] = handleDelete
	handlers[opdecode.OpAdd] = handleArith
	handlers[opdecode.OpSub] = handleArith
	handlers[opdecode.OpAnd] = handleBitwise
	handlers[opdecode.OpOr] = handleBitwise
	handlers[opdecode.OpXor] = handleBitwise
	handlers[opdecode.OpSplice] = handleSplice
}

// ExecuteTerminal looks up op's handler and runs it.
func ExecuteTerminal(op *opdecode.Op, old []byte, fieldNo, indexBase int) (Field, error) {
	h := handlers[op.Opcode]
	if h == nil {
		return nil, &tuplerr.UnknownUpdateOpError{}
	}
	return h(op, old, fieldNo, indexBase)
}

func handleSet(op *opdecode.Op, old []byte, fieldNo, indexBase int) (Field, error) {
	return &ScalarField{NewBytes: op.SetValue}, nil
}

// handleInsert fills the '!' slot of the table. build.go handles every
// '!' itself (an array-insert or map-insert BAR in applyTerminalInArray
// and applyTerminalInMap), so no call path reaches this handler.
func handleInsert(op *opdecode.Op, old []byte, fieldNo, indexBase int) (Field, error) {
	return &ScalarField{NewBytes: op.SetValue}, nil
}

func handleDelete(op *opdecode.Op, old []byte, fieldNo, indexBase int) (Field, error) {
	return nil, &tuplerr.FieldBadTypeError{FieldNo: fieldNo, Reason: "field delete must be routed through its container"}
}

func decodeArg(raw []byte) (arith.Arg, error) {
	cur := wire.NewCursorAt(raw, 0)
	kind, err := cur.PeekKind()
	if err != nil {
		return arith.Arg{}, err
	}
	switch kind {
	case wire.KindInt:
		v, err := cur.DecodeInt()
		if err != nil {
			return arith.Arg{}, err
		}
		return arith.Arg{Kind: arith.KindInt, Int: arith.FromInt64(v)}, nil
	case wire.KindUint:
		v, err := cur.DecodeUint()
		if err != nil {
			return arith.Arg{}, err
		}
		return arith.Arg{Kind: arith.KindInt, Int: arith.FromUint64(v)}, nil
	case wire.KindFloat:
		v, err := cur.DecodeFloat()
		if err != nil {
			return arith.Arg{}, err
		}
		return arith.Arg{Kind: arith.KindFloat, Float32: v}, nil
	case wire.KindDouble:
		v, err := cur.DecodeDouble()
		if err != nil {
			return arith.Arg{}, err
		}
		return arith.Arg{Kind: arith.KindDouble, Double: v}, nil
	case wire.KindExt:
		v, err := cur.DecodeDecimal()
		if err != nil {
			return arith.Arg{}, err
		}
		return arith.Arg{Kind: arith.KindDecimal, Decimal: v}, nil
	default:
		return arith.Arg{}, &tuplerr.FieldBadTypeError{Reason: "field is not a number"}
	}
}

func handleArith(op *opdecode.Op, old []byte, fieldNo, indexBase int) (Field, error) {
	oldArg, err := decodeArg(old)
	if err != nil {
		return nil, &tuplerr.ArgTypeError{Opcode: op.Opcode, FieldNo: fieldNo, Want: "a number"}
	}
	res, err := arith.Combine(op.Opcode, oldArg, op.Arith, fieldNo)
	if err != nil {
		return nil, err
	}
	return &ScalarField{NewBytes: DecimalResultValue(res)}, nil
}

func handleBitwise(op *opdecode.Op, old []byte, fieldNo, indexBase int) (Field, error) {
	cur := wire.NewCursorAt(old, 0)
	kind, err := cur.PeekKind()
	if err != nil || (kind != wire.KindUint && kind != wire.KindInt) {
		return nil, &tuplerr.ArgTypeError{Opcode: op.Opcode, FieldNo: fieldNo, Want: "an unsigned integer"}
	}
	v, err := cur.DecodeUint()
	if err != nil {
		return nil, &tuplerr.ArgTypeError{Opcode: op.Opcode, FieldNo: fieldNo, Want: "an unsigned integer"}
	}
	var result uint64
	switch op.Opcode {
	case opdecode.OpAnd:
		result = v & op.Bit
	case opdecode.OpOr:
		result = v | op.Bit
	case opdecode.OpXor:
		result = v ^ op.Bit
	}
	return &ScalarField{NewBytes: wire.EncodeUint(nil, result)}, nil
}

func handleSplice(op *opdecode.Op, old []byte, fieldNo, indexBase int) (Field, error) {
	cur := wire.NewCursorAt(old, 0)
	kind, err := cur.PeekKind()
	if err != nil || kind != wire.KindStr {
		return nil, &tuplerr.ArgTypeError{Opcode: op.Opcode, FieldNo: fieldNo, Want: "a string"}
	}
	s, err := cur.DecodeStr()
	if err != nil {
		return nil, &tuplerr.ArgTypeError{Opcode: op.Opcode, FieldNo: fieldNo, Want: "a string"}
	}

	offset, err := spliceResolveOffset(op.SpliceOffset, len(s), indexBase, fieldNo)
	if err != nil {
		return nil, err
	}
	cut := spliceResolveCut(op.SpliceCutLength, len(s)-offset)

	result := s[:offset] + op.SplicePaste + s[offset+cut:]
	return &ScalarField{NewBytes: wire.EncodeStr(nil, result)}, nil
}

// spliceResolveOffset converts a possibly negative splice offset into a
// 0-based index, following update_op_do_splice's two branches exactly:
// a negative offset counts back from the end of the string (offset +
// strLen + 1, with no index_base adjustment — it is already absolute),
// while a non-negative offset is relative to indexBase and clamped to
// strLen rather than rejected when it runs past the end. Either branch
// that still leaves a negative offset raises SpliceError.
func spliceResolveOffset(offset int32, strLen, indexBase, fieldNo int) (int, error) {
	if offset < 0 {
		if int(-offset) > strLen+1 {
			return 0, &tuplerr.SpliceError{FieldNo: fieldNo, Reason: "offset is out of bound"}
		}
		return int(offset) + strLen + 1, nil
	}
	if int(offset)-indexBase >= 0 {
		pos := int(offset) - indexBase
		if pos > strLen {
			pos = strLen
		}
		return pos, nil
	}
	return 0, &tuplerr.SpliceError{FieldNo: fieldNo, Reason: "offset is out of bound"}
}

func spliceResolveCut(cut int32, remaining int) int {
	if cut < 0 {
		c := remaining + int(cut)
		if c < 0 {
			return 0
		}
		return c
	}
	if int(cut) > remaining {
		return remaining
	}
	return int(cut)
}
