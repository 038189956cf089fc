// Package arith implements the arithmetic kernel: '+' and '-' across
// mixed integer, float, double, and decimal operands. The operation runs
// in the more precise of the two operand types (decimal over double over
// float over integer), and the result is encoded in that type.
package arith

import (
	"github.com/shopspring/decimal"

	"github.com/dbtuple/tupleup/internal/tuplerr"
)

// Kind ranks an operand type from most to least precise; the zero value
// is the most precise rung so the promotion rule ("perform the op in the
// lowest type present") is just "smallest Kind wins".
type Kind uint8

const (
	KindDecimal Kind = iota
	KindDouble
	KindFloat
	KindInt
)

// Arg is one operand (or the result) of an arithmetic operation.
type Arg struct {
	Kind    Kind
	Decimal decimal.Decimal
	Double  float64
	Float32 float32
	Int     Int96
}

// Result is the outcome of combining two Args, still tagged by Kind so
// the serializer knows which wire encoding to emit.
type Result struct {
	Kind        Kind
	Decimal     decimal.Decimal
	Double      float64
	Float32     float32
	IntNeg      bool
	IntUnsigned uint64
	IntSigned   int64
}

func lowest(a, b Kind) Kind {
	if a < b {
		return a
	}
	return b
}

func (a Arg) asFloat64() float64 {
	switch a.Kind {
	case KindDouble:
		return a.Double
	case KindFloat:
		return float64(a.Float32)
	case KindInt:
		neg, u, i, _ := a.Int.Classify()
		if neg {
			return float64(i)
		}
		return float64(u)
	case KindDecimal:
		f, _ := a.Decimal.Float64()
		return f
	}
	return 0
}

func (a Arg) asDecimal() decimal.Decimal {
	switch a.Kind {
	case KindDecimal:
		return a.Decimal
	case KindDouble:
		return decimal.NewFromFloat(a.Double)
	case KindFloat:
		return decimal.NewFromFloat32(a.Float32)
	case KindInt:
		neg, u, i, _ := a.Int.Classify()
		if neg {
			return decimal.NewFromInt(i)
		}
		return decimal.NewFromUint64(u)
	}
	return decimal.Zero
}

// Combine performs '+' or '-' on a and b, returning a typed Result or a
// typed error (UpdateIntegerOverflow for out-of-range integer results,
// ArgTypeError if opcode is neither '+' nor '-').
func Combine(opcode byte, a, b Arg, fieldNo int) (Result, error) {
	if opcode != '+' && opcode != '-' {
		return Result{}, &tuplerr.ArgTypeError{Opcode: opcode, FieldNo: fieldNo, Want: "'+' or '-'"}
	}

	switch lowest(a.Kind, b.Kind) {
	case KindInt:
		sum := Add(a.Int, b.Int)
		if opcode == '-' {
			sum = Sub(a.Int, b.Int)
		}
		neg, u, i, ok := sum.Classify()
		if !ok {
			return Result{}, &tuplerr.IntegerOverflowError{Opcode: opcode, FieldNo: fieldNo}
		}
		return Result{Kind: KindInt, IntNeg: neg, IntUnsigned: u, IntSigned: i}, nil

	case KindDecimal:
		x, y := a.asDecimal(), b.asDecimal()
		var d decimal.Decimal
		if opcode == '+' {
			d = x.Add(y)
		} else {
			d = x.Sub(y)
		}
		return Result{Kind: KindDecimal, Decimal: d}, nil

	default: // KindDouble or KindFloat: compute in double, narrow if needed.
		x, y := a.asFloat64(), b.asFloat64()
		var c float64
		if opcode == '+' {
			c = x + y
		} else {
			c = x - y
		}
		if lowest(a.Kind, b.Kind) == KindFloat {
			return Result{Kind: KindFloat, Float32: float32(c)}, nil
		}
		return Result{Kind: KindDouble, Double: c}, nil
	}
}
