package arith

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/dbtuple/tupleup/internal/tuplerr"
)

func TestCombineUintOverflow(t *testing.T) {
	a := Arg{Kind: KindInt, Int: FromUint64(1 << 63)}
	b := Arg{Kind: KindInt, Int: FromUint64(1 << 63)}
	_, err := Combine('+', a, b, 2)
	if err == nil {
		t.Fatal("expected overflow error")
	}
	if _, ok := err.(*tuplerr.IntegerOverflowError); !ok {
		t.Errorf("got %T, want *tuplerr.IntegerOverflowError", err)
	}
}

func TestCombineUintPlusUint(t *testing.T) {
	a := Arg{Kind: KindInt, Int: FromUint64(5)}
	b := Arg{Kind: KindInt, Int: FromUint64(7)}
	res, err := Combine('+', a, b, 1)
	if err != nil {
		t.Fatal(err)
	}
	if res.Kind != KindInt || res.IntNeg || res.IntUnsigned != 12 {
		t.Errorf("got %+v, want unsigned 12", res)
	}
}

func TestCombineIntSubtractToNegative(t *testing.T) {
	a := Arg{Kind: KindInt, Int: FromUint64(3)}
	b := Arg{Kind: KindInt, Int: FromUint64(5)}
	res, err := Combine('-', a, b, 1)
	if err != nil {
		t.Fatal(err)
	}
	if res.Kind != KindInt || !res.IntNeg || res.IntSigned != -2 {
		t.Errorf("got %+v, want signed -2", res)
	}
}

func TestCombineUintPlusDoubleYieldsDouble(t *testing.T) {
	a := Arg{Kind: KindInt, Int: FromUint64(5)}
	b := Arg{Kind: KindDouble, Double: 1.5}
	res, err := Combine('+', a, b, 1)
	if err != nil {
		t.Fatal(err)
	}
	if res.Kind != KindDouble || res.Double != 6.5 {
		t.Errorf("got %+v, want double 6.5", res)
	}
}

func TestCombineDecimalIsLowestType(t *testing.T) {
	a := Arg{Kind: KindDecimal, Decimal: decimal.RequireFromString("1.50")}
	b := Arg{Kind: KindInt, Int: FromUint64(2)}
	res, err := Combine('+', a, b, 1)
	if err != nil {
		t.Fatal(err)
	}
	if res.Kind != KindDecimal || !res.Decimal.Equal(decimal.RequireFromString("3.50")) {
		t.Errorf("got %+v, want decimal 3.50", res)
	}
}

func TestCombineFloatPlusIntNarrows(t *testing.T) {
	a := Arg{Kind: KindFloat, Float32: 1.5}
	b := Arg{Kind: KindInt, Int: FromUint64(2)}
	res, err := Combine('+', a, b, 1)
	if err != nil {
		t.Fatal(err)
	}
	if res.Kind != KindFloat || res.Float32 != 3.5 {
		t.Errorf("got %+v, want float 3.5 (Int is coarser than Float, so Float wins)", res)
	}
}

func TestCombineFloatPlusDoubleStaysDouble(t *testing.T) {
	a := Arg{Kind: KindFloat, Float32: 1.5}
	b := Arg{Kind: KindDouble, Double: 2.25}
	res, err := Combine('+', a, b, 1)
	if err != nil {
		t.Fatal(err)
	}
	if res.Kind != KindDouble || res.Double != 3.75 {
		t.Errorf("got %+v, want double 3.75 (Double is more precise than Float, so Double wins)", res)
	}
}

func TestCombineBadOpcode(t *testing.T) {
	a := Arg{Kind: KindInt, Int: FromUint64(1)}
	if _, err := Combine('*', a, a, 1); err == nil {
		t.Fatal("expected error for non +/- opcode")
	}
}
