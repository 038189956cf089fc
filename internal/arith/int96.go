package arith

import "math/bits"

// Int96 is a fixed-width accumulator wide enough to hold the sum or
// difference of any two 64-bit operands (signed or unsigned) without
// intermediate overflow, so the kernel can classify the final result
// once instead of guessing a width up front. It is stored as a 128-bit
// two's-complement pair of machine words rather than the 96 bits the
// name (and the source this is modeled on) suggests — two uint64s cost
// nothing extra on a 64-bit machine and make the carry arithmetic a
// couple of math/bits calls instead of a bespoke bit-packed format.
type Int96 struct {
	hi uint64
	lo uint64
}

// FromUint64 builds an accumulator from a non-negative 64-bit operand.
func FromUint64(v uint64) Int96 {
	return Int96{hi: 0, lo: v}
}

// FromInt64 builds an accumulator from a signed 64-bit operand.
func FromInt64(v int64) Int96 {
	if v >= 0 {
		return FromUint64(uint64(v))
	}
	return Int96{hi: ^uint64(0), lo: uint64(v)}
}

// Add returns a + b.
func Add(a, b Int96) Int96 {
	lo, carry := bits.Add64(a.lo, b.lo, 0)
	hi, _ := bits.Add64(a.hi, b.hi, carry)
	return Int96{hi: hi, lo: lo}
}

// Negate returns -a.
func Negate(a Int96) Int96 {
	hi := ^a.hi
	lo := ^a.lo
	lo, carry := bits.Add64(lo, 1, 0)
	hi, _ = bits.Add64(hi, 0, carry)
	return Int96{hi: hi, lo: lo}
}

// Sub returns a - b.
func Sub(a, b Int96) Int96 {
	return Add(a, Negate(b))
}

// Classify reports how a fits the engine's allowed integer result range
// [-2^63, 2^64). ok is false if a falls outside that range, i.e. the
// operation overflowed.
func (a Int96) Classify() (neg bool, u uint64, i int64, ok bool) {
	if a.hi == 0 {
		return false, a.lo, 0, true
	}
	if a.hi == ^uint64(0) && int64(a.lo) < 0 {
		return true, 0, int64(a.lo), true
	}
	return false, 0, 0, false
}
