// Package wire implements the binary cursor: a reader and writer over
// the MessagePack encoding that backs every tuple record and
// every operation argument the update engine sees. It exposes exactly the
// primitives the update tree and serializer need (peek a type, skip a
// subtree without decoding it, decode a scalar, encode a scalar) rather
// than a general-purpose MessagePack binding, because the tree's whole
// performance story depends on never touching bytes outside the path an
// operation actually walks.
package wire

import (
	"bytes"
	"fmt"
	"math"

	"github.com/shopspring/decimal"
	"github.com/vmihailenco/msgpack/v5"
)

// Kind classifies a MessagePack value without fully decoding it.
type Kind uint8

const (
	KindNil Kind = iota
	KindBool
	KindInt
	KindUint
	KindFloat
	KindDouble
	KindStr
	KindBin
	KindArray
	KindMap
	KindExt
	KindInvalid
)

func (k Kind) String() string {
	switch k {
	case KindNil:
		return "nil"
	case KindBool:
		return "bool"
	case KindInt:
		return "integer"
	case KindUint:
		return "unsigned integer"
	case KindFloat:
		return "float"
	case KindDouble:
		return "double"
	case KindStr:
		return "string"
	case KindBin:
		return "binary"
	case KindArray:
		return "array"
	case KindMap:
		return "map"
	case KindExt:
		return "extension"
	default:
		return "invalid"
	}
}

// classifyCode maps a raw MessagePack leading byte to a Kind. The ranges
// below are the MessagePack format table itself (stable since the format's
// 2013 spec), not an internal detail of any particular binding.
func classifyCode(code byte) Kind {
	switch {
	case code <= 0x7f, code >= 0xe0:
		return KindInt // positive/negative fixint: still representable as int64
	case code >= 0x80 && code <= 0x8f:
		return KindMap // fixmap
	case code >= 0x90 && code <= 0x9f:
		return KindArray // fixarray
	case code >= 0xa0 && code <= 0xbf:
		return KindStr // fixstr
	case code == 0xc0:
		return KindNil
	case code == 0xc2, code == 0xc3:
		return KindBool
	case code == 0xc4, code == 0xc5, code == 0xc6:
		return KindBin
	case code == 0xc7, code == 0xc8, code == 0xc9:
		return KindExt
	case code == 0xca:
		return KindFloat
	case code == 0xcb:
		return KindDouble
	case code >= 0xcc && code <= 0xcf:
		return KindUint
	case code >= 0xd0 && code <= 0xd3:
		return KindInt
	case code >= 0xd4 && code <= 0xd8:
		return KindExt // fixext1..16
	case code >= 0xd9 && code <= 0xdb:
		return KindStr
	case code == 0xdc, code == 0xdd:
		return KindArray
	case code == 0xde, code == 0xdf:
		return KindMap
	default:
		return KindInvalid
	}
}

// DecimalExtID is the MessagePack extension type id used to round-trip
// arbitrary-precision decimals, playing the role Tarantool's MP_DECIMAL
// extension plays for component A's "opaque extension types". The ext
// payload layout (decimal digits as ASCII text) is local to this module;
// no off-the-shelf binding knows it, so both directions are hand-rolled
// directly against the ext8 frame from the MessagePack format table
// (0xc7, length byte, type-id byte, payload), the same table classifyCode
// already relies on.
const DecimalExtID = 1

func decodeDecimalExt(buf []byte, pos int) (decimal.Decimal, int, error) {
	if pos >= len(buf) || buf[pos] != 0xc7 {
		return decimal.Decimal{}, pos, fmt.Errorf("wire: expected ext8 header at offset %d", pos)
	}
	if pos+2 >= len(buf) {
		return decimal.Decimal{}, pos, fmt.Errorf("wire: truncated ext8 header")
	}
	length := int(buf[pos+1])
	typeID := int8(buf[pos+2])
	if typeID != DecimalExtID {
		return decimal.Decimal{}, pos, fmt.Errorf("wire: unexpected ext type %d, want decimal (%d)", typeID, DecimalExtID)
	}
	start := pos + 3
	end := start + length
	if end > len(buf) {
		return decimal.Decimal{}, pos, fmt.Errorf("wire: truncated ext8 payload")
	}
	v, err := decimal.NewFromString(string(buf[start:end]))
	if err != nil {
		return decimal.Decimal{}, pos, fmt.Errorf("wire: malformed decimal extension: %w", err)
	}
	return v, end, nil
}

// Cursor is a read cursor over a borrowed byte slice. It never copies the
// slice and never retains it beyond the call that constructed it; all
// "decode" methods that return []byte or string return sub-slices (or,
// for string, values built from sub-slices) of the original buffer.
type Cursor struct {
	buf []byte
	pos int
	r   *bytes.Reader
	dec *msgpack.Decoder
}

// NewCursor creates a cursor positioned at the start of buf.
func NewCursor(buf []byte) *Cursor {
	r := bytes.NewReader(buf)
	return &Cursor{buf: buf, pos: 0, r: r, dec: msgpack.NewDecoder(r)}
}

// NewCursorAt creates a cursor positioned at byte offset pos within buf.
func NewCursorAt(buf []byte, pos int) *Cursor {
	c := NewCursor(buf)
	c.Seek(pos)
	return c
}

// Pos returns the cursor's current absolute byte offset into buf.
func (c *Cursor) Pos() int { return c.pos }

// Buf returns the underlying buffer the cursor was constructed over.
func (c *Cursor) Buf() []byte { return c.buf }

// Seek repositions the cursor at an absolute offset.
func (c *Cursor) Seek(pos int) {
	c.pos = pos
	c.r.Reset(c.buf[pos:])
}

// sync recomputes c.pos from however much the reader has consumed since
// the cursor was last at c.pos. msgpack.Decoder has no direct byte-offset
// accessor, so the cursor derives it from bytes.Reader.Len(), which it
// does expose.
func (c *Cursor) sync() {
	consumed := len(c.buf[c.pos:]) - c.r.Len()
	c.pos += consumed
}

// PeekKind reports the type of the next value without consuming it.
func (c *Cursor) PeekKind() (Kind, error) {
	code, err := c.dec.PeekCode()
	if err != nil {
		return KindInvalid, err
	}
	return classifyCode(code), nil
}

// SkipOne advances past exactly one value (scalar, or a whole array/map
// subtree) without decoding its contents, and returns the byte range it
// spanned. This is the operation the update tree relies on to avoid
// materializing fields no operation touches.
func (c *Cursor) SkipOne() (start, end int, err error) {
	start = c.pos
	if err = c.dec.Skip(); err != nil {
		return start, start, err
	}
	c.sync()
	return start, c.pos, nil
}

// DecodeArrayLen decodes an array header and returns its element count.
func (c *Cursor) DecodeArrayLen() (int, error) {
	n, err := c.dec.DecodeArrayLen()
	c.sync()
	return n, err
}

// DecodeMapLen decodes a map header and returns its pair count.
func (c *Cursor) DecodeMapLen() (int, error) {
	n, err := c.dec.DecodeMapLen()
	c.sync()
	return n, err
}

// DecodeUint decodes an unsigned integer of any MessagePack width.
func (c *Cursor) DecodeUint() (uint64, error) {
	v, err := c.dec.DecodeUint64()
	c.sync()
	return v, err
}

// DecodeInt decodes a signed integer of any MessagePack width.
func (c *Cursor) DecodeInt() (int64, error) {
	v, err := c.dec.DecodeInt64()
	c.sync()
	return v, err
}

// DecodeFloat decodes a 32-bit float.
func (c *Cursor) DecodeFloat() (float32, error) {
	v, err := c.dec.DecodeFloat32()
	c.sync()
	return v, err
}

// DecodeDouble decodes a 64-bit float.
func (c *Cursor) DecodeDouble() (float64, error) {
	v, err := c.dec.DecodeFloat64()
	c.sync()
	return v, err
}

// DecodeStr decodes a string value.
func (c *Cursor) DecodeStr() (string, error) {
	v, err := c.dec.DecodeString()
	c.sync()
	return v, err
}

// DecodeBool decodes a boolean value.
func (c *Cursor) DecodeBool() (bool, error) {
	v, err := c.dec.DecodeBool()
	c.sync()
	return v, err
}

// DecodeDecimal decodes a decimal extension value.
func (c *Cursor) DecodeDecimal() (decimal.Decimal, error) {
	v, end, err := decodeDecimalExt(c.buf, c.pos)
	if err != nil {
		return decimal.Decimal{}, err
	}
	c.Seek(end)
	return v, nil
}

// DecodeAny decodes the next value generically, for the rare paths (e.g.
// reporting a bad target's concrete value in an error) where the engine
// doesn't care which scalar type it is.
func (c *Cursor) DecodeAny() (any, error) {
	v, err := c.dec.DecodeInterface()
	c.sync()
	return v, err
}

// Slice returns the raw bytes of buf[start:end], a zero-copy view used to
// pass untouched record regions straight through to the serializer.
func (c *Cursor) Slice(start, end int) []byte {
	return c.buf[start:end]
}

// --- Scalar sizeof/encode pairs -------------------------------------------
//
// The values below are hand-rolled against the MessagePack format table
// rather than routed through msgpack.Encoder, because the serializer must
// know the exact encoded size of a brand-new value (an arithmetic result,
// a bitwise result, a length-adjusted array/map header) before it has
// anywhere to write it, and a sizeof/encode pair has to agree byte for
// byte. Keeping both halves in one small file keeps that agreement
// structural rather than hoped-for. Everything the engine does NOT
// synthesize (record passthrough, SET/INSERT argument payloads) is
// handled by Slice above and never re-encoded.

// SizeofUint returns the MessagePack-encoded size of v as an unsigned int.
func SizeofUint(v uint64) int {
	switch {
	case v <= 0x7f:
		return 1
	case v <= 0xff:
		return 2
	case v <= 0xffff:
		return 3
	case v <= 0xffffffff:
		return 5
	default:
		return 9
	}
}

// EncodeUint appends the MessagePack encoding of v to dst.
func EncodeUint(dst []byte, v uint64) []byte {
	switch {
	case v <= 0x7f:
		return append(dst, byte(v))
	case v <= 0xff:
		return append(dst, 0xcc, byte(v))
	case v <= 0xffff:
		return append(dst, 0xcd, byte(v>>8), byte(v))
	case v <= 0xffffffff:
		return append(dst, 0xce, byte(v>>24), byte(v>>16), byte(v>>8), byte(v))
	default:
		return append(dst, 0xcf,
			byte(v>>56), byte(v>>48), byte(v>>40), byte(v>>32),
			byte(v>>24), byte(v>>16), byte(v>>8), byte(v))
	}
}

// SizeofInt returns the MessagePack-encoded size of v as a signed int.
func SizeofInt(v int64) int {
	if v >= 0 {
		return SizeofUint(uint64(v))
	}
	switch {
	case v >= -32:
		return 1
	case v >= -128:
		return 2
	case v >= -32768:
		return 3
	case v >= -2147483648:
		return 5
	default:
		return 9
	}
}

// EncodeInt appends the MessagePack encoding of v to dst.
func EncodeInt(dst []byte, v int64) []byte {
	if v >= 0 {
		return EncodeUint(dst, uint64(v))
	}
	switch {
	case v >= -32:
		return append(dst, byte(int8(v)))
	case v >= -128:
		return append(dst, 0xd0, byte(int8(v)))
	case v >= -32768:
		u := uint16(int16(v))
		return append(dst, 0xd1, byte(u>>8), byte(u))
	case v >= -2147483648:
		u := uint32(int32(v))
		return append(dst, 0xd2, byte(u>>24), byte(u>>16), byte(u>>8), byte(u))
	default:
		u := uint64(v)
		return append(dst, 0xd3,
			byte(u>>56), byte(u>>48), byte(u>>40), byte(u>>32),
			byte(u>>24), byte(u>>16), byte(u>>8), byte(u))
	}
}

// SizeofFloat returns the MessagePack-encoded size of a float32 value.
func SizeofFloat(float32) int { return 5 }

// EncodeFloat appends the MessagePack encoding of v to dst.
func EncodeFloat(dst []byte, v float32) []byte {
	bits := math.Float32bits(v)
	return append(dst, 0xca, byte(bits>>24), byte(bits>>16), byte(bits>>8), byte(bits))
}

// SizeofDouble returns the MessagePack-encoded size of a float64 value.
func SizeofDouble(float64) int { return 9 }

// EncodeDouble appends the MessagePack encoding of v to dst.
func EncodeDouble(dst []byte, v float64) []byte {
	bits := math.Float64bits(v)
	return append(dst, 0xcb,
		byte(bits>>56), byte(bits>>48), byte(bits>>40), byte(bits>>32),
		byte(bits>>24), byte(bits>>16), byte(bits>>8), byte(bits))
}

// SizeofStr returns the MessagePack-encoded size of a string of length n.
func SizeofStr(n int) int {
	switch {
	case n <= 31:
		return 1 + n
	case n <= 0xff:
		return 2 + n
	case n <= 0xffff:
		return 3 + n
	default:
		return 5 + n
	}
}

// EncodeStr appends the MessagePack encoding of s to dst.
func EncodeStr(dst []byte, s string) []byte {
	n := len(s)
	switch {
	case n <= 31:
		dst = append(dst, 0xa0|byte(n))
	case n <= 0xff:
		dst = append(dst, 0xd9, byte(n))
	case n <= 0xffff:
		dst = append(dst, 0xda, byte(n>>8), byte(n))
	default:
		dst = append(dst, 0xdb, byte(n>>24), byte(n>>16), byte(n>>8), byte(n))
	}
	return append(dst, s...)
}

// SizeofArrayHeader returns the MessagePack-encoded size of an array
// header for n elements (not counting the elements themselves).
func SizeofArrayHeader(n int) int {
	switch {
	case n <= 15:
		return 1
	case n <= 0xffff:
		return 3
	default:
		return 5
	}
}

// EncodeArrayHeader appends the MessagePack encoding of an n-element array
// header to dst.
func EncodeArrayHeader(dst []byte, n int) []byte {
	switch {
	case n <= 15:
		return append(dst, 0x90|byte(n))
	case n <= 0xffff:
		return append(dst, 0xdc, byte(n>>8), byte(n))
	default:
		return append(dst, 0xdd, byte(n>>24), byte(n>>16), byte(n>>8), byte(n))
	}
}

// SizeofMapHeader returns the MessagePack-encoded size of a map header
// for n pairs (not counting the pairs themselves).
func SizeofMapHeader(n int) int {
	switch {
	case n <= 15:
		return 1
	case n <= 0xffff:
		return 3
	default:
		return 5
	}
}

// EncodeMapHeader appends the MessagePack encoding of an n-pair map
// header to dst.
func EncodeMapHeader(dst []byte, n int) []byte {
	switch {
	case n <= 15:
		return append(dst, 0x80|byte(n))
	case n <= 0xffff:
		return append(dst, 0xde, byte(n>>8), byte(n))
	default:
		return append(dst, 0xdf, byte(n>>24), byte(n>>16), byte(n>>8), byte(n))
	}
}

// SizeofDecimal returns the MessagePack-encoded size of a decimal
// extension value: a 3-byte ext8 header plus the decimal's digit string.
func SizeofDecimal(d decimal.Decimal) int {
	return 3 + len(d.String())
}

// EncodeDecimal appends the ext8-framed decimal encoding of d to dst.
func EncodeDecimal(dst []byte, d decimal.Decimal) []byte {
	s := d.String()
	dst = append(dst, 0xc7, byte(len(s)), byte(int8(DecimalExtID)))
	return append(dst, s...)
}
