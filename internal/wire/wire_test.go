package wire

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/vmihailenco/msgpack/v5"
)

func encode(t *testing.T, v any) []byte {
	t.Helper()
	b, err := msgpack.Marshal(v)
	if err != nil {
		t.Fatalf("marshal %v: %v", v, err)
	}
	return b
}

func TestPeekKindAndSkip(t *testing.T) {
	cases := []struct {
		name string
		val  any
		want Kind
	}{
		{"array", []int{1, 2, 3}, KindArray},
		{"map", map[string]int{"a": 1}, KindMap},
		{"uint", uint64(7), KindUint}, // a uint64 keeps its 9-byte uint64 encoding by default
		{"negint", int64(-5), KindInt},
		{"str", "hello", KindStr},
		{"double", 3.5, KindDouble},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			buf := encode(t, c.val)
			cur := NewCursor(buf)
			got, err := cur.PeekKind()
			if err != nil {
				t.Fatalf("PeekKind: %v", err)
			}
			if got != c.want {
				t.Errorf("PeekKind(%v) = %v, want %v", c.val, got, c.want)
			}
			start, end, err := cur.SkipOne()
			if err != nil {
				t.Fatalf("SkipOne: %v", err)
			}
			if start != 0 || end != len(buf) {
				t.Errorf("SkipOne range = [%d,%d), want [0,%d)", start, end, len(buf))
			}
		})
	}
}

func TestDecodeScalars(t *testing.T) {
	buf := encode(t, []any{uint64(1), int64(-2), "three", 4.5, float32(6.5)})
	cur := NewCursor(buf)
	n, err := cur.DecodeArrayLen()
	if err != nil || n != 5 {
		t.Fatalf("DecodeArrayLen = %d, %v", n, err)
	}
	if u, err := cur.DecodeUint(); err != nil || u != 1 {
		t.Errorf("DecodeUint = %d, %v", u, err)
	}
	if i, err := cur.DecodeInt(); err != nil || i != -2 {
		t.Errorf("DecodeInt = %d, %v", i, err)
	}
	if s, err := cur.DecodeStr(); err != nil || s != "three" {
		t.Errorf("DecodeStr = %q, %v", s, err)
	}
	if d, err := cur.DecodeDouble(); err != nil || d != 4.5 {
		t.Errorf("DecodeDouble = %v, %v", d, err)
	}
	if f, err := cur.DecodeFloat(); err != nil || f != 6.5 {
		t.Errorf("DecodeFloat = %v, %v", f, err)
	}
}

func TestSizeofEncodeAgree(t *testing.T) {
	var dst []byte
	before := len(dst)
	dst = EncodeUint(dst, 300)
	if got, want := len(dst)-before, SizeofUint(300); got != want {
		t.Errorf("uint 300: encoded %d bytes, sizeof said %d", got, want)
	}

	dst = nil
	dst = EncodeInt(dst, -300)
	if got, want := len(dst), SizeofInt(-300); got != want {
		t.Errorf("int -300: encoded %d bytes, sizeof said %d", got, want)
	}

	dst = nil
	dst = EncodeStr(dst, "a reasonably long string for str8 coverage")
	if got, want := len(dst), SizeofStr(len("a reasonably long string for str8 coverage")); got != want {
		t.Errorf("str: encoded %d bytes, sizeof said %d", got, want)
	}
}

func TestDecimalRoundTrip(t *testing.T) {
	d := decimal.RequireFromString("12345.6789")
	var dst []byte
	dst = EncodeDecimal(dst, d)
	if got, want := len(dst), SizeofDecimal(d); got != want {
		t.Fatalf("encoded %d bytes, sizeof said %d", got, want)
	}
	cur := NewCursor(dst)
	kind, err := cur.PeekKind()
	if err != nil || kind != KindExt {
		t.Fatalf("PeekKind = %v, %v, want KindExt", kind, err)
	}
	got, err := cur.DecodeDecimal()
	if err != nil {
		t.Fatalf("DecodeDecimal: %v", err)
	}
	if !got.Equal(d) {
		t.Errorf("DecodeDecimal = %v, want %v", got, d)
	}
}

func TestEncodeHeaders(t *testing.T) {
	if got, want := SizeofArrayHeader(3), 1; got != want {
		t.Errorf("SizeofArrayHeader(3) = %d, want %d", got, want)
	}
	if got, want := SizeofArrayHeader(20), 3; got != want {
		t.Errorf("SizeofArrayHeader(20) = %d, want %d", got, want)
	}
	buf := EncodeArrayHeader(nil, 3)
	cur := NewCursor(buf)
	// A 3-element array header alone is a truncated but still-classifiable value.
	kind, err := cur.PeekKind()
	if err != nil || kind != KindArray {
		t.Errorf("PeekKind of array header = %v, %v", kind, err)
	}
}
