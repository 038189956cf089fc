package opdecode

import (
	"testing"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/dbtuple/tupleup/internal/arith"
	"github.com/dbtuple/tupleup/internal/tuplerr"
)

type testDict map[string]int

func (d testDict) FieldNo(name string) (int, bool) {
	n, ok := d[name]
	return n, ok
}

func mustPack(t *testing.T, v any) []byte {
	t.Helper()
	b, err := msgpack.Marshal(v)
	if err != nil {
		t.Fatalf("mustPack: %v", err)
	}
	return b
}

func TestDecodeSetByFieldNo(t *testing.T) {
	ops := mustPack(t, []any{[]any{"=", 1, "hello"}})
	decoded, err := DecodeAll(ops, 0, testDict{}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(decoded) != 1 {
		t.Fatalf("got %d ops, want 1", len(decoded))
	}
	op := decoded[0]
	if op.Opcode != OpSet || op.Target.Kind != TargetFieldNo || op.Target.FieldNo != 1 {
		t.Errorf("got %+v", op)
	}
}

func TestDecodeTargetDictionaryFirst(t *testing.T) {
	ops := mustPack(t, []any{[]any{"=", "name", "hello"}})
	dict := testDict{"name": 3}
	decoded, err := DecodeAll(ops, 0, dict, nil)
	if err != nil {
		t.Fatal(err)
	}
	op := decoded[0]
	if op.Target.Kind != TargetFieldNo || op.Target.FieldNo != 3 {
		t.Errorf("got %+v, want dictionary-resolved field 3", op.Target)
	}
}

func TestDecodeTargetFallsBackToPath(t *testing.T) {
	ops := mustPack(t, []any{[]any{"=", "nested.field", "hello"}})
	decoded, err := DecodeAll(ops, 0, testDict{}, nil)
	if err != nil {
		t.Fatal(err)
	}
	op := decoded[0]
	if op.Target.Kind != TargetPath || op.Target.Path != "nested.field" {
		t.Errorf("got %+v, want path target", op.Target)
	}
}

func TestDecodeUnknownOpcode(t *testing.T) {
	ops := mustPack(t, []any{[]any{"@", 1, "x"}})
	_, err := DecodeAll(ops, 0, testDict{}, nil)
	if _, ok := err.(*tuplerr.UnknownUpdateOpError); !ok {
		t.Errorf("got %T, want *tuplerr.UnknownUpdateOpError", err)
	}
}

func TestDecodeWrongArgCount(t *testing.T) {
	ops := mustPack(t, []any{[]any{"=", 1}})
	_, err := DecodeAll(ops, 0, testDict{}, nil)
	if _, ok := err.(*tuplerr.UnknownUpdateOpError); !ok {
		t.Errorf("got %T, want *tuplerr.UnknownUpdateOpError", err)
	}
}

func TestDecodeDelete(t *testing.T) {
	ops := mustPack(t, []any{[]any{"#", 2, 3}})
	decoded, err := DecodeAll(ops, 0, testDict{}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if decoded[0].DeleteCount != 3 {
		t.Errorf("got %d, want 3", decoded[0].DeleteCount)
	}
}

func TestDecodeDeleteNonPositiveRejected(t *testing.T) {
	ops := mustPack(t, []any{[]any{"#", 2, 0}})
	_, err := DecodeAll(ops, 0, testDict{}, nil)
	if _, ok := err.(*tuplerr.ArgTypeError); !ok {
		t.Errorf("got %T, want *tuplerr.ArgTypeError", err)
	}
}

func TestDecodeArithInt(t *testing.T) {
	ops := mustPack(t, []any{[]any{"+", 0, 5}})
	decoded, err := DecodeAll(ops, 0, testDict{}, nil)
	if err != nil {
		t.Fatal(err)
	}
	arg := decoded[0].Arith
	if arg.Kind != arith.KindInt {
		t.Errorf("got kind %v, want KindInt", arg.Kind)
	}
	_, u, _, ok := arg.Int.Classify()
	if !ok || u != 5 {
		t.Errorf("got %+v, want 5", arg.Int)
	}
}

func TestDecodeArithDouble(t *testing.T) {
	ops := mustPack(t, []any{[]any{"+", 0, 2.5}})
	decoded, err := DecodeAll(ops, 0, testDict{}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if decoded[0].Arith.Kind != arith.KindDouble || decoded[0].Arith.Double != 2.5 {
		t.Errorf("got %+v", decoded[0].Arith)
	}
}

func TestDecodeArithBadType(t *testing.T) {
	ops := mustPack(t, []any{[]any{"+", 0, "nope"}})
	_, err := DecodeAll(ops, 0, testDict{}, nil)
	if _, ok := err.(*tuplerr.ArgTypeError); !ok {
		t.Errorf("got %T, want *tuplerr.ArgTypeError", err)
	}
}

func TestDecodeBitwise(t *testing.T) {
	ops := mustPack(t, []any{[]any{"&", 1, uint64(0xff)}})
	decoded, err := DecodeAll(ops, 0, testDict{}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if decoded[0].Bit != 0xff {
		t.Errorf("got %d, want 0xff", decoded[0].Bit)
	}
}

func TestDecodeSplice(t *testing.T) {
	ops := mustPack(t, []any{[]any{":", 1, 2, 3, "xyz"}})
	decoded, err := DecodeAll(ops, 0, testDict{}, nil)
	if err != nil {
		t.Fatal(err)
	}
	op := decoded[0]
	if op.SpliceOffset != 2 || op.SpliceCutLength != 3 || op.SplicePaste != "xyz" {
		t.Errorf("got %+v", op)
	}
}

func TestDecodeSpliceWrongArgCount(t *testing.T) {
	ops := mustPack(t, []any{[]any{":", 1, 2, 3}})
	_, err := DecodeAll(ops, 0, testDict{}, nil)
	if _, ok := err.(*tuplerr.UnknownUpdateOpError); !ok {
		t.Errorf("got %T, want *tuplerr.UnknownUpdateOpError", err)
	}
}

func TestDecodeMultipleOps(t *testing.T) {
	ops := mustPack(t, []any{
		[]any{"=", 0, 1},
		[]any{"#", 1, 1},
		[]any{"+", 2, 10},
	})
	decoded, err := DecodeAll(ops, 0, testDict{}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(decoded) != 3 {
		t.Fatalf("got %d ops, want 3", len(decoded))
	}
}

func TestDecodeTopLevelNotArray(t *testing.T) {
	ops := mustPack(t, map[string]int{"a": 1})
	_, err := DecodeAll(ops, 0, testDict{}, nil)
	if _, ok := err.(*tuplerr.IllegalParamsError); !ok {
		t.Errorf("got %T, want *tuplerr.IllegalParamsError", err)
	}
}
