package targets

import (
	"testing"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/dbtuple/tupleup/internal/config"
	"github.com/dbtuple/tupleup/pkg/engine"
)

// FuzzUpdate must never panic for any (record, ops) pair, even ones
// that aren't even valid MessagePack: every failure mode short of a
// malformed call (which the engine is free to reject) has to surface
// as a typed error, not a crash.
func FuzzUpdate(f *testing.F) {
	record, _ := msgpack.Marshal([]any{1, "two", 3.0})
	ops, _ := msgpack.Marshal([]any{[]any{"+", 1, 1}})
	f.Add(record, ops)
	f.Add([]byte{}, []byte{})
	f.Add([]byte{0x90}, []byte{0x90})

	f.Fuzz(func(t *testing.T, record, ops []byte) {
		defer func() {
			if r := recover(); r != nil {
				t.Fatalf("panic on record %x ops %x: %v", record, ops, r)
			}
		}()
		_, _ = engine.Update(record, ops, config.Default(), nil, nil)
	})
}
