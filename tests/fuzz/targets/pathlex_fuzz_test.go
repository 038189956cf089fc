package targets

import (
	"testing"

	"github.com/dbtuple/tupleup/internal/pathlex"
)

// FuzzLexPath must never panic on any input string, regardless of
// index base; malformed paths are reported as errors, never crashes.
func FuzzLexPath(f *testing.F) {
	f.Add("a.b.c", 1)
	f.Add("[0][*].name", 0)
	f.Add(`["quoted key"]`, 1)
	f.Add("", 1)
	f.Add("[", 0)

	f.Fuzz(func(t *testing.T, path string, indexBaseSeed int) {
		indexBase := indexBaseSeed % 2
		if indexBase < 0 {
			indexBase = -indexBase
		}
		defer func() {
			if r := recover(); r != nil {
				t.Fatalf("panic on path %q (base %d): %v", path, indexBase, r)
			}
		}()
		lex := pathlex.New(path, indexBase)
		for {
			tok, err := lex.Next()
			if err != nil {
				return
			}
			if tok.Type == pathlex.TokenEnd {
				return
			}
		}
	})
}
