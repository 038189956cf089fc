package tree

import (
	"strconv"
	"strings"

	"github.com/dbtuple/tupleup/internal/arena"
	"github.com/dbtuple/tupleup/internal/opdecode"
	"github.com/dbtuple/tupleup/internal/pathlex"
	"github.com/dbtuple/tupleup/internal/tuplerr"
	"github.com/dbtuple/tupleup/internal/wire"
)

// Tree is the update tree for a single record: an ArrayField root whose
// descendants specialize in place as operations apply. A Tree is built
// once per Update call and discarded once the serializer has walked it.
type Tree struct {
	Root      *ArrayField
	IndexBase int
}

// New decodes record's top-level array header only, leaving every
// field as a single unmaterialized rope run: building a Tree costs
// O(1) regardless of how many fields record has, since nothing about
// those fields is decoded until an operation's path actually reaches
// one of them. a, if non-nil, is the caller-supplied arena every rope
// node and decoded operation this call goes on to allocate is carved
// from; a nil arena falls back to the heap, which is what every
// existing caller with no arena to hand (a unit test, chiefly) expects.
func New(record []byte, indexBase int, a *arena.Arena) (*Tree, error) {
	cur := wire.NewCursor(record)
	kind, err := cur.PeekKind()
	if err != nil || kind != wire.KindArray {
		return nil, &tuplerr.IllegalParamsError{Reason: "tuple/key must be MsgPack array"}
	}
	n, err := cur.DecodeArrayLen()
	if err != nil {
		return nil, &tuplerr.IllegalParamsError{Reason: "tuple/key must be MsgPack array"}
	}
	body := record[cur.Pos():]
	return &Tree{
		Root:      &ArrayField{Elems: NewRopeFromSlice(n, body, a), IndexBase: indexBase, Arena: a},
		IndexBase: indexBase,
	}, nil
}

// Apply runs a single decoded operation against the tree, specializing
// whichever nodes lie on its path.
func (t *Tree) Apply(op *opdecode.Op) error {
	idx, lex, err := t.resolveTarget(op)
	if err != nil {
		return err
	}
	return applyToArray(t.Root, idx, lex, op)
}

// resolveTarget converts an operation's Target into a 0-based top-level
// index plus, for path targets, a lexer positioned after the first
// token (which resolveTarget itself consumes to find that index).
func (t *Tree) resolveTarget(op *opdecode.Op) (int, *pathlex.Lexer, error) {
	switch op.Target.Kind {
	case opdecode.TargetFieldNo:
		idx, err := resolveIndex(op.Target.FieldNo, t.IndexBase, t.Root.Elems.Len())
		return idx, nil, err

	case opdecode.TargetPath:
		lex := pathlex.New(op.Target.Path, t.IndexBase)
		tok, err := lex.Next()
		if err != nil {
			return 0, nil, &tuplerr.FieldBadJSONError{Path: op.Target.Path, Reason: err.Error()}
		}
		switch tok.Type {
		case pathlex.TokenNum:
			if tok.Num < 0 || tok.Num > t.Root.Elems.Len() {
				return 0, nil, &tuplerr.NoSuchFieldNoError{FieldNo: tok.Num}
			}
			return tok.Num, lex, nil
		case pathlex.TokenKey:
			return 0, nil, &tuplerr.NoSuchFieldNameError{Name: tok.Key}
		default:
			return 0, nil, &tuplerr.FieldBadJSONError{Path: op.Target.Path, Reason: "path has no leading subscript"}
		}
	default:
		return 0, nil, &tuplerr.IllegalParamsError{Reason: "unrecognized field target"}
	}
}

// resolveIndex normalizes a signed field number (as carried on the
// wire, not yet index-based) into a 0-based index: non-negative numbers
// are taken relative to base, negative numbers count back from the end
// (-1 is the last field).
func resolveIndex(fieldNo, base, length int) (int, error) {
	if fieldNo >= 0 {
		idx := fieldNo - base
		if idx < 0 {
			return 0, &tuplerr.NoSuchFieldNoError{FieldNo: fieldNo}
		}
		return idx, nil
	}
	idx := length + fieldNo
	if idx < 0 {
		return 0, &tuplerr.NoSuchFieldNoError{FieldNo: fieldNo}
	}
	return idx, nil
}

// freshLexerFromRemainder hands the unconsumed suffix of a path to a
// sibling subtree (one element reached through a '[*]' wildcard) as a
// brand new lexer, exactly the "slice rather than re-lex" handoff
// pathlex.Lexer's own doc comment describes.
func freshLexerFromRemainder(remainder string, indexBase int) *pathlex.Lexer {
	remainder = strings.TrimPrefix(remainder, ".")
	return pathlex.New(remainder, indexBase)
}

func applyToArray(arr *ArrayField, idx int, lex *pathlex.Lexer, op *opdecode.Op) error {
	if lex == nil || lex.AtEnd() {
		return applyTerminalInArray(arr, idx, op)
	}
	if idx < 0 || idx >= arr.Elems.Len() {
		return &tuplerr.NoSuchFieldNoError{FieldNo: idx}
	}

	tok, err := lex.Next()
	if err != nil {
		return &tuplerr.FieldBadJSONError{Path: op.Target.Path, Reason: err.Error()}
	}
	return descendArrayElemWithToken(arr, idx, tok, lex, op)
}

// applyWildcard runs the remainder of a path (everything after a
// "[*]" token) against every element of arr. An empty remainder means
// the wildcard itself was the path's last subscript, so the terminal
// operation applies directly to each element.
func applyWildcard(arr *ArrayField, remainder string, op *opdecode.Op) error {
	n := arr.Elems.Len()
	for i := 0; i < n; i++ {
		if remainder == "" {
			if err := applyTerminalInArray(arr, i, op); err != nil {
				return err
			}
			continue
		}
		childLex := freshLexerFromRemainder(remainder, arr.IndexBase)
		if err := descendArrayElem(arr, i, childLex, op); err != nil {
			return err
		}
	}
	return nil
}

func descendArrayElem(arr *ArrayField, idx int, lex *pathlex.Lexer, op *opdecode.Op) error {
	tok, err := lex.Next()
	if err != nil {
		return &tuplerr.FieldBadJSONError{Path: op.Target.Path, Reason: err.Error()}
	}
	return descendArrayElemWithToken(arr, idx, tok, lex, op)
}

func descendArrayElemWithToken(arr *ArrayField, idx int, tok pathlex.Token, lex *pathlex.Lexer, op *opdecode.Op) error {
	cur := arr.Elems.Index(idx)

	switch tok.Type {
	case pathlex.TokenNum:
		if peekFieldKind(cur) == wire.KindMap {
			child, err := explodeAsMap(cur, arr.IndexBase, arr.Arena)
			if err != nil {
				return err
			}
			if !child.KeyIsInt {
				return &tuplerr.FieldBadTypeError{Reason: "can not update, incorrect type of the field"}
			}
			arr.Elems.Replace(idx, child)
			return applyToMap(child, strconv.Itoa(tok.Num), lex, op)
		}
		child, err := explodeAsArray(cur, arr.IndexBase, arr.Arena)
		if err != nil {
			return err
		}
		arr.Elems.Replace(idx, child)
		return applyToArray(child, tok.Num, lex, op)
	case pathlex.TokenAny:
		child, err := explodeAsArray(cur, arr.IndexBase, arr.Arena)
		if err != nil {
			return err
		}
		arr.Elems.Replace(idx, child)
		return applyWildcard(child, lex.Remainder(), op)
	case pathlex.TokenKey:
		child, err := explodeAsMap(cur, arr.IndexBase, arr.Arena)
		if err != nil {
			return err
		}
		arr.Elems.Replace(idx, child)
		return applyToMap(child, tok.Key, lex, op)
	default:
		return &tuplerr.FieldBadJSONError{Path: op.Target.Path, Reason: "unexpected end of path"}
	}
}

func applyTerminalInArray(arr *ArrayField, idx int, op *opdecode.Op) error {
	switch op.Opcode {
	case opdecode.OpInsert:
		if idx < 0 || idx > arr.Elems.Len() {
			return &tuplerr.NoSuchFieldNoError{FieldNo: idx}
		}
		arr.Elems.InsertAt(idx, &BarField{BarKind: BarArrayInsert, InsertValue: op.SetValue})
		return nil

	case opdecode.OpDelete:
		if idx < 0 || idx >= arr.Elems.Len() {
			return &tuplerr.NoSuchFieldNoError{FieldNo: idx}
		}
		if idx+op.DeleteCount > arr.Elems.Len() {
			return &tuplerr.FieldBadTypeError{FieldNo: idx, Reason: "delete count exceeds array length"}
		}
		arr.Elems.EraseRange(idx, op.DeleteCount)
		return nil

	default:
		if idx < 0 || idx >= arr.Elems.Len() {
			return &tuplerr.NoSuchFieldNoError{FieldNo: idx}
		}
		cur := arr.Elems.Index(idx)
		newField, err := specializeScalar(cur, op, idx, arr.IndexBase)
		if err != nil {
			return err
		}
		arr.Elems.Replace(idx, newField)
		return nil
	}
}

// specializeScalar applies a terminal (non-insert, non-delete) op to a
// single field slot, rejecting a second operation on an already
// specialized node.
func specializeScalar(cur Field, op *opdecode.Op, fieldNo, indexBase int) (Field, error) {
	switch c := cur.(type) {
	case *NopField:
		return ExecuteTerminal(op, c.Raw, fieldNo, indexBase)
	case *ScalarField, *BarField:
		return nil, newDoubleErr(fieldNo)
	case *ArrayField, *MapField:
		if op.Opcode == opdecode.OpSet {
			return &ScalarField{NewBytes: op.SetValue}, nil
		}
		return nil, &tuplerr.FieldBadTypeError{FieldNo: fieldNo, Reason: "can not update a field already split into a subtree"}
	default:
		return nil, &tuplerr.FieldBadTypeError{FieldNo: fieldNo, Reason: "unrecognized node"}
	}
}

// explodeAsArray turns a NOP field known to hold a nested array into an
// ArrayField backed by a rope. c.Raw already exactly bounds this one
// array's encoded bytes (the ancestor that produced this NopField
// fixed that range with a single SkipOne when it was itself exploded),
// so decoding the array header is all that's needed to find the body's
// byte range: the elements themselves stay an unmaterialized run until
// something indexes into them.
func explodeAsArray(cur Field, indexBase int, a *arena.Arena) (*ArrayField, error) {
	switch c := cur.(type) {
	case *ArrayField:
		return c, nil
	case *NopField:
		inner := wire.NewCursor(c.Raw)
		kind, err := inner.PeekKind()
		if err != nil || kind != wire.KindArray {
			return nil, &tuplerr.FieldBadTypeError{Reason: "can not update, incorrect type of the field"}
		}
		n, err := inner.DecodeArrayLen()
		if err != nil {
			return nil, &tuplerr.FieldBadTypeError{Reason: "can not update, incorrect type of the field"}
		}
		body := c.Raw[inner.Pos():]
		return &ArrayField{Elems: NewRopeFromSlice(n, body, a), IndexBase: indexBase, Arena: a}, nil
	default:
		return nil, &tuplerr.FieldBadTypeError{Reason: "can not update, the field has already been specialized"}
	}
}

// explodeAsMap decodes a NOP map field into per-key children. A map's
// key type is whatever its first pair's key is encoded as: every
// subsequent key must match, string or integer, matching the single
// "declared key type" a map is allowed per path-subscript rule — an
// integer-keyed map stores its keys as their base-10 decimal string so
// the rest of the merge logic never has to special-case the lookup.
func explodeAsMap(cur Field, indexBase int, a *arena.Arena) (*MapField, error) {
	switch c := cur.(type) {
	case *MapField:
		return c, nil
	case *NopField:
		inner := wire.NewCursor(c.Raw)
		kind, err := inner.PeekKind()
		if err != nil || kind != wire.KindMap {
			return nil, &tuplerr.FieldBadTypeError{Reason: "can not update, incorrect type of the field"}
		}
		n, err := inner.DecodeMapLen()
		if err != nil {
			return nil, &tuplerr.FieldBadTypeError{Reason: "can not update, incorrect type of the field"}
		}
		m := &MapField{Children: make(map[string]Field, n), IndexBase: indexBase, Arena: a}
		keyKindSet := false
		for i := 0; i < n; i++ {
			kkind, err := inner.PeekKind()
			if err != nil {
				return nil, &tuplerr.FieldBadTypeError{Reason: "malformed map key"}
			}
			var key string
			switch kkind {
			case wire.KindStr:
				if keyKindSet && m.KeyIsInt {
					return nil, &tuplerr.FieldBadTypeError{Reason: "can not update, map has mixed key types"}
				}
				keyKindSet = true
				key, err = inner.DecodeStr()
				if err != nil {
					return nil, &tuplerr.FieldBadTypeError{Reason: "malformed map key"}
				}
			case wire.KindInt, wire.KindUint:
				if keyKindSet && !m.KeyIsInt {
					return nil, &tuplerr.FieldBadTypeError{Reason: "can not update, map has mixed key types"}
				}
				keyKindSet, m.KeyIsInt = true, true
				v, err2 := inner.DecodeInt()
				if err2 != nil {
					return nil, &tuplerr.FieldBadTypeError{Reason: "malformed map key"}
				}
				key = strconv.FormatInt(v, 10)
			default:
				return nil, &tuplerr.FieldBadTypeError{Reason: "can not update, map keys must be strings or integers"}
			}
			start, end, err := inner.SkipOne()
			if err != nil {
				return nil, &tuplerr.FieldBadTypeError{Reason: "malformed nested map value"}
			}
			m.set(key, &NopField{Raw: inner.Slice(start, end)})
		}
		return m, nil
	default:
		return nil, &tuplerr.FieldBadTypeError{Reason: "can not update, the field has already been specialized"}
	}
}

// peekFieldKind reports the wire kind an unspecialized or already
// specialized field currently has, used to disambiguate a TokenNum
// path subscript between "array index" and "integer map key" before
// committing to either explosion.
func peekFieldKind(cur Field) wire.Kind {
	switch c := cur.(type) {
	case *ArrayField:
		return wire.KindArray
	case *MapField:
		return wire.KindMap
	case *NopField:
		kind, err := wire.NewCursor(c.Raw).PeekKind()
		if err != nil {
			return wire.KindInvalid
		}
		return kind
	default:
		return wire.KindInvalid
	}
}

func applyToMap(m *MapField, key string, lex *pathlex.Lexer, op *opdecode.Op) error {
	if lex.AtEnd() {
		return applyTerminalInMap(m, key, op)
	}
	tok, err := lex.Next()
	if err != nil {
		return &tuplerr.FieldBadJSONError{Path: op.Target.Path, Reason: err.Error()}
	}
	cur, ok := m.get(key)
	if !ok {
		return &tuplerr.NoSuchFieldNameError{Name: key}
	}
	switch tok.Type {
	case pathlex.TokenNum:
		if peekFieldKind(cur) == wire.KindMap {
			child, err := explodeAsMap(cur, m.IndexBase, m.Arena)
			if err != nil {
				return err
			}
			if !child.KeyIsInt {
				return &tuplerr.FieldBadTypeError{Reason: "can not update, incorrect type of the field"}
			}
			m.set(key, child)
			return applyToMap(child, strconv.Itoa(tok.Num), lex, op)
		}
		child, err := explodeAsArray(cur, m.IndexBase, m.Arena)
		if err != nil {
			return err
		}
		m.set(key, child)
		return applyToArray(child, tok.Num, lex, op)
	case pathlex.TokenAny:
		child, err := explodeAsArray(cur, m.IndexBase, m.Arena)
		if err != nil {
			return err
		}
		m.set(key, child)
		return applyWildcard(child, lex.Remainder(), op)
	case pathlex.TokenKey:
		child, err := explodeAsMap(cur, m.IndexBase, m.Arena)
		if err != nil {
			return err
		}
		m.set(key, child)
		return applyToMap(child, tok.Key, lex, op)
	default:
		return &tuplerr.FieldBadJSONError{Path: op.Target.Path, Reason: "unexpected end of path"}
	}
}

func applyTerminalInMap(m *MapField, key string, op *opdecode.Op) error {
	cur, exists := m.get(key)

	switch op.Opcode {
	case opdecode.OpSet:
		if !exists {
			m.set(key, &BarField{BarKind: BarMapInsert, InsertKey: key, InsertValue: op.SetValue})
			return nil
		}
		newField, err := specializeScalar(cur, op, 0, m.IndexBase)
		if err != nil {
			return err
		}
		m.set(key, newField)
		return nil

	case opdecode.OpInsert:
		if exists {
			return newDoubleErr(0)
		}
		m.set(key, &BarField{BarKind: BarMapInsert, InsertKey: key, InsertValue: op.SetValue})
		return nil

	case opdecode.OpDelete:
		if !exists {
			return &tuplerr.NoSuchFieldNameError{Name: key}
		}
		if _, ok := cur.(*NopField); !ok {
			return newDoubleErr(0)
		}
		m.set(key, &BarField{BarKind: BarMapDelete})
		return nil

	default:
		if !exists {
			return &tuplerr.NoSuchFieldNameError{Name: key}
		}
		nop, ok := cur.(*NopField)
		if !ok {
			return newDoubleErr(0)
		}
		newField, err := ExecuteTerminal(op, nop.Raw, 0, m.IndexBase)
		if err != nil {
			return err
		}
		m.set(key, newField)
		return nil
	}
}
