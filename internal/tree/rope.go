package tree

import (
	"math/rand/v2"

	"github.com/dbtuple/tupleup/internal/arena"
	"github.com/dbtuple/tupleup/internal/wire"
)

// ropeNode is one treap node in the array rope: a balanced binary tree
// keyed implicitly by in-order position rather than by an explicit key,
// so splitting and joining by index stays O(log n) regardless of where
// in the array an operation lands. This mirrors the role Tarantool's
// bps_tree/rope plays for "lazily exploded" array fields: untouched
// runs of original elements stay as a single node referencing the
// source bytes until an operation actually needs to split them.
//
// A node's own span is either one decoded element (field set, run nil)
// or a contiguous run of still-unmaterialized original elements (run
// set to their raw encoded bytes, runLen elements long). size is the
// node's full subtree count, own span plus both children — a run node
// can still end up with real children attached next to it (e.g. an
// insert landing right before or after the run), so size and runLen
// are tracked separately rather than assuming a run is always a bare
// leaf.
type ropeNode struct {
	left, right *ropeNode
	priority    uint64
	size        int // subtree element count: ownSpan(n) + children
	field       Field
	run         []byte // raw bytes of this node's own run, nil if not a run
	runLen      int    // elements run covers, meaningful only if run != nil
}

// allocNode returns a fresh zero-valued ropeNode, carved out of a's
// ropeNode pool when a caller-supplied arena is available, or heap
// allocated when it is not (a nil arena is how every existing caller
// with no arena to hand, such as a unit test, keeps working).
func allocNode(a *arena.Arena) *ropeNode {
	if a == nil {
		return &ropeNode{}
	}
	return arena.PoolFor[ropeNode](a).New()
}

func newRopeNode(a *arena.Arena, f Field) *ropeNode {
	n := allocNode(a)
	n.priority = rand.Uint64()
	n.size = 1
	n.field = f
	return n
}

// newRunNode builds a node whose own span is n untouched original
// elements, encoded back to back exactly as raw, deferring the
// per-element decode until something actually indexes into the range.
func newRunNode(a *arena.Arena, raw []byte, n int) *ropeNode {
	node := allocNode(a)
	node.priority = rand.Uint64()
	node.size = n
	node.run = raw
	node.runLen = n
	return node
}

func size(n *ropeNode) int {
	if n == nil {
		return 0
	}
	return n.size
}

// ownSpan reports how many elements n alone contributes, independent
// of any children merge has attached beside it: 1 for an ordinary
// decoded node, or runLen for an unmaterialized run.
func ownSpan(n *ropeNode) int {
	if n.run != nil {
		return n.runLen
	}
	return 1
}

func pull(n *ropeNode) {
	n.size = ownSpan(n) + size(n.left) + size(n.right)
}

// decodeRunAt decodes only as many elements of n's own run as are
// needed to expose the single element at position k within it
// (0 <= k < n.runLen): elements [0,k) become a left run (still
// unmaterialized), element k decodes into a NopField, and the
// remainder [k+1,runLen) becomes a right run. Cost is proportional to
// k, never to the whole run.
func decodeRunAt(a *arena.Arena, n *ropeNode, k int) (left *ropeNode, elem Field, right *ropeNode) {
	cur := wire.NewCursor(n.run)
	for i := 0; i < k; i++ {
		start, end, err := cur.SkipOne()
		if err != nil {
			break
		}
		left = merge(left, newRopeNode(a, &NopField{Raw: cur.Slice(start, end)}))
	}
	start, end, err := cur.SkipOne()
	if err != nil {
		elem = &NopField{}
	} else {
		elem = &NopField{Raw: cur.Slice(start, end)}
	}
	if rem := n.runLen - k - 1; rem > 0 {
		right = newRunNode(a, n.run[cur.Pos():], rem)
	}
	return left, elem, right
}

// decodeRunSplit partitions n's own run at k (0 < k < n.runLen) into a
// left subtree of newly decoded elements [0,k) and a right run
// covering the remainder [k,runLen), decoding only the k elements
// actually consumed to find the split point.
func decodeRunSplit(a *arena.Arena, n *ropeNode, k int) (left, right *ropeNode) {
	cur := wire.NewCursor(n.run)
	for i := 0; i < k; i++ {
		start, end, err := cur.SkipOne()
		if err != nil {
			break
		}
		left = merge(left, newRopeNode(a, &NopField{Raw: cur.Slice(start, end)}))
	}
	if rem := n.runLen - k; rem > 0 {
		right = newRunNode(a, n.run[cur.Pos():], rem)
	}
	return left, right
}

// split partitions n into (left, right) where left has exactly idx
// elements (in-order), preserving order in both halves. A split
// landing on one of a run's own boundaries costs nothing beyond the
// recursion; only a split landing strictly inside a run's own span
// pays to decode the elements needed to separate it, and even then
// only up to that point, never the run's remainder.
func split(a *arena.Arena, n *ropeNode, idx int) (left, right *ropeNode) {
	if n == nil {
		return nil, nil
	}
	leftSize := size(n.left)
	own := ownSpan(n)
	switch {
	case idx <= leftSize:
		l, r := split(a, n.left, idx)
		n.left = r
		pull(n)
		return l, n
	case idx >= leftSize+own:
		l, r := split(a, n.right, idx-leftSize-own)
		n.right = l
		pull(n)
		return n, r
	default:
		// idx splits this node's own run.
		loRun, hiRun := decodeRunSplit(a, n, idx-leftSize)
		return merge(n.left, loRun), merge(hiRun, n.right)
	}
}

// merge joins two ropes where every element of l precedes every
// element of r, maintaining the heap property on priority. merge never
// allocates a new node, so it needs no arena: it only ever reparents
// nodes split or decodeRunAt/decodeRunSplit already produced.
func merge(l, r *ropeNode) *ropeNode {
	if l == nil {
		return r
	}
	if r == nil {
		return l
	}
	if l.priority > r.priority {
		l.right = merge(l.right, r)
		pull(l)
		return l
	}
	r.left = merge(l, r.left)
	pull(r)
	return r
}

// Rope is an ordered sequence of Fields supporting index lookup,
// point insertion/deletion, and range erasure, each in O(log n) plus
// whatever decode cost touching a lazy run at that position requires.
// arena, if non-nil, services every node Rope allocates as it lazily
// explodes or restructures itself.
type Rope struct {
	root  *ropeNode
	arena *arena.Arena
}

// Len returns the number of elements in the rope.
func (rp *Rope) Len() int { return size(rp.root) }

// indexExplode locates idx, decoding only the prefix of whichever
// run's own span it must split through to get there, and returns the
// (possibly restructured) subtree root along with the Field now at
// idx.
func indexExplode(a *arena.Arena, n *ropeNode, idx int) (*ropeNode, Field) {
	if n == nil {
		return nil, nil
	}
	leftSize := size(n.left)
	own := ownSpan(n)
	switch {
	case idx < leftSize:
		newLeft, f := indexExplode(a, n.left, idx)
		n.left = newLeft
		return n, f
	case idx >= leftSize+own:
		newRight, f := indexExplode(a, n.right, idx-leftSize-own)
		n.right = newRight
		return n, f
	default:
		if n.run == nil {
			return n, n.field
		}
		loRun, elem, hiRun := decodeRunAt(a, n, idx-leftSize)
		mid := newRopeNode(a, elem)
		combined := merge(merge(n.left, merge(merge(loRun, mid), hiRun)), n.right)
		return combined, elem
	}
}

// Index returns the Field at position idx, or nil if idx is out of
// range. If idx falls inside an unmaterialized run, only that run's
// own prefix up to idx decodes, not the rest of the array.
func (rp *Rope) Index(idx int) Field {
	if idx < 0 || idx >= size(rp.root) {
		return nil
	}
	newRoot, f := indexExplode(rp.arena, rp.root, idx)
	rp.root = newRoot
	return f
}

func replaceExplode(a *arena.Arena, n *ropeNode, idx int, f Field) *ropeNode {
	if n == nil {
		return nil
	}
	leftSize := size(n.left)
	own := ownSpan(n)
	switch {
	case idx < leftSize:
		n.left = replaceExplode(a, n.left, idx, f)
		return n
	case idx >= leftSize+own:
		n.right = replaceExplode(a, n.right, idx-leftSize-own, f)
		return n
	default:
		if n.run == nil {
			n.field = f
			return n
		}
		loRun, _, hiRun := decodeRunAt(a, n, idx-leftSize)
		mid := newRopeNode(a, f)
		return merge(merge(n.left, merge(merge(loRun, mid), hiRun)), n.right)
	}
}

// Replace overwrites the Field at position idx in place.
func (rp *Rope) Replace(idx int, f Field) {
	if idx < 0 || idx >= size(rp.root) {
		return
	}
	rp.root = replaceExplode(rp.arena, rp.root, idx, f)
}

// InsertAt inserts f so that it becomes element idx, shifting
// elements at idx and beyond one position to the right.
func (rp *Rope) InsertAt(idx int, f Field) {
	l, r := split(rp.arena, rp.root, idx)
	rp.root = merge(merge(l, newRopeNode(rp.arena, f)), r)
}

// EraseRange removes the half-open range [idx, idx+count).
func (rp *Rope) EraseRange(idx, count int) {
	l, mr := split(rp.arena, rp.root, idx)
	_, r := split(rp.arena, mr, count)
	rp.root = merge(l, r)
}

// Each visits every element of the rope in order. A node whose own
// span is still an unmaterialized run is handed to fn whole, as a
// single NopField spanning the run's raw bytes, rather than being
// decoded element by element: since those bytes are already exactly
// the concatenation of every element's original encoding, the
// serializer can copy the run in one slice append regardless of how
// many logical elements it represents.
func (rp *Rope) Each(fn func(idx int, f Field)) {
	i := 0
	var walk func(*ropeNode)
	walk = func(n *ropeNode) {
		if n == nil {
			return
		}
		walk(n.left)
		if n.run != nil {
			fn(i, &NopField{Raw: n.run})
			i += n.runLen
		} else {
			fn(i, n.field)
			i++
		}
		walk(n.right)
	}
	walk(rp.root)
}

// NewRopeFromSlice builds a rope over n untouched original elements
// whose combined encoding is exactly raw, as a single unmaterialized
// run: nothing about any element decodes until some operation's path
// actually lands on it, keeping the cost of building a Tree for a
// record with n untouched fields O(1) rather than O(n). a, if non-nil,
// services every node this rope goes on to allocate as it is split,
// merged, or exploded.
func NewRopeFromSlice(n int, raw []byte, a *arena.Arena) *Rope {
	if n == 0 {
		return &Rope{arena: a}
	}
	return &Rope{root: newRunNode(a, raw, n), arena: a}
}
