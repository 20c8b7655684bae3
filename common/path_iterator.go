package common

// PathNode is the minimal capability a tree's node type must expose to be
// walked by a PathIterator: whether it is terminal, and how to resolve a
// child on a given side (a child may be absent — a placeholder, or an
// out-of-tree position — without that being an error).
type PathNode interface {
	IsLeaf() bool
	Child(side Side) (node PathNode, exists bool, err error)
}

// PathStep is one (path, side) pair produced while descending from a
// tree's root toward a target key: Path is the node on the path itself,
// Side is its sibling on the step taken (nil/absent when that sibling is
// an implicit placeholder).
type PathStep struct {
	Path       PathNode
	Side       PathNode
	SideExists bool
}

// PathIterator yields the sequence of (path_node, side_node) pairs from a
// tree's root down to a target leaf key, or until descent runs off the
// tree into a placeholder/absent child. It is parameterized by keyWidthBits
// (the full bit width of keys in this tree's domain) and treeHeight (the
// height of the subtree rooted at root), so the same iterator serves a
// full-height sparse tree and a shorter subtree over the same key space:
// the initial bit offset is keyWidthBits-treeHeight, matching the shared
// path-iteration design used across this module's trees.
type PathIterator struct {
	key    []byte
	offset int
	cur    PathNode
	done   bool
}

// NewPathIterator constructs a PathIterator starting its descent at root.
func NewPathIterator(root PathNode, key []byte, keyWidthBits, treeHeight int) *PathIterator {
	return &PathIterator{
		key:    key,
		offset: keyWidthBits - treeHeight,
		cur:    root,
	}
}

// Next advances the iterator one level and returns the step taken. ok is
// false once descent has reached a leaf or an absent child; err is set
// only on a genuine resolution failure (e.g. a storage error), never for
// a legitimate placeholder.
func (it *PathIterator) Next() (step PathStep, ok bool, err error) {
	if it.done || it.cur == nil {
		return PathStep{}, false, nil
	}
	if it.cur.IsLeaf() {
		it.done = true
		return PathStep{}, false, nil
	}

	b := Bit(it.key, it.offset)
	pathChild, pathExists, err := it.cur.Child(b)
	if err != nil {
		return PathStep{}, false, err
	}
	sideChild, sideExists, err := it.cur.Child(b.Other())
	if err != nil {
		return PathStep{}, false, err
	}

	step = PathStep{Path: it.cur, Side: sideChild, SideExists: sideExists}
	it.offset++

	if !pathExists {
		it.done = true
		return step, true, nil
	}
	it.cur = pathChild
	return step, true, nil
}

// Current returns the node iteration last stopped at: the leaf a descent
// reached, or the last internal node visited before an absent child ended
// it. It is nil only when the iterator was constructed over a nil root.
func (it *PathIterator) Current() PathNode {
	return it.cur
}

// Collect drains the iterator, returning every step in root-to-leaf order.
func (it *PathIterator) Collect() ([]PathStep, error) {
	var steps []PathStep
	for {
		step, ok, err := it.Next()
		if err != nil {
			return nil, err
		}
		if !ok {
			return steps, nil
		}
		steps = append(steps, step)
	}
}
