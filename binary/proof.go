package binary

import (
	"context"

	"github.com/trillian-merkle/fuelmerkle/common"
)

// Prove returns an inclusion proof for the leaf at index: the tree's
// current root, and a proof set whose first element is the leaf's own
// digest and whose remaining elements are its siblings in bottom-up
// order (the convention this module adopts per SPEC_FULL.md §2b).
func (t *MerkleTree) Prove(ctx context.Context, index uint64) (common.Digest, []common.Digest, error) {
	n := uint64(len(t.leaves))
	if index >= n {
		return common.Digest{}, nil, &common.InvalidProofIndexError{Index: index, Count: n}
	}

	leafDigest := t.leaves[index]
	proof := []common.Digest{leafDigest}

	cur := leafDigest
	for {
		rec, found, err := t.readRecord(ctx, cur)
		if err != nil {
			return common.Digest{}, nil, err
		}
		if !found {
			return common.Digest{}, nil, &common.LoadError{Root: cur}
		}
		if rec.Parent.IsZero() {
			break
		}
		parentRec, found, err := t.readRecord(ctx, rec.Parent)
		if err != nil {
			return common.Digest{}, nil, err
		}
		if !found {
			return common.Digest{}, nil, &common.LoadError{Root: rec.Parent}
		}
		var sibling common.Digest
		if parentRec.Left == cur {
			sibling = parentRec.Right
		} else {
			sibling = parentRec.Left
		}
		proof = append(proof, sibling)
		cur = rec.Parent
	}

	root, extra := t.foldRemainder(cur)
	proof = append(proof, extra...)
	return root, proof, nil
}

// foldRemainder folds the subtree stack the same way Root does, but also
// returns the sibling digests encountered by the entry whose digest is
// node as it is folded into the final root. If node is not found in the
// stack it is assumed to already be the root (single-entry stack).
func (t *MerkleTree) foldRemainder(node common.Digest) (common.Digest, []common.Digest) {
	idx := -1
	for i, e := range t.stack {
		if e.digest == node {
			idx = i
			break
		}
	}
	if idx == -1 {
		return node, nil
	}

	var extra []common.Digest
	acc := t.stack[len(t.stack)-1].digest
	for i := len(t.stack) - 2; i > idx; i-- {
		acc = NodeHash(t.hasher, t.stack[i].digest, acc)
	}
	if idx < len(t.stack)-1 {
		extra = append(extra, acc)
		acc = NodeHash(t.hasher, t.stack[idx].digest, acc)
	}
	for i := idx - 1; i >= 0; i-- {
		extra = append(extra, t.stack[i].digest)
		acc = NodeHash(t.hasher, t.stack[i].digest, acc)
	}
	return acc, extra
}

// Verify folds proof bottom-up from proof[0] (the leaf's own digest) and
// reports whether the result equals root, given the leaf's index and the
// tree's leaf count at the time the proof was produced. This follows the
// standard RFC 6962 audit-path reconstruction: at each step the index's
// parity (adjusted for a dangling final subtree) determines whether the
// next proof element joins on the left or the right.
func Verify(hasher common.Hasher, root common.Digest, index, leafCount uint64, proof []common.Digest) bool {
	if len(proof) == 0 || leafCount == 0 || index >= leafCount {
		return false
	}
	r := proof[0]
	fn, sn := index, leafCount-1
	for _, p := range proof[1:] {
		if sn == 0 {
			return false
		}
		if fn%2 == 1 || fn == sn {
			r = NodeHash(hasher, p, r)
			for fn%2 == 0 && fn != 0 {
				fn /= 2
				sn /= 2
			}
		} else {
			r = NodeHash(hasher, r, p)
		}
		fn /= 2
		sn /= 2
	}
	return sn == 0 && r == root
}
