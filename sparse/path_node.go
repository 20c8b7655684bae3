package sparse

import (
	"context"

	"github.com/trillian-merkle/fuelmerkle/common"
)

// pathNode adapts a loaded sparse node to common.PathNode, resolving
// children lazily from storage as the shared path iterator (base spec
// §4.5) descends. It is the sparse tree's half of that shared abstraction;
// binary's proof walker and AVL's ordered-key walk ground their own
// descent in their respective node shapes instead (see DESIGN.md).
type pathNode struct {
	t      *MerkleTree
	ctx    context.Context
	digest common.Digest
	rec    node
}

func (n *pathNode) IsLeaf() bool {
	return n.rec.kind == kindLeaf
}

func (n *pathNode) Child(side common.Side) (common.PathNode, bool, error) {
	childDigest := n.rec.a
	if side == common.Right {
		childDigest = n.rec.b
	}
	if childDigest.IsZero() {
		return nil, false, nil
	}
	childRec, found, err := n.t.readNode(n.ctx, childDigest)
	if err != nil {
		return nil, false, err
	}
	if !found {
		return nil, false, &common.LoadError{Root: childDigest}
	}
	return &pathNode{t: n.t, ctx: n.ctx, digest: childDigest, rec: childRec}, true, nil
}
