package avl

import (
	"bytes"
	"context"
	"fmt"

	"github.com/golang/glog"
	"github.com/trillian-merkle/fuelmerkle/common"
	"github.com/trillian-merkle/fuelmerkle/storage"
)

// MerkleTree is a self-balancing, content-hashed ordered map. Nodes are
// addressed in storage by their tree key, not by digest: unlike the
// sparse and binary trees, an AVL tree's storage is not content-addressed,
// since a node's value and children can change in place across rebalances
// while its key stays fixed.
type MerkleTree struct {
	store  storage.Store
	prefix common.Digest
	hasher common.Hasher
	root   *Node
}

// New returns an empty MerkleTree using the SHA-256 hasher.
func New(store storage.Store, prefix common.Digest) *MerkleTree {
	return NewWithHasher(store, prefix, common.SHA256)
}

// NewWithHasher is New with an explicit hasher.
func NewWithHasher(store storage.Store, prefix common.Digest, hasher common.Hasher) *MerkleTree {
	return &MerkleTree{store: store, prefix: prefix, hasher: hasher}
}

// Load reconstructs a tree whose root node is stored under rootKey. A
// zero rootKey loads an empty tree without a storage lookup.
func Load(ctx context.Context, store storage.Store, prefix common.Digest, hasher common.Hasher, rootKey common.Digest) (*MerkleTree, error) {
	t := &MerkleTree{store: store, prefix: prefix, hasher: hasher}
	if rootKey.IsZero() {
		return t, nil
	}
	n, found, err := t.readNode(ctx, rootKey)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, &common.LoadError{Root: rootKey}
	}
	t.root = n
	return t, nil
}

// Root returns the digest of the root node, or the zero digest for an
// empty tree.
func (t *MerkleTree) Root() common.Digest {
	if t.root == nil {
		return common.ZeroDigest
	}
	return t.root.digest(t.hasher)
}

func (t *MerkleTree) readNode(ctx context.Context, key common.Digest) (*Node, bool, error) {
	b, found, err := t.store.Get(ctx, t.prefix, key)
	if err != nil {
		return nil, false, &common.StorageError{Op: "avl.get", Err: err}
	}
	if !found {
		return nil, false, nil
	}
	n, err := decodeNode(key, b)
	if err != nil {
		return nil, false, err
	}
	return n, true, nil
}

func (t *MerkleTree) writeNode(ctx context.Context, n *Node) error {
	if err := t.store.Set(ctx, t.prefix, n.Key, n.encode()); err != nil {
		return &common.StorageError{Op: "avl.set", Err: err}
	}
	return nil
}

// Get returns the value hash stored at key, if any.
func (t *MerkleTree) Get(ctx context.Context, key common.Digest) (common.Digest, bool, error) {
	n, found, err := t.readNode(ctx, key)
	if err != nil {
		return common.Digest{}, false, err
	}
	if !found {
		return common.Digest{}, false, nil
	}
	return n.ValueHash, true, nil
}

type pathKind int

const (
	pathLeft pathKind = iota
	pathRight
	pathCurrent
)

type pathEntry struct {
	kind pathKind
	node Node
}

// walkDown follows key from root toward the node occupying its slot,
// recording every node visited along with the direction taken. The last
// entry is pathCurrent when key is already present.
func (t *MerkleTree) walkDown(ctx context.Context, root Node, key common.Digest) ([]pathEntry, error) {
	parents := make([]pathEntry, 0, 32)
	current := &root
	for current != nil {
		switch bytes.Compare(key[:], current.Key[:]) {
		case -1:
			var next *Node
			if current.Left != nil {
				n, found, err := t.readNode(ctx, current.Left.Key)
				if err != nil {
					return nil, err
				}
				if !found {
					return nil, &common.LoadError{Root: current.Left.Key}
				}
				next = n
			}
			parents = append(parents, pathEntry{kind: pathLeft, node: *current})
			current = next
		case 0:
			parents = append(parents, pathEntry{kind: pathCurrent, node: *current})
			current = nil
		default:
			var next *Node
			if current.Right != nil {
				n, found, err := t.readNode(ctx, current.Right.Key)
				if err != nil {
					return nil, err
				}
				if !found {
					return nil, &common.LoadError{Root: current.Right.Key}
				}
				next = n
			}
			parents = append(parents, pathEntry{kind: pathRight, node: *current})
			current = next
		}
	}
	return parents, nil
}

// Insert sets key to value, rebalancing along the insertion path as
// needed, and returns the tree's new root. Inserting a key with the
// value it already holds is a no-op: the existing root is returned
// unchanged and nothing is written.
func (t *MerkleTree) Insert(ctx context.Context, key common.Digest, value []byte) (common.Digest, error) {
	valueHash := HashedValue(t.hasher, value)

	if existing, found, err := t.readNode(ctx, key); err != nil {
		return common.Digest{}, err
	} else if found && existing.ValueHash == valueHash {
		return t.Root(), nil
	}

	newNode := &Node{Key: key, ValueHash: valueHash}

	if t.root == nil {
		if err := t.writeNode(ctx, newNode); err != nil {
			return common.Digest{}, err
		}
		t.root = newNode
		return t.Root(), nil
	}

	parents, err := t.walkDown(ctx, *t.root, key)
	if err != nil {
		return common.Digest{}, err
	}

	if parents[len(parents)-1].kind == pathCurrent {
		updated := parents[len(parents)-1].node
		updated.ValueHash = valueHash
		newRoot, err := t.updateParentsWithCurrent(ctx, parents[:len(parents)-1], updated)
		if err != nil {
			return common.Digest{}, err
		}
		t.root = newRoot
		return t.Root(), nil
	}

	current := newNode
	if err := t.writeNode(ctx, current); err != nil {
		return common.Digest{}, err
	}

	for i := len(parents) - 1; i >= 0; i-- {
		p := parents[i]
		switch p.kind {
		case pathLeft:
			parent := p.node
			leftChild := current
			current = &parent

			r := current.RightHeight()
			l := leftChild.Height()
			if l <= r+1 {
				current.setLeft(leftChild, t.hasher)
				if err := t.writeNode(ctx, current); err != nil {
					return common.Digest{}, err
				}
				continue
			}

			lh, rh := leftChild.LeftHeight(), leftChild.RightHeight()
			if rh <= lh {
				// Small right rotation.
				current.Left = leftChild.Right
				if err := t.writeNode(ctx, current); err != nil {
					return common.Digest{}, err
				}
				leftChild.setRight(current, t.hasher)
				current = leftChild
				if err := t.writeNode(ctx, current); err != nil {
					return common.Digest{}, err
				}
			} else {
				// Big right rotation.
				if leftChild.Right == nil {
					return common.Digest{}, &common.IncompatibleStorageNodeError{Want: "left child with a right subtree", Got: "left child with no right child"}
				}
				leftRightChild, found, err := t.readNode(ctx, leftChild.Right.Key)
				if err != nil {
					return common.Digest{}, err
				}
				if !found {
					return common.Digest{}, &common.LoadError{Root: leftChild.Right.Key}
				}

				current.Left = leftRightChild.Right
				if err := t.writeNode(ctx, current); err != nil {
					return common.Digest{}, err
				}
				leftRightChild.setRight(current, t.hasher)

				leftChild.Right = leftRightChild.Left
				if err := t.writeNode(ctx, leftChild); err != nil {
					return common.Digest{}, err
				}
				leftRightChild.setLeft(leftChild, t.hasher)

				current = leftRightChild
				if err := t.writeNode(ctx, current); err != nil {
					return common.Digest{}, err
				}
			}

		case pathRight:
			parent := p.node
			rightChild := current
			current = &parent

			l := current.LeftHeight()
			r := rightChild.Height()
			if r <= l+1 {
				current.setRight(rightChild, t.hasher)
				if err := t.writeNode(ctx, current); err != nil {
					return common.Digest{}, err
				}
				continue
			}

			lh, rh := rightChild.LeftHeight(), rightChild.RightHeight()
			if lh <= rh {
				// Small left rotation.
				current.Right = rightChild.Left
				if err := t.writeNode(ctx, current); err != nil {
					return common.Digest{}, err
				}
				rightChild.setLeft(current, t.hasher)
				current = rightChild
				if err := t.writeNode(ctx, current); err != nil {
					return common.Digest{}, err
				}
			} else {
				// Big left rotation.
				if rightChild.Left == nil {
					return common.Digest{}, &common.IncompatibleStorageNodeError{Want: "right child with a left subtree", Got: "right child with no left child"}
				}
				rightLeftChild, found, err := t.readNode(ctx, rightChild.Left.Key)
				if err != nil {
					return common.Digest{}, err
				}
				if !found {
					return common.Digest{}, &common.LoadError{Root: rightChild.Left.Key}
				}

				current.Right = rightLeftChild.Left
				if err := t.writeNode(ctx, current); err != nil {
					return common.Digest{}, err
				}
				rightLeftChild.setLeft(current, t.hasher)

				rightChild.Left = rightLeftChild.Right
				if err := t.writeNode(ctx, rightChild); err != nil {
					return common.Digest{}, err
				}
				rightLeftChild.setRight(rightChild, t.hasher)

				current = rightLeftChild
				if err := t.writeNode(ctx, current); err != nil {
					return common.Digest{}, err
				}
			}

		case pathCurrent:
			return common.Digest{}, fmt.Errorf("avl: unexpected current-node entry mid-path")
		}
	}

	t.root = current
	glog.V(4).Infof("avl: insert(%s) new root=%s", key, current.digest(t.hasher))
	return t.Root(), nil
}

// updateParentsWithCurrent re-hashes every ancestor of a node whose value
// changed in place, without touching tree shape (base spec: an in-place
// value update never requires rebalancing).
func (t *MerkleTree) updateParentsWithCurrent(ctx context.Context, parents []pathEntry, updated Node) (*Node, error) {
	newRootNode := updated
	for i := len(parents) - 1; i >= 0; i-- {
		if err := t.writeNode(ctx, &newRootNode); err != nil {
			return nil, err
		}
		p := parents[i]
		childDigest := newRootNode.digest(t.hasher)
		switch p.kind {
		case pathLeft:
			childKey := newRootNode.Key
			childHeight := newRootNode.Height()
			newRootNode = p.node
			newRootNode.Left = &Child{Height: childHeight, Key: childKey, Hash: childDigest}
		case pathRight:
			childKey := newRootNode.Key
			childHeight := newRootNode.Height()
			newRootNode = p.node
			newRootNode.Right = &Child{Height: childHeight, Key: childKey, Hash: childDigest}
		default:
			return nil, fmt.Errorf("avl: unexpected path entry while unwinding an in-place update")
		}
	}
	if err := t.writeNode(ctx, &newRootNode); err != nil {
		return nil, err
	}
	return &newRootNode, nil
}

// Delete clears key's value. The base spec models AVL deletion as
// setting the value to the zero digest rather than removing the node, so
// the tree's shape (and therefore its proof structure) never shrinks.
func (t *MerkleTree) Delete(ctx context.Context, key common.Digest) (common.Digest, error) {
	return t.Insert(ctx, key, common.ZeroDigest[:])
}
