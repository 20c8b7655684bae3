package binary

import (
	"context"

	"github.com/golang/glog"
	"github.com/trillian-merkle/fuelmerkle/common"
	"github.com/trillian-merkle/fuelmerkle/storage"
)

// subtreeEntry is one entry of the subtree stack: the forest of complete
// perfect subtrees not yet joined, smallest-index-first (stack[0] is the
// oldest, stack[len-1] the most recently pushed).
type subtreeEntry struct {
	height uint32
	digest common.Digest
}

// MerkleTree is an append-only, positional Merkle tree. It owns no
// storage; the caller supplies it and keeps it alive for the tree's
// lifetime.
type MerkleTree struct {
	store  storage.Store
	prefix common.Digest
	hasher common.Hasher

	leaves []common.Digest
	stack  []subtreeEntry
}

// New returns an empty MerkleTree using the SHA-256 hasher, writing nodes
// to store under prefix.
func New(store storage.Store, prefix common.Digest) *MerkleTree {
	return NewWithHasher(store, prefix, common.SHA256)
}

// NewWithHasher is New with an explicit hasher.
func NewWithHasher(store storage.Store, prefix common.Digest, hasher common.Hasher) *MerkleTree {
	return &MerkleTree{store: store, prefix: prefix, hasher: hasher}
}

// LeafCount returns the number of leaves pushed so far.
func (t *MerkleTree) LeafCount() uint64 {
	return uint64(len(t.leaves))
}

func (t *MerkleTree) readRecord(ctx context.Context, key common.Digest) (record, bool, error) {
	b, found, err := t.store.Get(ctx, t.prefix, key)
	if err != nil {
		return record{}, false, &common.StorageError{Op: "binary.get", Err: err}
	}
	if !found {
		return record{}, false, nil
	}
	r, err := decodeRecord(b)
	if err != nil {
		return record{}, false, err
	}
	return r, true, nil
}

func (t *MerkleTree) writeRecord(ctx context.Context, key common.Digest, r record) error {
	if err := t.store.Set(ctx, t.prefix, key, r.encode()); err != nil {
		return &common.StorageError{Op: "binary.set", Err: err}
	}
	return nil
}

// Push appends payload as the next leaf and returns the tree's new root.
func (t *MerkleTree) Push(ctx context.Context, payload []byte) (common.Digest, error) {
	leafDigest := LeafHash(t.hasher, payload)
	pos := uint64(len(t.leaves))
	if err := t.writeRecord(ctx, leafDigest, record{Position: pos}); err != nil {
		return common.Digest{}, err
	}
	t.leaves = append(t.leaves, leafDigest)
	t.stack = append(t.stack, subtreeEntry{digest: leafDigest})

	glog.V(4).Infof("binary: pushed leaf %d, digest %s", pos, leafDigest)

	if err := t.joinAllSubtrees(ctx); err != nil {
		return common.Digest{}, err
	}
	return t.Root(), nil
}

// joinAllSubtrees joins equal-height stack tops, writing every newly
// created internal node and recording parent pointers on its children, as
// required by §5's leaf-upward write ordering.
func (t *MerkleTree) joinAllSubtrees(ctx context.Context) error {
	for len(t.stack) >= 2 {
		top := t.stack[len(t.stack)-1]
		under := t.stack[len(t.stack)-2]
		if top.height != under.height {
			break
		}
		joined, err := t.joinSubtrees(ctx, under, top)
		if err != nil {
			return err
		}
		t.stack = t.stack[:len(t.stack)-2]
		t.stack = append(t.stack, joined)
	}
	return nil
}

// joinSubtrees creates the internal node over left and right, writes it,
// and records it as each child's parent.
func (t *MerkleTree) joinSubtrees(ctx context.Context, left, right subtreeEntry) (subtreeEntry, error) {
	digest := NodeHash(t.hasher, left.digest, right.digest)
	if err := t.writeRecord(ctx, digest, record{
		Height: left.height + 1,
		Left:   left.digest,
		Right:  right.digest,
	}); err != nil {
		return subtreeEntry{}, err
	}
	if err := t.setParent(ctx, left.digest, digest); err != nil {
		return subtreeEntry{}, err
	}
	if err := t.setParent(ctx, right.digest, digest); err != nil {
		return subtreeEntry{}, err
	}
	return subtreeEntry{height: left.height + 1, digest: digest}, nil
}

// setParent updates the stored record for child to record parent as its
// parent pointer. The child's own digest key is unaffected since it is
// derived only from the child's own content, not its parent.
func (t *MerkleTree) setParent(ctx context.Context, child, parent common.Digest) error {
	rec, found, err := t.readRecord(ctx, child)
	if err != nil {
		return err
	}
	if !found {
		return &common.LoadError{Root: child}
	}
	rec.Parent = parent
	return t.writeRecord(ctx, child, rec)
}

// Root returns the tree's current root: the empty-sum if no leaves have
// been pushed, otherwise the fold of the subtree stack from right to
// left, joining regardless of height (base spec §4.3).
func (t *MerkleTree) Root() common.Digest {
	if len(t.stack) == 0 {
		return EmptySum(t.hasher)
	}
	acc := t.stack[len(t.stack)-1].digest
	for i := len(t.stack) - 2; i >= 0; i-- {
		acc = NodeHash(t.hasher, t.stack[i].digest, acc)
	}
	return acc
}
