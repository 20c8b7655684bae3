package sparse

import (
	"context"

	"github.com/golang/glog"
	"github.com/trillian-merkle/fuelmerkle/common"
	"github.com/trillian-merkle/fuelmerkle/storage"
)

// MerkleTree is a sparse, full-height (256-bit key) authenticated map. It
// owns no storage; the caller supplies it and keeps it alive for the
// tree's lifetime.
type MerkleTree struct {
	store  storage.Store
	prefix common.Digest
	hasher common.Hasher
	root   common.Digest
}

// New returns an empty MerkleTree using the SHA-256 hasher.
func New(store storage.Store, prefix common.Digest) *MerkleTree {
	return NewWithHasher(store, prefix, common.SHA256)
}

// NewWithHasher is New with an explicit hasher.
func NewWithHasher(store storage.Store, prefix common.Digest, hasher common.Hasher) *MerkleTree {
	return &MerkleTree{store: store, prefix: prefix, hasher: hasher, root: common.ZeroDigest}
}

// Load reconstructs a tree whose root matches the supplied digest,
// confirming the root node exists in storage. A zero root loads an empty
// tree without a storage lookup.
func Load(ctx context.Context, store storage.Store, prefix common.Digest, hasher common.Hasher, root common.Digest) (*MerkleTree, error) {
	if !root.IsZero() {
		b, found, err := store.Get(ctx, prefix, root)
		if err != nil {
			return nil, &common.StorageError{Op: "sparse.load", Err: err}
		}
		if !found {
			return nil, &common.LoadError{Root: root}
		}
		if _, err := decodeNode(b); err != nil {
			return nil, err
		}
	}
	return &MerkleTree{store: store, prefix: prefix, hasher: hasher, root: root}, nil
}

// Root returns the current root digest: the zero-digest for an empty tree.
func (t *MerkleTree) Root() common.Digest {
	return t.root
}

func (t *MerkleTree) readNode(ctx context.Context, key common.Digest) (node, bool, error) {
	b, found, err := t.store.Get(ctx, t.prefix, key)
	if err != nil {
		return node{}, false, &common.StorageError{Op: "sparse.get", Err: err}
	}
	if !found {
		return node{}, false, nil
	}
	n, err := decodeNode(b)
	if err != nil {
		return node{}, false, err
	}
	return n, true, nil
}

func (t *MerkleTree) writeNode(ctx context.Context, n node) (common.Digest, error) {
	d := n.digest(t.hasher)
	if err := t.store.Set(ctx, t.prefix, d, n.encode()); err != nil {
		return common.Digest{}, &common.StorageError{Op: "sparse.set", Err: err}
	}
	return d, nil
}

// descendResult is the outcome of walking from the root toward key: the
// side digests collected at each level, root-down, and the leaf found at
// the point descent stopped, if any (nil when descent ran into a
// placeholder instead).
type descendResult struct {
	sideDigests  []common.Digest
	terminalLeaf *node
}

// descend walks from the root toward key using the shared path iterator
// (base spec §4.5): pathNode resolves each level's children from storage
// lazily, and the iterator's bit-offset/side protocol decides which child
// is on the path and which is the sibling at every level.
func (t *MerkleTree) descend(ctx context.Context, key common.Digest) (descendResult, error) {
	if t.root.IsZero() {
		return descendResult{}, nil
	}
	rootRec, found, err := t.readNode(ctx, t.root)
	if err != nil {
		return descendResult{}, err
	}
	if !found {
		return descendResult{}, &common.LoadError{Root: t.root}
	}
	root := &pathNode{t: t, ctx: ctx, digest: t.root, rec: rootRec}

	it := common.NewPathIterator(root, key[:], keyWidthBits, keyWidthBits)
	var sideDigests []common.Digest
	for {
		step, ok, err := it.Next()
		if err != nil {
			return descendResult{}, err
		}
		if !ok {
			break
		}
		sideDigest := common.ZeroDigest
		if step.SideExists {
			sideDigest = step.Side.(*pathNode).digest
		}
		sideDigests = append(sideDigests, sideDigest)
	}

	var terminalLeaf *node
	if pn, ok := it.Current().(*pathNode); ok && pn.IsLeaf() {
		leaf := pn.rec
		terminalLeaf = &leaf
	}
	return descendResult{sideDigests: sideDigests, terminalLeaf: terminalLeaf}, nil
}

// foldUp combines curDigest with sideDigests[startIdx], sideDigests[startIdx-1], ...,
// sideDigests[0], writing each new internal node, and returns the
// resulting root digest.
func (t *MerkleTree) foldUp(ctx context.Context, key common.Digest, curDigest common.Digest, sideDigests []common.Digest, startIdx int) (common.Digest, error) {
	for i := startIdx; i >= 0; i-- {
		b := common.Bit(key[:], i)
		var leftD, rightD common.Digest
		if b == common.Left {
			leftD, rightD = curDigest, sideDigests[i]
		} else {
			leftD, rightD = sideDigests[i], curDigest
		}
		d, err := t.writeNode(ctx, node{kind: kindInternal, a: leftD, b: rightD})
		if err != nil {
			return common.Digest{}, err
		}
		curDigest = d
	}
	return curDigest, nil
}

// Update sets key to value, or deletes key when value is empty. It
// returns the tree's new root.
func (t *MerkleTree) Update(ctx context.Context, key common.Digest, value []byte) (common.Digest, error) {
	if len(value) == 0 {
		return t.Delete(ctx, key)
	}

	valueHash := HashedValue(t.hasher, value)
	newLeafDigest, err := t.writeNode(ctx, node{kind: kindLeaf, a: key, b: valueHash})
	if err != nil {
		return common.Digest{}, err
	}

	if t.root.IsZero() {
		t.root = newLeafDigest
		glog.V(4).Infof("sparse: first insert, root=%s", t.root)
		return t.root, nil
	}

	d, err := t.descend(ctx, key)
	if err != nil {
		return common.Digest{}, err
	}

	var (
		curDigest   common.Digest
		startIdx    int
		sideDigests = d.sideDigests
	)

	switch {
	case d.terminalLeaf != nil && d.terminalLeaf.a == key:
		// Same slot: replace in place, no structural change.
		curDigest = newLeafDigest
		startIdx = len(sideDigests) - 1

	case d.terminalLeaf != nil:
		// A different leaf occupies this slot: pair the two leaves at
		// the depth their keys diverge, per base spec §4.2 step 2. That
		// depth may be deeper than the side nodes collected so far if
		// the existing leaf was promoted by an earlier delete.
		existingDigest := d.terminalLeaf.digest(t.hasher)
		commonLen := common.CommonPrefixLen(key[:], d.terminalLeaf.a[:], keyWidthBits)
		ancestorDepth := commonLen
		if len(sideDigests) > ancestorDepth {
			ancestorDepth = len(sideDigests)
		}
		placeholders := ancestorDepth - len(sideDigests)
		if placeholders > 0 {
			sideDigests = append(append([]common.Digest(nil), sideDigests...), make([]common.Digest, placeholders)...)
		}

		bAt := common.Bit(key[:], ancestorDepth)
		var leftD, rightD common.Digest
		if bAt == common.Left {
			leftD, rightD = newLeafDigest, existingDigest
		} else {
			leftD, rightD = existingDigest, newLeafDigest
		}
		pairDigest, err := t.writeNode(ctx, node{kind: kindInternal, a: leftD, b: rightD})
		if err != nil {
			return common.Digest{}, err
		}
		curDigest = pairDigest
		startIdx = ancestorDepth - 1

	default:
		// Descent ran into a placeholder: the new leaf occupies that slot.
		curDigest = newLeafDigest
		startIdx = len(sideDigests) - 1
	}

	root, err := t.foldUp(ctx, key, curDigest, sideDigests, startIdx)
	if err != nil {
		return common.Digest{}, err
	}
	t.root = root
	return t.root, nil
}

// Delete removes key, if present, and returns the tree's new root. It is
// a no-op (returning the current root) if key is not present.
func (t *MerkleTree) Delete(ctx context.Context, key common.Digest) (common.Digest, error) {
	if t.root.IsZero() {
		return t.root, nil
	}

	d, err := t.descend(ctx, key)
	if err != nil {
		return common.Digest{}, err
	}
	if d.terminalLeaf == nil || d.terminalLeaf.a != key {
		return t.root, nil
	}

	depth := len(d.sideDigests)
	j := -1
	for i := depth - 1; i >= 0; i-- {
		if !d.sideDigests[i].IsZero() {
			j = i
			break
		}
	}
	if j == -1 {
		// The deleted leaf was the only node in the tree.
		t.root = common.ZeroDigest
		return t.root, nil
	}

	sideRec, found, err := t.readNode(ctx, d.sideDigests[j])
	if err != nil {
		return common.Digest{}, err
	}
	if !found {
		return common.Digest{}, &common.LoadError{Root: d.sideDigests[j]}
	}

	var curDigest common.Digest
	startIdx := depth - 1

	if sideRec.kind == kindLeaf {
		// The orphaned sibling leaf is promoted past every ancestor whose
		// other side is a placeholder: it joins directly with the next
		// non-placeholder side digest above j, or becomes the root when
		// there is none (base spec §4.2, §9).
		curDigest = d.sideDigests[j]
		startIdx = -1
		for i := j - 1; i >= 0; i-- {
			if !d.sideDigests[i].IsZero() {
				startIdx = i
				break
			}
		}
		glog.V(4).Infof("sparse: delete(%s) promotes sibling leaf from depth %d", key, j)
	} else {
		// The deepest non-placeholder sibling is itself an internal
		// node, so there is no chain to collapse: fold the now-empty
		// leaf slot upward through every level unchanged.
		curDigest = common.ZeroDigest
	}

	root, err := t.foldUp(ctx, key, curDigest, d.sideDigests, startIdx)
	if err != nil {
		return common.Digest{}, err
	}
	t.root = root
	return t.root, nil
}

// Get returns the value hash stored at key, if any.
func (t *MerkleTree) Get(ctx context.Context, key common.Digest) (common.Digest, bool, error) {
	d, err := t.descend(ctx, key)
	if err != nil {
		return common.Digest{}, false, err
	}
	if d.terminalLeaf == nil || d.terminalLeaf.a != key {
		return common.Digest{}, false, nil
	}
	return d.terminalLeaf.b, true, nil
}
