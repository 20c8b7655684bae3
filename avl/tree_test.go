package avl

import (
	"bytes"
	"context"
	"math/rand"
	"testing"

	"github.com/trillian-merkle/fuelmerkle/common"
	"github.com/trillian-merkle/fuelmerkle/storage"
)

func dkey(b byte) common.Digest {
	var d common.Digest
	d[common.DigestSize-1] = b
	return d
}

func TestEmptyTreeRootIsZero(t *testing.T) {
	tr := New(storage.NewMemoryStore(), common.Digest{})
	if !tr.Root().IsZero() {
		t.Errorf("Root() on empty tree = %s, want zero digest", tr.Root())
	}
}

func TestSingleInsertRootIsNodeDigest(t *testing.T) {
	ctx := context.Background()
	tr := New(storage.NewMemoryStore(), common.Digest{})

	k := dkey(1)
	root, err := tr.Insert(ctx, k, []byte("a"))
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}
	n := &Node{Key: k, ValueHash: HashedValue(common.SHA256, []byte("a"))}
	if want := n.digest(common.SHA256); root != want {
		t.Errorf("Root() after single insert = %s, want %s", root, want)
	}
}

func TestIdempotentInsertIsNoOp(t *testing.T) {
	ctx := context.Background()
	tr := New(storage.NewMemoryStore(), common.Digest{})

	k := dkey(1)
	r1, err := tr.Insert(ctx, k, []byte("same"))
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}
	r2, err := tr.Insert(ctx, k, []byte("same"))
	if err != nil {
		t.Fatalf("Insert (repeat): %v", err)
	}
	if r1 != r2 {
		t.Errorf("repeating an identical Insert changed the root: %s -> %s", r1, r2)
	}
}

func TestUpdateExistingKeyChangesRootWithoutRebalance(t *testing.T) {
	ctx := context.Background()
	tr := New(storage.NewMemoryStore(), common.Digest{})

	k := dkey(1)
	r1, err := tr.Insert(ctx, k, []byte("a"))
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}
	r2, err := tr.Insert(ctx, k, []byte("b"))
	if err != nil {
		t.Fatalf("Insert (update): %v", err)
	}
	if r2 == r1 {
		t.Errorf("updating %s to a new value left the root unchanged: %s", k, r1)
	}
	got, found, err := tr.Get(ctx, k)
	if err != nil || !found {
		t.Fatalf("Get: %s, %v, %v", got, found, err)
	}
	if want := HashedValue(common.SHA256, []byte("b")); got != want {
		t.Errorf("Get(%s) after update = %s, want %s", k, got, want)
	}
	if root := tr.Root(); root != r2 {
		t.Errorf("Root() after update = %s, want %s", root, r2)
	}
}

func TestDeleteZeroesValueWithoutShrinkingTree(t *testing.T) {
	ctx := context.Background()
	tr := New(storage.NewMemoryStore(), common.Digest{})

	k := dkey(1)
	if _, err := tr.Insert(ctx, k, []byte("a")); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if _, err := tr.Delete(ctx, k); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	got, found, err := tr.Get(ctx, k)
	if err != nil || !found {
		t.Fatalf("Get after delete: %s, %v, %v", got, found, err)
	}
	if !got.IsZero() {
		t.Errorf("Get(%s) after Delete = %s, want zero digest", k, got)
	}
}

// validateBalance walks the tree rooted at n and asserts the standard
// AVL invariant (|left height - right height| <= 1) holds at every node,
// mirroring the base spec's balance-factor requirement.
func validateBalance(t *testing.T, tr *MerkleTree, n *Node) int {
	t.Helper()
	ctx := context.Background()
	count := 1
	if n.Left != nil {
		left, found, err := tr.readNode(ctx, n.Left.Key)
		if err != nil || !found {
			t.Fatalf("left child %s: found=%v err=%v", n.Left.Key, found, err)
		}
		if bytes.Compare(left.Key[:], n.Key[:]) >= 0 {
			t.Errorf("left child %s is not less than parent %s", left.Key, n.Key)
		}
		count += validateBalance(t, tr, left)
	}
	if n.Right != nil {
		right, found, err := tr.readNode(ctx, n.Right.Key)
		if err != nil || !found {
			t.Fatalf("right child %s: found=%v err=%v", n.Right.Key, found, err)
		}
		if bytes.Compare(right.Key[:], n.Key[:]) <= 0 {
			t.Errorf("right child %s is not greater than parent %s", right.Key, n.Key)
		}
		count += validateBalance(t, tr, right)
	}
	lh, rh := int(n.LeftHeight()), int(n.RightHeight())
	diff := lh - rh
	if diff < 0 {
		diff = -diff
	}
	if diff > 1 {
		t.Errorf("node %s unbalanced: left height %d, right height %d", n.Key, lh, rh)
	}
	return count
}

func TestRandomInsertsStayBalancedAndOrdered(t *testing.T) {
	ctx := context.Background()
	tr := New(storage.NewMemoryStore(), common.Digest{})

	rng := rand.New(rand.NewSource(1234))
	seen := map[common.Digest]bool{}
	const n = 500
	for i := 0; i < n; i++ {
		var k, v common.Digest
		rng.Read(k[:])
		rng.Read(v[:])
		if _, err := tr.Insert(ctx, k, v[:]); err != nil {
			t.Fatalf("Insert #%d: %v", i, err)
		}
		seen[k] = true
	}

	if tr.root == nil {
		t.Fatal("tree has no root after inserts")
	}
	got := validateBalance(t, tr, tr.root)
	if got != len(seen) {
		t.Errorf("validateBalance visited %d nodes, want %d unique keys", got, len(seen))
	}
}

func TestReinsertingSameDataPreservesRoot(t *testing.T) {
	ctx := context.Background()
	tr := New(storage.NewMemoryStore(), common.Digest{})

	rng := rand.New(rand.NewSource(99))
	type kv struct{ k, v common.Digest }
	const n = 200
	data := make([]kv, n)
	for i := range data {
		rng.Read(data[i].k[:])
		rng.Read(data[i].v[:])
	}
	for _, e := range data {
		if _, err := tr.Insert(ctx, e.k, e.v[:]); err != nil {
			t.Fatalf("Insert: %v", err)
		}
	}
	want := tr.Root()
	for _, e := range data {
		if _, err := tr.Insert(ctx, e.k, e.v[:]); err != nil {
			t.Fatalf("Insert (repeat): %v", err)
		}
	}
	if got := tr.Root(); got != want {
		t.Errorf("re-inserting identical data changed the root: %s -> %s", want, got)
	}
}

// TestBackendsAgree confirms Insert/Delete compute the same roots
// regardless of which storage.Store implementation backs the tree, over
// every in-memory backend this module ships (SPEC_FULL.md's domain-stack
// table).
func TestBackendsAgree(t *testing.T) {
	ctx := context.Background()
	rng := rand.New(rand.NewSource(7))
	type kv struct{ k, v common.Digest }
	const n = 50
	data := make([]kv, n)
	for i := range data {
		rng.Read(data[i].k[:])
		rng.Read(data[i].v[:])
	}

	backends := []struct {
		name  string
		store storage.Store
	}{
		{"memory", storage.NewMemoryStore()},
		{"btree", storage.NewOrderedStore()},
	}

	var wantRoot common.Digest
	for _, b := range backends {
		tr := New(b.store, common.Digest{})
		var root common.Digest
		var err error
		for _, e := range data {
			if root, err = tr.Insert(ctx, e.k, e.v[:]); err != nil {
				t.Fatalf("[%s] Insert: %v", b.name, err)
			}
		}
		root, err = tr.Delete(ctx, data[0].k)
		if err != nil {
			t.Fatalf("[%s] Delete: %v", b.name, err)
		}
		if wantRoot.IsZero() {
			wantRoot = root
			continue
		}
		if root != wantRoot {
			t.Errorf("[%s] root = %s, want %s (the memory-backed root)", b.name, root, wantRoot)
		}
	}
}

func TestLoadRejectsUnknownRoot(t *testing.T) {
	ctx := context.Background()
	_, err := Load(ctx, storage.NewMemoryStore(), common.Digest{}, common.SHA256, dkey(1))
	if _, ok := err.(*common.LoadError); !ok {
		t.Errorf("Load with an unknown root key: got %T (%v), want *common.LoadError", err, err)
	}
}
