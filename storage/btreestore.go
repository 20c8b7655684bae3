package storage

import (
	"bytes"
	"context"
	"sync"

	"github.com/google/btree"
	"github.com/trillian-merkle/fuelmerkle/common"
)

// btreeDegree matches the degree trillian itself uses for its in-memory
// B-trees; it has no effect on correctness, only on the constant factor of
// node-internal fan-out.
const btreeDegree = 32

// kvItem is the btree.Item stored in an OrderedStore: ordered by raw key
// bytes, lexicographically, which is exactly the ordering AVL callers
// care about when dumping a subtree.
type kvItem struct {
	key   string
	value []byte
}

func (a kvItem) Less(than btree.Item) bool {
	return bytes.Compare([]byte(a.key), []byte(than.(kvItem).key)) < 0
}

// OrderedStore is a Store backed by an in-memory B-tree instead of a plain
// map, so that — unlike MemoryStore — the full node set can be walked in
// ascending key order. Nothing in the three tree packages requires
// ordered iteration to compute a root or a proof, but it exercises the
// storage polymorphism the design explicitly calls out ("the same trait
// admits disk-backed KV stores"; an ordered store is the structure most
// such backends actually offer) and backs Dump.
type OrderedStore struct {
	mu   sync.RWMutex
	tree *btree.BTree
}

// NewOrderedStore returns an empty OrderedStore.
func NewOrderedStore() *OrderedStore {
	return &OrderedStore{tree: btree.New(btreeDegree)}
}

func (s *OrderedStore) Get(_ context.Context, prefix, key common.Digest) ([]byte, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	item := s.tree.Get(kvItem{key: compositeKey(prefix, key)})
	if item == nil {
		return nil, false, nil
	}
	v := item.(kvItem).value
	cp := make([]byte, len(v))
	copy(cp, v)
	return cp, true, nil
}

func (s *OrderedStore) Set(_ context.Context, prefix, key common.Digest, node []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := make([]byte, len(node))
	copy(cp, node)
	s.tree.ReplaceOrInsert(kvItem{key: compositeKey(prefix, key), value: cp})
	return nil
}

func (s *OrderedStore) Take(_ context.Context, prefix, key common.Digest) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	item := s.tree.Delete(kvItem{key: compositeKey(prefix, key)})
	if item == nil {
		return nil, false, nil
	}
	return item.(kvItem).value, true, nil
}

// Dump returns every (key, value) pair under prefix in ascending key
// order. The prefix's own bytes are stripped from the returned keys.
func (s *OrderedStore) Dump(prefix common.Digest) []KeyValue {
	s.mu.RLock()
	defer s.mu.RUnlock()

	pfx := prefix[:]
	var out []KeyValue
	s.tree.AscendGreaterOrEqual(kvItem{key: string(pfx)}, func(it btree.Item) bool {
		kv := it.(kvItem)
		k := []byte(kv.key)
		if len(k) < len(pfx) || !bytes.Equal(k[:len(pfx)], pfx) {
			return false
		}
		v := make([]byte, len(kv.value))
		copy(v, kv.value)
		out = append(out, KeyValue{Key: common.BytesToDigest(k[len(pfx):]), Value: v})
		return true
	})
	return out
}

// KeyValue is one entry returned by OrderedStore.Dump.
type KeyValue struct {
	Key   common.Digest
	Value []byte
}
