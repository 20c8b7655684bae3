// Package storage defines the pluggable key-value backing store the three
// Merkle tree packages write their nodes through, plus several concrete
// implementations of it. The storage layer is responsible only for
// persistence: it performs no hashing, no validation, and no structural
// reasoning about what it stores.
package storage

import (
	"context"

	"github.com/trillian-merkle/fuelmerkle/common"
)

// Store is the capability set a tree requires of its backing store: get,
// set, and a destructive take. None of the tree packages in this module
// calls Take.
//
// Every operation is keyed by a prefix — a 32-byte domain separator
// partitioning a shared backing store among multiple logical trees — and
// a key: the node's own digest for the sparse and binary trees, the
// node's tree key for the AVL tree. Node bytes
// passed to Set are borrowed for the duration of the call; implementations
// must copy them if they intend to retain them past it. Nodes returned
// from Get/Take are owned by the caller.
type Store interface {
	// Get performs a non-destructive lookup. found is false, err is nil
	// when no node exists at (prefix, key); err is non-nil only for a
	// genuine I/O failure.
	Get(ctx context.Context, prefix, key common.Digest) (node []byte, found bool, err error)

	// Set writes node at (prefix, key). Overwriting an existing key with
	// identical bytes succeeds silently.
	Set(ctx context.Context, prefix, key common.Digest, node []byte) error

	// Take performs a destructive lookup: it removes and returns the node
	// at (prefix, key), if any.
	Take(ctx context.Context, prefix, key common.Digest) (node []byte, found bool, err error)
}

// compositeKey joins a prefix and key into the single string most
// map/B-tree-backed implementations index by.
func compositeKey(prefix, key common.Digest) string {
	b := make([]byte, 0, common.DigestSize*2)
	b = append(b, prefix[:]...)
	b = append(b, key[:]...)
	return string(b)
}
