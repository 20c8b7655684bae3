package common

import (
	"crypto/sha256"
	"hash"

	"golang.org/x/crypto/sha3"
)

// Hasher is the single-output hashing capability every tree in this module
// is parameterized over. The spec assumes "a SHA-256-class hash" is
// available; this module never implements one itself, it only selects
// among real library implementations.
type Hasher interface {
	// Sum hashes the concatenation of data, in order, and returns the
	// resulting digest.
	Sum(data ...[]byte) Digest
}

type stdHasher struct {
	new func() hash.Hash
}

func (h stdHasher) Sum(data ...[]byte) Digest {
	sum := h.new()
	for _, d := range data {
		sum.Write(d)
	}
	return BytesToDigest(sum.Sum(nil))
}

// SHA256 is the default hasher, backed by crypto/sha256.
var SHA256 Hasher = stdHasher{new: sha256.New}

// SHA3_256 is an alternate SHA-256-class hasher, backed by
// golang.org/x/crypto/sha3, offered so callers can swap the concrete
// primitive without touching any tree's algorithm.
var SHA3_256 Hasher = stdHasher{new: sha3.New256}

// Domain-separation prefixes. The same two tag bytes are reused by every
// tree that needs leaf/internal separation; what differs between trees is
// what else goes into the hash alongside the tag, never the tag values
// themselves. Swapping these two constants between trees is forbidden by
// the hashing discipline (base spec §6) because it would let a leaf
// pre-image collide with an internal pre-image.
const (
	leafPrefix     = byte(0x00)
	internalPrefix = byte(0x01)
)

// LeafPrefix and NodePrefix expose the tag bytes to tree packages so the
// constant lives in exactly one place.
var (
	LeafPrefix = []byte{leafPrefix}
	NodePrefix = []byte{internalPrefix}
)
