// Package sparse implements the full-height (256-bit keyed) sparse
// Merkle tree: a complete binary tree of height 256 whose untouched
// positions are implicit placeholders, with path-set based updates and
// deletes.
package sparse

import (
	enc "encoding/binary"
	"fmt"

	"github.com/trillian-merkle/fuelmerkle/common"
)

// keyWidthBits is the full bit width of a sparse tree key (base spec §3:
// keys are 256-bit bit paths).
const keyWidthBits = 256

type kind uint8

const (
	kindLeaf kind = iota + 1
	kindInternal
)

// node is a stored sparse tree node. Placeholders are never stored: they
// are the implicit zero-digest consulted whenever a missing child is
// encountered during descent.
//
// For a leaf, a is the leaf key and b is the value hash. For an internal
// node, a is the left child's digest and b is the right child's.
type node struct {
	kind   kind
	height uint32
	a      common.Digest
	b      common.Digest
}

func (n node) digest(h common.Hasher) common.Digest {
	switch n.kind {
	case kindLeaf:
		return h.Sum(common.LeafPrefix, n.a[:], n.b[:])
	case kindInternal:
		return h.Sum(common.NodePrefix, n.a[:], n.b[:])
	default:
		return common.ZeroDigest
	}
}

// recordSize matches the on-disk layout from base spec §6: 1 tag byte,
// 4-byte height, then two 32-byte fields.
const recordSize = 1 + 4 + common.DigestSize*2

func (n node) encode() []byte {
	buf := make([]byte, recordSize)
	buf[0] = byte(n.kind)
	enc.BigEndian.PutUint32(buf[1:5], n.height)
	copy(buf[5:37], n.a[:])
	copy(buf[37:69], n.b[:])
	return buf
}

func decodeNode(b []byte) (node, error) {
	if len(b) != recordSize {
		return node{}, &common.DeserializeError{
			Reason: fmt.Sprintf("sparse node record: want %d bytes, got %d", recordSize, len(b)),
		}
	}
	k := kind(b[0])
	if k != kindLeaf && k != kindInternal {
		return node{}, &common.DeserializeError{Reason: fmt.Sprintf("sparse node record: unknown tag %d", b[0])}
	}
	var n node
	n.kind = k
	n.height = enc.BigEndian.Uint32(b[1:5])
	n.a = common.BytesToDigest(b[5:37])
	n.b = common.BytesToDigest(b[37:69])
	return n, nil
}

// HashedValue returns the 32-byte digest a sparse or AVL tree stores
// alongside a key: value itself when it is already 32 bytes wide,
// otherwise its hash (base spec §3, "Hashed value").
func HashedValue(h common.Hasher, value []byte) common.Digest {
	if len(value) == common.DigestSize {
		return common.BytesToDigest(value)
	}
	return h.Sum(value)
}
