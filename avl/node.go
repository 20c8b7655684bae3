// Package avl implements a self-balancing (AVL) Merkle tree: an ordered,
// content-addressed key-value map over a pluggable store, rebalanced on
// every insert so that a walk from root to leaf never exceeds
// O(log n) hops.
package avl

import (
	"fmt"

	"github.com/trillian-merkle/fuelmerkle/common"
)

// Child is the information a parent node keeps about one of its children:
// enough to compute the parent's own digest and decide whether the
// subtree needs rebalancing, without loading the child itself.
type Child struct {
	Height uint8
	Key    common.Digest
	Hash   common.Digest
}

// Node is an AVL tree node as held in memory. Key is its storage key;
// Left and Right are nil for a leaf.
type Node struct {
	Key       common.Digest
	ValueHash common.Digest
	Left      *Child
	Right     *Child
}

// LeftHeight returns the height of the left subtree, 0 if absent.
func (n *Node) LeftHeight() uint8 {
	if n.Left == nil {
		return 0
	}
	return n.Left.Height
}

// RightHeight returns the height of the right subtree, 0 if absent.
func (n *Node) RightHeight() uint8 {
	if n.Right == nil {
		return 0
	}
	return n.Right.Height
}

// Height returns n's own height: one more than the taller of its
// children, where an absent child counts as 0, so a leaf has height 1.
func (n *Node) Height() uint8 {
	l, r := n.LeftHeight(), n.RightHeight()
	if l > r {
		return l + 1
	}
	return r + 1
}

func (n *Node) leftDigest() common.Digest {
	if n.Left == nil {
		return common.ZeroDigest
	}
	return n.Left.Hash
}

func (n *Node) rightDigest() common.Digest {
	if n.Right == nil {
		return common.ZeroDigest
	}
	return n.Right.Hash
}

// digest computes n's hash, the value its parent records in Child.Hash
// (nodes are stored under Key, not under this digest). Unlike the sparse and
// binary trees, AVL nodes carry no leaf/internal domain-separation
// prefix (base spec §3): the key and value hash already make every
// node's input unique.
func (n *Node) digest(h common.Hasher) common.Digest {
	return h.Sum(n.Key[:], n.ValueHash[:], n.leftDigest()[:], n.rightDigest()[:])
}

func (n *Node) setLeft(child *Node, hasher common.Hasher) {
	n.Left = &Child{Height: child.Height(), Key: child.Key, Hash: child.digest(hasher)}
}

func (n *Node) setRight(child *Node, hasher common.Hasher) {
	n.Right = &Child{Height: child.Height(), Key: child.Key, Hash: child.digest(hasher)}
}

// childRecordSize is the width of a present child's variable portion: a
// height byte, then two 32-byte digests.
const childRecordSize = 1 + common.DigestSize*2

func appendChild(buf []byte, c *Child) []byte {
	if c == nil {
		return append(buf, 0)
	}
	buf = append(buf, 1, c.Height)
	buf = append(buf, c.Key[:]...)
	buf = append(buf, c.Hash[:]...)
	return buf
}

// readChild consumes a has-child flag and, if set, the child record that
// follows, returning the child (nil if absent) and the number of bytes
// consumed.
func readChild(b []byte) (*Child, int, error) {
	if len(b) < 1 {
		return nil, 0, &common.DeserializeError{Reason: "avl node record: truncated before child flag"}
	}
	if b[0] == 0 {
		return nil, 1, nil
	}
	if len(b) < 1+childRecordSize {
		return nil, 0, &common.DeserializeError{Reason: "avl node record: truncated child"}
	}
	c := &Child{Height: b[1]}
	c.Key = common.BytesToDigest(b[2 : 2+common.DigestSize])
	c.Hash = common.BytesToDigest(b[2+common.DigestSize : 1+childRecordSize])
	return c, 1 + childRecordSize, nil
}

// encode serializes everything but the key, which is the storage key
// under which this record is addressed, following the variable-length
// has-left/has-right layout from base spec §6.
func (n *Node) encode() []byte {
	buf := make([]byte, 0, common.DigestSize+2*(1+childRecordSize))
	buf = append(buf, n.ValueHash[:]...)
	buf = appendChild(buf, n.Left)
	buf = appendChild(buf, n.Right)
	return buf
}

func decodeNode(key common.Digest, b []byte) (*Node, error) {
	if len(b) < common.DigestSize {
		return nil, &common.DeserializeError{
			Reason: fmt.Sprintf("avl node record: want at least %d bytes, got %d", common.DigestSize, len(b)),
		}
	}
	n := &Node{Key: key}
	n.ValueHash = common.BytesToDigest(b[0:common.DigestSize])
	rest := b[common.DigestSize:]

	left, n1, err := readChild(rest)
	if err != nil {
		return nil, err
	}
	n.Left = left
	rest = rest[n1:]

	right, n2, err := readChild(rest)
	if err != nil {
		return nil, err
	}
	n.Right = right
	rest = rest[n2:]

	if len(rest) != 0 {
		return nil, &common.DeserializeError{Reason: fmt.Sprintf("avl node record: %d trailing bytes", len(rest))}
	}
	return n, nil
}

// HashedValue mirrors sparse.HashedValue: the value itself when already
// 32 bytes wide, otherwise its hash.
func HashedValue(h common.Hasher, value []byte) common.Digest {
	if len(value) == common.DigestSize {
		return common.BytesToDigest(value)
	}
	return h.Sum(value)
}
