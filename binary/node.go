// Package binary implements the append-only binary Merkle tree: a
// positional leaf log producing an RFC-6962-style balanced root and
// per-leaf inclusion proofs.
package binary

import (
	enc "encoding/binary"
	"fmt"

	"github.com/trillian-merkle/fuelmerkle/common"
)

// recordSize is the encoded length of a record: 8-byte position,
// 4-byte height, three 32-byte digests (parent, left, right).
const recordSize = 8 + 4 + common.DigestSize*3

// record is the on-disk layout of a binary tree node (base spec §6).
// The zero digest denotes absence: a leaf has no left/right children, and
// a node has no parent until it is joined into a larger subtree.
type record struct {
	Position uint64
	Height   uint32
	Parent   common.Digest
	Left     common.Digest
	Right    common.Digest
}

func (r record) isLeaf() bool {
	return r.Left.IsZero() && r.Right.IsZero()
}

func (r record) encode() []byte {
	buf := make([]byte, recordSize)
	enc.BigEndian.PutUint64(buf[0:8], r.Position)
	enc.BigEndian.PutUint32(buf[8:12], r.Height)
	copy(buf[12:44], r.Parent[:])
	copy(buf[44:76], r.Left[:])
	copy(buf[76:108], r.Right[:])
	return buf
}

func decodeRecord(b []byte) (record, error) {
	if len(b) != recordSize {
		return record{}, &common.DeserializeError{
			Reason: fmt.Sprintf("binary node record: want %d bytes, got %d", recordSize, len(b)),
		}
	}
	var r record
	r.Position = enc.BigEndian.Uint64(b[0:8])
	r.Height = enc.BigEndian.Uint32(b[8:12])
	r.Parent = common.BytesToDigest(b[12:44])
	r.Left = common.BytesToDigest(b[44:76])
	r.Right = common.BytesToDigest(b[76:108])
	return r, nil
}

// LeafHash returns the digest of a leaf carrying payload: H(0x00 || payload).
func LeafHash(h common.Hasher, payload []byte) common.Digest {
	return h.Sum(common.LeafPrefix, payload)
}

// NodeHash returns the digest of an internal node: H(0x01 || left || right).
func NodeHash(h common.Hasher, left, right common.Digest) common.Digest {
	return h.Sum(common.NodePrefix, left[:], right[:])
}

// EmptySum is the defined root of a binary tree with no leaves: the hash
// of no data.
func EmptySum(h common.Hasher) common.Digest {
	return h.Sum()
}
