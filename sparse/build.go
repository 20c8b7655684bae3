package sparse

import (
	"context"

	"github.com/trillian-merkle/fuelmerkle/common"
	"github.com/trillian-merkle/fuelmerkle/storage"
)

// Entry is a single key/value pair supplied to BuildFromSet.
type Entry struct {
	Key   common.Digest
	Value []byte
}

// BuildFromSet constructs a tree from a set of entries in one call. The
// base spec (§4.2) allows a conforming implementation to optimize bulk
// construction as long as it produces the same digests as inserting the
// entries one at a time; this implementation takes the straightforward,
// always-conforming route of sequential Update calls, insertion order
// having no effect on the resulting root.
func BuildFromSet(ctx context.Context, store storage.Store, prefix common.Digest, hasher common.Hasher, entries []Entry) (*MerkleTree, error) {
	t := NewWithHasher(store, prefix, hasher)
	for _, e := range entries {
		if _, err := t.Update(ctx, e.Key, e.Value); err != nil {
			return nil, err
		}
	}
	return t, nil
}
