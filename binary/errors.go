package binary

import "github.com/trillian-merkle/fuelmerkle/common"

// These aliases let callers of this package catch the shared error kinds
// without importing the common package directly for type assertions.
type (
	LoadError                = common.LoadError
	DeserializeError         = common.DeserializeError
	IncompatibleStorageNode  = common.IncompatibleStorageNodeError
	InvalidProofIndexError   = common.InvalidProofIndexError
)
