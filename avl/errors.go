package avl

import "github.com/trillian-merkle/fuelmerkle/common"

type (
	LoadError               = common.LoadError
	DeserializeError        = common.DeserializeError
	IncompatibleStorageNode = common.IncompatibleStorageNodeError
)
