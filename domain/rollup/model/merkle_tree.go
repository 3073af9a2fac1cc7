package model

import "github.com/dagrollup/rollupcore/domain/rollup/model/externalapi"

// MerkleTree is the sparse authenticated map AccountId -> Account
// (spec.md §4.1). Every method except the cache interfaces is a pure
// function of the current map.
type MerkleTree interface {
	Get(id externalapi.AccountId) (*externalapi.Account, bool)
	Insert(id externalapi.AccountId, account *externalapi.Account)
	Remove(id externalapi.AccountId)
	RootHash() externalapi.Hash
	AuditPath(id externalapi.AccountId) []externalapi.Hash
	NextFreeId() externalapi.AccountId

	// LoadCache replaces this tree's internal node cache with cache, the
	// serialized form SaveCache produced for blockNumber, returning false
	// (and leaving the tree unchanged) if cache cannot be deserialized.
	LoadCache(blockNumber uint32, cache []byte) bool
	// SaveCache serializes this tree's internal node cache for persistence
	// under blockNumber.
	SaveCache(blockNumber uint32) []byte
}
