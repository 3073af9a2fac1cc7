// Package accountstore is StateEngine's live-account-map front end over a
// model.MerkleTree, the account-side analogue of the teacher's
// consensusstatestore (domain/consensus/datastructures/consensusstatestore):
// same "read-through, stage mutations, commit or discard" shape, applied
// to per-account balances/nonce/pubkey instead of a UTXO diff.
package accountstore

import (
	"github.com/dagrollup/rollupcore/domain/rollup/model"
	"github.com/dagrollup/rollupcore/domain/rollup/model/externalapi"
)

// Store is StateEngine's handle onto the account map backing a
// model.MerkleTree.
type Store struct {
	tree model.MerkleTree
}

// New returns a Store backed by tree.
func New(tree model.MerkleTree) *Store {
	return &Store{tree: tree}
}

// Get returns the account at id, or nil if it does not exist.
func (s *Store) Get(id externalapi.AccountId) *externalapi.Account {
	acc, ok := s.tree.Get(id)
	if !ok {
		return nil
	}
	return acc
}

// ByAddress linearly scans for the account bound to address. The account
// tree is keyed by AccountId, not Address; production deployments would
// maintain an address index alongside it, out of scope here since
// spec.md never names one.
func (s *Store) ByAddress(address externalapi.Address) *externalapi.Account {
	// Exposed for completeness (Deposit resolution); callers that already
	// track address->id off of prior Create updates should prefer that
	// instead of calling this on a hot path.
	for id := externalapi.AccountId(0); id < s.tree.NextFreeId(); id++ {
		if acc, ok := s.tree.Get(id); ok && acc.Address == address {
			return acc
		}
	}
	return nil
}

// AllocateNew inserts a brand new account at the tree's next free id and
// returns it.
func (s *Store) AllocateNew(address externalapi.Address) *externalapi.Account {
	id := s.tree.NextFreeId()
	acc := externalapi.NewAccount(id, address)
	s.tree.Insert(id, acc)
	return acc
}

// Put writes acc back into the tree at its own id, overwriting whatever
// was there (used after mutating a Get()'d account in place).
func (s *Store) Put(acc *externalapi.Account) {
	s.tree.Insert(acc.Id, acc)
}

// Delete removes the account at id (Close, spec.md §4.2, currently
// unreachable since Close is policy-disabled).
func (s *Store) Delete(id externalapi.AccountId) {
	s.tree.Remove(id)
}

// RootHash returns the underlying tree's current root.
func (s *Store) RootHash() externalapi.Hash {
	return s.tree.RootHash()
}

// Snapshot returns a deep copy of every account currently in the map,
// used by StateEngine to capture a pre-batch state for the reversal-law
// assertion in tests (spec.md §8 invariant 2). Production reversal relies
// on AccountUpdate.Reverse(), not on this snapshot.
func (s *Store) Snapshot() map[externalapi.AccountId]*externalapi.Account {
	out := make(map[externalapi.AccountId]*externalapi.Account)
	for id := externalapi.AccountId(0); id < s.tree.NextFreeId(); id++ {
		if acc, ok := s.tree.Get(id); ok {
			out[id] = acc.Clone()
		}
	}
	return out
}
