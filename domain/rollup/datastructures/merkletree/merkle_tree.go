// Package merkletree implements the sparse authenticated account map of
// spec.md §4.1, modeled on the teacher's staged/dirty cache shape
// (domain/consensus/datastructures/utxodiffstore) and its hash-writer
// composition pattern (domain/consensus/utils/merkle).
package merkletree

import (
	"encoding/binary"

	"github.com/dagrollup/rollupcore/domain/rollup/model"
	"github.com/dagrollup/rollupcore/domain/rollup/model/externalapi"
)

// Depth is the fixed depth of the account tree, giving room for 2^Depth
// accounts. Chosen small enough to keep tests and examples readable;
// production deployments would size this to the circuit's account tree
// depth (out of scope per spec.md §1).
const Depth = 24

var _ model.MerkleTree = (*Tree)(nil)

// node is one internal or leaf position in the tree, identified by
// (depth, index) where depth 0 is the leaf row and Depth is the root.
type node struct {
	depth uint8
	index uint64
}

// Tree is a sparse Merkle tree over AccountId, per spec.md §4.1. Leaves
// are account hashes (accountLeafHash); internal nodes above empty
// subtrees default to a fixed per-depth zero hash so every position has a
// well-defined value without being materialized.
type Tree struct {
	accounts map[externalapi.AccountId]*externalapi.Account
	nextFree externalapi.AccountId

	// dirty holds leaves changed since the last RootHash call; cache
	// holds every internal node hash computed so far, keyed by (depth,
	// index), recomputed lazily as dirty leaves are folded upward.
	dirty map[externalapi.AccountId]bool
	cache map[node]externalapi.Hash

	zeroHashes [Depth + 1]externalapi.Hash
}

// New returns an empty Tree.
func New() *Tree {
	t := &Tree{
		accounts: make(map[externalapi.AccountId]*externalapi.Account),
		dirty:    make(map[externalapi.AccountId]bool),
		cache:    make(map[node]externalapi.Hash),
	}
	t.computeZeroHashes()
	return t
}

func (t *Tree) computeZeroHashes() {
	t.zeroHashes[0] = externalapi.ZeroHash
	for d := 1; d <= Depth; d++ {
		t.zeroHashes[d] = externalapi.HashBranches(t.zeroHashes[d-1], t.zeroHashes[d-1])
	}
}

// Get returns the account at id, if present.
func (t *Tree) Get(id externalapi.AccountId) (*externalapi.Account, bool) {
	acc, ok := t.accounts[id]
	return acc, ok
}

// Insert sets the account at id, marking its leaf dirty. Per spec.md
// §4.1's contract, Insert after Remove of the same id yields the same
// root as the sequence Remove;Insert, since both simply leave the leaf
// dirty with its final value at the next RootHash call.
func (t *Tree) Insert(id externalapi.AccountId, account *externalapi.Account) {
	t.accounts[id] = account
	t.dirty[id] = true
	if id >= t.nextFree {
		t.nextFree = id + 1
	}
}

// Remove deletes the account at id, marking its leaf dirty so the next
// RootHash call folds in the zero leaf.
func (t *Tree) Remove(id externalapi.AccountId) {
	delete(t.accounts, id)
	t.dirty[id] = true
}

// NextFreeId returns the smallest AccountId never yet allocated.
func (t *Tree) NextFreeId() externalapi.AccountId {
	return t.nextFree
}

// leafHash computes H(account_fields, H(balance_subtree_root,
// nft_subtree_root)) for the account at id, or the zero leaf if absent
// (spec.md §3).
func (t *Tree) leafHash(id externalapi.AccountId) externalapi.Hash {
	acc, ok := t.accounts[id]
	if !ok {
		return t.zeroHashes[0]
	}
	return accountLeafHash(acc)
}

func accountLeafHash(acc *externalapi.Account) externalapi.Hash {
	balanceRoot := subtreeRoot(balanceLeaves(acc))
	nftRoot := subtreeRoot(nftLeaves(acc))
	contentRoot := externalapi.HashBranches(balanceRoot, nftRoot)

	w := externalapi.NewHashWriter()
	_, _ = w.Write(acc.Address[:])
	var nonceBuf [4]byte
	binary.BigEndian.PutUint32(nonceBuf[:], acc.Nonce)
	_, _ = w.Write(nonceBuf[:])
	_, _ = w.Write(acc.PubKeyHash[:])
	_, _ = w.Write(contentRoot[:])
	return w.Finalize()
}

// balanceLeaves and nftLeaves build small sparse subtrees keyed by
// TokenId; token ids not present hash to the zero leaf, same shape as the
// outer account tree (spec.md §3).
func balanceLeaves(acc *externalapi.Account) map[uint32]externalapi.Hash {
	leaves := make(map[uint32]externalapi.Hash, len(acc.Balances))
	for token, amount := range acc.Balances {
		b := amount.Bytes32()
		leaves[uint32(token)] = externalapi.HashBytes(b[:])
	}
	return leaves
}

func nftLeaves(acc *externalapi.Account) map[uint32]externalapi.Hash {
	leaves := make(map[uint32]externalapi.Hash, len(acc.NFTs))
	for token, nft := range acc.NFTs {
		w := externalapi.NewHashWriter()
		var idBuf [4]byte
		binary.BigEndian.PutUint32(idBuf[:], uint32(nft.Id))
		_, _ = w.Write(idBuf[:])
		var creatorBuf [4]byte
		binary.BigEndian.PutUint32(creatorBuf[:], uint32(nft.CreatorId))
		_, _ = w.Write(creatorBuf[:])
		_, _ = w.Write(nft.CreatorAddress[:])
		var serialBuf [4]byte
		binary.BigEndian.PutUint32(serialBuf[:], nft.Serial)
		_, _ = w.Write(serialBuf[:])
		_, _ = w.Write(nft.ContentHash[:])
		leaves[uint32(token)] = w.Finalize()
	}
	return leaves
}

// subtreeRoot folds a sparse set of leaves up to a single root using the
// same zero-default composition as the outer tree, but does not persist
// any intermediate cache: balance/NFT subtrees are small and recomputed
// fully whenever their owning account's leaf is recomputed.
const subtreeDepth = 16

func subtreeRoot(leaves map[uint32]externalapi.Hash) externalapi.Hash {
	zero := make([]externalapi.Hash, subtreeDepth+1)
	zero[0] = externalapi.ZeroHash
	for d := 1; d <= subtreeDepth; d++ {
		zero[d] = externalapi.HashBranches(zero[d-1], zero[d-1])
	}

	level := make(map[uint32]externalapi.Hash, len(leaves))
	for k, v := range leaves {
		level[k] = v
	}

	for d := 0; d < subtreeDepth; d++ {
		next := make(map[uint32]externalapi.Hash, len(level))
		seen := make(map[uint32]bool, len(level))
		for idx := range level {
			parent := idx / 2
			if seen[parent] {
				continue
			}
			seen[parent] = true
			left, ok := level[parent*2]
			if !ok {
				left = zero[d]
			}
			right, ok := level[parent*2+1]
			if !ok {
				right = zero[d]
			}
			next[parent] = externalapi.HashBranches(left, right)
		}
		level = next
	}
	if root, ok := level[0]; ok {
		return root
	}
	return zero[subtreeDepth]
}

// RootHash recomputes only internal nodes whose children changed since
// the last call, per spec.md §4.1, and is deterministic across identical
// maps regardless of insertion order since every leaf's position is fixed
// by its AccountId.
func (t *Tree) RootHash() externalapi.Hash {
	for id := range t.dirty {
		t.cache[node{depth: 0, index: uint64(id)}] = t.leafHash(id)
	}

	dirtyParents := make(map[uint64]bool, len(t.dirty))
	for id := range t.dirty {
		dirtyParents[uint64(id)/2] = true
	}
	t.dirty = make(map[externalapi.AccountId]bool)

	for depth := uint8(1); depth <= Depth; depth++ {
		nextParents := make(map[uint64]bool, len(dirtyParents))
		for idx := range dirtyParents {
			left := t.childHash(depth-1, idx*2)
			right := t.childHash(depth-1, idx*2+1)
			t.cache[node{depth: depth, index: idx}] = externalapi.HashBranches(left, right)
			nextParents[idx/2] = true
		}
		dirtyParents = nextParents
	}

	return t.cache[node{depth: Depth, index: 0}]
}

func (t *Tree) childHash(depth uint8, index uint64) externalapi.Hash {
	if h, ok := t.cache[node{depth: depth, index: index}]; ok {
		return h
	}
	return t.zeroHashes[depth]
}

// AuditPath returns the sibling hash at every depth from leaf to root, in
// leaf-to-root order (spec.md §4.1). Callers must call RootHash first so
// the internal cache reflects the current map; AuditPath itself performs
// no recomputation.
func (t *Tree) AuditPath(id externalapi.AccountId) []externalapi.Hash {
	path := make([]externalapi.Hash, Depth)
	idx := uint64(id)
	for depth := uint8(0); depth < Depth; depth++ {
		siblingIdx := idx ^ 1
		path[depth] = t.childHash(depth, siblingIdx)
		idx /= 2
	}
	return path
}

// LoadCache replaces the tree's internal node cache with a previously
// persisted one (spec.md §4.1, §4.6 account_tree_cache). The account map
// itself is loaded separately via PersistenceStore.LoadStateAt /
// LoadCommittedState and re-inserted before calling LoadCache.
func (t *Tree) LoadCache(blockNumber uint32, serialized []byte) bool {
	cache, ok := deserializeCache(serialized)
	if !ok {
		return false
	}
	t.cache = cache
	t.dirty = make(map[externalapi.AccountId]bool)
	return true
}

// SaveCache serializes the tree's current internal node cache for
// persistence under blockNumber.
func (t *Tree) SaveCache(blockNumber uint32) []byte {
	return serializeCache(t.cache)
}
