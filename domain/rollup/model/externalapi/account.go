package externalapi

// AccountId is the dense numeric identifier assigned to an account on
// first appearance (spec.md §3).
type AccountId uint32

// TokenId identifies a fungible token or, for NFTs, the token id the NFT
// descriptor was minted under.
type TokenId uint32

// AddressSize is the length in bytes of an external address.
const AddressSize = 20

// Address is the 20-byte external identifier bound to an account.
type Address [AddressSize]byte

// BytesToAddress truncates or zero-pads b to AddressSize.
func BytesToAddress(b []byte) Address {
	var a Address
	if len(b) > AddressSize {
		b = b[len(b)-AddressSize:]
	}
	copy(a[AddressSize-len(b):], b)
	return a
}

// PubKeyHashSize is the length in bytes of a bound public-key hash.
const PubKeyHashSize = 20

// PubKeyHash is either the zero value (unbound) or the hash of the
// account's signing key, bound via ChangePubKey.
type PubKeyHash [PubKeyHashSize]byte

// IsZero reports whether the public-key hash is unbound.
func (h PubKeyHash) IsZero() bool {
	return h == PubKeyHash{}
}

// NFT is the descriptor for a non-fungible token (spec.md §3).
type NFT struct {
	Id             TokenId
	CreatorId      AccountId
	CreatorAddress Address
	Serial         uint32
	ContentHash    Hash
}

// Clone returns a deep copy of the NFT descriptor.
func (n *NFT) Clone() *NFT {
	if n == nil {
		return nil
	}
	clone := *n
	return &clone
}

// Account is the per-AccountId state tracked by the rollup (spec.md §3).
//
// Invariants enforced by callers (datastructures/accountstore,
// processes/stateengine), not by this struct itself:
//   - Address is unique across live accounts.
//   - A token absent from Balances has balance zero.
//   - Nonce never decreases.
//   - Once PubKeyHash is bound it is rotated, never cleared, except via
//     Close (currently rejected by policy, spec.md §9).
type Account struct {
	Id         AccountId
	Address    Address
	Nonce      uint32
	PubKeyHash PubKeyHash
	Balances   map[TokenId]Amount
	NFTs       map[TokenId]*NFT
}

// NewAccount returns an empty account bound to the given id and address.
func NewAccount(id AccountId, address Address) *Account {
	return &Account{
		Id:       id,
		Address:  address,
		Balances: make(map[TokenId]Amount),
		NFTs:     make(map[TokenId]*NFT),
	}
}

// BalanceOf returns the balance of token, defaulting to zero.
func (a *Account) BalanceOf(token TokenId) Amount {
	if bal, ok := a.Balances[token]; ok {
		return bal
	}
	return ZeroAmount()
}

// SetBalance sets the balance of token, pruning the entry when it becomes
// zero so the invariant "absent token implies zero balance" holds without
// needing to special-case reads.
func (a *Account) SetBalance(token TokenId, amount Amount) {
	if amount.IsZero() {
		delete(a.Balances, token)
		return
	}
	a.Balances[token] = amount
}

// Clone returns a deep copy of the account, safe to mutate independently
// of the original (used by the Merkle tree's pure-function contract and by
// batch reversal snapshots).
func (a *Account) Clone() *Account {
	if a == nil {
		return nil
	}
	clone := &Account{
		Id:         a.Id,
		Address:    a.Address,
		Nonce:      a.Nonce,
		PubKeyHash: a.PubKeyHash,
		Balances:   make(map[TokenId]Amount, len(a.Balances)),
		NFTs:       make(map[TokenId]*NFT, len(a.NFTs)),
	}
	for token, amount := range a.Balances {
		clone.Balances[token] = amount
	}
	for id, nft := range a.NFTs {
		clone.NFTs[id] = nft.Clone()
	}
	return clone
}
