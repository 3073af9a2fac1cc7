package externalapi

// AccountUpdateKind tags which variant an AccountUpdate carries.
type AccountUpdateKind uint8

const (
	UpdateCreate AccountUpdateKind = iota
	UpdateDelete
	UpdateBalance
	UpdateChangePubKeyHash
	UpdateMintNFT
	UpdateRemoveNFT
)

// AccountUpdate is an immutable, append-only journal entry keyed by
// (AccountId, BlockNumber, SubIndex) (spec.md §3). Exactly one of the
// payload fields matching Kind is populated.
type AccountUpdate struct {
	AccountId   AccountId
	BlockNumber uint32
	SubIndex    uint32
	Kind        AccountUpdateKind

	Create           *CreateUpdate
	Delete           *DeleteUpdate
	Balance          *BalanceUpdate
	ChangePubKeyHash *ChangePubKeyHashUpdate
	MintNFT          *MintNFTUpdate
	RemoveNFT        *RemoveNFTUpdate
}

// CreateUpdate records a freshly allocated account.
type CreateUpdate struct {
	Address Address
	Nonce   uint32
}

// DeleteUpdate records an account removed via Close.
type DeleteUpdate struct {
	Address Address
	Nonce   uint32
}

// BalanceUpdate records a balance change for one token, chained with the
// nonce state before/after so replay can assert no gap (spec.md §3).
type BalanceUpdate struct {
	Token      TokenId
	OldBalance Amount
	NewBalance Amount
	OldNonce   uint32
	NewNonce   uint32
}

// ChangePubKeyHashUpdate records a public-key-hash rotation.
type ChangePubKeyHashUpdate struct {
	OldHash  PubKeyHash
	NewHash  PubKeyHash
	OldNonce uint32
	NewNonce uint32
}

// MintNFTUpdate records a newly minted NFT descriptor.
type MintNFTUpdate struct {
	Token TokenId
	NFT   NFT
}

// RemoveNFTUpdate records an NFT balance zeroed out (WithdrawNFT).
type RemoveNFTUpdate struct {
	Token TokenId
	NFT   NFT
}

// Reverse returns the update that perfectly undoes this one: old/new
// balance and nonce pairs are swapped, Create<->Delete, and
// MintNFT<->RemoveNFT (spec.md §4.2 batch reversal algorithm).
func (u *AccountUpdate) Reverse() *AccountUpdate {
	rev := &AccountUpdate{
		AccountId:   u.AccountId,
		BlockNumber: u.BlockNumber,
		SubIndex:    u.SubIndex,
	}
	switch u.Kind {
	case UpdateCreate:
		rev.Kind = UpdateDelete
		rev.Delete = &DeleteUpdate{Address: u.Create.Address, Nonce: u.Create.Nonce}
	case UpdateDelete:
		rev.Kind = UpdateCreate
		rev.Create = &CreateUpdate{Address: u.Delete.Address, Nonce: u.Delete.Nonce}
	case UpdateBalance:
		rev.Kind = UpdateBalance
		rev.Balance = &BalanceUpdate{
			Token:      u.Balance.Token,
			OldBalance: u.Balance.NewBalance,
			NewBalance: u.Balance.OldBalance,
			OldNonce:   u.Balance.NewNonce,
			NewNonce:   u.Balance.OldNonce,
		}
	case UpdateChangePubKeyHash:
		rev.Kind = UpdateChangePubKeyHash
		rev.ChangePubKeyHash = &ChangePubKeyHashUpdate{
			OldHash:  u.ChangePubKeyHash.NewHash,
			NewHash:  u.ChangePubKeyHash.OldHash,
			OldNonce: u.ChangePubKeyHash.NewNonce,
			NewNonce: u.ChangePubKeyHash.OldNonce,
		}
	case UpdateMintNFT:
		rev.Kind = UpdateRemoveNFT
		rev.RemoveNFT = &RemoveNFTUpdate{Token: u.MintNFT.Token, NFT: u.MintNFT.NFT}
	case UpdateRemoveNFT:
		rev.Kind = UpdateMintNFT
		rev.MintNFT = &MintNFTUpdate{Token: u.RemoveNFT.Token, NFT: u.RemoveNFT.NFT}
	}
	return rev
}
