package stateengine

import (
	"github.com/dagrollup/rollupcore/domain/rollup/model"
	"github.com/dagrollup/rollupcore/domain/rollup/model/externalapi"
)

// applyMintNFT implements spec.md §4.2 MintNFT: creator exists, nonce
// matches, and a fresh token id is derived from the engine's mint
// sequence. Credits recipient with a balance of 1 against the newly
// derived token id; the engine's NFT storage account (spec.md §3) is
// neither read nor changed.
func (e *Engine) applyMintNFT(m *externalapi.MintNFT) (*model.OpSuccess, error) {
	if err := e.checkMinFee(externalapi.OpMintNFT, m.Fee); err != nil {
		return nil, err
	}

	creator := e.accounts.Get(m.CreatorId)
	if creator == nil {
		return nil, externalapi.UnknownAccount
	}
	if creator.Nonce != m.Nonce {
		return nil, externalapi.NonceMismatch
	}
	recipient := e.accounts.Get(m.RecipientId)
	if recipient == nil {
		return nil, externalapi.UnknownAccount
	}

	feeBalance := creator.BalanceOf(m.FeeToken)
	if feeBalance.LessThan(m.Fee) {
		return nil, externalapi.InsufficientBalance
	}

	e.nextMintSeq++
	mintedToken := externalapi.TokenId(e.nextMintSeq)
	m.MintedTokenId = mintedToken

	nft := &externalapi.NFT{
		Id:             mintedToken,
		CreatorId:      m.CreatorId,
		CreatorAddress: creator.Address,
		Serial:         e.nextMintSeq,
		ContentHash:    m.ContentHash,
	}

	updates := make([]*externalapi.AccountUpdate, 0, 2)

	recipient.NFTs[mintedToken] = nft
	recipient.SetBalance(mintedToken, externalapi.AmountFromUint64(1))
	e.accounts.Put(recipient)
	updates = append(updates, &externalapi.AccountUpdate{
		AccountId: recipient.Id,
		Kind:      externalapi.UpdateMintNFT,
		MintNFT:   &externalapi.MintNFTUpdate{Token: mintedToken, NFT: *nft},
	})

	newFeeBalance := feeBalance.Sub(m.Fee)
	oldNonce := creator.Nonce
	creator.SetBalance(m.FeeToken, newFeeBalance)
	creator.Nonce++
	e.accounts.Put(creator)
	updates = append(updates, &externalapi.AccountUpdate{
		AccountId: creator.Id,
		Kind:      externalapi.UpdateBalance,
		Balance: &externalapi.BalanceUpdate{
			Token:      m.FeeToken,
			OldBalance: feeBalance,
			NewBalance: newFeeBalance,
			OldNonce:   oldNonce,
			NewNonce:   creator.Nonce,
		},
	})

	resolved := &externalapi.Operation{Kind: externalapi.OpMintNFT, MintNFT: m}
	return &model.OpSuccess{Updates: updates, ResolvedOp: resolved, Fee: m.Fee, FeeToken: m.FeeToken}, nil
}
