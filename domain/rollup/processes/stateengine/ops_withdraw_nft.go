package stateengine

import (
	"github.com/dagrollup/rollupcore/domain/rollup/model"
	"github.com/dagrollup/rollupcore/domain/rollup/model/externalapi"
)

// applyWithdrawNFT implements spec.md §4.2 WithdrawNFT: owner holds a
// balance of exactly 1 for Token and its nonce matches. Zeros the balance
// and emits an external NFT withdrawal record for ToAddress.
func (e *Engine) applyWithdrawNFT(w *externalapi.WithdrawNFT) (*model.OpSuccess, error) {
	if err := e.checkMinFee(externalapi.OpWithdrawNFT, w.Fee); err != nil {
		return nil, err
	}

	owner := e.accounts.Get(w.AccountId)
	if owner == nil {
		return nil, externalapi.UnknownAccount
	}
	if owner.Nonce != w.Nonce {
		return nil, externalapi.NonceMismatch
	}
	nft, ok := owner.NFTs[w.Token]
	if !ok || !owner.BalanceOf(w.Token).GreaterOrEqual(externalapi.AmountFromUint64(1)) {
		return nil, externalapi.InsufficientBalance
	}
	feeBalance := owner.BalanceOf(w.FeeToken)
	if feeBalance.LessThan(w.Fee) {
		return nil, externalapi.InsufficientBalance
	}

	updates := make([]*externalapi.AccountUpdate, 0, 2)

	delete(owner.NFTs, w.Token)
	owner.SetBalance(w.Token, externalapi.ZeroAmount())
	updates = append(updates, &externalapi.AccountUpdate{
		AccountId: owner.Id,
		Kind:      externalapi.UpdateRemoveNFT,
		RemoveNFT: &externalapi.RemoveNFTUpdate{Token: w.Token, NFT: *nft},
	})

	if w.FeeToken == w.Token {
		feeBalance = owner.BalanceOf(w.FeeToken)
	}
	newFeeBalance := feeBalance.Sub(w.Fee)
	oldNonce := owner.Nonce
	owner.SetBalance(w.FeeToken, newFeeBalance)
	owner.Nonce++
	e.accounts.Put(owner)
	updates = append(updates, &externalapi.AccountUpdate{
		AccountId: owner.Id,
		Kind:      externalapi.UpdateBalance,
		Balance: &externalapi.BalanceUpdate{
			Token:      w.FeeToken,
			OldBalance: feeBalance,
			NewBalance: newFeeBalance,
			OldNonce:   oldNonce,
			NewNonce:   owner.Nonce,
		},
	})

	resolved := &externalapi.Operation{Kind: externalapi.OpWithdrawNFT, WithdrawNFT: w}
	return &model.OpSuccess{Updates: updates, ResolvedOp: resolved, Fee: w.Fee, FeeToken: w.FeeToken}, nil
}
