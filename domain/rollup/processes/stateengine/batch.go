package stateengine

import (
	"github.com/dagrollup/rollupcore/domain/rollup/model"
	"github.com/dagrollup/rollupcore/domain/rollup/model/externalapi"
)

// ApplyBatch implements spec.md §4.2's all-or-nothing batch application: on
// the first failure at 1-based index k, every prior success is reversed in
// LIFO order (reversing both across operations and, within an operation,
// across its own update list) before BatchError is returned.
func (e *Engine) ApplyBatch(txs []*externalapi.Tx) ([]*model.OpSuccess, error) {
	successes := make([]*model.OpSuccess, 0, len(txs))

	for i, tx := range txs {
		success, err := e.ApplyTx(tx)
		if err != nil {
			e.reverseAll(successes)
			return nil, &externalapi.BatchError{FailedIndex: i + 1, Cause: err}
		}
		successes = append(successes, success)
	}

	return successes, nil
}

// reverseAll undoes every OpSuccess in successes, latest first, and within
// each, its own updates latest first.
func (e *Engine) reverseAll(successes []*model.OpSuccess) {
	for i := len(successes) - 1; i >= 0; i-- {
		updates := successes[i].Updates
		for j := len(updates) - 1; j >= 0; j-- {
			e.applyUpdate(updates[j].Reverse())
		}
	}
}

// applyUpdate mutates the account map to reflect u's "new" side, used only
// during reversal (where u is itself the negated record returned by
// AccountUpdate.Reverse()).
func (e *Engine) applyUpdate(u *externalapi.AccountUpdate) {
	switch u.Kind {
	case externalapi.UpdateCreate:
		acc := externalapi.NewAccount(u.AccountId, u.Create.Address)
		acc.Nonce = u.Create.Nonce
		e.accounts.Put(acc)
	case externalapi.UpdateDelete:
		e.accounts.Delete(u.AccountId)
	case externalapi.UpdateBalance:
		acc := e.accounts.Get(u.AccountId)
		acc.SetBalance(u.Balance.Token, u.Balance.NewBalance)
		acc.Nonce = u.Balance.NewNonce
		e.accounts.Put(acc)
	case externalapi.UpdateChangePubKeyHash:
		acc := e.accounts.Get(u.AccountId)
		acc.PubKeyHash = u.ChangePubKeyHash.NewHash
		acc.Nonce = u.ChangePubKeyHash.NewNonce
		e.accounts.Put(acc)
	case externalapi.UpdateMintNFT:
		acc := e.accounts.Get(u.AccountId)
		nft := u.MintNFT.NFT
		acc.NFTs[u.MintNFT.Token] = &nft
		acc.SetBalance(u.MintNFT.Token, externalapi.AmountFromUint64(1))
		e.accounts.Put(acc)
	case externalapi.UpdateRemoveNFT:
		acc := e.accounts.Get(u.AccountId)
		delete(acc.NFTs, u.RemoveNFT.Token)
		acc.SetBalance(u.RemoveNFT.Token, externalapi.ZeroAmount())
		e.accounts.Put(acc)
	}
}

// CollectFee implements spec.md §4.2: adds each non-zero fee to the fee
// account's balance for its token, leaving its nonce untouched, and
// returns one UpdateBalance per non-zero fee.
func (e *Engine) CollectFee(fees []model.Fee, feeAccountId externalapi.AccountId) []*externalapi.AccountUpdate {
	acc := e.accounts.Get(feeAccountId)
	if acc == nil {
		log.Criticalf("CollectFee called with unknown fee account %d", feeAccountId)
		panic("stateengine: CollectFee called with unknown fee account")
	}

	updates := make([]*externalapi.AccountUpdate, 0, len(fees))
	for _, fee := range fees {
		if fee.Amount.IsZero() {
			continue
		}
		oldBalance := acc.BalanceOf(fee.Token)
		newBalance := oldBalance.Add(fee.Amount)
		acc.SetBalance(fee.Token, newBalance)
		updates = append(updates, &externalapi.AccountUpdate{
			AccountId: acc.Id,
			Kind:      externalapi.UpdateBalance,
			Balance: &externalapi.BalanceUpdate{
				Token:      fee.Token,
				OldBalance: oldBalance,
				NewBalance: newBalance,
				OldNonce:   acc.Nonce,
				NewNonce:   acc.Nonce,
			},
		})
	}
	e.accounts.Put(acc)

	return updates
}
