package stateengine

import (
	"github.com/dagrollup/rollupcore/domain/rollup/model"
	"github.com/dagrollup/rollupcore/domain/rollup/model/externalapi"
)

// applyWithdraw implements spec.md §4.2 Withdraw: account exists, nonce
// matches, balance covers amount+fee. Debits the account; ToAddress is
// carried through on the resolved operation for the public-data writer and
// the external withdrawal record, not applied to any in-rollup balance.
func (e *Engine) applyWithdraw(w *externalapi.Withdraw) (*model.OpSuccess, error) {
	if err := e.checkMinFee(externalapi.OpWithdraw, w.Fee); err != nil {
		return nil, err
	}

	acc := e.accounts.Get(w.AccountId)
	if acc == nil {
		return nil, externalapi.UnknownAccount
	}
	if acc.Nonce != w.Nonce {
		return nil, externalapi.NonceMismatch
	}

	debit := w.Amount.Add(w.Fee)
	balance := acc.BalanceOf(w.Token)
	if balance.LessThan(debit) {
		return nil, externalapi.InsufficientBalance
	}

	newBalance := balance.Sub(debit)
	oldNonce := acc.Nonce
	acc.SetBalance(w.Token, newBalance)
	acc.Nonce++
	e.accounts.Put(acc)

	update := &externalapi.AccountUpdate{
		AccountId: acc.Id,
		Kind:      externalapi.UpdateBalance,
		Balance: &externalapi.BalanceUpdate{
			Token:      w.Token,
			OldBalance: balance,
			NewBalance: newBalance,
			OldNonce:   oldNonce,
			NewNonce:   acc.Nonce,
		},
	}

	resolved := &externalapi.Operation{Kind: externalapi.OpWithdraw, Withdraw: w}
	return &model.OpSuccess{
		Updates:    []*externalapi.AccountUpdate{update},
		ResolvedOp: resolved,
		Fee:        w.Fee,
		FeeToken:   w.Token,
	}, nil
}
