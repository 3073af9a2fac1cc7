package stateengine

import (
	"github.com/dagrollup/rollupcore/domain/rollup/model"
	"github.com/dagrollup/rollupcore/domain/rollup/model/externalapi"
)

// applyTransfer implements spec.md §4.2 Transfer: sender exists, nonce
// matches, sender balance covers amount+fee, recipient exists.
func (e *Engine) applyTransfer(t *externalapi.Transfer) (*model.OpSuccess, error) {
	if err := e.checkMinFee(externalapi.OpTransfer, t.Fee); err != nil {
		return nil, err
	}

	from := e.accounts.Get(t.From)
	if from == nil {
		return nil, externalapi.UnknownAccount
	}
	if from.Nonce != t.Nonce {
		return nil, externalapi.NonceMismatch
	}
	to := e.accounts.Get(t.To)
	if to == nil {
		return nil, externalapi.UnknownAccount
	}

	debit := t.Amount.Add(t.Fee)
	fromBalance := from.BalanceOf(t.Token)
	if fromBalance.LessThan(debit) {
		return nil, externalapi.InsufficientBalance
	}

	updates := make([]*externalapi.AccountUpdate, 0, 2)

	newFromBalance := fromBalance.Sub(debit)
	oldNonce := from.Nonce
	from.SetBalance(t.Token, newFromBalance)
	from.Nonce++
	e.accounts.Put(from)
	updates = append(updates, &externalapi.AccountUpdate{
		AccountId: from.Id,
		Kind:      externalapi.UpdateBalance,
		Balance: &externalapi.BalanceUpdate{
			Token:      t.Token,
			OldBalance: fromBalance,
			NewBalance: newFromBalance,
			OldNonce:   oldNonce,
			NewNonce:   from.Nonce,
		},
	})

	toBalance := to.BalanceOf(t.Token)
	newToBalance := toBalance.Add(t.Amount)
	to.SetBalance(t.Token, newToBalance)
	e.accounts.Put(to)
	updates = append(updates, &externalapi.AccountUpdate{
		AccountId: to.Id,
		Kind:      externalapi.UpdateBalance,
		Balance: &externalapi.BalanceUpdate{
			Token:      t.Token,
			OldBalance: toBalance,
			NewBalance: newToBalance,
			OldNonce:   to.Nonce,
			NewNonce:   to.Nonce,
		},
	})

	return &model.OpSuccess{Updates: updates, Fee: t.Fee, FeeToken: t.Token}, nil
}

// applyTransferToNew implements spec.md §4.2 TransferToNew: identical to
// Transfer except the recipient is allocated fresh at NextFreeId, emitting
// a Create update ahead of the balance update.
func (e *Engine) applyTransferToNew(t *externalapi.TransferToNew) (*model.OpSuccess, error) {
	if err := e.checkMinFee(externalapi.OpTransferToNew, t.Fee); err != nil {
		return nil, err
	}

	from := e.accounts.Get(t.From)
	if from == nil {
		return nil, externalapi.UnknownAccount
	}
	if from.Nonce != t.Nonce {
		return nil, externalapi.NonceMismatch
	}

	debit := t.Amount.Add(t.Fee)
	fromBalance := from.BalanceOf(t.Token)
	if fromBalance.LessThan(debit) {
		return nil, externalapi.InsufficientBalance
	}

	to := e.accounts.AllocateNew(t.ToAddress)
	t.To = to.Id

	updates := make([]*externalapi.AccountUpdate, 0, 3)
	updates = append(updates, &externalapi.AccountUpdate{
		AccountId: to.Id,
		Kind:      externalapi.UpdateCreate,
		Create:    &externalapi.CreateUpdate{Address: to.Address, Nonce: to.Nonce},
	})

	newFromBalance := fromBalance.Sub(debit)
	oldNonce := from.Nonce
	from.SetBalance(t.Token, newFromBalance)
	from.Nonce++
	e.accounts.Put(from)
	updates = append(updates, &externalapi.AccountUpdate{
		AccountId: from.Id,
		Kind:      externalapi.UpdateBalance,
		Balance: &externalapi.BalanceUpdate{
			Token:      t.Token,
			OldBalance: fromBalance,
			NewBalance: newFromBalance,
			OldNonce:   oldNonce,
			NewNonce:   from.Nonce,
		},
	})

	toBalance := to.BalanceOf(t.Token)
	newToBalance := toBalance.Add(t.Amount)
	to.SetBalance(t.Token, newToBalance)
	e.accounts.Put(to)
	updates = append(updates, &externalapi.AccountUpdate{
		AccountId: to.Id,
		Kind:      externalapi.UpdateBalance,
		Balance: &externalapi.BalanceUpdate{
			Token:      t.Token,
			OldBalance: toBalance,
			NewBalance: newToBalance,
			OldNonce:   to.Nonce,
			NewNonce:   to.Nonce,
		},
	})

	resolved := &externalapi.Operation{Kind: externalapi.OpTransferToNew, TransferToNew: t}
	return &model.OpSuccess{Updates: updates, ResolvedOp: resolved, Fee: t.Fee, FeeToken: t.Token}, nil
}
