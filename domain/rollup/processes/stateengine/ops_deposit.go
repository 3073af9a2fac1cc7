package stateengine

import (
	"github.com/dagrollup/rollupcore/domain/rollup/model"
	"github.com/dagrollup/rollupcore/domain/rollup/model/externalapi"
)

// applyDeposit implements spec.md §4.2 Deposit: a priority operation,
// always successful, crediting ToAddress and allocating a fresh AccountId
// on first appearance.
func (e *Engine) applyDeposit(d *externalapi.Deposit) *model.OpSuccess {
	to := e.accounts.ByAddress(d.ToAddress)
	updates := make([]*externalapi.AccountUpdate, 0, 2)

	if to == nil {
		to = e.accounts.AllocateNew(d.ToAddress)
		updates = append(updates, &externalapi.AccountUpdate{
			AccountId: to.Id,
			Kind:      externalapi.UpdateCreate,
			Create:    &externalapi.CreateUpdate{Address: to.Address, Nonce: to.Nonce},
		})
	}
	d.ToAccountId = to.Id

	oldBalance := to.BalanceOf(d.Token)
	newBalance := oldBalance.Add(d.Amount)
	to.SetBalance(d.Token, newBalance)
	e.accounts.Put(to)
	updates = append(updates, &externalapi.AccountUpdate{
		AccountId: to.Id,
		Kind:      externalapi.UpdateBalance,
		Balance: &externalapi.BalanceUpdate{
			Token:      d.Token,
			OldBalance: oldBalance,
			NewBalance: newBalance,
			OldNonce:   to.Nonce,
			NewNonce:   to.Nonce,
		},
	})

	resolved := &externalapi.Operation{Kind: externalapi.OpDeposit, Deposit: d}
	return &model.OpSuccess{Updates: updates, ResolvedOp: resolved, IsPriority: true}
}
