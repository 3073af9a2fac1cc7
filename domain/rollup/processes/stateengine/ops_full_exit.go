package stateengine

import (
	"github.com/dagrollup/rollupcore/domain/rollup/model"
	"github.com/dagrollup/rollupcore/domain/rollup/model/externalapi"
)

// applyFullExit implements spec.md §4.2 FullExit: a priority operation,
// moving the account's full balance of Token out. WithdrawAmount is
// resolved from live state (zero if the account or token balance does not
// exist, matching the anchor chain's own "account id present" guard).
func (e *Engine) applyFullExit(fx *externalapi.FullExit) *model.OpSuccess {
	acc := e.accounts.Get(fx.AccountId)
	if acc == nil {
		fx.WithdrawAmount = externalapi.ZeroAmount()
		resolved := &externalapi.Operation{Kind: externalapi.OpFullExit, FullExit: fx}
		return &model.OpSuccess{ResolvedOp: resolved, IsPriority: true}
	}

	balance := acc.BalanceOf(fx.Token)
	fx.WithdrawAmount = balance
	fx.OwnerAddress = acc.Address

	var updates []*externalapi.AccountUpdate
	if !balance.IsZero() {
		acc.SetBalance(fx.Token, externalapi.ZeroAmount())
		e.accounts.Put(acc)
		updates = []*externalapi.AccountUpdate{{
			AccountId: acc.Id,
			Kind:      externalapi.UpdateBalance,
			Balance: &externalapi.BalanceUpdate{
				Token:      fx.Token,
				OldBalance: balance,
				NewBalance: externalapi.ZeroAmount(),
				OldNonce:   acc.Nonce,
				NewNonce:   acc.Nonce,
			},
		}}
	}

	resolved := &externalapi.Operation{Kind: externalapi.OpFullExit, FullExit: fx}
	return &model.OpSuccess{Updates: updates, ResolvedOp: resolved, IsPriority: true}
}
