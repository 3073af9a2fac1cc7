package stateengine

import (
	"github.com/dagrollup/rollupcore/domain/rollup/model"
	"github.com/dagrollup/rollupcore/domain/rollup/model/externalapi"
)

// applyForcedExit implements spec.md §4.2 ForcedExit: initiator exists and
// its nonce matches, the target has never transacted (nonce zero) and
// holds a non-zero balance of Token. Drains the target's balance
// externally and bumps only the initiator's nonce; the fee is charged to
// the initiator.
func (e *Engine) applyForcedExit(fe *externalapi.ForcedExit) (*model.OpSuccess, error) {
	if err := e.checkMinFee(externalapi.OpForcedExit, fe.Fee); err != nil {
		return nil, err
	}

	initiator := e.accounts.Get(fe.InitiatorId)
	if initiator == nil {
		return nil, externalapi.UnknownAccount
	}
	if initiator.Nonce != fe.Nonce {
		return nil, externalapi.NonceMismatch
	}

	target := e.accounts.Get(fe.Target)
	if target == nil {
		return nil, externalapi.UnknownAccount
	}
	if target.Nonce != 0 {
		return nil, externalapi.NonceMismatch
	}
	targetBalance := target.BalanceOf(fe.Token)
	if targetBalance.IsZero() {
		return nil, externalapi.InsufficientBalance
	}

	initiatorBalance := initiator.BalanceOf(fe.Token)
	if initiatorBalance.LessThan(fe.Fee) {
		return nil, externalapi.InsufficientBalance
	}

	updates := make([]*externalapi.AccountUpdate, 0, 2)

	target.SetBalance(fe.Token, externalapi.ZeroAmount())
	e.accounts.Put(target)
	updates = append(updates, &externalapi.AccountUpdate{
		AccountId: target.Id,
		Kind:      externalapi.UpdateBalance,
		Balance: &externalapi.BalanceUpdate{
			Token:      fe.Token,
			OldBalance: targetBalance,
			NewBalance: externalapi.ZeroAmount(),
			OldNonce:   target.Nonce,
			NewNonce:   target.Nonce,
		},
	})

	newInitiatorBalance := initiatorBalance.Sub(fe.Fee)
	oldNonce := initiator.Nonce
	initiator.SetBalance(fe.Token, newInitiatorBalance)
	initiator.Nonce++
	e.accounts.Put(initiator)
	updates = append(updates, &externalapi.AccountUpdate{
		AccountId: initiator.Id,
		Kind:      externalapi.UpdateBalance,
		Balance: &externalapi.BalanceUpdate{
			Token:      fe.Token,
			OldBalance: initiatorBalance,
			NewBalance: newInitiatorBalance,
			OldNonce:   oldNonce,
			NewNonce:   initiator.Nonce,
		},
	})

	return &model.OpSuccess{Updates: updates, Fee: fe.Fee, FeeToken: fe.Token}, nil
}
