package stateengine

import (
	"github.com/dagrollup/rollupcore/domain/rollup/model"
	"github.com/dagrollup/rollupcore/domain/rollup/model/externalapi"
)

// applySwap implements spec.md §4.2 Swap: both orders must validate
// (their owning accounts exist and hold sufficient balance for their sell
// leg) and the submitter's nonce must match. Both legs' transfers execute
// atomically and a single fee is collected from the submitter.
func (e *Engine) applySwap(s *externalapi.Swap) (*model.OpSuccess, error) {
	if err := e.checkMinFee(externalapi.OpSwap, s.Fee); err != nil {
		return nil, err
	}

	submitter := e.accounts.Get(s.SubmitterId)
	if submitter == nil {
		return nil, externalapi.UnknownAccount
	}
	if submitter.Nonce != s.Nonce {
		return nil, externalapi.NonceMismatch
	}

	partyA := e.accounts.Get(s.OrderA.AccountId)
	if partyA == nil {
		return nil, externalapi.UnknownAccount
	}
	recipientA := e.accounts.Get(s.OrderA.RecipientId)
	if recipientA == nil {
		return nil, externalapi.UnknownAccount
	}
	partyB := e.accounts.Get(s.OrderB.AccountId)
	if partyB == nil {
		return nil, externalapi.UnknownAccount
	}
	recipientB := e.accounts.Get(s.OrderB.RecipientId)
	if recipientB == nil {
		return nil, externalapi.UnknownAccount
	}

	balanceA := partyA.BalanceOf(s.OrderA.TokenSell)
	if balanceA.LessThan(s.AmountA) {
		return nil, externalapi.InsufficientBalance
	}
	balanceB := partyB.BalanceOf(s.OrderB.TokenSell)
	if balanceB.LessThan(s.AmountB) {
		return nil, externalapi.InsufficientBalance
	}
	if submitter.BalanceOf(s.FeeToken).LessThan(s.Fee) {
		return nil, externalapi.InsufficientBalance
	}

	updates := make([]*externalapi.AccountUpdate, 0, 5)

	debitA := balanceA.Sub(s.AmountA)
	partyA.SetBalance(s.OrderA.TokenSell, debitA)
	updates = append(updates, &externalapi.AccountUpdate{
		AccountId: partyA.Id,
		Kind:      externalapi.UpdateBalance,
		Balance: &externalapi.BalanceUpdate{
			Token: s.OrderA.TokenSell, OldBalance: balanceA, NewBalance: debitA,
			OldNonce: partyA.Nonce, NewNonce: partyA.Nonce,
		},
	})
	e.accounts.Put(partyA)

	creditB := recipientB.BalanceOf(s.OrderA.TokenSell)
	newCreditB := creditB.Add(s.AmountA)
	recipientB.SetBalance(s.OrderA.TokenSell, newCreditB)
	updates = append(updates, &externalapi.AccountUpdate{
		AccountId: recipientB.Id,
		Kind:      externalapi.UpdateBalance,
		Balance: &externalapi.BalanceUpdate{
			Token: s.OrderA.TokenSell, OldBalance: creditB, NewBalance: newCreditB,
			OldNonce: recipientB.Nonce, NewNonce: recipientB.Nonce,
		},
	})
	e.accounts.Put(recipientB)

	debitB := balanceB.Sub(s.AmountB)
	partyB.SetBalance(s.OrderB.TokenSell, debitB)
	updates = append(updates, &externalapi.AccountUpdate{
		AccountId: partyB.Id,
		Kind:      externalapi.UpdateBalance,
		Balance: &externalapi.BalanceUpdate{
			Token: s.OrderB.TokenSell, OldBalance: balanceB, NewBalance: debitB,
			OldNonce: partyB.Nonce, NewNonce: partyB.Nonce,
		},
	})
	e.accounts.Put(partyB)

	creditA := recipientA.BalanceOf(s.OrderB.TokenSell)
	newCreditA := creditA.Add(s.AmountB)
	recipientA.SetBalance(s.OrderB.TokenSell, newCreditA)
	updates = append(updates, &externalapi.AccountUpdate{
		AccountId: recipientA.Id,
		Kind:      externalapi.UpdateBalance,
		Balance: &externalapi.BalanceUpdate{
			Token: s.OrderB.TokenSell, OldBalance: creditA, NewBalance: newCreditA,
			OldNonce: recipientA.Nonce, NewNonce: recipientA.Nonce,
		},
	})
	e.accounts.Put(recipientA)

	submitterFeeBalance := submitter.BalanceOf(s.FeeToken)
	newSubmitterFeeBalance := submitterFeeBalance.Sub(s.Fee)
	oldNonce := submitter.Nonce
	submitter.SetBalance(s.FeeToken, newSubmitterFeeBalance)
	submitter.Nonce++
	e.accounts.Put(submitter)
	updates = append(updates, &externalapi.AccountUpdate{
		AccountId: submitter.Id,
		Kind:      externalapi.UpdateBalance,
		Balance: &externalapi.BalanceUpdate{
			Token: s.FeeToken, OldBalance: submitterFeeBalance, NewBalance: newSubmitterFeeBalance,
			OldNonce: oldNonce, NewNonce: submitter.Nonce,
		},
	})

	return &model.OpSuccess{Updates: updates, Fee: s.Fee, FeeToken: s.FeeToken}, nil
}
