package stateengine

import (
	"github.com/dagrollup/rollupcore/domain/rollup/model"
	"github.com/dagrollup/rollupcore/domain/rollup/model/externalapi"
)

// applyChangePubKey implements spec.md §4.2 ChangePubKey: account exists,
// nonce matches, and the rotation is authorized either by the enclosing
// transaction's signature (already bound key, checked by the caller) or,
// when no key is bound yet, by the operation's own wallet signature over
// the account's address.
func (e *Engine) applyChangePubKey(cpk *externalapi.ChangePubKey, envelopeSignature []byte) (*model.OpSuccess, error) {
	if err := e.checkMinFee(externalapi.OpChangePubKey, cpk.Fee); err != nil {
		return nil, err
	}

	acc := e.accounts.Get(cpk.AccountId)
	if acc == nil {
		return nil, externalapi.UnknownAccount
	}
	if acc.Nonce != cpk.Nonce {
		return nil, externalapi.NonceMismatch
	}

	if acc.PubKeyHash.IsZero() {
		sig := cpk.Signature
		if len(sig) == 0 {
			sig = envelopeSignature
		}
		if len(sig) == 0 {
			return nil, externalapi.MissingSignature
		}
		if !e.verifier.Validate(acc.Address[:], sig, cpk.NewPubKeyHash) {
			return nil, externalapi.InvalidSignature
		}
	} else if len(cpk.Signature) > 0 && !e.verifier.Validate(acc.Address[:], cpk.Signature, acc.PubKeyHash) {
		return nil, externalapi.InvalidSignature
	}

	feeBalance := acc.BalanceOf(cpk.FeeToken)
	if !cpk.Fee.IsZero() && feeBalance.LessThan(cpk.Fee) {
		return nil, externalapi.InsufficientBalance
	}

	return e.rotatePubKey(acc, cpk, feeBalance)
}

// applyChangePubKeyUnchecked applies a ChangePubKey replayed from public
// data (domain/rollup/processes/stateengine/ops_restore.go). Public data
// carries no signature at all, so the binding signature check above is
// skipped entirely: the rotation already happened once, under a
// signature the anchor-chain commitment already attests to.
func (e *Engine) applyChangePubKeyUnchecked(cpk *externalapi.ChangePubKey) (*model.OpSuccess, error) {
	if err := e.checkMinFee(externalapi.OpChangePubKey, cpk.Fee); err != nil {
		return nil, err
	}

	acc := e.accounts.Get(cpk.AccountId)
	if acc == nil {
		return nil, externalapi.UnknownAccount
	}
	if acc.Nonce != cpk.Nonce {
		return nil, externalapi.NonceMismatch
	}

	feeBalance := acc.BalanceOf(cpk.FeeToken)
	if !cpk.Fee.IsZero() && feeBalance.LessThan(cpk.Fee) {
		return nil, externalapi.InsufficientBalance
	}

	return e.rotatePubKey(acc, cpk, feeBalance)
}

// rotatePubKey performs the mutation common to both ChangePubKey entry
// points once every check has passed.
func (e *Engine) rotatePubKey(acc *externalapi.Account, cpk *externalapi.ChangePubKey, feeBalance externalapi.Amount) (*model.OpSuccess, error) {
	updates := make([]*externalapi.AccountUpdate, 0, 2)

	oldHash := acc.PubKeyHash
	acc.PubKeyHash = cpk.NewPubKeyHash
	oldNonce := acc.Nonce
	acc.Nonce++
	updates = append(updates, &externalapi.AccountUpdate{
		AccountId: acc.Id,
		Kind:      externalapi.UpdateChangePubKeyHash,
		ChangePubKeyHash: &externalapi.ChangePubKeyHashUpdate{
			OldHash:  oldHash,
			NewHash:  cpk.NewPubKeyHash,
			OldNonce: oldNonce,
			NewNonce: acc.Nonce,
		},
	})

	if !cpk.Fee.IsZero() {
		newFeeBalance := feeBalance.Sub(cpk.Fee)
		acc.SetBalance(cpk.FeeToken, newFeeBalance)
		updates = append(updates, &externalapi.AccountUpdate{
			AccountId: acc.Id,
			Kind:      externalapi.UpdateBalance,
			Balance: &externalapi.BalanceUpdate{
				Token:      cpk.FeeToken,
				OldBalance: feeBalance,
				NewBalance: newFeeBalance,
				OldNonce:   acc.Nonce,
				NewNonce:   acc.Nonce,
			},
		})
	}
	e.accounts.Put(acc)

	return &model.OpSuccess{Updates: updates, Fee: cpk.Fee, FeeToken: cpk.FeeToken}, nil
}
