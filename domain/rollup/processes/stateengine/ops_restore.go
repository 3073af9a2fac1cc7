package stateengine

import (
	"github.com/dagrollup/rollupcore/domain/rollup/model"
	"github.com/dagrollup/rollupcore/domain/rollup/model/externalapi"
)

// liveNonce returns id's current nonce, or 0 if the account does not
// exist. Used by ApplyRestored to fill in the nonce field public data
// omits for fields a wallet signature already committed to once, on
// chain, at the time the operation was first accepted.
func (e *Engine) liveNonce(id externalapi.AccountId) uint32 {
	if acc := e.accounts.Get(id); acc != nil {
		return acc.Nonce
	}
	return 0
}

// ApplyRestored applies a decoded public-data operation during replay
// (spec.md §4.5). Unlike ApplyTx, no envelope or ChangePubKey signature is
// checked: the operation already reached the chain once under a
// signature that isn't present in public data, so the restorer trusts it
// and fills in the nonce public data omits from live account state before
// dispatching to the same per-kind balance/nonce handlers ApplyTx uses.
func (e *Engine) ApplyRestored(op *externalapi.Operation) (*model.OpSuccess, error) {
	switch op.Kind {
	case externalapi.OpTransfer:
		op.Transfer.Nonce = e.liveNonce(op.Transfer.From)
		return e.applyTransfer(op.Transfer)
	case externalapi.OpTransferToNew:
		op.TransferToNew.Nonce = e.liveNonce(op.TransferToNew.From)
		return e.applyTransferToNew(op.TransferToNew)
	case externalapi.OpWithdraw:
		op.Withdraw.Nonce = e.liveNonce(op.Withdraw.AccountId)
		return e.applyWithdraw(op.Withdraw)
	case externalapi.OpForcedExit:
		op.ForcedExit.Nonce = e.liveNonce(op.ForcedExit.InitiatorId)
		return e.applyForcedExit(op.ForcedExit)
	case externalapi.OpChangePubKey:
		op.ChangePubKey.Nonce = e.liveNonce(op.ChangePubKey.AccountId)
		return e.applyChangePubKeyUnchecked(op.ChangePubKey)
	case externalapi.OpSwap:
		op.Swap.Nonce = e.liveNonce(op.Swap.SubmitterId)
		return e.applySwap(op.Swap)
	case externalapi.OpMintNFT:
		op.MintNFT.Nonce = e.liveNonce(op.MintNFT.CreatorId)
		return e.applyMintNFT(op.MintNFT)
	case externalapi.OpWithdrawNFT:
		op.WithdrawNFT.Nonce = e.liveNonce(op.WithdrawNFT.AccountId)
		return e.applyWithdrawNFT(op.WithdrawNFT)
	case externalapi.OpNoop:
		return &model.OpSuccess{}, nil
	default:
		log.Criticalf("ApplyRestored called with non-replayable operation kind %s", op.Kind)
		panic("stateengine: ApplyRestored called with non-replayable operation kind " + op.Kind.String())
	}
}
