package model

import "github.com/dagrollup/rollupcore/domain/rollup/model/externalapi"

// OpSuccess is the result of successfully applying one operation: the
// journal entries it produced and, for priority operations, the resolved
// fields the caller (BlockBuilder, DataRestorer) needs to fill into the
// sealed block's operation list (e.g. a Deposit's allocated AccountId).
type OpSuccess struct {
	Updates    []*externalapi.AccountUpdate
	ResolvedOp *externalapi.Operation
	Fee        externalapi.Amount
	FeeToken   externalapi.TokenId
	IsPriority bool
}

// StateEngine applies typed operations against a MerkleTree-backed account
// map, enforcing the balance/nonce/signature invariants of spec.md §4.2.
type StateEngine interface {
	// ApplyTx applies one wallet transaction atomically. On failure no
	// state change is observable.
	ApplyTx(tx *externalapi.Tx) (*OpSuccess, error)

	// ApplyPriority applies one priority operation (Deposit, FullExit).
	// Priority operations are assumed pre-validated by the anchor chain;
	// any internal failure here is a fatal invariant violation, not a
	// typed error.
	ApplyPriority(op *externalapi.Operation) *OpSuccess

	// ApplyBatch applies txs in order, all-or-nothing: on the first
	// failure at 1-based index k, every prior success in this batch is
	// reversed (LIFO) before returning.
	ApplyBatch(txs []*externalapi.Tx) ([]*OpSuccess, error)

	// CollectFee adds each non-zero fee to the fee account's balance for
	// its token, emitting one UpdateBalance per non-zero fee and leaving
	// the fee account's nonce unchanged.
	CollectFee(fees []Fee, feeAccountId externalapi.AccountId) []*externalapi.AccountUpdate

	// RootHash returns the current account map's Merkle root.
	RootHash() externalapi.Hash
}

// Fee is one (token, amount) pair accumulated while applying a block's
// operations, passed to CollectFee once at seal time.
type Fee struct {
	Token  externalapi.TokenId
	Amount externalapi.Amount
}
