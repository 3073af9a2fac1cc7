package model

import "github.com/dagrollup/rollupcore/domain/rollup/model/externalapi"

// AnchorChainClient is the narrow surface ChainSubmitter needs from the
// anchor chain: send a signed payload, check on a previously sent hash,
// and read the chain's current height. Backed in production by
// domain/ethsender/anchorchain.
type AnchorChainClient interface {
	// CurrentBlockNumber returns the anchor chain's current height.
	CurrentBlockNumber() (uint64, error)

	// SuggestGasPrice returns the anchor chain's current suggested gas
	// price, used as the adjuster's floor.
	SuggestGasPrice() (externalapi.Amount, error)

	// Send broadcasts a signed transaction and returns its hash. A
	// transport failure here is logged and treated as "sent" per
	// spec.md §4.7 step 2: the tx is resent as stuck if it never lands.
	Send(signedTx []byte) (externalapi.Hash, error)

	// Status reports what the anchor chain currently knows about hash.
	Status(hash externalapi.Hash) (TxStatus, uint64, error)
}

// TxStatus is the three-way outcome an anchor-chain lookup can report for
// a previously sent hash (spec.md §4.7 step 3's status column).
type TxStatus uint8

const (
	// TxStatusUnknown means the anchor chain has no record of the hash,
	// e.g. it was dropped from the mempool or never relayed.
	TxStatusUnknown TxStatus = iota
	// TxStatusSuccess means the hash was included and executed without
	// reverting.
	TxStatusSuccess
	// TxStatusFailure means the hash was included but reverted.
	TxStatusFailure
)

// AnchorChainSigner signs a submitter row's raw payload under the given
// nonce, gas price and limit, producing a transport-ready transaction.
type AnchorChainSigner interface {
	Sign(nonce uint64, gasPrice externalapi.Amount, gasLimit uint64, payload []byte) ([]byte, error)
}

// ChainSubmitter orders, signs, persists, sends, monitors and re-prices
// anchor-chain transactions for aggregated Commit/Prove/Execute actions
// (spec.md §4.7).
type ChainSubmitter interface {
	// Enqueue durably records a brand-new aggregated action and admits it
	// to the FIFO queue; op.SentHashes must be empty.
	Enqueue(op *externalapi.SubmitterOperation) error

	// Step runs one iteration of the main loop: load new work, initialize
	// queue entries up to the in-flight bound, and poll every in-flight
	// row once. Returns the number of rows that newly confirmed.
	Step() (confirmed int, err error)
}
