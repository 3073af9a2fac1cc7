package model

import "github.com/dagrollup/rollupcore/domain/rollup/model/externalapi"

// ProposalSource is drained by BlockBuilder to get the next wallet
// transaction to try to include; backed in production by
// domain/txpool/mempool.
type ProposalSource interface {
	NextForBlock() (*externalapi.Tx, bool)
}

// PriorityApplier asks the StateEngine to turn a priority operation into
// account updates, kept separate from StateEngine in BlockBuilder's own
// dependency list so unit tests can stub it narrowly.
type PriorityApplier interface {
	ApplyPriority(op *externalapi.Operation) *OpSuccess
}

// BlockBuilder turns a stream of accepted operations into a sealed Block
// plus the AccountUpdates it produced (spec.md §4.4).
type BlockBuilder interface {
	// AcceptTx tries to append a wallet transaction to the pending block.
	// Returns the sealed block if accepting tx would have overflowed the
	// chunk budget and the pending block was sealed first.
	AcceptTx(tx *externalapi.Tx) (sealed *externalapi.Block, updates []*externalapi.AccountUpdate, err error)

	// AcceptPriority appends a priority operation, always succeeding per
	// spec.md §4.2 ("must not fail once accepted on chain").
	AcceptPriority(op *externalapi.Operation) (sealed *externalapi.Block, updates []*externalapi.AccountUpdate)

	// Tick advances the pending block's iteration counter, sealing it if
	// the configured iteration bound is hit (spec.md §4.4 sealing policy b).
	Tick() (sealed *externalapi.Block, updates []*externalapi.AccountUpdate)

	// Flush seals the pending block immediately regardless of its chunk
	// or iteration budget (spec.md §4.4 sealing policy c), used for fast
	// withdrawals. Returns ok=false if there is no pending block.
	Flush() (sealed *externalapi.Block, updates []*externalapi.AccountUpdate, ok bool)

	// Pending returns a snapshot of the current pending block, or nil if
	// none exists.
	Pending() *externalapi.PendingBlock
}
