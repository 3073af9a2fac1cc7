package model

import "github.com/dagrollup/rollupcore/domain/rollup/model/externalapi"

// PriorityOpEvent is one priority operation (Deposit or FullExit) the
// anchor chain recorded at a given block, as reported by an
// AnchorChainWatcher (spec.md §4.8). SourceTxHash+LogIndex identify the
// originating anchor-chain log uniquely, since two deposits to the same
// address and token in different transactions are otherwise
// indistinguishable from the Operation payload alone.
type PriorityOpEvent struct {
	BlockNumber  uint64
	SourceTxHash externalapi.Hash
	LogIndex     uint32
	Op           *externalapi.Operation
}

// ConfirmationEvent reports that a previously sent submitter transaction
// hash reached the confirmation depth the anchor chain watcher was asked
// to look for.
type ConfirmationEvent struct {
	SubmitterOperationId externalapi.SubmitterOperationId
	FinalHash            externalapi.Hash
}

// AnchorChainWatcher is the narrow read-only surface EventSource needs
// from the anchor chain: scanning a block range for priority-operation
// logs and confirmation receipts, and reading current height. Backed in
// production by domain/eventsource/anchorwatch.
type AnchorChainWatcher interface {
	CurrentBlockNumber() (uint64, error)
	PriorityOpsInRange(fromBlock, toBlock uint64) ([]PriorityOpEvent, error)
	ConfirmationsInRange(fromBlock, toBlock uint64) ([]ConfirmationEvent, error)
}

// EventSource observes the anchor chain for new priority operations and
// submitter-transaction confirmations, emitting each priority op at most
// once per restart cycle (spec.md §4.8, §5's task table: "Produces:
// priority ops, confirmations").
type EventSource interface {
	// Step runs one poll iteration. newOps holds every priority op that
	// newly cleared WaitConfirmations since the last call (across
	// restarts, since the last persisted cursor) -- these are ready for
	// BlockBuilder.AcceptPriority. confirmations holds any submitter-row
	// confirmations observed in the same scanned range, surfaced for the
	// app layer to log or reconcile; ChainSubmitter's own Step already
	// confirms rows independently by polling per-hash status, so this is
	// a secondary, eventually-consistent signal, not its source of truth.
	Step() (newOps []*externalapi.Operation, confirmations []ConfirmationEvent, err error)

	// UnconfirmedFor returns the priority ops currently observed for
	// address that have not yet cleared WaitConfirmations, for the
	// Mempool-adjacent API's unconfirmed_for query surfacing in-flight
	// deposits. Reorg-prone by nature: rebuilt fresh on every Step rather
	// than persisted.
	UnconfirmedFor(address externalapi.Address) []*externalapi.Operation
}
