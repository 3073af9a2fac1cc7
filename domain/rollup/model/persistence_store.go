package model

import "github.com/dagrollup/rollupcore/domain/rollup/model/externalapi"

// ExecutedTransaction is one append-only row in the executed_transactions
// table (spec.md §4.6, §6).
type ExecutedTransaction struct {
	BlockNumber uint32
	BlockIndex  uint32
	TxHash      externalapi.Hash
	Success     bool
	FailReason  string
	RawPayload  []byte
}

// ExecutedPriorityOperation is one append-only row in the
// executed_priority_operations table.
type ExecutedPriorityOperation struct {
	BlockNumber  uint32
	PriorityOpId uint64
	RawPayload   []byte
}

// PersistenceStore is the narrow transactional interface every other
// component uses to persist and reload durable state (spec.md §4.6).
// Every method either commits one unit of work as a whole or fails
// entirely; partial writes are never observable (spec.md §5).
type PersistenceStore interface {
	// Blocks
	SaveBlock(block *externalapi.Block, updates []*externalapi.AccountUpdate,
		executedTxs []ExecutedTransaction, executedPriority []ExecutedPriorityOperation) error
	LoadBlock(blockNumber uint32) (*externalapi.Block, error)
	BlockRange(maxBlock uint32, limit int) ([]*externalapi.Block, error)
	LastCommitted() (uint32, error)
	LastProved() (uint32, error)
	LastExecutedConfirmed() (uint32, error)
	RemoveAfter(blockNumber uint32) error

	// Pending block
	SavePendingBlock(pending *externalapi.PendingBlock) error
	LoadPendingBlock() (*externalapi.PendingBlock, error)
	PendingBlockExists() (bool, error)
	RemovePendingBlock() error

	// Account state
	LoadCommittedState() (map[externalapi.AccountId]*externalapi.Account, error)
	LoadStateAt(blockNumber uint32) (map[externalapi.AccountId]*externalapi.Account, error)

	// Tree cache
	SaveTreeCache(blockNumber uint32, serializedCache []byte) error
	LoadTreeCache(blockNumber uint32) ([]byte, error)

	// Submitter state
	// NextSubmitterOperationId returns the id the caller must assign to
	// the next SubmitterOperation it builds, one greater than the
	// highest id ever saved (confirmed or not) across every kind, so a
	// fresh row never collides with one already confirmed and therefore
	// absent from LoadUnconfirmedSubmitterOperations.
	NextSubmitterOperationId() (externalapi.SubmitterOperationId, error)
	SaveSubmitterOperation(op *externalapi.SubmitterOperation) error
	LoadSubmitterOperation(id externalapi.SubmitterOperationId) (*externalapi.SubmitterOperation, error)
	LoadUnconfirmedSubmitterOperations() ([]*externalapi.SubmitterOperation, error)
	AppendSentHash(id externalapi.SubmitterOperationId, hash externalapi.Hash) error
	ConfirmSubmitterOperation(id externalapi.SubmitterOperationId, finalHash externalapi.Hash) error

	// Event cursor
	SaveEventCursor(blockNumber uint64) error
	LoadEventCursor() (uint64, error)
}
