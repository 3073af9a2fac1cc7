// Package dbaccess holds the gorm row models for every table spec.md §6's
// "Persisted state layout" names, plus the narrow per-table query helpers
// infrastructure/db/storage composes into model.PersistenceStore.
//
// Grounding gap: the retrieval pack's apiserver/controllers/transaction.go
// and apiserver/main.go show gorm query style and gorm+mysql+golang-migrate
// wiring, but the pack does not carry the apiserver's own model-definition
// file (apiserver/models is referenced by import but absent from the pack).
// The struct shapes below are therefore original, built directly from
// spec.md §6's table list using the same gorm v1 struct-tag idiom the
// present call sites assume (`gorm:"primary_key"`, `gorm:"column:..."`,
// `gorm:"unique_index"`), not copied from any single teacher file. This is
// recorded in DESIGN.md per the standard-library/ungrounded-choice rule.
package dbaccess

import "time"

// Block is one row of the blocks table: a sealed block (spec.md §3, §6).
type Block struct {
	BlockNumber    uint32 `gorm:"primary_key;column:block_number"`
	PreviousRoot   []byte `gorm:"column:previous_root;type:binary(32)"`
	NewRoot        []byte `gorm:"column:new_root;type:binary(32)"`
	FeeAccountId   uint32 `gorm:"column:fee_account_id"`
	Operations     []byte `gorm:"column:operations;type:mediumblob"`
	PriorOpsBefore uint64 `gorm:"column:prior_ops_before"`
	PriorOpsAfter  uint64 `gorm:"column:prior_ops_after"`
	ChunkSize      uint32 `gorm:"column:chunk_size"`
	Timestamp      time.Time
	CommitmentHash []byte `gorm:"column:commitment_hash;type:binary(32)"`
}

func (Block) TableName() string { return "blocks" }

// PendingBlock is the singleton row of the pending_block table (spec.md
// §3: "A single instance exists at a time"). ID is pinned to
// singletonRowID by every read/write in storage.go.
type PendingBlock struct {
	ID              uint8  `gorm:"primary_key;column:id"`
	PreviousRoot    []byte `gorm:"column:previous_root;type:binary(32)"`
	Operations      []byte `gorm:"column:operations;type:mediumblob"`
	ChunksUsed      uint32 `gorm:"column:chunks_used"`
	ChunksRemaining uint32 `gorm:"column:chunks_remaining"`
	IterationCount  uint32 `gorm:"column:iteration_count"`
	CreatedAt       time.Time
	PriorOpsBefore  uint64 `gorm:"column:prior_ops_before"`
	PriorOpsAfter   uint64 `gorm:"column:prior_ops_after"`
}

func (PendingBlock) TableName() string { return "pending_block" }

// ExecutedTransaction is one append-only row of the executed_transactions
// table (spec.md §4.6).
type ExecutedTransaction struct {
	ID          uint64 `gorm:"primary_key;column:id"`
	BlockNumber uint32 `gorm:"column:block_number;index"`
	BlockIndex  uint32 `gorm:"column:block_index"`
	TxHash      []byte `gorm:"column:tx_hash;type:binary(32);unique_index"`
	Success     bool   `gorm:"column:success"`
	FailReason  string `gorm:"column:fail_reason"`
	RawPayload  []byte `gorm:"column:raw_payload;type:mediumblob"`
}

func (ExecutedTransaction) TableName() string { return "executed_transactions" }

// ExecutedPriorityOperation is one append-only row of the
// executed_priority_operations table.
type ExecutedPriorityOperation struct {
	ID           uint64 `gorm:"primary_key;column:id"`
	BlockNumber  uint32 `gorm:"column:block_number;index"`
	PriorityOpId uint64 `gorm:"column:priority_op_id;unique_index"`
	RawPayload   []byte `gorm:"column:raw_payload;type:mediumblob"`
}

func (ExecutedPriorityOperation) TableName() string { return "executed_priority_operations" }

// AccountUpdate is one immutable journal row of the account_updates table,
// keyed by (account_id, block_number, sub_index) (spec.md §3). Payload
// carries whichever of the externalapi.AccountUpdate's typed variants Kind
// selects, gob-encoded by storage.go -- the row itself stays schema-stable
// as the set of update kinds grows.
type AccountUpdate struct {
	ID          uint64 `gorm:"primary_key;column:id"`
	AccountId   uint32 `gorm:"column:account_id;index"`
	BlockNumber uint32 `gorm:"column:block_number;index"`
	SubIndex    uint32 `gorm:"column:sub_index"`
	Kind        uint8  `gorm:"column:kind"`
	Payload     []byte `gorm:"column:payload;type:blob"`
}

func (AccountUpdate) TableName() string { return "account_updates" }

// AccountTreeCache is one row of the account_tree_cache table: a
// serialized Merkle tree snapshot at a given block, letting a restart
// resume without replaying from genesis (spec.md §4.4).
type AccountTreeCache struct {
	BlockNumber uint32 `gorm:"primary_key;column:block_number"`
	Cache       []byte `gorm:"column:cache;type:mediumblob"`
}

func (AccountTreeCache) TableName() string { return "account_tree_cache" }

// AggregateOperation is one row of the aggregate_operations table: a
// logical Commit/Prove/Execute action over a block range, independent of
// how many anchor-chain transactions it takes to land (spec.md §4.7).
type AggregateOperation struct {
	ID        uint64 `gorm:"primary_key;column:id"`
	Kind      uint8  `gorm:"column:kind"`
	FromBlock uint32 `gorm:"column:from_block"`
	ToBlock   uint32 `gorm:"column:to_block;index"`
	Payload   []byte `gorm:"column:payload;type:mediumblob"`
}

func (AggregateOperation) TableName() string { return "aggregate_operations" }

// EthOperation is one row of the eth_operations table: the submitter-side
// state of an AggregateOperation's anchor-chain dispatch (nonce, last gas
// price, confirmation state). Named eth_operations/eth_op_hashes/
// eth_op_unprocessed after the anchor chain the submitter targets, the
// same naming the zksync lineage this component is grounded on uses.
type EthOperation struct {
	ID                   uint64 `gorm:"primary_key;column:id"`
	AggregateOperationId uint64 `gorm:"column:aggregate_operation_id;unique_index"`
	Nonce                uint64 `gorm:"column:nonce"`
	LastDeadlineBlock    uint64 `gorm:"column:last_deadline_block"`
	LastGasPrice         []byte `gorm:"column:last_gas_price;type:binary(32)"`
	Confirmed            bool   `gorm:"column:confirmed"`
	FinalHash            []byte `gorm:"column:final_hash;type:binary(32)"`
}

func (EthOperation) TableName() string { return "eth_operations" }

// EthOpHash is one append-only row of the eth_op_hashes table: one
// transaction hash submitted in pursuit of landing an EthOperation. An
// EthOperation accumulates one row per resend attempt (spec.md §3's
// SentHashes).
type EthOpHash struct {
	ID             uint64    `gorm:"primary_key;column:id"`
	EthOperationId uint64    `gorm:"column:eth_operation_id;index"`
	Hash           []byte    `gorm:"column:hash;type:binary(32)"`
	SentAt         time.Time `gorm:"column:sent_at"`
}

func (EthOpHash) TableName() string { return "eth_op_hashes" }

// EthOpUnprocessed is one row of the eth_op_unprocessed table: an
// AggregateOperation that has not yet been turned into an EthOperation
// dispatch attempt. ChainSubmitter's FIFO queue is seeded from this table
// on restart (spec.md §4.7).
type EthOpUnprocessed struct {
	AggregateOperationId uint64 `gorm:"primary_key;column:aggregate_operation_id"`
}

func (EthOpUnprocessed) TableName() string { return "eth_op_unprocessed" }

// EventCursor is the singleton row of the event_cursor table: the last
// anchor-chain block EventSource has fully processed, so a restart does
// not re-emit already-confirmed priority ops (spec.md §4.8).
type EventCursor struct {
	ID          uint8  `gorm:"primary_key;column:id"`
	BlockNumber uint64 `gorm:"column:block_number"`
}

func (EventCursor) TableName() string { return "event_cursor" }

// SingletonRowID is the fixed primary key of both PendingBlock and
// EventCursor, each of which has exactly one live row.
const SingletonRowID = 1
