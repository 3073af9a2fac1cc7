package externalapi

import "time"

// Block is a sealed block (spec.md §3).
type Block struct {
	BlockNumber    uint32
	PreviousRoot   Hash
	NewRoot        Hash
	FeeAccountId   AccountId
	Operations     []*Operation
	PriorOpsBefore uint64
	PriorOpsAfter  uint64
	ChunkSize      uint32
	Timestamp      time.Time
	CommitmentHash Hash
}

// PendingBlock is an in-flight, unsealed block (spec.md §3). A single
// instance exists at a time; BlockBuilder owns its lifecycle.
type PendingBlock struct {
	PreviousRoot    Hash
	Operations      []*Operation
	ChunksUsed      uint32
	ChunksRemaining uint32
	IterationCount  uint32
	CreatedAt       time.Time
	PriorOpsBefore  uint64
	PriorOpsAfter   uint64
}

// NewPendingBlock creates a pending block sitting atop previousRoot with a
// full chunk budget.
func NewPendingBlock(previousRoot Hash, chunkBudget uint32, priorOpsBefore uint64, now time.Time) *PendingBlock {
	return &PendingBlock{
		PreviousRoot:    previousRoot,
		ChunksRemaining: chunkBudget,
		CreatedAt:       now,
		PriorOpsBefore:  priorOpsBefore,
		PriorOpsAfter:   priorOpsBefore,
	}
}
