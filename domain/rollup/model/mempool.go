package model

import (
	"time"

	"github.com/dagrollup/rollupcore/domain/rollup/model/externalapi"
)

// ReconcileKind classifies how a previously-selected transaction fared
// once BlockBuilder tried to seal it into a block (spec.md §4.3).
type ReconcileKind uint8

const (
	// Included means the tx made it into a sealed block.
	Included ReconcileKind = iota
	// ValidButNotIncluded means the tx is still valid but the block
	// sealed without it (e.g. a chunk-overflow seal cut it off).
	ValidButNotIncluded
	// TemporaryRejected means apply_tx failed with a typed error that
	// might clear on retry (e.g. InsufficientBalance before a pending
	// deposit lands).
	TemporaryRejected
	// RejectedCompletely means the tx can never succeed (e.g.
	// UnderpricedReplacement's loser, an unrecoverable nonce conflict).
	RejectedCompletely
)

// ReconcileOutcome reports one transaction's fate back to the mempool
// after a block-build attempt (spec.md §4.3 reconcile contract).
type ReconcileOutcome struct {
	Hash externalapi.Hash
	Kind ReconcileKind
}

// Mempool orders signed wallet transactions for BlockBuilder to drain
// (spec.md §4.3). Insert and Reconcile return/accept only the typed
// errors spec.md §7 names for the mempool; no inner detail is surfaced
// beyond them.
type Mempool interface {
	ProposalSource

	// Insert adds tx to its per-account queue, replacing an existing
	// same-nonce entry only if tx's fee strictly exceeds it. lifetime is
	// the envelope's eviction lifetime (spec.md §4.3's default is one
	// hour; callers may override per insert).
	Insert(tx *externalapi.Tx, lifetime time.Duration) error

	// Reconcile applies the outcome of a block-build attempt to every
	// named transaction and then runs an order_and_clear pass over every
	// queue the outcomes touched, evicting expired envelopes and
	// recomputing next_nonce_without_gaps.
	Reconcile(outcomes []ReconcileOutcome, blockSealed bool)

	// Size returns the total number of transactions currently queued
	// across every account.
	Size() int
}
