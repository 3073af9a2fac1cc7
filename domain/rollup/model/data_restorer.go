package model

import (
	"time"

	"github.com/dagrollup/rollupcore/domain/rollup/model/externalapi"
)

// ChainLogRecord is one block's worth of on-chain public data, as sourced
// from anchor-chain logs (spec.md §4.5).
type ChainLogRecord struct {
	BlockNumber  uint32
	FeeAccountId externalapi.AccountId
	PublicData   []byte
	Timestamp    time.Time
	PreviousRoot externalapi.Hash
}

// ChainLogReader is the source DataRestorer drains, one record per call
// until it reports false. domain/eventsource.EventSource does not
// implement it; the datarestorer tests supply a slice-backed reader.
type ChainLogReader interface {
	NextRecord() (*ChainLogRecord, bool, error)
}

// DataRestorer reconstructs a MerkleTree and AccountUpdates log identical
// to the ones that would have existed at the tip, by replaying on-chain
// public data (spec.md §4.5).
type DataRestorer interface {
	// RestoreFrom replays every record from reader in order. Returns a
	// fatal *externalapi.RootMismatch if any block's recomputed root
	// diverges from the on-chain recorded root.
	RestoreFrom(reader ChainLogReader) error

	// RootHash returns the tree's current root after however many
	// records have been replayed so far.
	RootHash() externalapi.Hash
}
