// Package aggregator folds a contiguous run of sealed blocks into the
// anchor-chain-bound SubmitterOperation rows spec.md §4.7 describes
// (Commit/Prove/Execute), and decides when a new row is due by comparing
// PersistenceStore's LastCommitted/LastProved/LastExecutedConfirmed
// watermarks against the chain tip. Grounded on the teacher's
// difficultymanager-style "derive the next step from persisted state,
// don't track it separately" shape
// (domain/consensus/processes/difficultymanager).
package aggregator

import (
	"github.com/pkg/errors"

	"github.com/dagrollup/rollupcore/domain/rollup/model"
	"github.com/dagrollup/rollupcore/domain/rollup/model/externalapi"
)

// BuildPayload concatenates the commitment hash of every block in
// [fromBlock, toBlock] in order. The proving circuit's actual witness data
// is out of scope (spec.md §1); this is the simplest payload that still
// ties a submitter row to the exact block range it covers, and is
// sufficient framing once anchorchain.EncodeCall wraps it with the
// range header the anchor contract's method signature needs.
func BuildPayload(store model.PersistenceStore, fromBlock, toBlock uint32) ([]byte, error) {
	if toBlock < fromBlock {
		return nil, errors.Errorf("aggregator: toBlock %d before fromBlock %d", toBlock, fromBlock)
	}
	payload := make([]byte, 0, (int(toBlock-fromBlock)+1)*externalapi.HashSize)
	for n := fromBlock; n <= toBlock; n++ {
		block, err := store.LoadBlock(n)
		if err != nil {
			return nil, errors.Wrapf(err, "aggregator: loading block %d", n)
		}
		payload = append(payload, block.CommitmentHash[:]...)
	}
	return payload, nil
}

// NextDue inspects store's watermarks and the chain's currently sealed
// tip, returning the next SubmitterOperation that should be built and
// enqueued, in Commit-before-Prove-before-Execute priority order (spec.md
// §4.7's "Commit before Prove for the same block before Execute"), or nil
// if nothing is due.
//
// sealedTip is the highest block_number BlockBuilder has sealed and
// persisted so far; a block only becomes eligible for Commit once it is
// durably saved.
func NextDue(store model.PersistenceStore, sealedTip uint32) (*externalapi.SubmitterOperation, error) {
	lastCommitted, err := store.LastCommitted()
	if err != nil {
		return nil, errors.Wrapf(err, "aggregator: reading last committed")
	}
	if sealedTip > lastCommitted {
		return buildOp(store, externalapi.SubmitCommit, lastCommitted, sealedTip)
	}

	lastProved, err := store.LastProved()
	if err != nil {
		return nil, errors.Wrapf(err, "aggregator: reading last proved")
	}
	if lastCommitted > lastProved {
		return buildOp(store, externalapi.SubmitProve, lastProved, lastCommitted)
	}

	lastExecuted, err := store.LastExecutedConfirmed()
	if err != nil {
		return nil, errors.Wrapf(err, "aggregator: reading last executed")
	}
	if lastProved > lastExecuted {
		return buildOp(store, externalapi.SubmitExecute, lastExecuted, lastProved)
	}

	return nil, nil
}

// buildOp constructs the row covering (watermark, tip], the first block
// not yet folded through the prior block already covered.
func buildOp(store model.PersistenceStore, kind externalapi.SubmitterOperationKind, watermark, tip uint32) (*externalapi.SubmitterOperation, error) {
	fromBlock := watermark + 1
	payload, err := BuildPayload(store, fromBlock, tip)
	if err != nil {
		return nil, err
	}
	id, err := store.NextSubmitterOperationId()
	if err != nil {
		return nil, errors.Wrapf(err, "aggregator: allocating next submitter operation id")
	}
	return &externalapi.SubmitterOperation{
		Id:        id,
		Kind:      kind,
		FromBlock: fromBlock,
		ToBlock:   tip,
		Payload:   payload,
	}, nil
}
