// Package datarestorer implements spec.md §4.5: rebuilding a MerkleTree
// and its account map from nothing but the public-data stream an anchor
// chain recorded, without ever trusting the stream's signatures. Grounded
// on the teacher's own chain-replay shape in
// domain/blockdag (rebuilding DAG state by walking block bodies from a
// database), generalized to the rollup's linear, one-record-per-block
// replay.
package datarestorer

import (
	"github.com/dagrollup/rollupcore/domain/rollup/model"
	"github.com/dagrollup/rollupcore/domain/rollup/model/externalapi"
	"github.com/dagrollup/rollupcore/domain/rollup/processes/stateengine"
	"github.com/dagrollup/rollupcore/domain/rollup/pubdata"
	"github.com/dagrollup/rollupcore/internal/logger"
)

var log, _ = logger.Get(logger.SubsystemTags.REST)

var _ model.DataRestorer = (*Restorer)(nil)

// Restorer is the production model.DataRestorer. It depends on the
// concrete *stateengine.Engine rather than the narrower model.StateEngine
// interface because replay needs stateengine.Engine.ApplyRestored, which
// bypasses the envelope-signature check ApplyTx enforces: spec.md §4.5
// is explicit that "no signatures are verified during restore."
type Restorer struct {
	engine *stateengine.Engine

	sawFirstRecord bool
}

// New returns a Restorer that replays operations against engine, which
// must start at the same genesis state (empty tree) the original chain
// started from.
func New(engine *stateengine.Engine) *Restorer {
	return &Restorer{engine: engine}
}

// RootHash implements model.DataRestorer.
func (r *Restorer) RootHash() externalapi.Hash {
	return r.engine.RootHash()
}

// RestoreFrom implements model.DataRestorer: it drains reader to
// exhaustion, replaying each record's public data in order. Before
// replaying a record, it checks that the tree's current root matches the
// record's declared PreviousRoot -- since that value is exactly the prior
// block's recorded new_root, this check transitively validates every
// completed block's outcome as soon as the next record arrives. The very
// last record's own outcome has nothing further to check it against from
// the stream alone; callers that know the chain's current tip root should
// compare it against RootHash() once RestoreFrom returns.
func (r *Restorer) RestoreFrom(reader model.ChainLogReader) error {
	for {
		rec, ok, err := reader.NextRecord()
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}

		if err := r.checkPreviousRoot(rec); err != nil {
			return err
		}
		if err := r.replayRecord(rec); err != nil {
			return err
		}
		r.sawFirstRecord = true
	}
}

func (r *Restorer) checkPreviousRoot(rec *model.ChainLogRecord) error {
	if !r.sawFirstRecord && rec.BlockNumber == 0 {
		// Genesis block: nothing replayed yet, nothing to compare.
		return nil
	}
	got := r.engine.RootHash()
	if got != rec.PreviousRoot {
		return &externalapi.RootMismatch{BlockNumber: rec.BlockNumber, Expected: rec.PreviousRoot, Got: got}
	}
	return nil
}

// replayRecord parses rec.PublicData into its constituent operations,
// applies each (priority operations through ApplyPriority, everything
// else through ApplyRestored), and collects the block's fees exactly as
// BlockBuilder.seal does when the block was first produced.
func (r *Restorer) replayRecord(rec *model.ChainLogRecord) error {
	var fees []model.Fee

	offset := 0
	for offset < len(rec.PublicData) {
		op, consumed, err := pubdata.DecodeOperation(rec.PublicData[offset:])
		if err != nil {
			return err
		}
		offset += consumed

		var success *model.OpSuccess
		if op.Kind.IsPriority() {
			success = r.engine.ApplyPriority(op)
		} else {
			success, err = r.engine.ApplyRestored(op)
			if err != nil {
				return err
			}
		}

		if !success.Fee.IsZero() {
			fees = append(fees, model.Fee{Token: success.FeeToken, Amount: success.Fee})
		}
	}

	r.engine.CollectFee(fees, rec.FeeAccountId)
	log.Debugf("restored block %d (%d bytes of public data)", rec.BlockNumber, len(rec.PublicData))
	return nil
}
