package datarestorer

import (
	"errors"
	"testing"

	"github.com/dagrollup/rollupcore/domain/rollup/datastructures/merkletree"
	"github.com/dagrollup/rollupcore/domain/rollup/model"
	"github.com/dagrollup/rollupcore/domain/rollup/model/externalapi"
	"github.com/dagrollup/rollupcore/domain/rollup/processes/stateengine"
	"github.com/dagrollup/rollupcore/domain/rollup/pubdata"
	"github.com/dagrollup/rollupcore/domain/sigverify"
)

func addr(b byte) externalapi.Address { return externalapi.BytesToAddress([]byte{b}) }

func pubKeyHash(b byte) externalapi.PubKeyHash {
	var h externalapi.PubKeyHash
	h[0] = b
	return h
}

func newEngine() *stateengine.Engine {
	return stateengine.New(merkletree.New(), sigverify.AlwaysValid{}, externalapi.AccountId(99))
}

// sliceReader is a model.ChainLogReader over a fixed, in-memory record set.
type sliceReader struct {
	records []*model.ChainLogRecord
	pos     int
}

func (r *sliceReader) NextRecord() (*model.ChainLogRecord, bool, error) {
	if r.pos >= len(r.records) {
		return nil, false, nil
	}
	rec := r.records[r.pos]
	r.pos++
	return rec, true, nil
}

// TestRestoreFromReproducesLiveRoot replays a single block's worth of
// operations (a deposit and the depositor's first ChangePubKey) and checks
// the replayed tree's root matches the root the live engine reached
// applying the very same operations under full signature checking
// (spec.md §4.5, §8 invariant 8).
func TestRestoreFromReproducesLiveRoot(t *testing.T) {
	live := newEngine()

	deposit := &externalapi.Deposit{ToAddress: addr(0x07), Token: 1, Amount: externalapi.AmountFromUint64(1000)}
	depositResult := live.ApplyPriority(&externalapi.Operation{Kind: externalapi.OpDeposit, Deposit: deposit})
	acc0 := deposit.ToAccountId
	if acc0 != 0 {
		t.Fatalf("expected account 0, got %d", acc0)
	}

	cpk := &externalapi.ChangePubKey{
		AccountId: acc0, NewPubKeyHash: pubKeyHash(0xAA), Address: addr(0x07),
		Nonce: 0, FeeToken: 1, Fee: externalapi.AmountFromUint64(1), Signature: []byte("sig"),
	}
	tx := &externalapi.Tx{
		Op:        externalapi.Operation{Kind: externalapi.OpChangePubKey, ChangePubKey: cpk},
		AccountId: acc0,
		Hash:      externalapi.HashBytes([]byte("tx")),
	}
	cpkResult, err := live.ApplyTx(tx)
	if err != nil {
		t.Fatalf("ChangePubKey failed: %v", err)
	}
	live.CollectFee([]model.Fee{{Token: cpkResult.FeeToken, Amount: cpkResult.Fee}}, 0)
	liveRoot := live.RootHash()

	publicData := append(
		pubdata.EncodeOperation(&externalapi.Operation{Kind: externalapi.OpDeposit, Deposit: deposit}),
		pubdata.EncodeOperation(&externalapi.Operation{Kind: externalapi.OpChangePubKey, ChangePubKey: cpk})...,
	)
	reader := &sliceReader{records: []*model.ChainLogRecord{
		{BlockNumber: 0, FeeAccountId: 0, PublicData: publicData, PreviousRoot: externalapi.ZeroHash},
	}}

	replay := newEngine()
	restorer := New(replay)
	if err := restorer.RestoreFrom(reader); err != nil {
		t.Fatalf("RestoreFrom failed: %v", err)
	}
	if restorer.RootHash() != liveRoot {
		t.Fatalf("restored root %s != live root %s", restorer.RootHash(), liveRoot)
	}
}

// TestRestoreFromDetectsRootMismatch covers spec.md §4.5's fatal
// RootMismatch: a record whose declared PreviousRoot disagrees with the
// root the prior record actually produced must abort replay.
func TestRestoreFromDetectsRootMismatch(t *testing.T) {
	deposit := &externalapi.Deposit{ToAddress: addr(0x01), Token: 1, Amount: externalapi.AmountFromUint64(50)}
	firstRecord := &model.ChainLogRecord{
		BlockNumber:  0,
		FeeAccountId: 0,
		PublicData:   pubdata.EncodeOperation(&externalapi.Operation{Kind: externalapi.OpDeposit, Deposit: deposit}),
		PreviousRoot: externalapi.ZeroHash,
	}
	tamperedSecond := &model.ChainLogRecord{
		BlockNumber:  1,
		FeeAccountId: 0,
		PublicData:   pubdata.EncodeOperation(&externalapi.Operation{Kind: externalapi.OpNoop, Noop: &externalapi.Noop{}}),
		PreviousRoot: externalapi.HashBytes([]byte("not the real root")),
	}
	reader := &sliceReader{records: []*model.ChainLogRecord{firstRecord, tamperedSecond}}

	replay := newEngine()
	restorer := New(replay)
	err := restorer.RestoreFrom(reader)
	if err == nil {
		t.Fatal("expected RootMismatch, got nil error")
	}
	var mismatch *externalapi.RootMismatch
	if !errors.As(err, &mismatch) {
		t.Fatalf("expected *externalapi.RootMismatch, got %T: %v", err, err)
	}
	if mismatch.BlockNumber != 1 {
		t.Fatalf("expected mismatch at block 1, got %d", mismatch.BlockNumber)
	}
}
