package mempool

import (
	"errors"
	"testing"
	"time"

	"github.com/dagrollup/rollupcore/domain/rollup/model"
	"github.com/dagrollup/rollupcore/domain/rollup/model/externalapi"
)

func testConfig() Config {
	return Config{MaxPerAccount: 16, MaxGap: 4, DefaultLifetime: time.Hour}
}

func testTx(accountId externalapi.AccountId, nonce uint32, fee uint64, salt byte) *externalapi.Tx {
	return &externalapi.Tx{
		AccountId: accountId,
		Nonce:     nonce,
		Fee:       externalapi.AmountFromUint64(fee),
		Hash:      externalapi.HashBytes([]byte{byte(accountId), byte(nonce), salt}),
	}
}

// TestReplacementByFee reproduces spec.md §8 seed scenario 3.
func TestReplacementByFee(t *testing.T) {
	p := New(testConfig())

	if err := p.Insert(testTx(1, 5, 20, 0), 0); err != nil {
		t.Fatalf("first insert failed: %v", err)
	}
	err := p.Insert(testTx(1, 5, 20, 1), 0)
	if !errors.Is(err, UnderpricedReplacement) {
		t.Fatalf("expected UnderpricedReplacement, got %v", err)
	}
	if p.Size() != 1 {
		t.Fatalf("expected queue length unchanged at 1, got %d", p.Size())
	}

	if err := p.Insert(testTx(1, 5, 21, 2), 0); err != nil {
		t.Fatalf("strictly-higher-fee replacement should succeed: %v", err)
	}
	if p.Size() != 1 {
		t.Fatalf("expected queue length unchanged at 1 after replacement, got %d", p.Size())
	}
}

// TestGapInsertionLimit reproduces spec.md §8 seed scenario 4.
func TestGapInsertionLimit(t *testing.T) {
	p := New(testConfig())

	// Seed next_nonce_without_gaps = 5 by inserting nonces 0..4 in order.
	for n := uint32(0); n < 5; n++ {
		if err := p.Insert(testTx(1, n, 10, byte(n)), 0); err != nil {
			t.Fatalf("seed insert nonce %d failed: %v", n, err)
		}
	}

	err := p.Insert(testTx(1, 10, 10, 0xAA), 0)
	if !errors.Is(err, NonceTooFarAhead) {
		t.Fatalf("expected NonceTooFarAhead for nonce 10, got %v", err)
	}

	if err := p.Insert(testTx(1, 9, 10, 0xBB), 0); err != nil {
		t.Fatalf("expected nonce 9 to succeed (within MaxGap=4 of 5), got %v", err)
	}
}

// TestDedupMatchesExactlyOneQueue covers spec.md §8 invariant 4: dedup
// contains tx_hash iff exactly one queue holds it.
func TestDedupMatchesExactlyOneQueue(t *testing.T) {
	p := New(testConfig())
	tx := testTx(3, 0, 5, 0)

	if err := p.Insert(tx, 0); err != nil {
		t.Fatalf("insert failed: %v", err)
	}
	if _, ok := p.dedup[tx.Hash]; !ok {
		t.Fatal("expected dedup to contain the inserted hash")
	}

	selected, ok := p.NextForBlock()
	if !ok || selected.Hash != tx.Hash {
		t.Fatalf("expected to select the inserted tx, got %+v ok=%v", selected, ok)
	}

	p.Reconcile([]model.ReconcileOutcome{{Hash: tx.Hash, Kind: model.Included}}, true)
	if _, ok := p.dedup[tx.Hash]; ok {
		t.Fatal("expected dedup to drop the hash once the tx was reported Included")
	}
}

// TestQueueNonceInvariant covers spec.md §8 invariant 5: minimal_nonce <=
// current_nonce <= next_nonce_without_gaps and no gap below the frontier.
func TestQueueNonceInvariant(t *testing.T) {
	p := New(testConfig())
	for n := uint32(0); n < 3; n++ {
		if err := p.Insert(testTx(7, n, 10, byte(n)), 0); err != nil {
			t.Fatalf("insert nonce %d failed: %v", n, err)
		}
	}
	q := p.queues[7]
	if !(q.minimalNonce <= q.currentNonce && q.currentNonce <= q.nextNonceWithoutGaps) {
		t.Fatalf("nonce invariant violated: minimal=%d current=%d frontier=%d",
			q.minimalNonce, q.currentNonce, q.nextNonceWithoutGaps)
	}
	for n := q.minimalNonce; n < q.nextNonceWithoutGaps; n++ {
		if _, ok := q.byNonce[n]; !ok {
			t.Fatalf("gap at nonce %d below frontier %d", n, q.nextNonceWithoutGaps)
		}
	}
}

// TestConsecutiveSelectionWithinAccount covers spec.md §8 invariant 6:
// two consecutive NextForBlock calls returning transactions from the same
// account return consecutive nonces.
func TestConsecutiveSelectionWithinAccount(t *testing.T) {
	p := New(testConfig())
	for n := uint32(0); n < 3; n++ {
		if err := p.Insert(testTx(4, n, 10, byte(n)), 0); err != nil {
			t.Fatalf("insert nonce %d failed: %v", n, err)
		}
	}

	first, ok := p.NextForBlock()
	if !ok {
		t.Fatal("expected a transaction")
	}
	second, ok := p.NextForBlock()
	if !ok {
		t.Fatal("expected a second transaction")
	}
	if second.AccountId == first.AccountId && second.Nonce != first.Nonce+1 {
		t.Fatalf("expected consecutive nonces, got %d then %d", first.Nonce, second.Nonce)
	}
}
