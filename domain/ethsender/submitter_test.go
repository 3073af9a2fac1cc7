package ethsender

import (
	"testing"
	"time"

	"github.com/dagrollup/rollupcore/domain/rollup/model"
	"github.com/dagrollup/rollupcore/domain/rollup/model/externalapi"
)

// fakeStore is an in-memory model.PersistenceStore-shaped stand-in,
// implementing only the Store subset ethsender needs, mirroring
// mempool_test.go's habit of driving production logic against a minimal
// hand-rolled fixture rather than a real database.
type fakeStore struct {
	rows map[externalapi.SubmitterOperationId]*externalapi.SubmitterOperation
}

func newFakeStore() *fakeStore {
	return &fakeStore{rows: make(map[externalapi.SubmitterOperationId]*externalapi.SubmitterOperation)}
}

func (s *fakeStore) SaveSubmitterOperation(op *externalapi.SubmitterOperation) error {
	clone := *op
	clone.SentHashes = append([]externalapi.Hash(nil), op.SentHashes...)
	s.rows[op.Id] = &clone
	return nil
}

func (s *fakeStore) LoadUnconfirmedSubmitterOperations() ([]*externalapi.SubmitterOperation, error) {
	var out []*externalapi.SubmitterOperation
	for _, row := range s.rows {
		if !row.Confirmed {
			clone := *row
			clone.SentHashes = append([]externalapi.Hash(nil), row.SentHashes...)
			out = append(out, &clone)
		}
	}
	return out, nil
}

func (s *fakeStore) AppendSentHash(id externalapi.SubmitterOperationId, hash externalapi.Hash) error {
	row := s.rows[id]
	row.SentHashes = append(row.SentHashes, hash)
	return nil
}

func (s *fakeStore) ConfirmSubmitterOperation(id externalapi.SubmitterOperationId, finalHash externalapi.Hash) error {
	row := s.rows[id]
	row.Confirmed = true
	row.FinalHash = &finalHash
	return nil
}

// fakeClient is a scriptable model.AnchorChainClient: tests set
// blockNumber/gasPrice/statuses directly and record every sent hash.
type fakeClient struct {
	blockNumber uint64
	gasPrice    externalapi.Amount
	statuses    map[externalapi.Hash]fakeStatus
	sent        [][]byte
	sendCounter int
}

type fakeStatus struct {
	status        model.TxStatus
	confirmations uint64
}

func newFakeClient() *fakeClient {
	return &fakeClient{
		gasPrice: externalapi.AmountFromUint64(10),
		statuses: make(map[externalapi.Hash]fakeStatus),
	}
}

func (c *fakeClient) CurrentBlockNumber() (uint64, error) { return c.blockNumber, nil }
func (c *fakeClient) SuggestGasPrice() (externalapi.Amount, error) { return c.gasPrice, nil }

func (c *fakeClient) Send(signedTx []byte) (externalapi.Hash, error) {
	c.sent = append(c.sent, signedTx)
	c.sendCounter++
	hash := externalapi.BytesToHash([]byte{byte(c.sendCounter)})
	c.statuses[hash] = fakeStatus{status: model.TxStatusUnknown}
	return hash, nil
}

func (c *fakeClient) Status(hash externalapi.Hash) (model.TxStatus, uint64, error) {
	st := c.statuses[hash]
	return st.status, st.confirmations, nil
}

type fakeSigner struct{}

func (fakeSigner) Sign(nonce uint64, gasPrice externalapi.Amount, gasLimit uint64, payload []byte) ([]byte, error) {
	return append([]byte{byte(nonce)}, payload...), nil
}

func testConfig() Config {
	return Config{
		MaxInFlight:        4,
		WaitConfirmations:  2,
		ExpectedWaitBlocks: 10,
		PollInterval:       time.Second,
		RateLimitBackoff:   30 * time.Second,
		GasLimit: func(kind externalapi.SubmitterOperationKind, fromBlock, toBlock uint32) uint64 {
			return 21000
		},
	}
}

// TestStuckRowGetsSupplementedWithHigherGasPrice covers seed scenario 6:
// a row sent at gas price g, left unconfirmed past its deadline block,
// must be supplemented with a strictly higher gas price, the same nonce,
// and one more entry in sent_hashes.
func TestStuckRowGetsSupplementedWithHigherGasPrice(t *testing.T) {
	store := newFakeStore()
	client := newFakeClient()
	sub := New(store, client, fakeSigner{}, testConfig(), 1)

	if err := sub.Enqueue(&externalapi.SubmitterOperation{
		Id: 1, Kind: externalapi.SubmitCommit, FromBlock: 1, ToBlock: 1, Payload: []byte("block-1"),
	}); err != nil {
		t.Fatalf("enqueue failed: %v", err)
	}

	// First step initializes and sends the row.
	if _, err := sub.Step(); err != nil {
		t.Fatalf("unexpected error on initialize step: %v", err)
	}
	row := store.rows[1]
	if len(row.SentHashes) != 1 {
		t.Fatalf("expected 1 sent hash after initialize, got %d", len(row.SentHashes))
	}
	firstPrice := row.LastGasPrice
	firstNonce := row.Nonce

	// Advance the chain past the row's deadline without any inclusion.
	client.blockNumber = row.LastDeadlineBlock + 1

	if _, err := sub.Step(); err != nil {
		t.Fatalf("unexpected error on stuck-recovery step: %v", err)
	}

	row = store.rows[1]
	if len(row.SentHashes) != 2 {
		t.Fatalf("expected sent_hashes length incremented by 1, got %d entries", len(row.SentHashes))
	}
	if row.Nonce != firstNonce {
		t.Fatalf("expected supplement to reuse nonce %d, got %d", firstNonce, row.Nonce)
	}
	if !row.LastGasPrice.GreaterThan(firstPrice) {
		t.Fatalf("expected supplement gas price %s to exceed %s", row.LastGasPrice, firstPrice)
	}
}

// TestOlderSupplementedHashConfirmsRow covers the replace-by-fee race: a
// row supplemented once (two entries in sent_hashes) must confirm off
// whichever hash the anchor chain actually mined, even when that is the
// older, lower-gas attempt and the newest hash stays unknown forever.
func TestOlderSupplementedHashConfirmsRow(t *testing.T) {
	store := newFakeStore()
	client := newFakeClient()
	sub := New(store, client, fakeSigner{}, testConfig(), 1)

	if err := sub.Enqueue(&externalapi.SubmitterOperation{
		Id: 1, Kind: externalapi.SubmitCommit, FromBlock: 1, ToBlock: 1, Payload: []byte("block-1"),
	}); err != nil {
		t.Fatalf("enqueue failed: %v", err)
	}

	if _, err := sub.Step(); err != nil {
		t.Fatalf("unexpected error on initialize step: %v", err)
	}
	oldHash := store.rows[1].SentHashes[0]

	// Push the row past its deadline so it gets supplemented with a
	// second, newer hash.
	client.blockNumber = store.rows[1].LastDeadlineBlock + 1
	if _, err := sub.Step(); err != nil {
		t.Fatalf("unexpected error on supplement step: %v", err)
	}
	row := store.rows[1]
	if len(row.SentHashes) != 2 {
		t.Fatalf("expected a supplement hash, got %d entries", len(row.SentHashes))
	}

	// The chain actually mined the older, lower-gas attempt; the newer
	// hash never reports anything but unknown.
	client.statuses[oldHash] = fakeStatus{status: model.TxStatusSuccess, confirmations: 5}

	confirmed, err := sub.Step()
	if err != nil {
		t.Fatalf("unexpected error on confirm step: %v", err)
	}
	if confirmed != 1 {
		t.Fatalf("expected the row to confirm off the older mined hash, got %d confirmations", confirmed)
	}
	if !store.rows[1].Confirmed {
		t.Fatal("expected row to confirm")
	}
	if *store.rows[1].FinalHash != oldHash {
		t.Fatalf("expected final hash to be the mined older hash, got %x want %x", *store.rows[1].FinalHash, oldHash)
	}
}

// TestConfirmationRespectsPredecessorOrder covers invariant 7: a
// same-kind row may not confirm while an earlier-id row of that kind is
// still unconfirmed, even if the anchor chain reports the later row as
// included first.
func TestConfirmationRespectsPredecessorOrder(t *testing.T) {
	store := newFakeStore()
	client := newFakeClient()
	sub := New(store, client, fakeSigner{}, testConfig(), 1)

	for _, id := range []externalapi.SubmitterOperationId{1, 2} {
		if err := sub.Enqueue(&externalapi.SubmitterOperation{
			Id: id, Kind: externalapi.SubmitCommit, FromBlock: uint32(id), ToBlock: uint32(id), Payload: []byte("p"),
		}); err != nil {
			t.Fatalf("enqueue %d failed: %v", id, err)
		}
	}

	// Initialize both rows (MaxInFlight=4 covers both in one step).
	if _, err := sub.Step(); err != nil {
		t.Fatalf("unexpected error initializing rows: %v", err)
	}

	row2Hash := store.rows[2].SentHashes[0]
	client.statuses[row2Hash] = fakeStatus{status: model.TxStatusSuccess, confirmations: 5}
	// row 1's hash stays TxStatusUnknown and not yet past its deadline.

	confirmed, err := sub.Step()
	if err != nil {
		t.Fatalf("unexpected error polling: %v", err)
	}
	if confirmed != 0 {
		t.Fatalf("expected row 2 to stay pending behind unconfirmed row 1, got %d confirmations", confirmed)
	}
	if store.rows[2].Confirmed {
		t.Fatal("row 2 must not confirm before row 1 (invariant 7)")
	}

	// Now let row 1 land too; both confirm in id order.
	row1Hash := store.rows[1].SentHashes[0]
	client.statuses[row1Hash] = fakeStatus{status: model.TxStatusSuccess, confirmations: 5}

	confirmed, err = sub.Step()
	if err != nil {
		t.Fatalf("unexpected error on final poll: %v", err)
	}
	if confirmed != 2 {
		t.Fatalf("expected both rows to confirm once row 1 lands, got %d", confirmed)
	}
	if !store.rows[1].Confirmed || !store.rows[2].Confirmed {
		t.Fatal("expected both rows confirmed")
	}
}
