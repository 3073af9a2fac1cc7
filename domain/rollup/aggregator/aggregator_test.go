package aggregator

import (
	"testing"
	"time"

	"github.com/dagrollup/rollupcore/domain/rollup/model"
	"github.com/dagrollup/rollupcore/domain/rollup/model/externalapi"
)

// fakeStore is a minimal in-memory model.PersistenceStore, covering only
// the watermark and block-lookup surface NextDue/BuildPayload exercise,
// mirroring ethsender/submitter_test.go's habit of driving production
// logic against a hand-rolled fixture rather than a real database.
type fakeStore struct {
	blocks    map[uint32]*externalapi.Block
	committed uint32
	proved    uint32
	executed  uint32
	nextOpId  externalapi.SubmitterOperationId
}

var _ model.PersistenceStore = (*fakeStore)(nil)

func newFakeStore() *fakeStore {
	return &fakeStore{
		blocks:   make(map[uint32]*externalapi.Block),
		nextOpId: 1,
	}
}

func (s *fakeStore) addBlock(n uint32) {
	var commitment externalapi.Hash
	commitment[0] = byte(n)
	s.blocks[n] = &externalapi.Block{BlockNumber: n, CommitmentHash: commitment, Timestamp: time.Unix(0, 0)}
}

func (s *fakeStore) SaveBlock(*externalapi.Block, []*externalapi.AccountUpdate,
	[]model.ExecutedTransaction, []model.ExecutedPriorityOperation) error {
	panic("unused")
}
func (s *fakeStore) LoadBlock(blockNumber uint32) (*externalapi.Block, error) {
	block, ok := s.blocks[blockNumber]
	if !ok {
		return nil, errBlockNotFound(blockNumber)
	}
	return block, nil
}
func (s *fakeStore) BlockRange(uint32, int) ([]*externalapi.Block, error) { panic("unused") }
func (s *fakeStore) LastCommitted() (uint32, error)                      { return s.committed, nil }
func (s *fakeStore) LastProved() (uint32, error)                         { return s.proved, nil }
func (s *fakeStore) LastExecutedConfirmed() (uint32, error)              { return s.executed, nil }
func (s *fakeStore) RemoveAfter(uint32) error                            { panic("unused") }
func (s *fakeStore) SavePendingBlock(*externalapi.PendingBlock) error    { panic("unused") }
func (s *fakeStore) LoadPendingBlock() (*externalapi.PendingBlock, error) {
	panic("unused")
}
func (s *fakeStore) PendingBlockExists() (bool, error) { panic("unused") }
func (s *fakeStore) RemovePendingBlock() error         { panic("unused") }
func (s *fakeStore) LoadCommittedState() (map[externalapi.AccountId]*externalapi.Account, error) {
	panic("unused")
}
func (s *fakeStore) LoadStateAt(uint32) (map[externalapi.AccountId]*externalapi.Account, error) {
	panic("unused")
}
func (s *fakeStore) SaveTreeCache(uint32, []byte) error   { panic("unused") }
func (s *fakeStore) LoadTreeCache(uint32) ([]byte, error) { panic("unused") }
func (s *fakeStore) NextSubmitterOperationId() (externalapi.SubmitterOperationId, error) {
	id := s.nextOpId
	s.nextOpId++
	return id, nil
}
func (s *fakeStore) SaveSubmitterOperation(*externalapi.SubmitterOperation) error { panic("unused") }
func (s *fakeStore) LoadSubmitterOperation(externalapi.SubmitterOperationId) (*externalapi.SubmitterOperation, error) {
	panic("unused")
}
func (s *fakeStore) LoadUnconfirmedSubmitterOperations() ([]*externalapi.SubmitterOperation, error) {
	panic("unused")
}
func (s *fakeStore) AppendSentHash(externalapi.SubmitterOperationId, externalapi.Hash) error {
	panic("unused")
}
func (s *fakeStore) ConfirmSubmitterOperation(externalapi.SubmitterOperationId, externalapi.Hash) error {
	panic("unused")
}
func (s *fakeStore) SaveEventCursor(uint64) error   { panic("unused") }
func (s *fakeStore) LoadEventCursor() (uint64, error) { panic("unused") }

type blockNotFoundError struct{ blockNumber uint32 }

func (e blockNotFoundError) Error() string { return "block not found" }
func errBlockNotFound(n uint32) error      { return blockNotFoundError{n} }

func TestBuildPayloadConcatenatesCommitmentHashesInOrder(t *testing.T) {
	store := newFakeStore()
	store.addBlock(1)
	store.addBlock(2)
	store.addBlock(3)

	payload, err := BuildPayload(store, 1, 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(payload) != 3*externalapi.HashSize {
		t.Fatalf("expected %d bytes, got %d", 3*externalapi.HashSize, len(payload))
	}
	for i, blockNumber := range []uint32{1, 2, 3} {
		want := store.blocks[blockNumber].CommitmentHash
		got := payload[i*externalapi.HashSize : (i+1)*externalapi.HashSize]
		if !want.Equal(externalapi.BytesToHash(got)) {
			t.Fatalf("block %d: payload segment does not match its commitment hash", blockNumber)
		}
	}
}

func TestBuildPayloadRejectsInvertedRange(t *testing.T) {
	store := newFakeStore()
	if _, err := BuildPayload(store, 5, 3); err == nil {
		t.Fatal("expected an error for toBlock before fromBlock")
	}
}

func TestNextDuePrefersCommitOverProveAndExecute(t *testing.T) {
	store := newFakeStore()
	store.addBlock(1)
	store.addBlock(2)
	// Nothing committed, proved or executed yet; sealedTip is 2.
	op, err := NextDue(store, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if op == nil {
		t.Fatal("expected a due operation")
	}
	if op.Kind != externalapi.SubmitCommit {
		t.Fatalf("expected SubmitCommit, got %v", op.Kind)
	}
	if op.FromBlock != 1 || op.ToBlock != 2 {
		t.Fatalf("expected range [1,2], got [%d,%d]", op.FromBlock, op.ToBlock)
	}
}

func TestNextDueFoldsMultipleBlocksIntoOneOperation(t *testing.T) {
	store := newFakeStore()
	for n := uint32(1); n <= 5; n++ {
		store.addBlock(n)
	}
	store.committed = 0

	op, err := NextDue(store, 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if op.FromBlock != 1 || op.ToBlock != 5 {
		t.Fatalf("expected a single operation covering [1,5], got [%d,%d]", op.FromBlock, op.ToBlock)
	}
	if len(op.Payload) != 5*externalapi.HashSize {
		t.Fatalf("expected payload for 5 blocks, got %d bytes", len(op.Payload))
	}
}

func TestNextDueMovesToProveOnceCommitIsCaughtUp(t *testing.T) {
	store := newFakeStore()
	for n := uint32(1); n <= 3; n++ {
		store.addBlock(n)
	}
	store.committed = 3

	op, err := NextDue(store, 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if op == nil || op.Kind != externalapi.SubmitProve {
		t.Fatalf("expected SubmitProve, got %+v", op)
	}
	if op.FromBlock != 1 || op.ToBlock != 3 {
		t.Fatalf("expected range [1,3], got [%d,%d]", op.FromBlock, op.ToBlock)
	}
}

func TestNextDueMovesToExecuteOnceProveIsCaughtUp(t *testing.T) {
	store := newFakeStore()
	for n := uint32(1); n <= 3; n++ {
		store.addBlock(n)
	}
	store.committed = 3
	store.proved = 3

	op, err := NextDue(store, 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if op == nil || op.Kind != externalapi.SubmitExecute {
		t.Fatalf("expected SubmitExecute, got %+v", op)
	}
}

func TestNextDueReturnsNilWhenNothingIsDue(t *testing.T) {
	store := newFakeStore()
	for n := uint32(1); n <= 3; n++ {
		store.addBlock(n)
	}
	store.committed = 3
	store.proved = 3
	store.executed = 3

	op, err := NextDue(store, 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if op != nil {
		t.Fatalf("expected no due operation, got %+v", op)
	}
}

func TestNextDueAssignsDistinctIncreasingIds(t *testing.T) {
	store := newFakeStore()
	for n := uint32(1); n <= 2; n++ {
		store.addBlock(n)
	}

	first, err := NextDue(store, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	store.committed = 2
	second, err := NextDue(store, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if first.Id == 0 || second.Id == 0 {
		t.Fatal("expected non-zero ids")
	}
	if first.Id == second.Id {
		t.Fatalf("expected distinct ids, got %d and %d", first.Id, second.Id)
	}
	if second.Id <= first.Id {
		t.Fatalf("expected increasing ids, got %d then %d", first.Id, second.Id)
	}
}
