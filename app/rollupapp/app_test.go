package rollupapp

import (
	"testing"
	"time"

	"github.com/dagrollup/rollupcore/config"
	"github.com/dagrollup/rollupcore/domain/rollup/datastructures/merkletree"
	"github.com/dagrollup/rollupcore/domain/rollup/model"
	"github.com/dagrollup/rollupcore/domain/rollup/model/externalapi"
	"github.com/dagrollup/rollupcore/domain/rollup/processes/blockbuilder"
	"github.com/dagrollup/rollupcore/domain/rollup/processes/stateengine"
	"github.com/dagrollup/rollupcore/domain/sigverify"
)

// fakeMempool is the narrow Mempool fixture commitSealedBlock/drainMempool
// exercise, mirroring domain/txpool/mempool's own test habit of driving
// production code against an in-memory queue rather than a real pool.
type fakeMempool struct {
	queue      []*externalapi.Tx
	reconciled []model.ReconcileOutcome
	sealedFlag []bool
}

var _ model.Mempool = (*fakeMempool)(nil)

func (m *fakeMempool) NextForBlock() (*externalapi.Tx, bool) {
	if len(m.queue) == 0 {
		return nil, false
	}
	tx := m.queue[0]
	m.queue = m.queue[1:]
	return tx, true
}
func (m *fakeMempool) Insert(*externalapi.Tx, time.Duration) error { panic("unused") }
func (m *fakeMempool) Reconcile(outcomes []model.ReconcileOutcome, blockSealed bool) {
	m.reconciled = append(m.reconciled, outcomes...)
	m.sealedFlag = append(m.sealedFlag, blockSealed)
}
func (m *fakeMempool) Size() int { return len(m.queue) }

type fakeSubmitter struct {
	enqueued []*externalapi.SubmitterOperation
}

var _ model.ChainSubmitter = (*fakeSubmitter)(nil)

func (s *fakeSubmitter) Enqueue(op *externalapi.SubmitterOperation) error {
	s.enqueued = append(s.enqueued, op)
	return nil
}
func (s *fakeSubmitter) Step() (int, error) { panic("unused") }

type fakeEventSource struct{}

var _ model.EventSource = (*fakeEventSource)(nil)

func (fakeEventSource) Step() ([]*externalapi.Operation, []model.ConfirmationEvent, error) {
	panic("unused")
}
func (fakeEventSource) UnconfirmedFor(externalapi.Address) []*externalapi.Operation {
	panic("unused")
}

// fakeStore records every SaveBlock call and serves the watermarks
// aggregator.NextDue needs; everything else panics since commitSealedBlock
// never calls it.
type fakeStore struct {
	savedBlocks    []*externalapi.Block
	savedTxs       [][]model.ExecutedTransaction
	savedPriors    [][]model.ExecutedPriorityOperation
	blocksByNumber map[uint32]*externalapi.Block
	committed      uint32
	proved         uint32
	executed       uint32
	nextOpId       externalapi.SubmitterOperationId
}

var _ model.PersistenceStore = (*fakeStore)(nil)

func (s *fakeStore) SaveBlock(block *externalapi.Block, _ []*externalapi.AccountUpdate,
	txs []model.ExecutedTransaction, priors []model.ExecutedPriorityOperation) error {
	s.savedBlocks = append(s.savedBlocks, block)
	s.savedTxs = append(s.savedTxs, txs)
	s.savedPriors = append(s.savedPriors, priors)
	return nil
}
func (s *fakeStore) LoadBlock(blockNumber uint32) (*externalapi.Block, error) {
	block, ok := s.blocksByNumber[blockNumber]
	if !ok {
		return nil, errDummy{}
	}
	return block, nil
}
func (s *fakeStore) BlockRange(uint32, int) ([]*externalapi.Block, error) { panic("unused") }
func (s *fakeStore) LastCommitted() (uint32, error)                  { return s.committed, nil }
func (s *fakeStore) LastProved() (uint32, error)                     { return s.proved, nil }
func (s *fakeStore) LastExecutedConfirmed() (uint32, error)          { return s.executed, nil }
func (s *fakeStore) RemoveAfter(uint32) error                        { panic("unused") }
func (s *fakeStore) SavePendingBlock(*externalapi.PendingBlock) error { panic("unused") }
func (s *fakeStore) LoadPendingBlock() (*externalapi.PendingBlock, error) {
	panic("unused")
}
func (s *fakeStore) PendingBlockExists() (bool, error) { return false, nil }
func (s *fakeStore) RemovePendingBlock() error         { panic("unused") }
func (s *fakeStore) LoadCommittedState() (map[externalapi.AccountId]*externalapi.Account, error) {
	panic("unused")
}
func (s *fakeStore) LoadStateAt(uint32) (map[externalapi.AccountId]*externalapi.Account, error) {
	panic("unused")
}
func (s *fakeStore) SaveTreeCache(uint32, []byte) error   { return nil }
func (s *fakeStore) LoadTreeCache(uint32) ([]byte, error) { panic("unused") }
func (s *fakeStore) NextSubmitterOperationId() (externalapi.SubmitterOperationId, error) {
	s.nextOpId++
	return s.nextOpId, nil
}
func (s *fakeStore) SaveSubmitterOperation(*externalapi.SubmitterOperation) error { panic("unused") }
func (s *fakeStore) LoadSubmitterOperation(externalapi.SubmitterOperationId) (*externalapi.SubmitterOperation, error) {
	panic("unused")
}
func (s *fakeStore) LoadUnconfirmedSubmitterOperations() ([]*externalapi.SubmitterOperation, error) {
	return nil, nil
}
func (s *fakeStore) AppendSentHash(externalapi.SubmitterOperationId, externalapi.Hash) error {
	panic("unused")
}
func (s *fakeStore) ConfirmSubmitterOperation(externalapi.SubmitterOperationId, externalapi.Hash) error {
	panic("unused")
}
func (s *fakeStore) SaveEventCursor(uint64) error     { panic("unused") }
func (s *fakeStore) LoadEventCursor() (uint64, error) { panic("unused") }

func addr(b byte) externalapi.Address { return externalapi.BytesToAddress([]byte{b}) }

func newTestApp(t *testing.T) (*App, *fakeStore, *fakeMempool, *fakeSubmitter) {
	t.Helper()
	se := stateengine.New(merkletree.New(), sigverify.AlwaysValid{}, externalapi.AccountId(99))
	builder := blockbuilder.New(se, se, blockbuilder.Config{
		AdmissibleChunkSizes: []uint32{4, 8},
		IterationBound:       100,
		FeeAccountId:         0,
	}, 1, externalapi.ZeroHash)

	store := &fakeStore{}
	pool := &fakeMempool{}
	submitter := &fakeSubmitter{}

	app, err := New(Dependencies{
		Store:       store,
		Tree:        merkletree.New(),
		Mempool:     pool,
		Builder:     builder,
		Submitter:   submitter,
		EventSource: fakeEventSource{},
		Config: config.Config{
			MaxInFlight:                1,
			WaitConfirmations:          1,
			ExpectedWaitBlocks:         1,
			PollInterval:               time.Second,
			RateLimitBackoff:           time.Second,
			APICacheSize:               1,
			MaxBlockRange:              1,
			AdmissibleChunkSizes:       []uint32{4, 8},
			MiniblockIterationInterval: time.Second,
			MaxMiniblockIterations:     20,
			FastMiniblockIterations:    3,
			FeeAccountId:               0,
		},
	})
	if err != nil {
		t.Fatalf("unexpected error constructing app: %v", err)
	}
	return app, store, pool, submitter
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	if _, err := New(Dependencies{Config: config.Config{}}); err == nil {
		t.Fatal("expected an error for a zero-valued config")
	}
}

func TestAcceptPriorityRecordsEntryAndSealsOnOverflow(t *testing.T) {
	app, store, _, _ := newTestApp(t)

	dep1 := &externalapi.Operation{
		Kind:    externalapi.OpDeposit,
		Deposit: &externalapi.Deposit{ToAddress: addr(0x01), Token: 1, Amount: externalapi.AmountFromUint64(100)},
	}
	app.acceptPriority(dep1)
	if len(store.savedBlocks) != 0 {
		t.Fatal("first deposit should not seal a block")
	}
	if len(app.entries) != 1 || !app.entries[0].isPriority {
		t.Fatalf("expected one priority entry, got %+v", app.entries)
	}

	dep2 := &externalapi.Operation{
		Kind:    externalapi.OpDeposit,
		Deposit: &externalapi.Deposit{ToAddress: addr(0x02), Token: 1, Amount: externalapi.AmountFromUint64(200)},
	}
	app.acceptPriority(dep2)

	if len(store.savedBlocks) != 1 {
		t.Fatalf("expected chunk overflow to seal one block, got %d", len(store.savedBlocks))
	}
	if len(store.savedPriors[0]) != 1 {
		t.Fatalf("expected exactly one executed priority op in the sealed block, got %d", len(store.savedPriors[0]))
	}
	if store.savedPriors[0][0].PriorityOpId != 0 {
		t.Fatalf("expected priority id 0 for the first-accepted deposit, got %d", store.savedPriors[0][0].PriorityOpId)
	}
	// entries is reset after a commit; the second deposit's entry carries
	// forward into the next pending block's correlation slice.
	if len(app.entries) != 1 || !app.entries[0].isPriority || app.entries[0].priorityId != 1 {
		t.Fatalf("expected the second deposit's entry to survive the seal, got %+v", app.entries)
	}
}

func TestClassifyOutcome(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want model.ReconcileKind
	}{
		{"nil", nil, model.Included},
		{"nonce mismatch", externalapi.NonceMismatch, model.TemporaryRejected},
		{"insufficient balance", externalapi.InsufficientBalance, model.TemporaryRejected},
		{"fee too low", externalapi.FeeTooLow, model.TemporaryRejected},
		{"unrecognized", errDummy{}, model.RejectedCompletely},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := classifyOutcome(c.err); got != c.want {
				t.Fatalf("classifyOutcome(%v) = %v, want %v", c.err, got, c.want)
			}
		})
	}
}

type errDummy struct{}

func (errDummy) Error() string { return "dummy" }

func TestAdjustIterationBoundSwitchesOnBacklog(t *testing.T) {
	app, _, _, _ := newTestApp(t)

	dep := &externalapi.Operation{
		Kind:    externalapi.OpDeposit,
		Deposit: &externalapi.Deposit{ToAddress: addr(0x01), Token: 1, Amount: externalapi.AmountFromUint64(1)},
	}
	app.acceptPriority(dep)
	if app.builder.Pending() == nil {
		t.Fatal("expected a pending block after the first deposit")
	}

	app.adjustIterationBound()
	sealedNormal := false
	for i := 0; i < 3; i++ {
		block, _ := app.builder.Tick()
		if block != nil {
			sealedNormal = true
		}
	}
	if sealedNormal {
		t.Fatal("expected the normal-load iteration bound (20) not to seal within 3 ticks")
	}

	app.priorityOpsCh <- &externalapi.Operation{Kind: externalapi.OpDeposit}
	app.adjustIterationBound()
	sealedFast := false
	for i := 0; i < 3; i++ {
		block, _ := app.builder.Tick()
		if block != nil {
			sealedFast = true
		}
	}
	if !sealedFast {
		t.Fatal("expected the backlog iteration bound (3) to seal within 3 ticks")
	}
	<-app.priorityOpsCh
}

func TestEnqueueDueSubmitterOperationsWrapsPayloadAndEnqueues(t *testing.T) {
	app, store, _, submitter := newTestApp(t)

	var commitment externalapi.Hash
	commitment[0] = 0x42
	store.blocksByNumber = map[uint32]*externalapi.Block{1: {BlockNumber: 1, CommitmentHash: commitment}}

	app.enqueueDueSubmitterOperations(1)

	if len(submitter.enqueued) != 1 {
		t.Fatalf("expected one enqueued submitter operation, got %d", len(submitter.enqueued))
	}
	op := submitter.enqueued[0]
	if op.Kind != externalapi.SubmitCommit {
		t.Fatalf("expected SubmitCommit to be due first, got %v", op.Kind)
	}
	if len(op.Payload) == 0 {
		t.Fatal("expected EncodeCall to have wrapped the raw commitment payload")
	}
}
