// Package rollupapp wires the rollup core's long-lived tasks together:
// the single block-production goroutine that owns BlockBuilder,
// StateEngine and the account tree, and the two independently
// ticker-driven goroutines for ChainSubmitter and EventSource (spec.md
// §5's concurrency model, reconciled in DESIGN.md's "Concurrency model
// reconciliation" entry). Grounded on cmd/kaspaminer/mineloop.go's
// spawn-named-goroutines-communicating-over-channels shape, generalized
// from block mining to miniblock sealing.
package rollupapp

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/dagrollup/rollupcore/config"
	"github.com/dagrollup/rollupcore/domain/ethsender/anchorchain"
	"github.com/dagrollup/rollupcore/domain/rollup/aggregator"
	"github.com/dagrollup/rollupcore/domain/rollup/datastructures/merkletree"
	"github.com/dagrollup/rollupcore/domain/rollup/model"
	"github.com/dagrollup/rollupcore/domain/rollup/model/externalapi"
	"github.com/dagrollup/rollupcore/domain/rollup/processes/blockbuilder"
	"github.com/dagrollup/rollupcore/domain/rollup/pubdata"
	"github.com/dagrollup/rollupcore/internal/logger"
	"github.com/dagrollup/rollupcore/internal/metrics"
	"github.com/dagrollup/rollupcore/internal/panics"
)

var log, _ = logger.Get(logger.SubsystemTags.APPT)

// Dependencies are the already-constructed components App wires together.
// Nothing here constructs its own collaborators: every component is
// built and configured by the caller (normally cmd/rollupnode/main.go),
// the same "assemble in main, inject down" shape apiserver/main.go uses
// for its own dbaccess/API wiring.
type Dependencies struct {
	Store       model.PersistenceStore
	Tree        *merkletree.Tree
	Mempool     model.Mempool
	Builder     *blockbuilder.Builder
	Submitter   model.ChainSubmitter
	EventSource model.EventSource
	Config      config.Config
}

// App runs the rollup core's three long-lived tasks until its context is
// canceled (spec.md §5: "a shutdown signal causes each task to drain its
// current in-progress unit... and exit. No task is killed mid-write.").
type App struct {
	store       model.PersistenceStore
	tree        *merkletree.Tree
	mempool     model.Mempool
	builder     *blockbuilder.Builder
	submitter   model.ChainSubmitter
	eventSource model.EventSource
	cfg         config.Config

	priorityOpsCh chan *externalapi.Operation

	entries        []sealedEntry
	nextPriorityId uint64
}

// sealedEntry tags one accepted operation with enough to reconstruct its
// ExecutedTransaction/ExecutedPriorityOperation row once its block seals;
// entries is kept in exactly the append order BlockBuilder's own pending
// Operations slice grows in, so entries[i] always describes
// block.Operations[i] (an Open Question decision: spec.md's Operation
// type carries no id of its own, so this ordering is the only available
// correlation between a sealed block and the requests that produced it).
type sealedEntry struct {
	isPriority bool
	txHash     externalapi.Hash
	priorityId uint64
}

// New returns an App ready to Run. deps.Config is validated up front so a
// misconfigured process fails before any goroutine starts.
func New(deps Dependencies) (*App, error) {
	if err := deps.Config.Validate(); err != nil {
		return nil, err
	}
	return &App{
		store:         deps.Store,
		tree:          deps.Tree,
		mempool:       deps.Mempool,
		builder:       deps.Builder,
		submitter:     deps.Submitter,
		eventSource:   deps.EventSource,
		cfg:           deps.Config,
		priorityOpsCh: make(chan *externalapi.Operation, 64),
	}, nil
}

// SubmitTx admits a wallet transaction to the mempool, the entrypoint an
// external API surface (out of scope per spec.md §1) would call.
func (a *App) SubmitTx(tx *externalapi.Tx, lifetime time.Duration) error {
	return a.mempool.Insert(tx, lifetime)
}

// Run launches the block-production, chain-submitter and event-source
// tasks and blocks until ctx is canceled and every task has drained its
// current unit of work.
func (a *App) Run(ctx context.Context) {
	spawn := panics.GoroutineWrapperFunc(log)

	var wg sync.WaitGroup
	wg.Add(3)
	spawn(func() {
		defer wg.Done()
		a.blockProductionLoop(ctx)
	})
	spawn(func() {
		defer wg.Done()
		a.chainSubmitterLoop(ctx)
	})
	spawn(func() {
		defer wg.Done()
		a.eventSourceLoop(ctx)
	})

	<-ctx.Done()
	log.Infof("shutdown requested, waiting for tasks to drain their current unit of work")
	wg.Wait()
	log.Infof("all tasks exited cleanly")
}

// blockProductionLoop is the single goroutine that owns BlockBuilder
// (and, transitively, StateEngine/the account tree): spec.md §5 forbids
// any other task from touching this state concurrently.
func (a *App) blockProductionLoop(ctx context.Context) {
	ticker := time.NewTicker(a.cfg.MiniblockIterationInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			if block, updates, ok := a.builder.Flush(); ok {
				a.commitSealedBlock(block, updates)
			}
			return

		case op := <-a.priorityOpsCh:
			a.acceptPriority(op)

		case <-ticker.C:
			a.drainMempool()
			if block, updates := a.builder.Tick(); block != nil {
				a.commitSealedBlock(block, updates)
			}
			metrics.MempoolSize.WithLabelValues("pending").Set(float64(a.mempool.Size()))
		}
	}
}

// acceptPriority feeds one EventSource-reported deposit or full exit into
// BlockBuilder; spec.md §4.2 guarantees this never fails once accepted on
// chain, so there is no reject path to reconcile here unlike AcceptTx.
func (a *App) acceptPriority(op *externalapi.Operation) {
	sealed, updates := a.builder.AcceptPriority(op)
	if sealed != nil {
		a.commitSealedBlock(sealed, updates)
	}
	a.entries = append(a.entries, sealedEntry{isPriority: true, priorityId: a.nextPriorityId})
	a.nextPriorityId++
	metrics.PriorityOpsObserved.WithLabelValues(op.Kind.String()).Inc()
}

// drainMempool pulls proposals off Mempool until either it is empty or
// accepting one seals the pending block, reconciling each attempt back
// into Mempool per spec.md §4.3.
func (a *App) drainMempool() {
	for {
		tx, ok := a.mempool.NextForBlock()
		if !ok {
			return
		}

		sealed, updates, err := a.builder.AcceptTx(tx)
		if sealed != nil {
			a.commitSealedBlock(sealed, updates)
		}

		outcome := model.ReconcileOutcome{Hash: tx.Hash, Kind: classifyOutcome(err)}
		a.mempool.Reconcile([]model.ReconcileOutcome{outcome}, sealed != nil)

		if err == nil {
			a.entries = append(a.entries, sealedEntry{txHash: tx.Hash})
		}
		if sealed != nil {
			return
		}
	}
}

// classifyOutcome maps a StateEngine error onto spec.md §4.3's
// reconciliation taxonomy. Balance and nonce-shaped failures are
// retryable (a pending deposit or an earlier tx in the same account's
// queue may still land), everything else is terminal.
func classifyOutcome(err error) model.ReconcileKind {
	if err == nil {
		return model.Included
	}
	switch {
	case errors.Is(err, externalapi.NonceMismatch),
		errors.Is(err, externalapi.InsufficientBalance),
		errors.Is(err, externalapi.FeeTooLow):
		return model.TemporaryRejected
	default:
		return model.RejectedCompletely
	}
}

// commitSealedBlock persists a freshly sealed block and its account tree
// cache, then hands off to the anchor-chain submission pipeline. Called
// only from the block-production goroutine.
func (a *App) commitSealedBlock(block *externalapi.Block, updates []*externalapi.AccountUpdate) {
	executedTxs := make([]model.ExecutedTransaction, 0, len(a.entries))
	executedPriority := make([]model.ExecutedPriorityOperation, 0, len(a.entries))
	for i, entry := range a.entries {
		if i >= len(block.Operations) {
			break
		}
		payload := pubdata.EncodeOperation(block.Operations[i])
		if entry.isPriority {
			executedPriority = append(executedPriority, model.ExecutedPriorityOperation{
				BlockNumber:  block.BlockNumber,
				PriorityOpId: entry.priorityId,
				RawPayload:   payload,
			})
			continue
		}
		executedTxs = append(executedTxs, model.ExecutedTransaction{
			BlockNumber: block.BlockNumber,
			BlockIndex:  uint32(i),
			TxHash:      entry.txHash,
			Success:     true,
			RawPayload:  payload,
		})
	}
	a.entries = nil

	if err := a.store.SaveBlock(block, updates, executedTxs, executedPriority); err != nil {
		log.Criticalf("failed to persist sealed block %d: %s", block.BlockNumber, err)
		panic(err)
	}
	if err := a.store.SaveTreeCache(block.BlockNumber, a.tree.SaveCache(block.BlockNumber)); err != nil {
		log.Warnf("failed to persist tree cache for block %d: %s", block.BlockNumber, err)
	}
	metrics.BlocksBuilt.Inc()
	log.Infof("sealed block %d (%d operations, root %s)", block.BlockNumber, len(block.Operations), block.NewRoot)

	a.enqueueDueSubmitterOperations(block.BlockNumber)
	a.adjustIterationBound()
}

// enqueueDueSubmitterOperations hands the single Commit/Prove/Execute
// action aggregator.NextDue reports as due against the freshly sealed tip,
// if any, to the submitter's queue: at most one newly enqueued row per
// call (spec.md §4.7's priority order decides which).
func (a *App) enqueueDueSubmitterOperations(sealedTip uint32) {
	op, err := aggregator.NextDue(a.store, sealedTip)
	if err != nil {
		log.Warnf("failed to compute next due submitter operation: %s", err)
		return
	}
	if op == nil {
		return
	}
	op.Payload = anchorchain.EncodeCall(op.Kind, op.FromBlock, op.ToBlock, op.Payload)
	if err := a.submitter.Enqueue(op); err != nil {
		log.Warnf("failed to enqueue submitter operation %d: %s", op.Id, err)
	}
}

// adjustIterationBound switches BlockBuilder between spec.md §6's
// max_miniblock_iterations and fast_miniblock_iterations cadences: the
// faster bound applies whenever a priority operation EventSource has
// already surfaced is still waiting in priorityOpsCh to be accepted, so
// deposits land sooner instead of waiting out a full normal-load cycle.
func (a *App) adjustIterationBound() {
	if len(a.priorityOpsCh) > 0 {
		a.builder.SetIterationBound(a.cfg.FastMiniblockIterations)
		return
	}
	a.builder.SetIterationBound(a.cfg.MaxMiniblockIterations)
}

// chainSubmitterLoop drives ChainSubmitter.Step on its own ticker,
// entirely decoupled from the block-production goroutine: it only reads
// durable state through PersistenceStore and the anchor chain client.
func (a *App) chainSubmitterLoop(ctx context.Context) {
	ticker := time.NewTicker(a.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			confirmed, err := a.submitter.Step()
			if err != nil {
				log.Warnf("chain submitter step failed: %s", err)
				continue
			}
			if confirmed > 0 {
				metrics.SubmitterConfirmed.WithLabelValues("total").Add(float64(confirmed))
			}
			if rows, err := a.store.LoadUnconfirmedSubmitterOperations(); err == nil {
				metrics.SubmitterInFlight.Set(float64(len(rows)))
			}
		}
	}
}

// eventSourceLoop drives EventSource.Step on its own ticker, pushing
// newly confirmed priority operations into the block-production
// goroutine over priorityOpsCh rather than calling BlockBuilder itself.
func (a *App) eventSourceLoop(ctx context.Context) {
	ticker := time.NewTicker(a.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			newOps, confirmations, err := a.eventSource.Step()
			if err != nil {
				log.Warnf("event source step failed: %s", err)
				continue
			}
			for _, c := range confirmations {
				log.Infof("anchor chain confirms submitter operation %d (final hash %s)", c.SubmitterOperationId, c.FinalHash)
			}
			for _, op := range newOps {
				select {
				case a.priorityOpsCh <- op:
				case <-ctx.Done():
					return
				}
			}
		}
	}
}
