// Package blockbuilder implements spec.md §4.4: pending-block lifecycle,
// chunk budgeting, and commitment-hash derivation. Grounded on the
// "insert, validate, seal" pipeline shape of
// domain/consensus/processes/blockprocessor, generalized from DAG blocks
// to the rollup's linear sealed-block sequence.
package blockbuilder

import (
	"time"

	"github.com/dagrollup/rollupcore/domain/rollup/model"
	"github.com/dagrollup/rollupcore/domain/rollup/model/externalapi"
	"github.com/dagrollup/rollupcore/domain/rollup/pubdata"
	"github.com/dagrollup/rollupcore/internal/logger"
)

var log, _ = logger.Get(logger.SubsystemTags.BLKB)

var _ model.BlockBuilder = (*Builder)(nil)

// Config carries the process-wide options spec.md §6 names for block
// sealing. None is defaulted: a zero-valued Config is refused by New,
// matching spec.md §6's "no operation-affecting option is silently
// defaulted; missing values are fatal at startup."
type Config struct {
	// AdmissibleChunkSizes is the operator's ascending list of allowed
	// block chunk sizes (spec.md §4.4).
	AdmissibleChunkSizes []uint32
	// IterationBound seals a pending block once its iteration counter
	// reaches this value (spec.md §4.4 sealing policy b).
	IterationBound uint32
	FeeAccountId   externalapi.AccountId
}

func (c Config) validate() {
	if len(c.AdmissibleChunkSizes) == 0 {
		log.Criticalf("blockbuilder: AdmissibleChunkSizes must be non-empty")
		panic("blockbuilder: AdmissibleChunkSizes must be non-empty")
	}
	for i := 1; i < len(c.AdmissibleChunkSizes); i++ {
		if c.AdmissibleChunkSizes[i] <= c.AdmissibleChunkSizes[i-1] {
			log.Criticalf("blockbuilder: AdmissibleChunkSizes must be strictly ascending")
			panic("blockbuilder: AdmissibleChunkSizes must be strictly ascending")
		}
	}
	if c.IterationBound == 0 {
		log.Criticalf("blockbuilder: IterationBound must be non-zero")
		panic("blockbuilder: IterationBound must be non-zero")
	}
}

func (c Config) maxChunkBudget() uint32 {
	return c.AdmissibleChunkSizes[len(c.AdmissibleChunkSizes)-1]
}

// Builder is the production model.BlockBuilder.
type Builder struct {
	stateEngine     model.StateEngine
	priorityApplier model.PriorityApplier
	config          Config
	now             func() time.Time

	nextBlockNumber   uint32
	lastRoot          externalapi.Hash
	lastPriorOpsAfter uint64

	pending        *externalapi.PendingBlock
	pendingUpdates []*externalapi.AccountUpdate
	pendingFees    []model.Fee
}

// New returns a Builder sealing blocks starting at firstBlockNumber atop
// genesisRoot, using se to apply wallet transactions, pa to apply priority
// operations, and cfg to govern chunk budgeting and sealing cadence.
func New(se model.StateEngine, pa model.PriorityApplier, cfg Config, firstBlockNumber uint32, genesisRoot externalapi.Hash) *Builder {
	cfg.validate()
	return &Builder{
		stateEngine:     se,
		priorityApplier: pa,
		config:          cfg,
		now:             time.Now,
		nextBlockNumber: firstBlockNumber,
		lastRoot:        genesisRoot,
	}
}

func (b *Builder) ensurePending() {
	if b.pending == nil {
		b.pending = externalapi.NewPendingBlock(b.lastRoot, b.config.maxChunkBudget(), b.lastPriorOpsAfter, b.now())
	}
}

// AcceptTx implements model.BlockBuilder.
func (b *Builder) AcceptTx(tx *externalapi.Tx) (*externalapi.Block, []*externalapi.AccountUpdate, error) {
	b.ensurePending()

	cost := tx.Op.ChunkCost()
	var sealedBlock *externalapi.Block
	var sealedUpdates []*externalapi.AccountUpdate
	if cost > b.pending.ChunksRemaining {
		sealedBlock, sealedUpdates = b.seal()
		b.ensurePending()
	}

	success, err := b.stateEngine.ApplyTx(tx)
	if err != nil {
		return sealedBlock, sealedUpdates, err
	}

	op := success.ResolvedOp
	if op == nil {
		op = &tx.Op
	}
	b.pending.Operations = append(b.pending.Operations, op)
	b.pending.ChunksUsed += cost
	b.pending.ChunksRemaining -= cost
	b.pendingUpdates = append(b.pendingUpdates, success.Updates...)
	if !success.Fee.IsZero() {
		b.pendingFees = append(b.pendingFees, model.Fee{Token: success.FeeToken, Amount: success.Fee})
	}

	return sealedBlock, append(sealedUpdates, success.Updates...), nil
}

// AcceptPriority implements model.BlockBuilder.
func (b *Builder) AcceptPriority(op *externalapi.Operation) (*externalapi.Block, []*externalapi.AccountUpdate) {
	b.ensurePending()

	cost := op.ChunkCost()
	var sealedBlock *externalapi.Block
	var sealedUpdates []*externalapi.AccountUpdate
	if cost > b.pending.ChunksRemaining {
		sealedBlock, sealedUpdates = b.seal()
		b.ensurePending()
	}

	success := b.priorityApplier.ApplyPriority(op)
	resolved := success.ResolvedOp
	if resolved == nil {
		resolved = op
	}
	b.pending.Operations = append(b.pending.Operations, resolved)
	b.pending.ChunksUsed += cost
	b.pending.ChunksRemaining -= cost
	b.pending.PriorOpsAfter++
	b.pendingUpdates = append(b.pendingUpdates, success.Updates...)

	return sealedBlock, append(sealedUpdates, success.Updates...)
}

// Tick implements model.BlockBuilder.
func (b *Builder) Tick() (*externalapi.Block, []*externalapi.AccountUpdate) {
	if b.pending == nil {
		return nil, nil
	}
	b.pending.IterationCount++
	if b.pending.IterationCount >= b.config.IterationBound {
		return b.seal()
	}
	return nil, nil
}

// Flush implements model.BlockBuilder.
func (b *Builder) Flush() (*externalapi.Block, []*externalapi.AccountUpdate, bool) {
	if b.pending == nil {
		return nil, nil, false
	}
	block, updates := b.seal()
	return block, updates, true
}

// SetIterationBound overrides the sealing iteration bound, letting the
// caller switch between spec.md §6's max_miniblock_iterations and
// fast_miniblock_iterations cadences (e.g. a shorter bound while priority
// operations are backlogged) without reconstructing the Builder.
func (b *Builder) SetIterationBound(bound uint32) {
	if bound == 0 {
		log.Criticalf("blockbuilder: IterationBound must be non-zero")
		panic("blockbuilder: IterationBound must be non-zero")
	}
	b.config.IterationBound = bound
}

// Pending implements model.BlockBuilder.
func (b *Builder) Pending() *externalapi.PendingBlock {
	if b.pending == nil {
		return nil
	}
	clone := *b.pending
	clone.Operations = append([]*externalapi.Operation(nil), b.pending.Operations...)
	return &clone
}

// seal closes out the current pending block: collects fees, resolves the
// final chunk size, derives the commitment hash, and advances the
// builder's book-keeping for the next block.
func (b *Builder) seal() (*externalapi.Block, []*externalapi.AccountUpdate) {
	feeUpdates := b.stateEngine.CollectFee(b.pendingFees, b.config.FeeAccountId)
	allUpdates := append(b.pendingUpdates, feeUpdates...)

	chunkSize := b.resolveChunkSize(b.pending.ChunksUsed)
	commitment := commitmentHash(b.nextBlockNumber, b.pending, chunkSize, b.config.FeeAccountId)
	newRoot := b.stateEngine.RootHash()

	block := &externalapi.Block{
		BlockNumber:    b.nextBlockNumber,
		PreviousRoot:   b.pending.PreviousRoot,
		NewRoot:        newRoot,
		FeeAccountId:   b.config.FeeAccountId,
		Operations:     b.pending.Operations,
		PriorOpsBefore: b.pending.PriorOpsBefore,
		PriorOpsAfter:  b.pending.PriorOpsAfter,
		ChunkSize:      chunkSize,
		Timestamp:      b.now(),
		CommitmentHash: commitment,
	}

	b.nextBlockNumber++
	b.lastRoot = newRoot
	b.lastPriorOpsAfter = b.pending.PriorOpsAfter
	b.pending = nil
	b.pendingUpdates = nil
	b.pendingFees = nil

	return block, allUpdates
}

// resolveChunkSize returns the smallest admissible chunk size covering
// used chunks (spec.md §4.4).
func (b *Builder) resolveChunkSize(used uint32) uint32 {
	for _, size := range b.config.AdmissibleChunkSizes {
		if size >= used {
			return size
		}
	}
	log.Warnf("chunk usage %d exceeds every admissible chunk size, sealing at the maximum", used)
	return b.config.maxChunkBudget()
}

// commitmentHash concatenates each operation's public-data encoding with
// the block header fields and derives a single rolling hash over the
// result (spec.md §4.4).
func commitmentHash(blockNumber uint32, pending *externalapi.PendingBlock, chunkSize uint32, feeAccountId externalapi.AccountId) externalapi.Hash {
	w := externalapi.NewHashWriter()

	var header [4 + 4 + 8 + 8]byte
	putUint32(header[0:4], blockNumber)
	putUint32(header[4:8], uint32(feeAccountId))
	putUint64(header[8:16], pending.PriorOpsBefore)
	putUint64(header[16:24], pending.PriorOpsAfter)
	_, _ = w.Write(header[:])
	_, _ = w.Write(pending.PreviousRoot[:])

	var chunkBuf [4]byte
	putUint32(chunkBuf[:], chunkSize)
	_, _ = w.Write(chunkBuf[:])

	for _, op := range pending.Operations {
		_, _ = w.Write(pubdata.EncodeOperation(op))
	}

	return w.Finalize()
}
