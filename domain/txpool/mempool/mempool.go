// Package mempool implements spec.md §4.3: per-account nonce-indexed
// transaction queues, fee-priority selection across accounts,
// replacement-by-fee, lifetime eviction, and batch-outcome
// reconciliation. Grounded on the all-transactions-map-plus-fee-ordered-
// heap shape of domain/miningmanager/mempool/transactions_pool.go and
// mining/mining.go, generalized from outpoint-chained Bitcoin-style
// transactions to nonce-gapped account transactions; the literal
// reconciliation semantics (Included/ValidButNotIncluded/
// TemporaryRejected/RejectedCompletely, lifetime halving) follow
// original_source/plasma/server/src/mem_pool.rs, the direct original of
// this component.
package mempool

import (
	"sync"
	"time"

	"github.com/dagrollup/rollupcore/domain/rollup/model"
	"github.com/dagrollup/rollupcore/domain/rollup/model/externalapi"
	"github.com/dagrollup/rollupcore/internal/logger"
)

var log, _ = logger.Get(logger.SubsystemTags.MEMP)

var _ model.Mempool = (*Pool)(nil)

// Config carries the operator-visible limits spec.md §4.3 names. None is
// defaulted: a zero-valued Config is refused by New, matching spec.md
// §6's "no operation-affecting option is silently defaulted."
type Config struct {
	// MaxPerAccount caps the number of envelopes a single account's
	// queue may hold at once.
	MaxPerAccount int
	// MaxGap caps how far past next_nonce_without_gaps a new nonce may
	// land before it is rejected as NonceTooFarAhead.
	MaxGap uint32
	// DefaultLifetime is the eviction lifetime applied when Insert is
	// called without an explicit override.
	DefaultLifetime time.Duration
}

func (c Config) validate() {
	if c.MaxPerAccount <= 0 {
		log.Criticalf("mempool: MaxPerAccount must be positive")
		panic("mempool: MaxPerAccount must be positive")
	}
	if c.MaxGap == 0 {
		log.Criticalf("mempool: MaxGap must be non-zero")
		panic("mempool: MaxGap must be non-zero")
	}
	if c.DefaultLifetime <= 0 {
		log.Criticalf("mempool: DefaultLifetime must be positive")
		panic("mempool: DefaultLifetime must be positive")
	}
}

// location pinpoints a dedup-tracked transaction's home queue and nonce.
type location struct {
	accountId externalapi.AccountId
	nonce     uint32
}

// Pool is the production model.Mempool.
type Pool struct {
	mu sync.Mutex

	config Config
	now    func() time.Time

	queues map[externalapi.AccountId]*perAccountQueue
	heap   *priorityHeap
	dedup  map[externalapi.Hash]location
	size   int
}

// New returns an empty Pool governed by cfg.
func New(cfg Config) *Pool {
	cfg.validate()
	return &Pool{
		config: cfg,
		now:    time.Now,
		queues: make(map[externalapi.AccountId]*perAccountQueue),
		heap:   newPriorityHeap(),
		dedup:  make(map[externalapi.Hash]location),
	}
}

// Size implements model.Mempool.
func (p *Pool) Size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.size
}

// Insert implements model.Mempool (spec.md §4.3 insertion contract).
func (p *Pool) Insert(tx *externalapi.Tx, lifetime time.Duration) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if lifetime <= 0 {
		lifetime = p.config.DefaultLifetime
	}

	if _, ok := p.dedup[tx.Hash]; ok {
		return DuplicateTx
	}

	queue, ok := p.queues[tx.AccountId]
	if !ok {
		queue = newPerAccountQueue(tx.Nonce)
		p.queues[tx.AccountId] = queue
	}

	now := p.now()

	if existing, ok := queue.byNonce[tx.Nonce]; ok {
		if !tx.Fee.GreaterThan(existing.tx.Fee) {
			return UnderpricedReplacement
		}
		delete(p.dedup, existing.tx.Hash)
		queue.byNonce[tx.Nonce] = &envelope{tx: tx, acceptedAt: now, lifetime: lifetime}
		p.dedup[tx.Hash] = location{accountId: tx.AccountId, nonce: tx.Nonce}
		p.refreshHeadPriority(tx.AccountId, queue)
		return nil
	}

	if tx.Nonce < queue.minimalNonce {
		return NonceTooLow
	}
	if len(queue.byNonce) >= p.config.MaxPerAccount {
		return TooMany
	}
	if tx.Nonce > queue.nextNonceWithoutGaps+p.config.MaxGap {
		return NonceTooFarAhead
	}

	queue.byNonce[tx.Nonce] = &envelope{tx: tx, acceptedAt: now, lifetime: lifetime}
	p.dedup[tx.Hash] = location{accountId: tx.AccountId, nonce: tx.Nonce}
	p.size++

	if tx.Nonce == queue.nextNonceWithoutGaps {
		queue.advanceNextNonceWithoutGaps()
	}
	p.refreshHeadPriority(tx.AccountId, queue)

	return nil
}

// refreshHeadPriority re-keys or evicts accountId's heap entry to match
// the fee of the envelope currently at its queue's currentNonce (spec.md
// §4.3 insert step 6 and the NextForBlock re-keying step).
func (p *Pool) refreshHeadPriority(accountId externalapi.AccountId, queue *perAccountQueue) {
	if head, ok := queue.headEnvelope(); ok {
		p.heap.update(accountId, head.tx.Fee)
		return
	}
	p.heap.remove(accountId)
}

// NextForBlock implements model.ProposalSource/model.Mempool (spec.md
// §4.3 selection contract).
func (p *Pool) NextForBlock() (*externalapi.Tx, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	accountId, ok := p.heap.peek()
	if !ok {
		return nil, false
	}
	queue := p.queues[accountId]
	head, ok := queue.headEnvelope()
	if !ok {
		// Should not happen if the heap is kept in sync, but fail safe
		// rather than hand back a stale pointer.
		p.heap.remove(accountId)
		return nil, false
	}

	queue.currentNonce++
	p.refreshHeadPriority(accountId, queue)

	return head.tx, true
}

// Reconcile implements model.Mempool (spec.md §4.3 reconciliation
// contract).
func (p *Pool) Reconcile(outcomes []model.ReconcileOutcome, blockSealed bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	touched := make(map[externalapi.AccountId]struct{})
	now := p.now()

	for _, outcome := range outcomes {
		loc, ok := p.dedup[outcome.Hash]
		if !ok {
			continue
		}
		queue := p.queues[loc.accountId]
		touched[loc.accountId] = struct{}{}

		switch outcome.Kind {
		case model.Included:
			delete(queue.byNonce, loc.nonce)
			p.size--
			delete(p.dedup, outcome.Hash)
			queue.minimalNonce = loc.nonce + 1
			queue.currentNonce = queue.minimalNonce

		case model.ValidButNotIncluded:
			if loc.nonce <= queue.currentNonce {
				queue.currentNonce = loc.nonce
			}

		case model.TemporaryRejected:
			env := queue.byNonce[loc.nonce]
			remaining := env.acceptedAt.Add(env.lifetime).Sub(now)
			env.acceptedAt = now
			env.lifetime = remaining / 2
			if env.lifetime <= 0 {
				delete(queue.byNonce, loc.nonce)
				p.size--
				delete(p.dedup, outcome.Hash)
				queue.lowerFrontierAfterEviction(loc.nonce)
			}

		case model.RejectedCompletely:
			delete(queue.byNonce, loc.nonce)
			p.size--
			delete(p.dedup, outcome.Hash)
			queue.lowerFrontierAfterEviction(loc.nonce)
		}
	}

	for accountId := range touched {
		p.orderAndClear(accountId, now)
	}
}

// orderAndClear implements spec.md §4.3's post-reconciliation pass:
// evict every expired envelope in the account's queue and recompute
// next_nonce_without_gaps as the first missing nonce at or above
// minimal_nonce.
func (p *Pool) orderAndClear(accountId externalapi.AccountId, now time.Time) {
	queue, ok := p.queues[accountId]
	if !ok {
		return
	}

	for nonce, env := range queue.byNonce {
		if env.expired(now) {
			delete(queue.byNonce, nonce)
			p.size--
			delete(p.dedup, env.tx.Hash)
		}
	}

	next := queue.minimalNonce
	for {
		if _, ok := queue.byNonce[next]; !ok {
			break
		}
		next++
	}
	queue.nextNonceWithoutGaps = next

	if queue.isEmpty() {
		delete(p.queues, accountId)
		p.heap.remove(accountId)
		return
	}
	p.refreshHeadPriority(accountId, queue)
}
