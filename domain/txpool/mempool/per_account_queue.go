package mempool

import (
	"time"

	"github.com/dagrollup/rollupcore/domain/rollup/model/externalapi"
)

// envelope is spec.md §4.3's "Mempool Tx Envelope": a queued transaction
// plus the bookkeeping needed to evict it once its lifetime elapses.
type envelope struct {
	tx         *externalapi.Tx
	acceptedAt time.Time
	lifetime   time.Duration
}

func (e *envelope) expired(now time.Time) bool {
	return !e.acceptedAt.Add(e.lifetime).After(now)
}

// perAccountQueue is spec.md §4.3's PerAccountQueue: an ordered map of
// nonce to envelope plus the three nonce cursors that track the
// contiguous, already-selected, and gap-free frontiers of the queue.
type perAccountQueue struct {
	byNonce map[uint32]*envelope

	minimalNonce         uint32
	currentNonce         uint32
	nextNonceWithoutGaps uint32
	reputation           int
}

func newPerAccountQueue(startNonce uint32) *perAccountQueue {
	return &perAccountQueue{
		byNonce:              make(map[uint32]*envelope),
		minimalNonce:         startNonce,
		currentNonce:         startNonce,
		nextNonceWithoutGaps: startNonce,
	}
}

// headEnvelope returns the envelope BlockBuilder would next select from
// this queue, i.e. the one at currentNonce.
func (q *perAccountQueue) headEnvelope() (*envelope, bool) {
	e, ok := q.byNonce[q.currentNonce]
	return e, ok
}

// advanceNextNonceWithoutGaps pushes nextNonceWithoutGaps forward past
// every nonce already queued consecutively (spec.md §4.3 insert step 5).
func (q *perAccountQueue) advanceNextNonceWithoutGaps() {
	for {
		if _, ok := q.byNonce[q.nextNonceWithoutGaps]; !ok {
			return
		}
		q.nextNonceWithoutGaps++
	}
}

// lowerFrontierAfterEviction pulls nextNonceWithoutGaps back to at most
// evictedNonce (or 0, had evictedNonce been 0) so the frontier never
// claims a nonce past one that was just evicted (spec.md §4.3's "lower
// next_nonce_without_gaps to the evicted nonce − 1").
func (q *perAccountQueue) lowerFrontierAfterEviction(evictedNonce uint32) {
	target := uint32(0)
	if evictedNonce > 0 {
		target = evictedNonce - 1
	}
	if target < q.nextNonceWithoutGaps {
		q.nextNonceWithoutGaps = target
	}
}

// isEmpty reports whether the queue holds no envelopes at all.
func (q *perAccountQueue) isEmpty() bool {
	return len(q.byNonce) == 0
}
