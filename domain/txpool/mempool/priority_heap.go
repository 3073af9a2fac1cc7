package mempool

import (
	"container/heap"

	"github.com/dagrollup/rollupcore/domain/rollup/model/externalapi"
)

// accountPrioItem is one account's entry in the priority heap: the
// account id and the fee of the envelope currently at its queue's
// currentNonce. Grounded on mining.txPrioItem's (tx, fee) shape from
// mining/mining.go, generalized from per-transaction to per-account
// priority and extended with an index so entries can be re-keyed or
// evicted in place, not just popped.
type accountPrioItem struct {
	accountId externalapi.AccountId
	fee       externalapi.Amount
	index     int
}

// accountPriorityQueue implements heap.Interface as a max-heap ordered
// by fee, same Len/Less/Swap/Push/Pop shape as mining.txPriorityQueue.
type accountPriorityQueue struct {
	items []*accountPrioItem
}

func (pq *accountPriorityQueue) Len() int { return len(pq.items) }

func (pq *accountPriorityQueue) Less(i, j int) bool {
	return pq.items[i].fee.Cmp(pq.items[j].fee) > 0
}

func (pq *accountPriorityQueue) Swap(i, j int) {
	pq.items[i], pq.items[j] = pq.items[j], pq.items[i]
	pq.items[i].index = i
	pq.items[j].index = j
}

func (pq *accountPriorityQueue) Push(x interface{}) {
	item := x.(*accountPrioItem)
	item.index = len(pq.items)
	pq.items = append(pq.items, item)
}

func (pq *accountPriorityQueue) Pop() interface{} {
	n := len(pq.items)
	item := pq.items[n-1]
	pq.items[n-1] = nil
	pq.items = pq.items[0 : n-1]
	item.index = -1
	return item
}

// priorityHeap wraps accountPriorityQueue with an index from AccountId to
// its live heap item, letting the mempool re-key or evict an account in
// O(log n) as its queue's head fee changes (spec.md §4.3's `priority:
// MaxHeap<AccountId keyed by PerAccountQueue.head_fee>`).
type priorityHeap struct {
	pq      accountPriorityQueue
	byAccId map[externalapi.AccountId]*accountPrioItem
}

func newPriorityHeap() *priorityHeap {
	h := &priorityHeap{byAccId: make(map[externalapi.AccountId]*accountPrioItem)}
	heap.Init(&h.pq)
	return h
}

// update inserts or re-keys accountId's entry to fee.
func (h *priorityHeap) update(accountId externalapi.AccountId, fee externalapi.Amount) {
	if item, ok := h.byAccId[accountId]; ok {
		item.fee = fee
		heap.Fix(&h.pq, item.index)
		return
	}
	item := &accountPrioItem{accountId: accountId, fee: fee}
	heap.Push(&h.pq, item)
	h.byAccId[accountId] = item
}

// remove evicts accountId's entry, if any.
func (h *priorityHeap) remove(accountId externalapi.AccountId) {
	item, ok := h.byAccId[accountId]
	if !ok {
		return
	}
	heap.Remove(&h.pq, item.index)
	delete(h.byAccId, accountId)
}

// peek returns the account with the highest head fee, if any.
func (h *priorityHeap) peek() (externalapi.AccountId, bool) {
	if h.pq.Len() == 0 {
		return 0, false
	}
	return h.pq.items[0].accountId, true
}
