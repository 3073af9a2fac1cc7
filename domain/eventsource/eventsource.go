// Package eventsource implements spec.md §4.8's EventSource: a
// ticker-driven poll of the anchor chain for new priority operations
// (Deposit, FullExit) and confirmations of the submitter's Commit/Prove/
// Execute transactions, with a durable cursor so a restart never re-emits
// an already-confirmed priority op. Grounded on the teacher's own
// "protocol" flow goroutines (single-channel-in, typed-notification-out
// loops) generalized from gossiped DAG blocks to a polled anchor-chain
// cursor, the same cooperative caller-driven shape domain/ethsender uses.
package eventsource

import (
	"github.com/pkg/errors"

	"github.com/dagrollup/rollupcore/domain/rollup/model"
	"github.com/dagrollup/rollupcore/domain/rollup/model/externalapi"
	"github.com/dagrollup/rollupcore/internal/logger"
)

var log, _ = logger.Get(logger.SubsystemTags.EVTS)

// Store is the narrow slice of model.PersistenceStore EventSource needs.
type Store interface {
	SaveEventCursor(blockNumber uint64) error
	LoadEventCursor() (uint64, error)
}

// Source is the production model.EventSource.
type Source struct {
	store   Store
	watcher model.AnchorChainWatcher
	cfg     Config

	// emitted deduplicates priority ops already returned from Step this
	// process lifetime; spec.md §4.8 only promises "at most once per
	// restart cycle", so this set is intentionally not persisted.
	emitted map[externalapi.Hash]bool

	// unconfirmed indexes priority ops currently sitting between the
	// confirmed cursor and the chain tip, by the address that will
	// receive them. Rebuilt from scratch on every Step, since a reorg can
	// remove or reorder any of them before they clear WaitConfirmations.
	unconfirmed map[externalapi.Address][]*externalapi.Operation
}

var _ model.EventSource = (*Source)(nil)

// New returns a Source. It does not itself load the cursor; the first
// Step call does, so construction can never fail on a transient DB error.
func New(store Store, watcher model.AnchorChainWatcher, cfg Config) *Source {
	cfg.validate()
	return &Source{
		store:       store,
		watcher:     watcher,
		cfg:         cfg,
		emitted:     make(map[externalapi.Hash]bool),
		unconfirmed: make(map[externalapi.Address][]*externalapi.Operation),
	}
}

// Step implements model.EventSource.
func (s *Source) Step() ([]*externalapi.Operation, []model.ConfirmationEvent, error) {
	cursor, err := s.store.LoadEventCursor()
	if err != nil {
		return nil, nil, errors.Wrapf(err, "eventsource: loading cursor")
	}

	currentBlock, err := s.watcher.CurrentBlockNumber()
	if err != nil {
		return nil, nil, errors.Wrapf(err, "eventsource: reading current block")
	}

	newOps, err := s.drainConfirmed(cursor, currentBlock)
	if err != nil {
		return nil, nil, err
	}

	confirmations, err := s.refreshUnconfirmed(cursor, currentBlock)
	if err != nil {
		return nil, nil, err
	}

	return newOps, confirmations, nil
}

// drainConfirmed scans [cursor+1, safeHeight] (capped at MaxBlockRange),
// emits each not-yet-emitted priority op, and advances the persisted
// cursor. safeHeight is the highest block that has cleared
// WaitConfirmations.
func (s *Source) drainConfirmed(cursor, currentBlock uint64) ([]*externalapi.Operation, error) {
	if currentBlock < s.cfg.WaitConfirmations {
		return nil, nil // chain too young to have any confirmed blocks yet
	}
	safeHeight := currentBlock - s.cfg.WaitConfirmations
	if safeHeight <= cursor {
		return nil, nil // nothing new has reached confirmation depth
	}

	toBlock := safeHeight
	if toBlock-cursor > s.cfg.MaxBlockRange {
		toBlock = cursor + s.cfg.MaxBlockRange
	}
	fromBlock := cursor + 1

	events, err := s.watcher.PriorityOpsInRange(fromBlock, toBlock)
	if err != nil {
		return nil, errors.Wrapf(err, "eventsource: scanning priority ops %d-%d", fromBlock, toBlock)
	}

	var newOps []*externalapi.Operation
	for _, event := range events {
		key := priorityOpKey(event)
		if s.emitted[key] {
			continue
		}
		s.emitted[key] = true
		newOps = append(newOps, event.Op)
	}

	if err := s.store.SaveEventCursor(toBlock); err != nil {
		return nil, errors.Wrapf(err, "eventsource: persisting cursor at %d", toBlock)
	}
	return newOps, nil
}

// refreshUnconfirmed rescans (safeHeight, currentBlock] -- the window
// still subject to reorg -- rebuilding the in-flight index from scratch,
// and reports any submitter confirmations observed across the whole
// newly-visible range.
func (s *Source) refreshUnconfirmed(cursor, currentBlock uint64) ([]model.ConfirmationEvent, error) {
	safeHeight := uint64(0)
	if currentBlock >= s.cfg.WaitConfirmations {
		safeHeight = currentBlock - s.cfg.WaitConfirmations
	}
	tentativeFrom := safeHeight + 1
	if tentativeFrom > currentBlock {
		tentativeFrom = currentBlock + 1 // empty range
	}

	for addr := range s.unconfirmed {
		delete(s.unconfirmed, addr)
	}
	if tentativeFrom <= currentBlock {
		events, err := s.watcher.PriorityOpsInRange(tentativeFrom, currentBlock)
		if err != nil {
			return nil, errors.Wrapf(err, "eventsource: scanning tentative priority ops %d-%d", tentativeFrom, currentBlock)
		}
		for _, event := range events {
			addr, ok := priorityOpAddress(event.Op)
			if !ok {
				continue
			}
			s.unconfirmed[addr] = append(s.unconfirmed[addr], event.Op)
		}
	}

	scanFrom := cursor + 1
	if scanFrom > currentBlock {
		return nil, nil
	}
	confirmations, err := s.watcher.ConfirmationsInRange(scanFrom, currentBlock)
	if err != nil {
		return nil, errors.Wrapf(err, "eventsource: scanning confirmations %d-%d", scanFrom, currentBlock)
	}
	return confirmations, nil
}

// UnconfirmedFor implements model.EventSource.
func (s *Source) UnconfirmedFor(address externalapi.Address) []*externalapi.Operation {
	return append([]*externalapi.Operation(nil), s.unconfirmed[address]...)
}

// priorityOpKey identifies the anchor-chain log an event originated from,
// so the same deposit observed again (e.g. re-scanned within the
// tentative window across several polls before it clears
// WaitConfirmations) is recognized as the same event rather than a
// second deposit.
func priorityOpKey(event model.PriorityOpEvent) externalapi.Hash {
	buf := make([]byte, externalapi.HashSize+4)
	copy(buf, event.SourceTxHash[:])
	buf[externalapi.HashSize] = byte(event.LogIndex >> 24)
	buf[externalapi.HashSize+1] = byte(event.LogIndex >> 16)
	buf[externalapi.HashSize+2] = byte(event.LogIndex >> 8)
	buf[externalapi.HashSize+3] = byte(event.LogIndex)
	return externalapi.HashBytes(buf)
}

func priorityOpAddress(op *externalapi.Operation) (externalapi.Address, bool) {
	switch op.Kind {
	case externalapi.OpDeposit:
		return op.Deposit.ToAddress, true
	case externalapi.OpFullExit:
		return op.FullExit.OwnerAddress, true
	default:
		return externalapi.Address{}, false
	}
}
