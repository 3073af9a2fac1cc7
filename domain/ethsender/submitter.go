// Package ethsender implements spec.md §4.7's ChainSubmitter: a
// single-threaded, poll-driven component that orders, signs, persists,
// sends, monitors and re-prices the anchor-chain transactions carrying
// Commit/Prove/Execute aggregated actions. Grounded on
// domain/rollup/processes/blockbuilder's cooperative Tick-driven shape
// (no internal goroutines of its own; a caller drives Step on a timer)
// and on domain/txpool/mempool's reconciliation pattern of folding a
// batch outcome back into durable per-key state one row at a time.
package ethsender

import (
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/dagrollup/rollupcore/domain/rollup/model"
	"github.com/dagrollup/rollupcore/domain/rollup/model/externalapi"
	"github.com/dagrollup/rollupcore/internal/logger"
)

var log, _ = logger.Get(logger.SubsystemTags.SUBM)

// rateLimitMarkers are substrings spec.md §4.7 step 6 and §7 call for
// detecting a rate-limited response "by a substring match on the
// transport error" rather than a typed error, since anchor-chain RPC
// libraries do not agree on one.
var rateLimitMarkers = []string{"rate limit", "too many requests", "-32005"}

func isRateLimited(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range rateLimitMarkers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

// Store is the narrow slice of model.PersistenceStore the submitter
// needs, kept separate the way BlockBuilder depends on the narrow
// ProposalSource/PriorityApplier interfaces rather than the whole
// PersistenceStore.
type Store interface {
	SaveSubmitterOperation(op *externalapi.SubmitterOperation) error
	LoadUnconfirmedSubmitterOperations() ([]*externalapi.SubmitterOperation, error)
	AppendSentHash(id externalapi.SubmitterOperationId, hash externalapi.Hash) error
	ConfirmSubmitterOperation(id externalapi.SubmitterOperationId, finalHash externalapi.Hash) error
}

// Submitter is the production model.ChainSubmitter.
type Submitter struct {
	store    Store
	client   model.AnchorChainClient
	signer   model.AnchorChainSigner
	adjuster *GasAdjuster
	cfg      Config

	nextNonce        uint64
	rateLimitedUntil time.Time
	now              func() time.Time
}

var _ model.ChainSubmitter = (*Submitter)(nil)

// New returns a Submitter. startNonce is the next nonce to assign a newly
// initialized row; callers recover it at startup from the anchor chain's
// own account-nonce query, which is outside this package's concerns.
func New(store Store, client model.AnchorChainClient, signer model.AnchorChainSigner, cfg Config, startNonce uint64) *Submitter {
	cfg.validate()
	return &Submitter{
		store:     store,
		client:    client,
		signer:    signer,
		adjuster:  NewGasAdjuster(client),
		cfg:       cfg,
		nextNonce: startNonce,
		now:       time.Now,
	}
}

// Enqueue implements model.ChainSubmitter: it durably records a brand-new
// aggregated action with no anchor-chain attempt yet (spec.md §3:
// sent_hashes empty means never yet dispatched), admitting it to the FIFO
// queue via infrastructure/db/storage's eth_op_unprocessed bookkeeping.
func (s *Submitter) Enqueue(op *externalapi.SubmitterOperation) error {
	if len(op.SentHashes) != 0 {
		return errors.Errorf("ethsender: Enqueue called with %d existing sent hashes", len(op.SentHashes))
	}
	return s.store.SaveSubmitterOperation(op)
}

// Step implements model.ChainSubmitter: one iteration of the main loop
// (spec.md §4.7 steps 1-6).
func (s *Submitter) Step() (confirmed int, err error) {
	if s.now().Before(s.rateLimitedUntil) {
		return 0, nil
	}

	rows, err := s.store.LoadUnconfirmedSubmitterOperations()
	if err != nil {
		return 0, errors.Wrapf(err, "ethsender: loading unconfirmed rows")
	}

	groups := byKindFIFO(rows)
	unprocessed, inFlight := splitByDispatch(groups)

	if err := s.initializeQueued(unprocessed, len(inFlight)); err != nil {
		return 0, err
	}

	return s.pollInFlight(groups, inFlight)
}

func splitByDispatch(groups map[externalapi.SubmitterOperationKind][]*externalapi.SubmitterOperation) (unprocessed, inFlight []*externalapi.SubmitterOperation) {
	for _, group := range groups {
		for _, row := range group {
			if row.IsPersisted() {
				inFlight = append(inFlight, row)
			} else {
				unprocessed = append(unprocessed, row)
			}
		}
	}
	return unprocessed, inFlight
}

// initializeQueued admits as many unprocessed rows as fit under
// MaxInFlight (spec.md §4.7 step 2), in kind-priority order.
func (s *Submitter) initializeQueued(unprocessed []*externalapi.SubmitterOperation, currentInFlight int) error {
	ordered := flattenByPriority(byKindFIFO(unprocessed))
	slots := s.cfg.MaxInFlight - currentInFlight
	for i := 0; i < slots && i < len(ordered); i++ {
		if err := s.initializeOne(ordered[i]); err != nil {
			return err
		}
	}
	return nil
}

func (s *Submitter) initializeOne(row *externalapi.SubmitterOperation) error {
	currentBlock, err := s.client.CurrentBlockNumber()
	if err != nil {
		return errors.Wrapf(err, "ethsender: reading current block before initializing row %d", row.Id)
	}
	gasPrice, err := s.adjuster.InitialPrice()
	if err != nil {
		return errors.Wrapf(err, "ethsender: pricing row %d", row.Id)
	}

	row.Nonce = s.nextNonce
	row.LastDeadlineBlock = currentBlock + s.cfg.ExpectedWaitBlocks
	row.LastGasPrice = gasPrice

	// Persist {id, nonce, deadline, gas, payload} before signing, per
	// spec.md §4.7 step 2.
	if err := s.store.SaveSubmitterOperation(row); err != nil {
		return errors.Wrapf(err, "ethsender: persisting row %d before signing", row.Id)
	}

	gasLimit := s.gasLimitFor(row)
	signed, err := s.signer.Sign(row.Nonce, row.LastGasPrice, gasLimit, row.Payload)
	if err != nil {
		return errors.Wrapf(err, "ethsender: signing row %d", row.Id)
	}

	hash, sendErr := s.client.Send(signed)
	if sendErr != nil {
		log.Warnf("ethsender: send failed for row %d, treating as sent: %s", row.Id, sendErr)
	}
	if err := s.store.AppendSentHash(row.Id, hash); err != nil {
		return errors.Wrapf(err, "ethsender: recording sent hash for row %d", row.Id)
	}

	s.nextNonce++
	return nil
}

// gasLimitFor derives the gas limit for row from its kind and block
// range (spec.md §4.7's surcharge-table policy). Production wiring sets
// Config.GasLimit to anchorchain.GasLimit; kept as a function value
// rather than a direct import so this package does not depend on one
// concrete anchor-chain encoding.
func (s *Submitter) gasLimitFor(row *externalapi.SubmitterOperation) uint64 {
	limit := s.cfg.GasLimit(row.Kind, row.FromBlock, row.ToBlock)
	if limit == 0 {
		panic("ethsender: GasLimit returned 0 (fatal per spec.md §4.7)")
	}
	return limit
}

// pollInFlight implements spec.md §4.7 steps 3-6: check every in-flight
// row's sent hashes newest to oldest, confirm, supplement, or leave
// pending.
func (s *Submitter) pollInFlight(groups map[externalapi.SubmitterOperationKind][]*externalapi.SubmitterOperation, inFlight []*externalapi.SubmitterOperation) (confirmed int, err error) {
	currentBlock, err := s.client.CurrentBlockNumber()
	if err != nil {
		return 0, errors.Wrapf(err, "ethsender: reading current block for poll")
	}

	ordered := flattenByPriority(groupOnly(groups, inFlight))
	for _, row := range ordered {
		outcome, confirmedHash, err := s.evaluateRow(row, currentBlock)
		if err != nil {
			if isRateLimited(err) {
				s.rateLimitedUntil = s.now().Add(s.cfg.RateLimitBackoff)
				log.Warnf("ethsender: rate limited, backing off %s", s.cfg.RateLimitBackoff)
				return confirmed, nil
			}
			return confirmed, err
		}

		switch outcome {
		case outcomeCommitted:
			if !s.predecessorConfirmed(groups, row) {
				continue // treated as Pending to preserve anchor ordering (step 4)
			}
			if err := s.store.ConfirmSubmitterOperation(row.Id, confirmedHash); err != nil {
				return confirmed, errors.Wrapf(err, "ethsender: confirming row %d", row.Id)
			}
			row.Confirmed = true
			confirmed++
		case outcomeFailed:
			return confirmed, errors.Errorf("ethsender: row %d failed on anchor chain (fatal)", row.Id)
		case outcomeStuck:
			if err := s.supplement(row, currentBlock); err != nil {
				return confirmed, err
			}
		case outcomePending:
			// nothing to do this tick
		}
	}
	return confirmed, nil
}

func groupOnly(groups map[externalapi.SubmitterOperationKind][]*externalapi.SubmitterOperation, keep []*externalapi.SubmitterOperation) map[externalapi.SubmitterOperationKind][]*externalapi.SubmitterOperation {
	keepSet := make(map[externalapi.SubmitterOperationId]bool, len(keep))
	for _, row := range keep {
		keepSet[row.Id] = true
	}
	filtered := make(map[externalapi.SubmitterOperationKind][]*externalapi.SubmitterOperation)
	for kind, group := range groups {
		for _, row := range group {
			if keepSet[row.Id] {
				filtered[kind] = append(filtered[kind], row)
			}
		}
	}
	return filtered
}

type outcome int

const (
	outcomePending outcome = iota
	outcomeCommitted
	outcomeStuck
	outcomeFailed
)

// evaluateRow implements spec.md §4.7 step 3's status table, querying
// recorded hashes from newest to oldest. A supplement appends a new hash
// to the same row without removing the old one, since only one of the
// hashes sharing that nonce can ever be mined; a success or failure on
// any of them settles the row regardless of whether a newer, still-unknown
// hash also exists. Only once every recorded hash comes back unknown is
// the row's deadline consulted to decide Stuck vs Pending.
func (s *Submitter) evaluateRow(row *externalapi.SubmitterOperation, currentBlock uint64) (outcome, externalapi.Hash, error) {
	for i := len(row.SentHashes) - 1; i >= 0; i-- {
		hash := row.SentHashes[i]
		status, confirmations, err := s.client.Status(hash)
		if err != nil {
			return outcomePending, externalapi.Hash{}, err
		}
		switch status {
		case model.TxStatusSuccess:
			if confirmations >= s.cfg.WaitConfirmations {
				return outcomeCommitted, hash, nil
			}
			return outcomePending, externalapi.Hash{}, nil
		case model.TxStatusFailure:
			if confirmations >= s.cfg.WaitConfirmations {
				return outcomeFailed, hash, nil
			}
			return outcomePending, externalapi.Hash{}, nil
		case model.TxStatusUnknown:
			continue
		}
	}
	if currentBlock >= row.LastDeadlineBlock {
		return outcomeStuck, externalapi.Hash{}, nil
	}
	return outcomePending, externalapi.Hash{}, nil
}

// predecessorConfirmed implements spec.md §4.7 step 4: a row may only be
// confirmed once the same-kind row immediately before it (lower id, not
// yet confirmed) has already landed.
func (s *Submitter) predecessorConfirmed(groups map[externalapi.SubmitterOperationKind][]*externalapi.SubmitterOperation, row *externalapi.SubmitterOperation) bool {
	for _, candidate := range groups[row.Kind] {
		if candidate.Id < row.Id && !candidate.Confirmed {
			return false
		}
	}
	return true
}

// supplement implements spec.md §4.7 step 5: persist a new deadline and
// higher gas price under the same nonce and payload, sign, resend, and
// then append the hash Send returned. The new hash is not persisted
// before the resend.
func (s *Submitter) supplement(row *externalapi.SubmitterOperation, currentBlock uint64) error {
	newPrice, err := s.adjuster.SupplementPrice(row.LastGasPrice)
	if err != nil {
		return errors.Wrapf(err, "ethsender: pricing supplement for row %d", row.Id)
	}

	row.LastDeadlineBlock = currentBlock + s.cfg.ExpectedWaitBlocks
	row.LastGasPrice = newPrice
	if err := s.store.SaveSubmitterOperation(row); err != nil {
		return errors.Wrapf(err, "ethsender: persisting supplement for row %d", row.Id)
	}

	gasLimit := s.gasLimitFor(row)
	signed, err := s.signer.Sign(row.Nonce, row.LastGasPrice, gasLimit, row.Payload)
	if err != nil {
		return errors.Wrapf(err, "ethsender: signing supplement for row %d", row.Id)
	}

	hash, sendErr := s.client.Send(signed)
	if sendErr != nil {
		log.Warnf("ethsender: resend failed for row %d, treating as sent: %s", row.Id, sendErr)
	}
	if err := s.store.AppendSentHash(row.Id, hash); err != nil {
		return errors.Wrapf(err, "ethsender: recording supplement hash for row %d", row.Id)
	}
	return nil
}
