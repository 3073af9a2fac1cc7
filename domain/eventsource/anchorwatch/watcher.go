// Package anchorwatch implements model.AnchorChainWatcher: scanning the
// anchor chain's event logs for priority operations and submitter
// confirmations. Mirrors domain/ethsender/anchorchain.Client's shape (a
// thin address/timeout wrapper over a narrow Transport interface,
// grounded on infrastructure/network/netadapter/client/rpcclient.go) so
// the two anchor-chain-facing packages read the same way even though
// they serve different components.
package anchorwatch

import (
	"encoding/binary"

	"github.com/pkg/errors"

	"github.com/dagrollup/rollupcore/domain/rollup/model"
	"github.com/dagrollup/rollupcore/domain/rollup/model/externalapi"
	"github.com/dagrollup/rollupcore/internal/logger"
)

var log, _ = logger.Get(logger.SubsystemTags.EVTS)

// LogTransport is the minimal wire-level contract Watcher needs: query
// the chain's current height and pull raw log entries for a block range
// and topic filter.
type LogTransport interface {
	BlockNumber() (uint64, error)
	FilterLogs(fromBlock, toBlock uint64, topic string) (logs [][]byte, err error)
}

const (
	topicDeposit        = "Deposit"
	topicFullExit       = "FullExit"
	topicBlockConfirmed = "BlockConfirmed"
)

// Watcher is the production model.AnchorChainWatcher.
type Watcher struct {
	transport LogTransport
	address   string
}

var _ model.AnchorChainWatcher = (*Watcher)(nil)

// NewWatcher returns a Watcher reading logs over transport.
func NewWatcher(address string, transport LogTransport) *Watcher {
	log.Infof("anchorwatch: watching %s", address)
	return &Watcher{transport: transport, address: address}
}

// CurrentBlockNumber implements model.AnchorChainWatcher.
func (w *Watcher) CurrentBlockNumber() (uint64, error) {
	height, err := w.transport.BlockNumber()
	if err != nil {
		return 0, errors.Wrapf(err, "anchorwatch: reading current block number")
	}
	return height, nil
}

// PriorityOpsInRange implements model.AnchorChainWatcher, scanning both
// the Deposit and FullExit log topics.
func (w *Watcher) PriorityOpsInRange(fromBlock, toBlock uint64) ([]model.PriorityOpEvent, error) {
	var events []model.PriorityOpEvent

	depositLogs, err := w.transport.FilterLogs(fromBlock, toBlock, topicDeposit)
	if err != nil {
		return nil, errors.Wrapf(err, "anchorwatch: filtering %s logs %d-%d", topicDeposit, fromBlock, toBlock)
	}
	for i, raw := range depositLogs {
		event, err := decodeDepositLog(raw)
		if err != nil {
			return nil, errors.Wrapf(err, "anchorwatch: decoding deposit log %d", i)
		}
		events = append(events, event)
	}

	fullExitLogs, err := w.transport.FilterLogs(fromBlock, toBlock, topicFullExit)
	if err != nil {
		return nil, errors.Wrapf(err, "anchorwatch: filtering %s logs %d-%d", topicFullExit, fromBlock, toBlock)
	}
	for i, raw := range fullExitLogs {
		event, err := decodeFullExitLog(raw)
		if err != nil {
			return nil, errors.Wrapf(err, "anchorwatch: decoding full-exit log %d", i)
		}
		events = append(events, event)
	}

	return events, nil
}

// ConfirmationsInRange implements model.AnchorChainWatcher.
func (w *Watcher) ConfirmationsInRange(fromBlock, toBlock uint64) ([]model.ConfirmationEvent, error) {
	logs, err := w.transport.FilterLogs(fromBlock, toBlock, topicBlockConfirmed)
	if err != nil {
		return nil, errors.Wrapf(err, "anchorwatch: filtering %s logs %d-%d", topicBlockConfirmed, fromBlock, toBlock)
	}
	confirmations := make([]model.ConfirmationEvent, 0, len(logs))
	for i, raw := range logs {
		event, err := decodeConfirmationLog(raw)
		if err != nil {
			return nil, errors.Wrapf(err, "anchorwatch: decoding confirmation log %d", i)
		}
		confirmations = append(confirmations, event)
	}
	return confirmations, nil
}

// Log layout: a deliberately simple, self-describing binary framing (the
// anchor contract's own event ABI is out of scope, spec.md §1), mirroring
// domain/ethsender/anchorchain.EncodeCall's "no ABI, just fixed fields"
// choice.
//
//	Deposit:  block_number(8), tx_hash(32), log_index(4), to_address(20), token(4), amount(32)
//	FullExit: block_number(8), tx_hash(32), log_index(4), owner_address(20), token(4)
//	Confirmed: submitter_operation_id(8), final_hash(32)

func decodeDepositLog(raw []byte) (model.PriorityOpEvent, error) {
	const minLen = 8 + 32 + 4 + 20 + 4 + 32
	if len(raw) < minLen {
		return model.PriorityOpEvent{}, errors.Errorf("anchorwatch: deposit log too short (%d bytes)", len(raw))
	}
	blockNumber := binary.BigEndian.Uint64(raw[0:8])
	txHash := externalapi.BytesToHash(raw[8:40])
	logIndex := binary.BigEndian.Uint32(raw[40:44])
	toAddress := externalapi.BytesToAddress(raw[44:64])
	token := binary.BigEndian.Uint32(raw[64:68])
	amount := externalapi.AmountFromBig20(raw[68:100])

	return model.PriorityOpEvent{
		BlockNumber:  blockNumber,
		SourceTxHash: txHash,
		LogIndex:     logIndex,
		Op: &externalapi.Operation{
			Kind: externalapi.OpDeposit,
			Deposit: &externalapi.Deposit{
				ToAddress: toAddress,
				Token:     externalapi.TokenId(token),
				Amount:    amount,
			},
		},
	}, nil
}

func decodeFullExitLog(raw []byte) (model.PriorityOpEvent, error) {
	const minLen = 8 + 32 + 4 + 20 + 4
	if len(raw) < minLen {
		return model.PriorityOpEvent{}, errors.Errorf("anchorwatch: full-exit log too short (%d bytes)", len(raw))
	}
	blockNumber := binary.BigEndian.Uint64(raw[0:8])
	txHash := externalapi.BytesToHash(raw[8:40])
	logIndex := binary.BigEndian.Uint32(raw[40:44])
	ownerAddress := externalapi.BytesToAddress(raw[44:64])
	token := binary.BigEndian.Uint32(raw[64:68])

	return model.PriorityOpEvent{
		BlockNumber:  blockNumber,
		SourceTxHash: txHash,
		LogIndex:     logIndex,
		Op: &externalapi.Operation{
			Kind: externalapi.OpFullExit,
			FullExit: &externalapi.FullExit{
				OwnerAddress: ownerAddress,
				Token:        externalapi.TokenId(token),
			},
		},
	}, nil
}

func decodeConfirmationLog(raw []byte) (model.ConfirmationEvent, error) {
	const wantLen = 8 + 32
	if len(raw) != wantLen {
		return model.ConfirmationEvent{}, errors.Errorf("anchorwatch: confirmation log wrong length (%d bytes)", len(raw))
	}
	id := binary.BigEndian.Uint64(raw[0:8])
	hash := externalapi.BytesToHash(raw[8:40])
	return model.ConfirmationEvent{
		SubmitterOperationId: externalapi.SubmitterOperationId(id),
		FinalHash:            hash,
	}, nil
}
