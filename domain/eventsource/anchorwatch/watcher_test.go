package anchorwatch

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/dagrollup/rollupcore/domain/rollup/model"
	"github.com/dagrollup/rollupcore/domain/rollup/model/externalapi"
)

type fakeTransport struct {
	blockNumber uint64
	logs        map[string][][]byte
}

func (t *fakeTransport) BlockNumber() (uint64, error) { return t.blockNumber, nil }

func (t *fakeTransport) FilterLogs(fromBlock, toBlock uint64, topic string) ([][]byte, error) {
	return t.logs[topic], nil
}

func encodeDepositLog(blockNumber uint64, txHash externalapi.Hash, logIndex uint32, to externalapi.Address, token uint32, amount uint64) []byte {
	buf := make([]byte, 8+32+4+20+4+32)
	binary.BigEndian.PutUint64(buf[0:8], blockNumber)
	copy(buf[8:40], txHash[:])
	binary.BigEndian.PutUint32(buf[40:44], logIndex)
	copy(buf[44:64], to[:])
	binary.BigEndian.PutUint32(buf[64:68], token)
	amt := externalapi.AmountFromUint64(amount).Bytes32()
	copy(buf[68:100], amt[:])
	return buf
}

func encodeFullExitLog(blockNumber uint64, txHash externalapi.Hash, logIndex uint32, owner externalapi.Address, token uint32) []byte {
	buf := make([]byte, 8+32+4+20+4)
	binary.BigEndian.PutUint64(buf[0:8], blockNumber)
	copy(buf[8:40], txHash[:])
	binary.BigEndian.PutUint32(buf[40:44], logIndex)
	copy(buf[44:64], owner[:])
	binary.BigEndian.PutUint32(buf[64:68], token)
	return buf
}

func encodeConfirmationLog(id uint64, hash externalapi.Hash) []byte {
	buf := make([]byte, 8+32)
	binary.BigEndian.PutUint64(buf[0:8], id)
	copy(buf[8:40], hash[:])
	return buf
}

func TestPriorityOpsInRangeDecodesDepositAndFullExit(t *testing.T) {
	txHash := externalapi.BytesToHash([]byte{0xaa})
	to := externalapi.BytesToAddress([]byte{0x01})
	owner := externalapi.BytesToAddress([]byte{0x02})

	transport := &fakeTransport{
		blockNumber: 100,
		logs: map[string][][]byte{
			topicDeposit:  {encodeDepositLog(5, txHash, 0, to, 7, 1000)},
			topicFullExit: {encodeFullExitLog(6, txHash, 1, owner, 9)},
		},
	}
	watcher := NewWatcher("anchor", transport)

	events, err := watcher.PriorityOpsInRange(1, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}

	deposit := events[0]
	if deposit.BlockNumber != 5 || deposit.LogIndex != 0 || !deposit.SourceTxHash.Equal(txHash) {
		t.Fatalf("unexpected deposit event header: %+v", deposit)
	}
	if deposit.Op.Kind != externalapi.OpDeposit {
		t.Fatalf("expected OpDeposit, got %v", deposit.Op.Kind)
	}
	if deposit.Op.Deposit.ToAddress != to || deposit.Op.Deposit.Token != externalapi.TokenId(7) {
		t.Fatalf("unexpected deposit payload: %+v", deposit.Op.Deposit)
	}
	if deposit.Op.Deposit.Amount.Cmp(externalapi.AmountFromUint64(1000)) != 0 {
		t.Fatalf("unexpected deposit amount: %s", deposit.Op.Deposit.Amount)
	}

	fullExit := events[1]
	if fullExit.BlockNumber != 6 || fullExit.LogIndex != 1 {
		t.Fatalf("unexpected full-exit event header: %+v", fullExit)
	}
	if fullExit.Op.Kind != externalapi.OpFullExit {
		t.Fatalf("expected OpFullExit, got %v", fullExit.Op.Kind)
	}
	if fullExit.Op.FullExit.OwnerAddress != owner || fullExit.Op.FullExit.Token != externalapi.TokenId(9) {
		t.Fatalf("unexpected full-exit payload: %+v", fullExit.Op.FullExit)
	}
}

func TestConfirmationsInRangeDecodesLog(t *testing.T) {
	finalHash := externalapi.BytesToHash([]byte{0xbb})
	transport := &fakeTransport{
		blockNumber: 100,
		logs: map[string][][]byte{
			topicBlockConfirmed: {encodeConfirmationLog(42, finalHash)},
		},
	}
	watcher := NewWatcher("anchor", transport)

	confirmations, err := watcher.ConfirmationsInRange(1, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(confirmations) != 1 {
		t.Fatalf("expected 1 confirmation, got %d", len(confirmations))
	}
	got := confirmations[0]
	want := model.ConfirmationEvent{SubmitterOperationId: externalapi.SubmitterOperationId(42), FinalHash: finalHash}
	if got != want {
		t.Fatalf("expected %+v, got %+v", want, got)
	}
}

func TestDecodeDepositLogRejectsShortInput(t *testing.T) {
	_, err := decodeDepositLog(bytes.Repeat([]byte{0}, 10))
	if err == nil {
		t.Fatal("expected error decoding a truncated deposit log")
	}
}

func TestDecodeConfirmationLogRejectsWrongLength(t *testing.T) {
	_, err := decodeConfirmationLog(bytes.Repeat([]byte{0}, 41))
	if err == nil {
		t.Fatal("expected error decoding a malformed confirmation log")
	}
}
