package stateengine

import (
	"testing"

	"github.com/dagrollup/rollupcore/domain/rollup/datastructures/merkletree"
	"github.com/dagrollup/rollupcore/domain/rollup/model"
	"github.com/dagrollup/rollupcore/domain/rollup/model/externalapi"
	"github.com/dagrollup/rollupcore/domain/sigverify"
)

func addr(b byte) externalapi.Address {
	return externalapi.BytesToAddress([]byte{b})
}

func pubKeyHash(b byte) externalapi.PubKeyHash {
	var h externalapi.PubKeyHash
	h[0] = b
	return h
}

func newTestEngine() *Engine {
	return New(merkletree.New(), sigverify.AlwaysValid{}, externalapi.AccountId(99))
}

func wrapTx(accountID externalapi.AccountId, op externalapi.Operation, signed bool) *externalapi.Tx {
	tx := &externalapi.Tx{Op: op, AccountId: accountID, Hash: externalapi.HashBytes([]byte("tx"))}
	if signed {
		tx.Signature = []byte("sig")
	}
	return tx
}

// TestLinearTransfersPerBlock reproduces spec.md §8 seed scenario 1:
// deposit, bind a key, withdraw, transfer-to-new, transfer, checking the
// literal balances the scenario calls out at each step.
func TestLinearTransfersPerBlock(t *testing.T) {
	e := newTestEngine()

	deposit := e.ApplyPriority(&externalapi.Operation{
		Kind:    externalapi.OpDeposit,
		Deposit: &externalapi.Deposit{ToAddress: addr(0x07), Token: 1, Amount: externalapi.AmountFromUint64(1000)},
	})
	acc0 := deposit.ResolvedOp.Deposit.ToAccountId
	if acc0 != 0 {
		t.Fatalf("expected account 0, got %d", acc0)
	}

	bindKeyTx := wrapTx(acc0, externalapi.Operation{
		Kind: externalapi.OpChangePubKey,
		ChangePubKey: &externalapi.ChangePubKey{
			AccountId: acc0, NewPubKeyHash: pubKeyHash(0xAA), Address: addr(0x07),
			Nonce: 0, FeeToken: 1, Fee: externalapi.AmountFromUint64(1), Signature: []byte("sig"),
		},
	}, false)
	if _, err := e.ApplyTx(bindKeyTx); err != nil {
		t.Fatalf("ChangePubKey failed: %v", err)
	}
	fees := []model.Fee{{Token: 1, Amount: externalapi.AmountFromUint64(1)}}
	e.CollectFee(fees, 0)

	withdraw := wrapTx(acc0, externalapi.Operation{
		Kind: externalapi.OpWithdraw,
		Withdraw: &externalapi.Withdraw{
			AccountId: acc0, ToAddress: addr(0x09), Token: 1,
			Amount: externalapi.AmountFromUint64(20), Fee: externalapi.AmountFromUint64(1), Nonce: 1,
		},
	}, true)
	if _, err := e.ApplyTx(withdraw); err != nil {
		t.Fatalf("Withdraw failed: %v", err)
	}
	e.CollectFee(fees, 0)

	if got := e.accounts.Get(acc0).BalanceOf(1); got != externalapi.AmountFromUint64(980) {
		t.Fatalf("after withdraw expected balance 980, got %s", got)
	}

	transferToNew := wrapTx(acc0, externalapi.Operation{
		Kind: externalapi.OpTransferToNew,
		TransferToNew: &externalapi.TransferToNew{
			From: acc0, ToAddress: addr(0x08), Token: 1,
			Amount: externalapi.AmountFromUint64(40), Fee: externalapi.AmountFromUint64(1), Nonce: 2,
		},
	}, true)
	success, err := e.ApplyTx(transferToNew)
	if err != nil {
		t.Fatalf("TransferToNew failed: %v", err)
	}
	e.CollectFee(fees, 0)
	acc1 := success.ResolvedOp.TransferToNew.To

	if got := e.accounts.Get(acc1).BalanceOf(1); got != externalapi.AmountFromUint64(40) {
		t.Fatalf("new account expected balance 40, got %s", got)
	}
	if got := e.accounts.Get(acc0).BalanceOf(1); got != externalapi.AmountFromUint64(940) {
		t.Fatalf("after transfer-to-new expected balance 940, got %s", got)
	}

	bindKey(t, e, acc1, addr(0x08), 0)

	transfer := wrapTx(acc1, externalapi.Operation{
		Kind: externalapi.OpTransfer,
		Transfer: &externalapi.Transfer{
			From: acc1, To: acc0, Token: 1,
			Amount: externalapi.AmountFromUint64(19), Fee: externalapi.AmountFromUint64(1), Nonce: 1,
		},
	}, true)
	if _, err := e.ApplyTx(transfer); err != nil {
		t.Fatalf("Transfer failed: %v", err)
	}
	e.CollectFee(fees, 0)

	if got := e.accounts.Get(acc0).BalanceOf(1); got != externalapi.AmountFromUint64(960) {
		t.Fatalf("account 0 expected balance 960, got %s", got)
	}
	if got := e.accounts.Get(acc1).BalanceOf(1); got != externalapi.AmountFromUint64(20) {
		t.Fatalf("account 1 expected balance 20, got %s", got)
	}
}

// TestApplyTxInvariant3 checks spec.md §8 invariant 3: sender balance
// decreases by exactly amount+fee, nonce increments by exactly one,
// recipient balance increases by exactly amount.
func TestApplyTxInvariant3(t *testing.T) {
	e := newTestEngine()
	dep := e.ApplyPriority(&externalapi.Operation{
		Kind:    externalapi.OpDeposit,
		Deposit: &externalapi.Deposit{ToAddress: addr(0x01), Token: 1, Amount: externalapi.AmountFromUint64(500)},
	})
	sender := dep.ResolvedOp.Deposit.ToAccountId

	dep2 := e.ApplyPriority(&externalapi.Operation{
		Kind:    externalapi.OpDeposit,
		Deposit: &externalapi.Deposit{ToAddress: addr(0x02), Token: 1, Amount: externalapi.AmountFromUint64(0)},
	})
	recipient := dep2.ResolvedOp.Deposit.ToAccountId

	bindKey(t, e, sender, addr(0x01), 0)
	bindKey(t, e, recipient, addr(0x02), 0)

	senderBefore := e.accounts.Get(sender).BalanceOf(1)
	senderNonceBefore := e.accounts.Get(sender).Nonce
	recipientBefore := e.accounts.Get(recipient).BalanceOf(1)

	amount := externalapi.AmountFromUint64(100)
	fee := externalapi.AmountFromUint64(2)
	tx := wrapTx(sender, externalapi.Operation{
		Kind: externalapi.OpTransfer,
		Transfer: &externalapi.Transfer{
			From: sender, To: recipient, Token: 1, Amount: amount, Fee: fee, Nonce: senderNonceBefore,
		},
	}, true)
	if _, err := e.ApplyTx(tx); err != nil {
		t.Fatalf("Transfer failed: %v", err)
	}

	wantSenderBalance := senderBefore.Sub(amount).Sub(fee)
	if got := e.accounts.Get(sender).BalanceOf(1); got != wantSenderBalance {
		t.Fatalf("sender balance = %s, want %s", got, wantSenderBalance)
	}
	if got := e.accounts.Get(sender).Nonce; got != senderNonceBefore+1 {
		t.Fatalf("sender nonce = %d, want %d", got, senderNonceBefore+1)
	}
	wantRecipientBalance := recipientBefore.Add(amount)
	if got := e.accounts.Get(recipient).BalanceOf(1); got != wantRecipientBalance {
		t.Fatalf("recipient balance = %s, want %s", got, wantRecipientBalance)
	}
}

func bindKey(t *testing.T, e *Engine, id externalapi.AccountId, address externalapi.Address, nonce uint32) {
	t.Helper()
	tx := wrapTx(id, externalapi.Operation{
		Kind: externalapi.OpChangePubKey,
		ChangePubKey: &externalapi.ChangePubKey{
			AccountId: id, NewPubKeyHash: pubKeyHash(byte(id) + 1), Address: address,
			Nonce: nonce, FeeToken: 1, Fee: externalapi.ZeroAmount(), Signature: []byte("sig"),
		},
	}, false)
	if _, err := e.ApplyTx(tx); err != nil {
		t.Fatalf("bindKey(%d) failed: %v", id, err)
	}
}

// TestBatchRollbackRestoresExactPreState reproduces spec.md §8 seed
// scenario 5 and invariant 2: a batch that fails partway through leaves
// the account map byte-identical to its pre-batch state.
func TestBatchRollbackRestoresExactPreState(t *testing.T) {
	e := newTestEngine()
	dep := e.ApplyPriority(&externalapi.Operation{
		Kind:    externalapi.OpDeposit,
		Deposit: &externalapi.Deposit{ToAddress: addr(0x03), Token: 1, Amount: externalapi.AmountFromUint64(99)},
	})
	acc := dep.ResolvedOp.Deposit.ToAccountId
	bindKey(t, e, acc, addr(0x03), 0)

	preRoot := e.RootHash()
	preBalance := e.accounts.Get(acc).BalanceOf(1)
	preNonce := e.accounts.Get(acc).Nonce

	batch := []*externalapi.Tx{
		wrapTx(acc, externalapi.Operation{
			Kind: externalapi.OpWithdraw,
			Withdraw: &externalapi.Withdraw{
				AccountId: acc, ToAddress: addr(0x04), Token: 1,
				Amount: externalapi.AmountFromUint64(48), Fee: externalapi.AmountFromUint64(2), Nonce: preNonce,
			},
		}, true),
		wrapTx(acc, externalapi.Operation{
			Kind: externalapi.OpWithdraw,
			Withdraw: &externalapi.Withdraw{
				AccountId: acc, ToAddress: addr(0x05), Token: 1,
				Amount: externalapi.AmountFromUint64(47), Fee: externalapi.AmountFromUint64(3), Nonce: preNonce + 1,
			},
		}, true),
	}

	_, err := e.ApplyBatch(batch)
	if err == nil {
		t.Fatal("expected batch to fail")
	}
	batchErr, ok := err.(*externalapi.BatchError)
	if !ok {
		t.Fatalf("expected *externalapi.BatchError, got %T", err)
	}
	if batchErr.FailedIndex != 2 {
		t.Fatalf("expected failure at index 2, got %d", batchErr.FailedIndex)
	}

	if got := e.accounts.Get(acc).BalanceOf(1); got != preBalance {
		t.Fatalf("balance after failed batch = %s, want %s (unchanged)", got, preBalance)
	}
	if got := e.accounts.Get(acc).Nonce; got != preNonce {
		t.Fatalf("nonce after failed batch = %d, want %d (unchanged)", got, preNonce)
	}
	if got := e.RootHash(); got != preRoot {
		t.Fatalf("root hash after failed batch = %s, want %s (unchanged)", got, preRoot)
	}
}

// TestCloseIsDisabled checks the §9 Open Question (a) resolution: Close
// is always rejected, regardless of account state.
func TestCloseIsDisabled(t *testing.T) {
	e := newTestEngine()
	dep := e.ApplyPriority(&externalapi.Operation{
		Kind:    externalapi.OpDeposit,
		Deposit: &externalapi.Deposit{ToAddress: addr(0x06), Token: 1, Amount: externalapi.ZeroAmount()},
	})
	acc := dep.ResolvedOp.Deposit.ToAccountId
	bindKey(t, e, acc, addr(0x06), 0)

	tx := wrapTx(acc, externalapi.Operation{
		Kind:  externalapi.OpClose,
		Close: &externalapi.Close{AccountId: acc, Nonce: 1},
	}, true)
	_, err := e.ApplyTx(tx)
	if err != externalapi.OperationDisabled {
		t.Fatalf("expected OperationDisabled, got %v", err)
	}
}
