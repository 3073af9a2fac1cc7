package pubdata

import (
	"testing"

	"github.com/dagrollup/rollupcore/domain/rollup/model/externalapi"
)

func TestPackFloatRoundTripsExactForSmallValues(t *testing.T) {
	for _, v := range []uint64{0, 1, 42, 1000, 1 << 20} {
		amount := externalapi.AmountFromUint64(v)
		packed := packFloat(amount, amountMantissaBits, amountExponentBits)
		got := unpackFloat(packed, amountMantissaBits, amountExponentBits)
		if got != amount {
			t.Fatalf("packFloat round trip for %d: got %s", v, got)
		}
	}
}

func TestEncodeDecodeDeposit(t *testing.T) {
	d := &externalapi.Deposit{
		ToAccountId: 7,
		ToAddress:   externalapi.BytesToAddress([]byte{0x07}),
		Token:       1,
		Amount:      externalapi.AmountFromUint64(1000),
	}
	op := &externalapi.Operation{Kind: externalapi.OpDeposit, Deposit: d}

	encoded := EncodeOperation(op)
	decoded, consumed, err := DecodeOperation(encoded)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if consumed != len(encoded) {
		t.Fatalf("consumed %d, want %d", consumed, len(encoded))
	}
	if decoded.Deposit.ToAccountId != d.ToAccountId || decoded.Deposit.Token != d.Token {
		t.Fatalf("decoded deposit mismatch: %+v", decoded.Deposit)
	}
	if decoded.Deposit.Amount != d.Amount {
		t.Fatalf("decoded amount = %s, want %s", decoded.Deposit.Amount, d.Amount)
	}
	if decoded.Deposit.ToAddress != d.ToAddress {
		t.Fatalf("decoded address mismatch")
	}
}

func TestEncodeDecodeTransfer(t *testing.T) {
	tr := &externalapi.Transfer{
		From: 1, To: 2, Token: 3,
		Amount: externalapi.AmountFromUint64(500),
		Fee:    externalapi.AmountFromUint64(5),
		Nonce:  9,
	}
	op := &externalapi.Operation{Kind: externalapi.OpTransfer, Transfer: tr}

	encoded := EncodeOperation(op)
	decoded, consumed, err := DecodeOperation(encoded)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if consumed != len(encoded) {
		t.Fatalf("consumed %d, want %d", consumed, len(encoded))
	}
	got := decoded.Transfer
	if got.From != tr.From || got.To != tr.To || got.Token != tr.Token {
		t.Fatalf("decoded transfer mismatch: %+v", got)
	}
	if got.Amount != tr.Amount {
		t.Fatalf("decoded amount = %s, want %s", got.Amount, tr.Amount)
	}
	if got.Fee != tr.Fee {
		t.Fatalf("decoded fee = %s, want %s", got.Fee, tr.Fee)
	}
}

func TestEncodeOperationPrefixesTypeByte(t *testing.T) {
	op := &externalapi.Operation{Kind: externalapi.OpWithdraw, Withdraw: &externalapi.Withdraw{
		AccountId: 1, ToAddress: externalapi.BytesToAddress([]byte{0x02}), Token: 1,
		Amount: externalapi.AmountFromUint64(10), Fee: externalapi.AmountFromUint64(1), Nonce: 0,
	}}
	encoded := EncodeOperation(op)
	if encoded[0] != byte(externalapi.OpWithdraw) {
		t.Fatalf("expected type byte %d, got %d", externalapi.OpWithdraw, encoded[0])
	}
}
