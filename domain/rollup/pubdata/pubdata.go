// Package pubdata implements spec.md §6's public-data byte layout: each
// operation's fixed-width type prefix followed by per-type fields,
// concatenated per block for BlockBuilder's commitment hash and replayed
// by DataRestorer. Field widths for the packed float encoding are
// resolved from original_source/src/franklincircuit/src/circuit.rs's
// AMOUNT_*/FEE_*_BIT_WIDTH constants, since spec.md leaves exact bit
// widths unspecified beyond the byte-count table.
package pubdata

import (
	"encoding/binary"
	"math/big"

	"github.com/dagrollup/rollupcore/domain/rollup/model/externalapi"
)

const (
	amountMantissaBits = 35
	amountExponentBits = 5
	feeMantissaBits    = 11
	feeExponentBits    = 5
	packBase           = 10
)

// putUint32 / putUint64 are little local helpers kept next to the codec
// that uses them, matching the teacher's habit of not importing a binary
// helper package for one-off big-endian writes.
func putUint32(buf []byte, v uint32) { binary.BigEndian.PutUint32(buf, v) }

// packFloat encodes amount as a (mantissa, exponent) pair occupying
// totalBits, value = mantissa * packBase^exponent, choosing the largest
// exponent that keeps the mantissa representable in mantissaBits.
func packFloat(amount externalapi.Amount, mantissaBits, exponentBits int) []byte {
	totalBits := mantissaBits + exponentBits
	out := make([]byte, (totalBits+7)/8)

	raw := amount.Bytes32()
	val := new(big.Int).SetBytes(raw[:])

	maxMantissa := new(big.Int).Lsh(big.NewInt(1), uint(mantissaBits))
	maxMantissa.Sub(maxMantissa, big.NewInt(1))
	base := big.NewInt(packBase)

	exponent := 0
	mantissa := new(big.Int).Set(val)
	for mantissa.Cmp(maxMantissa) > 0 && exponent < (1<<exponentBits)-1 {
		mantissa.Div(mantissa, base)
		exponent++
	}

	packed := new(big.Int).Lsh(mantissa, uint(exponentBits))
	packed.Or(packed, big.NewInt(int64(exponent)))

	packedBytes := packed.Bytes()
	copy(out[len(out)-len(packedBytes):], packedBytes)
	return out
}

// unpackFloat reverses packFloat.
func unpackFloat(data []byte, mantissaBits, exponentBits int) externalapi.Amount {
	packed := new(big.Int).SetBytes(data)
	expMask := new(big.Int).Lsh(big.NewInt(1), uint(exponentBits))
	expMask.Sub(expMask, big.NewInt(1))
	exponent := new(big.Int).And(packed, expMask).Int64()
	mantissa := new(big.Int).Rsh(packed, uint(exponentBits))

	value := new(big.Int).Set(mantissa)
	base := big.NewInt(packBase)
	for i := int64(0); i < exponent; i++ {
		value.Mul(value, base)
	}

	var padded [32]byte
	b := value.Bytes()
	copy(padded[32-len(b):], b)
	return externalapi.AmountFromBig20(padded[:])
}

// EncodeOperation returns op's fixed-width public-data byte layout
// (spec.md §6). Addresses of already-known accounts are still written
// here (the builder always has them at hand). Fields the layout does not
// carry decode as zero values; during restore, ApplyRestored fills in
// only the nonce, from live state.
func EncodeOperation(op *externalapi.Operation) []byte {
	switch op.Kind {
	case externalapi.OpDeposit:
		d := op.Deposit
		buf := make([]byte, 1+4+4+16+20)
		buf[0] = byte(externalapi.OpDeposit)
		putUint32(buf[1:5], uint32(d.ToAccountId))
		putUint32(buf[5:9], uint32(d.Token))
		amt := d.Amount.Bytes32()
		copy(buf[9:25], amt[16:32])
		copy(buf[25:45], d.ToAddress[:])
		return buf

	case externalapi.OpTransfer:
		tr := op.Transfer
		buf := make([]byte, 1+4+4+5+4+2)
		buf[0] = byte(externalapi.OpTransfer)
		putUint32(buf[1:5], uint32(tr.From))
		putUint32(buf[5:9], uint32(tr.Token))
		copy(buf[9:14], packFloat(tr.Amount, amountMantissaBits, amountExponentBits))
		putUint32(buf[14:18], uint32(tr.To))
		copy(buf[18:20], packFloat(tr.Fee, feeMantissaBits, feeExponentBits))
		return buf

	case externalapi.OpTransferToNew:
		tr := op.TransferToNew
		buf := make([]byte, 1+4+4+5+20+4+2)
		buf[0] = byte(externalapi.OpTransferToNew)
		putUint32(buf[1:5], uint32(tr.From))
		putUint32(buf[5:9], uint32(tr.Token))
		copy(buf[9:14], packFloat(tr.Amount, amountMantissaBits, amountExponentBits))
		copy(buf[14:34], tr.ToAddress[:])
		putUint32(buf[34:38], uint32(tr.To))
		copy(buf[38:40], packFloat(tr.Fee, feeMantissaBits, feeExponentBits))
		return buf

	case externalapi.OpWithdraw:
		w := op.Withdraw
		buf := make([]byte, 1+4+4+16+2+20)
		buf[0] = byte(externalapi.OpWithdraw)
		putUint32(buf[1:5], uint32(w.AccountId))
		putUint32(buf[5:9], uint32(w.Token))
		amt := w.Amount.Bytes32()
		copy(buf[9:25], amt[16:32])
		copy(buf[25:27], packFloat(w.Fee, feeMantissaBits, feeExponentBits))
		copy(buf[27:47], w.ToAddress[:])
		return buf

	case externalapi.OpFullExit:
		fx := op.FullExit
		buf := make([]byte, 1+4+20+4+16)
		buf[0] = byte(externalapi.OpFullExit)
		putUint32(buf[1:5], uint32(fx.AccountId))
		copy(buf[5:25], fx.OwnerAddress[:])
		putUint32(buf[25:29], uint32(fx.Token))
		amt := fx.WithdrawAmount.Bytes32()
		copy(buf[29:45], amt[16:32])
		return buf

	case externalapi.OpChangePubKey:
		cpk := op.ChangePubKey
		buf := make([]byte, 1+4+20+20+4+4+2)
		buf[0] = byte(externalapi.OpChangePubKey)
		putUint32(buf[1:5], uint32(cpk.AccountId))
		copy(buf[5:25], cpk.NewPubKeyHash[:])
		copy(buf[25:45], cpk.Address[:])
		putUint32(buf[45:49], cpk.Nonce)
		putUint32(buf[49:53], uint32(cpk.FeeToken))
		copy(buf[53:55], packFloat(cpk.Fee, feeMantissaBits, feeExponentBits))
		return buf

	case externalapi.OpForcedExit:
		fe := op.ForcedExit
		buf := make([]byte, 1+4+4+4+2)
		buf[0] = byte(externalapi.OpForcedExit)
		putUint32(buf[1:5], uint32(fe.InitiatorId))
		putUint32(buf[5:9], uint32(fe.Target))
		putUint32(buf[9:13], uint32(fe.Token))
		copy(buf[13:15], packFloat(fe.Fee, feeMantissaBits, feeExponentBits))
		return buf

	case externalapi.OpSwap:
		sw := op.Swap
		buf := make([]byte, 1+4+4+4+4+4+5+5+2)
		buf[0] = byte(externalapi.OpSwap)
		putUint32(buf[1:5], uint32(sw.SubmitterId))
		putUint32(buf[5:9], uint32(sw.OrderA.AccountId))
		putUint32(buf[9:13], uint32(sw.OrderB.AccountId))
		putUint32(buf[13:17], uint32(sw.OrderA.TokenSell))
		putUint32(buf[17:21], uint32(sw.OrderB.TokenSell))
		copy(buf[21:26], packFloat(sw.AmountA, amountMantissaBits, amountExponentBits))
		copy(buf[26:31], packFloat(sw.AmountB, amountMantissaBits, amountExponentBits))
		copy(buf[31:33], packFloat(sw.Fee, feeMantissaBits, feeExponentBits))
		return buf

	case externalapi.OpMintNFT:
		m := op.MintNFT
		buf := make([]byte, 1+4+4+32+4+2)
		buf[0] = byte(externalapi.OpMintNFT)
		putUint32(buf[1:5], uint32(m.CreatorId))
		putUint32(buf[5:9], uint32(m.RecipientId))
		copy(buf[9:41], m.ContentHash[:])
		putUint32(buf[41:45], uint32(m.MintedTokenId))
		copy(buf[45:47], packFloat(m.Fee, feeMantissaBits, feeExponentBits))
		return buf

	case externalapi.OpWithdrawNFT:
		w := op.WithdrawNFT
		buf := make([]byte, 1+4+4+20+4+2)
		buf[0] = byte(externalapi.OpWithdrawNFT)
		putUint32(buf[1:5], uint32(w.AccountId))
		putUint32(buf[5:9], uint32(w.Token))
		copy(buf[9:29], w.ToAddress[:])
		putUint32(buf[29:33], uint32(w.FeeToken))
		copy(buf[33:35], packFloat(w.Fee, feeMantissaBits, feeExponentBits))
		return buf

	case externalapi.OpClose:
		c := op.Close
		buf := make([]byte, 1+4)
		buf[0] = byte(externalapi.OpClose)
		putUint32(buf[1:5], uint32(c.AccountId))
		return buf

	default:
		return []byte{byte(op.Kind)}
	}
}
