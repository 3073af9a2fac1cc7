package pubdata

import (
	"encoding/binary"

	"github.com/dagrollup/rollupcore/domain/rollup/model/externalapi"
)

func getUint32(b []byte) uint32 { return binary.BigEndian.Uint32(b) }

// DecodeOperation parses one operation from the head of data, returning
// the parsed operation and the number of bytes consumed. Fields the
// layout does not carry (nonces among them) are left at their zero
// value; during restore, ApplyRestored fills in only the nonce, from live
// state (spec.md §4.5).
func DecodeOperation(data []byte) (*externalapi.Operation, int, error) {
	if len(data) == 0 {
		return nil, 0, externalapi.UnknownToken
	}
	kind := externalapi.OperationKind(data[0])

	switch kind {
	case externalapi.OpDeposit:
		const width = 1 + 4 + 4 + 16 + 20
		if len(data) < width {
			return nil, 0, externalapi.UnknownToken
		}
		var amount [32]byte
		copy(amount[16:32], data[9:25])
		var addr externalapi.Address
		copy(addr[:], data[25:45])
		d := &externalapi.Deposit{
			ToAccountId: externalapi.AccountId(getUint32(data[1:5])),
			ToAddress:   addr,
			Token:       externalapi.TokenId(getUint32(data[5:9])),
			Amount:      externalapi.AmountFromBig20(amount[:]),
		}
		return &externalapi.Operation{Kind: kind, Deposit: d}, width, nil

	case externalapi.OpTransfer:
		const width = 1 + 4 + 4 + 5 + 4 + 2
		if len(data) < width {
			return nil, 0, externalapi.UnknownToken
		}
		tr := &externalapi.Transfer{
			From:   externalapi.AccountId(getUint32(data[1:5])),
			Token:  externalapi.TokenId(getUint32(data[5:9])),
			Amount: unpackFloat(data[9:14], amountMantissaBits, amountExponentBits),
			To:     externalapi.AccountId(getUint32(data[14:18])),
			Fee:    unpackFloat(data[18:20], feeMantissaBits, feeExponentBits),
		}
		return &externalapi.Operation{Kind: kind, Transfer: tr}, width, nil

	case externalapi.OpTransferToNew:
		const width = 1 + 4 + 4 + 5 + 20 + 4 + 2
		if len(data) < width {
			return nil, 0, externalapi.UnknownToken
		}
		var addr externalapi.Address
		copy(addr[:], data[14:34])
		tr := &externalapi.TransferToNew{
			From:      externalapi.AccountId(getUint32(data[1:5])),
			Token:     externalapi.TokenId(getUint32(data[5:9])),
			Amount:    unpackFloat(data[9:14], amountMantissaBits, amountExponentBits),
			ToAddress: addr,
			To:        externalapi.AccountId(getUint32(data[34:38])),
			Fee:       unpackFloat(data[38:40], feeMantissaBits, feeExponentBits),
		}
		return &externalapi.Operation{Kind: kind, TransferToNew: tr}, width, nil

	case externalapi.OpWithdraw:
		const width = 1 + 4 + 4 + 16 + 2 + 20
		if len(data) < width {
			return nil, 0, externalapi.UnknownToken
		}
		var amount [32]byte
		copy(amount[16:32], data[9:25])
		var addr externalapi.Address
		copy(addr[:], data[27:47])
		w := &externalapi.Withdraw{
			AccountId: externalapi.AccountId(getUint32(data[1:5])),
			Token:     externalapi.TokenId(getUint32(data[5:9])),
			Amount:    externalapi.AmountFromBig20(amount[:]),
			Fee:       unpackFloat(data[25:27], feeMantissaBits, feeExponentBits),
			ToAddress: addr,
		}
		return &externalapi.Operation{Kind: kind, Withdraw: w}, width, nil

	case externalapi.OpFullExit:
		const width = 1 + 4 + 20 + 4 + 16
		if len(data) < width {
			return nil, 0, externalapi.UnknownToken
		}
		var addr externalapi.Address
		copy(addr[:], data[5:25])
		var amount [32]byte
		copy(amount[16:32], data[29:45])
		fx := &externalapi.FullExit{
			AccountId:      externalapi.AccountId(getUint32(data[1:5])),
			OwnerAddress:   addr,
			Token:          externalapi.TokenId(getUint32(data[25:29])),
			WithdrawAmount: externalapi.AmountFromBig20(amount[:]),
		}
		return &externalapi.Operation{Kind: kind, FullExit: fx}, width, nil

	case externalapi.OpChangePubKey:
		const width = 1 + 4 + 20 + 20 + 4 + 4 + 2
		if len(data) < width {
			return nil, 0, externalapi.UnknownToken
		}
		var pkh externalapi.PubKeyHash
		copy(pkh[:], data[5:25])
		var addr externalapi.Address
		copy(addr[:], data[25:45])
		cpk := &externalapi.ChangePubKey{
			AccountId:     externalapi.AccountId(getUint32(data[1:5])),
			NewPubKeyHash: pkh,
			Address:       addr,
			Nonce:         getUint32(data[45:49]),
			FeeToken:      externalapi.TokenId(getUint32(data[49:53])),
			Fee:           unpackFloat(data[53:55], feeMantissaBits, feeExponentBits),
		}
		return &externalapi.Operation{Kind: kind, ChangePubKey: cpk}, width, nil

	case externalapi.OpForcedExit:
		const width = 1 + 4 + 4 + 4 + 2
		if len(data) < width {
			return nil, 0, externalapi.UnknownToken
		}
		fe := &externalapi.ForcedExit{
			InitiatorId: externalapi.AccountId(getUint32(data[1:5])),
			Target:      externalapi.AccountId(getUint32(data[5:9])),
			Token:       externalapi.TokenId(getUint32(data[9:13])),
			Fee:         unpackFloat(data[13:15], feeMantissaBits, feeExponentBits),
		}
		return &externalapi.Operation{Kind: kind, ForcedExit: fe}, width, nil

	case externalapi.OpSwap:
		const width = 1 + 4 + 4 + 4 + 4 + 4 + 5 + 5 + 2
		if len(data) < width {
			return nil, 0, externalapi.UnknownToken
		}
		sw := &externalapi.Swap{
			SubmitterId: externalapi.AccountId(getUint32(data[1:5])),
			OrderA: externalapi.SwapOrder{
				AccountId: externalapi.AccountId(getUint32(data[5:9])),
				TokenSell: externalapi.TokenId(getUint32(data[13:17])),
			},
			OrderB: externalapi.SwapOrder{
				AccountId: externalapi.AccountId(getUint32(data[9:13])),
				TokenSell: externalapi.TokenId(getUint32(data[17:21])),
			},
			AmountA: unpackFloat(data[21:26], amountMantissaBits, amountExponentBits),
			AmountB: unpackFloat(data[26:31], amountMantissaBits, amountExponentBits),
			Fee:     unpackFloat(data[31:33], feeMantissaBits, feeExponentBits),
		}
		return &externalapi.Operation{Kind: kind, Swap: sw}, width, nil

	case externalapi.OpMintNFT:
		const width = 1 + 4 + 4 + 32 + 4 + 2
		if len(data) < width {
			return nil, 0, externalapi.UnknownToken
		}
		var content externalapi.Hash
		copy(content[:], data[9:41])
		m := &externalapi.MintNFT{
			CreatorId:     externalapi.AccountId(getUint32(data[1:5])),
			RecipientId:   externalapi.AccountId(getUint32(data[5:9])),
			ContentHash:   content,
			MintedTokenId: externalapi.TokenId(getUint32(data[41:45])),
			Fee:           unpackFloat(data[45:47], feeMantissaBits, feeExponentBits),
		}
		return &externalapi.Operation{Kind: kind, MintNFT: m}, width, nil

	case externalapi.OpWithdrawNFT:
		const width = 1 + 4 + 4 + 20 + 4 + 2
		if len(data) < width {
			return nil, 0, externalapi.UnknownToken
		}
		var addr externalapi.Address
		copy(addr[:], data[9:29])
		w := &externalapi.WithdrawNFT{
			AccountId: externalapi.AccountId(getUint32(data[1:5])),
			Token:     externalapi.TokenId(getUint32(data[5:9])),
			ToAddress: addr,
			FeeToken:  externalapi.TokenId(getUint32(data[29:33])),
			Fee:       unpackFloat(data[33:35], feeMantissaBits, feeExponentBits),
		}
		return &externalapi.Operation{Kind: kind, WithdrawNFT: w}, width, nil

	case externalapi.OpClose:
		const width = 1 + 4
		if len(data) < width {
			return nil, 0, externalapi.UnknownToken
		}
		c := &externalapi.Close{AccountId: externalapi.AccountId(getUint32(data[1:5]))}
		return &externalapi.Operation{Kind: kind, Close: c}, width, nil

	case externalapi.OpNoop:
		return &externalapi.Operation{Kind: kind, Noop: &externalapi.Noop{}}, 1, nil

	default:
		return nil, 0, externalapi.UnknownToken
	}
}
