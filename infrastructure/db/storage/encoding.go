// Package storage implements model.PersistenceStore against the gorm
// tables infrastructure/db/dbaccess defines (spec.md §4.6, §6). This file
// holds the hand-rolled binary codecs for the two persisted unions
// (externalapi.AccountUpdate and externalapi.SubmitterOperation), kept
// next to their call sites the way domain/rollup/pubdata/pubdata.go keeps
// its own fixed-width field writers beside EncodeOperation rather than
// reaching for a reflection-based marshaller.
package storage

import (
	"encoding/binary"
	"fmt"

	"github.com/dagrollup/rollupcore/domain/rollup/model/externalapi"
)

func putUint32(buf []byte, v uint32) { binary.BigEndian.PutUint32(buf, v) }
func putUint64(buf []byte, v uint64) { binary.BigEndian.PutUint64(buf, v) }
func getUint32(buf []byte) uint32    { return binary.BigEndian.Uint32(buf) }
func getUint64(buf []byte) uint64    { return binary.BigEndian.Uint64(buf) }

// encodeAccountUpdate packs the one payload field AccountUpdate.Kind
// selects into a flat byte slice for the account_updates.payload column.
func encodeAccountUpdate(u *externalapi.AccountUpdate) []byte {
	switch u.Kind {
	case externalapi.UpdateCreate:
		buf := make([]byte, externalapi.AddressSize+4)
		copy(buf, u.Create.Address[:])
		putUint32(buf[externalapi.AddressSize:], u.Create.Nonce)
		return buf

	case externalapi.UpdateDelete:
		buf := make([]byte, externalapi.AddressSize+4)
		copy(buf, u.Delete.Address[:])
		putUint32(buf[externalapi.AddressSize:], u.Delete.Nonce)
		return buf

	case externalapi.UpdateBalance:
		buf := make([]byte, 4+32+32+4+4)
		putUint32(buf[0:4], uint32(u.Balance.Token))
		old := u.Balance.OldBalance.Bytes32()
		copy(buf[4:36], old[:])
		neu := u.Balance.NewBalance.Bytes32()
		copy(buf[36:68], neu[:])
		putUint32(buf[68:72], u.Balance.OldNonce)
		putUint32(buf[72:76], u.Balance.NewNonce)
		return buf

	case externalapi.UpdateChangePubKeyHash:
		buf := make([]byte, externalapi.PubKeyHashSize*2+4+4)
		copy(buf, u.ChangePubKeyHash.OldHash[:])
		copy(buf[externalapi.PubKeyHashSize:], u.ChangePubKeyHash.NewHash[:])
		off := externalapi.PubKeyHashSize * 2
		putUint32(buf[off:off+4], u.ChangePubKeyHash.OldNonce)
		putUint32(buf[off+4:off+8], u.ChangePubKeyHash.NewNonce)
		return buf

	case externalapi.UpdateMintNFT:
		return encodeNFT(uint32(u.MintNFT.Token), &u.MintNFT.NFT)

	case externalapi.UpdateRemoveNFT:
		return encodeNFT(uint32(u.RemoveNFT.Token), &u.RemoveNFT.NFT)

	default:
		panic(fmt.Sprintf("storage: unknown AccountUpdateKind %d", u.Kind))
	}
}

func encodeNFT(token uint32, nft *externalapi.NFT) []byte {
	buf := make([]byte, 4+4+4+externalapi.AddressSize+4+externalapi.HashSize)
	putUint32(buf[0:4], token)
	putUint32(buf[4:8], uint32(nft.Id))
	putUint32(buf[8:12], uint32(nft.CreatorId))
	copy(buf[12:12+externalapi.AddressSize], nft.CreatorAddress[:])
	off := 12 + externalapi.AddressSize
	putUint32(buf[off:off+4], nft.Serial)
	copy(buf[off+4:off+4+externalapi.HashSize], nft.ContentHash[:])
	return buf
}

func decodeNFT(buf []byte) (token externalapi.TokenId, nft externalapi.NFT) {
	token = externalapi.TokenId(getUint32(buf[0:4]))
	nft.Id = externalapi.TokenId(getUint32(buf[4:8]))
	nft.CreatorId = externalapi.AccountId(getUint32(buf[8:12]))
	nft.CreatorAddress = externalapi.BytesToAddress(buf[12 : 12+externalapi.AddressSize])
	off := 12 + externalapi.AddressSize
	nft.Serial = getUint32(buf[off : off+4])
	nft.ContentHash = externalapi.BytesToHash(buf[off+4 : off+4+externalapi.HashSize])
	return token, nft
}

// decodeAccountUpdate is encodeAccountUpdate's inverse, filling in every
// field except Kind/AccountId/BlockNumber/SubIndex, which the row already
// carries as plain columns.
func decodeAccountUpdate(kind externalapi.AccountUpdateKind, buf []byte) (*externalapi.AccountUpdate, error) {
	u := &externalapi.AccountUpdate{Kind: kind}
	switch kind {
	case externalapi.UpdateCreate:
		u.Create = &externalapi.CreateUpdate{
			Address: externalapi.BytesToAddress(buf[:externalapi.AddressSize]),
			Nonce:   getUint32(buf[externalapi.AddressSize:]),
		}
	case externalapi.UpdateDelete:
		u.Delete = &externalapi.DeleteUpdate{
			Address: externalapi.BytesToAddress(buf[:externalapi.AddressSize]),
			Nonce:   getUint32(buf[externalapi.AddressSize:]),
		}
	case externalapi.UpdateBalance:
		u.Balance = &externalapi.BalanceUpdate{
			Token:      externalapi.TokenId(getUint32(buf[0:4])),
			OldBalance: externalapi.AmountFromBig20(buf[4:36]),
			NewBalance: externalapi.AmountFromBig20(buf[36:68]),
			OldNonce:   getUint32(buf[68:72]),
			NewNonce:   getUint32(buf[72:76]),
		}
	case externalapi.UpdateChangePubKeyHash:
		off := externalapi.PubKeyHashSize * 2
		var oldHash, newHash externalapi.PubKeyHash
		copy(oldHash[:], buf[:externalapi.PubKeyHashSize])
		copy(newHash[:], buf[externalapi.PubKeyHashSize:off])
		u.ChangePubKeyHash = &externalapi.ChangePubKeyHashUpdate{
			OldHash:  oldHash,
			NewHash:  newHash,
			OldNonce: getUint32(buf[off : off+4]),
			NewNonce: getUint32(buf[off+4 : off+8]),
		}
	case externalapi.UpdateMintNFT:
		token, nft := decodeNFT(buf)
		u.MintNFT = &externalapi.MintNFTUpdate{Token: token, NFT: nft}
	case externalapi.UpdateRemoveNFT:
		token, nft := decodeNFT(buf)
		u.RemoveNFT = &externalapi.RemoveNFTUpdate{Token: token, NFT: nft}
	default:
		return nil, fmt.Errorf("storage: unknown AccountUpdateKind %d", kind)
	}
	return u, nil
}
