package anchorchain

import (
	"encoding/binary"

	"github.com/pkg/errors"

	"github.com/dagrollup/rollupcore/domain/rollup/model"
	"github.com/dagrollup/rollupcore/domain/rollup/model/externalapi"
)

// PrivateKey is the minimal signing primitive Signer needs, kept narrow
// the way cmd/kaspawallet holds a decrypted private key only long enough
// to call libkaspawallet.Sign rather than threading a concrete key type
// through every caller.
type PrivateKey interface {
	Sign(message []byte) (signature []byte, err error)
	Address() externalapi.Address
}

// Signer is the production model.AnchorChainSigner: it assembles an
// anchor-chain transaction envelope (nonce, gas price, gas limit, call
// data) and signs the envelope's canonical encoding with a single held
// key, mirroring cmd/kaspawallet/send.go's "decrypt once, sign with
// libkaspawallet.Sign" shape.
type Signer struct {
	key PrivateKey
}

var _ model.AnchorChainSigner = (*Signer)(nil)

// NewSigner returns a Signer that signs every envelope with key.
func NewSigner(key PrivateKey) *Signer {
	return &Signer{key: key}
}

// Sign implements model.AnchorChainSigner.
func (s *Signer) Sign(nonce uint64, gasPrice externalapi.Amount, gasLimit uint64, payload []byte) ([]byte, error) {
	envelope := encodeEnvelope(nonce, gasPrice, gasLimit, payload)
	signature, err := s.key.Sign(envelope)
	if err != nil {
		return nil, errors.Wrapf(err, "anchorchain: signing envelope for nonce %d", nonce)
	}
	signed := make([]byte, len(envelope)+len(signature))
	copy(signed, envelope)
	copy(signed[len(envelope):], signature)
	return signed, nil
}

func encodeEnvelope(nonce uint64, gasPrice externalapi.Amount, gasLimit uint64, payload []byte) []byte {
	price := gasPrice.Bytes32()
	buf := make([]byte, 8+32+8+len(payload))
	binary.BigEndian.PutUint64(buf[0:8], nonce)
	copy(buf[8:40], price[:])
	binary.BigEndian.PutUint64(buf[40:48], gasLimit)
	copy(buf[48:], payload)
	return buf
}
