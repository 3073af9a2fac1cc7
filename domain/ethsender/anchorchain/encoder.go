// Package anchorchain adapts domain/ethsender's ChainSubmitter to a
// concrete anchor chain: encoding aggregated actions into call payloads,
// deriving gas limits, and exposing the model.AnchorChainClient surface
// over an RPC transport. Grounded on the request/response client shape of
// infrastructure/network/netadapter/client/rpcclient.go (a struct wrapping
// a remote address and a timeout, returning wrapped *errors.Error on
// failure) generalized from a gRPC DAG-node peer to a JSON-RPC anchor
// chain endpoint.
package anchorchain

import (
	"encoding/binary"
	"fmt"

	"github.com/dagrollup/rollupcore/domain/rollup/model/externalapi"
)

// Method is the externally-visible anchor-chain method name a
// SubmitterOperationKind maps to (spec.md §6).
func Method(kind externalapi.SubmitterOperationKind) string {
	switch kind {
	case externalapi.SubmitCommit:
		return "commitBlocks"
	case externalapi.SubmitProve:
		return "proveBlocks"
	case externalapi.SubmitExecute:
		return "executeBlocks"
	default:
		panic(fmt.Sprintf("anchorchain: unknown SubmitterOperationKind %d", kind))
	}
}

// gasSurcharge is the per-operation-kind gas surcharge table spec.md §4.7
// calls for: a base cost for the call itself plus a fixed per-block
// surcharge, since a Commit/Prove/Execute call processes one or more
// blocks in a single anchor-chain transaction.
var gasSurcharge = map[externalapi.SubmitterOperationKind]struct{ base, perBlock uint64 }{
	externalapi.SubmitCommit:  {base: 150_000, perBlock: 50_000},
	externalapi.SubmitProve:   {base: 600_000, perBlock: 300_000},
	externalapi.SubmitExecute: {base: 200_000, perBlock: 40_000},
}

// GasLimit derives the gas limit for one aggregated action spanning
// fromBlock..toBlock inclusive. A zero result here is a fatal internal
// error per spec.md §4.7; the surcharge table above never yields zero for
// a well-formed range, so GasLimit panics rather than returning one.
func GasLimit(kind externalapi.SubmitterOperationKind, fromBlock, toBlock uint32) uint64 {
	surcharge, ok := gasSurcharge[kind]
	if !ok {
		panic(fmt.Sprintf("anchorchain: unknown SubmitterOperationKind %d", kind))
	}
	if toBlock < fromBlock {
		panic("anchorchain: toBlock before fromBlock")
	}
	numBlocks := uint64(toBlock-fromBlock) + 1
	limit := surcharge.base + surcharge.perBlock*numBlocks
	if limit == 0 {
		panic("anchorchain: derived gas limit is zero")
	}
	return limit
}

// EncodeCall packs the method selector, block range and inner payload
// into the raw call data a signer turns into a transaction. The encoding
// is deliberately simple and self-describing (4-byte method tag,
// from_block, to_block, then the caller-supplied payload) rather than an
// ABI encoding, since the anchor chain contract interface itself is a
// non-goal of this system (spec.md §1).
func EncodeCall(kind externalapi.SubmitterOperationKind, fromBlock, toBlock uint32, payload []byte) []byte {
	method := Method(kind)
	buf := make([]byte, 4+4+4+len(payload))
	copy(buf[0:4], method[:4])
	binary.BigEndian.PutUint32(buf[4:8], fromBlock)
	binary.BigEndian.PutUint32(buf[8:12], toBlock)
	copy(buf[12:], payload)
	return buf
}
