package merkletree

import (
	"bytes"
	"encoding/binary"

	"github.com/dagrollup/rollupcore/domain/rollup/model/externalapi"
)

// serializeCache and deserializeCache persist the tree's internal node
// cache across restarts, realizing spec.md §3's "a cache maps
// (BlockNumber -> root hash, internal node cache) to avoid full
// recomputation" and §4.6's account_tree_cache table. Format: a flat
// sequence of (depth uint8, index uint64, hash [32]byte) records.
func serializeCache(cache map[node]externalapi.Hash) []byte {
	buf := new(bytes.Buffer)
	for n, h := range cache {
		buf.WriteByte(n.depth)
		var idxBuf [8]byte
		binary.BigEndian.PutUint64(idxBuf[:], n.index)
		buf.Write(idxBuf[:])
		buf.Write(h[:])
	}
	return buf.Bytes()
}

const cacheRecordSize = 1 + 8 + externalapi.HashSize

func deserializeCache(data []byte) (map[node]externalapi.Hash, bool) {
	if len(data)%cacheRecordSize != 0 {
		return nil, false
	}
	cache := make(map[node]externalapi.Hash, len(data)/cacheRecordSize)
	for off := 0; off < len(data); off += cacheRecordSize {
		depth := data[off]
		index := binary.BigEndian.Uint64(data[off+1 : off+9])
		var h externalapi.Hash
		copy(h[:], data[off+9:off+9+externalapi.HashSize])
		cache[node{depth: depth, index: index}] = h
	}
	return cache, true
}
