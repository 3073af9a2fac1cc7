package externalapi

import (
	"crypto/sha256"
	"hash"
)

// HashWriter accumulates bytes and finalizes them into a Hash. It mirrors
// the teacher's hashes.HashWriter (domain/consensus/utils/hashes) used to
// compose Merkle branch hashes, but over crypto/sha256 rather than
// blake2b: spec.md §1 treats the specific hash primitive as an opaque
// non-goal, so no domain library substitutes for it here.
type HashWriter struct {
	h hash.Hash
}

// NewHashWriter returns a fresh HashWriter.
func NewHashWriter() *HashWriter {
	return &HashWriter{h: sha256.New()}
}

// Write implements io.Writer.
func (w *HashWriter) Write(p []byte) (int, error) {
	return w.h.Write(p)
}

// Finalize returns the accumulated Hash.
func (w *HashWriter) Finalize() Hash {
	var out Hash
	copy(out[:], w.h.Sum(nil))
	return out
}

// HashBytes is a convenience one-shot hash over a single byte slice.
func HashBytes(b []byte) Hash {
	w := NewHashWriter()
	_, _ = w.Write(b)
	return w.Finalize()
}

// HashBranches hashes the concatenation of two child hashes into their
// parent, the standard Merkle-branch composition used throughout
// datastructures/merkletree.
func HashBranches(left, right Hash) Hash {
	w := NewHashWriter()
	_, _ = w.Write(left[:])
	_, _ = w.Write(right[:])
	return w.Finalize()
}
