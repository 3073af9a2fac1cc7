package externalapi

import "github.com/holiman/uint256"

// Amount is a non-negative arbitrary-precision token amount (spec.md §3).
// Backed by uint256.Int rather than math/big: amounts in this domain are
// chain-native fixed-width values, the same representation the rest of
// the ecosystem (e.g. AKJUS-bsc-erigon) uses for balances.
type Amount struct {
	v uint256.Int
}

// ZeroAmount is the additive identity.
func ZeroAmount() Amount {
	return Amount{}
}

// AmountFromUint64 constructs an Amount from a uint64.
func AmountFromUint64(v uint64) Amount {
	var a Amount
	a.v.SetUint64(v)
	return a
}

// IsZero reports whether the amount is exactly zero.
func (a Amount) IsZero() bool {
	return a.v.IsZero()
}

// Add returns a + b.
func (a Amount) Add(b Amount) Amount {
	var out Amount
	out.v.Add(&a.v, &b.v)
	return out
}

// Sub returns a - b. Callers must ensure a >= b; StateEngine enforces this
// via balance checks before ever subtracting.
func (a Amount) Sub(b Amount) Amount {
	var out Amount
	out.v.Sub(&a.v, &b.v)
	return out
}

// Mul returns a * b.
func (a Amount) Mul(b Amount) Amount {
	var out Amount
	out.v.Mul(&a.v, &b.v)
	return out
}

// Div returns a / b (integer division). Callers must ensure b is
// nonzero; ChainSubmitter's gas-price math only ever divides by a fixed
// nonzero percentage denominator.
func (a Amount) Div(b Amount) Amount {
	var out Amount
	out.v.Div(&a.v, &b.v)
	return out
}

// Cmp returns -1, 0, or 1 as a is less than, equal to, or greater than b.
func (a Amount) Cmp(b Amount) int {
	return a.v.Cmp(&b.v)
}

// LessThan reports whether a < b.
func (a Amount) LessThan(b Amount) bool {
	return a.Cmp(b) < 0
}

// GreaterOrEqual reports whether a >= b.
func (a Amount) GreaterOrEqual(b Amount) bool {
	return a.Cmp(b) >= 0
}

// GreaterThan reports whether a > b.
func (a Amount) GreaterThan(b Amount) bool {
	return a.Cmp(b) > 0
}

// String returns the decimal representation of the amount.
func (a Amount) String() string {
	return a.v.Dec()
}

// Bytes32 returns the big-endian 32-byte representation, used when an
// operation's public-data layout calls for a fixed-width amount field
// (e.g. Deposit's amount(16) truncates this to its low 16 bytes).
func (a Amount) Bytes32() [32]byte {
	return a.v.Bytes32()
}

// AmountFromBig20 reads a big-endian amount field of the given byte width
// (used by pubdata decoding, where fields are narrower than 32 bytes).
func AmountFromBig20(b []byte) Amount {
	var a Amount
	a.v.SetBytes(b)
	return a
}
