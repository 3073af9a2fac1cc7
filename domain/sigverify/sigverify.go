// Package sigverify models the signature verifier as an opaque external
// collaborator (spec.md §1): a capability that turns a transaction plus
// optional wallet signature into a validated transaction. The scheme S
// itself is out of scope; only the capability boundary is defined here.
package sigverify

import "github.com/dagrollup/rollupcore/domain/rollup/model/externalapi"

// Verifier validates a transaction's signature against the signer's bound
// public-key hash.
type Verifier interface {
	// Validate reports whether signature authorizes message under
	// pubKeyHash. An empty signature is treated as "missing", not
	// "invalid" -- StateEngine distinguishes the two
	// (externalapi.MissingSignature vs externalapi.InvalidSignature).
	Validate(message []byte, signature []byte, pubKeyHash externalapi.PubKeyHash) bool
}

// AlwaysValid is a test double that accepts any non-empty signature.
// Grounded on the teacher's pattern of swapping txscript validators for
// permissive stubs in unit tests (blockdag/test_utils.go).
type AlwaysValid struct{}

// Validate implements Verifier.
func (AlwaysValid) Validate(_ []byte, signature []byte, _ externalapi.PubKeyHash) bool {
	return len(signature) > 0
}

// AlwaysInvalid is a test double that rejects every signature.
type AlwaysInvalid struct{}

// Validate implements Verifier.
func (AlwaysInvalid) Validate(_ []byte, _ []byte, _ externalapi.PubKeyHash) bool {
	return false
}
