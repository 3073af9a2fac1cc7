package externalapi

// Tx wraps a wallet-submitted operation (every OperationKind except
// Deposit/FullExit, which are priority operations injected by the anchor
// chain instead) with the fields the mempool needs independent of the
// operation's internal shape: an identity hash, the account/nonce/fee it
// is indexed by, and the raw signature bytes the StateEngine hands to
// sigverify.Verifier.
type Tx struct {
	Op        Operation
	Hash      Hash
	AccountId AccountId
	Nonce     uint32
	Fee       Amount
	FeeToken  TokenId
	Signature []byte
}
