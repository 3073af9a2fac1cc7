package externalapi

// SubmitterOperationKind tags the anchor-chain action a SubmitterOperation
// carries (spec.md §3, §4.7).
type SubmitterOperationKind uint8

const (
	SubmitCommit SubmitterOperationKind = iota
	SubmitProve
	SubmitExecute
)

func (k SubmitterOperationKind) String() string {
	switch k {
	case SubmitCommit:
		return "Commit"
	case SubmitProve:
		return "Prove"
	case SubmitExecute:
		return "Execute"
	default:
		return "Unknown"
	}
}

// SubmitterOperation is a durable record tying one logical aggregated
// rollup action (Commit/Prove/Execute over a block range) to one or more
// anchor-chain transaction attempts (spec.md §3).
type SubmitterOperation struct {
	Id                SubmitterOperationId
	Kind              SubmitterOperationKind
	FromBlock         uint32
	ToBlock           uint32
	Payload           []byte
	Nonce             uint64
	LastDeadlineBlock uint64
	LastGasPrice      Amount
	SentHashes        []Hash
	Confirmed         bool
	FinalHash         *Hash
}

// SubmitterOperationId is a per-kind contiguous, monotone id
// (spec.md §3 invariant).
type SubmitterOperationId uint64

// IsPersisted reports whether this row has ever been durably written
// (spec.md §3: "sent_hashes is non-empty exactly when the row has been
// durably persisted").
func (s *SubmitterOperation) IsPersisted() bool {
	return len(s.SentHashes) > 0
}

// LatestHash returns the most recently sent hash, or the zero hash if the
// row has never been sent.
func (s *SubmitterOperation) LatestHash() Hash {
	if len(s.SentHashes) == 0 {
		return Hash{}
	}
	return s.SentHashes[len(s.SentHashes)-1]
}
