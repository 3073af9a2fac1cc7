package externalapi

// OperationKind tags which variant an Operation carries (spec.md §3).
type OperationKind uint8

// Operation kinds, in their public-data type-byte order (spec.md §6).
const (
	OpNoop OperationKind = iota
	OpDeposit
	OpTransferToNew
	OpTransfer
	OpWithdraw
	OpForcedExit
	OpClose
	OpFullExit
	OpChangePubKey
	OpSwap
	OpMintNFT
	OpWithdrawNFT
)

// IsPriority reports whether this kind is injected by the anchor chain
// rather than submitted by a wallet (spec.md §3).
func (k OperationKind) IsPriority() bool {
	return k == OpDeposit || k == OpFullExit
}

func (k OperationKind) String() string {
	switch k {
	case OpNoop:
		return "Noop"
	case OpDeposit:
		return "Deposit"
	case OpTransferToNew:
		return "TransferToNew"
	case OpTransfer:
		return "Transfer"
	case OpWithdraw:
		return "Withdraw"
	case OpForcedExit:
		return "ForcedExit"
	case OpClose:
		return "Close"
	case OpFullExit:
		return "FullExit"
	case OpChangePubKey:
		return "ChangePubKey"
	case OpSwap:
		return "Swap"
	case OpMintNFT:
		return "MintNFT"
	case OpWithdrawNFT:
		return "WithdrawNFT"
	default:
		return "Unknown"
	}
}

// Deposit credits amount to an account identified by address, allocating a
// fresh AccountId on first appearance.
type Deposit struct {
	ToAccountId AccountId // 0 until resolved; filled in when the recipient is known or newly allocated
	ToAddress   Address
	Token       TokenId
	Amount      Amount
}

// Transfer debits Amount+Fee from From and credits Amount to To.
type Transfer struct {
	From   AccountId
	To     AccountId
	Token  TokenId
	Amount Amount
	Fee    Amount
	Nonce  uint32
}

// TransferToNew is a Transfer whose recipient does not yet have an
// AccountId; ToAddress is used to allocate one at next_free_id.
type TransferToNew struct {
	From      AccountId
	ToAddress Address
	To        AccountId // filled in once allocated
	Token     TokenId
	Amount    Amount
	Fee       Amount
	Nonce     uint32
}

// Withdraw debits Amount+Fee from the account and emits an external
// withdrawal record for ToAddress.
type Withdraw struct {
	AccountId AccountId
	ToAddress Address
	Token     TokenId
	Amount    Amount
	Fee       Amount
	Nonce     uint32
}

// ForcedExit drains Target's full balance of Token to its own address,
// charging the fee to Initiator.
type ForcedExit struct {
	InitiatorId AccountId
	Target      AccountId
	Token       TokenId
	Fee         Amount
	Nonce       uint32
}

// Close marks an account deleted. Currently rejected by policy
// (spec.md §9, OperationDisabled) but modeled fully so the policy can be
// flipped without a data-model change.
type Close struct {
	AccountId AccountId
	Nonce     uint32
}

// FullExit moves the full balance of Token out of AccountId; a priority
// operation, so no fee and no nonce check.
type FullExit struct {
	AccountId      AccountId
	OwnerAddress   Address
	Token          TokenId
	WithdrawAmount Amount // resolved at apply time from live state
}

// ChangePubKey rotates the account's bound public-key hash.
type ChangePubKey struct {
	AccountId     AccountId
	NewPubKeyHash PubKeyHash
	Address       Address
	Nonce         uint32
	FeeToken      TokenId
	Fee           Amount
	// Signature is the optional wallet signature over the canonical
	// change-pubkey message; nil means the rotation is authorized purely
	// by the enclosing transaction's own signature (on-chain auth).
	Signature []byte
}

// SwapOrder is one leg of a Swap, independently signed by its submitter.
type SwapOrder struct {
	AccountId   AccountId
	RecipientId AccountId
	TokenSell   TokenId
	TokenBuy    TokenId
	AmountSell  Amount
	AmountBuy   Amount
	Nonce       uint32
}

// Swap atomically executes two orders' transfers and collects a single
// fee from the submitting account.
type Swap struct {
	SubmitterId AccountId
	OrderA      SwapOrder
	OrderB      SwapOrder
	AmountA     Amount // actual filled amount for OrderA
	AmountB     Amount // actual filled amount for OrderB
	FeeToken    TokenId
	Fee         Amount
	Nonce       uint32
}

// MintNFT creates a new NFT descriptor and credits Recipient with a
// balance of 1 for it.
type MintNFT struct {
	CreatorId   AccountId
	RecipientId AccountId
	ContentHash Hash
	FeeToken    TokenId
	Fee         Amount
	Nonce       uint32
	// MintedTokenId is resolved at apply time (derived from the creator's
	// mint sequence); zero until then.
	MintedTokenId TokenId
}

// WithdrawNFT zeros an owned NFT balance and emits an external NFT
// withdrawal record.
type WithdrawNFT struct {
	AccountId AccountId
	ToAddress Address
	Token     TokenId
	FeeToken  TokenId
	Fee       Amount
	Nonce     uint32
}

// Noop is a padding operation with no state effect, used to round a block
// out to its chosen chunk_size.
type Noop struct{}

// Operation is a tagged variant over every operation kind spec.md §3
// defines. Exactly one of the pointer fields matching Kind is non-nil.
type Operation struct {
	Kind OperationKind

	Deposit       *Deposit
	TransferToNew *TransferToNew
	Transfer      *Transfer
	Withdraw      *Withdraw
	ForcedExit    *ForcedExit
	Close         *Close
	FullExit      *FullExit
	ChangePubKey  *ChangePubKey
	Swap          *Swap
	MintNFT       *MintNFT
	WithdrawNFT   *WithdrawNFT
	Noop          *Noop
}

// ChunkCost is the fixed chunk cost of this operation's kind, used by
// BlockBuilder for chunk budgeting (spec.md §4.4, magnitudes carried over
// from original_source/src/franklincircuit/src/circuit.rs, not bit-exact
// since the circuit itself is out of scope).
func (op *Operation) ChunkCost() uint32 {
	switch op.Kind {
	case OpDeposit:
		return 6
	case OpTransfer:
		return 2
	case OpTransferToNew:
		return 6
	case OpWithdraw:
		return 6
	case OpForcedExit:
		return 6
	case OpChangePubKey:
		return 6
	case OpFullExit:
		return 10
	case OpClose:
		return 1
	case OpSwap:
		return 5
	case OpMintNFT:
		return 5
	case OpWithdrawNFT:
		return 5
	default:
		return 1
	}
}
