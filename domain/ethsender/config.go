package ethsender

import (
	"time"

	"github.com/dagrollup/rollupcore/domain/rollup/model/externalapi"
)

// Config is ChainSubmitter's process-wide configuration (spec.md §6).
// Every field is required: a zero value fails validate() fatally rather
// than silently defaulting, matching blockbuilder.Config and
// mempool.Config's fail-fast shape.
type Config struct {
	// MaxInFlight bounds how many rows may be unconfirmed at once.
	MaxInFlight int
	// WaitConfirmations is the confirmation depth a hash must reach
	// before its row is treated as settled.
	WaitConfirmations uint64
	// ExpectedWaitBlocks sets a newly sent row's deadline block
	// (current height + this value); crossing the deadline with no
	// confirmation marks the row Stuck.
	ExpectedWaitBlocks uint64
	// PollInterval is the main loop's wake period.
	PollInterval time.Duration
	// RateLimitBackoff is the fixed sleep imposed after a rate-limited
	// response (spec.md §4.7 step 6: "~30s").
	RateLimitBackoff time.Duration
	// GasLimit derives the gas limit for a row from its kind and block
	// range (spec.md §4.7's surcharge table); production wiring passes
	// anchorchain.GasLimit. A zero result is a fatal internal error, so
	// this is never allowed to be nil.
	GasLimit func(kind externalapi.SubmitterOperationKind, fromBlock, toBlock uint32) uint64
}

func (c Config) validate() {
	if c.MaxInFlight <= 0 {
		log.Criticalf("ethsender: MaxInFlight must be positive")
		panic("ethsender: MaxInFlight must be positive")
	}
	if c.WaitConfirmations == 0 {
		log.Criticalf("ethsender: WaitConfirmations must be positive")
		panic("ethsender: WaitConfirmations must be positive")
	}
	if c.ExpectedWaitBlocks == 0 {
		log.Criticalf("ethsender: ExpectedWaitBlocks must be positive")
		panic("ethsender: ExpectedWaitBlocks must be positive")
	}
	if c.PollInterval <= 0 {
		log.Criticalf("ethsender: PollInterval must be positive")
		panic("ethsender: PollInterval must be positive")
	}
	if c.RateLimitBackoff <= 0 {
		log.Criticalf("ethsender: RateLimitBackoff must be positive")
		panic("ethsender: RateLimitBackoff must be positive")
	}
	if c.GasLimit == nil {
		log.Criticalf("ethsender: GasLimit must be set")
		panic("ethsender: GasLimit must be set")
	}
}
