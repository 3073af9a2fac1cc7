// Package config defines the rollup core's process-wide configuration:
// the single flat set of operator-supplied values spec.md §6 recognizes.
// Loading it from a file or flags is explicitly out of scope (spec.md
// §1's "the CLI and configuration-loading code" non-goal); Config is a
// plain struct the entrypoint populates however it likes and validates
// before wiring anything up.
package config

import (
	"strings"
	"time"

	"github.com/pkg/errors"
)

// Config carries every process-wide option spec.md §6 names. No field is
// defaulted: Validate fails listing every zero-valued required field,
// realizing "no operation-affecting option is silently defaulted; missing
// values are fatal at startup."
type Config struct {
	// MaxInFlight bounds how many SubmitterOperation rows ChainSubmitter
	// may have unconfirmed on the anchor chain at once.
	MaxInFlight int
	// WaitConfirmations is the confirmation depth both ChainSubmitter and
	// EventSource require before treating a hash or priority op as
	// settled.
	WaitConfirmations uint64
	// ExpectedWaitBlocks sets a freshly sent submitter row's deadline
	// block (current height + this value).
	ExpectedWaitBlocks uint64
	// PollInterval is the wake period the app-layer ticker uses to drive
	// ChainSubmitter.Step and EventSource.Step.
	PollInterval time.Duration
	// RateLimitBackoff is the fixed sleep ChainSubmitter imposes after a
	// rate-limited anchor-chain response (spec.md §4.7 step 6).
	RateLimitBackoff time.Duration
	// APICacheSize sizes the read-through cache of the HTTP/JSON-RPC
	// surface (spec.md §1: an external collaborator, not implemented
	// here). Carried and validated since it is a recognized process
	// option; unused by anything in this module.
	APICacheSize int
	// MaxBlockRange caps how many anchor-chain blocks a single
	// EventSource poll scans.
	MaxBlockRange uint64
	// AdmissibleChunkSizes is BlockBuilder's ascending list of allowed
	// block chunk sizes.
	AdmissibleChunkSizes []uint32
	// MiniblockIterationInterval is the app-layer ticker period driving
	// BlockBuilder.Tick under normal load.
	MiniblockIterationInterval time.Duration
	// MaxMiniblockIterations seals a pending block once Tick has been
	// called this many times under normal load
	// (blockbuilder.Config.IterationBound).
	MaxMiniblockIterations uint32
	// FastMiniblockIterations is the lower iteration bound BlockBuilder
	// switches to while priority operations are backlogged (operations
	// EventSource has already emitted are waiting in the app's priority
	// channel), sealing faster so deposits land sooner.
	FastMiniblockIterations uint32
	// FeeAccountId is the account BlockBuilder credits collected fees to.
	FeeAccountId uint32
}

// Validate returns every violation found, joined, rather than stopping at
// the first: an operator fixing config one field at a time otherwise has
// to re-run the process per mistake.
func (c Config) Validate() error {
	var problems []string

	if c.MaxInFlight <= 0 {
		problems = append(problems, "max_in_flight must be positive")
	}
	if c.WaitConfirmations == 0 {
		problems = append(problems, "wait_confirmations must be positive")
	}
	if c.ExpectedWaitBlocks == 0 {
		problems = append(problems, "expected_wait_blocks must be positive")
	}
	if c.PollInterval <= 0 {
		problems = append(problems, "poll_interval must be positive")
	}
	if c.RateLimitBackoff <= 0 {
		problems = append(problems, "rate_limit_backoff must be positive")
	}
	if c.APICacheSize <= 0 {
		problems = append(problems, "api_cache_size must be positive")
	}
	if c.MaxBlockRange == 0 {
		problems = append(problems, "max_block_range must be positive")
	}
	if len(c.AdmissibleChunkSizes) == 0 {
		problems = append(problems, "admissible_chunk_sizes must be non-empty")
	}
	for i := 1; i < len(c.AdmissibleChunkSizes); i++ {
		if c.AdmissibleChunkSizes[i] <= c.AdmissibleChunkSizes[i-1] {
			problems = append(problems, "admissible_chunk_sizes must be strictly ascending")
			break
		}
	}
	if c.MiniblockIterationInterval <= 0 {
		problems = append(problems, "miniblock_iteration_interval must be positive")
	}
	if c.MaxMiniblockIterations == 0 {
		problems = append(problems, "max_miniblock_iterations must be positive")
	}
	if c.FastMiniblockIterations == 0 {
		problems = append(problems, "fast_miniblock_iterations must be positive")
	}
	if c.FastMiniblockIterations > c.MaxMiniblockIterations {
		problems = append(problems, "fast_miniblock_iterations must not exceed max_miniblock_iterations")
	}

	if len(problems) == 0 {
		return nil
	}
	return errors.Errorf("invalid config: %s", strings.Join(problems, "; "))
}
