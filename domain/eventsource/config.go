package eventsource

import "time"

// Config is EventSource's process-wide configuration (spec.md §6). Every
// field is required, matching ethsender.Config's fail-fast shape.
type Config struct {
	// PollInterval is the main loop's wake period.
	PollInterval time.Duration
	// WaitConfirmations is the confirmation depth a priority-op block
	// must reach before it is emitted, so a reorg cannot un-emit it.
	WaitConfirmations uint64
	// MaxBlockRange caps how many blocks a single poll scans, so a long
	// restart gap is drained incrementally rather than in one query.
	MaxBlockRange uint64
}

func (c Config) validate() {
	if c.PollInterval <= 0 {
		log.Criticalf("eventsource: PollInterval must be positive")
		panic("eventsource: PollInterval must be positive")
	}
	if c.WaitConfirmations == 0 {
		log.Criticalf("eventsource: WaitConfirmations must be positive")
		panic("eventsource: WaitConfirmations must be positive")
	}
	if c.MaxBlockRange == 0 {
		log.Criticalf("eventsource: MaxBlockRange must be positive")
		panic("eventsource: MaxBlockRange must be positive")
	}
}
