// Package panics converts fatal invariant violations into a clean process
// exit, as required by spec.md §6/§7: "Panics are considered fatal and
// must surface via the panic-notification channel that reaches the
// supervising process."
package panics

import (
	"fmt"
	"os"
	"runtime/debug"
	"time"

	"github.com/dagrollup/rollupcore/internal/logs"
)

const handlerTimeout = 5 * time.Second

// HandlePanic recovers a panic, logs it along with a stack trace, flushes
// the log backend, and exits the process with a non-zero code. It is meant
// to be deferred at the top of every long-lived task goroutine.
func HandlePanic(log logs.Logger, goroutineStackTrace []byte) {
	err := recover()
	if err == nil {
		return
	}

	done := make(chan struct{})
	go func() {
		log.Criticalf("Fatal error: %+v", err)
		if goroutineStackTrace != nil {
			log.Criticalf("Goroutine stack trace: %s", goroutineStackTrace)
		}
		log.Criticalf("Stack trace: %s", debug.Stack())
		log.Backend().Close()
		close(done)
	}()

	select {
	case <-time.After(handlerTimeout):
		fmt.Fprintln(os.Stderr, "couldn't handle a fatal error in time, exiting")
	case <-done:
	}
	os.Exit(1)
}

// GoroutineWrapperFunc returns a helper that launches f in a goroutine
// guarded by HandlePanic, capturing the caller's stack trace for context.
func GoroutineWrapperFunc(log logs.Logger) func(func()) {
	return func(f func()) {
		stackTrace := debug.Stack()
		go func() {
			defer HandlePanic(log, stackTrace)
			f()
		}()
	}
}

// AfterFuncWrapperFunc returns a time.AfterFunc wrapper that routes panics
// in the deferred function through HandlePanic.
func AfterFuncWrapperFunc(log logs.Logger) func(d time.Duration, f func()) *time.Timer {
	return func(d time.Duration, f func()) *time.Timer {
		stackTrace := debug.Stack()
		return time.AfterFunc(d, func() {
			defer HandlePanic(log, stackTrace)
			f()
		})
	}
}

// Exit logs a fatal, non-panic reason (e.g. RootMismatch, unrecoverable DB
// corruption) and terminates the process with a non-zero exit code.
func Exit(log logs.Logger, reason string) {
	done := make(chan struct{})
	go func() {
		log.Criticalf("Exiting: %s", reason)
		log.Backend().Close()
		close(done)
	}()

	select {
	case <-time.After(handlerTimeout):
		fmt.Fprintln(os.Stderr, "couldn't exit gracefully")
	case <-done:
	}
	os.Exit(1)
}
