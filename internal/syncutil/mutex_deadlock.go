//go:build deadlock

// Package syncutil supplies the blocking primitives the native lock engines
// are built on. Building with -tags deadlock swaps them for instrumented
// equivalents that report goroutines stuck too long waiting on a lock.
package syncutil

import (
	"time"

	deadlock "github.com/sasha-s/go-deadlock"
)

// DeadlockEnabled reports whether the deadlock detector is compiled in.
const DeadlockEnabled = true

func init() {
	// Engine instances take try-path locks in no fixed order, so only the
	// stuck-waiter timeout is wanted from the detector.
	deadlock.Opts.DeadlockTimeout = 30 * time.Second
	deadlock.Opts.DisableLockOrderDetection = true
}

// Mutex is a mutual exclusion lock. The zero value is an unlocked mutex.
type Mutex struct {
	deadlock.Mutex
}

// RWMutex is a reader/writer mutual exclusion lock. The zero value is an
// unlocked mutex.
type RWMutex struct {
	deadlock.RWMutex
}
