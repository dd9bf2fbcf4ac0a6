//go:build !deadlock

// Package syncutil supplies the blocking primitives the native lock engines
// are built on. Building with -tags deadlock swaps them for instrumented
// equivalents that report goroutines stuck too long waiting on a lock.
package syncutil

import "sync"

// DeadlockEnabled reports whether the deadlock detector is compiled in.
const DeadlockEnabled = false

// Mutex is a mutual exclusion lock. The zero value is an unlocked mutex.
type Mutex struct {
	sync.Mutex
}

// RWMutex is a reader/writer mutual exclusion lock. The zero value is an
// unlocked mutex.
type RWMutex struct {
	sync.RWMutex
}
