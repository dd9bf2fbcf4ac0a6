// Package guard provides synchronization wrappers that own the value they protect.
//
// # Overview
//
// Guard couples a value to the lock guarding it, so the value is reachable
// only through scoped access:
//   - Closure-scoped: Read/Write run a closure under the lock and release on
//     every exit path, panics included
//   - Non-blocking variants: TryRead/TryWrite/TryUnwrap report would-block as
//     (false, nil), never as an error
//   - Three primitives: fair Mutex, throughput-favoring UnfairMutex, and
//     RWLock with overlapping readers
//   - One-way consumption: Unwrap moves the value out and invalidates the
//     wrapper permanently
//   - Process-shared option: lock across processes through an OS file lock
//
// # Basic Usage
//
//	m, err := guard.NewMutex(map[string]int{})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer m.Close()
//
//	err = m.Write(func(r *guard.Ref[map[string]int]) error {
//	    r.Get()["hits"]++
//	    return nil
//	})
//
//	err = m.Read(func(v map[string]int) error {
//	    fmt.Println(v["hits"])
//	    return nil
//	})
//
// The closure's error is returned unchanged, so failures inside a section
// propagate without extra plumbing.
//
// # Consuming the Value
//
// Unwrap extracts the value and flips the wrapper into its consumed state:
//
//	v, err := m.Unwrap()
//
// Every access after a successful Unwrap fails with ErrInvalidated,
// including a second Unwrap. Exactly one concurrent unwrapper wins. Close
// tears the native lock down when the wrapper is no longer needed.
//
// # Lock Attributes
//
// The fair mutex takes attribute options at construction:
//
//	m, err := guard.NewMutex(0,
//	    guard.WithKind(guard.KindRecursive),
//	    guard.WithPriorityCeiling(10),
//	)
//
// KindErrorCheck turns self-deadlock and foreign release into errors;
// KindRecursive lets a goroutine nest sections on the same lock. The
// priority attributes (protocol, ceiling, scheduling policy) are validated,
// stored and round-tripped, but the Go scheduler gives them no runtime
// effect. UnfairMutex accepts no attributes, and RWLock only
// WithProcessShared.
//
// # Process-Shared Locks
//
// WithProcessShared(path) backs the lock with an OS file lock, so instances
// of this package in other processes opened on the same path exclude each
// other:
//
//	m, err := guard.NewMutex(state, guard.WithProcessShared("/tmp/app.lock"))
//
// Only the lock is shared; the protected value stays local to each process.
//
// # Statistics
//
// Guard provides vendor-agnostic statistics via the Stats() method:
//
//	stats := m.Stats()
//	fmt.Printf("Reads: %d, Would-block: %d\n", stats.ReadAcquired, stats.WouldBlock)
//
// Export to any monitoring system (Prometheus, OpenTelemetry, StatsD, etc.).
//
// # Errors
//
// Errors from the package arrive wrapped in *OpError and match the
// sentinels with errors.Is: ErrInvalidated, ErrDeadlock, ErrNotOwner,
// ErrBusy, ErrNoResources, ErrInvalid. A native status outside the
// documented set for an operation surfaces as *StatusError. When a closure
// fails and the release after it fails too, the closure error comes first
// and the release error is joined behind it.
package guard
