package guard

import (
	"errors"
	"sync/atomic"
	"time"

	"github.com/go-logr/logr"

	"github.com/guardlib/guard/internal/oslock"
)

// Mutex wraps a value of type T behind a native mutex. The value is
// reachable only through the scoped accessors, which acquire the lock,
// run the closure, and release on every exit path, panics included.
//
// The zero value is not usable; construct with NewMutex.
type Mutex[T any] struct {
	lk    *oslock.Mutex
	state atomic.Uint32
	value T
	s     stats
	log   logr.Logger
}

// NewMutex wraps value behind a new mutex. All attribute options apply:
// WithKind, WithPriorityProtocol, WithPriorityCeiling, WithSchedPolicy and
// WithProcessShared.
func NewMutex[T any](value T, opts ...Option) (*Mutex[T], error) {
	cfg, err := newConfig(setKind|setProtocol|setCeiling|setPolicy|setShared, opts)
	if err != nil {
		return nil, &OpError{Op: `new mutex`, Err: err}
	}
	lk, code := oslock.NewMutex(cfg.mutexAttr())
	if err := initErr(code); err != nil {
		return nil, &OpError{Op: `new mutex`, Err: err}
	}
	m := &Mutex[T]{lk: lk, value: value, log: cfg.logger()}
	m.s.init()
	return m, nil
}

// Read runs fn with a copy of the protected value while holding the lock.
// The error of fn is returned unchanged. After the value has been unwrapped,
// Read fails with ErrInvalidated without running fn.
func (m *Mutex[T]) Read(fn func(T) error) error {
	if err := acquireErr(m.lk.Lock()); err != nil {
		m.s.failed.Inc()
		return &OpError{Op: `read`, Err: err}
	}
	return m.finishRead(`read`, fn)
}

// TryRead is Read without blocking: when the lock is already held it returns
// (false, nil) and fn does not run.
func (m *Mutex[T]) TryRead(fn func(T) error) (bool, error) {
	c := m.lk.TryLock()
	if c == oslock.Busy {
		m.s.wouldBlock.Inc()
		return false, nil
	}
	if err := acquireErr(c); err != nil {
		m.s.failed.Inc()
		return false, &OpError{Op: `try read`, Err: err}
	}
	return true, m.finishRead(`try read`, fn)
}

// Write runs fn with a Ref to the protected value while holding the lock.
// The Ref dies with the closure; keeping it longer and using it panics.
func (m *Mutex[T]) Write(fn func(*Ref[T]) error) error {
	if err := acquireErr(m.lk.Lock()); err != nil {
		m.s.failed.Inc()
		return &OpError{Op: `write`, Err: err}
	}
	return m.finishWrite(`write`, fn)
}

// TryWrite is Write without blocking, with the TryRead convention.
func (m *Mutex[T]) TryWrite(fn func(*Ref[T]) error) (bool, error) {
	c := m.lk.TryLock()
	if c == oslock.Busy {
		m.s.wouldBlock.Inc()
		return false, nil
	}
	if err := acquireErr(c); err != nil {
		m.s.failed.Inc()
		return false, &OpError{Op: `try write`, Err: err}
	}
	return true, m.finishWrite(`try write`, fn)
}

// Unwrap moves the value out and leaves the wrapper consumed: every later
// access fails with ErrInvalidated. The native lock stays initialized until
// Close.
func (m *Mutex[T]) Unwrap() (T, error) {
	if err := acquireErr(m.lk.Lock()); err != nil {
		m.s.failed.Inc()
		var zero T
		return zero, &OpError{Op: `unwrap`, Err: err}
	}
	return m.finishUnwrap(`unwrap`)
}

// TryUnwrap is Unwrap without blocking, with the TryRead convention.
func (m *Mutex[T]) TryUnwrap() (T, bool, error) {
	var zero T
	c := m.lk.TryLock()
	if c == oslock.Busy {
		m.s.wouldBlock.Inc()
		return zero, false, nil
	}
	if err := acquireErr(c); err != nil {
		m.s.failed.Inc()
		return zero, false, &OpError{Op: `try unwrap`, Err: err}
	}
	v, err := m.finishUnwrap(`try unwrap`)
	return v, true, err
}

// Close destroys the native lock. It fails with ErrBusy while a section is
// running and with ErrInvalid when called twice.
func (m *Mutex[T]) Close() error {
	if err := teardownErr(m.lk.Destroy()); err != nil {
		return &OpError{Op: `close`, Err: err}
	}
	return nil
}

// PriorityCeiling reports the current priority ceiling without acquiring
// the lock.
func (m *Mutex[T]) PriorityCeiling() (int, error) {
	v, c := m.lk.Ceiling()
	if err := acquireErr(c); err != nil {
		return 0, &OpError{Op: `ceiling`, Err: err}
	}
	return v, nil
}

// SetPriorityCeiling locks the mutex, installs the clamped ceiling, unlocks,
// and returns the previous value. On a KindErrorCheck mutex held by the
// caller it fails with ErrDeadlock; on a KindNormal one it blocks.
func (m *Mutex[T]) SetPriorityCeiling(ceiling int) (int, error) {
	old, c := m.lk.SetCeiling(clampCeiling(ceiling))
	if err := acquireErr(c); err != nil {
		return 0, &OpError{Op: `set ceiling`, Err: err}
	}
	return old, nil
}

// Stats returns a snapshot of the lock statistics.
// The returned struct is a copy and safe to use without synchronization.
func (m *Mutex[T]) Stats() Stats {
	return m.s.snapshot(m.state.Load() == stateConsumed)
}

func (m *Mutex[T]) finishRead(op string, fn func(T) error) (err error) {
	start := time.Now()
	defer func() { err = m.release(op, start, err) }()

	if m.state.Load() != stateNormal {
		m.s.failed.Inc()
		return &OpError{Op: op, Err: ErrInvalidated}
	}
	m.s.readAcquired.Inc()
	return fn(m.value)
}

func (m *Mutex[T]) finishWrite(op string, fn func(*Ref[T]) error) (err error) {
	start := time.Now()
	defer func() { err = m.release(op, start, err) }()

	if m.state.Load() != stateNormal {
		m.s.failed.Inc()
		return &OpError{Op: op, Err: ErrInvalidated}
	}
	m.s.writeAcquired.Inc()
	r := &Ref[T]{p: &m.value}
	defer r.invalidate()
	return fn(r)
}

func (m *Mutex[T]) finishUnwrap(op string) (v T, err error) {
	start := time.Now()
	defer func() { err = m.release(op, start, err) }()

	if !m.state.CompareAndSwap(stateNormal, stateConsumed) {
		m.s.failed.Inc()
		return v, &OpError{Op: op, Err: ErrInvalidated}
	}
	m.s.writeAcquired.Inc()
	var zero T
	v, m.value = m.value, zero
	return v, nil
}

// release always runs, whatever the closure did. A release failure after a
// failed closure is logged and joined behind the closure error; on its own
// it is returned directly.
func (m *Mutex[T]) release(op string, start time.Time, err error) error {
	m.s.hold(start)
	rerr := releaseErr(m.lk.Unlock())
	if rerr == nil {
		return err
	}
	oe := &OpError{Op: op, Err: rerr}
	if err == nil {
		return oe
	}
	m.log.Error(oe, `Failed to release lock.`)
	return errors.Join(err, oe)
}
