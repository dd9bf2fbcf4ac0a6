package guard

import (
	"errors"
	"sync/atomic"
	"time"

	"github.com/go-logr/logr"

	"github.com/guardlib/guard/internal/oslock"
)

// UnfairMutex wraps a value behind a lightweight lock that favors the
// running goroutine over queued waiters: acquisition spins briefly before
// parking, so a goroutine releasing and immediately relocking tends to win.
// Under contention this trades fairness for throughput.
//
// It carries no attributes. Self-reentry deadlocks and a release from a
// goroutine that never acquired corrupts the lock state, as with the native
// primitive. The accessors pair every acquire with a release, which keeps
// both out of reach in normal use.
type UnfairMutex[T any] struct {
	lk    *oslock.SpinMutex
	state atomic.Uint32
	value T
	s     stats
	log   logr.Logger
}

// NewUnfairMutex wraps value behind a new unfair mutex. Only WithName and
// WithLogr apply; attribute options fail construction.
func NewUnfairMutex[T any](value T, opts ...Option) (*UnfairMutex[T], error) {
	cfg, err := newConfig(0, opts)
	if err != nil {
		return nil, &OpError{Op: `new unfair mutex`, Err: err}
	}
	lk, code := oslock.NewSpinMutex()
	if err := initErr(code); err != nil {
		return nil, &OpError{Op: `new unfair mutex`, Err: err}
	}
	m := &UnfairMutex[T]{lk: lk, value: value, log: cfg.logger()}
	m.s.init()
	return m, nil
}

// Read runs fn with a copy of the protected value while holding the lock.
func (m *UnfairMutex[T]) Read(fn func(T) error) error {
	if err := acquireErr(m.lk.Lock()); err != nil {
		m.s.failed.Inc()
		return &OpError{Op: `read`, Err: err}
	}
	return m.finishRead(`read`, fn)
}

// TryRead is Read without blocking: when the lock is already held it returns
// (false, nil) and fn does not run.
func (m *UnfairMutex[T]) TryRead(fn func(T) error) (bool, error) {
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
func (m *UnfairMutex[T]) Write(fn func(*Ref[T]) error) error {
	if err := acquireErr(m.lk.Lock()); err != nil {
		m.s.failed.Inc()
		return &OpError{Op: `write`, Err: err}
	}
	return m.finishWrite(`write`, fn)
}

// TryWrite is Write without blocking, with the TryRead convention.
func (m *UnfairMutex[T]) TryWrite(fn func(*Ref[T]) error) (bool, error) {
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

// Unwrap moves the value out and leaves the wrapper consumed.
func (m *UnfairMutex[T]) Unwrap() (T, error) {
	if err := acquireErr(m.lk.Lock()); err != nil {
		m.s.failed.Inc()
		var zero T
		return zero, &OpError{Op: `unwrap`, Err: err}
	}
	return m.finishUnwrap(`unwrap`)
}

// TryUnwrap is Unwrap without blocking, with the TryRead convention.
func (m *UnfairMutex[T]) TryUnwrap() (T, bool, error) {
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

// Close destroys the native lock.
func (m *UnfairMutex[T]) Close() error {
	if err := teardownErr(m.lk.Destroy()); err != nil {
		return &OpError{Op: `close`, Err: err}
	}
	return nil
}

// Stats returns a snapshot of the lock statistics.
// The returned struct is a copy and safe to use without synchronization.
func (m *UnfairMutex[T]) Stats() Stats {
	return m.s.snapshot(m.state.Load() == stateConsumed)
}

func (m *UnfairMutex[T]) finishRead(op string, fn func(T) error) (err error) {
	start := time.Now()
	defer func() { err = m.release(op, start, err) }()

	if m.state.Load() != stateNormal {
		m.s.failed.Inc()
		return &OpError{Op: op, Err: ErrInvalidated}
	}
	m.s.readAcquired.Inc()
	return fn(m.value)
}

func (m *UnfairMutex[T]) finishWrite(op string, fn func(*Ref[T]) error) (err error) {
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

func (m *UnfairMutex[T]) finishUnwrap(op string) (v T, err error) {
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

func (m *UnfairMutex[T]) release(op string, start time.Time, err error) error {
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
