package guard

import (
	"errors"
	"sync/atomic"
	"time"

	"github.com/go-logr/logr"

	"github.com/guardlib/guard/internal/oslock"
)

// RWLock wraps a value behind a native reader-writer lock. Read sections
// from any number of goroutines overlap; Write and TryWrite take the write
// side and exclude everything else. Unwrap and TryUnwrap consume through a
// shared hold, so they do not wait out concurrent readers; the state
// transition elects exactly one winner.
type RWLock[T any] struct {
	lk    *oslock.RWLock
	state atomic.Uint32
	value T
	s     stats
	log   logr.Logger
}

// NewRWLock wraps value behind a new reader-writer lock. Besides the ambient
// options only WithProcessShared applies.
func NewRWLock[T any](value T, opts ...Option) (*RWLock[T], error) {
	cfg, err := newConfig(setShared, opts)
	if err != nil {
		return nil, &OpError{Op: `new rwlock`, Err: err}
	}
	lk, code := oslock.NewRWLock(cfg.rwAttr())
	if err := initErr(code); err != nil {
		return nil, &OpError{Op: `new rwlock`, Err: err}
	}
	l := &RWLock[T]{lk: lk, value: value, log: cfg.logger()}
	l.s.init()
	return l, nil
}

// Read runs fn with a copy of the protected value while holding a read
// lock. Concurrent Read sections overlap.
func (l *RWLock[T]) Read(fn func(T) error) error {
	if err := acquireErr(l.lk.RLock()); err != nil {
		l.s.failed.Inc()
		return &OpError{Op: `read`, Err: err}
	}
	return l.finishRead(`read`, fn)
}

// TryRead is Read without blocking: when a writer is in the way it returns
// (false, nil) and fn does not run.
func (l *RWLock[T]) TryRead(fn func(T) error) (bool, error) {
	c := l.lk.TryRLock()
	if c == oslock.Busy {
		l.s.wouldBlock.Inc()
		return false, nil
	}
	if err := acquireErr(c); err != nil {
		l.s.failed.Inc()
		return false, &OpError{Op: `try read`, Err: err}
	}
	return true, l.finishRead(`try read`, fn)
}

// Write runs fn with a Ref to the protected value while holding the write
// lock.
func (l *RWLock[T]) Write(fn func(*Ref[T]) error) error {
	if err := acquireErr(l.lk.Lock()); err != nil {
		l.s.failed.Inc()
		return &OpError{Op: `write`, Err: err}
	}
	return l.finishWrite(`write`, fn)
}

// TryWrite is Write without blocking, with the TryRead convention.
func (l *RWLock[T]) TryWrite(fn func(*Ref[T]) error) (bool, error) {
	c := l.lk.TryLock()
	if c == oslock.Busy {
		l.s.wouldBlock.Inc()
		return false, nil
	}
	if err := acquireErr(c); err != nil {
		l.s.failed.Inc()
		return false, &OpError{Op: `try write`, Err: err}
	}
	return true, l.finishWrite(`try write`, fn)
}

// Unwrap takes a read hold, copies the value out and leaves the wrapper
// consumed.
func (l *RWLock[T]) Unwrap() (T, error) {
	if err := acquireErr(l.lk.RLock()); err != nil {
		l.s.failed.Inc()
		var zero T
		return zero, &OpError{Op: `unwrap`, Err: err}
	}
	return l.finishUnwrap(`unwrap`)
}

// TryUnwrap is Unwrap without blocking, with the TryRead convention.
func (l *RWLock[T]) TryUnwrap() (T, bool, error) {
	var zero T
	c := l.lk.TryRLock()
	if c == oslock.Busy {
		l.s.wouldBlock.Inc()
		return zero, false, nil
	}
	if err := acquireErr(c); err != nil {
		l.s.failed.Inc()
		return zero, false, &OpError{Op: `try unwrap`, Err: err}
	}
	v, err := l.finishUnwrap(`try unwrap`)
	return v, true, err
}

// Close destroys the native lock. It fails with ErrBusy while any section
// is running and with ErrInvalid when called twice.
func (l *RWLock[T]) Close() error {
	if err := teardownErr(l.lk.Destroy()); err != nil {
		return &OpError{Op: `close`, Err: err}
	}
	return nil
}

// Stats returns a snapshot of the lock statistics.
// The returned struct is a copy and safe to use without synchronization.
func (l *RWLock[T]) Stats() Stats {
	return l.s.snapshot(l.state.Load() == stateConsumed)
}

func (l *RWLock[T]) finishRead(op string, fn func(T) error) (err error) {
	start := time.Now()
	defer func() { err = l.release(op, start, err, l.lk.RUnlock) }()

	if l.state.Load() != stateNormal {
		l.s.failed.Inc()
		return &OpError{Op: op, Err: ErrInvalidated}
	}
	l.s.readAcquired.Inc()
	return fn(l.value)
}

func (l *RWLock[T]) finishWrite(op string, fn func(*Ref[T]) error) (err error) {
	start := time.Now()
	defer func() { err = l.release(op, start, err, l.lk.Unlock) }()

	if l.state.Load() != stateNormal {
		l.s.failed.Inc()
		return &OpError{Op: op, Err: ErrInvalidated}
	}
	l.s.writeAcquired.Inc()
	r := &Ref[T]{p: &l.value}
	defer r.invalidate()
	return fn(r)
}

func (l *RWLock[T]) finishUnwrap(op string) (v T, err error) {
	start := time.Now()
	defer func() { err = l.release(op, start, err, l.lk.RUnlock) }()

	if !l.state.CompareAndSwap(stateNormal, stateConsumed) {
		l.s.failed.Inc()
		return v, &OpError{Op: op, Err: ErrInvalidated}
	}
	l.s.writeAcquired.Inc()
	// The value is copied, not moved: read sections that already passed the
	// state check may still be reading it.
	return l.value, nil
}

func (l *RWLock[T]) release(op string, start time.Time, err error, unlock func() oslock.Code) error {
	l.s.hold(start)
	rerr := releaseErr(unlock())
	if rerr == nil {
		return err
	}
	oe := &OpError{Op: op, Err: rerr}
	if err == nil {
		return oe
	}
	l.log.Error(oe, `Failed to release lock.`)
	return errors.Join(err, oe)
}
