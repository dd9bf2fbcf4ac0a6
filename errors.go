package guard

import (
	"errors"
	"fmt"

	"github.com/guardlib/guard/internal/oslock"
)

// ErrInvalidated reports an access to a value that has been unwrapped.
var ErrInvalidated = errors.New(`value already unwrapped`)

// ErrDeadlock reports an acquisition the native lock refused because it
// would deadlock the calling goroutine.
var ErrDeadlock = errors.New(`operation would deadlock`)

// ErrNotOwner reports a release by a goroutine that does not hold the lock.
var ErrNotOwner = errors.New(`lock not held by caller`)

// ErrBusy reports a teardown attempted while the lock is still held.
var ErrBusy = errors.New(`lock busy`)

// ErrNoResources reports that the system lacked the resources to create the
// lock.
var ErrNoResources = errors.New(`insufficient resources`)

// ErrInvalid reports an operation on a closed handle or construction with
// unusable attributes.
var ErrInvalid = errors.New(`invalid lock handle`)

// OpError wraps the error of a failed operation with the operation name.
// Closure errors are returned unwrapped; every error originating in this
// package arrives as an *OpError.
type OpError struct {
	Op  string
	Err error
}

func (e *OpError) Error() string { return e.Op + `: ` + e.Err.Error() }

func (e *OpError) Unwrap() error { return e.Err }

// StatusError reports a native status outside the documented set for the
// operation that produced it. Status carries the value as reported by the
// native layer.
type StatusError struct {
	Status uint32
}

func (e *StatusError) Error() string {
	return fmt.Sprintf(`unexpected native status %d`, e.Status)
}

// The native layer reports status codes; each operation class recognizes a
// closed set and anything else surfaces as a StatusError rather than being
// swallowed. Busy never reaches acquireErr: blocking acquisitions wait and
// the try variants turn Busy into the would-block result first.

func acquireErr(c oslock.Code) error {
	switch c {
	case oslock.OK:
		return nil
	case oslock.Deadlock:
		return ErrDeadlock
	case oslock.Invalid:
		return ErrInvalid
	}
	return &StatusError{Status: c.Raw()}
}

func releaseErr(c oslock.Code) error {
	switch c {
	case oslock.OK:
		return nil
	case oslock.Perm:
		return ErrNotOwner
	case oslock.Invalid:
		return ErrInvalid
	}
	return &StatusError{Status: c.Raw()}
}

func teardownErr(c oslock.Code) error {
	switch c {
	case oslock.OK:
		return nil
	case oslock.Busy:
		return ErrBusy
	case oslock.Perm:
		return ErrNotOwner
	case oslock.Invalid:
		return ErrInvalid
	}
	return &StatusError{Status: c.Raw()}
}

func initErr(c oslock.Code) error {
	switch c {
	case oslock.OK:
		return nil
	case oslock.Again, oslock.NoMem:
		return ErrNoResources
	case oslock.Invalid:
		return ErrInvalid
	}
	return &StatusError{Status: c.Raw()}
}
