// Package oslock provides the native blocking primitives the guard package
// wraps: a heavyweight mutex with configurable kind, a lightweight
// spin-favoring mutex, and a reader-writer lock. Every operation reports a
// status Code in the manner of the underlying OS interfaces; 0 means success
// and the caller decides how to surface the rest.
//
// Process-private locks run on the primitives in internal/syncutil.
// Process-shared locks run on OS file locks and additionally hold an
// in-process lock so exclusion applies inside the owning process too.
package oslock

import "fmt"

// Code is the status of a native lock operation. The zero value means the
// operation succeeded.
type Code uint32

const (
	// OK reports success.
	OK Code = iota
	// Busy reports that a non-blocking acquisition found the lock held, or
	// that a destroy found the lock still in use.
	Busy
	// Deadlock reports that a blocking acquisition would deadlock on the
	// calling goroutine.
	Deadlock
	// Perm reports a release attempted by a goroutine that does not hold
	// the lock.
	Perm
	// Invalid reports an operation on a destroyed handle or initialization
	// with unusable attributes.
	Invalid
	// Again reports a transient shortage of resources during initialization.
	Again
	// NoMem reports that the system lacked the resources to create or
	// operate the lock.
	NoMem
)

// unknownBase marks codes that carry a raw OS status outside the documented
// set. The low 16 bits hold the OS value.
const unknownBase Code = 1 << 16

// UnknownCode wraps a raw OS status that has no documented mapping.
func UnknownCode(raw uint32) Code {
	return unknownBase | Code(raw&0xffff)
}

// Raw returns the numeric value carried by c: the OS status for unknown
// codes, the enumeration value otherwise.
func (c Code) Raw() uint32 {
	if c >= unknownBase {
		return uint32(c &^ unknownBase)
	}
	return uint32(c)
}

func (c Code) String() string {
	switch c {
	case OK:
		return "ok"
	case Busy:
		return "busy"
	case Deadlock:
		return "deadlock"
	case Perm:
		return "perm"
	case Invalid:
		return "invalid"
	case Again:
		return "again"
	case NoMem:
		return "nomem"
	}
	if c >= unknownBase {
		return fmt.Sprintf("unknown(%d)", c.Raw())
	}
	return fmt.Sprintf("code(%d)", uint32(c))
}

// Kind selects the reentrancy behavior of a Mutex.
type Kind uint8

const (
	// KindNormal deadlocks when the holding goroutine locks again.
	KindNormal Kind = iota
	// KindErrorCheck reports Deadlock on blocking self-reentry and Perm on
	// a release by a non-holder.
	KindErrorCheck
	// KindRecursive lets the holding goroutine reacquire; the lock is
	// released to others after a matching number of unlocks. The depth
	// counter lives in this layer because the host primitives have no
	// recursive form.
	KindRecursive
)

// Protocol is the priority protocol attribute. It is validated, stored and
// reported back; the Go scheduler offers no priority inversion control, so it
// has no runtime effect.
type Protocol uint8

const (
	ProtocolNone Protocol = iota
	ProtocolInherit
	ProtocolProtect
)

// Policy is the scheduling policy attribute. Validated and stored only, as
// with Protocol.
type Policy uint8

const (
	PolicyFirstFit Policy = iota
	PolicyFairShare
)

// Attr configures Mutex initialization.
type Attr struct {
	Kind     Kind
	Protocol Protocol
	Ceiling  int
	Policy   Policy
	Shared   bool   // back the mutex with an OS file lock
	Path     string // lock file path; required when Shared
}

// RWAttr configures RWLock initialization.
type RWAttr struct {
	Shared bool
	Path   string
}
