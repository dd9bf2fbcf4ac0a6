package guard

import (
	"fmt"

	"github.com/go-logr/logr"

	"github.com/guardlib/guard/internal/oslock"
)

// LockKind selects how a Mutex treats reacquisition by the goroutine that
// already holds it.
type LockKind uint8

const (
	// KindNormal deadlocks on blocking self-reentry; the try variants report
	// would-block.
	KindNormal LockKind = iota
	// KindErrorCheck fails blocking self-reentry with ErrDeadlock and a
	// foreign release with ErrNotOwner.
	KindErrorCheck
	// KindRecursive grants reacquisition to the holder; the lock is released
	// to others after a matching number of section exits.
	KindRecursive
)

func (k LockKind) String() string {
	switch k {
	case KindNormal:
		return `normal`
	case KindErrorCheck:
		return `error-check`
	case KindRecursive:
		return `recursive`
	}
	return fmt.Sprintf(`lock-kind(%d)`, uint8(k))
}

// ParseLockKind converts the text form back to a LockKind.
func ParseLockKind(s string) (LockKind, error) {
	switch s {
	case `normal`:
		return KindNormal, nil
	case `error-check`:
		return KindErrorCheck, nil
	case `recursive`:
		return KindRecursive, nil
	}
	return 0, fmt.Errorf(`parse lock kind %q: %w`, s, ErrInvalid)
}

func (k LockKind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

func (k *LockKind) UnmarshalText(text []byte) error {
	v, err := ParseLockKind(string(text))
	if err != nil {
		return err
	}
	*k = v
	return nil
}

// PriorityProtocol is the priority protocol attribute of a Mutex. The Go
// scheduler has no thread priorities, so the protocol is validated, stored,
// and reported back without a scheduling effect.
type PriorityProtocol uint8

const (
	ProtocolNone PriorityProtocol = iota
	ProtocolInherit
	ProtocolProtect
)

func (p PriorityProtocol) String() string {
	switch p {
	case ProtocolNone:
		return `none`
	case ProtocolInherit:
		return `inherit`
	case ProtocolProtect:
		return `protect`
	}
	return fmt.Sprintf(`priority-protocol(%d)`, uint8(p))
}

// ParsePriorityProtocol converts the text form back to a PriorityProtocol.
func ParsePriorityProtocol(s string) (PriorityProtocol, error) {
	switch s {
	case `none`:
		return ProtocolNone, nil
	case `inherit`:
		return ProtocolInherit, nil
	case `protect`:
		return ProtocolProtect, nil
	}
	return 0, fmt.Errorf(`parse priority protocol %q: %w`, s, ErrInvalid)
}

func (p PriorityProtocol) MarshalText() ([]byte, error) { return []byte(p.String()), nil }

func (p *PriorityProtocol) UnmarshalText(text []byte) error {
	v, err := ParsePriorityProtocol(string(text))
	if err != nil {
		return err
	}
	*p = v
	return nil
}

// SchedPolicy is the waiter scheduling policy attribute of a Mutex.
// Validated and stored only, as with PriorityProtocol.
type SchedPolicy uint8

const (
	PolicyFirstFit SchedPolicy = iota
	PolicyFairShare
)

func (p SchedPolicy) String() string {
	switch p {
	case PolicyFirstFit:
		return `first-fit`
	case PolicyFairShare:
		return `fair-share`
	}
	return fmt.Sprintf(`sched-policy(%d)`, uint8(p))
}

// ParseSchedPolicy converts the text form back to a SchedPolicy.
func ParseSchedPolicy(s string) (SchedPolicy, error) {
	switch s {
	case `first-fit`:
		return PolicyFirstFit, nil
	case `fair-share`:
		return PolicyFairShare, nil
	}
	return 0, fmt.Errorf(`parse sched policy %q: %w`, s, ErrInvalid)
}

func (p SchedPolicy) MarshalText() ([]byte, error) { return []byte(p.String()), nil }

func (p *SchedPolicy) UnmarshalText(text []byte) error {
	v, err := ParseSchedPolicy(string(text))
	if err != nil {
		return err
	}
	*p = v
	return nil
}

// Visibility tells whether a lock works across process boundaries.
// VisibilityShared locks are backed by an OS file lock named through
// WithProcessShared.
type Visibility uint8

const (
	VisibilityPrivate Visibility = iota
	VisibilityShared
)

func (v Visibility) String() string {
	switch v {
	case VisibilityPrivate:
		return `private`
	case VisibilityShared:
		return `shared`
	}
	return fmt.Sprintf(`visibility(%d)`, uint8(v))
}

// ParseVisibility converts the text form back to a Visibility.
func ParseVisibility(s string) (Visibility, error) {
	switch s {
	case `private`:
		return VisibilityPrivate, nil
	case `shared`:
		return VisibilityShared, nil
	}
	return 0, fmt.Errorf(`parse visibility %q: %w`, s, ErrInvalid)
}

func (v Visibility) MarshalText() ([]byte, error) { return []byte(v.String()), nil }

func (v *Visibility) UnmarshalText(text []byte) error {
	p, err := ParseVisibility(string(text))
	if err != nil {
		return err
	}
	*v = p
	return nil
}

// CeilingMin and CeilingMax bound the priority ceiling. SetPriorityCeiling
// and WithPriorityCeiling clamp into this range.
const (
	CeilingMin = -999
	CeilingMax = 999
)

func clampCeiling(v int) int {
	if v < CeilingMin {
		return CeilingMin
	}
	if v > CeilingMax {
		return CeilingMax
	}
	return v
}

const (
	setKind uint8 = 1 << iota
	setProtocol
	setCeiling
	setPolicy
	setShared
)

var optionNames = []struct {
	bit  uint8
	name string
}{
	{setKind, `WithKind`},
	{setProtocol, `WithPriorityProtocol`},
	{setCeiling, `WithPriorityCeiling`},
	{setPolicy, `WithSchedPolicy`},
	{setShared, `WithProcessShared`},
}

type config struct {
	kind       LockKind
	protocol   PriorityProtocol
	ceiling    int
	policy     SchedPolicy
	visibility Visibility
	path       string
	name       string
	log        logr.Logger
	set        uint8
}

// newConfig applies the options and rejects any outside the allowed set of
// the constructing primitive.
func newConfig(allowed uint8, opts []Option) (config, error) {
	c := config{log: logr.Discard()}
	for _, o := range opts {
		o(&c)
	}
	for _, f := range optionNames {
		if c.set&f.bit != 0 && allowed&f.bit == 0 {
			return c, fmt.Errorf(`option %s not supported: %w`, f.name, ErrInvalid)
		}
	}
	if c.kind > KindRecursive {
		return c, fmt.Errorf(`lock kind %d out of range: %w`, uint8(c.kind), ErrInvalid)
	}
	if c.protocol > ProtocolProtect {
		return c, fmt.Errorf(`priority protocol %d out of range: %w`, uint8(c.protocol), ErrInvalid)
	}
	if c.policy > PolicyFairShare {
		return c, fmt.Errorf(`sched policy %d out of range: %w`, uint8(c.policy), ErrInvalid)
	}
	if c.visibility == VisibilityShared && c.path == `` {
		return c, fmt.Errorf(`process shared lock needs a path: %w`, ErrInvalid)
	}
	c.ceiling = clampCeiling(c.ceiling)
	return c, nil
}

func (c *config) logger() logr.Logger {
	if c.name != `` {
		return c.log.WithName(c.name)
	}
	return c.log
}

func (c *config) mutexAttr() oslock.Attr {
	return oslock.Attr{
		Kind:     oslock.Kind(c.kind),
		Protocol: oslock.Protocol(c.protocol),
		Ceiling:  c.ceiling,
		Policy:   oslock.Policy(c.policy),
		Shared:   c.visibility == VisibilityShared,
		Path:     c.path,
	}
}

func (c *config) rwAttr() oslock.RWAttr {
	return oslock.RWAttr{
		Shared: c.visibility == VisibilityShared,
		Path:   c.path,
	}
}
