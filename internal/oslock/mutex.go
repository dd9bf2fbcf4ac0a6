package oslock

import (
	"sync/atomic"

	"github.com/petermattis/goid"
)

// Mutex is the heavyweight native mutex. Its behavior on self-reentry and on
// foreign release follows its Kind. The holder is identified by goroutine so
// kind checks work without OS thread pinning.
//
// Release is owner-checked for every kind, not just KindErrorCheck. The
// classic primitives leave foreign release of a normal mutex undefined;
// reporting Perm keeps the state machine sound instead.
type Mutex struct {
	eng  engine
	kind Kind

	// owner is the goid of the holding goroutine, 0 when free. depth is the
	// recursive acquisition count, touched only by the owner while holding.
	owner atomic.Int64
	depth uint32

	ceiling   atomic.Int32
	destroyed atomic.Bool

	protocol Protocol
	policy   Policy
}

// NewMutex initializes a mutex with the given attributes. Out-of-range
// attributes report Invalid.
func NewMutex(attr Attr) (*Mutex, Code) {
	if attr.Kind > KindRecursive || attr.Protocol > ProtocolProtect || attr.Policy > PolicyFairShare {
		return nil, Invalid
	}
	var (
		eng engine
		c   Code
	)
	if attr.Shared {
		eng, c = newFileEngine(attr.Path)
		if c != OK {
			return nil, c
		}
	} else {
		eng = &memEngine{}
	}
	m := &Mutex{
		eng:      eng,
		kind:     attr.Kind,
		protocol: attr.Protocol,
		policy:   attr.Policy,
	}
	m.ceiling.Store(int32(attr.Ceiling))
	return m, OK
}

// Lock blocks until the mutex is held. Self-reentry reports Deadlock for
// KindErrorCheck, increments the hold depth for KindRecursive, and blocks on
// the engine for KindNormal just as the native form would.
func (m *Mutex) Lock() Code {
	if m.destroyed.Load() {
		return Invalid
	}
	self := goid.Get()
	if m.owner.Load() == self {
		switch m.kind {
		case KindErrorCheck:
			return Deadlock
		case KindRecursive:
			m.depth++
			return OK
		}
	}
	if c := m.eng.lock(); c != OK {
		return c
	}
	m.owner.Store(self)
	m.depth = 1
	return OK
}

// TryLock acquires the mutex without blocking. A held mutex reports Busy,
// including one held by the caller, except that KindRecursive grants the
// reacquisition.
func (m *Mutex) TryLock() Code {
	if m.destroyed.Load() {
		return Invalid
	}
	self := goid.Get()
	if m.owner.Load() == self {
		if m.kind == KindRecursive {
			m.depth++
			return OK
		}
		return Busy
	}
	if c := m.eng.tryLock(); c != OK {
		return c
	}
	m.owner.Store(self)
	m.depth = 1
	return OK
}

// Unlock releases the mutex. A caller that does not hold it reports Perm. A
// recursive mutex stays held until the outermost acquisition is released.
func (m *Mutex) Unlock() Code {
	if m.destroyed.Load() {
		return Invalid
	}
	if m.owner.Load() != goid.Get() {
		return Perm
	}
	if m.kind == KindRecursive && m.depth > 1 {
		m.depth--
		return OK
	}
	m.depth = 0
	// Clear ownership before the engine releases so the next holder's
	// owner store cannot be overwritten.
	m.owner.Store(0)
	return m.eng.unlock()
}

// Ceiling reports the stored priority ceiling without acquiring the mutex.
func (m *Mutex) Ceiling() (int, Code) {
	if m.destroyed.Load() {
		return 0, Invalid
	}
	return int(m.ceiling.Load()), OK
}

// SetCeiling locks the mutex, swaps the ceiling, unlocks, and returns the
// previous value. Calling it while holding a KindErrorCheck mutex therefore
// reports Deadlock, and a KindNormal one blocks.
func (m *Mutex) SetCeiling(v int) (int, Code) {
	if m.destroyed.Load() {
		return 0, Invalid
	}
	if c := m.Lock(); c != OK {
		return 0, c
	}
	old := int(m.ceiling.Swap(int32(v)))
	if c := m.Unlock(); c != OK {
		return 0, c
	}
	return old, OK
}

// Destroy tears the mutex down. A held mutex reports Busy; a second destroy
// reports Invalid.
func (m *Mutex) Destroy() Code {
	if m.destroyed.Load() {
		return Invalid
	}
	if m.owner.Load() != 0 {
		return Busy
	}
	if !m.destroyed.CompareAndSwap(false, true) {
		return Invalid
	}
	return m.eng.destroy()
}
