package oslock

import (
	"runtime"
	"sync/atomic"

	"github.com/petermattis/goid"

	"github.com/guardlib/guard/internal/syncutil"
)

// spinAttempts bounds the optimistic phase of SpinMutex.Lock before it falls
// back to a blocking acquisition.
const spinAttempts = 128

// SpinMutex is the lightweight unfair mutex. Lock spins briefly in the hope
// of grabbing a just-released lock ahead of queued waiters, then parks. It
// has no kind or ceiling; blocking reentry parks and self-deadlocks. The
// holder is tracked only so a self-directed TryLock resolves to Busy before
// reaching the underlying mutex, whose instrumented build reports such a try
// as recursive locking. Release from a goroutine that never acquired is a
// caller bug and faults the process.
type SpinMutex struct {
	mu        syncutil.Mutex
	owner     atomic.Int64
	destroyed atomic.Bool
}

// NewSpinMutex initializes a spin mutex. The attribute surface is empty so
// initialization cannot fail; the constructor exists for symmetry with the
// other primitives.
func NewSpinMutex() (*SpinMutex, Code) {
	return &SpinMutex{}, OK
}

func (m *SpinMutex) Lock() Code {
	if m.destroyed.Load() {
		return Invalid
	}
	self := goid.Get()
	if m.owner.Load() != self {
		for i := 0; i < spinAttempts; i++ {
			if m.mu.TryLock() {
				m.owner.Store(self)
				return OK
			}
			runtime.Gosched()
		}
	}
	m.mu.Lock()
	m.owner.Store(self)
	return OK
}

func (m *SpinMutex) TryLock() Code {
	if m.destroyed.Load() {
		return Invalid
	}
	self := goid.Get()
	if m.owner.Load() == self {
		return Busy
	}
	if m.mu.TryLock() {
		m.owner.Store(self)
		return OK
	}
	return Busy
}

func (m *SpinMutex) Unlock() Code {
	if m.destroyed.Load() {
		return Invalid
	}
	m.owner.Store(0)
	m.mu.Unlock()
	return OK
}

// Destroy tears the mutex down. A held mutex reports Busy.
func (m *SpinMutex) Destroy() Code {
	if m.destroyed.Load() {
		return Invalid
	}
	if m.owner.Load() != 0 {
		return Busy
	}
	if !m.mu.TryLock() {
		return Busy
	}
	if !m.destroyed.CompareAndSwap(false, true) {
		m.mu.Unlock()
		return Invalid
	}
	m.mu.Unlock()
	return OK
}
