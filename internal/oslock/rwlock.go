package oslock

import (
	"sync/atomic"

	"github.com/petermattis/goid"
)

// RWLock is the native reader-writer lock. Any number of goroutines may hold
// it for reading, or exactly one for writing. Writer ownership is tracked by
// goid; readers are counted but not identified, so a read release is checked
// only against the outstanding count.
type RWLock struct {
	eng rwEngine

	writer    atomic.Int64
	readers   atomic.Int32
	destroyed atomic.Bool
}

// NewRWLock initializes a reader-writer lock.
func NewRWLock(attr RWAttr) (*RWLock, Code) {
	var (
		eng rwEngine
		c   Code
	)
	if attr.Shared {
		eng, c = newFileRWEngine(attr.Path)
		if c != OK {
			return nil, c
		}
	} else {
		eng = &memRWEngine{}
	}
	return &RWLock{eng: eng}, OK
}

// RLock blocks until a read hold is granted.
func (l *RWLock) RLock() Code {
	if l.destroyed.Load() {
		return Invalid
	}
	if c := l.eng.rlock(); c != OK {
		return c
	}
	l.readers.Add(1)
	return OK
}

// TryRLock acquires a read hold without blocking, reporting Busy when a
// writer is in the way.
func (l *RWLock) TryRLock() Code {
	if l.destroyed.Load() {
		return Invalid
	}
	if c := l.eng.tryRLock(); c != OK {
		return c
	}
	l.readers.Add(1)
	return OK
}

// RUnlock releases a read hold. With no read hold outstanding it reports
// Perm.
func (l *RWLock) RUnlock() Code {
	if l.destroyed.Load() {
		return Invalid
	}
	for {
		n := l.readers.Load()
		if n <= 0 {
			return Perm
		}
		if l.readers.CompareAndSwap(n, n-1) {
			break
		}
	}
	return l.eng.runlock()
}

// Lock blocks until the write hold is granted.
func (l *RWLock) Lock() Code {
	if l.destroyed.Load() {
		return Invalid
	}
	if c := l.eng.lock(); c != OK {
		return c
	}
	l.writer.Store(goid.Get())
	return OK
}

// TryLock acquires the write hold without blocking, reporting Busy when any
// hold is outstanding.
func (l *RWLock) TryLock() Code {
	if l.destroyed.Load() {
		return Invalid
	}
	if c := l.eng.tryLock(); c != OK {
		return c
	}
	l.writer.Store(goid.Get())
	return OK
}

// Unlock releases the write hold. A caller that does not hold it reports
// Perm.
func (l *RWLock) Unlock() Code {
	if l.destroyed.Load() {
		return Invalid
	}
	if l.writer.Load() != goid.Get() {
		return Perm
	}
	l.writer.Store(0)
	return l.eng.unlock()
}

// Destroy tears the lock down. Outstanding holds report Busy; a second
// destroy reports Invalid.
func (l *RWLock) Destroy() Code {
	if l.destroyed.Load() {
		return Invalid
	}
	if l.writer.Load() != 0 || l.readers.Load() > 0 {
		return Busy
	}
	if !l.destroyed.CompareAndSwap(false, true) {
		return Invalid
	}
	return l.eng.destroy()
}
