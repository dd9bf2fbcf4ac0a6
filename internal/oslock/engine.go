package oslock

import "github.com/guardlib/guard/internal/syncutil"

// engine is the exclusion mechanism under a Mutex or SpinMutex. tryLock
// reports Busy when the lock is contended.
type engine interface {
	lock() Code
	tryLock() Code
	unlock() Code
	destroy() Code
}

// rwEngine extends engine with a shared side. The engine methods act on the
// write side.
type rwEngine interface {
	engine
	rlock() Code
	tryRLock() Code
	runlock() Code
}

type memEngine struct {
	mu syncutil.Mutex
}

func (e *memEngine) lock() Code {
	e.mu.Lock()
	return OK
}

func (e *memEngine) tryLock() Code {
	if e.mu.TryLock() {
		return OK
	}
	return Busy
}

func (e *memEngine) unlock() Code {
	e.mu.Unlock()
	return OK
}

func (e *memEngine) destroy() Code { return OK }

type memRWEngine struct {
	mu syncutil.RWMutex
}

func (e *memRWEngine) lock() Code {
	e.mu.Lock()
	return OK
}

func (e *memRWEngine) tryLock() Code {
	if e.mu.TryLock() {
		return OK
	}
	return Busy
}

func (e *memRWEngine) unlock() Code {
	e.mu.Unlock()
	return OK
}

func (e *memRWEngine) rlock() Code {
	e.mu.RLock()
	return OK
}

func (e *memRWEngine) tryRLock() Code {
	if e.mu.TryRLock() {
		return OK
	}
	return Busy
}

func (e *memRWEngine) runlock() Code {
	e.mu.RUnlock()
	return OK
}

func (e *memRWEngine) destroy() Code { return OK }
