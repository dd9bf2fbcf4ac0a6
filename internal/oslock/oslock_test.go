package oslock_test

import (
	"sync"
	"testing"

	"github.com/guardlib/guard/internal/oslock"
)

func newMutex(t *testing.T, attr oslock.Attr) *oslock.Mutex {
	t.Helper()
	m, c := oslock.NewMutex(attr)
	if c != oslock.OK {
		t.Fatalf("NewMutex failed: %v", c)
	}
	return m
}

// =============================================================================
// Kind Semantics
// =============================================================================

func TestMutex_NormalTryLockSelfBusy(t *testing.T) {
	m := newMutex(t, oslock.Attr{})

	if c := m.Lock(); c != oslock.OK {
		t.Fatalf("Lock: %v", c)
	}
	if c := m.TryLock(); c != oslock.Busy {
		t.Errorf("TryLock on self-held: expected busy, got %v", c)
	}
	if c := m.Unlock(); c != oslock.OK {
		t.Fatalf("Unlock: %v", c)
	}
}

func TestMutex_ErrorCheck(t *testing.T) {
	m := newMutex(t, oslock.Attr{Kind: oslock.KindErrorCheck})

	if c := m.Unlock(); c != oslock.Perm {
		t.Errorf("Unlock unheld: expected perm, got %v", c)
	}

	if c := m.Lock(); c != oslock.OK {
		t.Fatalf("Lock: %v", c)
	}
	if c := m.Lock(); c != oslock.Deadlock {
		t.Errorf("Lock on self-held: expected deadlock, got %v", c)
	}
	if c := m.TryLock(); c != oslock.Busy {
		t.Errorf("TryLock on self-held: expected busy, got %v", c)
	}

	// A goroutine that does not hold the lock cannot release it.
	foreign := make(chan oslock.Code)
	go func() { foreign <- m.Unlock() }()
	if c := <-foreign; c != oslock.Perm {
		t.Errorf("foreign Unlock: expected perm, got %v", c)
	}

	if c := m.Unlock(); c != oslock.OK {
		t.Fatalf("Unlock: %v", c)
	}
}

func TestMutex_RecursiveDepth(t *testing.T) {
	m := newMutex(t, oslock.Attr{Kind: oslock.KindRecursive})

	if c := m.Lock(); c != oslock.OK {
		t.Fatalf("Lock: %v", c)
	}
	if c := m.Lock(); c != oslock.OK {
		t.Fatalf("recursive Lock: %v", c)
	}
	if c := m.TryLock(); c != oslock.OK {
		t.Fatalf("recursive TryLock: %v", c)
	}

	tryFromOther := func() oslock.Code {
		ch := make(chan oslock.Code)
		go func() { ch <- m.TryLock() }()
		return <-ch
	}

	// Two of three holds released: still closed to others.
	m.Unlock()
	m.Unlock()
	if c := tryFromOther(); c != oslock.Busy {
		t.Errorf("expected busy while outermost hold remains, got %v", c)
	}

	if c := m.Unlock(); c != oslock.OK {
		t.Fatalf("final Unlock: %v", c)
	}
	if c := tryFromOther(); c != oslock.OK {
		t.Errorf("expected free after matching unlocks, got %v", c)
	}
}

func TestMutex_InvalidAttr(t *testing.T) {
	if _, c := oslock.NewMutex(oslock.Attr{Kind: oslock.Kind(9)}); c != oslock.Invalid {
		t.Errorf("expected invalid, got %v", c)
	}
	if _, c := oslock.NewMutex(oslock.Attr{Protocol: oslock.Protocol(9)}); c != oslock.Invalid {
		t.Errorf("expected invalid, got %v", c)
	}
}

// =============================================================================
// Ceiling
// =============================================================================

func TestMutex_CeilingSwap(t *testing.T) {
	m := newMutex(t, oslock.Attr{Ceiling: 5})

	if v, c := m.Ceiling(); c != oslock.OK || v != 5 {
		t.Fatalf("Ceiling: expected (5, ok), got (%d, %v)", v, c)
	}
	if old, c := m.SetCeiling(7); c != oslock.OK || old != 5 {
		t.Fatalf("SetCeiling: expected (5, ok), got (%d, %v)", old, c)
	}
	if v, _ := m.Ceiling(); v != 7 {
		t.Errorf("expected ceiling 7, got %d", v)
	}
}

func TestMutex_SetCeilingHeldErrorCheck(t *testing.T) {
	m := newMutex(t, oslock.Attr{Kind: oslock.KindErrorCheck})

	m.Lock()
	if _, c := m.SetCeiling(1); c != oslock.Deadlock {
		t.Errorf("expected deadlock, got %v", c)
	}
	m.Unlock()
}

// =============================================================================
// Destroy
// =============================================================================

func TestMutex_DestroyLifecycle(t *testing.T) {
	m := newMutex(t, oslock.Attr{})

	m.Lock()
	if c := m.Destroy(); c != oslock.Busy {
		t.Errorf("Destroy while held: expected busy, got %v", c)
	}
	m.Unlock()

	if c := m.Destroy(); c != oslock.OK {
		t.Fatalf("Destroy: %v", c)
	}
	if c := m.Destroy(); c != oslock.Invalid {
		t.Errorf("second Destroy: expected invalid, got %v", c)
	}
	if c := m.Lock(); c != oslock.Invalid {
		t.Errorf("Lock after destroy: expected invalid, got %v", c)
	}
	if c := m.TryLock(); c != oslock.Invalid {
		t.Errorf("TryLock after destroy: expected invalid, got %v", c)
	}
	if _, c := m.Ceiling(); c != oslock.Invalid {
		t.Errorf("Ceiling after destroy: expected invalid, got %v", c)
	}
}

// =============================================================================
// SpinMutex
// =============================================================================

func TestSpinMutex_Basic(t *testing.T) {
	m, c := oslock.NewSpinMutex()
	if c != oslock.OK {
		t.Fatalf("NewSpinMutex: %v", c)
	}

	if c := m.Lock(); c != oslock.OK {
		t.Fatalf("Lock: %v", c)
	}
	if c := m.TryLock(); c != oslock.Busy {
		t.Errorf("TryLock while held: expected busy, got %v", c)
	}
	if c := m.Destroy(); c != oslock.Busy {
		t.Errorf("Destroy while held: expected busy, got %v", c)
	}
	if c := m.Unlock(); c != oslock.OK {
		t.Fatalf("Unlock: %v", c)
	}

	if c := m.Destroy(); c != oslock.OK {
		t.Fatalf("Destroy: %v", c)
	}
	if c := m.Lock(); c != oslock.Invalid {
		t.Errorf("Lock after destroy: expected invalid, got %v", c)
	}
}

func TestSpinMutex_SelfTryLifecycle(t *testing.T) {
	m, _ := oslock.NewSpinMutex()

	if c := m.TryLock(); c != oslock.OK {
		t.Fatalf("TryLock: %v", c)
	}
	if c := m.TryLock(); c != oslock.Busy {
		t.Errorf("TryLock while holding: expected busy, got %v", c)
	}

	// A foreign try hits the held lock itself, not the holder mark.
	foreign := make(chan oslock.Code)
	go func() { foreign <- m.TryLock() }()
	if c := <-foreign; c != oslock.Busy {
		t.Errorf("TryLock from another goroutine: expected busy, got %v", c)
	}

	if c := m.Unlock(); c != oslock.OK {
		t.Fatalf("Unlock: %v", c)
	}

	// Release drops the holder mark, so the same goroutine reacquires.
	if c := m.TryLock(); c != oslock.OK {
		t.Fatalf("TryLock after release: %v", c)
	}
	if c := m.TryLock(); c != oslock.Busy {
		t.Errorf("TryLock while holding again: expected busy, got %v", c)
	}
	if c := m.Unlock(); c != oslock.OK {
		t.Fatalf("Unlock: %v", c)
	}
}

func TestSpinMutex_ContendedCount(t *testing.T) {
	m, _ := oslock.NewSpinMutex()

	const goroutines = 8
	const iterations = 2000
	var count int

	var wg sync.WaitGroup
	for range goroutines {
		wg.Go(func() {
			for range iterations {
				m.Lock()
				count++
				m.Unlock()
			}
		})
	}
	wg.Wait()

	if count != goroutines*iterations {
		t.Errorf("expected %d, got %d", goroutines*iterations, count)
	}
}

// =============================================================================
// RWLock
// =============================================================================

func TestRWLock_ReadersExcludeWriter(t *testing.T) {
	l, c := oslock.NewRWLock(oslock.RWAttr{})
	if c != oslock.OK {
		t.Fatalf("NewRWLock: %v", c)
	}

	l.RLock()
	l.RLock()
	if c := l.TryLock(); c != oslock.Busy {
		t.Errorf("TryLock with readers: expected busy, got %v", c)
	}
	l.RUnlock()
	if c := l.TryLock(); c != oslock.Busy {
		t.Errorf("TryLock with one reader left: expected busy, got %v", c)
	}
	l.RUnlock()
	if c := l.TryLock(); c != oslock.OK {
		t.Fatalf("TryLock after readers left: %v", c)
	}
	if c := l.TryRLock(); c != oslock.Busy {
		t.Errorf("TryRLock during write: expected busy, got %v", c)
	}
	if c := l.Unlock(); c != oslock.OK {
		t.Fatalf("Unlock: %v", c)
	}
}

func TestRWLock_UnheldReleases(t *testing.T) {
	l, _ := oslock.NewRWLock(oslock.RWAttr{})

	if c := l.RUnlock(); c != oslock.Perm {
		t.Errorf("RUnlock unheld: expected perm, got %v", c)
	}
	if c := l.Unlock(); c != oslock.Perm {
		t.Errorf("Unlock unheld: expected perm, got %v", c)
	}

	l.Lock()
	foreign := make(chan oslock.Code)
	go func() { foreign <- l.Unlock() }()
	if c := <-foreign; c != oslock.Perm {
		t.Errorf("foreign Unlock: expected perm, got %v", c)
	}
	if c := l.Unlock(); c != oslock.OK {
		t.Fatalf("owner Unlock: %v", c)
	}
}

func TestRWLock_DestroyBusy(t *testing.T) {
	l, _ := oslock.NewRWLock(oslock.RWAttr{})

	l.RLock()
	if c := l.Destroy(); c != oslock.Busy {
		t.Errorf("Destroy with reader: expected busy, got %v", c)
	}
	l.RUnlock()

	if c := l.Destroy(); c != oslock.OK {
		t.Fatalf("Destroy: %v", c)
	}
	if c := l.RLock(); c != oslock.Invalid {
		t.Errorf("RLock after destroy: expected invalid, got %v", c)
	}
	if c := l.Destroy(); c != oslock.Invalid {
		t.Errorf("second Destroy: expected invalid, got %v", c)
	}
}

// =============================================================================
// Codes
// =============================================================================

func TestCode_String(t *testing.T) {
	if s := oslock.OK.String(); s != "ok" {
		t.Errorf("expected %q, got %q", "ok", s)
	}
	if s := oslock.Deadlock.String(); s != "deadlock" {
		t.Errorf("expected %q, got %q", "deadlock", s)
	}
	u := oslock.UnknownCode(38)
	if s := u.String(); s != "unknown(38)" {
		t.Errorf("expected %q, got %q", "unknown(38)", s)
	}
	if u.Raw() != 38 {
		t.Errorf("expected raw 38, got %d", u.Raw())
	}
	if oslock.Busy.Raw() != 1 {
		t.Errorf("expected raw 1, got %d", oslock.Busy.Raw())
	}
}
