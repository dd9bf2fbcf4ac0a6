//go:build unix

package oslock_test

import (
	"path/filepath"
	"testing"

	"github.com/guardlib/guard/internal/oslock"
)

func sharedAttr(t *testing.T) oslock.Attr {
	t.Helper()
	return oslock.Attr{Shared: true, Path: filepath.Join(t.TempDir(), "oslock.test")}
}

func TestFileMutex_ExcludesAcrossInstances(t *testing.T) {
	attr := sharedAttr(t)
	a := newMutex(t, attr)
	b := newMutex(t, attr)

	if c := a.Lock(); c != oslock.OK {
		t.Fatalf("a.Lock: %v", c)
	}
	if c := b.TryLock(); c != oslock.Busy {
		t.Errorf("b.TryLock while a holds: expected busy, got %v", c)
	}
	if c := a.Unlock(); c != oslock.OK {
		t.Fatalf("a.Unlock: %v", c)
	}
	if c := b.TryLock(); c != oslock.OK {
		t.Fatalf("b.TryLock after release: %v", c)
	}
	if c := b.Unlock(); c != oslock.OK {
		t.Fatalf("b.Unlock: %v", c)
	}

	if c := a.Destroy(); c != oslock.OK {
		t.Errorf("a.Destroy: %v", c)
	}
	if c := b.Destroy(); c != oslock.OK {
		t.Errorf("b.Destroy: %v", c)
	}
}

func TestFileRWLock_SharedAndExclusive(t *testing.T) {
	attr := oslock.RWAttr{Shared: true, Path: filepath.Join(t.TempDir(), "oslock.test")}
	newRW := func() *oslock.RWLock {
		l, c := oslock.NewRWLock(attr)
		if c != oslock.OK {
			t.Fatalf("NewRWLock: %v", c)
		}
		return l
	}
	a, b, w := newRW(), newRW(), newRW()

	if c := a.RLock(); c != oslock.OK {
		t.Fatalf("a.RLock: %v", c)
	}
	if c := b.TryRLock(); c != oslock.OK {
		t.Fatalf("b.TryRLock alongside a: %v", c)
	}
	if c := w.TryLock(); c != oslock.Busy {
		t.Errorf("w.TryLock against readers: expected busy, got %v", c)
	}

	if c := a.RUnlock(); c != oslock.OK {
		t.Fatalf("a.RUnlock: %v", c)
	}
	if c := w.TryLock(); c != oslock.Busy {
		t.Errorf("w.TryLock with b still reading: expected busy, got %v", c)
	}
	if c := b.RUnlock(); c != oslock.OK {
		t.Fatalf("b.RUnlock: %v", c)
	}

	if c := w.TryLock(); c != oslock.OK {
		t.Fatalf("w.TryLock after readers left: %v", c)
	}
	if c := a.TryRLock(); c != oslock.Busy {
		t.Errorf("a.TryRLock against writer: expected busy, got %v", c)
	}
	if c := w.Unlock(); c != oslock.OK {
		t.Fatalf("w.Unlock: %v", c)
	}
}

func TestFileMutex_SameInstanceSerializes(t *testing.T) {
	m := newMutex(t, sharedAttr(t))

	if c := m.Lock(); c != oslock.OK {
		t.Fatalf("Lock: %v", c)
	}
	done := make(chan oslock.Code)
	go func() { done <- m.TryLock() }()
	if c := <-done; c != oslock.Busy {
		t.Errorf("TryLock on held instance: expected busy, got %v", c)
	}
	if c := m.Unlock(); c != oslock.OK {
		t.Fatalf("Unlock: %v", c)
	}
}

func TestFileMutex_BadPath(t *testing.T) {
	// A directory cannot be opened for writing, so initialization must fail.
	if _, c := oslock.NewMutex(oslock.Attr{Shared: true, Path: t.TempDir()}); c == oslock.OK {
		t.Error("expected initialization to fail on a directory path")
	}
}
