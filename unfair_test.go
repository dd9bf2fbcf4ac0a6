package guard_test

import (
	"errors"
	"sync"
	"testing"

	"github.com/guardlib/guard"
)

func mustUnfair[T any](t *testing.T, value T, opts ...guard.Option) *guard.UnfairMutex[T] {
	t.Helper()
	m, err := guard.NewUnfairMutex(value, opts...)
	if err != nil {
		t.Fatalf("NewUnfairMutex failed: %v", err)
	}
	return m
}

func TestUnfairMutex_ReadWrite(t *testing.T) {
	m := mustUnfair(t, []string{})

	if err := m.Write(func(r *guard.Ref[[]string]) error {
		r.Update(func(v *[]string) { *v = append(*v, "a", "b") })
		return nil
	}); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	var n int
	if err := m.Read(func(v []string) error {
		n = len(v)
		return nil
	}); err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if n != 2 {
		t.Errorf("expected 2 elements, got %d", n)
	}
}

func TestUnfairMutex_RejectsAttributeOptions(t *testing.T) {
	attrs := map[string]guard.Option{
		"WithKind":             guard.WithKind(guard.KindRecursive),
		"WithPriorityProtocol": guard.WithPriorityProtocol(guard.ProtocolInherit),
		"WithPriorityCeiling":  guard.WithPriorityCeiling(1),
		"WithSchedPolicy":      guard.WithSchedPolicy(guard.PolicyFairShare),
		"WithProcessShared":    guard.WithProcessShared("/tmp/unfair.lock"),
	}
	for name, opt := range attrs {
		if _, err := guard.NewUnfairMutex(0, opt); !errors.Is(err, guard.ErrInvalid) {
			t.Errorf("%s: expected ErrInvalid, got: %v", name, err)
		}
	}

	// Ambient options stay available.
	if _, err := guard.NewUnfairMutex(0, guard.WithName("cache")); err != nil {
		t.Errorf("WithName: unexpected error: %v", err)
	}
}

func TestUnfairMutex_TryWouldBlock(t *testing.T) {
	m := mustUnfair(t, 0)

	locked := make(chan struct{})
	release := make(chan struct{})
	var wg sync.WaitGroup
	wg.Go(func() {
		m.Write(func(*guard.Ref[int]) error {
			close(locked)
			<-release
			return nil
		})
	})

	<-locked
	if ok, err := m.TryRead(func(int) error { return nil }); ok || err != nil {
		t.Errorf("expected (false, nil) while held, got (%v, %v)", ok, err)
	}
	if _, ok, err := m.TryUnwrap(); ok || err != nil {
		t.Errorf("expected (false, nil) while held, got (%v, %v)", ok, err)
	}
	close(release)
	wg.Wait()

	if ok, err := m.TryRead(func(int) error { return nil }); !ok || err != nil {
		t.Errorf("expected (true, nil) after release, got (%v, %v)", ok, err)
	}
}

func TestUnfairMutex_NestedTryWouldBlock(t *testing.T) {
	m := mustUnfair(t, 0)

	err := m.Write(func(*guard.Ref[int]) error {
		ok, err := m.TryRead(func(int) error { return nil })
		if ok || err != nil {
			t.Errorf("nested TryRead: expected (false, nil), got (%v, %v)", ok, err)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Write failed: %v", err)
	}
}

func TestUnfairMutex_InvalidatedAfterUnwrap(t *testing.T) {
	m := mustUnfair(t, 99)

	v, err := m.Unwrap()
	if err != nil {
		t.Fatalf("Unwrap failed: %v", err)
	}
	if v != 99 {
		t.Errorf("expected 99, got %d", v)
	}

	if err := m.Write(func(*guard.Ref[int]) error { return nil }); !errors.Is(err, guard.ErrInvalidated) {
		t.Errorf("expected ErrInvalidated, got: %v", err)
	}
	if !m.Stats().Unwrapped {
		t.Error("expected unwrapped flag set")
	}
}

func TestUnfairMutex_ConcurrentIncrements(t *testing.T) {
	const goroutines = 8
	const increments = 1000

	m := mustUnfair(t, 0)
	var wg sync.WaitGroup
	for range goroutines {
		wg.Go(func() {
			for range increments {
				m.Write(func(r *guard.Ref[int]) error {
					r.Update(func(v *int) { *v++ })
					return nil
				})
			}
		})
	}
	wg.Wait()

	v, err := m.Unwrap()
	if err != nil {
		t.Fatalf("Unwrap failed: %v", err)
	}
	if v != goroutines*increments {
		t.Errorf("expected %d, got %d", goroutines*increments, v)
	}
}

func TestUnfairMutex_Close(t *testing.T) {
	m := mustUnfair(t, 0)

	if err := m.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := m.Read(func(int) error { return nil }); !errors.Is(err, guard.ErrInvalid) {
		t.Errorf("expected ErrInvalid, got: %v", err)
	}
	if err := m.Close(); !errors.Is(err, guard.ErrInvalid) {
		t.Errorf("second Close: expected ErrInvalid, got: %v", err)
	}
}

func BenchmarkUnfairMutexWrite(b *testing.B) {
	m, err := guard.NewUnfairMutex(0)
	if err != nil {
		b.Fatal(err)
	}
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			m.Write(func(r *guard.Ref[int]) error {
				r.Update(func(v *int) { *v++ })
				return nil
			})
		}
	})
}
