package guard

// Ref is the view of the protected value handed to a write closure. It is
// valid only until the closure returns; the lock invalidates it on the way
// out, and any later use panics instead of racing on the value unlocked.
type Ref[T any] struct {
	p *T
}

// Get returns a copy of the protected value.
func (r *Ref[T]) Get() T { return *r.deref() }

// Set replaces the protected value.
func (r *Ref[T]) Set(v T) { *r.deref() = v }

// Update mutates the protected value in place.
func (r *Ref[T]) Update(fn func(*T)) { fn(r.deref()) }

func (r *Ref[T]) deref() *T {
	if r.p == nil {
		panic(`guard: Ref used outside its write section`)
	}
	return r.p
}

func (r *Ref[T]) invalidate() { r.p = nil }
