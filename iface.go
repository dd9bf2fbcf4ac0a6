package guard

// Protected is the access surface shared by Mutex, UnfairMutex and RWLock.
type Protected[T any] interface {
	Read(fn func(T) error) error
	TryRead(fn func(T) error) (bool, error)
	Write(fn func(*Ref[T]) error) error
	TryWrite(fn func(*Ref[T]) error) (bool, error)
	Unwrap() (T, error)
	TryUnwrap() (T, bool, error)
	Close() error
	Stats() Stats
}

var (
	_ Protected[int] = (*Mutex[int])(nil)
	_ Protected[int] = (*UnfairMutex[int])(nil)
	_ Protected[int] = (*RWLock[int])(nil)
)

// A wrapper starts normal and becomes consumed when Unwrap extracts the
// value. The transition is one-way; every access after it fails with
// ErrInvalidated.
const (
	stateNormal uint32 = iota
	stateConsumed
)
