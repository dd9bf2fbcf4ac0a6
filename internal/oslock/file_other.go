//go:build !unix && !windows

package oslock

// Platforms without flock or LockFileEx cannot back a cross-process lock.

func newFileEngine(path string) (engine, Code) {
	return nil, Invalid
}

func newFileRWEngine(path string) (rwEngine, Code) {
	return nil, Invalid
}
