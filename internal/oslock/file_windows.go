//go:build windows

package oslock

import (
	"errors"
	"os"

	"golang.org/x/sys/windows"

	"github.com/guardlib/guard/internal/syncutil"
)

// The whole file is locked through a one-byte range at offset zero, which is
// the LockFileEx convention for treating the file as a single lock token.

func openLockFile(path string) (*os.File, Code) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, codeFromOpenErr(err)
	}
	return f, OK
}

func codeFromOpenErr(err error) Code {
	var errno windows.Errno
	if !errors.As(err, &errno) {
		return Invalid
	}
	switch errno {
	case windows.ERROR_TOO_MANY_OPEN_FILES, windows.ERROR_NOT_ENOUGH_MEMORY, windows.ERROR_NO_SYSTEM_RESOURCES:
		return NoMem
	case windows.ERROR_ACCESS_DENIED, windows.ERROR_FILE_NOT_FOUND, windows.ERROR_PATH_NOT_FOUND, windows.ERROR_INVALID_NAME:
		return Invalid
	}
	return UnknownCode(uint32(errno))
}

func lockFile(f *os.File, flags uint32) Code {
	ol := new(windows.Overlapped)
	err := windows.LockFileEx(windows.Handle(f.Fd()), flags, 0, 1, 0, ol)
	if err == nil {
		return OK
	}
	return codeFromLockErr(err)
}

func unlockFile(f *os.File) Code {
	ol := new(windows.Overlapped)
	err := windows.UnlockFileEx(windows.Handle(f.Fd()), 0, 1, 0, ol)
	if err == nil {
		return OK
	}
	return codeFromLockErr(err)
}

func codeFromLockErr(err error) Code {
	var errno windows.Errno
	if !errors.As(err, &errno) {
		return Invalid
	}
	switch errno {
	case windows.ERROR_LOCK_VIOLATION:
		return Busy
	case windows.ERROR_NOT_LOCKED:
		return Perm
	case windows.ERROR_INVALID_HANDLE:
		return Invalid
	case windows.ERROR_NOT_ENOUGH_MEMORY, windows.ERROR_NO_SYSTEM_RESOURCES:
		return NoMem
	}
	return UnknownCode(uint32(errno))
}

type fileEngine struct {
	local syncutil.Mutex
	f     *os.File
}

func newFileEngine(path string) (engine, Code) {
	f, c := openLockFile(path)
	if c != OK {
		return nil, c
	}
	return &fileEngine{f: f}, OK
}

func (e *fileEngine) lock() Code {
	e.local.Lock()
	if c := lockFile(e.f, windows.LOCKFILE_EXCLUSIVE_LOCK); c != OK {
		e.local.Unlock()
		return c
	}
	return OK
}

func (e *fileEngine) tryLock() Code {
	if !e.local.TryLock() {
		return Busy
	}
	if c := lockFile(e.f, windows.LOCKFILE_EXCLUSIVE_LOCK|windows.LOCKFILE_FAIL_IMMEDIATELY); c != OK {
		e.local.Unlock()
		return c
	}
	return OK
}

func (e *fileEngine) unlock() Code {
	c := unlockFile(e.f)
	e.local.Unlock()
	return c
}

func (e *fileEngine) destroy() Code {
	if err := e.f.Close(); err != nil {
		return Invalid
	}
	return OK
}

type fileRWEngine struct {
	local   syncutil.RWMutex
	tmu     syncutil.Mutex
	readers int
	f       *os.File
}

func newFileRWEngine(path string) (rwEngine, Code) {
	f, c := openLockFile(path)
	if c != OK {
		return nil, c
	}
	return &fileRWEngine{f: f}, OK
}

func (e *fileRWEngine) lock() Code {
	e.local.Lock()
	if c := lockFile(e.f, windows.LOCKFILE_EXCLUSIVE_LOCK); c != OK {
		e.local.Unlock()
		return c
	}
	return OK
}

func (e *fileRWEngine) tryLock() Code {
	if !e.local.TryLock() {
		return Busy
	}
	if c := lockFile(e.f, windows.LOCKFILE_EXCLUSIVE_LOCK|windows.LOCKFILE_FAIL_IMMEDIATELY); c != OK {
		e.local.Unlock()
		return c
	}
	return OK
}

func (e *fileRWEngine) unlock() Code {
	c := unlockFile(e.f)
	e.local.Unlock()
	return c
}

func (e *fileRWEngine) rlock() Code {
	e.local.RLock()
	e.tmu.Lock()
	if e.readers == 0 {
		if c := lockFile(e.f, 0); c != OK {
			e.tmu.Unlock()
			e.local.RUnlock()
			return c
		}
	}
	e.readers++
	e.tmu.Unlock()
	return OK
}

func (e *fileRWEngine) tryRLock() Code {
	if !e.local.TryRLock() {
		return Busy
	}
	if !e.tmu.TryLock() {
		e.local.RUnlock()
		return Busy
	}
	if e.readers == 0 {
		if c := lockFile(e.f, windows.LOCKFILE_FAIL_IMMEDIATELY); c != OK {
			e.tmu.Unlock()
			e.local.RUnlock()
			return c
		}
	}
	e.readers++
	e.tmu.Unlock()
	return OK
}

func (e *fileRWEngine) runlock() Code {
	c := OK
	e.tmu.Lock()
	e.readers--
	if e.readers == 0 {
		c = unlockFile(e.f)
	}
	e.tmu.Unlock()
	e.local.RUnlock()
	return c
}

func (e *fileRWEngine) destroy() Code {
	if err := e.f.Close(); err != nil {
		return Invalid
	}
	return OK
}
