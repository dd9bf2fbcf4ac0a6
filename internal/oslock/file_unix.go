//go:build unix

package oslock

import (
	"errors"
	"os"

	"golang.org/x/sys/unix"

	"github.com/guardlib/guard/internal/syncutil"
)

// openLockFile opens or creates the lock file backing a shared primitive.
// Each engine keeps its own descriptor so two instances over the same path
// exclude each other through flock even inside one process.
func openLockFile(path string) (*os.File, Code) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, codeFromOpenErr(err)
	}
	return f, OK
}

func codeFromOpenErr(err error) Code {
	var errno unix.Errno
	if !errors.As(err, &errno) {
		return Invalid
	}
	switch errno {
	case unix.EMFILE, unix.ENFILE, unix.ENOMEM, unix.ENOSPC, unix.EDQUOT:
		return NoMem
	case unix.EAGAIN:
		return Again
	case unix.EACCES, unix.EPERM, unix.ENOENT, unix.ENOTDIR, unix.EISDIR, unix.EROFS, unix.ENAMETOOLONG:
		return Invalid
	}
	return UnknownCode(uint32(errno))
}

// flock wraps unix.Flock with an interrupted-call retry and translates the
// errno into a Code.
func flock(f *os.File, how int) Code {
	for {
		err := unix.Flock(int(f.Fd()), how)
		if err == nil {
			return OK
		}
		if errors.Is(err, unix.EINTR) {
			continue
		}
		if errors.Is(err, unix.EWOULDBLOCK) || errors.Is(err, unix.EAGAIN) {
			return Busy
		}
		switch {
		case errors.Is(err, unix.EINVAL), errors.Is(err, unix.EBADF):
			return Invalid
		case errors.Is(err, unix.ENOLCK):
			return NoMem
		}
		var errno unix.Errno
		if errors.As(err, &errno) {
			return UnknownCode(uint32(errno))
		}
		return Invalid
	}
}

// fileEngine backs a shared Mutex. The in-process mutex serializes
// goroutines going through the same instance; flock on the file excludes
// other processes and other instances.
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
	if c := flock(e.f, unix.LOCK_EX); c != OK {
		e.local.Unlock()
		return c
	}
	return OK
}

func (e *fileEngine) tryLock() Code {
	if !e.local.TryLock() {
		return Busy
	}
	if c := flock(e.f, unix.LOCK_EX|unix.LOCK_NB); c != OK {
		e.local.Unlock()
		return c
	}
	return OK
}

func (e *fileEngine) unlock() Code {
	c := flock(e.f, unix.LOCK_UN)
	e.local.Unlock()
	return c
}

func (e *fileEngine) destroy() Code {
	if err := e.f.Close(); err != nil {
		return Invalid
	}
	return OK
}

// fileRWEngine backs a shared RWLock. The instance-level RWMutex gives
// in-process reader-writer semantics; the file holds LOCK_SH while any
// reader through this instance is active and LOCK_EX for the writer. tmu
// serializes the shared-count transitions so only the first reader takes
// and the last reader drops the OS lock.
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
	if c := flock(e.f, unix.LOCK_EX); c != OK {
		e.local.Unlock()
		return c
	}
	return OK
}

func (e *fileRWEngine) tryLock() Code {
	if !e.local.TryLock() {
		return Busy
	}
	if c := flock(e.f, unix.LOCK_EX|unix.LOCK_NB); c != OK {
		e.local.Unlock()
		return c
	}
	return OK
}

func (e *fileRWEngine) unlock() Code {
	c := flock(e.f, unix.LOCK_UN)
	e.local.Unlock()
	return c
}

func (e *fileRWEngine) rlock() Code {
	e.local.RLock()
	e.tmu.Lock()
	if e.readers == 0 {
		if c := flock(e.f, unix.LOCK_SH); c != OK {
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
		if c := flock(e.f, unix.LOCK_SH|unix.LOCK_NB); c != OK {
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
		c = flock(e.f, unix.LOCK_UN)
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
