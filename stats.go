package guard

import (
	"sync/atomic"
	"time"

	"github.com/puzpuzpuz/xsync/v3"
)

// Stats is a read-only snapshot of lock statistics.
// Use the Stats() method to obtain a snapshot that can be exported
// to any monitoring system (Prometheus, OpenTelemetry, StatsD, etc.).
type Stats struct {
	ReadAcquired      int64         // Number of read sections entered
	WriteAcquired     int64         // Number of write and unwrap sections entered
	WouldBlock        int64         // Number of try operations that found the lock busy
	Failed            int64         // Number of operations rejected before entering a section
	TotalHoldDuration time.Duration // Cumulative hold duration; concurrent read holds accumulate in parallel
	Unwrapped         bool          // True once the value has been consumed
}

// stats uses striped counters for thread-safe collection on the acquisition
// fast path, which many readers may hit at once.
type stats struct {
	readAcquired  *xsync.Counter
	writeAcquired *xsync.Counter
	wouldBlock    *xsync.Counter
	failed        *xsync.Counter
	holdNanos     atomic.Int64
}

func (c *stats) init() {
	c.readAcquired = xsync.NewCounter()
	c.writeAcquired = xsync.NewCounter()
	c.wouldBlock = xsync.NewCounter()
	c.failed = xsync.NewCounter()
}

// snapshot returns a read-only copy of current statistics.
func (c *stats) snapshot(unwrapped bool) Stats {
	return Stats{
		ReadAcquired:      c.readAcquired.Value(),
		WriteAcquired:     c.writeAcquired.Value(),
		WouldBlock:        c.wouldBlock.Value(),
		Failed:            c.failed.Value(),
		TotalHoldDuration: time.Duration(c.holdNanos.Load()),
		Unwrapped:         unwrapped,
	}
}

func (c *stats) hold(start time.Time) {
	c.holdNanos.Add(time.Since(start).Nanoseconds())
}
