package guard

import (
	"github.com/go-logr/logr"
)

type Option func(*config)

func WithLogr(l logr.Logger) Option {
	return func(c *config) { c.log = l }
}

// WithName labels the lock in log output.
func WithName(name string) Option {
	return func(c *config) { c.name = name }
}

func WithKind(k LockKind) Option {
	return func(c *config) {
		c.kind = k
		c.set |= setKind
	}
}

func WithPriorityProtocol(p PriorityProtocol) Option {
	return func(c *config) {
		c.protocol = p
		c.set |= setProtocol
	}
}

// WithPriorityCeiling sets the initial priority ceiling, clamped to
// [CeilingMin, CeilingMax].
func WithPriorityCeiling(ceiling int) Option {
	return func(c *config) {
		c.ceiling = ceiling
		c.set |= setCeiling
	}
}

func WithSchedPolicy(p SchedPolicy) Option {
	return func(c *config) {
		c.policy = p
		c.set |= setPolicy
	}
}

// WithProcessShared backs the lock with an OS file lock on path so instances
// in other processes opened on the same path exclude each other.
func WithProcessShared(path string) Option {
	return func(c *config) {
		c.visibility = VisibilityShared
		c.path = path
		c.set |= setShared
	}
}
