package engine

import "sync"

// RWLocker abstracts the store-level lock. Sqlite gets a real sync.RWMutex
// because concurrent writers trip its single-writer model, postgres handles
// concurrency itself and gets the noop variant. See SQL.MakeLock.
type RWLocker interface {
	sync.Locker
	RLock()
	RUnlock()
}

// NoopLocker satisfies RWLocker without locking anything.
type NoopLocker struct{}

// Lock does nothing.
func (NoopLocker) Lock() {}

// Unlock does nothing.
func (NoopLocker) Unlock() {}

// RLock does nothing.
func (NoopLocker) RLock() {}

// RUnlock does nothing.
func (NoopLocker) RUnlock() {}
