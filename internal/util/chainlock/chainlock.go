// Package chainlock provides a mutex whose Lock/Unlock return the
// lock itself, so call sites can chain `defer l.Lock().Unlock()`.
// Ported from zrepl's internal/util/chainlock; internal/roguard uses
// it to guard a Guard's acquired list against a concurrent Release.
package chainlock

import "sync"

// L is a chainable mutex.
type L struct {
	mtx sync.Mutex
}

// Lock locks l and returns it for chaining into `defer l.Lock().Unlock()`.
func (l *L) Lock() *L {
	l.mtx.Lock()
	return l
}

// Unlock unlocks l.
func (l *L) Unlock() { l.mtx.Unlock() }

// HoldWhile runs f with l held.
func (l *L) HoldWhile(f func()) {
	l.mtx.Lock()
	defer l.mtx.Unlock()
	f()
}
