package engine

import (
	"hash/fnv"
	"time"
)

// SymbolLocks provides per-symbol mutual exclusion over a fixed set of
// slots keyed by a hash of the symbol. Two symbols hashing to the same
// slot serialize against each other, which is harmless; what matters is
// that one symbol never runs its state machine on two goroutines at once.
type SymbolLocks struct {
	slots []chan struct{}
}

// NewSymbolLocks creates a lock set with n slots. n is rounded up to 1.
func NewSymbolLocks(n int) *SymbolLocks {
	if n < 1 {
		n = 1
	}
	slots := make([]chan struct{}, n)
	for i := range slots {
		slots[i] = make(chan struct{}, 1)
	}
	return &SymbolLocks{slots: slots}
}

func (l *SymbolLocks) slot(symbol string) chan struct{} {
	h := fnv.New32a()
	_, _ = h.Write([]byte(symbol))
	return l.slots[h.Sum32()%uint32(len(l.slots))]
}

// Lock blocks until the symbol's slot is acquired.
func (l *SymbolLocks) Lock(symbol string) {
	l.slot(symbol) <- struct{}{}
}

// TryLock acquires the symbol's slot within timeout or returns ErrBusy.
func (l *SymbolLocks) TryLock(symbol string, timeout time.Duration) error {
	s := l.slot(symbol)
	select {
	case s <- struct{}{}:
		return nil
	default:
	}
	t := time.NewTimer(timeout)
	defer t.Stop()
	select {
	case s <- struct{}{}:
		return nil
	case <-t.C:
		return ErrBusy
	}
}

// Unlock releases the symbol's slot. Unlocking a slot that is not held
// is a programming error and panics.
func (l *SymbolLocks) Unlock(symbol string) {
	select {
	case <-l.slot(symbol):
	default:
		panic("engine: unlock of unheld symbol lock")
	}
}
