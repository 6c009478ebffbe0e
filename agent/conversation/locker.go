package conversation

import "sync"

// TurnLocker serializes turns per thread id. A thread never runs two turns
// concurrently; distinct threads proceed independently. Locks are never
// discarded, which is acceptable for the bounded number of live threads a
// process handles.
type TurnLocker struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewTurnLocker() *TurnLocker {
	return &TurnLocker{locks: make(map[string]*sync.Mutex)}
}

// Lock blocks until the thread's turn lock is held and returns the unlock
// function.
func (l *TurnLocker) Lock(threadID string) func() {
	l.mu.Lock()
	m, ok := l.locks[threadID]
	if !ok {
		m = &sync.Mutex{}
		l.locks[threadID] = m
	}
	l.mu.Unlock()

	m.Lock()
	return m.Unlock
}
