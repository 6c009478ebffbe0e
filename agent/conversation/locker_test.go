package conversation

import (
	"sync"
	"testing"
)

func TestTurnLockerSerializesSameThread(t *testing.T) {
	t.Parallel()

	l := NewTurnLocker()
	counter := 0

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := l.Lock("t1")
			defer unlock()
			counter++
		}()
	}
	wg.Wait()

	if counter != 50 {
		t.Fatalf("counter = %d, want 50", counter)
	}
}

func TestTurnLockerDistinctThreadsIndependent(t *testing.T) {
	t.Parallel()

	l := NewTurnLocker()
	unlockA := l.Lock("a")

	// Holding a must not block b.
	done := make(chan struct{})
	go func() {
		unlockB := l.Lock("b")
		unlockB()
		close(done)
	}()
	<-done

	unlockA()
}

func TestTurnLockerReentryAfterUnlock(t *testing.T) {
	t.Parallel()

	l := NewTurnLocker()
	unlock := l.Lock("t1")
	unlock()
	unlock = l.Lock("t1")
	unlock()
}
