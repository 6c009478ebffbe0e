package conversation

import (
	"context"
	"strings"
	"sync"
	"time"
)

// Store is the persistence contract for conversation threads. Within a thread
// it guarantees read-your-writes and strict append order; no ordering is
// guaranteed across threads.
//
// Append auto-creates the thread on first use. Every other operation fails
// with ErrUnknownThread for an id that has never been appended to.
type Store interface {
	Append(ctx context.Context, threadID string, msgs ...Message) error
	RecentHistory(ctx context.Context, threadID string, maxTurns int) ([]Message, error)
	SetActiveAgent(ctx context.Context, threadID string, agent AgentType) error
	SetLastDecision(ctx context.Context, threadID string, d RoutingDecision) error
	Get(ctx context.Context, threadID string) (*Thread, error)
}

// MemoryStore keeps threads in process memory. Writes to one thread are
// serialized by a per-thread mutex; distinct threads do not contend beyond
// the map lookup.
type MemoryStore struct {
	mu      sync.RWMutex
	threads map[string]*threadEntry

	now func() time.Time
}

type threadEntry struct {
	mu     sync.Mutex
	thread *Thread
}

type MemoryStoreOption func(*MemoryStore)

func WithClock(now func() time.Time) MemoryStoreOption {
	return func(s *MemoryStore) {
		if now != nil {
			s.now = now
		}
	}
}

func NewMemoryStore(opts ...MemoryStoreOption) *MemoryStore {
	s := &MemoryStore{
		threads: make(map[string]*threadEntry),
		now:     time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

func (s *MemoryStore) Append(ctx context.Context, threadID string, msgs ...Message) error {
	entry, err := s.entry(threadID, true)
	if err != nil {
		return err
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()
	entry.thread.Messages = append(entry.thread.Messages, msgs...)
	entry.thread.UpdatedAt = s.now().UTC()
	return nil
}

func (s *MemoryStore) RecentHistory(ctx context.Context, threadID string, maxTurns int) ([]Message, error) {
	entry, err := s.entry(threadID, false)
	if err != nil {
		return nil, err
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()
	return append([]Message(nil), entry.thread.tail(maxTurns)...), nil
}

func (s *MemoryStore) SetActiveAgent(ctx context.Context, threadID string, agent AgentType) error {
	switch agent {
	case AgentNone, AgentGmail, AgentCalendar:
	default:
		return ErrInvalidAgent
	}

	entry, err := s.entry(threadID, false)
	if err != nil {
		return err
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()
	entry.thread.ActiveAgent = agent
	entry.thread.UpdatedAt = s.now().UTC()
	return nil
}

func (s *MemoryStore) SetLastDecision(ctx context.Context, threadID string, d RoutingDecision) error {
	entry, err := s.entry(threadID, false)
	if err != nil {
		return err
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()
	entry.thread.LastDecision = &d
	entry.thread.UpdatedAt = s.now().UTC()
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, threadID string) (*Thread, error) {
	entry, err := s.entry(threadID, false)
	if err != nil {
		return nil, err
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()
	return entry.thread.clone(), nil
}

func (s *MemoryStore) entry(threadID string, create bool) (*threadEntry, error) {
	id := strings.TrimSpace(threadID)
	if id == "" {
		return nil, ErrInvalidThreadID
	}

	s.mu.RLock()
	entry, ok := s.threads[id]
	s.mu.RUnlock()
	if ok {
		return entry, nil
	}
	if !create {
		return nil, ErrUnknownThread
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if entry, ok = s.threads[id]; ok {
		return entry, nil
	}
	entry = &threadEntry{thread: newThread(id, s.now())}
	s.threads[id] = entry
	return entry, nil
}
