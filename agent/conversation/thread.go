package conversation

import (
	"errors"
	"time"
)

var (
	ErrUnknownThread   = errors.New("unknown thread")
	ErrInvalidThreadID = errors.New("thread id is empty")
	ErrInvalidAgent    = errors.New("invalid active agent")
)

// RoutingDecision is the outcome of classifying one user turn. It is kept on
// the thread for inspection but never consulted on later turns.
type RoutingDecision struct {
	Target      AgentType `json:"target"`
	Confidence  float64   `json:"confidence"`
	Instruction string    `json:"instruction,omitempty"`
	Reason      string    `json:"reason,omitempty"`
	At          time.Time `json:"at"`
}

// Thread is one independent conversation: an append-only message sequence
// plus routing metadata. Messages are never reordered or mutated after append.
type Thread struct {
	ID           string           `json:"id"`
	Messages     []Message        `json:"messages"`
	ActiveAgent  AgentType        `json:"active_agent"`
	LastDecision *RoutingDecision `json:"last_decision,omitempty"`
	CreatedAt    time.Time        `json:"created_at"`
	UpdatedAt    time.Time        `json:"updated_at"`
}

func newThread(id string, now time.Time) *Thread {
	return &Thread{
		ID:          id,
		ActiveAgent: AgentNone,
		CreatedAt:   now.UTC(),
		UpdatedAt:   now.UTC(),
	}
}

func (t *Thread) clone() *Thread {
	if t == nil {
		return nil
	}
	cp := *t
	cp.Messages = append([]Message(nil), t.Messages...)
	if t.LastDecision != nil {
		d := *t.LastDecision
		cp.LastDecision = &d
	}
	return &cp
}

// tail returns up to max trailing messages without copying the backing array;
// callers must copy before handing the slice out.
func (t *Thread) tail(max int) []Message {
	if max <= 0 || max >= len(t.Messages) {
		return t.Messages
	}
	return t.Messages[len(t.Messages)-max:]
}
