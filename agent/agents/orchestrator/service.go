// Package orchestrator owns the turn lifecycle: persist the user message,
// route it, run the chosen specialist or reply directly, and persist the
// final reply. A turn always ends with an assistant message on the thread,
// even when everything downstream failed.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cloudwego/eino/compose"
	"github.com/rs/zerolog/log"

	contractx "github.com/norasett/attache/agent/contract"
	conversationx "github.com/norasett/attache/agent/conversation"
)

const defaultHistoryWindow = 20

type Config struct {
	// HistoryWindow bounds how many recent messages the router and the
	// direct-reply model see.
	HistoryWindow int `split_words:"true" default:"20"`
}

type Service struct {
	store      conversationx.Store
	router     contractx.Router
	runners    map[conversationx.AgentType]contractx.AgentRunner
	chat       contractx.Gateway
	chatPrompt string

	locker *conversationx.TurnLocker
	window int

	graphRunner compose.Runnable[GraphInput, GraphOutput]

	now func() time.Time
}

type Option func(*Service)

// WithClock overrides the message timestamp source. Tests use this.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func New(
	store conversationx.Store,
	router contractx.Router,
	runners map[conversationx.AgentType]contractx.AgentRunner,
	chat contractx.Gateway,
	chatPrompt string,
	cfg Config,
	opts ...Option,
) (*Service, error) {
	if store == nil {
		return nil, errors.New("conversation store is required")
	}
	if router == nil {
		return nil, errors.New("router is required")
	}
	if chat == nil {
		return nil, errors.New("chat gateway is required")
	}
	for agent, runner := range runners {
		if !agent.IsDelegate() || runner == nil {
			return nil, fmt.Errorf("%w: runner registered for %q", conversationx.ErrInvalidAgent, agent)
		}
	}

	window := cfg.HistoryWindow
	if window <= 0 {
		window = defaultHistoryWindow
	}

	s := &Service{
		store:      store,
		router:     router,
		runners:    runners,
		chat:       chat,
		chatPrompt: strings.TrimSpace(chatPrompt),
		locker:     conversationx.NewTurnLocker(),
		window:     window,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	graphRunner, err := s.compileHandleTurnGraph(context.Background())
	if err != nil {
		return nil, err
	}
	s.graphRunner = graphRunner

	return s, nil
}

// HandleTurn processes one user message on a thread and returns the
// assistant reply. Turns on the same thread are serialized; turns on
// different threads run concurrently. An error return means the turn was
// rejected before anything was persisted.
func (s *Service) HandleTurn(ctx context.Context, threadID string, text string) (string, error) {
	unlock := s.locker.Lock(threadID)
	defer unlock()

	out, err := s.graphRunner.Invoke(ctx, GraphInput{
		ThreadID: threadID,
		Text:     text,
	})
	if err != nil {
		return "", err
	}
	return out.Reply, nil
}

// framedReply wraps a specialist's report the way the assistant presents
// delegated work.
func framedReply(agent conversationx.AgentType, result string) string {
	title := strings.ToUpper(string(agent[:1])) + string(agent[1:])
	return fmt.Sprintf("%s task completed:\n\n%s", title, result)
}

// degradedReply is the honest fallback when a turn could not be completed.
func degradedReply(agent conversationx.AgentType, failure error) string {
	subject := "that request"
	switch agent {
	case conversationx.AgentGmail:
		subject = "that email task"
	case conversationx.AgentCalendar:
		subject = "that calendar task"
	}
	reason := "something went wrong on my side"
	switch {
	case errors.Is(failure, contractx.ErrMaxIterations):
		reason = "it took more steps than I allow myself"
	case errors.Is(failure, contractx.ErrDeadlineExceeded):
		reason = "it ran out of time"
	case errors.Is(failure, contractx.ErrCancelled):
		reason = "it was cancelled before it finished"
	case errors.Is(failure, contractx.ErrReasoningUnavailable):
		reason = "my reasoning service is unreachable right now"
	}
	log.Warn().Err(failure).Str("agent", string(agent)).Msg("degraded reply")
	return fmt.Sprintf("Sorry, I couldn't finish %s: %s. Please try again in a moment.", subject, reason)
}
