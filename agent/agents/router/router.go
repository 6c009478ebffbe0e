// Package router decides which specialist, if any, handles a user turn.
//
// Routing happens in two stages. A cheap trigger-phrase scan short-circuits
// the obvious cases; everything else goes to the classification model. When
// neither stage produces a confident single target the decision falls back
// to none, so an ambiguous message becomes a direct reply rather than a
// misdirected delegation.
package router

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	contractx "github.com/norasett/attache/agent/contract"
	conversationx "github.com/norasett/attache/agent/conversation"
)

var gmailTriggers = []string{
	"email", "gmail", "draft", "compose", "send mail",
	"search mail", "search email", "label email",
	"categorize email", "organize email", "find email",
	"inbox",
}

var calendarTriggers = []string{
	"calendar", "meeting", "appointment", "schedule",
	"book time", "set up meeting", "create event", "add to calendar",
	"check calendar", "free time", "availability", "busy",
	"reschedule", "cancel meeting", "update event", "find meetings",
	"team standup", "recurring meeting", "all-day event",
}

type IntentRouter struct {
	gateway contractx.Gateway
	system  string
	window  int
	now     func() time.Time
}

var _ contractx.Router = (*IntentRouter)(nil)

type Option func(*IntentRouter)

// WithClock overrides the decision timestamp source. Tests use this.
func WithClock(now func() time.Time) Option {
	return func(r *IntentRouter) { r.now = now }
}

// WithHistoryWindow bounds how many recent messages are shown to the
// classification model.
func WithHistoryWindow(n int) Option {
	return func(r *IntentRouter) {
		if n > 0 {
			r.window = n
		}
	}
}

func New(gateway contractx.Gateway, systemPrompt string, opts ...Option) (*IntentRouter, error) {
	if gateway == nil {
		return nil, fmt.Errorf("gateway is required")
	}
	if strings.TrimSpace(systemPrompt) == "" {
		return nil, fmt.Errorf("router system prompt is required")
	}
	r := &IntentRouter{
		gateway: gateway,
		system:  systemPrompt,
		window:  10,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Route classifies text into a routing decision. It returns an error only
// when the classification model is unreachable; every parseable-but-odd
// response degrades to target none instead.
func (r *IntentRouter) Route(ctx context.Context, text string, history []conversationx.Message) (conversationx.RoutingDecision, error) {
	if target, ok := matchTriggers(text); ok {
		decision := conversationx.RoutingDecision{
			Target:      target,
			Confidence:  0.9,
			Instruction: strings.TrimSpace(text),
			Reason:      "trigger phrase match",
			At:          r.now(),
		}
		log.Debug().Str("target", string(target)).Msg("routed by trigger phrase")
		return decision, nil
	}

	windowed := tail(history, r.window)
	msgs := make([]conversationx.Message, 0, len(windowed)+1)
	msgs = append(msgs, windowed...)
	msgs = append(msgs, conversationx.Message{
		Role:    conversationx.RoleUser,
		Content: classifyPrompt(text),
	})
	completion, err := r.gateway.Complete(ctx, contractx.CompletionRequest{
		System:   r.system,
		Messages: msgs,
	})
	if err != nil {
		return conversationx.RoutingDecision{}, fmt.Errorf("route intent: %w", err)
	}

	decision := r.parseDecision(completion.Text)
	log.Debug().
		Str("target", string(decision.Target)).
		Float64("confidence", decision.Confidence).
		Str("reason", decision.Reason).
		Msg("routed by model")
	return decision, nil
}

func matchTriggers(text string) (conversationx.AgentType, bool) {
	lower := strings.ToLower(text)
	gmail := containsAny(lower, gmailTriggers)
	calendar := containsAny(lower, calendarTriggers)
	switch {
	case gmail && !calendar:
		return conversationx.AgentGmail, true
	case calendar && !gmail:
		return conversationx.AgentCalendar, true
	default:
		// Both or neither; leave it to the model.
		return conversationx.AgentNone, false
	}
}

func containsAny(lower string, phrases []string) bool {
	for _, p := range phrases {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}

func classifyPrompt(text string) string {
	return "Latest user message:\n" + strings.TrimSpace(text)
}

type decisionJSON struct {
	Target      string  `json:"target"`
	Confidence  float64 `json:"confidence"`
	Instruction string  `json:"instruction"`
	Reason      string  `json:"reason"`
}

// parseDecision is deliberately lenient. Models wrap JSON in code fences or
// prepend prose often enough that strict parsing would turn a good answer
// into a refusal; anything that still fails to parse routes to none.
func (r *IntentRouter) parseDecision(raw string) conversationx.RoutingDecision {
	fallback := conversationx.RoutingDecision{
		Target: conversationx.AgentNone,
		Reason: "unparseable classification",
		At:     r.now(),
	}

	payload := extractJSON(raw)
	if payload == "" {
		return fallback
	}
	var dj decisionJSON
	if err := json.Unmarshal([]byte(payload), &dj); err != nil {
		log.Warn().Err(err).Msg("classification response is not valid JSON")
		return fallback
	}

	target := conversationx.AgentType(strings.ToLower(strings.TrimSpace(dj.Target)))
	switch target {
	case conversationx.AgentGmail, conversationx.AgentCalendar, conversationx.AgentNone:
	default:
		fallback.Reason = fmt.Sprintf("unknown target %q", dj.Target)
		return fallback
	}

	confidence := dj.Confidence
	if confidence < 0 || confidence > 1 {
		confidence = 0
	}

	instruction := strings.TrimSpace(dj.Instruction)
	if target.IsDelegate() && instruction == "" {
		// A delegation without a task is not actionable.
		fallback.Reason = "delegation without instruction"
		return fallback
	}

	return conversationx.RoutingDecision{
		Target:      target,
		Confidence:  confidence,
		Instruction: instruction,
		Reason:      strings.TrimSpace(dj.Reason),
		At:          r.now(),
	}
}

// extractJSON pulls the first JSON object out of a possibly fenced or
// prose-wrapped response.
func extractJSON(raw string) string {
	s := strings.TrimSpace(raw)
	if i := strings.Index(s, "```"); i >= 0 {
		s = s[i+3:]
		s = strings.TrimPrefix(s, "json")
		if j := strings.Index(s, "```"); j >= 0 {
			s = s[:j]
		}
	}
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end <= start {
		return ""
	}
	return s[start : end+1]
}

func tail(msgs []conversationx.Message, max int) []conversationx.Message {
	if len(msgs) <= max {
		return msgs
	}
	return msgs[len(msgs)-max:]
}
