package router

import (
	"context"
	"errors"
	"testing"
	"time"

	contractx "github.com/norasett/attache/agent/contract"
	conversationx "github.com/norasett/attache/agent/conversation"
)

type fakeGateway struct {
	completion contractx.Completion
	err        error
	called     bool
	gotReq     contractx.CompletionRequest
}

func (f *fakeGateway) Complete(_ context.Context, req contractx.CompletionRequest) (contractx.Completion, error) {
	f.called = true
	f.gotReq = req
	return f.completion, f.err
}

func fixedClock() time.Time {
	return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
}

func newRouter(t *testing.T, gw contractx.Gateway) *IntentRouter {
	t.Helper()
	r, err := New(gw, "classify", WithClock(fixedClock))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return r
}

func TestRouteTriggerPhraseSkipsModel(t *testing.T) {
	t.Parallel()

	gw := &fakeGateway{}
	r := newRouter(t, gw)

	d, err := r.Route(context.Background(), "draft an email to Alice about the offsite", nil)
	if err != nil {
		t.Fatalf("Route: %v", err)
	}
	if d.Target != conversationx.AgentGmail {
		t.Fatalf("target = %s, want gmail", d.Target)
	}
	if d.Instruction == "" {
		t.Fatal("trigger match must carry the user text as instruction")
	}
	if gw.called {
		t.Fatal("trigger match must not call the model")
	}
}

func TestRouteTriggerCalendar(t *testing.T) {
	t.Parallel()

	r := newRouter(t, &fakeGateway{})
	d, err := r.Route(context.Background(), "what's on my calendar tomorrow?", nil)
	if err != nil {
		t.Fatalf("Route: %v", err)
	}
	if d.Target != conversationx.AgentCalendar {
		t.Fatalf("target = %s, want calendar", d.Target)
	}
}

func TestRouteBothTriggersDeferToModel(t *testing.T) {
	t.Parallel()

	gw := &fakeGateway{completion: contractx.Completion{
		Text: `{"target":"calendar","confidence":0.8,"instruction":"create an event for the email review on Friday","reason":"scheduling dominates"}`,
	}}
	r := newRouter(t, gw)

	d, err := r.Route(context.Background(), "schedule a meeting to go over the email backlog", nil)
	if err != nil {
		t.Fatalf("Route: %v", err)
	}
	if !gw.called {
		t.Fatal("mixed triggers must fall through to the model")
	}
	if d.Target != conversationx.AgentCalendar {
		t.Fatalf("target = %s, want calendar", d.Target)
	}
	if d.Confidence != 0.8 {
		t.Fatalf("confidence = %v", d.Confidence)
	}
}

func TestRouteModelFencedJSON(t *testing.T) {
	t.Parallel()

	gw := &fakeGateway{completion: contractx.Completion{
		Text: "Here you go:\n```json\n{\"target\":\"gmail\",\"confidence\":0.7,\"instruction\":\"find the invoice from Bob\",\"reason\":\"mail lookup\"}\n```",
	}}
	r := newRouter(t, gw)

	d, err := r.Route(context.Background(), "can you dig up that thing from Bob?", nil)
	if err != nil {
		t.Fatalf("Route: %v", err)
	}
	if d.Target != conversationx.AgentGmail {
		t.Fatalf("target = %s, want gmail", d.Target)
	}
	if d.Instruction != "find the invoice from Bob" {
		t.Fatalf("instruction = %q", d.Instruction)
	}
}

func TestRouteUnparseableDefaultsToNone(t *testing.T) {
	t.Parallel()

	gw := &fakeGateway{completion: contractx.Completion{Text: "I think this is about email, maybe?"}}
	r := newRouter(t, gw)

	d, err := r.Route(context.Background(), "hmm what do you think", nil)
	if err != nil {
		t.Fatalf("Route: %v", err)
	}
	if d.Target != conversationx.AgentNone {
		t.Fatalf("target = %s, want none", d.Target)
	}
}

func TestRouteUnknownTargetDefaultsToNone(t *testing.T) {
	t.Parallel()

	gw := &fakeGateway{completion: contractx.Completion{
		Text: `{"target":"weather","confidence":0.9,"instruction":"forecast","reason":"?"}`,
	}}
	r := newRouter(t, gw)

	d, err := r.Route(context.Background(), "what now", nil)
	if err != nil {
		t.Fatalf("Route: %v", err)
	}
	if d.Target != conversationx.AgentNone {
		t.Fatalf("target = %s, want none", d.Target)
	}
}

func TestRouteDelegationWithoutInstructionDefaultsToNone(t *testing.T) {
	t.Parallel()

	gw := &fakeGateway{completion: contractx.Completion{
		Text: `{"target":"gmail","confidence":0.9,"instruction":"","reason":"mail"}`,
	}}
	r := newRouter(t, gw)

	d, err := r.Route(context.Background(), "do the thing", nil)
	if err != nil {
		t.Fatalf("Route: %v", err)
	}
	if d.Target != conversationx.AgentNone {
		t.Fatalf("target = %s, want none", d.Target)
	}
}

func TestRouteModelFailurePropagates(t *testing.T) {
	t.Parallel()

	gw := &fakeGateway{err: contractx.ErrReasoningUnavailable}
	r := newRouter(t, gw)

	_, err := r.Route(context.Background(), "how are you", nil)
	if !errors.Is(err, contractx.ErrReasoningUnavailable) {
		t.Fatalf("err = %v, want ErrReasoningUnavailable", err)
	}
}

func TestRouteHistoryWindowed(t *testing.T) {
	t.Parallel()

	gw := &fakeGateway{completion: contractx.Completion{
		Text: `{"target":"none","confidence":0.5,"instruction":"","reason":"chitchat"}`,
	}}
	r, err := New(gw, "classify", WithClock(fixedClock), WithHistoryWindow(2))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	history := make([]conversationx.Message, 6)
	for i := range history {
		history[i] = conversationx.Message{Role: conversationx.RoleUser, Content: "older"}
	}
	if _, err := r.Route(context.Background(), "so anyway", history); err != nil {
		t.Fatalf("Route: %v", err)
	}
	// 2 windowed history messages plus the classification prompt.
	if got := len(gw.gotReq.Messages); got != 3 {
		t.Fatalf("model saw %d messages, want 3", got)
	}
}
