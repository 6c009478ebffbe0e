package gateway

import (
	"context"
	"errors"
	"testing"
	"time"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	contractx "github.com/norasett/attache/agent/contract"
	conversationx "github.com/norasett/attache/agent/conversation"
)

type fakeChatModel struct {
	reply      *schema.Message
	err        error
	delay      time.Duration
	boundTools []*schema.ToolInfo
	gotInput   []*schema.Message
}

func (f *fakeChatModel) Generate(ctx context.Context, input []*schema.Message, _ ...einomodel.Option) (*schema.Message, error) {
	f.gotInput = input
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.reply, nil
}

func (f *fakeChatModel) Stream(ctx context.Context, input []*schema.Message, _ ...einomodel.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, errors.New("not implemented")
}

func (f *fakeChatModel) WithTools(tools []*schema.ToolInfo) (einomodel.ToolCallingChatModel, error) {
	f.boundTools = tools
	return f, nil
}

func TestCompleteText(t *testing.T) {
	t.Parallel()

	fake := &fakeChatModel{reply: schema.AssistantMessage("  hello there  ", nil)}
	g, err := New(fake, time.Second)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	got, err := g.Complete(context.Background(), contractx.CompletionRequest{
		System: "be brief",
		Messages: []conversationx.Message{
			{Role: conversationx.RoleUser, Content: "hi"},
		},
	})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if got.IsToolCall() {
		t.Fatal("expected a text completion")
	}
	if got.Text != "hello there" {
		t.Fatalf("text = %q", got.Text)
	}
	if len(fake.gotInput) != 2 {
		t.Fatalf("model input = %d messages, want system + user", len(fake.gotInput))
	}
	if fake.gotInput[0].Role != schema.System {
		t.Fatalf("first message role = %s", fake.gotInput[0].Role)
	}
}

func TestCompleteToolCall(t *testing.T) {
	t.Parallel()

	fake := &fakeChatModel{reply: &schema.Message{
		Role: schema.Assistant,
		ToolCalls: []schema.ToolCall{{
			ID: "call-1",
			Function: schema.FunctionCall{
				Name:      "search_emails",
				Arguments: `{"query":"invoices","max_results":3}`,
			},
		}},
	}}
	g, _ := New(fake, time.Second)

	tools := []*schema.ToolInfo{{Name: "search_emails"}}
	got, err := g.Complete(context.Background(), contractx.CompletionRequest{Tools: tools})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if !got.IsToolCall() {
		t.Fatal("expected a tool call completion")
	}
	if got.ToolCall.Name != "search_emails" || got.ToolCall.ID != "call-1" {
		t.Fatalf("tool call = %+v", got.ToolCall)
	}
	if got.ToolCall.Args["query"] != "invoices" {
		t.Fatalf("args = %v", got.ToolCall.Args)
	}
	if len(fake.boundTools) != 1 {
		t.Fatalf("bound %d tools, want 1", len(fake.boundTools))
	}
}

func TestCompleteToolCallWithoutID(t *testing.T) {
	t.Parallel()

	fake := &fakeChatModel{reply: &schema.Message{
		Role: schema.Assistant,
		ToolCalls: []schema.ToolCall{{
			Function: schema.FunctionCall{Name: "get_email_content", Arguments: `{"message_id":"m1"}`},
		}},
	}}
	g, _ := New(fake, time.Second)

	got, err := g.Complete(context.Background(), contractx.CompletionRequest{})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if got.ToolCall.ID == "" {
		t.Fatal("expected a generated call id")
	}
}

func TestCompleteMalformedArguments(t *testing.T) {
	t.Parallel()

	fake := &fakeChatModel{reply: &schema.Message{
		Role: schema.Assistant,
		ToolCalls: []schema.ToolCall{{
			ID:       "call-2",
			Function: schema.FunctionCall{Name: "search_emails", Arguments: `{"query":`},
		}},
	}}
	g, _ := New(fake, time.Second)

	_, err := g.Complete(context.Background(), contractx.CompletionRequest{})
	if !errors.Is(err, contractx.ErrMalformedToolCall) {
		t.Fatalf("err = %v, want ErrMalformedToolCall", err)
	}
}

func TestCompleteEmptyToolName(t *testing.T) {
	t.Parallel()

	fake := &fakeChatModel{reply: &schema.Message{
		Role:      schema.Assistant,
		ToolCalls: []schema.ToolCall{{ID: "call-3"}},
	}}
	g, _ := New(fake, time.Second)

	_, err := g.Complete(context.Background(), contractx.CompletionRequest{})
	if !errors.Is(err, contractx.ErrMalformedToolCall) {
		t.Fatalf("err = %v, want ErrMalformedToolCall", err)
	}
}

func TestCompleteTransportFailure(t *testing.T) {
	t.Parallel()

	fake := &fakeChatModel{err: errors.New("upstream 502")}
	g, _ := New(fake, time.Second)

	_, err := g.Complete(context.Background(), contractx.CompletionRequest{})
	if !errors.Is(err, contractx.ErrReasoningUnavailable) {
		t.Fatalf("err = %v, want ErrReasoningUnavailable", err)
	}
}

func TestCompleteTimeout(t *testing.T) {
	t.Parallel()

	fake := &fakeChatModel{delay: 200 * time.Millisecond, reply: schema.AssistantMessage("late", nil)}
	g, _ := New(fake, 20*time.Millisecond)

	_, err := g.Complete(context.Background(), contractx.CompletionRequest{})
	if !errors.Is(err, contractx.ErrDeadlineExceeded) {
		t.Fatalf("err = %v, want ErrDeadlineExceeded", err)
	}
}

func TestCompleteCallerCancelled(t *testing.T) {
	t.Parallel()

	fake := &fakeChatModel{delay: time.Second, reply: schema.AssistantMessage("late", nil)}
	g, _ := New(fake, time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := g.Complete(ctx, contractx.CompletionRequest{})
	if !errors.Is(err, contractx.ErrCancelled) {
		t.Fatalf("err = %v, want ErrCancelled", err)
	}
	if errors.Is(err, contractx.ErrDeadlineExceeded) {
		t.Fatal("cancellation must not be reported as a timeout")
	}
}

func TestCompleteHistoryRoundTrip(t *testing.T) {
	t.Parallel()

	fake := &fakeChatModel{reply: schema.AssistantMessage("done", nil)}
	g, _ := New(fake, time.Second)

	history := []conversationx.Message{
		{Role: conversationx.RoleUser, Content: "label this email"},
		{Role: conversationx.RoleAssistant, ToolCallID: "c1", ToolName: "apply_email_label", ToolArgs: `{"message_id":"m1","label":"Work"}`},
		{Role: conversationx.RoleTool, ToolCallID: "c1", ToolName: "apply_email_label", Content: `{"applied":true}`},
	}
	if _, err := g.Complete(context.Background(), contractx.CompletionRequest{Messages: history}); err != nil {
		t.Fatalf("Complete: %v", err)
	}

	if len(fake.gotInput) != 3 {
		t.Fatalf("model input = %d messages", len(fake.gotInput))
	}
	asst := fake.gotInput[1]
	if asst.Role != schema.Assistant || len(asst.ToolCalls) != 1 {
		t.Fatalf("assistant message not reconstructed: %+v", asst)
	}
	if asst.ToolCalls[0].Function.Name != "apply_email_label" {
		t.Fatalf("tool call name = %q", asst.ToolCalls[0].Function.Name)
	}
	toolMsg := fake.gotInput[2]
	if toolMsg.Role != schema.Tool || toolMsg.ToolCallID != "c1" {
		t.Fatalf("tool message not reconstructed: %+v", toolMsg)
	}
}
