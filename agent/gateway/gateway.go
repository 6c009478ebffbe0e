// Package gateway wraps a tool-calling chat model behind the uniform
// reasoning contract: bounded window in, either free text or exactly one
// structured tool call out.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/google/uuid"
	contractx "github.com/norasett/attache/agent/contract"
	conversationx "github.com/norasett/attache/agent/conversation"
)

const defaultTimeout = 30 * time.Second

type LLMGateway struct {
	model   einomodel.ToolCallingChatModel
	timeout time.Duration
}

var _ contractx.Gateway = (*LLMGateway)(nil)

func New(model einomodel.ToolCallingChatModel, timeout time.Duration) (*LLMGateway, error) {
	if model == nil {
		return nil, errors.New("chat model is required")
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &LLMGateway{model: model, timeout: timeout}, nil
}

// Complete runs one reasoning step. The model's latency is unbounded in
// principle, so every call carries the gateway's timeout; a timeout is
// reported distinctly from transport failure and from malformed output.
func (g *LLMGateway) Complete(ctx context.Context, req contractx.CompletionRequest) (contractx.Completion, error) {
	model := g.model
	if len(req.Tools) > 0 {
		withTools, err := g.model.WithTools(req.Tools)
		if err != nil {
			return contractx.Completion{}, fmt.Errorf("%w: bind tools: %v", contractx.ErrReasoningUnavailable, err)
		}
		model = withTools
	}

	callCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	msg, err := model.Generate(callCtx, toSchemaMessages(req.System, req.Messages))
	if err != nil {
		switch {
		case errors.Is(ctx.Err(), context.Canceled):
			// The caller gave up, not a timeout.
			return contractx.Completion{}, fmt.Errorf("%w: %v", contractx.ErrCancelled, ctx.Err())
		case ctx.Err() != nil:
			// The run deadline, not our per-call timeout.
			return contractx.Completion{}, fmt.Errorf("%w: %v", contractx.ErrDeadlineExceeded, ctx.Err())
		case errors.Is(err, context.DeadlineExceeded):
			return contractx.Completion{}, fmt.Errorf("%w: reasoning call timed out after %s", contractx.ErrDeadlineExceeded, g.timeout)
		default:
			return contractx.Completion{}, fmt.Errorf("%w: %v", contractx.ErrReasoningUnavailable, err)
		}
	}
	if msg == nil {
		return contractx.Completion{}, fmt.Errorf("%w: empty model response", contractx.ErrReasoningUnavailable)
	}

	if len(msg.ToolCalls) > 0 {
		call, err := toToolCall(msg.ToolCalls[0])
		if err != nil {
			return contractx.Completion{}, err
		}
		return contractx.Completion{ToolCall: call}, nil
	}

	text := strings.TrimSpace(msg.Content)
	if text == "" {
		return contractx.Completion{}, fmt.Errorf("%w: response carries neither text nor a tool call", contractx.ErrMalformedToolCall)
	}
	return contractx.Completion{Text: text}, nil
}

func toSchemaMessages(system string, history []conversationx.Message) []*schema.Message {
	out := make([]*schema.Message, 0, len(history)+1)
	if strings.TrimSpace(system) != "" {
		out = append(out, schema.SystemMessage(system))
	}

	for _, m := range history {
		switch m.Role {
		case conversationx.RoleUser:
			out = append(out, schema.UserMessage(m.Content))
		case conversationx.RoleAssistant:
			sm := &schema.Message{Role: schema.Assistant, Content: m.Content}
			if m.ToolCallID != "" {
				sm.ToolCalls = []schema.ToolCall{{
					ID: m.ToolCallID,
					Function: schema.FunctionCall{
						Name:      m.ToolName,
						Arguments: m.ToolArgs,
					},
				}}
			}
			out = append(out, sm)
		case conversationx.RoleTool:
			out = append(out, &schema.Message{
				Role:       schema.Tool,
				Content:    m.Content,
				ToolCallID: m.ToolCallID,
			})
		}
	}
	return out
}

func toToolCall(call schema.ToolCall) (*contractx.ToolCall, error) {
	name := strings.TrimSpace(call.Function.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: tool call name is empty", contractx.ErrMalformedToolCall)
	}

	args := map[string]any{}
	rawArgs := strings.TrimSpace(call.Function.Arguments)
	if rawArgs != "" {
		if err := json.Unmarshal([]byte(rawArgs), &args); err != nil {
			return nil, fmt.Errorf("%w: invalid arguments for tool=%s: %v", contractx.ErrMalformedToolCall, name, err)
		}
	}

	id := strings.TrimSpace(call.ID)
	if id == "" {
		id = uuid.NewString()
	}

	return &contractx.ToolCall{
		ID:      id,
		Name:    name,
		Args:    args,
		RawArgs: rawArgs,
	}, nil
}
