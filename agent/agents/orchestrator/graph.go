package orchestrator

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/compose"
	"github.com/rs/zerolog/log"

	contractx "github.com/norasett/attache/agent/contract"
	conversationx "github.com/norasett/attache/agent/conversation"
)

type GraphInput struct {
	ThreadID string
	Text     string
}

type GraphOutput struct {
	Reply  string
	Target conversationx.AgentType
}

type graphState struct {
	ThreadID string
	Text     string

	History  []conversationx.Message
	Decision conversationx.RoutingDecision

	// RouteFailure is set when classification itself failed; the turn then
	// takes the degraded path instead of failing the graph.
	RouteFailure error

	Reply string
}

func (s *Service) compileHandleTurnGraph(
	ctx context.Context,
) (compose.Runnable[GraphInput, GraphOutput], error) {
	graph := compose.NewGraph[GraphInput, GraphOutput]()

	if err := graph.AddLambdaNode("validate_turn",
		compose.InvokableLambda(func(ctx context.Context, in GraphInput) (*graphState, error) {
			return s.validateTurn(in)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node validate_turn: %w", err)
	}

	if err := graph.AddLambdaNode("append_user",
		compose.InvokableLambda(func(ctx context.Context, in *graphState) (*graphState, error) {
			return s.appendUser(ctx, in)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node append_user: %w", err)
	}

	if err := graph.AddLambdaNode("route_intent",
		compose.InvokableLambda(func(ctx context.Context, in *graphState) (*graphState, error) {
			return s.routeIntent(ctx, in)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node route_intent: %w", err)
	}

	if err := graph.AddLambdaNode("direct_reply",
		compose.InvokableLambda(func(ctx context.Context, in *graphState) (*graphState, error) {
			return s.directReply(ctx, in)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node direct_reply: %w", err)
	}

	if err := graph.AddLambdaNode("delegate",
		compose.InvokableLambda(func(ctx context.Context, in *graphState) (*graphState, error) {
			return s.delegate(ctx, in)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node delegate: %w", err)
	}

	if err := graph.AddLambdaNode("degraded",
		compose.InvokableLambda(func(ctx context.Context, in *graphState) (*graphState, error) {
			in.Reply = degradedReply(in.Decision.Target, in.RouteFailure)
			return in, nil
		}),
	); err != nil {
		return nil, fmt.Errorf("add node degraded: %w", err)
	}

	if err := graph.AddLambdaNode("append_reply",
		compose.InvokableLambda(func(ctx context.Context, in *graphState) (GraphOutput, error) {
			return s.appendReply(ctx, in)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node append_reply: %w", err)
	}

	branch := compose.NewGraphBranch(
		func(ctx context.Context, in *graphState) (string, error) {
			if in == nil {
				return "", fmt.Errorf("%w: turn graph state is nil", contractx.ErrValidation)
			}
			switch {
			case in.RouteFailure != nil:
				return "degraded", nil
			case in.Decision.Target.IsDelegate():
				return "delegate", nil
			default:
				return "direct_reply", nil
			}
		},
		map[string]bool{
			"direct_reply": true,
			"delegate":     true,
			"degraded":     true,
		},
	)

	if err := graph.AddEdge(compose.START, "validate_turn"); err != nil {
		return nil, fmt.Errorf("add edge start->validate_turn: %w", err)
	}
	if err := graph.AddEdge("validate_turn", "append_user"); err != nil {
		return nil, fmt.Errorf("add edge validate_turn->append_user: %w", err)
	}
	if err := graph.AddEdge("append_user", "route_intent"); err != nil {
		return nil, fmt.Errorf("add edge append_user->route_intent: %w", err)
	}
	if err := graph.AddBranch("route_intent", branch); err != nil {
		return nil, fmt.Errorf("add routing branch: %w", err)
	}
	for _, node := range []string{"direct_reply", "delegate", "degraded"} {
		if err := graph.AddEdge(node, "append_reply"); err != nil {
			return nil, fmt.Errorf("add edge %s->append_reply: %w", node, err)
		}
	}
	if err := graph.AddEdge("append_reply", compose.END); err != nil {
		return nil, fmt.Errorf("add edge append_reply->end: %w", err)
	}

	runner, err := graph.Compile(ctx, compose.WithGraphName("orchestrator.handle_turn"))
	if err != nil {
		return nil, fmt.Errorf("compile turn graph: %w", err)
	}
	return runner, nil
}

func (s *Service) validateTurn(in GraphInput) (*graphState, error) {
	threadID := strings.TrimSpace(in.ThreadID)
	if threadID == "" {
		return nil, fmt.Errorf("%w: empty thread id", conversationx.ErrInvalidThreadID)
	}
	text := strings.TrimSpace(in.Text)
	if text == "" {
		return nil, fmt.Errorf("%w: empty message", contractx.ErrValidation)
	}
	return &graphState{ThreadID: threadID, Text: text}, nil
}

func (s *Service) appendUser(ctx context.Context, in *graphState) (*graphState, error) {
	if err := s.store.Append(ctx, in.ThreadID, conversationx.NewUserMessage(in.Text, s.now())); err != nil {
		return nil, fmt.Errorf("append user message: %w", err)
	}
	history, err := s.store.RecentHistory(ctx, in.ThreadID, s.window)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}
	in.History = history
	return in, nil
}

// routeIntent classifies the turn. A router failure is folded into the state
// so the turn still produces a reply.
func (s *Service) routeIntent(ctx context.Context, in *graphState) (*graphState, error) {
	// The latest user message is passed separately; keep it out of the
	// history shown to the router.
	history := in.History
	if n := len(history); n > 0 && history[n-1].Role == conversationx.RoleUser {
		history = history[:n-1]
	}

	decision, err := s.router.Route(ctx, in.Text, history)
	if err != nil {
		in.RouteFailure = err
		return in, nil
	}
	in.Decision = decision

	if err := s.store.SetLastDecision(ctx, in.ThreadID, decision); err != nil {
		return nil, fmt.Errorf("record routing decision: %w", err)
	}
	log.Info().
		Str("thread", in.ThreadID).
		Str("target", string(decision.Target)).
		Float64("confidence", decision.Confidence).
		Msg("turn routed")
	return in, nil
}

func (s *Service) directReply(ctx context.Context, in *graphState) (*graphState, error) {
	completion, err := s.chat.Complete(ctx, contractx.CompletionRequest{
		System:   s.chatPrompt,
		Messages: in.History,
	})
	if err != nil || completion.IsToolCall() {
		if err == nil {
			err = fmt.Errorf("%w: tool call from a toolless model", contractx.ErrMalformedToolCall)
		}
		in.Reply = degradedReply(conversationx.AgentNone, err)
		return in, nil
	}
	in.Reply = completion.Text
	return in, nil
}

// delegate hands the rewritten instruction to the target specialist, records
// its transcript on the thread, and frames its report. The active agent
// marker covers exactly the duration of the run.
func (s *Service) delegate(ctx context.Context, in *graphState) (*graphState, error) {
	target := in.Decision.Target
	runner, ok := s.runners[target]
	if !ok {
		in.Reply = degradedReply(target, fmt.Errorf("%w: no runner for agent %q", conversationx.ErrInvalidAgent, target))
		return in, nil
	}

	if err := s.store.SetActiveAgent(ctx, in.ThreadID, target); err != nil {
		return nil, fmt.Errorf("mark active agent: %w", err)
	}

	run := runner.Run(ctx, in.Decision.Instruction)

	if len(run.Transcript) > 0 {
		if err := s.store.Append(ctx, in.ThreadID, run.Transcript...); err != nil {
			return nil, fmt.Errorf("append run transcript: %w", err)
		}
	}
	if err := s.store.SetActiveAgent(ctx, in.ThreadID, conversationx.AgentNone); err != nil {
		return nil, fmt.Errorf("clear active agent: %w", err)
	}

	if run.Outcome == contractx.RunAborted {
		in.Reply = degradedReply(target, run.Failure)
		return in, nil
	}
	in.Reply = framedReply(target, run.FinalText)
	return in, nil
}

func (s *Service) appendReply(ctx context.Context, in *graphState) (GraphOutput, error) {
	if err := s.store.Append(ctx, in.ThreadID, conversationx.NewAssistantMessage(in.Reply, s.now())); err != nil {
		return GraphOutput{}, fmt.Errorf("append assistant reply: %w", err)
	}
	return GraphOutput{Reply: in.Reply, Target: in.Decision.Target}, nil
}
