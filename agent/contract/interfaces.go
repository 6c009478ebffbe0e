package contract

import (
	"context"

	conversationx "github.com/norasett/attache/agent/conversation"
)

// Gateway wraps the external reasoning component. Output is non-deterministic
// and may alternate between text and tool calls for identical input; callers
// must not assume determinism.
type Gateway interface {
	Complete(ctx context.Context, req CompletionRequest) (Completion, error)
}

// Router classifies a user turn into a delegation target. It must never
// invoke a tool itself.
type Router interface {
	Route(ctx context.Context, text string, history []conversationx.Message) (conversationx.RoutingDecision, error)
}

// AgentRunner executes one delegated sub-task to a terminal outcome. Failures
// are absorbed into the returned run, never escaped as errors.
type AgentRunner interface {
	Run(ctx context.Context, instruction string) AgentRun
}
