package contract

import (
	"github.com/cloudwego/eino/schema"
	conversationx "github.com/norasett/attache/agent/conversation"
)

// ToolCall is a structured tool invocation proposed by the reasoning
// component. It is consumed exactly once by the execution loop.
type ToolCall struct {
	ID      string         `json:"id"`
	Name    string         `json:"name"`
	Args    map[string]any `json:"args,omitempty"`
	RawArgs string         `json:"raw_args,omitempty"`
}

type ToolStatus string

const (
	ToolStatusOK    ToolStatus = "ok"
	ToolStatusError ToolStatus = "error"
)

// ToolResult is the observed outcome of one ToolCall.
type ToolResult struct {
	CallID  string     `json:"call_id"`
	Tool    string     `json:"tool"`
	Status  ToolStatus `json:"status"`
	Payload any        `json:"payload,omitempty"`
	Error   string     `json:"error,omitempty"`
}

func OKResult(call ToolCall, payload any) ToolResult {
	return ToolResult{CallID: call.ID, Tool: call.Name, Status: ToolStatusOK, Payload: payload}
}

func ErrorResult(call ToolCall, msg string) ToolResult {
	return ToolResult{CallID: call.ID, Tool: call.Name, Status: ToolStatusError, Error: msg}
}

// CompletionRequest is the reasoning boundary input: a system instruction, a
// bounded window of prior messages, and the tool set currently in scope.
type CompletionRequest struct {
	System   string
	Messages []conversationx.Message
	Tools    []*schema.ToolInfo
}

// Completion is the reasoning boundary output: either free text or exactly
// one structured tool call, never both.
type Completion struct {
	Text     string
	ToolCall *ToolCall
}

func (c Completion) IsToolCall() bool {
	return c.ToolCall != nil
}

type RunOutcome string

const (
	RunDone    RunOutcome = "done"
	RunAborted RunOutcome = "aborted"
)

// AgentRun is the transient record of one execution-loop run for a delegated
// turn. It is not persisted beyond the turn.
type AgentRun struct {
	Agent      conversationx.AgentType
	Outcome    RunOutcome
	FinalText  string
	Failure    error
	Iterations int
	Transcript []conversationx.Message
}
