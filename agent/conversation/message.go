package conversation

import (
	"time"

	"github.com/google/uuid"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// AgentType identifies a specialized agent. AgentNone marks a turn handled
// conversationally without delegation; AgentRouter exists only as a model
// configuration key and never appears as a thread's active agent.
type AgentType string

const (
	AgentNone     AgentType = "none"
	AgentGmail    AgentType = "gmail"
	AgentCalendar AgentType = "calendar"
	AgentRouter   AgentType = "router"
)

func (a AgentType) IsDelegate() bool {
	return a == AgentGmail || a == AgentCalendar
}

// Message is one entry of a conversation thread. Messages are immutable once
// appended; the tool fields are set only on assistant messages proposing a
// tool call and on the tool messages recording its result.
type Message struct {
	ID         string    `json:"id"`
	Role       Role      `json:"role"`
	Content    string    `json:"content"`
	Timestamp  time.Time `json:"timestamp"`
	ToolCallID string    `json:"tool_call_id,omitempty"`
	ToolName   string    `json:"tool_name,omitempty"`
	ToolArgs   string    `json:"tool_args,omitempty"`
}

func NewUserMessage(text string, now time.Time) Message {
	return Message{
		ID:        uuid.NewString(),
		Role:      RoleUser,
		Content:   text,
		Timestamp: now.UTC(),
	}
}

func NewAssistantMessage(text string, now time.Time) Message {
	return Message{
		ID:        uuid.NewString(),
		Role:      RoleAssistant,
		Content:   text,
		Timestamp: now.UTC(),
	}
}

// NewToolCallMessage records an assistant turn that proposed a tool call.
func NewToolCallMessage(callID, toolName, rawArgs string, now time.Time) Message {
	return Message{
		ID:         uuid.NewString(),
		Role:       RoleAssistant,
		Timestamp:  now.UTC(),
		ToolCallID: callID,
		ToolName:   toolName,
		ToolArgs:   rawArgs,
	}
}

// NewToolResultMessage records the observed outcome of a tool call.
func NewToolResultMessage(callID, toolName, content string, now time.Time) Message {
	return Message{
		ID:         uuid.NewString(),
		Role:       RoleTool,
		Content:    content,
		Timestamp:  now.UTC(),
		ToolCallID: callID,
		ToolName:   toolName,
	}
}
