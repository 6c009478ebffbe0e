package tool

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/schema"
	contractx "github.com/norasett/attache/agent/contract"
	conversationx "github.com/norasett/attache/agent/conversation"
)

// SideEffect classifies a tool for retry policy: read-only failures may be
// retried, mutating calls are dispatched at most once.
type SideEffect string

const (
	EffectReadOnly SideEffect = "read-only"
	EffectMutating SideEffect = "mutating"
)

type Param struct {
	Name     string
	Type     schema.DataType
	Desc     string
	Required bool
	Elem     schema.DataType
}

// Spec describes one invocable tool. Immutable after registry construction.
type Spec struct {
	Name   string
	Desc   string
	Effect SideEffect
	Params []Param
}

func (s Spec) ToolInfo() *schema.ToolInfo {
	params := make(map[string]*schema.ParameterInfo, len(s.Params))
	for _, p := range s.Params {
		info := &schema.ParameterInfo{
			Type:     p.Type,
			Desc:     p.Desc,
			Required: p.Required,
		}
		if p.Type == schema.Array {
			info.ElemInfo = &schema.ParameterInfo{Type: p.Elem}
		}
		params[p.Name] = info
	}
	return &schema.ToolInfo{
		Name:        s.Name,
		Desc:        s.Desc,
		ParamsOneOf: schema.NewParamsOneOfByParams(params),
	}
}

// Executor invokes one tool call against its external collaborator.
// Collaborator failures are reported in the result, not as an error.
type Executor func(ctx context.Context, call contractx.ToolCall) contractx.ToolResult

// Registry is the static catalogue of tools per agent. Adding a tool is a
// registry-time change, never a runtime decision.
type Registry struct {
	specs map[conversationx.AgentType][]Spec
}

func NewRegistry() *Registry {
	return &Registry{
		specs: map[conversationx.AgentType][]Spec{
			conversationx.AgentGmail:    gmailSpecs(),
			conversationx.AgentCalendar: calendarSpecs(),
		},
	}
}

func (r *Registry) SpecsFor(agentType conversationx.AgentType) []Spec {
	return append([]Spec(nil), r.specs[agentType]...)
}

func (r *Registry) ToolsFor(agentType conversationx.AgentType) []*schema.ToolInfo {
	specs := r.specs[agentType]
	infos := make([]*schema.ToolInfo, 0, len(specs))
	for _, s := range specs {
		infos = append(infos, s.ToolInfo())
	}
	return infos
}

func (r *Registry) Lookup(agentType conversationx.AgentType, name string) (Spec, bool) {
	for _, s := range r.specs[agentType] {
		if s.Name == name {
			return s, true
		}
	}
	return Spec{}, false
}

// Validate checks a tool call against the agent's catalogue: the tool must be
// in the agent's subset, required arguments must be present, and argument
// types must match the declared schema.
func (r *Registry) Validate(agentType conversationx.AgentType, call contractx.ToolCall) error {
	spec, ok := r.Lookup(agentType, call.Name)
	if !ok {
		return fmt.Errorf("%w: tool=%s is not available to agent=%s", contractx.ErrSchemaViolation, call.Name, agentType)
	}

	for _, p := range spec.Params {
		raw, present := call.Args[p.Name]
		if !present {
			if p.Required {
				return fmt.Errorf("%w: tool=%s missing required argument %q", contractx.ErrSchemaViolation, call.Name, p.Name)
			}
			continue
		}
		if raw == nil {
			continue
		}
		if err := checkType(p, raw); err != nil {
			return fmt.Errorf("%w: tool=%s argument %q: %v", contractx.ErrSchemaViolation, call.Name, p.Name, err)
		}
	}

	for name := range call.Args {
		if !hasParam(spec, name) {
			return fmt.Errorf("%w: tool=%s unknown argument %q", contractx.ErrSchemaViolation, call.Name, name)
		}
	}
	return nil
}

func hasParam(spec Spec, name string) bool {
	for _, p := range spec.Params {
		if p.Name == name {
			return true
		}
	}
	return false
}

func checkType(p Param, raw any) error {
	switch p.Type {
	case schema.String:
		if _, ok := raw.(string); !ok {
			return fmt.Errorf("expected string, got %T", raw)
		}
	case schema.Integer, schema.Number:
		switch raw.(type) {
		case float64, float32, int, int64:
		default:
			return fmt.Errorf("expected number, got %T", raw)
		}
	case schema.Boolean:
		if _, ok := raw.(bool); !ok {
			return fmt.Errorf("expected boolean, got %T", raw)
		}
	case schema.Array:
		if _, ok := raw.([]any); !ok {
			return fmt.Errorf("expected array, got %T", raw)
		}
	case schema.Object:
		if _, ok := raw.(map[string]any); !ok {
			return fmt.Errorf("expected object, got %T", raw)
		}
	}
	return nil
}
