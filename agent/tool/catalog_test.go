package tool

import (
	"errors"
	"testing"

	contractx "github.com/norasett/attache/agent/contract"
	conversationx "github.com/norasett/attache/agent/conversation"
)

func TestRegistryAgentSubsets(t *testing.T) {
	t.Parallel()

	r := NewRegistry()

	gmail := r.ToolsFor(conversationx.AgentGmail)
	if len(gmail) != 4 {
		t.Fatalf("gmail catalog has %d tools, want 4", len(gmail))
	}
	calendar := r.ToolsFor(conversationx.AgentCalendar)
	if len(calendar) != 6 {
		t.Fatalf("calendar catalog has %d tools, want 6", len(calendar))
	}
	if got := r.ToolsFor(conversationx.AgentNone); len(got) != 0 {
		t.Fatalf("none catalog has %d tools, want 0", len(got))
	}

	// Subsets are disjoint: a gmail tool is invisible to the calendar agent.
	if _, ok := r.Lookup(conversationx.AgentCalendar, ToolSearchEmails); ok {
		t.Fatal("calendar agent must not see gmail tools")
	}
	if _, ok := r.Lookup(conversationx.AgentGmail, ToolCreateCalendarEvent); ok {
		t.Fatal("gmail agent must not see calendar tools")
	}
}

func TestRegistryToolInfoShapes(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	for _, agent := range []conversationx.AgentType{conversationx.AgentGmail, conversationx.AgentCalendar} {
		for _, info := range r.ToolsFor(agent) {
			if info.Name == "" || info.Desc == "" {
				t.Errorf("agent %s: tool info missing name or description: %+v", agent, info)
			}
			if info.ParamsOneOf == nil {
				t.Errorf("agent %s: tool %s has no parameter schema", agent, info.Name)
			}
		}
	}
}

func TestValidateCrossAgentCall(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	err := r.Validate(conversationx.AgentCalendar, contractx.ToolCall{
		ID:   "c1",
		Name: ToolCreateGmailDraft,
		Args: map[string]any{"to": "a@b.c", "subject": "s", "body": "b"},
	})
	if !errors.Is(err, contractx.ErrSchemaViolation) {
		t.Fatalf("err = %v, want ErrSchemaViolation", err)
	}
}

func TestValidateMissingRequired(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	err := r.Validate(conversationx.AgentGmail, contractx.ToolCall{
		ID:   "c1",
		Name: ToolCreateGmailDraft,
		Args: map[string]any{"to": "a@b.c"},
	})
	if !errors.Is(err, contractx.ErrSchemaViolation) {
		t.Fatalf("err = %v, want ErrSchemaViolation", err)
	}
}

func TestValidateWrongType(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	err := r.Validate(conversationx.AgentGmail, contractx.ToolCall{
		ID:   "c1",
		Name: ToolSearchEmails,
		Args: map[string]any{"query": "x", "max_results": "ten"},
	})
	if !errors.Is(err, contractx.ErrSchemaViolation) {
		t.Fatalf("err = %v, want ErrSchemaViolation", err)
	}
}

func TestValidateUnknownArgument(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	err := r.Validate(conversationx.AgentGmail, contractx.ToolCall{
		ID:   "c1",
		Name: ToolGetEmailContent,
		Args: map[string]any{"email_id": "m1", "verbose": true},
	})
	if !errors.Is(err, contractx.ErrSchemaViolation) {
		t.Fatalf("err = %v, want ErrSchemaViolation", err)
	}
}

func TestValidateAcceptsGoodCall(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	err := r.Validate(conversationx.AgentCalendar, contractx.ToolCall{
		ID:   "c1",
		Name: ToolCheckAvailability,
		Args: map[string]any{
			"start_time":   "2025-06-02T10:00:00Z",
			"end_time":     "2025-06-02T11:00:00Z",
			"participants": []any{"alice@example.com"},
		},
	})
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestSideEffectClassification(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	mutating := map[string]bool{
		ToolCreateGmailDraft:     true,
		ToolApplyEmailLabel:      true,
		ToolCreateCalendarEvent:  true,
		ToolUpdateCalendarEvent:  true,
		ToolDeleteCalendarEvent:  true,
		ToolSearchEmails:         false,
		ToolGetEmailContent:      false,
		ToolSearchCalendarEvents: false,
		ToolGetCalendarEvent:     false,
		ToolCheckAvailability:    false,
	}
	for _, agent := range []conversationx.AgentType{conversationx.AgentGmail, conversationx.AgentCalendar} {
		for _, spec := range r.SpecsFor(agent) {
			want, ok := mutating[spec.Name]
			if !ok {
				t.Errorf("unexpected tool %q", spec.Name)
				continue
			}
			if got := spec.Effect == EffectMutating; got != want {
				t.Errorf("tool %q mutating = %v, want %v", spec.Name, got, want)
			}
		}
	}
}
