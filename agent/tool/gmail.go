package tool

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cloudwego/eino/schema"
	contractx "github.com/norasett/attache/agent/contract"
)

const (
	ToolCreateGmailDraft = "create_gmail_draft"
	ToolSearchEmails     = "search_emails"
	ToolApplyEmailLabel  = "apply_email_label"
	ToolGetEmailContent  = "get_email_content"
)

// AllowedLabels is the closed label set the labeling tool accepts.
var AllowedLabels = []string{
	"Spam", "News", "University", "Financial", "Personal",
	"Work", "Promotions", "Meeting", "Other",
}

type EmailSummary struct {
	ID      string `json:"id"`
	Subject string `json:"subject"`
	Snippet string `json:"snippet"`
}

type EmailContent struct {
	Subject   string    `json:"subject"`
	Sender    string    `json:"sender"`
	Body      string    `json:"body"`
	Timestamp time.Time `json:"timestamp"`
}

type DraftOutput struct {
	DraftID string `json:"draft_id"`
}

type LabelOutput struct {
	MessageID string `json:"message_id"`
	Label     string `json:"label"`
}

// GmailService is the external mail collaborator boundary. Implementations
// talk to the actual mail provider; the core treats every call as
// synchronous-with-timeout.
type GmailService interface {
	CreateDraft(ctx context.Context, to, subject, body string) (string, error)
	Search(ctx context.Context, query string, maxResults int) ([]EmailSummary, error)
	ApplyLabel(ctx context.Context, messageID, label string) error
	GetMessage(ctx context.Context, messageID string) (EmailContent, error)
}

func gmailSpecs() []Spec {
	return []Spec{
		{
			Name:   ToolCreateGmailDraft,
			Desc:   "Create a draft email with recipient, subject, and body.",
			Effect: EffectMutating,
			Params: []Param{
				{Name: "to", Type: schema.String, Desc: "Recipient email address", Required: true},
				{Name: "subject", Type: schema.String, Desc: "Email subject line", Required: true},
				{Name: "body", Type: schema.String, Desc: "Email body text", Required: true},
			},
		},
		{
			Name:   ToolSearchEmails,
			Desc:   "Search the mailbox and return matching email IDs with subject and snippet.",
			Effect: EffectReadOnly,
			Params: []Param{
				{Name: "query", Type: schema.String, Desc: "Search query", Required: true},
				{Name: "max_results", Type: schema.Integer, Desc: "Maximum results to return (default 10)"},
			},
		},
		{
			Name:   ToolApplyEmailLabel,
			Desc:   fmt.Sprintf("Apply one of the predefined labels to an email. Allowed labels: %s.", strings.Join(AllowedLabels, ", ")),
			Effect: EffectMutating,
			Params: []Param{
				{Name: "email_id", Type: schema.String, Desc: "ID of the email to label", Required: true},
				{Name: "label", Type: schema.String, Desc: "Label to apply", Required: true},
			},
		},
		{
			Name:   ToolGetEmailContent,
			Desc:   "Read the full content of an email by ID.",
			Effect: EffectReadOnly,
			Params: []Param{
				{Name: "email_id", Type: schema.String, Desc: "ID of the email to read", Required: true},
			},
		},
	}
}

// NewGmailExecutor builds the Gmail tool executor. A nil service degrades to
// error results so an unconfigured deployment still answers instead of
// panicking.
func NewGmailExecutor(svc GmailService) Executor {
	return func(ctx context.Context, call contractx.ToolCall) contractx.ToolResult {
		if svc == nil {
			return contractx.ErrorResult(call, "gmail service is not configured")
		}

		switch call.Name {
		case ToolCreateGmailDraft:
			return gmailCreateDraft(ctx, svc, call)
		case ToolSearchEmails:
			return gmailSearch(ctx, svc, call)
		case ToolApplyEmailLabel:
			return gmailApplyLabel(ctx, svc, call)
		case ToolGetEmailContent:
			return gmailGetContent(ctx, svc, call)
		default:
			return contractx.ErrorResult(call, fmt.Sprintf("unknown gmail tool %q", call.Name))
		}
	}
}

func gmailCreateDraft(ctx context.Context, svc GmailService, call contractx.ToolCall) contractx.ToolResult {
	to, err := stringArg(call.Args, "to", true)
	if err != nil {
		return contractx.ErrorResult(call, err.Error())
	}
	subject, err := stringArg(call.Args, "subject", true)
	if err != nil {
		return contractx.ErrorResult(call, err.Error())
	}
	body, err := stringArg(call.Args, "body", true)
	if err != nil {
		return contractx.ErrorResult(call, err.Error())
	}

	draftID, err := svc.CreateDraft(ctx, to, subject, body)
	if err != nil {
		return contractx.ErrorResult(call, fmt.Sprintf("create draft: %v", err))
	}
	return contractx.OKResult(call, DraftOutput{DraftID: draftID})
}

func gmailSearch(ctx context.Context, svc GmailService, call contractx.ToolCall) contractx.ToolResult {
	query, err := stringArg(call.Args, "query", true)
	if err != nil {
		return contractx.ErrorResult(call, err.Error())
	}
	maxResults, err := intArg(call.Args, "max_results", 10)
	if err != nil {
		return contractx.ErrorResult(call, err.Error())
	}

	found, err := svc.Search(ctx, query, maxResults)
	if err != nil {
		return contractx.ErrorResult(call, fmt.Sprintf("search emails: %v", err))
	}
	return contractx.OKResult(call, found)
}

func gmailApplyLabel(ctx context.Context, svc GmailService, call contractx.ToolCall) contractx.ToolResult {
	messageID, err := stringArg(call.Args, "email_id", true)
	if err != nil {
		return contractx.ErrorResult(call, err.Error())
	}
	label, err := stringArg(call.Args, "label", true)
	if err != nil {
		return contractx.ErrorResult(call, err.Error())
	}

	canonical, ok := canonicalLabel(label)
	if !ok {
		return contractx.ErrorResult(call, fmt.Sprintf("label %q is not allowed; use one of: %s", label, strings.Join(AllowedLabels, ", ")))
	}

	if err := svc.ApplyLabel(ctx, messageID, canonical); err != nil {
		return contractx.ErrorResult(call, fmt.Sprintf("apply label: %v", err))
	}
	return contractx.OKResult(call, LabelOutput{MessageID: messageID, Label: canonical})
}

func gmailGetContent(ctx context.Context, svc GmailService, call contractx.ToolCall) contractx.ToolResult {
	messageID, err := stringArg(call.Args, "email_id", true)
	if err != nil {
		return contractx.ErrorResult(call, err.Error())
	}

	content, err := svc.GetMessage(ctx, messageID)
	if err != nil {
		return contractx.ErrorResult(call, fmt.Sprintf("get email content: %v", err))
	}
	return contractx.OKResult(call, content)
}

func canonicalLabel(label string) (string, bool) {
	for _, allowed := range AllowedLabels {
		if strings.EqualFold(allowed, strings.TrimSpace(label)) {
			return allowed, true
		}
	}
	return "", false
}
