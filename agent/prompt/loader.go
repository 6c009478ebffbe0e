package prompt

import (
	_ "embed"
	"strings"
	"time"
)

var (
	//go:embed template/router.txt
	routerRaw string

	//go:embed template/gmail.txt
	gmailRaw string

	//go:embed template/calendar.txt
	calendarRaw string

	//go:embed template/chat.txt
	chatRaw string
)

// PromptSet holds loaded prompt content.
type PromptSet struct {
	Router   string
	Gmail    string
	Calendar string
	Chat     string
}

// LoadPromptSet returns a PromptSet with trimmed prompt strings.
// This is safe to call concurrently; the embed is compile-time, and trimming is cheap.
func LoadPromptSet() PromptSet {
	return PromptSet{
		Router:   strings.TrimSpace(routerRaw),
		Gmail:    strings.TrimSpace(gmailRaw),
		Calendar: strings.TrimSpace(calendarRaw),
		Chat:     strings.TrimSpace(chatRaw),
	}
}

// InjectNow substitutes the {current_datetime} token so the model can ground
// relative dates. Prompts without the token pass through unchanged.
func InjectNow(prompt string, now time.Time) string {
	return strings.ReplaceAll(prompt, "{current_datetime}", now.Format("Monday, 2 January 2006 15:04 MST"))
}
