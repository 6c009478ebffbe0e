package llm

import (
	"fmt"
	"strings"
	"time"

	contractx "github.com/norasett/attache/agent/contract"
	conversationx "github.com/norasett/attache/agent/conversation"
	openrouterx "github.com/norasett/attache/pkg/openrouter"
)

// Config selects model and sampling per agent identity. The defaults apply to
// every agent; the per-agent fields override them when set. A negative
// temperature override means "use the default".
type Config struct {
	BaseURL            string        `envconfig:"BASE_URL" split_words:"true" default:"https://openrouter.ai/api/v1"`
	APIKey             string        `envconfig:"API_KEY" split_words:"true" required:"true"`
	Model              string        `envconfig:"MODEL" split_words:"true" required:"true"`
	MaxCompletionToken int           `envconfig:"MAX_COMPLETION_TOKEN" split_words:"true" default:"2000"`
	Temperature        float32       `envconfig:"TEMPERATURE" split_words:"true" default:"0.7"`
	Timeout            time.Duration `envconfig:"TIMEOUT" split_words:"true" default:"30s"`
	SiteURL            string        `envconfig:"SITE_URL" split_words:"true"`
	SiteName           string        `envconfig:"SITE_NAME" split_words:"true"`

	RouterModel         string  `envconfig:"ROUTER_MODEL" split_words:"true"`
	GmailModel          string  `envconfig:"GMAIL_MODEL" split_words:"true"`
	CalendarModel       string  `envconfig:"CALENDAR_MODEL" split_words:"true"`
	RouterTemperature   float32 `envconfig:"ROUTER_TEMPERATURE" split_words:"true" default:"-1"`
	GmailTemperature    float32 `envconfig:"GMAIL_TEMPERATURE" split_words:"true" default:"0.1"`
	CalendarTemperature float32 `envconfig:"CALENDAR_TEMPERATURE" split_words:"true" default:"0.1"`
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.APIKey) == "" {
		return fmt.Errorf("%w: openrouter api key is required", contractx.ErrValidation)
	}
	if strings.TrimSpace(c.Model) == "" {
		return fmt.Errorf("%w: default model is required", contractx.ErrValidation)
	}
	return nil
}

func (c Config) OpenRouterFor(agentType conversationx.AgentType) openrouterx.Config {
	modelName := strings.TrimSpace(c.Model)
	temp := c.Temperature

	switch agentType {
	case conversationx.AgentRouter:
		if v := strings.TrimSpace(c.RouterModel); v != "" {
			modelName = v
		}
		if c.RouterTemperature >= 0 {
			temp = c.RouterTemperature
		}
	case conversationx.AgentGmail:
		if v := strings.TrimSpace(c.GmailModel); v != "" {
			modelName = v
		}
		if c.GmailTemperature >= 0 {
			temp = c.GmailTemperature
		}
	case conversationx.AgentCalendar:
		if v := strings.TrimSpace(c.CalendarModel); v != "" {
			modelName = v
		}
		if c.CalendarTemperature >= 0 {
			temp = c.CalendarTemperature
		}
	}

	maxCompletionToken := c.MaxCompletionToken
	return openrouterx.Config{
		BaseURL:            strings.TrimSpace(c.BaseURL),
		APIKey:             strings.TrimSpace(c.APIKey),
		Model:              modelName,
		MaxCompletionToken: &maxCompletionToken,
		Temperature:        temp,
		Timeout:            c.Timeout,
		SiteURL:            strings.TrimSpace(c.SiteURL),
		SiteName:           strings.TrimSpace(c.SiteName),
	}
}
