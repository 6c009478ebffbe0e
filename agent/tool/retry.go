package tool

import (
	"context"
	"time"

	contractx "github.com/norasett/attache/agent/contract"
)

// RetryConfig bounds re-dispatch of failed read-only tool calls. Mutating
// calls are never retried; a duplicate draft or event is worse than a
// reported failure.
type RetryConfig struct {
	MaxRetries   int           `envconfig:"MAX_RETRIES" split_words:"true" default:"2"`
	InitialDelay time.Duration `envconfig:"INITIAL_DELAY" split_words:"true" default:"200ms"`
	MaxDelay     time.Duration `envconfig:"MAX_DELAY" split_words:"true" default:"2s"`
	Factor       float64       `envconfig:"FACTOR" split_words:"true" default:"2"`
}

func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:   2,
		InitialDelay: 200 * time.Millisecond,
		MaxDelay:     2 * time.Second,
		Factor:       2,
	}
}

func (c RetryConfig) sanitized() RetryConfig {
	out := c
	if out.MaxRetries < 0 {
		out.MaxRetries = 0
	}
	if out.InitialDelay <= 0 {
		out.InitialDelay = 200 * time.Millisecond
	}
	if out.MaxDelay <= 0 {
		out.MaxDelay = 2 * time.Second
	}
	if out.Factor < 1 {
		out.Factor = 2
	}
	return out
}

// Invoke dispatches one tool call: at most once for mutating tools, with
// bounded backoff retries for read-only tools. The context governs both the
// call and the backoff sleeps.
func Invoke(ctx context.Context, spec Spec, exec Executor, call contractx.ToolCall, cfg RetryConfig) contractx.ToolResult {
	result := exec(ctx, call)
	if result.Status == contractx.ToolStatusOK || spec.Effect == EffectMutating {
		return result
	}

	cfg = cfg.sanitized()
	delay := cfg.InitialDelay
	for attempt := 0; attempt < cfg.MaxRetries; attempt++ {
		select {
		case <-ctx.Done():
			return result
		case <-time.After(delay):
		}

		result = exec(ctx, call)
		if result.Status == contractx.ToolStatusOK {
			return result
		}

		delay = time.Duration(float64(delay) * cfg.Factor)
		if delay > cfg.MaxDelay {
			delay = cfg.MaxDelay
		}
	}
	return result
}
