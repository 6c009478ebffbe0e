// Package executor runs the bounded reason-then-act loop shared by every
// specialist agent. The specialists differ only in their system prompt and
// tool catalog; the loop mechanics, bounds, and failure handling live here.
package executor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/rs/zerolog/log"

	contractx "github.com/norasett/attache/agent/contract"
	conversationx "github.com/norasett/attache/agent/conversation"
	toolx "github.com/norasett/attache/agent/tool"
)

// Config bounds one run. Every field has a safe default; zero values are
// replaced, never trusted.
type Config struct {
	MaxIterations int           `split_words:"true" default:"6"`
	RunDeadline   time.Duration `split_words:"true" default:"2m"`
	Retry         toolx.RetryConfig
}

func DefaultConfig() Config {
	return Config{
		MaxIterations: 6,
		RunDeadline:   2 * time.Minute,
		Retry:         toolx.DefaultRetryConfig(),
	}
}

// ConfigFromEnv reads loop bounds from AGENT_* variables, keeping defaults
// for anything unset.
func ConfigFromEnv() (Config, error) {
	var cfg Config
	if err := envconfig.Process("agent", &cfg); err != nil {
		return Config{}, fmt.Errorf("process executor config: %w", err)
	}
	return cfg.sanitized(), nil
}

func (c Config) sanitized() Config {
	if c.MaxIterations <= 0 {
		c.MaxIterations = 6
	}
	if c.RunDeadline <= 0 {
		c.RunDeadline = 2 * time.Minute
	}
	return c
}

// PromptFunc produces the specialist system prompt for a run starting now.
type PromptFunc func(now time.Time) string

type Runner struct {
	agent    conversationx.AgentType
	gateway  contractx.Gateway
	registry *toolx.Registry
	execute  toolx.Executor
	promptFn PromptFunc
	cfg      Config
	now      func() time.Time
}

var _ contractx.AgentRunner = (*Runner)(nil)

type Option func(*Runner)

// WithClock overrides the transcript timestamp source. Tests use this.
func WithClock(now func() time.Time) Option {
	return func(r *Runner) { r.now = now }
}

func New(agent conversationx.AgentType, gateway contractx.Gateway, registry *toolx.Registry, execute toolx.Executor, promptFn PromptFunc, cfg Config, opts ...Option) (*Runner, error) {
	if !agent.IsDelegate() {
		return nil, fmt.Errorf("%w: %q cannot run an execution loop", conversationx.ErrInvalidAgent, agent)
	}
	if gateway == nil || registry == nil || execute == nil || promptFn == nil {
		return nil, errors.New("gateway, registry, executor and prompt are all required")
	}
	r := &Runner{
		agent:    agent,
		gateway:  gateway,
		registry: registry,
		execute:  execute,
		promptFn: promptFn,
		cfg:      cfg.sanitized(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

func (r *Runner) Agent() conversationx.AgentType {
	return r.agent
}

// Run executes one instruction to completion or abort. It never panics and
// never returns an error as a Go error; every failure mode is folded into
// the returned AgentRun so the orchestrator can always produce a reply.
func (r *Runner) Run(ctx context.Context, instruction string) contractx.AgentRun {
	run := contractx.AgentRun{Agent: r.agent}
	instruction = strings.TrimSpace(instruction)
	if instruction == "" {
		run.Outcome = contractx.RunAborted
		run.Failure = fmt.Errorf("%w: empty instruction", contractx.ErrValidation)
		return run
	}

	ctx, cancel := context.WithTimeout(ctx, r.cfg.RunDeadline)
	defer cancel()

	system := r.promptFn(r.now())
	tools := r.registry.ToolsFor(r.agent)
	msgs := []conversationx.Message{conversationx.NewUserMessage(instruction, r.now())}

	logger := log.With().Str("agent", string(r.agent)).Logger()

	for {
		completion, err := r.gateway.Complete(ctx, contractx.CompletionRequest{
			System:   system,
			Messages: msgs,
			Tools:    tools,
		})
		if err != nil {
			if errors.Is(err, contractx.ErrMalformedToolCall) && run.Iterations < r.cfg.MaxIterations {
				// The model produced garbage instead of a well-formed call.
				// Feed the problem back once per cycle and let it retry.
				run.Iterations++
				feedback := fmt.Sprintf("Your last tool call was malformed (%v). Respond again with either a valid tool call or a final answer.", err)
				msgs = append(msgs, conversationx.NewUserMessage(feedback, r.now()))
				logger.Warn().Err(err).Int("cycle", run.Iterations).Msg("malformed tool call, retrying")
				continue
			}
			run.Outcome = contractx.RunAborted
			run.Failure = r.mapAbort(ctx, err)
			logger.Error().Err(run.Failure).Int("cycles", run.Iterations).Msg("run aborted")
			return run
		}

		if !completion.IsToolCall() {
			run.Outcome = contractx.RunDone
			run.FinalText = completion.Text
			logger.Info().Int("cycles", run.Iterations).Msg("run complete")
			return run
		}

		if run.Iterations >= r.cfg.MaxIterations {
			run.Outcome = contractx.RunAborted
			run.Failure = fmt.Errorf("%w: %d cycles used", contractx.ErrMaxIterations, run.Iterations)
			logger.Warn().Int("cycles", run.Iterations).Msg("iteration bound hit")
			return run
		}
		run.Iterations++

		call := *completion.ToolCall
		callMsg := conversationx.NewToolCallMessage(call.ID, call.Name, call.RawArgs, r.now())
		msgs = append(msgs, callMsg)
		run.Transcript = append(run.Transcript, callMsg)

		result := r.dispatch(ctx, call)
		resultMsg := conversationx.NewToolResultMessage(call.ID, call.Name, encodeResult(result), r.now())
		msgs = append(msgs, resultMsg)
		run.Transcript = append(run.Transcript, resultMsg)

		logger.Debug().
			Str("tool", call.Name).
			Str("status", string(result.Status)).
			Int("cycle", run.Iterations).
			Msg("tool dispatched")

		if ctx.Err() != nil {
			run.Outcome = contractx.RunAborted
			run.Failure = r.mapAbort(ctx, ctx.Err())
			return run
		}
	}
}

// dispatch validates a call against the agent's catalog and runs it through
// the side-effect-aware invoker. Schema violations never reach the service;
// they come back as error results the model can correct.
func (r *Runner) dispatch(ctx context.Context, call contractx.ToolCall) contractx.ToolResult {
	if err := r.registry.Validate(r.agent, call); err != nil {
		return contractx.ErrorResult(call, err.Error())
	}
	spec, ok := r.registry.Lookup(r.agent, call.Name)
	if !ok {
		return contractx.ErrorResult(call, fmt.Sprintf("unknown tool %q", call.Name))
	}
	return toolx.Invoke(ctx, spec, r.execute, call, r.cfg.Retry)
}

func (r *Runner) mapAbort(ctx context.Context, err error) error {
	if errors.Is(err, contractx.ErrCancelled) || errors.Is(err, contractx.ErrDeadlineExceeded) {
		return err
	}
	switch {
	case errors.Is(ctx.Err(), context.Canceled):
		return fmt.Errorf("%w: %v", contractx.ErrCancelled, ctx.Err())
	case ctx.Err() != nil:
		return fmt.Errorf("%w: %v", contractx.ErrDeadlineExceeded, ctx.Err())
	case errors.Is(err, contractx.ErrMalformedToolCall):
		return fmt.Errorf("%w: model kept producing malformed calls", contractx.ErrMaxIterations)
	}
	return err
}

// encodeResult renders a tool result as the JSON the model reads next cycle.
func encodeResult(result contractx.ToolResult) string {
	b, err := json.Marshal(result)
	if err != nil {
		// Payloads are our own structs; this should not happen.
		return fmt.Sprintf(`{"call_id":%q,"tool":%q,"status":"error","error":"unencodable result"}`, result.CallID, result.Tool)
	}
	return string(b)
}
