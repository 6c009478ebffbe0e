package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	executorx "github.com/norasett/attache/agent/agents/executor"
	orchestratorx "github.com/norasett/attache/agent/agents/orchestrator"
	routerx "github.com/norasett/attache/agent/agents/router"
	contractx "github.com/norasett/attache/agent/contract"
	conversationx "github.com/norasett/attache/agent/conversation"
	gatewayx "github.com/norasett/attache/agent/gateway"
	llmx "github.com/norasett/attache/agent/llm"
	promptx "github.com/norasett/attache/agent/prompt"
	toolx "github.com/norasett/attache/agent/tool"
	configx "github.com/norasett/attache/pkg/config"
	_ "github.com/norasett/attache/pkg/logger/autoload"
	openrouterx "github.com/norasett/attache/pkg/openrouter"
)

type AppConfig struct {
	ThreadID string `envconfig:"THREAD_ID" split_words:"true"`
}

var exitWords = map[string]bool{"exit": true, "quit": true, "bye": true, "q": true}

func main() {
	appCfg := configx.MustNew[AppConfig]("")
	llmCfg := configx.MustNew[llmx.Config]("OPENROUTER")
	if err := llmCfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("invalid llm config")
	}

	openRouterClient := openrouterx.NewClient(llmCfg.OpenRouterFor(conversationx.AgentNone))
	if openRouterClient == nil {
		log.Fatal().Msg("failed to initialize openrouter client")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store := newStore(ctx)
	service, err := buildService(ctx, *llmCfg, store)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build orchestrator")
	}

	threadID := strings.TrimSpace(appCfg.ThreadID)
	if threadID == "" {
		threadID = "repl-" + uuid.NewString()
	}

	runREPL(ctx, service, threadID)
}

// newStore prefers Postgres when a DSN is configured and falls back to the
// in-memory store otherwise.
func newStore(ctx context.Context) conversationx.Store {
	bunCfg, err := configx.New[conversationx.BunStoreConfig]("CONVERSATION")
	if err != nil {
		log.Info().Msg("no conversation dsn configured, using in-memory store")
		return conversationx.NewMemoryStore()
	}
	store, err := conversationx.NewBunStore(*bunCfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open postgres store")
	}
	if err := store.Migrate(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to migrate conversation schema")
	}
	log.Info().Msg("using postgres conversation store")
	return store
}

func buildService(ctx context.Context, llmCfg llmx.Config, store conversationx.Store) (*orchestratorx.Service, error) {
	prompts := promptx.LoadPromptSet()

	newGateway := func(agent conversationx.AgentType) (contractx.Gateway, error) {
		orCfg := llmCfg.OpenRouterFor(agent)
		model, err := orCfg.New(ctx)
		if err != nil {
			return nil, fmt.Errorf("build %s model: %w", agent, err)
		}
		return gatewayx.New(model, llmCfg.Timeout)
	}

	routerGateway, err := newGateway(conversationx.AgentRouter)
	if err != nil {
		return nil, err
	}
	intentRouter, err := routerx.New(routerGateway, prompts.Router)
	if err != nil {
		return nil, err
	}

	execCfg, err := executorx.ConfigFromEnv()
	if err != nil {
		return nil, err
	}
	registry := toolx.NewRegistry()

	gmailGateway, err := newGateway(conversationx.AgentGmail)
	if err != nil {
		return nil, err
	}
	gmailRunner, err := executorx.New(
		conversationx.AgentGmail,
		gmailGateway,
		registry,
		toolx.NewGmailExecutor(toolx.NewLocalGmail()),
		func(time.Time) string { return prompts.Gmail },
		execCfg,
	)
	if err != nil {
		return nil, err
	}

	calendarGateway, err := newGateway(conversationx.AgentCalendar)
	if err != nil {
		return nil, err
	}
	calendarRunner, err := executorx.New(
		conversationx.AgentCalendar,
		calendarGateway,
		registry,
		toolx.NewCalendarExecutor(toolx.NewLocalCalendar()),
		func(now time.Time) string { return promptx.InjectNow(prompts.Calendar, now) },
		execCfg,
	)
	if err != nil {
		return nil, err
	}

	chatGateway, err := newGateway(conversationx.AgentNone)
	if err != nil {
		return nil, err
	}

	orchCfg := configx.MustNew[orchestratorx.Config]("ORCHESTRATOR")
	return orchestratorx.New(
		store,
		intentRouter,
		map[conversationx.AgentType]contractx.AgentRunner{
			conversationx.AgentGmail:    gmailRunner,
			conversationx.AgentCalendar: calendarRunner,
		},
		chatGateway,
		prompts.Chat,
		*orchCfg,
	)
}

func runREPL(ctx context.Context, service *orchestratorx.Service, threadID string) {
	fmt.Println("Attaché ready. Ask about your email or calendar; type 'exit' to leave.")

	scanner := bufio.NewScanner(os.Stdin)
	for {
		select {
		case <-ctx.Done():
			fmt.Println("\nGoodbye!")
			return
		default:
		}

		fmt.Print("You: ")
		if !scanner.Scan() {
			fmt.Println("\nGoodbye!")
			return
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if exitWords[strings.ToLower(line)] {
			fmt.Println("Goodbye!")
			return
		}

		reply, err := service.HandleTurn(ctx, threadID, line)
		if err != nil {
			log.Error().Err(err).Msg("turn failed")
			fmt.Println("Bot: Sorry, I encountered an error. Let's continue our conversation.")
			continue
		}
		fmt.Printf("Bot: %s\n\n", reply)
	}
}
