package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/carmelo-bot/server/internal/bot/dispatch"
	"github.com/carmelo-bot/server/internal/bot/model"
	"github.com/carmelo-bot/server/internal/bot/prompts"
	"github.com/carmelo-bot/server/internal/bot/repo"
	"github.com/carmelo-bot/server/internal/core"
	"github.com/carmelo-bot/server/internal/healthcheck"
	"github.com/carmelo-bot/server/internal/slack"
	logx "github.com/carmelo-bot/server/pkg/logger"
	pkgredis "github.com/carmelo-bot/server/pkg/redis"
	"github.com/cloudwego/eino-ext/components/model/gemini"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"google.golang.org/genai"
)

// AppConfig defines all configurable parameters for the bot, sourced from
// environment variables (loaded from .env for local runs).
type AppConfig struct {
	Environment string `envconfig:"ENVIRONMENT" default:"development"`

	// Slack
	SlackBotToken string `envconfig:"SLACK_BOT_TOKEN" required:"true"`
	SlackAppToken string `envconfig:"SLACK_APP_TOKEN" required:"true"`

	// LLM provider
	APIKey  string `envconfig:"GEMINI_API_KEY" required:"true"`
	BaseURL string `envconfig:"GEMINI_BASE_URL"`

	// Bot configs
	Response model.ResponseModelConfig
	History  model.HistoryConfig
	Bot      model.BotConfig

	// Infrastructure
	Redis        pkgredis.Config
	HealthListen string `envconfig:"HEALTH_LISTEN"`
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Load .env file
	if err := godotenv.Load(".env"); err != nil {
		logx.Warn().Err(err).Msg("could not load .env file")
	}

	// Load structured config from env
	var cfg AppConfig
	if err := envconfig.Process("", &cfg); err != nil {
		logx.Fatal().Err(err).Msg("failed to process environment config")
	}

	logx.Init(logx.LoggerOpts{Environment: core.ParseEnvironment(cfg.Environment)})

	store, cleanup, err := buildConversationStore(cfg)
	if err != nil {
		logx.Fatal().Err(err).Msg("failed to initialise conversation store")
	}
	defer cleanup()

	chatModel, err := buildChatModel(ctx, cfg)
	if err != nil {
		logx.Fatal().Err(err).Msg("failed to initialise chat model")
	}

	systemPrompt, err := prompts.RenderSystem(ctx, prompts.DefaultBotName)
	if err != nil {
		logx.Fatal().Err(err).Msg("failed to render system prompt")
	}

	loc, err := time.LoadLocation(cfg.Bot.Timezone)
	if err != nil {
		logx.Fatal().Err(err).Str("timezone", cfg.Bot.Timezone).Msg("invalid BOT_TIMEZONE")
	}

	modelTimeout, err := time.ParseDuration(cfg.Response.Timeout)
	if err != nil {
		logx.Fatal().Err(err).Str("timeout", cfg.Response.Timeout).Msg("invalid MODEL_TIMEOUT")
	}

	dispatcher, err := dispatch.New(dispatch.Config{
		Store:        store,
		ChatModel:    chatModel,
		SystemPrompt: systemPrompt,
		Location:     loc,
		ModelTimeout: modelTimeout,
	})
	if err != nil {
		logx.Fatal().Err(err).Msg("failed to build dispatcher")
	}

	if cfg.HealthListen != "" {
		srv := healthcheck.StartServer(cfg.HealthListen)
		defer healthcheck.Shutdown(srv)
	}

	api := slack.NewAPI(nil, slack.DefaultBaseURL, cfg.SlackBotToken, cfg.SlackAppToken)
	gateway, err := slack.NewGateway(api, dispatcher)
	if err != nil {
		logx.Fatal().Err(err).Msg("failed to build slack gateway")
	}

	logx.Info().
		Str("model", cfg.Response.Model).
		Str("historyBackend", cfg.History.Backend).
		Int("historyMaxTurns", cfg.History.MaxTurns).
		Str("timezone", cfg.Bot.Timezone).
		Msg("carmelo starting")

	if err := gateway.Run(ctx); err != nil {
		logx.Fatal().Err(err).Msg("slack gateway failed")
	}
}

// buildConversationStore selects the history backend. Memory is the default;
// Redis adds cross-restart retention and TTL expiry of stale conversations.
func buildConversationStore(cfg AppConfig) (model.ConversationStore, func(), error) {
	switch cfg.History.Backend {
	case "", "memory":
		return repo.NewMemoryConversationStore(cfg.History.MaxTurns), func() {}, nil
	case "redis":
		if cfg.Redis.URL == "" {
			return nil, nil, fmt.Errorf("HISTORY_BACKEND=redis requires REDIS_URL")
		}
		ttl, err := time.ParseDuration(cfg.History.TTL)
		if err != nil {
			return nil, nil, fmt.Errorf("invalid HISTORY_TTL %q: %w", cfg.History.TTL, err)
		}
		rdb, err := cfg.Redis.New()
		if err != nil {
			return nil, nil, err
		}
		return repo.NewRedisConversationStore(rdb, cfg.History.MaxTurns, ttl), func() { _ = rdb.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unknown HISTORY_BACKEND %q", cfg.History.Backend)
	}
}

func buildChatModel(ctx context.Context, cfg AppConfig) (*gemini.ChatModel, error) {
	clientCfg := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.BaseURL != "" {
		clientCfg.HTTPOptions.BaseURL = cfg.BaseURL
	}

	client, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		return nil, fmt.Errorf("error creating Gemini client: %w", err)
	}

	chatModel, err := gemini.NewChatModel(ctx, &gemini.Config{
		Client:      client,
		Model:       cfg.Response.Model,
		Temperature: &cfg.Response.Temperature,
		MaxTokens:   &cfg.Response.MaxTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("error creating response model: %w", err)
	}
	return chatModel, nil
}
