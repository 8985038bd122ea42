package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/bassamadnan/mailpilot/agent"
	"github.com/bassamadnan/mailpilot/config"
	"github.com/bassamadnan/mailpilot/gmail"
	"github.com/bassamadnan/mailpilot/llm"
	"github.com/bassamadnan/mailpilot/secrets"
)

// loadConfig loads and validates the config. With withSecrets the LLM key falls back to the keyring.
func loadConfig(opts *rootOptions, withSecrets bool) (config.Config, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return cfg, err
	}
	if err := config.Validate(cfg); err != nil {
		return cfg, err
	}
	if !withSecrets || cfg.LLM.APIKey != "" {
		return cfg, nil
	}

	key, err := secrets.New(cfg.KeyringBackend).APIKey()
	if err != nil {
		if errors.Is(err, secrets.ErrNotFound) {
			return cfg, nil
		}
		return cfg, err
	}
	cfg.LLM.APIKey = key
	cfg.LLM.APIKeySource = "keyring"
	return cfg, nil
}

func tokenStore(cfg config.Config) gmail.TokenStore {
	if cfg.Gmail.TokenStore == config.TokenStoreFile {
		return gmail.FileTokenStore{Path: cfg.Gmail.TokenFile}
	}
	return secrets.New(cfg.KeyringBackend).TokenStore()
}

func gmailDialer(cfg config.Config, logger zerolog.Logger) agent.Dialer {
	return func(ctx context.Context) (agent.Session, error) {
		c, err := gmail.Dial(ctx, gmail.DialOptions{
			CredentialsFile: cfg.Gmail.CredentialsFile,
			Store:           tokenStore(cfg),
			Logger:          logger,
		})
		if err != nil {
			if errors.Is(err, gmail.ErrNoToken) {
				return nil, fmt.Errorf("%w (run `mailpilot auth login`)", err)
			}
			return nil, err
		}
		return c, nil
	}
}

type agentDeps struct {
	loop    *agent.Loop
	llm     *llm.Client
	filters *config.Manager
}

// buildAgent wires the Gmail session, the model and the screening rules into a poll loop.
func buildAgent(cfg config.Config, logger zerolog.Logger, events chan<- agent.Event) (*agentDeps, error) {
	client, err := llm.NewClient(llm.Config{
		BaseURL: cfg.LLM.BaseURL,
		APIKey:  cfg.LLM.APIKey,
		Model:   cfg.LLM.Model,
		Timeout: cfg.LLM.Timeout,
		Logger:  logger,
	})
	if err != nil {
		if errors.Is(err, llm.ErrNoAPIKey) {
			return nil, fmt.Errorf("%w (set MAILPILOT_LLM_API_KEY or run `mailpilot auth set-key`)", err)
		}
		return nil, err
	}

	filters, err := config.NewManager(cfg.FiltersFile, logger)
	if err != nil {
		return nil, fmt.Errorf("load filters: %w", err)
	}

	persona := llm.Persona{Business: cfg.LLM.Business, Topic: cfg.LLM.Topic, Signature: cfg.LLM.Signature}
	loop := agent.NewLoop(
		gmailDialer(cfg, logger),
		llm.NewClassifier(client, persona),
		llm.NewDrafter(client, persona),
		agent.LoopOptions{
			Interval: cfg.Poll.Interval,
			Lookback: cfg.Poll.Lookback,
			Events:   events,
			Pipeline: agent.Options{
				Query:     cfg.Poll.Query,
				BatchSize: cfg.Poll.BatchSize,
				Screener:  filters,
				Logger:    logger,
			},
		},
	)
	return &agentDeps{loop: loop, llm: client, filters: filters}, nil
}

func logUsage(logger zerolog.Logger, c *llm.Client) {
	u := c.Usage()
	logger.Info().
		Str("model", c.Model()).
		Int64("calls", u.Calls).
		Int64("prompt_tokens", u.PromptTokens).
		Int64("completion_tokens", u.CompletionTokens).
		Msg("model usage")
}
