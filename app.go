package main

import (
	"context"
	"fmt"
	"net/url"
	"os"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"deep-search-wiser/internal/agent"
	"deep-search-wiser/internal/channel"
	"deep-search-wiser/internal/config"
	"deep-search-wiser/internal/eventbus"
	"deep-search-wiser/internal/filter"
	"deep-search-wiser/internal/history"
	"deep-search-wiser/internal/llm"
	"deep-search-wiser/internal/logger"
	"deep-search-wiser/internal/prompt"
	"deep-search-wiser/internal/search"
	"deep-search-wiser/internal/security"
	"deep-search-wiser/internal/summarize"
	"deep-search-wiser/internal/tool"
)

// vaultPassphraseEnv unlocks the encrypted secrets vault on machines
// without an OS keyring.
const vaultPassphraseEnv = "WISER_VAULT_PASSPHRASE"

// App holds the wired components shared by the commands.
type App struct {
	cfg      *config.Config
	loader   *config.Loader
	keyStore *security.KeyStore
	bus      *eventbus.Bus
	history  history.Store
	backend  search.Backend
	agent    *agent.Agent
	chanMgr  *channel.Manager
	log      *zap.Logger
}

// NewApp loads the config at path, sets up logging and resolves
// [keyring] placeholders.
func NewApp(path string) (*App, error) {
	loader := config.NewLoader(path)
	cfg, err := loader.Load()
	if err != nil {
		return nil, err
	}
	if err := logger.Init(cfg.Logging.Level, cfg.Logging.Format); err != nil {
		return nil, errors.Wrap(err, "init logger")
	}

	a := &App{
		cfg:     cfg,
		loader:  loader,
		bus:     eventbus.New(),
		chanMgr: channel.NewManager(),
		log:     logger.Named("app"),
	}

	ks, err := security.NewKeyStore("", os.Getenv(vaultPassphraseEnv))
	if err != nil {
		a.log.Warn("key store unavailable, secrets stay in the config file", zap.Error(err))
	} else {
		a.keyStore = ks
		if err := ks.ResolveSecrets(cfg); err != nil {
			return nil, err
		}
	}
	return a, nil
}

// openHistory opens the configured history store once.
func (a *App) openHistory() (history.Store, error) {
	if a.history != nil {
		return a.history, nil
	}
	store, err := history.Open(a.cfg.History)
	if err != nil {
		return nil, err
	}
	a.history = store
	return store, nil
}

// initAgent builds the provider chain, the three tools and the agent.
func (a *App) initAgent(ctx context.Context) error {
	if a.cfg.LLM.BaseURL != "" {
		if err := validateBaseURL(a.cfg.LLM.BaseURL); err != nil {
			return err
		}
	}
	if a.cfg.LLM.APIKey == "" && a.cfg.LLM.Provider != "local" {
		return fmt.Errorf("LLM API key not configured (llm.api_key or the provider's API key variable)")
	}

	provider, err := llm.NewProviderChain(ctx, a.cfg.LLM, a.cfg.FallbackLLM)
	if err != nil {
		return err
	}
	prompts := prompt.NewStore(a.cfg.Prompts)

	backend, err := search.New(a.cfg.Search)
	if err != nil {
		return err
	}
	a.backend = backend

	negFilter, err := filter.New(provider, prompts, a.cfg.Filter)
	if err != nil {
		return err
	}
	registry, err := tool.NewSearchRegistry(
		tool.NewWebSearchTool(backend, a.cfg.Search.MaxResults),
		tool.NewNegativeFilterTool(negFilter),
		tool.NewSummarizeTool(summarize.New(provider, prompts, a.cfg.Summarizer)),
	)
	if err != nil {
		return err
	}

	store, err := a.openHistory()
	if err != nil {
		return err
	}

	a.agent = agent.New(a.cfg.Agent, provider, prompts, registry, store, a.bus)
	a.log.Info("agent initialized",
		zap.String("provider", provider.Name()),
		zap.String("decider", a.agent.Decider().Name()),
		zap.String("search", backend.Name()),
		zap.Strings("tools", registry.Names()))
	return nil
}

// registerTelegram adds the Telegram shell when a token is configured.
func (a *App) registerTelegram() {
	tg := a.cfg.Channels.Telegram
	if tg == nil || tg.Token == "" {
		return
	}
	a.chanMgr.Register(channel.NewTelegramChannel(*tg))
}

// startChannels routes channel messages to the agent and starts them.
func (a *App) startChannels(ctx context.Context) error {
	a.agent.Start(ctx, a.chanMgr)
	return a.chanMgr.StartAll(ctx)
}

// shutdown releases everything opened by the commands.
func (a *App) shutdown(ctx context.Context) {
	a.chanMgr.StopAll(ctx)
	if c, ok := a.backend.(search.Closer); ok {
		if err := c.Close(); err != nil {
			a.log.Warn("closing search backend", zap.Error(err))
		}
	}
	if a.history != nil {
		if err := a.history.Close(); err != nil {
			a.log.Warn("closing history", zap.Error(err))
		}
	}
	logger.Sync()
}

// validateBaseURL checks that a base URL is valid and uses http/https scheme.
func validateBaseURL(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid base URL: %w", err)
	}
	switch u.Scheme {
	case "http", "https":
	default:
		return fmt.Errorf("base URL must use http or https scheme, got: %s", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("base URL must have a host")
	}
	return nil
}
