package config

import (
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const envPrefix = "WISER"

// envBindings maps config keys to the environment variables read for them.
var envBindings = map[string][]string{
	"llm.api_key":             {"WISER_LLM_API_KEY"},
	"fallback_llm.api_key":    {"WISER_FALLBACK_LLM_API_KEY"},
	"search.api_key":          {"WISER_SEARCH_API_KEY", "FIRECRAWL_API_KEY"},
	"cookie.key":              {"WISER_COOKIE_KEY"},
	"channels.telegram.token": {"WISER_TELEGRAM_TOKEN"},
	"llm.provider":            {"WISER_LLM_PROVIDER"},
	"llm.model":               {"WISER_LLM_MODEL"},
	"search.backend":          {"WISER_SEARCH_BACKEND"},
	"history.driver":          {"WISER_HISTORY_DRIVER"},
	"history.path":            {"WISER_HISTORY_PATH"},
	"logging.level":           {"WISER_LOGGING_LEVEL"},
}

// providerKeyEnv names the conventional API key variable of each provider,
// consulted when no key is configured.
var providerKeyEnv = map[string]string{
	"openai":     "OPENAI_API_KEY",
	"openrouter": "OPENROUTER_API_KEY",
	"anthropic":  "ANTHROPIC_API_KEY",
	"gemini":     "GEMINI_API_KEY",
}

// Loader manages reading and writing the config file.
type Loader struct {
	mu       sync.RWMutex
	config   *Config
	filePath string
}

// NewLoader creates a loader for the given YAML file. An empty path means
// config.yaml in the working directory.
func NewLoader(path string) *Loader {
	if path == "" {
		path = "config.yaml"
	}
	return &Loader{filePath: path}
}

// Load reads .env files, the YAML config and environment overrides on top of
// Defaults. A missing config file is not an error.
func (l *Loader) Load() (*Config, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	_ = godotenv.Load()
	_ = godotenv.Load(".env.local")

	v := viper.New()
	v.SetConfigFile(l.filePath)
	v.SetConfigType("yaml")
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, names := range envBindings {
		if err := v.BindEnv(append([]string{key}, names...)...); err != nil {
			return nil, errors.Wrapf(err, "bind env for %s", key)
		}
	}

	if _, err := os.Stat(l.filePath); err == nil {
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrapf(err, "read config %s", l.filePath)
		}
	}

	cfg := Defaults()
	// Slices are decoded element-wise into existing ones; start empty so a
	// shorter keyword list in the file is not padded with defaults.
	cfg.Filter.Keywords = nil
	if err := v.Unmarshal(cfg); err != nil {
		return nil, errors.Wrap(err, "decode config")
	}
	// Env-only keys are not visited by Unmarshal when the file lacks the section.
	if s := v.GetString("llm.api_key"); s != "" {
		cfg.LLM.APIKey = s
	}
	if s := v.GetString("search.api_key"); s != "" {
		cfg.Search.APIKey = s
	}
	if s := v.GetString("cookie.key"); s != "" {
		cfg.Cookie.Key = s
	}
	if s := v.GetString("channels.telegram.token"); s != "" {
		if cfg.Channels.Telegram == nil {
			cfg.Channels.Telegram = &TelegramConfig{}
		}
		cfg.Channels.Telegram.Token = s
	}
	if s := v.GetString("fallback_llm.api_key"); s != "" && cfg.FallbackLLM != nil {
		cfg.FallbackLLM.APIKey = s
	}

	resolveProviderKey(&cfg.LLM)
	if cfg.FallbackLLM != nil {
		resolveProviderKey(cfg.FallbackLLM)
	}

	if len(cfg.Filter.Keywords) == 0 {
		cfg.Filter.Keywords = append([]string(nil), DefaultKeywords...)
	}

	l.config = cfg
	return cfg, nil
}

func resolveProviderKey(c *LLMConfig) {
	if c.APIKey != "" {
		return
	}
	if name, ok := providerKeyEnv[c.Provider]; ok {
		c.APIKey = os.Getenv(name)
	}
}

// LoadFile reads only the YAML file on top of Defaults, without .env or
// environment overrides, so the result can be saved back without leaking
// secrets from the environment into the file.
func (l *Loader) LoadFile() (*Config, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	data, err := os.ReadFile(l.filePath)
	if err != nil {
		return nil, errors.Wrapf(err, "read config %s", l.filePath)
	}
	cfg := Defaults()
	cfg.Filter.Keywords = nil
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errors.Wrapf(err, "decode config %s", l.filePath)
	}
	if len(cfg.Filter.Keywords) == 0 {
		cfg.Filter.Keywords = append([]string(nil), DefaultKeywords...)
	}
	return cfg, nil
}

// Save writes cfg as YAML.
func (l *Loader) Save(cfg *Config) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return errors.Wrap(err, "encode config")
	}
	if dir := filepath.Dir(l.filePath); dir != "." {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return errors.Wrap(err, "create config dir")
		}
	}

	l.config = cfg
	return os.WriteFile(l.filePath, data, 0600)
}

// Exists reports whether the config file is present on disk.
func (l *Loader) Exists() bool {
	_, err := os.Stat(l.filePath)
	return err == nil
}

// Get returns the currently loaded config (or defaults if not loaded yet).
func (l *Loader) Get() *Config {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.config == nil {
		return Defaults()
	}
	return l.config
}

// FilePath returns the config file path.
func (l *Loader) FilePath() string {
	return l.filePath
}
