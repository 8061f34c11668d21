package config

// Config is the top-level application configuration.
type Config struct {
	Agent       AgentConfig       `mapstructure:"agent" yaml:"agent"`
	LLM         LLMConfig         `mapstructure:"llm" yaml:"llm"`
	FallbackLLM *LLMConfig        `mapstructure:"fallback_llm" yaml:"fallback_llm,omitempty"`
	Filter      FilterConfig      `mapstructure:"filter" yaml:"filter"`
	Summarizer  SummarizerConfig  `mapstructure:"summarizer" yaml:"summarizer"`
	Search      SearchConfig      `mapstructure:"search" yaml:"search"`
	Prompts     PromptsConfig     `mapstructure:"prompts" yaml:"prompts"`
	History     HistoryConfig     `mapstructure:"history" yaml:"history"`
	Credentials CredentialsConfig `mapstructure:"credentials" yaml:"credentials"`
	Cookie      CookieConfig      `mapstructure:"cookie" yaml:"cookie"`
	Server      ServerConfig      `mapstructure:"server" yaml:"server"`
	Channels    ChannelsConfig    `mapstructure:"channels" yaml:"channels"`
	Logging     LoggingConfig     `mapstructure:"logging" yaml:"logging"`
}

type AgentConfig struct {
	// Decider is "react" (text parsing) or "native" (provider tool calling).
	Decider             string  `mapstructure:"decider" yaml:"decider"`
	Prompt              string  `mapstructure:"prompt" yaml:"prompt"`
	MaxTokens           int     `mapstructure:"max_tokens" yaml:"max_tokens"`
	Temperature         float64 `mapstructure:"temperature" yaml:"temperature"`
	MaxSteps            int     `mapstructure:"max_steps" yaml:"max_steps"`
	MaxParseErrors      int     `mapstructure:"max_parse_errors" yaml:"max_parse_errors"`
	MaxToolInputChars   int     `mapstructure:"max_tool_input_chars" yaml:"max_tool_input_chars"`
	MaxObservationChars int     `mapstructure:"max_observation_chars" yaml:"max_observation_chars"`
	HistoryTurns        int     `mapstructure:"history_turns" yaml:"history_turns"`
	SummarizeAt         int     `mapstructure:"summarize_at" yaml:"summarize_at"`
}

type LLMConfig struct {
	Provider    string `mapstructure:"provider" yaml:"provider"`
	Model       string `mapstructure:"model" yaml:"model"`
	APIKey      string `mapstructure:"api_key" yaml:"api_key,omitempty"`
	BaseURL     string `mapstructure:"base_url" yaml:"base_url,omitempty"`
	MaxRetries  int    `mapstructure:"max_retries" yaml:"max_retries"`
	TimeoutSecs int    `mapstructure:"timeout_secs" yaml:"timeout_secs"`
}

type FilterConfig struct {
	Keywords    []string `mapstructure:"keywords" yaml:"keywords"`
	Temperature float64  `mapstructure:"temperature" yaml:"temperature"`
	MaxTokens   int      `mapstructure:"max_tokens" yaml:"max_tokens"`
}

type SummarizerConfig struct {
	Temperature float64 `mapstructure:"temperature" yaml:"temperature"`
	MaxTokens   int     `mapstructure:"max_tokens" yaml:"max_tokens"`
}

type SearchConfig struct {
	// Backend is one of "duckduckgo", "browser", "news", "firecrawl".
	Backend     string `mapstructure:"backend" yaml:"backend"`
	MaxResults  int    `mapstructure:"max_results" yaml:"max_results"`
	Region      string `mapstructure:"region" yaml:"region"`
	Language    string `mapstructure:"language" yaml:"language"`
	BaseURL     string `mapstructure:"base_url" yaml:"base_url,omitempty"`
	APIKey      string `mapstructure:"api_key" yaml:"api_key,omitempty"`
	TimeoutSecs int    `mapstructure:"timeout_secs" yaml:"timeout_secs"`
	Headless    bool   `mapstructure:"headless" yaml:"headless"`
}

type PromptsConfig struct {
	// HubURL, when set, is the base URL prompt templates are fetched from by name
	// (GET <hub_url>/<name>). Embedded templates are used otherwise.
	HubURL      string `mapstructure:"hub_url" yaml:"hub_url,omitempty"`
	TimeoutSecs int    `mapstructure:"timeout_secs" yaml:"timeout_secs"`
}

type HistoryConfig struct {
	// Driver is one of "json", "sqlite", "bolt".
	Driver string `mapstructure:"driver" yaml:"driver"`
	Path   string `mapstructure:"path" yaml:"path"`
}

// CredentialsConfig mirrors the authenticator layout:
// credentials.usernames.<user>.{name,email,password}.
type CredentialsConfig struct {
	Usernames map[string]UserConfig `mapstructure:"usernames" yaml:"usernames"`
}

type UserConfig struct {
	Name     string `mapstructure:"name" yaml:"name"`
	Email    string `mapstructure:"email" yaml:"email"`
	Password string `mapstructure:"password" yaml:"password"`
}

type CookieConfig struct {
	Name       string `mapstructure:"name" yaml:"name"`
	Key        string `mapstructure:"key" yaml:"key"`
	ExpiryDays int    `mapstructure:"expiry_days" yaml:"expiry_days"`
}

type ServerConfig struct {
	Addr             string `mapstructure:"addr" yaml:"addr"`
	ReadTimeoutSecs  int    `mapstructure:"read_timeout_secs" yaml:"read_timeout_secs"`
	WriteTimeoutSecs int    `mapstructure:"write_timeout_secs" yaml:"write_timeout_secs"`
}

type ChannelsConfig struct {
	Telegram *TelegramConfig `mapstructure:"telegram" yaml:"telegram,omitempty"`
}

type TelegramConfig struct {
	Token      string  `mapstructure:"token" yaml:"token"`
	AllowedIDs []int64 `mapstructure:"allowed_ids" yaml:"allowed_ids,omitempty"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}
