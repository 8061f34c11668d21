package config

// DefaultKeywords is the negative-news keyword list the filter checks results against.
var DefaultKeywords = []string{
	"vefat", "ceza", "dava", "haciz", "usulsüzlük", "baskın",
	"tutuklama", "soruşturma", "mühürlendi", "yangın", "iflas",
	"dolandırıcılık", "fetö", "işçi kıyımı", "yolsuzluk",
	"hapis cezası", "para cezası", "ihaleye fesat karıştırma",
	"operasyon", "mafya", "kara para aklama", "patlama",
}

// Defaults returns a Config with sensible default values.
func Defaults() *Config {
	return &Config{
		Agent: AgentConfig{
			Decider:             "react",
			Prompt:              "hwchase17/react",
			MaxTokens:           2048,
			Temperature:         0.7,
			MaxSteps:            15,
			MaxParseErrors:      3,
			MaxToolInputChars:   20000,
			MaxObservationChars: 12000,
			HistoryTurns:        5,
			SummarizeAt:         6000,
		},
		LLM: LLMConfig{
			Provider:    "openai",
			Model:       "gpt-4o-mini",
			MaxRetries:  2,
			TimeoutSecs: 120,
		},
		Filter: FilterConfig{
			Keywords:    append([]string(nil), DefaultKeywords...),
			Temperature: 0.0,
			MaxTokens:   2048,
		},
		Summarizer: SummarizerConfig{
			Temperature: 0.2,
			MaxTokens:   1024,
		},
		Search: SearchConfig{
			Backend:     "duckduckgo",
			MaxResults:  5,
			Region:      "tr-tr",
			Language:    "tr",
			TimeoutSecs: 15,
			Headless:    true,
		},
		Prompts: PromptsConfig{
			TimeoutSecs: 10,
		},
		History: HistoryConfig{
			Driver: "json",
			Path:   "chat_history.json",
		},
		Cookie: CookieConfig{
			Name:       "wiser_auth",
			ExpiryDays: 30,
		},
		Server: ServerConfig{
			Addr:             "127.0.0.1:8501",
			ReadTimeoutSecs:  30,
			WriteTimeoutSecs: 300,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}
