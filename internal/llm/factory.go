package llm

import (
	"fmt"
	"os"
	"time"

	"github.com/scenecraft/scenecraft/internal/config"
)

// NewProvider creates an LLM provider from configuration, auto-detecting
// the wire dialect unless one is forced.
func NewProvider(cfg *config.Config) (Provider, error) {
	dialect := Dialect(cfg.LLM.Dialect)
	if dialect == "" {
		dialect = DetectDialect(cfg.LLM.Endpoint, cfg.LLM.Model)
	}
	if !dialect.IsValid() {
		return nil, fmt.Errorf("unknown dialect: %s", dialect)
	}

	apiKey := cfg.LLM.APIKey
	if apiKey == "" {
		apiKey = apiKeyFromEnv(dialect)
	}

	providerCfg := &ProviderConfig{
		Endpoint:   cfg.LLM.Endpoint,
		APIKey:     apiKey,
		Model:      cfg.LLM.Model,
		MaxTokens:  cfg.LLM.MaxTokens,
		MaxRetries: cfg.LLM.MaxRetries,
	}
	if cfg.LLM.RequestTimeoutSec > 0 {
		providerCfg.Timeout = time.Duration(cfg.LLM.RequestTimeoutSec) * time.Second
	}

	provider, err := NewProviderByDialect(dialect, providerCfg)
	if err != nil {
		return nil, err
	}

	// Every provider is wrapped with metrics collection so the session log
	// can record call counts and latency.
	return NewMetricsProvider(provider), nil
}

// NewProviderByDialect creates a provider for a specific dialect.
func NewProviderByDialect(dialect Dialect, cfg *ProviderConfig) (Provider, error) {
	switch dialect {
	case DialectAnthropic:
		return NewAnthropicProvider(cfg), nil
	case DialectOpenAI:
		return NewOpenAIProvider(cfg), nil
	default:
		return nil, fmt.Errorf("unknown dialect: %s", dialect)
	}
}

// apiKeyFromEnv retrieves the API key from the standard environment
// variable for each dialect.
func apiKeyFromEnv(dialect Dialect) string {
	switch dialect {
	case DialectAnthropic:
		return os.Getenv("ANTHROPIC_API_KEY")
	case DialectOpenAI:
		return os.Getenv("OPENAI_API_KEY")
	default:
		return ""
	}
}
