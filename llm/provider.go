package llm

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/lexcodex/wayforward/framework"
)

// Provider names accepted by New.
const (
	ProviderOpenAI = "openai"
	ProviderOllama = "ollama"
	ProviderGemini = "gemini"
)

// ProviderConfig selects and configures a language model backend.
type ProviderConfig struct {
	Provider string
	Model    string
	APIKey   string
	BaseURL  string
	Timeout  time.Duration
	Logger   *zap.Logger
}

// New builds the model named by cfg.Provider.
func New(ctx context.Context, cfg ProviderConfig) (framework.LanguageModel, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	var httpClient *http.Client
	if cfg.Timeout > 0 {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case "", ProviderOpenAI:
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("openai: %w (set OPENAI_API_KEY)", ErrMissingAPIKey)
		}
		c := NewOpenAIClient(cfg.BaseURL, cfg.APIKey, cfg.Model)
		c.Logger = logger.Named("openai")
		if httpClient != nil {
			c.client = httpClient
		}
		return c, nil
	case ProviderOllama:
		c := NewOllamaClient(cfg.BaseURL, cfg.Model)
		c.Logger = logger.Named("ollama")
		if httpClient != nil {
			c.client = httpClient
		}
		return c, nil
	case ProviderGemini:
		c, err := NewGeminiClient(ctx, cfg.APIKey, cfg.Model, httpClient)
		if err != nil {
			return nil, err
		}
		c.Logger = logger.Named("gemini")
		return c, nil
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.Provider)
	}
}
