package idea

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/lexcodex/wayforward/agents"
	"github.com/lexcodex/wayforward/framework"
)

// Improver rewrites raw descriptions into clearer text before analysis.
type Improver struct {
	model       framework.LanguageModel
	modelName   string
	temperature float64
	maxTokens   int
	logger      *zap.Logger
}

// NewImprover uses the model settings from cfg; a nil cfg means defaults.
func NewImprover(model framework.LanguageModel, cfg *agents.Config, logger *zap.Logger) *Improver {
	if cfg == nil {
		cfg = agents.DefaultConfig()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Improver{
		model:       model,
		modelName:   cfg.Model.Name,
		temperature: cfg.Model.ImproveTemperature,
		maxTokens:   cfg.Model.MaxTokens,
		logger:      logger.Named("improver"),
	}
}

// Improve returns the rewritten text. Blank input yields "" without a model
// call; model failures are returned.
func (i *Improver) Improve(ctx context.Context, text string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", nil
	}
	if i.model == nil {
		return "", errors.New("improver has no language model")
	}
	resp, err := i.model.Generate(ctx, ImprovementPrompt(text), &framework.LLMOptions{
		Model:       i.modelName,
		Temperature: i.temperature,
		MaxTokens:   i.maxTokens,
	})
	if err != nil {
		i.logger.Warn("improve idea text failed", zap.Error(err))
		return "", fmt.Errorf("improve idea text: %w", err)
	}
	return strings.TrimSpace(resp.Text), nil
}
