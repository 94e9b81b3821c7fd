package idea

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lexcodex/wayforward/agents"
	"github.com/lexcodex/wayforward/framework"
)

type generateModel struct {
	text    string
	err     error
	prompts []string
	options []*framework.LLMOptions
}

func (g *generateModel) Generate(ctx context.Context, prompt string, options *framework.LLMOptions) (*framework.LLMResponse, error) {
	g.prompts = append(g.prompts, prompt)
	g.options = append(g.options, options)
	if g.err != nil {
		return nil, g.err
	}
	return &framework.LLMResponse{Text: g.text}, nil
}

func (g *generateModel) Chat(ctx context.Context, messages []framework.Message, options *framework.LLMOptions) (*framework.LLMResponse, error) {
	return nil, errors.New("unused")
}

func (g *generateModel) ChatWithTools(ctx context.Context, messages []framework.Message, tools []framework.Tool, options *framework.LLMOptions) (*framework.LLMResponse, error) {
	return nil, errors.New("unused")
}

func TestImproveRewritesText(t *testing.T) {
	model := &generateModel{text: "\n  A clearer idea.  \n"}
	out, err := NewImprover(model, nil, nil).Improve(context.Background(), "an idea about solar kiosks")
	require.NoError(t, err)
	assert.Equal(t, "A clearer idea.", out)

	require.Len(t, model.prompts, 1)
	assert.Contains(t, model.prompts[0], "```\nan idea about solar kiosks\n```")
	assert.Equal(t, 0.3, model.options[0].Temperature)
}

func TestImproveUsesConfiguredModel(t *testing.T) {
	cfg := agents.DefaultConfig()
	cfg.Model.Name = "custom-model"
	cfg.Model.ImproveTemperature = 0.7
	model := &generateModel{text: "ok"}
	_, err := NewImprover(model, cfg, nil).Improve(context.Background(), "text")
	require.NoError(t, err)
	assert.Equal(t, "custom-model", model.options[0].Model)
	assert.Equal(t, 0.7, model.options[0].Temperature)
}

func TestImproveBlankInputSkipsModel(t *testing.T) {
	model := &generateModel{text: "should not be used"}
	out, err := NewImprover(model, nil, nil).Improve(context.Background(), "  \n ")
	require.NoError(t, err)
	assert.Equal(t, "", out)
	assert.Empty(t, model.prompts)
}

func TestImproveWrapsModelError(t *testing.T) {
	cause := errors.New("rate limited")
	_, err := NewImprover(&generateModel{err: cause}, nil, nil).Improve(context.Background(), "text")
	require.Error(t, err)
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "improve idea text")
}

func TestImproveWithoutModel(t *testing.T) {
	_, err := NewImprover(nil, nil, nil).Improve(context.Background(), "text")
	assert.Error(t, err)
}
