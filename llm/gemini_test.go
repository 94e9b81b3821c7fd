package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"github.com/lexcodex/wayforward/framework"
)

func TestToGeminiContentsFoldsSystemMessages(t *testing.T) {
	messages := []framework.Message{
		{Role: "system", Content: "be brief"},
		{Role: "system", Content: "answer in JSON"},
		{Role: "user", Content: "hi"},
		{Role: "assistant", ToolCalls: []framework.ToolCall{{Name: "echo", Args: map[string]interface{}{"value": "x"}}}},
		{Role: "tool", Name: "echo", Content: "x"},
	}
	contents, system := toGeminiContents(messages)
	require.NotNil(t, system)
	assert.Equal(t, "be brief\n\nanswer in JSON", system.Parts[0].Text)
	require.Len(t, contents, 3)
	assert.Equal(t, string(genai.RoleUser), contents[0].Role)
	assert.Equal(t, string(genai.RoleModel), contents[1].Role)
	require.NotNil(t, contents[1].Parts[0].FunctionCall)
	assert.Equal(t, "echo", contents[1].Parts[0].FunctionCall.Name)
	require.NotNil(t, contents[2].Parts[0].FunctionResponse)
	assert.Equal(t, "x", contents[2].Parts[0].FunctionResponse.Response["output"])
}

func TestGeminiConfigDeclaresTools(t *testing.T) {
	config := geminiConfig(nil, []framework.Tool{stubTool{name: "echo"}}, &framework.LLMOptions{Temperature: 0.2, MaxTokens: 64})
	require.NotNil(t, config.Temperature)
	assert.InDelta(t, 0.2, *config.Temperature, 1e-6)
	assert.Equal(t, int32(64), config.MaxOutputTokens)
	require.Len(t, config.Tools, 1)
	decl := config.Tools[0].FunctionDeclarations[0]
	assert.Equal(t, "echo", decl.Name)
	assert.Equal(t, genai.TypeString, decl.Parameters.Properties["value"].Type)
	assert.Equal(t, []string{"value"}, decl.Parameters.Required)
}

func TestFromGeminiResponse(t *testing.T) {
	resp := &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			FinishReason: genai.FinishReasonStop,
			Content: &genai.Content{Role: genai.RoleModel, Parts: []*genai.Part{
				{Text: "thinking"},
				{FunctionCall: &genai.FunctionCall{Name: "echo", Args: map[string]any{"value": "y"}}},
			}},
		}},
		UsageMetadata: &genai.GenerateContentResponseUsageMetadata{PromptTokenCount: 4, CandidatesTokenCount: 2, TotalTokenCount: 6},
	}
	out := fromGeminiResponse(resp)
	assert.Equal(t, "thinking", out.Text)
	assert.Equal(t, "STOP", out.FinishReason)
	require.Len(t, out.ToolCalls, 1)
	assert.Equal(t, "y", out.ToolCalls[0].Args["value"])
	assert.Equal(t, 6, out.Usage["total_tokens"])
	assert.Empty(t, fromGeminiResponse(nil).Text)
}
