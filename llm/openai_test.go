package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lexcodex/wayforward/framework"
)

func TestOpenAIClientChat(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		var payload map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		assert.Equal(t, "gpt-4o-mini", payload["model"])
		assert.Equal(t, 0.2, payload["temperature"])
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"choices":[{"finish_reason":"stop","message":{"role":"assistant","content":"hello"}}],
			"usage":{"prompt_tokens":5,"completion_tokens":1,"total_tokens":6}
		}`))
	}))
	defer srv.Close()

	client := NewOpenAIClient(srv.URL+"/v1", "sk-test", "")
	resp, err := client.Chat(context.Background(), []framework.Message{{Role: "user", Content: "hi"}}, &framework.LLMOptions{Temperature: 0.2})
	require.NoError(t, err)
	assert.Equal(t, "hello", resp.Text)
	assert.Equal(t, "stop", resp.FinishReason)
	assert.Equal(t, 6, resp.Usage["total_tokens"])
}

func TestOpenAIClientToolCalls(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload struct {
			Tools    []toolDef       `json:"tools"`
			Messages []openAIMessage `json:"messages"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		if assert.Len(t, payload.Tools, 1) {
			assert.Equal(t, "echo", payload.Tools[0].Function.Name)
			assert.Equal(t, []interface{}{"value"}, payload.Tools[0].Function.Parameters["required"])
		}
		// Earlier assistant tool calls are re-sent with string-encoded arguments.
		if assert.Len(t, payload.Messages, 3) && assert.Len(t, payload.Messages[1].ToolCalls, 1) {
			var encoded string
			require.NoError(t, json.Unmarshal(payload.Messages[1].ToolCalls[0].Function.Arguments, &encoded))
			assert.JSONEq(t, `{"value":"a"}`, encoded)
		}
		_, _ = w.Write([]byte(`{"choices":[{"finish_reason":"tool_calls","message":{"role":"assistant","content":"","tool_calls":[
			{"id":"call_1","type":"function","function":{"name":"echo","arguments":"{\"value\":\"b\"}"}}
		]}}]}`))
	}))
	defer srv.Close()

	client := NewOpenAIClient(srv.URL, "sk-test", "gpt-4o-mini")
	messages := []framework.Message{
		{Role: "user", Content: "echo twice"},
		{Role: "assistant", ToolCalls: []framework.ToolCall{{ID: "call_0", Name: "echo", Args: map[string]interface{}{"value": "a"}}}},
		{Role: "tool", Name: "echo", ToolCallID: "call_0", Content: "a"},
	}
	resp, err := client.ChatWithTools(context.Background(), messages, []framework.Tool{stubTool{name: "echo"}}, nil)
	require.NoError(t, err)
	if assert.Len(t, resp.ToolCalls, 1) {
		assert.Equal(t, "call_1", resp.ToolCalls[0].ID)
		assert.Equal(t, map[string]interface{}{"value": "b"}, resp.ToolCalls[0].Args)
	}
}

func TestOpenAIClientErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"message":"slow down"}}`))
	}))
	defer srv.Close()

	client := NewOpenAIClient(srv.URL, "sk-test", "")
	_, err := client.Generate(context.Background(), "hi", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "slow down")

	_, err = NewOpenAIClient(srv.URL, "", "").Generate(context.Background(), "hi", nil)
	assert.ErrorIs(t, err, ErrMissingAPIKey)
}

func TestDecodeOpenAIResponseWithoutChoices(t *testing.T) {
	_, err := decodeOpenAIResponse([]byte(`{"choices":[]}`))
	assert.Error(t, err)
}

func TestNewProviderSelection(t *testing.T) {
	ctx := context.Background()
	_, err := New(ctx, ProviderConfig{Provider: "openai"})
	assert.ErrorIs(t, err, ErrMissingAPIKey)

	model, err := New(ctx, ProviderConfig{Provider: "ollama", Model: "llama3.1"})
	require.NoError(t, err)
	assert.IsType(t, &OllamaClient{}, model)

	_, err = New(ctx, ProviderConfig{Provider: "gemini"})
	assert.ErrorIs(t, err, ErrMissingAPIKey)

	_, err = New(ctx, ProviderConfig{Provider: "carrier-pigeon"})
	assert.Error(t, err)
}
