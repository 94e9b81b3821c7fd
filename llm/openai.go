package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/lexcodex/wayforward/framework"
)

// ErrMissingAPIKey is returned when a hosted provider is used without a key.
var ErrMissingAPIKey = errors.New("api key is required")

// OpenAIClient implements framework.LanguageModel against any
// OpenAI-compatible chat completions endpoint.
type OpenAIClient struct {
	BaseURL string
	APIKey  string
	Model   string
	Logger  *zap.Logger
	client  *http.Client
}

type openAIMessage struct {
	Role       string           `json:"role"`
	Content    string           `json:"content"`
	Name       string           `json:"name,omitempty"`
	ToolCallID string           `json:"tool_call_id,omitempty"`
	ToolCalls  []openAIToolCall `json:"tool_calls,omitempty"`
}

type openAIToolCall struct {
	ID       string `json:"id"`
	Type     string `json:"type"`
	Function struct {
		Name      string          `json:"name"`
		Arguments json.RawMessage `json:"arguments"`
	} `json:"function"`
}

type openAIRequest struct {
	Model       string          `json:"model"`
	Messages    []openAIMessage `json:"messages"`
	Tools       []toolDef       `json:"tools,omitempty"`
	MaxTokens   int             `json:"max_tokens,omitempty"`
	Stop        []string        `json:"stop,omitempty"`
	Temperature *float64        `json:"temperature,omitempty"`
	TopP        float64         `json:"top_p,omitempty"`
}

type openAIResponse struct {
	Choices []struct {
		FinishReason string        `json:"finish_reason"`
		Message      openAIMessage `json:"message"`
	} `json:"choices"`
	Usage *struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage,omitempty"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

// NewOpenAIClient builds a client for baseURL (defaulting to api.openai.com).
func NewOpenAIClient(baseURL, apiKey, model string) *OpenAIClient {
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	return &OpenAIClient{
		BaseURL: strings.TrimRight(baseURL, "/"),
		APIKey:  apiKey,
		Model:   model,
		Logger:  zap.NewNop(),
		client:  &http.Client{Timeout: 2 * time.Minute},
	}
}

// Generate sends prompt as a single user message.
func (c *OpenAIClient) Generate(ctx context.Context, prompt string, options *framework.LLMOptions) (*framework.LLMResponse, error) {
	return c.Chat(ctx, []framework.Message{{Role: "user", Content: prompt}}, options)
}

// Chat implements a plain chat completion.
func (c *OpenAIClient) Chat(ctx context.Context, messages []framework.Message, options *framework.LLMOptions) (*framework.LLMResponse, error) {
	return c.complete(ctx, c.buildRequest(messages, nil, options))
}

// ChatWithTools offers tools to the model using native function calling.
func (c *OpenAIClient) ChatWithTools(ctx context.Context, messages []framework.Message, tools []framework.Tool, options *framework.LLMOptions) (*framework.LLMResponse, error) {
	return c.complete(ctx, c.buildRequest(messages, tools, options))
}

func (c *OpenAIClient) getHTTPClient() *http.Client {
	if c.client != nil {
		return c.client
	}
	c.client = &http.Client{Timeout: 60 * time.Second}
	return c.client
}

func (c *OpenAIClient) logger() *zap.Logger {
	if c.Logger == nil {
		return zap.NewNop()
	}
	return c.Logger
}

func (c *OpenAIClient) model(options *framework.LLMOptions) string {
	if options != nil && options.Model != "" {
		return options.Model
	}
	if c.Model != "" {
		return c.Model
	}
	return "gpt-4o-mini"
}

func (c *OpenAIClient) buildRequest(messages []framework.Message, tools []framework.Tool, options *framework.LLMOptions) openAIRequest {
	req := openAIRequest{
		Model:    c.model(options),
		Messages: make([]openAIMessage, 0, len(messages)),
	}
	for _, msg := range messages {
		out := openAIMessage{
			Role:       msg.Role,
			Content:    msg.Content,
			ToolCallID: msg.ToolCallID,
		}
		if msg.Role != "tool" {
			out.Name = msg.Name
		}
		for _, call := range msg.ToolCalls {
			var tc openAIToolCall
			tc.ID = call.ID
			tc.Type = "function"
			tc.Function.Name = call.Name
			args := call.Args
			if args == nil {
				args = map[string]interface{}{}
			}
			encoded, _ := json.Marshal(args)
			// The API expects arguments as a JSON string, not an object.
			quoted, _ := json.Marshal(string(encoded))
			tc.Function.Arguments = quoted
			out.ToolCalls = append(out.ToolCalls, tc)
		}
		req.Messages = append(req.Messages, out)
	}
	if len(tools) > 0 {
		req.Tools = convertTools(tools)
	}
	if options != nil {
		temp := options.Temperature
		req.Temperature = &temp
		req.MaxTokens = options.MaxTokens
		req.Stop = options.Stop
		req.TopP = options.TopP
	}
	return req
}

func (c *OpenAIClient) complete(ctx context.Context, payload openAIRequest) (*framework.LLMResponse, error) {
	if c.APIKey == "" {
		return nil, ErrMissingAPIKey
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	c.logger().Debug("openai request", zap.String("model", payload.Model), zap.Int("messages", len(payload.Messages)), zap.Int("tools", len(payload.Tools)))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.APIKey)
	resp, err := c.getHTTPClient().Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	responseBody, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 300 {
		detail := strings.TrimSpace(string(responseBody))
		if len(detail) > 4096 {
			detail = detail[:4096]
		}
		if detail != "" {
			return nil, fmt.Errorf("openai error: %s: %s", resp.Status, detail)
		}
		return nil, fmt.Errorf("openai error: %s", resp.Status)
	}
	c.logger().Debug("openai response", zap.String("payload", truncate(string(responseBody), 2048)))
	return decodeOpenAIResponse(responseBody)
}

func decodeOpenAIResponse(body []byte) (*framework.LLMResponse, error) {
	var raw openAIResponse
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("decode openai response: %w", err)
	}
	if raw.Error != nil {
		return nil, fmt.Errorf("openai error: %s", raw.Error.Message)
	}
	if len(raw.Choices) == 0 {
		return nil, errors.New("openai error: response contained no choices")
	}
	choice := raw.Choices[0]
	resp := &framework.LLMResponse{
		Text:         choice.Message.Content,
		FinishReason: choice.FinishReason,
	}
	if raw.Usage != nil {
		resp.Usage = map[string]int{
			"prompt_tokens":     raw.Usage.PromptTokens,
			"completion_tokens": raw.Usage.CompletionTokens,
			"total_tokens":      raw.Usage.TotalTokens,
		}
	}
	for _, call := range choice.Message.ToolCalls {
		resp.ToolCalls = append(resp.ToolCalls, framework.ToolCall{
			ID:   call.ID,
			Name: call.Function.Name,
			Args: parseArguments(call.Function.Arguments),
		})
	}
	return resp, nil
}
