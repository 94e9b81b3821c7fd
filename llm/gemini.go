package llm

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/lexcodex/wayforward/framework"
)

// GeminiClient implements framework.LanguageModel using the Google GenAI SDK.
type GeminiClient struct {
	Model  string
	Logger *zap.Logger
	client *genai.Client
}

// NewGeminiClient creates a Gemini API client. httpClient may be nil.
func NewGeminiClient(ctx context.Context, apiKey, model string, httpClient *http.Client) (*GeminiClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini: %w", ErrMissingAPIKey)
	}
	if model == "" {
		model = "gemini-2.0-flash"
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:     apiKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: httpClient,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}
	return &GeminiClient{Model: model, Logger: zap.NewNop(), client: client}, nil
}

// Generate implements single prompt completion.
func (c *GeminiClient) Generate(ctx context.Context, prompt string, options *framework.LLMOptions) (*framework.LLMResponse, error) {
	return c.Chat(ctx, []framework.Message{{Role: "user", Content: prompt}}, options)
}

// Chat implements chat style conversation.
func (c *GeminiClient) Chat(ctx context.Context, messages []framework.Message, options *framework.LLMOptions) (*framework.LLMResponse, error) {
	return c.ChatWithTools(ctx, messages, nil, options)
}

// ChatWithTools offers tools as Gemini function declarations.
func (c *GeminiClient) ChatWithTools(ctx context.Context, messages []framework.Message, tools []framework.Tool, options *framework.LLMOptions) (*framework.LLMResponse, error) {
	contents, system := toGeminiContents(messages)
	config := geminiConfig(system, tools, options)
	model := c.Model
	if options != nil && options.Model != "" {
		model = options.Model
	}
	if c.Logger != nil {
		c.Logger.Debug("gemini request", zap.String("model", model), zap.Int("contents", len(contents)), zap.Int("tools", len(tools)))
	}
	resp, err := c.client.Models.GenerateContent(ctx, model, contents, config)
	if err != nil {
		return nil, fmt.Errorf("gemini generate failed: %w", err)
	}
	return fromGeminiResponse(resp), nil
}

// toGeminiContents maps chat messages onto Gemini contents. System messages
// are folded into a single system instruction.
func toGeminiContents(messages []framework.Message) ([]*genai.Content, *genai.Content) {
	var system []string
	contents := make([]*genai.Content, 0, len(messages))
	for _, msg := range messages {
		switch msg.Role {
		case "system":
			system = append(system, msg.Content)
		case "assistant":
			parts := make([]*genai.Part, 0, 1+len(msg.ToolCalls))
			if msg.Content != "" {
				parts = append(parts, genai.NewPartFromText(msg.Content))
			}
			for _, call := range msg.ToolCalls {
				parts = append(parts, genai.NewPartFromFunctionCall(call.Name, call.Args))
			}
			if len(parts) == 0 {
				continue
			}
			contents = append(contents, genai.NewContentFromParts(parts, genai.RoleModel))
		case "tool":
			part := genai.NewPartFromFunctionResponse(msg.Name, map[string]any{"output": msg.Content})
			contents = append(contents, genai.NewContentFromParts([]*genai.Part{part}, genai.RoleUser))
		default:
			contents = append(contents, genai.NewContentFromText(msg.Content, genai.RoleUser))
		}
	}
	if len(system) == 0 {
		return contents, nil
	}
	return contents, genai.NewContentFromText(strings.Join(system, "\n\n"), genai.RoleUser)
}

func geminiConfig(system *genai.Content, tools []framework.Tool, options *framework.LLMOptions) *genai.GenerateContentConfig {
	config := &genai.GenerateContentConfig{SystemInstruction: system}
	if options != nil {
		config.Temperature = genai.Ptr(float32(options.Temperature))
		if options.TopP != 0 {
			config.TopP = genai.Ptr(float32(options.TopP))
		}
		if options.MaxTokens != 0 {
			config.MaxOutputTokens = int32(options.MaxTokens)
		}
		config.StopSequences = options.Stop
	}
	if len(tools) > 0 {
		decls := make([]*genai.FunctionDeclaration, 0, len(tools))
		for _, tool := range tools {
			decls = append(decls, &genai.FunctionDeclaration{
				Name:        tool.Name(),
				Description: tool.Description(),
				Parameters:  geminiSchema(tool),
			})
		}
		config.Tools = []*genai.Tool{{FunctionDeclarations: decls}}
	}
	return config
}

func geminiSchema(tool framework.Tool) *genai.Schema {
	schema := &genai.Schema{
		Type:       genai.TypeObject,
		Properties: map[string]*genai.Schema{},
	}
	for _, param := range tool.Parameters() {
		schema.Properties[param.Name] = &genai.Schema{
			Type:        geminiType(param.Type),
			Description: param.Description,
		}
		if param.Required {
			schema.Required = append(schema.Required, param.Name)
		}
	}
	return schema
}

func geminiType(t string) genai.Type {
	switch strings.ToLower(t) {
	case "integer", "int":
		return genai.TypeInteger
	case "number", "float":
		return genai.TypeNumber
	case "boolean", "bool":
		return genai.TypeBoolean
	case "array":
		return genai.TypeArray
	case "object":
		return genai.TypeObject
	default:
		return genai.TypeString
	}
}

func fromGeminiResponse(resp *genai.GenerateContentResponse) *framework.LLMResponse {
	out := &framework.LLMResponse{}
	if resp == nil {
		return out
	}
	out.Text = resp.Text()
	if len(resp.Candidates) > 0 && resp.Candidates[0] != nil {
		out.FinishReason = string(resp.Candidates[0].FinishReason)
	}
	for _, call := range resp.FunctionCalls() {
		if call == nil {
			continue
		}
		args := call.Args
		if args == nil {
			args = map[string]any{}
		}
		out.ToolCalls = append(out.ToolCalls, framework.ToolCall{ID: call.ID, Name: call.Name, Args: args})
	}
	if usage := resp.UsageMetadata; usage != nil {
		out.Usage = map[string]int{
			"prompt_tokens":     int(usage.PromptTokenCount),
			"completion_tokens": int(usage.CandidatesTokenCount),
			"total_tokens":      int(usage.TotalTokenCount),
		}
	}
	return out
}
