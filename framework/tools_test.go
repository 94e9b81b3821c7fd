package framework

import (
	"context"
	"errors"
	"strings"
	"testing"
)

type echoTool struct {
	name string
	err  error
}

func (t echoTool) Name() string        { return t.name }
func (t echoTool) Description() string { return "echoes its value" }
func (t echoTool) Category() string    { return "test" }
func (t echoTool) Parameters() []ToolParameter {
	return []ToolParameter{{Name: "value", Type: "string", Description: "text to echo", Required: true}}
}
func (t echoTool) Execute(ctx context.Context, state *Context, args map[string]interface{}) (*ToolResult, error) {
	if t.err != nil {
		return nil, t.err
	}
	return &ToolResult{Success: true, Data: map[string]interface{}{"echo": args["value"]}}, nil
}

func TestToolRegistryRejectsDuplicates(t *testing.T) {
	reg := NewToolRegistry()
	if err := reg.Register(echoTool{name: "echo"}); err != nil {
		t.Fatal(err)
	}
	if err := reg.Register(echoTool{name: "echo"}); err == nil {
		t.Fatal("expected duplicate registration error")
	}
}

func TestToolRegistryInvokeRecoversFailures(t *testing.T) {
	reg := NewToolRegistry()
	_ = reg.Register(echoTool{name: "echo"})
	_ = reg.Register(echoTool{name: "broken", err: errors.New("network down")})

	res := reg.Invoke(context.Background(), NewContext(), ToolCall{Name: "echo", Args: map[string]interface{}{"value": "hi"}})
	if !res.Success || res.Data["echo"] != "hi" {
		t.Fatalf("unexpected result %+v", res)
	}

	res = reg.Invoke(context.Background(), NewContext(), ToolCall{Name: "broken"})
	if res.Success || !strings.Contains(res.Error, "network down") {
		t.Fatalf("expected failed observation, got %+v", res)
	}

	res = reg.Invoke(context.Background(), NewContext(), ToolCall{Name: "rm_rf"})
	if res.Success || !strings.Contains(res.Error, ErrToolNotFound.Error()) {
		t.Fatalf("expected not-found observation, got %+v", res)
	}
}

func TestToolRegistryAllIsSorted(t *testing.T) {
	reg := NewToolRegistry()
	_ = reg.Register(echoTool{name: "zeta"})
	_ = reg.Register(echoTool{name: "alpha"})
	if got := strings.Join(reg.Names(), ","); got != "alpha,zeta" {
		t.Fatalf("unexpected order %s", got)
	}
}

func TestParseToolCallsFromText(t *testing.T) {
	fenced := "I will search.\n```json\n{\"tool\": \"web_search\", \"arguments\": {\"query\": \"solar\"}}\n```"
	calls := ParseToolCallsFromText(fenced)
	if len(calls) != 1 || calls[0].Name != "web_search" || calls[0].Args["query"] != "solar" {
		t.Fatalf("unexpected calls %+v", calls)
	}

	bare := `{"name": "estimate_market_size", "args": {}}`
	calls = ParseToolCallsFromText(bare)
	if len(calls) != 1 || calls[0].Name != "estimate_market_size" {
		t.Fatalf("unexpected calls %+v", calls)
	}

	if calls := ParseToolCallsFromText(`{"tool": "none"}`); len(calls) != 0 {
		t.Fatalf("expected no calls, got %+v", calls)
	}
	if calls := ParseToolCallsFromText("just prose"); len(calls) != 0 {
		t.Fatalf("expected no calls, got %+v", calls)
	}
}

func TestRenderToolsToPrompt(t *testing.T) {
	prompt := RenderToolsToPrompt([]Tool{echoTool{name: "echo"}})
	if !strings.Contains(prompt, "## echo") || !strings.Contains(prompt, "value (string, required)") {
		t.Fatalf("unexpected prompt:\n%s", prompt)
	}
	if RenderToolsToPrompt(nil) != "No tools available." {
		t.Fatal("expected empty marker")
	}
}
