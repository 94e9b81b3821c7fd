package framework

import (
	"encoding/json"
	"strings"
	"sync"
	"testing"
)

func TestContextCountersAndStrings(t *testing.T) {
	ctx := NewContext()
	if got := ctx.GetInt("step"); got != 0 {
		t.Fatalf("expected missing counter to read 0, got %d", got)
	}
	ctx.Increment("step")
	if got := ctx.Increment("step"); got != 2 {
		t.Fatalf("expected step=2, got %d", got)
	}
	ctx.Set("next", "plan")
	if got := ctx.GetString("next"); got != "plan" {
		t.Fatalf("expected next=plan, got %q", got)
	}
	if got := ctx.GetString("missing"); got != "" {
		t.Fatalf("expected empty string for missing key, got %q", got)
	}
	ctx.Set("label", "not-a-number")
	if got := ctx.GetInt("label"); got != 0 {
		t.Fatalf("expected non-int value to read 0, got %d", got)
	}
}

func TestContextIncrementConcurrent(t *testing.T) {
	ctx := NewContext()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ctx.Increment("n")
		}()
	}
	wg.Wait()
	if got := ctx.GetInt("n"); got != 50 {
		t.Fatalf("expected 50 increments, got %d", got)
	}
}

func TestContextHistoryKeepsFirstEntry(t *testing.T) {
	ctx := NewContext()
	ctx.maxHistory = 3
	ctx.AddInteraction("user", "instruction", nil)
	for _, s := range []string{"a", "b", "c", "d"} {
		ctx.AddInteraction("assistant", s, nil)
	}
	history := ctx.History()
	if len(history) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(history))
	}
	if history[0].Content != "instruction" || history[2].Content != "d" {
		t.Fatalf("unexpected history %+v", history)
	}
	last, ok := ctx.LatestInteraction()
	if !ok || last.Content != "d" {
		t.Fatalf("expected latest=d, got %+v", last)
	}
	if !strings.HasPrefix(ctx.Transcript(), "user: instruction\n") {
		t.Fatalf("unexpected transcript %q", ctx.Transcript())
	}
}

func TestContextMarshalJSON(t *testing.T) {
	ctx := NewContext()
	ctx.SetExecutionPhase("reasoning")
	ctx.AddInteraction("user", "hello", nil)
	data, err := json.Marshal(ctx)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	var decoded struct {
		Phase   string        `json:"phase"`
		History []Interaction `json:"history"`
	}
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if decoded.Phase != "reasoning" || len(decoded.History) != 1 {
		t.Fatalf("unexpected payload %s", data)
	}
}
