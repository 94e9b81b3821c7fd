package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lexcodex/wayforward/agents"
	"github.com/lexcodex/wayforward/framework"
	"github.com/lexcodex/wayforward/idea"
	"github.com/lexcodex/wayforward/persistence"
)

func runRoot(t *testing.T, args ...string) (string, error) {
	t.Helper()
	flagWorkspace, flagConfig, flagProvider, flagModel, flagVerbose = "", "", "", "", false
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestConfigInitGetSet(t *testing.T) {
	ws := t.TempDir()
	out, err := runRoot(t, "--workspace", ws, "config", "init")
	require.NoError(t, err)
	path := agents.DefaultConfigPath(ws)
	assert.Contains(t, out, path)
	_, err = os.Stat(path)
	require.NoError(t, err)

	_, err = runRoot(t, "--workspace", ws, "config", "init")
	assert.Error(t, err)

	out, err = runRoot(t, "--workspace", ws, "config", "get", "coordinator.max_steps")
	require.NoError(t, err)
	assert.Equal(t, "25", strings.TrimSpace(out))

	_, err = runRoot(t, "--workspace", ws, "config", "set", "coordinator.max_steps", "12")
	require.NoError(t, err)
	cfg, err := agents.LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 12, cfg.Coordinator.MaxSteps)
	assert.Equal(t, 5*time.Minute, cfg.Coordinator.Timeout.Std())

	_, err = runRoot(t, "--workspace", ws, "config", "set", "coordinator.timeout", "soon")
	assert.Error(t, err)
}

func TestConfigShowAppliesOverrides(t *testing.T) {
	ws := t.TempDir()
	out, err := runRoot(t, "--workspace", ws, "--provider", "ollama", "--model", "llama3", "config", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "provider: ollama")
	assert.Contains(t, out, "name: llama3")
}

func TestDottedConfigHelpers(t *testing.T) {
	data := map[string]interface{}{}
	require.NoError(t, setConfigValue(data, "model.temperature", parseValue("0.5")))
	require.NoError(t, setConfigValue(data, "model.native_tool_calls", parseValue("true")))
	v, ok := getConfigValue(data, "model.temperature")
	require.True(t, ok)
	assert.Equal(t, 0.5, v)
	v, _ = getConfigValue(data, "model.native_tool_calls")
	assert.Equal(t, true, v)
	_, ok = getConfigValue(data, "model.missing")
	assert.False(t, ok)
	assert.Error(t, setConfigValue(data, "model..name", "x"))
	assert.Equal(t, "[a, 1]", prettyValue([]interface{}{"a", 1}))
}

func TestReadDescription(t *testing.T) {
	got, err := readDescription(strings.NewReader("ignored"), "", []string{"solar", "kiosks"})
	require.NoError(t, err)
	assert.Equal(t, "solar kiosks", got)

	got, err = readDescription(strings.NewReader("  from stdin \n"), "-", nil)
	require.NoError(t, err)
	assert.Equal(t, "from stdin", got)

	path := filepath.Join(t.TempDir(), "idea.txt")
	require.NoError(t, os.WriteFile(path, []byte("from file"), 0o644))
	got, err = readDescription(nil, path, nil)
	require.NoError(t, err)
	assert.Equal(t, "from file", got)

	_, err = readDescription(strings.NewReader("   "), "", nil)
	assert.Error(t, err)
}

func TestRenderDraft(t *testing.T) {
	d := idea.Normalize(idea.Draft{
		"title":           "Solar kiosks",
		"technologies":    "solar, iot",
		"market_estimate": 1200,
	})
	out := renderDraft(d)
	assert.Contains(t, out, "Solar kiosks")
	assert.Contains(t, out, "Problem Statement")
	assert.Contains(t, out, "• solar")
	assert.Contains(t, out, "$1200")
}

func TestRenderRuns(t *testing.T) {
	assert.Contains(t, renderRuns(nil, nil), "no runs recorded")
	out := renderRuns([]persistence.Run{{
		ID:        "0123456789abcdef",
		Outcome:   "degraded",
		Strategy:  "brace_fragment",
		Degraded:  true,
		Draft:     map[string]any{"title": "Kiosks"},
		CreatedAt: time.Now(),
	}}, &persistence.Stats{Total: 1, Degraded: 1})
	assert.Contains(t, out, "01234567")
	assert.NotContains(t, out, "89abcdef")
	assert.Contains(t, out, "Kiosks")
	assert.Contains(t, out, "1 runs, 1 degraded")
}

func TestProgressModelTracksEvents(t *testing.T) {
	m := newProgressModel(context.Background(), nil, nil)
	m.record(framework.Event{Type: framework.EventDelegation, Metadata: map[string]interface{}{"worker": "web_search_agent", "field": "competition"}})
	assert.Equal(t, "delegating to web_search_agent", m.status)
	for i := 0; i < 6; i++ {
		m.record(framework.Event{Type: framework.EventToolCall, Message: "web_search"})
	}
	assert.Len(t, m.activity, activityLines)
	assert.Contains(t, m.View(), "Analyzing idea")

	res := &idea.Result{RunID: "r"}
	_, cmd := m.Update(analysisDoneMsg{Result: res})
	require.NotNil(t, cmd)
	assert.Same(t, res, m.result)
	assert.Empty(t, m.View())
	assert.Error(t, m.ctx.Err())
}

func TestEventChannelDropsWhenFull(t *testing.T) {
	ch := make(eventChannel, 1)
	ch.Emit(framework.Event{Type: framework.EventDelegation})
	ch.Emit(framework.Event{Type: framework.EventDelegation})
	ch.Emit(framework.Event{Type: framework.EventNodeStart})
	assert.Len(t, ch, 1)
}

func TestBuildLogger(t *testing.T) {
	logger, err := buildLogger(agents.LoggingConfig{Level: "debug", Format: "json"})
	require.NoError(t, err)
	assert.True(t, logger.Core().Enabled(-1))

	_, err = buildLogger(agents.LoggingConfig{Level: "loud"})
	assert.Error(t, err)
}
