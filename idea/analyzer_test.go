package idea

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/lexcodex/wayforward/agents"
	"github.com/lexcodex/wayforward/framework"
	"github.com/lexcodex/wayforward/internal/metrics"
	"github.com/lexcodex/wayforward/persistence"
	"github.com/lexcodex/wayforward/tools"
)

type runnerFunc func(ctx context.Context, instruction string) (*agents.Outcome, error)

func (f runnerFunc) Run(ctx context.Context, instruction string) (*agents.Outcome, error) {
	return f(ctx, instruction)
}

func factoryFor(r Runner) RunnerFactory {
	return func(agents.Dependencies) (Runner, error) { return r, nil }
}

type memorySink struct {
	mu   sync.Mutex
	runs []persistence.Run
	err  error
}

func (s *memorySink) SaveRun(ctx context.Context, run persistence.Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs = append(s.runs, run)
	return s.err
}

func TestAnalyzeRecordOutcome(t *testing.T) {
	var gotInstruction string
	var gotRunID string
	runner := runnerFunc(func(ctx context.Context, instruction string) (*agents.Outcome, error) {
		gotInstruction = instruction
		tc, _ := framework.TaskContextFrom(ctx)
		gotRunID = tc.RunID
		return &agents.Outcome{
			Output:      agents.RecordOutput(map[string]any{"title": "Solar kiosks", "market_estimate": "$1,200", "technologies": "solar, iot"}),
			Steps:       6,
			Delegations: 2,
		}, nil
	})
	sink := &memorySink{}
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	analyzer := NewAnalyzer(agents.Dependencies{Metrics: m, Logger: zaptest.NewLogger(t)}, WithRunnerFactory(factoryFor(runner)), WithRunStore(sink))

	res := analyzer.AnalyzeDetailed(context.Background(), "Solar powered phone charging kiosks")
	assertWellFormed(t, res.Draft)
	assert.Equal(t, "Solar kiosks", res.Draft["title"])
	assert.Equal(t, int64(1200), res.Draft[MarketEstimateField])
	assert.Equal(t, []string{"solar", "iot"}, res.Draft["technologies"])
	assert.Equal(t, StrategyRecord, res.Strategy)
	assert.Equal(t, OutcomeOK, res.Outcome())
	assert.Equal(t, res.RunID, gotRunID)
	assert.True(t, strings.HasSuffix(gotInstruction, "Here is the idea description: Solar powered phone charging kiosks"))

	require.Len(t, sink.runs, 1)
	assert.Equal(t, res.RunID, sink.runs[0].ID)
	assert.Equal(t, "record", sink.runs[0].Strategy)
	assert.Equal(t, 6, sink.runs[0].Steps)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.AnalysesTotal.WithLabelValues(OutcomeOK)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RecoveryStrategy.WithLabelValues("record")))
}

func TestAnalyzeKeepsPartialOutputOnError(t *testing.T) {
	runner := runnerFunc(func(ctx context.Context, instruction string) (*agents.Outcome, error) {
		return &agents.Outcome{Output: agents.TextOutput(`Final answer: {'title': 'Partial'}`), Steps: 3}, context.DeadlineExceeded
	})
	analyzer := NewAnalyzer(agents.Dependencies{}, WithRunnerFactory(factoryFor(runner)))

	res := analyzer.AnalyzeDetailed(context.Background(), "idea")
	assert.Equal(t, "Partial", res.Draft["title"])
	assert.True(t, res.Degraded)
	assert.Equal(t, OutcomeDegraded, res.Outcome())
	assert.ErrorIs(t, res.Err, context.DeadlineExceeded)
}

func TestAnalyzeNeverFails(t *testing.T) {
	inputs := []string{
		"",
		"   \n\t",
		"xyz completely unparseable <<>> agent babble",
		strings.Repeat("long idea ", 2000),
		`{"title": "injected"} } { ' " `,
		"'''\"\"\"{{{}}}",
	}
	runners := map[string]Runner{
		"echo": runnerFunc(func(ctx context.Context, instruction string) (*agents.Outcome, error) {
			return &agents.Outcome{Output: agents.TextOutput(instruction)}, nil
		}),
		"error": runnerFunc(func(ctx context.Context, instruction string) (*agents.Outcome, error) {
			return nil, errors.New("provider down")
		}),
		"panic": runnerFunc(func(ctx context.Context, instruction string) (*agents.Outcome, error) {
			panic("boom")
		}),
	}
	for name, runner := range runners {
		analyzer := NewAnalyzer(agents.Dependencies{}, WithRunnerFactory(factoryFor(runner)))
		for _, in := range inputs {
			d := analyzer.Analyze(context.Background(), in)
			assertWellFormed(t, d)
			if t.Failed() {
				t.Fatalf("runner %s, input %.40q", name, in)
			}
		}
	}
}

func TestAnalyzeFallbackScenario(t *testing.T) {
	desc := "xyz completely unparseable <<>> agent babble"
	runner := runnerFunc(func(ctx context.Context, instruction string) (*agents.Outcome, error) {
		return &agents.Outcome{Output: agents.TextOutput(desc)}, nil
	})
	res := NewAnalyzer(agents.Dependencies{}, WithRunnerFactory(factoryFor(runner))).AnalyzeDetailed(context.Background(), desc)
	assert.Equal(t, StrategyFallback, res.Strategy)
	assert.Equal(t, OutcomeFallback, res.Outcome())
	assert.Equal(t, Normalize(Draft{"title": FallbackTitle, "problem_statement": desc}), res.Draft)
}

func TestAnalyzePanicIsRecovered(t *testing.T) {
	runner := runnerFunc(func(ctx context.Context, instruction string) (*agents.Outcome, error) {
		var m map[string]int
		m["x"] = 1
		return nil, nil
	})
	sink := &memorySink{}
	desc := strings.Repeat("p", 150)
	res := NewAnalyzer(agents.Dependencies{}, WithRunnerFactory(factoryFor(runner)), WithRunStore(sink)).AnalyzeDetailed(context.Background(), desc)
	assert.Equal(t, StrategyPanic, res.Strategy)
	assert.Equal(t, OutcomePanic, res.Outcome())
	assert.Equal(t, strings.Repeat("p", 100)+"...", res.Draft["problem_statement"])
	require.Len(t, sink.runs, 1)
	assert.Contains(t, sink.runs[0].Error, "panic")
}

func TestAnalyzeBlankDescriptionSkipsRunner(t *testing.T) {
	called := false
	runner := runnerFunc(func(ctx context.Context, instruction string) (*agents.Outcome, error) {
		called = true
		return nil, nil
	})
	res := NewAnalyzer(agents.Dependencies{}, WithRunnerFactory(factoryFor(runner))).AnalyzeDetailed(context.Background(), "  ")
	assert.False(t, called)
	assert.Equal(t, StrategyEmpty, res.Strategy)
	assertWellFormed(t, res.Draft)
}

func TestAnalyzeFactoryErrorFallsBack(t *testing.T) {
	factory := func(agents.Dependencies) (Runner, error) { return nil, errors.New("no model") }
	res := NewAnalyzer(agents.Dependencies{}, WithRunnerFactory(factory)).AnalyzeDetailed(context.Background(), "idea")
	assert.Equal(t, StrategyFallback, res.Strategy)
	assert.Equal(t, "idea", res.Draft["problem_statement"])
}

func TestAnalyzeStoreFailureDoesNotAffectDraft(t *testing.T) {
	runner := runnerFunc(func(ctx context.Context, instruction string) (*agents.Outcome, error) {
		return &agents.Outcome{Output: agents.TextOutput(`{"title":"Stored"}`)}, nil
	})
	sink := &memorySink{err: errors.New("disk full")}
	d := NewAnalyzer(agents.Dependencies{}, WithRunnerFactory(factoryFor(runner)), WithRunStore(sink)).Analyze(context.Background(), "idea")
	assert.Equal(t, "Stored", d["title"])
}

// pipelineModel scripts the coordinator and both workers, telling them apart
// by their system prompts.
type pipelineModel struct {
	mu    sync.Mutex
	turns map[string]int
}

func (p *pipelineModel) Generate(ctx context.Context, prompt string, options *framework.LLMOptions) (*framework.LLMResponse, error) {
	return nil, errors.New("unused")
}

func (p *pipelineModel) ChatWithTools(ctx context.Context, messages []framework.Message, tools []framework.Tool, options *framework.LLMOptions) (*framework.LLMResponse, error) {
	return p.Chat(ctx, messages, options)
}

func (p *pipelineModel) Chat(ctx context.Context, messages []framework.Message, options *framework.LLMOptions) (*framework.LLMResponse, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.turns == nil {
		p.turns = map[string]int{}
	}
	system := messages[0].Content
	var role string
	switch {
	case strings.Contains(system, "You are "+agents.MarketWorkerName):
		role = "market"
	case strings.Contains(system, "You are "+agents.ResearchWorkerName):
		role = "research"
	default:
		role = "coordinator"
	}
	p.turns[role]++
	turn := p.turns[role]
	var text string
	switch role {
	case "market":
		if turn%2 == 1 {
			text = `{"thought":"estimate","tool":"estimate_market_size","arguments":{}}`
		} else {
			text = `{"final_answer":"The market estimate is 69 dollars."}`
		}
	case "research":
		if turn%2 == 1 {
			text = `{"tool":"web_search","arguments":{"query":"solar kiosk competitors"}}`
		} else {
			text = "Final answer: ChargeSpot, goCharge"
		}
	default:
		switch turn {
		case 1:
			text = `{"thought":"1. competition 2. market"}`
		case 2:
			text = `{"worker":"web_search_agent","task":"Who competes with solar phone charging kiosks?","field":"competition"}`
		case 3:
			text = `{"worker":"market_estimate_agent","task":"Estimate the market size","field":"market_estimate"}`
		default:
			text = "Here you go.\nFinal answer: {'title': 'Solar Kiosks', 'competition': 'ChargeSpot, goCharge', 'market_estimate': '$69', 'sources': 'chargespot.example, gocharge.example'}"
		}
	}
	return &framework.LLMResponse{Text: text}, nil
}

type fixedSearch struct{}

func (fixedSearch) Search(ctx context.Context, query string, maxResults int) ([]tools.SearchResult, error) {
	return []tools.SearchResult{{Title: "ChargeSpot", URL: "https://chargespot.example", Snippet: "solar kiosks"}}, nil
}

func TestAnalyzeEndToEndWithCoordinator(t *testing.T) {
	model := &pipelineModel{}
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	analyzer := NewAnalyzer(agents.Dependencies{Model: model, Search: fixedSearch{}, Metrics: m})

	res := analyzer.AnalyzeDetailed(context.Background(), "Solar powered phone charging kiosks for markets")
	require.NoError(t, res.Err)
	assertWellFormed(t, res.Draft)
	assert.Equal(t, "Solar Kiosks", res.Draft["title"])
	assert.Equal(t, int64(69), res.Draft[MarketEstimateField])
	assert.Equal(t, []string{"chargespot.example", "gocharge.example"}, res.Draft["sources"])
	assert.Equal(t, 2, res.Delegations)
	assert.Equal(t, 3, res.Steps)
	assert.False(t, res.Degraded)
	assert.Equal(t, 2, model.turns["research"])
	assert.Equal(t, 2, model.turns["market"])
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ToolCalls.WithLabelValues("web_search", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Delegations.WithLabelValues(agents.MarketWorkerName, "success")))
}

func TestAnalyzeCoordinatorCeilingStillValid(t *testing.T) {
	model := &stuckModel{}
	analyzer := NewAnalyzer(agents.Dependencies{Model: model, Search: fixedSearch{}})
	res := analyzer.AnalyzeDetailed(context.Background(), "an idea that never resolves")
	assertWellFormed(t, res.Draft)
	assert.Equal(t, 25, res.Steps)
	assert.True(t, res.Degraded)
	assert.Equal(t, StrategyFallback, res.Strategy)
	assert.Equal(t, FallbackTitle, res.Draft["title"])
	assert.Equal(t, "an idea that never resolves", res.Draft["problem_statement"])
	assert.NotContains(t, res.Draft, "thought")
}

func TestAnalyzeEndlessDelegationFallsBack(t *testing.T) {
	analyzer := NewAnalyzer(agents.Dependencies{Model: delegatingModel{}, Search: fixedSearch{}})
	res := analyzer.AnalyzeDetailed(context.Background(), "kiosks that keep asking for help")
	assertWellFormed(t, res.Draft)
	assert.True(t, res.Degraded)
	assert.Equal(t, StrategyFallback, res.Strategy)
	assert.Equal(t, FallbackTitle, res.Draft["title"])
	assert.Equal(t, "kiosks that keep asking for help", res.Draft["problem_statement"])
	for _, key := range []string{"thought", "worker", "task", "field"} {
		assert.NotContains(t, res.Draft, key)
	}
}

// delegatingModel always asks a worker that does not exist.
type delegatingModel struct{}

const endlessDelegation = `{"thought":"ask again","worker":"nobody","task":"find competitors","field":"competition"}`

func (delegatingModel) Generate(ctx context.Context, prompt string, options *framework.LLMOptions) (*framework.LLMResponse, error) {
	return &framework.LLMResponse{Text: endlessDelegation}, nil
}

func (delegatingModel) Chat(ctx context.Context, messages []framework.Message, options *framework.LLMOptions) (*framework.LLMResponse, error) {
	return &framework.LLMResponse{Text: endlessDelegation}, nil
}

func (delegatingModel) ChatWithTools(ctx context.Context, messages []framework.Message, tools []framework.Tool, options *framework.LLMOptions) (*framework.LLMResponse, error) {
	return &framework.LLMResponse{Text: endlessDelegation}, nil
}

// stuckModel never delegates and never answers.
type stuckModel struct{}

func (stuckModel) Generate(ctx context.Context, prompt string, options *framework.LLMOptions) (*framework.LLMResponse, error) {
	return &framework.LLMResponse{Text: "..."}, nil
}

func (stuckModel) Chat(ctx context.Context, messages []framework.Message, options *framework.LLMOptions) (*framework.LLMResponse, error) {
	return &framework.LLMResponse{Text: `{"thought":"still considering"}`}, nil
}

func (stuckModel) ChatWithTools(ctx context.Context, messages []framework.Message, tools []framework.Tool, options *framework.LLMOptions) (*framework.LLMResponse, error) {
	return &framework.LLMResponse{Text: `{"thought":"still considering"}`}, nil
}
