package agents

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/lexcodex/wayforward/agents/react"
	"github.com/lexcodex/wayforward/framework"
	"github.com/lexcodex/wayforward/internal/metrics"
	"github.com/lexcodex/wayforward/tools"
)

// Registered worker names. The coordinator prompt addresses workers by these.
const (
	ResearchWorkerName = "web_search_agent"
	MarketWorkerName   = "market_estimate_agent"
)

// ErrUnknownWorker is returned when a delegation names no registered worker.
var ErrUnknownWorker = errors.New("unknown worker")

// Worker answers one delegated task with text.
type Worker interface {
	Name() string
	Description() string
	Delegate(ctx context.Context, taskName, description string) (string, error)
}

// Dependencies carries everything needed to build the agents of one run.
// Search and Estimator default to the DuckDuckGo provider and the fixed
// estimator.
type Dependencies struct {
	Model     framework.LanguageModel
	Config    *Config
	Telemetry framework.Telemetry
	Metrics   *metrics.Metrics
	Logger    *zap.Logger
	Search    tools.SearchProvider
	Estimator tools.MarketEstimator
}

func (d Dependencies) config() *Config {
	if d.Config == nil {
		return DefaultConfig()
	}
	return d.Config
}

func (d Dependencies) logger() *zap.Logger {
	if d.Logger == nil {
		return zap.NewNop()
	}
	return d.Logger
}

func (d Dependencies) toolOptions() tools.Options {
	cfg := d.config()
	estimator := d.Estimator
	if estimator == nil {
		estimator = tools.FixedEstimator{Value: cfg.Tools.MarketEstimate}
	}
	return tools.Options{
		Search:         d.Search,
		SearchInterval: cfg.Tools.SearchInterval.Std(),
		SearchBurst:    cfg.Tools.SearchBurst,
		MaxResults:     cfg.Tools.MaxResults,
		HTTPTimeout:    cfg.Tools.HTTPTimeout.Std(),
		PageCeiling:    cfg.Tools.PageCeiling,
		Estimator:      estimator,
		Logger:         d.logger(),
	}
}

func (d Dependencies) workerOptions(maxSteps int) react.Options {
	cfg := d.config()
	return react.Options{
		MaxSteps: maxSteps,
		LLM: framework.LLMOptions{
			Model:       cfg.Model.Name,
			Temperature: cfg.Model.Temperature,
			MaxTokens:   cfg.Model.MaxTokens,
		},
		NativeToolCalls: cfg.Model.NativeToolCalls,
		Telemetry:       d.Telemetry,
		Metrics:         d.Metrics,
		Logger:          d.logger(),
	}
}

// NewResearchWorker builds web_search_agent over web_search and fetch_page.
func NewResearchWorker(d Dependencies) (*react.Agent, error) {
	registry, err := tools.NewRegistry(tools.ResearchTools(d.toolOptions())...)
	if err != nil {
		return nil, err
	}
	opts := d.workerOptions(d.config().Research.MaxSteps)
	opts.Logger = opts.Logger.Named(ResearchWorkerName)
	return react.New(ResearchWorkerName,
		"Answers one research question using web search and page fetches, returning a concise finding.",
		d.Model, registry, opts), nil
}

// NewMarketWorker builds market_estimate_agent over estimate_market_size.
func NewMarketWorker(d Dependencies) (*react.Agent, error) {
	registry, err := tools.NewRegistry(tools.MarketTools(d.toolOptions())...)
	if err != nil {
		return nil, err
	}
	opts := d.workerOptions(d.config().Market.MaxSteps)
	opts.Logger = opts.Logger.Named(MarketWorkerName)
	return react.New(MarketWorkerName,
		"Produces a single numeric market-size estimate for the idea.",
		d.Model, registry, opts), nil
}

// NewWorkers builds the standard worker set for one run.
func NewWorkers(d Dependencies) ([]Worker, error) {
	research, err := NewResearchWorker(d)
	if err != nil {
		return nil, err
	}
	market, err := NewMarketWorker(d)
	if err != nil {
		return nil, err
	}
	return []Worker{research, market}, nil
}
