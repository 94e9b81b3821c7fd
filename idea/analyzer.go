package idea

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/lexcodex/wayforward/agents"
	"github.com/lexcodex/wayforward/framework"
	"github.com/lexcodex/wayforward/internal/metrics"
	"github.com/lexcodex/wayforward/persistence"
)

// Runner is a coordinator run; *agents.Coordinator satisfies it.
type Runner interface {
	Run(ctx context.Context, instruction string) (*agents.Outcome, error)
}

// RunnerFactory builds a fresh runner, with fresh workers, for one analysis.
type RunnerFactory func(d agents.Dependencies) (Runner, error)

// NewCoordinatorRunner wires the standard research and market workers under
// a coordinator.
func NewCoordinatorRunner(d agents.Dependencies) (Runner, error) {
	workers, err := agents.NewWorkers(d)
	if err != nil {
		return nil, err
	}
	return agents.NewCoordinator(d, workers...)
}

// RunSink records finished analyses. *persistence.RunStore satisfies it.
type RunSink interface {
	SaveRun(ctx context.Context, run persistence.Run) error
}

// Outcome labels for metrics and run history.
const (
	OutcomeOK       = "ok"
	OutcomeDegraded = "degraded"
	OutcomeFallback = "fallback"
	OutcomePanic    = "panic"
)

// Result is a finished analysis with its diagnostics.
type Result struct {
	RunID       string
	Draft       Draft
	Strategy    Strategy
	Steps       int
	Delegations int
	Degraded    bool
	Duration    time.Duration
	Err         error
}

// Outcome classifies the run.
func (r *Result) Outcome() string {
	switch {
	case r.Strategy == StrategyPanic:
		return OutcomePanic
	case r.Strategy == StrategyFallback, r.Strategy == StrategyEmpty:
		return OutcomeFallback
	case r.Degraded:
		return OutcomeDegraded
	default:
		return OutcomeOK
	}
}

// Analyzer is the inbound boundary: description in, draft out, never an error.
type Analyzer struct {
	deps      agents.Dependencies
	newRunner RunnerFactory
	store     RunSink
	logger    *zap.Logger
	metrics   *metrics.Metrics
}

// Option customises an Analyzer.
type Option func(*Analyzer)

// WithRunnerFactory replaces the coordinator wiring.
func WithRunnerFactory(f RunnerFactory) Option {
	return func(a *Analyzer) {
		if f != nil {
			a.newRunner = f
		}
	}
}

// WithRunStore records every analysis in s.
func WithRunStore(s RunSink) Option {
	return func(a *Analyzer) { a.store = s }
}

// NewAnalyzer builds an analyzer; deps are shared by every run but each run
// gets its own agents.
func NewAnalyzer(deps agents.Dependencies, opts ...Option) *Analyzer {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &Analyzer{
		deps:      deps,
		newRunner: NewCoordinatorRunner,
		logger:    logger.Named("analyzer"),
		metrics:   deps.Metrics,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Analyze returns a normalized draft for description.
func (a *Analyzer) Analyze(ctx context.Context, description string) Draft {
	return a.AnalyzeDetailed(ctx, description).Draft
}

// AnalyzeDetailed is Analyze with diagnostics. Draft is always complete.
func (a *Analyzer) AnalyzeDetailed(ctx context.Context, description string) (res *Result) {
	start := time.Now()
	res = &Result{RunID: uuid.NewString()}
	log := a.logger.With(zap.String("run_id", res.RunID))
	defer func() {
		if r := recover(); r != nil {
			log.Error("analysis panicked", zap.Any("panic", r), zap.Stack("stack"))
			res.Draft = Normalize(Fallback(description))
			res.Strategy = StrategyPanic
			res.Degraded = true
			res.Err = fmt.Errorf("panic: %v", r)
		}
		res.Duration = time.Since(start)
		a.finish(ctx, log, description, res)
	}()

	if strings.TrimSpace(description) == "" {
		res.Draft = Normalize(Fallback(description))
		res.Strategy = StrategyEmpty
		res.Degraded = true
		return res
	}

	ctx = framework.WithTaskContext(ctx, framework.TaskContext{
		RunID: res.RunID,
		Agent: "analyzer",
		ID:    res.RunID,
		Type:  framework.TaskTypeAnalysis,
	})
	runner, err := a.newRunner(a.deps)
	if err != nil {
		log.Error("could not build coordinator", zap.Error(err))
		res.Err = err
		res.Draft = Normalize(Fallback(description))
		res.Strategy = StrategyFallback
		res.Degraded = true
		return res
	}

	outcome, err := runner.Run(ctx, FormPrompt(description))
	if err != nil {
		log.Warn("coordinator run ended with error", zap.Error(err))
		res.Err = err
		res.Degraded = true
	}
	var output agents.Output
	if outcome != nil {
		output = outcome.Output
		res.Steps = outcome.Steps
		res.Delegations = outcome.Delegations
		res.Degraded = res.Degraded || outcome.Degraded
	}
	record, strategy := Recover(output, description)
	res.Draft = Normalize(record)
	res.Strategy = strategy
	if strategy == StrategyFallback {
		res.Degraded = true
	}
	return res
}

func (a *Analyzer) finish(ctx context.Context, log *zap.Logger, description string, res *Result) {
	a.metrics.ObserveAnalysis(res.Outcome(), string(res.Strategy), res.Duration)
	log.Info("analysis finished",
		zap.String("outcome", res.Outcome()),
		zap.String("strategy", string(res.Strategy)),
		zap.Int("steps", res.Steps),
		zap.Int("delegations", res.Delegations),
		zap.Duration("duration", res.Duration),
	)
	if a.store == nil {
		return
	}
	run := persistence.Run{
		ID:          res.RunID,
		Description: description,
		Strategy:    string(res.Strategy),
		Outcome:     res.Outcome(),
		Steps:       res.Steps,
		Delegations: res.Delegations,
		Degraded:    res.Degraded,
		Duration:    res.Duration,
		Draft:       res.Draft,
		CreatedAt:   time.Now().UTC(),
	}
	if res.Err != nil {
		run.Error = res.Err.Error()
	}
	saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := a.store.SaveRun(saveCtx, run); err != nil {
		log.Warn("could not record run", zap.Error(err))
	}
}
