package main

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/lexcodex/wayforward/agents"
	"github.com/lexcodex/wayforward/framework"
	"github.com/lexcodex/wayforward/idea"
	"github.com/lexcodex/wayforward/internal/metrics"
	"github.com/lexcodex/wayforward/llm"
	"github.com/lexcodex/wayforward/persistence"
)

// runtime holds the wired pipeline for one CLI invocation.
type runtime struct {
	cfg      *agents.Config
	logger   *zap.Logger
	registry *prometheus.Registry
	metrics  *metrics.Metrics
	model    framework.LanguageModel
	store    *persistence.RunStore
	analyzer *idea.Analyzer
	improver *idea.Improver
}

type runtimeOptions struct {
	// extra receives agent events alongside the log sink.
	extra framework.Telemetry
	// store enables run history when the config names a path.
	store bool
}

func newRuntime(ctx context.Context, cfg *agents.Config, opts runtimeOptions) (*runtime, error) {
	logger, err := buildLogger(cfg.Logging)
	if err != nil {
		return nil, err
	}
	rt := &runtime{cfg: cfg, logger: logger, registry: prometheus.NewRegistry()}
	rt.registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	rt.metrics = metrics.New(rt.registry)

	var telemetry framework.Telemetry = framework.ZapTelemetry{Logger: logger.Named("events")}
	if opts.extra != nil {
		telemetry = framework.MultiplexTelemetry{Sinks: []framework.Telemetry{telemetry, opts.extra}}
	}

	inner, err := llm.New(ctx, llm.ProviderConfig{
		Provider: cfg.Model.Provider,
		Model:    cfg.Model.Name,
		APIKey:   apiKey(cfg.Model.Provider),
		BaseURL:  cfg.Model.BaseURL,
		Timeout:  cfg.Model.Timeout.Std(),
		Logger:   logger,
	})
	if err != nil {
		_ = logger.Sync()
		return nil, err
	}
	rt.model = llm.NewInstrumentedModel(inner, telemetry, rt.metrics, cfg.Logging.LLMDebug)

	var analyzerOpts []idea.Option
	if opts.store && cfg.Store.Path != "" {
		store, err := openStore(cfg)
		if err != nil {
			_ = logger.Sync()
			return nil, fmt.Errorf("open run store: %w", err)
		}
		rt.store = store
		analyzerOpts = append(analyzerOpts, idea.WithRunStore(store))
	}

	rt.analyzer = idea.NewAnalyzer(agents.Dependencies{
		Model:     rt.model,
		Config:    cfg,
		Telemetry: telemetry,
		Metrics:   rt.metrics,
		Logger:    logger,
	}, analyzerOpts...)
	rt.improver = idea.NewImprover(rt.model, cfg, logger)
	return rt, nil
}

func (rt *runtime) Close() {
	if rt.store != nil {
		if err := rt.store.Close(); err != nil {
			rt.logger.Warn("close run store", zap.Error(err))
		}
	}
	_ = rt.logger.Sync()
}

// buildLogger returns a development logger for console output and a
// production JSON logger otherwise.
func buildLogger(cfg agents.LoggingConfig) (*zap.Logger, error) {
	level, err := zap.ParseAtomicLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("logging.level: %w", err)
	}
	var zc zap.Config
	if cfg.Format == "json" {
		zc = zap.NewProductionConfig()
	} else {
		zc = zap.NewDevelopmentConfig()
		zc.DisableStacktrace = true
	}
	zc.Level = level
	zc.OutputPaths = []string{"stderr"}
	zc.ErrorOutputPaths = []string{"stderr"}
	return zc.Build()
}

// openStore opens the run history without building a model.
func openStore(cfg *agents.Config) (*persistence.RunStore, error) {
	if cfg.Store.Path == "" {
		return nil, errors.New("run history is disabled (store.path is empty)")
	}
	path := cfg.Store.Path
	if !filepath.IsAbs(path) && path != ":memory:" {
		path = filepath.Join(flagWorkspace, path)
	}
	return persistence.NewRunStore(path)
}
