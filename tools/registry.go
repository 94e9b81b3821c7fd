package tools

import (
	"time"

	"go.uber.org/zap"

	"github.com/lexcodex/wayforward/framework"
)

// Options configures the default capability set.
type Options struct {
	Search         SearchProvider
	SearchInterval time.Duration
	SearchBurst    int
	MaxResults     int
	HTTPTimeout    time.Duration
	PageCeiling    int
	Estimator      MarketEstimator
	Logger         *zap.Logger
}

func (o Options) withDefaults() Options {
	if o.HTTPTimeout <= 0 {
		o.HTTPTimeout = 30 * time.Second
	}
	if o.Search == nil {
		o.Search = NewDuckDuckGoProvider(o.HTTPTimeout)
	}
	if o.SearchBurst <= 0 {
		o.SearchBurst = 1
	}
	if o.PageCeiling <= 0 {
		o.PageCeiling = DefaultPageCeiling
	}
	if o.Estimator == nil {
		o.Estimator = NewFixedEstimator()
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	return o
}

// ResearchTools returns web_search and fetch_page.
func ResearchTools(opts Options) []framework.Tool {
	opts = opts.withDefaults()
	search := NewWebSearchTool(opts.Search, opts.SearchInterval, opts.SearchBurst)
	search.Logger = opts.Logger.Named("web_search")
	if opts.MaxResults > 0 {
		search.MaxResults = opts.MaxResults
	}
	fetch := NewFetchPageTool(opts.HTTPTimeout, opts.PageCeiling)
	fetch.Logger = opts.Logger.Named("fetch_page")
	return []framework.Tool{search, fetch}
}

// MarketTools returns estimate_market_size.
func MarketTools(opts Options) []framework.Tool {
	opts = opts.withDefaults()
	return []framework.Tool{&MarketSizeTool{Estimator: opts.Estimator}}
}

// NewRegistry registers tools into a fresh registry.
func NewRegistry(tools ...framework.Tool) (*framework.ToolRegistry, error) {
	reg := framework.NewToolRegistry()
	for _, tool := range tools {
		if err := reg.Register(tool); err != nil {
			return nil, err
		}
	}
	return reg, nil
}
