package tools

import (
	"context"
	"fmt"

	"github.com/lexcodex/wayforward/framework"
)

// MarketEstimator produces a market-size figure. Real estimators (a sizing
// model, a lookup service) plug in here.
type MarketEstimator interface {
	Estimate(ctx context.Context) (int64, error)
}

// FixedEstimator always returns Value. It stands in for a real estimator.
type FixedEstimator struct {
	Value int64
}

// DefaultMarketEstimate is the constant the stub estimator reports.
const DefaultMarketEstimate int64 = 69

// NewFixedEstimator returns the stub estimator.
func NewFixedEstimator() FixedEstimator { return FixedEstimator{Value: DefaultMarketEstimate} }

func (e FixedEstimator) Estimate(ctx context.Context) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	return e.Value, nil
}

// MarketSizeTool exposes a MarketEstimator as estimate_market_size.
type MarketSizeTool struct {
	Estimator MarketEstimator
}

func (t *MarketSizeTool) Name() string { return "estimate_market_size" }
func (t *MarketSizeTool) Description() string {
	return "Estimates the market size for the idea under analysis. Takes no arguments and returns an integer."
}
func (t *MarketSizeTool) Category() string                       { return "market" }
func (t *MarketSizeTool) Parameters() []framework.ToolParameter { return nil }

func (t *MarketSizeTool) Execute(ctx context.Context, state *framework.Context, args map[string]interface{}) (*framework.ToolResult, error) {
	estimator := t.Estimator
	if estimator == nil {
		estimator = NewFixedEstimator()
	}
	value, err := estimator.Estimate(ctx)
	if err != nil {
		return nil, fmt.Errorf("market estimate unavailable: %w", err)
	}
	return &framework.ToolResult{
		Success: true,
		Data:    map[string]interface{}{"market_estimate": value},
	}, nil
}
