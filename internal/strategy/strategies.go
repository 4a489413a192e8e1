package strategy

import (
	"time"

	"bitunix-bot/internal/position"
	"bitunix-bot/internal/quant/regime"
	"bitunix-bot/internal/quant/spotlag"
)

// MomentumStrategy goes long when the market is trending (or strongly
// trending) up and the option looks cheap relative to fair value, short on
// the mirrored condition. It sits out thin-liquidity or flat regimes; the
// volatility tier is not checked.
type MomentumStrategy struct {
	Threshold float64 // minimum fairValueDelta magnitude to act on
	Size      float64
}

func (m *MomentumStrategy) Name() string { return "momentum" }

func (m *MomentumStrategy) OnTick(tick Tick, open *position.Position, ctx *Context) (Signal, error) {
	if open != nil {
		return Signal{}, nil
	}
	if ctx.Regime.Liquidity == regime.LiquidityThin {
		return Signal{}, nil
	}

	delta := fairValueDelta(ctx.FairValue, tick.OptionPrice)

	trending := ctx.Regime.Trend == regime.TrendTrending || ctx.Regime.Trend == regime.TrendStrongTrend
	switch {
	case trending && ctx.Regime.Direction == regime.DirUp && delta > m.Threshold:
		return Signal{Side: Long, Size: m.Size, Reason: "uptrend, option cheap vs fair value", Confidence: delta}, nil
	case trending && ctx.Regime.Direction == regime.DirDown && delta < -m.Threshold:
		return Signal{Side: Short, Size: m.Size, Reason: "downtrend, option rich vs fair value", Confidence: -delta}, nil
	default:
		return Signal{}, nil
	}
}

// MeanReversionStrategy fades extreme fair-value dislocations in a flat,
// non-high-volatility regime — the opposite read of the same
// fairValueDelta signal MomentumStrategy trades with the trend.
type MeanReversionStrategy struct {
	Threshold float64
	Size      float64
}

func (r *MeanReversionStrategy) Name() string { return "mean_reversion" }

func (r *MeanReversionStrategy) OnTick(tick Tick, open *position.Position, ctx *Context) (Signal, error) {
	if open != nil {
		return Signal{}, nil
	}
	if ctx.Regime.Trend != regime.TrendRanging || ctx.Regime.Volatility == regime.VolHigh {
		return Signal{}, nil
	}

	delta := fairValueDelta(ctx.FairValue, tick.OptionPrice)
	switch {
	case delta > r.Threshold:
		return Signal{Side: Long, Size: r.Size, Reason: "flat regime, option underpriced vs fair value", Confidence: delta}, nil
	case delta < -r.Threshold:
		return Signal{Side: Short, Size: r.Size, Reason: "flat regime, option overpriced vs fair value", Confidence: -delta}, nil
	default:
		return Signal{}, nil
	}
}

// SpotLagStrategy trades the gap between a spot move and a slower-to-react
// option price, using internal/quant/spotlag's lag detector directly.
type SpotLagStrategy struct {
	Analyzer       *spotlag.Analyzer
	Lookback       int
	MinSpotMovePct float64
	LagThreshold   float64
	Size           float64
}

func (s *SpotLagStrategy) Name() string { return "spot_lag" }

func (s *SpotLagStrategy) OnTick(tick Tick, open *position.Position, ctx *Context) (Signal, error) {
	s.Analyzer.Add(spotlag.Tick{Time: tick.Time, SpotPrice: tick.SpotPrice, OptionPrice: tick.OptionPrice})

	if open != nil {
		return Signal{}, nil
	}

	ev := s.Analyzer.Detect(s.Lookback, s.MinSpotMovePct, s.LagThreshold)
	if ev == nil {
		return Signal{}, nil
	}

	side := Long
	if ev.SpotMovePct < 0 {
		side = Short
	}
	return Signal{
		Side:       side,
		Size:       s.Size,
		Reason:     "option lagging a spot move",
		Confidence: 1 - ev.LagRatio,
	}, nil
}

// WindowExpiryStrategy invokes its onExpire callback when a window resolves
// rather than proposing entries; OnTick always returns Flat and the real
// behavior lives in OnWindowEnd, making this the one strategy that is
// purely WindowAware-driven.
type WindowExpiryStrategy struct {
	onExpire func(windowID string, now time.Time)
}

// NewWindowExpiryStrategy builds a WindowExpiryStrategy that invokes onExpire
// when a window it was tracking resolves.
func NewWindowExpiryStrategy(onExpire func(windowID string, now time.Time)) *WindowExpiryStrategy {
	return &WindowExpiryStrategy{onExpire: onExpire}
}

func (w *WindowExpiryStrategy) Name() string { return "window_expiry" }

func (w *WindowExpiryStrategy) OnTick(tick Tick, open *position.Position, ctx *Context) (Signal, error) {
	return Signal{}, nil
}

func (w *WindowExpiryStrategy) OnWindowStart(windowID string, now time.Time) {}

func (w *WindowExpiryStrategy) OnWindowEnd(windowID string, now time.Time) {
	if w.onExpire != nil {
		w.onExpire(windowID, now)
	}
}
