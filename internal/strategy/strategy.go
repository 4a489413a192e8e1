// Package strategy defines the Strategy contract and its four concrete
// implementations. The interface and its dispatch loop mirror
// a simpler strategy dispatch loop — an ordered slice of named
// strategies, each given the current tick and asked to propose a signal,
// with a failing strategy logged and skipped rather than aborting the
// others.
package strategy

import (
	"time"

	"bitunix-bot/internal/position"
	"bitunix-bot/internal/quant/regime"
	"bitunix-bot/internal/quant/volatility"
)

// Side is the proposed position direction.
type Side string

const (
	Long  Side = "LONG"
	Short Side = "SHORT"
	Flat  Side = ""
)

// Tick is the market observation strategies react to.
type Tick struct {
	Time        time.Time
	Market      string
	WindowID    string
	SpotPrice   float64
	OptionPrice float64
	Depth       float64
}

// Signal is a strategy's proposed action for the current tick. Side==Flat
// means "no action this tick".
type Signal struct {
	Side       Side
	Size       float64
	Reason     string
	Confidence float64
}

// Context bundles the shared read-only quant state a strategy may consult.
// Not every strategy uses every field.
type Context struct {
	Volatility *volatility.Estimator
	Regime     regime.Classification
	FairValue  float64
}

// Strategy is the contract every trading strategy implements. open is the
// strategy's own currently open position for tick's market and window, or
// nil if it holds none there — a strategy that already has a position open
// reads open to decide whether to hold rather than propose a second entry,
// but must not mutate either argument.
type Strategy interface {
	Name() string
	OnTick(tick Tick, open *position.Position, ctx *Context) (Signal, error)
}

// WindowAware is implemented by strategies that need to react to window
// boundaries directly rather than only per-tick. Checked with a type
// assertion at dispatch time, the same optional-interface pattern a
// security-manager hook would use.
type WindowAware interface {
	OnWindowStart(windowID string, now time.Time)
	OnWindowEnd(windowID string, now time.Time)
}

// Engine dispatches each tick to every registered strategy in order,
// logging and skipping one that errors rather than aborting the rest.
type Engine struct {
	strategies []Strategy
	onError    func(name string, err error)
}

// NewEngine builds an Engine over strategies, in dispatch order.
func NewEngine(strategies []Strategy, onError func(name string, err error)) *Engine {
	return &Engine{strategies: strategies, onError: onError}
}

// Dispatch runs every strategy against tick and returns the signals that
// proposed an action (Side != Flat), in strategy order. openByStrategy maps
// a strategy's Name() to its own currently open position for this tick's
// market and window, if any; a strategy with no entry there is passed nil.
func (e *Engine) Dispatch(tick Tick, ctx *Context, openByStrategy map[string]*position.Position) []NamedSignal {
	var out []NamedSignal
	for _, s := range e.strategies {
		sig, err := s.OnTick(tick, openByStrategy[s.Name()], ctx)
		if err != nil {
			if e.onError != nil {
				e.onError(s.Name(), err)
			}
			continue
		}
		if sig.Side != Flat {
			out = append(out, NamedSignal{Strategy: s.Name(), Signal: sig})
		}
	}
	return out
}

// BroadcastWindowStart notifies every WindowAware strategy of a new window.
func (e *Engine) BroadcastWindowStart(windowID string, now time.Time) {
	for _, s := range e.strategies {
		if wa, ok := s.(WindowAware); ok {
			wa.OnWindowStart(windowID, now)
		}
	}
}

// BroadcastWindowEnd notifies every WindowAware strategy of a window's
// resolution.
func (e *Engine) BroadcastWindowEnd(windowID string, now time.Time) {
	for _, s := range e.strategies {
		if wa, ok := s.(WindowAware); ok {
			wa.OnWindowEnd(windowID, now)
		}
	}
}

// NamedSignal pairs a Signal with the strategy that proposed it.
type NamedSignal struct {
	Strategy string
	Signal   Signal
}

// fairValueDelta is a small shared helper: how far the market's observed
// option price sits from the quant core's fair value, signed so positive
// means the option looks cheap (underpriced relative to fair value).
func fairValueDelta(fairValue, marketPrice float64) float64 {
	return fairValue - marketPrice
}
