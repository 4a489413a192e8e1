// Package windowexpiry computes window timing classification and binary
// settlement P&L. It is the one place that turns a window_id plus "now"
// into is_expiring/is_resolved and turns a resolution price into pnl, the
// same single-responsibility shape internal/cfg uses for config and
// internal/windowid uses for the wire grammar.
package windowexpiry

import (
	"fmt"
	"time"

	"bitunix-bot/internal/windowid"
)

// Config holds the validated timing parameters for the evaluator. Built
// once at startup and held immutable thereafter, like cfg.Settings.
type Config struct {
	WindowDurationMs        int64
	ExpiryWarningThresholdMs int64
	MinTimeRemainingMs      int64
}

// Validate enforces the init-time invariants: violations fail loud rather
// than silently clamping, matching cfg.validateSettings's fail-fast style.
func (c Config) Validate() error {
	if c.WindowDurationMs <= 0 {
		return fmt.Errorf("windowDurationMs must be positive, got %d", c.WindowDurationMs)
	}
	if c.ExpiryWarningThresholdMs < 0 || c.ExpiryWarningThresholdMs >= c.WindowDurationMs {
		return fmt.Errorf("expiryWarningThresholdMs must be in [0, windowDurationMs), got %d", c.ExpiryWarningThresholdMs)
	}
	if c.MinTimeRemainingMs < 0 {
		return fmt.Errorf("minTimeRemainingMs must be >= 0, got %d", c.MinTimeRemainingMs)
	}
	return nil
}

// Evaluator classifies window timing and settlement outcomes against a
// validated Config.
type Evaluator struct {
	cfg Config
}

// New validates cfg and returns an Evaluator, or an error if cfg is
// malformed.
func New(cfg Config) (*Evaluator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Evaluator{cfg: cfg}, nil
}

// Timing describes a window's remaining-time classification at a given
// instant.
type Timing struct {
	WindowID        string
	Parsed          windowid.Parsed
	TimeRemainingMs int64
	IsExpiring      bool
	IsResolved      bool
}

// CheckExpiry parses window_id and classifies it against now. An invalid
// window_id yields a Timing with Parsed.IsValid=false; callers must check
// that before trusting TimeRemainingMs.
func (e *Evaluator) CheckExpiry(windowID string, now time.Time) Timing {
	p := windowid.Parse(windowID)
	if !p.IsValid {
		return Timing{WindowID: windowID, Parsed: p}
	}

	remaining := p.EndTime.Sub(now).Milliseconds()
	return Timing{
		WindowID:        windowID,
		Parsed:          p,
		TimeRemainingMs: remaining,
		IsExpiring:      remaining > 0 && remaining <= e.cfg.ExpiryWarningThresholdMs,
		IsResolved:      remaining <= 0,
	}
}

// EntryGateResult is the outcome of canEnterWindow.
type EntryGateResult struct {
	Allowed bool
	Reason  string
}

// CanEnterWindow reports whether a new entry may be placed against
// window_id given minTimeRemainingMs, never erroring to the caller — an
// invalid window_id instead yields Allowed=false with the parser's error
// as Reason.
func (e *Evaluator) CanEnterWindow(windowID string, now time.Time) EntryGateResult {
	t := e.CheckExpiry(windowID, now)
	if !t.Parsed.IsValid {
		return EntryGateResult{Allowed: false, Reason: t.Parsed.Error}
	}
	if t.TimeRemainingMs < e.cfg.MinTimeRemainingMs {
		return EntryGateResult{
			Allowed: false,
			Reason:  fmt.Sprintf("time_remaining_ms %d below minTimeRemainingMs %d", t.TimeRemainingMs, e.cfg.MinTimeRemainingMs),
		}
	}
	return EntryGateResult{Allowed: true}
}

// Side mirrors position.Side without importing it, to keep this package a
// leaf (internal/position depends on internal/windowexpiry's settlement
// math, not the other way around).
type Side string

const (
	Long  Side = "LONG"
	Short Side = "SHORT"
)

// Outcome is the settlement result for one position.
type Outcome string

const (
	Win      Outcome = "WIN"
	Loss     Outcome = "LOSS"
	NoOutcome Outcome = ""
)

// Settlement is the result of computing settlement P&L for a position.
type Settlement struct {
	Resolved bool
	Outcome  Outcome
	PnL      float64
	PnLPct   float64
}

// ResolutionUnknown signals a window has resolved but the resolution price
// is not yet known; Settle reports outcome=null (Outcome == NoOutcome)
// and pnl=0 in that case.
var ResolutionUnknown = -1.0

// Settle computes binary settlement P&L. R is the resolution price in
// {0,1}; pass ResolutionUnknown when the resolution price has not arrived
// yet but the window has timed out.
func Settle(side Side, size, entry, resolution float64) Settlement {
	if resolution == ResolutionUnknown {
		return Settlement{Resolved: true, Outcome: NoOutcome, PnL: 0, PnLPct: 0}
	}

	r := resolution
	var pnl float64
	var win bool
	switch side {
	case Long:
		win = r == 1
		pnl = size * (r - entry)
	case Short:
		win = r == 0
		pnl = size * (entry - r)
	}

	outcome := Loss
	if win {
		outcome = Win
	}

	costBasis := size * entry
	pnlPct := 0.0
	if costBasis > 0 {
		pnlPct = pnl / costBasis
	}

	return Settlement{Resolved: true, Outcome: outcome, PnL: pnl, PnLPct: pnlPct}
}
