package lifecycle

import (
	"time"

	"github.com/rs/zerolog/log"
)

// PositionView is the minimal read-only projection of a position the exit
// evaluator needs. internal/position builds one of these per row rather
// than handing the evaluator its full row type, keeping this package a
// leaf with no dependency back on internal/position.
type PositionView struct {
	ID             int64
	Side           string // "LONG" or "SHORT"
	EntryPrice     float64
	Size           float64
	LifecycleState State
	HighWaterMark  float64 // 0 if unset
	OpenedAt       time.Time
}

// WindowData is the timing context passed to the expiry check.
type WindowData struct {
	TimeRemainingMs int64
	IsResolved      bool
}

// TriggerKind names which check fired.
type TriggerKind string

const (
	StopLoss   TriggerKind = "STOP_LOSS"
	TakeProfit TriggerKind = "TAKE_PROFIT"
	WindowExpiry TriggerKind = "EXPIRY"
)

// ExitTrigger is the result of a fired check: which one, and which
// lifecycle state it drives the position to next.
type ExitTrigger struct {
	Trigger        TriggerKind
	LifecycleTarget State
	Reason         string
}

// Modules bundles the stop-loss and take-profit checks the evaluator
// consults, in priority order; the window-expiry check that follows them
// reads WindowData instead. Each module returns (triggered, reason, error); an error is logged and
// swallowed — evaluation proceeds to the next check rather than aborting,
// rather than treating an errored check as if it had triggered.
type Modules struct {
	StopLoss   func(p PositionView, currentPrice float64) (bool, string, error)
	TakeProfit func(p PositionView, currentPrice float64) (bool, string, error)
}

// EvaluateExit runs the priority-ordered exit decision. Only MONITORING
// positions are evaluated; everything else (including locked states)
// returns (nil, nil). A higher-priority *triggered* result short-circuits
// lower-priority checks; a check *erroring* does not — it is logged and
// the next check still runs.
func EvaluateExit(p PositionView, currentPrice float64, modules Modules, window WindowData) (*ExitTrigger, error) {
	if p.LifecycleState != Monitoring {
		return nil, nil
	}

	if modules.StopLoss != nil {
		triggered, reason, err := safeCall(modules.StopLoss, p, currentPrice)
		if err != nil {
			log.Warn().Err(err).Int64("positionId", p.ID).Msg("stop-loss check failed, continuing to next check")
		} else if triggered {
			return &ExitTrigger{Trigger: StopLoss, LifecycleTarget: StopTriggered, Reason: reason}, nil
		}
	}

	if modules.TakeProfit != nil {
		triggered, reason, err := safeCall(modules.TakeProfit, p, currentPrice)
		if err != nil {
			log.Warn().Err(err).Int64("positionId", p.ID).Msg("take-profit check failed, continuing to next check")
		} else if triggered {
			return &ExitTrigger{Trigger: TakeProfit, LifecycleTarget: TPTriggered, Reason: reason}, nil
		}
	}

	if window.IsResolved {
		return &ExitTrigger{Trigger: WindowExpiry, LifecycleTarget: Expiry, Reason: "window resolved"}, nil
	}

	return nil, nil
}

func safeCall(fn func(PositionView, float64) (bool, string, error), p PositionView, price float64) (triggered bool, reason string, err error) {
	return fn(p, price)
}

// StopLossPct is a ready-to-use stop-loss module: trigger when currentPrice
// has moved against the position by more than pct of entry price.
func StopLossPct(pct float64) func(PositionView, float64) (bool, string, error) {
	return func(p PositionView, currentPrice float64) (bool, string, error) {
		if pct <= 0 {
			return false, "", nil
		}
		var adverse float64
		switch p.Side {
		case "LONG":
			adverse = (p.EntryPrice - currentPrice) / p.EntryPrice
		case "SHORT":
			adverse = (currentPrice - p.EntryPrice) / p.EntryPrice
		}
		if adverse >= pct {
			return true, "stop-loss threshold reached", nil
		}
		return false, "", nil
	}
}

// TakeProfitPct is a ready-to-use take-profit module, symmetric to
// StopLossPct.
func TakeProfitPct(pct float64) func(PositionView, float64) (bool, string, error) {
	return func(p PositionView, currentPrice float64) (bool, string, error) {
		if pct <= 0 {
			return false, "", nil
		}
		var favorable float64
		switch p.Side {
		case "LONG":
			favorable = (currentPrice - p.EntryPrice) / p.EntryPrice
		case "SHORT":
			favorable = (p.EntryPrice - currentPrice) / p.EntryPrice
		}
		if favorable >= pct {
			return true, "take-profit threshold reached", nil
		}
		return false, "", nil
	}
}

// TrailingStopPct triggers once price retraces pct from the position's
// high-water mark (HighWaterMark must be maintained by the caller, e.g.
// position.Manager.UpdatePrice, via a move-then-check idiom).
func TrailingStopPct(pct float64) func(PositionView, float64) (bool, string, error) {
	return func(p PositionView, currentPrice float64) (bool, string, error) {
		if pct <= 0 || p.HighWaterMark <= 0 {
			return false, "", nil
		}
		var retrace float64
		switch p.Side {
		case "LONG":
			retrace = (p.HighWaterMark - currentPrice) / p.HighWaterMark
		case "SHORT":
			retrace = (currentPrice - p.HighWaterMark) / p.HighWaterMark
		}
		if retrace >= pct {
			return true, "trailing stop retrace reached", nil
		}
		return false, "", nil
	}
}
