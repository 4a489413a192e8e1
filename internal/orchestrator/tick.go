package orchestrator

import (
	"strconv"
	"time"

	"bitunix-bot/internal/exchange/binaryx"
	"bitunix-bot/internal/lifecycle"
	"bitunix-bot/internal/position"
	"bitunix-bot/internal/quant/fairvalue"
	"bitunix-bot/internal/quant/regime"
	"bitunix-bot/internal/quant/volatility"
	"bitunix-bot/internal/strategy"
	"bitunix-bot/internal/windowexpiry"

	"github.com/rs/zerolog/log"
)

// periodsPerYear annualizes a per-second volatility sample the way a
// tick-resolution binary-option feed is sampled: seconds per year.
const periodsPerYear = 365.0 * 24 * 3600

// handleTick is the tick loop's single entry point: update quant state,
// dispatch strategies, act on signals, then drive every open position in
// this window through the exit-trigger chain.
func (o *Orchestrator) handleTick(t binaryx.Tick) {
	o.safeguards.ResetTickEntries()

	vol := o.volFor(t.Market)
	vol.Add(t.SpotPrice)

	track := o.trackFor(t.WindowID, t.SpotPrice)

	timing := o.windowExpiry.CheckExpiry(t.WindowID, t.Ts)

	slope := regime.NormalizedSlope(track.lastSpot, track.strike)
	if !track.settled {
		track.priorSpot = track.lastSpot
		track.lastSpot = t.SpotPrice
	}
	depth := t.BidVol + t.AskVol
	classification := regime.Classify(o.regimeTh, vol.BestEstimate(periodsPerYear, 0, 0), slope, depth)

	tYears := 0.0
	if timing.Parsed.IsValid && timing.TimeRemainingMs > 0 {
		tYears = float64(timing.TimeRemainingMs) / (1000 * periodsPerYear)
	}
	fairProb := fairvalue.FairProbabilityUp(t.SpotPrice, track.strike, vol.BestEstimate(periodsPerYear, 0, 0), tYears, 0)

	sCtx := strategy.Context{Volatility: vol, Regime: classification, FairValue: fairProb}
	sTick := strategy.Tick{
		Time: t.Ts, Market: t.Market, WindowID: t.WindowID,
		SpotPrice: t.SpotPrice, OptionPrice: t.OptionPrice, Depth: depth,
	}

	openByStrategy, err := o.openPositionsByStrategy(t.Market, t.WindowID)
	if err != nil {
		log.Warn().Err(err).Msg("failed to list open positions for strategy dispatch")
	}

	for _, sig := range o.engine.Dispatch(sTick, &sCtx, openByStrategy) {
		o.handleSignal(t, sig)
	}

	o.driveExits(t, timing)

	if timing.IsResolved && !track.settled {
		o.settleWindow(t, track)
	}
}

// openPositionsByStrategy indexes this market/window's currently open
// positions by StrategyID, so Dispatch can hand each strategy its own
// open position (or nil) without strategies seeing each other's state.
func (o *Orchestrator) openPositionsByStrategy(market, windowID string) (map[string]*position.Position, error) {
	open, err := o.positions.GetPositions()
	if err != nil {
		return nil, err
	}
	byStrategy := make(map[string]*position.Position)
	for i := range open {
		p := &open[i]
		if p.Market == market && p.WindowID == windowID {
			byStrategy[p.StrategyID] = p
		}
	}
	return byStrategy, nil
}

func (o *Orchestrator) volFor(market string) *volatility.Estimator {
	o.mu.Lock()
	defer o.mu.Unlock()
	v, ok := o.vol[market]
	if !ok {
		v = volatility.New(time.Minute, 30, 0.94)
		o.vol[market] = v
	}
	return v
}

// trackFor returns the windowTrack for windowID, creating it (and
// broadcasting OnWindowStart) on first sight, with spot as the strike.
func (o *Orchestrator) trackFor(windowID string, spot float64) *windowTrack {
	o.mu.Lock()
	tr, ok := o.windows[windowID]
	if !ok {
		tr = &windowTrack{strike: spot, lastSpot: spot}
		o.windows[windowID] = tr
		o.mu.Unlock()
		o.engine.BroadcastWindowStart(windowID, time.Now())
		return tr
	}
	o.mu.Unlock()
	return tr
}

// tokenID names the tradable contract for one side of a window: binary
// markets quote an UP and a DOWN token per window independently, unlike a
// futures market's single instrument, so the uniqueness key needs the side
// folded in alongside window and market.
func tokenID(windowID string, side position.Side) string {
	return windowID + ":" + string(side)
}

func toPositionSide(s strategy.Side) position.Side {
	if s == strategy.Short {
		return position.Short
	}
	return position.Long
}

// handleSignal runs one proposed entry through the Entry Safeguard,
// places the order (or simulates the fill outside LIVE mode), and opens
// the position on success — releasing the reservation on any failure
// along the way.
func (o *Orchestrator) handleSignal(t binaryx.Tick, sig strategy.NamedSignal) {
	now := t.Ts
	gate, err := o.safeguards.CanEnter(t.WindowID, sig.Strategy, t.Market, now)
	if err != nil {
		log.Warn().Err(err).Str("strategy", sig.Strategy).Msg("entry gate check failed")
		return
	}
	if o.metrics != nil {
		o.metrics.ReservationsAttempted.Inc()
	}
	if !gate.Allowed {
		if o.metrics != nil {
			o.metrics.ReservationsRejected.Inc()
		}
		log.Debug().Str("strategy", sig.Strategy).Str("reason", gate.Reason).Msg("entry gated")
		return
	}

	if err := o.safeguards.Reserve(t.WindowID, sig.Strategy, t.Market, now); err != nil {
		log.Warn().Err(err).Str("strategy", sig.Strategy).Msg("reservation failed")
		return
	}

	side := toPositionSide(sig.Signal.Side)
	token := tokenID(t.WindowID, side)
	entryPrice := t.OptionPrice

	if o.mode == position.Live {
		res, err := o.exchange.PlaceOrder(binaryx.OrderReq{
			Market: t.Market, WindowID: t.WindowID,
			Side: string(binaryx.Buy), TradeSide: string(binaryx.Open),
			Size: strconv.FormatFloat(sig.Signal.Size, 'f', -1, 64),
		})
		if err != nil {
			log.Warn().Err(err).Str("strategy", sig.Strategy).Msg("order placement failed")
			o.releaseReservation(t.WindowID, sig.Strategy)
			return
		}
		entryPrice = res.FillPrice
	}

	p, err := o.positions.AddPosition(position.AddParams{
		Market: t.Market, TokenID: token, WindowID: t.WindowID, StrategyID: sig.Strategy,
		Side: side, EntryPrice: entryPrice, Size: sig.Signal.Size, Mode: o.mode,
	}, now)
	if err != nil {
		log.Warn().Err(err).Str("strategy", sig.Strategy).Msg("position open failed")
		o.releaseReservation(t.WindowID, sig.Strategy)
		return
	}

	if err := o.safeguards.Confirm(t.WindowID, sig.Strategy, p.ID, now); err != nil {
		log.Warn().Err(err).Int64("positionId", p.ID).Msg("reservation confirm failed")
	} else if o.metrics != nil {
		o.metrics.ReservationsConfirmed.Inc()
	}
}

func (o *Orchestrator) releaseReservation(windowID, strategyID string) {
	if err := o.safeguards.Release(windowID, strategyID); err != nil {
		log.Warn().Err(err).Str("windowId", windowID).Str("strategyId", strategyID).Msg("reservation release failed")
	}
}

// driveExits walks every currently open position for this tick's market
// and window through EvaluateExit/ApplyExit/Advance, closing whichever one
// reaches STOP_TRIGGERED/TP_TRIGGERED. A position that reaches EXPIRY
// instead advances to SETTLEMENT and waits for settleWindow.
func (o *Orchestrator) driveExits(t binaryx.Tick, timing windowexpiry.Timing) {
	open, err := o.positions.GetPositions()
	if err != nil {
		log.Warn().Err(err).Msg("failed to list open positions for exit evaluation")
		return
	}

	for _, p := range open {
		if p.Market != t.Market || p.WindowID != t.WindowID {
			continue
		}

		if _, err := o.positions.UpdatePrice(p.ID, t.OptionPrice); err != nil {
			log.Warn().Err(err).Int64("positionId", p.ID).Msg("price update failed")
			continue
		}

		trig, err := o.positions.EvaluateExit(p.ID, t.OptionPrice, o.exitModules, timing)
		if err != nil {
			log.Warn().Err(err).Int64("positionId", p.ID).Msg("exit evaluation failed")
			continue
		}
		if trig == nil {
			continue
		}
		if o.metrics != nil {
			o.metrics.ExitTriggersTotal.Inc()
		}
		if err := o.positions.ApplyExit(p.ID, trig); err != nil {
			log.Warn().Err(err).Int64("positionId", p.ID).Msg("apply exit failed")
			continue
		}
		if err := o.positions.Advance(p.ID); err != nil {
			log.Warn().Err(err).Int64("positionId", p.ID).Msg("advance failed")
			continue
		}

		if trig.Trigger == lifecycle.StopLoss || trig.Trigger == lifecycle.TakeProfit {
			if _, err := o.positions.ClosePosition(p.ID, position.CloseOptions{}, t.Ts); err != nil {
				log.Warn().Err(err).Int64("positionId", p.ID).Msg("close on trigger failed")
			}
		}
	}
}

// settleWindow resolves a window once it has expired: binaryx exposes no
// endpoint for an exchange-reported resolution price, so the resolution is
// computed locally as the binary comparison of the window's strike (the
// spot observed when the window was first seen) against the last known
// spot price — R=1 ("up") when the close is at or above the strike, R=0
// otherwise. Every position still open against this window is driven
// through Settle with that resolution, then the strategy engine is told
// the window ended.
func (o *Orchestrator) settleWindow(t binaryx.Tick, track *windowTrack) {
	track.settled = true

	resolution := 0.0
	if track.lastSpot >= track.strike {
		resolution = 1.0
	}

	open, err := o.positions.GetPositions()
	if err != nil {
		log.Warn().Err(err).Msg("failed to list open positions for settlement")
	} else {
		for _, p := range open {
			if p.Market != t.Market || p.WindowID != t.WindowID {
				continue
			}
			if p.LifecycleState != lifecycle.Settlement {
				continue
			}
			_, settlement, err := o.positions.Settle(p.ID, resolution, t.Ts)
			if err != nil {
				log.Warn().Err(err).Int64("positionId", p.ID).Msg("settlement failed")
				continue
			}
			if o.metrics != nil {
				o.metrics.SettlementsTotal.Inc()
				o.metrics.SettlementPnL.Observe(settlement.PnL)
			}
			log.Info().Int64("positionId", p.ID).Str("outcome", string(settlement.Outcome)).
				Float64("pnl", settlement.PnL).Msg("position settled")
		}
	}

	o.engine.BroadcastWindowEnd(t.WindowID, t.Ts)
}
