// Package orchestrator wires the tick loop: it consumes the exchange's
// quote stream, updates the quant core (volatility, regime, fair value),
// dispatches to the strategy engine, runs proposed entries through the
// Entry Safeguard, drives the Position Manager's exit-trigger chain, and
// settles windows at expiry. It plays the same "single loop owns the
// mutable per-tick state, everything downstream gets a read-only
// snapshot" role a single tick-handling function plays in a simpler
// pipeline, generalized here into the multi-stage pipeline a
// binary-option window lifecycle needs.
package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"bitunix-bot/internal/cfg"
	"bitunix-bot/internal/exchange/binaryx"
	"bitunix-bot/internal/lifecycle"
	"bitunix-bot/internal/metrics"
	"bitunix-bot/internal/position"
	"bitunix-bot/internal/quant/fairvalue"
	"bitunix-bot/internal/quant/regime"
	"bitunix-bot/internal/quant/volatility"
	"bitunix-bot/internal/safeguard"
	"bitunix-bot/internal/strategy"
	"bitunix-bot/internal/windowexpiry"

	"github.com/rs/zerolog/log"
)

// OrderPlacer is the exchange write surface Orchestrator needs.
type OrderPlacer interface {
	PlaceOrder(o binaryx.OrderReq) (binaryx.OrderResult, error)
}

// BalanceReader is the exchange read surface Reconcile needs, matching
// binaryx.Client.GetBalance's actual (Balance, error) signature rather
// than position.ExchangeClient's narrower (float64, error) — balanceAdapter
// bridges the two.
type BalanceReader interface {
	GetBalance(tokenID string) (binaryx.Balance, error)
}

// ExchangeClient is the full exchange surface the orchestrator depends on,
// satisfied directly by *binaryx.Client.
type ExchangeClient interface {
	OrderPlacer
	BalanceReader
}

// TickStreamer is the quote-stream surface, satisfied by *binaryx.WS.
type TickStreamer interface {
	Stream(ctx context.Context, windowIDs []string, ticks chan<- binaryx.Tick, errs chan<- error) error
}

// balanceAdapter satisfies position.ExchangeClient by reading
// Balance.Available off the richer binaryx shape, the one place the
// signature mismatch between the two packages' notion of "a balance" is
// resolved.
type balanceAdapter struct {
	client BalanceReader
}

func (b balanceAdapter) GetBalance(tokenID string) (float64, error) {
	bal, err := b.client.GetBalance(tokenID)
	if err != nil {
		return 0, err
	}
	return bal.Available, nil
}

// windowTrack is the per-window state the tick loop needs beyond what a
// single Tick carries: the strike (the spot price observed when the
// window was first seen, binary settlement's reference point) and the
// most recent spot price, used both for the settlement resolution and as
// regime.Classify's slope lookback.
type windowTrack struct {
	strike       float64
	lastSpot     float64
	priorSpot    float64
	settled      bool
}

// Orchestrator owns the tick loop and every background goroutine that
// runs alongside it (stale-reservation sweep, exchange reconciliation).
// There is exactly one tick-loop goroutine; mu guards the per-tick quant
// maps (vol, windows) on lookup and insertion.
type Orchestrator struct {
	cfg          cfg.Settings
	positions    *position.Manager
	safeguards   *safeguard.Safeguard
	engine       *strategy.Engine
	windowExpiry *windowexpiry.Evaluator
	exitModules  lifecycle.Modules
	exchange     ExchangeClient
	ws           TickStreamer
	metrics      *metrics.Metrics
	mode         position.Mode

	mu      sync.Mutex
	vol     map[string]*volatility.Estimator
	windows map[string]*windowTrack
	regimeTh regime.Thresholds
}

// New builds an Orchestrator from its fully-constructed dependencies;
// cmd/bitrader wires cfg.Load, storage.New, position.New, safeguard.New,
// strategy.NewEngine, windowexpiry.New, and binaryx.NewREST/NewWS, then
// passes them here.
func New(
	c cfg.Settings,
	positions *position.Manager,
	safeguards *safeguard.Safeguard,
	engine *strategy.Engine,
	windowExpiry *windowexpiry.Evaluator,
	exchange ExchangeClient,
	ws TickStreamer,
	m *metrics.Metrics,
) *Orchestrator {
	mode := position.Mode(c.TradingMode)
	if mode == "" {
		mode = position.DryRun
	}

	return &Orchestrator{
		cfg:          c,
		positions:    positions,
		safeguards:   safeguards,
		engine:       engine,
		windowExpiry: windowExpiry,
		exitModules:  c.ExitModules(),
		exchange:     exchange,
		ws:           ws,
		metrics:      m,
		mode:         mode,
		vol:          make(map[string]*volatility.Estimator),
		windows:      make(map[string]*windowTrack),
		regimeTh:     regime.DefaultThresholds(),
	}
}

// InitializeFromPositions seeds the Entry Safeguard's rate limiter from
// whatever is already OPEN in storage, so a restart does not let a burst
// of entries through before each symbol's cooldown has a chance to replay.
// Must run once at startup, before the tick loop's first CanEnter call.
func (o *Orchestrator) InitializeFromPositions() error {
	open, err := o.positions.GetPositions()
	if err != nil {
		return fmt.Errorf("load open positions: %w", err)
	}

	summaries := make([]safeguard.PositionSummary, 0, len(open))
	for _, p := range open {
		summaries = append(summaries, safeguard.PositionSummary{
			ID: p.ID, Market: p.Market, WindowID: p.WindowID,
			StrategyID: p.StrategyID, OpenedAt: p.OpenedAt,
		})
	}
	return o.safeguards.InitializeFromPositions(summaries)
}

// Run subscribes to windowIDs over the exchange's tick stream and drives
// the tick loop until ctx is canceled, alongside the stale-reservation
// sweep and exchange-reconciliation background loops.
func (o *Orchestrator) Run(ctx context.Context, windowIDs []string) error {
	ticks := make(chan binaryx.Tick, 1000)
	wsErrs := make(chan error, 100)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := o.ws.Stream(ctx, windowIDs, ticks, wsErrs); err != nil && err != context.Canceled {
			log.Error().Err(err).Msg("tick stream ended")
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		o.runSweepLoop(ctx)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		o.runReconcileLoop(ctx)
	}()

	for {
		select {
		case <-ctx.Done():
			wg.Wait()
			return ctx.Err()
		case err := <-wsErrs:
			log.Warn().Err(err).Msg("tick stream error")
		case t := <-ticks:
			o.handleTick(t)
		}
	}
}

func (o *Orchestrator) runSweepLoop(ctx context.Context) {
	interval := time.Duration(o.cfg.SweepIntervalMs) * time.Millisecond
	if interval <= 0 {
		interval = 10 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			cleared, err := o.safeguards.SweepStale(now)
			if err != nil {
				log.Warn().Err(err).Msg("reservation sweep failed")
				continue
			}
			if cleared > 0 && o.metrics != nil {
				o.metrics.ReservationsSwept.Add(float64(cleared))
			}
		}
	}
}

func (o *Orchestrator) runReconcileLoop(ctx context.Context) {
	interval := time.Duration(o.cfg.ReconcileIntervalMs) * time.Millisecond
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			o.reconcileOnce(now)
		}
	}
}

// reconcileOnce runs one Reconcile pass and logs every divergence found;
// shared between the background loop and the reconcile-once CLI path.
func (o *Orchestrator) reconcileOnce(now time.Time) {
	result, err := o.positions.Reconcile(balanceAdapter{client: o.exchange}, now)
	if err != nil {
		log.Warn().Err(err).Msg("reconciliation failed")
		return
	}
	if o.metrics != nil && len(result.Divergences) > 0 {
		o.metrics.ReconciliationDivergence.Add(float64(len(result.Divergences)))
	}
	for _, d := range result.Divergences {
		log.Warn().Int64("positionId", d.PositionID).Str("kind", d.Kind).
			Float64("localSize", d.LocalSize).Float64("exchangeBalance", d.ExchangeBalance).
			Msg("reconciliation divergence")
	}
	log.Info().Int("verified", result.Verified).Int("divergences", len(result.Divergences)).
		Bool("success", result.Success).Msg("reconciliation pass complete")
}

// ReconcileOnce runs a single reconciliation pass immediately, for the
// reconcile-once CLI subcommand.
func (o *Orchestrator) ReconcileOnce(now time.Time) {
	o.reconcileOnce(now)
}
