package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"bitunix-bot/internal/cfg"
	"bitunix-bot/internal/exchange/binaryx"
	"bitunix-bot/internal/metrics"
	"bitunix-bot/internal/orchestrator"
	"bitunix-bot/internal/position"
	"bitunix-bot/internal/quant/spotlag"
	"bitunix-bot/internal/safeguard"
	"bitunix-bot/internal/storage"
	"bitunix-bot/internal/strategy"
	"bitunix-bot/internal/windowexpiry"
	"bitunix-bot/internal/windowid"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

// usage: bitrader <start|reconcile-once|admin-query>
func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, "usage: bitrader <start|reconcile-once|admin-query>")
		os.Exit(1)
	}

	switch os.Args[1] {
	case "start":
		runStart(os.Args[2:])
	case "reconcile-once":
		runReconcileOnce(os.Args[2:])
	case "admin-query":
		runAdminQuery(os.Args[2:])
	default:
		fmt.Fprintf(os.Stderr, "unknown subcommand %q\n", os.Args[1])
		os.Exit(1)
	}
}

// currentWindowID buckets now down to the window boundary and formats the
// canonical window_id for symbol, the way a 15m window always starts on a
// 15-minute-aligned UTC clock face.
func currentWindowID(symbol string, windowDurationMs int64, now time.Time) string {
	now = now.UTC()
	duration := time.Duration(windowDurationMs) * time.Millisecond
	if duration <= 0 {
		duration = 15 * time.Minute
	}
	boundary := now.Truncate(duration)
	label := fmt.Sprintf("%dm", int64(duration/time.Minute))
	return windowid.Format(strings.ToLower(symbol), label, boundary)
}

func windowIDsFor(symbols []string, windowDurationMs int64, now time.Time) []string {
	ids := make([]string, 0, len(symbols))
	for _, s := range symbols {
		ids = append(ids, currentWindowID(s, windowDurationMs, now))
	}
	return ids
}

type deps struct {
	store      *storage.Store
	positions  *position.Manager
	safeguards *safeguard.Safeguard
	windowExp  *windowexpiry.Evaluator
	exchange   *binaryx.Client
	ws         *binaryx.WS
	metrics    *metrics.Metrics
}

func buildDeps(c cfg.Settings) (*deps, error) {
	store, err := storage.New(c.DataPath)
	if err != nil {
		return nil, fmt.Errorf("storage init: %w", err)
	}

	positions := position.New(store, c.PositionLimits())
	safeguards := safeguard.New(c.SafeguardConfig(), store)

	we, err := windowexpiry.New(c.WindowExpiryConfig())
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("window expiry config: %w", err)
	}

	client := binaryx.NewREST(c.Key, c.Secret, c.BaseURL, c.RESTTimeout)
	ws := binaryx.NewWS(c.WsURL)
	m := metrics.New()

	return &deps{
		store: store, positions: positions, safeguards: safeguards,
		windowExp: we, exchange: client, ws: ws, metrics: m,
	}, nil
}

// buildEngine assembles the strategy roster every subcommand that touches
// the tick loop needs: the three signal-generating strategies plus the
// purely WindowAware expiry notifier.
func buildEngine(onExpire func(windowID string, now time.Time)) *strategy.Engine {
	strategies := []strategy.Strategy{
		&strategy.MomentumStrategy{Threshold: 0.001, Size: 1.0},
		&strategy.MeanReversionStrategy{Threshold: 0.001, Size: 1.0},
		&strategy.SpotLagStrategy{
			Analyzer:       spotlag.New(20),
			Lookback:       20,
			MinSpotMovePct: 0.0005,
			LagThreshold:   0.0003,
			Size:           1.0,
		},
		strategy.NewWindowExpiryStrategy(onExpire),
	}
	return strategy.NewEngine(strategies, func(name string, err error) {
		log.Warn().Err(err).Str("strategy", name).Msg("strategy error")
	})
}

func runStart(args []string) {
	fs := flag.NewFlagSet("start", flag.ExitOnError)
	fs.Parse(args)

	c, err := cfg.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("config load failed")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	d, err := buildDeps(c)
	if err != nil {
		log.Fatal().Err(err).Msg("dependency wiring failed")
	}
	defer d.store.Close()

	engine := buildEngine(func(windowID string, now time.Time) {
		log.Info().Str("windowId", windowID).Msg("window expiry strategy notified of window end")
	})

	orc := orchestrator.New(c, d.positions, d.safeguards, engine, d.windowExp, d.exchange, d.ws, d.metrics)

	if err := orc.InitializeFromPositions(); err != nil {
		log.Fatal().Err(err).Msg("safeguard seed from open positions failed")
	}

	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		server := &http.Server{Addr: fmt.Sprintf(":%d", c.MetricsPort), Handler: mux}
		go func() {
			<-ctx.Done()
			server.Shutdown(context.Background())
		}()
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("metrics server failed")
		}
	}()

	windowIDs := windowIDsFor(c.Symbols, c.WindowDurationMs, time.Now())
	if err := orc.Run(ctx, windowIDs); err != nil && err != context.Canceled {
		log.Error().Err(err).Msg("orchestrator run ended")
	}
}

func runReconcileOnce(args []string) {
	fs := flag.NewFlagSet("reconcile-once", flag.ExitOnError)
	fs.Parse(args)

	c, err := cfg.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("config load failed")
	}

	d, err := buildDeps(c)
	if err != nil {
		log.Fatal().Err(err).Msg("dependency wiring failed")
	}
	defer d.store.Close()

	engine := buildEngine(func(string, time.Time) {})
	orc := orchestrator.New(c, d.positions, d.safeguards, engine, d.windowExp, d.exchange, d.ws, d.metrics)
	orc.ReconcileOnce(time.Now())
}

func runAdminQuery(args []string) {
	fs := flag.NewFlagSet("admin-query", flag.ExitOnError)
	mode := fs.String("mode", "open", "query mode: open|all")
	fs.Parse(args)

	c, err := cfg.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("config load failed")
	}

	store, err := storage.New(c.DataPath)
	if err != nil {
		log.Fatal().Err(err).Msg("storage init failed")
	}
	defer store.Close()

	positions := position.New(store, c.PositionLimits())

	var list []position.Position
	switch *mode {
	case "open":
		list, err = positions.GetPositions()
	case "all":
		for _, m := range []position.Mode{position.Live, position.Paper, position.DryRun} {
			batch, err2 := store.ListPositions(m)
			if err2 != nil {
				log.Fatal().Err(err2).Msg("query failed")
			}
			list = append(list, batch...)
		}
	default:
		log.Fatal().Str("mode", *mode).Msg("unknown admin-query mode")
	}
	if err != nil {
		log.Fatal().Err(err).Msg("query failed")
	}

	for _, p := range list {
		log.Info().Int64("id", p.ID).Str("market", p.Market).Str("windowId", p.WindowID).
			Str("side", string(p.Side)).Str("state", string(p.LifecycleState)).
			Float64("entryPrice", p.EntryPrice).Float64("size", p.Size).Msg("position")
	}
}
