// Package safeguard implements the Entry Safeguard: the reserve/confirm/
// release protocol that prevents duplicate and over-rate entries into a
// window without any in-process lock, relying instead on the unique-key
// insert on (window_id, strategy_id) the storage layer enforces — the same
// "let the store reject the race" idiom a guarded state transition uses
// for a single mutex-guarded field, generalized here to a multi-row
// uniqueness constraint.
package safeguard

import (
	"strings"
	"time"

	"bitunix-bot/internal/apperr"

	"github.com/rs/zerolog/log"
)

// Config holds the safeguard's tunables, applied by DefaultConfig rather
// than hardcoded inside the checks.
type Config struct {
	MaxConcurrentPositions    int
	MinEntryIntervalMs        int64
	MaxEntriesPerTick         int
	DuplicateWindowPrevention bool
	ReservationTimeoutMs      int64
}

// DefaultConfig returns the documented out-of-the-box defaults.
func DefaultConfig() Config {
	return Config{
		MaxConcurrentPositions:    8,
		MinEntryIntervalMs:        5000,
		MaxEntriesPerTick:         2,
		DuplicateWindowPrevention: true,
		ReservationTimeoutMs:      30000,
	}
}

// WindowEntry is a reservation row keyed uniquely on (WindowID, StrategyID).
// Symbol is carried separately from StrategyID because the rate limit is a
// per-market throttle, not a per-strategy one — two strategies proposing
// entries into the same symbol within the same window still share one
// cooldown clock, matching the "no more than one entry attempt per symbol
// per interval" wording rather than "per strategy".
type WindowEntry struct {
	WindowID    string
	StrategyID  string
	Symbol      string
	ReservedAt  time.Time
	ConfirmedAt time.Time
	Confirmed   bool
	PositionID  int64 // set once Confirm links a real position
}

// Store is the persistence surface the safeguard needs. InsertEntry must
// enforce the (window_id, strategy_id) uniqueness constraint and return
// apperr.DuplicatePosition when it is violated — that rejection is the
// safeguard's only atomic primitive, no in-process mutex stands in for it.
type Store interface {
	InsertEntry(e WindowEntry) error
	HasEntry(windowID, strategyID string) (bool, error)
	ConfirmEntry(windowID, strategyID string, positionID int64, confirmedAt time.Time) error
	RemoveEntry(windowID, strategyID string) error
	CountOpenPositions() (int, error)
	LastConfirmedEntryTime(symbol string) (time.Time, bool, error)
	StaleReservations(olderThan time.Time) ([]WindowEntry, error)
	// SeedConfirmedEntry records a confirmed entry at boot time, so the rate
	// limiter knows about positions opened before the process' current
	// lifetime without replaying Reserve/Confirm for each one.
	SeedConfirmedEntry(e WindowEntry) error
}

// Safeguard evaluates and records entry attempts. tickEntries counts
// confirmed entries made during the current tick and is reset once per tick
// by the orchestrator via ResetTickEntries — there is exactly one tick loop
// goroutine (per the single-threaded cooperative model) so no lock guards it.
type Safeguard struct {
	cfg         Config
	store       Store
	tickEntries int
}

// New builds a Safeguard against cfg and store.
func New(cfg Config, store Store) *Safeguard {
	return &Safeguard{cfg: cfg, store: store}
}

// normalizeSymbol uppercases a symbol so "btc" and "BTC" share one rate
// limit bucket regardless of caller casing.
func normalizeSymbol(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}

// InitializeFromPositions seeds the rate limiter's per-symbol clock from
// positions that were already open (and thus already confirmed) when the
// process started, so a restart does not reset every symbol's cooldown to
// zero and let a burst of entries through immediately after boot.
func (s *Safeguard) InitializeFromPositions(open []PositionSummary) error {
	for _, p := range open {
		err := s.store.SeedConfirmedEntry(WindowEntry{
			WindowID:    p.WindowID,
			StrategyID:  p.StrategyID,
			Symbol:      normalizeSymbol(p.Market),
			ConfirmedAt: p.OpenedAt,
			Confirmed:   true,
			PositionID:  p.ID,
		})
		if err != nil {
			return apperr.Wrap(apperr.DatabaseError, "seed confirmed entry", err, map[string]any{
				"windowId": p.WindowID, "strategyId": p.StrategyID,
			})
		}
	}
	return nil
}

// PositionSummary is the minimal slice of an open position
// InitializeFromPositions needs, kept independent of internal/position's
// full Position type so this package stays a leaf.
type PositionSummary struct {
	ID         int64
	Market     string
	WindowID   string
	StrategyID string
	OpenedAt   time.Time
}

// ResetTickEntries must be called exactly once at the start of each tick,
// before any CanEnter/Reserve calls for that tick.
func (s *Safeguard) ResetTickEntries() {
	s.tickEntries = 0
}

// GateResult is the outcome of a CanEnter check.
type GateResult struct {
	Allowed bool
	Reason  string
}

// CanEnter first sweeps stale reservations (so a timed-out reservation never
// counts against max_concurrent_positions_reached or
// duplicate_window_entry), then runs the checks in a fixed priority order:
// duplicate_window_entry > rate_limit_exceeded > max_concurrent_positions_reached
// > max_entries_per_tick_reached. Each check is independent of the others'
// outcome; the first failing check wins regardless of whether a later one
// would also fail, so callers can trust Reason to name the binding
// constraint. The rate limit is keyed on symbol, not strategyID: two
// strategies targeting the same market share one cooldown clock.
func (s *Safeguard) CanEnter(windowID, strategyID, symbol string, now time.Time) (GateResult, error) {
	if _, err := s.SweepStale(now); err != nil {
		return GateResult{}, err
	}

	if s.cfg.DuplicateWindowPrevention {
		dup, err := s.hasDuplicate(windowID, strategyID)
		if err != nil {
			return GateResult{}, err
		}
		if dup {
			return GateResult{Allowed: false, Reason: "duplicate_window_entry"}, nil
		}
	}

	if s.cfg.MinEntryIntervalMs > 0 {
		last, ok, err := s.store.LastConfirmedEntryTime(normalizeSymbol(symbol))
		if err != nil {
			return GateResult{}, apperr.Wrap(apperr.DatabaseError, "read last entry time", err, map[string]any{"symbol": symbol})
		}
		if ok && now.Sub(last).Milliseconds() < s.cfg.MinEntryIntervalMs {
			return GateResult{Allowed: false, Reason: "rate_limit_exceeded"}, nil
		}
	}

	if s.cfg.MaxConcurrentPositions > 0 {
		open, err := s.store.CountOpenPositions()
		if err != nil {
			return GateResult{}, apperr.Wrap(apperr.DatabaseError, "count open positions", err, nil)
		}
		if open >= s.cfg.MaxConcurrentPositions {
			return GateResult{Allowed: false, Reason: "max_concurrent_positions_reached"}, nil
		}
	}

	if s.cfg.MaxEntriesPerTick > 0 && s.tickEntries >= s.cfg.MaxEntriesPerTick {
		return GateResult{Allowed: false, Reason: "max_entries_per_tick_reached"}, nil
	}

	return GateResult{Allowed: true}, nil
}

func (s *Safeguard) hasDuplicate(windowID, strategyID string) (bool, error) {
	found, err := s.store.HasEntry(windowID, strategyID)
	if err != nil {
		return false, apperr.Wrap(apperr.DatabaseError, "check duplicate entry", err, map[string]any{
			"windowId": windowID, "strategyId": strategyID,
		})
	}
	return found, nil
}

// Reserve sweeps stale reservations, then inserts a reservation row for
// (windowID, strategyID). A duplicate insert surfaces as
// apperr.DuplicatePosition — CanEnter should normally have already filtered
// this out, but Reserve re-checks at the storage layer because that
// unique-key insert is the one atomic operation in this whole protocol; two
// goroutines racing CanEnter would both see "allowed" and only the losing
// Reserve call fails. The current orchestrator is single-threaded so this
// path is defense for future concurrency, not today's normal flow.
func (s *Safeguard) Reserve(windowID, strategyID, symbol string, now time.Time) error {
	if _, err := s.SweepStale(now); err != nil {
		return err
	}

	err := s.store.InsertEntry(WindowEntry{
		WindowID: windowID, StrategyID: strategyID, Symbol: normalizeSymbol(symbol), ReservedAt: now,
	})
	if err != nil {
		return err
	}
	log.Info().Str("windowId", windowID).Str("strategyId", strategyID).Str("symbol", symbol).Msg("reservation created")
	return nil
}

// Confirm links a reservation to a real position once the order fills,
// stamping ConfirmedAt (the clock the rate limiter reads) and bumping the
// tick's entry counter.
func (s *Safeguard) Confirm(windowID, strategyID string, positionID int64, now time.Time) error {
	if err := s.store.ConfirmEntry(windowID, strategyID, positionID, now); err != nil {
		return apperr.Wrap(apperr.DatabaseError, "confirm reservation", err, map[string]any{
			"windowId": windowID, "strategyId": strategyID, "positionId": positionID,
		})
	}
	s.tickEntries++
	return nil
}

// Release removes a reservation that did not convert into a position
// (rejected order, strategy veto, or a stale sweep).
func (s *Safeguard) Release(windowID, strategyID string) error {
	if err := s.store.RemoveEntry(windowID, strategyID); err != nil {
		return apperr.Wrap(apperr.DatabaseError, "release reservation", err, map[string]any{
			"windowId": windowID, "strategyId": strategyID,
		})
	}
	return nil
}

// SweepStale releases any unconfirmed reservation older than
// ReservationTimeoutMs, logging each one it clears. CanEnter and Reserve
// both call this before their own checks, so a stale reservation never
// survives to block a later entry attempt; the orchestrator's background
// ticker also calls it directly to bound how long a stale row can sit
// between tick-driven entry attempts.
func (s *Safeguard) SweepStale(now time.Time) (int, error) {
	cutoff := now.Add(-time.Duration(s.cfg.ReservationTimeoutMs) * time.Millisecond)
	stale, err := s.store.StaleReservations(cutoff)
	if err != nil {
		return 0, apperr.Wrap(apperr.DatabaseError, "scan stale reservations", err, nil)
	}

	cleared := 0
	for _, e := range stale {
		if e.Confirmed {
			continue
		}
		if err := s.store.RemoveEntry(e.WindowID, e.StrategyID); err != nil {
			log.Warn().Err(err).Str("windowId", e.WindowID).Str("strategyId", e.StrategyID).Msg("failed to clear stale reservation")
			continue
		}
		log.Info().Str("windowId", e.WindowID).Str("strategyId", e.StrategyID).Msg("cleared stale reservation")
		cleared++
	}
	return cleared, nil
}
