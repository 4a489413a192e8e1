// Package position implements the Position Manager: a mutex-serialized
// front over the persistence calls that hold every position (reads go to
// the store; no in-memory copy is kept), with read accessors, but
// replacing ad-hoc exposure checks with checkLimits' exact ordered rule
// set and adding the intent write-ahead log required
// before a position is allowed to settle closed.
package position

import (
	"math"
	"sync"
	"time"

	"bitunix-bot/internal/apperr"
	"bitunix-bot/internal/lifecycle"
	"bitunix-bot/internal/windowexpiry"

	"github.com/rs/zerolog/log"
)

// Side is LONG or SHORT.
type Side string

const (
	Long  Side = "LONG"
	Short Side = "SHORT"
)

// Status is the coarse OPEN/CLOSED/LIQUIDATED status, distinct from the
// fine-grained LifecycleState: status gates which operations are legal
// (closePosition only ever acts on an OPEN row), lifecycle_state records
// where in the exit state machine an OPEN position currently sits.
type Status string

const (
	Open       Status = "OPEN"
	ClosedStat Status = "CLOSED"
	Liquidated Status = "LIQUIDATED"
)

// Mode says whether a position represents a real order, a paper trade, or a
// dry-run simulation; it never changes the lifecycle or settlement math.
type Mode string

const (
	Live   Mode = "LIVE"
	Paper  Mode = "PAPER"
	DryRun Mode = "DRY_RUN"
)

// Position is one row of the positions table.
type Position struct {
	ID              int64
	Market          string
	TokenID         string
	WindowID        string
	StrategyID      string
	Side            Side
	EntryPrice      float64 // bounded to (0, 1]
	Size            float64
	CurrentPrice    float64 // 0 means "not yet observed"
	Status          Status
	LifecycleState  lifecycle.State
	Mode            Mode
	HighWaterMark   float64 // for trailing stops, 0 if unset
	OpenedAt        time.Time
	ClosedAt        time.Time
	ClosePrice      float64
	PnL             float64
	ExchangeVerifiedAt time.Time
}

// view projects a Position to the narrow slice lifecycle.EvaluateExit needs.
func (p Position) view() lifecycle.PositionView {
	return lifecycle.PositionView{
		ID:             p.ID,
		Side:           string(p.Side),
		EntryPrice:     p.EntryPrice,
		Size:           p.Size,
		LifecycleState: p.LifecycleState,
		HighWaterMark:  p.HighWaterMark,
		OpenedAt:       p.OpenedAt,
	}
}

// UnrealizedPnL is the mark-to-market gain/loss on an OPEN position given
// its last known CurrentPrice, using the same sign convention as settlement:
// LONG benefits from a rising price, SHORT from a falling one.
func (p Position) UnrealizedPnL() float64 {
	if p.Status != Open || p.CurrentPrice <= 0 {
		return 0
	}
	switch p.Side {
	case Long:
		return p.Size * (p.CurrentPrice - p.EntryPrice)
	case Short:
		return p.Size * (p.EntryPrice - p.CurrentPrice)
	default:
		return 0
	}
}

// IntentKind names the write-ahead intent types the manager records before
// mutating position state, so a crash mid-mutation leaves a resumable trail
// rather than a silently half-applied write.
type IntentKind string

const (
	OpenPosition  IntentKind = "OPEN_POSITION"
	ClosePosition IntentKind = "CLOSE_POSITION"
)

// IntentStatus tracks a write-ahead intent row through its lifecycle:
// Logged the moment it's written, Executing once the manager starts the
// mutation it guards, then Completed or Failed depending on how that
// mutation ends. A crash-recovery sweep treats Logged/Executing as
// unresolved and Completed/Failed as settled.
type IntentStatus string

const (
	IntentLogged    IntentStatus = "LOGGED"
	IntentExecuting IntentStatus = "EXECUTING"
	IntentCompleted IntentStatus = "COMPLETED"
	IntentFailed    IntentStatus = "FAILED"
)

// Intent is a single write-ahead log row.
type Intent struct {
	ID         int64
	Kind       IntentKind
	PositionID int64
	Payload    map[string]any
	Status     IntentStatus
	CreatedAt  time.Time
}

// Limits configures checkLimits. A zero or negative PositionLimitPerMarket
// or MaxExposure is read as "no limit", not as "a limit of zero" —
// mirroring a "<=0 disables the check" convention rather than coercing a
// null limit into blocking every entry.
type Limits struct {
	MaxPositionSize        float64
	MaxExposure            float64
	PositionLimitPerMarket int
}

// Store is the persistence surface the manager needs. InsertPosition must
// enforce the (window_id, market_id, token_id) uniqueness constraint and
// return apperr.DuplicatePosition on violation.
type Store interface {
	lifecycle.Store

	InsertPosition(p Position) (int64, error)
	UpdatePosition(p Position) error
	GetPosition(id int64) (Position, error)
	ListOpenPositions() ([]Position, error)
	ListPositions(mode Mode) ([]Position, error)
	CountOpenPositionsInMarket(market string) (int, error)
	TotalExposure() (float64, error)

	InsertIntent(i Intent) (int64, error)
	MarkIntentExecuting(id int64) error
	CompleteIntent(id int64) error
	FailIntent(id int64) error
}

// Manager is the Position Manager. All mutation happens through it; readers
// who only need a snapshot can call GetPositions.
type Manager struct {
	mu     sync.RWMutex
	store  Store
	limits Limits
}

// New builds a Manager against store and limits.
func New(store Store, limits Limits) *Manager {
	return &Manager{store: store, limits: limits}
}

// checkLimits runs the three checks in a fixed order:
// size > maxPositionSize, then totalExposure+size*entryPrice > maxExposure,
// then the per-market position count against positionLimitPerMarket. The
// first violated check wins and its reason is returned.
func (m *Manager) checkLimits(market string, size, entryPrice float64) (bool, string, error) {
	if m.limits.MaxPositionSize > 0 && size > m.limits.MaxPositionSize {
		return false, "max_position_size_exceeded", nil
	}

	if m.limits.MaxExposure > 0 {
		total, err := m.store.TotalExposure()
		if err != nil {
			return false, "", apperr.Wrap(apperr.DatabaseError, "read total exposure", err, nil)
		}
		if total+size*entryPrice > m.limits.MaxExposure {
			return false, "max_exposure_exceeded", nil
		}
	}

	if m.limits.PositionLimitPerMarket > 0 {
		count, err := m.store.CountOpenPositionsInMarket(market)
		if err != nil {
			return false, "", apperr.Wrap(apperr.DatabaseError, "count market positions", err, map[string]any{"market": market})
		}
		if count >= m.limits.PositionLimitPerMarket {
			return false, "position_limit_per_market_reached", nil
		}
	}

	return true, "", nil
}

// AddParams bundles AddPosition's arguments; TokenID participates in the
// uniqueness constraint alongside WindowID and Market, Mode records whether
// this is a live, paper, or dry-run position.
type AddParams struct {
	Market     string
	TokenID    string
	WindowID   string
	StrategyID string
	Side       Side
	EntryPrice float64
	Size       float64
	Mode       Mode
}

// AddPosition validates entryPrice, runs checkLimits, and inserts the
// position under an OPEN_POSITION intent row. A (window_id, market, token_id)
// collision surfaces as apperr.DuplicatePosition.
func (m *Manager) AddPosition(params AddParams, now time.Time) (Position, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if params.EntryPrice <= 0 || params.EntryPrice > 1 {
		return Position{}, apperr.New(apperr.ValidationFailed, "entry_price must be in (0, 1]", map[string]any{"entryPrice": params.EntryPrice})
	}
	if params.Size <= 0 {
		return Position{}, apperr.New(apperr.ValidationFailed, "size must be positive", map[string]any{"size": params.Size})
	}

	ok, reason, err := m.checkLimits(params.Market, params.Size, params.EntryPrice)
	if err != nil {
		return Position{}, err
	}
	if !ok {
		return Position{}, apperr.New(apperr.PositionLimitExceeded, reason, map[string]any{
			"market": params.Market, "size": params.Size, "entryPrice": params.EntryPrice, "limit": reason,
		})
	}

	mode := params.Mode
	if mode == "" {
		mode = Live
	}

	p := Position{
		Market:         params.Market,
		TokenID:        params.TokenID,
		WindowID:       params.WindowID,
		StrategyID:     params.StrategyID,
		Side:           params.Side,
		EntryPrice:     params.EntryPrice,
		Size:           params.Size,
		Status:         Open,
		LifecycleState: lifecycle.Monitoring,
		Mode:           mode,
		OpenedAt:       now,
	}

	intentID, err := m.store.InsertIntent(Intent{Kind: OpenPosition, Payload: map[string]any{
		"market": params.Market, "windowId": params.WindowID, "strategyId": params.StrategyID, "tokenId": params.TokenID,
	}, CreatedAt: now})
	if err != nil {
		return Position{}, apperr.Wrap(apperr.DatabaseError, "write open-position intent", err, nil)
	}
	if err := m.store.MarkIntentExecuting(intentID); err != nil {
		log.Warn().Err(err).Int64("intentId", intentID).Msg("failed to mark open-position intent executing")
	}

	id, err := m.store.InsertPosition(p)
	if err != nil {
		m.markIntentFailed(intentID)
		if apperr.KindOf(err) == apperr.DuplicatePosition {
			return Position{}, err
		}
		return Position{}, apperr.Wrap(apperr.DatabaseError, "insert position", err, nil)
	}
	p.ID = id

	if err := m.store.CompleteIntent(intentID); err != nil {
		log.Warn().Err(err).Int64("intentId", intentID).Msg("failed to mark open-position intent complete")
	}

	log.Info().Int64("positionId", id).Str("market", params.Market).Str("side", string(params.Side)).
		Float64("entryPrice", params.EntryPrice).Float64("size", params.Size).Msg("position opened")

	return p, nil
}

// UpdatePrice refreshes current_price and the high-water mark used by
// trailing-stop checks; it does not itself evaluate an exit. price must be
// finite and non-negative.
func (m *Manager) UpdatePrice(id int64, price float64) (Position, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if math.IsNaN(price) || math.IsInf(price, 0) || price < 0 {
		return Position{}, apperr.New(apperr.ValidationFailed, "price must be finite and >= 0", map[string]any{"price": price})
	}

	p, err := m.store.GetPosition(id)
	if err != nil {
		return Position{}, apperr.Wrap(apperr.NotFound, "position not found", err, map[string]any{"positionId": id})
	}

	p.CurrentPrice = price

	// For a SHORT the most favorable price is the lowest one seen.
	if p.HighWaterMark == 0 ||
		(p.Side == Short && price < p.HighWaterMark) ||
		(p.Side != Short && price > p.HighWaterMark) {
		p.HighWaterMark = price
	}

	if err := m.store.UpdatePosition(p); err != nil {
		return Position{}, apperr.Wrap(apperr.DatabaseError, "update current price", err, map[string]any{"positionId": id})
	}
	return p, nil
}

// EvaluateExit constructs a PositionView for id and runs the exit evaluator
// against it. A returned trigger has not yet been applied to lifecycle
// state — call ApplyExit with it next.
func (m *Manager) EvaluateExit(id int64, currentPrice float64, modules lifecycle.Modules, window windowexpiry.Timing) (*lifecycle.ExitTrigger, error) {
	m.mu.RLock()
	p, err := m.store.GetPosition(id)
	m.mu.RUnlock()
	if err != nil {
		return nil, apperr.Wrap(apperr.NotFound, "position not found", err, map[string]any{"positionId": id})
	}

	return lifecycle.EvaluateExit(p.view(), currentPrice, modules, lifecycle.WindowData{
		TimeRemainingMs: window.TimeRemainingMs,
		IsResolved:      window.IsResolved,
	})
}

// ApplyExit guard-transitions a position to the trigger's target lifecycle
// state (MONITORING -> STOP_TRIGGERED/TP_TRIGGERED/EXPIRY).
func (m *Manager) ApplyExit(id int64, trig *lifecycle.ExitTrigger) error {
	if trig == nil {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return lifecycle.Transition(m.store, id, trig.LifecycleTarget)
}

// Advance drives a triggered position one more guarded hop, from its
// triggered state to the locked pre-close state: STOP_TRIGGERED and
// TP_TRIGGERED both advance to EXIT_PENDING; EXPIRY advances to SETTLEMENT.
func (m *Manager) Advance(id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	state, err := m.store.LifecycleState(id)
	if err != nil {
		return apperr.Wrap(apperr.DatabaseError, "read lifecycle_state", err, map[string]any{"positionId": id})
	}

	var target lifecycle.State
	switch state {
	case lifecycle.StopTriggered, lifecycle.TPTriggered:
		target = lifecycle.ExitPending
	case lifecycle.Expiry:
		target = lifecycle.Settlement
	default:
		return apperr.New(apperr.InvalidStatusTransition, "position is not in a triggered state", map[string]any{"positionId": id, "from": state})
	}
	return lifecycle.Transition(m.store, id, target)
}

// CloseOptions parameterizes ClosePosition. Emergency marks an out-of-band
// close (e.g. a risk-limit force-close) that does not wait for the normal
// trigger chain; it changes nothing about the computation, only the caller's
// intent, which is recorded on the intent's payload for audit.
type CloseOptions struct {
	Emergency  bool
	ClosePrice *float64
}

// ClosePosition settles a position's P&L and writes the terminal
// {status=CLOSED, close_price, closed_at, pnl, lifecycle_state=CLOSED} row
// in one update, rejecting unless the row is still status=OPEN. Unlike
// ApplyExit/Advance this does not go through lifecycle.Transition's guarded
// table — unlocking a locked state into anything but CLOSED would be
// illegal, but writing the terminal CLOSED row is the one operation every
// locked state (and, for an emergency close, MONITORING itself) must be
// allowed to reach. The backing CLOSE_POSITION intent is marked complete
// only once this write has landed, tying the CLOSED transition to the
// intent's completion marker the way a crash-recovery sweep expects.
func (m *Manager) ClosePosition(id int64, opts CloseOptions, now time.Time) (Position, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, err := m.store.GetPosition(id)
	if err != nil {
		return Position{}, apperr.Wrap(apperr.NotFound, "position not found", err, map[string]any{"positionId": id})
	}
	if p.Status != Open {
		return Position{}, apperr.New(apperr.ValidationFailed, "position is not open", map[string]any{"positionId": id, "status": p.Status})
	}

	closePrice := p.CurrentPrice
	if opts.ClosePrice != nil {
		closePrice = *opts.ClosePrice
	}
	if math.IsNaN(closePrice) || math.IsInf(closePrice, 0) || closePrice < 0 {
		return Position{}, apperr.New(apperr.ValidationFailed, "close price must be finite and >= 0", map[string]any{"closePrice": closePrice})
	}

	intentID, err := m.store.InsertIntent(Intent{Kind: ClosePosition, PositionID: id, CreatedAt: now, Payload: map[string]any{
		"emergency": opts.Emergency, "closePrice": closePrice,
	}})
	if err != nil {
		return Position{}, apperr.Wrap(apperr.DatabaseError, "write close-position intent", err, map[string]any{"positionId": id})
	}
	if err := m.store.MarkIntentExecuting(intentID); err != nil {
		log.Warn().Err(err).Int64("intentId", intentID).Msg("failed to mark close-position intent executing")
	}

	var pnl float64
	switch p.Side {
	case Long:
		pnl = (closePrice - p.EntryPrice) * p.Size
	case Short:
		pnl = (p.EntryPrice - closePrice) * p.Size
	}

	p.ClosePrice = closePrice
	p.PnL = pnl
	p.ClosedAt = now
	p.Status = ClosedStat
	p.LifecycleState = lifecycle.Closed

	if err := m.store.UpdatePosition(p); err != nil {
		m.markIntentFailed(intentID)
		return Position{}, apperr.Wrap(apperr.CloseFailed, "persist close", err, map[string]any{"positionId": id})
	}

	if err := m.store.CompleteIntent(intentID); err != nil {
		log.Warn().Err(err).Int64("intentId", intentID).Msg("failed to mark close-position intent complete")
	}

	log.Info().Int64("positionId", id).Float64("pnl", pnl).Bool("emergency", opts.Emergency).Msg("position closed")

	return p, nil
}

// Settle is the EXPIRY-driven variant of close: it uses the binary
// resolution price R in {0,1} (or windowexpiry.ResolutionUnknown when a
// window has timed out with no resolution yet known) instead of a live
// market price, producing the same pnl formula ClosePosition uses, since
// the binary payoff and the continuous close formula coincide at R.
func (m *Manager) Settle(id int64, resolutionPrice float64, now time.Time) (Position, windowexpiry.Settlement, error) {
	m.mu.RLock()
	p, err := m.store.GetPosition(id)
	m.mu.RUnlock()
	if err != nil {
		return Position{}, windowexpiry.Settlement{}, apperr.Wrap(apperr.NotFound, "position not found", err, map[string]any{"positionId": id})
	}

	side := windowexpiry.Long
	if p.Side == Short {
		side = windowexpiry.Short
	}
	settlement := windowexpiry.Settle(side, p.Size, p.EntryPrice, resolutionPrice)

	cp := resolutionPrice
	if resolutionPrice == windowexpiry.ResolutionUnknown {
		cp = p.CurrentPrice
	}
	closed, err := m.ClosePosition(id, CloseOptions{ClosePrice: &cp}, now)
	return closed, settlement, err
}

// markIntentFailed persists the intent's terminal failed state so a
// crash-recovery sweep sees FAILED rather than finding the row stuck at
// LOGGED/EXECUTING forever.
func (m *Manager) markIntentFailed(intentID int64) {
	if err := m.store.FailIntent(intentID); err != nil {
		log.Warn().Err(err).Int64("intentId", intentID).Msg("failed to persist failed intent state")
	}
}

// GetPosition returns a single position snapshot.
func (m *Manager) GetPosition(id int64) (Position, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, err := m.store.GetPosition(id)
	if err != nil {
		return Position{}, apperr.Wrap(apperr.NotFound, "position not found", err, map[string]any{"positionId": id})
	}
	return p, nil
}

// GetPositions returns every currently open position.
func (m *Manager) GetPositions() ([]Position, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ps, err := m.store.ListOpenPositions()
	if err != nil {
		return nil, apperr.Wrap(apperr.DatabaseError, "list open positions", err, nil)
	}
	return ps, nil
}

// GetPositionsByMode returns every position (open or closed) matching mode,
// pushing the filter down to the store.
func (m *Manager) GetPositionsByMode(mode Mode) ([]Position, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ps, err := m.store.ListPositions(mode)
	if err != nil {
		return nil, apperr.Wrap(apperr.DatabaseError, "list positions by mode", err, map[string]any{"mode": mode})
	}
	return ps, nil
}

// ExchangeClient is the minimal balance-lookup surface Reconcile needs.
type ExchangeClient interface {
	GetBalance(tokenID string) (float64, error)
}

// Divergence reports a mismatch between a locally-recorded open position and
// the exchange's view of it.
type Divergence struct {
	PositionID int64
	Kind       string // SIZE_MISMATCH | MISSING_ON_EXCHANGE
	LocalSize  float64
	ExchangeBalance float64
}

// ReconcileResult is Reconcile's summary.
type ReconcileResult struct {
	Verified    int
	Divergences []Divergence
	Timestamp   time.Time
	Success     bool
}

// Reconcile compares every open position's size against the exchange's
// reported balance for its token, within tolerance max(size*1e-4, 1e-4). A
// mismatch is reported as a divergence, never auto-healed; an API error
// aborts that position's check and marks the overall result unsuccessful
// without aborting the rest.
func (m *Manager) Reconcile(client ExchangeClient, now time.Time) (ReconcileResult, error) {
	m.mu.RLock()
	open, err := m.store.ListOpenPositions()
	m.mu.RUnlock()
	if err != nil {
		return ReconcileResult{}, apperr.Wrap(apperr.DatabaseError, "list open positions", err, nil)
	}

	result := ReconcileResult{Timestamp: now, Success: true}
	for _, p := range open {
		balance, err := client.GetBalance(p.TokenID)
		if err != nil {
			result.Success = false
			log.Warn().Err(err).Int64("positionId", p.ID).Str("tokenId", p.TokenID).Msg("reconcile: exchange API error")
			continue
		}

		tolerance := math.Max(p.Size*1e-4, 1e-4)
		diff := math.Abs(balance - p.Size)
		switch {
		case balance == 0 && p.Size > 0:
			result.Success = false
			result.Divergences = append(result.Divergences, Divergence{
				PositionID: p.ID, Kind: "MISSING_ON_EXCHANGE", LocalSize: p.Size, ExchangeBalance: balance,
			})
		case diff > tolerance:
			result.Success = false
			result.Divergences = append(result.Divergences, Divergence{
				PositionID: p.ID, Kind: "SIZE_MISMATCH", LocalSize: p.Size, ExchangeBalance: balance,
			})
		default:
			p.ExchangeVerifiedAt = now
			m.mu.Lock()
			if err := m.store.UpdatePosition(p); err != nil {
				log.Warn().Err(err).Int64("positionId", p.ID).Msg("failed to persist exchange_verified_at")
			}
			m.mu.Unlock()
			result.Verified++
		}
	}

	return result, nil
}
