package common

// Trading symbols
const (
	BTCUSDTSymbol = "BTCUSDT"
	ETHUSDTSymbol = "ETHUSDT"
	ADAUSDTSymbol = "ADAUSDT"
	BNBUSDTSymbol = "BNBUSDT"
	DOTUSDTSymbol = "DOTUSDT"
)

// Environment variable keys
const (
	EnvBitunixAPIKey    = "BITUNIX_API_KEY"
	EnvBitunixSecretKey = "BITUNIX_SECRET_KEY"
	EnvSymbols          = "SYMBOLS"
	EnvBaseURL          = "BASE_URL"
	EnvWsURL            = "WS_URL"
	EnvDataPath         = "DATA_PATH"
	EnvDryRun           = "DRY_RUN"
	EnvMetricsPort      = "METRICS_PORT"
	EnvRESTTimeout      = "REST_TIMEOUT"
	EnvPingInterval     = "PING_INTERVAL"
)

// Configuration defaults
const (
	DefaultBaseURL     = "https://api.bitunix.com"
	DefaultWsURL       = "wss://fapi.bitunix.com/public"
	DefaultMetricsPort = 8080
)

// Common error messages
const (
	ErrMsgAPIKeyRequired  = "API key and secret are required"
	ErrMsgBaseURLRequired = "baseURL is required"
	ErrMsgWsURLRequired   = "wsURL is required"
	ErrMsgSymbolRequired  = "at least one trading symbol is required"
)

// Validation constants
const (
	MinMetricsPort = 1024
	MaxMetricsPort = 65535
)

// Window timing environment keys
const (
	EnvWindowDurationMs          = "WINDOW_DURATION_MS"
	EnvMinTimeRemainingMs        = "MIN_TIME_REMAINING_MS"
	EnvWindowExpiryEnabled       = "WINDOW_EXPIRY_ENABLED"
	EnvExpiryWarningThresholdMs = "EXPIRY_WARNING_THRESHOLD_MS"
)

// Window timing defaults
const (
	DefaultWindowDurationMs         = int64(15 * 60 * 1000) // 15m windows
	DefaultMinTimeRemainingMs       = int64(2 * 60 * 1000)  // 2m entry-eligibility floor
	DefaultExpiryWarningThresholdMs = int64(60 * 1000)      // 1m warning band
)

// Entry safeguard environment keys
const (
	EnvSafeguardMaxConcurrentPositions    = "SAFEGUARD_MAX_CONCURRENT_POSITIONS"
	EnvSafeguardMinEntryIntervalMs        = "SAFEGUARD_MIN_ENTRY_INTERVAL_MS"
	EnvSafeguardMaxEntriesPerTick         = "SAFEGUARD_MAX_ENTRIES_PER_TICK"
	EnvSafeguardDuplicateWindowPrevention = "SAFEGUARD_DUPLICATE_WINDOW_PREVENTION"
	EnvSafeguardReservationTimeoutMs      = "SAFEGUARD_RESERVATION_TIMEOUT_MS"
)

// Entry safeguard defaults, mirroring safeguard.DefaultConfig.
const (
	DefaultSafeguardMaxConcurrentPositions    = 8
	DefaultSafeguardMinEntryIntervalMs        = int64(5000)
	DefaultSafeguardMaxEntriesPerTick         = 2
	DefaultSafeguardDuplicateWindowPrevention = true
	DefaultSafeguardReservationTimeoutMs      = int64(30000)
)

// Position risk limit environment keys. Binary-option position sizing is
// denominated in contract size and USD exposure, not account-balance
// ratios.
const (
	EnvRiskPositionMaxSize      = "RISK_POSITION_MAX_SIZE"
	EnvRiskMaxExposure          = "RISK_MAX_EXPOSURE"
	EnvRiskPositionLimitPerMarket = "RISK_POSITION_LIMIT_PER_MARKET"
)

// Position risk limit defaults. Zero means "no limit" per position.Limits.
const (
	DefaultRiskPositionMaxSize        = 0.0
	DefaultRiskMaxExposure            = 0.0
	DefaultRiskPositionLimitPerMarket = 0
)

// Exit module environment keys. A zero pct disables that module, per
// lifecycle.StopLossPct/TakeProfitPct/TrailingStopPct's own "<=0 is a no-op"
// convention.
const (
	EnvExitStopLossPct     = "EXIT_STOP_LOSS_PCT"
	EnvExitTakeProfitPct   = "EXIT_TAKE_PROFIT_PCT"
	EnvExitTrailingStopPct = "EXIT_TRAILING_STOP_PCT"
)

// Exit module defaults: a binary option's price is already bounded to
// (0,1], so these are read as fractions of entry price, not of account
// balance.
const (
	DefaultExitStopLossPct     = 0.5
	DefaultExitTakeProfitPct   = 0.8
	DefaultExitTrailingStopPct = 0.0 // disabled unless configured
)

// Background sweep/reconcile interval environment keys.
const (
	EnvSweepIntervalMs     = "SWEEP_INTERVAL_MS"
	EnvReconcileIntervalMs = "RECONCILE_INTERVAL_MS"
)

// Trading mode environment key. Explicit values are LIVE, PAPER, or
// DRY_RUN; an empty value falls back to DRY_RUN/LIVE based on DryRun.
const (
	EnvTradingMode = "TRADING_MODE"
)

// Background sweep/reconcile interval defaults.
const (
	DefaultSweepIntervalMs     = int64(10 * 1000)
	DefaultReconcileIntervalMs = int64(60 * 1000)
)
