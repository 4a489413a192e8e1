// Package cfg provides configuration management for the Bitunix binary
// options trading bot. It supports loading configuration from both YAML
// files and environment variables, with environment variables taking
// precedence over YAML settings.
//
// The package handles validation of all configuration parameters and
// provides sensible defaults for optional settings.
package cfg

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"bitunix-bot/internal/common"
	"bitunix-bot/internal/lifecycle"
	"bitunix-bot/internal/position"
	"bitunix-bot/internal/safeguard"
	"bitunix-bot/internal/windowexpiry"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Settings contains all configuration parameters for the trading bot.
// It includes API credentials, trading parameters, exchange and storage
// settings, window timing, safeguard, risk and exit tunables, and system
// settings.
type Settings struct {
	// API Configuration
	Key    string // Bitunix API key for authentication
	Secret string // Bitunix API secret for request signing

	// Trading Configuration
	Symbols []string // List of trading symbols (e.g., ["BTCUSDT", "ETHUSDT"])
	DryRun  bool     // Whether to run in dry-run mode (no actual trades)

	// Exchange Configuration
	BaseURL string        // Base URL for REST API endpoints
	WsURL   string        // WebSocket URL for real-time data
	Ping    time.Duration // Ping interval for WebSocket connections

	// Storage Configuration
	DataPath string // Path to the BoltDB data file

	// System Configuration
	MetricsPort    int           // Port for Prometheus metrics server
	RESTTimeout    time.Duration // Timeout for REST API requests
	InitialBalance float64       // Initial account balance for trading

	// Window timing (trading.windowDurationMs / trading.minTimeRemainingMs
	// and strategy.windowExpiry.*), consumed via WindowExpiryConfig.
	WindowDurationMs         int64
	MinTimeRemainingMs       int64
	WindowExpiryEnabled      bool
	ExpiryWarningThresholdMs int64

	// Entry safeguard tunables (safeguards.*), consumed via SafeguardConfig.
	SafeguardMaxConcurrentPositions    int
	SafeguardMinEntryIntervalMs        int64
	SafeguardMaxEntriesPerTick         int
	SafeguardDuplicateWindowPrevention bool
	SafeguardReservationTimeoutMs      int64

	// Position risk limits (risk.*), consumed via PositionLimits. Zero
	// means "no limit" on each field.
	RiskPositionMaxSize        float64
	RiskMaxExposure            float64
	RiskPositionLimitPerMarket int

	// Exit module tunables (exit.*). ExitModules consumes the stop-loss and
	// take-profit pcts (a zero pct disables that module); it does not read
	// ExitTrailingStopPct.
	ExitStopLossPct     float64
	ExitTakeProfitPct   float64
	ExitTrailingStopPct float64

	// Background loop intervals for the orchestrator's sweep/reconcile
	// goroutines, separate from the tick loop itself.
	SweepIntervalMs     int64
	ReconcileIntervalMs int64

	// TradingMode is one of position.Live/Paper/DryRun (as a string, to
	// keep this package independent of internal/position's type). Resolved
	// by resolveTradingMode: an explicit TRADING_MODE env value wins,
	// otherwise DryRun picks DRY_RUN or LIVE.
	TradingMode string
}

// resolveTradingMode honors an explicit mode override; otherwise DryRun
// decides between LIVE and DRY_RUN. PAPER is only ever reached by an
// explicit override, matching "paper trading has no implicit trigger".
func resolveTradingMode(explicit string, dryRun bool) string {
	switch explicit {
	case "LIVE", "PAPER", "DRY_RUN":
		return explicit
	}
	if dryRun {
		return "DRY_RUN"
	}
	return "LIVE"
}

// ConfigFile represents the structure of the YAML configuration file.
// It provides a hierarchical organization of configuration parameters
// that can be loaded from a YAML file and converted to Settings.
type ConfigFile struct {
	API struct {
		Key     string `yaml:"key"`
		Secret  string `yaml:"secret"`
		BaseURL string `yaml:"baseURL"`
		WsURL   string `yaml:"wsURL"`
	} `yaml:"api"`

	Trading struct {
		Symbols            []string `yaml:"symbols"`
		DryRun             bool     `yaml:"dryRun"`
		WindowDurationMs   int64    `yaml:"windowDurationMs"`
		MinTimeRemainingMs int64    `yaml:"minTimeRemainingMs"`
	} `yaml:"trading"`

	Strategy struct {
		WindowExpiry struct {
			// Enabled is a pointer so an absent key can be told apart from
			// an explicit "enabled: false" and default to true.
			Enabled                  *bool `yaml:"enabled"`
			ExpiryWarningThresholdMs int64 `yaml:"expiryWarningThresholdMs"`
		} `yaml:"windowExpiry"`
	} `yaml:"strategy"`

	Safeguards struct {
		MaxConcurrentPositions    int   `yaml:"maxConcurrentPositions"`
		MinEntryIntervalMs        int64 `yaml:"minEntryIntervalMs"`
		MaxEntriesPerTick         int   `yaml:"maxEntriesPerTick"`
		DuplicateWindowPrevention *bool `yaml:"duplicateWindowPrevention"`
		ReservationTimeoutMs      int64 `yaml:"reservationTimeoutMs"`
	} `yaml:"safeguards"`

	Risk struct {
		MaxPositionSize       float64 `yaml:"maxPositionSize"`
		MaxExposure           float64 `yaml:"maxExposure"`
		PositionLimitPerMarket int    `yaml:"positionLimitPerMarket"`
	} `yaml:"risk"`

	Exit struct {
		StopLossPct     float64 `yaml:"stopLossPct"`
		TakeProfitPct   float64 `yaml:"takeProfitPct"`
		TrailingStopPct float64 `yaml:"trailingStopPct"`
	} `yaml:"exit"`

	Background struct {
		SweepIntervalMs     int64 `yaml:"sweepIntervalMs"`
		ReconcileIntervalMs int64 `yaml:"reconcileIntervalMs"`
	} `yaml:"background"`

	System struct {
		DataPath     string `yaml:"dataPath"`
		PingInterval string `yaml:"pingInterval"`
		MetricsPort  int    `yaml:"metricsPort"`
		RESTTimeout  string `yaml:"restTimeout"`
	} `yaml:"system"`
}

// Load loads configuration from either a YAML file or environment variables.
// It first checks for a CONFIG_FILE environment variable to load from YAML,
// otherwise falls back to loading from environment variables.
// Returns a validated Settings struct or an error if configuration is invalid.
func Load() (Settings, error) {
	// Load .env file if it exists (ignore errors as it's optional)
	_ = godotenv.Load()

	// Try to load from YAML file first
	if configPath := os.Getenv("CONFIG_FILE"); configPath != "" {
		return loadFromYAML(configPath)
	}

	// Fallback to environment variables
	return loadFromEnv()
}

// loadFromYAML loads configuration from a YAML file at the specified path.
// It parses the YAML file, converts duration strings to time.Duration,
// applies environment variable overrides, and validates the final configuration.
func loadFromYAML(path string) (Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Settings{}, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var config ConfigFile
	if err := yaml.Unmarshal(data, &config); err != nil {
		return Settings{}, fmt.Errorf("failed to parse config file: %w", err)
	}

	// Parse durations
	ping, err := time.ParseDuration(config.System.PingInterval)
	if err != nil {
		ping = 15 * time.Second
	}

	restTimeout, err := time.ParseDuration(config.System.RESTTimeout)
	if err != nil {
		restTimeout = 5 * time.Second
	}

	// Override with environment variables if they exist
	key := getEnvOrDefault(common.EnvBitunixAPIKey, config.API.Key)
	secret := getEnvOrDefault(common.EnvBitunixSecretKey, config.API.Secret)

	if key == "" || secret == "" {
		return Settings{}, fmt.Errorf(common.ErrMsgAPIKeyRequired)
	}

	settings := Settings{
		Key:         key,
		Secret:      secret,
		Symbols:     getSymbolsFromEnvOrConfig(config.Trading.Symbols),
		BaseURL:     getEnvOrDefault(common.EnvBaseURL, config.API.BaseURL),
		WsURL:       getEnvOrDefault(common.EnvWsURL, config.API.WsURL),
		Ping:        ping,
		DataPath:    getEnvOrDefault(common.EnvDataPath, config.System.DataPath),
		DryRun:      getBoolFromEnvOrConfig(common.EnvDryRun, config.Trading.DryRun),
		MetricsPort: getIntFromEnvOrConfig(common.EnvMetricsPort, config.System.MetricsPort),
		RESTTimeout: restTimeout,
		// Window timing
		WindowDurationMs:   getInt64FromEnvOrConfig(common.EnvWindowDurationMs, config.Trading.WindowDurationMs, common.DefaultWindowDurationMs),
		MinTimeRemainingMs: getInt64FromEnvOrConfig(common.EnvMinTimeRemainingMs, config.Trading.MinTimeRemainingMs, common.DefaultMinTimeRemainingMs),
		WindowExpiryEnabled: boolPtrFromEnvOrConfig(common.EnvWindowExpiryEnabled, config.Strategy.WindowExpiry.Enabled, true),
		ExpiryWarningThresholdMs: getInt64FromEnvOrConfig(common.EnvExpiryWarningThresholdMs, config.Strategy.WindowExpiry.ExpiryWarningThresholdMs, common.DefaultExpiryWarningThresholdMs),
		// Entry safeguard
		SafeguardMaxConcurrentPositions:    getIntFromEnvOrConfigWithDefault(common.EnvSafeguardMaxConcurrentPositions, config.Safeguards.MaxConcurrentPositions, common.DefaultSafeguardMaxConcurrentPositions),
		SafeguardMinEntryIntervalMs:        getInt64FromEnvOrConfig(common.EnvSafeguardMinEntryIntervalMs, config.Safeguards.MinEntryIntervalMs, common.DefaultSafeguardMinEntryIntervalMs),
		SafeguardMaxEntriesPerTick:         getIntFromEnvOrConfigWithDefault(common.EnvSafeguardMaxEntriesPerTick, config.Safeguards.MaxEntriesPerTick, common.DefaultSafeguardMaxEntriesPerTick),
		SafeguardDuplicateWindowPrevention: boolPtrFromEnvOrConfig(common.EnvSafeguardDuplicateWindowPrevention, config.Safeguards.DuplicateWindowPrevention, common.DefaultSafeguardDuplicateWindowPrevention),
		SafeguardReservationTimeoutMs:      getInt64FromEnvOrConfig(common.EnvSafeguardReservationTimeoutMs, config.Safeguards.ReservationTimeoutMs, common.DefaultSafeguardReservationTimeoutMs),
		// Position risk limits
		RiskPositionMaxSize:        getFloatFromEnvOrConfig(common.EnvRiskPositionMaxSize, config.Risk.MaxPositionSize),
		RiskMaxExposure:            getFloatFromEnvOrConfig(common.EnvRiskMaxExposure, config.Risk.MaxExposure),
		RiskPositionLimitPerMarket: getIntFromEnvOrConfig(common.EnvRiskPositionLimitPerMarket, config.Risk.PositionLimitPerMarket),
		// Exit modules
		ExitStopLossPct:     getFloatFromEnvOrConfigWithDefault(common.EnvExitStopLossPct, config.Exit.StopLossPct, common.DefaultExitStopLossPct),
		ExitTakeProfitPct:   getFloatFromEnvOrConfigWithDefault(common.EnvExitTakeProfitPct, config.Exit.TakeProfitPct, common.DefaultExitTakeProfitPct),
		ExitTrailingStopPct: getFloatFromEnvOrConfigWithDefault(common.EnvExitTrailingStopPct, config.Exit.TrailingStopPct, common.DefaultExitTrailingStopPct),
		// Background loop intervals
		SweepIntervalMs:     getInt64FromEnvOrConfig(common.EnvSweepIntervalMs, config.Background.SweepIntervalMs, common.DefaultSweepIntervalMs),
		ReconcileIntervalMs: getInt64FromEnvOrConfig(common.EnvReconcileIntervalMs, config.Background.ReconcileIntervalMs, common.DefaultReconcileIntervalMs),
	}
	settings.TradingMode = resolveTradingMode(os.Getenv(common.EnvTradingMode), settings.DryRun)

	// Validate configuration
	if err := validateSettings(&settings); err != nil {
		return Settings{}, fmt.Errorf("configuration validation failed: %w", err)
	}

	return settings, nil
}

// loadFromEnv loads configuration entirely from environment variables.
// It uses default values for any missing optional parameters and validates
// the final configuration before returning.
func loadFromEnv() (Settings, error) {
	key, err := getEnvRequired(common.EnvBitunixAPIKey)
	if err != nil {
		return Settings{}, err
	}

	secret, err := getEnvRequired(common.EnvBitunixSecretKey)
	if err != nil {
		return Settings{}, err
	}

	settings := Settings{
		Key:         key,
		Secret:      secret,
		Symbols:     splitOrDefault(os.Getenv(common.EnvSymbols), []string{common.BTCUSDTSymbol}),
		BaseURL:     getEnvOrDefault(common.EnvBaseURL, common.DefaultBaseURL),
		WsURL:       getEnvOrDefault(common.EnvWsURL, common.DefaultWsURL),
		Ping:        getDurationOrDefault(common.EnvPingInterval, 15*time.Second),
		DataPath:    os.Getenv(common.EnvDataPath), // optional
		DryRun:      getBoolOrDefault(common.EnvDryRun, false),
		MetricsPort: getIntOrDefault(common.EnvMetricsPort, common.DefaultMetricsPort),
		RESTTimeout: getDurationOrDefault(common.EnvRESTTimeout, 5*time.Second),
		// Window timing
		WindowDurationMs:         getInt64OrDefault(common.EnvWindowDurationMs, common.DefaultWindowDurationMs),
		MinTimeRemainingMs:       getInt64OrDefault(common.EnvMinTimeRemainingMs, common.DefaultMinTimeRemainingMs),
		WindowExpiryEnabled:      boolPtrFromEnvOrConfig(common.EnvWindowExpiryEnabled, nil, true),
		ExpiryWarningThresholdMs: getInt64OrDefault(common.EnvExpiryWarningThresholdMs, common.DefaultExpiryWarningThresholdMs),
		// Entry safeguard
		SafeguardMaxConcurrentPositions:    getIntOrDefault(common.EnvSafeguardMaxConcurrentPositions, common.DefaultSafeguardMaxConcurrentPositions),
		SafeguardMinEntryIntervalMs:        getInt64OrDefault(common.EnvSafeguardMinEntryIntervalMs, common.DefaultSafeguardMinEntryIntervalMs),
		SafeguardMaxEntriesPerTick:         getIntOrDefault(common.EnvSafeguardMaxEntriesPerTick, common.DefaultSafeguardMaxEntriesPerTick),
		SafeguardDuplicateWindowPrevention: boolPtrFromEnvOrConfig(common.EnvSafeguardDuplicateWindowPrevention, nil, common.DefaultSafeguardDuplicateWindowPrevention),
		SafeguardReservationTimeoutMs:      getInt64OrDefault(common.EnvSafeguardReservationTimeoutMs, common.DefaultSafeguardReservationTimeoutMs),
		// Position risk limits, zero meaning "no limit"
		RiskPositionMaxSize:        getFloatOrDefault(common.EnvRiskPositionMaxSize, common.DefaultRiskPositionMaxSize),
		RiskMaxExposure:            getFloatOrDefault(common.EnvRiskMaxExposure, common.DefaultRiskMaxExposure),
		RiskPositionLimitPerMarket: getIntOrDefault(common.EnvRiskPositionLimitPerMarket, common.DefaultRiskPositionLimitPerMarket),
		// Exit modules
		ExitStopLossPct:     getFloatOrDefault(common.EnvExitStopLossPct, common.DefaultExitStopLossPct),
		ExitTakeProfitPct:   getFloatOrDefault(common.EnvExitTakeProfitPct, common.DefaultExitTakeProfitPct),
		ExitTrailingStopPct: getFloatOrDefault(common.EnvExitTrailingStopPct, common.DefaultExitTrailingStopPct),
		// Background loop intervals
		SweepIntervalMs:     getInt64OrDefault(common.EnvSweepIntervalMs, common.DefaultSweepIntervalMs),
		ReconcileIntervalMs: getInt64OrDefault(common.EnvReconcileIntervalMs, common.DefaultReconcileIntervalMs),
	}
	settings.TradingMode = resolveTradingMode(os.Getenv(common.EnvTradingMode), settings.DryRun)

	// Validate configuration
	if err := validateSettings(&settings); err != nil {
		return Settings{}, fmt.Errorf("configuration validation failed: %w", err)
	}

	return settings, nil
}

// WindowExpiryConfig builds the windowexpiry.Evaluator config these
// settings describe.
func (s *Settings) WindowExpiryConfig() windowexpiry.Config {
	return windowexpiry.Config{
		WindowDurationMs:         s.WindowDurationMs,
		ExpiryWarningThresholdMs: s.ExpiryWarningThresholdMs,
		MinTimeRemainingMs:       s.MinTimeRemainingMs,
	}
}

// SafeguardConfig builds the safeguard.Config these settings describe.
func (s *Settings) SafeguardConfig() safeguard.Config {
	return safeguard.Config{
		MaxConcurrentPositions:    s.SafeguardMaxConcurrentPositions,
		MinEntryIntervalMs:        s.SafeguardMinEntryIntervalMs,
		MaxEntriesPerTick:         s.SafeguardMaxEntriesPerTick,
		DuplicateWindowPrevention: s.SafeguardDuplicateWindowPrevention,
		ReservationTimeoutMs:      s.SafeguardReservationTimeoutMs,
	}
}

// PositionLimits builds the position.Limits these settings describe. A zero
// value on any field means "no limit", matching position.checkLimits.
func (s *Settings) PositionLimits() position.Limits {
	return position.Limits{
		MaxPositionSize:        s.RiskPositionMaxSize,
		MaxExposure:            s.RiskMaxExposure,
		PositionLimitPerMarket: s.RiskPositionLimitPerMarket,
	}
}

// ExitModules builds the lifecycle.Modules these settings describe, wiring
// the ready-to-use Pct helpers rather than hand-rolling the threshold
// checks again at the call site.
func (s *Settings) ExitModules() lifecycle.Modules {
	return lifecycle.Modules{
		StopLoss:   lifecycle.StopLossPct(s.ExitStopLossPct),
		TakeProfit: lifecycle.TakeProfitPct(s.ExitTakeProfitPct),
	}
}

func getEnvRequired(key string) (string, error) {
	v := os.Getenv(key)
	if v == "" {
		return "", fmt.Errorf("required environment variable %s is missing", key)
	}
	return v, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func getDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultValue
}

func getIntOrDefault(key string, defaultValue int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultValue
}

func getIntFromEnvOrConfigWithDefault(key string, configValue, defaultValue int) int {
	if env := os.Getenv(key); env != "" {
		if val, err := strconv.Atoi(env); err == nil {
			return val
		}
	}
	if configValue != 0 {
		return configValue
	}
	return defaultValue
}

func getInt64OrDefault(key string, defaultValue int64) int64 {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.ParseInt(v, 10, 64); err == nil {
			return i
		}
	}
	return defaultValue
}

func getInt64FromEnvOrConfig(key string, configValue, defaultValue int64) int64 {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.ParseInt(v, 10, 64); err == nil {
			return i
		}
	}
	if configValue != 0 {
		return configValue
	}
	return defaultValue
}

// boolPtrFromEnvOrConfig resolves an "enabled"-style toggle: env var wins
// if set, otherwise the YAML pointer if present, otherwise defaultValue.
func boolPtrFromEnvOrConfig(key string, configValue *bool, defaultValue bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	if configValue != nil {
		return *configValue
	}
	return defaultValue
}

func getFloatOrDefault(key string, defaultValue float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getBoolOrDefault(key string, defaultValue bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return defaultValue
}

func splitOrDefault(v string, def []string) []string {
	if v == "" {
		return def
	}
	return strings.Split(v, ",")
}

func getSymbolsFromEnvOrConfig(configSymbols []string) []string {
	if env := os.Getenv(common.EnvSymbols); env != "" {
		return strings.Split(env, ",")
	}
	if len(configSymbols) > 0 {
		return configSymbols
	}
	return []string{common.BTCUSDTSymbol}
}

func getIntFromEnvOrConfig(key string, configValue int) int {
	if env := os.Getenv(key); env != "" {
		if val, err := strconv.Atoi(env); err == nil {
			return val
		}
	}
	if configValue != 0 {
		return configValue
	}
	return getIntOrDefault(key, 0)
}

func getFloatFromEnvOrConfig(key string, configValue float64) float64 {
	if env := os.Getenv(key); env != "" {
		if val, err := strconv.ParseFloat(env, 64); err == nil {
			return val
		}
	}
	if configValue != 0 {
		return configValue
	}
	return getFloatOrDefault(key, 0)
}

func getBoolFromEnvOrConfig(key string, configValue bool) bool {
	if env := os.Getenv(key); env != "" {
		if val, err := strconv.ParseBool(env); err == nil {
			return val
		}
	}
	return configValue
}

func getFloatFromEnvOrConfigWithDefault(key string, configValue, defaultValue float64) float64 {
	if env := os.Getenv(key); env != "" {
		if val, err := strconv.ParseFloat(env, 64); err == nil {
			return val
		}
	}
	if configValue != 0 {
		return configValue
	}
	return defaultValue
}

// validateSettings performs comprehensive validation of configuration values
func validateSettings(s *Settings) error {
	if err := validateCredentials(s); err != nil {
		return err
	}

	if err := validateURLs(s); err != nil {
		return err
	}

	if err := validateTradingParameters(s); err != nil {
		return err
	}

	if err := validateSystemParameters(s); err != nil {
		return err
	}

	if err := validateWindowTimingSettings(s); err != nil {
		return err
	}

	if err := validateSafeguardSettings(s); err != nil {
		return err
	}

	return nil
}

// validateCredentials validates API credentials
func validateCredentials(s *Settings) error {
	if s.Key == "" || s.Secret == "" {
		return fmt.Errorf(common.ErrMsgAPIKeyRequired)
	}
	return nil
}

// validateURLs validates required URL configurations
func validateURLs(s *Settings) error {
	if s.BaseURL == "" {
		return fmt.Errorf(common.ErrMsgBaseURLRequired)
	}
	if s.WsURL == "" {
		return fmt.Errorf(common.ErrMsgWsURLRequired)
	}
	return nil
}

// validateTradingParameters validates core trading parameters
func validateTradingParameters(s *Settings) error {
	if len(s.Symbols) == 0 {
		return fmt.Errorf(common.ErrMsgSymbolRequired)
	}
	return nil
}

// validateSystemParameters validates system-level parameters
func validateSystemParameters(s *Settings) error {
	if s.Ping < 1*time.Second || s.Ping > 5*time.Minute {
		return fmt.Errorf("pingInterval must be between 1s and 5m")
	}
	if s.RESTTimeout < 1*time.Second || s.RESTTimeout > 1*time.Minute {
		return fmt.Errorf("restTimeout must be between 1s and 1m")
	}
	if s.MetricsPort < common.MinMetricsPort || s.MetricsPort > common.MaxMetricsPort {
		return fmt.Errorf("metricsPort must be between %d and %d", common.MinMetricsPort, common.MaxMetricsPort)
	}
	return nil
}

// validateWindowTimingSettings validates the windowexpiry.Config this
// Settings value will build by calling windowexpiry.Config.Validate, so
// invalid values fail at config load rather than at evaluator
// construction.
func validateWindowTimingSettings(s *Settings) error {
	if err := s.WindowExpiryConfig().Validate(); err != nil {
		return fmt.Errorf("window timing: %w", err)
	}
	return nil
}

// validateSafeguardSettings validates the entry safeguard's tunables.
func validateSafeguardSettings(s *Settings) error {
	if s.SafeguardMaxConcurrentPositions <= 0 {
		return fmt.Errorf("safeguards.maxConcurrentPositions must be positive")
	}
	if s.SafeguardMinEntryIntervalMs < 0 {
		return fmt.Errorf("safeguards.minEntryIntervalMs must be >= 0")
	}
	if s.SafeguardMaxEntriesPerTick <= 0 {
		return fmt.Errorf("safeguards.maxEntriesPerTick must be positive")
	}
	if s.SafeguardReservationTimeoutMs <= 0 {
		return fmt.Errorf("safeguards.reservationTimeoutMs must be positive")
	}
	return nil
}
