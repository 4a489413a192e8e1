package cfg

import (
	"testing"
	"time"
)

// createValidSettings creates a valid Settings struct for testing
func createValidSettings() *Settings {
	return &Settings{
		Key:                                "valid_key",
		Secret:                             "valid_secret",
		Symbols:                            []string{"BTCUSDT", "ETHUSDT"},
		BaseURL:                            "https://api.bitunix.com",
		WsURL:                              "wss://fapi.bitunix.com/public",
		Ping:                               30 * time.Second,
		RESTTimeout:                        10 * time.Second,
		MetricsPort:                        9090,
		DryRun:                             true,
		WindowDurationMs:                   15 * 60 * 1000,
		MinTimeRemainingMs:                 2 * 60 * 1000,
		ExpiryWarningThresholdMs:           60 * 1000,
		SafeguardMaxConcurrentPositions:    8,
		SafeguardMinEntryIntervalMs:        5000,
		SafeguardMaxEntriesPerTick:         2,
		SafeguardDuplicateWindowPrevention: true,
		SafeguardReservationTimeoutMs:      30000,
	}
}

func TestValidateSettings_ValidConfig(t *testing.T) {
	settings := createValidSettings()

	err := validateSettings(settings)
	if err != nil {
		t.Errorf("Expected valid config to pass, got error: %v", err)
	}
}

func TestValidateSettings_MissingAPIKey(t *testing.T) {
	settings := createValidSettings()
	settings.Key = ""

	err := validateSettings(settings)
	if err == nil {
		t.Error("Expected error for missing API key")
	}
	if err != nil && err.Error() != "API key and secret are required" {
		t.Errorf("Expected specific error message, got: %v", err)
	}
}

func TestValidateSettings_MissingSecret(t *testing.T) {
	settings := createValidSettings()
	settings.Secret = ""

	err := validateSettings(settings)
	if err == nil {
		t.Error("Expected error for missing secret")
	}
}

func TestValidateSettings_EmptySymbols(t *testing.T) {
	settings := createValidSettings()
	settings.Symbols = []string{}

	err := validateSettings(settings)
	if err == nil {
		t.Error("Expected error for empty symbols")
	}
}

func TestValidateSettings_EmptyBaseURL(t *testing.T) {
	settings := createValidSettings()
	settings.BaseURL = ""

	err := validateSettings(settings)
	if err == nil {
		t.Error("Expected error for empty base URL")
	}
}

func TestValidateSettings_EmptyWsURL(t *testing.T) {
	settings := createValidSettings()
	settings.WsURL = ""

	err := validateSettings(settings)
	if err == nil {
		t.Error("Expected error for empty WebSocket URL")
	}
}

func TestValidateSettings_InvalidPingInterval(t *testing.T) {
	testCases := []struct {
		name    string
		ping    time.Duration
		wantErr bool
	}{
		{"too short", 500 * time.Millisecond, true},
		{"minimum valid", 1 * time.Second, false},
		{"normal", 30 * time.Second, false},
		{"maximum valid", 5 * time.Minute, false},
		{"too long", 10 * time.Minute, true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			settings := createValidSettings()
			settings.Ping = tc.ping

			err := validateSettings(settings)
			if tc.wantErr && err == nil {
				t.Error("Expected error for invalid ping interval")
			}
			if !tc.wantErr && err != nil {
				t.Errorf("Expected no error for valid ping interval, got: %v", err)
			}
		})
	}
}

func TestValidateSettings_InvalidRESTTimeout(t *testing.T) {
	testCases := []struct {
		name        string
		restTimeout time.Duration
		wantErr     bool
	}{
		{"too short", 500 * time.Millisecond, true},
		{"minimum valid", 1 * time.Second, false},
		{"normal", 10 * time.Second, false},
		{"maximum valid", 1 * time.Minute, false},
		{"too long", 2 * time.Minute, true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			settings := createValidSettings()
			settings.RESTTimeout = tc.restTimeout

			err := validateSettings(settings)
			if tc.wantErr && err == nil {
				t.Error("Expected error for invalid REST timeout")
			}
			if !tc.wantErr && err != nil {
				t.Errorf("Expected no error for valid REST timeout, got: %v", err)
			}
		})
	}
}

func TestValidateSettings_InvalidMetricsPort(t *testing.T) {
	testCases := []struct {
		name        string
		metricsPort int
		wantErr     bool
	}{
		{"too low", 1023, true},
		{"minimum valid", 1024, false},
		{"normal", 9090, false},
		{"maximum valid", 65535, false},
		{"too high", 65536, true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			settings := createValidSettings()
			settings.MetricsPort = tc.metricsPort

			err := validateSettings(settings)
			if tc.wantErr && err == nil {
				t.Error("Expected error for invalid metrics port")
			}
			if !tc.wantErr && err != nil {
				t.Errorf("Expected no error for valid metrics port, got: %v", err)
			}
		})
	}
}

func TestValidateSettings_InvalidWindowTiming(t *testing.T) {
	settings := createValidSettings()
	settings.WindowDurationMs = 0

	err := validateSettings(settings)
	if err == nil {
		t.Error("Expected error for invalid window timing")
	}
}

func TestValidateSettings_InvalidSafeguardSettings(t *testing.T) {
	testCases := []struct {
		name    string
		mutate  func(s *Settings)
		wantErr bool
	}{
		{"zero max concurrent positions", func(s *Settings) { s.SafeguardMaxConcurrentPositions = 0 }, true},
		{"negative min entry interval", func(s *Settings) { s.SafeguardMinEntryIntervalMs = -1 }, true},
		{"zero max entries per tick", func(s *Settings) { s.SafeguardMaxEntriesPerTick = 0 }, true},
		{"zero reservation timeout", func(s *Settings) { s.SafeguardReservationTimeoutMs = 0 }, true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			settings := createValidSettings()
			tc.mutate(settings)

			err := validateSettings(settings)
			if tc.wantErr && err == nil {
				t.Error("Expected error for invalid safeguard settings")
			}
		})
	}
}
