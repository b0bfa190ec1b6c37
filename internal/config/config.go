package config

import (
	"os"
	"strconv"
	"time"
)

type ProviderConfig struct {
	Enabled bool
	Secret  string
	BaseURL string
}

type Config struct {
	AppPort         string
	SQLiteDSN       string
	AuditFile       string
	PrimaryProvider string
	GatewayTimeout  time.Duration
	ReplayWindow    time.Duration

	Paystack    ProviderConfig
	Flutterwave ProviderConfig

	// Fee overrides as decimal strings, e.g. "2000.00". Empty means
	// the built-in schedule applies.
	ApplicationFee string
	AcceptanceFee  string
	TuitionFee     string
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

func getSeconds(key string, def int64) time.Duration {
	n := def
	if v := os.Getenv(key); v != "" {
		if p, err := strconv.ParseInt(v, 10, 64); err == nil {
			n = p
		}
	}
	return time.Duration(n) * time.Second
}

func Load() Config {
	return Config{
		AppPort:         getenv("APP_PORT", "8080"),
		SQLiteDSN:       getenv("SQLITE_DSN", "./out/portal.db"),
		AuditFile:       getenv("AUDIT_FILE", "./out/audit.jsonl"),
		PrimaryProvider: getenv("PRIMARY_PROVIDER", "paystack"),
		GatewayTimeout:  getSeconds("GATEWAY_TIMEOUT_SECONDS", 10),
		ReplayWindow:    getSeconds("REPLAY_WINDOW_SECONDS", 300),
		Paystack: ProviderConfig{
			Enabled: getBool("PAYSTACK_ENABLED", true),
			Secret:  getenv("PAYSTACK_SECRET", "sk_test_paystack"),
			BaseURL: getenv("PAYSTACK_BASE_URL", "https://api.paystack.co"),
		},
		Flutterwave: ProviderConfig{
			Enabled: getBool("FLUTTERWAVE_ENABLED", true),
			Secret:  getenv("FLUTTERWAVE_SECRET", "sk_test_flutterwave"),
			BaseURL: getenv("FLUTTERWAVE_BASE_URL", "https://api.flutterwave.com/v3"),
		},
		ApplicationFee: os.Getenv("APPLICATION_FEE"),
		AcceptanceFee:  os.Getenv("ACCEPTANCE_FEE"),
		TuitionFee:     os.Getenv("TUITION_FEE"),
	}
}
