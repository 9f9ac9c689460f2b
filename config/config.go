package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	JWT      JWTConfig
	Paymob   PaymobConfig
	Payment  PaymentConfig
}

type ServerConfig struct {
	Port         string
	Env          string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

type DatabaseConfig struct {
	DSN             string
	MaxIdleConns    int
	MaxOpenConns    int
	ConnMaxLifetime time.Duration
}

type JWTConfig struct {
	AccessSecret string
	AccessExpiry time.Duration
	Issuer       string
}

// PaymobConfig for Paymob Accept card checkout (auth token -> order -> payment key -> iframe).
type PaymobConfig struct {
	BaseURL       string
	APIKey        string
	IntegrationID int
	IframeID      int
	HMACSecret    string
	Timeout       time.Duration
}

type PaymentConfig struct {
	Currency string
	// AbandonAfter is how long a PENDING payment may sit without gateway
	// confirmation before the sweeper cancels it.
	AbandonAfter time.Duration
	// BackfillAfter is how long a PROCESSING payment may sit before the
	// backfill job asks the gateway what happened to it.
	BackfillAfter time.Duration
	// HardCleanupAfter is the outer bound: a PROCESSING payment the gateway
	// cannot account for past this window is failed outright.
	HardCleanupAfter time.Duration
	SweepInterval    time.Duration
}

func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         envOr("PORT", "8088"),
			Env:          envOr("APP_ENV", "development"),
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
		},
		Database: DatabaseConfig{
			DSN:             envOr("DATABASE_DSN", "coursely:coursely@tcp(localhost:3306)/coursely?charset=utf8mb4&parseTime=True&loc=Local"),
			MaxIdleConns:    10,
			MaxOpenConns:    100,
			ConnMaxLifetime: time.Hour,
		},
		JWT: JWTConfig{
			AccessSecret: envOr("JWT_ACCESS_SECRET", "change-me-in-production"),
			AccessExpiry: 24 * time.Hour,
			Issuer:       "coursely",
		},
		Paymob: PaymobConfig{
			BaseURL:       envOr("PAYMOB_BASE_URL", "https://accept.paymob.com"),
			APIKey:        os.Getenv("PAYMOB_API_KEY"),
			IntegrationID: envIntOr("PAYMOB_INTEGRATION_ID", 0),
			IframeID:      envIntOr("PAYMOB_IFRAME_ID", 0),
			HMACSecret:    os.Getenv("PAYMOB_HMAC_SECRET"),
			Timeout:       30 * time.Second,
		},
		Payment: PaymentConfig{
			Currency:         envOr("PAYMENT_CURRENCY", "EGP"),
			AbandonAfter:     30 * time.Minute,
			BackfillAfter:    5 * time.Minute,
			HardCleanupAfter: 24 * time.Hour,
			SweepInterval:    5 * time.Minute,
		},
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
