// Package config provides application configuration.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// NotSet is the placeholder value used by deployments for unset secrets.
const NotSet = "not_set"

// Store drivers.
const (
	StoreMemory = "memory"
	StoreSQLite = "sqlite"
	StoreRedis  = "redis"
)

// Config holds all application configuration.
type Config struct {
	Port           string
	StoreDriver    string
	DBPath         string
	Redis          RedisConfig
	CatalogPath    string // empty = embedded default catalog
	Environment    string // declared runtime (K8S_ENV), empty = detect
	VaultAddr      string
	AllowedOrigins []string
	Challenges     ChallengeConfig
	CTF            CTFConfig
	RateLimit      RateLimitConfig
	Timeout        TimeoutConfig
}

// RedisConfig configures the Redis scorecard store.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// ChallengeConfig holds the process-wide challenge presentation flags.
type ChallengeConfig struct {
	HintsEnabled    bool
	ReasonEnabled   bool
	SpoilingEnabled bool
}

// CTFConfig controls competition mode.
type CTFConfig struct {
	Enabled       bool
	Key           string
	HostValue     string
	ServerAddress string
	ServerTimeout time.Duration
}

// RateLimitConfig limits answer submissions per client.
type RateLimitConfig struct {
	SubmitsPerSecond float64
	Burst            int
}

// TimeoutConfig holds request-scoped timeouts.
type TimeoutConfig struct {
	HealthCheck time.Duration
	Shutdown    time.Duration
}

// Load reads configuration from environment variables.
// Challenge properties are accepted both under their property name and in
// upper case, e.g. hints_enabled and HINTS_ENABLED.
func Load() (*Config, error) {
	cfg := &Config{
		Port:        getEnv("PORT", "8080"),
		StoreDriver: strings.ToLower(getEnv("STORE_DRIVER", StoreSQLite)),
		DBPath:      getEnv("DB_PATH", "./data/scorecard.db"),
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		CatalogPath:    getEnv("CATALOG_PATH", ""),
		Environment:    getEnv("K8S_ENV", ""),
		VaultAddr:      getEnv("VAULT_ADDR", ""),
		AllowedOrigins: splitList(getEnv("ALLOWED_ORIGINS", "*")),
		Challenges: ChallengeConfig{
			HintsEnabled:    getEnvBool("hints_enabled", true),
			ReasonEnabled:   getEnvBool("reason_enabled", true),
			SpoilingEnabled: getEnvBool("spoiling_enabled", true),
		},
		CTF: CTFConfig{
			Enabled:       getEnvBool("ctf_enabled", false),
			Key:           getEnv("ctf_key", "TRwzkRJnHOTckssAeyJbysWgP!Qc2T"),
			HostValue:     getEnv("challenge_acht_ctf_to_provide_to_host_value", NotSet),
			ServerAddress: getEnv("CTF_SERVER_ADDRESS", NotSet),
			ServerTimeout: getEnvDuration("CTF_SERVER_TIMEOUT", 3*time.Second),
		},
		RateLimit: RateLimitConfig{
			SubmitsPerSecond: getEnvFloat("SUBMIT_RATE_LIMIT", 5),
			Burst:            getEnvInt("SUBMIT_BURST", 10),
		},
		Timeout: TimeoutConfig{
			HealthCheck: getEnvDuration("HEALTH_CHECK_TIMEOUT", 5*time.Second),
			Shutdown:    getEnvDuration("SHUTDOWN_TIMEOUT", 10*time.Second),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required configuration fields are set.
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT cannot be empty")
	}
	switch c.StoreDriver {
	case StoreMemory:
	case StoreSQLite:
		if c.DBPath == "" {
			return fmt.Errorf("DB_PATH cannot be empty")
		}
	case StoreRedis:
		if c.Redis.Addr == "" {
			return fmt.Errorf("REDIS_ADDR cannot be empty")
		}
	default:
		return fmt.Errorf("STORE_DRIVER must be one of memory, sqlite, redis; got %q", c.StoreDriver)
	}
	if c.CTF.Enabled && c.CTF.Key == "" {
		return fmt.Errorf("ctf_key cannot be empty when ctf_enabled is set")
	}
	if c.CTF.ServerTimeout <= 0 {
		return fmt.Errorf("CTF_SERVER_TIMEOUT must be > 0")
	}
	if c.RateLimit.SubmitsPerSecond <= 0 {
		return fmt.Errorf("SUBMIT_RATE_LIMIT must be > 0")
	}
	if c.RateLimit.Burst <= 0 {
		return fmt.Errorf("SUBMIT_BURST must be > 0")
	}
	return nil
}

// CTFServerConfigured reports whether a remote CTF validation host is set.
func (c *CTFConfig) CTFServerConfigured() bool {
	return IsSet(c.ServerAddress)
}

// HostValueConfigured reports whether a host value was provided.
func (c *CTFConfig) HostValueConfigured() bool {
	return IsSet(c.HostValue)
}

// IsSet reports whether v carries a real value.
func IsSet(v string) bool {
	v = strings.TrimSpace(v)
	return v != "" && v != NotSet
}

// lookupEnv checks the key as given and then its upper-case form.
func lookupEnv(key string) (string, bool) {
	if value, ok := os.LookupEnv(key); ok {
		return value, true
	}
	if upper := strings.ToUpper(key); upper != key {
		return os.LookupEnv(upper)
	}
	return "", false
}

func getEnv(key, fallback string) string {
	if value, ok := lookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	value, ok := lookupEnv(key)
	if !ok {
		return fallback
	}
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

func getEnvInt(key string, fallback int) int {
	value, ok := lookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}

func getEnvFloat(key string, fallback float64) float64 {
	value, ok := lookupEnv(key)
	if !ok {
		return fallback
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return fallback
	}
	return f
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, ok := lookupEnv(key)
	if !ok {
		return fallback
	}
	d, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return d
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// IsContainer returns true if running inside a Docker container.
func IsContainer() bool {
	if os.Getenv("CONTAINER") == "true" {
		return true
	}
	// Check for .dockerenv file
	if _, err := os.Stat("/.dockerenv"); err == nil {
		return true
	}
	return false
}
