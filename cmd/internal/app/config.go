package app

import "time"

// Config contains all runtime configuration loaded from environment variables.
type Config struct {
	HTTPAddr  string
	LogLevel  string
	LogFormat string

	ReadHeaderTimeout time.Duration
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	MaxHeaderBytes    int

	DatabaseURL string
	DBMaxConns  int32
	DBMinConns  int32

	// If true:
	// - /readyz returns 503 unless DB is configured and reachable.
	ReadinessRequireDB bool

	// Security policy:
	// If true, APOLLO_TOKEN_HMAC_KEY MUST be set (>= 32 bytes) and at-rest
	// token hashing must be HMAC-based.
	RequireTokenHMAC bool

	// Dev bootstrap account, seeded at startup when both are set and the
	// username is not already registered.
	BootstrapUsername string
	BootstrapPassword string
}

// LoadConfig loads Config from environment variables with defaults.
func LoadConfig() Config {
	return Config{
		HTTPAddr:  EnvString("APOLLO_HTTP_ADDR", "0.0.0.0:8080"),
		LogLevel:  EnvString("APOLLO_LOG_LEVEL", "info"),
		LogFormat: EnvString("APOLLO_LOG_FORMAT", "json"),

		ReadHeaderTimeout: EnvDuration("APOLLO_HTTP_READ_HEADER_TIMEOUT", 5*time.Second),
		ReadTimeout:       EnvDuration("APOLLO_HTTP_READ_TIMEOUT", 15*time.Second),
		WriteTimeout:      EnvDuration("APOLLO_HTTP_WRITE_TIMEOUT", 15*time.Second),
		IdleTimeout:       EnvDuration("APOLLO_HTTP_IDLE_TIMEOUT", 60*time.Second),

		MaxHeaderBytes: EnvInt("APOLLO_HTTP_MAX_HEADER_BYTES", 1<<20),

		DatabaseURL: EnvString("APOLLO_DATABASE_URL", ""),
		DBMaxConns:  EnvInt32("APOLLO_DB_MAX_CONNS", 10),
		DBMinConns:  EnvInt32("APOLLO_DB_MIN_CONNS", 0),

		ReadinessRequireDB: EnvBool("APOLLO_READINESS_REQUIRE_DB", false),

		RequireTokenHMAC: EnvBool("APOLLO_REQUIRE_TOKEN_HMAC", false),

		BootstrapUsername: EnvString("APOLLO_BOOTSTRAP_USERNAME", ""),
		BootstrapPassword: EnvString("APOLLO_BOOTSTRAP_PASSWORD", ""),
	}
}
