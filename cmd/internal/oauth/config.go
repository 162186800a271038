package oauth

import (
	"os"
	"strconv"
	"time"
)

// Config holds the tunables of the token endpoints.
type Config struct {
	// MaxBodyBytes caps the form body of /oauth/token.
	MaxBodyBytes int64

	// DomainTokenTTL is the lifetime of tokens minted by
	// /api/v1/token/new.
	DomainTokenTTL time.Duration

	// DomainLoginURL is where the legacy bootstrap flow redirects an
	// unauthenticated browser.
	DomainLoginURL string
}

// DefaultConfig returns the built-in endpoint settings.
func DefaultConfig() Config {
	return Config{
		MaxBodyBytes:   64 << 10,
		DomainTokenTTL: 30 * 24 * time.Hour,
		DomainLoginURL: "/static/domainTokenLogin.html",
	}
}

// LoadConfigFromEnv reads endpoint settings from the environment,
// falling back to defaults for anything unset or unparsable.
func LoadConfigFromEnv() Config {
	cfg := DefaultConfig()

	if raw := os.Getenv("APOLLO_OAUTH_MAX_BODY_BYTES"); raw != "" {
		if n, err := strconv.ParseInt(raw, 10, 64); err == nil && n > 0 {
			cfg.MaxBodyBytes = n
		}
	}
	if raw := os.Getenv("APOLLO_DOMAIN_TOKEN_TTL_DAYS"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			cfg.DomainTokenTTL = time.Duration(n) * 24 * time.Hour
		}
	}
	if raw := os.Getenv("APOLLO_DOMAIN_LOGIN_URL"); raw != "" {
		cfg.DomainLoginURL = raw
	}

	return cfg
}
