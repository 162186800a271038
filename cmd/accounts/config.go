package accounts

import (
	"os"
	"strconv"
	"time"
)

// Config defines the runtime token-lifetime policy for the accounts service.
type Config struct {
	// AccessTokenTTL is the default lifetime stamped on freshly issued
	// tokens (password grant and refresh rotation).
	AccessTokenTTL time.Duration

	// TokenBytes is the number of random bytes behind each opaque access and
	// refresh string.
	TokenBytes int
}

// DefaultConfig returns defaults matching the directory server's historical
// behavior: day-scale interactive tokens with 32 bytes of entropy.
func DefaultConfig() Config {
	return Config{
		AccessTokenTTL: 24 * time.Hour,
		TokenBytes:     32,
	}
}

// LoadConfigFromEnv loads the token policy from environment variables.
//
// Optional:
//   - APOLLO_ACCESS_TOKEN_TTL (Go duration string)
//   - APOLLO_TOKEN_BYTES (16..64)
//
// Returns ErrConfig if a set variable is invalid.
func LoadConfigFromEnv() (Config, error) {
	cfg := DefaultConfig()

	if v := os.Getenv("APOLLO_ACCESS_TOKEN_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return Config{}, ErrConfig
		}
		cfg.AccessTokenTTL = d
	}

	if v := os.Getenv("APOLLO_TOKEN_BYTES"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 16 || n > 64 {
			return Config{}, ErrConfig
		}
		cfg.TokenBytes = n
	}

	return cfg, nil
}
