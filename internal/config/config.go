package config

import (
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/rs/zerolog/log"
)

var knownWeakSecrets = []string{
	"change-me", "dev-secret-change-me", "secret", "admin", "password",
}

type Config struct {
	Port              int    `env:"PORT" envDefault:"8080"`
	AppEnv            string `env:"APP_ENV" envDefault:"development"`
	DatabaseURL       string `env:"DATABASE_URL,required"`
	RedisURL          string `env:"REDIS_URL,required"`
	LinkSigningSecret string `env:"LINK_SIGNING_SECRET" envDefault:"dev-secret-change-me"`
	AdminAPIKeyHash   string `env:"ADMIN_API_KEY_HASH"`
	EncryptionKey     string `env:"ENCRYPTION_KEY"`
	PublicBaseURL     string `env:"PUBLIC_BASE_URL" envDefault:""`
	LogLevel          string `env:"LOG_LEVEL" envDefault:"info"`

	// GatewayInsecureTLS skips certificate verification toward upstream
	// gateways. Self-signed gateway deployments are common; turn this off
	// when every upstream has a valid certificate.
	GatewayInsecureTLS      bool    `env:"GATEWAY_INSECURE_TLS" envDefault:"true"`
	EvolutionTimeoutSeconds int     `env:"EVOLUTION_TIMEOUT_SECONDS" envDefault:"30"`
	WuzapiTimeoutSeconds    int     `env:"WUZAPI_TIMEOUT_SECONDS" envDefault:"15"`
	GatewayRatePerSecond    float64 `env:"GATEWAY_RATE_PER_SECOND" envDefault:"10"`
	GatewayRateBurst        int     `env:"GATEWAY_RATE_BURST" envDefault:"5"`

	SyncConcurrency            int `env:"SYNC_CONCURRENCY" envDefault:"4"`
	LinkResolveRateLimit       int `env:"LINK_RESOLVE_RATE_LIMIT" envDefault:"30"`
	ServerProbeIntervalSeconds int `env:"SERVER_PROBE_INTERVAL_SECONDS" envDefault:"0"`
}

func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.AppEnv, "production")
}

func (c *Config) EvolutionTimeout() time.Duration {
	return time.Duration(c.EvolutionTimeoutSeconds) * time.Second
}

func (c *Config) WuzapiTimeout() time.Duration {
	return time.Duration(c.WuzapiTimeoutSeconds) * time.Second
}

// ServerProbeInterval is zero when the periodic server probe is disabled.
func (c *Config) ServerProbeInterval() time.Duration {
	if c.ServerProbeIntervalSeconds <= 0 {
		return 0
	}
	return time.Duration(c.ServerProbeIntervalSeconds) * time.Second
}

func (c *Config) Validate(isProduction bool) error {
	if c.AdminAPIKeyHash != "" {
		if !strings.HasPrefix(c.AdminAPIKeyHash, "$2a$") &&
			!strings.HasPrefix(c.AdminAPIKeyHash, "$2b$") &&
			!strings.HasPrefix(c.AdminAPIKeyHash, "$2y$") {
			return fmt.Errorf("ADMIN_API_KEY_HASH must be a bcrypt hash (generate with: go run scripts/hash-password.go <key>)")
		}
	}

	if c.EncryptionKey != "" {
		key, err := hex.DecodeString(c.EncryptionKey)
		if err != nil || len(key) != 32 {
			return fmt.Errorf("ENCRYPTION_KEY must be 64 hex characters")
		}
	}

	if c.EvolutionTimeoutSeconds <= 0 || c.WuzapiTimeoutSeconds <= 0 {
		return fmt.Errorf("gateway timeouts must be positive")
	}
	if c.SyncConcurrency <= 0 {
		return fmt.Errorf("SYNC_CONCURRENCY must be positive")
	}

	if isProduction {
		if err := validateSecret("LINK_SIGNING_SECRET", c.LinkSigningSecret); err != nil {
			return err
		}
		if c.AdminAPIKeyHash == "" {
			return fmt.Errorf("ADMIN_API_KEY_HASH is required in production")
		}

		if strings.HasPrefix(c.RedisURL, "redis://") {
			log.Warn().Msg("REDIS_URL uses redis:// (not TLS) in production: consider using rediss://")
		}
		if c.GatewayInsecureTLS {
			log.Warn().Msg("GATEWAY_INSECURE_TLS is enabled: upstream gateway certificates are not verified")
		}
	} else if c.AdminAPIKeyHash == "" {
		log.Warn().Msg("ADMIN_API_KEY_HASH is empty: admin routes are unauthenticated")
	}

	return nil
}

func validateSecret(name, value string) error {
	if len(value) < 32 {
		return fmt.Errorf("%s must be at least 32 characters in production (generate with: openssl rand -base64 32)", name)
	}
	for _, weak := range knownWeakSecrets {
		if value == weak {
			return fmt.Errorf("%s is a known weak default; set a strong secret in production", name)
		}
	}
	return nil
}

func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &cfg, nil
}
