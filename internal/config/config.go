package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/pflag"
)

const (
	defaultAppName          = "CryptoEarn"
	defaultAppEnv           = "development"
	defaultPort             = "3001"
	defaultLogLevel         = "info"
	defaultShutdownDelay    = 10 * time.Second
	defaultIdempotencyTTL   = 24 * time.Hour
	defaultTokenTTL         = 24 * time.Hour
	defaultSettlementDelay  = 5 * time.Second
	defaultPriceInterval    = 30 * time.Second
	defaultLoginPerMinute   = 5
	defaultJWTIssuer        = "cryptoearn"
	devJWTSecret            = "dev-secret-change-in-production"
	idemTTLSecondsEnvVar    = "IDEMPOTENCY_TTL_SECONDS"
	idemTTLDurEnvVar        = "IDEMPOTENCY_TTL"
	shutdownSecondsEnvVar   = "SHUTDOWN_TIMEOUT_SECONDS"
	shutdownDurationEnvVar  = "SHUTDOWN_TIMEOUT"
	tokenTTLSecondsEnvVar   = "TOKEN_TTL_SECONDS"
	tokenTTLDurEnvVar       = "TOKEN_TTL"
	settleSecondsEnvVar     = "SETTLEMENT_DELAY_SECONDS"
	settleDurEnvVar         = "SETTLEMENT_DELAY"
	priceSecondsEnvVar      = "PRICE_TICK_SECONDS"
	priceDurEnvVar          = "PRICE_TICK"
	cooldownEnforcedEnvVar  = "REWARD_COOLDOWN_ENFORCED"
	methodBoundsEnvVar      = "REWARD_ENFORCE_METHOD_BOUNDS"
	loginPerMinuteEnvVar    = "LOGIN_RATE_PER_MINUTE"
	rewardMethodsFileEnvVar = "REWARD_METHODS_FILE"
)

// Config captures application runtime configuration loaded from environment variables
// and optional command-line overrides.
type Config struct {
	AppName        string
	AppEnv         string
	Port           string
	LogLevel       string
	DatabaseURL    string
	RedisURL       string
	ShutdownPeriod time.Duration
	IdempotencyTTL time.Duration

	JWTSecret string
	JWTIssuer string
	TokenTTL  time.Duration

	SettlementDelay     time.Duration
	PriceTickInterval   time.Duration
	CooldownEnforced    bool
	EnforceMethodBounds bool
	RewardMethodsFile   string
	LoginPerMinute      int
}

// Load reads configuration values from the environment, applies flag overrides from
// args (typically os.Args[1:]) and validates the result.
func Load(args []string) (Config, error) {
	cfg := Config{
		AppName:           getEnv("APP_NAME", defaultAppName),
		AppEnv:            getEnv("APP_ENV", defaultAppEnv),
		Port:              getEnv("PORT", defaultPort),
		LogLevel:          strings.ToLower(getEnv("LOG_LEVEL", defaultLogLevel)),
		DatabaseURL:       os.Getenv("DATABASE_URL"),
		RedisURL:          os.Getenv("REDIS_URL"),
		JWTSecret:         os.Getenv("JWT_SECRET"),
		JWTIssuer:         getEnv("JWT_ISSUER", defaultJWTIssuer),
		RewardMethodsFile: os.Getenv(rewardMethodsFileEnvVar),
		CooldownEnforced:  true,
		LoginPerMinute:    defaultLoginPerMinute,
	}

	var err error
	if cfg.ShutdownPeriod, err = durationEnv(shutdownSecondsEnvVar, shutdownDurationEnvVar, defaultShutdownDelay); err != nil {
		return Config{}, err
	}
	if cfg.IdempotencyTTL, err = durationEnv(idemTTLSecondsEnvVar, idemTTLDurEnvVar, defaultIdempotencyTTL); err != nil {
		return Config{}, err
	}
	if cfg.TokenTTL, err = durationEnv(tokenTTLSecondsEnvVar, tokenTTLDurEnvVar, defaultTokenTTL); err != nil {
		return Config{}, err
	}
	if cfg.SettlementDelay, err = durationEnv(settleSecondsEnvVar, settleDurEnvVar, defaultSettlementDelay); err != nil {
		return Config{}, err
	}
	if cfg.PriceTickInterval, err = durationEnv(priceSecondsEnvVar, priceDurEnvVar, defaultPriceInterval); err != nil {
		return Config{}, err
	}

	if v := os.Getenv(cooldownEnforcedEnvVar); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid %s: %w", cooldownEnforcedEnvVar, err)
		}
		cfg.CooldownEnforced = b
	}
	if v := os.Getenv(methodBoundsEnvVar); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid %s: %w", methodBoundsEnvVar, err)
		}
		cfg.EnforceMethodBounds = b
	}
	if v := os.Getenv(loginPerMinuteEnvVar); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid %s: %w", loginPerMinuteEnvVar, err)
		}
		cfg.LoginPerMinute = n
	}

	fs := pflag.NewFlagSet("cryptoearn", pflag.ContinueOnError)
	fs.StringVar(&cfg.Port, "port", cfg.Port, "HTTP listen port")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level (debug, info, warn, error)")
	fs.StringVar(&cfg.RewardMethodsFile, "methods", cfg.RewardMethodsFile, "YAML file overriding the reward method table")
	fs.DurationVar(&cfg.SettlementDelay, "settlement-delay", cfg.SettlementDelay, "delay before a pending withdrawal settles")
	fs.BoolVar(&cfg.CooldownEnforced, "enforce-cooldown", cfg.CooldownEnforced, "reject reward claims while the method is cooling down")
	if err := fs.Parse(args); err != nil {
		return Config{}, fmt.Errorf("parse flags: %w", err)
	}

	if cfg.JWTSecret == "" {
		if !cfg.IsDev() {
			return Config{}, fmt.Errorf("JWT_SECRET must be set when APP_ENV=%s", cfg.AppEnv)
		}
		cfg.JWTSecret = devJWTSecret
	}
	if cfg.SettlementDelay < 0 {
		return Config{}, fmt.Errorf("settlement delay must not be negative")
	}
	if cfg.PriceTickInterval <= 0 {
		return Config{}, fmt.Errorf("price tick interval must be positive")
	}

	return cfg, nil
}

// Address returns the listen address in the format Fiber expects.
func (c Config) Address() string {
	if strings.HasPrefix(c.Port, ":") {
		return c.Port
	}
	return fmt.Sprintf(":%s", c.Port)
}

// IsDev reports whether the app runs in a local development environment, where
// Postgres and Redis are optional and in-memory backends are used instead.
func (c Config) IsDev() bool {
	switch strings.ToLower(c.AppEnv) {
	case "dev", "development", "local", "test":
		return true
	default:
		return false
	}
}

func durationEnv(secondsKey, durationKey string, fallback time.Duration) (time.Duration, error) {
	if v := os.Getenv(secondsKey); v != "" {
		seconds, err := strconv.Atoi(v)
		if err != nil {
			return 0, fmt.Errorf("invalid %s: %w", secondsKey, err)
		}
		return time.Duration(seconds) * time.Second, nil
	}
	if v := os.Getenv(durationKey); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return 0, fmt.Errorf("invalid %s: %w", durationKey, err)
		}
		return d, nil
	}
	return fallback, nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
