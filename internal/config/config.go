// Package config reads responderbot settings from the environment. The CLI
// loads an optional .env file first, so everything here is plain env lookups.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// CORSConfig lists browser origins allowed to call the admin API. Empty
// allows every origin without credentials.
type CORSConfig struct {
	AllowedOrigins []string // CORS_ALLOWED_ORIGINS, comma separated
}

// SecurityConfig controls HSTS on the admin API.
type SecurityConfig struct {
	EnableHSTS bool          // ENABLE_HSTS
	HSTSMaxAge time.Duration // HSTS_MAX_AGE
}

// OTELConfig configures trace export.
type OTELConfig struct {
	Enabled     bool    // OTEL_ENABLED
	Endpoint    string  // OTEL_EXPORTER_OTLP_ENDPOINT, host:port
	Insecure    bool    // OTEL_EXPORTER_OTLP_INSECURE
	ServiceName string  // OTEL_SERVICE_NAME
	SampleRatio float64 // OTEL_TRACES_SAMPLER_ARG in [0,1]
}

// DatabaseConfig selects the rule store. URLs starting with postgres:// or
// postgresql:// use PostgreSQL; anything else is a SQLite file path.
type DatabaseConfig struct {
	URL string // DATABASE_URL, falling back to DB_PATH
	SSL bool   // DATABASE_SSL, PostgreSQL only
}

// SlackConfig holds Slack credentials.
type SlackConfig struct {
	BotToken      string // SLACK_BOT_TOKEN (xoxb-...)
	SigningSecret string // SLACK_SIGNING_SECRET
	APIURL        string // SLACK_API_URL, Web API override for tests and proxies
}

// BotConfig tunes matching and reply delivery.
type BotConfig struct {
	ReplyMode       string        // REPLY_MODE: thread|channel|update
	MatchTimeout    time.Duration // MATCH_TIMEOUT per pattern, 0 = unbounded
	DeliveryTimeout time.Duration // DELIVERY_TIMEOUT per reply
}

// Config is the full process configuration.
type Config struct {
	Port              string // PORT
	ReadTimeout       time.Duration
	ReadHeaderTimeout time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	MaxHeaderBytes    int
	GinMode           string // debug|release|test, anything else is release

	LogLevel       string // LOG_LEVEL, "warning" is accepted as warn
	LogPretty      bool   // LOG_PRETTY, console writer instead of JSON
	SwaggerEnabled bool   // SWAGGER_ENABLED
	APIBasePath    string // API_BASE_PATH, normalized to /x or /

	Database DatabaseConfig
	Slack    SlackConfig
	Bot      BotConfig

	RateRPS   float64 // RATE_RPS per operator or client IP
	RateBurst int     // RATE_BURST

	CORS     CORSConfig
	Security SecurityConfig

	// IdempotencyTTL is how long a create can be replayed by its key.
	IdempotencyTTL time.Duration

	OTEL OTELConfig
}

// Load reads the environment, applies defaults and validates the result.
// Malformed values are errors, not silent defaults, and every problem is
// reported in one joined error.
func Load() (Config, error) {
	var e env

	cfg := Config{
		Port:              e.str("PORT", "8080"),
		ReadTimeout:       e.dur("READ_TIMEOUT", 15*time.Second),
		ReadHeaderTimeout: e.dur("READ_HEADER_TIMEOUT", 10*time.Second),
		WriteTimeout:      e.dur("WRITE_TIMEOUT", 20*time.Second),
		IdleTimeout:       e.dur("IDLE_TIMEOUT", 60*time.Second),
		MaxHeaderBytes:    e.int("MAX_HEADER_BYTES", 1<<20),
		GinMode:           strings.ToLower(e.str("GIN_MODE", "release")),

		LogLevel:       strings.ToLower(e.str("LOG_LEVEL", "info")),
		LogPretty:      e.bool("LOG_PRETTY", false),
		SwaggerEnabled: e.bool("SWAGGER_ENABLED", false),
		APIBasePath:    normalizeBasePath(e.str("API_BASE_PATH", "/api/v1")),

		Database: DatabaseConfig{
			URL: strings.TrimSpace(e.str("DATABASE_URL", e.str("DB_PATH", "responders.db"))),
			SSL: e.bool("DATABASE_SSL", false),
		},
		Slack: SlackConfig{
			BotToken:      strings.TrimSpace(e.str("SLACK_BOT_TOKEN", "")),
			SigningSecret: strings.TrimSpace(e.str("SLACK_SIGNING_SECRET", "")),
			APIURL:        e.str("SLACK_API_URL", ""),
		},
		Bot: BotConfig{
			ReplyMode:       strings.ToLower(strings.TrimSpace(e.str("REPLY_MODE", "thread"))),
			MatchTimeout:    e.dur("MATCH_TIMEOUT", 250*time.Millisecond),
			DeliveryTimeout: e.dur("DELIVERY_TIMEOUT", 10*time.Second),
		},

		RateRPS:   e.float("RATE_RPS", 5),
		RateBurst: e.int("RATE_BURST", 10),

		CORS: CORSConfig{AllowedOrigins: e.list("CORS_ALLOWED_ORIGINS")},
		Security: SecurityConfig{
			EnableHSTS: e.bool("ENABLE_HSTS", false),
			HSTSMaxAge: e.dur("HSTS_MAX_AGE", 180*24*time.Hour),
		},

		IdempotencyTTL: e.dur("IDEMPOTENCY_TTL", 24*time.Hour),

		OTEL: OTELConfig{
			Enabled:     e.bool("OTEL_ENABLED", false),
			Endpoint:    e.str("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			Insecure:    e.bool("OTEL_EXPORTER_OTLP_INSECURE", true),
			ServiceName: e.str("OTEL_SERVICE_NAME", "responderbot"),
			SampleRatio: e.float("OTEL_TRACES_SAMPLER_ARG", 1),
		},
	}

	if cfg.LogLevel == "warning" {
		cfg.LogLevel = "warn"
	}
	switch cfg.GinMode {
	case "debug", "release", "test":
	default:
		cfg.GinMode = "release"
	}

	errs := append(e.errs, cfg.validate()...)
	return cfg, errors.Join(errs...)
}

func (cfg Config) validate() []error {
	var errs []error
	check := func(bad bool, format string, args ...any) {
		if bad {
			errs = append(errs, fmt.Errorf(format, args...))
		}
	}

	switch cfg.LogLevel {
	case "debug", "info", "warn", "error", "fatal", "panic":
	default:
		errs = append(errs, fmt.Errorf("LOG_LEVEL %q: want debug, info, warn, error, fatal or panic", cfg.LogLevel))
	}
	switch cfg.Bot.ReplyMode {
	case "thread", "channel", "update":
	default:
		errs = append(errs, fmt.Errorf("REPLY_MODE %q: want thread, channel or update", cfg.Bot.ReplyMode))
	}

	check(strings.TrimSpace(cfg.Port) == "", "PORT must not be empty")
	check(cfg.ReadTimeout <= 0 || cfg.ReadHeaderTimeout <= 0 || cfg.WriteTimeout <= 0 || cfg.IdleTimeout <= 0,
		"server timeouts must be positive")
	check(cfg.MaxHeaderBytes <= 0, "MAX_HEADER_BYTES must be > 0")
	check(cfg.Database.URL == "", "DATABASE_URL must not be empty")
	check(cfg.Bot.MatchTimeout < 0, "MATCH_TIMEOUT must be >= 0")
	check(cfg.Bot.DeliveryTimeout <= 0, "DELIVERY_TIMEOUT must be > 0")
	check(cfg.RateRPS < 0, "RATE_RPS must be >= 0")
	check(cfg.RateBurst < 1, "RATE_BURST must be >= 1")
	check(cfg.Security.HSTSMaxAge < 0, "HSTS_MAX_AGE must be >= 0")
	check(cfg.IdempotencyTTL <= 0, "IDEMPOTENCY_TTL must be > 0")
	check(cfg.OTEL.SampleRatio < 0 || cfg.OTEL.SampleRatio > 1, "OTEL_TRACES_SAMPLER_ARG must be in [0,1]")
	return errs
}

// RequireSlack fails unless both Slack credentials are set. Only serve needs
// them; the rule commands run without.
func (cfg Config) RequireSlack() error {
	var errs []error
	if cfg.Slack.BotToken == "" {
		errs = append(errs, errors.New("SLACK_BOT_TOKEN must be set"))
	}
	if cfg.Slack.SigningSecret == "" {
		errs = append(errs, errors.New("SLACK_SIGNING_SECRET must be set"))
	}
	return errors.Join(errs...)
}

// normalizeBasePath returns "/" for blank input, else p with a leading slash
// and no trailing one.
func normalizeBasePath(p string) string {
	p = strings.Trim(strings.TrimSpace(p), "/")
	if p == "" {
		return "/"
	}
	return "/" + p
}
