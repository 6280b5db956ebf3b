package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config represents runtime configuration derived from environment variables.
type Config struct {
	Server     ServerConfig
	Logging    LoggingConfig
	Redis      RedisConfig
	OpenAI     OpenAIConfig
	Sheets     SheetsConfig
	Mail       MailConfig
	Auth       AuthConfig
	Newsletter NewsletterConfig
	Validation ValidationConfig
}

// ServerConfig holds HTTP server runtime parameters.
type ServerConfig struct {
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// LoggingConfig represents structured logging configuration.
type LoggingConfig struct {
	Level  slog.Level
	Format string
}

// RedisConfig holds connection parameters for the event store.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// OpenAIConfig holds the extraction model parameters.
type OpenAIConfig struct {
	APIKey      string
	Model       string
	Temperature float32
	MaxTokens   int
}

// SheetsConfig points at the operator spreadsheet. CredentialsJSON is the
// raw service-account key; publishing is disabled when either is empty.
type SheetsConfig struct {
	SpreadsheetID   string
	CredentialsJSON string
	SourceCacheTTL  time.Duration
}

// MailConfig holds the Resend notification settings. Notifications are
// disabled when APIKey or NotifyTo is empty.
type MailConfig struct {
	APIKey   string
	From     string
	NotifyTo string
}

// AuthConfig holds admin authentication parameters.
type AuthConfig struct {
	JWTSecret         string
	AdminPassword     string
	AdminPasswordHash string
	TokenDuration     time.Duration
}

// NewsletterConfig controls the inbound-email intake.
type NewsletterConfig struct {
	Alias string
}

// ValidationConfig overrides the eligibility keyword vocabularies. A nil
// slice keeps the built-in default list for that vocabulary.
type ValidationConfig struct {
	RegionAllow []string
	RegionDeny  []string
	Relevance   []string
}

const (
	defaultPort            = "8080"
	defaultReadTimeout     = 10 * time.Second
	defaultWriteTimeout    = 10 * time.Second
	defaultShutdownTimeout = 5 * time.Second

	defaultLogFormat = "json"

	defaultRedisAddr = "localhost:6379"

	defaultModel       = "gpt-4o-mini"
	defaultTemperature = 0.1
	defaultMaxTokens   = 4000

	defaultSourceCacheTTL = 5 * time.Minute

	defaultMailFrom = "radar@kinn.at"

	defaultTokenDuration   = 24 * time.Hour
	defaultNewsletterAlias = "radar"
)

// Load reads configuration from environment variables, applying defaults when
// values are not provided or invalid.
func Load() (Config, error) {
	// Cloud Run sets PORT, but allow SERVER_PORT override for local dev
	port := getEnv("PORT", "")
	if port == "" {
		port = getEnv("SERVER_PORT", defaultPort)
	}

	cfg := Config{
		Server: ServerConfig{
			Port:            port,
			ReadTimeout:     defaultReadTimeout,
			WriteTimeout:    defaultWriteTimeout,
			ShutdownTimeout: defaultShutdownTimeout,
		},
		Logging: LoggingConfig{
			Level:  slog.LevelInfo,
			Format: defaultLogFormat,
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", defaultRedisAddr),
			Password: os.Getenv("REDIS_PASSWORD"),
		},
		OpenAI: OpenAIConfig{
			APIKey:      os.Getenv("OPENAI_API_KEY"),
			Model:       getEnv("OPENAI_MODEL", defaultModel),
			Temperature: defaultTemperature,
			MaxTokens:   defaultMaxTokens,
		},
		Sheets: SheetsConfig{
			SpreadsheetID:   os.Getenv("RADAR_SHEET_ID"),
			CredentialsJSON: os.Getenv("GOOGLE_CREDENTIALS_JSON"),
			SourceCacheTTL:  defaultSourceCacheTTL,
		},
		Mail: MailConfig{
			APIKey:   os.Getenv("RESEND_API_KEY"),
			From:     getEnv("MAIL_FROM", defaultMailFrom),
			NotifyTo: os.Getenv("MAIL_NOTIFY_TO"),
		},
		Auth: AuthConfig{
			JWTSecret:         getEnv("ADMIN_JWT_SECRET", "change-this-secret"),
			AdminPassword:     getEnv("ADMIN_PASSWORD", "admin"),
			AdminPasswordHash: os.Getenv("ADMIN_PASSWORD_HASH"),
			TokenDuration:     defaultTokenDuration,
		},
		Newsletter: NewsletterConfig{
			Alias: getEnv("NEWSLETTER_ALIAS", defaultNewsletterAlias),
		},
		Validation: ValidationConfig{
			RegionAllow: parseList(os.Getenv("REGION_ALLOW")),
			RegionDeny:  parseList(os.Getenv("REGION_DENY")),
			Relevance:   parseList(os.Getenv("RELEVANCE_KEYWORDS")),
		},
	}

	if v := os.Getenv("SERVER_READ_TIMEOUT_SECONDS"); v != "" {
		d, err := parseSeconds(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid SERVER_READ_TIMEOUT_SECONDS: %w", err)
		}
		cfg.Server.ReadTimeout = d
	}

	if v := os.Getenv("SERVER_WRITE_TIMEOUT_SECONDS"); v != "" {
		d, err := parseSeconds(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid SERVER_WRITE_TIMEOUT_SECONDS: %w", err)
		}
		cfg.Server.WriteTimeout = d
	}

	if v := os.Getenv("SERVER_SHUTDOWN_TIMEOUT_SECONDS"); v != "" {
		d, err := parseSeconds(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid SERVER_SHUTDOWN_TIMEOUT_SECONDS: %w", err)
		}
		cfg.Server.ShutdownTimeout = d
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		level, err := parseLogLevel(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid LOG_LEVEL: %w", err)
		}
		cfg.Logging.Level = level
	}

	if v := os.Getenv("LOG_FORMAT"); v != "" {
		switch v {
		case "json", "text":
			cfg.Logging.Format = v
		default:
			return Config{}, fmt.Errorf("invalid LOG_FORMAT: must be 'json' or 'text'")
		}
	}

	if v := os.Getenv("REDIS_DB"); v != "" {
		db, err := strconv.Atoi(v)
		if err != nil || db < 0 {
			return Config{}, fmt.Errorf("invalid REDIS_DB: must be a non-negative integer")
		}
		cfg.Redis.DB = db
	}

	if v := os.Getenv("OPENAI_TEMPERATURE"); v != "" {
		f, err := strconv.ParseFloat(v, 32)
		if err != nil || f < 0 || f > 2 {
			return Config{}, fmt.Errorf("invalid OPENAI_TEMPERATURE: must be between 0 and 2")
		}
		cfg.OpenAI.Temperature = float32(f)
	}

	if v := os.Getenv("OPENAI_MAX_TOKENS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return Config{}, fmt.Errorf("invalid OPENAI_MAX_TOKENS: must be a positive integer")
		}
		cfg.OpenAI.MaxTokens = n
	}

	if v := os.Getenv("SOURCE_CACHE_TTL_SECONDS"); v != "" {
		d, err := parseSeconds(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid SOURCE_CACHE_TTL_SECONDS: %w", err)
		}
		cfg.Sheets.SourceCacheTTL = d
	}

	return cfg, nil
}

func parseSeconds(raw string) (time.Duration, error) {
	seconds, err := strconv.Atoi(raw)
	if err != nil || seconds < 0 {
		return 0, fmt.Errorf("must be a non-negative integer")
	}
	return time.Duration(seconds) * time.Second, nil
}

// parseList splits a comma-separated env value into lowercase trimmed
// terms; keyword matching is lowercase substring containment.
func parseList(raw string) []string {
	var terms []string
	for _, part := range strings.Split(raw, ",") {
		if term := strings.ToLower(strings.TrimSpace(part)); term != "" {
			terms = append(terms, term)
		}
	}
	return terms
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func parseLogLevel(raw string) (slog.Level, error) {
	switch raw {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("must be one of debug, info, warn, error")
	}
}
