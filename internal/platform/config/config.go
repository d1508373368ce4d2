package config

import (
	"fmt"
	"net/netip"
	"os"
	"strconv"
	"strings"
	"time"

	"tfc/pkg/platform/middleware/metadata"
	tfcstrings "tfc/pkg/platform/strings"
)

// DevSessionSecret is used only in development when SESSION_SECRET is unset.
const DevSessionSecret = "dev-secret-change-me"

// EnvDevelopment is the only mode that enables dev login and the dev secret.
// Any other value, including an unset environment, runs as production.
const EnvDevelopment = "development"

// User store backends.
const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
	StoreRedis    = "redis"
)

// Server captures everything main needs to wire the service.
type Server struct {
	Addr        string
	Environment string
	Production  bool

	// BotToken and SessionSecret may be empty; handlers then answer 500
	// naming the missing secret instead of the process refusing to start.
	BotToken             string
	SessionSecret        string
	SessionSecretFromDev bool

	AdminTelegramIDs []int64
	MaxAuthAge       time.Duration

	UserStore string
	Database  DatabaseConfig
	Redis     RedisConfig

	LoginRate      RateConfig
	TrustedProxies []netip.Prefix
	AuditCapacity  int
	Log            LogConfig
}

// DatabaseConfig selects the PostgreSQL connection and driver.
type DatabaseConfig struct {
	URL    string
	Driver string // "postgres" (lib/pq) or "pgx"
}

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// RateConfig bounds login attempts per client IP.
type RateConfig struct {
	PerMinute int
	Burst     int
}

// LogConfig selects slog level and handler.
type LogConfig struct {
	Level  string
	Format string
}

// FromEnv builds a Server config from environment variables so main stays lean.
func FromEnv() (Server, error) {
	env := strings.ToLower(firstNonEmpty(os.Getenv("APP_ENV"), os.Getenv("NODE_ENV"), "production"))
	cfg := Server{
		Addr:        firstNonEmpty(os.Getenv("TFC_ADDR"), ":8080"),
		Environment: env,
		Production:  env != EnvDevelopment,
		BotToken:    os.Getenv("TELEGRAM_BOT_TOKEN"),
		UserStore:   strings.ToLower(firstNonEmpty(os.Getenv("USER_STORE"), StoreMemory)),
		Database: DatabaseConfig{
			URL:    os.Getenv("DATABASE_URL"),
			Driver: strings.ToLower(firstNonEmpty(os.Getenv("DATABASE_DRIVER"), "postgres")),
		},
		Redis: RedisConfig{
			URL:          os.Getenv("REDIS_URL"),
			PoolSize:     10,
			MinIdleConns: 2,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		},
		Log: LogConfig{
			Level:  os.Getenv("LOG_LEVEL"),
			Format: os.Getenv("LOG_FORMAT"),
		},
	}

	cfg.SessionSecret = os.Getenv("SESSION_SECRET")
	if cfg.SessionSecret == "" && !cfg.Production {
		cfg.SessionSecret = DevSessionSecret
		cfg.SessionSecretFromDev = true
	}

	ids, err := ParseAdminIDs(os.Getenv("ADMIN_TELEGRAM_IDS"))
	if err != nil {
		return Server{}, err
	}
	cfg.AdminTelegramIDs = ids

	if cfg.TrustedProxies, err = metadata.ParseTrustedProxies(tfcstrings.SplitList(os.Getenv("TRUSTED_PROXIES"))); err != nil {
		return Server{}, fmt.Errorf("TRUSTED_PROXIES: %w", err)
	}
	if cfg.MaxAuthAge, err = parseDuration("TELEGRAM_AUTH_MAX_AGE", 24*time.Hour); err != nil {
		return Server{}, err
	}
	if cfg.LoginRate.PerMinute, err = parsePositiveInt("LOGIN_RATE_PER_MINUTE", 20); err != nil {
		return Server{}, err
	}
	if cfg.LoginRate.Burst, err = parsePositiveInt("LOGIN_RATE_BURST", 10); err != nil {
		return Server{}, err
	}
	if cfg.AuditCapacity, err = parsePositiveInt("AUDIT_BUFFER_SIZE", 1000); err != nil {
		return Server{}, err
	}

	switch cfg.UserStore {
	case StoreMemory:
	case StorePostgres:
		if cfg.Database.URL == "" {
			return Server{}, fmt.Errorf("USER_STORE=postgres requires DATABASE_URL")
		}
	case StoreRedis:
		if cfg.Redis.URL == "" {
			return Server{}, fmt.Errorf("USER_STORE=redis requires REDIS_URL")
		}
	default:
		return Server{}, fmt.Errorf("USER_STORE must be memory, postgres or redis, got %q", cfg.UserStore)
	}
	if cfg.Database.Driver != "postgres" && cfg.Database.Driver != "pgx" {
		return Server{}, fmt.Errorf("DATABASE_DRIVER must be postgres or pgx, got %q", cfg.Database.Driver)
	}

	return cfg, nil
}

// ParseAdminIDs parses a comma separated list of Telegram ids. An entry that
// is not a positive integer is an error so a typo cannot silently drop an admin.
func ParseAdminIDs(raw string) ([]int64, error) {
	entries := tfcstrings.SplitList(raw)
	ids := make([]int64, 0, len(entries))
	for _, e := range entries {
		id, err := strconv.ParseInt(e, 10, 64)
		if err != nil || id <= 0 {
			return nil, fmt.Errorf("ADMIN_TELEGRAM_IDS: invalid telegram id %q", e)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// parseDuration accepts Go durations ("36h") or whole seconds ("86400").
func parseDuration(key string, def time.Duration) (time.Duration, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def, nil
	}
	if secs, err := strconv.Atoi(raw); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("%s: invalid duration %q", key, raw)
	}
	return d, nil
}

func parsePositiveInt(key string, def int) (int, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("%s: must be a positive integer, got %q", key, raw)
	}
	return n, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
