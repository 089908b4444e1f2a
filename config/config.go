package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/learnhub/learnhub-core/internal/domain/stats"
	"github.com/learnhub/learnhub-core/internal/infrastructure/persistence/postgres"
	"github.com/learnhub/learnhub-core/internal/infrastructure/persistence/redis"
	"github.com/learnhub/learnhub-core/pkg/logger"
	"github.com/learnhub/learnhub-core/pkg/timeutil"
)

// Environment represents the application environment.
type Environment string

const (
	EnvDevelopment Environment = "development"
	EnvStaging     Environment = "staging"
	EnvProduction  Environment = "production"
)

// Config holds all application configuration.
type Config struct {
	App           AppConfig
	Database      DatabaseConfig
	Redis         RedisConfig
	HTTP          HTTPConfig
	Scheduler     SchedulerConfig
	Stats         StatsConfig
	EventBus      EventBusConfig
	Features      *FeatureFlags
	Observability ObservabilityConfig
}

// AppConfig holds general application settings.
type AppConfig struct {
	Name        string
	Environment Environment
	Debug       bool
	Version     string

	// Timezone for the cron scheduler.
	Timezone string
	Location *time.Location

	// Graceful shutdown timeout
	ShutdownTimeout time.Duration
}

// DatabaseConfig holds PostgreSQL settings.
type DatabaseConfig struct {
	URL      string
	Host     string
	Port     int
	Name     string
	User     string
	Password string
	SSLMode  string

	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
	ConnectTimeout  time.Duration

	// StartupAttempts bounds connection attempts while the database comes up.
	StartupAttempts int
	AutoMigrate     bool
}

// RedisConfig holds Redis settings. Redis is optional: when disabled the
// stats cache and the Redis event bus are not used.
type RedisConfig struct {
	Disabled bool
	Host     string
	Port     int
	Password string
	DB       int
	PoolSize int
}

// HTTPConfig holds the API server settings.
type HTTPConfig struct {
	Host           string
	Port           int
	RequestTimeout time.Duration
	BodyLimit      int
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
}

// SchedulerConfig holds worker scheduler settings.
type SchedulerConfig struct {
	Enabled bool

	// RefreshCron schedules the course stats refresh. Any robfig/cron
	// standard spec or descriptor is accepted.
	RefreshCron string

	JobTimeout time.Duration
	LockTTL    time.Duration

	// RefreshOverlap widens every activity lookup backwards.
	RefreshOverlap time.Duration
}

// StatsConfig controls dashboard aggregation.
type StatsConfig struct {
	Timezone       string
	Location       *time.Location
	RevenueMonths  int
	WindowDays     int
	CacheTTL       time.Duration
	CountDropped   bool
	CountSuspended bool
}

// EventBusConfig selects and tunes the event bus.
type EventBusConfig struct {
	// Driver is "memory" or "redis".
	Driver       string
	Async        bool
	Workers      int
	RedisChannel string
}

// ObservabilityConfig holds logging settings.
type ObservabilityConfig struct {
	LogLevel  string
	LogFormat string
}

// Load loads configuration from environment variables. In development a
// .env file in the working directory is read first; variables already set
// in the environment win.
func Load() (*Config, error) {
	if err := loadDotEnv(); err != nil {
		return nil, fmt.Errorf("dotenv: %w", err)
	}

	cfg := &Config{}
	cfg.App = loadAppConfig()

	var err error
	cfg.Database, err = loadDatabaseConfig()
	if err != nil {
		return nil, fmt.Errorf("database config: %w", err)
	}

	cfg.Redis = loadRedisConfig()
	cfg.HTTP = loadHTTPConfig()
	cfg.Scheduler = loadSchedulerConfig()

	cfg.Stats, err = loadStatsConfig()
	if err != nil {
		return nil, fmt.Errorf("stats config: %w", err)
	}

	cfg.EventBus = loadEventBusConfig(cfg.Redis)
	cfg.Features = LoadFeatureFlags()
	cfg.Observability = loadObservabilityConfig(cfg.App)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

func loadDotEnv() error {
	if Environment(getEnv("APP_ENV", string(EnvDevelopment))) != EnvDevelopment {
		return nil
	}
	path := getEnv("DOTENV_PATH", ".env")
	err := godotenv.Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

func loadAppConfig() AppConfig {
	env := Environment(getEnv("APP_ENV", "development"))
	timezone := getEnv("APP_TIMEZONE", "UTC")

	loc, err := timeutil.LoadLocation(timezone)
	if err != nil {
		loc = time.UTC
	}

	return AppConfig{
		Name:            getEnv("APP_NAME", "learnhub-core"),
		Environment:     env,
		Debug:           env == EnvDevelopment || getEnvBool("APP_DEBUG", false),
		Version:         getEnv("APP_VERSION", "0.1.0"),
		Timezone:        timezone,
		Location:        loc,
		ShutdownTimeout: getEnvDuration("APP_SHUTDOWN_TIMEOUT", 30*time.Second),
	}
}

func loadDatabaseConfig() (DatabaseConfig, error) {
	def := postgres.DefaultConfig()

	port, err := strconv.Atoi(getEnv("DB_PORT", strconv.Itoa(def.Port)))
	if err != nil {
		return DatabaseConfig{}, fmt.Errorf("invalid DB_PORT: %w", err)
	}

	return DatabaseConfig{
		URL:             getEnv("DATABASE_URL", ""),
		Host:            getEnv("DB_HOST", def.Host),
		Port:            port,
		Name:            getEnv("DB_NAME", def.Database),
		User:            getEnv("DB_USER", def.User),
		Password:        getEnv("DB_PASSWORD", ""),
		SSLMode:         getEnv("DB_SSLMODE", def.SSLMode),
		MaxConns:        int32(getEnvInt("DB_MAX_CONNS", int(def.MaxConns))),
		MinConns:        int32(getEnvInt("DB_MIN_CONNS", int(def.MinConns))),
		MaxConnLifetime: getEnvDuration("DB_MAX_CONN_LIFETIME", def.MaxConnLifetime),
		MaxConnIdleTime: getEnvDuration("DB_MAX_CONN_IDLE_TIME", def.MaxConnIdleTime),
		ConnectTimeout:  getEnvDuration("DB_CONNECT_TIMEOUT", def.ConnectTimeout),
		StartupAttempts: getEnvInt("DB_STARTUP_ATTEMPTS", 5),
		AutoMigrate:     getEnvBool("DB_AUTO_MIGRATE", true),
	}, nil
}

func loadRedisConfig() RedisConfig {
	return RedisConfig{
		Disabled: getEnvBool("REDIS_DISABLED", false),
		Host:     getEnv("REDIS_HOST", "localhost"),
		Port:     getEnvInt("REDIS_PORT", 6379),
		Password: getEnv("REDIS_PASSWORD", ""),
		DB:       getEnvInt("REDIS_DB", 0),
		PoolSize: getEnvInt("REDIS_POOL_SIZE", 10),
	}
}

func loadHTTPConfig() HTTPConfig {
	return HTTPConfig{
		Host:           getEnv("HTTP_HOST", "0.0.0.0"),
		Port:           getEnvInt("HTTP_PORT", 8080),
		RequestTimeout: getEnvDuration("HTTP_REQUEST_TIMEOUT", 10*time.Second),
		BodyLimit:      getEnvInt("HTTP_BODY_LIMIT", 1<<20),
		ReadTimeout:    getEnvDuration("HTTP_READ_TIMEOUT", 15*time.Second),
		WriteTimeout:   getEnvDuration("HTTP_WRITE_TIMEOUT", 15*time.Second),
	}
}

func loadSchedulerConfig() SchedulerConfig {
	return SchedulerConfig{
		Enabled:        getEnvBool("SCHEDULER_ENABLED", true),
		RefreshCron:    getEnv("SCHEDULER_REFRESH_CRON", "@every 10m"),
		JobTimeout:     getEnvDuration("SCHEDULER_JOB_TIMEOUT", 5*time.Minute),
		LockTTL:        getEnvDuration("SCHEDULER_LOCK_TTL", 10*time.Minute),
		RefreshOverlap: getEnvDuration("SCHEDULER_REFRESH_OVERLAP", time.Minute),
	}
}

func loadStatsConfig() (StatsConfig, error) {
	timezone := getEnv("STATS_TIMEZONE", "UTC")
	loc, err := timeutil.LoadLocation(timezone)
	if err != nil {
		return StatsConfig{}, fmt.Errorf("invalid STATS_TIMEZONE %q: %w", timezone, err)
	}

	def := stats.DefaultPolicy()
	return StatsConfig{
		Timezone:       timezone,
		Location:       loc,
		RevenueMonths:  getEnvInt("STATS_REVENUE_MONTHS", def.RevenueWindows),
		WindowDays:     getEnvInt("STATS_WINDOW_DAYS", def.WindowDays),
		CacheTTL:       getEnvDuration("STATS_CACHE_TTL", 60*time.Second),
		CountDropped:   getEnvBool("STATS_COUNT_DROPPED", def.CountDropped),
		CountSuspended: getEnvBool("STATS_COUNT_SUSPENDED", def.CountSuspended),
	}, nil
}

func loadEventBusConfig(rc RedisConfig) EventBusConfig {
	driver := "redis"
	if rc.Disabled {
		driver = "memory"
	}
	return EventBusConfig{
		Driver:       strings.ToLower(getEnv("EVENT_BUS_DRIVER", driver)),
		Async:        getEnvBool("EVENT_BUS_ASYNC", true),
		Workers:      getEnvInt("EVENT_BUS_WORKERS", 8),
		RedisChannel: getEnv("EVENT_BUS_CHANNEL", "learnhub:events"),
	}
}

func loadObservabilityConfig(app AppConfig) ObservabilityConfig {
	level := "info"
	if app.Debug {
		level = "debug"
	}
	return ObservabilityConfig{
		LogLevel:  getEnv("LOG_LEVEL", level),
		LogFormat: getEnv("LOG_FORMAT", "json"),
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	var errs []string

	if c.App.Environment == EnvProduction && c.Database.URL == "" && c.Database.Password == "" {
		errs = append(errs, "DATABASE_URL or DB_PASSWORD is required in production")
	}

	if c.Database.MaxConns < 1 {
		errs = append(errs, "DB_MAX_CONNS must be positive")
	}
	if c.Database.MinConns > c.Database.MaxConns {
		errs = append(errs, "DB_MIN_CONNS must not exceed DB_MAX_CONNS")
	}

	if c.HTTP.Port < 1 || c.HTTP.Port > 65535 {
		errs = append(errs, "HTTP_PORT must be 1-65535")
	}
	if c.HTTP.RequestTimeout <= 0 {
		errs = append(errs, "HTTP_REQUEST_TIMEOUT must be positive")
	}

	if c.Scheduler.Enabled && c.Scheduler.RefreshCron == "" {
		errs = append(errs, "SCHEDULER_REFRESH_CRON is required when the scheduler is enabled")
	}

	if c.Stats.RevenueMonths < 1 || c.Stats.RevenueMonths > 24 {
		errs = append(errs, "STATS_REVENUE_MONTHS must be 1-24")
	}
	if c.Stats.WindowDays < 1 {
		errs = append(errs, "STATS_WINDOW_DAYS must be positive")
	}
	if c.Stats.CacheTTL < 0 {
		errs = append(errs, "STATS_CACHE_TTL must not be negative")
	}

	switch c.EventBus.Driver {
	case "memory":
	case "redis":
		if c.Redis.Disabled {
			errs = append(errs, "EVENT_BUS_DRIVER=redis requires Redis to be enabled")
		}
	default:
		errs = append(errs, fmt.Sprintf("EVENT_BUS_DRIVER %q is not supported", c.EventBus.Driver))
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors:\n  - %s", strings.Join(errs, "\n  - "))
	}

	return nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.App.Environment == EnvDevelopment
}

// IsProduction returns true if running in production mode.
func (c *Config) IsProduction() bool {
	return c.App.Environment == EnvProduction
}

// PostgresConfig converts the database section for the postgres package.
func (d DatabaseConfig) PostgresConfig() postgres.Config {
	cfg := postgres.DefaultConfig()
	cfg.URL = d.URL
	cfg.Host = d.Host
	cfg.Port = d.Port
	cfg.Database = d.Name
	cfg.User = d.User
	cfg.Password = d.Password
	cfg.SSLMode = d.SSLMode
	cfg.MaxConns = d.MaxConns
	cfg.MinConns = d.MinConns
	cfg.MaxConnLifetime = d.MaxConnLifetime
	cfg.MaxConnIdleTime = d.MaxConnIdleTime
	cfg.ConnectTimeout = d.ConnectTimeout
	return cfg
}

// CacheConfig converts the redis section for the redis package.
func (r RedisConfig) CacheConfig() redis.Config {
	cfg := redis.DefaultConfig()
	cfg.Host = r.Host
	cfg.Port = r.Port
	cfg.Password = r.Password
	cfg.DB = r.DB
	if r.PoolSize > 0 {
		cfg.PoolSize = r.PoolSize
	}
	return cfg
}

// Addr returns host:port for the HTTP listener.
func (h HTTPConfig) Addr() string {
	return fmt.Sprintf("%s:%d", h.Host, h.Port)
}

// Policy converts the stats section into an aggregation policy.
func (s StatsConfig) Policy() stats.Policy {
	loc := s.Location
	if loc == nil {
		loc = time.UTC
	}
	return stats.Policy{
		CountDropped:   s.CountDropped,
		CountSuspended: s.CountSuspended,
		RevenueWindows: s.RevenueMonths,
		WindowDays:     s.WindowDays,
		Location:       loc,
	}
}

// LoggerOptions builds logger options from the observability section.
func (o ObservabilityConfig) LoggerOptions() logger.Options {
	opts := logger.DefaultOptions()
	opts.Level = logger.ParseLevel(o.LogLevel)
	opts.Format = logger.ParseFormat(o.LogFormat)
	return opts
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return defaultVal
	}
	return b
}

func getEnvInt(key string, defaultVal int) int {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return defaultVal
	}
	return d
}
