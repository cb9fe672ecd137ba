package config

import (
	"errors"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// DefaultRetryableErrors lists message/code fragments treated as transient remote failures.
var DefaultRetryableErrors = []string{
	"network",
	"timeout",
	"timed out",
	"deadline exceeded",
	"deadline-exceeded",
	"unavailable",
	"resource-exhausted",
	"resource exhausted",
	"connection refused",
	"connection reset",
	"broken pipe",
	"too many connections",
}

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database DatabaseConfig
	Redis    RedisConfig
	JWT      JWTConfig
	CORS     CORSConfig
	Log      LogConfig
	Schedule ScheduleConfig
	Remote   RemoteConfig
	Sync     SyncConfig
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// JWTConfig holds the shared secret used to verify admin tokens issued by the identity provider.
type JWTConfig struct {
	Secret string
	Issuer string
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// ScheduleConfig tunes the local store, bundled dataset and read cache.
type ScheduleConfig struct {
	StorageDir   string
	BundledPath  string
	MinYearRows  int
	CacheEnabled bool
	CacheTTL     time.Duration
}

// RemoteConfig governs the retry and circuit breaker policy guarding the remote store.
type RemoteConfig struct {
	Enabled           bool
	MaxRetries        int
	InitialDelay      time.Duration
	BackoffMultiplier float64
	MaxDelay          time.Duration
	Jitter            float64
	RetryableErrors   []string
	BreakerThreshold  int
	BreakerTimeout    time.Duration
}

// SyncConfig toggles background remote synchronisation.
type SyncConfig struct {
	Async bool
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !isMissingFile(err) {
			return nil, err
		}
	}

	return fromViper(v), nil
}

func fromViper(v *viper.Viper) *Config {
	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
	}

	cfg.Redis = RedisConfig{
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.JWT = JWTConfig{
		Secret: v.GetString("JWT_SECRET"),
		Issuer: v.GetString("JWT_ISSUER"),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	minRows := v.GetInt("SCHEDULE_MIN_YEAR_ROWS")
	if minRows <= 0 {
		minRows = 300
	}
	cfg.Schedule = ScheduleConfig{
		StorageDir:   v.GetString("SCHEDULE_STORAGE_DIR"),
		BundledPath:  v.GetString("SCHEDULE_BUNDLED_PATH"),
		MinYearRows:  minRows,
		CacheEnabled: v.GetBool("ENABLE_SCHEDULE_CACHE"),
		CacheTTL:     parseDuration(v.GetString("SCHEDULE_CACHE_TTL"), 10*time.Minute),
	}

	retryable := splitAndTrim(v.GetString("REMOTE_RETRYABLE_ERRORS"))
	if len(retryable) == 0 {
		retryable = append([]string(nil), DefaultRetryableErrors...)
	}
	cfg.Remote = RemoteConfig{
		Enabled:           v.GetBool("REMOTE_ENABLED"),
		MaxRetries:        v.GetInt("REMOTE_MAX_RETRIES"),
		InitialDelay:      parseDuration(v.GetString("REMOTE_INITIAL_DELAY"), time.Second),
		BackoffMultiplier: v.GetFloat64("REMOTE_BACKOFF_MULTIPLIER"),
		MaxDelay:          parseDuration(v.GetString("REMOTE_MAX_DELAY"), 30*time.Second),
		Jitter:            v.GetFloat64("REMOTE_JITTER"),
		RetryableErrors:   retryable,
		BreakerThreshold:  v.GetInt("BREAKER_THRESHOLD"),
		BreakerTimeout:    parseDuration(v.GetString("BREAKER_TIMEOUT"), time.Minute),
	}

	cfg.Sync = SyncConfig{Async: v.GetBool("SYNC_ASYNC")}

	return cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "prayer_schedule")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_ISSUER", "")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("SCHEDULE_STORAGE_DIR", "./data")
	v.SetDefault("SCHEDULE_BUNDLED_PATH", "")
	v.SetDefault("SCHEDULE_MIN_YEAR_ROWS", 300)
	v.SetDefault("ENABLE_SCHEDULE_CACHE", false)
	v.SetDefault("SCHEDULE_CACHE_TTL", "10m")

	v.SetDefault("REMOTE_ENABLED", true)
	v.SetDefault("REMOTE_MAX_RETRIES", 3)
	v.SetDefault("REMOTE_INITIAL_DELAY", "1s")
	v.SetDefault("REMOTE_BACKOFF_MULTIPLIER", 2.0)
	v.SetDefault("REMOTE_MAX_DELAY", "30s")
	v.SetDefault("REMOTE_JITTER", 0.3)
	v.SetDefault("REMOTE_RETRYABLE_ERRORS", "")
	v.SetDefault("BREAKER_THRESHOLD", 5)
	v.SetDefault("BREAKER_TIMEOUT", "60s")

	v.SetDefault("SYNC_ASYNC", false)
}

// isMissingFile tolerates an absent .env when SetConfigFile is used, which
// viper reports as a plain fs error rather than ConfigFileNotFoundError.
func isMissingFile(err error) bool {
	return err != nil && strings.Contains(strings.ToLower(err.Error()), "no such file")
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}
