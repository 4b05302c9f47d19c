package config

import (
	"errors"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	Env         string
	Port        int
	APIPrefix   string
	AutoMigrate bool

	Database      DatabaseConfig
	Redis         RedisConfig
	JWT           JWTConfig
	CORS          CORSConfig
	Log           LogConfig
	Roles         RoleConfig
	Lifecycle     LifecycleConfig
	Scheduler     SchedulerConfig
	Notifications NotificationConfig
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

// RoleConfig controls the legacy email-based role fallback.
type RoleConfig struct {
	LegacyAdminEmail    string
	LegacyEmailFallback bool
}

// LifecycleConfig holds retention windows for items and activity entries.
type LifecycleConfig struct {
	DonationRetentionDays int
	ActivityRetentionDays int
	ScanBatchSize         int
}

// SchedulerConfig configures the cron-driven background jobs.
type SchedulerConfig struct {
	Enabled                   bool
	DonationFlagSchedule      string
	ActivityArchiveSchedule   string
	NotificationRelaySchedule string
	LockTTL                   time.Duration
	JobTimeout                time.Duration
	MaxRetries                int
	RetryDelay                time.Duration
}

// NotificationConfig configures delivery request relaying.
type NotificationConfig struct {
	Stream            string
	MaxAttempts       int
	BatchSize         int
	RelayWorkers      int
	RecipientCacheTTL time.Duration
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
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")
	cfg.AutoMigrate = v.GetBool("AUTO_MIGRATE")

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

	cfg.Roles = RoleConfig{
		LegacyAdminEmail:    strings.TrimSpace(v.GetString("ROLE_LEGACY_ADMIN_EMAIL")),
		LegacyEmailFallback: v.GetBool("ROLE_LEGACY_EMAIL_FALLBACK"),
	}

	cfg.Lifecycle = LifecycleConfig{
		DonationRetentionDays: positiveInt(v.GetInt("DONATION_RETENTION_DAYS"), 365),
		ActivityRetentionDays: positiveInt(v.GetInt("ACTIVITY_RETENTION_DAYS"), 365),
		ScanBatchSize:         positiveInt(v.GetInt("LIFECYCLE_SCAN_BATCH_SIZE"), 100),
	}

	cfg.Scheduler = SchedulerConfig{
		Enabled:                   v.GetBool("SCHEDULER_ENABLED"),
		DonationFlagSchedule:      v.GetString("DONATION_FLAG_SCHEDULE"),
		ActivityArchiveSchedule:   v.GetString("ACTIVITY_ARCHIVE_SCHEDULE"),
		NotificationRelaySchedule: v.GetString("NOTIFICATION_RELAY_SCHEDULE"),
		LockTTL:                   parseDuration(v.GetString("SCHEDULER_LOCK_TTL"), 10*time.Minute),
		JobTimeout:                parseDuration(v.GetString("SCHEDULER_JOB_TIMEOUT"), 5*time.Minute),
		MaxRetries:                positiveInt(v.GetInt("JOB_MAX_RETRIES"), 3),
		RetryDelay:                parseDuration(v.GetString("JOB_RETRY_DELAY"), 30*time.Second),
	}

	cfg.Notifications = NotificationConfig{
		Stream:            v.GetString("NOTIFICATION_STREAM"),
		MaxAttempts:       positiveInt(v.GetInt("NOTIFICATION_MAX_ATTEMPTS"), 5),
		BatchSize:         positiveInt(v.GetInt("NOTIFICATION_BATCH_SIZE"), 50),
		RelayWorkers:      positiveInt(v.GetInt("NOTIFICATION_RELAY_WORKERS"), 2),
		RecipientCacheTTL: parseDuration(v.GetString("RECIPIENT_CACHE_TTL"), 5*time.Minute),
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")
	v.SetDefault("AUTO_MIGRATE", false)

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "lostfound")
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

	v.SetDefault("ROLE_LEGACY_ADMIN_EMAIL", "admin@gmail.com")
	v.SetDefault("ROLE_LEGACY_EMAIL_FALLBACK", true)

	v.SetDefault("DONATION_RETENTION_DAYS", 365)
	v.SetDefault("ACTIVITY_RETENTION_DAYS", 365)
	v.SetDefault("LIFECYCLE_SCAN_BATCH_SIZE", 100)

	v.SetDefault("SCHEDULER_ENABLED", false)
	v.SetDefault("DONATION_FLAG_SCHEDULE", "0 3 1 * *")
	v.SetDefault("ACTIVITY_ARCHIVE_SCHEDULE", "0 4 * * *")
	v.SetDefault("NOTIFICATION_RELAY_SCHEDULE", "@every 1m")
	v.SetDefault("SCHEDULER_LOCK_TTL", "10m")
	v.SetDefault("SCHEDULER_JOB_TIMEOUT", "5m")
	v.SetDefault("JOB_MAX_RETRIES", 3)
	v.SetDefault("JOB_RETRY_DELAY", "30s")

	v.SetDefault("NOTIFICATION_STREAM", "lostfound:notifications")
	v.SetDefault("NOTIFICATION_MAX_ATTEMPTS", 5)
	v.SetDefault("NOTIFICATION_BATCH_SIZE", 50)
	v.SetDefault("NOTIFICATION_RELAY_WORKERS", 2)
	v.SetDefault("RECIPIENT_CACHE_TTL", "5m")
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

func positiveInt(value, fallback int) int {
	if value <= 0 {
		return fallback
	}
	return value
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
