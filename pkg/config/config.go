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

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database      DatabaseConfig
	Redis         RedisConfig
	JWT           JWTConfig
	CORS          CORSConfig
	Log           LogConfig
	Grievances    GrievanceConfig
	Notifications NotificationConfig
	Sweeper       SweeperConfig
	Reports       ReportsConfig
	Analytics     AnalyticsConfig
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
	Secret            string
	Expiration        time.Duration
	RefreshExpiration time.Duration
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// GrievanceConfig holds workflow defaults applied when no per-category
// configuration row exists.
type GrievanceConfig struct {
	DefaultSLAHours        int
	DefaultEscalationHours int
	SLAWarningWindowHours  int
}

// NotificationConfig toggles outbound delivery channels. In-app records are
// always written regardless of these flags.
type NotificationConfig struct {
	EmailEnabled bool
	SMSEnabled   bool
}

// SweeperConfig controls the periodic SLA warning / auto-escalation sweep.
type SweeperConfig struct {
	Enabled  bool
	Schedule string
}

// ReportsConfig configures asynchronous grievance report exports.
type ReportsConfig struct {
	Enabled           bool
	StorageDir        string
	SignedURLSecret   string
	SignedURLTTL      time.Duration
	CleanupInterval   time.Duration
	WorkerConcurrency int
	WorkerRetries     int
}

// AnalyticsConfig governs feature flagging and cache behaviour for the
// grievance analytics endpoints.
type AnalyticsConfig struct {
	Enabled  bool
	CacheTTL time.Duration
}

// defaults maps env keys to their development fallbacks. AutomaticEnv
// means any of these can be overridden from the process environment.
var defaults = map[string]interface{}{
	"ENV":        EnvDevelopment,
	"PORT":       8080,
	"API_PREFIX": "/api/v1",

	"DB_HOST":           "localhost",
	"DB_PORT":           5432,
	"DB_USER":           "postgres",
	"DB_PASSWORD":       "postgres",
	"DB_NAME":           "tms_admin",
	"DB_SSL_MODE":       "disable",
	"DB_MAX_OPEN_CONNS": 10,
	"DB_MAX_IDLE_CONNS": 5,

	"REDIS_HOST":     "localhost",
	"REDIS_PORT":     6379,
	"REDIS_PASSWORD": "",
	"REDIS_DB":       0,

	"JWT_SECRET":               "dev_secret",
	"JWT_EXPIRATION":           "24h",
	"REFRESH_TOKEN_EXPIRATION": "168h",

	"ALLOWED_ORIGINS": "",
	"LOG_LEVEL":       "info",
	"LOG_FORMAT":      "json",

	"GRIEVANCE_DEFAULT_SLA_HOURS":        72,
	"GRIEVANCE_DEFAULT_ESCALATION_HOURS": 48,
	"GRIEVANCE_SLA_WARNING_WINDOW_HOURS": 4,

	"NOTIFY_EMAIL_ENABLED": true,
	"NOTIFY_SMS_ENABLED":   false,

	"ENABLE_SWEEPER":   false,
	"SWEEPER_SCHEDULE": "@hourly",

	"ENABLE_REPORTS":             false,
	"REPORTS_STORAGE_DIR":        "./exports",
	"REPORTS_SIGNED_URL_SECRET":  "dev_reports_secret",
	"REPORTS_SIGNED_URL_TTL":     "24h",
	"REPORTS_CLEANUP_INTERVAL":   "1h",
	"REPORTS_WORKER_CONCURRENCY": 1,
	"REPORTS_WORKER_RETRIES":     3,

	"ENABLE_ANALYTICS":    false,
	"ANALYTICS_CACHE_TTL": "10m",
}

// Load reads configuration from .env and the environment. A missing .env
// file is not an error.
func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	return &Config{
		Env:       v.GetString("ENV"),
		Port:      v.GetInt("PORT"),
		APIPrefix: v.GetString("API_PREFIX"),

		Database: DatabaseConfig{
			Host:         v.GetString("DB_HOST"),
			Port:         v.GetInt("DB_PORT"),
			User:         v.GetString("DB_USER"),
			Password:     v.GetString("DB_PASSWORD"),
			Name:         v.GetString("DB_NAME"),
			SSLMode:      v.GetString("DB_SSL_MODE"),
			MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
			MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
		},
		Redis: RedisConfig{
			Host:     v.GetString("REDIS_HOST"),
			Port:     v.GetInt("REDIS_PORT"),
			Password: v.GetString("REDIS_PASSWORD"),
			DB:       v.GetInt("REDIS_DB"),
		},
		JWT: JWTConfig{
			Secret:            v.GetString("JWT_SECRET"),
			Expiration:        duration(v.GetString("JWT_EXPIRATION"), 24*time.Hour),
			RefreshExpiration: duration(v.GetString("REFRESH_TOKEN_EXPIRATION"), 7*24*time.Hour),
		},
		CORS: CORSConfig{AllowedOrigins: csv(v.GetString("ALLOWED_ORIGINS"))},
		Log: LogConfig{
			Level:  v.GetString("LOG_LEVEL"),
			Format: v.GetString("LOG_FORMAT"),
		},
		Grievances: GrievanceConfig{
			DefaultSLAHours:        v.GetInt("GRIEVANCE_DEFAULT_SLA_HOURS"),
			DefaultEscalationHours: v.GetInt("GRIEVANCE_DEFAULT_ESCALATION_HOURS"),
			SLAWarningWindowHours:  v.GetInt("GRIEVANCE_SLA_WARNING_WINDOW_HOURS"),
		},
		Notifications: NotificationConfig{
			EmailEnabled: v.GetBool("NOTIFY_EMAIL_ENABLED"),
			SMSEnabled:   v.GetBool("NOTIFY_SMS_ENABLED"),
		},
		Sweeper: SweeperConfig{
			Enabled:  v.GetBool("ENABLE_SWEEPER"),
			Schedule: v.GetString("SWEEPER_SCHEDULE"),
		},
		Reports: ReportsConfig{
			Enabled:           v.GetBool("ENABLE_REPORTS"),
			StorageDir:        v.GetString("REPORTS_STORAGE_DIR"),
			SignedURLSecret:   v.GetString("REPORTS_SIGNED_URL_SECRET"),
			SignedURLTTL:      duration(v.GetString("REPORTS_SIGNED_URL_TTL"), 24*time.Hour),
			CleanupInterval:   duration(v.GetString("REPORTS_CLEANUP_INTERVAL"), time.Hour),
			WorkerConcurrency: v.GetInt("REPORTS_WORKER_CONCURRENCY"),
			WorkerRetries:     v.GetInt("REPORTS_WORKER_RETRIES"),
		},
		Analytics: AnalyticsConfig{
			Enabled:  v.GetBool("ENABLE_ANALYTICS"),
			CacheTTL: duration(v.GetString("ANALYTICS_CACHE_TTL"), 10*time.Minute),
		},
	}, nil
}

func duration(raw string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}
	return d
}

func csv(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
