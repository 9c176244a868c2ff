package config

import (
	"os"
	"strconv"
	"time"
)

// DatabaseConfig holds PostgreSQL database connection settings.
type DatabaseConfig struct {
	Host               string
	Port               string
	User               string
	Password           string
	Name               string
	SSLMode            string
	MaxOpenConns       int
	MaxIdleConns       int
	ConnMaxLifetimeSec int
}

// MinIOConfig holds object storage settings for MinIO.
type MinIOConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
	// PresignExpiry bounds the lifetime of download links handed out to clients.
	PresignExpiry time.Duration
}

// AuthConfig holds settings for account credentials and session tokens.
type AuthConfig struct {
	JWTSecret         string
	TokenTTL          time.Duration
	MinPasswordLength int
}

// UploadConfig limits accepted uploads.
type UploadConfig struct {
	MaxBytes int64
}

// RealtimeConfig selects how change notifications are fanned out.
// "local" keeps everything in-process, "postgres" routes through LISTEN/NOTIFY
// so that several API instances see each other's writes.
type RealtimeConfig struct {
	Backend string
	Channel string
}

// ExportConfig controls spreadsheet export formatting.
type ExportConfig struct {
	Timezone string
	// ChronologicalDetail sorts detail rows by upload time instead of by the
	// formatted date string.
	ChronologicalDetail bool
}

// ReconcileConfig controls the orphaned-object sweep.
type ReconcileConfig struct {
	Enabled  bool
	Interval time.Duration
	Grace    time.Duration
}

// LogConfig controls the zap logger.
type LogConfig struct {
	Level  string
	Format string
}

// AppConfig is the centralized configuration struct for the application.
// It is populated from environment variables. Sensitive values are not hardcoded.
type AppConfig struct {
	AppHost        string
	Port           string
	BackendTimeout time.Duration
	Database       DatabaseConfig
	MinIO          MinIOConfig
	Auth           AuthConfig
	Upload         UploadConfig
	Realtime       RealtimeConfig
	Export         ExportConfig
	Reconcile      ReconcileConfig
	Log            LogConfig
}

// Load reads configuration from environment variables.
// A .env file can be auto-loaded by importing: _ "github.com/joho/godotenv/autoload"
// This function does not require a .env file; real environment variables take precedence.
func Load() *AppConfig {
	return &AppConfig{
		AppHost:        getEnv("APP_HOST", "localhost:8080"),
		Port:           getEnv("PORT", "8080"),
		BackendTimeout: getEnvDuration("BACKEND_TIMEOUT", 15*time.Second),
		Database: DatabaseConfig{
			Host:               getEnv("DB_HOST", ""),
			Port:               getEnv("DB_PORT", "5432"),
			User:               getEnv("DB_USER", ""),
			Password:           getEnv("DB_PASSWORD", ""),
			Name:               getEnv("DB_NAME", ""),
			SSLMode:            getEnv("DB_SSLMODE", "disable"),
			MaxOpenConns:       getEnvInt("DB_MAX_OPEN_CONNS", 10),
			MaxIdleConns:       getEnvInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetimeSec: getEnvInt("DB_CONN_MAX_LIFETIME_SEC", 300),
		},
		MinIO: MinIOConfig{
			Endpoint:      getEnv("MINIO_ENDPOINT", ""),
			AccessKey:     getEnv("MINIO_ACCESS_KEY", ""),
			SecretKey:     getEnv("MINIO_SECRET_KEY", ""),
			Bucket:        getEnv("MINIO_BUCKET", ""),
			UseSSL:        getEnvBool("MINIO_USE_SSL", false),
			PresignExpiry: getEnvDuration("MINIO_PRESIGN_EXPIRY", 24*time.Hour),
		},
		Auth: AuthConfig{
			JWTSecret:         getEnv("JWT_SECRET", ""),
			TokenTTL:          getEnvDuration("AUTH_TOKEN_TTL", 12*time.Hour),
			MinPasswordLength: getEnvInt("AUTH_MIN_PASSWORD_LENGTH", 6),
		},
		Upload: UploadConfig{
			MaxBytes: int64(getEnvPositiveInt("UPLOAD_MAX_BYTES", 20<<20)),
		},
		Realtime: RealtimeConfig{
			Backend: getEnv("REALTIME_BACKEND", "local"),
			Channel: getEnv("REALTIME_CHANNEL", "portal_changes"),
		},
		Export: ExportConfig{
			Timezone:            getEnv("EXPORT_TIMEZONE", "Europe/Berlin"),
			ChronologicalDetail: getEnvBool("EXPORT_CHRONOLOGICAL_DETAIL", false),
		},
		Reconcile: ReconcileConfig{
			Enabled:  getEnvBool("RECONCILE_ENABLED", true),
			Interval: getEnvPositiveDuration("RECONCILE_INTERVAL", time.Hour),
			Grace:    getEnvDuration("RECONCILE_GRACE", 30*time.Minute),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
	}
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		i, err := strconv.Atoi(v)
		if err == nil {
			return i
		}
	}
	return def
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		d, err := time.ParseDuration(v)
		if err == nil {
			return d
		}
	}
	return def
}

// getEnvPositiveInt falls back to def for zero or negative values.
func getEnvPositiveInt(key string, def int) int {
	if i := getEnvInt(key, def); i > 0 {
		return i
	}
	return def
}

// getEnvPositiveDuration falls back to def for zero or negative values.
func getEnvPositiveDuration(key string, def time.Duration) time.Duration {
	if d := getEnvDuration(key, def); d > 0 {
		return d
	}
	return def
}
