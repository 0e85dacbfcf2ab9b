package config

import (
	"fmt"
	"time"

	"seva-signup/core/constants"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type ServerConfig struct {
	Host            string
	Port            int
	BaseURL         string
	LogLevel        string
	ShutdownTimeout time.Duration
}

type DatabaseConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	DBName          string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime int // minutes
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type AWSConfig struct {
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	QueueURL        string
	DeadLetterURL   string
	S3Bucket        string
	SESFromEmail    string
	SESFromName     string
}

type GoogleConfig struct {
	CredentialsJSON string // service account key, raw JSON
	DriveFolderID   string
	DisableSheets   bool
}

type WorkerConfig struct {
	MaxRetries      int
	LocalAttempts   int
	BackoffBase     time.Duration
	PollBatch       int
	PollWait        time.Duration
	HealthPort      int
	ShutdownTimeout time.Duration
	ReconcileEvery  time.Duration
	ReconcileGrace  time.Duration
}

type RateLimitConfig struct {
	Requests int
	Window   time.Duration
}

// Config is built once at startup and passed by reference to the components
// that need it. There is no package-level instance.
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	AWS       AWSConfig
	Google    GoogleConfig
	Worker    WorkerConfig
	RateLimit RateLimitConfig
}

func Load() (*Config, error) {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("SERVER_HOST", "0.0.0.0")
	v.SetDefault("SERVER_PORT", 7070)
	v.SetDefault("BASE_URL", "http://localhost:7070")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("SERVER_SHUTDOWN_TIMEOUT_SECONDS", 15)

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "")
	v.SetDefault("DB_NAME", "seva_signup")
	v.SetDefault("DB_SSL_MODE", constants.DatabaseSSLMode)
	v.SetDefault("DB_MAX_OPEN_CONNS", constants.DatabaseMaxOpenConns)
	v.SetDefault("DB_MAX_IDLE_CONNS", constants.DatabaseMaxIdleConns)
	v.SetDefault("DB_CONN_MAX_LIFETIME_MINUTES", constants.DatabaseConnMaxLifetime)

	v.SetDefault("REDIS_ADDR", "localhost:6379")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("AWS_REGION", "us-east-1")
	v.SetDefault("SES_FROM_NAME", "Volunteer Signup")

	v.SetDefault("WORKER_MAX_RETRIES", constants.WorkerMaxRetries)
	v.SetDefault("WORKER_LOCAL_ATTEMPTS", constants.WorkerLocalAttempts)
	v.SetDefault("WORKER_BACKOFF_BASE_MS", constants.WorkerBackoffBaseMillis)
	v.SetDefault("WORKER_POLL_BATCH", constants.WorkerPollBatch)
	v.SetDefault("WORKER_POLL_WAIT_SECONDS", constants.WorkerPollWaitSeconds)
	v.SetDefault("WORKER_HEALTH_PORT", 7071)
	v.SetDefault("WORKER_SHUTDOWN_TIMEOUT_SECONDS", constants.WorkerShutdownTimeoutSecs)
	v.SetDefault("WORKER_RECONCILE_EVERY_MINUTES", 15)
	v.SetDefault("WORKER_RECONCILE_GRACE_MINUTES", 10)

	v.SetDefault("RATE_LIMIT_REQUESTS", constants.RateLimitRequests)
	v.SetDefault("RATE_LIMIT_WINDOW_SECONDS", constants.RateLimitWindowSeconds)

	cfg := &Config{
		Server: ServerConfig{
			Host:            v.GetString("SERVER_HOST"),
			Port:            v.GetInt("SERVER_PORT"),
			BaseURL:         v.GetString("BASE_URL"),
			LogLevel:        v.GetString("LOG_LEVEL"),
			ShutdownTimeout: time.Duration(v.GetInt("SERVER_SHUTDOWN_TIMEOUT_SECONDS")) * time.Second,
		},
		Database: DatabaseConfig{
			Host:            v.GetString("DB_HOST"),
			Port:            v.GetInt("DB_PORT"),
			User:            v.GetString("DB_USER"),
			Password:        v.GetString("DB_PASSWORD"),
			DBName:          v.GetString("DB_NAME"),
			SSLMode:         v.GetString("DB_SSL_MODE"),
			MaxOpenConns:    v.GetInt("DB_MAX_OPEN_CONNS"),
			MaxIdleConns:    v.GetInt("DB_MAX_IDLE_CONNS"),
			ConnMaxLifetime: v.GetInt("DB_CONN_MAX_LIFETIME_MINUTES"),
		},
		Redis: RedisConfig{
			Addr:     v.GetString("REDIS_ADDR"),
			Password: v.GetString("REDIS_PASSWORD"),
			DB:       v.GetInt("REDIS_DB"),
		},
		AWS: AWSConfig{
			Region:          v.GetString("AWS_REGION"),
			AccessKeyID:     v.GetString("AWS_ACCESS_KEY_ID"),
			SecretAccessKey: v.GetString("AWS_SECRET_ACCESS_KEY"),
			QueueURL:        v.GetString("SQS_QUEUE_URL"),
			DeadLetterURL:   v.GetString("SQS_DLQ_URL"),
			S3Bucket:        v.GetString("S3_BUCKET_NAME"),
			SESFromEmail:    v.GetString("SES_FROM_EMAIL"),
			SESFromName:     v.GetString("SES_FROM_NAME"),
		},
		Google: GoogleConfig{
			CredentialsJSON: v.GetString("GOOGLE_CREDENTIALS_JSON"),
			DriveFolderID:   v.GetString("GOOGLE_DRIVE_FOLDER_ID"),
			DisableSheets:   v.GetBool("DISABLE_SHEETS_SYNC"),
		},
		Worker: WorkerConfig{
			MaxRetries:      v.GetInt("WORKER_MAX_RETRIES"),
			LocalAttempts:   v.GetInt("WORKER_LOCAL_ATTEMPTS"),
			BackoffBase:     time.Duration(v.GetInt("WORKER_BACKOFF_BASE_MS")) * time.Millisecond,
			PollBatch:       v.GetInt("WORKER_POLL_BATCH"),
			PollWait:        time.Duration(v.GetInt("WORKER_POLL_WAIT_SECONDS")) * time.Second,
			HealthPort:      v.GetInt("WORKER_HEALTH_PORT"),
			ShutdownTimeout: time.Duration(v.GetInt("WORKER_SHUTDOWN_TIMEOUT_SECONDS")) * time.Second,
			ReconcileEvery:  time.Duration(v.GetInt("WORKER_RECONCILE_EVERY_MINUTES")) * time.Minute,
			ReconcileGrace:  time.Duration(v.GetInt("WORKER_RECONCILE_GRACE_MINUTES")) * time.Minute,
		},
		RateLimit: RateLimitConfig{
			Requests: v.GetInt("RATE_LIMIT_REQUESTS"),
			Window:   time.Duration(v.GetInt("RATE_LIMIT_WINDOW_SECONDS")) * time.Second,
		},
	}

	if cfg.Database.DBName == "" {
		return nil, fmt.Errorf("DB_NAME must be set")
	}

	return cfg, nil
}
