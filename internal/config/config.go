package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	App      AppConfig
	Database DatabaseConfig
	SMTP     SMTPConfig
	SMS      SMSConfig
	Push     PushConfig
	Dispatch DispatchConfig
	Bulk     BulkConfig
}

type AppConfig struct {
	Port               string
	Environment        string
	LogFilePath        string
	CorsAllowedOrigins string
	NatsURL            string
	RedisURL           string
}

type DatabaseConfig struct {
	Connection string
}

type SMTPConfig struct {
	Host       string
	Port       int
	Email      string
	Password   string
	SenderName string
}

type SMSConfig struct {
	ProviderURL string
	APIKey      string
	Sender      string
}

type PushConfig struct {
	ProviderURL string
	ServerKey   string
}

// DispatchConfig tunes the per-channel send timeouts and the background
// plumbing. In-app and push are expected to answer fast; email and SMS
// providers get more slack.
type DispatchConfig struct {
	InAppTimeout     time.Duration
	PushTimeout      time.Duration
	EmailTimeout     time.Duration
	SMSTimeout       time.Duration
	QueueTopic       string
	ScheduleInterval string
}

// BulkConfig bounds the fan-out: chunking with an inter-chunk delay plus
// a worker cap so large recipient lists cannot spawn unbounded dispatches.
type BulkConfig struct {
	ChunkSize  int
	ChunkDelay time.Duration
	Workers    int
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("Note: .env file not found, using system environment")
	}

	return &Config{
		App: AppConfig{
			Port:               getEnv("APP_PORT", "3000"),
			Environment:        getEnv("GO_ENV", "development"),
			LogFilePath:        getEnv("LOG_FILE_PATH", "notify.log"),
			CorsAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:5173"),
			NatsURL:            getEnv("NATS_URL", "nats://localhost:4222"),
			RedisURL:           getEnv("REDIS_URL", "redis://localhost:6379"),
		},
		Database: DatabaseConfig{
			Connection: getEnv("DB_CONNECTION_STRING", ""),
		},
		SMTP: SMTPConfig{
			Host:       getEnv("SMTP_HOST", ""),
			Port:       getEnvAsInt("SMTP_PORT", 587),
			Email:      getEnv("SMTP_EMAIL", ""),
			Password:   getEnv("SMTP_PASSWORD", ""),
			SenderName: getEnv("SMTP_SENDER_NAME", "FieldOps"),
		},
		SMS: SMSConfig{
			ProviderURL: getEnv("SMS_PROVIDER_URL", ""),
			APIKey:      getEnv("SMS_API_KEY", ""),
			Sender:      getEnv("SMS_SENDER", "FieldOps"),
		},
		Push: PushConfig{
			ProviderURL: getEnv("PUSH_PROVIDER_URL", ""),
			ServerKey:   getEnv("PUSH_SERVER_KEY", ""),
		},
		Dispatch: DispatchConfig{
			InAppTimeout:     getEnvAsDuration("DISPATCH_INAPP_TIMEOUT", 2*time.Second),
			PushTimeout:      getEnvAsDuration("DISPATCH_PUSH_TIMEOUT", 5*time.Second),
			EmailTimeout:     getEnvAsDuration("DISPATCH_EMAIL_TIMEOUT", 15*time.Second),
			SMSTimeout:       getEnvAsDuration("DISPATCH_SMS_TIMEOUT", 15*time.Second),
			QueueTopic:       getEnv("DISPATCH_QUEUE_TOPIC", "NOTIFICATION_DISPATCH"),
			ScheduleInterval: getEnv("DISPATCH_SCHEDULE_INTERVAL", "@every 1m"),
		},
		Bulk: BulkConfig{
			ChunkSize:  getEnvAsInt("BULK_CHUNK_SIZE", 100),
			ChunkDelay: getEnvAsDuration("BULK_CHUNK_DELAY", 200*time.Millisecond),
			Workers:    getEnvAsInt("BULK_WORKERS", 8),
		},
	}
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	strValue := getEnv(key, "")
	if value, err := strconv.Atoi(strValue); err == nil {
		return value
	}
	return fallback
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	strValue := getEnv(key, "")
	if value, err := time.ParseDuration(strValue); err == nil {
		return value
	}
	return fallback
}
