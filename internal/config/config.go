package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	DBHost     string
	DBPort     string
	DBUser     string
	DBPass     string
	DBName     string
	ServerPort string
	Env        string

	RedisURL        string
	EventBusChannel string

	TypingTTL     time.Duration
	PresenceTTL   time.Duration
	ReminderDelay time.Duration

	MaxAttachmentSize  int64
	MaxAttachmentsSent int

	KafkaBrokers []string
	NotifyTopic  string

	MinioURL       string
	MinioPublicURL string
	MinioUser      string
	MinioPassword  string
	MinioBucket    string
}

func LoadConfig() Config {
	typingTTL := getEnvAsDuration("TYPING_TTL", 10*time.Second)
	presenceTTL := getEnvAsDuration("PRESENCE_TTL", 60*time.Second)
	reminderDelay := getEnvAsDuration("REMINDER_DELAY", 2*time.Hour)

	maxAttachmentSize := getEnvAsInt64("MAX_ATTACHMENT_SIZE", 5*1024*1024) // 5MiB default
	maxAttachmentsSent := getEnvAsInt("MAX_ATTACHMENTS_PER_MESSAGE", 5)

	var brokers []string
	if raw := getEnv("KAFKA_BROKERS", ""); raw != "" {
		for _, b := range strings.Split(raw, ",") {
			if b = strings.TrimSpace(b); b != "" {
				brokers = append(brokers, b)
			}
		}
	}

	return Config{
		DBHost:     getEnv("DB_HOST", "postgres"),
		DBPort:     getEnv("DB_PORT", "5432"),
		DBUser:     getEnv("DB_USER", "postgres"),
		DBPass:     getEnv("DB_PASSWORD", "password"),
		DBName:     getEnv("DB_NAME", "db_messaging"),
		ServerPort: getEnv("SERVER_PORT", "8080"),
		Env:        getEnv("ENV", "dev"),

		RedisURL:        getEnv("REDIS_URL", "redis:6379"),
		EventBusChannel: getEnv("EVENTBUS_CHANNEL", "messaging.events"),

		TypingTTL:     typingTTL,
		PresenceTTL:   presenceTTL,
		ReminderDelay: reminderDelay,

		MaxAttachmentSize:  maxAttachmentSize,
		MaxAttachmentsSent: maxAttachmentsSent,

		KafkaBrokers: brokers,
		NotifyTopic:  getEnv("NOTIFY_TOPIC", "messaging.notifications"),

		MinioURL:       getEnv("MINIO_URL", "localhost:9000"),
		MinioPublicURL: getEnv("MINIO_PUBLIC_URL", ""),
		MinioUser:      getEnv("MINIO_USER", "minioadmin"),
		MinioPassword:  getEnv("MINIO_PASSWORD", "minioadmin"),
		MinioBucket:    getEnv("MINIO_BUCKET", "messaging-attachments"),
	}
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	if value, exists := os.LookupEnv(key); exists {
		if v, err := strconv.Atoi(value); err == nil {
			return v
		}
	}
	return fallback
}

func getEnvAsInt64(key string, fallback int64) int64 {
	if value, exists := os.LookupEnv(key); exists {
		if v, err := strconv.ParseInt(value, 10, 64); err == nil {
			return v
		}
	}
	return fallback
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if v, err := time.ParseDuration(value); err == nil {
			return v
		}
	}
	return fallback
}

func (c *Config) PostgresDSN() string {
	return fmt.Sprintf(
		"host=%s user=%s password=%s dbname=%s port=%s sslmode=disable",
		c.DBHost, c.DBUser, c.DBPass, c.DBName, c.DBPort,
	)
}
