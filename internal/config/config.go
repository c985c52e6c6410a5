package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds application configuration
type Config struct {
	Port           string
	Env            string
	LogLevel       string
	DatabaseURL    string
	UseMemoryQueue bool

	// WhatsApp provider
	WhatsAppAPIBaseURL string
	WhatsAppAPIToken   string
	WebhookToken       string

	// Assistant
	OpenAIAPIKey     string
	OpenAIModel      string
	AssistantTimeout time.Duration
	HistoryLimit     int
	PendingActionTTL time.Duration
	DedupWindow      time.Duration

	// Operator alerts
	AlertEmailEnabled bool
	AlertFromEmail    string
	AlertFromName     string

	// AWS / SQS deployment mode
	AWSRegion           string
	AWSAccessKeyID      string
	AWSSecretAccessKey  string
	AWSEndpointOverride string
	InboundQueueURL     string

	// Redis (shared dedup cache for multi-instance webhook ingestion)
	RedisAddr     string
	RedisPassword string
	RedisTLS      bool
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Port:           getEnv("PORT", "8080"),
		Env:            getEnv("ENV", "development"),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		DatabaseURL:    getEnv("DATABASE_URL", ""),
		UseMemoryQueue: getEnvAsBool("USE_MEMORY_QUEUE", true),

		WhatsAppAPIBaseURL: getEnv("WHATSAPP_API_BASE_URL", ""),
		WhatsAppAPIToken:   getEnv("WHATSAPP_API_TOKEN", ""),
		WebhookToken:       getEnv("WEBHOOK_TOKEN", ""),

		OpenAIAPIKey:     getEnv("OPENAI_API_KEY", ""),
		OpenAIModel:      getEnv("OPENAI_MODEL", "gpt-4o-mini"),
		AssistantTimeout: getEnvAsDuration("ASSISTANT_TIMEOUT", 30*time.Second),
		HistoryLimit:     getEnvAsInt("HISTORY_LIMIT", 20),
		PendingActionTTL: getEnvAsDuration("PENDING_ACTION_TTL", 10*time.Minute),
		DedupWindow:      getEnvAsDuration("DEDUP_WINDOW", 15*time.Minute),

		AlertEmailEnabled: getEnvAsBool("ALERT_EMAIL_ENABLED", false),
		AlertFromEmail:    getEnv("ALERT_FROM_EMAIL", ""),
		AlertFromName:     getEnv("ALERT_FROM_NAME", "ZapMesa"),

		AWSRegion:           getEnv("AWS_REGION", "us-east-1"),
		AWSAccessKeyID:      getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretAccessKey:  getEnv("AWS_SECRET_ACCESS_KEY", ""),
		AWSEndpointOverride: getEnv("AWS_ENDPOINT_OVERRIDE", ""),
		InboundQueueURL:     getEnv("INBOUND_QUEUE_URL", ""),

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisTLS:      getEnvAsBool("REDIS_TLS", false),
	}
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	if value, err := strconv.Atoi(getEnv(key, "")); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsBool retrieves an environment variable as a boolean or returns a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	if value, err := strconv.ParseBool(getEnv(key, "")); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	raw := getEnv(key, "")
	if raw == "" {
		return defaultValue
	}
	if value, err := time.ParseDuration(raw); err == nil {
		return value
	}
	return defaultValue
}
