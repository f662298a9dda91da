package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	// Server configuration
	Environment string

	// Redis configuration
	RedisURL      string
	RedisPassword string
	RedisDB       int

	// Daraja (M-Pesa) gateway configuration
	Daraja DarajaConfig

	// PubNub configuration
	PubNubPublishKey   string
	PubNubSubscribeKey string
	PubNubSecretKey    string
	PubNubUUID         string

	// Order endpoint rate limiting
	OrderRateLimit  int
	OrderRateWindow time.Duration

	// Notification worker
	NotifyQueueKey string

	// Monitoring
	EnableMetrics bool
	MetricsPort   string
}

type DarajaConfig struct {
	BaseURL        string
	ConsumerKey    string
	ConsumerSecret string
	ShortCode      string
	PassKey        string
	CallbackURL    string

	// PushTimeout bounds the synchronous push call; a timeout marks the
	// order FAILED with reason TIMEOUT.
	PushTimeout time.Duration

	// TokenSafetyMargin is subtracted from the gateway's advertised token
	// lifetime so a near-expiry credential is refreshed proactively.
	TokenSafetyMargin time.Duration
}

func LoadConfig() *Config {
	return &Config{
		// Server
		Environment: getEnv("ENVIRONMENT", "development"),

		// Redis
		RedisURL:      getEnv("REDIS_URL", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvAsInt("REDIS_DB", 0),

		// Daraja
		Daraja: DarajaConfig{
			BaseURL:           getEnv("MPESA_BASE_URL", "https://sandbox.safaricom.co.ke"),
			ConsumerKey:       getEnv("MPESA_CONSUMER_KEY", ""),
			ConsumerSecret:    getEnv("MPESA_CONSUMER_SECRET", ""),
			ShortCode:         getEnv("MPESA_SHORTCODE", ""),
			PassKey:           getEnv("MPESA_PASSKEY", ""),
			CallbackURL:       getEnv("MPESA_CALLBACK_URL", ""),
			PushTimeout:       getEnvAsDuration("MPESA_PUSH_TIMEOUT", "10s"),
			TokenSafetyMargin: getEnvAsDuration("MPESA_TOKEN_MARGIN", "60s"),
		},

		// PubNub
		PubNubPublishKey:   getEnv("PUBNUB_PUBLISH_KEY", ""),
		PubNubSubscribeKey: getEnv("PUBNUB_SUBSCRIBE_KEY", ""),
		PubNubSecretKey:    getEnv("PUBNUB_SECRET_KEY", ""),
		PubNubUUID:         getEnv("PUBNUB_UUID", "tickethub-server"),

		// Rate limiting
		OrderRateLimit:  getEnvAsInt("ORDER_RATE_LIMIT", 10),
		OrderRateWindow: getEnvAsDuration("ORDER_RATE_WINDOW", "1m"),

		// Notifications
		NotifyQueueKey: getEnv("NOTIFY_QUEUE_KEY", "notify:jobs"),

		// Monitoring
		EnableMetrics: getEnvAsBool("ENABLE_METRICS", true),
		MetricsPort:   getEnv("METRICS_PORT", "9090"),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue string) time.Duration {
	valueStr := getEnv(key, defaultValue)
	if duration, err := time.ParseDuration(valueStr); err == nil {
		return duration
	}
	// If parsing fails, try to parse default value
	duration, _ := time.ParseDuration(defaultValue)
	return duration
}
