package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds all configuration for the payout service
type Config struct {
	// Server
	HTTPPort string
	GRPCPort string

	// Redis
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Kafka
	KafkaBrokers        string
	KafkaConsumerGroup  string
	KafkaTopicRequested string
	KafkaTopicStatus    string

	// PayPal
	PayPalEnv          string // "sandbox" or "live"
	PayPalClientID     string
	PayPalClientSecret string
	PayPalTokenSkew    time.Duration

	// Flutterwave
	FlutterwaveBaseURL   string
	FlutterwaveSecretKey string

	// HTTP client
	ProviderTimeout time.Duration
}

// Load loads configuration from environment variables
func Load() *Config {
	return &Config{
		HTTPPort: getEnv("HTTP_PORT", "8084"),
		GRPCPort: getEnv("GRPC_PORT", "9084"),

		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		KafkaBrokers:        getEnv("KAFKA_BROKERS", "localhost:9092"),
		KafkaConsumerGroup:  getEnv("KAFKA_CONSUMER_GROUP", "payout-service"),
		KafkaTopicRequested: getEnv("KAFKA_TOPIC_REQUESTED", "withdrawal.requested"),
		KafkaTopicStatus:    getEnv("KAFKA_TOPIC_STATUS", "payout.status"),

		PayPalEnv:          getEnv("PAYPAL_ENV", "sandbox"),
		PayPalClientID:     getEnv("PAYPAL_CLIENT_ID", ""),
		PayPalClientSecret: getEnv("PAYPAL_CLIENT_SECRET", ""),
		PayPalTokenSkew:    getEnvDuration("PAYPAL_TOKEN_SKEW", 60*time.Second),

		FlutterwaveBaseURL:   getEnv("FLUTTERWAVE_BASE_URL", "https://api.flutterwave.com/v3"),
		FlutterwaveSecretKey: getEnv("FLUTTERWAVE_SECRET_KEY", ""),

		ProviderTimeout: getEnvDuration("PROVIDER_TIMEOUT", 30*time.Second),
	}
}

// PayPalBaseURL resolves the PayPal API host for the configured environment
func (c *Config) PayPalBaseURL() string {
	if c.PayPalEnv == "live" {
		return "https://api-m.paypal.com"
	}
	return "https://api-m.sandbox.paypal.com"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
