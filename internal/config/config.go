package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/akylbek/payment-system/sunny-gateway/internal/sandbox"
)

// Config is the gateway's environment configuration.
type Config struct {
	DatabaseURL  string
	RedisURL     string
	KafkaBrokers []string
	NATSURL      string
	Port         string
	Environment  string
	APIKeys      []string
	Sandbox      sandbox.Options
}

func Load() *Config {
	opts := sandbox.DefaultOptions()
	opts.SuccessRate = getFloat("SANDBOX_SUCCESS_RATE", opts.SuccessRate)
	opts.AsyncSuccessRate = getFloat("SANDBOX_ASYNC_SUCCESS_RATE", opts.AsyncSuccessRate)
	opts.PollsToSettle = getInt("SANDBOX_POLLS_TO_SETTLE", opts.PollsToSettle)
	opts.BulkFailureRate = getFloat("SANDBOX_BULK_FAILURE_RATE", opts.BulkFailureRate)
	opts.Latency = getDuration("SANDBOX_LATENCY", opts.Latency)

	return &Config{
		DatabaseURL:  os.Getenv("DATABASE_URL"),
		RedisURL:     os.Getenv("REDIS_URL"),
		KafkaBrokers: splitList(os.Getenv("KAFKA_BROKERS")),
		NATSURL:      os.Getenv("NATS_URL"),
		Port:         getEnv("PORT", "8081"),
		Environment:  getEnv("ENVIRONMENT", "sandbox"),
		APIKeys:      splitList(os.Getenv("API_KEYS")),
		Sandbox:      opts,
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getFloat(key string, fallback float64) float64 {
	f, err := strconv.ParseFloat(os.Getenv(key), 64)
	if err != nil {
		return fallback
	}
	return f
}

func getInt(key string, fallback int) int {
	n, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		return fallback
	}
	return n
}

func getDuration(key string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(os.Getenv(key))
	if err != nil {
		return fallback
	}
	return d
}

// splitList splits a comma-separated value, dropping empty entries.
func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
