package config

import (
	"encoding/json"
	"os"
	"strconv"
	"time"
)

// Config holds application configuration
type Config struct {
	Port          string
	Env           string
	LogLevel      string
	PublicBaseURL string

	// WhatsApp Cloud API
	WhatsAppToken       string
	WhatsAppPhoneID     string
	WhatsAppAPIBaseURL  string
	WebhookVerifyToken  string
	SendTimeout         time.Duration
	MediaFetchTimeout   time.Duration

	// Business identities
	OwnerPhone    string
	AgentPools    map[string][]string
	AgentPoolJSON string

	// Redis
	RedisAddr     string
	RedisPassword string
	RedisDB       int
}

// Load reads configuration from environment variables
func Load() *Config {
	cfg := &Config{
		Port:          getEnv("PORT", "8080"),
		Env:           getEnv("ENV", "development"),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		PublicBaseURL: getEnv("PUBLIC_BASE_URL", ""),

		WhatsAppToken:      getEnv("WA_TOKEN", ""),
		WhatsAppPhoneID:    getEnv("WA_PHONE_ID", ""),
		WhatsAppAPIBaseURL: getEnv("WA_API_BASE_URL", "https://graph.facebook.com/v19.0"),
		WebhookVerifyToken: getEnv("WEBHOOK_VERIFY_TOKEN", "BOT"),
		SendTimeout:        getEnvAsDuration("WA_SEND_TIMEOUT", 10*time.Second),
		MediaFetchTimeout:  getEnvAsDuration("WA_MEDIA_FETCH_TIMEOUT", 20*time.Second),

		OwnerPhone:    getEnv("OWNER_PHONE", ""),
		AgentPoolJSON: getEnv("AGENT_POOLS_JSON", ""),

		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvAsInt("REDIS_DB", 0),
	}
	cfg.AgentPools = parseAgentPools(cfg.AgentPoolJSON, cfg.OwnerPhone)
	return cfg
}

// parseAgentPools decodes the location→operators map. A malformed or empty
// value falls back to a single unpartitioned pool containing the owner phone
// so that handover always has at least one operator to route to.
func parseAgentPools(raw, ownerPhone string) map[string][]string {
	if raw != "" {
		var pools map[string][]string
		if err := json.Unmarshal([]byte(raw), &pools); err == nil && len(pools) > 0 {
			return pools
		}
	}
	if ownerPhone == "" {
		return map[string][]string{}
	}
	return map[string][]string{"": {ownerPhone}}
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}
