package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server  ServerConfig
	Session SessionConfig
	Storage StorageConfig
	Backend BackendConfig
	Cart    CartConfig
}

type ServerConfig struct {
	Port string
	Host string
	Env  string
}

type SessionConfig struct {
	Secret             string
	TabTimeoutMinutes  int
	TimeoutMinutes     int
	WarningMinutes     int
	SnapshotTTLHours   int
	TokenVerifyMinutes int
}

type StorageConfig struct {
	Path string
}

type BackendConfig struct {
	BaseURL        string
	TimeoutSeconds int
}

type CartConfig struct {
	TaxRate  float64
	FeeCents int
}

func Load() (*Config, error) {
	// Load .env files if they exist (try .env.local first, then .env)
	_ = godotenv.Load(".env.local")
	_ = godotenv.Load(".env")

	config := &Config{
		Server: ServerConfig{
			Port: getEnv("PORT", "8080"),
			Host: getEnv("HOST", "localhost"),
			Env:  getEnv("ENV", "development"),
		},
		Session: SessionConfig{
			Secret:             getEnv("SESSION_SECRET", "your-secret-key-change-in-production"),
			TabTimeoutMinutes:  getEnvAsInt("TAB_TIMEOUT_MINUTES", 5),
			TimeoutMinutes:     getEnvAsInt("TIMEOUT_MINUTES", 15),
			WarningMinutes:     getEnvAsInt("WARNING_MINUTES", 2),
			SnapshotTTLHours:   getEnvAsInt("CART_SNAPSHOT_TTL_HOURS", 24),
			TokenVerifyMinutes: getEnvAsInt("TOKEN_VERIFY_MINUTES", 10),
		},
		Storage: StorageConfig{
			Path: getEnv("STORAGE_PATH", "eventu.db"),
		},
		Backend: BackendConfig{
			BaseURL:        getEnv("BACKEND_URL", "http://localhost:9000/api"),
			TimeoutSeconds: getEnvAsInt("BACKEND_TIMEOUT_SECONDS", 15),
		},
		Cart: CartConfig{
			TaxRate:  getEnvAsFloat("CART_TAX_RATE", 0.16),
			FeeCents: getEnvAsInt("CART_FEE_CENTS", 150),
		},
	}

	return config, nil
}

// TabTimeout returns the hidden-tab timeout as a duration
func (c *SessionConfig) TabTimeout() time.Duration {
	return time.Duration(c.TabTimeoutMinutes) * time.Minute
}

// IdleTimeout returns the absolute inactivity timeout as a duration
func (c *SessionConfig) IdleTimeout() time.Duration {
	return time.Duration(c.TimeoutMinutes) * time.Minute
}

// WarningLead returns how long before idle logout the warning fires
func (c *SessionConfig) WarningLead() time.Duration {
	return time.Duration(c.WarningMinutes) * time.Minute
}

// SnapshotTTL returns the cart snapshot lifetime
func (c *SessionConfig) SnapshotTTL() time.Duration {
	return time.Duration(c.SnapshotTTLHours) * time.Hour
}

// TokenVerifyInterval returns how often a stale token is re-verified
func (c *SessionConfig) TokenVerifyInterval() time.Duration {
	return time.Duration(c.TokenVerifyMinutes) * time.Minute
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}
