package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	// Server
	Port string
	Env  string

	// Database. Empty keeps contents and users in memory.
	DatabaseURL      string
	MigrationsDir    string
	DatabaseMaxConns int

	// Redis. Empty keeps sessions in memory and notifies in process.
	RedisURL string

	// Auth
	JWTSecret      string
	SessionSecret  string
	TokenTTL       time.Duration
	DemoMode       bool
	NoRegistration bool
	AdminUsername  string
	AdminPassword  string

	// Frontend origins allowed by CORS, comma separated
	FrontendURLs []string
}

func Load() *Config {
	// Load .env file if it exists
	godotenv.Load()

	cfg := &Config{
		Port:             getEnvOrDefault("PORT", "8080"),
		Env:              getEnvOrDefault("ENV", "development"),
		DatabaseURL:      getEnvOrDefault("DATABASE_URL", ""),
		MigrationsDir:    getEnvOrDefault("MIGRATIONS_DIR", "migrations"),
		DatabaseMaxConns: getEnvAsIntOrDefault("DB_MAX_CONNS", 10),
		RedisURL:         getEnvOrDefault("REDIS_URL", ""),
		JWTSecret:        mustGetEnv("JWT_SECRET"),
		SessionSecret:    mustGetEnv("SESSION_SECRET"),
		TokenTTL:         getEnvAsDurationOrDefault("TOKEN_TTL", 7*24*time.Hour),
		DemoMode:         getEnvAsBoolOrDefault("DEMO_MODE", false),
		NoRegistration:   getEnvAsBoolOrDefault("NO_REGISTRATION", false),
		AdminUsername:    getEnvOrDefault("ADMIN_USERNAME", ""),
		AdminPassword:    getEnvOrDefault("ADMIN_PASSWORD", ""),
		FrontendURLs:     splitList(getEnvOrDefault("FRONTEND_URL", "http://localhost:5173")),
	}

	return cfg
}

func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

func mustGetEnv(key string) string {
	val := os.Getenv(key)
	if val == "" {
		panic(fmt.Sprintf("required environment variable %s is not set", key))
	}
	return val
}

func getEnvOrDefault(key, defaultVal string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	return val
}

func getEnvAsIntOrDefault(key string, defaultVal int) int {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}
	return n
}

func getEnvAsBoolOrDefault(key string, defaultVal bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return defaultVal
	}
	return b
}

// getEnvAsDurationOrDefault accepts Go durations ("12h") or whole seconds.
func getEnvAsDurationOrDefault(key string, defaultVal time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	if d, err := time.ParseDuration(val); err == nil && d > 0 {
		return d
	}
	if secs := getEnvAsIntOrDefault(key, 0); secs > 0 {
		return time.Duration(secs) * time.Second
	}
	return defaultVal
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
