package config

import (
	"os"      // For environment variables
	"strconv" // For string to int conversion

	"github.com/joho/godotenv" // For loading .env files
)

// Config holds the application configuration
type Config struct {
	AppPort            string // Application port
	DBUser             string // Database user
	DBPassword         string // Database password
	DBHost             string // Database host
	DBPort             string // Database port
	DBName             string // Database name
	JWTSecret          string // JWT secret key
	RedisAddr          string // Redis server address
	RedisPass          string // Redis password
	RedisDB            int    // Redis database number
	LockWaitSeconds    int    // Row-lock wait bound in whole seconds
	ReceiptDir         string // Where rendered receipts land
	ReceiptWorkers     int    // Receipt worker pool size
	ReceiptMaxAttempts int    // Attempts before a receipt event is dropped
	IsProd             bool   // Is production environment
}

// LoadConfig loads configuration from environment variables
func LoadConfig() *Config {
	_ = godotenv.Load() // Load .env file if present
	return &Config{
		AppPort:            os.Getenv("APP_PORT"),
		DBUser:             os.Getenv("DB_USER"),
		DBPassword:         os.Getenv("DB_PASSWORD"),
		DBHost:             os.Getenv("DB_HOST"),
		DBPort:             os.Getenv("DB_PORT"),
		DBName:             os.Getenv("DB_NAME"),
		JWTSecret:          os.Getenv("JWT_SECRET"),
		RedisAddr:          os.Getenv("REDIS_ADDR"),
		RedisPass:          os.Getenv("REDIS_PASS"),
		RedisDB:            envInt("REDIS_DB", 0),
		LockWaitSeconds:    envInt("LOCK_WAIT_SECONDS", 5),
		ReceiptDir:         envDefault("RECEIPT_DIR", "receipts"),
		ReceiptWorkers:     envInt("RECEIPT_WORKERS", 2),
		ReceiptMaxAttempts: envInt("RECEIPT_MAX_ATTEMPTS", 5),
		IsProd:             os.Getenv("IS_PROD") == "true",
	}
}

// DSN assembles the MySQL data source name.
func (c *Config) DSN() string {
	return c.DBUser + ":" + c.DBPassword + "@tcp(" + c.DBHost + ":" + c.DBPort + ")/" + c.DBName + "?parseTime=true"
}

// envInt reads an integer environment variable with a fallback.
func envInt(key string, fallback int) int {
	if v, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return v
	}
	return fallback
}

// envDefault reads a string environment variable with a fallback.
func envDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
