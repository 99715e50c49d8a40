package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// StorageConfig carries the object storage credentials explicitly so the
// gateway never reads ambient process state.
type StorageConfig struct {
	Endpoint  string
	Region    string
	Bucket    string
	AccessKey string
	SecretKey string
	UseSSL    bool
}

type SMTPConfig struct {
	Host     string
	Port     int
	Email    string
	Password string
}

type Config struct {
	MongoURI     string
	MongoDB      string
	HTTPPort     string
	RedisAddress string
	NATSURL      string
	JWTSecret    string
	PostcodesURL string
	SignedURLTTL time.Duration
	Storage      StorageConfig
	SMTP         SMTPConfig
}

func Load() (*Config, error) {
	// .env is optional; plain environment variables are the primary source.
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found or error loading .env, relying on environment variables")
	}

	cfg := &Config{
		MongoURI:     getEnv("MONGO_URI", "mongodb://localhost:27017"),
		MongoDB:      getEnv("MONGO_DB", "listings"),
		HTTPPort:     getEnv("HTTP_PORT", "8080"),
		RedisAddress: getEnv("REDIS_ADDRESS", "localhost:6379"),
		NATSURL:      getEnv("NATS_URL", "nats://localhost:4222"),
		JWTSecret:    getEnv("JWT_SECRET", ""),
		PostcodesURL: getEnv("POSTCODES_URL", "https://api.postcodes.io"),
		SignedURLTTL: getEnvDuration("SIGNED_URL_TTL", time.Hour),
		Storage: StorageConfig{
			Endpoint:  getEnv("STORAGE_ENDPOINT", "localhost:9000"),
			Region:    getEnv("STORAGE_REGION", "us-east-1"),
			Bucket:    getEnv("STORAGE_BUCKET", "listing-photos"),
			AccessKey: getEnv("STORAGE_ACCESS_KEY", "minioadmin"),
			SecretKey: getEnv("STORAGE_SECRET_KEY", "minioadmin"),
			UseSSL:    getEnvBool("STORAGE_USE_SSL", false),
		},
		SMTP: SMTPConfig{
			Host:     getEnv("SMTP_HOST", "smtp.gmail.com"),
			Port:     getEnvInt("SMTP_PORT", 587),
			Email:    getEnv("SMTP_EMAIL", ""),
			Password: getEnv("SMTP_PASSWORD", ""),
		},
	}

	if cfg.JWTSecret == "" {
		log.Fatal("FATAL: JWT_SECRET is not set. This is required for security.")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	raw := getEnv(key, strconv.FormatBool(fallback))
	value, err := strconv.ParseBool(raw)
	if err != nil {
		log.Printf("Warning: invalid %s value '%s', defaulting to %v", key, raw, fallback)
		return fallback
	}
	return value
}

func getEnvInt(key string, fallback int) int {
	raw := getEnv(key, strconv.Itoa(fallback))
	value, err := strconv.Atoi(raw)
	if err != nil {
		log.Printf("Warning: invalid %s value '%s', defaulting to %d", key, raw, fallback)
		return fallback
	}
	return value
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	raw := getEnv(key, fallback.String())
	value, err := time.ParseDuration(raw)
	if err != nil {
		log.Printf("Warning: invalid %s value '%s', defaulting to %s", key, raw, fallback)
		return fallback
	}
	return value
}
