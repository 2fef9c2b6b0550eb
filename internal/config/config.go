package config

import (
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	ServerPort int

	// "postgres" or "json"
	StoreBackend string
	DatabaseURL  string
	DataDir      string

	JWTSecret     string
	RefreshSecret string

	KafkaBrokers []string

	ESUrl      string
	ESUser     string
	ESPassword string

	StripeAPIURL    string
	StripeSecretKey string

	LogLevel string
}

func Load() (*Config, error) {
	if err := godotenv.Load(".env"); err != nil {
		log.Printf("notice: .env file not found: %v, using system environment", err)
	}

	cfg := &Config{
		ServerPort: EnvIntDefault("SERVER_PORT", 8080),

		StoreBackend: EnvDefault("STORE_BACKEND", "postgres"),
		DatabaseURL:  os.Getenv("DATABASE_URL"),
		DataDir:      EnvDefault("DATA_DIR", "data"),

		JWTSecret:     os.Getenv("JWT_SECRET"),
		RefreshSecret: os.Getenv("REFRESH_SECRET"),

		KafkaBrokers: CSV(os.Getenv("KAFKA_BROKERS")),

		ESUrl:      os.Getenv("ES_URL"),
		ESUser:     os.Getenv("ES_USER"),
		ESPassword: os.Getenv("ES_PASSWORD"),

		StripeAPIURL:    EnvDefault("STRIPE_API_URL", "https://api.stripe.com"),
		StripeSecretKey: os.Getenv("STRIPE_SECRET_KEY"),

		LogLevel: EnvDefault("LOG_LEVEL", "info"),
	}

	MustNonEmpty(cfg.JWTSecret, "JWT_SECRET")
	MustNonEmpty(cfg.RefreshSecret, "REFRESH_SECRET")
	if cfg.StoreBackend == "postgres" {
		MustNonEmpty(cfg.DatabaseURL, "DATABASE_URL")
	}

	return cfg, nil
}

func CSV(v string) []string {
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func EnvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func EnvIntDefault(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func MustNonEmpty(value, envName string) {
	if value == "" {
		log.Fatalf("missing required env %s", envName)
	}
}
