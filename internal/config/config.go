package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/dimitrije/product-api/internal/database"
	"github.com/joho/godotenv"
)

const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
	StoreSQLite   = "sqlite"
)

var ErrMissingJWTSecret = errors.New("JWT_SECRET is required")

type Config struct {
	Port string
	Env  string

	StoreType   string
	DatabaseURL string
	SQLitePath  string
	Pool        database.PoolConfig
	AutoMigrate bool

	JWTSecret       string
	JWTAccessExpiry time.Duration

	CORSOrigins  []string
	ClientBuffer int
}

// Load reads an optional .env file and then the environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Port: getEnv("PORT", "8080"),
		Env:  getEnv("ENV", "development"),

		StoreType:   strings.ToLower(getEnv("STORE_TYPE", StoreMemory)),
		DatabaseURL: getEnv("DATABASE_URL", ""),
		SQLitePath:  getEnv("SQLITE_PATH", "data/products.db"),
		AutoMigrate: getEnvBool("AUTO_MIGRATE", false),

		JWTSecret:       getEnv("JWT_SECRET", ""),
		JWTAccessExpiry: getEnvDuration("JWT_ACCESS_EXPIRY", 15*time.Minute),

		CORSOrigins:  splitList(getEnv("CORS_ORIGINS", "*")),
		ClientBuffer: getEnvInt("CLIENT_BUFFER", 256),
	}
	cfg.Pool = database.PoolConfig{
		ConnString:      cfg.DatabaseURL,
		MaxConns:        int32(getEnvInt("DB_MAX_CONNS", 20)),
		MinConns:        int32(getEnvInt("DB_MIN_CONNS", 2)),
		MaxConnLifetime: getEnvDuration("DB_MAX_CONN_LIFETIME", time.Hour),
		MaxConnIdleTime: getEnvDuration("DB_MAX_CONN_IDLE_TIME", 30*time.Minute),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.JWTSecret == "" {
		return ErrMissingJWTSecret
	}
	switch c.StoreType {
	case StoreMemory, StoreSQLite:
	case StorePostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required for store type %q", c.StoreType)
		}
	default:
		return fmt.Errorf("unknown store type %q", c.StoreType)
	}
	return nil
}

func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	n, err := strconv.Atoi(getEnv(key, ""))
	if err != nil {
		return fallback
	}
	return n
}

func getEnvBool(key string, fallback bool) bool {
	b, err := strconv.ParseBool(getEnv(key, ""))
	if err != nil {
		return fallback
	}
	return b
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(getEnv(key, ""))
	if err != nil {
		return fallback
	}
	return d
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
