package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/exp/slog"
)

const (
	DefaultPort      = "8086"
	DefaultSQLiteDSN = "file:test.db?_pragma=foreign_keys(1)"
)

type Config struct {
	Host            string
	Port            string
	DBDriver        string
	DBDSN           string
	PasswordScheme  string
	BcryptCost      int
	Seed            bool
	LogLevel        slog.Level
	ShutdownTimeout time.Duration
}

func (c Config) ListenAddr() string {
	return c.Host + ":" + c.Port
}

// LoadConfig reads the configuration from the environment. Values from a
// .env file in the working directory are applied first when it exists.
func LoadConfig() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("config: loading .env: %w", err)
	}

	cfg := Config{
		Host:            os.Getenv("APP_HOST"),
		Port:            getEnvAsString("APP_PORT", DefaultPort),
		DBDriver:        getEnvAsString("DB_DRIVER", DriverSQLite),
		DBDSN:           os.Getenv("DB_DSN"),
		PasswordScheme:  getEnvAsString("PASSWORD_SCHEME", "pbkdf2"),
		BcryptCost:      getEnvAsInt("BCRYPT_COST", bcrypt.DefaultCost),
		Seed:            getEnvAsBool("SEED", true),
		ShutdownTimeout: getEnvAsDuration("SHUTDOWN_TIMEOUT", 5*time.Second),
	}

	if cfg.BcryptCost < bcrypt.MinCost || cfg.BcryptCost > bcrypt.MaxCost {
		return Config{}, fmt.Errorf("config: BCRYPT_COST %d outside [%d, %d]", cfg.BcryptCost, bcrypt.MinCost, bcrypt.MaxCost)
	}

	if err := cfg.LogLevel.UnmarshalText([]byte(getEnvAsString("LOG_LEVEL", "info"))); err != nil {
		return Config{}, fmt.Errorf("config: LOG_LEVEL: %w", err)
	}

	if cfg.DBDSN == "" {
		switch cfg.DBDriver {
		case DriverSQLite:
			cfg.DBDSN = DefaultSQLiteDSN
		case DriverPostgres, DriverPGX:
			cfg.DBDSN = postgresDSN()
		default:
			return Config{}, fmt.Errorf("config: unsupported DB_DRIVER %q", cfg.DBDriver)
		}
	}

	return cfg, nil
}

func postgresDSN() string {
	var (
		user     = os.Getenv("POSTGRES_USER")
		password = os.Getenv("POSTGRES_PASSWORD")
		port     = os.Getenv("DB_PORT")
	)

	return fmt.Sprintf("user=%s password=%s port=%s dbname=db sslmode=disable", user, password, port)
}

func getEnvAsString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}

	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}

	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}

	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}

	return defaultValue
}
