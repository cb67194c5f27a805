package config

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	DatabaseURL  string        `env:"DATABASE_URL,required,notEmpty"`
	JWTSecretKey string        `env:"JWT_SECRET_KEY,required,notEmpty"`
	TokenTTL     time.Duration `env:"TOKEN_TTL" envDefault:"24h"`
	ServerPort   int           `env:"SERVER_PORT" envDefault:"8080"`
	LogLevel     slog.Level    `env:"LOG_LEVEL" envDefault:"INFO"`

	DBMaxOpenConns    int           `env:"DB_MAX_OPEN_CONNS" envDefault:"25"`
	DBMaxIdleConns    int           `env:"DB_MAX_IDLE_CONNS" envDefault:"25"`
	DBConnMaxLifetime time.Duration `env:"DB_CONN_MAX_LIFETIME" envDefault:"5m"`
	DBConnectTimeout  time.Duration `env:"DB_CONNECT_TIMEOUT" envDefault:"5s"`

	// DefaultGameOwnerID is used when a game is created without an owner.
	// Zero makes the owner mandatory.
	DefaultGameOwnerID int `env:"DEFAULT_GAME_OWNER_ID" envDefault:"0"`
	// DetectionAttempts bounds how many times starting a game regenerates
	// cards to settle tied tiers.
	DetectionAttempts int `env:"DETECTION_ATTEMPTS" envDefault:"3"`

	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envSeparator:"," envDefault:"http://localhost:3000,http://localhost:5173"`

	// RedisURL enables relaying notifications between instances.
	RedisURL     string `env:"REDIS_URL"`
	RedisChannel string `env:"REDIS_CHANNEL" envDefault:"tombola:notifications"`

	R2 R2Config `envPrefix:"R2_"`
}

// R2Config describes the bucket holding prize images. Prize images are
// disabled while Bucket is empty.
type R2Config struct {
	AccountID       string `env:"ACCOUNT_ID"`
	AccessKeyID     string `env:"ACCESS_KEY_ID"`
	SecretAccessKey string `env:"SECRET_ACCESS_KEY"`
	Bucket          string `env:"BUCKET_NAME"`
	PublicBaseURL   string `env:"PUBLIC_BASE_URL"`
}

func (c R2Config) Enabled() bool {
	return c.Bucket != ""
}

// Load reads an optional .env file and then the process environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("parsing environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	var errs []error
	if c.ServerPort <= 0 || c.ServerPort > 65535 {
		errs = append(errs, fmt.Errorf("SERVER_PORT must be between 1 and 65535, got %d", c.ServerPort))
	}
	if c.DetectionAttempts < 1 {
		errs = append(errs, fmt.Errorf("DETECTION_ATTEMPTS must be at least 1, got %d", c.DetectionAttempts))
	}
	if c.DefaultGameOwnerID < 0 {
		errs = append(errs, fmt.Errorf("DEFAULT_GAME_OWNER_ID must not be negative, got %d", c.DefaultGameOwnerID))
	}
	if c.TokenTTL <= 0 {
		errs = append(errs, errors.New("TOKEN_TTL must be positive"))
	}
	if c.R2.Enabled() && (c.R2.AccountID == "" || c.R2.AccessKeyID == "" || c.R2.SecretAccessKey == "" || c.R2.PublicBaseURL == "") {
		errs = append(errs, errors.New("R2_BUCKET_NAME is set but R2 credentials or R2_PUBLIC_BASE_URL are missing"))
	}
	return errors.Join(errs...)
}
