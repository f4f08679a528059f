// Package config loads the board's settings from the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	env "github.com/Netflix/go-env"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

const (
	BackendDisk  = "disk"
	BackendMinio = "minio"
)

type Config struct {
	Host       string `env:"HOST,default=0.0.0.0"`
	Port       int    `env:"PORT,default=5000" validate:"min=1,max=65535"`
	UploadDir  string `env:"UPLOAD_DIR,default=uploads" validate:"required"`
	StaticPage string `env:"STATIC_PAGE,default=web/index.html" validate:"required"`

	UploadBackend string `env:"UPLOAD_BACKEND,default=disk" validate:"oneof=disk minio"`
	S3Endpoint    string `env:"S3_ENDPOINT" validate:"required_if=UploadBackend minio"`
	S3AccessKey   string `env:"S3_ACCESS_KEY" validate:"required_if=UploadBackend minio"`
	S3SecretKey   string `env:"S3_SECRET_KEY" validate:"required_if=UploadBackend minio"`
	S3Bucket      string `env:"S3_BUCKET" validate:"required_if=UploadBackend minio"`
	S3Prefix      string `env:"S3_PREFIX,default=uploads/"`

	// Consecutive store failures before uploads fail fast; 0 disables.
	StoreBreakerFailures int           `env:"STORE_BREAKER_FAILURES,default=5" validate:"min=0"`
	StoreBreakerCooldown time.Duration `env:"STORE_BREAKER_COOLDOWN,default=30s" validate:"gt=0"`

	MaxUploadBytes     int64 `env:"MAX_UPLOAD_BYTES,default=0" validate:"min=0"`
	RateLimitPerMinute int   `env:"RATE_LIMIT_PER_MINUTE,default=0" validate:"min=0"`

	LogLevel        string        `env:"LOG_LEVEL,default=info" validate:"oneof=debug info warn error"`
	LogFormat       string        `env:"LOG_FORMAT,default=console" validate:"oneof=console json"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT,default=5s" validate:"gt=0"`
	Version         string        `env:"APP_VERSION,default=dev"`
}

// Addr is the listen address built from Host and Port.
func (c Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// Load reads an optional .env file from the working directory and then
// decodes the process environment.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	es, err := env.EnvironToEnvSet(os.Environ())
	if err != nil {
		return Config{}, fmt.Errorf("read environment: %w", err)
	}
	return FromEnvSet(es)
}

// FromEnvSet decodes and validates a config from an explicit variable set.
func FromEnvSet(es env.EnvSet) (Config, error) {
	var cfg Config
	if err := env.Unmarshal(es, &cfg); err != nil {
		return Config{}, fmt.Errorf("config error: %w", err)
	}
	cfg.Host = strings.TrimSpace(cfg.Host)

	if err := validator.New().Struct(cfg); err != nil {
		return Config{}, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}
