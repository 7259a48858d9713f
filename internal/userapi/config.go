package userapi

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap/zapcore"
)

// Environment variables read by LoadConfig.
const (
	EnvAddr      = "USERAPI_ADDR"
	EnvAuthToken = "USERAPI_AUTH_TOKEN"
	EnvLogLevel  = "USERAPI_LOG_LEVEL"
)

const (
	defaultAddr     = ":8000"
	defaultLogLevel = "info"

	// DefaultShutdownTimeout bounds how long in-flight requests may take
	// once the server is asked to stop.
	DefaultShutdownTimeout = 15 * time.Second
)

// Config holds the server settings.
type Config struct {
	Addr string
	// AuthToken, when set, must be presented as a bearer token on writes.
	AuthToken       string
	LogLevel        zapcore.Level
	ShutdownTimeout time.Duration
}

// DefaultConfig listens on :8000, the address the load scenarios target.
func DefaultConfig() Config {
	return Config{
		Addr:            defaultAddr,
		LogLevel:        zapcore.InfoLevel,
		ShutdownTimeout: DefaultShutdownTimeout,
	}
}

// LoadConfig reads the optional env files, then the process environment.
// Missing files are ignored; variables already set in the environment win
// over the files.
func LoadConfig(envFiles ...string) (Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("load %s: %w", f, err)
		}
	}

	cfg := DefaultConfig()
	if addr, ok := os.LookupEnv(EnvAddr); ok && strings.TrimSpace(addr) != "" {
		cfg.Addr = strings.TrimSpace(addr)
	}
	cfg.AuthToken = strings.TrimSpace(os.Getenv(EnvAuthToken))

	level := defaultLogLevel
	if v, ok := os.LookupEnv(EnvLogLevel); ok && v != "" {
		level = v
	}
	if err := cfg.LogLevel.UnmarshalText([]byte(level)); err != nil {
		return Config{}, fmt.Errorf("invalid %s %q: %w", EnvLogLevel, level, err)
	}
	return cfg, nil
}
