// Package config loads settings from an optional YAML file, a .env file and
// the environment.
package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

type Config struct {
	DB             string        `yaml:"db" env:"TASKBOARD_DB"`
	FilesDir       string        `yaml:"files_dir" env:"TASKBOARD_FILES_DIR"`
	FilesURL       string        `yaml:"files_url" env:"TASKBOARD_FILES_URL"`
	User           string        `yaml:"user" env:"TASKBOARD_USER"`
	LogLevel       string        `yaml:"log_level" env:"TASKBOARD_LOG_LEVEL" env-default:"INFO"`
	LogFile        string        `yaml:"log_file" env:"TASKBOARD_LOG_FILE"`
	GatewayTimeout time.Duration `yaml:"gateway_timeout" env:"TASKBOARD_GATEWAY_TIMEOUT" env-default:"10s"`
}

// Load reads configPath if it exists, falling back to the environment alone
// when it doesn't. A .env file in the working directory is applied first;
// variables already set win over it.
func Load(configPath string) (Config, error) {
	var cfg Config

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return cfg, fmt.Errorf("read .env: %w", err)
	}

	if configPath == "" {
		if err := cleanenv.ReadEnv(&cfg); err != nil {
			return cfg, fmt.Errorf("read env: %w", err)
		}
		return cfg.withDefaults()
	}

	if err := cleanenv.ReadConfig(configPath, &cfg); err != nil {
		var pe *os.PathError
		if !errors.As(err, &pe) {
			return cfg, fmt.Errorf("read config %q: %w", configPath, err)
		}
		if err := cleanenv.ReadEnv(&cfg); err != nil {
			return cfg, fmt.Errorf("read env: %w", err)
		}
	}
	return cfg.withDefaults()
}

func (cfg Config) withDefaults() (Config, error) {
	if cfg.User == "" {
		cfg.User = os.Getenv("USER")
	}
	if _, err := ParseLevel(cfg.LogLevel); err != nil {
		return cfg, err
	}
	if cfg.GatewayTimeout <= 0 {
		return cfg, fmt.Errorf("gateway timeout must be positive, got %s", cfg.GatewayTimeout)
	}
	return cfg, nil
}

// DefaultPath returns the config file location under the XDG config dir
func DefaultPath() string {
	dir := os.Getenv("XDG_CONFIG_HOME")
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		dir = filepath.Join(home, ".config")
	}
	return filepath.Join(dir, "taskboard", "config.yaml")
}

// ParseLevel maps DEBUG, INFO, WARN and ERROR to slog levels
func ParseLevel(level string) (slog.Level, error) {
	switch strings.ToUpper(strings.TrimSpace(level)) {
	case "DEBUG":
		return slog.LevelDebug, nil
	case "", "INFO":
		return slog.LevelInfo, nil
	case "WARN", "WARNING":
		return slog.LevelWarn, nil
	case "ERROR":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("unknown log level %q", level)
}

// NewLogger builds a text logger at the given level. Unknown levels log at
// INFO.
func NewLogger(level string, w io.Writer) *slog.Logger {
	lvl, _ := ParseLevel(level)
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: lvl}))
}

// OpenLogFile opens path for appending, creating its directory
func OpenLogFile(path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, err
	}
	return os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
}
