package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config хранит все конфигурационные параметры приложения.
type Config struct {
	ServerPort    int    `yaml:"server_port"`
	PublicBaseURL string `yaml:"public_base_url"`
	LogLevel      string `yaml:"log_level"`

	UpstreamBaseURL string        `yaml:"upstream_base_url"`
	UpstreamTimeout time.Duration `yaml:"upstream_timeout"`

	SessionSecret string        `yaml:"session_secret"`
	SessionTTL    time.Duration `yaml:"session_ttl"`
	SweepInterval time.Duration `yaml:"sweep_interval"`

	DefaultOriginX float64 `yaml:"default_origin_x"`
	DefaultOriginY float64 `yaml:"default_origin_y"`
	DefaultRadius  int     `yaml:"default_radius"`

	CORSAllowedOrigins   []string `yaml:"cors_allowed_origins"`
	ContactRatePerMinute int      `yaml:"contact_rate_per_minute"`

	R2 R2Config `yaml:"r2"`
}

// R2Config configures optional attachment storage. Empty means disabled.
type R2Config struct {
	AccountID       string `yaml:"account_id"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
	BucketName      string `yaml:"bucket_name"`
	PublicBaseURL   string `yaml:"public_base_url"`
}

// Enabled reports whether any R2 setting was provided.
func (r R2Config) Enabled() bool {
	return r.AccountID != "" || r.BucketName != ""
}

// ValidRadii are the search distances offered by the UI, in meters.
var ValidRadii = []int{100, 200, 300, 400, 500}

func defaults() Config {
	return Config{
		ServerPort:           8080,
		PublicBaseURL:        "http://localhost:5173",
		LogLevel:             "info",
		UpstreamTimeout:      5 * time.Second,
		SessionTTL:           2 * time.Hour,
		SweepInterval:        5 * time.Minute,
		DefaultOriginX:       127.13229313772779,
		DefaultOriginY:       37.41460591790208,
		DefaultRadius:        100,
		CORSAllowedOrigins:   []string{"http://localhost:5173"},
		ContactRatePerMinute: 3,
	}
}

// Load собирает конфигурацию: значения по умолчанию, затем YAML файл из
// CONFIG_FILE (если задан), затем переменные окружения.
// Опционально подгружает .env файл (полезно для локальной разработки).
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := defaults()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to unmarshal config file %s: %w", path, err)
		}
	}

	if err := applyEnv(&cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyEnv(cfg *Config) error {
	var errs []error

	setString := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	setInt := func(key string, dst *int) {
		if v := os.Getenv(key); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("invalid %s environment variable: %w", key, err))
				return
			}
			*dst = n
		}
	}
	setFloat := func(key string, dst *float64) {
		if v := os.Getenv(key); v != "" {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				errs = append(errs, fmt.Errorf("invalid %s environment variable: %w", key, err))
				return
			}
			*dst = f
		}
	}
	setDuration := func(key string, dst *time.Duration) {
		if v := os.Getenv(key); v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("invalid %s environment variable: %w", key, err))
				return
			}
			*dst = d
		}
	}

	setInt("SERVER_PORT", &cfg.ServerPort)
	setString("PUBLIC_BASE_URL", &cfg.PublicBaseURL)
	setString("LOG_LEVEL", &cfg.LogLevel)
	setString("UPSTREAM_BASE_URL", &cfg.UpstreamBaseURL)
	setDuration("UPSTREAM_TIMEOUT", &cfg.UpstreamTimeout)
	setString("SESSION_SECRET", &cfg.SessionSecret)
	setDuration("SESSION_TTL", &cfg.SessionTTL)
	setDuration("SWEEP_INTERVAL", &cfg.SweepInterval)
	setFloat("DEFAULT_ORIGIN_X", &cfg.DefaultOriginX)
	setFloat("DEFAULT_ORIGIN_Y", &cfg.DefaultOriginY)
	setInt("DEFAULT_RADIUS", &cfg.DefaultRadius)
	setInt("CONTACT_RATE_PER_MINUTE", &cfg.ContactRatePerMinute)
	if v := os.Getenv("CORS_ALLOWED_ORIGINS"); v != "" {
		cfg.CORSAllowedOrigins = splitList(v)
	}

	setString("R2_ACCOUNT_ID", &cfg.R2.AccountID)
	setString("R2_ACCESS_KEY_ID", &cfg.R2.AccessKeyID)
	setString("R2_SECRET_ACCESS_KEY", &cfg.R2.SecretAccessKey)
	setString("R2_BUCKET_NAME", &cfg.R2.BucketName)
	setString("R2_PUBLIC_BASE_URL", &cfg.R2.PublicBaseURL)

	return errors.Join(errs...)
}

// Validate checks required values and ranges.
func (c *Config) Validate() error {
	if c.UpstreamBaseURL == "" {
		return errors.New("UPSTREAM_BASE_URL environment variable is not set")
	}
	if c.SessionSecret == "" {
		return errors.New("SESSION_SECRET environment variable is not set")
	}
	if c.ServerPort <= 0 || c.ServerPort > 65535 {
		return fmt.Errorf("SERVER_PORT must be between 1 and 65535, got %d", c.ServerPort)
	}
	if !IsValidRadius(c.DefaultRadius) {
		return fmt.Errorf("DEFAULT_RADIUS must be one of %v, got %d", ValidRadii, c.DefaultRadius)
	}
	if c.UpstreamTimeout <= 0 {
		return fmt.Errorf("UPSTREAM_TIMEOUT must be positive, got %s", c.UpstreamTimeout)
	}
	if c.SessionTTL <= 0 || c.SweepInterval <= 0 {
		return errors.New("SESSION_TTL and SWEEP_INTERVAL must be positive")
	}
	if c.ContactRatePerMinute <= 0 {
		return fmt.Errorf("CONTACT_RATE_PER_MINUTE must be positive, got %d", c.ContactRatePerMinute)
	}
	return nil
}

// SlogLevel maps LogLevel onto slog levels, defaulting to Info.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func IsValidRadius(d int) bool {
	for _, v := range ValidRadii {
		if v == d {
			return true
		}
	}
	return false
}

func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
