package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	BaseURL        string        `mapstructure:"PORTAL_BASE_URL"`
	Env            string        `mapstructure:"PORTAL_ENV"`
	RequestTimeout time.Duration `mapstructure:"PORTAL_TIMEOUT"`
	PollInterval   time.Duration `mapstructure:"PORTAL_POLL_INTERVAL"`
	RateRPS        float64       `mapstructure:"PORTAL_RATE_RPS"`
	RateBurst      int           `mapstructure:"PORTAL_RATE_BURST"`
	UploadMaxBytes int64         `mapstructure:"PORTAL_UPLOAD_MAX_BYTES"`
	LogLevel       string        `mapstructure:"PORTAL_LOG_LEVEL"`
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("PORTAL_ENV", "development")
	v.SetDefault("PORTAL_TIMEOUT", "30s")
	v.SetDefault("PORTAL_POLL_INTERVAL", "30s")
	v.SetDefault("PORTAL_RATE_RPS", 10)
	v.SetDefault("PORTAL_RATE_BURST", 20)
	v.SetDefault("PORTAL_UPLOAD_MAX_BYTES", 10*1024*1024)
	v.SetDefault("PORTAL_LOG_LEVEL", "info")

	// Bind env vars explicitly so Unmarshal picks them up
	v.BindEnv("PORTAL_BASE_URL")
	v.BindEnv("PORTAL_ENV")
	v.BindEnv("PORTAL_TIMEOUT")
	v.BindEnv("PORTAL_POLL_INTERVAL")
	v.BindEnv("PORTAL_RATE_RPS")
	v.BindEnv("PORTAL_RATE_BURST")
	v.BindEnv("PORTAL_UPLOAD_MAX_BYTES")
	v.BindEnv("PORTAL_LOG_LEVEL")

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("PORTAL_BASE_URL is required")
	}
	u, err := url.Parse(c.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("PORTAL_BASE_URL must be an absolute URL: %q", c.BaseURL)
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("PORTAL_TIMEOUT must be positive")
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("PORTAL_POLL_INTERVAL must be positive")
	}
	if c.UploadMaxBytes <= 0 {
		return fmt.Errorf("PORTAL_UPLOAD_MAX_BYTES must be positive")
	}
	c.BaseURL = strings.TrimRight(c.BaseURL, "/")
	return nil
}

func (c *Config) IsProduction() bool {
	return c.Env == "production"
}
