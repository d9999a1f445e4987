// Package config loads crawler settings from an optional YAML file with
// environment overrides.
package config

import (
	"errors"
	"io/fs"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/wilhg/locale/pkg/errmodel"
	"github.com/wilhg/locale/pkg/source"
)

// Environment variables read by ApplyEnv.
const (
	EnvDatabaseURL = "LOCALE_DB_URL"
	EnvToken       = "EVENTBRITE_OAUTH_KEY"
	EnvMailUser    = "GMAIL_USER"
	EnvMailPass    = "GMAIL_PW"
	EnvPhone       = "PHONE_NUM"
	EnvLogLevel    = "LOCALE_LOG_LEVEL"
)

type EventbriteConfig struct {
	Token       string        `yaml:"token"`
	BaseURL     string        `yaml:"base_url"`
	Timeout     time.Duration `yaml:"timeout"`
	Retries     int           `yaml:"retries"`
	Backoff     time.Duration `yaml:"backoff"`
	MaxBackoff  time.Duration `yaml:"max_backoff"`
	OnExhausted string        `yaml:"on_exhausted"`
}

type NotifyConfig struct {
	SMTPAddr string `yaml:"smtp_addr"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Phone    string `yaml:"phone"`
	Gateway  string `yaml:"gateway"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // console or json
}

type ServeConfig struct {
	Listen   string `yaml:"listen"`
	Schedule string `yaml:"schedule"`
}

type Config struct {
	DatabaseURL string           `yaml:"database_url"`
	Eventbrite  EventbriteConfig `yaml:"eventbrite"`
	Notify      NotifyConfig     `yaml:"notify"`
	Log         LogConfig        `yaml:"log"`
	Serve       ServeConfig      `yaml:"serve"`
	// TraceStdout exports spans to stderr.
	TraceStdout bool `yaml:"trace_stdout"`
}

// Default returns the built-in configuration. Load starts from it, so an
// explicit zero duration in a file survives.
func Default() *Config {
	c := &Config{
		Eventbrite: EventbriteConfig{
			Timeout:    30 * time.Second,
			Backoff:    500 * time.Millisecond,
			MaxBackoff: 10 * time.Second,
		},
	}
	c.Normalize()
	return c
}

// Normalize fills empty string settings with defaults. Durations are left
// alone: zero timeout disables the client timeout and zero backoff falls
// back to the retry library's initial interval.
func (c *Config) Normalize() {
	if c.Eventbrite.OnExhausted == "" {
		c.Eventbrite.OnExhausted = source.Truncate.String()
	}
	if c.Notify.SMTPAddr == "" {
		c.Notify.SMTPAddr = "smtp.gmail.com:465"
	}
	if c.Notify.Gateway == "" {
		c.Notify.Gateway = "vtext.com"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "console"
	}
	if c.Serve.Listen == "" {
		c.Serve.Listen = ":8080"
	}
	if c.Serve.Schedule == "" {
		c.Serve.Schedule = "@every 15m"
	}
}

// Load reads path when non-empty, applies environment overrides from getenv
// and normalizes the result. A nil getenv means os.Getenv.
func Load(path string, getenv func(string) string) (*Config, error) {
	c := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil, errmodel.New(errmodel.CategoryConfig, "config_not_found", "config file does not exist", map[string]any{"path": path}, err)
			}
			return nil, errmodel.New(errmodel.CategoryConfig, "config_unreadable", "cannot read config file", map[string]any{"path": path}, err)
		}
		if err := yaml.Unmarshal(data, c); err != nil {
			return nil, errmodel.New(errmodel.CategoryConfig, "config_invalid", "cannot parse config file", map[string]any{"path": path}, err)
		}
	}
	if getenv == nil {
		getenv = os.Getenv
	}
	c.ApplyEnv(getenv)
	c.Normalize()
	return c, nil
}

// ApplyEnv overrides fields with non-empty environment values.
func (c *Config) ApplyEnv(getenv func(string) string) {
	set := func(dst *string, key string) {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			*dst = v
		}
	}
	set(&c.DatabaseURL, EnvDatabaseURL)
	set(&c.Eventbrite.Token, EnvToken)
	set(&c.Notify.Username, EnvMailUser)
	set(&c.Notify.Password, EnvMailPass)
	set(&c.Notify.Phone, EnvPhone)
	set(&c.Log.Level, EnvLogLevel)
}

// ValidateCrawl reports missing settings a crawl cannot run without.
func (c *Config) ValidateCrawl() error {
	var missing []string
	if strings.TrimSpace(c.DatabaseURL) == "" {
		missing = append(missing, EnvDatabaseURL)
	}
	if strings.TrimSpace(c.Eventbrite.Token) == "" {
		missing = append(missing, EnvToken)
	}
	if len(missing) > 0 {
		return errmodel.Config("missing_settings", "required settings are not set", map[string]any{"missing": missing})
	}
	if _, err := source.ParseExhaustion(c.Eventbrite.OnExhausted); err != nil {
		return errmodel.New(errmodel.CategoryConfig, "invalid_failure_policy", "unknown on_exhausted value", map[string]any{"on_exhausted": c.Eventbrite.OnExhausted}, err)
	}
	if c.Eventbrite.Retries < 0 {
		return errmodel.Config("invalid_failure_policy", "retries must not be negative", map[string]any{"retries": c.Eventbrite.Retries})
	}
	return nil
}

// NotifyEnabled reports whether every SMS setting is present.
func (c *Config) NotifyEnabled() bool {
	n := c.Notify
	return n.Username != "" && n.Password != "" && n.Phone != ""
}

// ValidateNotify reports missing SMS settings.
func (c *Config) ValidateNotify() error {
	var missing []string
	if c.Notify.Username == "" {
		missing = append(missing, EnvMailUser)
	}
	if c.Notify.Password == "" {
		missing = append(missing, EnvMailPass)
	}
	if c.Notify.Phone == "" {
		missing = append(missing, EnvPhone)
	}
	if len(missing) > 0 {
		return errmodel.Config("missing_settings", "notification settings are not set", map[string]any{"missing": missing})
	}
	return nil
}

// FailurePolicy converts the Eventbrite settings. Call ValidateCrawl first.
func (c *Config) FailurePolicy() source.FailurePolicy {
	onExhausted, _ := source.ParseExhaustion(c.Eventbrite.OnExhausted)
	return source.FailurePolicy{
		Retries:     c.Eventbrite.Retries,
		Backoff:     c.Eventbrite.Backoff,
		MaxBackoff:  c.Eventbrite.MaxBackoff,
		OnExhausted: onExhausted,
	}
}
