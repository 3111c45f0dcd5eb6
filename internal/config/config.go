package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v2"
)

const (
	LogLevelDebug = "debug"
	LogLevelInfo  = "info"
	LogLevelWarn  = "warn"
	LogLevelError = "error"

	defaultListen             = ":8089"
	defaultLogLevel           = LogLevelInfo
	defaultSessionFile        = "session.json"
	defaultProfileFile        = "profile.md"
	defaultNavTimeoutSec      = 45
	defaultSelectorTimeoutSec = 15
	defaultCaptchaWaitSec     = 300
	defaultValidateMin        = 15
	defaultSessionTTLHours    = 24 * 7
	defaultMaxPages           = 5
	defaultConcurrentPages    = 3
	defaultCacheTTLMin        = 15
)

type BrowserConfig struct {
	Executable         string   `yaml:"executable"`
	Headless           bool     `yaml:"headless"`
	LaunchArgs         []string `yaml:"launch_args"`
	NavTimeoutSec      int      `yaml:"nav_timeout_sec"`
	SelectorTimeoutSec int      `yaml:"selector_timeout_sec"`
}

func (c *BrowserConfig) NavTimeout() time.Duration {
	return time.Duration(c.NavTimeoutSec) * time.Second
}

func (c *BrowserConfig) SelectorTimeout() time.Duration {
	return time.Duration(c.SelectorTimeoutSec) * time.Second
}

type SessionConfig struct {
	File                string `yaml:"file"`
	ValidateIntervalMin int    `yaml:"validate_interval_min"`
	CaptchaWaitSec      int    `yaml:"captcha_wait_sec"`
	SessionTTLHours     int    `yaml:"session_ttl_hours"`
}

func (c *SessionConfig) ValidateInterval() time.Duration {
	return time.Duration(c.ValidateIntervalMin) * time.Minute
}

func (c *SessionConfig) CaptchaWait() time.Duration {
	return time.Duration(c.CaptchaWaitSec) * time.Second
}

func (c *SessionConfig) SessionTTL() time.Duration {
	return time.Duration(c.SessionTTLHours) * time.Hour
}

type SearchConfig struct {
	MaxPages        int `yaml:"max_pages"`
	ConcurrentPages int `yaml:"concurrent_pages"`
	CacheTTLMin     int `yaml:"cache_ttl_min"`
}

func (c *SearchConfig) CacheTTL() time.Duration {
	return time.Duration(c.CacheTTLMin) * time.Minute
}

type Config struct {
	Listen      string        `yaml:"listen"`
	RedisURL    string        `yaml:"redis_url"`
	LogLevel    string        `yaml:"log_level"`
	ProfileFile string        `yaml:"profile"`
	Browser     BrowserConfig `yaml:"browser"`
	Session     SessionConfig `yaml:"session"`
	Search      SearchConfig  `yaml:"search"`
}

func (c *Config) SetDefaults() {
	if c.Listen == "" {
		c.Listen = defaultListen
	}
	if c.LogLevel == "" {
		c.LogLevel = defaultLogLevel
	}
	if c.ProfileFile == "" {
		c.ProfileFile = defaultProfileFile
	}
	if c.Browser.NavTimeoutSec == 0 {
		c.Browser.NavTimeoutSec = defaultNavTimeoutSec
	}
	if c.Browser.SelectorTimeoutSec == 0 {
		c.Browser.SelectorTimeoutSec = defaultSelectorTimeoutSec
	}
	if c.Session.File == "" {
		c.Session.File = defaultSessionFile
	}
	if c.Session.ValidateIntervalMin == 0 {
		c.Session.ValidateIntervalMin = defaultValidateMin
	}
	if c.Session.CaptchaWaitSec == 0 {
		c.Session.CaptchaWaitSec = defaultCaptchaWaitSec
	}
	if c.Session.SessionTTLHours == 0 {
		c.Session.SessionTTLHours = defaultSessionTTLHours
	}
	if c.Search.MaxPages == 0 {
		c.Search.MaxPages = defaultMaxPages
	}
	if c.Search.ConcurrentPages == 0 {
		c.Search.ConcurrentPages = defaultConcurrentPages
	}
	if c.Search.CacheTTLMin == 0 {
		c.Search.CacheTTLMin = defaultCacheTTLMin
	}
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("cannot parse config file: %w", err)
	}

	cfg.SetDefaults()

	return &cfg, nil
}

func MustLoad(path string) *Config {
	cfg, err := Load(path)
	if err != nil {
		panic(err)
	}

	return cfg
}
