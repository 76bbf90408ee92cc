// Package config loads client settings from a YAML file, an optional .env
// file and the environment. Environment variables win over the file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"gopkg.in/yaml.v3"

	"github.com/Sternrassler/falcon-client/pkg/client"
	"github.com/Sternrassler/falcon-client/pkg/logging"
	"github.com/Sternrassler/falcon-client/pkg/retry"
)

// File is the YAML layout.
type File struct {
	Falcon    FalconConfig    `yaml:"falcon"`
	Redis     RedisConfig     `yaml:"redis"`
	Log       LogConfig       `yaml:"log"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Retry     RetryConfig     `yaml:"retry"`
}

// FalconConfig holds API connection settings.
type FalconConfig struct {
	BaseURL                   string `yaml:"base_url"`
	ClientID                  string `yaml:"client_id"`
	ClientSecret              string `yaml:"client_secret"`
	RefreshBufferSeconds      *int   `yaml:"refresh_buffer_seconds"`
	EarlyRefreshWindowSeconds *int   `yaml:"early_refresh_window_seconds"`
	HTTPTimeoutSeconds        int    `yaml:"http_timeout_seconds"`
	UserAgent                 string `yaml:"user_agent"`
}

// RedisConfig enables the entity cache when URL is set.
type RedisConfig struct {
	URL             string `yaml:"url"`
	CacheTTLSeconds int    `yaml:"cache_ttl_seconds"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `yaml:"level"`
	Pretty bool   `yaml:"pretty"`
}

// RateLimitConfig holds the client-side throttle.
type RateLimitConfig struct {
	RequestsPerSecond float64 `yaml:"requests_per_second"`
}

// RetryConfig overrides the retry policy.
type RetryConfig struct {
	MaxAttempts int `yaml:"max_attempts"`
	DelayMillis int `yaml:"delay_ms"`
}

// Options selects the sources Load reads.
type Options struct {
	// File is a YAML file. Empty skips it.
	File string

	// EnvFile is a .env file. A missing file is ignored.
	EnvFile string
}

// Settings is the resolved configuration.
type Settings struct {
	Client  client.Config
	Logging logging.Config

	// Redis is nil when no Redis URL was configured.
	Redis *redis.Options
}

// Load resolves settings from opts and the environment. The client
// configuration is validated; credentials may come from any source.
func Load(opts Options) (*Settings, error) {
	if opts.EnvFile != "" {
		if err := godotenv.Load(opts.EnvFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load env file %s: %w", opts.EnvFile, err)
		}
	}

	var file File
	if opts.File != "" {
		data, err := os.ReadFile(opts.File)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), &file); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	if err := applyEnv(&file); err != nil {
		return nil, err
	}
	return file.Settings()
}

// Settings converts the file layout into client and logging settings.
func (f *File) Settings() (*Settings, error) {
	cfg := client.DefaultConfig(f.Falcon.ClientID, f.Falcon.ClientSecret)
	if f.Falcon.BaseURL != "" {
		cfg.BaseURL = f.Falcon.BaseURL
	}
	if f.Falcon.RefreshBufferSeconds != nil {
		cfg.RefreshBuffer = seconds(*f.Falcon.RefreshBufferSeconds)
	}
	if f.Falcon.EarlyRefreshWindowSeconds != nil {
		cfg.EarlyRefreshWindow = seconds(*f.Falcon.EarlyRefreshWindowSeconds)
	}
	if f.Falcon.HTTPTimeoutSeconds > 0 {
		cfg.HTTPTimeout = seconds(f.Falcon.HTTPTimeoutSeconds)
	}
	if f.Falcon.UserAgent != "" {
		cfg.UserAgent = f.Falcon.UserAgent
	}
	if f.Redis.CacheTTLSeconds > 0 {
		cfg.CacheTTL = seconds(f.Redis.CacheTTLSeconds)
	}
	if f.Retry.MaxAttempts > 0 {
		cfg.Retry = retry.Config{
			MaxAttempts: f.Retry.MaxAttempts,
			Delay:       time.Duration(f.Retry.DelayMillis) * time.Millisecond,
		}
	}
	cfg.RequestsPerSecond = f.RateLimit.RequestsPerSecond

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	s := &Settings{
		Client: cfg,
		Logging: logging.Config{
			Level:  f.Log.Level,
			Pretty: f.Log.Pretty,
			Output: os.Stderr,
		},
	}

	if f.Redis.URL != "" {
		opt, err := redis.ParseURL(f.Redis.URL)
		if err != nil {
			return nil, fmt.Errorf("%w: redis url: %v", client.ErrConfigurationInvalid, err)
		}
		s.Redis = opt
	}
	return s, nil
}

// NewClient creates the configured client. closeFn releases the client and
// its Redis connection.
func (s *Settings) NewClient() (c *client.Client, closeFn func() error, err error) {
	cfg := s.Client

	var rc *redis.Client
	if s.Redis != nil {
		rc = redis.NewClient(s.Redis)
		cfg.Redis = rc
	}

	c, err = client.New(cfg)
	if err != nil {
		if rc != nil {
			rc.Close()
		}
		return nil, nil, err
	}

	return c, func() error {
		c.Close()
		if rc != nil {
			return rc.Close()
		}
		return nil
	}, nil
}

func seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}
